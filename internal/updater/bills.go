package updater

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"assemblydigest/internal/domain"
)

const (
	defaultBillsPageSize = 100
	defaultBillsPages    = 1
	// DefaultBillDelay spaces the model requests of consecutive bills.
	DefaultBillDelay     = time.Second
)

type BillSource interface {
	Bills(ctx context.Context, pageIndex, pageSize int) ([]domain.BillListing, error)
	BillSummary(ctx context.Context, billNo string) (string, error)
}

type BillStore interface {
	BillExists(ctx context.Context, billID string) (bool, error)
	InsertBill(ctx context.Context, b domain.BillListing, a domain.BillAnalysis) (bool, error)
	UpdateBillStage(ctx context.Context, billID, stage string) (bool, error)
}

type BillAnalyzer interface {
	AnalyzeBill(ctx context.Context, name, content string) domain.BillAnalysis
}

type BillsConfig struct {
	PageSize int
	// Pages is how many listing pages are synced per update, newest first.
	Pages int
	// Delay paces model requests between bills. Zero disables pacing.
	Delay time.Duration
}

func (c BillsConfig) withDefaults() BillsConfig {
	if c.PageSize <= 0 {
		c.PageSize = defaultBillsPageSize
	}
	if c.Pages <= 0 {
		c.Pages = defaultBillsPages
	}
	if c.Delay < 0 {
		c.Delay = 0
	}

	return c
}

// Bills stores newly proposed bills together with their analysis and keeps
// the stage of known bills current.
type Bills struct {
	source   BillSource
	store    BillStore
	analyzer BillAnalyzer
	cfg      BillsConfig
	log      *slog.Logger
}

func NewBills(
	source BillSource,
	store BillStore,
	analyzer BillAnalyzer,
	cfg BillsConfig,
	log *slog.Logger,
) *Bills {
	return &Bills{
		source:   source,
		store:    store,
		analyzer: analyzer,
		cfg:      cfg.withDefaults(),
		log:      log,
	}
}

func (u *Bills) Update(ctx context.Context) error {
	u.log.InfoContext(ctx, "Bills update is started", "pages", u.cfg.Pages)

	var (
		inserted int
		errs     []error
	)

	for pageIndex := 1; pageIndex <= u.cfg.Pages; pageIndex++ {
		bills, err := u.source.Bills(ctx, pageIndex, u.cfg.PageSize)
		if err != nil {
			errs = append(errs, fmt.Errorf("fetch bills page %d: %w", pageIndex, err))
			break
		}

		for _, bill := range bills {
			ok, syncErr := u.syncBill(ctx, bill)
			if syncErr != nil {
				u.log.ErrorContext(ctx, "Failed to sync bill",
					"error", syncErr,
					"billID", bill.BillID,
					"billName", bill.BillName)
				errs = append(errs, fmt.Errorf("sync bill %s: %w", bill.BillID, syncErr))

				if ctx.Err() != nil {
					return errors.Join(errs...)
				}
				continue
			}

			if !ok {
				continue
			}

			inserted++

			if err = sleepContext(ctx, u.cfg.Delay); err != nil {
				return errors.Join(append(errs, err)...)
			}
		}

		if len(bills) < u.cfg.PageSize {
			break
		}
	}

	u.log.InfoContext(ctx, "Bills update is finished", "inserted", inserted)

	return errors.Join(errs...)
}

// syncBill reports whether a new bill was analysed and stored.
func (u *Bills) syncBill(ctx context.Context, bill domain.BillListing) (bool, error) {
	exists, err := u.store.BillExists(ctx, bill.BillID)
	if err != nil {
		return false, fmt.Errorf("check bill: %w", err)
	}

	if exists {
		changed, stageErr := u.store.UpdateBillStage(ctx, bill.BillID, bill.Stage)
		if stageErr != nil {
			return false, fmt.Errorf("update bill stage: %w", stageErr)
		}

		if changed {
			u.log.InfoContext(ctx, "Bill stage is updated",
				"billID", bill.BillID,
				"stage", bill.Stage)
		}

		return false, nil
	}

	content, err := u.source.BillSummary(ctx, bill.BillNo)
	if err != nil {
		u.log.WarnContext(ctx, "Failed to fetch bill summary, analysing by name only",
			"error", err,
			"billNo", bill.BillNo)
		content = ""
	}

	analysis := u.analyzer.AnalyzeBill(ctx, bill.BillName, content)

	inserted, err := u.store.InsertBill(ctx, bill, analysis)
	if err != nil {
		return false, fmt.Errorf("insert bill: %w", err)
	}

	return inserted, nil
}
