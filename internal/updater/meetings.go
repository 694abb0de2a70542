package updater

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"assemblydigest/internal/domain"
	"assemblydigest/internal/pipeline"

	"golang.org/x/sync/errgroup"
)

const (
	defaultMeetingsPageSize    = 100
	defaultPageDelay           = 100 * time.Millisecond
	defaultDocumentConcurrency = 2
	defaultDocumentTimeout     = 30 * time.Minute
	defaultRetryLimit          = 10
)

type MeetingSource interface {
	Meetings(ctx context.Context, pageIndex int) ([]domain.MeetingListing, int, error)
}

type MeetingStore interface {
	InsertMeeting(ctx context.Context, m domain.MeetingListing) (bool, error)
	UpdateMeetingAnalysis(ctx context.Context, conferNum string, a domain.Analysis) error
	MeetingsWithoutAnalysis(ctx context.Context, limit int) ([]domain.Meeting, error)
}

type DocumentAnalyzer interface {
	AnalyzeDocument(ctx context.Context, loader pipeline.TextLoader, url, title string) domain.Analysis
}

type MeetingPublisher interface {
	PublishMeeting(ctx context.Context, m domain.Meeting) error
}

type MeetingsConfig struct {
	PageSize            int
	PageDelay           time.Duration
	DocumentConcurrency int
	DocumentTimeout     time.Duration
	// RetryLimit bounds how many meetings with a missing analysis are
	// retried per update.
	RetryLimit int
}

func (c MeetingsConfig) withDefaults() MeetingsConfig {
	if c.PageSize <= 0 {
		c.PageSize = defaultMeetingsPageSize
	}
	if c.PageDelay <= 0 {
		c.PageDelay = defaultPageDelay
	}
	if c.DocumentConcurrency <= 0 {
		c.DocumentConcurrency = defaultDocumentConcurrency
	}
	if c.DocumentTimeout <= 0 {
		c.DocumentTimeout = defaultDocumentTimeout
	}
	if c.RetryLimit <= 0 {
		c.RetryLimit = defaultRetryLimit
	}

	return c
}

// Meetings stores new meetings from the listing synchronously and analyses
// their documents in the background.
type Meetings struct {
	source    MeetingSource
	store     MeetingStore
	loader    pipeline.TextLoader
	analyzer  DocumentAnalyzer
	publisher MeetingPublisher
	cfg       MeetingsConfig

	dispatch sync.WaitGroup
	group    errgroup.Group

	mu       sync.Mutex
	inFlight map[string]struct{}

	log *slog.Logger
}

func NewMeetings(
	source MeetingSource,
	store MeetingStore,
	loader pipeline.TextLoader,
	analyzer DocumentAnalyzer,
	publisher MeetingPublisher,
	cfg MeetingsConfig,
	log *slog.Logger,
) *Meetings {
	cfg = cfg.withDefaults()

	u := &Meetings{
		source:    source,
		store:     store,
		loader:    loader,
		analyzer:  analyzer,
		publisher: publisher,
		cfg:       cfg,
		inFlight:  make(map[string]struct{}),
		log:       log,
	}
	u.group.SetLimit(cfg.DocumentConcurrency)

	return u
}

// Update walks the listing, stores new meetings and schedules analyses for
// them and for previously stored meetings whose analysis is still missing.
// It returns before the analyses finish; see Wait.
func (u *Meetings) Update(ctx context.Context) error {
	u.log.InfoContext(ctx, "Meetings update is started")

	processed, fresh, listErr := u.storeListing(ctx)
	scheduled := u.schedule(ctx, fresh)

	pending, err := u.store.MeetingsWithoutAnalysis(ctx, u.cfg.RetryLimit)
	if err != nil {
		return errors.Join(listErr, fmt.Errorf("get meetings without analysis: %w", err))
	}

	retried := u.schedule(ctx, pending)

	u.log.InfoContext(ctx, "Meetings update is finished",
		"processed", processed,
		"inserted", len(fresh),
		"scheduled", scheduled,
		"retried", retried)

	return listErr
}

// Wait blocks until every scheduled analysis has finished.
func (u *Meetings) Wait() {
	u.dispatch.Wait()
	_ = u.group.Wait()
}

func (u *Meetings) storeListing(ctx context.Context) (int, []domain.Meeting, error) {
	var (
		processed int
		fresh     []domain.Meeting
		errs      []error
	)

	for pageIndex := 1; ; pageIndex++ {
		listings, _, err := u.source.Meetings(ctx, pageIndex)
		if err != nil {
			errs = append(errs, fmt.Errorf("fetch meetings page %d: %w", pageIndex, err))
			break
		}

		for _, listing := range listings {
			processed++

			ok, insertErr := u.store.InsertMeeting(ctx, listing)
			if insertErr != nil {
				u.log.ErrorContext(ctx, "Failed to insert meeting",
					"error", insertErr,
					"conferNum", listing.ConferNum)
				errs = append(errs, fmt.Errorf("insert meeting %s: %w", listing.ConferNum, insertErr))
				continue
			}

			if ok {
				fresh = append(fresh, domain.Meeting{MeetingListing: listing})
			}
		}

		if len(listings) < u.cfg.PageSize {
			break
		}

		if err = sleepContext(ctx, u.cfg.PageDelay); err != nil {
			errs = append(errs, err)
			break
		}
	}

	return processed, fresh, errors.Join(errs...)
}

func (u *Meetings) schedule(ctx context.Context, meetings []domain.Meeting) int {
	var batch []domain.Meeting

	u.mu.Lock()
	for _, m := range meetings {
		if strings.TrimSpace(m.PDFLinkURL) == "" {
			continue
		}
		if _, ok := u.inFlight[m.ConferNum]; ok {
			continue
		}

		u.inFlight[m.ConferNum] = struct{}{}
		batch = append(batch, m)
	}
	u.mu.Unlock()

	if len(batch) == 0 {
		return 0
	}

	u.dispatch.Go(func() {
		for _, m := range batch {
			u.group.Go(func() error {
				defer u.release(m.ConferNum)

				u.analyze(ctx, m)

				return nil
			})
		}
	})

	return len(batch)
}

func (u *Meetings) release(conferNum string) {
	u.mu.Lock()
	defer u.mu.Unlock()

	delete(u.inFlight, conferNum)
}

func (u *Meetings) analyze(ctx context.Context, m domain.Meeting) {
	docCtx, cancel := context.WithTimeout(ctx, u.cfg.DocumentTimeout)
	defer cancel()

	started := time.Now()
	analysis := u.analyzer.AnalyzeDocument(docCtx, u.loader, m.PDFLinkURL, m.Title)

	if analysis.Empty() {
		u.log.WarnContext(ctx, "Meeting analysis is empty, will retry on next update",
			"conferNum", m.ConferNum,
			"title", m.Title,
			"elapsed", time.Since(started))
		return
	}

	if err := u.store.UpdateMeetingAnalysis(ctx, m.ConferNum, analysis); err != nil {
		u.log.ErrorContext(ctx, "Failed to store meeting analysis",
			"error", err,
			"conferNum", m.ConferNum)
		return
	}

	u.log.InfoContext(ctx, "Meeting analysis is stored",
		"conferNum", m.ConferNum,
		"title", m.Title,
		"topics", len(analysis.Topics),
		"elapsed", time.Since(started))

	if u.publisher == nil {
		return
	}

	m.Summary = analysis.Summary
	m.Topics = analysis.Topics

	if err := u.publisher.PublishMeeting(ctx, m); err != nil {
		u.log.ErrorContext(ctx, "Failed to publish meeting analysis",
			"error", err,
			"conferNum", m.ConferNum)
	}
}
