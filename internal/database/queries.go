package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"assemblydigest/internal/domain"
)

// InsertMeeting stores a listing row unless a meeting with the same number
// exists. It reports whether the row was inserted.
func (d *Database) InsertMeeting(ctx context.Context, m domain.MeetingListing) (bool, error) {
	conferNum := strings.TrimSpace(m.ConferNum)
	if conferNum == "" {
		return false, errors.New("meeting number is empty")
	}

	query := `insert or ignore into meetings (
		confer_num, title, class_name, dae_num, conf_date, sub_name,
		vod_link_url, conf_link_url, pdf_link_url, conf_id, summary, discussion_items
	) values (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, '', '[]')`

	res, err := d.db.ExecContext(ctx, query,
		conferNum, m.Title, m.ClassName, m.DaeNum, m.ConfDate, m.SubName,
		m.VodLinkURL, m.ConfLinkURL, m.PDFLinkURL, m.ConfID)
	if err != nil {
		return false, fmt.Errorf("failed to execute query: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}

	return n > 0, nil
}

// UpdateMeetingAnalysis stores a completed analysis. Empty analyses are
// rejected so that the meeting stays eligible for another attempt.
func (d *Database) UpdateMeetingAnalysis(ctx context.Context, conferNum string, a domain.Analysis) error {
	if a.Empty() {
		return errors.New("analysis summary is empty")
	}

	query := `update meetings
		set summary = ?, discussion_items = ?, updated_at = current_timestamp
		where confer_num = ?`

	res, err := d.db.ExecContext(ctx, query, a.Summary, a.TopicsJSON(), conferNum)
	if err != nil {
		return fmt.Errorf("failed to execute query: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if n == 0 {
		return fmt.Errorf("meeting %s: %w", conferNum, ErrNotFound)
	}

	return nil
}

const meetingColumns = `id, confer_num, title, class_name, dae_num, conf_date, sub_name,
	vod_link_url, conf_link_url, pdf_link_url, conf_id, summary, discussion_items`

func (d *Database) GetMeeting(ctx context.Context, conferNum string) (domain.Meeting, error) {
	query := "select " + meetingColumns + " from meetings where confer_num = ?"

	m, err := scanMeeting(d.db.QueryRowContext(ctx, query, conferNum))
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Meeting{}, fmt.Errorf("meeting %s: %w", conferNum, ErrNotFound)
	}

	return m, err
}

// MeetingsWithoutAnalysis returns the oldest meetings that have a document
// but no stored summary.
func (d *Database) MeetingsWithoutAnalysis(ctx context.Context, limit int) ([]domain.Meeting, error) {
	query := "select " + meetingColumns + ` from meetings
		where summary = '' and pdf_link_url != ''
		order by id
		limit ?`

	rows, err := d.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to execute query: %w", err)
	}
	defer func() {
		if err = rows.Close(); err != nil {
			d.log.ErrorContext(ctx, "Failed to close rows",
				"error", err,
				"operation", "MeetingsWithoutAnalysis")
		}
	}()

	var meetings []domain.Meeting
	for rows.Next() {
		m, scanErr := scanMeeting(rows)
		if scanErr != nil {
			return nil, scanErr
		}

		meetings = append(meetings, m)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate rows: %w", err)
	}

	return meetings, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanMeeting(s scanner) (domain.Meeting, error) {
	var (
		m     domain.Meeting
		items string
	)

	err := s.Scan(&m.ID, &m.ConferNum, &m.Title, &m.ClassName, &m.DaeNum, &m.ConfDate, &m.SubName,
		&m.VodLinkURL, &m.ConfLinkURL, &m.PDFLinkURL, &m.ConfID, &m.Summary, &items)
	if err != nil {
		return domain.Meeting{}, fmt.Errorf("failed to scan row: %w", err)
	}

	if err = json.Unmarshal([]byte(items), &m.Topics); err != nil {
		return domain.Meeting{}, fmt.Errorf("failed to decode discussion items: %w", err)
	}

	return m, nil
}

func (d *Database) BillExists(ctx context.Context, billID string) (bool, error) {
	var exists bool

	err := d.db.QueryRowContext(ctx, "select exists(select 1 from bills where bill_id = ?)", billID).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to execute query: %w", err)
	}

	return exists, nil
}

// InsertBill stores a bill with its analysis unless it already exists.
func (d *Database) InsertBill(ctx context.Context, b domain.BillListing, a domain.BillAnalysis) (bool, error) {
	billID := strings.TrimSpace(b.BillID)
	if billID == "" {
		return false, errors.New("bill ID is empty")
	}

	background, err := marshalList(a.Background)
	if err != nil {
		return false, err
	}
	content, err := marshalList(a.Content)
	if err != nil {
		return false, err
	}
	effect, err := marshalList(a.Effect)
	if err != nil {
		return false, err
	}

	query := `insert or ignore into bills (
		bill_id, bill_no, bill_name, propose_date, proposer, proposer_kind, stage, link_url,
		background, content, effect, summary, highlight, tag
	) values (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	res, err := d.db.ExecContext(ctx, query,
		billID, b.BillNo, b.BillName, b.ProposeDate, b.Proposer, b.ProposerKind, b.Stage, b.LinkURL,
		background, content, effect, a.Summary, a.Highlight, a.Tag)
	if err != nil {
		return false, fmt.Errorf("failed to execute query: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}

	return n > 0, nil
}

// UpdateBillStage records stage progress of a stored bill. It reports whether
// the stage changed.
func (d *Database) UpdateBillStage(ctx context.Context, billID, stage string) (bool, error) {
	query := `update bills
		set stage = ?, updated_at = current_timestamp
		where bill_id = ? and stage != ?`

	res, err := d.db.ExecContext(ctx, query, stage, billID, stage)
	if err != nil {
		return false, fmt.Errorf("failed to execute query: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}

	return n > 0, nil
}

func (d *Database) GetBill(ctx context.Context, billID string) (domain.Bill, error) {
	query := `select id, bill_id, bill_no, bill_name, propose_date, proposer, proposer_kind, stage, link_url,
		background, content, effect, summary, highlight, tag
		from bills where bill_id = ?`

	var (
		b                           domain.Bill
		background, content, effect string
	)

	err := d.db.QueryRowContext(ctx, query, billID).Scan(
		&b.ID, &b.BillID, &b.BillNo, &b.BillName, &b.ProposeDate, &b.Proposer, &b.ProposerKind, &b.Stage,
		&b.LinkURL, &background, &content, &effect, &b.Analysis.Summary, &b.Analysis.Highlight, &b.Analysis.Tag)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Bill{}, fmt.Errorf("bill %s: %w", billID, ErrNotFound)
	}
	if err != nil {
		return domain.Bill{}, fmt.Errorf("failed to scan row: %w", err)
	}

	for _, f := range []struct {
		raw string
		dst *[]string
	}{
		{background, &b.Analysis.Background},
		{content, &b.Analysis.Content},
		{effect, &b.Analysis.Effect},
	} {
		if err = json.Unmarshal([]byte(f.raw), f.dst); err != nil {
			return domain.Bill{}, fmt.Errorf("failed to decode bill list: %w", err)
		}
	}

	return b, nil
}

func marshalList(items []string) (string, error) {
	if items == nil {
		items = []string{}
	}

	b, err := json.Marshal(items)
	if err != nil {
		return "", fmt.Errorf("failed to encode list: %w", err)
	}

	return string(b), nil
}
