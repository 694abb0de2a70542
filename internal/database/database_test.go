package database_test

import (
	"assemblydigest/internal/database"
	"assemblydigest/internal/domain"
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"testing"
)

func newTestDatabase(t *testing.T) *database.Database {
	t.Helper()

	db, err := database.New(context.Background(), filepath.Join(t.TempDir(), "test.db"),
		slog.New(slog.NewTextHandler(io.Discard, nil)))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	return db
}

func testListing(num string) domain.MeetingListing {
	return domain.MeetingListing{
		ConferNum:  num,
		Title:      "제422회 국회(정기회) 제" + num + "차 본회의",
		ConfDate:   "2025-09-01",
		PDFLinkURL: "https://record.example/pdf/" + num,
	}
}

func TestNewIsIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.db")
	log := slog.New(slog.NewTextHandler(io.Discard, nil))

	for range 2 {
		db, err := database.New(context.Background(), path, log)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		_ = db.Close()
	}
}

func TestNewFailsOnCorruptFile(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "corrupt.sqlite")
	if err := os.WriteFile(dbPath, bytes.Repeat([]byte("not a sqlite database "), 256), 0o600); err != nil {
		t.Fatalf("write file: %v", err)
	}

	db, err := database.New(context.Background(), dbPath, slog.New(slog.NewTextHandler(io.Discard, nil)))
	if err == nil {
		_ = db.Close()
		t.Fatalf("expected error for a corrupt database file")
	}

	if db != nil {
		t.Fatalf("expected nil database on error")
	}
}

func TestInsertMeetingIsInsertIfNew(t *testing.T) {
	db := newTestDatabase(t)
	ctx := context.Background()

	inserted, err := db.InsertMeeting(ctx, testListing("1"))
	if err != nil || !inserted {
		t.Fatalf("expected insert, got %v (err = %v)", inserted, err)
	}

	inserted, err = db.InsertMeeting(ctx, testListing("1"))
	if err != nil || inserted {
		t.Fatalf("expected duplicate to be ignored, got %v (err = %v)", inserted, err)
	}

	m, err := db.GetMeeting(ctx, "1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if m.Summary != "" || m.Topics == nil || len(m.Topics) != 0 {
		t.Fatalf("expected empty analysis placeholders, got %+v", m)
	}

	if _, err = db.InsertMeeting(ctx, domain.MeetingListing{ConferNum: " "}); err == nil {
		t.Fatalf("expected error for empty meeting number")
	}
}

func TestUpdateMeetingAnalysis(t *testing.T) {
	db := newTestDatabase(t)
	ctx := context.Background()

	if _, err := db.InsertMeeting(ctx, testListing("7")); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	analysis := domain.Analysis{Summary: "예산안이 가결되었습니다.", Topics: []string{"예산안", "결산"}}
	if err := db.UpdateMeetingAnalysis(ctx, "7", analysis); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	m, err := db.GetMeeting(ctx, "7")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if m.Summary != analysis.Summary || !slices.Equal(m.Topics, analysis.Topics) {
		t.Fatalf("unexpected stored analysis: %+v", m)
	}

	if err = db.UpdateMeetingAnalysis(ctx, "7", domain.Analysis{}); err == nil {
		t.Fatalf("expected empty analysis to be rejected")
	}

	if err = db.UpdateMeetingAnalysis(ctx, "404", analysis); !errors.Is(err, database.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestMeetingsWithoutAnalysis(t *testing.T) {
	db := newTestDatabase(t)
	ctx := context.Background()

	noPDF := testListing("3")
	noPDF.PDFLinkURL = ""

	for _, m := range []domain.MeetingListing{testListing("1"), testListing("2"), noPDF, testListing("4")} {
		if _, err := db.InsertMeeting(ctx, m); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}

	if err := db.UpdateMeetingAnalysis(ctx, "2", domain.Analysis{Summary: "요약"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	meetings, err := db.MeetingsWithoutAnalysis(ctx, 10)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var nums []string
	for _, m := range meetings {
		nums = append(nums, m.ConferNum)
	}

	if !slices.Equal(nums, []string{"1", "4"}) {
		t.Fatalf("unexpected meetings: %v", nums)
	}

	limited, err := db.MeetingsWithoutAnalysis(ctx, 1)
	if err != nil || len(limited) != 1 {
		t.Fatalf("expected limit to apply, got %d (err = %v)", len(limited), err)
	}
}

func TestGetMeetingNotFound(t *testing.T) {
	db := newTestDatabase(t)

	if _, err := db.GetMeeting(context.Background(), "missing"); !errors.Is(err, database.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestBills(t *testing.T) {
	db := newTestDatabase(t)
	ctx := context.Background()

	listing := domain.BillListing{BillID: "B1", BillNo: "2200001", BillName: "주택법 일부개정법률안", Stage: "접수(발의)"}
	analysis := domain.BillAnalysis{Content: []string{"겸직 금지"}, Summary: "요약", Tag: "주거"}

	exists, err := db.BillExists(ctx, "B1")
	if err != nil || exists {
		t.Fatalf("expected bill to be absent, got %v (err = %v)", exists, err)
	}

	inserted, err := db.InsertBill(ctx, listing, analysis)
	if err != nil || !inserted {
		t.Fatalf("expected insert, got %v (err = %v)", inserted, err)
	}

	if inserted, _ = db.InsertBill(ctx, listing, analysis); inserted {
		t.Fatalf("expected duplicate bill to be ignored")
	}

	if exists, _ = db.BillExists(ctx, "B1"); !exists {
		t.Fatalf("expected bill to exist")
	}

	changed, err := db.UpdateBillStage(ctx, "B1", "소관위 심사 중")
	if err != nil || !changed {
		t.Fatalf("expected stage change, got %v (err = %v)", changed, err)
	}

	if changed, _ = db.UpdateBillStage(ctx, "B1", "소관위 심사 중"); changed {
		t.Fatalf("expected unchanged stage to report false")
	}

	bill, err := db.GetBill(ctx, "B1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if bill.Stage != "소관위 심사 중" || bill.Analysis.Tag != "주거" || !slices.Equal(bill.Analysis.Content, []string{"겸직 금지"}) {
		t.Fatalf("unexpected bill: %+v", bill)
	}

	if bill.Analysis.Background == nil || len(bill.Analysis.Background) != 0 {
		t.Fatalf("expected empty background list, got %v", bill.Analysis.Background)
	}
}
