package notifier

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"
	"unicode/utf8"

	"assemblydigest/internal/domain"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
)

type recordingSender struct {
	params []*bot.SendMessageParams
	err    error
}

func (s *recordingSender) SendMessage(_ context.Context, params *bot.SendMessageParams) (*models.Message, error) {
	s.params = append(s.params, params)
	if s.err != nil {
		return nil, s.err
	}

	return &models.Message{ID: len(s.params)}, nil
}

func testMeeting() domain.Meeting {
	return domain.Meeting{
		MeetingListing: domain.MeetingListing{
			ConferNum:  "054321",
			Title:      "제422회 국회(정기회) 제1차 본회의",
			ClassName:  "본회의",
			ConfDate:   "2025-09-01",
			PDFLinkURL: "https://record.example/pdf?id=1",
		},
		Summary: "2025년도 예산안이 상정되었습니다. 찬성 180표로 가결되었습니다.",
		Topics:  []string{"예산안 심사", "결산 승인"},
	}
}

func TestEscapeMarkdownV2(t *testing.T) {
	got := escapeMarkdownV2(`a_b*c[d](e)~f>g#h+i-j=k|l{m}n.o!p\q` + "`")
	want := `a\_b\*c\[d\]\(e\)\~f\>g\#h\+i\-j\=k\|l\{m\}n\.o\!p\\q` + "\\`"

	if got != want {
		t.Fatalf("unexpected escape result: %q", got)
	}

	if escapeMarkdownV2("본회의") != "본회의" {
		t.Fatalf("expected text without special characters to stay unchanged")
	}
}

func TestFormatMeeting(t *testing.T) {
	text := FormatMeeting(testMeeting())

	for _, want := range []string{
		`*제422회 국회\(정기회\) 제1차 본회의*`,
		`_2025\-09\-01 · 본회의_`,
		`가결되었습니다\.`,
		"• 예산안 심사\n• 결산 승인",
		`[회의록 보기](https://record.example/pdf?id=1)`,
	} {
		if !strings.Contains(text, want) {
			t.Fatalf("expected %q in message:\n%s", want, text)
		}
	}

	if strings.Contains(text, "영상 보기") {
		t.Fatalf("expected no video link without URL")
	}
}

func TestFormatMeetingFitsMessageLimit(t *testing.T) {
	m := testMeeting()
	m.Summary = strings.Repeat("예산안이 가결되었습니다. ", 1000)

	text := FormatMeeting(m)

	if n := utf8.RuneCountInString(text); n > MessageMaxLength {
		t.Fatalf("expected at most %d runes, got %d", MessageMaxLength, n)
	}

	if !strings.Contains(text, ellipsis) {
		t.Fatalf("expected shortened summary to end with an ellipsis")
	}

	if !strings.Contains(text, "• 결산 승인") {
		t.Fatalf("expected topics to survive shortening")
	}
}

func TestEscapeWithinBudgetNeverSplitsEscapes(t *testing.T) {
	got := escapeWithinBudget("a.b.c.d", 6)

	if got != `a\.b…` {
		t.Fatalf("unexpected result: %q", got)
	}
}

func TestPublishMeeting(t *testing.T) {
	sender := &recordingSender{}
	tg := &Telegram{
		api:    sender,
		chatID: -100123,
		log:    slog.New(slog.NewTextHandler(io.Discard, nil)),
	}

	if err := tg.PublishMeeting(context.Background(), testMeeting()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(sender.params) != 1 {
		t.Fatalf("expected one message, got %d", len(sender.params))
	}

	params := sender.params[0]
	if params.ChatID != int64(-100123) || params.ParseMode != models.ParseModeMarkdown {
		t.Fatalf("unexpected params: %+v", params)
	}

	if params.LinkPreviewOptions == nil || params.LinkPreviewOptions.IsDisabled == nil || !*params.LinkPreviewOptions.IsDisabled {
		t.Fatalf("expected link previews to be disabled")
	}
}

func TestPublishMeetingErrors(t *testing.T) {
	boom := errors.New("boom")
	sender := &recordingSender{err: boom}
	tg := &Telegram{api: sender, log: slog.New(slog.NewTextHandler(io.Discard, nil))}

	if err := tg.PublishMeeting(context.Background(), testMeeting()); !errors.Is(err, boom) {
		t.Fatalf("expected send error, got %v", err)
	}

	empty := testMeeting()
	empty.Summary = " "
	if err := tg.PublishMeeting(context.Background(), empty); err == nil {
		t.Fatalf("expected error for empty summary")
	}

	if len(sender.params) != 1 {
		t.Fatalf("expected no send for empty summary")
	}
}

func TestNewTelegramRequiresToken(t *testing.T) {
	if _, err := NewTelegram(" ", 1, nil, slog.New(slog.NewTextHandler(io.Discard, nil))); err == nil {
		t.Fatalf("expected error for empty token")
	}
}

func TestChatKey(t *testing.T) {
	if got := ChatKey(-100123); got != "telegram:-100123" {
		t.Fatalf("unexpected key: %q", got)
	}
}
