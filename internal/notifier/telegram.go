package notifier

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"assemblydigest/internal/domain"
	"assemblydigest/internal/ratelimiter"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
)

const (
	// MessageMaxLength is Telegram's limit for one text message.
	MessageMaxLength = 4096
	// ChatInterval keeps a chat below Telegram's per-chat flood limit.
	ChatInterval = 3 * time.Second

	ellipsis = "…"
)

type sender interface {
	SendMessage(ctx context.Context, params *bot.SendMessageParams) (*models.Message, error)
}

// Telegram publishes completed meeting analyses to a chat.
type Telegram struct {
	api     sender
	chatID  int64
	limiter *ratelimiter.Limiter
	log     *slog.Logger
}

func NewTelegram(
	token string,
	chatID int64,
	limiter *ratelimiter.Limiter,
	log *slog.Logger,
) (*Telegram, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, errors.New("token is empty")
	}

	api, err := bot.New(token, bot.WithSkipGetMe())
	if err != nil {
		return nil, fmt.Errorf("create bot: %w", err)
	}

	return &Telegram{
		api:     api,
		chatID:  chatID,
		limiter: limiter,
		log:     log,
	}, nil
}

func ChatKey(chatID int64) string {
	return "telegram:" + strconv.FormatInt(chatID, 10)
}

func (t *Telegram) PublishMeeting(ctx context.Context, m domain.Meeting) error {
	if strings.TrimSpace(m.Summary) == "" {
		return errors.New("meeting summary is empty")
	}

	if err := t.limiter.Wait(ctx, ChatKey(t.chatID)); err != nil {
		return fmt.Errorf("wait for rate limiter: %w", err)
	}

	_, err := t.api.SendMessage(ctx, &bot.SendMessageParams{
		ChatID:    t.chatID,
		Text:      FormatMeeting(m),
		ParseMode: models.ParseModeMarkdown,
		LinkPreviewOptions: &models.LinkPreviewOptions{
			IsDisabled: bot.True(),
		},
	})
	if err != nil {
		return fmt.Errorf("send message: %w", err)
	}

	t.log.InfoContext(ctx, "Meeting digest is published",
		"conferNum", m.ConferNum,
		"chatID", t.chatID)

	return nil
}

// FormatMeeting renders a MarkdownV2 digest of an analysed meeting. The
// summary is shortened when the message would exceed MessageMaxLength.
func FormatMeeting(m domain.Meeting) string {
	var header strings.Builder

	header.WriteString("*")
	header.WriteString(escapeMarkdownV2(m.Title))
	header.WriteString("*\n")

	var meta []string
	for _, v := range []string{m.ConfDate, m.ClassName, m.SubName} {
		if v = strings.TrimSpace(v); v != "" {
			meta = append(meta, escapeMarkdownV2(v))
		}
	}
	if len(meta) > 0 {
		header.WriteString("_")
		header.WriteString(strings.Join(meta, " · "))
		header.WriteString("_\n")
	}
	header.WriteString("\n")

	var footer strings.Builder

	if len(m.Topics) > 0 {
		footer.WriteString("\n\n*주요 논의사항*\n")
		for _, topic := range m.Topics {
			footer.WriteString("• ")
			footer.WriteString(escapeMarkdownV2(topic))
			footer.WriteString("\n")
		}
	}

	for _, link := range []struct{ label, url string }{
		{"회의록 보기", m.PDFLinkURL},
		{"영상 보기", m.VodLinkURL},
	} {
		if link.url == "" {
			continue
		}
		fmt.Fprintf(&footer, "\n[%s](%s)", escapeMarkdownV2(link.label), escapeLinkURL(link.url))
	}

	budget := MessageMaxLength - utf8.RuneCountInString(header.String()) - utf8.RuneCountInString(footer.String())

	return header.String() + escapeWithinBudget(strings.TrimSpace(m.Summary), budget) + footer.String()
}

// escapeWithinBudget escapes s and cuts it, with an ellipsis, so that the
// escaped text fits into budget runes.
func escapeWithinBudget(s string, budget int) string {
	escaped := escapeMarkdownV2(s)
	if utf8.RuneCountInString(escaped) <= budget {
		return escaped
	}

	limit := budget - utf8.RuneCountInString(ellipsis)
	used := 0
	cut := 0

	for i, r := range s {
		width := 1
		if r < utf8.RuneSelf && mdV2Lookup[byte(r)] {
			width = 2
		}

		if used+width > limit {
			break
		}

		used += width
		cut = i + utf8.RuneLen(r)
	}

	if cut == 0 {
		return ""
	}

	return escapeMarkdownV2(strings.TrimSpace(s[:cut])) + ellipsis
}
