package assembly

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"assemblydigest/internal/domain"

	"github.com/tidwall/gjson"
	"mvdan.cc/xurls/v2"
)

const (
	meetingsService = "nzbyfwhwaoanttzje"
	// MeetingsPageSize is the page size of the meeting listing.
	MeetingsPageSize = 100
)

var (
	kst      = time.FixedZone("KST", 9*60*60)
	strictRe = xurls.Strict()
)

// Meetings returns one page of this year's plenary meetings of the current
// term and the total row count. A page past the end yields no rows.
func (c *Client) Meetings(ctx context.Context, pageIndex int) ([]domain.MeetingListing, int, error) {
	params := c.pageParams(pageIndex, MeetingsPageSize)
	params.Set("DAE_NUM", strconv.Itoa(c.age))
	params.Set("CONF_DATE", c.now().In(kst).Format("2006"))

	p, err := c.fetch(ctx, meetingsService, params)
	if errors.Is(err, ErrNoData) {
		return nil, 0, nil
	}
	if err != nil {
		return nil, 0, fmt.Errorf("fetch meetings: %w", err)
	}

	meetings := make([]domain.MeetingListing, 0, len(p.rows))
	for _, row := range p.rows {
		meeting := meetingFromRow(row)
		if meeting.ConferNum == "" {
			c.log.WarnContext(ctx, "Meeting row without number is skipped",
				"title", meeting.Title,
				"page", pageIndex)
			continue
		}
		meetings = append(meetings, meeting)
	}

	return meetings, p.total, nil
}

func meetingFromRow(row gjson.Result) domain.MeetingListing {
	field := func(name string) string {
		return strings.TrimSpace(row.Get(name).String())
	}

	return domain.MeetingListing{
		ConferNum:   field("CONFER_NUM"),
		Title:       field("TITLE"),
		ClassName:   field("CLASS_NAME"),
		DaeNum:      field("DAE_NUM"),
		ConfDate:    field("CONF_DATE"),
		SubName:     field("SUB_NAME"),
		VodLinkURL:  normalizeURL(field("VOD_LINK_URL")),
		ConfLinkURL: normalizeURL(field("CONF_LINK_URL")),
		PDFLinkURL:  normalizeURL(field("PDF_LINK_URL")),
		ConfID:      field("CONF_ID"),
	}
}

// normalizeURL extracts the first absolute URL from a listing field, which
// sometimes carries surrounding text.
func normalizeURL(raw string) string {
	return strictRe.FindString(raw)
}
