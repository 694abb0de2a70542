package assembly

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"assemblydigest/internal/domain"

	"github.com/PuerkitoBio/goquery"
	"github.com/tidwall/gjson"
)

const (
	billsService       = "TVBPMBILL11"
	billSummaryService = "BPMBILLSUMMARY"
)

// Bill stages in the order they are checked.
const (
	StageProcessed          = "처리 완료"
	StagePlenaryPassed      = "본회의 의결"
	StagePlenaryReferred    = "본회의 부의"
	StageCommitteePassed    = "소관위 의결"
	StageCommitteeReviewing = "소관위 심사 중"
	StageProposed           = "접수(발의)"
)

var stageFields = []struct {
	fields []string
	stage  string
}{
	{fields: []string{"PROC_RESULT_CD"}, stage: StageProcessed},
	{fields: []string{"LAW_PROC_RESULT_CD"}, stage: StagePlenaryPassed},
	{fields: []string{"LAW_PRESENT_DT"}, stage: StagePlenaryReferred},
	{fields: []string{"CMT_PROC_RESULT_CD"}, stage: StageCommitteePassed},
	{fields: []string{"CURR_COMMITTEE", "CURR_COMMITTEE_ID"}, stage: StageCommitteeReviewing},
}

// Bills returns one page of bills proposed in the configured term.
func (c *Client) Bills(ctx context.Context, pageIndex, pageSize int) ([]domain.BillListing, error) {
	params := c.pageParams(pageIndex, pageSize)
	params.Set("AGE", strconv.Itoa(c.age))

	p, err := c.fetch(ctx, billsService, params)
	if errors.Is(err, ErrNoData) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("fetch bills: %w", err)
	}

	bills := make([]domain.BillListing, 0, len(p.rows))
	for _, row := range p.rows {
		field := func(name string) string {
			return strings.TrimSpace(row.Get(name).String())
		}

		bills = append(bills, domain.BillListing{
			BillID:       field("BILL_ID"),
			BillNo:       field("BILL_NO"),
			BillName:     field("BILL_NAME"),
			ProposeDate:  field("PROPOSE_DT"),
			Proposer:     field("PROPOSER"),
			ProposerKind: field("PROPOSER_KIND"),
			Stage:        determineStage(row),
			LinkURL:      normalizeURL(field("LINK_URL")),
		})
	}

	return bills, nil
}

// BillSummary returns the plain text of a bill's proposal summary.
func (c *Client) BillSummary(ctx context.Context, billNo string) (string, error) {
	billNo = strings.TrimSpace(billNo)
	if billNo == "" {
		return "", errors.New("bill number is empty")
	}

	params := c.pageParams(1, 1)
	params.Set("BILL_NO", billNo)

	p, err := c.fetch(ctx, billSummaryService, params)
	if err != nil {
		return "", fmt.Errorf("fetch bill summary: %w", err)
	}

	for _, row := range p.rows {
		if summary := flattenMarkup(row.Get("SUMMARY").String()); summary != "" {
			return summary, nil
		}
	}

	return "", ErrNoData
}

func determineStage(row gjson.Result) string {
	for _, s := range stageFields {
		for _, f := range s.fields {
			if v := row.Get(f); v.Exists() && v.Type != gjson.Null {
				return s.stage
			}
		}
	}

	return StageProposed
}

// flattenMarkup turns summary markup into plain text with line breaks kept.
func flattenMarkup(s string) string {
	if !strings.ContainsAny(s, "<&") {
		return strings.TrimSpace(s)
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(s))
	if err != nil {
		return strings.TrimSpace(s)
	}

	doc.Find("br").ReplaceWithHtml("\n")

	lines := strings.Split(doc.Text(), "\n")
	kept := lines[:0]
	for _, line := range lines {
		if line = strings.TrimSpace(line); line != "" {
			kept = append(kept, line)
		}
	}

	return strings.Join(kept, "\n")
}
