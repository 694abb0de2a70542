package pipeline

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"assemblydigest/internal/domain"
	"assemblydigest/internal/llm"

	"github.com/tidwall/gjson"
)

// DefaultBillTag is used when the model picks a tag outside BillTags.
const DefaultBillTag = "기타"

// BillTags is the classification vocabulary of bills.
var BillTags = []string{"전체", "교통", "주거", "경제", "환경", "고용", DefaultBillTag}

var billListFields = []string{"background", "content", "effect"}

func billSchema() *llm.Schema {
	list := func(description string) map[string]any {
		return map[string]any{
			"type":        "array",
			"description": description,
			"items":       map[string]any{"type": "string"},
		}
	}

	return &llm.Schema{
		Name:   "bill_analysis",
		Strict: true,
		Definition: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"background": list("제안 배경"),
				"content":    list("주요 내용"),
				"effect":     list("기대 효과"),
				"summary":    map[string]any{"type": "string", "description": "한 문장 요약"},
				"highlight":  map[string]any{"type": "string", "description": "대괄호로 감싼 핵심 키워드"},
				"tag": map[string]any{
					"type": "string",
					"enum": BillTags,
				},
			},
			"required":             []string{"background", "content", "effect", "summary", "highlight", "tag"},
			"additionalProperties": false,
		},
	}
}

// DefaultBillAnalysis is returned when a bill cannot be analysed.
func DefaultBillAnalysis(name string) domain.BillAnalysis {
	return domain.BillAnalysis{
		Background: []string{},
		Content:    []string{},
		Effect:     []string{},
		Summary:    fmt.Sprintf("법안 요약: %s에 대한 상세한 내용은 추후 제공될 예정입니다.", name),
		Highlight:  "",
		Tag:        DefaultBillTag,
	}
}

// AnalyzeBill classifies and summarizes one bill with a single structured
// request. It never fails.
func (p *Pipeline) AnalyzeBill(ctx context.Context, name, content string) (analysis domain.BillAnalysis) {
	log := p.runLogger(name)

	defer func() {
		if r := recover(); r != nil {
			log.ErrorContext(ctx, "Recovered from panic in bill analysis", "panic", r)
			analysis = DefaultBillAnalysis(name)
		}
	}()

	name = strings.TrimSpace(name)
	content = strings.TrimSpace(content)
	if name == "" && content == "" {
		return DefaultBillAnalysis(name)
	}

	raw, err := p.extractor.Extract(ctx, llm.Contract{
		System: billSystemPrompt,
		User:   billUserPrompt(name, content),
		Schema: billSchema(),
	})
	if err != nil {
		log.ErrorContext(ctx, "Failed to analyze bill", "error", err)
		return DefaultBillAnalysis(name)
	}

	analysis, err = parseBillAnalysis(raw)
	if err != nil {
		log.ErrorContext(ctx, "Failed to parse bill analysis", "error", err)
		return DefaultBillAnalysis(name)
	}

	return analysis
}

func parseBillAnalysis(raw string) (domain.BillAnalysis, error) {
	raw = strings.TrimSpace(raw)
	if !gjson.Valid(raw) {
		return domain.BillAnalysis{}, fmt.Errorf("parse bill analysis: invalid JSON")
	}

	root := gjson.Parse(raw)
	if !root.IsObject() {
		return domain.BillAnalysis{}, fmt.Errorf("parse bill analysis: not an object")
	}

	lists := make(map[string][]string, len(billListFields))
	for _, field := range billListFields {
		value := root.Get(field)
		if !value.IsArray() {
			return domain.BillAnalysis{}, fmt.Errorf("parse bill analysis: %q is not an array", field)
		}

		items := []string{}
		for _, item := range value.Array() {
			if item.Type != gjson.String {
				return domain.BillAnalysis{}, fmt.Errorf("parse bill analysis: %q has a non-string item", field)
			}
			if s := strings.TrimSpace(item.String()); s != "" {
				items = append(items, s)
			}
		}
		lists[field] = items
	}

	strs := make(map[string]string, 3)
	for _, field := range []string{"summary", "highlight", "tag"} {
		value := root.Get(field)
		if value.Type != gjson.String {
			return domain.BillAnalysis{}, fmt.Errorf("parse bill analysis: %q is not a string", field)
		}
		strs[field] = strings.TrimSpace(value.String())
	}

	if strs["summary"] == "" {
		return domain.BillAnalysis{}, fmt.Errorf("parse bill analysis: summary is empty")
	}

	tag := strs["tag"]
	if !slices.Contains(BillTags, tag) {
		tag = DefaultBillTag
	}

	return domain.BillAnalysis{
		Background: lists["background"],
		Content:    lists["content"],
		Effect:     lists["effect"],
		Summary:    strs["summary"],
		Highlight:  strs["highlight"],
		Tag:        tag,
	}, nil
}
