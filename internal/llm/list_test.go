package llm_test

import (
	"assemblydigest/internal/llm"
	"context"
	"errors"
	"slices"
	"testing"
)

var topicsSchema = llm.ListSchema{
	Name:     "discussion_items",
	Field:    "items",
	MinItems: 1,
	MaxItems: 5,
}

type staticExtractor struct {
	out      string
	err      error
	contract llm.Contract
}

func (s *staticExtractor) Extract(_ context.Context, c llm.Contract) (string, error) {
	s.contract = c
	return s.out, s.err
}

func TestListSchemaDefinition(t *testing.T) {
	schema := topicsSchema.Schema()

	if schema.Name != "discussion_items" || !schema.Strict {
		t.Fatalf("unexpected schema header: %+v", schema)
	}

	if schema.Definition["additionalProperties"] != false {
		t.Fatalf("expected additional properties to be forbidden")
	}

	props, ok := schema.Definition["properties"].(map[string]any)
	if !ok {
		t.Fatalf("expected properties map")
	}

	items, ok := props["items"].(map[string]any)
	if !ok {
		t.Fatalf("expected items property")
	}

	if items["type"] != "array" || items["minItems"] != 1 || items["maxItems"] != 5 {
		t.Fatalf("unexpected array definition: %+v", items)
	}
}

func TestListSchemaParse(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		want    []string
		wantErr bool
	}{
		{name: "valid", raw: `{"items":["예산안 심사","법률안 상정"]}`, want: []string{"예산안 심사", "법률안 상정"}},
		{name: "trims and skips blanks", raw: ` {"items":["  국정감사 ", ""]} `, want: []string{"국정감사"}},
		{name: "empty array", raw: `{"items":[]}`, want: []string{}},
		{name: "invalid json", raw: `{"items":[`, wantErr: true},
		{name: "not an object", raw: `["a"]`, wantErr: true},
		{name: "missing field", raw: `{}`, wantErr: true},
		{name: "field not array", raw: `{"items":"a"}`, wantErr: true},
		{name: "extra property", raw: `{"items":["a"],"note":"b"}`, wantErr: true},
		{name: "non string item", raw: `{"items":["a",1]}`, wantErr: true},
		{name: "too many items", raw: `{"items":["a","b","c","d","e","f"]}`, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := topicsSchema.Parse(tt.raw)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("expected error, got %v", got)
				}
				return
			}

			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}

			if !slices.Equal(got, tt.want) {
				t.Fatalf("expected %v, got %v", tt.want, got)
			}
		})
	}
}

func TestExtractListSendsSchemaAndParses(t *testing.T) {
	ex := &staticExtractor{out: `{"items":["본회의 개의"]}`}

	items, err := llm.ExtractList(context.Background(), ex, "system", "user", topicsSchema)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if !slices.Equal(items, []string{"본회의 개의"}) {
		t.Fatalf("unexpected items: %v", items)
	}

	if ex.contract.Schema == nil || ex.contract.Schema.Name != "discussion_items" {
		t.Fatalf("expected schema to be sent, got %+v", ex.contract.Schema)
	}

	if ex.contract.System != "system" || ex.contract.User != "user" {
		t.Fatalf("unexpected prompts: %+v", ex.contract)
	}
}

func TestExtractListMalformedResponseIsExtractionFailure(t *testing.T) {
	ex := &staticExtractor{out: `not json`}

	_, err := llm.ExtractList(context.Background(), ex, "s", "u", topicsSchema)
	if !errors.Is(err, llm.ErrExtractionFailed) {
		t.Fatalf("expected ErrExtractionFailed, got %v", err)
	}
}

func TestExtractListPassesTransportErrors(t *testing.T) {
	boom := errors.New("boom")
	ex := &staticExtractor{err: boom}

	if _, err := llm.ExtractList(context.Background(), ex, "s", "u", topicsSchema); !errors.Is(err, boom) {
		t.Fatalf("expected transport error, got %v", err)
	}
}

func TestNewOpenAIClientRequiresAPIKey(t *testing.T) {
	if _, err := llm.NewOpenAIClient(llm.OpenAIConfig{APIKey: "  "}); err == nil {
		t.Fatalf("expected error for empty API key")
	}
}

func TestOpenAIClientRejectsEmptyUserPrompt(t *testing.T) {
	client, err := llm.NewOpenAIClient(llm.OpenAIConfig{APIKey: "test", BaseURL: "http://127.0.0.1:1"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if _, err := client.Extract(context.Background(), llm.Contract{User: " "}); err == nil {
		t.Fatalf("expected error for empty user prompt")
	}
}
