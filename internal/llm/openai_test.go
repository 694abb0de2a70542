package llm_test

import (
	"assemblydigest/internal/llm"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
)

const completedResponse = `{
  "id": "resp_1",
  "object": "response",
  "status": "completed",
  "output": [{
    "type": "message",
    "id": "msg_1",
    "role": "assistant",
    "status": "completed",
    "content": [{"type": "output_text", "text": "  요약입니다.  ", "annotations": []}]
  }]
}`

const incompleteResponse = `{
  "id": "resp_0",
  "object": "response",
  "status": "incomplete",
  "incomplete_details": {"reason": "max_output_tokens"},
  "output": []
}`

type recordedRequests struct {
	mu     sync.Mutex
	bodies []map[string]any
}

func (r *recordedRequests) add(req *http.Request) {
	body, _ := io.ReadAll(req.Body)

	var decoded map[string]any
	_ = json.Unmarshal(body, &decoded)

	r.mu.Lock()
	defer r.mu.Unlock()
	r.bodies = append(r.bodies, decoded)
}

func (r *recordedRequests) all() []map[string]any {
	r.mu.Lock()
	defer r.mu.Unlock()

	return append([]map[string]any(nil), r.bodies...)
}

func newTestClient(t *testing.T, handler http.HandlerFunc) *llm.OpenAIClient {
	t.Helper()

	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	client, err := llm.NewOpenAIClient(llm.OpenAIConfig{
		APIKey:  "test",
		BaseURL: server.URL + "/v1/",
		Model:   "test-model",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	return client
}

func TestOpenAIClientReturnsTrimmedOutputText(t *testing.T) {
	recorded := &recordedRequests{}
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		recorded.add(r)
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, completedResponse)
	})

	out, err := client.Extract(context.Background(), llm.Contract{
		System: "지침",
		User:   "본문",
		Schema: &llm.Schema{Name: "s", Definition: map[string]any{"type": "object"}, Strict: true},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if out != "요약입니다." {
		t.Fatalf("unexpected output: %q", out)
	}

	bodies := recorded.all()
	if len(bodies) != 1 {
		t.Fatalf("expected 1 request, got %d", len(bodies))
	}

	if bodies[0]["model"] != "test-model" || bodies[0]["instructions"] != "지침" || bodies[0]["input"] != "본문" {
		t.Fatalf("unexpected request body: %v", bodies[0])
	}

	if _, ok := bodies[0]["text"]; !ok {
		t.Fatalf("expected text format to be sent for a schema contract")
	}
}

func TestOpenAIClientDoublesOutputBudgetWhenIncomplete(t *testing.T) {
	recorded := &recordedRequests{}
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		recorded.add(r)
		w.Header().Set("Content-Type", "application/json")
		if len(recorded.all()) == 1 {
			_, _ = io.WriteString(w, incompleteResponse)
			return
		}
		_, _ = io.WriteString(w, completedResponse)
	})

	if _, err := client.Extract(context.Background(), llm.Contract{User: "본문"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	bodies := recorded.all()
	if len(bodies) != 2 {
		t.Fatalf("expected 2 requests, got %d", len(bodies))
	}

	first, _ := bodies[0]["max_output_tokens"].(float64)
	second, _ := bodies[1]["max_output_tokens"].(float64)
	if second != first*2 {
		t.Fatalf("expected doubled budget, got %v then %v", first, second)
	}
}

func TestOpenAIClientMapsTooManyRequests(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = io.WriteString(w, `{"error":{"message":"slow down","type":"rate_limit"}}`)
	})

	_, err := client.Extract(context.Background(), llm.Contract{User: "본문"})
	if !errors.Is(err, llm.ErrRateLimited) {
		t.Fatalf("expected ErrRateLimited, got %v", err)
	}
}

func TestOpenAIClientDoesNotMarkServerErrorsAsRateLimited(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		_, _ = io.WriteString(w, `{"error":{"message":"bad","type":"invalid_request_error"}}`)
	})

	_, err := client.Extract(context.Background(), llm.Contract{User: "본문"})
	if err == nil || errors.Is(err, llm.ErrRateLimited) {
		t.Fatalf("expected a non rate-limit error, got %v", err)
	}
}
