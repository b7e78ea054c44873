package ai

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
)

func sseServer(t *testing.T, events []string) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/chat/completions" {
			t.Errorf("unexpected path %q", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer test-key" {
			t.Errorf("authorization header = %q", got)
		}
		w.Header().Set("Content-Type", "text/event-stream")
		for _, ev := range events {
			fmt.Fprintf(w, "data: %s\n\n", ev)
		}
		fmt.Fprint(w, "data: [DONE]\n\n")
	}))
}

func TestStreamCollectsDeltasAndUsage(t *testing.T) {
	srv := sseServer(t, []string{
		`{"choices":[{"delta":{"content":"{\"role"}}]}`,
		`{"choices":[{"delta":{"content":"Type\":\"Sales\"}"}}]}`,
		`{"choices":[{"delta":{}}],"usage":{"prompt_tokens":12,"completion_tokens":8,"total_tokens":20}}`,
	})
	defer srv.Close()

	client, err := NewClient(Options{APIKey: "test-key", BaseURL: srv.URL})
	if err != nil {
		t.Fatalf("NewClient() error = %v", err)
	}

	var deltas []string
	completion, err := client.Stream(context.Background(), "classify this", StreamOptions{Temperature: 0.1}, func(delta string) {
		deltas = append(deltas, delta)
	})
	if err != nil {
		t.Fatalf("Stream() error = %v", err)
	}

	if completion.Content != `{"roleType":"Sales"}` {
		t.Fatalf("content = %q", completion.Content)
	}
	if len(deltas) != 2 {
		t.Fatalf("received %d deltas, want 2", len(deltas))
	}
	if completion.Tokens.Total != 20 || completion.Tokens.Prompt != 12 {
		t.Fatalf("tokens = %+v", completion.Tokens)
	}
}

func TestStreamToleratesMalformedEvents(t *testing.T) {
	srv := sseServer(t, []string{
		`{"choices":[{"delta":{"content":"ok"}}]}`,
		`{not valid json`,
		`{"choices":[{"delta":{"content":"!"}}]}`,
	})
	defer srv.Close()

	client, err := NewClient(Options{APIKey: "test-key", BaseURL: srv.URL})
	if err != nil {
		t.Fatalf("NewClient() error = %v", err)
	}

	completion, err := client.Stream(context.Background(), "p", StreamOptions{}, nil)
	if err != nil {
		t.Fatalf("Stream() error = %v", err)
	}
	if completion.Content != "ok!" {
		t.Fatalf("content = %q, want %q", completion.Content, "ok!")
	}
}

type fallbackStub struct {
	calls int
}

func (f *fallbackStub) Stream(ctx context.Context, prompt string, opts StreamOptions, onDelta StreamFunc) (*Completion, error) {
	f.calls++
	if onDelta != nil {
		onDelta("fallback output")
	}
	return &Completion{Content: "fallback output"}, nil
}

func TestStreamFallsBackOnErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	fallback := &fallbackStub{}
	var reason string
	client, err := NewClient(Options{
		APIKey:   "test-key",
		BaseURL:  srv.URL,
		Fallback: fallback,
		OnFallback: func(r string, err error) {
			reason = r
		},
	})
	if err != nil {
		t.Fatalf("NewClient() error = %v", err)
	}

	completion, err := client.Stream(context.Background(), "p", StreamOptions{}, nil)
	if err != nil {
		t.Fatalf("Stream() error = %v", err)
	}
	if completion.Content != "fallback output" {
		t.Fatalf("content = %q", completion.Content)
	}
	if fallback.calls != 1 {
		t.Fatalf("fallback calls = %d, want 1", fallback.calls)
	}
	if reason != "http_503" {
		t.Fatalf("fallback reason = %q, want %q", reason, "http_503")
	}
}

func TestStreamFallsBackToNonStreamingCompletion(t *testing.T) {
	// the stream endpoint is down but plain completions still work
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var payload struct {
			Stream bool `json:"stream"`
		}
		if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
			t.Errorf("decode request: %v", err)
		}
		if payload.Stream {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"choices":[{"message":{"content":"recovered"}}],"usage":{"total_tokens":7}}`)
	}))
	defer srv.Close()

	client, err := NewClient(Options{APIKey: "test-key", BaseURL: srv.URL})
	if err != nil {
		t.Fatalf("NewClient() error = %v", err)
	}

	var deltas []string
	completion, err := client.Stream(context.Background(), "p", StreamOptions{}, func(delta string) {
		deltas = append(deltas, delta)
	})
	if err != nil {
		t.Fatalf("Stream() error = %v", err)
	}
	if completion.Content != "recovered" {
		t.Fatalf("content = %q, want %q", completion.Content, "recovered")
	}
	if len(deltas) != 1 || deltas[0] != "recovered" {
		t.Fatalf("deltas = %v, want the full content replayed once", deltas)
	}
}

func TestStreamNoFallbackReturnsCause(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	client, err := NewClient(Options{APIKey: "test-key", BaseURL: srv.URL})
	if err != nil {
		t.Fatalf("NewClient() error = %v", err)
	}
	if _, err := client.Stream(context.Background(), "p", StreamOptions{}, nil); err == nil {
		t.Fatal("Stream() succeeded against an erroring backend with no fallback")
	}
}

func TestNewClientRequiresAPIKey(t *testing.T) {
	if _, err := NewClient(Options{}); err == nil {
		t.Fatal("NewClient() accepted empty api key")
	}
}

func TestCompleteNonStreaming(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"choices":[{"message":{"content":"hello"}}],"usage":{"prompt_tokens":1,"completion_tokens":2,"total_tokens":3}}`)
	}))
	defer srv.Close()

	client, err := NewClient(Options{APIKey: "test-key", BaseURL: srv.URL})
	if err != nil {
		t.Fatalf("NewClient() error = %v", err)
	}
	completion, err := client.Complete(context.Background(), "p", StreamOptions{})
	if err != nil {
		t.Fatalf("Complete() error = %v", err)
	}
	if completion.Content != "hello" || completion.Tokens.Total != 3 {
		t.Fatalf("completion = %+v", completion)
	}
}

func TestParsePayload(t *testing.T) {
	tests := []struct {
		name    string
		content string
		wantErr bool
	}{
		{name: "bare json", content: `{"roleType":"Sales"}`},
		{name: "fenced json", content: "```json\n{\"roleType\":\"Sales\"}\n```"},
		{name: "bare fence", content: "```\n{\"roleType\":\"Sales\"}\n```"},
		{name: "uppercase fence", content: "```JSON\n{\"roleType\":\"Sales\"}\n```"},
		{name: "not json", content: "I cannot help with that.", wantErr: true},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			var out struct {
				RoleType string `json:"roleType"`
			}
			err := ParsePayload(tc.content, &out)
			if tc.wantErr {
				if err == nil {
					t.Fatal("ParsePayload() accepted non-JSON content")
				}
				return
			}
			if err != nil {
				t.Fatalf("ParsePayload() error = %v", err)
			}
			if out.RoleType != "Sales" {
				t.Fatalf("roleType = %q, want %q", out.RoleType, "Sales")
			}
		})
	}
}
