package gpt

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestClient(t *testing.T, handler http.HandlerFunc) (*Client, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	c := NewClient(srv.Client(), srv.URL, "test-key", "folder-1",
		ModelConfig{Model: "lite", Temperature: 0.4, MaxTokens: 2000},
		5*time.Second, 3, testLogger())
	return c, srv
}

func completionReply(text string) string {
	return fmt.Sprintf(`{"result":{"alternatives":[{"message":{"role":"assistant","text":%q}}]}}`, text)
}

func TestRewriteParsesJSONReply(t *testing.T) {
	var gotAuth, gotFolder string
	var gotReq completionRequest

	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		gotFolder = r.Header.Get("x-folder-id")
		_ = json.NewDecoder(r.Body).Decode(&gotReq)
		fmt.Fprint(w, completionReply(`{"title": "Fresh title", "description": "Fresh summary"}`))
	})

	res, err := c.Rewrite(context.Background(), "Old title", "Old summary")
	if err != nil {
		t.Fatalf("rewrite: %v", err)
	}

	want := Result{Title: "Fresh title", Summary: "Fresh summary"}
	if diff := cmp.Diff(want, res); diff != "" {
		t.Errorf("result mismatch (-want +got):\n%s", diff)
	}
	if gotAuth != "Api-Key test-key" {
		t.Errorf("auth header = %q", gotAuth)
	}
	if gotFolder != "folder-1" {
		t.Errorf("folder header = %q", gotFolder)
	}
	if want := "gpt://folder-1/yandexgpt-lite/latest"; gotReq.ModelURI != want {
		t.Errorf("model uri = %q, want %q", gotReq.ModelURI, want)
	}
	if gotReq.CompletionOptions.Stream {
		t.Error("stream should be disabled")
	}
}

func TestRewriteFallsBackToPlainTextReply(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, completionReply("Short headline\nLonger summary text."))
	})

	res, err := c.Rewrite(context.Background(), "t", "s")
	if err != nil {
		t.Fatalf("rewrite: %v", err)
	}
	want := Result{Title: "Short headline", Summary: "Longer summary text."}
	if diff := cmp.Diff(want, res); diff != "" {
		t.Errorf("result mismatch (-want +got):\n%s", diff)
	}
}

func TestRewriteErrorsOnAPIFailure(t *testing.T) {
	tests := []struct {
		name    string
		handler http.HandlerFunc
	}{
		{
			name: "http error status",
			handler: func(w http.ResponseWriter, r *http.Request) {
				http.Error(w, "quota exceeded", http.StatusTooManyRequests)
			},
		},
		{
			name: "malformed body",
			handler: func(w http.ResponseWriter, r *http.Request) {
				fmt.Fprint(w, "<html>not json</html>")
			},
		},
		{
			name: "empty alternatives",
			handler: func(w http.ResponseWriter, r *http.Request) {
				fmt.Fprint(w, `{"result":{"alternatives":[]}}`)
			},
		},
		{
			name: "refusal boilerplate",
			handler: func(w http.ResponseWriter, r *http.Request) {
				fmt.Fprint(w, completionReply(`{"title": "As a language model I cannot", "description": "sorry"}`))
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, _ := newTestClient(t, tt.handler)
			if _, err := c.Rewrite(context.Background(), "t", "s"); err == nil {
				t.Fatal("expected error")
			}
		})
	}
}

func TestClientDisablesAfterConsecutiveFailures(t *testing.T) {
	calls := 0
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls++
		http.Error(w, "down", http.StatusInternalServerError)
	})

	for i := 0; i < 3; i++ {
		if _, err := c.Rewrite(context.Background(), "t", "s"); err == nil {
			t.Fatal("expected failure")
		}
	}

	if c.Available() {
		t.Error("client should be unavailable after hitting the error threshold")
	}
	if _, err := c.Rewrite(context.Background(), "t", "s"); err != ErrUnavailable {
		t.Errorf("err = %v, want ErrUnavailable", err)
	}
	if calls != 3 {
		t.Errorf("disabled client should not call the API, got %d calls", calls)
	}
}

func TestClientRecoversCounterOnSuccess(t *testing.T) {
	fail := true
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if fail {
			http.Error(w, "down", http.StatusInternalServerError)
			return
		}
		fmt.Fprint(w, completionReply(`{"title": "ok", "description": "fine"}`))
	})

	for i := 0; i < 2; i++ {
		_, _ = c.Rewrite(context.Background(), "t", "s")
	}
	fail = false
	if _, err := c.Rewrite(context.Background(), "t", "s"); err != nil {
		t.Fatalf("rewrite after recovery: %v", err)
	}

	fail = true
	for i := 0; i < 2; i++ {
		_, _ = c.Rewrite(context.Background(), "t", "s")
	}
	if !c.Available() {
		t.Error("success should have reset the consecutive error counter")
	}
}

func TestClientWithoutCredentialsIsUnavailable(t *testing.T) {
	c := NewClient(http.DefaultClient, "https://example.invalid", "", "",
		ModelConfig{}, time.Second, 3, testLogger())
	if c.Available() {
		t.Error("client without credentials should be unavailable")
	}
}

func TestModelURIAliases(t *testing.T) {
	tests := []struct {
		model string
		want  string
	}{
		{"lite", "gpt://f/yandexgpt-lite/latest"},
		{"", "gpt://f/yandexgpt-lite/latest"},
		{"pro", "gpt://f/yandexgpt/latest"},
		{"yandexgpt", "gpt://f/yandexgpt/latest"},
		{"custom-model", "gpt://f/custom-model/latest"},
	}
	for _, tt := range tests {
		if got := modelURI("f", tt.model); got != tt.want {
			t.Errorf("modelURI(f, %q) = %q, want %q", tt.model, got, tt.want)
		}
	}
}

func TestIsLowQuality(t *testing.T) {
	tests := []struct {
		text string
		want bool
	}{
		{"Нормальный заголовок", false},
		{"", true},
		{"As a language model I cannot help", true},
		{"Я не могу переписать этот текст", true},
		{"{title} placeholder leaked", true},
		{"Обычная новость про {продукт}", false},
	}
	for _, tt := range tests {
		if got := IsLowQuality(tt.text); got != tt.want {
			t.Errorf("IsLowQuality(%q) = %v, want %v", tt.text, got, tt.want)
		}
	}
}
