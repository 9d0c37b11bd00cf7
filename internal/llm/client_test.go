package llm

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/pzero-labs/pzero/internal/config"
)

func testGenerationConfig(url string) config.GenerationConfig {
	return config.GenerationConfig{
		OllamaURL:   url,
		ModelName:   "test-model",
		Temperature: 0.8,
		TopP:        0.95,
		NumCtx:      8192,
		Timeout:     5 * time.Second,
	}
}

func collect(t *testing.T, client *Client, messages []Message) ([]string, []error) {
	t.Helper()

	var chunks []string
	var errs []error
	for chunk, err := range client.Chat(context.Background(), messages) {
		if err != nil {
			errs = append(errs, err)
			continue
		}
		chunks = append(chunks, chunk.Content)
	}
	return chunks, errs
}

func TestChatStreamsChunksInOrder(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("expected POST, got %s", r.Method)
		}
		fmt.Fprintln(w, `{"message":{"content":"Hello"},"done":false}`)
		fmt.Fprintln(w, `{"message":{"content":" world"},"done":false}`)
		fmt.Fprintln(w, `{"message":{"content":""},"done":true}`)
	}))
	defer srv.Close()

	client := NewClient(testGenerationConfig(srv.URL), nil)
	chunks, errs := collect(t, client, []Message{{Role: RoleUser, Content: "hi"}})

	if len(errs) != 0 {
		t.Fatalf("unexpected errors: %v", errs)
	}
	if len(chunks) != 2 || chunks[0] != "Hello" || chunks[1] != " world" {
		t.Fatalf("unexpected chunks: %v", chunks)
	}
}

func TestChatSkipsMalformedLines(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintln(w, `{"message":{"content":"ok"},"done":false}`)
		fmt.Fprintln(w, `this is not json`)
		fmt.Fprintln(w, `{"broken":`)
		fmt.Fprintln(w, `{"message":{"content":"still ok"},"done":true}`)
	}))
	defer srv.Close()

	client := NewClient(testGenerationConfig(srv.URL), nil)
	chunks, errs := collect(t, client, nil)

	if len(errs) != 0 {
		t.Fatalf("malformed lines must not abort the stream: %v", errs)
	}
	if len(chunks) != 2 || chunks[1] != "still ok" {
		t.Fatalf("unexpected chunks: %v", chunks)
	}
}

func TestChatStopsAtDoneFragment(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintln(w, `{"message":{"content":"before"},"done":false}`)
		fmt.Fprintln(w, `{"message":{"content":"last"},"done":true}`)
		// Data after the terminal fragment must be ignored.
		fmt.Fprintln(w, `{"message":{"content":"after"},"done":false}`)
	}))
	defer srv.Close()

	client := NewClient(testGenerationConfig(srv.URL), nil)
	chunks, errs := collect(t, client, nil)

	if len(errs) != 0 {
		t.Fatalf("unexpected errors: %v", errs)
	}
	if len(chunks) != 2 || chunks[0] != "before" || chunks[1] != "last" {
		t.Fatalf("expected to stop after the done fragment, got %v", chunks)
	}
}

func TestChatMidStreamFaultYieldsSingleError(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintln(w, `{"message":{"content":"partial"},"done":false}`)
		w.(http.Flusher).Flush()

		// Tear down the connection without finishing the chunked body.
		conn, _, err := w.(http.Hijacker).Hijack()
		if err != nil {
			t.Errorf("hijack failed: %v", err)
			return
		}
		_ = conn.Close()
	}))
	defer srv.Close()

	client := NewClient(testGenerationConfig(srv.URL), nil)
	chunks, errs := collect(t, client, nil)

	if len(chunks) != 1 || chunks[0] != "partial" {
		t.Fatalf("expected the pre-fault chunk to survive, got %v", chunks)
	}
	if len(errs) != 1 {
		t.Fatalf("expected exactly one error, got %v", errs)
	}
}

func TestChatCleanEOFWithoutDoneIsAnError(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintln(w, `{"message":{"content":"only"},"done":false}`)
	}))
	defer srv.Close()

	client := NewClient(testGenerationConfig(srv.URL), nil)
	chunks, errs := collect(t, client, nil)

	if len(chunks) != 1 {
		t.Fatalf("unexpected chunks: %v", chunks)
	}
	if len(errs) != 1 {
		t.Fatalf("expected an error for a stream ending without done, got %v", errs)
	}
}

func TestChatNonOKStatusIsAnError(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model not found", http.StatusNotFound)
	}))
	defer srv.Close()

	client := NewClient(testGenerationConfig(srv.URL), nil)
	chunks, errs := collect(t, client, nil)

	if len(chunks) != 0 {
		t.Fatalf("unexpected chunks: %v", chunks)
	}
	if len(errs) != 1 {
		t.Fatalf("expected exactly one error, got %v", errs)
	}
}

func TestChatUnreachableEndpoint(t *testing.T) {
	t.Parallel()

	client := NewClient(testGenerationConfig("http://127.0.0.1:1/api/chat"), nil)
	chunks, errs := collect(t, client, nil)

	if len(chunks) != 0 || len(errs) != 1 {
		t.Fatalf("expected a single connection error, got chunks=%v errs=%v", chunks, errs)
	}
}
