package llamacpp

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func completionServer(t *testing.T, status int, content any, got *completionRequest) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/chat/completions" || r.Method != http.MethodPost {
			http.NotFound(w, r)
			return
		}
		if got != nil {
			if err := json.NewDecoder(r.Body).Decode(got); err != nil {
				t.Errorf("bad request body: %v", err)
			}
		}
		if status != http.StatusOK {
			http.Error(w, "model not loaded", status)
			return
		}
		json.NewEncoder(w).Encode(map[string]any{
			"id":      "cmpl-1",
			"object":  "chat.completion",
			"choices": []any{map[string]any{"index": 0, "message": map[string]any{"role": "assistant", "content": content}}},
		})
	}))
}

func TestLocateRegions(t *testing.T) {
	var req completionRequest
	srv := completionServer(t, http.StatusOK,
		`{"regions":[{"x":0.0,"y":0.0,"w":0.5,"h":0.5},{"x":0.5,"y":0.5,"w":0.5,"h":0.5},],"description":"two"}`, &req)
	defer srv.Close()

	c, _ := NewClient(srv.URL + "/")
	res, err := c.LocateRegions(context.Background(), "minicpm", "find photos", "aGVsbG8=")
	if err != nil {
		t.Fatalf("LocateRegions failed: %v", err)
	}
	if len(res.Regions) != 2 || res.Description != "two" {
		t.Errorf("unexpected result %+v", res)
	}

	if req.Model != "minicpm" || req.Stream {
		t.Errorf("unexpected request %+v", req)
	}
	parts, _ := req.Messages[0].Content.([]any)
	if len(parts) != 2 {
		t.Fatalf("expected text and image parts, got %v", req.Messages[0].Content)
	}
	url, _ := parts[1].(map[string]any)["image_url"].(map[string]any)["url"].(string)
	if !strings.HasPrefix(url, "data:image/jpeg;base64,aGVsbG8=") {
		t.Errorf("unexpected image url %q", url)
	}
}

func TestSimpleQueryArrayContent(t *testing.T) {
	srv := completionServer(t, http.StatusOK, []any{map[string]any{"type": "text", "text": "a scanned album page"}}, nil)
	defer srv.Close()

	c, _ := NewClient(srv.URL)
	text, err := c.SimpleQuery(context.Background(), "m", "what is this", "")
	if err != nil {
		t.Fatalf("SimpleQuery failed: %v", err)
	}
	if text != "a scanned album page" {
		t.Errorf("unexpected text %q", text)
	}
}

func TestServerError(t *testing.T) {
	srv := completionServer(t, http.StatusServiceUnavailable, nil, nil)
	defer srv.Close()

	c, _ := NewClient(srv.URL)
	_, err := c.LocateRegions(context.Background(), "m", "p", "")
	if err == nil || !strings.Contains(err.Error(), "503") {
		t.Errorf("expected status error, got %v", err)
	}
}

func TestNewClientDefaultURL(t *testing.T) {
	c, err := NewClient("")
	if err != nil {
		t.Fatal(err)
	}
	if c.baseURL != "http://localhost:8080" {
		t.Errorf("unexpected base url %q", c.baseURL)
	}
}

func TestEmptyAnswer(t *testing.T) {
	srv := completionServer(t, http.StatusOK, "", nil)
	defer srv.Close()

	c, _ := NewClient(srv.URL)
	if _, err := c.SimpleQuery(context.Background(), "m", "p", ""); !errors.Is(err, ErrNoText) {
		t.Errorf("expected ErrNoText, got %v", err)
	}
}

func TestMessageText(t *testing.T) {
	tests := []struct {
		name    string
		content any
		want    string
	}{
		{"string", "hello", "hello"},
		{"parts", []any{map[string]any{"type": "image_url"}, map[string]any{"type": "text", "text": "second"}}, "second"},
		{"junk parts", []any{"x", 3}, ""},
		{"nil", nil, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := messageText(tt.content); got != tt.want {
				t.Errorf("messageText(%v) = %q, expected %q", tt.content, got, tt.want)
			}
		})
	}
}
