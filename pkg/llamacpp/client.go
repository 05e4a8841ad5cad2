package llamacpp

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/menta2k/roi-cropper/pkg/client"
	"github.com/menta2k/roi-cropper/pkg/types"
)

const (
	defaultURL     = "http://localhost:8080"
	completionPath = "/v1/chat/completions"
	requestTimeout = 300 * time.Second
)

// ErrNoText is returned when the server answered without any text content
var ErrNoText = errors.New("llama.cpp returned no text")

// Client talks to a llama.cpp server through its OpenAI-compatible API
type Client struct {
	baseURL    string
	httpClient *http.Client
}

var _ client.VisionClient = (*Client)(nil)

// sampling holds the generation knobs sent with each completion
type sampling struct {
	temperature float64
	maxTokens   int
	topP        float64
}

var (
	chatSampling    = sampling{temperature: 0.7, maxTokens: 2048, topP: 0.9}
	regionsSampling = sampling{temperature: 0.1, maxTokens: 4096, topP: 0.8}
)

type message struct {
	Role    string `json:"role"`
	Content any    `json:"content"` // string or []contentPart
}

type contentPart struct {
	Type     string    `json:"type"`
	Text     string    `json:"text,omitempty"`
	ImageURL *imageURL `json:"image_url,omitempty"`
}

type imageURL struct {
	URL string `json:"url"`
}

type completionRequest struct {
	Model       string    `json:"model"`
	Messages    []message `json:"messages"`
	Temperature float64   `json:"temperature,omitempty"`
	MaxTokens   int       `json:"max_tokens,omitempty"`
	TopP        float64   `json:"top_p,omitempty"`
	Stream      bool      `json:"stream"`
}

type completionResponse struct {
	Choices []struct {
		Message message `json:"message"`
	} `json:"choices"`
}

// NewClient returns a client for serverURL, defaulting to a local server on port 8080
func NewClient(serverURL string) (*Client, error) {
	if serverURL == "" {
		serverURL = defaultURL
	}
	return &Client{
		baseURL:    strings.TrimSuffix(serverURL, "/"),
		httpClient: &http.Client{Timeout: 5 * time.Minute},
	}, nil
}

// SimpleQuery sends a free-form prompt and returns the model's text
func (c *Client) SimpleQuery(ctx context.Context, model, prompt, imgB64 string) (string, error) {
	return c.complete(ctx, model, prompt, imgB64, chatSampling)
}

// LocateRegions asks the model where the photos in the image are
func (c *Client) LocateRegions(ctx context.Context, model, prompt, imgB64 string) (*types.RegionResult, error) {
	text, err := c.complete(ctx, model, prompt, imgB64, regionsSampling)
	if err != nil {
		return nil, err
	}
	return client.ParseRegionResult(text), nil
}

func (c *Client) complete(ctx context.Context, model, prompt, imgB64 string, s sampling) (string, error) {
	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, requestTimeout)
		defer cancel()
	}

	parts := []contentPart{{Type: "text", Text: prompt}}
	if imgB64 != "" {
		parts = append(parts, contentPart{
			Type:     "image_url",
			ImageURL: &imageURL{URL: "data:image/jpeg;base64," + imgB64},
		})
	}

	body, err := c.post(ctx, completionPath, completionRequest{
		Model:       model,
		Messages:    []message{{Role: "user", Content: parts}},
		Temperature: s.temperature,
		MaxTokens:   s.maxTokens,
		TopP:        s.topP,
	})
	if err != nil {
		return "", fmt.Errorf("llama.cpp completion: %w", err)
	}

	var resp completionResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return "", fmt.Errorf("decode completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("%w: no choices", ErrNoText)
	}
	text := messageText(resp.Choices[0].Message.Content)
	if text == "" {
		return "", ErrNoText
	}
	return text, nil
}

// messageText returns the first text found in a string or content-part array
func messageText(content any) string {
	switch v := content.(type) {
	case string:
		return v
	case []any:
		for _, item := range v {
			part, ok := item.(map[string]any)
			if !ok {
				continue
			}
			if text, _ := part["text"].(string); text != "" {
				return text
			}
		}
	}
	return ""
}

func (c *Client) post(ctx context.Context, path string, payload any) ([]byte, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("server returned status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	return body, nil
}
