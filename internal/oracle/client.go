package oracle

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"
)

// Document is a file attached to a scoring request, sent inline.
type Document struct {
	MIMEType string
	Data     []byte
}

// Request is one prompt for the scoring backend, optionally accompanied by
// the documents the prompt refers to.
type Request struct {
	Prompt    string
	Documents []Document
}

// Invoker performs a single scoring call. Implementations do not rate
// limit or retry; that is the dispatcher's job.
type Invoker interface {
	Invoke(ctx context.Context, req Request) (string, error)
}

// Client talks to a generateContent-style scoring endpoint.
type Client struct {
	URL    string
	APIKey string
	Model  string
	HTTP   *http.Client
}

func NewClient(url, apiKey, model string, timeout time.Duration) *Client {
	return &Client{
		URL:    url,
		APIKey: apiKey,
		Model:  model,
		HTTP:   &http.Client{Timeout: timeout},
	}
}

type wirePart struct {
	Text       string          `json:"text,omitempty"`
	InlineData *wireInlineData `json:"inlineData,omitempty"`
}

type wireInlineData struct {
	MIMEType string `json:"mimeType"`
	Data     string `json:"data"`
}

type wireContent struct {
	Parts []wirePart `json:"parts"`
}

type wireGenerationConfig struct {
	Temperature      float64 `json:"temperature"`
	ResponseMimeType string  `json:"responseMimeType"`
}

type wireRequest struct {
	Contents         []wireContent        `json:"contents"`
	GenerationConfig wireGenerationConfig `json:"generationConfig"`
}

type wireCandidate struct {
	Content wireContent `json:"content"`
}

type wireResponse struct {
	Candidates []wireCandidate `json:"candidates"`
}

func (c *Client) Invoke(ctx context.Context, req Request) (string, error) {
	parts := []wirePart{{Text: req.Prompt}}
	for _, doc := range req.Documents {
		parts = append(parts, wirePart{InlineData: &wireInlineData{
			MIMEType: doc.MIMEType,
			Data:     base64.StdEncoding.EncodeToString(doc.Data),
		}})
	}

	body := wireRequest{
		Contents: []wireContent{{Parts: parts}},
		GenerationConfig: wireGenerationConfig{
			Temperature:      0.2,
			ResponseMimeType: "application/json",
		},
	}
	data, err := json.Marshal(body)
	if err != nil {
		return "", err
	}

	url := fmt.Sprintf("%s/models/%s:generateContent?key=%s", c.URL, c.Model, c.APIKey)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewBuffer(data))
	if err != nil {
		return "", err
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.HTTP.Do(httpReq)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(resp.Body)
		return "", &Error{
			StatusCode: resp.StatusCode,
			RetryAfter: parseRetryAfter(resp.Header.Get("Retry-After")),
			Body:       strings.ReplaceAll(string(respBody), c.APIKey, "REDACTED"),
		}
	}

	var res wireResponse
	if err := json.NewDecoder(resp.Body).Decode(&res); err != nil {
		return "", err
	}
	if len(res.Candidates) == 0 || len(res.Candidates[0].Content.Parts) == 0 {
		return "", fmt.Errorf("oracle returned no content: %w", ErrMalformedOutput)
	}
	return res.Candidates[0].Content.Parts[0].Text, nil
}

// parseRetryAfter handles the delay-seconds form of the header. The HTTP
// date form is rare enough from this backend to ignore.
func parseRetryAfter(v string) time.Duration {
	if v == "" {
		return 0
	}
	seconds, err := strconv.Atoi(strings.TrimSuffix(strings.TrimSpace(v), "s"))
	if err != nil || seconds < 0 {
		return 0
	}
	return time.Duration(seconds) * time.Second
}
