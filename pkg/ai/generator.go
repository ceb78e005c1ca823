// Package ai calls the upstream content-generation endpoint. The endpoint is
// an external collaborator; everything here is the client contract plus the
// fallback behaviour scheduled outreach relies on.
package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// Generator produces message text from a prompt.
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// HTTPGenerator implements Generator against a simple request/response
// JSON endpoint.
type HTTPGenerator struct {
	url        string
	httpClient *http.Client
}

func NewHTTPGenerator(url string, timeout time.Duration) *HTTPGenerator {
	return &HTTPGenerator{
		url: url,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

func (g *HTTPGenerator) Generate(ctx context.Context, prompt string) (string, error) {
	payload := map[string]interface{}{
		"prompt": prompt,
		"stream": false,
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.url, bytes.NewBuffer(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := g.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("generation request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("generation endpoint error (%d): %s", resp.StatusCode, string(respBody))
	}

	var result struct {
		Response string `json:"response"`
	}
	if err := json.Unmarshal(respBody, &result); err != nil {
		return "", fmt.Errorf("failed to parse response: %w", err)
	}
	return strings.TrimSpace(result.Response), nil
}

// GenerateOrFallback returns generated text, or the fallback string when the
// endpoint times out, errors, or returns an empty body. Scheduled outreach
// must always produce some notification, so this never returns an error.
func GenerateOrFallback(ctx context.Context, g Generator, prompt, fallback string, timeout time.Duration, log zerolog.Logger) string {
	if g == nil {
		return fallback
	}

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	text, err := g.Generate(ctx, prompt)
	if err != nil {
		log.Warn().Err(err).Msg("content generation failed, using fallback")
		return fallback
	}
	if text == "" {
		log.Warn().Msg("content generation returned empty text, using fallback")
		return fallback
	}
	return text
}
