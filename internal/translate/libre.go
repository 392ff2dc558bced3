package translate

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
)

// Libre calls a LibreTranslate-compatible endpoint
type Libre struct {
	url    string
	apiKey string
	client *http.Client
}

type libreRequest struct {
	Q      string `json:"q"`
	Source string `json:"source"`
	Target string `json:"target"`
	Format string `json:"format"`
	APIKey string `json:"api_key,omitempty"`
}

type libreResponse struct {
	TranslatedText string `json:"translatedText"`
}

// NewLibre creates a client for the endpoint at url. apiKey may be empty.
func NewLibre(url, apiKey string, client *http.Client) *Libre {
	if client == nil {
		client = http.DefaultClient
	}
	return &Libre{url: url, apiKey: apiKey, client: client}
}

func (l *Libre) Translate(ctx context.Context, text, source, target string) (string, error) {
	body, err := json.Marshal(libreRequest{
		Q:      text,
		Source: source,
		Target: target,
		Format: "text",
		APIKey: l.apiKey,
	})
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, l.url, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := l.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, resp.Body)
		return "", fmt.Errorf("%w: status %d", ErrUnavailable, resp.StatusCode)
	}

	var out libreResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	if out.TranslatedText == "" {
		return "", fmt.Errorf("%w: empty result", ErrUnavailable)
	}
	return out.TranslatedText, nil
}
