// Package translate wraps the machine-translation collaborator applied to
// outgoing messages. Every failure mode (transport error, non-2xx response,
// empty result, timeout) is reported as ErrUnavailable so callers can degrade
// without inspecting provider details.
package translate

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/mmuslimabdulj/goat-dm/internal/config"
)

// ErrUnavailable means no translation could be produced
var ErrUnavailable = errors.New("translation unavailable")

// Translator turns text into the target language. source may be "auto".
type Translator interface {
	Translate(ctx context.Context, text, source, target string) (string, error)
}

// Nop never translates
type Nop struct{}

func (Nop) Translate(context.Context, string, string, string) (string, error) {
	return "", ErrUnavailable
}

// New builds the translator selected by cfg.TranslateProvider. The returned
// close func releases provider resources and is never nil.
func New(ctx context.Context, cfg *config.Config, log *slog.Logger) (Translator, func() error, error) {
	noClose := func() error { return nil }

	switch cfg.TranslateProvider {
	case config.TranslateNone, "":
		return Nop{}, noClose, nil
	case config.TranslateLibre:
		return NewLibre(cfg.TranslateURL, cfg.TranslateAPIKey, &http.Client{Timeout: cfg.TranslateTimeout}), noClose, nil
	case config.TranslateGemini:
		if cfg.GeminiAPIKey == "" {
			return nil, nil, fmt.Errorf("GEMINI_API_KEY is required for the gemini translator")
		}
		g, err := NewGemini(ctx, cfg.GeminiAPIKey, cfg.GeminiModel, log)
		if err != nil {
			return nil, nil, err
		}
		return g, g.Close, nil
	default:
		return nil, nil, fmt.Errorf("unknown translate provider %q", cfg.TranslateProvider)
	}
}
