// Package ocr abstracts the text recognition providers that feed the
// stabilization engine.
package ocr

import (
	"context"

	"github.com/rotisserie/eris"

	"github.com/sells-group/scanlock/internal/config"
	"github.com/sells-group/scanlock/internal/model"
)

// Provider recognizes text in a single captured frame. A failed call is
// treated by callers as "no observation this tick"; providers should not
// retry beyond their own short transient-error policy.
type Provider interface {
	Recognize(ctx context.Context, framePath string) ([]model.Block, error)
}

// New creates a Provider based on config.
func New(cfg config.OCRConfig) (Provider, error) {
	switch cfg.Provider {
	case "tesseract", "":
		return NewTesseract(cfg.TesseractPath, cfg.Language), nil
	case "anthropic":
		if cfg.AnthropicKey == "" {
			return nil, eris.New("ocr: anthropic provider requires anthropic_api_key")
		}
		return NewAnthropicVision(cfg.AnthropicKey, cfg.Model, cfg.MaxTokens, cfg.VisionDefault), nil
	case "replay":
		if cfg.ReplayScript == "" {
			return nil, eris.New("ocr: replay provider requires replay_script")
		}
		return NewReplay(cfg.ReplayScript)
	default:
		return nil, eris.Errorf("ocr: unknown provider %q", cfg.Provider)
	}
}
