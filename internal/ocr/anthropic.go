package ocr

import (
	"context"
	"encoding/base64"
	"os"
	"path/filepath"
	"strings"

	sdk "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/rotisserie/eris"

	"github.com/sells-group/scanlock/internal/model"
	"github.com/sells-group/scanlock/internal/resilience"
)

const (
	defaultVisionModel      = "claude-haiku-4-5-20251001"
	defaultVisionMaxTokens  = 1024
	defaultVisionConfidence = 0.9
)

const visionPrompt = "Read all text visible in this image. " +
	"Return each distinct line of text on its own line, exactly as printed. " +
	"If no text is visible, return nothing."

// AnthropicVision recognizes text by sending the frame to a Claude vision
// model. The API reports no per-word confidence, so every element carries
// the configured default confidence instead.
type AnthropicVision struct {
	client     sdk.Client
	model      string
	maxTokens  int64
	confidence float64
	retry      resilience.RetryConfig
}

// NewAnthropicVision creates an AnthropicVision provider. Zero-valued
// arguments fall back to defaults.
func NewAnthropicVision(apiKey, visionModel string, maxTokens int, confidence float64) *AnthropicVision {
	if visionModel == "" {
		visionModel = defaultVisionModel
	}
	if maxTokens <= 0 {
		maxTokens = defaultVisionMaxTokens
	}
	if confidence <= 0 || confidence > 1 {
		confidence = defaultVisionConfidence
	}
	return &AnthropicVision{
		client:     sdk.NewClient(option.WithAPIKey(apiKey)),
		model:      visionModel,
		maxTokens:  int64(maxTokens),
		confidence: confidence,
		retry:      resilience.DefaultRetryConfig(),
	}
}

// Recognize sends the frame image to the vision model and converts each
// returned line into a block of word elements.
func (a *AnthropicVision) Recognize(ctx context.Context, framePath string) ([]model.Block, error) {
	data, err := os.ReadFile(framePath)
	if err != nil {
		return nil, eris.Wrapf(err, "ocr: read frame %s", framePath)
	}

	mediaType, err := frameMediaType(framePath)
	if err != nil {
		return nil, err
	}
	encoded := base64.StdEncoding.EncodeToString(data)

	msg, err := resilience.DoVal(ctx, a.retry, func(ctx context.Context) (*sdk.Message, error) {
		return a.client.Messages.New(ctx, sdk.MessageNewParams{
			Model:     sdk.Model(a.model),
			MaxTokens: a.maxTokens,
			Messages: []sdk.MessageParam{
				sdk.NewUserMessage(
					sdk.NewImageBlockBase64(mediaType, encoded),
					sdk.NewTextBlock(visionPrompt),
				),
			},
		})
	})
	if err != nil {
		return nil, eris.Wrap(err, "ocr: anthropic vision call")
	}

	var text strings.Builder
	for _, block := range msg.Content {
		if block.Type == "text" {
			text.WriteString(block.Text)
		}
	}

	return a.linesToBlocks(text.String()), nil
}

// linesToBlocks turns model output into one block per non-empty line,
// each word an element at the default confidence.
func (a *AnthropicVision) linesToBlocks(text string) []model.Block {
	var blocks []model.Block
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		block := model.Block{Text: line}
		for _, word := range strings.Fields(line) {
			c := a.confidence
			block.Elements = append(block.Elements, model.Element{Text: word, Confidence: &c})
		}
		blocks = append(blocks, block)
	}
	return blocks
}

func frameMediaType(framePath string) (string, error) {
	switch strings.ToLower(filepath.Ext(framePath)) {
	case ".png":
		return "image/png", nil
	case ".jpg", ".jpeg":
		return "image/jpeg", nil
	case ".gif":
		return "image/gif", nil
	case ".webp":
		return "image/webp", nil
	default:
		return "", eris.Errorf("ocr: unsupported frame format %q", filepath.Ext(framePath))
	}
}
