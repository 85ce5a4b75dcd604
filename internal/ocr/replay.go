package ocr

import (
	"context"
	"os"
	"path/filepath"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"

	"github.com/sells-group/scanlock/internal/model"
)

// Replay serves pre-recorded observations from a YAML script instead of
// running real recognition. Used for offline tuning and tests.
type Replay struct {
	frames map[string][]replayBlock
}

type replayScript struct {
	Frames map[string][]replayBlock `yaml:"frames"`
}

type replayBlock struct {
	Text        string    `yaml:"text"`
	Confidences []float64 `yaml:"confidences"`
}

// NewReplay loads a replay script.
func NewReplay(scriptPath string) (*Replay, error) {
	data, err := os.ReadFile(scriptPath)
	if err != nil {
		return nil, eris.Wrapf(err, "ocr: read replay script %s", scriptPath)
	}

	var script replayScript
	if err := yaml.Unmarshal(data, &script); err != nil {
		return nil, eris.Wrapf(err, "ocr: parse replay script %s", scriptPath)
	}

	return &Replay{frames: script.Frames}, nil
}

// Recognize looks up the frame by base name. Unknown frames produce no
// observation rather than an error, mirroring a real provider seeing an
// unreadable frame.
func (r *Replay) Recognize(_ context.Context, framePath string) ([]model.Block, error) {
	scripted, ok := r.frames[filepath.Base(framePath)]
	if !ok {
		return nil, nil
	}

	blocks := make([]model.Block, 0, len(scripted))
	for _, sb := range scripted {
		block := model.Block{Text: sb.Text}
		for i := range sb.Confidences {
			c := sb.Confidences[i]
			block.Elements = append(block.Elements, model.Element{Confidence: &c})
		}
		blocks = append(blocks, block)
	}
	return blocks, nil
}
