package ocr

import (
	"bufio"
	"bytes"
	"context"
	"io"
	"os/exec"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/sells-group/scanlock/internal/model"
)

// Tesseract recognizes text using the tesseract CLI in TSV mode, which
// reports a per-word confidence alongside each recognized word.
type Tesseract struct {
	binPath  string
	language string
}

// NewTesseract creates a Tesseract provider. Empty arguments fall back to
// "tesseract" on PATH and English.
func NewTesseract(binPath, language string) *Tesseract {
	if binPath == "" {
		binPath = "tesseract"
	}
	if language == "" {
		language = "eng"
	}
	return &Tesseract{binPath: binPath, language: language}
}

// Recognize runs tesseract on the frame and parses its TSV output into
// line-level blocks of word elements.
func (t *Tesseract) Recognize(ctx context.Context, framePath string) ([]model.Block, error) {
	cmd := exec.CommandContext(ctx, t.binPath, framePath, "stdout", "-l", t.language, "tsv")

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return nil, eris.Wrapf(err, "ocr: tesseract failed for %s: %s", framePath, stderr.String())
	}

	return parseTSV(&stdout)
}

// wordLevel is the TSV hierarchy level carrying recognized words.
const wordLevel = "5"

// parseTSV converts tesseract TSV output into blocks, one per recognized
// line, preserving word order. Words reporting confidence -1 carry no
// confidence.
func parseTSV(r io.Reader) ([]model.Block, error) {
	scanner := bufio.NewScanner(r)

	var blocks []model.Block
	index := make(map[string]int)

	first := true
	for scanner.Scan() {
		line := scanner.Text()
		if first {
			// Header row.
			first = false
			continue
		}
		fields := strings.Split(line, "\t")
		if len(fields) < 12 || fields[0] != wordLevel {
			continue
		}
		word := strings.TrimSpace(fields[11])
		if word == "" {
			continue
		}

		el := model.Element{Text: word}
		if c, err := strconv.ParseFloat(fields[10], 64); err == nil && c >= 0 {
			scaled := c / 100.0
			el.Confidence = &scaled
		}

		// Group words into one block per (block, paragraph, line).
		key := fields[2] + ":" + fields[3] + ":" + fields[4]
		i, ok := index[key]
		if !ok {
			i = len(blocks)
			index[key] = i
			blocks = append(blocks, model.Block{})
		}
		if blocks[i].Text != "" {
			blocks[i].Text += " "
		}
		blocks[i].Text += word
		blocks[i].Elements = append(blocks[i].Elements, el)
	}
	if err := scanner.Err(); err != nil {
		return nil, eris.Wrap(err, "ocr: read tesseract tsv")
	}

	return blocks, nil
}
