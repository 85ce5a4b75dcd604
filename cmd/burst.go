package main

import (
	"context"
	"encoding/json"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/scanlock/internal/capture"
	"github.com/sells-group/scanlock/internal/engine"
	"github.com/sells-group/scanlock/internal/model"
	"github.com/sells-group/scanlock/internal/ocr"
)

var (
	burstFramesDir string
	burstCaptures  int
)

var burstCmd = &cobra.Command{
	Use:   "burst",
	Short: "Recognize a handful of frames at once and majority-vote the text",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		env, err := initEnv(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		source, err := capture.NewDirSource(burstFramesDir, false)
		if err != nil {
			return err
		}

		dec, err := runBurst(ctx, env.Provider, source, burstCaptures)
		if err != nil {
			return err
		}

		sess := model.SessionRecord{
			ID:        dec.SessionID,
			StartedAt: dec.DecidedAt.Add(-dec.Elapsed),
			EndedAt:   dec.DecidedAt,
			Decided:   true,
		}
		persistOutcome(ctx, env.Store, sess, dec)

		return json.NewEncoder(os.Stdout).Encode(dec)
	},
}

// runBurst recognizes up to captures frames concurrently, keeping batch
// order stable so vote ties resolve the same way on every run.
func runBurst(ctx context.Context, provider ocr.Provider, source capture.Source, captures int) (*model.Decision, error) {
	if captures <= 0 {
		captures = engine.DefaultBurstCaptures
	}

	var frames []model.Frame
	for len(frames) < captures {
		frame, err := source.Next(ctx)
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		frames = append(frames, frame)
	}
	if len(frames) == 0 {
		return nil, eris.New("burst: no frames captured")
	}

	started := time.Now().UTC()
	batches := make([][]model.Block, len(frames))

	g, gctx := errgroup.WithContext(ctx)
	for i, frame := range frames {
		g.Go(func() error {
			blocks, err := provider.Recognize(gctx, frame.Path)
			if err != nil {
				return eris.Wrapf(err, "burst: recognize %s", frame.Path)
			}
			batches[i] = blocks
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	text, ok := engine.BurstVote(batches)
	if !ok {
		return nil, eris.New("burst: no agreement across captures")
	}

	decidedAt := time.Now().UTC()
	dec := &model.Decision{
		ID:        uuid.New().String(),
		SessionID: uuid.New().String(),
		Text:      text,
		Score:     1.0,
		Elapsed:   decidedAt.Sub(started),
		Source:    model.SourceBurst,
		DecidedAt: decidedAt,
	}
	zap.L().Info("burst decision",
		zap.String("text", text),
		zap.Int("captures", len(frames)))
	return dec, nil
}

func init() {
	burstCmd.Flags().StringVar(&burstFramesDir, "frames", "", "directory of frame images (required)")
	burstCmd.Flags().IntVar(&burstCaptures, "captures", engine.DefaultBurstCaptures, "number of frames to recognize")
	burstCmd.MarkFlagRequired("frames")
	rootCmd.AddCommand(burstCmd)
}
