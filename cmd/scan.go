package main

import (
	"context"
	"encoding/json"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/scanlock/internal/capture"
	"github.com/sells-group/scanlock/internal/model"
)

var (
	scanFramesDir string
	scanTimeout   time.Duration
)

var scanCmd = &cobra.Command{
	Use:   "scan",
	Short: "Run one scanning session over a frame directory",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		env, err := initEnv(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		dec, sess, err := runScan(ctx, env, scanFramesDir, scanTimeout)
		if err != nil {
			return err
		}

		persistOutcome(ctx, env.Store, sess, dec)

		if dec == nil {
			zap.L().Warn("session ended without a decision",
				zap.String("session", sess.ID),
				zap.Int("observations", sess.Observations))
			return eris.New("no decision reached")
		}

		return json.NewEncoder(os.Stdout).Encode(dec)
	},
}

// runScan pumps frames from dir into a fresh engine session and blocks
// until a decision commits, frames run out, the timeout passes, or the
// context is cancelled.
func runScan(ctx context.Context, env *env, dir string, timeout time.Duration) (*model.Decision, model.SessionRecord, error) {
	source, err := capture.NewDirSource(dir, cfg.Capture.Loop)
	if err != nil {
		return nil, model.SessionRecord{}, err
	}

	decisionCh := make(chan model.Decision, 1)
	eng := newEngine(func(dec model.Decision) {
		decisionCh <- dec
	})

	sessionID := eng.Start()
	startedAt := time.Now().UTC()
	zap.L().Info("scanning session started",
		zap.String("session", sessionID),
		zap.String("frames", dir))

	pumpCtx, cancelPump := context.WithCancel(ctx)
	defer cancelPump()
	if timeout > 0 {
		var cancel context.CancelFunc
		pumpCtx, cancel = context.WithTimeout(pumpCtx, timeout)
		defer cancel()
	}

	pump := capture.NewPump(source, env.Provider, eng, cfg.Capture.FramesPerSecond)
	pumpDone := make(chan error, 1)
	go func() { pumpDone <- pump.Run(pumpCtx) }()

	var decision *model.Decision
	select {
	case dec := <-decisionCh:
		decision = &dec
		cancelPump()
		<-pumpDone
	case err := <-pumpDone:
		if err != nil {
			eng.Stop()
			return nil, model.SessionRecord{}, err
		}
		// Frames exhausted or deadline passed. One last chance for an
		// in-flight decision before tearing the session down.
		select {
		case dec := <-decisionCh:
			decision = &dec
		default:
		}
	}

	observations := 0
	if snap, ok := eng.Snapshot(); ok {
		observations = snap.Observations
	}
	eng.Stop()

	sess := model.SessionRecord{
		ID:           sessionID,
		StartedAt:    startedAt,
		EndedAt:      time.Now().UTC(),
		Observations: observations,
		Decided:      decision != nil,
	}
	return decision, sess, nil
}

func init() {
	scanCmd.Flags().StringVar(&scanFramesDir, "frames", "", "directory of frame images (required)")
	scanCmd.Flags().DurationVar(&scanTimeout, "timeout", 10*time.Second, "maximum session duration")
	scanCmd.MarkFlagRequired("frames")
	rootCmd.AddCommand(scanCmd)
}
