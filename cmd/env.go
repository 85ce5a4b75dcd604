package main

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/sells-group/scanlock/internal/engine"
	"github.com/sells-group/scanlock/internal/model"
	"github.com/sells-group/scanlock/internal/ocr"
	"github.com/sells-group/scanlock/internal/store"
)

// env bundles the shared subsystems a command needs: the OCR provider
// and the decision store, both built from config.
type env struct {
	Provider ocr.Provider
	Store    store.Store
}

func initEnv(ctx context.Context) (*env, error) {
	provider, err := ocr.New(cfg.OCR)
	if err != nil {
		return nil, err
	}

	st, err := store.New(ctx, cfg.Store)
	if err != nil {
		return nil, err
	}
	if err := st.Migrate(ctx); err != nil {
		st.Close()
		return nil, err
	}

	return &env{Provider: provider, Store: st}, nil
}

func (e *env) Close() {
	if err := e.Store.Close(); err != nil {
		zap.L().Warn("store close", zap.Error(err))
	}
}

// newEngine builds an engine from config with the given decision sink.
func newEngine(onDecision func(model.Decision)) *engine.Engine {
	return engine.New(engine.Config{
		EvaluateInterval: time.Duration(cfg.Engine.EvaluateIntervalMS) * time.Millisecond,
		StopGrace:        time.Duration(cfg.Engine.StopGraceMS) * time.Millisecond,
		OnDecision:       onDecision,
		OnStatus: func(msg string) {
			zap.L().Debug("engine status", zap.String("msg", msg))
		},
	})
}

// persistOutcome records the session summary and, when present, its
// decision.
func persistOutcome(ctx context.Context, st store.Store, sess model.SessionRecord, dec *model.Decision) {
	if err := st.SaveSession(ctx, sess); err != nil {
		zap.L().Warn("save session", zap.Error(err))
	}
	if dec == nil {
		return
	}
	if err := st.SaveDecision(ctx, *dec); err != nil {
		zap.L().Warn("save decision", zap.Error(err))
	}
}
