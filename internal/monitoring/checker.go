package monitoring

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/sells-group/scanlock/internal/config"
)

// Checker periodically samples scanning health and raises alerts when
// sessions stop converging.
type Checker struct {
	collector *Collector
	alerter   *Alerter

	interval time.Duration
	lookback int
}

// NewChecker creates a background health checker.
func NewChecker(collector *Collector, alerter *Alerter, cfg config.MonitoringConfig) *Checker {
	interval := time.Duration(cfg.CheckIntervalSecs) * time.Second
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	return &Checker{
		collector: collector,
		alerter:   alerter,
		interval:  interval,
		lookback:  cfg.LookbackWindowHours,
	}
}

// Run sweeps on a fixed cadence. It blocks until ctx is cancelled.
func (c *Checker) Run(ctx context.Context) {
	log := zap.L().With(zap.String("component", "monitoring"))
	log.Info("scanning health checks running",
		zap.Duration("interval", c.interval),
		zap.Int("lookback_hours", c.lookback),
	)

	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Info("scanning health checks stopped")
			return
		case <-ticker.C:
			c.sweep(ctx, log)
		}
	}
}

// sweep collects one snapshot, logs the convergence picture, and pushes
// any threshold breaches through the alerter.
func (c *Checker) sweep(ctx context.Context, log *zap.Logger) {
	snap, err := c.collector.Collect(ctx, c.lookback)
	if err != nil {
		log.Error("health sweep: collect failed", zap.Error(err))
		return
	}

	log.Debug("health sweep",
		zap.Int("sessions", snap.SessionsTotal),
		zap.Int("decisions", snap.DecisionsTotal),
		zap.Float64("undecided_rate", snap.UndecidedRate),
		zap.Float64("emergency_rate", snap.EmergencyRate),
		zap.Float64("avg_score", snap.AvgScore),
		zap.Int64("avg_elapsed_ms", snap.AvgElapsedMS),
	)

	alerts := c.alerter.Evaluate(snap)
	if len(alerts) == 0 {
		return
	}

	sent := c.alerter.SendAlerts(ctx, alerts)
	log.Warn("scanning health degraded",
		zap.Int("alerts_triggered", len(alerts)),
		zap.Int("alerts_sent", sent),
	)
}
