package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/scanlock/internal/capture"
	"github.com/sells-group/scanlock/internal/model"
	"github.com/sells-group/scanlock/internal/monitoring"
	"github.com/sells-group/scanlock/internal/store"
)

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start HTTP server for scan requests",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		env, err := initEnv(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		port := servePort
		if port == 0 {
			port = cfg.Server.Port
		}

		if cfg.Monitoring.Enabled {
			checker := monitoring.NewChecker(
				monitoring.NewCollector(env.Store),
				monitoring.NewAlerter(cfg.Monitoring),
				cfg.Monitoring,
			)
			go checker.Run(ctx)
		}

		srv := &http.Server{
			Addr:    fmt.Sprintf(":%d", port),
			Handler: newRouter(ctx, env),
		}

		// Graceful shutdown
		go func() {
			<-ctx.Done()
			zap.L().Info("shutting down server")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			srv.Shutdown(shutdownCtx)
		}()

		zap.L().Info("starting server", zap.Int("port", port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return eris.Wrap(err, "server listen")
		}

		return nil
	},
}

func newRouter(ctx context.Context, env *env) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type"},
	}))

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Post("/v1/scan", handleScan(ctx, env))
	r.Post("/v1/burst", handleBurst(env))
	r.Get("/v1/decisions", handleListDecisions(env))
	r.Get("/v1/decisions/{id}", handleGetDecision(env))
	r.Get("/v1/metrics", handleMetrics(env))

	return r
}

type scanRequest struct {
	FramesDir string `json:"frames_dir"`
	TimeoutMS int    `json:"timeout_ms"`
}

// handleScan kicks off a scanning session asynchronously and returns
// immediately. The outcome lands in the store; poll /v1/decisions.
func handleScan(serverCtx context.Context, env *env) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req scanRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
		if req.FramesDir == "" {
			writeError(w, http.StatusBadRequest, "frames_dir is required")
			return
		}

		timeout := 10 * time.Second
		if req.TimeoutMS > 0 {
			timeout = time.Duration(req.TimeoutMS) * time.Millisecond
		}

		// Run the session on the server context so a shutdown cancels
		// it, not the request disconnecting.
		go func() {
			dec, sess, err := runScan(serverCtx, env, req.FramesDir, timeout)
			if err != nil {
				zap.L().Error("scan session failed",
					zap.String("frames", req.FramesDir),
					zap.Error(err))
				return
			}
			persistOutcome(serverCtx, env.Store, sess, dec)
			if dec != nil {
				zap.L().Info("scan session decided",
					zap.String("session", sess.ID),
					zap.String("text", dec.Text))
			}
		}()

		writeJSON(w, http.StatusAccepted, map[string]string{
			"status":     "accepted",
			"frames_dir": req.FramesDir,
		})
	}
}

type burstRequest struct {
	FramesDir string `json:"frames_dir"`
	Captures  int    `json:"captures"`
}

func handleBurst(env *env) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req burstRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
		if req.FramesDir == "" {
			writeError(w, http.StatusBadRequest, "frames_dir is required")
			return
		}

		source, err := capture.NewDirSource(req.FramesDir, false)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}

		dec, err := runBurst(r.Context(), env.Provider, source, req.Captures)
		if err != nil {
			writeError(w, http.StatusUnprocessableEntity, err.Error())
			return
		}

		sess := model.SessionRecord{
			ID:        dec.SessionID,
			StartedAt: dec.DecidedAt.Add(-dec.Elapsed),
			EndedAt:   dec.DecidedAt,
			Decided:   true,
		}
		persistOutcome(r.Context(), env.Store, sess, dec)

		writeJSON(w, http.StatusOK, dec)
	}
}

func handleListDecisions(env *env) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		filter := store.DecisionFilter{
			Source: model.DecisionSource(r.URL.Query().Get("source")),
		}
		if v := r.URL.Query().Get("limit"); v != "" {
			filter.Limit, _ = strconv.Atoi(v)
		}
		if v := r.URL.Query().Get("offset"); v != "" {
			filter.Offset, _ = strconv.Atoi(v)
		}

		decisions, err := env.Store.ListDecisions(r.Context(), filter)
		if err != nil {
			zap.L().Error("list decisions", zap.Error(err))
			writeError(w, http.StatusInternalServerError, "list decisions failed")
			return
		}
		if decisions == nil {
			decisions = []model.Decision{}
		}
		writeJSON(w, http.StatusOK, decisions)
	}
}

func handleGetDecision(env *env) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		dec, err := env.Store.GetDecision(r.Context(), chi.URLParam(r, "id"))
		if err != nil {
			zap.L().Error("get decision", zap.Error(err))
			writeError(w, http.StatusInternalServerError, "get decision failed")
			return
		}
		if dec == nil {
			writeError(w, http.StatusNotFound, "decision not found")
			return
		}
		writeJSON(w, http.StatusOK, dec)
	}
}

func handleMetrics(env *env) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		lookback := 24
		if v := r.URL.Query().Get("lookback_hours"); v != "" {
			if n, err := strconv.Atoi(v); err == nil && n > 0 {
				lookback = n
			}
		}

		snap, err := monitoring.NewCollector(env.Store).Collect(r.Context(), lookback)
		if err != nil {
			zap.L().Error("collect metrics", zap.Error(err))
			writeError(w, http.StatusInternalServerError, "collect metrics failed")
			return
		}
		writeJSON(w, http.StatusOK, snap)
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "server port (default from config)")
	rootCmd.AddCommand(serveCmd)
}
