package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/lead-api/internal/config"
	"github.com/sells-group/lead-api/internal/model"
	"github.com/sells-group/lead-api/internal/pipeline"
	"github.com/sells-group/lead-api/internal/store"
)

var servePort int

// submitter is the slice of the pipeline the HTTP layer needs; tests
// substitute a stub.
type submitter interface {
	Submit(ctx context.Context, req *model.SubmitRequest) (*model.SubmitResponse, error)
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the lead submission API server",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		env, err := initEnv(ctx, cfg)
		if err != nil {
			return err
		}
		defer env.Close()

		router := newRouter(env.Pipeline, env.Store, cfg)

		port := servePort
		if port == 0 {
			port = cfg.Server.Port
		}

		srv := &http.Server{
			Addr:    fmt.Sprintf(":%d", port),
			Handler: router,
		}

		// Graceful shutdown
		go func() {
			<-ctx.Done()
			zap.L().Info("shutting down server")
			srv.Shutdown(context.Background())
		}()

		zap.L().Info("starting server", zap.Int("port", port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return eris.Wrap(err, "server listen")
		}

		return nil
	},
}

func newRouter(p submitter, st store.Store, cfg *config.Config) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: cfg.Server.AllowedOrigins,
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type"},
	}))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Post("/submit-lead", handleSubmit(p, cfg))

	r.Get("/leads/{id}", func(w http.ResponseWriter, r *http.Request) {
		leadID := chi.URLParam(r, "id")
		ld, err := st.GetLead(r.Context(), leadID)
		if err != nil {
			zap.L().Error("get lead failed", zap.String("lead_id", leadID), zap.Error(err))
			writeJSON(w, http.StatusInternalServerError, model.ErrorResponse{Error: "failed to load lead"})
			return
		}
		if ld == nil {
			writeJSON(w, http.StatusNotFound, model.ErrorResponse{Error: "lead not found"})
			return
		}
		writeJSON(w, http.StatusOK, ld)
	})

	return r
}

func handleSubmit(p submitter, cfg *config.Config) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req model.SubmitRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeJSON(w, http.StatusBadRequest, model.ErrorResponse{Error: "invalid request body"})
			return
		}

		resp, err := p.Submit(r.Context(), &req)
		if err != nil {
			var vErr *pipeline.ValidationError
			if errors.As(err, &vErr) {
				writeJSON(w, http.StatusBadRequest, model.ErrorResponse{Error: vErr.Msg})
				return
			}

			out := model.ErrorResponse{Error: "failed to save lead"}
			var pErr *pipeline.PersistenceError
			if errors.As(err, &pErr) {
				out.Code = pErr.Code
				if !cfg.IsProduction() {
					out.Details = eris.ToString(pErr.Err, false)
				}
			}
			zap.L().Error("lead submission failed",
				zap.String("email", req.Email),
				zap.String("session_id", req.SessionID),
				zap.Error(err),
			)
			writeJSON(w, http.StatusInternalServerError, out)
			return
		}

		writeJSON(w, http.StatusOK, resp)
	}
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		zap.L().Warn("write response failed", zap.Error(err))
	}
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "server port (default from config)")
	rootCmd.AddCommand(serveCmd)
}
