package main

import (
	"encoding/json"
	"fmt"
	"net/http"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the read-only market query API",
	Long:  "Serves market summaries, trend series, and rankings keyed by business key, so consumers are insulated from surrogate-key churn.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		r := chi.NewRouter()
		r.Use(middleware.RequestID)
		r.Use(middleware.Recoverer)
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins: []string{"*"},
			AllowedMethods: []string{http.MethodGet},
		}))

		r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
			writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
		})

		r.Get("/v1/markets/{key}", func(w http.ResponseWriter, req *http.Request) {
			key := chi.URLParam(req, "key")
			sum, err := st.MarketSummary(req.Context(), key)
			if err != nil {
				serverError(w, "market summary", err)
				return
			}
			if sum == nil {
				writeJSON(w, http.StatusNotFound, map[string]string{"error": "unknown market"})
				return
			}
			writeJSON(w, http.StatusOK, sum)
		})

		r.Get("/v1/markets/{key}/trend", func(w http.ResponseWriter, req *http.Request) {
			key := chi.URLParam(req, "key")
			months, _ := strconv.Atoi(req.URL.Query().Get("months"))
			series, err := st.TrendSeries(req.Context(), key, months)
			if err != nil {
				serverError(w, "trend series", err)
				return
			}
			if len(series) == 0 {
				writeJSON(w, http.StatusNotFound, map[string]string{"error": "unknown market"})
				return
			}
			writeJSON(w, http.StatusOK, series)
		})

		r.Get("/v1/rankings", func(w http.ResponseWriter, req *http.Request) {
			limit, _ := strconv.Atoi(req.URL.Query().Get("limit"))
			rankings, err := st.Rankings(req.Context(), limit)
			if err != nil {
				serverError(w, "rankings", err)
				return
			}
			writeJSON(w, http.StatusOK, rankings)
		})

		port := servePort
		if port == 0 {
			port = cfg.Server.Port
		}

		srv := &http.Server{
			Addr:    fmt.Sprintf(":%d", port),
			Handler: r,
		}

		go func() {
			<-ctx.Done()
			zap.L().Info("shutting down server")
			srv.Shutdown(ctx) //nolint:errcheck
		}()

		zap.L().Info("starting server", zap.Int("port", port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return eris.Wrap(err, "server listen")
		}
		return nil
	},
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v) //nolint:errcheck
}

func serverError(w http.ResponseWriter, op string, err error) {
	zap.L().Error("serve: "+op, zap.Error(err))
	writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal error"})
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "listen port (overrides config)")
	rootCmd.AddCommand(serveCmd)
}
