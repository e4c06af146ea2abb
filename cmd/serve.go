package main

import (
	"encoding/json"
	"fmt"
	"net/http"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/menlo-oaks/crimefeed/internal/feed"
)

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the combined feed over HTTP with background refresh",
	Long: `Starts an HTTP server exposing the combined multi-agency feed.

  GET /           Combined feed (incidents + cases)
  GET /incidents  Incidents only
  GET /cases      Cases only
  GET /agencies   Configured agency info
  GET /healthz    Liveness probe

Add ?agency=menlopark,atherton to filter record endpoints by agency.`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		if err := cfg.Validate("serve"); err != nil {
			return err
		}

		store := feed.NewStore(buildFetcher(cfg))
		go store.Run(ctx, time.Duration(cfg.Fetch.RefreshMinutes)*time.Minute)

		port := servePort
		if port == 0 {
			port = cfg.Server.Port
		}

		srv := &http.Server{
			Addr:    fmt.Sprintf(":%d", port),
			Handler: newRouter(store),
		}

		// Graceful shutdown
		go func() {
			<-ctx.Done()
			zap.L().Info("shutting down server")
			srv.Shutdown(ctx)
		}()

		zap.L().Info("starting server", zap.Int("port", port),
			zap.Int("refresh_minutes", cfg.Fetch.RefreshMinutes))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return eris.Wrap(err, "server listen")
		}

		return nil
	},
}

func newRouter(store *feed.Store) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{http.MethodGet},
	}))

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeData(w, map[string]string{"status": "ok"})
	})

	r.Get("/", func(w http.ResponseWriter, r *http.Request) {
		writeData(w, filtered(store, r))
	})

	r.Get("/incidents", func(w http.ResponseWriter, r *http.Request) {
		snap := filtered(store, r)
		writeData(w, map[string]any{"meta": snap.Meta, "incidents": snap.Incidents})
	})

	r.Get("/cases", func(w http.ResponseWriter, r *http.Request) {
		snap := filtered(store, r)
		writeData(w, map[string]any{"meta": snap.Meta, "cases": snap.Cases})
	})

	r.Get("/agencies", func(w http.ResponseWriter, _ *http.Request) {
		type agencyInfo struct {
			Prefix string `json:"prefix"`
			Name   string `json:"name"`
		}
		agencies := make([]agencyInfo, 0, len(cfg.Agencies)+1)
		for _, a := range cfg.Agencies {
			agencies = append(agencies, agencyInfo{Prefix: a.Prefix, Name: a.Name})
		}
		if cfg.ArcGIS.Enabled {
			agencies = append(agencies, agencyInfo{Prefix: "paloalto", Name: "Palo Alto Police Department"})
		}
		writeData(w, map[string]any{
			"agencies": agencies,
			"note":     "Palo Alto PD (papd) exists on CitizenRIMS but has all data feeds disabled; its records come from the city's ArcGIS portal.",
		})
	})

	return r
}

// filtered applies the optional ?agency=a,b query filter.
func filtered(store *feed.Store, r *http.Request) *feed.Snapshot {
	snap := store.Current()
	if raw := r.URL.Query().Get("agency"); raw != "" {
		return snap.FilterAgencies(strings.Split(raw, ","))
	}
	return snap
}

func writeData(w http.ResponseWriter, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		zap.L().Warn("serve: write response", zap.Error(err))
	}
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "server port (default from config)")
	rootCmd.AddCommand(serveCmd)
}
