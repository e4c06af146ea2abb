package main

import (
	"context"
	"net/http"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/menlo-oaks/crimefeed/internal/alert"
	"github.com/menlo-oaks/crimefeed/internal/classify"
	"github.com/menlo-oaks/crimefeed/internal/config"
	"github.com/menlo-oaks/crimefeed/internal/dedup"
	"github.com/menlo-oaks/crimefeed/internal/feed"
	"github.com/menlo-oaks/crimefeed/internal/geofence"
	"github.com/menlo-oaks/crimefeed/internal/notify"
	"github.com/menlo-oaks/crimefeed/pkg/arcgis"
	"github.com/menlo-oaks/crimefeed/pkg/citizenrims"
)

// alertEnv bundles everything the alerting commands need.
type alertEnv struct {
	area     *geofence.ReferenceArea
	store    dedup.Store
	pipeline *alert.Pipeline
}

func (e *alertEnv) Close() {
	if err := e.store.Close(); err != nil {
		zap.L().Warn("close dedup store", zap.Error(err))
	}
}

// initAlerting builds the classification pipeline and opens the dedup store.
func initAlerting(ctx context.Context) (*alertEnv, error) {
	area, err := buildArea(cfg)
	if err != nil {
		return nil, err
	}

	classifier, err := buildClassifier(cfg)
	if err != nil {
		return nil, err
	}

	store, err := openDedupStore(ctx, cfg)
	if err != nil {
		return nil, err
	}

	policy := alert.RadiusPolicy{
		PropertyCrimeM:      cfg.Radii.PropertyCrimeM,
		SuspiciousActivityM: cfg.Radii.SuspiciousActivityM,
	}

	opts := []alert.Option{}
	if hist, ok := store.(dedup.History); ok {
		opts = append(opts, alert.WithHistory(hist))
	}

	return &alertEnv{
		area:     area,
		store:    store,
		pipeline: alert.NewPipeline(classifier, policy, buildNotifier(cfg), opts...),
	}, nil
}

// buildArea resolves the reference area: shapefile boundary, inline polygon
// vertices, or plain center point, in that order of preference.
func buildArea(cfg *config.Config) (*geofence.ReferenceArea, error) {
	switch {
	case cfg.Area.Shapefile != "":
		area, err := geofence.LoadShapefileArea(cfg.Area.Name, cfg.Area.Shapefile)
		if err != nil {
			return nil, eris.Wrap(err, "load boundary shapefile")
		}
		return area, nil
	case len(cfg.Area.Vertices) > 0:
		area, err := geofence.NewPolygonArea(cfg.Area.Name, cfg.Area.Vertices)
		if err != nil {
			return nil, eris.Wrap(err, "build boundary polygon")
		}
		return area, nil
	default:
		return geofence.NewPointArea(cfg.Area.Name, cfg.Area.Lat, cfg.Area.Lng), nil
	}
}

func buildClassifier(cfg *config.Config) (*classify.Classifier, error) {
	if cfg.Classify.RulesFile == "" {
		return classify.Default(), nil
	}
	rules, err := classify.LoadRules(cfg.Classify.RulesFile)
	if err != nil {
		return nil, eris.Wrap(err, "load classification rules")
	}
	return classify.New(rules), nil
}

// openDedupStore opens, migrates and loads the configured backend.
func openDedupStore(ctx context.Context, cfg *config.Config) (dedup.Store, error) {
	switch cfg.Dedup.Driver {
	case "file":
		s := dedup.NewFile(cfg.Dedup.Path)
		if err := s.Load(ctx); err != nil {
			return nil, err
		}
		return s, nil
	case "sqlite":
		s, err := dedup.NewSQLite(cfg.Dedup.Path)
		if err != nil {
			return nil, err
		}
		if err := s.Migrate(ctx); err != nil {
			return nil, err
		}
		if err := s.Load(ctx); err != nil {
			return nil, err
		}
		return s, nil
	case "postgres":
		s, err := dedup.NewPostgres(ctx, cfg.Dedup.DatabaseURL)
		if err != nil {
			return nil, err
		}
		if err := s.Migrate(ctx); err != nil {
			return nil, err
		}
		if err := s.Load(ctx); err != nil {
			return nil, err
		}
		return s, nil
	default:
		return nil, eris.Errorf("unknown dedup driver %q", cfg.Dedup.Driver)
	}
}

func buildNotifier(cfg *config.Config) alert.Notifier {
	switch cfg.Notify.Driver {
	case "webhook":
		return notify.NewWebhook(cfg.Notify.Webhook.URL, cfg.Area.Name)
	case "smtp":
		return notify.NewSMTP(notify.SMTPConfig{
			Host:       cfg.Notify.SMTP.Host,
			Port:       cfg.Notify.SMTP.Port,
			Username:   cfg.Notify.SMTP.Username,
			Password:   cfg.Notify.SMTP.Password,
			Recipients: cfg.Notify.SMTP.Recipients,
			MapURL:     cfg.Notify.SMTP.MapURL,
		}, cfg.Area.Name)
	default:
		return notify.NewLog(cfg.Area.Name)
	}
}

// buildFetcher wires the upstream clients from config.
func buildFetcher(cfg *config.Config) *feed.Fetcher {
	hc := &http.Client{Timeout: time.Duration(cfg.Fetch.TimeoutSecs) * time.Second}

	rimsOpts := []citizenrims.Option{
		citizenrims.WithHTTPClient(hc),
		citizenrims.WithLookback(cfg.Fetch.LookbackDays),
		citizenrims.WithSearchRadius(cfg.Fetch.SearchRadiusM),
		citizenrims.WithRateLimit(cfg.Fetch.RatePerSecond),
	}
	if cfg.CitizenRIMS.BaseURL != "" {
		rimsOpts = append(rimsOpts, citizenrims.WithBaseURL(cfg.CitizenRIMS.BaseURL))
	}
	rims := citizenrims.NewClient(rimsOpts...)

	var gis arcgis.Client
	if cfg.ArcGIS.Enabled {
		gis = arcgis.NewClient(
			arcgis.WithHTTPClient(hc),
			arcgis.WithBaseURL(cfg.ArcGIS.BaseURL),
			arcgis.WithPageSize(cfg.ArcGIS.PageSize),
			arcgis.WithRateLimit(cfg.Fetch.RatePerSecond),
		)
	}

	return feed.NewFetcher(rims, gis, cfg)
}
