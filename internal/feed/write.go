package feed

import (
	"encoding/json"
	"os"
	"path/filepath"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/menlo-oaks/crimefeed/internal/model"
	"github.com/menlo-oaks/crimefeed/pkg/citizenrims"
)

// WriteFiles writes the static feed files into dir, creating it if needed.
// Three files are produced: feed.json (everything), incidents.json and
// cases.json.
func WriteFiles(dir string, snap *Snapshot) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return eris.Wrapf(err, "feed: create output dir %s", dir)
	}

	files := map[string]any{
		"feed.json": snap,
		"incidents.json": struct {
			Meta      model.FeedMeta         `json:"meta"`
			Incidents []citizenrims.Incident `json:"incidents"`
		}{snap.Meta, snap.Incidents},
		"cases.json": struct {
			Meta  model.FeedMeta     `json:"meta"`
			Cases []citizenrims.Case `json:"cases"`
		}{snap.Meta, snap.Cases},
	}

	for name, data := range files {
		if err := writeJSON(filepath.Join(dir, name), data); err != nil {
			return err
		}
	}
	return nil
}

// writeJSON writes compact JSON atomically via a temp file rename.
func writeJSON(path string, data any) error {
	body, err := json.Marshal(data)
	if err != nil {
		return eris.Wrapf(err, "feed: marshal %s", path)
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), ".feed-*")
	if err != nil {
		return eris.Wrap(err, "feed: create temp file")
	}
	if _, err := tmp.Write(body); err != nil {
		tmp.Close() //nolint:errcheck
		os.Remove(tmp.Name())
		return eris.Wrapf(err, "feed: write %s", path)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return eris.Wrapf(err, "feed: close %s", path)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		os.Remove(tmp.Name())
		return eris.Wrapf(err, "feed: rename %s", path)
	}

	zap.L().Info("feed: wrote file", zap.String("path", path), zap.Int("bytes", len(body)))
	return nil
}
