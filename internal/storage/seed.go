// Package storage provides backend-independent helpers shared by the
// concrete store implementations.
package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"log/slog"

	"github.com/gateprep/coursebot/core/logger"
	"github.com/gateprep/coursebot/internal/catalog"
)

// SeedCatalog loads items from a JSON seed file into an empty store. A store
// that already holds items is left untouched, so redeploys never clobber
// operator edits. A missing seed file is not an error.
func SeedCatalog(ctx context.Context, store catalog.Store, path string) error {
	if path == "" {
		return nil
	}

	existing, err := store.List(ctx)
	if err != nil {
		return fmt.Errorf("seed: list catalog: %w", err)
	}
	if len(existing) > 0 {
		logger.Debug(ctx, "db.seed", "skip",
			slog.String("status", "ok"),
			slog.Int("count", len(existing)),
		)
		return nil
	}

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		logger.Debug(ctx, "db.seed", "skip",
			slog.String("status", "ok"),
			slog.String("path", path),
		)
		return nil
	}
	if err != nil {
		return fmt.Errorf("seed: read %s: %w", path, err)
	}

	var doc struct {
		Items []catalog.Item `json:"items"`
	}
	if err := json.Unmarshal(data, &doc); err != nil {
		return fmt.Errorf("seed: parse %s: %w", path, err)
	}

	for _, it := range doc.Items {
		if err := store.Put(ctx, it); err != nil {
			return fmt.Errorf("seed: put %q: %w", it.Key, err)
		}
	}

	logger.Info(ctx, "db.seed", "done",
		slog.String("status", "ok"),
		slog.String("path", path),
		slog.Int("count", len(doc.Items)),
	)
	return nil
}
