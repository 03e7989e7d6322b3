package jobs

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/DukeRupert/rateflow/internal/clock"
	"github.com/DukeRupert/rateflow/internal/storage"
	"github.com/DukeRupert/rateflow/internal/worker"
)

// pruneBatchSize bounds the key list sent to the database in one query.
const pruneBatchSize = 500

// DefaultPruneAge is how old an object must be before it can be pruned.
// Younger objects may belong to an upload whose row is not committed yet.
const DefaultPruneAge = 24 * time.Hour

// KeyFilter returns the keys that no row references.
type KeyFilter interface {
	FilterUnreferencedFileKeys(ctx context.Context, keys []string) ([]string, error)
}

// PruneFilesHandler deletes stored objects no invoice or business points at.
type PruneFilesHandler struct {
	queries KeyFilter
	storage storage.Storage
	clock   clock.Clock
	logger  *slog.Logger
}

// NewPruneFilesHandler creates a new handler for object cleanup jobs.
func NewPruneFilesHandler(queries KeyFilter, objects storage.Storage, clk clock.Clock, logger *slog.Logger) *PruneFilesHandler {
	return &PruneFilesHandler{
		queries: queries,
		storage: objects,
		clock:   clk,
		logger:  logger,
	}
}

// Type returns the job type identifier.
func (h *PruneFilesHandler) Type() string {
	return worker.JobTypePruneFiles
}

// Handle executes the cleanup job.
func (h *PruneFilesHandler) Handle(ctx context.Context, payload []byte) error {
	p, err := worker.DecodePayload[worker.PruneFilesPayload](payload)
	if err != nil {
		return err
	}
	if p.Prefix != storage.InvoicePrefix && p.Prefix != storage.LogoPrefix {
		return worker.Permanentf("refusing to prune prefix %q", p.Prefix)
	}
	olderThan := p.OlderThan
	if olderThan <= 0 {
		olderThan = DefaultPruneAge
	}

	objects, err := h.storage.List(ctx, p.Prefix)
	if err != nil {
		return fmt.Errorf("list %s: %w", p.Prefix, err)
	}

	cutoff := h.clock.Now().Add(-olderThan)
	var candidates []string
	for _, obj := range objects {
		if obj.LastModified.Before(cutoff) && strings.HasPrefix(obj.Key, p.Prefix) {
			candidates = append(candidates, obj.Key)
		}
	}

	var deleted, failed int
	for start := 0; start < len(candidates); start += pruneBatchSize {
		end := min(start+pruneBatchSize, len(candidates))

		orphans, err := h.queries.FilterUnreferencedFileKeys(ctx, candidates[start:end])
		if err != nil {
			return fmt.Errorf("filter unreferenced keys: %w", err)
		}
		for _, key := range orphans {
			if err := h.storage.Delete(ctx, key); err != nil {
				h.logger.Warn("Failed to prune object", "key", key, "error", err)
				failed++
				continue
			}
			deleted++
		}
	}

	h.logger.Info("Pruned orphaned objects",
		"prefix", p.Prefix,
		"scanned", len(objects),
		"candidates", len(candidates),
		"deleted", deleted,
		"failed", failed,
	)
	return nil
}
