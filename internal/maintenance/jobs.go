package maintenance

import (
	"context"
	"errors"

	"github.com/akolanti/GoIngest/internal/config"
	"github.com/akolanti/GoIngest/internal/domain/docModel"
	"github.com/akolanti/GoIngest/internal/domain/ragErrors"
	"github.com/akolanti/GoIngest/internal/rag/vectorDB"
)

// CollectionAdmin is the part of the orchestrator compaction needs.
type CollectionAdmin interface {
	Collections(ctx context.Context) ([]docModel.Collection, error)
	CollectionStats(ctx context.Context, id string) (vectorDB.Stats, error)
	Compact(ctx context.Context, id string) (int, error)
}

// StoreWalker visits every connected vector store.
type StoreWalker interface {
	Each(fn func(id string, s vectorDB.Store))
}

// CompactJob rebuilds collections whose share of deleted vectors is above Ratio.
type CompactJob struct {
	Admin CollectionAdmin
	Ratio float64
}

func (j *CompactJob) Name() string { return "compact" }

func (j *CompactJob) Run(ctx context.Context) error {
	ratio := j.Ratio
	if ratio <= 0 {
		ratio = config.CompactTombstoneRatio
	}
	colls, err := j.Admin.Collections(ctx)
	if err != nil {
		return err
	}

	var errs []error
	for _, coll := range colls {
		if !coll.IsActive {
			continue
		}
		stats, err := j.Admin.CollectionStats(ctx, coll.Id)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		total := stats.Count + stats.Tombstones
		if stats.Tombstones == 0 || float64(stats.Tombstones)/float64(total) <= ratio {
			continue
		}
		removed, err := j.Admin.Compact(ctx, coll.Id)
		if ragErrors.HasCode(err, ragErrors.NotImplemented) {
			continue
		}
		if err != nil {
			errs = append(errs, err)
			continue
		}
		logger.Info("Collection compacted", "collection", coll.Id, "removed", removed)
	}
	return errors.Join(errs...)
}

// PersistJob flushes stores that keep their index in memory.
type PersistJob struct {
	Stores StoreWalker
}

func (j *PersistJob) Name() string { return "persist" }

func (j *PersistJob) Run(ctx context.Context) error {
	var errs []error
	j.Stores.Each(func(id string, s vectorDB.Store) {
		p, ok := s.(vectorDB.Persister)
		if !ok {
			return
		}
		if err := p.Persist(ctx); err != nil {
			logger.Warn("Could not persist vector store", "store", id, "error", err)
			errs = append(errs, err)
		}
	})
	return errors.Join(errs...)
}

// Start schedules both jobs from the settings; a nil scheduler means maintenance is disabled.
func Start(ctx context.Context, settings config.MaintenanceSettings, admin CollectionAdmin, stores StoreWalker) (*Scheduler, error) {
	if !settings.Enabled {
		logger.Info("Maintenance disabled")
		return nil, nil
	}
	s := NewScheduler()
	if err := s.AddJob(&CompactJob{Admin: admin, Ratio: settings.TombstoneRatio}, settings.CompactSchedule); err != nil {
		return nil, err
	}
	if err := s.AddJob(&PersistJob{Stores: stores}, settings.PersistSchedule); err != nil {
		return nil, err
	}
	s.Start(ctx)
	return s, nil
}
