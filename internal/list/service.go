package list

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/erazemk/gimmie/internal/metrics"
	"github.com/erazemk/gimmie/internal/model"
	"github.com/erazemk/gimmie/internal/store"
)

// Policy selects how a bulk load treats the existing list.
type Policy string

const (
	PolicyAppend  Policy = "append"
	PolicyReplace Policy = "replace"
)

// ParsePolicy parses an import policy name. An empty name means append.
func ParsePolicy(s string) (Policy, error) {
	switch Policy(s) {
	case "", PolicyAppend:
		return PolicyAppend, nil
	case PolicyReplace:
		return PolicyReplace, nil
	}
	return "", invalid("policy", "must be append or replace")
}

// ReplaceMode decides what happens to existing items under PolicyReplace.
type ReplaceMode string

const (
	// ReplaceArchive moves prior items to the archive with reason deleted.
	ReplaceArchive ReplaceMode = "archive"
	// ReplaceDiscard drops prior items without a trace.
	ReplaceDiscard ReplaceMode = "discard"
)

// ParseReplaceMode parses a replace mode name.
func ParseReplaceMode(s string) (ReplaceMode, error) {
	switch ReplaceMode(s) {
	case ReplaceArchive, ReplaceDiscard:
		return ReplaceMode(s), nil
	}
	return "", fmt.Errorf("unknown replace mode %q (want archive or discard)", s)
}

// Snapshot is a consistent read of the whole list.
type Snapshot struct {
	Items   []model.Item
	Archive []model.ArchiveRecord
}

// LoadResult summarizes a bulk load.
type LoadResult struct {
	Added     int
	Archived  int
	Discarded int
}

// Service runs list operations against a store. Every mutation is a single
// store transaction that ends by checking the position invariant.
type Service struct {
	store   *store.Store
	metrics *metrics.Metrics
	now     func() time.Time
}

// NewService returns a service backed by s. m may be nil.
func NewService(s *store.Store, m *metrics.Metrics) *Service {
	return &Service{
		store:   s,
		metrics: m,
		now: func() time.Time {
			return time.Now().UTC().Truncate(time.Microsecond)
		},
	}
}

// Create validates f and appends a new item to the list.
func (s *Service) Create(ctx context.Context, f Fields) (*model.Item, error) {
	f, err := f.Normalize()
	if err != nil {
		s.record("create", err)
		return nil, err
	}

	now := s.now()
	item := &model.Item{
		Name:      f.Name,
		Cost:      f.Cost,
		Link:      f.Link,
		Type:      f.Type,
		AddedBy:   f.AddedBy,
		CreatedAt: now,
		UpdatedAt: now,
	}
	err = s.mutate(ctx, "create", func(tx *store.Tx) error {
		return appendItem(ctx, tx, item)
	})
	if err != nil {
		return nil, err
	}

	slog.Info("item created", "item", item.ID, "position", item.Position, "member", item.AddedBy)
	return item, nil
}

// Update applies a partial edit to an item's descriptive fields.
func (s *Service) Update(ctx context.Context, id int64, p Patch) (*model.Item, error) {
	var item *model.Item
	err := s.mutate(ctx, "update", func(tx *store.Tx) error {
		var err error
		item, err = tx.GetItem(ctx, id)
		if err != nil {
			return err
		}
		if item == nil {
			return fmt.Errorf("item %d: %w", id, ErrNotFound)
		}
		if err := p.apply(item); err != nil {
			return err
		}
		item.UpdatedAt = s.now()
		return tx.UpdateItem(ctx, item)
	})
	if err != nil {
		return nil, err
	}

	slog.Info("item updated", "item", item.ID)
	return item, nil
}

// Move swaps an item with its neighbour and returns the resulting list.
// Moving past either end leaves the list unchanged.
func (s *Service) Move(ctx context.Context, id int64, dir model.Direction) ([]model.Item, error) {
	if !dir.Valid() {
		err := invalid("direction", "must be up or down")
		s.record("move", err)
		return nil, err
	}

	var (
		items []model.Item
		moved bool
	)
	err := s.mutateList(ctx, "move", &items, func(tx *store.Tx) error {
		var err error
		moved, err = moveItem(ctx, tx, id, dir, s.now())
		return err
	})
	if err != nil {
		return nil, err
	}

	if moved {
		slog.Info("item moved", "item", id, "direction", dir)
	}
	return items, nil
}

// Archive removes an item from the list and keeps a copy in the archive.
func (s *Service) Archive(ctx context.Context, id int64, reason model.Reason) (*model.ArchiveRecord, error) {
	if !reason.Valid() {
		err := invalid("reason", "must be deleted or completed")
		s.record("archive", err)
		return nil, err
	}

	var rec *model.ArchiveRecord
	err := s.mutate(ctx, "archive", func(tx *store.Tx) error {
		var err error
		rec, err = archiveItem(ctx, tx, id, reason, s.now())
		return err
	})
	if err != nil {
		return nil, err
	}

	slog.Info("item archived", "item", id, "reason", reason, "archive", rec.ID)
	return rec, nil
}

// Restore moves an archive record back to the end of the list as a new item.
func (s *Service) Restore(ctx context.Context, archiveID int64) (*model.Item, error) {
	var item *model.Item
	err := s.mutate(ctx, "restore", func(tx *store.Tx) error {
		var err error
		item, err = restoreRecord(ctx, tx, archiveID, s.now())
		return err
	})
	if err != nil {
		return nil, err
	}

	slog.Info("item restored", "archive", archiveID, "item", item.ID, "position", item.Position)
	return item, nil
}

// Active returns the active list in position order.
func (s *Service) Active(ctx context.Context) ([]model.Item, error) {
	var items []model.Item
	err := s.store.View(ctx, func(tx *store.Tx) error {
		var err error
		items, err = verify(ctx, tx)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("listing items: %w", err)
	}
	return items, nil
}

// Archived returns archive records, newest first.
func (s *Service) Archived(ctx context.Context) ([]model.ArchiveRecord, error) {
	var records []model.ArchiveRecord
	err := s.store.View(ctx, func(tx *store.Tx) error {
		var err error
		records, err = tx.ListArchive(ctx)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("listing archive: %w", err)
	}
	return records, nil
}

// Snapshot reads the active list, and optionally the archive, in one
// consistent view.
func (s *Service) Snapshot(ctx context.Context, includeArchive bool) (*Snapshot, error) {
	snap := &Snapshot{}
	err := s.store.View(ctx, func(tx *store.Tx) error {
		var err error
		if snap.Items, err = verify(ctx, tx); err != nil {
			return err
		}
		if includeArchive {
			snap.Archive, err = tx.ListArchive(ctx)
		}
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("reading snapshot: %w", err)
	}
	return snap, nil
}

// BulkLoad adds entries to the list in the order given. Under PolicyReplace
// the existing items are first archived or discarded according to mode.
// Either every entry is loaded or nothing changes.
func (s *Service) BulkLoad(ctx context.Context, entries []Fields, policy Policy, mode ReplaceMode) (*LoadResult, error) {
	now := s.now()
	items := make([]*model.Item, len(entries))
	for i, f := range entries {
		f, err := f.Normalize()
		if err != nil {
			s.record("import", err)
			return nil, fmt.Errorf("entry %d: %w", i, err)
		}
		items[i] = &model.Item{
			Name:      f.Name,
			Cost:      f.Cost,
			Link:      f.Link,
			Type:      f.Type,
			AddedBy:   f.AddedBy,
			CreatedAt: now,
			UpdatedAt: now,
		}
	}
	if policy == PolicyReplace && mode != ReplaceArchive && mode != ReplaceDiscard {
		err := invalid("replace mode", "must be archive or discard")
		s.record("import", err)
		return nil, err
	}

	result := &LoadResult{}
	err := s.mutate(ctx, "import", func(tx *store.Tx) error {
		*result = LoadResult{}
		offset := 0
		if policy == PolicyReplace {
			existing, err := tx.ListItems(ctx)
			if err != nil {
				return err
			}
			for i := range existing {
				if mode == ReplaceArchive {
					if err := tx.InsertArchive(ctx, archiveRecordOf(&existing[i], model.ReasonDeleted, now)); err != nil {
						return err
					}
					result.Archived++
				} else {
					result.Discarded++
				}
				if err := tx.DeleteItem(ctx, existing[i].ID); err != nil {
					return err
				}
			}
		} else {
			n, err := tx.CountItems(ctx)
			if err != nil {
				return err
			}
			offset = n
		}

		sequence(items, offset)
		for _, item := range items {
			if err := tx.InsertItem(ctx, item); err != nil {
				return err
			}
			result.Added++
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	slog.Info("items imported", "policy", policy, "added", result.Added,
		"archived", result.Archived, "discarded", result.Discarded)
	return result, nil
}

// Check verifies the position invariant without changing anything.
func (s *Service) Check(ctx context.Context) (int, error) {
	items, err := s.Active(ctx)
	if err != nil {
		return 0, err
	}
	return len(items), nil
}

// mutate runs fn in one store transaction and verifies positions before
// committing.
func (s *Service) mutate(ctx context.Context, op string, fn func(tx *store.Tx) error) error {
	var items []model.Item
	return s.mutateList(ctx, op, &items, fn)
}

func (s *Service) mutateList(ctx context.Context, op string, items *[]model.Item, fn func(tx *store.Tx) error) error {
	err := s.store.Update(ctx, func(tx *store.Tx) error {
		if err := fn(tx); err != nil {
			return err
		}
		var err error
		*items, err = verify(ctx, tx)
		return err
	})
	s.record(op, err)
	if err != nil {
		if errors.Is(err, store.ErrPositionInvariant) {
			slog.Error("position invariant violated", "op", op, "error", err)
		}
		return fmt.Errorf("%s: %w", op, err)
	}
	s.metrics.ActiveItems(len(*items))
	return nil
}

func (s *Service) record(op string, err error) {
	s.metrics.Operation(op, Result(err))
}

// Result classifies an operation error for metrics and logs.
func Result(err error) string {
	var verr *ValidationError
	switch {
	case err == nil:
		return "ok"
	case errors.As(err, &verr):
		return "invalid"
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, store.ErrConflict):
		return "conflict"
	}
	return "error"
}
