package list

import (
	"context"
	"fmt"
	"time"

	"github.com/erazemk/gimmie/internal/model"
	"github.com/erazemk/gimmie/internal/store"
)

func archiveRecordOf(item *model.Item, reason model.Reason, at time.Time) *model.ArchiveRecord {
	return &model.ArchiveRecord{
		OriginalID: item.ID,
		Name:       item.Name,
		Cost:       item.Cost,
		Link:       item.Link,
		Type:       item.Type,
		AddedBy:    item.AddedBy,
		Reason:     reason,
		ArchivedAt: at,
	}
}

// archiveItem moves an active item into the archive and closes its gap.
func archiveItem(ctx context.Context, tx *store.Tx, id int64, reason model.Reason, at time.Time) (*model.ArchiveRecord, error) {
	item, err := tx.GetItem(ctx, id)
	if err != nil {
		return nil, err
	}
	if item == nil {
		return nil, fmt.Errorf("item %d: %w", id, ErrNotFound)
	}

	rec := archiveRecordOf(item, reason, at)
	if err := tx.InsertArchive(ctx, rec); err != nil {
		return nil, err
	}
	if err := removeItem(ctx, tx, item, at); err != nil {
		return nil, err
	}
	return rec, nil
}

// restoreRecord turns an archive record back into an item at the tail of
// the list. The item gets a new ID.
func restoreRecord(ctx context.Context, tx *store.Tx, archiveID int64, at time.Time) (*model.Item, error) {
	rec, err := tx.GetArchive(ctx, archiveID)
	if err != nil {
		return nil, err
	}
	if rec == nil {
		return nil, fmt.Errorf("archive record %d: %w", archiveID, ErrNotFound)
	}

	item := &model.Item{
		Name:      rec.Name,
		Cost:      rec.Cost,
		Link:      rec.Link,
		Type:      rec.Type,
		AddedBy:   rec.AddedBy,
		CreatedAt: at,
		UpdatedAt: at,
	}
	if err := appendItem(ctx, tx, item); err != nil {
		return nil, err
	}
	if err := tx.DeleteArchive(ctx, rec.ID); err != nil {
		return nil, err
	}
	return item, nil
}
