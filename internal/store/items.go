package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/erazemk/gimmie/internal/model"
)

const itemColumns = `id, name, cost, link, type, added_by, position, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanItem(row rowScanner) (*model.Item, error) {
	item := &model.Item{}
	var link sql.NullString
	if err := row.Scan(&item.ID, &item.Name, &item.Cost, &link, &item.Type, &item.AddedBy,
		&item.Position, &item.CreatedAt, &item.UpdatedAt); err != nil {
		return nil, err
	}
	item.Link = link.String
	return item, nil
}

// CountItems returns the number of active items.
func (t *Tx) CountItems(ctx context.Context) (int, error) {
	var n int
	if err := t.queryRow(ctx, `SELECT COUNT(*) FROM items`).Scan(&n); err != nil {
		return 0, storageErr("counting items", err)
	}
	return n, nil
}

// GetItem returns an item by ID, or nil if it does not exist.
func (t *Tx) GetItem(ctx context.Context, id int64) (*model.Item, error) {
	item, err := scanItem(t.queryRow(ctx, `SELECT `+itemColumns+` FROM items WHERE id = ?`, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, storageErr("getting item", err)
	}
	return item, nil
}

// ItemAt returns the item holding a position, or nil if none does.
func (t *Tx) ItemAt(ctx context.Context, position int) (*model.Item, error) {
	rows, err := t.query(ctx, `SELECT `+itemColumns+` FROM items WHERE position = ?`, position)
	if err != nil {
		return nil, storageErr("getting item at position", err)
	}
	items, err := collectItems(rows)
	if err != nil {
		return nil, err
	}
	switch len(items) {
	case 0:
		return nil, nil
	case 1:
		return &items[0], nil
	default:
		return nil, storageErr("getting item at position",
			fmt.Errorf("%w: %d items hold position %d", ErrPositionInvariant, len(items), position))
	}
}

// ListItems returns all active items ordered by position.
func (t *Tx) ListItems(ctx context.Context) ([]model.Item, error) {
	rows, err := t.query(ctx, `SELECT `+itemColumns+` FROM items ORDER BY position, id`)
	if err != nil {
		return nil, storageErr("listing items", err)
	}
	return collectItems(rows)
}

func collectItems(rows *sql.Rows) ([]model.Item, error) {
	defer rows.Close()

	var items []model.Item
	for rows.Next() {
		item, err := scanItem(rows)
		if err != nil {
			return nil, storageErr("scanning item", err)
		}
		items = append(items, *item)
	}
	if err := rows.Err(); err != nil {
		return nil, storageErr("listing items", err)
	}
	return items, nil
}

// InsertItem stores a new item and sets its ID. The caller assigns the
// position and timestamps.
func (t *Tx) InsertItem(ctx context.Context, item *model.Item) error {
	err := t.queryRow(ctx,
		`INSERT INTO items (name, cost, link, type, added_by, position, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?) RETURNING id`,
		item.Name, item.Cost, nullString(item.Link), item.Type, item.AddedBy,
		item.Position, item.CreatedAt, item.UpdatedAt,
	).Scan(&item.ID)
	if err != nil {
		return storageErr("creating item", err)
	}
	return nil
}

// UpdateItem writes an item's descriptive fields. Position is left alone.
func (t *Tx) UpdateItem(ctx context.Context, item *model.Item) error {
	result, err := t.exec(ctx,
		`UPDATE items SET name = ?, cost = ?, link = ?, type = ?, updated_at = ? WHERE id = ?`,
		item.Name, item.Cost, nullString(item.Link), item.Type, item.UpdatedAt, item.ID,
	)
	if err != nil {
		return storageErr("updating item", err)
	}
	return expectOne("updating item", result)
}

// SetPosition moves a single item to a new position.
func (t *Tx) SetPosition(ctx context.Context, id int64, position int, at time.Time) error {
	result, err := t.exec(ctx,
		`UPDATE items SET position = ?, updated_at = ? WHERE id = ?`,
		position, at, id,
	)
	if err != nil {
		return storageErr("setting item position", err)
	}
	return expectOne("setting item position", result)
}

// DeleteItem removes an item from the active list.
func (t *Tx) DeleteItem(ctx context.Context, id int64) error {
	result, err := t.exec(ctx, `DELETE FROM items WHERE id = ?`, id)
	if err != nil {
		return storageErr("deleting item", err)
	}
	return expectOne("deleting item", result)
}

// CheckPositions verifies that items, ordered by position, hold exactly
// positions 1..N.
func CheckPositions(items []model.Item) error {
	for i, item := range items {
		if item.Position != i+1 {
			return storageErr("checking positions",
				fmt.Errorf("%w: item %d holds position %d, expected %d", ErrPositionInvariant, item.ID, item.Position, i+1))
		}
	}
	return nil
}
