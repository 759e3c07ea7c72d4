package list

import (
	"context"
	"fmt"
	"time"

	"github.com/erazemk/gimmie/internal/model"
	"github.com/erazemk/gimmie/internal/store"
)

// positionWrite sets one item's position.
type positionWrite struct {
	ID       int64
	Position int
}

// swapPlan exchanges the positions of two items.
func swapPlan(a, b model.Item) []positionWrite {
	return []positionWrite{
		{ID: a.ID, Position: b.Position},
		{ID: b.ID, Position: a.Position},
	}
}

// closeGapPlan shifts every item after a removed position up by one.
func closeGapPlan(items []model.Item, removed int) []positionWrite {
	var plan []positionWrite
	for _, item := range items {
		if item.Position > removed {
			plan = append(plan, positionWrite{ID: item.ID, Position: item.Position - 1})
		}
	}
	return plan
}

// sequence assigns consecutive positions starting after offset, in the
// order given. Positions already set on the items are ignored.
func sequence(items []*model.Item, offset int) {
	for i, item := range items {
		item.Position = offset + i + 1
	}
}

func applyPlan(ctx context.Context, tx *store.Tx, plan []positionWrite, at time.Time) error {
	for _, w := range plan {
		if err := tx.SetPosition(ctx, w.ID, w.Position, at); err != nil {
			return err
		}
	}
	return nil
}

// appendItem places item at the tail of the list and stores it.
func appendItem(ctx context.Context, tx *store.Tx, item *model.Item) error {
	n, err := tx.CountItems(ctx)
	if err != nil {
		return err
	}
	item.Position = n + 1
	return tx.InsertItem(ctx, item)
}

// moveItem swaps an item with its neighbour in the given direction. Moving
// the first item up or the last item down changes nothing.
func moveItem(ctx context.Context, tx *store.Tx, id int64, dir model.Direction, at time.Time) (bool, error) {
	item, err := tx.GetItem(ctx, id)
	if err != nil {
		return false, err
	}
	if item == nil {
		return false, fmt.Errorf("item %d: %w", id, ErrNotFound)
	}

	target := item.Position - 1
	if dir == model.DirectionDown {
		target = item.Position + 1
	}
	if target < 1 {
		return false, nil
	}

	neighbour, err := tx.ItemAt(ctx, target)
	if err != nil {
		return false, err
	}
	if neighbour == nil {
		return false, nil
	}

	if err := applyPlan(ctx, tx, swapPlan(*item, *neighbour), at); err != nil {
		return false, err
	}
	return true, nil
}

// removeItem deletes an item and closes the gap it leaves behind.
func removeItem(ctx context.Context, tx *store.Tx, item *model.Item, at time.Time) error {
	if err := tx.DeleteItem(ctx, item.ID); err != nil {
		return err
	}
	items, err := tx.ListItems(ctx)
	if err != nil {
		return err
	}
	return applyPlan(ctx, tx, closeGapPlan(items, item.Position), at)
}

// verify reads the active list and checks that positions are exactly 1..N.
func verify(ctx context.Context, tx *store.Tx) ([]model.Item, error) {
	items, err := tx.ListItems(ctx)
	if err != nil {
		return nil, err
	}
	if err := store.CheckPositions(items); err != nil {
		return nil, err
	}
	return items, nil
}
