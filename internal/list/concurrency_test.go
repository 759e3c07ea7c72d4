package list

import (
	"context"
	"errors"
	"math/rand"
	"path/filepath"
	"sync"
	"testing"

	"github.com/erazemk/gimmie/internal/db"
	"github.com/erazemk/gimmie/internal/model"
	"github.com/erazemk/gimmie/internal/store"
)

func TestConcurrentEditsKeepPositions(t *testing.T) {
	ctx := context.Background()
	database, dialect, err := db.Open(filepath.Join(t.TempDir(), "gimmie.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { database.Close() })
	if err := db.EnsureSchema(database, dialect); err != nil {
		t.Fatal(err)
	}
	s := NewService(store.New(database, dialect), nil)
	seed(t, s, "A", "B", "C", "D", "E")

	const (
		writers = 8
		ops     = 50
		readers = 4
	)

	// Another writer may archive an item between our read and our edit.
	check := func(op string, err error) {
		if err == nil || errors.Is(err, ErrNotFound) {
			return
		}
		if errors.Is(err, store.ErrPositionInvariant) {
			t.Errorf("%s broke positions: %v", op, err)
			return
		}
		t.Errorf("%s: %v", op, err)
	}

	done := make(chan struct{})
	var readWG sync.WaitGroup
	for r := 0; r < readers; r++ {
		readWG.Add(1)
		go func() {
			defer readWG.Done()
			for {
				select {
				case <-done:
					return
				default:
				}
				items, err := s.Active(ctx)
				if err != nil {
					t.Errorf("Active: %v", err)
					return
				}
				if err := store.CheckPositions(items); err != nil {
					t.Errorf("reader saw a half-applied mutation: %v", err)
					return
				}
			}
		}()
	}

	var writeWG sync.WaitGroup
	for w := 0; w < writers; w++ {
		writeWG.Add(1)
		go func(n int64) {
			defer writeWG.Done()
			rng := rand.New(rand.NewSource(n))
			for i := 0; i < ops; i++ {
				items, err := s.Active(ctx)
				if err != nil {
					t.Errorf("Active: %v", err)
					return
				}
				if len(items) == 0 {
					_, err := s.Create(ctx, Fields{Name: "refill"})
					check("create", err)
					continue
				}
				target := items[rng.Intn(len(items))]

				switch rng.Intn(3) {
				case 0:
					dir := model.DirectionUp
					if rng.Intn(2) == 0 {
						dir = model.DirectionDown
					}
					_, err := s.Move(ctx, target.ID, dir)
					check("move", err)
				case 1:
					rec, err := s.Archive(ctx, target.ID, model.ReasonDeleted)
					check("archive", err)
					if err == nil {
						_, err = s.Restore(ctx, rec.ID)
						check("restore", err)
					}
				default:
					_, err := s.Create(ctx, Fields{Name: "new"})
					check("create", err)
				}
			}
		}(int64(w + 1))
	}

	writeWG.Wait()
	close(done)
	readWG.Wait()

	if _, err := s.Check(ctx); err != nil {
		t.Errorf("Check after concurrent edits: %v", err)
	}
}
