package exchange

import (
	"context"
	"fmt"
	"time"

	"github.com/erazemk/gimmie/internal/list"
)

// Summary describes the outcome of an import.
type Summary struct {
	Policy    list.Policy `json:"policy"`
	Imported  int         `json:"items_imported"`
	Archived  int         `json:"archived"`
	Discarded int         `json:"discarded"`
}

// Transformer exports the list as a document and imports documents into it.
type Transformer struct {
	svc  *list.Service
	mode list.ReplaceMode
	now  func() time.Time
}

// NewTransformer returns a transformer over svc. mode decides what a
// replace import does with the items it replaces.
func NewTransformer(svc *list.Service, mode list.ReplaceMode) *Transformer {
	return &Transformer{
		svc:  svc,
		mode: mode,
		now:  func() time.Time { return time.Now().UTC() },
	}
}

// ReplaceMode returns the configured replace disposition.
func (t *Transformer) ReplaceMode() list.ReplaceMode {
	return t.mode
}

// Export builds a document of the active list in position order. Archive
// records are included only when includeArchive is set.
func (t *Transformer) Export(ctx context.Context, includeArchive bool) (*Document, error) {
	snap, err := t.svc.Snapshot(ctx, includeArchive)
	if err != nil {
		return nil, fmt.Errorf("exporting: %w", err)
	}

	doc := &Document{
		Items:      make([]Entry, len(snap.Items)),
		ExportedAt: t.now(),
	}
	for i, item := range snap.Items {
		doc.Items[i] = Entry{
			Name:     item.Name,
			Cost:     item.Cost,
			Link:     optional(item.Link),
			Type:     item.Type,
			AddedBy:  item.AddedBy,
			Position: item.Position,
		}
	}
	if includeArchive {
		doc.Archive = make([]ArchiveEntry, len(snap.Archive))
		for i, rec := range snap.Archive {
			doc.Archive[i] = ArchiveEntry{
				OriginalID: rec.OriginalID,
				Name:       rec.Name,
				Cost:       rec.Cost,
				Link:       optional(rec.Link),
				Type:       rec.Type,
				AddedBy:    rec.AddedBy,
				Reason:     rec.Reason,
				ArchivedAt: rec.ArchivedAt,
			}
		}
	}
	return doc, nil
}

// Import validates every entry of doc and then loads them in document
// order. Validation stops early if ctx is cancelled; once loading starts it
// runs to completion. A single invalid entry rejects the whole document.
// The archive section of doc is not imported.
func (t *Transformer) Import(ctx context.Context, doc *Document, policy list.Policy) (*Summary, error) {
	entries := make([]list.Fields, len(doc.Items))
	for i, e := range doc.Items {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("importing: %w", err)
		}
		f, err := e.fields().Normalize()
		if err != nil {
			return nil, &FormatError{Entry: i, Err: err}
		}
		entries[i] = f
	}

	res, err := t.svc.BulkLoad(context.WithoutCancel(ctx), entries, policy, t.mode)
	if err != nil {
		return nil, fmt.Errorf("importing: %w", err)
	}
	return &Summary{
		Policy:    policy,
		Imported:  res.Added,
		Archived:  res.Archived,
		Discarded: res.Discarded,
	}, nil
}
