// Package exchange converts the list to and from its JSON document form.
package exchange

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/erazemk/gimmie/internal/list"
	"github.com/erazemk/gimmie/internal/model"
)

// BackupTypeDaily marks documents written by the scheduled backup.
const BackupTypeDaily = "automated_daily"

// Document is the import/export and backup format.
type Document struct {
	Items      []Entry        `json:"items"`
	Archive    []ArchiveEntry `json:"archive,omitempty"`
	ExportedAt time.Time      `json:"exported_at"`
	BackupType string         `json:"backup_type,omitempty"`
}

// Entry is one active item. Position is written on export and ignored on
// import, where document order decides.
type Entry struct {
	Name     string         `json:"name"`
	Cost     model.Cost     `json:"cost"`
	Link     *string        `json:"link"`
	Type     model.Category `json:"type"`
	AddedBy  string         `json:"added_by"`
	Position int            `json:"position,omitempty"`
}

// ArchiveEntry is one archive record.
type ArchiveEntry struct {
	OriginalID int64          `json:"original_id"`
	Name       string         `json:"name"`
	Cost       model.Cost     `json:"cost"`
	Link       *string        `json:"link"`
	Type       model.Category `json:"type"`
	AddedBy    string         `json:"added_by"`
	Reason     model.Reason   `json:"archived_reason"`
	ArchivedAt time.Time      `json:"archived_at"`
}

func (e Entry) fields() list.Fields {
	f := list.Fields{
		Name:    e.Name,
		Cost:    e.Cost,
		Type:    e.Type,
		AddedBy: e.AddedBy,
	}
	if e.Link != nil {
		f.Link = *e.Link
	}
	return f
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

// FormatError reports a document that cannot be imported. Entry is the
// zero-based index of the failing item, or -1 when the document itself is
// malformed.
type FormatError struct {
	Entry int
	Err   error
}

func (e *FormatError) Error() string {
	if e.Entry < 0 {
		return fmt.Sprintf("invalid document: %v", e.Err)
	}
	return fmt.Sprintf("invalid entry %d: %v", e.Entry, e.Err)
}

func (e *FormatError) Unwrap() error { return e.Err }

type rawDocument struct {
	Items      *[]json.RawMessage `json:"items"`
	Archive    []ArchiveEntry     `json:"archive"`
	ExportedAt time.Time          `json:"exported_at"`
	BackupType string             `json:"backup_type"`
}

// Decode reads a document from r. Entries that do not decode are reported
// by index.
func Decode(r io.Reader) (*Document, error) {
	var raw rawDocument
	dec := json.NewDecoder(r)
	if err := dec.Decode(&raw); err != nil {
		return nil, &FormatError{Entry: -1, Err: err}
	}
	if err := dec.Decode(&struct{}{}); err != io.EOF {
		return nil, &FormatError{Entry: -1, Err: errors.New("trailing data after document")}
	}
	if raw.Items == nil {
		return nil, &FormatError{Entry: -1, Err: errors.New(`missing "items" array`)}
	}

	doc := &Document{
		Items:      make([]Entry, len(*raw.Items)),
		Archive:    raw.Archive,
		ExportedAt: raw.ExportedAt,
		BackupType: raw.BackupType,
	}
	for i, msg := range *raw.Items {
		if err := json.Unmarshal(msg, &doc.Items[i]); err != nil {
			return nil, &FormatError{Entry: i, Err: err}
		}
	}
	return doc, nil
}

// Encode writes doc to w as indented JSON.
func Encode(w io.Writer, doc *Document) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(doc); err != nil {
		return fmt.Errorf("encoding document: %w", err)
	}
	return nil
}
