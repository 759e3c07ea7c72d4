// Package backup writes scheduled full dumps of the list and prunes old ones.
package backup

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/erazemk/gimmie/internal/exchange"
	"github.com/erazemk/gimmie/internal/metrics"
)

const dateLayout = "2006-01-02"

// Exporter produces the document to back up.
type Exporter interface {
	Export(ctx context.Context, includeArchive bool) (*exchange.Document, error)
}

// Snapshotter writes one backup per day and keeps Retention days of them.
type Snapshotter struct {
	exporter  Exporter
	sink      Sink
	prefix    string
	retention int
	metrics   *metrics.Metrics
	now       func() time.Time
}

// NewSnapshotter returns a snapshotter writing <prefix>_backup_<date>.json
// documents to sink and keeping retentionDays of them. m may be nil.
func NewSnapshotter(exporter Exporter, sink Sink, prefix string, retentionDays int, m *metrics.Metrics) *Snapshotter {
	return &Snapshotter{
		exporter:  exporter,
		sink:      sink,
		prefix:    prefix,
		retention: retentionDays,
		metrics:   m,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// FileName returns the backup name for the given day.
func (s *Snapshotter) FileName(day time.Time) string {
	return s.prefix + "_backup_" + day.Format(dateLayout) + ".json"
}

// parseDate extracts the day from a backup name. Names written by other
// prefixes or tools are reported as not matching.
func (s *Snapshotter) parseDate(name string) (time.Time, bool) {
	rest, ok := strings.CutPrefix(name, s.prefix+"_backup_")
	if !ok {
		return time.Time{}, false
	}
	rest, ok = strings.CutSuffix(rest, ".json")
	if !ok {
		return time.Time{}, false
	}
	day, err := time.Parse(dateLayout, rest)
	if err != nil {
		return time.Time{}, false
	}
	return day, true
}

// Run writes today's backup, replacing one written earlier the same day,
// then prunes expired backups. It returns the name written.
func (s *Snapshotter) Run(ctx context.Context) (string, error) {
	now := s.now()
	name, err := s.run(ctx, now)
	s.metrics.BackupRun(now, err)
	if err != nil {
		slog.Error("backup failed", "error", err)
		return "", err
	}
	slog.Info("backup written", "name", name)
	return name, nil
}

func (s *Snapshotter) run(ctx context.Context, now time.Time) (string, error) {
	doc, err := s.exporter.Export(ctx, true)
	if err != nil {
		return "", fmt.Errorf("exporting: %w", err)
	}
	doc.BackupType = exchange.BackupTypeDaily

	var buf bytes.Buffer
	if err := exchange.Encode(&buf, doc); err != nil {
		return "", err
	}

	name := s.FileName(now)
	if err := s.sink.Put(ctx, name, buf.Bytes()); err != nil {
		return "", fmt.Errorf("writing %s: %w", name, err)
	}

	if err := s.prune(ctx, now); err != nil {
		return "", fmt.Errorf("pruning: %w", err)
	}
	return name, nil
}

// prune deletes backups dated more than the retention window before now.
func (s *Snapshotter) prune(ctx context.Context, now time.Time) error {
	names, err := s.sink.List(ctx)
	if err != nil {
		return err
	}

	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	cutoff := today.AddDate(0, 0, -s.retention)
	for _, name := range names {
		day, ok := s.parseDate(name)
		if !ok || !day.Before(cutoff) {
			continue
		}
		if err := s.sink.Delete(ctx, name); err != nil {
			return err
		}
		slog.Info("old backup deleted", "name", name)
	}
	return nil
}
