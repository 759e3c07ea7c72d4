package store

import (
	"context"
	"database/sql"

	"github.com/erazemk/gimmie/internal/model"
)

const archiveColumns = `id, original_id, name, cost, link, type, added_by, archived_reason, archived_at`

func scanArchive(row rowScanner) (*model.ArchiveRecord, error) {
	rec := &model.ArchiveRecord{}
	var originalID sql.NullInt64
	var link sql.NullString
	if err := row.Scan(&rec.ID, &originalID, &rec.Name, &rec.Cost, &link, &rec.Type,
		&rec.AddedBy, &rec.Reason, &rec.ArchivedAt); err != nil {
		return nil, err
	}
	rec.OriginalID = originalID.Int64
	rec.Link = link.String
	return rec, nil
}

// InsertArchive stores an archive record and sets its ID.
func (t *Tx) InsertArchive(ctx context.Context, rec *model.ArchiveRecord) error {
	err := t.queryRow(ctx,
		`INSERT INTO archive (original_id, name, cost, link, type, added_by, archived_reason, archived_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?) RETURNING id`,
		rec.OriginalID, rec.Name, rec.Cost, nullString(rec.Link), rec.Type, rec.AddedBy,
		rec.Reason, rec.ArchivedAt,
	).Scan(&rec.ID)
	if err != nil {
		return storageErr("creating archive record", err)
	}
	return nil
}

// GetArchive returns an archive record by ID, or nil if it does not exist.
func (t *Tx) GetArchive(ctx context.Context, id int64) (*model.ArchiveRecord, error) {
	rec, err := scanArchive(t.queryRow(ctx, `SELECT `+archiveColumns+` FROM archive WHERE id = ?`, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, storageErr("getting archive record", err)
	}
	return rec, nil
}

// ListArchive returns all archive records, newest first.
func (t *Tx) ListArchive(ctx context.Context) ([]model.ArchiveRecord, error) {
	rows, err := t.query(ctx, `SELECT `+archiveColumns+` FROM archive ORDER BY archived_at DESC, id DESC`)
	if err != nil {
		return nil, storageErr("listing archive", err)
	}
	defer rows.Close()

	var records []model.ArchiveRecord
	for rows.Next() {
		rec, err := scanArchive(rows)
		if err != nil {
			return nil, storageErr("scanning archive record", err)
		}
		records = append(records, *rec)
	}
	if err := rows.Err(); err != nil {
		return nil, storageErr("listing archive", err)
	}
	return records, nil
}

// DeleteArchive removes an archive record.
func (t *Tx) DeleteArchive(ctx context.Context, id int64) error {
	result, err := t.exec(ctx, `DELETE FROM archive WHERE id = ?`, id)
	if err != nil {
		return storageErr("deleting archive record", err)
	}
	return expectOne("deleting archive record", result)
}
