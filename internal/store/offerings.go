package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/erazemk/foodmap/internal/media"
	"github.com/erazemk/foodmap/internal/model"
)

const offeringColumns = `o.id, o.timestamp, o.location_id, o.title, o.description, o.image,
	o.thread_id, o.recur, o.recur_end_at, o.created_at,
	l.id, l.name, l.lat, l.lng, l.created_at`

const offeringFrom = ` FROM offerings o JOIN locations l ON l.id = o.location_id`

type scanner interface {
	Scan(dest ...any) error
}

func scanOffering(s scanner) (*model.Offering, error) {
	var (
		o                      model.Offering
		l                      model.Location
		timestamp              string
		image, threadID, recur sql.NullString
		recurEnd               sql.NullString
	)
	err := s.Scan(&o.ID, &timestamp, &o.LocationID, &o.Title, &o.Description, &image,
		&threadID, &recur, &recurEnd, &o.CreatedAt,
		&l.ID, &l.Name, &l.Lat, &l.Lng, &l.CreatedAt)
	if err != nil {
		return nil, err
	}

	if o.Timestamp, err = parseTime(timestamp); err != nil {
		return nil, fmt.Errorf("parsing timestamp of offering %d: %w", o.ID, err)
	}
	o.Image = image.String
	if threadID.Valid {
		o.ThreadID = &threadID.String
	}
	o.Recur = model.Recurrence(recur.String)
	if recurEnd.Valid {
		end, err := parseTime(recurEnd.String)
		if err != nil {
			return nil, fmt.Errorf("parsing recurrence end of offering %d: %w", o.ID, err)
		}
		o.RecurEnd = &end
	}
	o.Location = &l
	return &o, nil
}

// CreateOffering validates and persists an offering with its tags.
//
// All attribute and relation checks run before anything is written, so a
// rejected offering leaves no row and no file. upload, if non-empty, is
// normalized and stored as the offering's image; o.Image, if already set,
// is taken as staged by the caller. Either way the image is removed again
// when the insert fails.
func CreateOffering(ctx context.Context, db *sql.DB, images media.Store, o *model.Offering, upload []byte) (*model.Offering, error) {
	if err := o.Validate(); err != nil {
		return nil, err
	}
	loc, err := GetLocation(ctx, db, o.LocationID)
	if err != nil {
		return nil, err
	}
	if loc == nil {
		return nil, model.ErrLocationNotFound
	}

	if len(upload) > 0 {
		path, err := images.Save(upload)
		if err != nil {
			return nil, fmt.Errorf("storing image: %w", err)
		}
		o.Image = path
	}

	id, err := insertOffering(ctx, db, o)
	if err != nil {
		discardImage(images, o.Image)
		return nil, err
	}
	return GetOffering(ctx, db, id)
}

func insertOffering(ctx context.Context, db *sql.DB, o *model.Offering) (int64, error) {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	id, err := insertOfferingTx(ctx, tx, o)
	if err != nil {
		return 0, err
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("committing offering: %w", err)
	}
	return id, nil
}

func insertOfferingTx(ctx context.Context, tx *sql.Tx, o *model.Offering) (int64, error) {
	var image, recur, recurEnd sql.NullString
	if o.Image != "" {
		image = sql.NullString{String: o.Image, Valid: true}
	}
	if o.Recur != model.RecurNone {
		recur = sql.NullString{String: string(o.Recur), Valid: true}
	}
	if o.RecurEnd != nil {
		recurEnd = sql.NullString{String: formatTime(*o.RecurEnd), Valid: true}
	}

	result, err := tx.ExecContext(ctx,
		`INSERT INTO offerings (timestamp, location_id, title, description, image, thread_id, recur, recur_end_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		formatTime(o.Timestamp), o.LocationID, o.Title, o.Description, image, o.ThreadID, recur, recurEnd,
	)
	if err != nil {
		return 0, fmt.Errorf("creating offering: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("getting offering id: %w", err)
	}

	for _, tag := range o.Tags {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO offering_tags (offering_id, tag) VALUES (?, ?)`, id, tag,
		); err != nil {
			return 0, fmt.Errorf("tagging offering: %w", err)
		}
	}
	return id, nil
}

// GetOffering returns an offering by ID with its location and tags.
func GetOffering(ctx context.Context, db *sql.DB, id int64) (*model.Offering, error) {
	row := db.QueryRowContext(ctx, `SELECT `+offeringColumns+offeringFrom+` WHERE o.id = ?`, id)
	o, err := scanOffering(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("getting offering: %w", err)
	}

	if o.Tags, err = ListTags(ctx, db, id); err != nil {
		return nil, err
	}
	return o, nil
}

// GetOfferingByThread returns the offering carrying threadID, or nil.
func GetOfferingByThread(ctx context.Context, db *sql.DB, threadID string) (*model.Offering, error) {
	var id int64
	err := db.QueryRowContext(ctx, `SELECT id FROM offerings WHERE thread_id = ?`, threadID).Scan(&id)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("getting offering by thread: %w", err)
	}
	return GetOffering(ctx, db, id)
}

// ListActiveOfferings returns offerings with a timestamp in [from, to],
// newest first, with locations and tags loaded.
func ListActiveOfferings(ctx context.Context, db *sql.DB, from, to time.Time) ([]*model.Offering, error) {
	offerings, err := queryOfferings(ctx, db,
		`SELECT `+offeringColumns+offeringFrom+`
		 WHERE o.timestamp >= ? AND o.timestamp <= ?
		 ORDER BY o.timestamp DESC, o.id DESC`,
		formatTime(from), formatTime(to),
	)
	if err != nil {
		return nil, err
	}
	if err := attachTags(ctx, db, offerings); err != nil {
		return nil, err
	}
	return offerings, nil
}

// ListExpiredOfferings returns offerings with timestamp <= cutoff, oldest
// first, with locations and tags loaded.
func ListExpiredOfferings(ctx context.Context, db *sql.DB, cutoff time.Time) ([]*model.Offering, error) {
	offerings, err := queryOfferings(ctx, db,
		`SELECT `+offeringColumns+offeringFrom+`
		 WHERE o.timestamp <= ?
		 ORDER BY o.timestamp, o.id`,
		formatTime(cutoff),
	)
	if err != nil {
		return nil, err
	}
	if err := attachTags(ctx, db, offerings); err != nil {
		return nil, err
	}
	return offerings, nil
}

// ListOfferings returns every offering, newest first, for operators.
func ListOfferings(ctx context.Context, db *sql.DB) ([]*model.Offering, error) {
	offerings, err := queryOfferings(ctx, db,
		`SELECT `+offeringColumns+offeringFrom+` ORDER BY o.timestamp DESC, o.id DESC`,
	)
	if err != nil {
		return nil, err
	}
	if err := attachTags(ctx, db, offerings); err != nil {
		return nil, err
	}
	return offerings, nil
}

// queryOfferings closes its rows before returning so callers can issue
// follow-up queries on a single-connection pool.
func queryOfferings(ctx context.Context, db *sql.DB, query string, args ...any) ([]*model.Offering, error) {
	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing offerings: %w", err)
	}
	defer rows.Close()

	var offerings []*model.Offering
	for rows.Next() {
		o, err := scanOffering(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning offering: %w", err)
		}
		offerings = append(offerings, o)
	}
	return offerings, rows.Err()
}

func attachTags(ctx context.Context, db *sql.DB, offerings []*model.Offering) error {
	if len(offerings) == 0 {
		return nil
	}

	byID := make(map[int64]*model.Offering, len(offerings))
	args := make([]any, 0, len(offerings))
	for _, o := range offerings {
		byID[o.ID] = o
		args = append(args, o.ID)
	}
	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(offerings)), ",")

	rows, err := db.QueryContext(ctx,
		`SELECT offering_id, tag FROM offering_tags WHERE offering_id IN (`+placeholders+`) ORDER BY id`,
		args...,
	)
	if err != nil {
		return fmt.Errorf("listing tags: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			id  int64
			tag string
		)
		if err := rows.Scan(&id, &tag); err != nil {
			return fmt.Errorf("scanning tag: %w", err)
		}
		if o, ok := byID[id]; ok {
			o.Tags = append(o.Tags, tag)
		}
	}
	return rows.Err()
}

// DeleteOffering deletes an offering, its tags and its stored image.
func DeleteOffering(ctx context.Context, db *sql.DB, images media.Store, id int64) error {
	var image sql.NullString
	err := db.QueryRowContext(ctx, `SELECT image FROM offerings WHERE id = ?`, id).Scan(&image)
	if err == sql.ErrNoRows {
		return model.ErrOfferingNotFound
	}
	if err != nil {
		return fmt.Errorf("getting offering image: %w", err)
	}

	result, err := db.ExecContext(ctx, `DELETE FROM offerings WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("deleting offering: %w", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return model.ErrOfferingNotFound
	}

	if err := images.Delete(image.String); err != nil {
		return fmt.Errorf("removing image of offering %d: %w", id, err)
	}
	return nil
}

// DeleteOfferingByThread deletes the offering carrying threadID, if any. It
// reports whether an offering was found.
func DeleteOfferingByThread(ctx context.Context, db *sql.DB, images media.Store, threadID string) (bool, error) {
	var id int64
	err := db.QueryRowContext(ctx, `SELECT id FROM offerings WHERE thread_id = ?`, threadID).Scan(&id)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("getting offering by thread: %w", err)
	}

	if err := DeleteOffering(ctx, db, images, id); err != nil {
		if errors.Is(err, model.ErrOfferingNotFound) {
			return false, nil
		}
		return true, err
	}
	return true, nil
}

// ReplaceOffering swaps an expired offering for its successor in a single
// transaction, so the unique thread id moves over and no reader sees both
// or neither. The successor gets its own copy of the old image, and the old
// file is removed only after the commit; if that fails the successor is
// still returned along with the error.
func ReplaceOffering(ctx context.Context, db *sql.DB, images media.Store, old, successor *model.Offering) (*model.Offering, error) {
	if err := successor.Validate(); err != nil {
		return nil, err
	}

	successor.Image = ""
	if old.Image != "" {
		copied, err := images.Copy(old.Image)
		if err != nil {
			return nil, fmt.Errorf("copying image: %w", err)
		}
		successor.Image = copied
	}

	id, err := replaceOfferingTx(ctx, db, old.ID, successor)
	if err != nil {
		discardImage(images, successor.Image)
		return nil, err
	}

	next, err := GetOffering(ctx, db, id)
	if err != nil {
		return nil, err
	}
	if err := images.Delete(old.Image); err != nil {
		return next, fmt.Errorf("removing image of offering %d: %w", old.ID, err)
	}
	return next, nil
}

func replaceOfferingTx(ctx context.Context, db *sql.DB, oldID int64, successor *model.Offering) (int64, error) {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	result, err := tx.ExecContext(ctx, `DELETE FROM offerings WHERE id = ?`, oldID)
	if err != nil {
		return 0, fmt.Errorf("deleting offering: %w", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return 0, model.ErrOfferingNotFound
	}

	id, err := insertOfferingTx(ctx, tx, successor)
	if err != nil {
		return 0, err
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("committing replacement: %w", err)
	}
	return id, nil
}

// discardImage removes an image written for a row that was never committed.
func discardImage(images media.Store, path string) {
	if path != "" {
		_ = images.Delete(path)
	}
}
