package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/erazemk/foodmap/internal/model"
)

// AddTag attaches a dietary tag to an existing offering. The tag value and
// the offering are checked before the insert.
func AddTag(ctx context.Context, db *sql.DB, offeringID int64, tag string) (*model.OfferingTag, error) {
	if !model.ValidTag(tag) {
		return nil, fmt.Errorf("%w: %q", model.ErrUnknownTag, tag)
	}

	var exists int
	err := db.QueryRowContext(ctx, `SELECT 1 FROM offerings WHERE id = ?`, offeringID).Scan(&exists)
	if err == sql.ErrNoRows {
		return nil, model.ErrOfferingNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("checking offering: %w", err)
	}

	result, err := db.ExecContext(ctx,
		`INSERT INTO offering_tags (offering_id, tag) VALUES (?, ?)`, offeringID, tag,
	)
	if err != nil {
		return nil, fmt.Errorf("tagging offering: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("getting tag id: %w", err)
	}
	return &model.OfferingTag{ID: id, OfferingID: offeringID, Tag: tag}, nil
}

// ListTags returns the tags of an offering in insertion order.
func ListTags(ctx context.Context, db *sql.DB, offeringID int64) ([]string, error) {
	rows, err := db.QueryContext(ctx,
		`SELECT tag FROM offering_tags WHERE offering_id = ? ORDER BY id`, offeringID,
	)
	if err != nil {
		return nil, fmt.Errorf("listing tags: %w", err)
	}
	defer rows.Close()

	var tags []string
	for rows.Next() {
		var tag string
		if err := rows.Scan(&tag); err != nil {
			return nil, fmt.Errorf("scanning tag: %w", err)
		}
		tags = append(tags, tag)
	}
	return tags, rows.Err()
}
