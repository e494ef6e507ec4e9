package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/erazemk/foodmap/internal/model"
)

// AddLocationAlias records another name the location goes by in free text.
func AddLocationAlias(ctx context.Context, db *sql.DB, locationID int64, kind, pattern string) (*model.LocationAlias, error) {
	a := &model.LocationAlias{LocationID: locationID, Kind: kind, Pattern: pattern}
	if err := a.Validate(); err != nil {
		return nil, err
	}

	loc, err := GetLocation(ctx, db, locationID)
	if err != nil {
		return nil, err
	}
	if loc == nil {
		return nil, model.ErrLocationNotFound
	}

	result, err := db.ExecContext(ctx,
		`INSERT INTO location_aliases (location_id, kind, pattern) VALUES (?, ?, ?)`,
		locationID, a.Kind, a.Pattern,
	)
	if err != nil {
		return nil, fmt.Errorf("adding location alias: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("getting location alias id: %w", err)
	}

	aliases, err := queryAliases(ctx, db,
		`SELECT id, location_id, kind, pattern, created_at FROM location_aliases WHERE id = ?`, id)
	if err != nil {
		return nil, err
	}
	if len(aliases) != 1 {
		return nil, fmt.Errorf("location alias %d not found after insert", id)
	}
	return &aliases[0], nil
}

// ListLocationAliases returns the aliases of a location in insertion order.
func ListLocationAliases(ctx context.Context, db *sql.DB, locationID int64) ([]model.LocationAlias, error) {
	return queryAliases(ctx, db,
		`SELECT id, location_id, kind, pattern, created_at FROM location_aliases
		 WHERE location_id = ? ORDER BY id`, locationID)
}

// ResolveLocation finds the location mentioned in free text such as a mail
// subject and body. Every location's own name counts as a text alias; the
// longest matching alias wins. It returns nil, nil when nothing matches.
func ResolveLocation(ctx context.Context, db *sql.DB, text string) (*model.Location, error) {
	locations, err := ListLocations(ctx, db)
	if err != nil {
		return nil, err
	}
	aliases, err := queryAliases(ctx, db,
		`SELECT id, location_id, kind, pattern, created_at FROM location_aliases ORDER BY id`)
	if err != nil {
		return nil, err
	}

	candidates := make([]model.LocationAlias, 0, len(locations)+len(aliases))
	for _, l := range locations {
		candidates = append(candidates, model.LocationAlias{
			LocationID: l.ID,
			Kind:       model.AliasText,
			Pattern:    model.NormalizeLocationText(l.Name),
		})
	}
	candidates = append(candidates, aliases...)

	best, ok := model.BestAlias(text, candidates)
	if !ok {
		return nil, nil
	}
	return GetLocation(ctx, db, best.LocationID)
}

func queryAliases(ctx context.Context, db *sql.DB, query string, args ...any) ([]model.LocationAlias, error) {
	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing location aliases: %w", err)
	}
	defer rows.Close()

	var aliases []model.LocationAlias
	for rows.Next() {
		var a model.LocationAlias
		if err := rows.Scan(&a.ID, &a.LocationID, &a.Kind, &a.Pattern, &a.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning location alias: %w", err)
		}
		aliases = append(aliases, a)
	}
	return aliases, rows.Err()
}
