package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/erazemk/foodmap/internal/media"
	"github.com/erazemk/foodmap/internal/model"
)

// CreateLocation creates a new location.
func CreateLocation(ctx context.Context, db *sql.DB, name string, lat, lng float64) (*model.Location, error) {
	l := &model.Location{Name: name, Lat: lat, Lng: lng}
	if err := l.Validate(); err != nil {
		return nil, err
	}

	result, err := db.ExecContext(ctx,
		`INSERT INTO locations (name, lat, lng) VALUES (?, ?, ?)`,
		name, lat, lng,
	)
	if err != nil {
		return nil, fmt.Errorf("creating location: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("getting location id: %w", err)
	}

	return GetLocation(ctx, db, id)
}

// GetLocation returns a location by ID.
func GetLocation(ctx context.Context, db *sql.DB, id int64) (*model.Location, error) {
	l := &model.Location{}
	err := db.QueryRowContext(ctx,
		`SELECT id, name, lat, lng, created_at FROM locations WHERE id = ?`, id,
	).Scan(&l.ID, &l.Name, &l.Lat, &l.Lng, &l.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("getting location: %w", err)
	}
	return l, nil
}

// GetLocationByName returns a location by its unique name.
func GetLocationByName(ctx context.Context, db *sql.DB, name string) (*model.Location, error) {
	l := &model.Location{}
	err := db.QueryRowContext(ctx,
		`SELECT id, name, lat, lng, created_at FROM locations WHERE name = ?`, name,
	).Scan(&l.ID, &l.Name, &l.Lat, &l.Lng, &l.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("getting location by name: %w", err)
	}
	return l, nil
}

// ListLocations returns all locations ordered by name.
func ListLocations(ctx context.Context, db *sql.DB) ([]model.Location, error) {
	rows, err := db.QueryContext(ctx,
		`SELECT id, name, lat, lng, created_at FROM locations ORDER BY name`,
	)
	if err != nil {
		return nil, fmt.Errorf("listing locations: %w", err)
	}
	defer rows.Close()

	var locations []model.Location
	for rows.Next() {
		var l model.Location
		if err := rows.Scan(&l.ID, &l.Name, &l.Lat, &l.Lng, &l.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning location: %w", err)
		}
		locations = append(locations, l)
	}
	return locations, rows.Err()
}

// DeleteLocation deletes a location together with its offerings. Offerings
// go through DeleteOffering first so their images are removed too; the
// foreign key cascade alone would leave the files behind.
func DeleteLocation(ctx context.Context, db *sql.DB, images media.Store, id int64) error {
	ids, err := offeringIDsAt(ctx, db, id)
	if err != nil {
		return err
	}
	for _, offeringID := range ids {
		if err := DeleteOffering(ctx, db, images, offeringID); err != nil && err != model.ErrOfferingNotFound {
			return err
		}
	}

	result, err := db.ExecContext(ctx, `DELETE FROM locations WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("deleting location: %w", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return model.ErrLocationNotFound
	}
	return nil
}

// ImportResult counts what ImportLocations did.
type ImportResult struct {
	Inserted int
	Skipped  int
	Aliases  int
}

// ImportLocations inserts locations in bulk, skipping names that already
// exist. Aliases are added for new and existing locations alike; ones that
// are already known are skipped.
func ImportLocations(ctx context.Context, db *sql.DB, locations []model.Location) (ImportResult, error) {
	var res ImportResult
	for _, l := range locations {
		loc, err := CreateLocation(ctx, db, l.Name, l.Lat, l.Lng)
		switch {
		case err == nil:
			res.Inserted++
		case IsUniqueViolation(err):
			res.Skipped++
			if loc, err = GetLocationByName(ctx, db, l.Name); err != nil {
				return res, err
			}
			if loc == nil {
				return res, fmt.Errorf("importing %q: %w", l.Name, model.ErrLocationNotFound)
			}
		default:
			return res, fmt.Errorf("importing %q: %w", l.Name, err)
		}

		for _, a := range l.Aliases {
			if _, err := AddLocationAlias(ctx, db, loc.ID, a.Kind, a.Pattern); err != nil {
				if IsUniqueViolation(err) {
					continue
				}
				return res, fmt.Errorf("importing alias %q of %q: %w", a.Pattern, l.Name, err)
			}
			res.Aliases++
		}
	}
	return res, nil
}

func offeringIDsAt(ctx context.Context, db *sql.DB, locationID int64) ([]int64, error) {
	rows, err := db.QueryContext(ctx,
		`SELECT id FROM offerings WHERE location_id = ? ORDER BY id`, locationID,
	)
	if err != nil {
		return nil, fmt.Errorf("listing offerings at location: %w", err)
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scanning offering id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}
