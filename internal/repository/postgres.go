package repository

import (
	"context"
	"fmt"

	"github.com/ledax/geoetl/internal/models"
)

// EnsureSchema creates the locations table when it does not exist yet. The
// run is self-contained: a fresh database needs no prior migration step.
func (r *Repository) EnsureSchema(ctx context.Context) error {
	query := `
		CREATE TABLE IF NOT EXISTS locations (
			id SERIAL PRIMARY KEY,
			name TEXT,
			network TEXT,
			original_address TEXT,
			postal_code TEXT,
			city TEXT,
			state TEXT,
			provenance TEXT,
			latitude DOUBLE PRECISION,
			longitude DOUBLE PRECISION,
			created_at TIMESTAMPTZ NOT NULL DEFAULT now()
		);
	`

	_, err := r.db.Exec(ctx, query)
	if err != nil {
		return fmt.Errorf("failed to ensure locations schema: %w", err)
	}

	return nil
}

// InsertLocation persists one processed record. Unresolved records arrive
// with nil coordinates and a reason in Provenance; they are stored too so a
// rerun can tell what was already looked at.
func (r *Repository) InsertLocation(ctx context.Context, location models.Location) error {
	query := `
		INSERT INTO locations
			(name, network, original_address, postal_code, city, state, provenance, latitude, longitude)
		VALUES
			($1, $2, $3, $4, $5, $6, $7, $8, $9);
	`

	_, err := r.db.Exec(ctx, query,
		location.Name,
		location.Network,
		location.OriginalAddress,
		location.PostalCode,
		location.City,
		location.State,
		location.Provenance,
		location.Latitude,
		location.Longitude,
	)
	if err != nil {
		return fmt.Errorf("failed to insert location: %w", err)
	}

	r.log.DebugContext(ctx, "Location persisted", "name", location.Name, "provenance", location.Provenance)
	return nil
}

// CountLocations returns how many locations are persisted, used for the
// run summary.
func (r *Repository) CountLocations(ctx context.Context) (int, error) {
	query := `SELECT COUNT(*) FROM locations;`

	rows, err := r.db.Query(ctx, query)
	if err != nil {
		return 0, fmt.Errorf("failed to count locations: %w", err)
	}
	defer rows.Close()

	var count int
	if rows.Next() {
		if errScan := rows.Scan(&count); errScan != nil {
			return 0, fmt.Errorf("failed to scan location count: %w", errScan)
		}
	}

	if err = rows.Err(); err != nil {
		return 0, fmt.Errorf("failed to read row: %w", err)
	}

	return count, nil
}
