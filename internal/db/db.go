package db

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"nextbus-tracker/internal/geo"
	"nextbus-tracker/internal/track"

	_ "github.com/jackc/pgx/v5/stdlib"
)

func Open(dsn string) (*sql.DB, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(5)
	db.SetMaxIdleConns(2)
	db.SetConnMaxLifetime(30 * time.Minute)
	return db, nil
}

func Ping(ctx context.Context, db *sql.DB) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	return db.PingContext(ctx)
}

// FetchRouteStops loads the stop set for a route from a GTFS-shaped schema.
// A stop's direction is the route direction_id of the trips serving it, named
// by the most common headsign for that direction when one exists. Slice order
// is (direction, first stop_sequence), which fixes the resolver's tie-break
// order. An empty result is fatal for the run and is reported here rather
// than treated as "no vehicles tracked".
func FetchRouteStops(ctx context.Context, db *sql.DB, routeID string) ([]track.Stop, error) {
	dirNames, err := fetchDirectionNames(ctx, db, routeID)
	if err != nil {
		return nil, err
	}
	if len(dirNames) == 0 {
		return nil, fmt.Errorf("route %q: no trips define a direction", routeID)
	}

	// stops table may carry plain lat/lon columns or a PostGIS stop_loc
	// geography, depending on the importer.
	latlonExists, err := hasColumns(ctx, db, "public", "stops", "stop_lat", "stop_lon")
	if err != nil {
		return nil, fmt.Errorf("introspect stops columns: %w", err)
	}
	latExpr := "COALESCE(s.stop_lat, 0)"
	lonExpr := "COALESCE(s.stop_lon, 0)"
	locGroup := "s.stop_lat, s.stop_lon"
	if !latlonExists["stop_lat"] || !latlonExists["stop_lon"] {
		locExists, err := hasColumns(ctx, db, "public", "stops", "stop_loc")
		if err != nil {
			return nil, fmt.Errorf("introspect stops stop_loc: %w", err)
		}
		if !locExists["stop_loc"] {
			return nil, fmt.Errorf("stops table missing expected columns (stop_lat/lon or stop_loc)")
		}
		latExpr = "COALESCE(ST_Y(s.stop_loc::geometry), 0)"
		lonExpr = "COALESCE(ST_X(s.stop_loc::geometry), 0)"
		locGroup = "s.stop_loc"
	}

	q := fmt.Sprintf(`
SELECT s.stop_id,
       COALESCE(s.stop_name, ''),
       COALESCE(s.stop_code::text, ''),
       t.direction_id::text,
       %s, %s,
       MIN(st.stop_sequence) AS seq
FROM trips t
JOIN stop_times st ON st.trip_id = t.trip_id
JOIN stops s ON s.stop_id = st.stop_id
WHERE t.route_id = $1
GROUP BY s.stop_id, s.stop_name, s.stop_code, t.direction_id, %s
ORDER BY t.direction_id, seq`, latExpr, lonExpr, locGroup)

	rows, err := db.QueryContext(ctx, q, routeID)
	if err != nil {
		return nil, fmt.Errorf("query route stops: %w", err)
	}
	defer rows.Close()

	var stops []track.Stop
	for rows.Next() {
		var s track.Stop
		var dirID string
		var lat, lon float64
		var seq int
		if err := rows.Scan(&s.Tag, &s.Title, &s.ExternalID, &dirID, &lat, &lon, &seq); err != nil {
			return nil, err
		}
		s.Direction = dirID
		if name, ok := dirNames[dirID]; ok && name != "" {
			s.Direction = name
		}
		s.Location = geo.Point{Lat: lat, Lon: lon}
		stops = append(stops, s)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(stops) == 0 {
		return nil, fmt.Errorf("route %q: no stops found", routeID)
	}
	return stops, nil
}

// fetchDirectionNames maps a route's direction_id values to their most common
// trip headsign.
func fetchDirectionNames(ctx context.Context, db *sql.DB, routeID string) (map[string]string, error) {
	q := `
SELECT direction_id::text, COALESCE(MODE() WITHIN GROUP (ORDER BY trip_headsign), '')
FROM trips
WHERE route_id = $1
GROUP BY direction_id`
	rows, err := db.QueryContext(ctx, q, routeID)
	if err != nil {
		return nil, fmt.Errorf("query directions: %w", err)
	}
	defer rows.Close()
	names := make(map[string]string)
	for rows.Next() {
		var id, name string
		if err := rows.Scan(&id, &name); err != nil {
			return nil, err
		}
		names[id] = name
	}
	return names, rows.Err()
}

// hasColumns returns a map of requested column names to existence for the given table.
func hasColumns(ctx context.Context, db *sql.DB, schema, table string, cols ...string) (map[string]bool, error) {
	res := make(map[string]bool, len(cols))
	if len(cols) == 0 {
		return res, nil
	}
	for _, c := range cols {
		res[c] = false
	}
	q := `SELECT column_name FROM information_schema.columns
          WHERE table_schema = $1 AND table_name = $2 AND column_name = ANY($3)`
	rows, err := db.QueryContext(ctx, q, schema, table, cols)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		res[name] = true
	}
	return res, rows.Err()
}
