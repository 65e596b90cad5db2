package telemetry

import (
	"context"
	"database/sql"
	"fmt"
	"net/url"
	"strings"

	"github.com/signalsfoundry/orbit-engine/model"
	_ "modernc.org/sqlite"
)

// SQLiteSource serves satellite records and their trajectories from a local
// SQLite archive.
type SQLiteSource struct {
	db *sql.DB
}

// OpenSQLite opens or creates the archive at path.
func OpenSQLite(ctx context.Context, path string) (*SQLiteSource, error) {
	db, err := sql.Open("sqlite", sqliteDSN(path))
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	if err := createSchema(ctx, db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}

	return &SQLiteSource{db: db}, nil
}

// Pragmas are applied by the driver on every pooled connection. WAL lets the
// recorder and the engine share the file.
var connPragmas = []string{
	"foreign_keys(1)",
	"journal_mode(WAL)",
	"busy_timeout(5000)",
}

func sqliteDSN(path string) string {
	q := url.Values{}
	for _, p := range connPragmas {
		q.Add("_pragma", p)
	}
	sep := "?"
	if strings.Contains(path, "?") {
		sep = "&"
	}
	return path + sep + q.Encode()
}

// Close closes the database connection.
func (s *SQLiteSource) Close() error {
	return s.db.Close()
}

func createSchema(ctx context.Context, db *sql.DB) error {
	schema := `
	CREATE TABLE IF NOT EXISTS satellites (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		position INTEGER NOT NULL DEFAULT 0,
		elevation_deg REAL,
		azimuth_deg REAL,
		distance_km REAL,
		signal_strength REAL,
		duration_sec REAL,
		sample_count INTEGER,
		updated_at TEXT DEFAULT (datetime('now'))
	);

	CREATE TABLE IF NOT EXISTS trajectory_points (
		satellite_id TEXT NOT NULL REFERENCES satellites(id) ON DELETE CASCADE,
		ts REAL NOT NULL,
		latitude REAL NOT NULL,
		longitude REAL NOT NULL,
		altitude_km REAL NOT NULL,
		elevation_deg REAL NOT NULL,
		azimuth_deg REAL NOT NULL,
		distance_km REAL NOT NULL,
		is_visible INTEGER NOT NULL DEFAULT 0,
		PRIMARY KEY (satellite_id, ts)
	);

	CREATE INDEX IF NOT EXISTS idx_satellites_position ON satellites(position);
	`
	_, err := db.ExecContext(ctx, schema)
	return err
}

// UpsertSatellite inserts or replaces the look angles of one satellite.
// position orders satellites in Latest. Absent values are stored as NULL and
// defaulted on read.
func (s *SQLiteSource) UpsertSatellite(ctx context.Context, rec model.RawSatelliteRecord, position int) error {
	id := rec.ID
	if id == "" {
		id = rec.Name
	}
	if id == "" {
		return fmt.Errorf("upsert satellite: missing id and name")
	}
	name := rec.Name
	if name == "" {
		name = id
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO satellites (id, name, position, elevation_deg, azimuth_deg, distance_km, signal_strength, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, datetime('now'))
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			position = excluded.position,
			elevation_deg = excluded.elevation_deg,
			azimuth_deg = excluded.azimuth_deg,
			distance_km = excluded.distance_km,
			signal_strength = excluded.signal_strength,
			updated_at = excluded.updated_at`,
		id, name, position,
		nullFloat(rec.ElevationDeg), nullFloat(rec.AzimuthDeg),
		nullFloat(rec.DistanceKm), nullFloat(rec.SignalStrength),
	)
	if err != nil {
		return fmt.Errorf("upsert satellite %s: %w", id, err)
	}
	if rec.Trajectory.Len() > 0 {
		return s.SaveTrajectory(ctx, id, rec.Trajectory)
	}
	return nil
}

// SaveTrajectory replaces the stored samples of satellite id.
func (s *SQLiteSource) SaveTrajectory(ctx context.Context, id string, traj *model.Trajectory) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `DELETE FROM trajectory_points WHERE satellite_id = ?`, id); err != nil {
		return fmt.Errorf("clear trajectory %s: %w", id, err)
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO trajectory_points
			(satellite_id, ts, latitude, longitude, altitude_km, elevation_deg, azimuth_deg, distance_km, is_visible)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(satellite_id, ts) DO NOTHING`)
	if err != nil {
		return fmt.Errorf("prepare insert: %w", err)
	}
	defer stmt.Close()

	for _, p := range traj.Points {
		if _, err := stmt.ExecContext(ctx, id, p.Timestamp, p.Latitude, p.Longitude, p.AltitudeKm,
			p.ElevationDeg, p.AzimuthDeg, p.DistanceKm, boolToInt(p.Visible)); err != nil {
			return fmt.Errorf("insert trajectory point %s@%v: %w", id, p.Timestamp, err)
		}
	}

	var duration sql.NullFloat64
	if traj.DurationSec > 0 {
		duration = sql.NullFloat64{Float64: traj.DurationSec, Valid: true}
	}
	var samples sql.NullInt64
	if traj.SampleCount > 0 {
		samples = sql.NullInt64{Int64: int64(traj.SampleCount), Valid: true}
	}
	res, err := tx.ExecContext(ctx, `UPDATE satellites SET duration_sec = ?, sample_count = ? WHERE id = ?`,
		duration, samples, id)
	if err != nil {
		return fmt.Errorf("update trajectory metadata %s: %w", id, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("save trajectory: unknown satellite %s", id)
	}

	return tx.Commit()
}

// Latest loads every satellite with its trajectory, ordered by position.
func (s *SQLiteSource) Latest(ctx context.Context) ([]model.SatelliteRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, elevation_deg, azimuth_deg, distance_km, signal_strength, duration_sec, sample_count
		FROM satellites
		ORDER BY position, id`)
	if err != nil {
		return nil, fmt.Errorf("query satellites: %w", err)
	}

	var raw []model.RawSatelliteRecord
	index := make(map[string]int)
	for rows.Next() {
		var (
			rec                      model.RawSatelliteRecord
			el, az, dist, sig, durat sql.NullFloat64
			samples                  sql.NullInt64
		)
		if err := rows.Scan(&rec.ID, &rec.Name, &el, &az, &dist, &sig, &durat, &samples); err != nil {
			rows.Close()
			return nil, fmt.Errorf("scan satellite: %w", err)
		}
		rec.ElevationDeg = floatPtr(el)
		rec.AzimuthDeg = floatPtr(az)
		rec.DistanceKm = floatPtr(dist)
		rec.SignalStrength = floatPtr(sig)
		if durat.Valid || samples.Valid {
			rec.Trajectory = &model.Trajectory{
				DurationSec: durat.Float64,
				SampleCount: int(samples.Int64),
			}
		}
		index[rec.ID] = len(raw)
		raw = append(raw, rec)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, fmt.Errorf("iterate satellites: %w", err)
	}
	rows.Close()

	if len(raw) == 0 {
		return nil, ErrNoData
	}

	if err := s.loadPoints(ctx, raw, index); err != nil {
		return nil, err
	}
	return model.NormalizeAll(raw), nil
}

func (s *SQLiteSource) loadPoints(ctx context.Context, raw []model.RawSatelliteRecord, index map[string]int) error {
	rows, err := s.db.QueryContext(ctx, `
		SELECT satellite_id, ts, latitude, longitude, altitude_km, elevation_deg, azimuth_deg, distance_km, is_visible
		FROM trajectory_points
		ORDER BY satellite_id, ts`)
	if err != nil {
		return fmt.Errorf("query trajectory points: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			id      string
			p       model.TrajectoryPoint
			visible int
		)
		if err := rows.Scan(&id, &p.Timestamp, &p.Latitude, &p.Longitude, &p.AltitudeKm,
			&p.ElevationDeg, &p.AzimuthDeg, &p.DistanceKm, &visible); err != nil {
			return fmt.Errorf("scan trajectory point: %w", err)
		}
		p.Visible = visible != 0

		i, ok := index[id]
		if !ok {
			continue
		}
		if raw[i].Trajectory == nil {
			raw[i].Trajectory = &model.Trajectory{}
		}
		raw[i].Trajectory.Points = append(raw[i].Trajectory.Points, p)
	}
	return rows.Err()
}

func nullFloat(v *float64) sql.NullFloat64 {
	if v == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *v, Valid: true}
}

func floatPtr(v sql.NullFloat64) *float64 {
	if !v.Valid {
		return nil
	}
	f := v.Float64
	return &f
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
