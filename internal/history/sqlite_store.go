package history

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/lowaak/smart-trainer/virtual-ride/internal/logging"
	"github.com/lowaak/smart-trainer/virtual-ride/internal/workout"
)

const schema = `
CREATE TABLE IF NOT EXISTS workouts (
  id                 TEXT PRIMARY KEY,
  start_ns           INTEGER NOT NULL,
  end_ns             INTEGER NOT NULL,
  distance_m         REAL NOT NULL,
  elapsed_s          REAL NOT NULL,
  track_id           TEXT NOT NULL DEFAULT '',
  track_name         TEXT NOT NULL DEFAULT '',
  target_km          REAL NOT NULL DEFAULT 0,
  progress_fraction  REAL NOT NULL DEFAULT 0,
  completed          INTEGER NOT NULL DEFAULT 0
);
CREATE TABLE IF NOT EXISTS samples (
  workout_id   TEXT NOT NULL REFERENCES workouts(id) ON DELETE CASCADE,
  seq          INTEGER NOT NULL,
  ts_ns        INTEGER NOT NULL,
  speed_kph    REAL NOT NULL,
  cadence_rpm  REAL NOT NULL,
  PRIMARY KEY (workout_id, seq)
);
CREATE INDEX IF NOT EXISTS workouts_start ON workouts(start_ns);
`

// SQLiteStore is a Recorder backed by a local SQLite database
type SQLiteStore struct {
	db     *sql.DB
	logger logging.Logger
}

var _ Recorder = (*SQLiteStore)(nil)

func OpenSQLiteStore(path string, logger logging.Logger) (*SQLiteStore, error) {
	if logger == nil {
		panic("SQLiteStore: logger cannot be nil")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("history: mkdir: %w", err)
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("history: open %s: %w", path, err)
	}
	// one writer; the engine records at most one workout at a time
	db.SetMaxOpenConns(1)
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("history: migrate: %w", err)
	}
	logger.Printf("SQLiteStore: opened %s", path)
	return &SQLiteStore{db: db, logger: logger}, nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) Record(ctx context.Context, rec WorkoutRecord) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("history: begin: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
      INSERT INTO workouts (id, start_ns, end_ns, distance_m, elapsed_s,
        track_id, track_name, target_km, progress_fraction, completed)
      VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
    `,
		rec.ID,
		rec.Summary.StartTime.UnixNano(),
		rec.Summary.EndTime.UnixNano(),
		rec.Summary.DistanceMeters,
		rec.Summary.ElapsedSeconds,
		rec.Track.TrackID,
		rec.Track.TrackName,
		rec.Track.TargetDistanceKm,
		rec.Track.ProgressFraction,
		boolToInt(rec.Track.Completed),
	)
	if err != nil {
		return fmt.Errorf("history: insert workout: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `
      INSERT INTO samples (workout_id, seq, ts_ns, speed_kph, cadence_rpm)
      VALUES (?, ?, ?, ?, ?)
    `)
	if err != nil {
		return fmt.Errorf("history: prepare samples: %w", err)
	}
	defer stmt.Close()

	for i, sample := range rec.Samples {
		if _, err := stmt.ExecContext(ctx, rec.ID, i, sample.Timestamp.UnixNano(), sample.SpeedKph, sample.CadenceRpm); err != nil {
			return fmt.Errorf("history: insert sample %d: %w", i, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("history: commit: %w", err)
	}
	s.logger.Printf("SQLiteStore: recorded workout %s (%.0fm, %d samples)", rec.ID, rec.Summary.DistanceMeters, len(rec.Samples))
	return nil
}

// List returns the most recent workouts without their samples
func (s *SQLiteStore) List(ctx context.Context, limit int) ([]WorkoutRecord, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx, `
      SELECT id, start_ns, end_ns, distance_m, elapsed_s,
        track_id, track_name, target_km, progress_fraction, completed
      FROM workouts
      ORDER BY start_ns DESC
      LIMIT ?
    `, limit)
	if err != nil {
		return nil, fmt.Errorf("history: list workouts: %w", err)
	}
	defer rows.Close()

	var out []WorkoutRecord
	for rows.Next() {
		var (
			rec            WorkoutRecord
			startNs, endNs int64
			completed      int
		)
		if err := rows.Scan(&rec.ID, &startNs, &endNs, &rec.Summary.DistanceMeters, &rec.Summary.ElapsedSeconds,
			&rec.Track.TrackID, &rec.Track.TrackName, &rec.Track.TargetDistanceKm, &rec.Track.ProgressFraction, &completed); err != nil {
			return nil, fmt.Errorf("history: scan workout: %w", err)
		}
		rec.Summary.StartTime = time.Unix(0, startNs).UTC()
		rec.Summary.EndTime = time.Unix(0, endNs).UTC()
		rec.Track.Completed = completed != 0
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("history: rows: %w", err)
	}
	return out, nil
}

// Samples returns the series of one workout in order
func (s *SQLiteStore) Samples(ctx context.Context, workoutID string) ([]workout.Sample, error) {
	rows, err := s.db.QueryContext(ctx, `
      SELECT ts_ns, speed_kph, cadence_rpm
      FROM samples
      WHERE workout_id = ?
      ORDER BY seq
    `, workoutID)
	if err != nil {
		return nil, fmt.Errorf("history: list samples: %w", err)
	}
	defer rows.Close()

	var out []workout.Sample
	for rows.Next() {
		var (
			sample workout.Sample
			tsNs   int64
		)
		if err := rows.Scan(&tsNs, &sample.SpeedKph, &sample.CadenceRpm); err != nil {
			return nil, fmt.Errorf("history: scan sample: %w", err)
		}
		sample.Timestamp = time.Unix(0, tsNs).UTC()
		out = append(out, sample)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("history: rows: %w", err)
	}
	return out, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
