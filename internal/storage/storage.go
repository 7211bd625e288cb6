package storage

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"imagecompare/internal/models"
)

// ErrNoRuns is returned when the database holds no run yet
var ErrNoRuns = errors.New("no runs recorded")

// Storage keeps a record of every run and of every pair it renamed
type Storage struct {
	db     *sql.DB
	dbPath string
}

// NewStorage creates a new Storage
func NewStorage(dbPath string) (*Storage, error) {
	dir := filepath.Dir(dbPath)
	if dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	s := &Storage{db: db, dbPath: dbPath}
	if err := s.init(); err != nil {
		db.Close()
		return nil, err
	}

	return s, nil
}

// migrations are applied in order on top of the base schema.
// Each one must be safe to run on a database that already has it.
var migrations = []struct {
	version     int
	description string
	up          string
}{
	{
		version:     1,
		description: "Initial schema",
		up:          "", // base schema
	},
	{
		version:     2,
		description: "Track restored runs",
		up: `
			ALTER TABLE runs ADD COLUMN restored INTEGER DEFAULT 0;
		`,
	},
}

func (s *Storage) init() error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS schema_version (
			version INTEGER PRIMARY KEY,
			applied_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)
	`)
	if err != nil {
		return fmt.Errorf("failed to create schema_version table: %w", err)
	}

	schema := `
	CREATE TABLE IF NOT EXISTS runs (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		folder TEXT NOT NULL,
		started_at INTEGER NOT NULL,
		finished_at INTEGER DEFAULT 0,
		thumb_width INTEGER NOT NULL,
		thumb_height INTEGER NOT NULL,
		threshold REAL NOT NULL,
		total_images INTEGER DEFAULT 0,
		total_pairs INTEGER DEFAULT 0,
		dry_run INTEGER DEFAULT 0
	);

	CREATE TABLE IF NOT EXISTS pairs (
		run_id INTEGER NOT NULL REFERENCES runs(id),
		seq INTEGER NOT NULL,
		idx_a INTEGER NOT NULL,
		idx_b INTEGER NOT NULL,
		orig_a TEXT NOT NULL,
		orig_b TEXT NOT NULL,
		new_a TEXT NOT NULL,
		new_b TEXT NOT NULL,
		size_a INTEGER NOT NULL,
		size_b INTEGER NOT NULL,
		score REAL NOT NULL,
		PRIMARY KEY (run_id, seq)
	);
	`

	if _, err := s.db.Exec(schema); err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}

	if err := s.migrate(); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	return nil
}

func (s *Storage) migrate() error {
	currentVersion := s.getSchemaVersion()

	for _, m := range migrations {
		if m.version <= currentVersion || m.up == "" {
			continue
		}

		// Column may already exist on a database created by hand
		if m.version == 2 && s.columnExists("runs", "restored") {
			s.setSchemaVersion(m.version)
			continue
		}

		if _, err := s.db.Exec(m.up); err != nil {
			return fmt.Errorf("migration %d (%s) failed: %w", m.version, m.description, err)
		}

		s.setSchemaVersion(m.version)
	}

	return nil
}

func (s *Storage) getSchemaVersion() int {
	var version int
	err := s.db.QueryRow(`SELECT COALESCE(MAX(version), 0) FROM schema_version`).Scan(&version)
	if err != nil {
		return 0
	}
	return version
}

func (s *Storage) setSchemaVersion(version int) {
	s.db.Exec(`INSERT OR REPLACE INTO schema_version (version) VALUES (?)`, version)
}

func (s *Storage) columnExists(table, column string) bool {
	var count int
	err := s.db.QueryRow(`
		SELECT COUNT(*) FROM pragma_table_info(?) WHERE name = ?
	`, table, column).Scan(&count)
	if err != nil {
		return false
	}
	return count > 0
}

// Close closes the database connection
func (s *Storage) Close() error {
	return s.db.Close()
}

// BeginRun records the start of a run and sets run.ID
func (s *Storage) BeginRun(run *models.Run) error {
	if run.StartedAt.IsZero() {
		run.StartedAt = time.Now()
	}

	res, err := s.db.Exec(`
		INSERT INTO runs (folder, started_at, thumb_width, thumb_height, threshold, total_images, dry_run)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, run.Folder, run.StartedAt.Unix(), run.ThumbWidth, run.ThumbHeight, run.Threshold, run.TotalImages, boolToInt(run.DryRun))
	if err != nil {
		return fmt.Errorf("failed to insert run: %w", err)
	}

	run.ID, err = res.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to read run id: %w", err)
	}
	return nil
}

// SavePair stores one renamed pair of a run
func (s *Storage) SavePair(runID int64, p *models.DuplicatePair) error {
	_, err := s.db.Exec(`
		INSERT INTO pairs (run_id, seq, idx_a, idx_b, orig_a, orig_b, new_a, new_b, size_a, size_b, score)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, runID, p.Seq, p.A, p.B, p.OrigA, p.OrigB, p.NewA, p.NewB, p.SizeA, p.SizeB, p.Score)
	if err != nil {
		return fmt.Errorf("failed to insert pair #%s: %w", models.FormatSeq(p.Seq), err)
	}
	return nil
}

// FinishRun marks a run as complete with its totals
func (s *Storage) FinishRun(run *models.Run) error {
	if run.FinishedAt.IsZero() {
		run.FinishedAt = time.Now()
	}

	_, err := s.db.Exec(`
		UPDATE runs SET finished_at = ?, total_images = ?, total_pairs = ? WHERE id = ?
	`, run.FinishedAt.Unix(), run.TotalImages, run.TotalPairs, run.ID)
	if err != nil {
		return fmt.Errorf("failed to finish run %d: %w", run.ID, err)
	}
	return nil
}

// MarkRestored flags a run whose renames were undone
func (s *Storage) MarkRestored(runID int64) error {
	_, err := s.db.Exec(`UPDATE runs SET restored = 1 WHERE id = ?`, runID)
	return err
}

const runColumns = `id, folder, started_at, finished_at, thumb_width, thumb_height, threshold,
	total_images, total_pairs, dry_run, restored`

func scanRun(row interface{ Scan(...any) error }) (*models.Run, error) {
	run := &models.Run{}
	var started, finished int64
	var dryRun, restored int
	err := row.Scan(
		&run.ID,
		&run.Folder,
		&started,
		&finished,
		&run.ThumbWidth,
		&run.ThumbHeight,
		&run.Threshold,
		&run.TotalImages,
		&run.TotalPairs,
		&dryRun,
		&restored,
	)
	if err != nil {
		return nil, err
	}
	run.StartedAt = time.Unix(started, 0)
	if finished > 0 {
		run.FinishedAt = time.Unix(finished, 0)
	}
	run.DryRun = dryRun == 1
	run.Restored = restored == 1
	return run, nil
}

// GetRuns returns all runs, newest first
func (s *Storage) GetRuns() ([]*models.Run, error) {
	rows, err := s.db.Query(`SELECT ` + runColumns + ` FROM runs ORDER BY id DESC`)
	if err != nil {
		return nil, fmt.Errorf("failed to query runs: %w", err)
	}
	defer rows.Close()

	var runs []*models.Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

// GetRun returns a single run
func (s *Storage) GetRun(id int64) (*models.Run, error) {
	run, err := scanRun(s.db.QueryRow(`SELECT `+runColumns+` FROM runs WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("run %d not found", id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get run %d: %w", id, err)
	}
	return run, nil
}

// LatestRun returns the most recent run
func (s *Storage) LatestRun() (*models.Run, error) {
	run, err := scanRun(s.db.QueryRow(`SELECT ` + runColumns + ` FROM runs ORDER BY id DESC LIMIT 1`))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNoRuns
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get latest run: %w", err)
	}
	return run, nil
}

// GetPairs returns the pairs of a run in counter order
func (s *Storage) GetPairs(runID int64) ([]*models.DuplicatePair, error) {
	rows, err := s.db.Query(`
		SELECT seq, idx_a, idx_b, orig_a, orig_b, new_a, new_b, size_a, size_b, score
		FROM pairs
		WHERE run_id = ?
		ORDER BY seq
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to query pairs: %w", err)
	}
	defer rows.Close()

	var pairs []*models.DuplicatePair
	for rows.Next() {
		p := &models.DuplicatePair{}
		err := rows.Scan(
			&p.Seq,
			&p.A,
			&p.B,
			&p.OrigA,
			&p.OrigB,
			&p.NewA,
			&p.NewB,
			&p.SizeA,
			&p.SizeB,
			&p.Score,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		pairs = append(pairs, p)
	}
	return pairs, rows.Err()
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
