// Package repository persists merged launch records in an on-device SQLite
// database. The orchestrator uses it only as a narrow key-value sink:
// get(id), put(record), list().
package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3" // SQLite driver.

	"github.com/launchfeed/launchfeed/internal/models"
)

// ErrNotFound is returned by Get for an unknown launch id.
var ErrNotFound = errors.New("repository: launch not found")

// LaunchRepository stores launch records keyed by id.
type LaunchRepository struct {
	db *sql.DB
}

// Open opens (and initializes) the database at path.
func Open(path string) (*LaunchRepository, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("repository: open database: %w", err)
	}

	// WAL keeps reads cheap while the refresh loop writes.
	if _, err := db.Exec("PRAGMA journal_mode = WAL"); err != nil {
		return nil, fmt.Errorf("repository: enable WAL: %w", err)
	}
	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		return nil, fmt.Errorf("repository: set busy timeout: %w", err)
	}

	repo := &LaunchRepository{db: db}
	if err := repo.initSchema(); err != nil {
		return nil, err
	}
	return repo, nil
}

func (r *LaunchRepository) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS launches (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		launch_time TEXT,
		status TEXT NOT NULL,
		rocket_name TEXT NOT NULL,
		provider_name TEXT NOT NULL,
		location_name TEXT NOT NULL,
		image_url TEXT,
		short_description TEXT,
		detailed_description TEXT,
		orbit_name TEXT,
		wiki_url TEXT,
		badges TEXT,
		updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
	);

	CREATE INDEX IF NOT EXISTS idx_launches_launch_time ON launches(launch_time);
	`
	if _, err := r.db.Exec(schema); err != nil {
		return fmt.Errorf("repository: create schema: %w", err)
	}
	return nil
}

// Close closes the underlying database.
func (r *LaunchRepository) Close() error {
	return r.db.Close()
}

// Put upserts a single launch record.
func (r *LaunchRepository) Put(ctx context.Context, launch models.Launch) error {
	return r.put(ctx, r.db, launch)
}

// PutAll upserts a batch of launches in one transaction.
func (r *LaunchRepository) PutAll(ctx context.Context, launches []models.Launch) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("repository: begin tx: %w", err)
	}
	for _, launch := range launches {
		if err := r.put(ctx, tx, launch); err != nil {
			tx.Rollback()
			return err
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("repository: commit: %w", err)
	}
	return nil
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func (r *LaunchRepository) put(ctx context.Context, db execer, launch models.Launch) error {
	badges, err := json.Marshal(launch.Badges)
	if err != nil {
		return fmt.Errorf("repository: encode badges: %w", err)
	}

	var launchTime sql.NullString
	if launch.LaunchTime != nil {
		launchTime = sql.NullString{String: launch.LaunchTime.UTC().Format(time.RFC3339), Valid: true}
	}

	_, err = db.ExecContext(ctx, `
		INSERT INTO launches (
			id, name, launch_time, status, rocket_name, provider_name,
			location_name, image_url, short_description, detailed_description,
			orbit_name, wiki_url, badges, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			launch_time = excluded.launch_time,
			status = excluded.status,
			rocket_name = excluded.rocket_name,
			provider_name = excluded.provider_name,
			location_name = excluded.location_name,
			image_url = excluded.image_url,
			short_description = excluded.short_description,
			detailed_description = excluded.detailed_description,
			orbit_name = excluded.orbit_name,
			wiki_url = excluded.wiki_url,
			badges = excluded.badges,
			updated_at = CURRENT_TIMESTAMP`,
		launch.ID, launch.Name, launchTime, string(launch.Status),
		launch.RocketName, launch.ProviderName, launch.LocationName,
		launch.ImageURL, launch.ShortDescription, launch.DetailedDescription,
		launch.OrbitName, launch.WikiURL, string(badges),
	)
	if err != nil {
		return fmt.Errorf("repository: upsert launch %s: %w", launch.ID, err)
	}
	return nil
}

// Get returns the stored record for a launch id.
func (r *LaunchRepository) Get(ctx context.Context, id string) (models.Launch, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, name, launch_time, status, rocket_name, provider_name,
		       location_name, image_url, short_description, detailed_description,
		       orbit_name, wiki_url, badges
		FROM launches WHERE id = ?`, id)

	launch, err := scanLaunch(row)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Launch{}, ErrNotFound
	}
	return launch, err
}

// List returns all stored launches ordered by launch time, untimed launches
// last.
func (r *LaunchRepository) List(ctx context.Context) ([]models.Launch, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, name, launch_time, status, rocket_name, provider_name,
		       location_name, image_url, short_description, detailed_description,
		       orbit_name, wiki_url, badges
		FROM launches
		ORDER BY launch_time IS NULL, launch_time ASC`)
	if err != nil {
		return nil, fmt.Errorf("repository: list launches: %w", err)
	}
	defer rows.Close()

	var launches []models.Launch
	for rows.Next() {
		launch, err := scanLaunch(rows)
		if err != nil {
			return nil, err
		}
		launches = append(launches, launch)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("repository: iterate launches: %w", err)
	}
	return launches, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanLaunch(row rowScanner) (models.Launch, error) {
	var launch models.Launch
	var launchTime sql.NullString
	var status, badges string

	err := row.Scan(
		&launch.ID, &launch.Name, &launchTime, &status,
		&launch.RocketName, &launch.ProviderName, &launch.LocationName,
		&launch.ImageURL, &launch.ShortDescription, &launch.DetailedDescription,
		&launch.OrbitName, &launch.WikiURL, &badges,
	)
	if err != nil {
		return models.Launch{}, err
	}

	launch.Status = models.LaunchStatus(status)
	if launchTime.Valid {
		if t, err := time.Parse(time.RFC3339, launchTime.String); err == nil {
			launch.LaunchTime = &t
		}
	}
	if badges != "" && badges != "null" {
		if err := json.Unmarshal([]byte(badges), &launch.Badges); err != nil {
			return models.Launch{}, fmt.Errorf("repository: decode badges for %s: %w", launch.ID, err)
		}
	}
	return launch, nil
}
