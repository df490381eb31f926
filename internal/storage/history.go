// Package storage keeps a history of finished image jobs and recordings.
package storage

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/cuongbtq/niceshot/internal/domain"
	"github.com/cuongbtq/niceshot/shared/database"
)

// Schema creates the history tables. It is portable across postgres and sqlite3.
var Schema = []string{
	`CREATE TABLE IF NOT EXISTS image_jobs (
		job_id        BIGINT NOT NULL,
		width         INTEGER NOT NULL,
		height        INTEGER NOT NULL,
		path          TEXT NOT NULL,
		status        TEXT NOT NULL,
		error_message TEXT NOT NULL DEFAULT '',
		created_at    TIMESTAMP NOT NULL,
		started_at    TIMESTAMP NOT NULL,
		finished_at   TIMESTAMP NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_image_jobs_finished_at ON image_jobs (finished_at)`,
	`CREATE TABLE IF NOT EXISTS recordings (
		session_id      TEXT PRIMARY KEY,
		path            TEXT NOT NULL,
		width           INTEGER NOT NULL,
		height          INTEGER NOT NULL,
		fps             DOUBLE PRECISION NOT NULL,
		bitrate_kbps    INTEGER NOT NULL,
		frames_captured BIGINT NOT NULL,
		frames_encoded  BIGINT NOT NULL,
		frames_dropped  BIGINT NOT NULL,
		encode_errors   BIGINT NOT NULL,
		status          TEXT NOT NULL,
		started_at      TIMESTAMP NOT NULL,
		finished_at     TIMESTAMP NOT NULL
	)`,
}

// StatusCount is the number of recorded jobs with one status
type StatusCount struct {
	Status domain.JobStatus `json:"status" db:"status"`
	Count  int64            `json:"count" db:"count"`
}

// Store handles all history database operations
type Store struct {
	client *database.Client
	logger *slog.Logger
}

// NewStore creates a new Store instance
func NewStore(client *database.Client, logger *slog.Logger) *Store {
	return &Store{
		client: client,
		logger: logger,
	}
}

// HealthCheck verifies the history database answers queries
func (s *Store) HealthCheck(ctx context.Context) error {
	return s.client.HealthCheck(ctx)
}

// Migrate creates the history tables if they do not exist
func (s *Store) Migrate(ctx context.Context) error {
	if err := s.client.Migrate(ctx, Schema); err != nil {
		return fmt.Errorf("failed to migrate history schema: %w", err)
	}
	return nil
}

// SaveJob records a finished job
func (s *Store) SaveJob(ctx context.Context, info domain.JobInfo) error {
	query := `
		INSERT INTO image_jobs (job_id, width, height, path, status, error_message, created_at, started_at, finished_at)
		VALUES (:job_id, :width, :height, :path, :status, :error_message, :created_at, :started_at, :finished_at)
	`
	if err := s.client.NamedExecContext(ctx, query, info); err != nil {
		return fmt.Errorf("failed to save job %d: %w", info.ID, err)
	}
	return nil
}

// SaveRecording records a finalized recording
func (s *Store) SaveRecording(ctx context.Context, summary domain.RecordingSummary) error {
	query := `
		INSERT INTO recordings (session_id, path, width, height, fps, bitrate_kbps, frames_captured,
			frames_encoded, frames_dropped, encode_errors, status, started_at, finished_at)
		VALUES (:session_id, :path, :width, :height, :fps, :bitrate_kbps, :frames_captured,
			:frames_encoded, :frames_dropped, :encode_errors, :status, :started_at, :finished_at)
	`
	if err := s.client.NamedExecContext(ctx, query, summary); err != nil {
		return fmt.Errorf("failed to save recording %s: %w", summary.SessionID, err)
	}
	return nil
}

// RecentJobs returns the most recently finished jobs, newest first
func (s *Store) RecentJobs(ctx context.Context, limit int) ([]domain.JobInfo, error) {
	query := `
		SELECT job_id, width, height, path, status, error_message, created_at, started_at, finished_at
		FROM image_jobs
		ORDER BY finished_at DESC
		LIMIT ?
	`
	var jobs []domain.JobInfo
	if err := s.client.SelectContext(ctx, &jobs, query, limit); err != nil {
		return nil, err
	}
	return jobs, nil
}

// RecentRecordings returns the most recently finished recordings, newest first
func (s *Store) RecentRecordings(ctx context.Context, limit int) ([]domain.RecordingSummary, error) {
	query := `
		SELECT session_id, path, width, height, fps, bitrate_kbps, frames_captured, frames_encoded,
			frames_dropped, encode_errors, status, started_at, finished_at
		FROM recordings
		ORDER BY finished_at DESC
		LIMIT ?
	`
	var recordings []domain.RecordingSummary
	if err := s.client.SelectContext(ctx, &recordings, query, limit); err != nil {
		return nil, err
	}
	return recordings, nil
}

// JobStatusCounts returns how many recorded jobs ended in each status
func (s *Store) JobStatusCounts(ctx context.Context) ([]StatusCount, error) {
	query := `SELECT status, COUNT(*) AS count FROM image_jobs GROUP BY status ORDER BY status`

	var counts []StatusCount
	if err := s.client.SelectContext(ctx, &counts, query); err != nil {
		return nil, err
	}
	return counts, nil
}
