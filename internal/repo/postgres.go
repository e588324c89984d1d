/* Copyright (c) 2025 Brad Jones
 * SPDX-License-Identifier: BSD-3-Clause */
package repo

import (
	"context"
	"errors"
	"time"

	"github.com/bradnjones/gitlab-metrics-tracker-sub002/internal/config"
	"github.com/bradnjones/gitlab-metrics-tracker-sub002/internal/domain"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
)

var ErrNotFound = errors.New("metric not found")

type DB struct {
	Pool *pgxpool.Pool
	log  zerolog.Logger
}

func MustOpen(ctx context.Context, cfg config.Config, log zerolog.Logger) *DB {
	pool, err := pgxpool.New(ctx, cfg.DBDSN)
	if err != nil {
		log.Fatal().Err(err).Msg("db connect failed")
	}
	ctx2, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := pool.Ping(ctx2); err != nil {
		log.Fatal().Err(err).Msg("db ping failed")
	}
	return &DB{Pool: pool, log: log}
}

func (d *DB) Close() { d.Pool.Close() }

type Repository struct {
	db  *DB
	log zerolog.Logger
}

func NewRepository(d *DB, log zerolog.Logger) *Repository { return &Repository{db: d, log: log} }

func (r *Repository) TryAdvisoryLock(ctx context.Context, key int64) (bool, error) {
	var ok bool
	err := r.db.Pool.QueryRow(ctx, "SELECT pg_try_advisory_lock($1)", key).Scan(&ok)
	return ok, err
}

func (r *Repository) AdvisoryUnlock(ctx context.Context, key int64) error {
	var ok bool
	err := r.db.Pool.QueryRow(ctx, "SELECT pg_advisory_unlock($1)", key).Scan(&ok)
	if !ok && err == nil {
		return errors.New("advisory unlock returned false")
	}
	return err
}

// EnsureSchema creates the metrics table on startup. One row per iteration;
// the scalar columns are what dashboards query, raw keeps the full fetched
// dataset for audit.
func (r *Repository) EnsureSchema(ctx context.Context) error {
	const q = `
        CREATE TABLE IF NOT EXISTS metrics (
            iteration_id     TEXT PRIMARY KEY,
            title            TEXT NOT NULL DEFAULT '',
            start_date       TIMESTAMPTZ NOT NULL,
            due_date         TIMESTAMPTZ NOT NULL,
            velocity_points  DOUBLE PRECISION NOT NULL DEFAULT 0,
            velocity_stories INT NOT NULL DEFAULT 0,
            throughput       INT NOT NULL DEFAULT 0,
            cycle_time       JSONB NOT NULL DEFAULT '{}',
            lead_time        JSONB NOT NULL DEFAULT '{}',
            deploy_freq      JSONB NOT NULL DEFAULT '{}',
            mttr             JSONB NOT NULL DEFAULT '{}',
            cfr              JSONB NOT NULL DEFAULT '{}',
            issue_count      INT NOT NULL DEFAULT 0,
            merge_count      INT NOT NULL DEFAULT 0,
            incident_count   INT NOT NULL DEFAULT 0,
            raw              JSONB,
            created_at       TIMESTAMPTZ NOT NULL DEFAULT now(),
            updated_at       TIMESTAMPTZ NOT NULL DEFAULT now()
        )`
	_, err := r.db.Pool.Exec(ctx, q)
	return err
}

func (r *Repository) SaveMetric(ctx context.Context, m domain.Metric) error {
	const q = `
        INSERT INTO metrics(iteration_id, title, start_date, due_date,
            velocity_points, velocity_stories, throughput,
            cycle_time, lead_time, deploy_freq, mttr, cfr,
            issue_count, merge_count, incident_count, raw)
        VALUES($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16)
        ON CONFLICT (iteration_id) DO UPDATE SET
            title=EXCLUDED.title,
            start_date=EXCLUDED.start_date,
            due_date=EXCLUDED.due_date,
            velocity_points=EXCLUDED.velocity_points,
            velocity_stories=EXCLUDED.velocity_stories,
            throughput=EXCLUDED.throughput,
            cycle_time=EXCLUDED.cycle_time,
            lead_time=EXCLUDED.lead_time,
            deploy_freq=EXCLUDED.deploy_freq,
            mttr=EXCLUDED.mttr,
            cfr=EXCLUDED.cfr,
            issue_count=EXCLUDED.issue_count,
            merge_count=EXCLUDED.merge_count,
            incident_count=EXCLUDED.incident_count,
            raw=EXCLUDED.raw,
            updated_at=now()`
	_, err := r.db.Pool.Exec(ctx, q,
		m.IterationID, m.Title, m.StartDate, m.DueDate,
		m.Velocity.Points, m.Velocity.Stories, m.Throughput,
		m.CycleTime, m.LeadTime, m.DeployFreq, m.MTTR, m.CFR,
		m.IssueCount, m.MergeCount, m.IncidentCount, m.Raw)
	return err
}

func (r *Repository) GetMetric(ctx context.Context, iterationID string) (domain.Metric, error) {
	const q = `
        SELECT iteration_id, title, start_date, due_date,
            velocity_points, velocity_stories, throughput,
            cycle_time, lead_time, deploy_freq, mttr, cfr,
            issue_count, merge_count, incident_count, created_at, updated_at
        FROM metrics WHERE iteration_id=$1`
	m, err := scanMetric(r.db.Pool.QueryRow(ctx, q, iterationID))
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Metric{}, ErrNotFound
	}
	return m, err
}

func (r *Repository) ListMetrics(ctx context.Context) ([]domain.Metric, error) {
	const q = `
        SELECT iteration_id, title, start_date, due_date,
            velocity_points, velocity_stories, throughput,
            cycle_time, lead_time, deploy_freq, mttr, cfr,
            issue_count, merge_count, incident_count, created_at, updated_at
        FROM metrics ORDER BY start_date DESC`
	rows, err := r.db.Pool.Query(ctx, q)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []domain.Metric
	for rows.Next() {
		m, err := scanMetric(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

func scanMetric(row pgx.Row) (domain.Metric, error) {
	var m domain.Metric
	err := row.Scan(&m.IterationID, &m.Title, &m.StartDate, &m.DueDate,
		&m.Velocity.Points, &m.Velocity.Stories, &m.Throughput,
		&m.CycleTime, &m.LeadTime, &m.DeployFreq, &m.MTTR, &m.CFR,
		&m.IssueCount, &m.MergeCount, &m.IncidentCount, &m.CreatedAt, &m.UpdatedAt)
	return m, err
}
