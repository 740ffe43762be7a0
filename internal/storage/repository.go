package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"account-health-alerts/internal/alert"
	"account-health-alerts/internal/snapshot"
)

var (
	// ErrNotConfigured indicates the storage pool was not initialised.
	ErrNotConfigured = errors.New("storage: pool not configured")
	// ErrAlertNotFound indicates the addressed alert does not exist for the account.
	ErrAlertNotFound = errors.New("storage: alert not found")
)

const (
	getLatestSnapshotSQL = `SELECT id, account_id, kind, region, country, payload, created_at
    FROM snapshots
    WHERE account_id = $1 AND kind = $2 AND region = $3 AND country = $4
    ORDER BY created_at DESC
    LIMIT 1;`

	getRecentSnapshotsSQL = `SELECT id, account_id, kind, region, country, payload, created_at
    FROM snapshots
    WHERE account_id = $1 AND kind = $2 AND region = $3 AND country = $4
    ORDER BY created_at DESC
    LIMIT $5;`

	insertAlertSQL = `INSERT INTO alerts (
        id, account_id, region, country, kind, status, viewed, message, payload, metadata
    ) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
    RETURNING created_at, updated_at;`

	latestAlertSQL = `SELECT id::text, account_id, region, country, kind, status, viewed, message, payload, metadata, created_at, updated_at
    FROM alerts
    WHERE account_id = $1 AND kind = $2 AND region = $3 AND country = $4
    ORDER BY created_at DESC
    LIMIT 1;`

	getAlertSQL = `SELECT id::text, account_id, region, country, kind, status, viewed, message, payload, metadata, created_at, updated_at
    FROM alerts
    WHERE id = $1 AND account_id = $2;`

	markViewedSQL = `UPDATE alerts
    SET viewed = TRUE, updated_at = NOW()
    WHERE id = $1 AND account_id = $2
    RETURNING id::text, account_id, region, country, kind, status, viewed, message, payload, metadata, created_at, updated_at;`

	listRecentAlertsSQL = `SELECT id::text, account_id, region, country, kind, status, viewed, message, payload, metadata, created_at, updated_at
    FROM alerts
    ORDER BY created_at DESC
    LIMIT $1;`

	countAlertsPerDaySQL = `SELECT date_trunc('day', created_at AT TIME ZONE 'UTC') AS day, COUNT(*)
    FROM alerts
    WHERE created_at >= $1 AND created_at < $2
    GROUP BY day
    ORDER BY day;`

	deleteAlertsBeforeSQL = `DELETE FROM alerts WHERE created_at < $1;`

	listEligibleAccountsSQL = `SELECT id, email, first_name, subscribed, verified, opted_out, regions
    FROM accounts
    WHERE verified = TRUE
      AND opted_out = FALSE
      AND jsonb_array_length(regions) > 0
    ORDER BY id;`

	tryAdvisoryLockSQL = `SELECT pg_try_advisory_lock($1);`
	advisoryUnlockSQL  = `SELECT pg_advisory_unlock($1);`
)

// SnapshotStore defines read access to collected snapshots.
type SnapshotStore interface {
	GetLatestSnapshot(ctx context.Context, accountID string, kind snapshot.Kind, region, country string) (*snapshot.Snapshot, error)
	GetRecentSnapshots(ctx context.Context, accountID string, kind snapshot.Kind, region, country string, n int) ([]snapshot.Snapshot, error)
}

// AlertWriter covers the alert operations detectors perform.
type AlertWriter interface {
	CreateAlert(ctx context.Context, a alert.Alert) (alert.Alert, error)
	LatestAlert(ctx context.Context, accountID string, kind alert.Kind, region, country string) (*alert.Alert, error)
}

// AlertReader covers the read path consumed by the UI layer and CLI.
type AlertReader interface {
	ListAlerts(ctx context.Context, accountID string, filter AlertFilter, limit, skip int) ([]alert.Alert, int64, error)
	GetAlert(ctx context.Context, id uuid.UUID, accountID string) (*alert.Alert, error)
	MarkAlertViewed(ctx context.Context, id uuid.UUID, accountID string) (*alert.Alert, error)
	ListRecentAlerts(ctx context.Context, limit int) ([]alert.Alert, error)
	CountAlertsPerDay(ctx context.Context, from, to time.Time) ([]DayCount, error)
}

// AlertStore aggregates the full alert surface.
type AlertStore interface {
	AlertWriter
	AlertReader
	DeleteAlertsBefore(ctx context.Context, olderThan time.Time) (int64, error)
}

// AccountSource enumerates accounts eligible for a detection run.
type AccountSource interface {
	ListEligibleAccounts(ctx context.Context) ([]Account, error)
}

// AdvisoryLocker exposes advisory lock helpers.
type AdvisoryLocker interface {
	TryAdvisoryLock(ctx context.Context, key int64) (unlock func(), acquired bool, err error)
}

// Store backs snapshots, alerts, and account enumeration with PostgreSQL.
type Store struct {
	pool *pgxpool.Pool
}

// NewStore wires a pgx pool into a Store.
func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// Close releases the underlying pool resources.
func (s *Store) Close() {
	if s == nil || s.pool == nil {
		return
	}
	s.pool.Close()
}

func (s *Store) getPool() (*pgxpool.Pool, error) {
	if s == nil || s.pool == nil {
		return nil, ErrNotConfigured
	}
	return s.pool, nil
}

// TryAdvisoryLock attempts to acquire a postgres advisory lock and returns a release func.
func (s *Store) TryAdvisoryLock(ctx context.Context, key int64) (func(), bool, error) {
	pool, err := s.getPool()
	if err != nil {
		return nil, false, err
	}

	conn, err := pool.Acquire(ctx)
	if err != nil {
		return nil, false, fmt.Errorf("acquire connection: %w", err)
	}

	var acquired bool
	if err := conn.QueryRow(ctx, tryAdvisoryLockSQL, key).Scan(&acquired); err != nil {
		conn.Release()
		return nil, false, fmt.Errorf("try advisory lock: %w", err)
	}
	if !acquired {
		conn.Release()
		return nil, false, nil
	}

	unlock := func() {
		ctxUnlock, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if _, err := conn.Exec(ctxUnlock, advisoryUnlockSQL, key); err != nil {
			// unlock best effort; log omitted in storage package
		}
		conn.Release()
	}
	return unlock, true, nil
}

// GetLatestSnapshot returns the most recent snapshot of a kind, or nil when none exist.
func (s *Store) GetLatestSnapshot(ctx context.Context, accountID string, kind snapshot.Kind, region, country string) (*snapshot.Snapshot, error) {
	pool, err := s.getPool()
	if err != nil {
		return nil, err
	}

	row := pool.QueryRow(ctx, getLatestSnapshotSQL, accountID, string(kind), region, country)
	snap, scanErr := scanSnapshot(row)
	if scanErr != nil {
		if errors.Is(scanErr, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get latest snapshot: %w", scanErr)
	}
	return &snap, nil
}

// GetRecentSnapshots returns up to n snapshots ordered newest-first.
func (s *Store) GetRecentSnapshots(ctx context.Context, accountID string, kind snapshot.Kind, region, country string, n int) ([]snapshot.Snapshot, error) {
	pool, err := s.getPool()
	if err != nil {
		return nil, err
	}

	rows, queryErr := pool.Query(ctx, getRecentSnapshotsSQL, accountID, string(kind), region, country, n)
	if queryErr != nil {
		return nil, fmt.Errorf("get recent snapshots: %w", queryErr)
	}
	defer rows.Close()

	snaps := make([]snapshot.Snapshot, 0, n)
	for rows.Next() {
		snap, scanErr := scanSnapshot(rows)
		if scanErr != nil {
			return nil, scanErr
		}
		snaps = append(snaps, snap)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return snaps, nil
}

// CreateAlert persists a detector finding set as a new alert record.
func (s *Store) CreateAlert(ctx context.Context, a alert.Alert) (alert.Alert, error) {
	pool, err := s.getPool()
	if err != nil {
		return alert.Alert{}, err
	}
	if a.Payload == nil || a.Payload.Count() == 0 {
		return alert.Alert{}, alert.ErrEmptyPayload
	}

	payload, err := json.Marshal(a.Payload)
	if err != nil {
		return alert.Alert{}, fmt.Errorf("marshal alert payload: %w", err)
	}

	var metadata []byte
	if len(a.Metadata) > 0 {
		metadata, err = json.Marshal(a.Metadata)
		if err != nil {
			return alert.Alert{}, fmt.Errorf("marshal alert metadata: %w", err)
		}
	}

	row := pool.QueryRow(ctx, insertAlertSQL,
		a.ID.String(),
		a.AccountID,
		a.Region,
		a.Country,
		string(a.Kind),
		string(a.Status),
		a.Viewed,
		a.Message,
		payload,
		metadata,
	)
	if scanErr := row.Scan(&a.CreatedAt, &a.UpdatedAt); scanErr != nil {
		return alert.Alert{}, fmt.Errorf("insert alert: %w", scanErr)
	}
	return a, nil
}

// LatestAlert returns the most recent alert of a kind for a marketplace, or nil.
func (s *Store) LatestAlert(ctx context.Context, accountID string, kind alert.Kind, region, country string) (*alert.Alert, error) {
	pool, err := s.getPool()
	if err != nil {
		return nil, err
	}

	row := pool.QueryRow(ctx, latestAlertSQL, accountID, string(kind), region, country)
	a, scanErr := scanAlert(row)
	if scanErr != nil {
		if errors.Is(scanErr, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("latest alert: %w", scanErr)
	}
	return &a, nil
}

// ListAlerts lists an account's alerts matching the filter, newest first, with the total count.
func (s *Store) ListAlerts(ctx context.Context, accountID string, filter AlertFilter, limit, skip int) ([]alert.Alert, int64, error) {
	pool, err := s.getPool()
	if err != nil {
		return nil, 0, err
	}

	where := []string{"account_id = $1"}
	args := []any{accountID}
	next := 2
	addClause := func(column, value string) {
		where = append(where, fmt.Sprintf("%s = $%d", column, next))
		args = append(args, value)
		next++
	}
	if filter.Region != "" {
		addClause("region", filter.Region)
	}
	if filter.Country != "" {
		addClause("country", filter.Country)
	}
	if filter.Status != "" {
		addClause("status", string(filter.Status))
	}
	if filter.Kind != "" {
		addClause("kind", string(filter.Kind))
	}
	clause := strings.Join(where, " AND ")

	var total int64
	countSQL := "SELECT COUNT(*) FROM alerts WHERE " + clause
	if scanErr := pool.QueryRow(ctx, countSQL, args...).Scan(&total); scanErr != nil {
		return nil, 0, fmt.Errorf("count alerts: %w", scanErr)
	}

	listSQL := fmt.Sprintf(`SELECT id::text, account_id, region, country, kind, status, viewed, message, payload, metadata, created_at, updated_at
        FROM alerts WHERE %s ORDER BY created_at DESC LIMIT $%d OFFSET $%d`, clause, next, next+1)
	args = append(args, limit, skip)

	rows, queryErr := pool.Query(ctx, listSQL, args...)
	if queryErr != nil {
		return nil, 0, fmt.Errorf("list alerts: %w", queryErr)
	}
	defer rows.Close()

	alerts := make([]alert.Alert, 0, limit)
	for rows.Next() {
		a, scanErr := scanAlert(rows)
		if scanErr != nil {
			return nil, 0, scanErr
		}
		alerts = append(alerts, a)
	}
	if rows.Err() != nil {
		return nil, 0, rows.Err()
	}
	return alerts, total, nil
}

// GetAlert fetches one alert scoped to its owning account.
func (s *Store) GetAlert(ctx context.Context, id uuid.UUID, accountID string) (*alert.Alert, error) {
	pool, err := s.getPool()
	if err != nil {
		return nil, err
	}

	row := pool.QueryRow(ctx, getAlertSQL, id.String(), accountID)
	a, scanErr := scanAlert(row)
	if scanErr != nil {
		if errors.Is(scanErr, pgx.ErrNoRows) {
			return nil, ErrAlertNotFound
		}
		return nil, fmt.Errorf("get alert: %w", scanErr)
	}
	return &a, nil
}

// MarkAlertViewed flags an alert as read on behalf of the UI layer.
func (s *Store) MarkAlertViewed(ctx context.Context, id uuid.UUID, accountID string) (*alert.Alert, error) {
	pool, err := s.getPool()
	if err != nil {
		return nil, err
	}

	row := pool.QueryRow(ctx, markViewedSQL, id.String(), accountID)
	a, scanErr := scanAlert(row)
	if scanErr != nil {
		if errors.Is(scanErr, pgx.ErrNoRows) {
			return nil, ErrAlertNotFound
		}
		return nil, fmt.Errorf("mark alert viewed: %w", scanErr)
	}
	return &a, nil
}

// ListRecentAlerts lists the most recent alerts across all accounts.
func (s *Store) ListRecentAlerts(ctx context.Context, limit int) ([]alert.Alert, error) {
	pool, err := s.getPool()
	if err != nil {
		return nil, err
	}

	rows, queryErr := pool.Query(ctx, listRecentAlertsSQL, limit)
	if queryErr != nil {
		return nil, fmt.Errorf("list recent alerts: %w", queryErr)
	}
	defer rows.Close()

	alerts := make([]alert.Alert, 0, limit)
	for rows.Next() {
		a, scanErr := scanAlert(rows)
		if scanErr != nil {
			return nil, scanErr
		}
		alerts = append(alerts, a)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return alerts, nil
}

// CountAlertsPerDay aggregates alert creation counts per UTC day in a window.
func (s *Store) CountAlertsPerDay(ctx context.Context, from, to time.Time) ([]DayCount, error) {
	pool, err := s.getPool()
	if err != nil {
		return nil, err
	}

	rows, queryErr := pool.Query(ctx, countAlertsPerDaySQL, from, to)
	if queryErr != nil {
		return nil, fmt.Errorf("count alerts per day: %w", queryErr)
	}
	defer rows.Close()

	counts := make([]DayCount, 0)
	for rows.Next() {
		var dc DayCount
		if scanErr := rows.Scan(&dc.Day, &dc.Count); scanErr != nil {
			return nil, scanErr
		}
		counts = append(counts, dc)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return counts, nil
}

// DeleteAlertsBefore deletes historical alerts and returns the removed count.
func (s *Store) DeleteAlertsBefore(ctx context.Context, olderThan time.Time) (int64, error) {
	pool, err := s.getPool()
	if err != nil {
		return 0, err
	}
	tag, execErr := pool.Exec(ctx, deleteAlertsBeforeSQL, olderThan)
	if execErr != nil {
		return 0, fmt.Errorf("delete alerts before: %w", execErr)
	}
	return tag.RowsAffected(), nil
}

// ListEligibleAccounts enumerates verified, not opted-out accounts with at least one marketplace.
func (s *Store) ListEligibleAccounts(ctx context.Context) ([]Account, error) {
	pool, err := s.getPool()
	if err != nil {
		return nil, err
	}

	rows, queryErr := pool.Query(ctx, listEligibleAccountsSQL)
	if queryErr != nil {
		return nil, fmt.Errorf("list eligible accounts: %w", queryErr)
	}
	defer rows.Close()

	accounts := make([]Account, 0)
	for rows.Next() {
		var acct Account
		var regions []byte
		if scanErr := rows.Scan(
			&acct.ID,
			&acct.Email,
			&acct.FirstName,
			&acct.Subscribed,
			&acct.Verified,
			&acct.OptedOut,
			&regions,
		); scanErr != nil {
			return nil, scanErr
		}
		if len(regions) > 0 {
			if err := json.Unmarshal(regions, &acct.Regions); err != nil {
				return nil, fmt.Errorf("decode account regions: %w", err)
			}
		}
		accounts = append(accounts, acct)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return accounts, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSnapshot(row rowScanner) (snapshot.Snapshot, error) {
	var snap snapshot.Snapshot
	var kind string
	var payload []byte
	if err := row.Scan(
		&snap.ID,
		&snap.AccountID,
		&kind,
		&snap.Region,
		&snap.Country,
		&payload,
		&snap.CreatedAt,
	); err != nil {
		return snapshot.Snapshot{}, err
	}
	snap.Kind = snapshot.Kind(kind)
	snap.Payload = payload
	return snap, nil
}

func scanAlert(row rowScanner) (alert.Alert, error) {
	var (
		a        alert.Alert
		idStr    string
		kind     string
		status   string
		payload  []byte
		metadata []byte
	)

	if err := row.Scan(
		&idStr,
		&a.AccountID,
		&a.Region,
		&a.Country,
		&kind,
		&status,
		&a.Viewed,
		&a.Message,
		&payload,
		&metadata,
		&a.CreatedAt,
		&a.UpdatedAt,
	); err != nil {
		return alert.Alert{}, err
	}

	id, err := uuid.Parse(idStr)
	if err != nil {
		return alert.Alert{}, fmt.Errorf("parse alert id: %w", err)
	}
	a.ID = id
	a.Kind = alert.Kind(kind)
	a.Status = alert.Status(status)

	a.Payload, err = alert.DecodePayload(a.Kind, payload)
	if err != nil {
		return alert.Alert{}, err
	}
	if len(metadata) > 0 {
		if err := json.Unmarshal(metadata, &a.Metadata); err != nil {
			return alert.Alert{}, fmt.Errorf("decode alert metadata: %w", err)
		}
	}
	return a, nil
}
