// Package store persists benchmark runs in SQLite or PostgreSQL.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/fwojciec/bench"
	benchjson "github.com/fwojciec/bench/json"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"
	_ "modernc.org/sqlite"
)

const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// ErrDuplicateRun indicates a run with the same ID already exists.
var ErrDuplicateRun = errors.New("run already exists")

// sqliteTimeLayout sorts lexicographically in time order.
const sqliteTimeLayout = "2006-01-02T15:04:05.000000000Z"

// Interface compliance check.
var _ bench.RunStore = (*Store)(nil)

// Store implements [bench.RunStore] over database/sql.
type Store struct {
	driver string
	db     *sql.DB
	now    func() time.Time
	// SQLite allows one writer at a time.
	writeMu sync.Mutex
}

// Open opens the store for driver: target is a file path for sqlite and a
// DSN for postgres. Migrations are applied before returning.
func Open(ctx context.Context, driver, target string) (*Store, error) {
	switch strings.ToLower(strings.TrimSpace(driver)) {
	case DriverSQLite:
		return OpenSQLite(ctx, target)
	case DriverPostgres:
		return OpenPostgres(ctx, target)
	default:
		return nil, fmt.Errorf("unsupported storage driver %q: %w", driver, bench.ErrConfig)
	}
}

// OpenSQLite opens or creates the SQLite database at path.
func OpenSQLite(ctx context.Context, path string) (*Store, error) {
	if path == "" {
		return nil, fmt.Errorf("sqlite path cannot be empty: %w", bench.ErrConfig)
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create sqlite directory %q: %w", dir, err)
		}
	}
	db, err := sql.Open("sqlite", "file:"+path+"?_pragma=journal_mode(wal)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("open sqlite database %q: %w", path, err)
	}
	return newStore(ctx, DriverSQLite, db)
}

// OpenPostgres connects to PostgreSQL through the pgx stdlib driver.
func OpenPostgres(ctx context.Context, dsn string) (*Store, error) {
	if strings.TrimSpace(dsn) == "" {
		return nil, fmt.Errorf("postgres dsn cannot be empty: %w", bench.ErrConfig)
	}
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres database: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping postgres database: %w", err)
	}
	return newStore(ctx, DriverPostgres, db)
}

func newStore(ctx context.Context, driver string, db *sql.DB) (*Store, error) {
	if err := applyMigrations(ctx, db, driver); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ensure %s schema: %w", driver, err)
	}
	return &Store{driver: driver, db: db, now: time.Now}, nil
}

// Close closes the database.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// SaveRun inserts r. Empty ID and CreatedAt are filled in and written back
// to r.
func (s *Store) SaveRun(ctx context.Context, r *bench.Run) error {
	if r == nil {
		return nil
	}
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	if r.CreatedAt.IsZero() {
		r.CreatedAt = s.now()
	}
	r.CreatedAt = r.CreatedAt.UTC()

	records, err := benchjson.MarshalRecords(r.Metrics.Records)
	if err != nil {
		return fmt.Errorf("encode records: %w", err)
	}
	var ttft sql.NullInt64
	if r.Metrics.TTFT != nil {
		ttft = sql.NullInt64{Int64: r.Metrics.TTFT.Microseconds(), Valid: true}
	}
	m := r.Metrics

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	_, err = s.db.ExecContext(ctx, s.rebind(`
INSERT INTO runs (
    id, scenario, strategy, provider, model, created_at,
    num_requests, input_tokens, output_tokens, cache_read_tokens, cache_write_tokens, total_tokens,
    execution_time_us, throughput, estimated_cost_usd, cache_hit_ratio, ttft_us,
    estimated_calls, follow_up_calls, records
) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`),
		r.ID, r.Scenario, m.Strategy, r.Provider, r.Model, s.timeArg(r.CreatedAt),
		m.NumRequests, m.InputTokens, m.OutputTokens, m.CacheReadTokens, m.CacheWriteTokens, m.TotalTokens,
		m.ExecutionTime.Microseconds(), m.Throughput, m.EstimatedCost, m.CacheHitRatio, ttft,
		m.EstimatedCalls, m.FollowUpCalls, string(records),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("save run %s: %w", r.ID, ErrDuplicateRun)
		}
		return fmt.Errorf("save run %s: %w", r.ID, err)
	}
	return nil
}

// ListRuns returns runs newest first.
func (s *Store) ListRuns(ctx context.Context, filter bench.RunFilter) ([]bench.Run, error) {
	query := `
SELECT id, scenario, strategy, provider, model, created_at,
    num_requests, input_tokens, output_tokens, cache_read_tokens, cache_write_tokens, total_tokens,
    execution_time_us, throughput, estimated_cost_usd, cache_hit_ratio, ttft_us,
    estimated_calls, follow_up_calls, records
FROM runs`
	var args []any
	if filter.Scenario != "" {
		query += ` WHERE scenario = ?`
		args = append(args, filter.Scenario)
	}
	query += ` ORDER BY created_at DESC, id`
	if filter.Limit > 0 {
		query += ` LIMIT ` + strconv.Itoa(filter.Limit)
	}

	rows, err := s.db.QueryContext(ctx, s.rebind(query), args...)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var runs []bench.Run
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	return runs, nil
}

func scanRun(rows *sql.Rows) (bench.Run, error) {
	var (
		r         bench.Run
		m         bench.RunMetrics
		created   timeValue
		execUS    int64
		ttft      sql.NullInt64
		recordsJS string
	)
	err := rows.Scan(
		&r.ID, &r.Scenario, &m.Strategy, &r.Provider, &r.Model, &created,
		&m.NumRequests, &m.InputTokens, &m.OutputTokens, &m.CacheReadTokens, &m.CacheWriteTokens, &m.TotalTokens,
		&execUS, &m.Throughput, &m.EstimatedCost, &m.CacheHitRatio, &ttft,
		&m.EstimatedCalls, &m.FollowUpCalls, &recordsJS,
	)
	if err != nil {
		return bench.Run{}, fmt.Errorf("scan run: %w", err)
	}
	records, err := benchjson.UnmarshalRecords([]byte(recordsJS))
	if err != nil {
		return bench.Run{}, fmt.Errorf("decode records of run %s: %w", r.ID, err)
	}
	m.Records = records
	m.ExecutionTime = time.Duration(execUS) * time.Microsecond
	if ttft.Valid {
		d := time.Duration(ttft.Int64) * time.Microsecond
		m.TTFT = &d
	}
	m.Final = true
	r.CreatedAt = created.Time
	r.Metrics = m
	return r, nil
}

func (s *Store) timeArg(t time.Time) any {
	if s.driver == DriverSQLite {
		return t.UTC().Format(sqliteTimeLayout)
	}
	return t.UTC()
}

// rebind rewrites ? placeholders to $n for postgres.
func (s *Store) rebind(query string) string {
	if s.driver != DriverPostgres {
		return query
	}
	var sb strings.Builder
	n := 0
	for _, c := range query {
		if c == '?' {
			n++
			sb.WriteByte('$')
			sb.WriteString(strconv.Itoa(n))
			continue
		}
		sb.WriteRune(c)
	}
	return sb.String()
}

// timeValue scans the created_at column, which is TEXT in SQLite and
// TIMESTAMPTZ in PostgreSQL.
type timeValue struct {
	Time time.Time
}

func (v *timeValue) Scan(src any) error {
	switch t := src.(type) {
	case time.Time:
		v.Time = t.UTC()
		return nil
	case string:
		return v.parse(t)
	case []byte:
		return v.parse(string(t))
	case nil:
		v.Time = time.Time{}
		return nil
	default:
		return fmt.Errorf("unsupported time value %T", src)
	}
}

func (v *timeValue) parse(s string) error {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return fmt.Errorf("parse time %q: %w", s, err)
	}
	v.Time = t.UTC()
	return nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}
