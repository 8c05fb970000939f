package db

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"go.uber.org/zap"

	"github.com/soaringjerry/psymetrics/internal/api"
	"github.com/soaringjerry/psymetrics/internal/services"
)

type SQLiteStore struct {
	db     *sql.DB
	logger *zap.Logger
}

// Open creates the database file if needed, applies migrations and returns
// a ready store. Close releases the connection.
func Open(path, migrationsDir string, logger *zap.Logger) (*SQLiteStore, error) {
	if path == "" {
		return nil, errors.New("sqlite path is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		logger.Info("creating report database", zap.String("path", path))
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("create sqlite dir: %w", err)
		}
	}

	dsn := fmt.Sprintf("file:%s?cache=shared&_busy_timeout=5000", filepath.ToSlash(path))
	sqlDB, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	if err := RunMigrations(sqlDB, migrationsDir); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	store, err := NewSQLiteStore(sqlDB, logger)
	if err != nil {
		_ = sqlDB.Close()
		return nil, err
	}
	return store, nil
}

func NewSQLiteStore(db *sql.DB, logger *zap.Logger) (*SQLiteStore, error) {
	if db == nil {
		return nil, errors.New("nil db")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
	}
	for _, stmt := range pragmas {
		if _, err := db.Exec(stmt); err != nil {
			return nil, fmt.Errorf("apply sqlite pragma %q: %w", stmt, err)
		}
	}
	return &SQLiteStore{db: db, logger: logger}, nil
}

var _ api.Store = (*SQLiteStore)(nil)

func (s *SQLiteStore) Close() error { return s.db.Close() }

func (s *SQLiteStore) SaveReport(ctx context.Context, r *api.Report) error {
	if r == nil || strings.TrimSpace(r.ID) == "" {
		return errors.New("report id required")
	}
	payload, err := json.Marshal(r.Result)
	if err != nil {
		return fmt.Errorf("encode result: %w", err)
	}
	sum := r.Summary()
	_, err = s.db.ExecContext(ctx, `INSERT INTO reports
      (id, name, created_at, source_digest, record_count, sample_count, item_count, efa_performed, result_json)
      VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
      ON CONFLICT(id) DO UPDATE SET
        name = excluded.name,
        source_digest = excluded.source_digest,
        record_count = excluded.record_count,
        sample_count = excluded.sample_count,
        item_count = excluded.item_count,
        efa_performed = excluded.efa_performed,
        result_json = excluded.result_json`,
		r.ID, r.Name, formatTime(r.CreatedAt), r.SourceDigest, r.RecordCount,
		sum.SampleCount, sum.ItemCount, boolToInt64(sum.EFAPerformed), string(payload))
	if err != nil {
		return fmt.Errorf("insert report %s: %w", r.ID, err)
	}
	return nil
}

func (s *SQLiteStore) GetReport(ctx context.Context, id string) (*api.Report, error) {
	row := s.db.QueryRowContext(ctx, `SELECT id, name, created_at, source_digest, record_count, result_json
      FROM reports WHERE id = ?`, id)
	return s.scanReport(row)
}

func (s *SQLiteStore) FindReportByDigest(ctx context.Context, digest string) (*api.Report, error) {
	row := s.db.QueryRowContext(ctx, `SELECT id, name, created_at, source_digest, record_count, result_json
      FROM reports WHERE source_digest = ? ORDER BY created_at DESC LIMIT 1`, digest)
	return s.scanReport(row)
}

func (s *SQLiteStore) ListReports(ctx context.Context, limit int) ([]api.ReportSummary, error) {
	query := `SELECT id, name, created_at, source_digest, record_count, sample_count, item_count, efa_performed
      FROM reports ORDER BY created_at DESC, id DESC`
	args := []any{}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list reports: %w", err)
	}
	defer rows.Close()

	out := []api.ReportSummary{}
	for rows.Next() {
		var (
			sum     api.ReportSummary
			created string
			efa     int64
		)
		if err := rows.Scan(&sum.ID, &sum.Name, &created, &sum.SourceDigest, &sum.RecordCount, &sum.SampleCount, &sum.ItemCount, &efa); err != nil {
			return nil, fmt.Errorf("scan report summary: %w", err)
		}
		sum.CreatedAt = s.parseTime(created)
		sum.EFAPerformed = int64ToBool(efa)
		out = append(out, sum)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) DeleteReport(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM reports WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete report %s: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete report %s: %w", id, err)
	}
	if n == 0 {
		return api.ErrReportNotFound
	}
	return nil
}

func (s *SQLiteStore) scanReport(row *sql.Row) (*api.Report, error) {
	var (
		r       api.Report
		created string
		payload string
	)
	if err := row.Scan(&r.ID, &r.Name, &created, &r.SourceDigest, &r.RecordCount, &payload); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, api.ErrReportNotFound
		}
		return nil, fmt.Errorf("scan report: %w", err)
	}
	r.CreatedAt = s.parseTime(created)
	var result services.AnalysisResult
	if err := json.Unmarshal([]byte(payload), &result); err != nil {
		return nil, fmt.Errorf("decode result of report %s: %w", r.ID, err)
	}
	r.Result = &result
	return &r, nil
}

// timeLayout is fixed width so created_at sorts lexically.
const timeLayout = "2006-01-02T15:04:05.000000000Z"

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func (s *SQLiteStore) parseTime(v string) time.Time {
	t, err := time.Parse(timeLayout, v)
	if err != nil {
		s.logger.Warn("unparseable report timestamp", zap.String("value", v), zap.Error(err))
		return time.Time{}
	}
	return t
}

func boolToInt64(v bool) int64 {
	if v {
		return 1
	}
	return 0
}

func int64ToBool(v int64) bool { return v != 0 }
