package store

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/complyflow/complyflow/internal/models"

	_ "modernc.org/sqlite"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// SQLiteStore implements Repository using modernc.org/sqlite (pure Go, no CGO).
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens (or creates) a SQLite database at the given path.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	// One writer at a time; the scheduler and the HTTP API may share a file.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("enable WAL mode: %w", err)
	}

	if _, err := db.Exec("PRAGMA busy_timeout=5000"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("set busy timeout: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

// Migrate runs all embedded SQL migration files in order.
func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS schema_migrations (
		filename TEXT PRIMARY KEY,
		applied_at DATETIME NOT NULL DEFAULT (datetime('now'))
	)`)
	if err != nil {
		return fmt.Errorf("create migrations table: %w", err)
	}

	entries, err := migrationsFS.ReadDir("migrations")
	if err != nil {
		return fmt.Errorf("read migrations dir: %w", err)
	}

	sort.Slice(entries, func(i, j int) bool {
		return entries[i].Name() < entries[j].Name()
	})

	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()

		var count int
		err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM schema_migrations WHERE filename = ?", name).Scan(&count)
		if err != nil {
			return fmt.Errorf("check migration %s: %w", name, err)
		}
		if count > 0 {
			continue
		}

		data, err := migrationsFS.ReadFile("migrations/" + name)
		if err != nil {
			return fmt.Errorf("read migration %s: %w", name, err)
		}
		if _, err := s.db.ExecContext(ctx, string(data)); err != nil {
			return fmt.Errorf("apply migration %s: %w", name, err)
		}
		if _, err := s.db.ExecContext(ctx, "INSERT INTO schema_migrations (filename) VALUES (?)", name); err != nil {
			return fmt.Errorf("record migration %s: %w", name, err)
		}
	}

	return nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

const scanColumns = `id, url, scan_type, critical_count, warning_count, notice_count, results, created_at`

func (s *SQLiteStore) CreateScan(ctx context.Context, scan *models.Scan) error {
	prepare(scan)

	results, err := json.Marshal(scan.Result)
	if err != nil {
		return fmt.Errorf("encode scan results: %w", err)
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO scans (`+scanColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		scan.ID, scan.URL, string(scan.Type), scan.CriticalCount, scan.WarningCount, scan.NoticeCount,
		string(results), scan.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("create scan: %w", err)
	}
	return nil
}

func (s *SQLiteStore) GetScan(ctx context.Context, id string) (*models.Scan, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+scanColumns+` FROM scans WHERE id = ?`, id)
	scan, err := scanRow(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, notFound(id)
	}
	if err != nil {
		return nil, fmt.Errorf("get scan: %w", err)
	}
	return scan, nil
}

func (s *SQLiteStore) GetLatestScan(ctx context.Context, url string) (*models.Scan, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+scanColumns+` FROM scans WHERE url = ? ORDER BY id DESC LIMIT 1`, url)
	scan, err := scanRow(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, notFound(url)
	}
	if err != nil {
		return nil, fmt.Errorf("get latest scan: %w", err)
	}
	return scan, nil
}

// ListScans returns scans newest first. ULIDs sort by creation time.
func (s *SQLiteStore) ListScans(ctx context.Context, filter ScanListFilter) ([]*models.Scan, error) {
	query := `SELECT ` + scanColumns + ` FROM scans`
	var conditions []string
	var args []any

	if filter.URL != "" {
		conditions = append(conditions, "url = ?")
		args = append(args, filter.URL)
	}
	if filter.Type != "" {
		conditions = append(conditions, "scan_type = ?")
		args = append(args, string(filter.Type))
	}
	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}
	query += " ORDER BY id DESC"

	if filter.Limit > 0 || filter.Offset > 0 {
		limit := filter.Limit
		if limit <= 0 {
			limit = -1
		}
		query += " LIMIT ? OFFSET ?"
		args = append(args, limit, filter.Offset)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list scans: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var scans []*models.Scan
	for rows.Next() {
		scan, err := scanRow(rows)
		if err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}
		scans = append(scans, scan)
	}
	return scans, rows.Err()
}

func (s *SQLiteStore) DeleteScan(ctx context.Context, id string) error {
	result, err := s.db.ExecContext(ctx, "DELETE FROM scans WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("delete scan: %w", err)
	}
	n, _ := result.RowsAffected()
	if n == 0 {
		return notFound(id)
	}
	return nil
}

func (s *SQLiteStore) Statistics(ctx context.Context) (*models.ScanStatistics, error) {
	st := &models.ScanStatistics{}
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*), COUNT(DISTINCT url),
			COALESCE(SUM(critical_count), 0), COALESCE(SUM(warning_count), 0), COALESCE(SUM(notice_count), 0),
			COALESCE(AVG(json_extract(results, '$.score')), 0)
		FROM scans`,
	).Scan(&st.TotalScans, &st.UniqueURLs, &st.CriticalTotal, &st.WarningTotal, &st.NoticeTotal, &st.AverageScore)
	if err != nil {
		return nil, fmt.Errorf("scan statistics: %w", err)
	}
	st.AverageScore = round2(st.AverageScore)

	if st.TotalScans > 0 {
		var last models.Scan
		err := s.db.QueryRowContext(ctx, `SELECT created_at FROM scans ORDER BY id DESC LIMIT 1`).Scan(&last.CreatedAt)
		if err != nil {
			return nil, fmt.Errorf("last scan time: %w", err)
		}
		st.LastScanAt = &last.CreatedAt
	}
	return st, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRow(r rowScanner) (*models.Scan, error) {
	scan := &models.Scan{}
	var typ, results string
	if err := r.Scan(&scan.ID, &scan.URL, &typ, &scan.CriticalCount, &scan.WarningCount, &scan.NoticeCount, &results, &scan.CreatedAt); err != nil {
		return nil, err
	}
	scan.Type = models.ScanType(typ)
	if results != "" && results != "null" {
		scan.Result = &models.ScanResult{}
		if err := json.Unmarshal([]byte(results), scan.Result); err != nil {
			return nil, fmt.Errorf("decode scan results %s: %w", scan.ID, err)
		}
	}
	return scan, nil
}
