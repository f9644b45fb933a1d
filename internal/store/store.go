package store

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/rand"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/complyflow/complyflow/internal/models"
)

// ErrNotFound is returned, wrapped with the missing key, when a scan does not exist.
var ErrNotFound = errors.New("not found")

// Supported drivers for Open.
const (
	DriverSQLite = "sqlite"
	DriverBolt   = "bolt"
)

// ScanListFilter specifies filters for listing scans. A zero Limit means no limit.
type ScanListFilter struct {
	URL    string
	Type   models.ScanType
	Limit  int
	Offset int
}

// Repository defines the persistence interface for scan rows.
type Repository interface {
	CreateScan(ctx context.Context, scan *models.Scan) error
	GetScan(ctx context.Context, id string) (*models.Scan, error)
	GetLatestScan(ctx context.Context, url string) (*models.Scan, error)
	ListScans(ctx context.Context, filter ScanListFilter) ([]*models.Scan, error)
	DeleteScan(ctx context.Context, id string) error
	Statistics(ctx context.Context) (*models.ScanStatistics, error)

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}

// Open returns the repository for driver at path. It does not migrate.
func Open(driver, path string) (Repository, error) {
	switch driver {
	case "", DriverSQLite:
		return NewSQLiteStore(path)
	case DriverBolt:
		return NewBoltStore(path)
	default:
		return nil, fmt.Errorf("unknown db driver %q (want %s or %s)", driver, DriverSQLite, DriverBolt)
	}
}

var (
	entropyMu sync.Mutex
	entropy   = ulid.Monotonic(rand.New(rand.NewSource(time.Now().UnixNano())), 0)
)

// newULID generates a ULID for t. IDs generated within the same millisecond
// still sort in creation order.
func newULID(t time.Time) string {
	entropyMu.Lock()
	defer entropyMu.Unlock()
	return ulid.MustNew(ulid.Timestamp(t), entropy).String()
}

// prepare fills the id and creation time of a new row.
func prepare(scan *models.Scan) {
	if scan.CreatedAt.IsZero() {
		scan.CreatedAt = time.Now().UTC()
	}
	if scan.ID == "" {
		scan.ID = newULID(scan.CreatedAt)
	}
	if scan.Type == "" {
		scan.Type = models.ScanTypeAccessibility
	}
}

func notFound(id string) error {
	return fmt.Errorf("scan %w: %s", ErrNotFound, id)
}

func round2(f float64) float64 {
	return math.Round(f*100) / 100
}
