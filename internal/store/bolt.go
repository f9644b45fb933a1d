package store

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"time"

	"go.etcd.io/bbolt"

	"github.com/complyflow/complyflow/internal/models"
)

const (
	bucketScans    = "scans"
	bucketURLIndex = "url_index"
)

// BoltStore implements Repository on a single bbolt file. Scans are keyed by
// ULID, so cursor order is creation order; the url index maps each URL to
// its scan ids.
type BoltStore struct {
	db *bbolt.DB
}

// NewBoltStore opens a bbolt database at path, creating it if needed.
func NewBoltStore(path string) (*BoltStore, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}
	db, err := bbolt.Open(path, 0600, &bbolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("open bolt database: %w", err)
	}
	return &BoltStore{db: db}, nil
}

// Migrate creates the buckets.
func (s *BoltStore) Migrate(_ context.Context) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		for _, name := range []string{bucketScans, bucketURLIndex} {
			if _, err := tx.CreateBucketIfNotExists([]byte(name)); err != nil {
				return fmt.Errorf("create bucket %s: %w", name, err)
			}
		}
		return nil
	})
}

// Close closes the bbolt database.
func (s *BoltStore) Close() error {
	return s.db.Close()
}

func (s *BoltStore) CreateScan(_ context.Context, scan *models.Scan) error {
	prepare(scan)
	data, err := json.Marshal(scan)
	if err != nil {
		return fmt.Errorf("encode scan: %w", err)
	}

	err = s.db.Update(func(tx *bbolt.Tx) error {
		scans, index, err := buckets(tx)
		if err != nil {
			return err
		}
		if err := scans.Put([]byte(scan.ID), data); err != nil {
			return err
		}

		ids, err := indexIDs(index, scan.URL)
		if err != nil {
			return err
		}
		if !slices.Contains(ids, scan.ID) {
			ids = append(ids, scan.ID)
		}
		return putIndex(index, scan.URL, ids)
	})
	if err != nil {
		return fmt.Errorf("create scan: %w", err)
	}
	return nil
}

func (s *BoltStore) GetScan(_ context.Context, id string) (*models.Scan, error) {
	var scan *models.Scan
	err := s.db.View(func(tx *bbolt.Tx) error {
		scans, _, err := buckets(tx)
		if err != nil {
			return err
		}
		data := scans.Get([]byte(id))
		if data == nil {
			return notFound(id)
		}
		scan = &models.Scan{}
		return json.Unmarshal(data, scan)
	})
	if err != nil {
		return nil, err
	}
	return scan, nil
}

func (s *BoltStore) GetLatestScan(ctx context.Context, url string) (*models.Scan, error) {
	scans, err := s.ListScans(ctx, ScanListFilter{URL: url, Limit: 1})
	if err != nil {
		return nil, err
	}
	if len(scans) == 0 {
		return nil, notFound(url)
	}
	return scans[0], nil
}

// ListScans returns scans newest first.
func (s *BoltStore) ListScans(_ context.Context, filter ScanListFilter) ([]*models.Scan, error) {
	var out []*models.Scan
	skipped := 0

	keep := func(data []byte) (bool, error) {
		var scan models.Scan
		if err := json.Unmarshal(data, &scan); err != nil {
			return false, err
		}
		if filter.Type != "" && scan.Type != filter.Type {
			return true, nil
		}
		if skipped < filter.Offset {
			skipped++
			return true, nil
		}
		out = append(out, &scan)
		return filter.Limit <= 0 || len(out) < filter.Limit, nil
	}

	err := s.db.View(func(tx *bbolt.Tx) error {
		scans, index, err := buckets(tx)
		if err != nil {
			return err
		}

		if filter.URL != "" {
			ids, err := indexIDs(index, filter.URL)
			if err != nil {
				return err
			}
			for i := len(ids) - 1; i >= 0; i-- {
				data := scans.Get([]byte(ids[i]))
				if data == nil {
					continue
				}
				more, err := keep(data)
				if err != nil {
					return err
				}
				if !more {
					break
				}
			}
			return nil
		}

		c := scans.Cursor()
		for k, v := c.Last(); k != nil; k, v = c.Prev() {
			more, err := keep(v)
			if err != nil {
				return err
			}
			if !more {
				break
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("list scans: %w", err)
	}
	return out, nil
}

func (s *BoltStore) DeleteScan(_ context.Context, id string) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		scans, index, err := buckets(tx)
		if err != nil {
			return err
		}
		data := scans.Get([]byte(id))
		if data == nil {
			return notFound(id)
		}
		var scan models.Scan
		if err := json.Unmarshal(data, &scan); err != nil {
			return fmt.Errorf("decode scan %s: %w", id, err)
		}
		if err := scans.Delete([]byte(id)); err != nil {
			return fmt.Errorf("delete scan: %w", err)
		}

		ids, err := indexIDs(index, scan.URL)
		if err != nil {
			return err
		}
		ids = slices.DeleteFunc(ids, func(s string) bool { return s == id })
		if len(ids) == 0 {
			return index.Delete([]byte(scan.URL))
		}
		return putIndex(index, scan.URL, ids)
	})
}

func (s *BoltStore) Statistics(_ context.Context) (*models.ScanStatistics, error) {
	st := &models.ScanStatistics{}
	err := s.db.View(func(tx *bbolt.Tx) error {
		scans, index, err := buckets(tx)
		if err != nil {
			return err
		}
		if err := index.ForEach(func(_, _ []byte) error {
			st.UniqueURLs++
			return nil
		}); err != nil {
			return err
		}

		var scoreSum float64
		return scans.ForEach(func(_, v []byte) error {
			var scan models.Scan
			if err := json.Unmarshal(v, &scan); err != nil {
				return err
			}
			st.TotalScans++
			st.CriticalTotal += scan.CriticalCount
			st.WarningTotal += scan.WarningCount
			st.NoticeTotal += scan.NoticeCount
			scoreSum += scan.Score()
			if st.LastScanAt == nil || scan.CreatedAt.After(*st.LastScanAt) {
				t := scan.CreatedAt
				st.LastScanAt = &t
			}
			st.AverageScore = round2(scoreSum / float64(st.TotalScans))
			return nil
		})
	})
	if err != nil {
		return nil, fmt.Errorf("scan statistics: %w", err)
	}
	return st, nil
}

func buckets(tx *bbolt.Tx) (scans, index *bbolt.Bucket, err error) {
	scans = tx.Bucket([]byte(bucketScans))
	index = tx.Bucket([]byte(bucketURLIndex))
	if scans == nil || index == nil {
		return nil, nil, fmt.Errorf("bolt store not migrated")
	}
	return scans, index, nil
}

func indexIDs(index *bbolt.Bucket, url string) ([]string, error) {
	var ids []string
	if data := index.Get([]byte(url)); data != nil {
		if err := json.Unmarshal(data, &ids); err != nil {
			return nil, fmt.Errorf("decode url index: %w", err)
		}
	}
	return ids, nil
}

func putIndex(index *bbolt.Bucket, url string, ids []string) error {
	data, err := json.Marshal(ids)
	if err != nil {
		return err
	}
	return index.Put([]byte(url), data)
}
