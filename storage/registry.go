package storage

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/goccy/go-json"
	"github.com/google/uuid"
	"go.etcd.io/bbolt"

	"car-price-predictor/models"
)

// ErrBundleNotFound is returned when the registry holds no matching bundle.
var ErrBundleNotFound = errors.New("bundle not found")

var bucketBundles = []byte("bundles")

// BundleEntry is the registry's record of one saved bundle.
type BundleEntry struct {
	ID        uuid.UUID      `json:"id"`
	Variant   string         `json:"variant"`
	Version   int            `json:"version"`
	Path      string         `json:"path"`
	Checksum  string         `json:"checksum"`
	SizeBytes int64          `json:"size_bytes"`
	CreatedAt time.Time      `json:"created_at"`
	Metrics   models.Metrics `json:"metrics"`
}

// Name is the bundle's "<variant>_v<version>" stem.
func (e BundleEntry) Name() string {
	return models.BundleName(e.Variant, e.Version)
}

// NewBundleEntry describes a bundle saved at info.Path.
func NewBundleEntry(b *models.Bundle, info BundleFileInfo) BundleEntry {
	return BundleEntry{
		ID:        b.ID,
		Variant:   b.Schema.Variant,
		Version:   b.Version,
		Path:      info.Path,
		Checksum:  info.Checksum,
		SizeBytes: info.SizeBytes,
		CreatedAt: b.CreatedAt,
		Metrics:   b.Eval.Test,
	}
}

// Registry indexes saved bundles by variant and version in a bbolt file.
type Registry struct {
	db *bbolt.DB
}

// OpenRegistry opens (creating if needed) the registry database at path,
// along with its parent directory.
func OpenRegistry(path string) (*Registry, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return nil, fmt.Errorf("registry: create dir for %q: %w", path, err)
	}
	db, err := bbolt.Open(path, 0o600, &bbolt.Options{Timeout: 5 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("registry: open %q: %w", path, err)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucketBundles)
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("registry: init: %w", err)
	}
	return &Registry{db: db}, nil
}

// entryKey sorts by variant, then numerically by version.
func entryKey(variant string, version int) []byte {
	return []byte(fmt.Sprintf("%s/%010d", variant, version))
}

func variantPrefix(variant string) []byte {
	return []byte(variant + "/")
}

// NextVersion returns one more than the highest registered version of variant.
func (r *Registry) NextVersion(variant string) (int, error) {
	latest, err := r.Latest(variant)
	if errors.Is(err, ErrBundleNotFound) {
		return 1, nil
	}
	if err != nil {
		return 0, err
	}
	return latest.Version + 1, nil
}

// Register records e, replacing any entry with the same variant and version.
func (r *Registry) Register(e BundleEntry) error {
	data, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("registry: encode %s: %w", e.Name(), err)
	}
	err = r.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketBundles).Put(entryKey(e.Variant, e.Version), data)
	})
	if err != nil {
		return fmt.Errorf("registry: put %s: %w", e.Name(), err)
	}
	return nil
}

// Latest returns the highest version registered for variant.
func (r *Registry) Latest(variant string) (BundleEntry, error) {
	var (
		entry BundleEntry
		found bool
	)
	prefix := variantPrefix(variant)
	err := r.db.View(func(tx *bbolt.Tx) error {
		c := tx.Bucket(bucketBundles).Cursor()
		var last []byte
		for k, v := c.Seek(prefix); k != nil && bytes.HasPrefix(k, prefix); k, v = c.Next() {
			last = v
		}
		if last == nil {
			return nil
		}
		found = true
		return json.Unmarshal(last, &entry)
	})
	if err != nil {
		return BundleEntry{}, fmt.Errorf("registry: latest %s: %w", variant, err)
	}
	if !found {
		return BundleEntry{}, fmt.Errorf("registry: variant %q: %w", variant, ErrBundleNotFound)
	}
	return entry, nil
}

// Get returns the entry with the given id.
func (r *Registry) Get(id uuid.UUID) (BundleEntry, error) {
	all, err := r.List("")
	if err != nil {
		return BundleEntry{}, err
	}
	for _, e := range all {
		if e.ID == id {
			return e, nil
		}
	}
	return BundleEntry{}, fmt.Errorf("registry: id %s: %w", id, ErrBundleNotFound)
}

// List returns entries for variant, or every entry when variant is empty,
// newest first.
func (r *Registry) List(variant string) ([]BundleEntry, error) {
	var out []BundleEntry
	err := r.db.View(func(tx *bbolt.Tx) error {
		c := tx.Bucket(bucketBundles).Cursor()
		var k, v []byte
		var prefix []byte
		if variant == "" {
			k, v = c.First()
		} else {
			prefix = variantPrefix(variant)
			k, v = c.Seek(prefix)
		}
		for ; k != nil && bytes.HasPrefix(k, prefix); k, v = c.Next() {
			var e BundleEntry
			if err := json.Unmarshal(v, &e); err != nil {
				return fmt.Errorf("decode %s: %w", k, err)
			}
			out = append(out, e)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("registry: list: %w", err)
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}

// Close releases the database file.
func (r *Registry) Close() error {
	return r.db.Close()
}
