package storage

import (
	"bytes"
	"compress/gzip"
	"crypto/sha256"
	"encoding/gob"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"car-price-predictor/models"
	"car-price-predictor/utils"
)

// ErrChecksumMismatch is returned when a bundle file's payload does not match its recorded checksum.
var ErrChecksumMismatch = errors.New("bundle checksum mismatch")

// BundleExt is the file extension of persisted bundles.
const BundleExt = ".gob.gz"

// BundleFileInfo describes one persisted bundle file.
type BundleFileInfo struct {
	Path      string
	Checksum  string
	SizeBytes int64
	SavedAt   time.Time
}

// storedBundle is the on-disk layout: a small header plus the gzip-compressed
// gob encoding of the bundle. Checksum covers the uncompressed gob bytes.
type storedBundle struct {
	Name           string
	Checksum       string
	SavedAt        time.Time
	CompressedData []byte
}

// BundleStore writes and reads model bundles under one directory.
type BundleStore struct {
	dir    string
	logger *utils.Logger
}

// NewBundleStore creates dir if needed and returns a store rooted there.
func NewBundleStore(dir string, logger *utils.Logger) (*BundleStore, error) {
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, fmt.Errorf("bundle: create dir %q: %w", dir, err)
	}
	return &BundleStore{dir: dir, logger: logger}, nil
}

// Path returns where a bundle with the given name stem is stored.
func (s *BundleStore) Path(name string) string {
	return filepath.Join(s.dir, name+BundleExt)
}

// Save persists b atomically to <dir>/<variant>_v<version>.gob.gz.
func (s *BundleStore) Save(b *models.Bundle) (BundleFileInfo, error) {
	var raw bytes.Buffer
	if err := gob.NewEncoder(&raw).Encode(b); err != nil {
		return BundleFileInfo{}, fmt.Errorf("bundle: encode %s: %w", b.Name(), err)
	}
	sum := sha256.Sum256(raw.Bytes())

	var compressed bytes.Buffer
	gzw := gzip.NewWriter(&compressed)
	if _, err := gzw.Write(raw.Bytes()); err != nil {
		return BundleFileInfo{}, fmt.Errorf("bundle: compress: %w", err)
	}
	if err := gzw.Close(); err != nil {
		return BundleFileInfo{}, fmt.Errorf("bundle: compress: %w", err)
	}

	stored := storedBundle{
		Name:           b.Name(),
		Checksum:       hex.EncodeToString(sum[:]),
		SavedAt:        time.Now().UTC(),
		CompressedData: compressed.Bytes(),
	}

	path := s.Path(b.Name())
	tmp, err := os.CreateTemp(s.dir, ".bundle-*")
	if err != nil {
		return BundleFileInfo{}, fmt.Errorf("bundle: create temp: %w", err)
	}
	defer os.Remove(tmp.Name())

	if err := gob.NewEncoder(tmp).Encode(&stored); err != nil {
		tmp.Close()
		return BundleFileInfo{}, fmt.Errorf("bundle: write %s: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		return BundleFileInfo{}, fmt.Errorf("bundle: write %s: %w", path, err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return BundleFileInfo{}, fmt.Errorf("bundle: rename to %s: %w", path, err)
	}

	info := BundleFileInfo{
		Path:      path,
		Checksum:  stored.Checksum,
		SizeBytes: int64(compressed.Len()),
		SavedAt:   stored.SavedAt,
	}
	s.logger.Info("[bundle] Saved %s (%d bytes, sha256 %s)", path, info.SizeBytes, info.Checksum[:12])
	return info, nil
}

// Load reads and verifies the bundle file at path.
func (s *BundleStore) Load(path string) (*models.Bundle, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("bundle: open %q: %w", path, err)
	}
	defer f.Close()

	var stored storedBundle
	if err := gob.NewDecoder(f).Decode(&stored); err != nil {
		return nil, fmt.Errorf("bundle: decode header %q: %w", path, err)
	}

	gzr, err := gzip.NewReader(bytes.NewReader(stored.CompressedData))
	if err != nil {
		return nil, fmt.Errorf("bundle: decompress %q: %w", path, err)
	}
	raw, err := io.ReadAll(gzr)
	if err != nil {
		return nil, fmt.Errorf("bundle: decompress %q: %w", path, err)
	}

	sum := sha256.Sum256(raw)
	if hex.EncodeToString(sum[:]) != stored.Checksum {
		return nil, fmt.Errorf("bundle: %q: %w", path, ErrChecksumMismatch)
	}

	var b models.Bundle
	if err := gob.NewDecoder(bytes.NewReader(raw)).Decode(&b); err != nil {
		return nil, fmt.Errorf("bundle: decode %q: %w", path, err)
	}
	s.logger.Debug("[bundle] Loaded %s (%s)", b.Name(), b.ID)
	return &b, nil
}
