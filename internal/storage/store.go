// ABOUTME: Filesystem store for alert audio: scratch files and persisted saves
// ABOUTME: Owns the scratch and saved directories and unique temp naming
package storage

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

const scratchPrefix = "alert-"

// Store manages the scratch directory for in-flight alert audio and the
// saved directory for alerts flagged save_to_file.
type Store struct {
	scratchDir string
	savedDir   string
}

// New creates both directories if needed and returns the store.
func New(scratchDir, savedDir string) (*Store, error) {
	for _, dir := range []string{scratchDir, savedDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}

	return &Store{scratchDir: scratchDir, savedDir: savedDir}, nil
}

// ScratchPath returns a unique path for one incoming alert payload.
// Concurrent ingests never collide.
func (s *Store) ScratchPath() string {
	name := fmt.Sprintf("%s%s.opus", scratchPrefix, uuid.New().String())
	return filepath.Join(s.scratchDir, name)
}

// SavedPath maps a requested filename into the saved directory. The name is
// flattened to its base so a header cannot escape the directory.
func (s *Store) SavedPath(name string) (string, error) {
	base := filepath.Base(filepath.Clean(name))
	if base == "." || base == ".." || base == string(filepath.Separator) {
		return "", fmt.Errorf("invalid save filename %q", name)
	}
	return filepath.Join(s.savedDir, base), nil
}

// IsScratch reports whether path names a temp file owned by this store.
func (s *Store) IsScratch(path string) bool {
	return filepath.Dir(path) == filepath.Clean(s.scratchDir) &&
		strings.HasPrefix(filepath.Base(path), scratchPrefix)
}

// Exists reports whether path names a regular file.
func (s *Store) Exists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.Mode().IsRegular()
}

// Remove deletes path, ignoring already-gone files.
func (s *Store) Remove(path string) error {
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove %s: %w", path, err)
	}
	return nil
}

// Write stores an in-memory payload at path.
func (s *Store) Write(path string, data []byte) error {
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return nil
}

// Copy duplicates src to dst, used when a scratch payload is also saved.
func (s *Store) Copy(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", src, err)
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", dst, err)
	}

	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		os.Remove(dst)
		return fmt.Errorf("failed to copy to %s: %w", dst, err)
	}

	return out.Close()
}

// Checksum returns the hex SHA-256 of the file at path.
func (s *Store) Checksum(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer f.Close()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", fmt.Errorf("failed to hash %s: %w", path, err)
	}

	return hex.EncodeToString(h.Sum(nil)), nil
}

// SweepScratch removes scratch files left behind by a previous run.
func (s *Store) SweepScratch() int {
	entries, err := os.ReadDir(s.scratchDir)
	if err != nil {
		log.Printf("Scratch sweep failed: %v", err)
		return 0
	}

	removed := 0
	for _, e := range entries {
		if e.IsDir() || !strings.HasPrefix(e.Name(), scratchPrefix) {
			continue
		}
		path := filepath.Join(s.scratchDir, e.Name())
		if err := os.Remove(path); err != nil {
			log.Printf("Failed to remove stale scratch file %s: %v", path, err)
			continue
		}
		removed++
	}

	if removed > 0 {
		log.Printf("Removed %d stale scratch file(s)", removed)
	}
	return removed
}
