package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/wricardo/vinecheck/game/level"
)

var (
	ErrLevelsDirNotFound = errors.New("levels directory does not exist")
	ErrLevelNotFound     = errors.New("level not found")
	ErrUnparseable       = errors.New("level file is not a valid level document")
	ErrInvalidName       = errors.New("invalid level name")
)

// LevelPrefix and LevelExt identify level files during discovery
const (
	LevelPrefix = "level_"
	LevelExt    = ".json"
)

// cachedFile holds the bytes of a level file along with the stat used to
// detect changes made outside the store
type cachedFile struct {
	data    []byte
	modTime time.Time
	size    int64
}

// Store handles level file discovery, loading, write-back and backups
type Store struct {
	dir   string
	files map[string]*cachedFile
	mu    sync.RWMutex

	// now is replaced in tests to get stable backup names
	now func() time.Time
}

// New creates a store rooted at dir
func New(dir string) (*Store, error) {
	info, err := os.Stat(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrLevelsDirNotFound, dir)
		}
		return nil, fmt.Errorf("failed to stat levels directory: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("%w: %s is not a directory", ErrLevelsDirNotFound, dir)
	}

	return &Store{
		dir:   dir,
		files: make(map[string]*cachedFile),
		now:   time.Now,
	}, nil
}

// Dir returns the root directory of the store
func (s *Store) Dir() string {
	return s.dir
}

// Discover walks the levels directory and returns the names of every
// level_*.json file, relative to the root and sorted
func (s *Store) Discover() ([]string, error) {
	var names []string
	err := filepath.WalkDir(s.dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !IsLevelFile(d.Name()) {
			return nil
		}
		rel, err := filepath.Rel(s.dir, path)
		if err != nil {
			return err
		}
		names = append(names, filepath.ToSlash(rel))
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to walk levels directory: %w", err)
	}

	sort.Strings(names)
	return names, nil
}

// IsLevelFile reports whether a file name follows the level_*.json pattern
func IsLevelFile(name string) bool {
	return strings.HasPrefix(name, LevelPrefix) && strings.HasSuffix(name, LevelExt)
}

// Path resolves a level name to its file path. The .json extension is added
// when missing; names escaping the root are rejected.
func (s *Store) Path(name string) (string, error) {
	if name == "" {
		return "", fmt.Errorf("%w: empty name", ErrInvalidName)
	}
	if !strings.HasSuffix(name, LevelExt) {
		name += LevelExt
	}
	clean := filepath.Clean(filepath.FromSlash(name))
	if filepath.IsAbs(clean) || clean == ".." || strings.HasPrefix(clean, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("%w: %s", ErrInvalidName, name)
	}
	return filepath.Join(s.dir, clean), nil
}

// ReadRaw returns the bytes of a level file, served from cache while the
// file is unchanged on disk
func (s *Store) ReadRaw(name string) ([]byte, error) {
	path, err := s.Path(name)
	if err != nil {
		return nil, err
	}

	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrLevelNotFound, name)
		}
		return nil, fmt.Errorf("failed to stat level file: %w", err)
	}

	s.mu.RLock()
	cached, exists := s.files[path]
	s.mu.RUnlock()
	if exists && cached.modTime.Equal(info.ModTime()) && cached.size == info.Size() {
		return cached.data, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrLevelNotFound, name)
		}
		return nil, fmt.Errorf("failed to read level file: %w", err)
	}

	s.mu.Lock()
	s.files[path] = &cachedFile{data: data, modTime: info.ModTime(), size: info.Size()}
	s.mu.Unlock()

	return data, nil
}

// Load reads and parses a level. Every call returns a fresh document so
// callers may annotate it freely.
func (s *Store) Load(name string) (*level.Document, error) {
	data, err := s.ReadRaw(name)
	if err != nil {
		return nil, err
	}

	doc, err := level.Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrUnparseable, name, err)
	}
	return doc, nil
}

// Save writes the document back atomically: the JSON goes to a temporary file
// in the same directory, is synced, then renamed over the original. Readers
// only ever see the old or the new content.
func (s *Store) Save(name string, doc *level.Document) error {
	if doc == nil {
		return fmt.Errorf("document cannot be nil")
	}

	path, err := s.Path(name)
	if err != nil {
		return err
	}

	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal level: %w", err)
	}
	data = append(data, '\n')

	if err := writeFileAtomic(path, data, 0644); err != nil {
		return err
	}

	// Refresh cache
	info, err := os.Stat(path)
	s.mu.Lock()
	if err == nil {
		s.files[path] = &cachedFile{data: data, modTime: info.ModTime(), size: info.Size()}
	} else {
		delete(s.files, path)
	}
	s.mu.Unlock()

	return nil
}

// Backup copies the named levels into backupRoot/backup_YYYYMMDD_HHMMSS,
// keeping their relative paths. It returns the directory it created.
func (s *Store) Backup(names []string, backupRoot string) (string, error) {
	if len(names) == 0 {
		return "", fmt.Errorf("no levels provided for backup")
	}

	backupDir := filepath.Join(backupRoot, "backup_"+s.now().Format("20060102_150405"))
	if err := os.MkdirAll(backupDir, 0755); err != nil {
		return "", fmt.Errorf("failed to create backup directory: %w", err)
	}

	for _, name := range names {
		src, err := s.Path(name)
		if err != nil {
			return "", err
		}
		data, err := os.ReadFile(src)
		if err != nil {
			if os.IsNotExist(err) {
				continue
			}
			return "", fmt.Errorf("failed to read %s: %w", src, err)
		}

		rel, err := filepath.Rel(s.dir, src)
		if err != nil {
			return "", fmt.Errorf("failed to resolve %s: %w", src, err)
		}
		dst := filepath.Join(backupDir, rel)
		if err := os.MkdirAll(filepath.Dir(dst), 0755); err != nil {
			return "", fmt.Errorf("failed to create backup directory: %w", err)
		}
		if err := os.WriteFile(dst, data, 0644); err != nil {
			return "", fmt.Errorf("failed to write backup %s: %w", dst, err)
		}
	}

	return backupDir, nil
}

// writeFileAtomic replaces path with data through a synced temporary file
func writeFileAtomic(path string, data []byte, perm os.FileMode) (err error) {
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer func() {
		if err != nil {
			os.Remove(tmpName)
		}
	}()

	if _, err = tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write temp file: %w", err)
	}
	if err = tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to sync temp file: %w", err)
	}
	if err = tmp.Close(); err != nil {
		return fmt.Errorf("failed to close temp file: %w", err)
	}
	if err = os.Chmod(tmpName, perm); err != nil {
		return fmt.Errorf("failed to set permissions: %w", err)
	}
	if err = os.Rename(tmpName, path); err != nil {
		return fmt.Errorf("failed to replace level file: %w", err)
	}
	return nil
}
