// Package store maps citing-document identifiers to NXML files on disk
package store

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/ppiankov/retracite/internal/extract"
	"github.com/ppiankov/retracite/internal/match"
)

// ErrInvalidID is returned for identifiers that cannot name a file
var ErrInvalidID = errors.New("invalid document id")

// Store is a directory of <PMCID><suffix> documents
type Store struct {
	dir    string
	suffix string
}

// New creates a store rooted at dir; an empty suffix means ".nxml"
func New(dir, suffix string) *Store {
	if suffix == "" {
		suffix = ".nxml"
	}
	return &Store{dir: dir, suffix: suffix}
}

// Dir returns the store's root directory
func (s *Store) Dir() string {
	return s.dir
}

// Path returns where the document for id lives
func (s *Store) Path(id string) (string, error) {
	id = strings.TrimSpace(id)
	if id == "" || strings.ContainsAny(id, `/\`) || id == "." || id == ".." {
		return "", fmt.Errorf("%w: %q", ErrInvalidID, id)
	}
	return filepath.Join(s.dir, id+s.suffix), nil
}

// Exists reports whether a non-empty document is stored for id
func (s *Store) Exists(id string) bool {
	path, err := s.Path(id)
	if err != nil {
		return false
	}
	info, err := os.Stat(path)
	return err == nil && info.Mode().IsRegular() && info.Size() > 0
}

// Version identifies the stored revision of id's document by size and
// modification time. It is "" when no document is stored.
func (s *Store) Version(id string) string {
	path, err := s.Path(id)
	if err != nil {
		return ""
	}
	info, err := os.Stat(path)
	if err != nil || !info.Mode().IsRegular() {
		return ""
	}
	return strconv.FormatInt(info.Size(), 10) + "-" + strconv.FormatInt(info.ModTime().UnixNano(), 10)
}

// Put writes data as the document for id, replacing any existing file.
// The write goes through a temp file so readers never see a partial document.
func (s *Store) Put(id string, data []byte) error {
	path, err := s.Path(id)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return fmt.Errorf("create store dir: %w", err)
	}

	tmp, err := os.CreateTemp(s.dir, "."+id+".*")
	if err != nil {
		return fmt.Errorf("create temp document: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmp.Name())
		return fmt.Errorf("write %s: %w", id, err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmp.Name())
		return fmt.Errorf("close %s: %w", id, err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		_ = os.Remove(tmp.Name())
		return fmt.Errorf("store %s: %w", id, err)
	}
	return nil
}

// Open returns a lazily parsed document handle for id. A missing file
// surfaces as extract.ErrNotFound from Paragraphs.
func (s *Store) Open(id string) (match.Document, error) {
	path, err := s.Path(id)
	if err != nil {
		return nil, err
	}
	return fileDocument(path), nil
}

// fileDocument parses its NXML file on every Paragraphs call
type fileDocument string

func (d fileDocument) Paragraphs() ([]string, error) {
	return extract.ParagraphsFromFile(string(d))
}
