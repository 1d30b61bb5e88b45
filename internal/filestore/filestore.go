package filestore

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// Store keeps a local copy of every ingested source file, one file per
// document id under a per-agent directory. When a document is tombstoned
// its copy is removed together with the database rows.
type Store struct {
	dir string
}

func New(dir string) (*Store, error) {
	if dir == "" {
		return nil, fmt.Errorf("file store dir is required")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	return &Store{dir: dir}, nil
}

func validKey(key string) bool {
	return key != "" && !strings.ContainsAny(key, "/\\") && key != "." && key != ".."
}

func (s *Store) path(agentID, docID string) (string, error) {
	if !validKey(agentID) || !validKey(docID) {
		return "", fmt.Errorf("invalid file key")
	}
	return filepath.Join(s.dir, agentID, docID), nil
}

// Save copies the file at srcPath into the store, replacing any previous
// copy for the same document.
func (s *Store) Save(agentID, docID, srcPath string) error {
	dst, err := s.path(agentID, docID)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return err
	}
	src, err := os.Open(srcPath)
	if err != nil {
		return err
	}
	defer src.Close()
	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, src); err != nil {
		out.Close()
		os.Remove(dst)
		return err
	}
	return out.Close()
}

func (s *Store) Open(agentID, docID string) (io.ReadCloser, error) {
	path, err := s.path(agentID, docID)
	if err != nil {
		return nil, err
	}
	return os.Open(path)
}

// Delete removes the stored copy; absent files are not an error.
func (s *Store) Delete(agentID, docID string) error {
	path, err := s.path(agentID, docID)
	if err != nil {
		return err
	}
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}
