// Package storage saves uploaded attachments on local disk. Files are
// served back under /uploads; no third-party media service is involved.
package storage

import (
	"fmt"
	"io"
	"mime/multipart"
	"os"
	"path/filepath"

	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"
)

// SavedFile describes one stored upload.
type SavedFile struct {
	FileName    string
	URL         string
	ContentType string
	SizeBytes   int64
}

// LocalStore writes uploads into a single directory with random names.
type LocalStore struct {
	dir string
}

// NewLocalStore creates the upload directory if needed.
func NewLocalStore(dir string) (*LocalStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create upload dir: %w", err)
	}
	return &LocalStore{dir: dir}, nil
}

// Save stores one multipart file and returns its metadata. The content type
// is sniffed from the stored bytes, not taken from the client.
func (s *LocalStore) Save(header *multipart.FileHeader) (SavedFile, error) {
	src, err := header.Open()
	if err != nil {
		return SavedFile{}, err
	}
	defer src.Close()

	name := uuid.NewString() + filepath.Ext(header.Filename)
	path := filepath.Join(s.dir, name)

	dst, err := os.Create(path)
	if err != nil {
		return SavedFile{}, err
	}
	defer dst.Close()

	size, err := io.Copy(dst, src)
	if err != nil {
		os.Remove(path)
		return SavedFile{}, err
	}

	contentType := ""
	if detected, err := mimetype.DetectFile(path); err == nil {
		contentType = detected.String()
	}

	return SavedFile{
		FileName:    header.Filename,
		URL:         "/uploads/" + name,
		ContentType: contentType,
		SizeBytes:   size,
	}, nil
}

// Dir returns the backing directory, for static file serving.
func (s *LocalStore) Dir() string {
	return s.dir
}
