package imagestudio

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// Storage persists a downloaded image. Implementations can wrap object
// stores (GCS, S3, etc.) with this interface.
type Storage interface {
	// SaveFile saves data under path and returns where it can be found.
	// The contentType is the image's MIME type (e.g., "image/jpeg").
	SaveFile(ctx context.Context, data []byte, path string, contentType string) (string, error)
}

// StorageResult describes a saved download.
type StorageResult struct {
	// URL is where the image can be accessed
	URL string

	// Path is the storage path/key where the image was saved
	Path string

	// Size is the number of bytes saved
	Size int
}

// Download is the current result packaged as a file.
type Download struct {
	FileName string
	MIMEType string
	Data     []byte
}

// DownloadFileName names a download after the instant it was requested.
func DownloadFileName(t time.Time) string {
	return "ai-image-" + strconv.FormatInt(t.UnixMilli(), 10) + ".jpg"
}

// Download packages the current result. Only available once a generation
// has succeeded.
func (s *Session) Download() (Download, error) {
	s.mu.Lock()
	uri := s.result
	resulted := s.status == StatusResulted
	now := s.now()
	s.mu.Unlock()

	if !resulted || uri == "" {
		return Download{}, ErrNoResult
	}

	mimeType, data, err := ParseDataURI(uri)
	if err != nil {
		return Download{}, fmt.Errorf("decode result: %w", err)
	}
	return Download{
		FileName: DownloadFileName(now),
		MIMEType: mimeType,
		Data:     data,
	}, nil
}

// SaveDownload writes the current result to storage under its download name.
func (s *Session) SaveDownload(ctx context.Context, storage Storage) (StorageResult, error) {
	if storage == nil {
		return StorageResult{}, ErrStorageNotConfigured
	}

	d, err := s.Download()
	if err != nil {
		return StorageResult{}, err
	}

	url, err := storage.SaveFile(ctx, d.Data, d.FileName, d.MIMEType)
	if err != nil {
		s.logger.ErrorContext(ctx, "saving download failed", "file", d.FileName, "error", err)
		return StorageResult{}, err
	}

	s.logger.InfoContext(ctx, "download saved", "file", d.FileName, "url", url, "bytes", len(d.Data))
	return StorageResult{URL: url, Path: d.FileName, Size: len(d.Data)}, nil
}

// FileStorage saves files under a local directory.
type FileStorage struct {
	basePath string
}

var _ Storage = (*FileStorage)(nil)

// NewFileStorage creates basePath if needed.
func NewFileStorage(basePath string) (*FileStorage, error) {
	basePath = strings.TrimSpace(basePath)
	if basePath == "" {
		return nil, errors.New("storage: base path is required")
	}
	if err := os.MkdirAll(basePath, 0o755); err != nil {
		return nil, fmt.Errorf("storage: ensure base path: %w", err)
	}
	return &FileStorage{basePath: basePath}, nil
}

// BasePath returns the configured root directory.
func (s *FileStorage) BasePath() string {
	return s.basePath
}

// SaveFile writes data at the cleaned relative path and returns the full
// file path. Paths cannot escape the base directory.
func (s *FileStorage) SaveFile(ctx context.Context, data []byte, path string, _ string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	key, err := sanitizeKey(path)
	if err != nil {
		return "", err
	}
	full := filepath.Join(s.basePath, filepath.FromSlash(key))
	if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
		return "", fmt.Errorf("storage: ensure directory: %w", err)
	}
	if err := os.WriteFile(full, data, 0o644); err != nil {
		return "", fmt.Errorf("storage: write file: %w", err)
	}
	return full, nil
}

// sanitizeKey normalizes a key and prevents escaping the storage root.
func sanitizeKey(key string) (string, error) {
	key = strings.TrimSpace(key)
	if key == "" {
		return "", errors.New("storage: key is required")
	}
	key = strings.ReplaceAll(key, "\\", "/")
	key = strings.TrimLeft(strings.TrimPrefix(key, "./"), "/")
	cleaned := filepath.ToSlash(filepath.Clean(key))
	if cleaned == "." || cleaned == ".." || strings.HasPrefix(cleaned, "../") {
		return "", errors.New("storage: invalid key")
	}
	return cleaned, nil
}
