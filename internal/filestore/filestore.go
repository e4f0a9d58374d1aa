package filestore

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"regexp"

	"github.com/google/uuid"
	"github.com/klauspost/compress/zstd"
	"golang.org/x/sync/singleflight"
)

var (
	ErrIntegrity  = errors.New("file content does not match its sha256")
	ErrUnresolved = errors.New("file reference has neither content nor url")
)

var sha256Re = regexp.MustCompile(`^[0-9a-f]{64}$`)

// Ref points at one test file. Content wins over the cache, the cache wins
// over the URL.
type Ref struct {
	Sha256  string
	URL     string
	Content *string
}

// Store caches files on disk under their sha256.
type Store struct {
	fileDir string
	tmpDir  string
	client  *http.Client
	logger  *slog.Logger
	group   singleflight.Group
}

func New(dir string, client *http.Client, logger *slog.Logger) (*Store, error) {
	if client == nil {
		client = http.DefaultClient
	}
	if logger == nil {
		logger = slog.Default()
	}
	s := &Store{
		fileDir: filepath.Join(dir, "files"),
		tmpDir:  filepath.Join(dir, "tmp"),
		client:  client,
		logger:  logger.With("component", "filestore"),
	}
	for _, d := range []string{s.fileDir, s.tmpDir} {
		if err := os.MkdirAll(d, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create file store directory: %w", err)
		}
	}
	return s, nil
}

// Get returns the file's contents, downloading it at most once per key even
// under concurrent callers.
func (s *Store) Get(ctx context.Context, ref Ref) ([]byte, error) {
	if ref.Content != nil {
		return []byte(*ref.Content), nil
	}
	if ref.Sha256 == "" {
		if ref.URL == "" {
			return nil, ErrUnresolved
		}
		return s.fetch(ctx, ref.URL)
	}
	if !sha256Re.MatchString(ref.Sha256) {
		return nil, fmt.Errorf("invalid sha256 key %q", ref.Sha256)
	}

	path := filepath.Join(s.fileDir, ref.Sha256)
	if data, err := os.ReadFile(path); err == nil {
		return data, nil
	}
	if ref.URL == "" {
		return nil, fmt.Errorf("file %s is not cached and has no url: %w", ref.Sha256, ErrUnresolved)
	}

	v, err, _ := s.group.Do(ref.Sha256, func() (any, error) {
		return s.download(ctx, ref.Sha256, ref.URL)
	})
	if err != nil {
		return nil, err
	}
	return v.([]byte), nil
}

// Prefetch warms the cache in the background. Failures are logged; a later
// Get retries them.
func (s *Store) Prefetch(ctx context.Context, refs ...Ref) {
	for _, ref := range refs {
		if ref.Content != nil || ref.Sha256 == "" || ref.URL == "" {
			continue
		}
		go func(ref Ref) {
			if _, err := s.Get(ctx, ref); err != nil {
				s.logger.Warn("prefetch failed", "sha256", ref.Sha256, "error", err)
			}
		}(ref)
	}
}

func (s *Store) download(ctx context.Context, key, rawURL string) ([]byte, error) {
	path := filepath.Join(s.fileDir, key)
	if data, err := os.ReadFile(path); err == nil {
		return data, nil
	}

	s.logger.Debug("downloading file", "sha256", key, "url", rawURL)
	data, err := s.fetch(ctx, rawURL)
	if err != nil {
		return nil, err
	}

	sum := sha256.Sum256(data)
	if got := hex.EncodeToString(sum[:]); got != key {
		return nil, fmt.Errorf("%w: want %s, got %s", ErrIntegrity, key, got)
	}

	tmp := filepath.Join(s.tmpDir, key+"."+uuid.NewString())
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return nil, fmt.Errorf("failed to write file %s: %w", key, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return nil, fmt.Errorf("failed to move file %s to file store: %w", key, err)
	}
	return data, nil
}

func (s *Store) fetch(ctx context.Context, rawURL string) ([]byte, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse url %s: %w", rawURL, err)
	}
	if u.Scheme != "https" && u.Scheme != "http" {
		return nil, fmt.Errorf("invalid url scheme: %s", u.Scheme)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to download file %s: %w", rawURL, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("failed to download file %s: status %s", rawURL, resp.Status)
	}

	var body io.Reader = resp.Body
	if resp.Header.Get("Content-Type") == "application/zstd" || filepath.Ext(u.Path) == ".zst" {
		d, err := zstd.NewReader(resp.Body)
		if err != nil {
			return nil, fmt.Errorf("failed to create zstd reader: %w", err)
		}
		defer d.Close()
		body = d
	}

	data, err := io.ReadAll(body)
	if err != nil {
		return nil, fmt.Errorf("failed to read file %s: %w", rawURL, err)
	}
	return data, nil
}
