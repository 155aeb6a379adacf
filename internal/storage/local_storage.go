package storage

import (
	"context"
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"echoes/internal/config"
)

// LocalStorage persists files to the local filesystem. Signed URLs are
// HMAC-stamped links served by the application's own file handler.
type LocalStorage struct {
	baseDir    string
	publicBase string
	signSecret []byte
	now        func() time.Time
}

// NewLocalStorage creates a LocalStorage instance. The directory is created if
// it does not exist.
func NewLocalStorage(cfg config.Config) (*LocalStorage, error) {
	baseDir := strings.TrimSpace(cfg.StorageLocalDir)
	if baseDir == "" {
		baseDir = "datas/media"
	}
	if err := os.MkdirAll(baseDir, 0o755); err != nil {
		return nil, fmt.Errorf("create storage dir: %w", err)
	}

	secret := strings.TrimSpace(cfg.StorageSignSecret)
	if secret == "" {
		return nil, errors.New("storage: missing sign secret for local storage")
	}

	publicBase := strings.TrimRight(strings.TrimSpace(cfg.StoragePublicBaseURL), "/")
	if publicBase == "" {
		publicBase = "/files"
	}

	return &LocalStorage{
		baseDir:    baseDir,
		publicBase: publicBase,
		signSecret: []byte(secret),
		now:        time.Now,
	}, nil
}

// LocalBaseDir returns the root directory used for storing files.
func (s *LocalStorage) LocalBaseDir() string {
	return s.baseDir
}

// Save writes the provided bytes to disk and returns the object key.
func (s *LocalStorage) Save(ctx context.Context, data []byte, opts SaveOptions) (string, error) {
	if len(data) == 0 {
		return "", errors.New("empty payload")
	}
	select {
	case <-ctx.Done():
		return "", ctx.Err()
	default:
	}

	key := resolveKey(opts)
	absPath := filepath.Join(s.baseDir, filepath.FromSlash(key))

	if opts.SkipIfExists {
		if _, err := os.Stat(absPath); err == nil {
			return key, nil
		}
	}

	if err := os.MkdirAll(filepath.Dir(absPath), 0o755); err != nil {
		return "", fmt.Errorf("create dir: %w", err)
	}
	if err := os.WriteFile(absPath, data, 0o644); err != nil {
		return "", fmt.Errorf("write file: %w", err)
	}

	return key, nil
}

// ReadFile returns the stored bytes for a key.
func (s *LocalStorage) ReadFile(_ context.Context, key string) ([]byte, error) {
	key = strings.Trim(strings.TrimSpace(key), "/")
	if key == "" {
		return nil, errors.New("storage: empty key")
	}
	return os.ReadFile(filepath.Join(s.baseDir, filepath.FromSlash(key)))
}

// SignedURL mints an expiring link for the file handler to verify. The
// signature covers the key, the expiry timestamp, and a per-mint nonce, so
// every call returns a fresh URL even within the same second.
func (s *LocalStorage) SignedURL(_ context.Context, key string, ttl time.Duration) (string, error) {
	key = strings.Trim(strings.TrimSpace(key), "/")
	if key == "" {
		return "", errors.New("storage: empty key")
	}
	if ttl <= 0 {
		ttl = time.Hour
	}

	nonce, err := newURLNonce()
	if err != nil {
		return "", err
	}
	expires := s.now().Add(ttl).Unix()
	sig := s.sign(key, expires, nonce)

	values := url.Values{}
	values.Set("expires", strconv.FormatInt(expires, 10))
	values.Set("nonce", nonce)
	values.Set("sig", sig)

	return fmt.Sprintf("%s/%s?%s", s.publicBase, key, values.Encode()), nil
}

// VerifySignedRequest checks the signature and expiry produced by SignedURL.
func (s *LocalStorage) VerifySignedRequest(key, expiresParam, nonce, sig string) error {
	key = strings.Trim(strings.TrimSpace(key), "/")
	expires, err := strconv.ParseInt(expiresParam, 10, 64)
	if err != nil {
		return errors.New("storage: malformed expiry")
	}
	if s.now().Unix() > expires {
		return errors.New("storage: url expired")
	}
	expected := s.sign(key, expires, nonce)
	if !hmac.Equal([]byte(expected), []byte(sig)) {
		return errors.New("storage: signature mismatch")
	}
	return nil
}

func (s *LocalStorage) sign(key string, expires int64, nonce string) string {
	mac := hmac.New(sha256.New, s.signSecret)
	fmt.Fprintf(mac, "%s:%d:%s", key, expires, nonce)
	return hex.EncodeToString(mac.Sum(nil))
}

func newURLNonce() (string, error) {
	buf := make([]byte, 8)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("storage: nonce: %w", err)
	}
	return hex.EncodeToString(buf), nil
}

var _ Storage = (*LocalStorage)(nil)
