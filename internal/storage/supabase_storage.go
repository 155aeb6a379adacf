package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	supastorage "github.com/supabase-community/storage-go"

	"echoes/internal/config"
)

type supabaseStorage struct {
	client *supastorage.Client
	bucket string
}

func NewSupabaseStorage(cfg config.Config) (Storage, error) {
	baseURL := strings.TrimRight(strings.TrimSpace(cfg.StorageSupabaseURL), "/")
	if baseURL == "" {
		return nil, errors.New("storage: missing Supabase URL")
	}
	serviceKey := strings.TrimSpace(cfg.StorageSupabaseServiceKey)
	if serviceKey == "" {
		return nil, errors.New("storage: missing Supabase service key")
	}
	bucket := strings.TrimSpace(cfg.StorageSupabaseBucket)
	if bucket == "" {
		return nil, errors.New("storage: missing Supabase bucket")
	}

	client := supastorage.NewClient(baseURL+"/storage/v1", serviceKey, nil)

	return &supabaseStorage{
		client: client,
		bucket: bucket,
	}, nil
}

func (s *supabaseStorage) Save(ctx context.Context, data []byte, opts SaveOptions) (string, error) {
	if len(data) == 0 {
		return "", errors.New("empty payload")
	}
	select {
	case <-ctx.Done():
		return "", ctx.Err()
	default:
	}

	key := resolveKey(opts)
	contentType := contentTypeForKey(key)
	upsert := !opts.SkipIfExists

	_, err := s.client.UploadFile(s.bucket, key, bytes.NewReader(data), supastorage.FileOptions{
		ContentType: &contentType,
		Upsert:      &upsert,
	})
	if err != nil {
		if opts.SkipIfExists && strings.Contains(strings.ToLower(err.Error()), "duplicate") {
			return key, nil
		}
		return "", fmt.Errorf("upload file: %w", err)
	}

	return key, nil
}

func (s *supabaseStorage) SignedURL(_ context.Context, key string, ttl time.Duration) (string, error) {
	key = strings.Trim(strings.TrimSpace(key), "/")
	if key == "" {
		return "", errors.New("storage: empty key")
	}
	if ttl <= 0 {
		ttl = time.Hour
	}

	resp, err := s.client.CreateSignedUrl(s.bucket, key, int(ttl.Seconds()))
	if err != nil {
		return "", fmt.Errorf("create signed url: %w", err)
	}
	if resp.SignedURL == "" {
		return "", errors.New("storage: empty signed url response")
	}
	return resp.SignedURL, nil
}

var _ Storage = (*supabaseStorage)(nil)
