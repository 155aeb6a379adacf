package storage

import (
	"context"
	"fmt"
	"strings"
	"time"

	"echoes/internal/config"
)

const (
	// TypeLocal is the local filesystem backend.
	TypeLocal = "local"
	// TypeS3 is Amazon S3 or a compatible backend.
	TypeS3 = "s3"
	// TypeOSS is Alibaba Cloud OSS.
	TypeOSS = "oss"
	// TypeCOS is Tencent Cloud COS.
	TypeCOS = "cos"
	// TypeR2 is Cloudflare R2.
	TypeR2 = "r2"
	// TypeSupabase is Supabase Storage.
	TypeSupabase = "supabase"
)

// SaveOptions controls how a backend persists a blob.
//
// When Key is set it is used verbatim as the object key. Otherwise the key is
// derived from Category, BaseName and Extension plus the current date.
type SaveOptions struct {
	Key          string
	Category     string
	Extension    string
	BaseName     string
	SkipIfExists bool
}

// Storage persists binary blobs under opaque keys and mints expiring signed
// URLs for them. Keys are stable; signed URLs are not and must never be
// persisted.
type Storage interface {
	Save(ctx context.Context, data []byte, opts SaveOptions) (string, error)
	SignedURL(ctx context.Context, key string, ttl time.Duration) (string, error)
}

// NewStorage instantiates the backend named by cfg.StorageType.
func NewStorage(cfg config.Config) (Storage, error) {
	typeName := strings.ToLower(strings.TrimSpace(cfg.StorageType))
	switch typeName {
	case "", TypeLocal:
		return NewLocalStorage(cfg)
	case TypeS3:
		return NewS3Storage(cfg)
	case TypeOSS:
		return NewOSSStorage(cfg)
	case TypeCOS:
		return NewCOSStorage(cfg)
	case TypeR2:
		return NewR2Storage(cfg)
	case TypeSupabase:
		return NewSupabaseStorage(cfg)
	default:
		return nil, fmt.Errorf("unsupported storage type: %s", cfg.StorageType)
	}
}

// ClipVideoKey builds the object key for a generated clip video. Keys are
// scoped user/project/clip so per-user cleanup stays a prefix operation.
func ClipVideoKey(userID uint, projectID, clipID string) string {
	return fmt.Sprintf("clips/%d/%s/%s_%d.mp4",
		userID, SanitizeToken(projectID), SanitizeToken(clipID), time.Now().Unix())
}

// SourceImageKey builds the object key for a normalised source image.
func SourceImageKey(userID uint, clipID string) string {
	return fmt.Sprintf("sources/%d/%s.jpg", userID, SanitizeToken(clipID))
}

// FinalVideoKey builds the object key for a compiled final video.
func FinalVideoKey(userID uint, videoID string) string {
	return fmt.Sprintf("finals/%d/%s_%d.mp4", userID, SanitizeToken(videoID), time.Now().Unix())
}
