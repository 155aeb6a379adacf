package api

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/gin-gonic/gin"

	"echoes/internal/storage"
)

// ServeLocalFile serves locally stored media after verifying the HMAC
// signature minted by LocalStorage.SignedURL. Remote backends never hit this
// handler because their signed URLs point at the backend itself.
func (h *HTTPHandler) ServeLocalFile(c *gin.Context) {
	local, ok := h.storage.(*storage.LocalStorage)
	if !ok {
		NotFound(c, ErrCodeNotFound, "file serving not available")
		return
	}

	key := strings.Trim(c.Param("filepath"), "/")
	if key == "" || strings.Contains(key, "..") {
		BadRequest(c, ErrCodeInvalidRequest, "invalid file path")
		return
	}

	if err := local.VerifySignedRequest(key, c.Query("expires"), c.Query("nonce"), c.Query("sig")); err != nil {
		Forbidden(c, "signed url is invalid or expired")
		return
	}

	c.File(filepath.Join(local.LocalBaseDir(), filepath.FromSlash(key)))
}

func (h *HTTPHandler) publicURL(path string) string {
	trimmed := strings.TrimSpace(path)
	if trimmed == "" {
		return ""
	}
	if strings.HasPrefix(trimmed, "http://") || strings.HasPrefix(trimmed, "https://") {
		return trimmed
	}
	base := h.storagePublicBase
	if base == "" {
		base = "/files"
	}
	return fmt.Sprintf("%s/%s", strings.TrimRight(base, "/"), strings.TrimLeft(trimmed, "/"))
}
