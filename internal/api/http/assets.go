package http

import (
	"io"
	"net/http"
	"strings"

	"github.com/fieldview/collect-server/internal/storage"
	"github.com/go-chi/chi/v5"
)

// MountAssets serves stored media. Uploads only happen through /submission,
// so this surface is read-only.
func MountAssets(r chi.Router, bs storage.BlobStore) {
	// GET /assets/*  -> returns the blob at whatever follows /assets/
	r.Get("/*", func(w http.ResponseWriter, r *http.Request) {
		key := chi.URLParam(r, "*")
		key = strings.TrimPrefix(key, "/")
		rc, err := bs.Get(key)
		if err != nil {
			http.Error(w, "not found", http.StatusNotFound)
			return
		}
		defer rc.Close()
		w.Header().Set("Content-Type", "application/octet-stream")
		_, _ = io.Copy(w, rc)
	})
}
