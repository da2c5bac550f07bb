package handlers

import (
	"fmt"
	"net/http"
	"path"
	"strconv"
	"time"

	importitems "finance_tracker/internal/repository/imports"
	"finance_tracker/internal/services/importer"
)

// Upload accepts multipart/form-data with a `file` field (and optional
// `type`/`action`), stores the file in S3, creates an import record and starts
// the import in the background.
func (h *Handlers) Upload(w http.ResponseWriter, r *http.Request) {
	uid, ok := h.userID(w, r)
	if !ok {
		return
	}
	if h.S3 == nil {
		h.JSON(w, http.StatusServiceUnavailable, map[string]string{"error": "storage not configured"})
		return
	}

	if err := r.ParseMultipartForm(128 << 20); err != nil {
		h.Logger.Printf("[UPLOAD][ERR] parse multipart: %v", err)
		h.JSON(w, http.StatusBadRequest, map[string]any{"error": "bad multipart: " + err.Error()})
		return
	}

	action := firstNonEmpty(r.FormValue("action"), firstNonEmpty(r.FormValue("type"), defaultImportType))
	if _, ok := h.Registry[action]; !ok {
		h.JSON(w, http.StatusBadRequest, map[string]any{"error": "unknown import type: " + action})
		return
	}
	batchSize, _ := strconv.Atoi(r.FormValue("batch_size"))

	f, fh, err := r.FormFile("file")
	if err != nil {
		h.Logger.Printf("[UPLOAD][ERR] missing file: %v", err)
		h.JSON(w, http.StatusBadRequest, map[string]any{"error": "file is required"})
		return
	}
	defer f.Close()

	fname := path.Base(fh.Filename)
	key := fmt.Sprintf("imports/%s/%d-%s", uid, time.Now().UnixNano(), fname)

	size := fh.Size
	if size <= 0 {
		size = -1
	}

	if err := h.S3.PutObject(r.Context(), key, f, size, fh.Header.Get("Content-Type")); err != nil {
		h.Logger.Printf("[UPLOAD][ERR] s3 put: %v", err)
		h.JSON(w, http.StatusBadGateway, map[string]any{"error": "failed to store file: " + err.Error()})
		return
	}

	s3path := h.S3.Location(key)
	bucket := h.S3.Bucket
	rec := importitems.Record{
		UserID:    &uid,
		Status:    importitems.StatusParsed,
		Type:      action,
		Path:      &s3path,
		Bucket:    &bucket,
		Key:       &key,
		SizeBytes: &fh.Size,
	}

	id, err := importitems.InsertImportRecord(r.Context(), h.Mongo, rec)
	if err != nil {
		h.Logger.Printf("[UPLOAD][ERR] db insert: %v", err)
		h.JSON(w, http.StatusInternalServerError, map[string]any{"error": err.Error()})
		return
	}
	h.Logger.Printf("[UPLOAD][OK] user=%s id=%s path=%s size=%d", uid, id, s3path, fh.Size)

	h.startImport(importer.Request{
		Type:           action,
		FilePath:       s3path,
		BatchSize:      batchSize,
		ImportRecordID: id,
		UserID:         uid,
	}, 0)

	h.JSON(w, http.StatusCreated, map[string]any{"id": id, "path": s3path, "status": importitems.StatusParsed})
}
