package handlers

import (
	"context"
	"net/http"
	"strings"
	"time"

	"finance_tracker/internal/adapters/opener"
	"finance_tracker/internal/apperrors"
	importitems "finance_tracker/internal/repository/imports"
	"finance_tracker/internal/services/importer"

	"github.com/gorilla/mux"
)

const defaultImportType = importitems.ModelPayments

type importRequest struct {
	Type           string `json:"type"`
	FilePath       string `json:"file_path"`
	BatchSize      int    `json:"batch_size"`
	TimeoutMin     int    `json:"timeout_minutes,omitempty"`
	ImportRecordID string `json:"import_record_id"`
}

func (h *Handlers) Import(w http.ResponseWriter, r *http.Request) {
	uid, ok := h.userID(w, r)
	if !ok {
		return
	}

	var req importRequest
	if !h.decode(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.FilePath) == "" {
		h.Logger.Printf("[IMPORT][REQ][ERR] file_path is required")
		h.JSON(w, http.StatusBadRequest, map[string]string{"error": "file_path is required"})
		return
	}
	req.Type = firstNonEmpty(req.Type, defaultImportType)
	if _, ok := h.Registry[req.Type]; !ok {
		h.JSON(w, http.StatusBadRequest, map[string]string{"error": "unknown import type: " + req.Type})
		return
	}
	if req.BatchSize <= 0 {
		req.BatchSize = 1000
	}
	if req.ImportRecordID != "" {
		if _, err := h.ownedImportRecord(r.Context(), uid, req.ImportRecordID); err != nil {
			h.writeError(w, "IMPORT][REQ", err)
			return
		}
	}

	h.startImport(importer.Request{
		Type:           req.Type,
		FilePath:       req.FilePath,
		BatchSize:      req.BatchSize,
		ImportRecordID: req.ImportRecordID,
		UserID:         uid,
	}, time.Duration(req.TimeoutMin)*time.Minute)

	h.JSON(w, http.StatusAccepted, map[string]any{
		"status":           "started",
		"type":             req.Type,
		"file_path":        req.FilePath,
		"batch_size":       req.BatchSize,
		"import_record_id": req.ImportRecordID,
	})
}

// startImport runs req in the background and records the outcome on the
// import record when there is one.
func (h *Handlers) startImport(req importer.Request, timeout time.Duration) {
	if timeout <= 0 {
		timeout = 15 * time.Minute
	}

	go func() {
		start := time.Now()
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()

		tracked := req.ImportRecordID != "" && h.Mongo != nil
		if tracked {
			if err := importitems.UpdateImportRecordStatus(ctx, h.Mongo, req.ImportRecordID, importitems.StatusRunning); err != nil {
				h.Logger.Printf("[IMPORT][WARN][BG] mark running id=%s: %v", req.ImportRecordID, err)
			}
		}

		svc := importer.NewService(h.fileOpener(), h.Registry, req.BatchSize, h.Logger)
		res, err := svc.Import(ctx, req)

		status, errText := importitems.StatusDone, ""
		if err != nil {
			status, errText = importitems.StatusFailed, err.Error()
			h.Logger.Printf("[IMPORT][ERR][BG] type=%q path=%q err=%v took=%s",
				req.Type, req.FilePath, err, time.Since(start))
		} else {
			h.Logger.Printf("[IMPORT][OK][BG] type=%q src=%s fmt=%s rows=%d bucket=%q key=%q size=%d took=%s",
				req.Type, res.Source, res.Format, res.RowsProcessed, res.Bucket, res.Key, res.SizeBytes, time.Since(start))
		}

		if tracked {
			finCtx, finCancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer finCancel()
			if err := importitems.FinishImportRecord(finCtx, h.Mongo, req.ImportRecordID, status, res.RowsProcessed, errText); err != nil {
				h.Logger.Printf("[IMPORT][WARN][BG] finish id=%s: %v", req.ImportRecordID, err)
			}
		}
	}()
}

func (h *Handlers) fileOpener() *opener.CompoundOpener {
	var s3Op *opener.S3Opener
	bucket := ""
	if h.S3 != nil {
		s3Op = opener.NewS3Opener(h.S3.Client, h.Logger)
		bucket = h.S3.Bucket
	}
	return opener.NewCompoundOpener(opener.NewHTTPOpener(h.HTTP, h.Logger), s3Op, bucket)
}

func (h *Handlers) ImportStatus(w http.ResponseWriter, r *http.Request) {
	uid, ok := h.userID(w, r)
	if !ok {
		return
	}
	id := mux.Vars(r)["id"]

	rec, err := h.ownedImportRecord(r.Context(), uid, id)
	if err != nil {
		h.writeError(w, "IMPORT][STATUS", err)
		return
	}
	h.JSON(w, http.StatusOK, rec)
}

// ownedImportRecord loads an import record and hides it unless uid owns it.
// Records without an owner are hidden from everyone.
func (h *Handlers) ownedImportRecord(ctx context.Context, uid, id string) (importitems.Record, error) {
	if h.FindImport == nil {
		return importitems.Record{}, &apperrors.NotFoundError{ID: id, Kind: "import record"}
	}
	rec, err := h.FindImport(ctx, id)
	if err != nil {
		return importitems.Record{}, err
	}
	if rec.UserID == nil || *rec.UserID != uid {
		return importitems.Record{}, &apperrors.NotFoundError{ID: id, Kind: "import record"}
	}
	return rec, nil
}

func firstNonEmpty(s, def string) string {
	if strings.TrimSpace(s) == "" {
		return def
	}
	return strings.TrimSpace(s)
}
