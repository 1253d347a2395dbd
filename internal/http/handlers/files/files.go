package files

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/devanshpatel/filevault/internal/cache"
	"github.com/devanshpatel/filevault/internal/events"
	"github.com/devanshpatel/filevault/internal/http/middleware"
	"github.com/devanshpatel/filevault/internal/objectstore"
	"github.com/devanshpatel/filevault/internal/scanner"
	"github.com/devanshpatel/filevault/internal/storage"
	"github.com/devanshpatel/filevault/internal/types"
	"github.com/devanshpatel/filevault/internal/utils/response"
)

// maxUploadSize caps multipart uploads at 64 MiB.
const maxUploadSize = 64 << 20

// Handlers serves the file endpoints. It only enqueues work (by writing
// pending statuses) and reads results; the background workers do the rest.
type Handlers struct {
	store  storage.MetadataStore
	cache  *cache.Service
	hot    objectstore.Store
	cold   objectstore.Store
	scan   scanner.Scanner // nil when scanning is not configured
	audit  events.Recorder
	logger *slog.Logger
}

func NewHandlers(
	store storage.MetadataStore,
	cacheService *cache.Service,
	hot objectstore.Store,
	cold objectstore.Store,
	scan scanner.Scanner,
	audit events.Recorder,
	logger *slog.Logger,
) *Handlers {
	return &Handlers{
		store:  store,
		cache:  cacheService,
		hot:    hot,
		cold:   cold,
		scan:   scan,
		audit:  audit,
		logger: logger.With(slog.String("component", "files_handler")),
	}
}

// Upload accepts a multipart file, scans it fail-closed, stores it in the
// hot tier and inserts the metadata record that the background workers will
// drive through the sync and analysis state machines.
func (h *Handlers) Upload() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ownerID, ok := middleware.GetOwnerIDFromContext(r.Context())
		if !ok {
			response.WriteJSON(w, http.StatusUnauthorized, response.GeneralError(
				errors.New("user not authenticated")))
			return
		}

		if err := r.ParseMultipartForm(maxUploadSize); err != nil {
			response.WriteJSON(w, http.StatusBadRequest, response.GeneralError(
				errors.New("invalid multipart form")))
			return
		}

		file, header, err := r.FormFile("file")
		if err != nil {
			response.WriteJSON(w, http.StatusBadRequest, response.GeneralError(
				errors.New("no file provided")))
			return
		}
		defer file.Close()

		filename := strings.TrimSpace(header.Filename)
		if filename == "" || strings.Contains(filename, "/") {
			response.WriteJSON(w, http.StatusBadRequest, response.GeneralError(
				errors.New("invalid filename")))
			return
		}

		data, err := io.ReadAll(file)
		if err != nil {
			response.WriteJSON(w, http.StatusBadRequest, response.GeneralError(
				errors.New("failed to read file")))
			return
		}
		if len(data) == 0 {
			response.WriteJSON(w, http.StatusBadRequest, response.GeneralError(
				errors.New("empty file")))
			return
		}

		now := time.Now().UTC().Format(time.RFC3339)
		contentType := types.ContentTypeForFilename(filename)

		rec := &types.FileRecord{
			OwnerID:          ownerID,
			Filename:         filename,
			Size:             int64(len(data)),
			ContentType:      contentType,
			SyncStatus:       types.SyncStatusMinio,
			ScanStatus:       types.ScanStatusPending,
			AIAnalysisStatus: types.AnalysisStatusPending,
			CreatedAt:        now,
		}
		// Only file types the extractor can handle are queued; anything
		// else would just burn an analysis claim on empty text.
		if !types.SupportedForAnalysis(filename) {
			rec.AIAnalysisStatus = types.AnalysisStatusFailed
			rec.AIError = "file type not supported for analysis"
		}

		// Upload-time scanning fails closed: a scanner that is configured
		// but erroring blocks the upload rather than letting unscanned
		// bytes through.
		if h.scan != nil {
			result, scanErr := h.scan.Scan(r.Context(), data)
			if scanErr != nil {
				h.logger.Error("Upload scan failed", "filename", filename, "error", scanErr.Error())
				response.WriteJSON(w, http.StatusServiceUnavailable, response.GeneralError(
					errors.New("virus scan unavailable, upload rejected")))
				return
			}
			if result.Infected {
				// Keep an audit record of the blocked upload; both status
				// fields go terminal so no worker ever touches it.
				rec.SyncStatus = types.SyncStatusInfected
				rec.ScanStatus = types.ScanStatusInfected
				rec.VirusName = result.Signature
				rec.ScannedAt = now
				rec.AIAnalysisStatus = types.AnalysisStatusFailed
				rec.AIError = "file blocked by virus scan"

				if err := h.persistRecord(r.Context(), rec); err != nil {
					h.logger.Error("Failed to record blocked upload", "error", err.Error())
				}
				h.cache.Invalidate(r.Context(), ownerID, filename)
				h.audit.Record(r.Context(), events.EventUpload, filename, ownerID,
					map[string]any{"blocked": true, "virus": result.Signature})

				response.WriteJSON(w, http.StatusBadRequest, response.GeneralError(
					fmt.Errorf("file blocked due to virus: %s", result.Signature)))
				return
			}
			rec.ScanStatus = types.ScanStatusClean
			rec.ScannedAt = now
		}

		if err := h.hot.Put(r.Context(), ownerID, filename, data, contentType); err != nil {
			h.logger.Error("Hot tier upload failed", "filename", filename, "error", err.Error())
			response.WriteJSON(w, http.StatusInternalServerError, response.GeneralError(
				errors.New("failed to store file")))
			return
		}
		rec.MinioUploadedAt = now

		if urls, err := h.hot.PresignedURLs(r.Context(), ownerID, filename); err == nil {
			rec.MinioPreviewURL = urls.Preview
			rec.MinioDownloadURL = urls.Download
		} else {
			h.logger.Warn("Failed to presign hot tier URLs", "filename", filename, "error", err.Error())
		}

		if err := h.persistRecord(r.Context(), rec); err != nil {
			h.logger.Error("Failed to persist file record", "filename", filename, "error", err.Error())
			response.WriteJSON(w, http.StatusInternalServerError, response.GeneralError(
				errors.New("failed to save file metadata")))
			return
		}

		h.cache.Invalidate(r.Context(), ownerID, filename)
		h.audit.Record(r.Context(), events.EventUpload, filename, ownerID,
			map[string]any{"size": rec.Size, "content_type": contentType})

		response.WriteJSON(w, http.StatusOK, response.RequestOK(
			fmt.Sprintf("%s uploaded successfully", filename),
			map[string]any{
				"scan_status":        rec.ScanStatus,
				"sync_status":        rec.SyncStatus,
				"ai_analysis_queued": types.SupportedForAnalysis(filename),
			}))
	}
}

// persistRecord inserts a new record or, on a same-name re-upload, resets the
// existing record so every status field describes the new bytes and the
// workers pick the file up again. User-edited metadata (description, tags)
// survives the replacement.
func (h *Handlers) persistRecord(ctx context.Context, rec *types.FileRecord) error {
	_, err := h.store.Get(ctx, rec.OwnerID, rec.Filename)
	if errors.Is(err, storage.ErrNotFound) {
		return h.store.Insert(ctx, rec)
	}
	if err != nil {
		return err
	}

	_, err = h.store.Update(ctx, rec.OwnerID, rec.Filename, map[string]any{
		"size":                     rec.Size,
		"content_type":             rec.ContentType,
		"created_at":               rec.CreatedAt,
		"status":                   string(rec.SyncStatus),
		"scan_status":              string(rec.ScanStatus),
		"virus_name":               rec.VirusName,
		"scanned_at":               rec.ScannedAt,
		"minio_preview_url":        rec.MinioPreviewURL,
		"minio_download_url":       rec.MinioDownloadURL,
		"minio_uploaded_at":        rec.MinioUploadedAt,
		"s3_preview_url":           "",
		"s3_download_url":          "",
		"s3_synced_at":             "",
		"sync_error":               "",
		"sync_attempts":            0,
		"ai_analysis_status":       string(rec.AIAnalysisStatus),
		"ai_analysis":              nil,
		"ai_analysis_completed_at": "",
		"ai_error":                 rec.AIError,
	})
	return err
}

// List returns the owner's file records, served from cache when fresh.
func (h *Handlers) List() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ownerID, ok := middleware.GetOwnerIDFromContext(r.Context())
		if !ok {
			response.WriteJSON(w, http.StatusUnauthorized, response.GeneralError(
				errors.New("user not authenticated")))
			return
		}

		records, err := h.cache.ListByOwner(r.Context(), ownerID)
		if err != nil {
			response.WriteJSON(w, http.StatusInternalServerError, response.GeneralError(
				errors.New("failed to list files")))
			return
		}

		response.WriteJSON(w, http.StatusOK, response.RequestOK("files retrieved", records))
	}
}

// Get returns a single file record, including its sync/scan/analysis status.
func (h *Handlers) Get() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ownerID, ok := middleware.GetOwnerIDFromContext(r.Context())
		if !ok {
			response.WriteJSON(w, http.StatusUnauthorized, response.GeneralError(
				errors.New("user not authenticated")))
			return
		}

		filename := r.PathValue("filename")
		rec, err := h.cache.GetRecord(r.Context(), ownerID, filename)
		if errors.Is(err, storage.ErrNotFound) {
			response.WriteJSON(w, http.StatusNotFound, response.GeneralError(
				errors.New("file not found")))
			return
		}
		if err != nil {
			response.WriteJSON(w, http.StatusInternalServerError, response.GeneralError(
				errors.New("failed to fetch file")))
			return
		}

		response.WriteJSON(w, http.StatusOK, response.RequestOK("file retrieved", rec))
	}
}

// Update edits the user-facing metadata (description, tags). Status fields
// are owned by the workers and cannot be set here.
func (h *Handlers) Update(validate *validator.Validate) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ownerID, ok := middleware.GetOwnerIDFromContext(r.Context())
		if !ok {
			response.WriteJSON(w, http.StatusUnauthorized, response.GeneralError(
				errors.New("user not authenticated")))
			return
		}

		var req types.FileUpdateRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			response.WriteJSON(w, http.StatusBadRequest, response.GeneralError(
				errors.New("invalid request body")))
			return
		}

		if err := validate.Struct(req); err != nil {
			var validateErrs validator.ValidationErrors
			if errors.As(err, &validateErrs) {
				response.WriteJSON(w, http.StatusBadRequest, response.ValidationError(validateErrs))
				return
			}
			response.WriteJSON(w, http.StatusBadRequest, response.GeneralError(err))
			return
		}

		fields := map[string]any{}
		if req.Description != nil {
			fields["description"] = *req.Description
		}
		if req.Tags != nil {
			fields["tags"] = req.Tags
		}
		if len(fields) == 0 {
			response.WriteJSON(w, http.StatusBadRequest, response.GeneralError(
				errors.New("nothing to update")))
			return
		}

		filename := r.PathValue("filename")
		modified, err := h.store.Update(r.Context(), ownerID, filename, fields)
		if err != nil {
			response.WriteJSON(w, http.StatusInternalServerError, response.GeneralError(
				errors.New("failed to update file")))
			return
		}
		if !modified {
			response.WriteJSON(w, http.StatusNotFound, response.GeneralError(
				errors.New("file not found")))
			return
		}

		h.cache.Invalidate(r.Context(), ownerID, filename)
		response.WriteJSON(w, http.StatusOK, response.RequestOK("file updated", nil))
	}
}

// Delete removes the file from both tiers and drops the record. This is the
// only path that ever deletes a record; the workers never do.
func (h *Handlers) Delete() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ownerID, ok := middleware.GetOwnerIDFromContext(r.Context())
		if !ok {
			response.WriteJSON(w, http.StatusUnauthorized, response.GeneralError(
				errors.New("user not authenticated")))
			return
		}

		filename := r.PathValue("filename")

		if _, err := h.store.Get(r.Context(), ownerID, filename); errors.Is(err, storage.ErrNotFound) {
			response.WriteJSON(w, http.StatusNotFound, response.GeneralError(
				errors.New("file not found")))
			return
		}

		if err := h.hot.Delete(r.Context(), ownerID, filename); err != nil {
			h.logger.Warn("Failed to delete from hot tier", "filename", filename, "error", err.Error())
		}
		if h.cold != nil && h.cold.Available() {
			if err := h.cold.Delete(r.Context(), ownerID, filename); err != nil {
				h.logger.Warn("Failed to delete from cold tier", "filename", filename, "error", err.Error())
			}
		}

		if err := h.store.Delete(r.Context(), ownerID, filename); err != nil {
			response.WriteJSON(w, http.StatusInternalServerError, response.GeneralError(
				errors.New("failed to delete file record")))
			return
		}

		h.cache.Invalidate(r.Context(), ownerID, filename)
		h.audit.Record(r.Context(), events.EventDelete, filename, ownerID, nil)

		response.WriteJSON(w, http.StatusOK, response.RequestOK(
			fmt.Sprintf("%s deleted", filename), nil))
	}
}

// Reanalyze re-queues a file for AI analysis by resetting its status to
// pending. The analysis worker owns all analysis work, including re-runs;
// this endpoint only enqueues.
func (h *Handlers) Reanalyze() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ownerID, ok := middleware.GetOwnerIDFromContext(r.Context())
		if !ok {
			response.WriteJSON(w, http.StatusUnauthorized, response.GeneralError(
				errors.New("user not authenticated")))
			return
		}

		filename := r.PathValue("filename")

		rec, err := h.store.Get(r.Context(), ownerID, filename)
		if errors.Is(err, storage.ErrNotFound) {
			response.WriteJSON(w, http.StatusNotFound, response.GeneralError(
				errors.New("file not found")))
			return
		}
		if err != nil {
			response.WriteJSON(w, http.StatusInternalServerError, response.GeneralError(
				errors.New("failed to fetch file")))
			return
		}

		if rec.AIAnalysisStatus == types.AnalysisStatusProcessing {
			response.WriteJSON(w, http.StatusConflict, response.GeneralError(
				errors.New("analysis already in progress")))
			return
		}
		// Quarantined bytes never reach the analyzer; replacing the file is
		// the only way to reattempt.
		if rec.ScanStatus == types.ScanStatusInfected || rec.SyncStatus == types.SyncStatusInfected {
			response.WriteJSON(w, http.StatusConflict, response.GeneralError(
				errors.New("file is quarantined")))
			return
		}

		_, err = h.store.Update(r.Context(), ownerID, filename, map[string]any{
			"ai_analysis_status": string(types.AnalysisStatusPending),
			"ai_error":           "",
		})
		if err != nil {
			response.WriteJSON(w, http.StatusInternalServerError, response.GeneralError(
				errors.New("failed to queue re-analysis")))
			return
		}

		h.cache.Invalidate(r.Context(), ownerID, filename)
		h.audit.Record(r.Context(), events.EventReanalyze, filename, ownerID, nil)

		response.WriteJSON(w, http.StatusAccepted, response.RequestOK(
			fmt.Sprintf("re-analysis queued for %s", filename), nil))
	}
}

// Download hands out fresh presigned URLs for the file, preferring the cold
// tier once the file is mirrored there. Quarantined files are never served.
func (h *Handlers) Download() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ownerID, ok := middleware.GetOwnerIDFromContext(r.Context())
		if !ok {
			response.WriteJSON(w, http.StatusUnauthorized, response.GeneralError(
				errors.New("user not authenticated")))
			return
		}

		filename := r.PathValue("filename")
		rec, err := h.store.Get(r.Context(), ownerID, filename)
		if errors.Is(err, storage.ErrNotFound) {
			response.WriteJSON(w, http.StatusNotFound, response.GeneralError(
				errors.New("file not found")))
			return
		}
		if err != nil {
			response.WriteJSON(w, http.StatusInternalServerError, response.GeneralError(
				errors.New("failed to fetch file")))
			return
		}

		if rec.ScanStatus == types.ScanStatusInfected || rec.SyncStatus == types.SyncStatusInfected {
			response.WriteJSON(w, http.StatusForbidden, response.GeneralError(
				errors.New("file is quarantined")))
			return
		}

		tier := "minio"
		source := h.hot
		if rec.SyncStatus == types.SyncStatusUploaded && h.cold != nil && h.cold.Available() {
			tier = "s3"
			source = h.cold
		}

		urls, err := source.PresignedURLs(r.Context(), ownerID, filename)
		if err != nil {
			h.logger.Error("Failed to presign download URLs", "filename", filename, "error", err.Error())
			response.WriteJSON(w, http.StatusInternalServerError, response.GeneralError(
				errors.New("failed to generate download link")))
			return
		}

		h.audit.Record(r.Context(), events.EventDownload, filename, ownerID,
			map[string]any{"tier": tier})

		response.WriteJSON(w, http.StatusOK, response.RequestOK("download link generated",
			map[string]any{
				"tier":         tier,
				"preview_url":  urls.Preview,
				"download_url": urls.Download,
			}))
	}
}

// RefreshURLs regenerates the presigned URLs stored on the record. The stored
// URLs are a regenerable cache that goes stale after the presign TTL; this is
// the endpoint that rebuilds it.
func (h *Handlers) RefreshURLs() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ownerID, ok := middleware.GetOwnerIDFromContext(r.Context())
		if !ok {
			response.WriteJSON(w, http.StatusUnauthorized, response.GeneralError(
				errors.New("user not authenticated")))
			return
		}

		filename := r.PathValue("filename")
		rec, err := h.store.Get(r.Context(), ownerID, filename)
		if errors.Is(err, storage.ErrNotFound) {
			response.WriteJSON(w, http.StatusNotFound, response.GeneralError(
				errors.New("file not found")))
			return
		}
		if err != nil {
			response.WriteJSON(w, http.StatusInternalServerError, response.GeneralError(
				errors.New("failed to fetch file")))
			return
		}

		fields := map[string]any{}

		if hotURLs, err := h.hot.PresignedURLs(r.Context(), ownerID, filename); err == nil {
			fields["minio_preview_url"] = hotURLs.Preview
			fields["minio_download_url"] = hotURLs.Download
		} else {
			h.logger.Warn("Failed to refresh hot tier URLs", "filename", filename, "error", err.Error())
		}

		if rec.SyncStatus == types.SyncStatusUploaded && h.cold != nil && h.cold.Available() {
			if coldURLs, err := h.cold.PresignedURLs(r.Context(), ownerID, filename); err == nil {
				fields["s3_preview_url"] = coldURLs.Preview
				fields["s3_download_url"] = coldURLs.Download
			} else {
				h.logger.Warn("Failed to refresh cold tier URLs", "filename", filename, "error", err.Error())
			}
		}

		if len(fields) == 0 {
			response.WriteJSON(w, http.StatusInternalServerError, response.GeneralError(
				errors.New("failed to refresh links")))
			return
		}

		if _, err := h.store.Update(r.Context(), ownerID, filename, fields); err != nil {
			response.WriteJSON(w, http.StatusInternalServerError, response.GeneralError(
				errors.New("failed to save refreshed links")))
			return
		}

		h.cache.Invalidate(r.Context(), ownerID, filename)
		response.WriteJSON(w, http.StatusOK, response.RequestOK("links refreshed", fields))
	}
}

// Stats summarizes the owner's vault: file and byte totals, counts per status
// and tag usage.
func (h *Handlers) Stats() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ownerID, ok := middleware.GetOwnerIDFromContext(r.Context())
		if !ok {
			response.WriteJSON(w, http.StatusUnauthorized, response.GeneralError(
				errors.New("user not authenticated")))
			return
		}

		records, err := h.cache.ListByOwner(r.Context(), ownerID)
		if err != nil {
			response.WriteJSON(w, http.StatusInternalServerError, response.GeneralError(
				errors.New("failed to compute stats")))
			return
		}

		var bytesTotal int64
		bySync := map[string]int{}
		byScan := map[string]int{}
		byAnalysis := map[string]int{}
		tags := map[string]int{}
		for i := range records {
			rec := &records[i]
			bytesTotal += rec.Size
			bySync[string(rec.SyncStatus)]++
			byScan[string(rec.ScanStatus)]++
			byAnalysis[string(rec.AIAnalysisStatus)]++
			for _, tag := range rec.Tags {
				tags[tag]++
			}
		}

		response.WriteJSON(w, http.StatusOK, response.RequestOK("stats computed",
			map[string]any{
				"files_total":           len(records),
				"bytes_total":           bytesTotal,
				"by_sync_status":        bySync,
				"by_scan_status":        byScan,
				"by_ai_analysis_status": byAnalysis,
				"tags":                  tags,
			}))
	}
}

// Search finds the owner's completed analyses matching a keyword.
func (h *Handlers) Search(validate *validator.Validate) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ownerID, ok := middleware.GetOwnerIDFromContext(r.Context())
		if !ok {
			response.WriteJSON(w, http.StatusUnauthorized, response.GeneralError(
				errors.New("user not authenticated")))
			return
		}

		req := types.SearchRequest{Query: r.URL.Query().Get("q")}
		if err := validate.Struct(req); err != nil {
			var validateErrs validator.ValidationErrors
			if errors.As(err, &validateErrs) {
				response.WriteJSON(w, http.StatusBadRequest, response.ValidationError(validateErrs))
				return
			}
			response.WriteJSON(w, http.StatusBadRequest, response.GeneralError(err))
			return
		}

		records, err := h.store.SearchByKeyword(r.Context(), ownerID, req.Query)
		if err != nil {
			response.WriteJSON(w, http.StatusInternalServerError, response.GeneralError(
				errors.New("search failed")))
			return
		}

		response.WriteJSON(w, http.StatusOK, response.RequestOK("search results", records))
	}
}
