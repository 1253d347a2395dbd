package types

import (
	"fmt"
	"strings"
)

// SyncStatus tracks a file's journey from the hot tier to the cold tier.
type SyncStatus string

const (
	SyncStatusMinio      SyncStatus = "minio"          // uploaded to hot tier, not yet mirrored
	SyncStatusUploaded   SyncStatus = "uploaded-to-s3" // mirrored to cold tier (terminal)
	SyncStatusInfected   SyncStatus = "infected"       // malware detected (terminal)
	SyncStatusSyncFailed SyncStatus = "sync-failed"    // last sync attempt failed, retried next pass
)

// ScanStatus is the malware-scan verdict for a file. SyncStatusInfected is
// derived from it; ScanStatus is the authoritative scan field.
type ScanStatus string

const (
	ScanStatusPending  ScanStatus = "pending"
	ScanStatusClean    ScanStatus = "clean"
	ScanStatusInfected ScanStatus = "infected"
	ScanStatusError    ScanStatus = "error"
)

// AnalysisStatus is the AI-analysis state machine:
// pending -> processing -> completed | failed.
type AnalysisStatus string

const (
	AnalysisStatusPending    AnalysisStatus = "pending"
	AnalysisStatusProcessing AnalysisStatus = "processing"
	AnalysisStatusCompleted  AnalysisStatus = "completed"
	AnalysisStatusFailed     AnalysisStatus = "failed"
)

// Keyword provenance for AIAnalysis.KeywordsSource.
const (
	KeywordsSourceModel     = "model"
	KeywordsSourceGenerated = "generated"
)

// AIAnalysis is the structured result produced by the analyzer.
type AIAnalysis struct {
	Summary        string   `bson:"summary" json:"summary"`
	Keywords       []string `bson:"keywords" json:"keywords"`
	KeywordsSource string   `bson:"keywords_source" json:"keywords_source"`
	Caption        string   `bson:"caption" json:"caption"`
	AnalysisDate   string   `bson:"analysis_date" json:"analysis_date"`
	ModelUsed      string   `bson:"model_used" json:"model_used"`
}

// FileRecord is the metadata document for one uploaded file, keyed by
// (owner, filename). The bson field names match the documents the original
// deployment already holds, so existing collections keep working.
type FileRecord struct {
	OwnerID     string `bson:"user_id" json:"owner_id"`
	Filename    string `bson:"filename" json:"filename"`
	Size        int64  `bson:"size" json:"size"`
	ContentType string `bson:"content_type" json:"content_type"`

	SyncStatus   SyncStatus `bson:"status" json:"sync_status"`
	SyncError    string     `bson:"sync_error,omitempty" json:"sync_error,omitempty"`
	SyncAttempts int        `bson:"sync_attempts,omitempty" json:"sync_attempts,omitempty"`

	ScanStatus ScanStatus `bson:"scan_status" json:"scan_status"`
	VirusName  string     `bson:"virus_name,omitempty" json:"virus_name,omitempty"`
	ScannedAt  string     `bson:"scanned_at,omitempty" json:"scanned_at,omitempty"`

	// Presigned URLs are a regenerable cache, not authoritative state.
	MinioPreviewURL  string `bson:"minio_preview_url,omitempty" json:"minio_preview_url,omitempty"`
	MinioDownloadURL string `bson:"minio_download_url,omitempty" json:"minio_download_url,omitempty"`
	S3PreviewURL     string `bson:"s3_preview_url,omitempty" json:"s3_preview_url,omitempty"`
	S3DownloadURL    string `bson:"s3_download_url,omitempty" json:"s3_download_url,omitempty"`

	// User-editable metadata, mutated only by the explicit edit path.
	Description string   `bson:"description,omitempty" json:"description,omitempty"`
	Tags        []string `bson:"tags,omitempty" json:"tags,omitempty"`

	CreatedAt       string `bson:"created_at" json:"created_at"`
	MinioUploadedAt string `bson:"minio_uploaded_at,omitempty" json:"minio_uploaded_at,omitempty"`
	S3SyncedAt      string `bson:"s3_synced_at,omitempty" json:"s3_synced_at,omitempty"`
	LastUpdated     string `bson:"last_updated,omitempty" json:"last_updated,omitempty"`

	AIAnalysisStatus      AnalysisStatus `bson:"ai_analysis_status" json:"ai_analysis_status"`
	AIAnalysis            *AIAnalysis    `bson:"ai_analysis,omitempty" json:"ai_analysis,omitempty"`
	AIAnalysisCompletedAt string         `bson:"ai_analysis_completed_at,omitempty" json:"ai_analysis_completed_at,omitempty"`
	AIError               string         `bson:"ai_error,omitempty" json:"ai_error,omitempty"`
}

// ObjectKey is the owner-scoped key used in both object tiers.
func (r *FileRecord) ObjectKey() string {
	return ObjectKey(r.OwnerID, r.Filename)
}

// ObjectKey builds the "{owner}/{filename}" storage key.
func ObjectKey(ownerID, filename string) string {
	return fmt.Sprintf("%s/%s", ownerID, filename)
}

// ContentTypeForFilename maps a file extension to its MIME type.
func ContentTypeForFilename(filename string) string {
	idx := strings.LastIndex(filename, ".")
	if idx < 0 {
		return "application/octet-stream"
	}
	ext := strings.ToLower(filename[idx+1:])

	contentTypes := map[string]string{
		"pdf":  "application/pdf",
		"jpg":  "image/jpeg",
		"jpeg": "image/jpeg",
		"png":  "image/png",
		"gif":  "image/gif",
		"txt":  "text/plain",
		"html": "text/html",
		"htm":  "text/html",
		"json": "application/json",
		"xml":  "application/xml",
		"csv":  "text/csv",
		"md":   "text/markdown",
		"log":  "text/plain",
		"mp4":  "video/mp4",
		"mp3":  "audio/mpeg",
		"zip":  "application/zip",
		"doc":  "application/msword",
		"docx": "application/vnd.openxmlformats-officedocument.wordprocessingml.document",
		"xls":  "application/vnd.ms-excel",
		"xlsx": "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet",
	}

	if ct, ok := contentTypes[ext]; ok {
		return ct
	}
	return "application/octet-stream"
}

// aiSupportedExtensions are the file types the analysis pipeline can extract
// meaningful text from.
var aiSupportedExtensions = map[string]bool{
	"pdf": true, "txt": true, "jpg": true, "jpeg": true,
	"png": true, "gif": true, "csv": true, "json": true, "xml": true,
	"md": true, "log": true,
}

// SupportedForAnalysis reports whether a filename's extension is eligible for
// AI analysis.
func SupportedForAnalysis(filename string) bool {
	idx := strings.LastIndex(filename, ".")
	if idx < 0 {
		return false
	}
	return aiSupportedExtensions[strings.ToLower(filename[idx+1:])]
}
