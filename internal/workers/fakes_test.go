package workers

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/devanshpatel/filevault/internal/objectstore"
	"github.com/devanshpatel/filevault/internal/scanner"
	"github.com/devanshpatel/filevault/internal/storage"
	"github.com/devanshpatel/filevault/internal/types"
)

// fakeStore is an in-memory MetadataStore that applies the same partial
// update semantics as the Mongo implementation and records every
// ai_analysis_status transition for ordering assertions.
type fakeStore struct {
	mu          sync.Mutex
	records     map[string]*types.FileRecord
	transitions map[string][]types.AnalysisStatus
}

func newFakeStore(records ...*types.FileRecord) *fakeStore {
	s := &fakeStore{
		records:     make(map[string]*types.FileRecord),
		transitions: make(map[string][]types.AnalysisStatus),
	}
	for _, r := range records {
		s.records[key(r.OwnerID, r.Filename)] = r
	}
	return s
}

func key(ownerID, filename string) string {
	return ownerID + "/" + filename
}

func (s *fakeStore) Insert(ctx context.Context, rec *types.FileRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records[key(rec.OwnerID, rec.Filename)] = rec
	return nil
}

func (s *fakeStore) Get(ctx context.Context, ownerID, filename string) (*types.FileRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.records[key(ownerID, filename)]
	if !ok {
		return nil, storage.ErrNotFound
	}
	copied := *rec
	return &copied, nil
}

func (s *fakeStore) ListByOwner(ctx context.Context, ownerID string) ([]types.FileRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []types.FileRecord
	for _, rec := range s.records {
		if rec.OwnerID == ownerID {
			out = append(out, *rec)
		}
	}
	return out, nil
}

func (s *fakeStore) ListSyncCandidates(ctx context.Context) ([]types.FileRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []types.FileRecord
	for _, rec := range s.records {
		if rec.SyncStatus != types.SyncStatusUploaded && rec.SyncStatus != types.SyncStatusInfected {
			out = append(out, *rec)
		}
	}
	return out, nil
}

func (s *fakeStore) ListPendingAnalysis(ctx context.Context) ([]types.FileRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []types.FileRecord
	for _, rec := range s.records {
		if rec.AIAnalysisStatus == types.AnalysisStatusPending {
			out = append(out, *rec)
		}
	}
	return out, nil
}

func (s *fakeStore) Update(ctx context.Context, ownerID, filename string, fields map[string]any) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.records[key(ownerID, filename)]
	if !ok {
		return false, nil
	}
	s.applyFields(rec, fields)
	return true, nil
}

func (s *fakeStore) ClaimForAnalysis(ctx context.Context, ownerID, filename string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.records[key(ownerID, filename)]
	if !ok || rec.AIAnalysisStatus != types.AnalysisStatusPending {
		return false, nil
	}
	rec.AIAnalysisStatus = types.AnalysisStatusProcessing
	s.transitions[key(ownerID, filename)] = append(
		s.transitions[key(ownerID, filename)], types.AnalysisStatusProcessing)
	return true, nil
}

func (s *fakeStore) SearchByKeyword(ctx context.Context, ownerID, query string) ([]types.FileRecord, error) {
	return nil, errors.New("not implemented")
}

func (s *fakeStore) Delete(ctx context.Context, ownerID, filename string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.records, key(ownerID, filename))
	return nil
}

// applyFields mirrors the $set keys the workers write.
func (s *fakeStore) applyFields(rec *types.FileRecord, fields map[string]any) {
	for k, v := range fields {
		switch k {
		case "status":
			rec.SyncStatus = types.SyncStatus(v.(string))
		case "sync_error":
			rec.SyncError = v.(string)
		case "sync_attempts":
			rec.SyncAttempts = v.(int)
		case "scan_status":
			rec.ScanStatus = types.ScanStatus(v.(string))
		case "virus_name":
			rec.VirusName = v.(string)
		case "scanned_at":
			rec.ScannedAt = v.(string)
		case "s3_preview_url":
			rec.S3PreviewURL = v.(string)
		case "s3_download_url":
			rec.S3DownloadURL = v.(string)
		case "s3_synced_at":
			rec.S3SyncedAt = v.(string)
		case "ai_analysis_status":
			status := types.AnalysisStatus(v.(string))
			rec.AIAnalysisStatus = status
			s.transitions[key(rec.OwnerID, rec.Filename)] = append(
				s.transitions[key(rec.OwnerID, rec.Filename)], status)
		case "ai_analysis":
			rec.AIAnalysis = v.(*types.AIAnalysis)
		case "ai_analysis_completed_at":
			rec.AIAnalysisCompletedAt = v.(string)
		case "ai_error":
			rec.AIError = v.(string)
		}
	}
}

func (s *fakeStore) record(ownerID, filename string) *types.FileRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	copied := *s.records[key(ownerID, filename)]
	return &copied
}

// fakeObjectStore is an in-memory object tier with programmable failures.
type fakeObjectStore struct {
	mu        sync.Mutex
	objects   map[string][]byte
	available bool
	putCalls  map[string]int
	putFails  map[string]int // fail the first N puts for a key
	getErr    error
}

func newFakeObjectStore() *fakeObjectStore {
	return &fakeObjectStore{
		objects:   make(map[string][]byte),
		available: true,
		putCalls:  make(map[string]int),
		putFails:  make(map[string]int),
	}
}

func (f *fakeObjectStore) Put(ctx context.Context, ownerID, filename string, data []byte, contentType string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	k := key(ownerID, filename)
	f.putCalls[k]++
	if f.putFails[k] > 0 {
		f.putFails[k]--
		return errors.New("connection reset")
	}
	f.objects[k] = data
	return nil
}

func (f *fakeObjectStore) Get(ctx context.Context, ownerID, filename string) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.getErr != nil {
		return nil, f.getErr
	}
	data, ok := f.objects[key(ownerID, filename)]
	if !ok {
		return nil, objectstore.ErrNotFound
	}
	return data, nil
}

func (f *fakeObjectStore) Delete(ctx context.Context, ownerID, filename string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.objects, key(ownerID, filename))
	return nil
}

func (f *fakeObjectStore) PresignedURLs(ctx context.Context, ownerID, filename string) (*objectstore.URLs, error) {
	return &objectstore.URLs{
		Preview:  fmt.Sprintf("https://example.com/%s/%s?disposition=inline", ownerID, filename),
		Download: fmt.Sprintf("https://example.com/%s/%s?disposition=attachment", ownerID, filename),
	}, nil
}

func (f *fakeObjectStore) Available() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.available
}

// fakeScanner flags configured filenames-by-content as infected.
type fakeScanner struct {
	available  bool
	signatures map[string]string // content -> signature
	scanErr    error
}

func newFakeScanner() *fakeScanner {
	return &fakeScanner{available: true, signatures: make(map[string]string)}
}

func (f *fakeScanner) Scan(ctx context.Context, data []byte) (*scanner.Result, error) {
	if f.scanErr != nil {
		return nil, f.scanErr
	}
	if sig, ok := f.signatures[string(data)]; ok {
		return &scanner.Result{Infected: true, Signature: sig}, nil
	}
	return &scanner.Result{}, nil
}

func (f *fakeScanner) Available() bool {
	return f.available
}

// fakeExtractor returns file content as text, with optional overrides.
type fakeExtractor struct {
	texts map[string]string // filename -> text override
	errs  map[string]error
}

func newFakeExtractor() *fakeExtractor {
	return &fakeExtractor{texts: make(map[string]string), errs: make(map[string]error)}
}

func (f *fakeExtractor) Extract(filename string, data []byte) (string, error) {
	if err := f.errs[filename]; err != nil {
		return "", err
	}
	if text, ok := f.texts[filename]; ok {
		return text, nil
	}
	return string(data), nil
}

// fakeAnalyzer returns a canned analysis, with per-filename overrides and
// failures.
type fakeAnalyzer struct {
	available bool
	results   map[string]*types.AIAnalysis // filename -> result
	errs      map[string]error
	panics    map[string]bool
}

func newFakeAnalyzer() *fakeAnalyzer {
	return &fakeAnalyzer{
		available: true,
		results:   make(map[string]*types.AIAnalysis),
		errs:      make(map[string]error),
		panics:    make(map[string]bool),
	}
}

func (f *fakeAnalyzer) Analyze(ctx context.Context, text, filename string) (*types.AIAnalysis, error) {
	if f.panics[filename] {
		panic("analyzer blew up")
	}
	if err := f.errs[filename]; err != nil {
		return nil, err
	}
	if res, ok := f.results[filename]; ok {
		return res, nil
	}
	return &types.AIAnalysis{
		Summary:        "A document about " + filename,
		Keywords:       []string{"alpha", "beta", "gamma"},
		KeywordsSource: types.KeywordsSourceModel,
		Caption:        "Document: " + filename,
		AnalysisDate:   "2025-01-01T00:00:00Z",
		ModelUsed:      "test-model",
	}, nil
}

func (f *fakeAnalyzer) Available() bool {
	return f.available
}

func (f *fakeAnalyzer) Models() []string {
	return []string{"test-model"}
}
