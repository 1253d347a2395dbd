package workers

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/devanshpatel/filevault/internal/types"
)

func pendingRecord(owner, filename string) *types.FileRecord {
	rec := minioRecord(owner, filename)
	rec.SyncStatus = types.SyncStatusUploaded
	return rec
}

func newTestAnalysisWorker(store *fakeStore, hot *fakeObjectStore, ex *fakeExtractor, ai *fakeAnalyzer) *AnalysisWorker {
	return NewAnalysisWorker(store, hot, ex, ai, time.Second, time.Second, testLogger())
}

func TestAnalysisStatusTransitions(t *testing.T) {
	store := newFakeStore(pendingRecord("alice", "report.txt"))
	hot := newFakeObjectStore()
	hot.objects[key("alice", "report.txt")] = []byte("a quarterly report with plenty of text to analyze")

	worker := newTestAnalysisWorker(store, hot, newFakeExtractor(), newFakeAnalyzer())
	worker.Pass(context.Background())

	rec := store.record("alice", "report.txt")
	if rec.AIAnalysisStatus != types.AnalysisStatusCompleted {
		t.Fatalf("expected completed, got %q", rec.AIAnalysisStatus)
	}
	if rec.AIAnalysis == nil {
		t.Fatal("expected analysis result to be persisted")
	}
	if rec.AIAnalysis.ModelUsed != "test-model" {
		t.Errorf("unexpected model: %q", rec.AIAnalysis.ModelUsed)
	}
	if rec.AIAnalysisCompletedAt == "" {
		t.Error("expected completion timestamp")
	}

	want := []types.AnalysisStatus{types.AnalysisStatusProcessing, types.AnalysisStatusCompleted}
	got := store.transitions[key("alice", "report.txt")]
	if len(got) != len(want) {
		t.Fatalf("expected transitions %v, got %v", want, got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("expected transitions %v, got %v", want, got)
		}
	}
}

func TestAnalysisFailureIsTerminal(t *testing.T) {
	store := newFakeStore(pendingRecord("bob", "broken.txt"))
	hot := newFakeObjectStore()
	hot.objects[key("bob", "broken.txt")] = []byte("plenty of text in this file to pass the length gate")
	ai := newFakeAnalyzer()
	ai.errs["broken.txt"] = errors.New("all models exhausted")

	worker := newTestAnalysisWorker(store, hot, newFakeExtractor(), ai)
	worker.Pass(context.Background())

	rec := store.record("bob", "broken.txt")
	if rec.AIAnalysisStatus != types.AnalysisStatusFailed {
		t.Fatalf("expected failed, got %q", rec.AIAnalysisStatus)
	}
	if rec.AIError != "all models exhausted" {
		t.Errorf("unexpected failure reason: %q", rec.AIError)
	}

	// failed is terminal: the next pass must not pick the record up again.
	before := len(store.transitions[key("bob", "broken.txt")])
	worker.Pass(context.Background())
	if after := len(store.transitions[key("bob", "broken.txt")]); after != before {
		t.Fatalf("failed record was re-selected: %d transitions became %d", before, after)
	}
}

func TestAnalysisSkipsAlreadyClaimedRecord(t *testing.T) {
	rec := pendingRecord("carol", "claimed.txt")
	rec.AIAnalysisStatus = types.AnalysisStatusProcessing
	store := newFakeStore(rec)
	hot := newFakeObjectStore()
	hot.objects[key("carol", "claimed.txt")] = []byte("enough text to be analyzable by the worker")

	worker := newTestAnalysisWorker(store, hot, newFakeExtractor(), newFakeAnalyzer())

	// Simulate the race where the record was claimed between listing and
	// claiming: the claim must lose and the worker must leave it alone.
	stale := *rec
	stale.AIAnalysisStatus = types.AnalysisStatusPending
	worker.analyzeFile(context.Background(), &stale)

	got := store.record("carol", "claimed.txt")
	if got.AIAnalysisStatus != types.AnalysisStatusProcessing {
		t.Fatalf("expected record left in processing, got %q", got.AIAnalysisStatus)
	}
	if got.AIAnalysis != nil {
		t.Error("expected no analysis result on a record claimed elsewhere")
	}
}

func TestAnalysisMissingFileFails(t *testing.T) {
	store := newFakeStore(pendingRecord("dave", "ghost.txt"))
	hot := newFakeObjectStore() // no object

	worker := newTestAnalysisWorker(store, hot, newFakeExtractor(), newFakeAnalyzer())
	worker.Pass(context.Background())

	rec := store.record("dave", "ghost.txt")
	if rec.AIAnalysisStatus != types.AnalysisStatusFailed {
		t.Fatalf("expected failed, got %q", rec.AIAnalysisStatus)
	}
	if rec.AIError != "file missing" {
		t.Errorf("unexpected failure reason: %q", rec.AIError)
	}
}

func TestAnalysisInsufficientContentFails(t *testing.T) {
	store := newFakeStore(pendingRecord("eve", "tiny.txt"))
	hot := newFakeObjectStore()
	hot.objects[key("eve", "tiny.txt")] = []byte("too short")

	worker := newTestAnalysisWorker(store, hot, newFakeExtractor(), newFakeAnalyzer())
	worker.Pass(context.Background())

	rec := store.record("eve", "tiny.txt")
	if rec.AIAnalysisStatus != types.AnalysisStatusFailed {
		t.Fatalf("expected failed, got %q", rec.AIAnalysisStatus)
	}
	if rec.AIError != "insufficient content" {
		t.Errorf("unexpected failure reason: %q", rec.AIError)
	}
}

func TestAnalysisExtractionErrorFails(t *testing.T) {
	store := newFakeStore(pendingRecord("frank", "scan.pdf"))
	hot := newFakeObjectStore()
	hot.objects[key("frank", "scan.pdf")] = []byte("%PDF-1.4 garbage")
	ex := newFakeExtractor()
	ex.errs["scan.pdf"] = errors.New("malformed xref table")

	worker := newTestAnalysisWorker(store, hot, ex, newFakeAnalyzer())
	worker.Pass(context.Background())

	rec := store.record("frank", "scan.pdf")
	if rec.AIAnalysisStatus != types.AnalysisStatusFailed {
		t.Fatalf("expected failed, got %q", rec.AIAnalysisStatus)
	}
	if rec.AIError != "text extraction failed: malformed xref table" {
		t.Errorf("unexpected failure reason: %q", rec.AIError)
	}
}

func TestAnalysisPanicIsContained(t *testing.T) {
	store := newFakeStore(
		pendingRecord("grace", "bomb.txt"),
		pendingRecord("grace", "fine.txt"),
	)
	hot := newFakeObjectStore()
	hot.objects[key("grace", "bomb.txt")] = []byte("this file makes the analyzer panic somehow")
	hot.objects[key("grace", "fine.txt")] = []byte("this file analyzes without any trouble at all")
	ai := newFakeAnalyzer()
	ai.panics["bomb.txt"] = true

	worker := newTestAnalysisWorker(store, hot, newFakeExtractor(), ai)
	worker.Pass(context.Background())

	bomb := store.record("grace", "bomb.txt")
	if bomb.AIAnalysisStatus != types.AnalysisStatusFailed {
		t.Fatalf("expected panicking file marked failed, got %q", bomb.AIAnalysisStatus)
	}
	fine := store.record("grace", "fine.txt")
	if fine.AIAnalysisStatus != types.AnalysisStatusCompleted {
		t.Fatalf("expected sibling file completed, got %q", fine.AIAnalysisStatus)
	}
}

func TestAnalysisPersistsGeneratedKeywords(t *testing.T) {
	store := newFakeStore(pendingRecord("henry", "sparse.txt"))
	hot := newFakeObjectStore()
	hot.objects[key("henry", "sparse.txt")] = []byte("repetitive repetitive repetitive content content here")
	ai := newFakeAnalyzer()
	ai.results["sparse.txt"] = &types.AIAnalysis{
		Summary:        "Repetitive content.",
		Keywords:       []string{"repetitive", "content"},
		KeywordsSource: types.KeywordsSourceGenerated,
		Caption:        "Document: sparse.txt",
		AnalysisDate:   "2025-01-01T00:00:00Z",
		ModelUsed:      "test-model",
	}

	worker := newTestAnalysisWorker(store, hot, newFakeExtractor(), ai)
	worker.Pass(context.Background())

	rec := store.record("henry", "sparse.txt")
	if rec.AIAnalysisStatus != types.AnalysisStatusCompleted {
		t.Fatalf("expected completed, got %q", rec.AIAnalysisStatus)
	}
	if rec.AIAnalysis.KeywordsSource != types.KeywordsSourceGenerated {
		t.Errorf("expected generated keyword provenance, got %q", rec.AIAnalysis.KeywordsSource)
	}
	if len(rec.AIAnalysis.Keywords) == 0 {
		t.Error("expected non-empty keywords")
	}
}
