package types

import "testing"

func TestObjectKey(t *testing.T) {
	rec := &FileRecord{OwnerID: "alice", Filename: "report.pdf"}
	if got := rec.ObjectKey(); got != "alice/report.pdf" {
		t.Errorf("ObjectKey() = %q", got)
	}
}

func TestContentTypeForFilename(t *testing.T) {
	cases := []struct {
		filename string
		want     string
	}{
		{"report.pdf", "application/pdf"},
		{"PHOTO.JPG", "image/jpeg"},
		{"data.csv", "text/csv"},
		{"archive.tar.gz", "application/octet-stream"},
		{"noextension", "application/octet-stream"},
	}
	for _, c := range cases {
		if got := ContentTypeForFilename(c.filename); got != c.want {
			t.Errorf("ContentTypeForFilename(%q) = %q, want %q", c.filename, got, c.want)
		}
	}
}

func TestSupportedForAnalysis(t *testing.T) {
	supported := []string{"a.pdf", "b.txt", "c.CSV", "d.md", "e.log"}
	for _, f := range supported {
		if !SupportedForAnalysis(f) {
			t.Errorf("expected %q to be supported", f)
		}
	}
	unsupported := []string{"a.zip", "b.mp4", "noextension", "c.docx"}
	for _, f := range unsupported {
		if SupportedForAnalysis(f) {
			t.Errorf("expected %q to be unsupported", f)
		}
	}
}
