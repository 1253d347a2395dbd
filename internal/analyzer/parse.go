package analyzer

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/devanshpatel/filevault/internal/types"
)

// rawAnalysis is the JSON shape the prompt asks the model for.
type rawAnalysis struct {
	Summary  string   `json:"summary"`
	Keywords []string `json:"keywords"`
	Caption  string   `json:"caption"`
}

// parseAnalysis turns a model response into an analysis. Strict JSON first,
// then a line-oriented salvage pass, then field backfill; the function always
// returns a usable struct.
func parseAnalysis(raw, filename string) *types.AIAnalysis {
	// Models often wrap the JSON in markdown fences or prose; cut down to
	// the outermost object before decoding.
	candidate := raw
	if start := strings.Index(raw, "{"); start >= 0 {
		if end := strings.LastIndex(raw, "}"); end > start {
			candidate = raw[start : end+1]
		}
	}

	var parsed rawAnalysis
	if err := json.Unmarshal([]byte(candidate), &parsed); err != nil {
		parsed = parseFallback(raw)
	}

	analysis := &types.AIAnalysis{
		Summary:  strings.TrimSpace(parsed.Summary),
		Keywords: cleanKeywords(parsed.Keywords),
		Caption:  strings.TrimSpace(parsed.Caption),
	}
	backfillFields(analysis, filename)
	return analysis
}

// parseFallback salvages summary/keywords/caption from non-JSON responses by
// scanning labeled lines.
func parseFallback(raw string) rawAnalysis {
	var out rawAnalysis

	for _, line := range strings.Split(raw, "\n") {
		lower := strings.ToLower(line)
		value := line
		// Split on the first colon: the value itself may contain colons
		// ("Summary: meeting at 10:30").
		if idx := strings.Index(line, ":"); idx >= 0 {
			value = strings.TrimSpace(line[idx+1:])
		}

		switch {
		case strings.Contains(lower, "summary") && out.Summary == "":
			out.Summary = value
		case strings.Contains(lower, "keyword") && len(out.Keywords) == 0:
			out.Keywords = splitKeywordList(value)
		case strings.Contains(lower, "caption") && out.Caption == "":
			out.Caption = value
		}
	}

	return out
}

func splitKeywordList(value string) []string {
	// Tolerate both JSON-ish arrays and bare comma lists.
	if strings.Contains(value, "[") && strings.Contains(value, "]") {
		var parsed []string
		if err := json.Unmarshal([]byte(value), &parsed); err == nil {
			return parsed
		}
		value = strings.Trim(value, "[]")
	}

	parts := strings.Split(value, ",")
	keywords := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.Trim(strings.TrimSpace(p), `"`)
		if p != "" {
			keywords = append(keywords, p)
		}
	}
	if len(keywords) > 10 {
		keywords = keywords[:10]
	}
	return keywords
}

func cleanKeywords(keywords []string) []string {
	out := make([]string, 0, len(keywords))
	for _, k := range keywords {
		k = strings.TrimSpace(k)
		if k != "" {
			out = append(out, k)
		}
	}
	if len(out) > 10 {
		out = out[:10]
	}
	return out
}

// backfillFields fills missing fields with filename-derived defaults so a
// partially parsed response still yields a complete analysis.
func backfillFields(analysis *types.AIAnalysis, filename string) {
	ext := ""
	if idx := strings.LastIndex(filename, "."); idx >= 0 {
		ext = strings.ToUpper(filename[idx+1:])
	}

	if analysis.Summary == "" {
		analysis.Summary = fmt.Sprintf("This appears to be a %s file containing relevant content.", ext)
	}
	if len(analysis.Keywords) == 0 {
		analysis.Keywords = filenameKeywords(filename)
	}
	if analysis.Caption == "" {
		analysis.Caption = fmt.Sprintf("Document: %s", filename)
	}
}

// filenameKeywords is the last-resort keyword set when neither the model nor
// the text produced any.
func filenameKeywords(filename string) []string {
	base := filename
	if idx := strings.LastIndex(filename, "."); idx >= 0 {
		base = filename[:idx]
	}
	return []string{base, "document", "file"}
}
