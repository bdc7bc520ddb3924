package history

import (
	"strings"
	"time"
)

// The merge functions below are pure: they return new values and never drop
// accumulated information. Set-valued fields collapse exact string
// duplicates; the note log is append-only.

// MergeHistory unions newly extracted items into the existing category map
// for each fixed category. Unknown extracted categories are ignored.
// First-seen order is preserved so repeated merges are stable.
func MergeHistory(existing, extracted map[string][]string) map[string][]string {
	merged := make(map[string][]string, len(Categories))
	for _, cat := range Categories {
		merged[cat] = unionStrings(existing[cat], extracted[cat])
	}
	return merged
}

// MergeAllergies unions extracted allergies into the existing set.
func MergeAllergies(existing, extracted []string) []string {
	return unionStrings(existing, extracted)
}

// MergeNotes appends each non-empty extracted note, wrapped with the
// extraction timestamp and the source document's detected type. Existing
// notes are never deduplicated or removed.
func MergeNotes(existing []Note, extracted []string, docType string, extractedAt time.Time) []Note {
	merged := make([]Note, len(existing), len(existing)+len(extracted))
	copy(merged, existing)
	for _, n := range extracted {
		if strings.TrimSpace(n) == "" {
			continue
		}
		merged = append(merged, Note{
			Note:         n,
			ExtractedAt:  extractedAt,
			DocumentType: docType,
		})
	}
	return merged
}

func unionStrings(existing, extra []string) []string {
	seen := make(map[string]bool, len(existing)+len(extra))
	out := make([]string, 0, len(existing)+len(extra))
	for _, s := range existing {
		if s != "" && !seen[s] {
			seen[s] = true
			out = append(out, s)
		}
	}
	for _, s := range extra {
		if s != "" && !seen[s] {
			seen[s] = true
			out = append(out, s)
		}
	}
	return out
}
