package domain

import "strings"

const (
	// Similarity weights (per-field contribution to the combined score)
	SimilarityWeightTitle  = 0.3
	SimilarityWeightURL    = 0.4
	SimilarityWeightFolder = 0.2
	SimilarityWeightNotes  = 0.1

	// Completeness weights (presence check, all four always count)
	CompletenessWeightTitle = 0.3
	CompletenessWeightURL   = 0.4
	CompletenessWeightNotes = 0.2
	CompletenessWeightTags  = 0.1
)

// StringSimilarity returns a normalized similarity in [0, 1] between two
// strings, case-insensitive. Two empty strings are identical (1); an empty
// string against a non-empty one has nothing in common (0).
func StringSimilarity(a, b string) float64 {
	a = strings.ToLower(a)
	b = strings.ToLower(b)

	if a == b {
		return 1.0
	}
	if a == "" || b == "" {
		return 0.0
	}

	ra := []rune(a)
	rb := []rune(b)
	maxLen := len(ra)
	if len(rb) > maxLen {
		maxLen = len(rb)
	}

	return 1.0 - float64(levenshtein(ra, rb))/float64(maxLen)
}

// levenshtein computes the edit distance using the two-row iteration.
func levenshtein(a, b []rune) int {
	if len(a) == 0 {
		return len(b)
	}
	if len(b) == 0 {
		return len(a)
	}

	prev := make([]int, len(b)+1)
	curr := make([]int, len(b)+1)
	for j := 0; j <= len(b); j++ {
		prev[j] = j
	}

	for i := 1; i <= len(a); i++ {
		curr[0] = i
		for j := 1; j <= len(b); j++ {
			cost := 1
			if a[i-1] == b[j-1] {
				cost = 0
			}
			curr[j] = minInt(
				prev[j]+1,      // deletion
				curr[j-1]+1,    // insertion
				prev[j-1]+cost, // substitution
			)
		}
		prev, curr = curr, prev
	}

	return prev[len(b)]
}

func minInt(values ...int) int {
	m := values[0]
	for _, v := range values[1:] {
		if v < m {
			m = v
		}
	}
	return m
}

// NodeSimilarity computes the weighted similarity between two node versions.
// A field's weight only enters the denominator when both sides carry data for
// it, so sparse nodes are not penalized for fields they never had.
func NodeSimilarity(local, remote *BookmarkNode) float64 {
	if local == nil || remote == nil {
		return 0.0
	}

	var score, weights float64

	if local.Title != "" && remote.Title != "" {
		score += StringSimilarity(local.Title, remote.Title) * SimilarityWeightTitle
		weights += SimilarityWeightTitle
	}
	if local.URL != "" && remote.URL != "" {
		score += StringSimilarity(local.URL, remote.URL) * SimilarityWeightURL
		weights += SimilarityWeightURL
	}
	if local.ParentID != "" && remote.ParentID != "" {
		// Folder placement is a binary signal: same parent or not.
		if local.ParentID == remote.ParentID {
			score += SimilarityWeightFolder
		}
		weights += SimilarityWeightFolder
	}
	if local.Notes != "" && remote.Notes != "" {
		score += StringSimilarity(local.Notes, remote.Notes) * SimilarityWeightNotes
		weights += SimilarityWeightNotes
	}

	if weights == 0 {
		return 0.0
	}
	return score / weights
}

// Completeness scores how much data a node version carries. Used by
// content-aware resolution to keep the richer of two near-duplicates.
// All four weights always count toward the denominator.
func Completeness(n *BookmarkNode) float64 {
	if n == nil {
		return 0.0
	}

	total := CompletenessWeightTitle + CompletenessWeightURL +
		CompletenessWeightNotes + CompletenessWeightTags

	var score float64
	if n.Title != "" {
		score += CompletenessWeightTitle
	}
	if n.URL != "" {
		score += CompletenessWeightURL
	}
	if n.Notes != "" {
		score += CompletenessWeightNotes
	}
	if len(n.Tags) > 0 {
		score += CompletenessWeightTags
	}

	return score / total
}
