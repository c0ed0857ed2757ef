package domain

import (
	"testing"
)

func TestClassifierAnalyze(t *testing.T) {
	classifier := NewClassifier(DefaultClassifierConfig())

	tests := []struct {
		name         string
		local        *BookmarkNode
		remote       *BookmarkNode
		wantType     ConflictType
		wantSeverity Severity
	}{
		{
			name:         "title edit same url same folder",
			local:        &BookmarkNode{ID: "1", Title: "GitHub", URL: "https://github.com", ParentID: "f1"},
			remote:       &BookmarkNode{ID: "1", Title: "GitHub - Home", URL: "https://github.com", ParentID: "f1"},
			wantType:     ConflictTitleOnly,
			wantSeverity: SeverityLow,
		},
		{
			name:         "url change within the same domain",
			local:        &BookmarkNode{ID: "2", Title: "Docs", URL: "https://example.com/docs/v1", ParentID: "f1"},
			remote:       &BookmarkNode{ID: "2", Title: "Docs", URL: "https://example.com/guide/v1", ParentID: "f1"},
			wantType:     ConflictURLOnly,
			wantSeverity: SeverityMedium,
		},
		{
			name:         "url change across domains escalates",
			local:        &BookmarkNode{ID: "3", Title: "My Bank", URL: "https://bank.example.com/login", ParentID: "f1"},
			remote:       &BookmarkNode{ID: "3", Title: "My Bank", URL: "https://bank.phishing.net/login", ParentID: "f1"},
			wantType:     ConflictURLOnly,
			wantSeverity: SeverityCritical,
		},
		{
			name:         "folder move only",
			local:        &BookmarkNode{ID: "4", Title: "News", URL: "https://news.example.com", ParentID: "f1"},
			remote:       &BookmarkNode{ID: "4", Title: "News", URL: "https://news.example.com", ParentID: "f2"},
			wantType:     ConflictFolderOnly,
			wantSeverity: SeverityLow,
		},
		{
			name:         "several fields diverged",
			local:        &BookmarkNode{ID: "5", Title: "Docs Home", URL: "https://example.com/a", ParentID: "f1"},
			remote:       &BookmarkNode{ID: "5", Title: "Docs Index", URL: "https://example.com/bcd", ParentID: "f2"},
			wantType:     ConflictMixed,
			wantSeverity: SeverityMedium,
		},
		{
			name:         "deleted remotely",
			local:        &BookmarkNode{ID: "6", Title: "Gone", URL: "https://gone.example.com"},
			remote:       nil,
			wantType:     ConflictDeletion,
			wantSeverity: SeverityCritical,
		},
		{
			name:         "deleted locally",
			local:        nil,
			remote:       &BookmarkNode{ID: "7", Title: "Gone", URL: "https://gone.example.com"},
			wantType:     ConflictDeletion,
			wantSeverity: SeverityCritical,
		},
		{
			name:         "title rewrite escalates",
			local:        &BookmarkNode{ID: "8", Title: "GitHub", URL: "https://github.com", ParentID: "f1"},
			remote:       &BookmarkNode{ID: "8", Title: "Completely Different Bookmark Name", URL: "https://github.com", ParentID: "f1"},
			wantType:     ConflictTitleOnly,
			wantSeverity: SeverityCritical,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := classifier.Analyze(tt.local, tt.remote)
			if a.Type != tt.wantType {
				t.Errorf("Analyze() type = %v, want %v", a.Type, tt.wantType)
			}
			if a.Severity != tt.wantSeverity {
				t.Errorf("Analyze() severity = %v, want %v", a.Severity, tt.wantSeverity)
			}
			if a.Similarity < 0.0 || a.Similarity > 1.0 {
				t.Errorf("Analyze() similarity = %v, out of [0, 1]", a.Similarity)
			}
		})
	}
}

func TestClassifierDuplicateOverridesFieldType(t *testing.T) {
	classifier := NewClassifier(DefaultClassifierConfig())

	// A one-character url typo with an identical title would classify as
	// url_only; the duplicate check runs last and takes precedence.
	local := &BookmarkNode{ID: "1", Title: "Example Docs", URL: "https://example.com/docs", ParentID: "f1"}
	remote := &BookmarkNode{ID: "1", Title: "Example Docs", URL: "https://example.com/doc", ParentID: "f1"}

	a := classifier.Analyze(local, remote)
	if a.Type != ConflictDuplicate {
		t.Errorf("Analyze() type = %v, want %v", a.Type, ConflictDuplicate)
	}
	if a.Severity != SeverityLow {
		t.Errorf("Analyze() severity = %v, want %v", a.Severity, SeverityLow)
	}
}

func TestClassifierThresholdsConfigurable(t *testing.T) {
	// With a stricter url threshold the same pair stays url_only.
	cfg := DefaultClassifierConfig()
	cfg.DuplicateURLThreshold = 0.99

	classifier := NewClassifier(cfg)
	local := &BookmarkNode{ID: "1", Title: "Example Docs", URL: "https://example.com/docs", ParentID: "f1"}
	remote := &BookmarkNode{ID: "1", Title: "Example Docs", URL: "https://example.com/doc", ParentID: "f1"}

	a := classifier.Analyze(local, remote)
	if a.Type != ConflictURLOnly {
		t.Errorf("Analyze() type = %v, want %v", a.Type, ConflictURLOnly)
	}
}

func TestClassifyFillsRecord(t *testing.T) {
	classifier := NewClassifier(DefaultClassifierConfig())

	rec := ConflictRecord{
		ID:     "1",
		Local:  &BookmarkNode{ID: "1", Title: "GitHub", URL: "https://github.com", ParentID: "f1"},
		Remote: &BookmarkNode{ID: "1", Title: "GitHub - Home", URL: "https://github.com", ParentID: "f1"},
	}

	a := classifier.Classify(&rec)
	if rec.Type != a.Type {
		t.Errorf("Classify() record type = %v, analysis type = %v", rec.Type, a.Type)
	}
	if rec.Severity != a.Severity {
		t.Errorf("Classify() record severity = %v, analysis severity = %v", rec.Severity, a.Severity)
	}
	if rec.Similarity != a.Similarity {
		t.Errorf("Classify() record similarity = %v, analysis similarity = %v", rec.Similarity, a.Similarity)
	}
}

func TestSeverityRank(t *testing.T) {
	ordered := []Severity{SeverityLow, SeverityMedium, SeverityHigh, SeverityCritical}
	for i := 1; i < len(ordered); i++ {
		if ordered[i-1].Rank() >= ordered[i].Rank() {
			t.Errorf("Rank() ordering broken: %v >= %v", ordered[i-1], ordered[i])
		}
	}
}
