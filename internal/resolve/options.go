package resolve

import (
	"time"

	"github.com/marksync/marksync/internal/domain"
)

// Strategy names a conflict resolution algorithm.
type Strategy string

const (
	StrategyLocalWins        Strategy = "local-wins"
	StrategyRemoteWins       Strategy = "remote-wins"
	StrategyNaiveMerge       Strategy = "naive-merge"
	StrategyIntelligentMerge Strategy = "intelligent-merge"
	StrategyTimestampBased   Strategy = "timestamp-based"
	StrategyContentAware     Strategy = "content-aware"
	StrategyUserPreference   Strategy = "user-preference"
	StrategyAutoResolve      Strategy = "auto-resolve"
	StrategyManual           Strategy = "manual"
)

// Valid reports whether s names a known strategy.
func (s Strategy) Valid() bool {
	switch s {
	case StrategyLocalWins, StrategyRemoteWins, StrategyNaiveMerge,
		StrategyIntelligentMerge, StrategyTimestampBased, StrategyContentAware,
		StrategyUserPreference, StrategyAutoResolve, StrategyManual:
		return true
	}
	return false
}

// Title merge modes for the intelligent strategy.
const (
	TitleModePreferLonger = "prefer-longer"
	TitleModeConcatenate  = "concatenate"
)

// Sides for user preferences and activity hints.
const (
	SideLocal  = "local"
	SideRemote = "remote"
)

// IntelligentMergeOptions tunes the intelligent-merge strategy.
type IntelligentMergeOptions struct {
	TitleMode        string `json:"titleMode"`        // prefer-longer | concatenate
	TitleMaxLen      int    `json:"titleMaxLen"`      // concat longer than this falls back to local
	NotesSeparator   string `json:"notesSeparator"`   // joins divergent notes
	TitleSeparator   string `json:"titleSeparator"`   // joins concatenated titles
	PreserveBothURLs bool   `json:"preserveBothUrls"` // annotate the losing url into notes
}

// TimestampOptions tunes the timestamp-based strategy.
type TimestampOptions struct {
	Threshold          time.Duration `json:"threshold"`          // deltas within this may defer to activity
	PreferOlder        bool          `json:"preferOlder"`        // pick the older version instead of newer
	ActivityPreference string        `json:"activityPreference"` // "local"/"remote" hint from recorded user activity
}

// ContentAwareOptions tunes the content-aware strategy.
type ContentAwareOptions struct {
	DuplicateThreshold float64 `json:"duplicateThreshold"` // similarity at or above means near-duplicate
}

// UserPreferences is the per-conflict-type preference map for the
// user-preference strategy. Values are "local" or "remote".
type UserPreferences struct {
	Titles  string `json:"titles"`
	URLs    string `json:"urls"`
	Folders string `json:"folders"`
	Default string `json:"default"`
}

// AutoResolveOptions gates the auto-resolve strategy.
type AutoResolveOptions struct {
	// MaxSeverity is the highest tier still eligible for auto-resolution.
	MaxSeverity domain.Severity `json:"maxSeverity"`
	// MaxPerPass caps resolutions per sync pass.
	MaxPerPass int `json:"maxPerPass"`
}

// EnabledFor reports whether the given severity tier may be auto-resolved.
func (o AutoResolveOptions) EnabledFor(s domain.Severity) bool {
	return s.Rank() <= o.MaxSeverity.Rank()
}

// Options bundles every strategy's configuration. Each strategy reads only
// its own section; zero values are filled by Normalize.
type Options struct {
	Intelligent IntelligentMergeOptions `json:"intelligent"`
	Timestamp   TimestampOptions        `json:"timestamp"`
	Content     ContentAwareOptions     `json:"content"`
	Preferences UserPreferences         `json:"preferences"`
	Auto        AutoResolveOptions      `json:"auto"`
}

// DefaultOptions returns the standard strategy configuration.
func DefaultOptions() Options {
	return Options{
		Intelligent: IntelligentMergeOptions{
			TitleMode:      TitleModePreferLonger,
			TitleMaxLen:    100,
			NotesSeparator: " | ",
			TitleSeparator: " / ",
		},
		Timestamp: TimestampOptions{
			Threshold: 5 * time.Minute,
		},
		Content: ContentAwareOptions{
			DuplicateThreshold: 0.9,
		},
		Preferences: UserPreferences{
			Titles:  SideLocal,
			URLs:    SideLocal,
			Folders: SideLocal,
			Default: SideLocal,
		},
		Auto: AutoResolveOptions{
			MaxSeverity: domain.SeverityMedium,
			MaxPerPass:  50,
		},
	}
}

// Normalize fills zero-valued fields with defaults so partially supplied
// option structs behave predictably.
func (o Options) Normalize() Options {
	def := DefaultOptions()

	if o.Intelligent.TitleMode == "" {
		o.Intelligent.TitleMode = def.Intelligent.TitleMode
	}
	if o.Intelligent.TitleMaxLen <= 0 {
		o.Intelligent.TitleMaxLen = def.Intelligent.TitleMaxLen
	}
	if o.Intelligent.NotesSeparator == "" {
		o.Intelligent.NotesSeparator = def.Intelligent.NotesSeparator
	}
	if o.Intelligent.TitleSeparator == "" {
		o.Intelligent.TitleSeparator = def.Intelligent.TitleSeparator
	}
	if o.Timestamp.Threshold <= 0 {
		o.Timestamp.Threshold = def.Timestamp.Threshold
	}
	if o.Content.DuplicateThreshold <= 0 {
		o.Content.DuplicateThreshold = def.Content.DuplicateThreshold
	}
	if o.Preferences.Titles == "" {
		o.Preferences.Titles = def.Preferences.Titles
	}
	if o.Preferences.URLs == "" {
		o.Preferences.URLs = def.Preferences.URLs
	}
	if o.Preferences.Folders == "" {
		o.Preferences.Folders = def.Preferences.Folders
	}
	if o.Preferences.Default == "" {
		o.Preferences.Default = def.Preferences.Default
	}
	if o.Auto.MaxSeverity == "" {
		o.Auto.MaxSeverity = def.Auto.MaxSeverity
	}
	if o.Auto.MaxPerPass <= 0 {
		o.Auto.MaxPerPass = def.Auto.MaxPerPass
	}

	return o
}
