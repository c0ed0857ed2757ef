package resolve

import (
	"fmt"
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/marksync/marksync/internal/domain"
)

// naiveMergeWindow is the timestamp gap beyond which the newer version wins
// outright instead of merging field-wise.
const naiveMergeWindow = 60 * time.Second

// naiveMerge picks the clearly newer version, or merges field by field when
// the versions are close in time.
func (e *Engine) naiveMerge(conflict domain.ConflictRecord) Outcome {
	local, remote := conflict.Local, conflict.Remote
	if local == nil || remote == nil {
		return e.pickSurvivor(local, remote, "naive merge kept the surviving side")
	}

	lt, rt := modTime(local), modTime(remote)
	gap := lt.Sub(rt)
	if gap < 0 {
		gap = -gap
	}
	if gap > naiveMergeWindow {
		if lt.After(rt) {
			return Outcome{Resolved: true, Bookmark: local.Clone(), Reason: "local version is newer"}
		}
		return Outcome{Resolved: true, Bookmark: remote.Clone(), Reason: "remote version is newer"}
	}

	merged := local.Clone()

	// Longer non-empty title wins.
	if len(remote.Title) > len(local.Title) {
		merged.Title = remote.Title
	}
	// Non-empty url wins over empty.
	if merged.URL == "" && remote.URL != "" {
		merged.URL = remote.URL
	}
	// Earliest creation, latest modification.
	if !remote.DateAdded.IsZero() && (local.DateAdded.IsZero() || remote.DateAdded.Before(local.DateAdded)) {
		merged.DateAdded = remote.DateAdded
	}
	if rt.After(lt) {
		merged.DateModified = rt
	}
	// Parent prefers local when both are present.
	if merged.ParentID == "" {
		merged.ParentID = remote.ParentID
	}

	return Outcome{Resolved: true, Bookmark: merged, Reason: "field-wise merge of close versions"}
}

// intelligentMerge combines both versions field by field according to the
// configured merge modes.
func (e *Engine) intelligentMerge(conflict domain.ConflictRecord, opts IntelligentMergeOptions) Outcome {
	local, remote := conflict.Local, conflict.Remote
	if local == nil || remote == nil {
		return e.pickSurvivor(local, remote, "intelligent merge kept the surviving side")
	}

	merged := local.Clone()

	// Title.
	if local.Title != remote.Title {
		switch opts.TitleMode {
		case TitleModeConcatenate:
			combined := local.Title + opts.TitleSeparator + remote.Title
			if len(combined) <= opts.TitleMaxLen {
				merged.Title = combined
			} // over the cap: keep local
		default: // prefer-longer
			if len(remote.Title) > len(local.Title) {
				merged.Title = remote.Title
			}
		}
	}

	// Notes: concatenate when both sides differ.
	if remote.Notes != "" && remote.Notes != local.Notes {
		if local.Notes == "" {
			merged.Notes = remote.Notes
		} else {
			merged.Notes = local.Notes + opts.NotesSeparator + remote.Notes
		}
	}

	// Tags: set union, sorted for stable output.
	merged.Tags = unionTags(local.Tags, remote.Tags)

	// URL: prefer the structurally valid one; on two valid urls keep local,
	// optionally annotating the remote one.
	if local.URL != remote.URL {
		localValid := validURL(local.URL)
		remoteValid := validURL(remote.URL)
		switch {
		case localValid && !remoteValid:
			merged.URL = local.URL
		case remoteValid && !localValid:
			merged.URL = remote.URL
		case localValid && remoteValid:
			merged.URL = local.URL
			if opts.PreserveBothURLs {
				annotation := "[alternate url] " + remote.URL
				if merged.Notes == "" {
					merged.Notes = annotation
				} else {
					merged.Notes = merged.Notes + opts.NotesSeparator + annotation
				}
			}
		}
	}

	return Outcome{Resolved: true, Bookmark: merged, Reason: "merged title, notes, tags and url"}
}

// timestampBased picks a version by modification time, optionally deferring
// to recorded user activity when the versions are close.
func (e *Engine) timestampBased(conflict domain.ConflictRecord, opts TimestampOptions) Outcome {
	local, remote := conflict.Local, conflict.Remote
	if local == nil || remote == nil {
		return e.pickSurvivor(local, remote, "timestamp resolution kept the surviving side")
	}

	lt, rt := modTime(local), modTime(remote)
	gap := lt.Sub(rt)
	if gap < 0 {
		gap = -gap
	}

	if gap <= opts.Threshold && opts.ActivityPreference != "" {
		if opts.ActivityPreference == SideRemote {
			return Outcome{Resolved: true, Bookmark: remote.Clone(), Reason: "close timestamps, user activity prefers remote"}
		}
		return Outcome{Resolved: true, Bookmark: local.Clone(), Reason: "close timestamps, user activity prefers local"}
	}

	localWins := lt.After(rt)
	if opts.PreferOlder {
		localWins = !localWins
	}
	if localWins {
		return Outcome{Resolved: true, Bookmark: local.Clone(), Reason: timestampReason(opts.PreferOlder, SideLocal)}
	}
	return Outcome{Resolved: true, Bookmark: remote.Clone(), Reason: timestampReason(opts.PreferOlder, SideRemote)}
}

func timestampReason(preferOlder bool, side string) string {
	if preferOlder {
		return fmt.Sprintf("%s version is older", side)
	}
	return fmt.Sprintf("%s version is newer", side)
}

// contentAware keeps the more complete version of near-duplicates, and
// otherwise prefers the structurally valid url.
func (e *Engine) contentAware(conflict domain.ConflictRecord, opts ContentAwareOptions, analysis domain.Analysis) Outcome {
	local, remote := conflict.Local, conflict.Remote
	if local == nil || remote == nil {
		return e.pickSurvivor(local, remote, "content resolution kept the surviving side")
	}

	if analysis.Similarity >= opts.DuplicateThreshold {
		return e.pickComplete(local, remote, "near-duplicate, kept the more complete version")
	}

	localValid := validURL(local.URL)
	remoteValid := validURL(remote.URL)
	switch {
	case localValid && !remoteValid:
		return Outcome{Resolved: true, Bookmark: local.Clone(), Reason: "local url is valid, remote is not"}
	case remoteValid && !localValid:
		return Outcome{Resolved: true, Bookmark: remote.Clone(), Reason: "remote url is valid, local is not"}
	}

	return e.pickComplete(local, remote, "tie-break on completeness")
}

// userPreference looks the conflict type up in the stored preference map.
// Always succeeds.
func (e *Engine) userPreference(conflict domain.ConflictRecord, prefs UserPreferences, analysis domain.Analysis) Outcome {
	side := prefs.Default
	switch analysis.Type {
	case domain.ConflictTitleOnly:
		side = prefs.Titles
	case domain.ConflictURLOnly:
		side = prefs.URLs
	case domain.ConflictFolderOnly:
		side = prefs.Folders
	}

	if side == SideRemote {
		return Outcome{Resolved: true, Bookmark: conflict.Remote.Clone(), Reason: fmt.Sprintf("user preference for %s conflicts: remote", analysis.Type)}
	}
	return Outcome{Resolved: true, Bookmark: conflict.Local.Clone(), Reason: fmt.Sprintf("user preference for %s conflicts: local", analysis.Type)}
}

// autoResolve delegates to intelligent-merge when the severity tier is
// eligible and the per-pass cap has room.
func (e *Engine) autoResolve(conflict domain.ConflictRecord, opts Options, analysis domain.Analysis, pass *PassContext) Outcome {
	if !opts.Auto.EnabledFor(analysis.Severity) {
		return Outcome{Resolved: false, Reason: fmt.Sprintf("auto-resolution disabled for %s severity", analysis.Severity)}
	}
	if pass.AutoResolved >= opts.Auto.MaxPerPass {
		return Outcome{Resolved: false, Reason: "auto-resolution limit reached for this sync pass"}
	}

	pass.AutoResolved++
	return e.intelligentMerge(conflict, opts.Intelligent)
}

// pickSurvivor handles the one-side-absent case shared by several strategies.
// The surviving side wins; two absent sides resolve to a deletion.
func (e *Engine) pickSurvivor(local, remote *domain.BookmarkNode, reason string) Outcome {
	if local != nil {
		return Outcome{Resolved: true, Bookmark: local.Clone(), Reason: reason}
	}
	return Outcome{Resolved: true, Bookmark: remote.Clone(), Reason: reason}
}

// pickComplete keeps whichever version scores higher on completeness,
// with local winning ties.
func (e *Engine) pickComplete(local, remote *domain.BookmarkNode, reason string) Outcome {
	if domain.Completeness(remote) > domain.Completeness(local) {
		return Outcome{Resolved: true, Bookmark: remote.Clone(), Reason: reason}
	}
	return Outcome{Resolved: true, Bookmark: local.Clone(), Reason: reason}
}

// modTime returns the node's effective last-change time.
func modTime(n *domain.BookmarkNode) time.Time {
	if !n.DateModified.IsZero() {
		return n.DateModified
	}
	if !n.DateGroupModified.IsZero() {
		return n.DateGroupModified
	}
	return n.DateAdded
}

// validURL reports whether s parses as an absolute http or https url.
func validURL(s string) bool {
	if s == "" {
		return false
	}
	u, err := url.Parse(s)
	if err != nil {
		return false
	}
	scheme := strings.ToLower(u.Scheme)
	return (scheme == "http" || scheme == "https") && u.Host != ""
}

// unionTags merges two tag sets into a sorted slice.
func unionTags(a, b []string) []string {
	if len(a) == 0 && len(b) == 0 {
		return nil
	}
	set := make(map[string]bool, len(a)+len(b))
	for _, t := range a {
		set[t] = true
	}
	for _, t := range b {
		set[t] = true
	}
	out := make([]string, 0, len(set))
	for t := range set {
		out = append(out, t)
	}
	sort.Strings(out)
	return out
}
