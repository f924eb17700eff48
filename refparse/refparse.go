// Package refparse extracts osu! content references (beatmaps, beatmapsets,
// user profiles) and mod combinations from free-form chat text.
//
// It performs no I/O. Every link dialect the osu! website has used over the
// years is recognized; matchers are tried in a fixed priority order so the
// mode-qualified beatmap form wins over the bare beatmapset form.
package refparse

import (
	"regexp"
)

// Kind identifies what a ContentReference points at.
type Kind int

const (
	KindBeatmap Kind = iota
	KindBeatmapset
	KindProfile
)

// String returns a human-readable name for the kind.
func (k Kind) String() string {
	switch k {
	case KindBeatmap:
		return "beatmap"
	case KindBeatmapset:
		return "beatmapset"
	case KindProfile:
		return "profile"
	default:
		return "unknown"
	}
}

// ContentReference is a single reference found in a chat message.
type ContentReference struct {
	Kind Kind
	ID   string
	// Label names the matcher that produced the reference.
	Label string
}

type matcher struct {
	label   string
	kind    Kind
	pattern *regexp.Regexp
}

// contentMatchers are tried in order; the first hit wins.
var contentMatchers = []matcher{
	{"beatmap_official", KindBeatmap, regexp.MustCompile(`(?:https?://)?osu\.ppy\.sh/beatmapsets/[0-9]+#(osu|taiko|fruits|mania)/([0-9]+)`)},
	{"beatmap_official_alternate", KindBeatmap, regexp.MustCompile(`(?:https?://)?osu\.ppy\.sh/beatmaps/([0-9]+)`)},
	{"beatmap_old", KindBeatmap, regexp.MustCompile(`(?:https?://)?(osu|old)\.ppy\.sh/b/([0-9]+)`)},
	{"beatmap_old_query", KindBeatmap, regexp.MustCompile(`(?:https?://)?(osu|old)\.ppy\.sh/p/beatmap\?b=([0-9]+)`)},
	{"beatmapset_official", KindBeatmapset, regexp.MustCompile(`(?:https?://)?osu\.ppy\.sh/beatmapsets/([0-9]+)`)},
	{"beatmapset_old", KindBeatmapset, regexp.MustCompile(`(?:https?://)?(osu|old)\.ppy\.sh/s/([0-9]+)`)},
	{"beatmapset_old_query", KindBeatmapset, regexp.MustCompile(`(?:https?://)?(osu|old)\.ppy\.sh/p/beatmap\?s=([0-9]+)`)},
}

var profilePattern = regexp.MustCompile(`(?:https?://)?(osu|old)\.ppy\.sh/(u|users)/([^/\s]+)`)

// ParseContentReference returns the first beatmap or beatmapset link found in text.
func ParseContentReference(text string) (ContentReference, bool) {
	for _, m := range contentMatchers {
		groups := m.pattern.FindStringSubmatch(text)
		if groups == nil {
			continue
		}
		return ContentReference{Kind: m.kind, ID: groups[len(groups)-1], Label: m.label}, true
	}
	return ContentReference{}, false
}

// ParseProfileReference returns the first user profile link found in text.
// The identifier may be a numeric id or a username.
func ParseProfileReference(text string) (ContentReference, bool) {
	groups := profilePattern.FindStringSubmatch(text)
	if groups == nil {
		return ContentReference{}, false
	}
	return ContentReference{Kind: KindProfile, ID: groups[3], Label: "profile"}, true
}
