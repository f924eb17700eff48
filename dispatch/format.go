package dispatch

import (
	"fmt"
	"strings"

	"github.com/onnwee/osu-relay/enrich"
	"github.com/onnwee/osu-relay/refparse"
)

// difficulty renders "+HDDT ★ 5.43", or "★ 5.43" without mods.
func difficulty(view enrich.BeatmapView, mods refparse.ModifierSet) string {
	return join(mods.String(), fmt.Sprintf("★ %.2f", view.StarRating))
}

// FormatSourceRequest is the Twitch reply for a beatmap link.
func FormatSourceRequest(view enrich.BeatmapView, mods refparse.ModifierSet) string {
	return join("["+view.Status+"]", view.DisplayName, difficulty(view, mods))
}

// FormatRelayRequest is the in-game message for a beatmap link.
func FormatRelayRequest(sender string, view enrich.BeatmapView, mods refparse.ModifierSet) string {
	return fmt.Sprintf("%s » [%s %s] %s ⏰ %s ♫ %g (%s) [%s mirror]",
		sender, view.URL, view.DisplayName, difficulty(view, mods),
		view.Duration, view.BPM, view.Status, view.MirrorURL)
}

// FormatProfile is the Twitch reply for a profile link. Missing ranks show as #0.
func FormatProfile(view enrich.UserView) string {
	return join(view.GamemodePrefix, fmt.Sprintf("%s - #%d (%s: #%d) %dpp",
		view.Username, deref(view.GlobalRank), view.CountryCode, deref(view.CountryRank), view.PP))
}

func deref(p *int) int {
	if p == nil {
		return 0
	}
	return *p
}

// join concatenates the non-empty parts with single spaces.
func join(parts ...string) string {
	out := parts[:0:0]
	for _, p := range parts {
		if p != "" {
			out = append(out, p)
		}
	}
	return strings.Join(out, " ")
}
