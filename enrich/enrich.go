// Package enrich resolves parsed references against the osu! API and derives
// the display values used in chat replies: mod-adjusted star rating, length
// and BPM, status label, mirror link and gamemode prefix.
package enrich

import (
	"context"
	"fmt"
	"math"
	"strconv"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/onnwee/osu-relay/osuapi"
	"github.com/onnwee/osu-relay/refparse"
)

// DefaultMirrorTemplate is used when no mirror template is configured.
const DefaultMirrorTemplate = "https://catboy.best/d/{id}"

// ContentAPI is the subset of the osu! API the service depends on.
type ContentAPI interface {
	GetBeatmap(ctx context.Context, id string) (osuapi.Beatmap, error)
	GetBeatmapset(ctx context.Context, id string) (osuapi.Beatmapset, error)
	GetBeatmapsetFromBeatmap(ctx context.Context, bm osuapi.Beatmap) (osuapi.Beatmapset, error)
	GetUser(ctx context.Context, id string) (osuapi.User, error)
	GetRecomputedAttributes(ctx context.Context, beatmapID int, mods []string, ruleset string) (osuapi.DifficultyAttributes, error)
}

// BeatmapView is the display form of a beatmap request.
type BeatmapView struct {
	URL         string
	DisplayName string
	StarRating  float64
	Duration    string
	BPM         float64
	Status      string
	MirrorURL   string
}

// UserView is the display form of a profile lookup.
type UserView struct {
	GamemodePrefix string
	Username       string
	GlobalRank     *int
	CountryCode    string
	CountryRank    *int
	PP             int
}

// Service turns references into views.
type Service struct {
	api            ContentAPI
	mirrorTemplate string
}

// New returns a Service using api. An empty mirrorTemplate selects DefaultMirrorTemplate.
func New(api ContentAPI, mirrorTemplate string) *Service {
	if mirrorTemplate == "" {
		mirrorTemplate = DefaultMirrorTemplate
	}
	return &Service{api: api, mirrorTemplate: mirrorTemplate}
}

// ResolveBeatmap fetches the beatmap and its set for a beatmap or beatmapset reference.
// A beatmapset reference resolves to the set's first difficulty.
func (s *Service) ResolveBeatmap(ctx context.Context, ref refparse.ContentReference) (osuapi.Beatmap, osuapi.Beatmapset, error) {
	switch ref.Kind {
	case refparse.KindBeatmap:
		bm, err := s.api.GetBeatmap(ctx, ref.ID)
		if err != nil {
			return osuapi.Beatmap{}, osuapi.Beatmapset{}, err
		}
		set, err := s.api.GetBeatmapsetFromBeatmap(ctx, bm)
		if err != nil {
			return osuapi.Beatmap{}, osuapi.Beatmapset{}, err
		}
		return bm, set, nil
	case refparse.KindBeatmapset:
		set, err := s.api.GetBeatmapset(ctx, ref.ID)
		if err != nil {
			return osuapi.Beatmap{}, osuapi.Beatmapset{}, err
		}
		if len(set.Beatmaps) == 0 {
			return osuapi.Beatmap{}, osuapi.Beatmapset{}, fmt.Errorf("beatmapset %s has no beatmaps: %w", ref.ID, osuapi.ErrNotFound)
		}
		return set.Beatmaps[0], set, nil
	default:
		return osuapi.Beatmap{}, osuapi.Beatmapset{}, fmt.Errorf("reference kind %v is not a beatmap", ref.Kind)
	}
}

// ResolveUser fetches the user behind a profile reference.
func (s *Service) ResolveUser(ctx context.Context, ref refparse.ContentReference) (osuapi.User, error) {
	if ref.Kind != refparse.KindProfile {
		return osuapi.User{}, fmt.Errorf("reference kind %v is not a profile", ref.Kind)
	}
	return s.api.GetUser(ctx, ref.ID)
}

// StarRating returns the rating with mods applied, rounded to two decimals.
// Without mods the stored rating is used and no request is made.
func (s *Service) StarRating(ctx context.Context, bm osuapi.Beatmap, mods refparse.ModifierSet) (float64, error) {
	if mods.Empty() {
		return round2(bm.DifficultyRating), nil
	}
	attrs, err := s.api.GetRecomputedAttributes(ctx, bm.ID, mods.Codes(), bm.Mode)
	if err != nil {
		return 0, err
	}
	return round2(attrs.StarRating), nil
}

// BeatmapView builds the display values for bm.
func (s *Service) BeatmapView(ctx context.Context, bm osuapi.Beatmap, set osuapi.Beatmapset, mods refparse.ModifierSet) (BeatmapView, error) {
	stars, err := s.StarRating(ctx, bm, mods)
	if err != nil {
		return BeatmapView{}, err
	}
	return BeatmapView{
		URL:         BeatmapURL(bm.ID),
		DisplayName: fmt.Sprintf("%s - %s [%s]", set.Artist, set.Title, bm.Version),
		StarRating:  stars,
		Duration:    Duration(bm.TotalLength, mods),
		BPM:         BPM(bm.BPM, mods),
		Status:      StatusLabel(bm.Status),
		MirrorURL:   s.MirrorURL(set.ID),
	}, nil
}

// UserViewOf builds the display values for u.
func UserViewOf(u osuapi.User) UserView {
	return UserView{
		GamemodePrefix: GamemodePrefix(u.Playmode),
		Username:       u.Username,
		GlobalRank:     u.Statistics.GlobalRank,
		CountryCode:    u.CountryCode,
		CountryRank:    u.Statistics.CountryRank,
		PP:             int(math.Round(u.Statistics.PP)),
	}
}

// MirrorURL fills the configured mirror template with a beatmapset id.
func (s *Service) MirrorURL(setID int) string {
	return strings.ReplaceAll(s.mirrorTemplate, "{id}", strconv.Itoa(setID))
}

// BeatmapURL is the short link used in in-game messages.
func BeatmapURL(id int) string {
	return "https://osu.ppy.sh/b/" + strconv.Itoa(id)
}

// rateClass reports the speed multiplier class of mods: +1 faster, -1 slower, 0 none.
// Sets carrying both classes are contradictory and get no adjustment.
func rateClass(mods refparse.ModifierSet) int {
	fast := mods.Has(refparse.ModDoubleTime) || mods.Has(refparse.ModNightcore)
	slow := mods.Has(refparse.ModHalfTime)
	switch {
	case fast && !slow:
		return 1
	case slow && !fast:
		return -1
	default:
		return 0
	}
}

// Duration formats a length in seconds as mm:ss or hh:mm:ss after mod adjustment.
func Duration(seconds int, mods refparse.ModifierSet) string {
	s := float64(seconds)
	switch rateClass(mods) {
	case 1:
		s *= 0.67
	case -1:
		s *= 1.33
	}
	total := int(math.Round(s))
	h, m, sec := total/3600, (total/60)%60, total%60
	if h == 0 {
		return fmt.Sprintf("%02d:%02d", m, sec)
	}
	return fmt.Sprintf("%02d:%02d:%02d", h, m, sec)
}

// BPM applies the mod speed multiplier to bpm.
func BPM(bpm float64, mods refparse.ModifierSet) float64 {
	switch rateClass(mods) {
	case 1:
		return bpm * 1.5
	case -1:
		return bpm * 0.75
	}
	return bpm
}

const statusWIP = "wip"

// StatusLabel renders an API status ("ranked") as a label ("Ranked").
// The work-in-progress status keeps its raw acronym form.
func StatusLabel(status string) string {
	if strings.EqualFold(status, statusWIP) {
		return strings.ToUpper(statusWIP)
	}
	// Casers hold state, so each call gets its own.
	return cases.Title(language.English).String(strings.ToLower(status))
}

var gamemodePrefixes = map[string]string{
	"osu":    "🟣",
	"mania":  "🎹",
	"taiko":  "🥁",
	"fruits": "🍏",
}

// GamemodePrefix maps a ruleset name to its emoji, or "" when unknown.
func GamemodePrefix(mode string) string {
	return gamemodePrefixes[mode]
}

func round2(f float64) float64 {
	return math.Round(f*100) / 100
}
