package refparse

import (
	"regexp"
	"strings"
)

// Mod is a short mod acronym such as "HD" or "DT".
type Mod string

const (
	ModEasy        Mod = "EZ"
	ModHidden      Mod = "HD"
	ModHalfTime    Mod = "HT"
	ModDoubleTime  Mod = "DT"
	ModNightcore   Mod = "NC"
	ModHardRock    Mod = "HR"
	ModFlashlight  Mod = "FL"
	ModNoFail      Mod = "NF"
	ModSuddenDeath Mod = "SD"
	ModPerfect     Mod = "PF"
	ModRelax       Mod = "RX"
	ModAutopilot   Mod = "AP"
	ModSpunOut     Mod = "SO"
	ModAutoplay    Mod = "AT"
	ModScoreV2     Mod = "V2"
)

// vocabulary is the ranked mod list recognized after a '+' marker.
// Order matters: alternatives are tried top to bottom, long form first.
var vocabulary = []struct {
	short Mod
	long  string
}{
	{ModEasy, "Easy"},
	{ModHidden, "Hidden"},
	{ModHalfTime, "HalfTime"},
	{ModDoubleTime, "DoubleTime"},
	{ModNightcore, "Nightcore"},
	{ModHardRock, "HardRock"},
	{ModFlashlight, "Flashlight"},
	{ModNoFail, "NoFail"},
	{ModSuddenDeath, "SuddenDeath"},
	{ModPerfect, "Perfect"},
	{ModRelax, "Relax"},
	{ModAutopilot, "Autopilot"},
	{ModSpunOut, "SpunOut"},
	{ModAutoplay, "Autoplay"},
	{ModScoreV2, "ScoreV2"},
}

var (
	longToShort = buildLongToShort()
	modsRun     *regexp.Regexp
	modToken    *regexp.Regexp
)

func init() {
	alts := make([]string, 0, len(vocabulary)*2)
	for _, v := range vocabulary {
		alts = append(alts, regexp.QuoteMeta(v.long), regexp.QuoteMeta(string(v.short)))
	}
	alt := strings.Join(alts, "|")
	modsRun = regexp.MustCompile(`(?i)\+((?:` + alt + `)+)`)
	modToken = regexp.MustCompile(`(?i)^(?:` + alt + `)`)
}

func buildLongToShort() map[string]Mod {
	m := make(map[string]Mod, len(vocabulary))
	for _, v := range vocabulary {
		m[strings.ToUpper(v.long)] = v.short
	}
	return m
}

// ModifierSet is an ordered list of mods as they appeared in the message.
// A nil set means no '+' run was recognized; a non-nil empty set is a valid
// "no mods" value.
type ModifierSet []Mod

// ParseModifiers reads the first run of mod tokens following a '+' in text.
// Long names ("DoubleTime") and acronyms ("dt") are both accepted and
// normalized to acronyms. Repeated tokens are kept.
func ParseModifiers(text string) ModifierSet {
	groups := modsRun.FindStringSubmatch(text)
	if groups == nil {
		return nil
	}
	run := groups[1]
	set := ModifierSet{}
	for run != "" {
		tok := modToken.FindString(run)
		if tok == "" {
			break
		}
		run = run[len(tok):]
		set = append(set, normalize(tok))
	}
	return set
}

func normalize(tok string) Mod {
	upper := strings.ToUpper(tok)
	if len(upper) > 2 {
		if m, ok := longToShort[upper]; ok {
			return m
		}
	}
	return Mod(upper)
}

// Empty reports whether the set carries no mods.
func (s ModifierSet) Empty() bool { return len(s) == 0 }

// Has reports whether m is in the set.
func (s ModifierSet) Has(m Mod) bool {
	for _, x := range s {
		if x == m {
			return true
		}
	}
	return false
}

// Codes returns the acronyms as plain strings, e.g. for API requests.
func (s ModifierSet) Codes() []string {
	out := make([]string, len(s))
	for i, m := range s {
		out[i] = string(m)
	}
	return out
}

// String renders the set as "+HDDT", or "" when empty.
func (s ModifierSet) String() string {
	if s.Empty() {
		return ""
	}
	var b strings.Builder
	b.WriteByte('+')
	for _, m := range s {
		b.WriteString(string(m))
	}
	return b.String()
}
