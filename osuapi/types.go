package osuapi

// Beatmap is a single playable difficulty as returned by GET /beatmaps/{id}.
type Beatmap struct {
	ID               int         `json:"id"`
	BeatmapsetID     int         `json:"beatmapset_id"`
	DifficultyRating float64     `json:"difficulty_rating"`
	Mode             string      `json:"mode"`
	Status           string      `json:"status"`
	TotalLength      int         `json:"total_length"`
	Version          string      `json:"version"`
	BPM              float64     `json:"bpm"`
	Beatmapset       *Beatmapset `json:"beatmapset,omitempty"`
}

// Beatmapset groups every difficulty of one song.
type Beatmapset struct {
	ID       int       `json:"id"`
	Artist   string    `json:"artist"`
	Title    string    `json:"title"`
	Creator  string    `json:"creator"`
	Status   string    `json:"status"`
	Beatmaps []Beatmap `json:"beatmaps,omitempty"`
}

// UserStatistics holds ranking figures for the user's default mode.
// Ranks are nil for inactive or unranked players.
type UserStatistics struct {
	GlobalRank  *int    `json:"global_rank"`
	CountryRank *int    `json:"country_rank"`
	PP          float64 `json:"pp"`
}

// User is a player profile as returned by GET /users/{id}.
type User struct {
	ID          int            `json:"id"`
	Username    string         `json:"username"`
	CountryCode string         `json:"country_code"`
	Playmode    string         `json:"playmode"`
	Statistics  UserStatistics `json:"statistics"`
}

// DifficultyAttributes is the part of POST /beatmaps/{id}/attributes we consume.
type DifficultyAttributes struct {
	StarRating float64 `json:"star_rating"`
	MaxCombo   int     `json:"max_combo"`
}
