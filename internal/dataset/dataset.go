package dataset

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/cespare/xxhash/v2"
)

// Play is one entry of a streaming-history export.
type Play struct {
	TS        string `json:"ts"`
	MsPlayed  int64  `json:"ms_played"`
	TrackName string `json:"master_metadata_track_name"`
	Artist    string `json:"master_metadata_album_artist_name"`
	Album     string `json:"master_metadata_album_album_name"`
}

// Time parses the play timestamp. Exports use RFC 3339 with a Z suffix.
func (p *Play) Time() time.Time {
	t, err := time.Parse(time.RFC3339, p.TS)
	if err != nil {
		return time.Time{}
	}
	return t
}

// Dataset is an immutable snapshot of a loaded play log. Reloads produce a
// fresh Dataset; consumers holding the old pointer keep a consistent view.
type Dataset struct {
	Plays       []Play
	Fingerprint string
	LoadedAt    time.Time
}

// Load parses an export payload. Plays with no timestamp or no track are
// dropped; the rest keep export order.
func Load(data []byte) (*Dataset, error) {
	var raw []Play
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("could not parse play log: %w", err)
	}

	plays := make([]Play, 0, len(raw))
	for _, p := range raw {
		if strings.TrimSpace(p.TS) == "" || strings.TrimSpace(p.TrackName) == "" {
			continue
		}
		plays = append(plays, p)
	}

	return &Dataset{
		Plays:       plays,
		Fingerprint: fmt.Sprintf("%016x", xxhash.Sum64(data)),
		LoadedAt:    time.Now(),
	}, nil
}

// LoadFile reads and parses an export file.
func LoadFile(path string) (*Dataset, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("could not read play log %s: %w", path, err)
	}
	return Load(data)
}

// Len returns the number of plays.
func (d *Dataset) Len() int {
	if d == nil {
		return 0
	}
	return len(d.Plays)
}

// Span returns the first and last play timestamps.
func (d *Dataset) Span() (time.Time, time.Time) {
	var first, last time.Time
	for i := range d.Plays {
		t := d.Plays[i].Time()
		if t.IsZero() {
			continue
		}
		if first.IsZero() || t.Before(first) {
			first = t
		}
		if last.IsZero() || t.After(last) {
			last = t
		}
	}
	return first, last
}

// Summary renders a one-line description of the snapshot for prompts.
func (d *Dataset) Summary() string {
	if d.Len() == 0 {
		return ""
	}
	first, last := d.Span()
	if first.IsZero() {
		return fmt.Sprintf("%d plays", d.Len())
	}
	return fmt.Sprintf("%d plays from %s to %s",
		d.Len(), first.Format("2006-01-02"), last.Format("2006-01-02"))
}

// Filter options shared by the aggregation helpers. A zero Year means all
// years.
type Filter struct {
	Year   int
	Artist string
}

func (f Filter) matches(p *Play) bool {
	if f.Year != 0 {
		t := p.Time()
		if t.IsZero() || t.Year() != f.Year {
			return false
		}
	}
	if f.Artist != "" && !strings.EqualFold(f.Artist, p.Artist) {
		return false
	}
	return true
}

// RankedEntry is one row of a top-N aggregation.
type RankedEntry struct {
	Name     string `json:"name"`
	Plays    int    `json:"plays"`
	MsPlayed int64  `json:"ms_played"`
}

func (d *Dataset) rank(f Filter, key func(*Play) string, limit int) []RankedEntry {
	type agg struct {
		plays int
		ms    int64
	}
	counts := make(map[string]*agg)
	for i := range d.Plays {
		p := &d.Plays[i]
		if !f.matches(p) {
			continue
		}
		k := key(p)
		if k == "" {
			continue
		}
		a := counts[k]
		if a == nil {
			a = &agg{}
			counts[k] = a
		}
		a.plays++
		a.ms += p.MsPlayed
	}

	entries := make([]RankedEntry, 0, len(counts))
	for name, a := range counts {
		entries = append(entries, RankedEntry{Name: name, Plays: a.plays, MsPlayed: a.ms})
	}
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].MsPlayed != entries[j].MsPlayed {
			return entries[i].MsPlayed > entries[j].MsPlayed
		}
		if entries[i].Plays != entries[j].Plays {
			return entries[i].Plays > entries[j].Plays
		}
		return entries[i].Name < entries[j].Name
	})

	if limit > 0 && len(entries) > limit {
		entries = entries[:limit]
	}
	return entries
}

// TopArtists returns the most-listened artists under the filter.
func (d *Dataset) TopArtists(f Filter, limit int) []RankedEntry {
	return d.rank(f, func(p *Play) string { return p.Artist }, limit)
}

// TopTracks returns the most-listened tracks under the filter. Track names
// are qualified with the artist so covers and duplicates stay distinct.
func (d *Dataset) TopTracks(f Filter, limit int) []RankedEntry {
	return d.rank(f, func(p *Play) string {
		if p.Artist == "" {
			return p.TrackName
		}
		return p.TrackName + " — " + p.Artist
	}, limit)
}

// Stats summarizes total listening volume under the filter.
type Stats struct {
	Plays         int     `json:"plays"`
	UniqueArtists int     `json:"unique_artists"`
	UniqueTracks  int     `json:"unique_tracks"`
	TotalHours    float64 `json:"total_hours"`
	FirstPlay     string  `json:"first_play,omitempty"`
	LastPlay      string  `json:"last_play,omitempty"`
}

// TotalStats computes listening volume under the filter.
func (d *Dataset) TotalStats(f Filter) Stats {
	artists := make(map[string]bool)
	tracks := make(map[string]bool)
	var stats Stats
	var ms int64
	var first, last time.Time

	for i := range d.Plays {
		p := &d.Plays[i]
		if !f.matches(p) {
			continue
		}
		stats.Plays++
		ms += p.MsPlayed
		if p.Artist != "" {
			artists[strings.ToLower(p.Artist)] = true
		}
		tracks[strings.ToLower(p.Artist+"|"+p.TrackName)] = true

		t := p.Time()
		if t.IsZero() {
			continue
		}
		if first.IsZero() || t.Before(first) {
			first = t
		}
		if last.IsZero() || t.After(last) {
			last = t
		}
	}

	stats.UniqueArtists = len(artists)
	stats.UniqueTracks = len(tracks)
	stats.TotalHours = float64(ms) / float64(time.Hour/time.Millisecond)
	if !first.IsZero() {
		stats.FirstPlay = first.Format("2006-01-02")
		stats.LastPlay = last.Format("2006-01-02")
	}
	return stats
}

// MonthBucket is listening volume in one calendar month.
type MonthBucket struct {
	Month string  `json:"month"` // YYYY-MM
	Plays int     `json:"plays"`
	Hours float64 `json:"hours"`
}

// PlaysByMonth buckets listening volume by calendar month, sorted
// chronologically.
func (d *Dataset) PlaysByMonth(f Filter) []MonthBucket {
	type agg struct {
		plays int
		ms    int64
	}
	buckets := make(map[string]*agg)
	for i := range d.Plays {
		p := &d.Plays[i]
		if !f.matches(p) {
			continue
		}
		t := p.Time()
		if t.IsZero() {
			continue
		}
		month := t.Format("2006-01")
		a := buckets[month]
		if a == nil {
			a = &agg{}
			buckets[month] = a
		}
		a.plays++
		a.ms += p.MsPlayed
	}

	result := make([]MonthBucket, 0, len(buckets))
	for month, a := range buckets {
		result = append(result, MonthBucket{
			Month: month,
			Plays: a.plays,
			Hours: float64(a.ms) / float64(time.Hour/time.Millisecond),
		})
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Month < result[j].Month })
	return result
}

// HourHistogram counts plays per hour of day (0-23, local to the timestamps).
func (d *Dataset) HourHistogram(f Filter) [24]int {
	var hist [24]int
	for i := range d.Plays {
		p := &d.Plays[i]
		if !f.matches(p) {
			continue
		}
		t := p.Time()
		if t.IsZero() {
			continue
		}
		hist[t.Hour()]++
	}
	return hist
}

// Search returns plays whose track, artist, or album contains the query,
// newest first, capped at limit.
func (d *Dataset) Search(query string, limit int) []Play {
	q := strings.ToLower(strings.TrimSpace(query))
	if q == "" {
		return nil
	}

	matches := make([]Play, 0, limit)
	for i := range d.Plays {
		p := d.Plays[i]
		if strings.Contains(strings.ToLower(p.TrackName), q) ||
			strings.Contains(strings.ToLower(p.Artist), q) ||
			strings.Contains(strings.ToLower(p.Album), q) {
			matches = append(matches, p)
		}
	}
	sort.Slice(matches, func(i, j int) bool { return matches[i].TS > matches[j].TS })
	if limit > 0 && len(matches) > limit {
		matches = matches[:limit]
	}
	return matches
}
