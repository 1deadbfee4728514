// Package personality classifies a play log into a coarse listener profile.
// The classification is deterministic: the same dataset always yields the
// same profile, so prompts stay stable across turns.
package personality

import (
	"fmt"
	"strings"

	"github.com/rhinos0608/rhythm-chamber-sub002/internal/dataset"
)

// Archetype is the coarse listener classification.
type Archetype string

const (
	// ArchetypeLoyalist spends most listening time on a few artists.
	ArchetypeLoyalist Archetype = "loyalist"
	// ArchetypeExplorer spreads listening across many artists.
	ArchetypeExplorer Archetype = "explorer"
	// ArchetypeBalanced sits between the two.
	ArchetypeBalanced Archetype = "balanced"
)

// Profile describes listening habits in terms a prompt can use.
type Profile struct {
	Archetype     Archetype
	TopArtist     string
	TopShare      float64 // share of listening time on the top artist, 0..1
	NightOwl      bool    // majority of plays between 22:00 and 04:00
	UniqueArtists int
}

// Line renders the one-sentence profile used in the system prompt.
func (p Profile) Line() string {
	if p.TopArtist == "" {
		return ""
	}

	var b strings.Builder
	switch p.Archetype {
	case ArchetypeLoyalist:
		fmt.Fprintf(&b, "a loyalist who gives %.0f%% of their listening to %s", p.TopShare*100, p.TopArtist)
	case ArchetypeExplorer:
		fmt.Fprintf(&b, "an explorer who has played %d different artists, currently closest to %s", p.UniqueArtists, p.TopArtist)
	default:
		fmt.Fprintf(&b, "a balanced listener whose most-played artist is %s", p.TopArtist)
	}
	if p.NightOwl {
		b.WriteString(", mostly listening late at night")
	}
	return b.String()
}

// Classify derives a profile from the dataset. A nil or empty dataset yields
// the zero profile.
func Classify(ds *dataset.Dataset) Profile {
	if ds == nil || ds.Len() == 0 {
		return Profile{}
	}

	stats := ds.TotalStats(dataset.Filter{})
	top := ds.TopArtists(dataset.Filter{}, 1)

	profile := Profile{UniqueArtists: stats.UniqueArtists}
	if len(top) > 0 {
		profile.TopArtist = top[0].Name

		var totalMs int64
		for i := range ds.Plays {
			totalMs += ds.Plays[i].MsPlayed
		}
		if totalMs > 0 {
			profile.TopShare = float64(top[0].MsPlayed) / float64(totalMs)
		}
	}

	switch {
	case profile.TopShare >= 0.4:
		profile.Archetype = ArchetypeLoyalist
	case stats.UniqueArtists >= 50 && profile.TopShare < 0.15:
		profile.Archetype = ArchetypeExplorer
	default:
		profile.Archetype = ArchetypeBalanced
	}

	hist := ds.HourHistogram(dataset.Filter{})
	night := hist[22] + hist[23] + hist[0] + hist[1] + hist[2] + hist[3]
	profile.NightOwl = night*2 > stats.Plays

	return profile
}

// FallbackReply composes a deterministic answer for models that cannot call
// tools at all. It leans on the profile so the reply still says something
// grounded about the user's history.
func FallbackReply(profile Profile, stats dataset.Stats) string {
	if profile.TopArtist == "" {
		return "I don't have any listening data loaded yet. Import your streaming history and I can tell you about your habits."
	}

	var b strings.Builder
	fmt.Fprintf(&b, "From what I can see you are %s.", profile.Line())
	if stats.Plays > 0 {
		fmt.Fprintf(&b, " Your history covers %d plays across %d artists", stats.Plays, stats.UniqueArtists)
		if stats.FirstPlay != "" {
			fmt.Fprintf(&b, " between %s and %s", stats.FirstPlay, stats.LastPlay)
		}
		b.WriteString(".")
	}
	b.WriteString(" Ask about top artists, listening patterns, or a specific year for more detail.")
	return b.String()
}
