// Package gamify contains the point/karma economy: pure cost functions and the
// static perk catalog that gate queue-editing operations.
package gamify

import "time"

const (
	// StartingPoints is granted to every user joining a queue.
	StartingPoints = 10

	baseSkipCostPerMinute    = 5
	baseProtectCostPerMinute = 3

	// fullPlayRatio is the share of a track that must have played for the
	// owner to earn the "full play" karma bonus.
	fullPlayRatio = 0.9
)

// MillisToPoints converts a track duration to its queueing cost, which doubles
// as the base reward unit when the track finishes.
func MillisToPoints(durationMs int) int {
	return durationMs/60000 + 1
}

// SkipCost is the price a non-owner pays to skip the current track. Higher
// skip_song perk levels shave points off the per-minute rate.
func SkipCost(durationMs, progressMs, perkLevel int) int {
	minutesLeft := (durationMs - progressMs) / 60000
	perMinute := baseSkipCostPerMinute - skipDiscount(perkLevel)
	if perMinute < 1 {
		perMinute = 1
	}
	return (minutesLeft + 1) * perMinute
}

func skipDiscount(perkLevel int) int {
	if perkLevel <= 0 {
		return 0
	}
	return perkLevel
}

// ProtectCost is the price to mark the current track protected.
func ProtectCost(durationMs, progressMs int) int {
	minutesLeft := (durationMs - progressMs) / 60000
	return (minutesLeft + 1) * baseProtectCostPerMinute
}

// FinishReward computes what the owner of a finished track earns.
// Points follow played progress plus the vote sum; karma follows the vote sum
// with a +1 bonus when the track played at least 90% through.
func FinishReward(durationMs, progressMs, voteSum int) (points, karma int) {
	points = MillisToPoints(progressMs) + voteSum
	karma = voteSum
	if durationMs > 0 && float64(progressMs) >= fullPlayRatio*float64(durationMs) {
		karma++
	}
	return points, karma
}

// Perk names. The catalog is static; levels are bought per user per queue.
const (
	PerkMoveUp          = "move_up"
	PerkMoveFirst       = "move_first"
	PerkProtectSong     = "protect_song"
	PerkSkipSong        = "skip_song"
	PerkRemoveSong      = "remove_song"
	PerkQueueMoreSongs  = "queue_more_songs"
	PerkQueueSequential = "queue_sequential"
)

// PerkDef describes one catalog entry. Price and karma requirements scale
// linearly with the level being bought.
type PerkDef struct {
	Name          string
	MaxLevel      int
	BasePrice     int
	KarmaPerLevel int
	UseCost       int
	Cooldown      time.Duration
}

// Price of buying the given level (1-based).
func (d PerkDef) Price(level int) int {
	return d.BasePrice * level
}

// RequiredKarma to hold the given level.
func (d PerkDef) RequiredKarma(level int) int {
	return d.KarmaPerLevel * level
}

var catalog = []PerkDef{
	{Name: PerkMoveUp, MaxLevel: 5, BasePrice: 5, KarmaPerLevel: 2, UseCost: 2},
	{Name: PerkMoveFirst, MaxLevel: 1, BasePrice: 20, KarmaPerLevel: 10, UseCost: 5, Cooldown: 15 * time.Minute},
	{Name: PerkProtectSong, MaxLevel: 1, BasePrice: 10, KarmaPerLevel: 5},
	{Name: PerkSkipSong, MaxLevel: 4, BasePrice: 10, KarmaPerLevel: 4},
	{Name: PerkRemoveSong, MaxLevel: 1, BasePrice: 10, KarmaPerLevel: 6},
	{Name: PerkQueueMoreSongs, MaxLevel: 5, BasePrice: 8, KarmaPerLevel: 3},
	{Name: PerkQueueSequential, MaxLevel: 3, BasePrice: 8, KarmaPerLevel: 3},
}

// Catalog returns the full perk catalog.
func Catalog() []PerkDef {
	out := make([]PerkDef, len(catalog))
	copy(out, catalog)
	return out
}

// Lookup returns the catalog entry for name.
func Lookup(name string) (PerkDef, bool) {
	for _, d := range catalog {
		if d.Name == name {
			return d, true
		}
	}
	return PerkDef{}, false
}

// KarmaAllowedLevel is the effective level of an owned perk: the highest level
// not exceeding both the owned level and what the user's karma still entitles
// them to. Karma can drop after a perk was bought.
func KarmaAllowedLevel(def PerkDef, ownedLevel, karma int) int {
	if ownedLevel > def.MaxLevel {
		ownedLevel = def.MaxLevel
	}
	for lvl := ownedLevel; lvl > 0; lvl-- {
		if karma >= def.RequiredKarma(lvl) {
			return lvl
		}
	}
	return 0
}
