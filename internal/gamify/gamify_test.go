package gamify

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMillisToPoints(t *testing.T) {
	assert.Equal(t, 1, MillisToPoints(0))
	assert.Equal(t, 1, MillisToPoints(59999))
	assert.Equal(t, 2, MillisToPoints(60000))
	assert.Equal(t, 4, MillisToPoints(200000))
}

func TestSkipCost(t *testing.T) {
	// 3 full minutes left, no perk discount: (3+1) * 5
	assert.Equal(t, 20, SkipCost(200000, 10000, 0))
	// level 2 shaves 2 points per minute
	assert.Equal(t, 12, SkipCost(200000, 10000, 2))
	// the per-minute rate never drops below 1
	assert.Equal(t, 4, SkipCost(200000, 10000, 10))
	// almost over
	assert.Equal(t, 5, SkipCost(200000, 195000, 0))
}

func TestProtectCost(t *testing.T) {
	assert.Equal(t, 12, ProtectCost(200000, 10000))
	assert.Equal(t, 3, ProtectCost(200000, 199000))
}

func TestFinishReward(t *testing.T) {
	// 95% of a 200000ms track with voteSum +2:
	// points = millisToPoints(190000) + 2 = 4 + 2, karma = 2 + 1 full-play bonus
	points, karma := FinishReward(200000, 190000, 2)
	assert.Equal(t, 6, points)
	assert.Equal(t, 3, karma)

	// half-played skip, negative votes
	points, karma = FinishReward(200000, 100000, -2)
	assert.Equal(t, 0, points)
	assert.Equal(t, -2, karma)
}

func TestCatalogIsComplete(t *testing.T) {
	defs := Catalog()
	require.Len(t, defs, 7)
	seen := map[string]bool{}
	for _, d := range defs {
		assert.False(t, seen[d.Name], "duplicate perk %s", d.Name)
		seen[d.Name] = true
		assert.Greater(t, d.MaxLevel, 0)
		assert.Greater(t, d.BasePrice, 0)
	}
	_, ok := Lookup(PerkMoveFirst)
	require.True(t, ok)
	_, ok = Lookup("no_such_perk")
	assert.False(t, ok)
}

func TestKarmaAllowedLevel(t *testing.T) {
	def, ok := Lookup(PerkMoveUp)
	require.True(t, ok)

	// not owned
	assert.Equal(t, 0, KarmaAllowedLevel(def, 0, 100))
	// owned but karma dropped below the level requirement
	assert.Equal(t, 0, KarmaAllowedLevel(def, 1, 0))
	// owned level 3 with karma for level 2 only
	assert.Equal(t, 2, KarmaAllowedLevel(def, 3, def.RequiredKarma(2)))
	// full entitlement
	assert.Equal(t, 3, KarmaAllowedLevel(def, 3, def.RequiredKarma(3)))
}

func TestPerkPricing(t *testing.T) {
	def, _ := Lookup(PerkSkipSong)
	assert.Equal(t, def.BasePrice, def.Price(1))
	assert.Equal(t, 3*def.BasePrice, def.Price(3))
	assert.Equal(t, 2*def.KarmaPerLevel, def.RequiredKarma(2))
}
