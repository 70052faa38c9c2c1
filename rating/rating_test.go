package rating

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCalculateEqualScores(t *testing.T) {
	attacker, victim := Calculate(1500, 1500, 3000, false)

	assert.Greater(t, attacker, 0.0, "攻击方必须得分")
	assert.Less(t, victim, 0.0, "受害方必须失分")
	// 非通胀模式下总分只能迁移或缩水，不能增长
	assert.LessOrEqual(t, attacker+victim, 1e-9)
}

func TestCalculateInflationMode(t *testing.T) {
	attacker, victim := Calculate(1500, 1500, 3000, true)

	assert.Greater(t, attacker, 0.0)
	assert.Less(t, victim, 0.0)
}

func TestCalculateVictimNeverGoesNegative(t *testing.T) {
	// 受害方得分很低时，通胀模式的下界保证不会被打成负数
	victimScore := 0.5
	_, victim := Calculate(5000, victimScore, 300, true)
	assert.GreaterOrEqual(t, victimScore+victim, 0.0)
}

func TestCalculateHardnessDamping(t *testing.T) {
	soft, _ := Calculate(1500, 1500, 300, false)
	mid, _ := Calculate(1500, 1500, 3000, false)
	hard, _ := Calculate(1500, 1500, 300000, false)

	// hardness 越大增量越小，趋向于零
	assert.Less(t, math.Abs(mid), math.Abs(soft))
	assert.Less(t, math.Abs(hard), math.Abs(mid))
	assert.Less(t, math.Abs(hard), 1.0)
}

func TestPlaceToRatingRoundTrip(t *testing.T) {
	g := Game{AttackerScore: 1500, VictimScore: 1200, Hardness: 3000}

	for _, score := range []float64{100, 1000, 1500, 4000} {
		place := g.expectedPlace(score, score)
		back := g.placeToRating(place, score)
		require.InDelta(t, score, back, 0.01, "二分反解应在容差内还原评分")
	}
}

func TestExpectedPlaceMonotonic(t *testing.T) {
	g := Game{AttackerScore: 1500, VictimScore: 1500, Hardness: 3000}

	prev := g.expectedPlace(0, 1500)
	for rating := 500.0; rating <= 5000; rating += 500 {
		cur := g.expectedPlace(rating, 1500)
		require.Less(t, cur, prev, "期望名次必须随评分单调改善")
		prev = cur
	}
}

func TestNormalizePreservesSign(t *testing.T) {
	for _, d := range []float64{5, 42, 300, 12345} {
		assert.Greater(t, normalize(d), 0.0)
		assert.Less(t, normalize(-d), 0.0)
	}
	assert.Zero(t, normalize(0))
}

func TestNormalizeCompressesLargeSwings(t *testing.T) {
	assert.Less(t, normalize(10000), 10000.0)
	assert.Greater(t, normalize(-10000), -10000.0)
}

func TestCalculateAsymmetryTowardVictim(t *testing.T) {
	// 非通胀模式刻意让受害方取较大幅度：攻击方拿到的不多于受害方失去的
	attacker, victim := Calculate(2000, 1000, 3000, false)
	assert.LessOrEqual(t, math.Abs(attacker), math.Abs(victim)+1e-9)
}
