// Package rating 实现攻防得分的成对评分调整。纯函数，无任何 I/O，
// 以 Elo 式相对实力模型把一次成功窃取换算成攻守双方的分数增量。
package rating

import (
	"math"
)

const (
	// 二分反解的搜索区间上界与迭代次数，足以达到毫分级精度
	ratingUpperBound = 100000.0
	bisectionRounds  = 100

	// deltaScale 评分偏移折算成积分增量的基准难度：hardness 等于该值
	// 时增量即偏移的一半，高于该值时增量按难度比的平方衰减
	deltaScale = 1000.0

	eps = 1e-7
)

// Game 一次窃取事件的评分输入
type Game struct {
	AttackerScore float64
	VictimScore   float64
	// Hardness 越大，分差对胜率的影响越平缓，增量越小
	Hardness float64
	// Inflation 为真时允许总分增长（增量重平衡后各自平滑），
	// 为假时收紧为近似零和
	Inflation bool
}

// winProbability a 对 b 的期望胜率
func (g Game) winProbability(a, b float64) float64 {
	return 1 / (1 + math.Pow(10, (b-a)/g.Hardness))
}

// expectedPlace 虚构一场两人小型赛（攻击方第 1、受害方第 2），
// 求评分为 rating 的选手的期望名次
func (g Game) expectedPlace(rating, own float64) float64 {
	return 1 +
		g.winProbability(g.AttackerScore, rating) +
		g.winProbability(g.VictimScore, rating) -
		g.winProbability(rating, own)
}

// placeToRating 反解 expectedPlace：求期望名次恰为 place 的评分。
// expectedPlace 对 rating 单调递减，二分即可。
func (g Game) placeToRating(place, own float64) float64 {
	lo, hi := 0.0, ratingUpperBound
	for i := 0; i < bisectionRounds; i++ {
		mid := (lo + hi) / 2
		if g.expectedPlace(mid, own) < place {
			hi = mid
		} else {
			lo = mid
		}
	}
	return (lo + hi) / 2
}

// delta 评分为 score 的队伍拿到名次 place 带来的增量：期望名次与
// 实际名次取几何平均后反解目标评分，走一半的差距。二分得到的偏移
// 与 hardness 同阶，折算时除以难度比的平方，hardness 越大增量越小
// 并趋向于零。
func (g Game) delta(score, place float64) float64 {
	seed := math.Sqrt(g.expectedPlace(score, score) * place)
	offset := g.placeToRating(seed, score) - score
	ratio := deltaScale / g.Hardness
	return offset / 2 * ratio * ratio
}

// normalize 压缩过大的增量摆动，保号且近似保序
func normalize(delta float64) float64 {
	if delta == 0 {
		return 0
	}
	sign := 1.0
	if delta < 0 {
		sign = -1
	}
	l := math.Abs(delta) / (math.Log(math.Abs(delta)+1) + eps)
	n := math.Log(l+eps) / (math.Log(l+1) + eps)
	return sign * l * n
}

// Calculate 计算一次窃取的 (攻击方增量, 受害方增量)。
//
// 非通胀模式：先把双方增量收紧到较小的幅度（总分只迁移不增长），
// 攻击方在原值与平滑值中取幅度较小者，受害方取幅度较大者。
// 通胀模式：先把增量重平衡到和为零，各自平滑，最后为受害方增量
// 设下界，保证其得分不会被打成负数。
func Calculate(attackerScore, victimScore, hardness float64, inflation bool) (float64, float64) {
	if hardness <= 0 {
		hardness = deltaScale
	}
	g := Game{
		AttackerScore: attackerScore,
		VictimScore:   victimScore,
		Hardness:      hardness,
		Inflation:     inflation,
	}

	attackerDelta := g.delta(attackerScore, 1)
	victimDelta := g.delta(victimScore, 2)

	if !inflation {
		m := math.Min(math.Abs(attackerDelta), math.Abs(victimDelta))
		attackerDelta = math.Copysign(m, attackerDelta)
		victimDelta = math.Copysign(m, victimDelta)

		if norm := normalize(attackerDelta); math.Abs(norm) < math.Abs(attackerDelta) {
			attackerDelta = norm
		}
		if norm := normalize(victimDelta); math.Abs(norm) > math.Abs(victimDelta) {
			victimDelta = norm
		}
		return attackerDelta, victimDelta
	}

	shift := (attackerDelta + victimDelta) / 2
	attackerDelta -= shift
	victimDelta -= shift
	attackerDelta = normalize(attackerDelta)
	victimDelta = normalize(victimDelta)
	if victimScore+victimDelta < 0 {
		victimDelta = -victimScore
	}
	return attackerDelta, victimDelta
}
