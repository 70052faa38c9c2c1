package storage

import "fmt"

// Redis 键空间。过期时间统一与 flag_lifetime * round_time 挂钩。
const (
	keyConfig         = "config"
	keyConfigCached   = "config:cached"
	keyTeams          = "teams"
	keyTeamsCached    = "teams:cached"
	keyTasks          = "tasks"
	keyTasksCached    = "tasks:cached"
	keyFlagsCached    = "flags:cached"
	keyCurrentRound   = "round:current"
	keyScoreboard     = "scoreboard"
	keyGameStartLock  = "lock:game-start"
	ChannelScoreboard = "scoreboard"
	ChannelAttacks    = "attacks"
)

func keyFlagByToken(token string) string {
	return "flag:token:" + token
}

func keyFlagByID(id uint64) string {
	return fmt.Sprintf("flag:id:%d", id)
}

func keyRoundFlags(teamID, taskID uint32, round int) string {
	return fmt.Sprintf("flags:round:%d:%d:%d", teamID, taskID, round)
}

func keyTeamByToken(token string) string {
	return "team:token:" + token
}

func keyStolenSet(attackerID uint32) string {
	return fmt.Sprintf("stolen:%d", attackerID)
}

func keyTeamLock(teamID uint32) string {
	return fmt.Sprintf("lock:team:%d", teamID)
}
