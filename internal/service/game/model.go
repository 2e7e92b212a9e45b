package game

// 座位角色
const (
	ROLE_CIVILIAN = "red"
	ROLE_MAFIA    = "black"
	ROLE_DON      = "don"
	ROLE_SHERIFF  = "sheriff"
	ROLE_DOCTOR   = "doctor"
)

// 座位的终态动作，写入后该座位退出后续的投票和夜晚目标
const (
	ACTION_KILLED    = "killed"
	ACTION_VOTED     = "voted"
	ACTION_REMOVED   = "removed"
	ACTION_TECH_FALL = "techFallRemoved"
	ACTION_FALL      = "fallRemoved"
)

// 规则集：city 规则额外带一名医生
const (
	RULESET_CLASSIC = "classic"
	RULESET_CITY    = "city"
)

// IsMafiaAligned 判断角色是否属于黑方
func IsMafiaAligned(role string) bool {
	return role == ROLE_MAFIA || role == ROLE_DON
}

// IsCivilianAligned 判断角色是否属于红方
func IsCivilianAligned(role string) bool {
	return role == ROLE_CIVILIAN || role == ROLE_SHERIFF || role == ROLE_DOCTOR
}
