package game

import (
	"errors"
	"fmt"

	"go.uber.org/zap"
)

// 游戏阶段流转：
// roles -> discussion/freeSeating -> day <-> voting -> night -> day -> ... -> results
// 夜晚内部的子阶段由 Sequencer 负责，这里只管白天黑夜的大循环
const (
	PHASE_ROLES        = "roles"
	PHASE_DISCUSSION   = "discussion"
	PHASE_FREE_SEATING = "freeSeating"
	PHASE_DAY          = "day"
	PHASE_VOTING       = "voting"
	PHASE_NIGHT        = "night"
	PHASE_RESULTS      = "results"
)

// StartVoting 的裁决结果
const (
	// 正常打开投票界面
	VOTING_OPEN = "open"
	// 没有任何提名，转为展示投票历史
	VOTING_SHOW_HISTORY = "showHistory"
	// 第 0 天只有一个提名，直接跳过投票进入黑夜
	VOTING_SKIP = "skip"
)

var (
	ErrConfirmNoVote = errors.New("今天还没有进行过投票，进入黑夜前需要主持人确认")
)

// PhaseController 是主持人驱动的阶段状态机
// 所有修改只通过命令方法进行，读方拿到的都是值
type PhaseController struct {
	ruleset string

	phase       string
	dayNumber   int
	nightNumber int

	rolesConfirmed bool
	votedThisDay   bool
}

func NewPhaseController(ruleset string) *PhaseController {
	return &PhaseController{
		ruleset: ruleset,
		phase:   PHASE_ROLES,
	}
}

func (pc *PhaseController) Phase() string    { return pc.phase }
func (pc *PhaseController) DayNumber() int   { return pc.dayNumber }
func (pc *PhaseController) NightNumber() int { return pc.nightNumber }
func (pc *PhaseController) Ruleset() string  { return pc.ruleset }

// ValidateRoles 校验一次发牌是否合法：
// 黑手党至少 2、教父恰好 1、警长恰好 1，city 规则下医生恰好 1
func ValidateRoles(roles map[int]string, ruleset string) error {
	counts := make(map[string]int)
	for _, role := range roles {
		counts[role]++
	}

	if counts[ROLE_DON] != 1 {
		return fmt.Errorf("角色分配无效：教父必须恰好 1 名，当前 %d 名", counts[ROLE_DON])
	}
	if counts[ROLE_MAFIA] < 2 {
		return fmt.Errorf("角色分配无效：黑手党至少 2 名，当前 %d 名", counts[ROLE_MAFIA])
	}
	if counts[ROLE_SHERIFF] != 1 {
		return fmt.Errorf("角色分配无效：警长必须恰好 1 名，当前 %d 名", counts[ROLE_SHERIFF])
	}

	wantDoctor := 0
	if ruleset == RULESET_CITY {
		wantDoctor = 1
	}
	if counts[ROLE_DOCTOR] != wantDoctor {
		return fmt.Errorf("角色分配无效：当前规则下医生应为 %d 名，实际 %d 名", wantDoctor, counts[ROLE_DOCTOR])
	}

	return nil
}

// ConfirmRoles 确认发牌并进入入座/讨论阶段
// next 只能是 discussion 或 freeSeating
// 校验失败时阶段保持不变，错误原样返回给调用方展示
func (pc *PhaseController) ConfirmRoles(roles map[int]string, next string) error {
	if pc.phase != PHASE_ROLES {
		return fmt.Errorf("当前阶段 %s 不允许确认角色", pc.phase)
	}

	if next != PHASE_DISCUSSION && next != PHASE_FREE_SEATING {
		return fmt.Errorf("确认角色后只能进入 discussion 或 freeSeating，收到 %s", next)
	}

	if err := ValidateRoles(roles, pc.ruleset); err != nil {
		return err
	}

	pc.rolesConfirmed = true
	pc.phase = next

	zap.L().Info(
		"角色确认完毕",
		zap.String("next_phase", next),
		zap.Int("seats", len(roles)),
	)

	return nil
}

// BeginDay 从入座/讨论阶段进入白天，由跳过或超时触发
func (pc *PhaseController) BeginDay() error {
	if pc.phase != PHASE_DISCUSSION && pc.phase != PHASE_FREE_SEATING {
		return fmt.Errorf("当前阶段 %s 不允许进入白天", pc.phase)
	}

	pc.phase = PHASE_DAY

	return nil
}

// StartVoting 请求打开投票
// 没有提名时重定向到历史展示；第 0 天单提名直接跳过投票
func (pc *PhaseController) StartVoting(nominees []int) (string, error) {
	if pc.phase != PHASE_DAY {
		return "", fmt.Errorf("当前阶段 %s 不允许开始投票", pc.phase)
	}

	if len(nominees) == 0 {
		return VOTING_SHOW_HISTORY, nil
	}

	if pc.dayNumber == 0 && len(nominees) == 1 {
		// 第 0 天唯一提名没有可用的多数规则
		return VOTING_SKIP, nil
	}

	pc.phase = PHASE_VOTING

	return VOTING_OPEN, nil
}

// EndVoting 关闭投票界面，回到白天
// 无论是否有人出局，这一天都算投过票
func (pc *PhaseController) EndVoting() error {
	if pc.phase != PHASE_VOTING {
		return fmt.Errorf("当前阶段 %s 没有进行中的投票", pc.phase)
	}

	pc.phase = PHASE_DAY
	pc.votedThisDay = true

	return nil
}

// BeginNight 进入黑夜
// 白天没有投过票时要求显式确认，这是一次可恢复的提醒而非硬性前置
func (pc *PhaseController) BeginNight(confirmed bool) error {
	if pc.phase != PHASE_DAY {
		return fmt.Errorf("当前阶段 %s 不允许进入黑夜", pc.phase)
	}
	if !pc.rolesConfirmed {
		return errors.New("角色尚未确认，无法进入黑夜")
	}

	if !pc.votedThisDay && !confirmed {
		return ErrConfirmNoVote
	}

	pc.nightNumber++
	pc.phase = PHASE_NIGHT

	zap.L().Info("进入黑夜", zap.Int("night_number", pc.nightNumber))

	return nil
}

// NightDone 夜晚序列到达终态后回到白天
func (pc *PhaseController) NightDone() error {
	if pc.phase != PHASE_NIGHT {
		return fmt.Errorf("当前阶段 %s 没有进行中的黑夜", pc.phase)
	}

	pc.dayNumber++
	pc.votedThisDay = false
	pc.phase = PHASE_DAY

	return nil
}

// Finish 宣布胜利方或主持人强制结束，任何阶段都可进入 results
func (pc *PhaseController) Finish() {
	if pc.phase == PHASE_RESULTS {
		return
	}

	zap.L().Info("游戏结束", zap.String("from_phase", pc.phase))

	pc.phase = PHASE_RESULTS
}
