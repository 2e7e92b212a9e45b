package game

import (
	"errors"
	"fmt"
	"slices"

	"go.uber.org/zap"
)

// 夜晚子阶段，按固定顺序推进，发牌里没有的角色直接跳过
const (
	NIGHT_KILL    = "kill"
	NIGHT_DON     = "don"
	NIGHT_SHERIFF = "sheriff"
	NIGHT_DOCTOR  = "doctor"
	NIGHT_DONE    = "done"
)

var (
	ErrHealCooldown = errors.New("医生不能连续两晚治疗同一个座位")
	ErrHealDead     = errors.New("医生不能治疗已经死亡的座位")
)

// CheckRecord 是一次夜查的结果，同一晚重复查询返回缓存
type CheckRecord struct {
	Target int  `json:"target"`
	Result bool `json:"result"`
}

// Sequencer 驱动一个夜晚的动作序列并记录跨夜历史
// 历史按夜编号追加，过去的夜晚不会被改写
type Sequencer struct {
	roles map[int]string
	alive map[int]bool

	nightNumber int
	phase       string
	order       []string
	orderIdx    int

	// 当晚已回答的查验，key 为查验者角色（don/sheriff）
	checks map[string]CheckRecord
	// 夜编号 -> 角色 -> 查验记录，只追加
	CheckHistory map[int]map[string]CheckRecord
	// 座位 -> 被击杀的夜编号
	KilledOnNight map[int]int
	// 夜编号 -> 治疗目标，只追加
	HealHistory map[int]int

	killedThisNight []int
}

func NewSequencer(roles map[int]string) *Sequencer {
	return &Sequencer{
		roles:         roles,
		phase:         NIGHT_DONE,
		CheckHistory:  make(map[int]map[string]CheckRecord),
		KilledOnNight: make(map[int]int),
		HealHistory:   make(map[int]int),
	}
}

// StartNight 开始第 nightNumber 个夜晚，重置当晚状态
// aliveSeats 是仍在场上的座位：已被投出或犯规离场的座位
// 不能再成为击杀或治疗目标
func (sq *Sequencer) StartNight(nightNumber int, aliveSeats []int) {
	sq.nightNumber = nightNumber
	sq.checks = make(map[string]CheckRecord)
	sq.killedThisNight = nil

	sq.alive = make(map[int]bool, len(aliveSeats))
	for _, seat := range aliveSeats {
		sq.alive[seat] = true
	}

	sq.order = []string{NIGHT_KILL}
	if sq.hasRole(ROLE_DON) {
		sq.order = append(sq.order, NIGHT_DON)
	}
	if sq.hasRole(ROLE_SHERIFF) {
		sq.order = append(sq.order, NIGHT_SHERIFF)
	}
	if sq.hasRole(ROLE_DOCTOR) {
		sq.order = append(sq.order, NIGHT_DOCTOR)
	}

	sq.orderIdx = 0
	sq.phase = sq.order[0]

	zap.L().Info(
		"夜晚开始",
		zap.Int("night_number", nightNumber),
		zap.Strings("order", sq.order),
	)
}

func (sq *Sequencer) Phase() string {
	return sq.phase
}

// KilledThisNight 返回当晚被击杀的座位，到达 done 后有效
func (sq *Sequencer) KilledThisNight() []int {
	return slices.Clone(sq.killedThisNight)
}

// Kill 记录黑手党的击杀目标并推进
func (sq *Sequencer) Kill(target int) error {
	if sq.phase != NIGHT_KILL {
		return fmt.Errorf("当前子阶段 %s 不接受击杀动作", sq.phase)
	}

	if !sq.alive[target] {
		return fmt.Errorf("座位 %d 已不在场上，不能成为击杀目标", target)
	}
	if _, dead := sq.KilledOnNight[target]; dead {
		return fmt.Errorf("座位 %d 已经死亡，不能再次成为击杀目标", target)
	}

	sq.KilledOnNight[target] = sq.nightNumber
	sq.killedThisNight = append(sq.killedThisNight, target)

	sq.advance()

	return nil
}

// KillMiss 黑手党空枪，无人死亡
func (sq *Sequencer) KillMiss() error {
	if sq.phase != NIGHT_KILL {
		return fmt.Errorf("当前子阶段 %s 不接受击杀动作", sq.phase)
	}

	sq.advance()

	return nil
}

// DonCheck 教父查验目标是否是警长
// 同一晚重复查验返回缓存结果，不重新掷骰
func (sq *Sequencer) DonCheck(target int) (bool, error) {
	return sq.check(NIGHT_DON, ROLE_DON, target, func(role string) bool {
		return role == ROLE_SHERIFF
	})
}

// SheriffCheck 警长查验目标是否是黑方
func (sq *Sequencer) SheriffCheck(target int) (bool, error) {
	return sq.check(NIGHT_SHERIFF, ROLE_SHERIFF, target, IsMafiaAligned)
}

// SkipCheck 显式跳过当前查验子阶段（don 或 sheriff）
func (sq *Sequencer) SkipCheck() error {
	if sq.phase != NIGHT_DON && sq.phase != NIGHT_SHERIFF {
		return fmt.Errorf("当前子阶段 %s 不是查验阶段", sq.phase)
	}

	sq.advance()

	return nil
}

// Heal 记录医生的治疗目标并推进
// 不能连续两晚治疗同一座位，也不能治疗当晚已死亡的座位
func (sq *Sequencer) Heal(target int) error {
	if sq.phase != NIGHT_DOCTOR {
		return fmt.Errorf("当前子阶段 %s 不接受治疗动作", sq.phase)
	}

	if !sq.alive[target] {
		return fmt.Errorf("座位 %d 已不在场上，不能成为治疗目标", target)
	}
	if previous, ok := sq.HealHistory[sq.nightNumber-1]; ok && previous == target {
		return ErrHealCooldown
	}
	if _, dead := sq.KilledOnNight[target]; dead {
		return ErrHealDead
	}

	sq.HealHistory[sq.nightNumber] = target

	sq.advance()

	return nil
}

// HealSkip 医生放弃当晚治疗
func (sq *Sequencer) HealSkip() error {
	if sq.phase != NIGHT_DOCTOR {
		return fmt.Errorf("当前子阶段 %s 不接受治疗动作", sq.phase)
	}

	sq.advance()

	return nil
}

func (sq *Sequencer) check(
	phase string,
	checkerRole string,
	target int,
	match func(role string) bool,
) (bool, error) {
	// 当晚已经回答过的查验直接返回缓存
	if record, ok := sq.checks[checkerRole]; ok {
		return record.Result, nil
	}

	if sq.phase != phase {
		return false, fmt.Errorf("当前子阶段 %s 不接受 %s 查验", sq.phase, checkerRole)
	}

	record := CheckRecord{
		Target: target,
		Result: match(sq.roles[target]),
	}

	sq.checks[checkerRole] = record

	if sq.CheckHistory[sq.nightNumber] == nil {
		sq.CheckHistory[sq.nightNumber] = make(map[string]CheckRecord)
	}
	sq.CheckHistory[sq.nightNumber][checkerRole] = record

	sq.advance()

	return record.Result, nil
}

func (sq *Sequencer) advance() {
	sq.orderIdx++

	if sq.orderIdx >= len(sq.order) {
		sq.phase = NIGHT_DONE

		zap.L().Info(
			"夜晚结束",
			zap.Int("night_number", sq.nightNumber),
			zap.Ints("killed", sq.killedThisNight),
		)

		return
	}

	sq.phase = sq.order[sq.orderIdx]
}

func (sq *Sequencer) hasRole(role string) bool {
	for _, r := range sq.roles {
		if r == role {
			return true
		}
	}

	return false
}
