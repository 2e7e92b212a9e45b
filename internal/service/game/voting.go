package game

import (
	"errors"
	"fmt"
	"slices"

	"go.uber.org/zap"
)

// 投票轮次的三种子阶段
const (
	STAGE_MAIN = "main"
	STAGE_TIE  = "tie"
	STAGE_LIFT = "lift"
)

var (
	ErrNoNominees     = errors.New("没有任何提名，无法开始投票")
	ErrAlreadyVoted   = errors.New("该座位本轮已经投过票，请先撤回原来的一票")
	ErrVotingFinished = errors.New("本轮投票已经结算")
)

// Nomination 是一条提名记录：voter 提名 candidate
type Nomination struct {
	Voter     int `json:"voter"`
	Candidate int `json:"candidate"`
}

// StageRecord 是一个已结算子阶段的不可变存档
type StageRecord struct {
	Stage      string        `json:"stage"`
	Order      []int         `json:"order"`
	Results    map[int][]int `json:"results"`
	LiftVoters []int         `json:"liftVoters,omitempty"`
	Winners    []int         `json:"winners"`
}

// StageOutcome 描述一次结算的走向
type StageOutcome struct {
	// 本阶段的获胜座位，空表示没有人出局（或进入下一子阶段）
	Winners []int
	// 下一个子阶段，空表示轮次结束
	NextStage string
	// 第 0 天三提名完美平票：整轮作废，直接进入黑夜
	SkipToNight bool
}

// VotingSession 是一个进行中的投票轮次
// 结算归档之后不再被修改
type VotingSession struct {
	DayNumber int    `json:"dayNumber"`
	Stage     string `json:"stage"`

	Order        []int         `json:"order"`
	CurrentIndex int           `json:"currentIndex"`
	Results      map[int][]int `json:"results"`

	TiePlayers   []int         `json:"tiePlayers,omitempty"`
	LiftResults  []int         `json:"liftResults,omitempty"`
	FinalWinners []int         `json:"finalWinners"`
	Stages       []StageRecord `json:"stages"`

	alive    map[int]bool
	liftYes  map[int]bool
	finished bool
}

// Engine 把一或多轮提名/投票解析为零个或一个（lift 时一组）出局座位
type Engine struct {
	nominations []Nomination
	session     *VotingSession
	history     []*VotingSession
}

func NewEngine() *Engine {
	return &Engine{}
}

// Nominate 记录提名：一个座位同一时刻最多提名一个候选人
// 重复提名覆盖旧的一条，被多个座位提名同一候选人是允许的
func (e *Engine) Nominate(voter, candidate int) {
	for i := range e.nominations {
		if e.nominations[i].Voter == voter {
			e.nominations[i].Candidate = candidate
			return
		}
	}

	e.nominations = append(e.nominations, Nomination{Voter: voter, Candidate: candidate})
}

func (e *Engine) ClearNominations() {
	e.nominations = nil
}

// Nominees 返回去重后的候选座位，保持提名顺序
func (e *Engine) Nominees() []int {
	nominees := make([]int, 0, len(e.nominations))
	for _, n := range e.nominations {
		if !slices.Contains(nominees, n.Candidate) {
			nominees = append(nominees, n.Candidate)
		}
	}

	return nominees
}

func (e *Engine) Session() *VotingSession {
	return e.session
}

func (e *Engine) History() []*VotingSession {
	return e.history
}

// StartRound 从当前提名创建一个主投票轮次
func (e *Engine) StartRound(dayNumber int, aliveSeats []int) (*VotingSession, error) {
	nominees := e.Nominees()
	if len(nominees) == 0 {
		return nil, ErrNoNominees
	}

	alive := make(map[int]bool, len(aliveSeats))
	for _, seat := range aliveSeats {
		alive[seat] = true
	}

	e.session = &VotingSession{
		DayNumber: dayNumber,
		Stage:     STAGE_MAIN,
		Order:     nominees,
		Results:   make(map[int][]int),
		alive:     alive,
	}

	zap.L().Info(
		"投票轮次开始",
		zap.Int("day_number", dayNumber),
		zap.Ints("order", nominees),
	)

	return e.session, nil
}

// CurrentCandidate 返回正在计票的候选座位
func (s *VotingSession) CurrentCandidate() (int, bool) {
	if s == nil || s.finished || s.Stage == STAGE_LIFT {
		return 0, false
	}
	if s.CurrentIndex < 0 || s.CurrentIndex >= len(s.Order) {
		return 0, false
	}

	return s.Order[s.CurrentIndex], true
}

// SubmitVote 给当前候选人记一票
// 一个存活座位整个子阶段只有一票，换人前必须先撤回
func (s *VotingSession) SubmitVote(voter int) error {
	if s.finished {
		return ErrVotingFinished
	}

	candidate, ok := s.CurrentCandidate()
	if !ok {
		return errors.New("当前没有可投票的候选人")
	}

	if !s.alive[voter] {
		return fmt.Errorf("座位 %d 不在存活座位中，无法投票", voter)
	}

	if s.votedFor(voter) != 0 {
		return ErrAlreadyVoted
	}

	s.Results[candidate] = append(s.Results[candidate], voter)

	return nil
}

// RetractVote 撤回该座位在本子阶段的一票
func (s *VotingSession) RetractVote(voter int) {
	for candidate, voters := range s.Results {
		idx := slices.Index(voters, voter)
		if idx < 0 {
			continue
		}

		s.Results[candidate] = slices.Delete(voters, idx, idx+1)
		return
	}
}

// AcceptCurrent 主持人接受当前候选人的计票并切到下一位
// 返回是否还有下一位候选人
func (s *VotingSession) AcceptCurrent() bool {
	if s.finished || s.CurrentIndex >= len(s.Order)-1 {
		return false
	}

	s.CurrentIndex++

	return true
}

// ResolveStage 结算当前子阶段（main 或 tie）
//
// main 结算前先执行默认投票规则：还没有给任何候选人投票的存活座位
// 自动计给顺序中的最后一位候选人；tie 重投允许弃权
func (e *Engine) ResolveStage() (StageOutcome, error) {
	s := e.session
	if s == nil || s.finished {
		return StageOutcome{}, ErrVotingFinished
	}
	if s.Stage == STAGE_LIFT {
		return StageOutcome{}, errors.New("lift 子阶段必须通过 ResolveLift 结算")
	}

	if s.Stage == STAGE_MAIN {
		s.assignDefaultsToLast()
	}

	maxVotes := 0
	for _, voters := range s.Results {
		if len(voters) > maxVotes {
			maxVotes = len(voters)
		}
	}

	var tied []int
	for _, candidate := range s.Order {
		if maxVotes > 0 && len(s.Results[candidate]) == maxVotes {
			tied = append(tied, candidate)
		}
	}

	// 没有任何选票：历史遗留边界，轮次直接结束
	if maxVotes == 0 {
		e.archiveStage(nil)
		e.finishSession(nil)
		return StageOutcome{}, nil
	}

	// 唯一最高票：该座位出局，轮次结束
	if len(tied) == 1 {
		e.archiveStage(tied)
		e.finishSession(tied)
		return StageOutcome{Winners: tied}, nil
	}

	// 第 0 天恰好三个提名且完美平票：没有合法的多数划分
	// 不进行重投也不进行 lift，整轮作废并清空提名
	if s.Stage == STAGE_MAIN && s.DayNumber == 0 && len(s.Order) == 3 && len(tied) == 3 {
		zap.L().Info("第 0 天三提名完美平票，跳过投票", zap.Ints("tied", tied))

		e.archiveStage(nil)
		e.finishSession(nil)
		e.ClearNominations()

		return StageOutcome{SkipToNight: true}, nil
	}

	// 平票：main 进入 tie 重投，tie 再次平票升级为 lift
	e.archiveStage(nil)

	if s.Stage == STAGE_MAIN {
		s.Stage = STAGE_TIE
		s.Order = tied
		s.CurrentIndex = 0
		s.Results = make(map[int][]int)

		return StageOutcome{NextStage: STAGE_TIE}, nil
	}

	s.Stage = STAGE_LIFT
	s.TiePlayers = tied
	s.liftYes = make(map[int]bool)

	return StageOutcome{NextStage: STAGE_LIFT}, nil
}

// ToggleLift 切换一个存活座位的"全体抬离"赞成票
func (s *VotingSession) ToggleLift(voter int) error {
	if s.finished {
		return ErrVotingFinished
	}
	if s.Stage != STAGE_LIFT {
		return errors.New("当前不在 lift 子阶段")
	}
	if !s.alive[voter] {
		return fmt.Errorf("座位 %d 不在存活座位中，无法投票", voter)
	}

	if s.liftYes[voter] {
		delete(s.liftYes, voter)
	} else {
		s.liftYes[voter] = true
	}

	s.LiftResults = s.liftVoters()

	return nil
}

// ResolveLift 结算 lift 子阶段
// 赞成票严格超过存活座位半数时，全部平票座位同时出局
// 否则没有人出局，提名被清空，白天继续
func (e *Engine) ResolveLift() (StageOutcome, error) {
	s := e.session
	if s == nil || s.finished {
		return StageOutcome{}, ErrVotingFinished
	}
	if s.Stage != STAGE_LIFT {
		return StageOutcome{}, errors.New("当前不在 lift 子阶段")
	}

	yes := s.liftVoters()
	aliveCount := len(s.alive)

	if 2*len(yes) > aliveCount {
		winners := slices.Clone(s.TiePlayers)

		e.archiveStage(winners)
		e.finishSession(winners)

		zap.L().Info(
			"lift 通过，平票座位全部出局",
			zap.Ints("winners", winners),
			zap.Int("yes", len(yes)),
			zap.Int("alive", aliveCount),
		)

		return StageOutcome{Winners: winners}, nil
	}

	e.archiveStage(nil)
	e.finishSession(nil)
	e.ClearNominations()

	zap.L().Info(
		"lift 未通过，无人出局",
		zap.Int("yes", len(yes)),
		zap.Int("alive", aliveCount),
	)

	return StageOutcome{}, nil
}

// Close 关闭投票界面：归档本轮并清空提名
// 返回需要标记为 voted 终态的座位
func (e *Engine) Close() []int {
	s := e.session
	if s == nil {
		return nil
	}

	winners := slices.Clone(s.FinalWinners)

	e.history = append(e.history, s)
	e.session = nil
	e.ClearNominations()

	return winners
}

func (s *VotingSession) votedFor(voter int) int {
	for candidate, voters := range s.Results {
		if slices.Contains(voters, voter) {
			return candidate
		}
	}

	return 0
}

// assignDefaultsToLast 把所有还没投票的存活座位计给最后一位候选人
func (s *VotingSession) assignDefaultsToLast() {
	if len(s.Order) == 0 {
		return
	}

	last := s.Order[len(s.Order)-1]

	for voter := range s.alive {
		if s.votedFor(voter) == 0 {
			s.Results[last] = append(s.Results[last], voter)
		}
	}

	slices.Sort(s.Results[last])
}

func (s *VotingSession) liftVoters() []int {
	voters := make([]int, 0, len(s.liftYes))
	for voter := range s.liftYes {
		voters = append(voters, voter)
	}
	slices.Sort(voters)

	return voters
}

func (e *Engine) archiveStage(winners []int) {
	s := e.session

	record := StageRecord{
		Stage:   s.Stage,
		Order:   slices.Clone(s.Order),
		Results: make(map[int][]int, len(s.Results)),
		Winners: slices.Clone(winners),
	}
	for candidate, voters := range s.Results {
		record.Results[candidate] = slices.Clone(voters)
	}
	if s.Stage == STAGE_LIFT {
		record.LiftVoters = s.liftVoters()
	}

	s.Stages = append(s.Stages, record)
}

func (e *Engine) finishSession(winners []int) {
	e.session.FinalWinners = slices.Clone(winners)
	e.session.finished = true
}
