package game

import (
	"errors"
	"slices"
	"testing"
)

func startRound(t *testing.T, e *Engine, day int, alive []int, nominations ...[2]int) *VotingSession {
	t.Helper()

	for _, n := range nominations {
		e.Nominate(n[0], n[1])
	}

	session, err := e.StartRound(day, alive)
	if err != nil {
		t.Fatalf("StartRound failed: %v", err)
	}

	return session
}

func vote(t *testing.T, s *VotingSession, voters ...int) {
	t.Helper()

	for _, voter := range voters {
		if err := s.SubmitVote(voter); err != nil {
			t.Fatalf("vote by seat %d failed: %v", voter, err)
		}
	}
}

func TestStartRoundWithoutNominees(t *testing.T) {
	e := NewEngine()

	if _, err := e.StartRound(1, []int{1, 2, 3}); !errors.Is(err, ErrNoNominees) {
		t.Fatalf("want ErrNoNominees, got %v", err)
	}
}

func TestNominateReplacesEarlierNomination(t *testing.T) {
	e := NewEngine()
	e.Nominate(1, 5)
	e.Nominate(2, 6)
	e.Nominate(1, 7)

	got := e.Nominees()

	if slices.Contains(got, 5) {
		t.Fatalf("replaced nomination still present: %v", got)
	}
	if len(got) != 2 {
		t.Fatalf("want 2 nominees, got %v", got)
	}
}

func TestNomineesKeepNominationOrder(t *testing.T) {
	e := NewEngine()
	e.Nominate(1, 7)
	e.Nominate(2, 3)
	e.Nominate(4, 7)

	if got := e.Nominees(); !slices.Equal(got, []int{7, 3}) {
		t.Fatalf("want [7 3], got %v", got)
	}
}

func TestDefaultToLastBeforeResolution(t *testing.T) {
	// 候选人 1、2，五个存活座位
	// 座位 3、4 投 1，座位 5 投 2，座位 1、2 未投票
	// 结算前未投票座位自动计给最后的候选人 2，因此 2 以 3 票胜出
	e := NewEngine()
	session := startRound(t, e, 1, []int{1, 2, 3, 4, 5}, [2]int{3, 1}, [2]int{5, 2})

	if !slices.Equal(session.Order, []int{1, 2}) {
		t.Fatalf("unexpected voting order: %v", session.Order)
	}

	vote(t, session, 3, 4)
	session.AcceptCurrent()
	vote(t, session, 5)

	outcome, err := e.ResolveStage()
	if err != nil {
		t.Fatalf("resolve failed: %v", err)
	}

	if !slices.Equal(session.Results[2], []int{1, 2, 5}) {
		t.Fatalf("unvoted seats must be assigned to the last candidate, got %v", session.Results[2])
	}
	if !slices.Equal(outcome.Winners, []int{2}) {
		t.Fatalf("want winner [2], got %v", outcome.Winners)
	}
}

func TestTwoVsTwoTieEntersTieStage(t *testing.T) {
	e := NewEngine()
	session := startRound(t, e, 1, []int{3, 4, 5, 6}, [2]int{3, 1}, [2]int{5, 2})

	vote(t, session, 3, 4)
	session.AcceptCurrent()
	vote(t, session, 5, 6)

	outcome, err := e.ResolveStage()
	if err != nil {
		t.Fatalf("resolve failed: %v", err)
	}

	// 2 比 2 平票：同一趟结算里绝不能直接产生出局者
	if len(outcome.Winners) != 0 {
		t.Fatalf("tie must not produce winners, got %v", outcome.Winners)
	}
	if outcome.NextStage != STAGE_TIE {
		t.Fatalf("want stage tie, got %q", outcome.NextStage)
	}
	if session.Stage != STAGE_TIE || !slices.Equal(session.Order, []int{1, 2}) {
		t.Fatalf("tie stage must restrict order to the tied seats, got %v", session.Order)
	}
	if len(session.Results) != 0 {
		t.Fatalf("tie stage must start with empty tallies")
	}
}

func TestDuplicateVoteIsRecoverable(t *testing.T) {
	e := NewEngine()
	session := startRound(t, e, 1, []int{2, 3, 4}, [2]int{2, 1}, [2]int{3, 2})

	vote(t, session, 2)
	session.AcceptCurrent()

	if err := session.SubmitVote(2); !errors.Is(err, ErrAlreadyVoted) {
		t.Fatalf("want ErrAlreadyVoted, got %v", err)
	}

	// 撤回后允许改投
	session.RetractVote(2)
	vote(t, session, 2)
}

func TestDeadSeatCannotVote(t *testing.T) {
	e := NewEngine()
	session := startRound(t, e, 1, []int{2, 3}, [2]int{2, 1}, [2]int{3, 2})

	if err := session.SubmitVote(9); err == nil {
		t.Fatalf("seat outside the living set must not vote")
	}
}

// liftSession 构造一个已经升级到 lift 的轮次：
// 七个存活座位，三个候选人，main 和 tie 各出现一次 1/2 平票
func liftSession(t *testing.T) (*Engine, *VotingSession) {
	t.Helper()

	e := NewEngine()
	session := startRound(
		t, e, 1,
		[]int{1, 2, 3, 4, 5, 6, 7},
		[2]int{4, 1}, [2]int{5, 2}, [2]int{6, 3},
	)

	// main：1 得 3 票，2 得 3 票，座位 3 未投票默认计给最后的候选人 3
	vote(t, session, 4, 5, 6)
	session.AcceptCurrent()
	vote(t, session, 7, 1, 2)
	session.AcceptCurrent()

	outcome, err := e.ResolveStage()
	if err != nil {
		t.Fatalf("main resolve failed: %v", err)
	}
	if outcome.NextStage != STAGE_TIE || !slices.Equal(session.Order, []int{1, 2}) {
		t.Fatalf("expected tie between 1 and 2, got %+v", outcome)
	}

	// tie：3 比 3，座位 2 弃权
	vote(t, session, 3, 4, 5)
	session.AcceptCurrent()
	vote(t, session, 6, 7, 1)

	outcome, err = e.ResolveStage()
	if err != nil {
		t.Fatalf("tie resolve failed: %v", err)
	}
	if outcome.NextStage != STAGE_LIFT {
		t.Fatalf("second tie must escalate to lift, got %+v", outcome)
	}
	if !slices.Equal(session.TiePlayers, []int{1, 2}) {
		t.Fatalf("lift must target the tied seats, got %v", session.TiePlayers)
	}

	return e, session
}

func TestLiftMajorityRemovesAllTied(t *testing.T) {
	e, session := liftSession(t)

	// 7 个存活座位，4 票赞成（> 3.5）：平票座位全部出局
	for _, voter := range []int{1, 2, 3, 4} {
		if err := session.ToggleLift(voter); err != nil {
			t.Fatalf("toggle failed: %v", err)
		}
	}

	outcome, err := e.ResolveLift()
	if err != nil {
		t.Fatalf("resolve lift failed: %v", err)
	}

	if !slices.Equal(outcome.Winners, []int{1, 2}) {
		t.Fatalf("lift majority must remove all tied seats, got %v", outcome.Winners)
	}

	winners := e.Close()
	if !slices.Equal(winners, []int{1, 2}) {
		t.Fatalf("close must commit final winners, got %v", winners)
	}
}

func TestLiftMinorityRemovesNobody(t *testing.T) {
	e, session := liftSession(t)

	// 3 票赞成（<= 3.5）：无人出局，提名清空
	for _, voter := range []int{1, 2, 3} {
		if err := session.ToggleLift(voter); err != nil {
			t.Fatalf("toggle failed: %v", err)
		}
	}

	outcome, err := e.ResolveLift()
	if err != nil {
		t.Fatalf("resolve lift failed: %v", err)
	}

	if len(outcome.Winners) != 0 {
		t.Fatalf("lift minority must remove nobody, got %v", outcome.Winners)
	}
	if len(e.Nominees()) != 0 {
		t.Fatalf("nominations must be cleared after a failed lift")
	}
}

func TestLiftToggleIsReversible(t *testing.T) {
	e, session := liftSession(t)

	for _, voter := range []int{1, 2, 3, 4} {
		if err := session.ToggleLift(voter); err != nil {
			t.Fatalf("toggle failed: %v", err)
		}
	}
	// 座位 4 反悔
	if err := session.ToggleLift(4); err != nil {
		t.Fatalf("toggle back failed: %v", err)
	}

	outcome, err := e.ResolveLift()
	if err != nil {
		t.Fatalf("resolve lift failed: %v", err)
	}

	if len(outcome.Winners) != 0 {
		t.Fatalf("3 yes votes out of 7 must not remove, got %v", outcome.Winners)
	}
}

func TestDayZeroTripleTieSkipsToNight(t *testing.T) {
	e := NewEngine()
	session := startRound(
		t, e, 0,
		[]int{1, 2, 3, 4, 5, 6},
		[2]int{4, 1}, [2]int{5, 2}, [2]int{6, 3},
	)

	vote(t, session, 1, 4)
	session.AcceptCurrent()
	vote(t, session, 2, 5)
	session.AcceptCurrent()
	vote(t, session, 3, 6)

	outcome, err := e.ResolveStage()
	if err != nil {
		t.Fatalf("resolve failed: %v", err)
	}

	// 第 0 天三提名完美平票：不重投、不 lift、无人出局
	if !outcome.SkipToNight {
		t.Fatalf("day-0 perfect triple tie must skip straight to night, got %+v", outcome)
	}
	if outcome.NextStage != "" || len(outcome.Winners) != 0 {
		t.Fatalf("day-0 triple tie must not re-vote or remove, got %+v", outcome)
	}
	if len(e.Nominees()) != 0 {
		t.Fatalf("nominations must be cleared")
	}
}

func TestEveryResolvedStageIsArchived(t *testing.T) {
	e, session := liftSession(t)

	for _, voter := range []int{1, 2, 3, 4} {
		if err := session.ToggleLift(voter); err != nil {
			t.Fatalf("toggle failed: %v", err)
		}
	}
	if _, err := e.ResolveLift(); err != nil {
		t.Fatalf("resolve lift failed: %v", err)
	}

	if len(session.Stages) != 3 {
		t.Fatalf("want 3 archived stages (main, tie, lift), got %d", len(session.Stages))
	}
	if session.Stages[0].Stage != STAGE_MAIN ||
		session.Stages[1].Stage != STAGE_TIE ||
		session.Stages[2].Stage != STAGE_LIFT {
		t.Fatalf("unexpected stage order: %+v", session.Stages)
	}
	if !slices.Equal(session.Stages[2].LiftVoters, []int{1, 2, 3, 4}) {
		t.Fatalf("lift record must keep the yes voters, got %v", session.Stages[2].LiftVoters)
	}

	e.Close()

	if len(e.History()) != 1 {
		t.Fatalf("closed session must be archived into history")
	}
}
