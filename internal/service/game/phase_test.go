package game

import (
	"errors"
	"testing"
)

func confirmedController(t *testing.T, ruleset string) *PhaseController {
	t.Helper()

	roles := classicRoles()
	if ruleset == RULESET_CITY {
		roles = cityRoles()
	}

	pc := NewPhaseController(ruleset)
	if err := pc.ConfirmRoles(roles, PHASE_DISCUSSION); err != nil {
		t.Fatalf("confirm roles failed: %v", err)
	}
	if err := pc.BeginDay(); err != nil {
		t.Fatalf("begin day failed: %v", err)
	}

	return pc
}

func TestConfirmRolesRejectsInvalidSet(t *testing.T) {
	pc := NewPhaseController(RULESET_CLASSIC)

	roles := classicRoles()
	roles[9] = ROLE_CIVILIAN // 只剩一名黑手党

	err := pc.ConfirmRoles(roles, PHASE_DISCUSSION)
	if err == nil {
		t.Fatalf("invalid role set must be rejected")
	}
	if pc.Phase() != PHASE_ROLES {
		t.Fatalf("rejected confirmation must not transition, got %s", pc.Phase())
	}
}

func TestConfirmRolesDoctorOnlyInCityRuleset(t *testing.T) {
	// classic 规则带医生 -> 拒绝
	pc := NewPhaseController(RULESET_CLASSIC)
	if err := pc.ConfirmRoles(cityRoles(), PHASE_DISCUSSION); err == nil {
		t.Fatalf("doctor outside the city ruleset must be rejected")
	}

	// city 规则缺医生 -> 拒绝
	pc = NewPhaseController(RULESET_CITY)
	if err := pc.ConfirmRoles(classicRoles(), PHASE_FREE_SEATING); err == nil {
		t.Fatalf("city ruleset without a doctor must be rejected")
	}

	// city 规则带医生 -> 通过，进入 freeSeating
	pc = NewPhaseController(RULESET_CITY)
	if err := pc.ConfirmRoles(cityRoles(), PHASE_FREE_SEATING); err != nil {
		t.Fatalf("valid city role set rejected: %v", err)
	}
	if pc.Phase() != PHASE_FREE_SEATING {
		t.Fatalf("want freeSeating, got %s", pc.Phase())
	}
}

func TestStartVotingWithoutNomineesShowsHistory(t *testing.T) {
	pc := confirmedController(t, RULESET_CLASSIC)

	decision, err := pc.StartVoting(nil)
	if err != nil {
		t.Fatalf("start voting failed: %v", err)
	}

	if decision != VOTING_SHOW_HISTORY {
		t.Fatalf("no nominations must redirect to history, got %s", decision)
	}
	if pc.Phase() != PHASE_DAY {
		t.Fatalf("redirect must not leave the day phase, got %s", pc.Phase())
	}
}

func TestDayZeroSingleNomineeSkipsVoting(t *testing.T) {
	pc := confirmedController(t, RULESET_CLASSIC)

	decision, err := pc.StartVoting([]int{5})
	if err != nil {
		t.Fatalf("start voting failed: %v", err)
	}

	if decision != VOTING_SKIP {
		t.Fatalf("single nominee on day 0 must skip voting, got %s", decision)
	}
	if pc.Phase() != PHASE_DAY {
		t.Fatalf("skip must not open the voting phase, got %s", pc.Phase())
	}
}

func TestSingleNomineeVotesNormallyAfterDayZero(t *testing.T) {
	pc := confirmedController(t, RULESET_CLASSIC)

	// 过一夜，进入第 1 天
	if err := pc.BeginNight(true); err != nil {
		t.Fatalf("begin night failed: %v", err)
	}
	if err := pc.NightDone(); err != nil {
		t.Fatalf("night done failed: %v", err)
	}

	decision, err := pc.StartVoting([]int{5})
	if err != nil {
		t.Fatalf("start voting failed: %v", err)
	}

	if decision != VOTING_OPEN {
		t.Fatalf("single nominee after day 0 must vote normally, got %s", decision)
	}
	if pc.Phase() != PHASE_VOTING {
		t.Fatalf("want voting phase, got %s", pc.Phase())
	}
}

func TestNightWithoutVoteNeedsConfirmation(t *testing.T) {
	pc := confirmedController(t, RULESET_CLASSIC)

	if err := pc.BeginNight(false); !errors.Is(err, ErrConfirmNoVote) {
		t.Fatalf("want ErrConfirmNoVote, got %v", err)
	}
	if pc.Phase() != PHASE_DAY {
		t.Fatalf("unconfirmed transition must not happen, got %s", pc.Phase())
	}

	if err := pc.BeginNight(true); err != nil {
		t.Fatalf("confirmed transition failed: %v", err)
	}
	if pc.Phase() != PHASE_NIGHT || pc.NightNumber() != 1 {
		t.Fatalf("want night 1, got %s night %d", pc.Phase(), pc.NightNumber())
	}
}

func TestNightAfterVotingNeedsNoConfirmation(t *testing.T) {
	pc := confirmedController(t, RULESET_CLASSIC)

	if err := pc.BeginNight(true); err != nil {
		t.Fatalf("begin night failed: %v", err)
	}
	if err := pc.NightDone(); err != nil {
		t.Fatalf("night done failed: %v", err)
	}

	if _, err := pc.StartVoting([]int{5, 6}); err != nil {
		t.Fatalf("start voting failed: %v", err)
	}
	if err := pc.EndVoting(); err != nil {
		t.Fatalf("end voting failed: %v", err)
	}

	if err := pc.BeginNight(false); err != nil {
		t.Fatalf("a voted day must enter night without confirmation: %v", err)
	}
}

func TestDayNightCycleCounters(t *testing.T) {
	pc := confirmedController(t, RULESET_CLASSIC)

	for i := 1; i <= 3; i++ {
		if err := pc.BeginNight(true); err != nil {
			t.Fatalf("begin night %d failed: %v", i, err)
		}
		if err := pc.NightDone(); err != nil {
			t.Fatalf("night done %d failed: %v", i, err)
		}
	}

	if pc.DayNumber() != 3 || pc.NightNumber() != 3 {
		t.Fatalf("want day 3 night 3, got day %d night %d", pc.DayNumber(), pc.NightNumber())
	}
}

func TestFinishFromAnyPhase(t *testing.T) {
	pc := NewPhaseController(RULESET_CLASSIC)
	pc.Finish()
	if pc.Phase() != PHASE_RESULTS {
		t.Fatalf("finish from roles must reach results, got %s", pc.Phase())
	}

	pc = confirmedController(t, RULESET_CLASSIC)
	if _, err := pc.StartVoting([]int{5, 6}); err != nil {
		t.Fatalf("start voting failed: %v", err)
	}
	pc.Finish()
	if pc.Phase() != PHASE_RESULTS {
		t.Fatalf("finish from voting must reach results, got %s", pc.Phase())
	}
}
