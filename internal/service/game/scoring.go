package game

// 计分引擎：对已记录历史的纯函数，没有副作用
// 相同输入永远得到相同输出，可以在宣布胜利方后反复调用

// 被杀座位的赛后预测类型
const (
	GUESS_SHERIFF  = "sheriff"
	GUESS_MAFIA    = "mafia"
	GUESS_CIVILIAN = "civilian"
)

// 最佳移动奖励表，下标为猜中的黑方座位数（最多 3 猜）
var bestMoveBonus = [4]float64{0, 0, 0.25, 0.4}

// 协议预测每座位的奖惩
const (
	protocolSheriffBonus    = 0.3
	protocolSheriffPenalty  = 0.15
	protocolMafiaBonus      = 0.15
	protocolMafiaPenalty    = 0.1
	protocolCivilianBonus   = 0.05
	protocolCivilianPenalty = 0.05
)

// 单独观点（猜警长）的奖惩
const (
	opinionBonus   = 0.25
	opinionPenalty = 0.1
)

// 犯规罚分
const (
	removedPenalty  = 0.5
	techFallPenalty = 0.3
)

type PlayerScore struct {
	Bonus   float64 `json:"bonus"`
	Penalty float64 `json:"penalty"`
	Reveal  bool    `json:"reveal"`
}

// GameRecord 是计分所需的全部历史
type GameRecord struct {
	// 座位 -> 真实角色
	Roles map[int]string
	// 按死亡顺序排列的被杀座位，第一个享受最佳移动和协议计分
	KillOrder []int
	// 首个被杀座位的最佳移动猜测，最多 3 个座位
	BestMoveGuesses []int
	// 首个被杀座位的协议预测：其他座位 -> 猜测角色
	Protocol map[int]string
	// 其余被杀座位的观点：座位 -> 猜测的警长座位
	Opinions map[int]int
	// 犯规离场：座位 -> ACTION_REMOVED（4 犯）或 ACTION_TECH_FALL
	FoulRemovals map[int]string
}

// ComputeScores 从历史推导所有座位的加减分
func ComputeScores(rec GameRecord) map[int]PlayerScore {
	scores := make(map[int]PlayerScore)

	if len(rec.KillOrder) > 0 {
		firstKilled := rec.KillOrder[0]
		score := scores[firstKilled]

		// 死亡座位的角色在计分环节已经公开
		score.Reveal = true
		score.Bonus += scoreBestMove(rec.Roles, rec.BestMoveGuesses)

		protoBonus, protoPenalty := scoreProtocol(rec.Roles, firstKilled, rec.Protocol)
		score.Bonus += protoBonus
		score.Penalty += protoPenalty

		scores[firstKilled] = score
	}

	for _, seat := range rec.KillOrder[min(1, len(rec.KillOrder)):] {
		guess, ok := rec.Opinions[seat]
		if !ok {
			continue
		}

		score := scores[seat]
		score.Reveal = true
		if rec.Roles[guess] == ROLE_SHERIFF {
			score.Bonus += opinionBonus
		} else {
			score.Penalty += opinionPenalty
		}
		scores[seat] = score
	}

	for seat, action := range rec.FoulRemovals {
		score := scores[seat]

		switch action {
		case ACTION_REMOVED:
			score.Penalty += removedPenalty
		case ACTION_TECH_FALL:
			score.Penalty += techFallPenalty
		}

		scores[seat] = score
	}

	return scores
}

// scoreBestMove 按猜中黑方座位数查表
func scoreBestMove(roles map[int]string, guesses []int) float64 {
	correct := 0
	for i, seat := range guesses {
		if i >= 3 {
			break
		}
		if IsMafiaAligned(roles[seat]) {
			correct++
		}
	}

	return bestMoveBonus[correct]
}

// scoreProtocol 逐座位核对协议预测
func scoreProtocol(roles map[int]string, author int, protocol map[int]string) (float64, float64) {
	var bonus, penalty float64

	for seat, guess := range protocol {
		if seat == author {
			continue
		}

		actual := roles[seat]

		switch guess {
		case GUESS_SHERIFF:
			if actual == ROLE_SHERIFF {
				bonus += protocolSheriffBonus
			} else {
				penalty += protocolSheriffPenalty
			}
		case GUESS_MAFIA:
			if IsMafiaAligned(actual) {
				bonus += protocolMafiaBonus
			} else {
				penalty += protocolMafiaPenalty
			}
		case GUESS_CIVILIAN:
			if IsCivilianAligned(actual) {
				bonus += protocolCivilianBonus
			} else {
				penalty += protocolCivilianPenalty
			}
		}
	}

	return bonus, penalty
}
