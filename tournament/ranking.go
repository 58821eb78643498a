package tournament

import "fmt"

// FinalizeRankings computes standings from a fully resolved bracket using
// standard single elimination placement: the champion is rank 1, the final's
// loser rank 2, and everyone eliminated in the same earlier round shares the
// rank right below that round's survivors. Two semifinal losers both get
// rank 3, and so on.
func FinalizeRankings(bracket []*Round, champion string) (map[string]int, error) {
	if champion == "" {
		return nil, fmt.Errorf("cannot finalize rankings without a champion")
	}
	for _, round := range bracket {
		if !round.Resolved() {
			return nil, fmt.Errorf("round %d is not fully resolved", round.Number)
		}
	}

	rankings := map[string]int{champion: 1}

	for _, round := range bracket {
		rank := len(round.Survivors()) + 1
		for _, m := range round.Matchups {
			winner, ok := m.Winner()
			if !ok {
				// Double forfeit: both sides eliminated here.
				rankings[m.P1.Alias] = rank
				rankings[m.P2.Alias] = rank
				continue
			}
			if loser := m.P1; winner != loser {
				rankings[loser.Alias] = rank
			} else {
				rankings[m.P2.Alias] = rank
			}
		}
		for _, alias := range round.Withdrawals {
			rankings[alias] = rank
		}
	}

	return rankings, nil
}
