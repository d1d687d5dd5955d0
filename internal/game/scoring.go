package game

import "sort"

const audienceLeaderboardSize = 10

// computeTotalsLocked derives cumulative totals from the scored rounds.
// Players earn the funny votes their submissions received; an audience
// member earns one point per scored round in which their ai_choice was the
// submission flagged is_ai. Pure with respect to the ledger: running it
// twice on unchanged state yields identical maps. Players removed from the
// roster no longer score at all.
func (s *Session) computeTotalsLocked() (players map[string]int, audience map[string]int) {
	players = make(map[string]int, len(s.playersByID))
	for id := range s.playersByID {
		players[id] = 0
	}
	audience = make(map[string]int)
	for _, r := range s.rounds {
		if !r.scored {
			continue
		}
		for subID, c := range r.tally {
			sub := r.subs[subID]
			if sub == nil || sub.AuthorID == aiAuthorID {
				continue
			}
			if _, ok := s.playersByID[sub.AuthorID]; !ok {
				continue
			}
			players[sub.AuthorID] += c.Funny
		}
		aiID := r.aiSubmissionIDLocked()
		if aiID == "" {
			continue
		}
		for tok, v := range r.votes {
			if v.AIChoice == aiID {
				audience[tok]++
			}
		}
	}
	return players, audience
}

// Totals returns the cumulative point totals keyed by player id and voter
// token.
func (s *Session) Totals() (map[string]int, map[string]int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.computeTotalsLocked()
}

func (s *Session) scoresEventLocked() ScoresEvent {
	playerTotals, audienceTotals := s.computeTotalsLocked()
	ev := ScoresEvent{AudienceSize: len(s.audience)}
	ev.Players = make([]PlayerScore, 0, len(playerTotals))
	for id, pts := range playerTotals {
		name := ""
		if p := s.playersByID[id]; p != nil {
			name = p.Name
		}
		ev.Players = append(ev.Players, PlayerScore{PlayerID: id, Name: name, Points: pts})
	}
	sort.Slice(ev.Players, func(i, j int) bool {
		if ev.Players[i].Points != ev.Players[j].Points {
			return ev.Players[i].Points > ev.Players[j].Points
		}
		return ev.Players[i].Name < ev.Players[j].Name
	})
	for tok, pts := range audienceTotals {
		if pts == 0 {
			continue
		}
		name := ""
		if m := s.audience[tok]; m != nil {
			name = m.Name
		}
		ev.Audience = append(ev.Audience, AudienceScore{Name: name, Points: pts})
	}
	sort.Slice(ev.Audience, func(i, j int) bool {
		if ev.Audience[i].Points != ev.Audience[j].Points {
			return ev.Audience[i].Points > ev.Audience[j].Points
		}
		return ev.Audience[i].Name < ev.Audience[j].Name
	})
	if len(ev.Audience) > audienceLeaderboardSize {
		ev.Audience = ev.Audience[:audienceLeaderboardSize]
	}
	return ev
}
