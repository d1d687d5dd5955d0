package game

import (
	"sort"
	"time"
)

// Snapshot is the full-session view the durable exporter consumes. It can
// be taken in any phase; at ENDED it is the complete game record.
type Snapshot struct {
	StartedAt time.Time          `json:"started_at"`
	TakenAt   time.Time          `json:"taken_at"`
	Phase     Phase              `json:"phase"`
	RoundNo   int                `json:"round_no"`
	Players   []PlayerSnapshot   `json:"players"`
	Audience  []AudienceSnapshot `json:"audience"`
	Rounds    []RoundSnapshot    `json:"rounds"`
}

type PlayerSnapshot struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Points int    `json:"points"`
}

type AudienceSnapshot struct {
	Name   string `json:"name"`
	Points int    `json:"points"`
}

type RoundSnapshot struct {
	No          int                  `json:"no"`
	Prompt      *Prompt              `json:"prompt,omitempty"`
	Scored      bool                 `json:"scored"`
	VotesCast   int                  `json:"votes_cast"`
	Submissions []SubmissionSnapshot `json:"submissions"`
}

type SubmissionSnapshot struct {
	ID         string `json:"id"`
	Author     string `json:"author"`
	Text       string `json:"text"`
	IsAI       bool   `json:"is_ai"`
	AIVotes    int    `json:"ai_votes"`
	FunnyVotes int    `json:"funny_votes"`
}

// Snapshot builds the exportable view of the whole session.
func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	playerTotals, audienceTotals := s.computeTotalsLocked()
	snap := Snapshot{
		StartedAt: s.createdAt,
		TakenAt:   time.Now().UTC(),
		Phase:     s.phase,
		RoundNo:   s.roundNoLocked(),
	}
	for id, p := range s.playersByID {
		snap.Players = append(snap.Players, PlayerSnapshot{ID: id, Name: p.Name, Points: playerTotals[id]})
	}
	sort.Slice(snap.Players, func(i, j int) bool {
		if snap.Players[i].Points != snap.Players[j].Points {
			return snap.Players[i].Points > snap.Players[j].Points
		}
		return snap.Players[i].Name < snap.Players[j].Name
	})
	for tok, m := range s.audience {
		snap.Audience = append(snap.Audience, AudienceSnapshot{Name: m.Name, Points: audienceTotals[tok]})
	}
	sort.Slice(snap.Audience, func(i, j int) bool {
		if snap.Audience[i].Points != snap.Audience[j].Points {
			return snap.Audience[i].Points > snap.Audience[j].Points
		}
		return snap.Audience[i].Name < snap.Audience[j].Name
	})
	for _, r := range s.rounds {
		rs := RoundSnapshot{No: r.No, Prompt: r.Prompt, Scored: r.scored}
		for _, v := range r.votes {
			if v.AIChoice != "" || v.FunnyChoice != "" {
				rs.VotesCast++
			}
		}
		for _, sub := range r.activeInOrderLocked() {
			c := r.tally[sub.ID]
			if c == nil {
				c = &categoryCounts{}
			}
			rs.Submissions = append(rs.Submissions, SubmissionSnapshot{
				ID:         sub.ID,
				Author:     s.authorNameLocked(sub),
				Text:       sub.Text,
				IsAI:       sub.IsAI,
				AIVotes:    c.AI,
				FunnyVotes: c.Funny,
			})
		}
		snap.Rounds = append(snap.Rounds, rs)
	}
	return snap
}
