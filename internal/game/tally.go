package game

import "github.com/rs/zerolog/log"

// CastVote records an audience member's two category choices for the
// current round. A replay of the voter's last message_id is acknowledged
// without counting again. A new message_id supersedes the prior vote: the
// old choices are decremented and the new ones incremented in one step, so
// the voter always holds exactly one live vote per category. Choosing the
// same submission in both categories is allowed.
func (s *Session) CastVote(voterToken, aiChoice, funnyChoice, messageID string) (replayed bool, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.audience[voterToken] == nil {
		return false, ErrUnknownToken
	}
	if s.phase != PhaseVoting {
		return false, ErrInvalidPhase
	}
	if s.panicMode {
		return false, ErrPanicMode
	}
	r := s.currentLocked()
	if r == nil {
		return false, ErrNoCurrentRound
	}
	prior := r.votes[voterToken]
	if prior != nil && messageID != "" && prior.MessageID == messageID {
		return true, nil
	}
	if aiChoice == "" || funnyChoice == "" {
		return false, ErrUnknownSubmission
	}
	if r.subs[aiChoice] == nil || r.subs[funnyChoice] == nil {
		return false, ErrUnknownSubmission
	}

	if prior != nil {
		r.bumpLocked(prior.AIChoice, -1, 0)
		r.bumpLocked(prior.FunnyChoice, 0, -1)
		prior.AIChoice = aiChoice
		prior.FunnyChoice = funnyChoice
		prior.MessageID = messageID
	} else {
		r.votes[voterToken] = &Vote{
			VoterToken:  voterToken,
			AIChoice:    aiChoice,
			FunnyChoice: funnyChoice,
			MessageID:   messageID,
		}
	}
	r.bumpLocked(aiChoice, 1, 0)
	r.bumpLocked(funnyChoice, 0, 1)
	s.deliverLocked(s.voteCountsEventLocked())
	log.Debug().Int("round", r.No).Msg("vote recorded")
	return false, nil
}

func (r *Round) bumpLocked(submissionID string, ai, funny int) {
	if submissionID == "" {
		return
	}
	c := r.tally[submissionID]
	if c == nil {
		return
	}
	c.AI += ai
	c.Funny += funny
}
