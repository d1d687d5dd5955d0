package game

import (
	"math/rand"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// aiAuthorID is the sentinel author of the generated answer. It never
// appears in the player roster and never scores.
const aiAuthorID = "AI"

type Submission struct {
	ID         string
	AuthorID   string // player id or aiAuthorID
	Text       string
	Normalized string
	IsAI       bool
	CreatedAt  time.Time
}

type Vote struct {
	VoterToken  string
	AIChoice    string // submission id, empty after a retraction cleared it
	FunnyChoice string
	MessageID   string
}

type categoryCounts struct {
	AI    int
	Funny int
}

// Round is one prompt-answer-vote cycle. All fields are guarded by the
// session mutex.
type Round struct {
	No     int
	Prompt *Prompt

	subs     map[string]*Submission // active submissions by id
	byAuthor map[string]string      // author id -> submission id
	order    []string               // shuffled at REVEAL entry, then stable
	frozen   bool
	revealIx int

	votes map[string]*Vote           // voter token -> current vote
	tally map[string]*categoryCounts // submission id -> running counts

	scored bool
}

func newRound(no int) *Round {
	return &Round{
		No:       no,
		subs:     make(map[string]*Submission),
		byAuthor: make(map[string]string),
		votes:    make(map[string]*Vote),
		tally:    make(map[string]*categoryCounts),
	}
}

// normalizeAnswer folds case and whitespace so "Answer" and "  ANSWER  "
// collide.
func normalizeAnswer(text string) string {
	return strings.ToLower(strings.Join(strings.Fields(text), " "))
}

// Submit stores or replaces the player's answer for the current round.
// Valid during WRITING, or later in the round for a player whose answer the
// host retracted. A normalized-text collision with someone else's active
// answer rejects the call and stores nothing; the player may retry at once.
func (s *Session) Submit(playerToken, text string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p := s.playersByToken[playerToken]
	if p == nil {
		return "", ErrUnknownToken
	}
	if p.Name == "" {
		return "", ErrNotRegistered
	}
	r := s.currentLocked()
	if r == nil {
		return "", ErrNoCurrentRound
	}
	if s.phase != PhaseWriting {
		// a retracted answer may be replaced while the round is still open
		if !p.MustResubmit || (s.phase != PhaseReveal && s.phase != PhaseVoting) {
			return "", ErrInvalidPhase
		}
	}
	text = strings.TrimSpace(text)
	if len([]rune(text)) < s.settings.MinAnswerLength {
		return "", ErrTooShort
	}
	norm := normalizeAnswer(text)
	for _, other := range r.subs {
		if other.AuthorID != p.ID && other.Normalized == norm {
			return "", ErrDuplicateSubmission
		}
	}

	var sub *Submission
	if subID, ok := r.byAuthor[p.ID]; ok {
		sub = r.subs[subID]
		sub.Text = text
		sub.Normalized = norm
	} else {
		sub = &Submission{
			ID:         uuid.NewString(),
			AuthorID:   p.ID,
			Text:       text,
			Normalized: norm,
			CreatedAt:  time.Now().UTC(),
		}
		r.subs[sub.ID] = sub
		r.byAuthor[p.ID] = sub.ID
		r.tally[sub.ID] = &categoryCounts{}
		if r.frozen {
			r.order = append(r.order, sub.ID)
		}
	}
	p.MustResubmit = false
	s.deliverLocked(s.submissionsEventLocked())
	s.deliverLocked(s.playerStateLocked(p))
	log.Info().Str("player_id", p.ID).Str("submission_id", sub.ID).Int("round", r.No).Msg("answer submitted")
	return sub.ID, nil
}

// SeedAISubmission inserts the generated answer for round roundNo, flagged
// is_ai. Stale completions are rejected so a slow generator cannot write
// into a later round.
func (s *Session) SeedAISubmission(roundNo int, text string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r := s.currentLocked()
	if r == nil || r.No != roundNo || s.phase != PhaseWriting {
		return "", ErrInvalidPhase
	}
	text = strings.TrimSpace(text)
	if len([]rune(text)) < s.settings.MinAnswerLength {
		return "", ErrTooShort
	}
	norm := normalizeAnswer(text)
	for _, other := range r.subs {
		if other.AuthorID != aiAuthorID && other.Normalized == norm {
			return "", ErrDuplicateSubmission
		}
	}

	var sub *Submission
	if subID, ok := r.byAuthor[aiAuthorID]; ok {
		sub = r.subs[subID]
		sub.Text = text
		sub.Normalized = norm
	} else {
		sub = &Submission{
			ID:         uuid.NewString(),
			AuthorID:   aiAuthorID,
			Text:       text,
			Normalized: norm,
			CreatedAt:  time.Now().UTC(),
		}
		r.subs[sub.ID] = sub
		r.byAuthor[aiAuthorID] = sub.ID
		r.tally[sub.ID] = &categoryCounts{}
		if r.frozen {
			r.order = append(r.order, sub.ID)
		}
	}
	s.setAIFlagLocked(r, sub.ID)
	s.deliverLocked(s.submissionsEventLocked())
	log.Info().Int("round", r.No).Msg("ai answer seeded")
	return sub.ID, nil
}

// MarkAI flags one submission as the AI answer, clearing the flag anywhere
// else in the round. The engine enforces the phase rule itself rather than
// trusting the host UI to hide the control: moving the flag is a WRITING
// action, but when a retraction left the round without any AI answer the
// host may re-mark one during REVEAL or VOTING, otherwise the
// VOTING -> RESULTS guard could never be satisfied again.
func (s *Session) MarkAI(submissionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	r := s.currentLocked()
	if r == nil {
		return ErrNoCurrentRound
	}
	if s.phase != PhaseWriting {
		rescueable := r.aiSubmissionIDLocked() == "" && (s.phase == PhaseReveal || s.phase == PhaseVoting)
		if !rescueable {
			return ErrInvalidPhase
		}
	}
	if r.subs[submissionID] == nil {
		return ErrUnknownSubmission
	}
	s.setAIFlagLocked(r, submissionID)
	s.deliverLocked(s.submissionsEventLocked())
	log.Info().Str("submission_id", submissionID).Int("round", r.No).Msg("ai flag moved")
	return nil
}

// MarkDuplicate force-retracts a submission, in any phase. The author's
// writing gate reopens (see Submit) and they are told to resubmit.
func (s *Session) MarkDuplicate(submissionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	r := s.currentLocked()
	if r == nil {
		return ErrNoCurrentRound
	}
	sub := r.subs[submissionID]
	if sub == nil {
		return ErrUnknownSubmission
	}
	s.retractLocked(r, submissionID)
	if p := s.playersByID[sub.AuthorID]; p != nil {
		p.MustResubmit = true
		s.deliverLocked(s.playerStateLocked(p))
	}
	if r.scored {
		s.deliverLocked(s.scoresEventLocked())
	}
	log.Info().Str("submission_id", submissionID).Int("round", r.No).Msg("submission retracted as duplicate")
	return nil
}

// retractLocked removes a submission from the round: ledger, reveal order,
// tally and any vote choices pointing at it. Affected voters read as "not
// yet voted" for that category until they vote again.
func (s *Session) retractLocked(r *Round, submissionID string) {
	sub := r.subs[submissionID]
	if sub == nil {
		return
	}
	delete(r.subs, submissionID)
	delete(r.tally, submissionID)
	if r.byAuthor[sub.AuthorID] == submissionID {
		delete(r.byAuthor, sub.AuthorID)
	}
	for i, id := range r.order {
		if id == submissionID {
			r.order = append(r.order[:i], r.order[i+1:]...)
			if i < r.revealIx {
				r.revealIx--
			}
			break
		}
	}
	votesCleared := false
	for _, v := range r.votes {
		if v.AIChoice == submissionID {
			v.AIChoice = ""
			votesCleared = true
		}
		if v.FunnyChoice == submissionID {
			v.FunnyChoice = ""
			votesCleared = true
		}
	}
	s.deliverLocked(s.submissionsEventLocked())
	if votesCleared {
		s.deliverLocked(s.voteCountsEventLocked())
	}
}

func (s *Session) setAIFlagLocked(r *Round, submissionID string) {
	for _, sub := range r.subs {
		sub.IsAI = sub.ID == submissionID
	}
}

func (r *Round) aiSubmissionIDLocked() string {
	for id, sub := range r.subs {
		if sub.IsAI {
			return id
		}
	}
	return ""
}

// freezeOrderLocked fixes the shuffled reveal order when REVEAL begins.
func (r *Round) freezeOrderLocked() {
	if r.frozen {
		return
	}
	r.order = make([]string, 0, len(r.subs))
	for id := range r.subs {
		r.order = append(r.order, id)
	}
	rand.Shuffle(len(r.order), func(i, j int) { r.order[i], r.order[j] = r.order[j], r.order[i] })
	r.frozen = true
}

func (r *Round) activeInOrderLocked() []*Submission {
	if r.frozen {
		out := make([]*Submission, 0, len(r.order))
		for _, id := range r.order {
			if sub := r.subs[id]; sub != nil {
				out = append(out, sub)
			}
		}
		return out
	}
	out := make([]*Submission, 0, len(r.subs))
	for _, sub := range r.subs {
		out = append(out, sub)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out
}

func (r *Round) answersLocked(n int) []Answer {
	if n > len(r.order) {
		n = len(r.order)
	}
	out := make([]Answer, 0, n)
	for _, id := range r.order[:n] {
		if sub := r.subs[id]; sub != nil {
			out = append(out, Answer{SubmissionID: sub.ID, Text: sub.Text})
		}
	}
	return out
}
