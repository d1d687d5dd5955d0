package game

import (
	"errors"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

var (
	ErrInvalidPhase        = errors.New("action not allowed in current phase")
	ErrInvalidTransition   = errors.New("invalid phase transition")
	ErrUnknownToken        = errors.New("unknown token")
	ErrUnknownPlayer       = errors.New("unknown player")
	ErrUnknownSubmission   = errors.New("unknown submission")
	ErrNameMissing         = errors.New("display name must not be empty")
	ErrNotRegistered       = errors.New("player has not registered a name")
	ErrTooShort            = errors.New("answer too short")
	ErrDuplicateSubmission = errors.New("another answer with the same text exists")
	ErrPanicMode           = errors.New("voting is paused")
	ErrNoCurrentRound      = errors.New("no current round")
	ErrNothingToReveal     = errors.New("all answers revealed")
)

type Role string

const (
	RoleHost     Role = "host"
	RoleBeamer   Role = "beamer"
	RolePlayer   Role = "player"
	RoleAudience Role = "audience"
)

// Identity is what a resolved join binds a connection to.
type Identity struct {
	Role        Role
	PlayerID    string // set for players
	PlayerToken string // set for players
	VoterToken  string // set for audience
}

type Player struct {
	ID           string
	Token        string
	Name         string // empty until registered
	Connected    int    // live connection count
	MustResubmit bool   // set when the host retracts their answer
}

type AudienceMember struct {
	Token    string
	Name     string
	JoinedAt time.Time
}

type Settings struct {
	HostToken         string // generated when empty
	BeamerToken       string // generated when empty
	MinAnswerLength   int    // runes, after trimming
	PlayerTokenLength int
}

func (st Settings) withDefaults() Settings {
	if st.HostToken == "" {
		st.HostToken = randomToken(12)
	}
	if st.BeamerToken == "" {
		st.BeamerToken = randomToken(12)
	}
	if st.MinAnswerLength <= 0 {
		st.MinAnswerLength = 2
	}
	if st.PlayerTokenLength <= 0 {
		st.PlayerTokenLength = 6
	}
	return st
}

// Session is the one authoritative game aggregate of the process. Every
// mutating entry point takes the session mutex, so duplicate checks, tally
// updates and phase guards never race. Events are delivered to the
// broadcaster while the lock is held, which fixes fan-out order to mutation
// order.
type Session struct {
	mu sync.Mutex
	bc Broadcaster

	settings  Settings
	createdAt time.Time

	phase     Phase
	deadline  *time.Time
	panicMode bool

	playersByToken map[string]*Player
	playersByID    map[string]*Player

	audience       map[string]*AudienceMember // voter token -> member
	audienceNames  map[string]bool
	audienceOnline int

	rounds []*Round
}

func NewSession(st Settings, bc Broadcaster) *Session {
	return &Session{
		bc:             bc,
		settings:       st.withDefaults(),
		createdAt:      time.Now().UTC(),
		phase:          PhaseLobby,
		playersByToken: make(map[string]*Player),
		playersByID:    make(map[string]*Player),
		audience:       make(map[string]*AudienceMember),
		audienceNames:  make(map[string]bool),
	}
}

func (s *Session) HostToken() string   { return s.settings.HostToken }
func (s *Session) BeamerToken() string { return s.settings.BeamerToken }

func (s *Session) Phase() Phase {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.phase
}

func (s *Session) RoundNo() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.roundNoLocked()
}

func (s *Session) currentLocked() *Round {
	if len(s.rounds) == 0 {
		return nil
	}
	return s.rounds[len(s.rounds)-1]
}

func (s *Session) roundNoLocked() int {
	if r := s.currentLocked(); r != nil {
		return r.No
	}
	return 0
}

func (s *Session) deliverLocked(ev Event) {
	if s.bc != nil {
		s.bc.Deliver(ev)
	}
}

// MintPlayerTokens creates n pending players and returns their tokens for
// the host to hand out. Names are registered later by the players.
func (s *Session) MintPlayerTokens(n int) []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	tokens := make([]string, 0, n)
	for i := 0; i < n; i++ {
		token := randomToken(s.settings.PlayerTokenLength)
		for s.playersByToken[token] != nil {
			token = randomToken(s.settings.PlayerTokenLength)
		}
		p := &Player{ID: uuid.NewString(), Token: token}
		s.playersByToken[token] = p
		s.playersByID[p.ID] = p
		tokens = append(tokens, token)
		s.deliverLocked(s.playerStateLocked(p))
	}
	log.Info().Int("count", n).Msg("minted player tokens")
	return tokens
}

// Join resolves a role and token to an identity. A player token always
// resolves to the minted player, never a duplicate. Audience tokens are
// client-generated; the first join with a token creates the member and
// assigns a display name.
func (s *Session) Join(role Role, token string) (Identity, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	switch role {
	case RoleHost:
		if token != s.settings.HostToken {
			return Identity{}, ErrUnknownToken
		}
		return Identity{Role: RoleHost}, nil
	case RoleBeamer:
		if token != s.settings.BeamerToken {
			return Identity{}, ErrUnknownToken
		}
		return Identity{Role: RoleBeamer}, nil
	case RolePlayer:
		p := s.playersByToken[token]
		if p == nil {
			return Identity{}, ErrUnknownToken
		}
		p.Connected++
		s.deliverLocked(s.playerStateLocked(p))
		return Identity{Role: RolePlayer, PlayerID: p.ID, PlayerToken: token}, nil
	case RoleAudience:
		if token == "" {
			return Identity{}, ErrUnknownToken
		}
		m := s.audience[token]
		if m == nil {
			m = &AudienceMember{
				Token:    token,
				Name:     randomDisplayName(s.audienceNames),
				JoinedAt: time.Now().UTC(),
			}
			s.audience[token] = m
		}
		s.audienceOnline++
		return Identity{Role: RoleAudience, VoterToken: token}, nil
	}
	return Identity{}, ErrUnknownToken
}

// Disconnected is called by the transport when a joined connection goes
// away. It only touches live-connection bookkeeping; players and audience
// members survive until removed or never.
func (s *Session) Disconnected(id Identity) {
	s.mu.Lock()
	defer s.mu.Unlock()
	switch id.Role {
	case RolePlayer:
		if p := s.playersByID[id.PlayerID]; p != nil && p.Connected > 0 {
			p.Connected--
			s.deliverLocked(s.playerStateLocked(p))
		}
	case RoleAudience:
		if s.audienceOnline > 0 {
			s.audienceOnline--
		}
	}
}

// RegisterPlayer sets the display name for a minted player. Registering
// again renames.
func (s *Session) RegisterPlayer(playerID, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	p := s.playersByID[playerID]
	if p == nil {
		return ErrUnknownPlayer
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return ErrNameMissing
	}
	if runes := []rune(name); len(runes) > 32 {
		name = string(runes[:32])
	}
	p.Name = name
	s.deliverLocked(s.playerStateLocked(p))
	log.Info().Str("player_id", p.ID).Str("name", name).Msg("player registered")
	return nil
}

// RemovePlayer deletes a player. Their active submission is retracted,
// votes referencing it are cleared for the affected category, and totals
// are re-derived if a scored round changed.
func (s *Session) RemovePlayer(playerID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	p := s.playersByID[playerID]
	if p == nil {
		return ErrUnknownPlayer
	}
	delete(s.playersByID, p.ID)
	delete(s.playersByToken, p.Token)
	s.deliverLocked(PlayerStateEvent{PlayerID: p.ID, Name: p.Name, Removed: true})

	if r := s.currentLocked(); r != nil {
		if subID, ok := r.byAuthor[p.ID]; ok {
			s.retractLocked(r, subID)
		}
	}
	if s.anyScoredLocked() {
		s.deliverLocked(s.scoresEventLocked())
	}
	log.Info().Str("player_id", p.ID).Str("name", p.Name).Msg("player removed")
	return nil
}

// StartRound opens the next round. Legal only in LOBBY; the new round then
// satisfies the LOBBY -> PROMPT_SELECTION guard.
func (s *Session) StartRound() (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.phase != PhaseLobby {
		return 0, ErrInvalidPhase
	}
	for _, p := range s.playersByID {
		p.MustResubmit = false
	}
	r := newRound(len(s.rounds) + 1)
	s.rounds = append(s.rounds, r)
	s.deliverLocked(RoundStartedEvent{RoundNo: r.No})
	log.Info().Int("round", r.No).Msg("round started")
	return r.No, nil
}

// SelectPrompt attaches the prompt to the current round. The returned round
// number lets the caller tie a background AI generation to this round.
func (s *Session) SelectPrompt(text, imageURL string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.phase != PhasePromptSelection {
		return 0, ErrInvalidPhase
	}
	r := s.currentLocked()
	if r == nil {
		return 0, ErrNoCurrentRound
	}
	text = strings.TrimSpace(text)
	if text == "" && imageURL == "" {
		return 0, ErrTooShort
	}
	r.Prompt = &Prompt{Text: text, ImageURL: imageURL}
	s.deliverLocked(PromptEvent{RoundNo: r.No, Prompt: *r.Prompt})
	log.Info().Int("round", r.No).Msg("prompt selected")
	return r.No, nil
}

// Transition moves the session to target if the edge exists and its guard
// holds. deadlineSeconds > 0 arms an advisory deadline when entering WRITING
// or VOTING; the engine never auto-advances on expiry. A rejected request
// leaves all state untouched.
func (s *Session) Transition(target Phase, deadlineSeconds int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !target.valid() || !s.phase.canTransitionTo(target) {
		return ErrInvalidTransition
	}
	r := s.currentLocked()
	switch target {
	case PhasePromptSelection:
		if r == nil || r.scored {
			return ErrInvalidTransition
		}
	case PhaseWriting:
		if r == nil || r.Prompt == nil {
			return ErrInvalidTransition
		}
	case PhaseResults:
		if r == nil || r.aiSubmissionIDLocked() == "" {
			return ErrInvalidTransition
		}
	}

	from := s.phase
	s.phase = target
	s.deadline = nil
	if deadlineSeconds > 0 && (target == PhaseWriting || target == PhaseVoting) {
		t := time.Now().Add(time.Duration(deadlineSeconds) * time.Second)
		s.deadline = &t
	}

	switch target {
	case PhaseReveal:
		r.freezeOrderLocked()
	case PhaseResults:
		r.scored = true
	}

	s.deliverLocked(s.phaseEventLocked())
	if target == PhaseVoting {
		s.deliverLocked(s.submissionsEventLocked())
		s.deliverLocked(s.voteCountsEventLocked())
	}
	if target == PhaseResults {
		s.deliverLocked(s.scoresEventLocked())
	}
	log.Info().Str("from", string(from)).Str("to", string(target)).Msg("phase transition")
	return nil
}

// SetDeadline arms or extends the advisory deadline of the current phase.
// seconds <= 0 clears it. Does not alter phase.
func (s *Session) SetDeadline(seconds int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.phase != PhaseWriting && s.phase != PhaseVoting {
		return ErrInvalidPhase
	}
	if seconds <= 0 {
		s.deadline = nil
	} else {
		t := time.Now().Add(time.Duration(seconds) * time.Second)
		s.deadline = &t
	}
	s.deliverLocked(DeadlineEvent{Phase: s.phase, Deadline: s.deadline})
	return nil
}

// RevealNext uncovers the next answer on the beamer.
func (s *Session) RevealNext() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.phase != PhaseReveal {
		return ErrInvalidPhase
	}
	r := s.currentLocked()
	if r == nil {
		return ErrNoCurrentRound
	}
	if r.revealIx >= len(r.order) {
		return ErrNothingToReveal
	}
	sub := r.subs[r.order[r.revealIx]]
	r.revealIx++
	s.deliverLocked(RevealEvent{
		RoundNo: r.No,
		Index:   r.revealIx,
		Total:   len(r.order),
		Answer:  Answer{SubmissionID: sub.ID, Text: sub.Text},
		Author:  s.authorNameLocked(sub),
	})
	return nil
}

// SetPanic freezes or unfreezes audience voting. Clearing it neither
// replays nor discards previously counted votes.
func (s *Session) SetPanic(on bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.panicMode == on {
		return
	}
	s.panicMode = on
	s.deliverLocked(s.phaseEventLocked())
	log.Warn().Bool("on", on).Msg("panic mode toggled")
}

// Reset returns the session to LOBBY for a fresh game. Rounds, votes and
// totals are dropped; players and audience members survive.
func (s *Session) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.phase = PhaseLobby
	s.deadline = nil
	s.panicMode = false
	s.rounds = nil
	for _, p := range s.playersByID {
		p.MustResubmit = false
	}
	s.deliverLocked(s.phaseEventLocked())
	s.deliverLocked(s.submissionsEventLocked())
	s.deliverLocked(s.scoresEventLocked())
	log.Warn().Msg("session reset")
}

func (s *Session) playerStateLocked(p *Player) PlayerStateEvent {
	submitted := false
	if r := s.currentLocked(); r != nil {
		_, submitted = r.byAuthor[p.ID]
	}
	return PlayerStateEvent{
		PlayerID:     p.ID,
		Token:        p.Token,
		Name:         p.Name,
		Connected:    p.Connected > 0,
		Submitted:    submitted,
		MustResubmit: p.MustResubmit,
	}
}

func (s *Session) phaseEventLocked() PhaseEvent {
	return PhaseEvent{
		Phase:    s.phase,
		Scene:    SceneFor(s.phase),
		RoundNo:  s.roundNoLocked(),
		Deadline: s.deadline,
		Panic:    s.panicMode,
	}
}

func (s *Session) playerStatusLocked() []PlayerStatus {
	r := s.currentLocked()
	out := make([]PlayerStatus, 0, len(s.playersByID))
	for _, p := range s.playersByID {
		submitted := false
		if r != nil {
			_, submitted = r.byAuthor[p.ID]
		}
		out = append(out, PlayerStatus{
			ID:           p.ID,
			Name:         p.Name,
			Connected:    p.Connected > 0,
			Submitted:    submitted,
			MustResubmit: p.MustResubmit,
		})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Name != out[j].Name {
			return out[i].Name < out[j].Name
		}
		return out[i].ID < out[j].ID
	})
	return out
}

func (s *Session) submissionsEventLocked() SubmissionsEvent {
	ev := SubmissionsEvent{
		RoundNo: s.roundNoLocked(),
		Players: s.playerStatusLocked(),
	}
	r := s.currentLocked()
	if r == nil {
		return ev
	}
	ev.Count = len(r.subs)
	ev.Authored = s.authoredAnswersLocked(r)
	if s.phase.answersPublic() {
		ev.Answers = r.answersLocked(len(r.order))
	}
	return ev
}

func (s *Session) authoredAnswersLocked(r *Round) []AuthoredAnswer {
	subs := r.activeInOrderLocked()
	out := make([]AuthoredAnswer, 0, len(subs))
	for _, sub := range subs {
		out = append(out, AuthoredAnswer{
			SubmissionID: sub.ID,
			AuthorID:     sub.AuthorID,
			AuthorName:   s.authorNameLocked(sub),
			Text:         sub.Text,
			IsAI:         sub.IsAI,
		})
	}
	return out
}

func (s *Session) authorNameLocked(sub *Submission) string {
	if sub.AuthorID == aiAuthorID {
		return "AI"
	}
	if p := s.playersByID[sub.AuthorID]; p != nil {
		return p.Name
	}
	return ""
}

func (s *Session) voteCountsEventLocked() VoteCountsEvent {
	ev := VoteCountsEvent{
		RoundNo:      s.roundNoLocked(),
		VotersOnline: s.audienceOnline,
	}
	r := s.currentLocked()
	if r == nil {
		return ev
	}
	for _, v := range r.votes {
		if v.AIChoice != "" || v.FunnyChoice != "" {
			ev.VotesCast++
		}
	}
	for _, sub := range r.activeInOrderLocked() {
		c := r.tally[sub.ID]
		if c == nil {
			c = &categoryCounts{}
		}
		ev.Counts = append(ev.Counts, SubmissionCounts{SubmissionID: sub.ID, AI: c.AI, Funny: c.Funny})
	}
	return ev
}

func (s *Session) visibleAnswersLocked(r *Round) []Answer {
	if r == nil {
		return nil
	}
	if s.phase.answersPublic() {
		return r.answersLocked(len(r.order))
	}
	if s.phase == PhaseReveal {
		return r.answersLocked(r.revealIx)
	}
	return nil
}

// Welcome is the full recovery state a client needs to (re)sync after a
// connect, scoped to its role. It marshals as the wire payload.
type Welcome struct {
	Role     Role       `json:"role"`
	Phase    Phase      `json:"phase"`
	Scene    Scene      `json:"scene"`
	RoundNo  int        `json:"round_no"`
	Prompt   *Prompt    `json:"prompt,omitempty"`
	Deadline *time.Time `json:"deadline,omitempty"`
	Panic    bool       `json:"panic"`

	PlayerID     string `json:"player_id,omitempty"`
	Name         string `json:"name,omitempty"`
	Submitted    bool   `json:"submitted,omitempty"`
	OwnAnswer    string `json:"own_answer,omitempty"`
	MustResubmit bool   `json:"must_resubmit,omitempty"`

	VoterName   string `json:"voter_name,omitempty"`
	AIChoice    string `json:"ai_choice,omitempty"`
	FunnyChoice string `json:"funny_choice,omitempty"`
	MessageID   string `json:"message_id,omitempty"`

	Players      []PlayerStatus     `json:"players,omitempty"`
	Answers      []Answer           `json:"answers,omitempty"`
	Authored     []AuthoredAnswer   `json:"authored,omitempty"`
	Counts       []SubmissionCounts `json:"counts,omitempty"`
	RevealIndex  int                `json:"reveal_index,omitempty"`
	RevealTotal  int                `json:"reveal_total,omitempty"`
	PlayerScores []PlayerScore      `json:"player_scores,omitempty"`
	AudienceTop  []AudienceScore    `json:"audience_top,omitempty"`
	VotersOnline int                `json:"voters_online,omitempty"`
}

// WelcomeFor builds the recovery state for one identity.
func (s *Session) WelcomeFor(id Identity) Welcome {
	s.mu.Lock()
	defer s.mu.Unlock()
	w := Welcome{
		Role:         id.Role,
		Phase:        s.phase,
		Scene:        SceneFor(s.phase),
		RoundNo:      s.roundNoLocked(),
		Deadline:     s.deadline,
		Panic:        s.panicMode,
		VotersOnline: s.audienceOnline,
	}
	r := s.currentLocked()
	if r != nil {
		w.Prompt = r.Prompt
		w.RevealIndex = r.revealIx
		w.RevealTotal = len(r.order)
	}

	scores := s.scoresEventLocked()
	w.PlayerScores = scores.Players
	w.AudienceTop = scores.Audience

	switch id.Role {
	case RoleHost:
		w.Players = s.playerStatusLocked()
		if r != nil {
			w.Authored = s.authoredAnswersLocked(r)
			w.Counts = s.voteCountsEventLocked().Counts
		}
	case RoleBeamer:
		w.Players = s.playerStatusLocked()
		w.Answers = s.visibleAnswersLocked(r)
		if r != nil && s.phase.answersPublic() {
			w.Counts = s.voteCountsEventLocked().Counts
		}
	case RolePlayer:
		w.Players = s.playerStatusLocked()
		w.Answers = s.visibleAnswersLocked(r)
		if p := s.playersByID[id.PlayerID]; p != nil {
			w.PlayerID = p.ID
			w.Name = p.Name
			w.MustResubmit = p.MustResubmit
			if r != nil {
				if subID, ok := r.byAuthor[p.ID]; ok {
					w.Submitted = true
					w.OwnAnswer = r.subs[subID].Text
				}
			}
		}
	case RoleAudience:
		w.Answers = s.visibleAnswersLocked(r)
		if r != nil && s.phase.answersPublic() {
			w.Counts = s.voteCountsEventLocked().Counts
		}
		if m := s.audience[id.VoterToken]; m != nil {
			w.VoterName = m.Name
		}
		if r != nil {
			if v := r.votes[id.VoterToken]; v != nil {
				w.AIChoice = v.AIChoice
				w.FunnyChoice = v.FunnyChoice
				w.MessageID = v.MessageID
			}
		}
	}
	return w
}

func (s *Session) anyScoredLocked() bool {
	for _, r := range s.rounds {
		if r.scored {
			return true
		}
	}
	return false
}
