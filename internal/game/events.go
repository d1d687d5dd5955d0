package game

import "time"

// Broadcaster receives one event per accepted mutation. Deliver is called
// while the session lock is held, so the order of Deliver calls is the order
// mutations happened on the server. Implementations must not call back into
// the session and must not block.
type Broadcaster interface {
	Deliver(Event)
}

// Event is the closed set of outbound deltas the engine produces. The ws
// layer maps each variant to role-scoped wire messages.
type Event interface {
	isEvent()
}

// Prompt is the question of a round, text and/or an image reference.
type Prompt struct {
	Text     string `json:"text"`
	ImageURL string `json:"image_url,omitempty"`
}

type PlayerStatus struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	Connected    bool   `json:"connected"`
	Submitted    bool   `json:"submitted"`
	MustResubmit bool   `json:"must_resubmit,omitempty"`
}

// Answer is a submission as non-host roles see it: no authorship.
type Answer struct {
	SubmissionID string `json:"submission_id"`
	Text         string `json:"text"`
}

// AuthoredAnswer is a submission as the host sees it.
type AuthoredAnswer struct {
	SubmissionID string `json:"submission_id"`
	AuthorID     string `json:"author_id"`
	AuthorName   string `json:"author_name"`
	Text         string `json:"text"`
	IsAI         bool   `json:"is_ai"`
}

type SubmissionCounts struct {
	SubmissionID string `json:"submission_id"`
	AI           int    `json:"ai"`
	Funny        int    `json:"funny"`
}

type PlayerScore struct {
	PlayerID string `json:"player_id"`
	Name     string `json:"name"`
	Points   int    `json:"points"`
}

type AudienceScore struct {
	Name   string `json:"name"`
	Points int    `json:"points"`
}

// PhaseEvent fires on every transition, on reset and on panic toggles.
type PhaseEvent struct {
	Phase    Phase
	Scene    Scene
	RoundNo  int
	Deadline *time.Time
	Panic    bool
}

type RoundStartedEvent struct {
	RoundNo int
}

type PromptEvent struct {
	RoundNo int
	Prompt  Prompt
}

// SubmissionsEvent fires whenever the active submission set of the current
// round changes. Answers is only populated once the list is public (VOTING
// and later); Authored always carries the full picture for the host.
type SubmissionsEvent struct {
	RoundNo  int
	Count    int
	Players  []PlayerStatus
	Answers  []Answer
	Authored []AuthoredAnswer
}

type RevealEvent struct {
	RoundNo int
	Index   int
	Total   int
	Answer  Answer
	Author  string // display name, host only
}

type VoteCountsEvent struct {
	RoundNo      int
	Counts       []SubmissionCounts
	VotesCast    int
	VotersOnline int
}

type ScoresEvent struct {
	Players      []PlayerScore
	Audience     []AudienceScore // top entries only, largest first
	AudienceSize int
}

type DeadlineEvent struct {
	Phase    Phase
	Deadline *time.Time
}

// PlayerStateEvent fires when a single player's registry state changes:
// token minted, name registered, connect/disconnect, forced resubmission,
// removal. Token is only ever shown to the host.
type PlayerStateEvent struct {
	PlayerID     string
	Token        string
	Name         string
	Connected    bool
	Submitted    bool
	MustResubmit bool
	Removed      bool
}

func (PhaseEvent) isEvent()        {}
func (RoundStartedEvent) isEvent() {}
func (PromptEvent) isEvent()       {}
func (SubmissionsEvent) isEvent()  {}
func (RevealEvent) isEvent()       {}
func (VoteCountsEvent) isEvent()   {}
func (ScoresEvent) isEvent()       {}
func (DeadlineEvent) isEvent()     {}
func (PlayerStateEvent) isEvent()  {}
