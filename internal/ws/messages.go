package ws

import (
	"time"

	"github.com/kiliankoe/gptdash-sub001/internal/game"
)

// Outbound message kinds. Every frame the server sends carries one of
// these in its `t` field.
const (
	kindWelcome             = "welcome"
	kindPhase               = "phase"
	kindRoundStarted        = "round_started"
	kindPromptSelected      = "prompt_selected"
	kindSubmissions         = "submissions"
	kindSubmissionConfirmed = "submission_confirmed"
	kindSubmissionRejected  = "submission_rejected"
	kindTypoCheckResult     = "typo_check_result"
	kindVoteAck             = "vote_ack"
	kindBeamerVoteCounts    = "beamer_vote_counts"
	kindRevealUpdate        = "reveal_update"
	kindScores              = "scores"
	kindDeadlineUpdate      = "deadline_update"
	kindPlayerState         = "player_state"
	kindError               = "error"
)

// Inbound is the envelope for every client command. T selects the kind,
// the remaining fields are read depending on it. Unknown kinds are
// answered with a bad_message error.
type Inbound struct {
	T     string `json:"t"`
	Role  string `json:"role,omitempty"`
	Token string `json:"token,omitempty"`

	Name         string `json:"name,omitempty"`
	Count        int    `json:"count,omitempty"`
	Prompt       string `json:"prompt,omitempty"`
	ImageURL     string `json:"image_url,omitempty"`
	Text         string `json:"text,omitempty"`
	Target       string `json:"target,omitempty"`
	Seconds      int    `json:"seconds,omitempty"`
	SubmissionID string `json:"submission_id,omitempty"`
	PlayerID     string `json:"player_id,omitempty"`
	AIChoice     string `json:"ai_choice,omitempty"`
	FunnyChoice  string `json:"funny_choice,omitempty"`
	MessageID    string `json:"message_id,omitempty"`
	On           *bool  `json:"on,omitempty"`
}

type welcomeMsg struct {
	T string `json:"t"`
	game.Welcome
}

type phaseMsg struct {
	T        string     `json:"t"`
	Phase    game.Phase `json:"phase"`
	Scene    game.Scene `json:"scene"`
	RoundNo  int        `json:"round_no"`
	Deadline *time.Time `json:"deadline,omitempty"`
	Panic    bool       `json:"panic"`
}

type roundStartedMsg struct {
	T       string `json:"t"`
	RoundNo int    `json:"round_no"`
}

type promptSelectedMsg struct {
	T       string      `json:"t"`
	RoundNo int         `json:"round_no"`
	Prompt  game.Prompt `json:"prompt"`
}

// submissionsMsg is scoped per role before marshaling: the host copy has
// Authored, the beamer and player copies carry Players plus the anonymized
// Answers once public, the audience copy only Answers.
type submissionsMsg struct {
	T        string                `json:"t"`
	RoundNo  int                   `json:"round_no"`
	Count    int                   `json:"count"`
	Players  []game.PlayerStatus   `json:"players,omitempty"`
	Answers  []game.Answer         `json:"answers,omitempty"`
	Authored []game.AuthoredAnswer `json:"authored,omitempty"`
}

type submissionConfirmedMsg struct {
	T            string `json:"t"`
	SubmissionID string `json:"submission_id"`
	Text         string `json:"text"`
}

type submissionRejectedMsg struct {
	T       string `json:"t"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

type typoCheckResultMsg struct {
	T          string `json:"t"`
	Text       string `json:"text"`
	Corrected  string `json:"corrected"`
	HasChanges bool   `json:"has_changes"`
}

type voteAckMsg struct {
	T         string `json:"t"`
	MessageID string `json:"message_id,omitempty"`
	Replayed  bool   `json:"replayed"`
}

type voteCountsMsg struct {
	T            string                  `json:"t"`
	RoundNo      int                     `json:"round_no"`
	Counts       []game.SubmissionCounts `json:"counts"`
	VotesCast    int                     `json:"votes_cast"`
	VotersOnline int                     `json:"voters_online"`
}

type revealMsg struct {
	T       string      `json:"t"`
	RoundNo int         `json:"round_no"`
	Index   int         `json:"index"`
	Total   int         `json:"total"`
	Answer  game.Answer `json:"answer"`
	Author  string      `json:"author,omitempty"`
}

type scoresMsg struct {
	T            string               `json:"t"`
	Players      []game.PlayerScore   `json:"players"`
	Audience     []game.AudienceScore `json:"audience,omitempty"`
	AudienceSize int                  `json:"audience_size"`
}

type deadlineMsg struct {
	T        string     `json:"t"`
	Phase    game.Phase `json:"phase"`
	Deadline *time.Time `json:"deadline,omitempty"`
}

type playerStateMsg struct {
	T            string `json:"t"`
	PlayerID     string `json:"player_id"`
	Token        string `json:"token,omitempty"`
	Name         string `json:"name,omitempty"`
	Connected    bool   `json:"connected"`
	Submitted    bool   `json:"submitted"`
	MustResubmit bool   `json:"must_resubmit,omitempty"`
	Removed      bool   `json:"removed,omitempty"`
}

type errorMsg struct {
	T       string `json:"t"`
	Code    string `json:"code"`
	Message string `json:"message"`
}
