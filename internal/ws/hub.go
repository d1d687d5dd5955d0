package ws

import (
	"encoding/json"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/kiliankoe/gptdash-sub001/internal/game"
)

// Hub tracks live connections and fans engine events out to them. Deliver
// runs while the session mutex is held, so enqueueing must never block:
// each connection has a bounded queue, and a connection whose queue is
// full is dropped instead of stalling the game for everyone else.
//
// All sends into a client's queue happen under the hub mutex together with
// the membership check, so a queue is never written after it was closed.
type Hub struct {
	mu      sync.Mutex
	clients map[*Client]bool
}

func NewHub() *Hub {
	return &Hub{clients: make(map[*Client]bool)}
}

func (h *Hub) register(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.clients[c] = true
}

// bind fixes the identity a connection receives broadcasts as. A
// connection joins at most once.
func (h *Hub) bind(c *Client, id game.Identity) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if c.id.Role != "" {
		return false
	}
	c.id = id
	return true
}

func (h *Hub) identityOf(c *Client) game.Identity {
	h.mu.Lock()
	defer h.mu.Unlock()
	return c.id
}

// forget drops the client on disconnect and reports the identity it was
// bound to, so the caller can release it in the session. Safe to call for
// clients already dropped by a full queue.
func (h *Hub) forget(c *Client) (game.Identity, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	id := c.id
	if h.clients[c] {
		delete(h.clients, c)
		close(c.send)
	}
	return id, id.Role != ""
}

// send marshals a message for a single client, typically a command reply.
// The same backpressure rule as broadcasts applies.
func (h *Hub) send(c *Client, msg any) {
	data, err := json.Marshal(msg)
	if err != nil {
		log.Error().Err(err).Msg("marshal outbound message")
		return
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	h.trySendLocked(c, data)
}

func (h *Hub) trySendLocked(c *Client, data []byte) {
	if !h.clients[c] {
		return
	}
	select {
	case c.send <- data:
	default:
		delete(h.clients, c)
		close(c.send)
		log.Warn().Str("role", string(c.id.Role)).Msg("slow subscriber dropped")
	}
}

// Deliver implements game.Broadcaster. The event is marshaled once per
// audience, then fanned out to every bound connection in mutation order.
func (h *Hub) Deliver(ev game.Event) {
	frames := encodeEvent(ev)
	if frames == nil {
		return
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		data := frames.frameFor(c.id)
		if data == nil {
			continue
		}
		h.trySendLocked(c, data)
	}
}

// roleFrames holds one event marshaled per audience. A nil frame means the
// role does not receive the event. targetPlayer, when set, narrows the
// player frame to a single player's connections.
type roleFrames struct {
	host         []byte
	beamer       []byte
	player       []byte
	audience     []byte
	targetPlayer string
}

func (f *roleFrames) frameFor(id game.Identity) []byte {
	switch id.Role {
	case game.RoleHost:
		return f.host
	case game.RoleBeamer:
		return f.beamer
	case game.RolePlayer:
		if f.targetPlayer != "" && id.PlayerID != f.targetPlayer {
			return nil
		}
		return f.player
	case game.RoleAudience:
		return f.audience
	}
	return nil
}

func encodeEvent(ev game.Event) *roleFrames {
	switch e := ev.(type) {
	case game.PhaseEvent:
		data := marshal(phaseMsg{T: kindPhase, Phase: e.Phase, Scene: e.Scene, RoundNo: e.RoundNo, Deadline: e.Deadline, Panic: e.Panic})
		return &roleFrames{host: data, beamer: data, player: data, audience: data}

	case game.RoundStartedEvent:
		data := marshal(roundStartedMsg{T: kindRoundStarted, RoundNo: e.RoundNo})
		return &roleFrames{host: data, beamer: data, player: data, audience: data}

	case game.PromptEvent:
		data := marshal(promptSelectedMsg{T: kindPromptSelected, RoundNo: e.RoundNo, Prompt: e.Prompt})
		return &roleFrames{host: data, beamer: data, player: data, audience: data}

	case game.SubmissionsEvent:
		// Authorship stays with the host; everyone else gets at most the
		// anonymized list.
		host := marshal(submissionsMsg{T: kindSubmissions, RoundNo: e.RoundNo, Count: e.Count, Players: e.Players, Authored: e.Authored})
		board := marshal(submissionsMsg{T: kindSubmissions, RoundNo: e.RoundNo, Count: e.Count, Players: e.Players, Answers: e.Answers})
		crowd := marshal(submissionsMsg{T: kindSubmissions, RoundNo: e.RoundNo, Count: e.Count, Answers: e.Answers})
		return &roleFrames{host: host, beamer: board, player: board, audience: crowd}

	case game.RevealEvent:
		host := marshal(revealMsg{T: kindRevealUpdate, RoundNo: e.RoundNo, Index: e.Index, Total: e.Total, Answer: e.Answer, Author: e.Author})
		rest := marshal(revealMsg{T: kindRevealUpdate, RoundNo: e.RoundNo, Index: e.Index, Total: e.Total, Answer: e.Answer})
		return &roleFrames{host: host, beamer: rest, player: rest, audience: rest}

	case game.VoteCountsEvent:
		// Players never see the running tallies, they are not voting.
		data := marshal(voteCountsMsg{T: kindBeamerVoteCounts, RoundNo: e.RoundNo, Counts: e.Counts, VotesCast: e.VotesCast, VotersOnline: e.VotersOnline})
		return &roleFrames{host: data, beamer: data, audience: data}

	case game.ScoresEvent:
		data := marshal(scoresMsg{T: kindScores, Players: e.Players, Audience: e.Audience, AudienceSize: e.AudienceSize})
		return &roleFrames{host: data, beamer: data, player: data, audience: data}

	case game.DeadlineEvent:
		data := marshal(deadlineMsg{T: kindDeadlineUpdate, Phase: e.Phase, Deadline: e.Deadline})
		return &roleFrames{host: data, beamer: data, player: data, audience: data}

	case game.PlayerStateEvent:
		// Only the host may see tokens.
		host := marshal(playerStateMsg{T: kindPlayerState, PlayerID: e.PlayerID, Token: e.Token, Name: e.Name, Connected: e.Connected, Submitted: e.Submitted, MustResubmit: e.MustResubmit, Removed: e.Removed})
		public := marshal(playerStateMsg{T: kindPlayerState, PlayerID: e.PlayerID, Name: e.Name, Connected: e.Connected, Submitted: e.Submitted, MustResubmit: e.MustResubmit, Removed: e.Removed})
		return &roleFrames{host: host, beamer: public, player: public, targetPlayer: e.PlayerID}
	}
	return nil
}

func marshal(msg any) []byte {
	data, err := json.Marshal(msg)
	if err != nil {
		log.Error().Err(err).Msg("marshal broadcast frame")
		return nil
	}
	return data
}
