package ws

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/kiliankoe/gptdash-sub001/internal/ai"
	"github.com/kiliankoe/gptdash-sub001/internal/correct"
	"github.com/kiliankoe/gptdash-sub001/internal/game"
)

// Server owns the websocket endpoint and the host REST routes for one
// running session.
type Server struct {
	session *game.Session
	hub     *Hub

	provider ai.Provider
	checker  correct.Checker
}

func NewServer(session *game.Session, hub *Hub) *Server {
	return &Server{session: session, hub: hub}
}

func (s *Server) SetProvider(p ai.Provider)    { s.provider = p }
func (s *Server) SetChecker(c correct.Checker) { s.checker = c }

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(*http.Request) bool { return true },
}

// Mount attaches the websocket endpoint and the host API to the router.
func (s *Server) Mount(r *gin.Engine) {
	r.GET("/ws", s.handleWS)
	api := r.Group("/api", s.hostAuth)
	api.POST("/players/mint", s.handleMint)
	api.GET("/session/snapshot", s.handleSnapshot)
}

func (s *Server) handleWS(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Debug().Err(err).Msg("websocket upgrade failed")
		return
	}
	client := newClient(conn)
	s.hub.register(client)
	log.Debug().Str("remote", conn.RemoteAddr().String()).Msg("websocket connected")
	go client.writePump()
	client.readPump(s)
}

func (s *Server) dispatch(c *Client, msg Inbound) {
	switch msg.T {
	case "join":
		s.handleJoin(c, msg)
	case "register_player":
		s.handleRegisterPlayer(c, msg)
	case "mint_tokens":
		s.handleMintTokens(c, msg)
	case "start_round":
		if !s.requireRole(c, game.RoleHost) {
			return
		}
		if _, err := s.session.StartRound(); err != nil {
			s.sendError(c, err)
		}
	case "select_prompt":
		s.handleSelectPrompt(c, msg)
	case "submit_answer":
		s.handleSubmitAnswer(c, msg)
	case "request_typo_check":
		s.handleTypoCheck(c, msg)
	case "vote":
		s.handleVote(c, msg)
	case "transition":
		if !s.requireRole(c, game.RoleHost) {
			return
		}
		if err := s.session.Transition(game.Phase(msg.Target), msg.Seconds); err != nil {
			s.sendError(c, err)
		}
	case "reveal_next":
		if !s.requireRole(c, game.RoleHost) {
			return
		}
		if err := s.session.RevealNext(); err != nil {
			s.sendError(c, err)
		}
	case "mark_ai":
		if !s.requireRole(c, game.RoleHost) {
			return
		}
		if err := s.session.MarkAI(msg.SubmissionID); err != nil {
			s.sendError(c, err)
		}
	case "mark_duplicate":
		if !s.requireRole(c, game.RoleHost) {
			return
		}
		if err := s.session.MarkDuplicate(msg.SubmissionID); err != nil {
			s.sendError(c, err)
		}
	case "remove_player":
		if !s.requireRole(c, game.RoleHost) {
			return
		}
		if err := s.session.RemovePlayer(msg.PlayerID); err != nil {
			s.sendError(c, err)
		}
	case "set_deadline":
		if !s.requireRole(c, game.RoleHost) {
			return
		}
		if err := s.session.SetDeadline(msg.Seconds); err != nil {
			s.sendError(c, err)
		}
	case "panic":
		if !s.requireRole(c, game.RoleHost) {
			return
		}
		if msg.On == nil {
			s.hub.send(c, errorMsg{T: kindError, Code: "bad_message", Message: "panic needs on: true or false"})
			return
		}
		s.session.SetPanic(*msg.On)
	case "reset":
		if !s.requireRole(c, game.RoleHost) {
			return
		}
		s.session.Reset()
	default:
		s.hub.send(c, errorMsg{T: kindError, Code: "bad_message", Message: "unknown message kind"})
	}
}

// handleJoin authenticates the connection and binds its identity. The
// welcome is built after binding, so every later broadcast either is
// already reflected in the welcome or arrives as a delta behind it.
func (s *Server) handleJoin(c *Client, msg Inbound) {
	id, err := s.session.Join(game.Role(msg.Role), msg.Token)
	if err != nil {
		s.sendError(c, err)
		return
	}
	if !s.hub.bind(c, id) {
		s.session.Disconnected(id)
		s.hub.send(c, errorMsg{T: kindError, Code: "bad_message", Message: "connection already joined"})
		return
	}
	log.Info().Str("role", msg.Role).Msg("client joined")
	s.hub.send(c, welcomeMsg{T: kindWelcome, Welcome: s.session.WelcomeFor(id)})
}

// handleRegisterPlayer names a player. Players name themselves; the host
// may name anyone by id.
func (s *Server) handleRegisterPlayer(c *Client, msg Inbound) {
	id := s.hub.identityOf(c)
	playerID := ""
	switch id.Role {
	case game.RolePlayer:
		playerID = id.PlayerID
	case game.RoleHost:
		playerID = msg.PlayerID
	default:
		s.hub.send(c, errorMsg{T: kindError, Code: "unauthorized", Message: "not allowed for this role"})
		return
	}
	if err := s.session.RegisterPlayer(playerID, msg.Name); err != nil {
		s.sendError(c, err)
	}
}

func (s *Server) handleMintTokens(c *Client, msg Inbound) {
	if !s.requireRole(c, game.RoleHost) {
		return
	}
	if msg.Count < 1 || msg.Count > 100 {
		s.hub.send(c, errorMsg{T: kindError, Code: "bad_message", Message: "count must be between 1 and 100"})
		return
	}
	// Tokens reach the host through the player_state events the mint emits.
	s.session.MintPlayerTokens(msg.Count)
}

func (s *Server) handleSelectPrompt(c *Client, msg Inbound) {
	if !s.requireRole(c, game.RoleHost) {
		return
	}
	roundNo, err := s.session.SelectPrompt(msg.Prompt, msg.ImageURL)
	if err != nil {
		s.sendError(c, err)
		return
	}
	if s.provider != nil && msg.Prompt != "" {
		go s.generateAIAnswer(roundNo, msg.Prompt)
	}
}

// generateAIAnswer asks the provider for the machine answer and seeds it
// into the round, best-effort. A stale completion (the host already moved
// past the writing phase or on to another round) is discarded by the seed
// call itself.
func (s *Server) generateAIAnswer(roundNo int, prompt string) {
	text, err := s.provider.Generate(context.Background(), prompt)
	if err != nil {
		log.Warn().Err(err).Int("round", roundNo).Msg("ai answer failed")
		return
	}
	if text == "" {
		return
	}
	if _, err := s.session.SeedAISubmission(roundNo, text); err != nil {
		log.Debug().Err(err).Int("round", roundNo).Msg("ai answer discarded")
		return
	}
	log.Info().Int("round", roundNo).Msg("ai answer seeded")
}

func (s *Server) handleSubmitAnswer(c *Client, msg Inbound) {
	id := s.hub.identityOf(c)
	if id.Role != game.RolePlayer {
		s.hub.send(c, errorMsg{T: kindError, Code: "unauthorized", Message: "not allowed for this role"})
		return
	}
	subID, err := s.session.Submit(id.PlayerToken, msg.Text)
	if err != nil {
		s.hub.send(c, submissionRejectedMsg{T: kindSubmissionRejected, Code: errorCode(err), Message: err.Error()})
		return
	}
	text := strings.TrimSpace(msg.Text)
	s.hub.send(c, submissionConfirmedMsg{T: kindSubmissionConfirmed, SubmissionID: subID, Text: text})

	if s.checker != nil {
		go s.autoTypoCheck(c, id, text)
	}
}

// autoTypoCheck runs the spell check that follows every accepted answer.
// The result is dropped when the player has already replaced the answer.
func (s *Server) autoTypoCheck(c *Client, id game.Identity, text string) {
	res := correct.CheckOrKeep(context.Background(), s.checker, text)
	if !res.HasChanges {
		return
	}
	if s.session.WelcomeFor(id).OwnAnswer != text {
		return
	}
	s.hub.send(c, typoCheckResultMsg{T: kindTypoCheckResult, Text: text, Corrected: res.Corrected, HasChanges: true})
}

func (s *Server) handleTypoCheck(c *Client, msg Inbound) {
	text := strings.TrimSpace(msg.Text)
	if text == "" {
		s.hub.send(c, errorMsg{T: kindError, Code: "bad_message", Message: "text missing"})
		return
	}
	go func() {
		res := correct.CheckOrKeep(context.Background(), s.checker, text)
		s.hub.send(c, typoCheckResultMsg{T: kindTypoCheckResult, Text: text, Corrected: res.Corrected, HasChanges: res.HasChanges})
	}()
}

func (s *Server) handleVote(c *Client, msg Inbound) {
	id := s.hub.identityOf(c)
	if id.Role != game.RoleAudience {
		s.hub.send(c, errorMsg{T: kindError, Code: "unauthorized", Message: "not allowed for this role"})
		return
	}
	replayed, err := s.session.CastVote(id.VoterToken, msg.AIChoice, msg.FunnyChoice, msg.MessageID)
	if err != nil {
		s.sendError(c, err)
		return
	}
	s.hub.send(c, voteAckMsg{T: kindVoteAck, MessageID: msg.MessageID, Replayed: replayed})
}

func (s *Server) requireRole(c *Client, role game.Role) bool {
	if s.hub.identityOf(c).Role != role {
		s.hub.send(c, errorMsg{T: kindError, Code: "unauthorized", Message: "not allowed for this role"})
		return false
	}
	return true
}

func (s *Server) sendError(c *Client, err error) {
	s.hub.send(c, errorMsg{T: kindError, Code: errorCode(err), Message: err.Error()})
}

func errorCode(err error) string {
	switch err {
	case game.ErrInvalidTransition:
		return "invalid_transition"
	case game.ErrInvalidPhase, game.ErrNoCurrentRound, game.ErrNothingToReveal:
		return "invalid_phase"
	case game.ErrUnknownToken:
		return "unauthorized"
	case game.ErrUnknownPlayer:
		return "unknown_player"
	case game.ErrUnknownSubmission:
		return "unknown_submission"
	case game.ErrTooShort:
		return "too_short"
	case game.ErrDuplicateSubmission:
		return "duplicate_submission"
	case game.ErrPanicMode:
		return "panic_mode"
	case game.ErrNotRegistered:
		return "not_joined"
	}
	return "bad_message"
}

// hostAuth guards the REST endpoints with the host token as a bearer
// credential.
func (s *Server) hostAuth(c *gin.Context) {
	token := strings.TrimPrefix(c.GetHeader("Authorization"), "Bearer ")
	if token == "" || token != s.session.HostToken() {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}
	c.Next()
}

func (s *Server) handleMint(c *gin.Context) {
	var req struct {
		Count int `json:"count"`
	}
	if err := c.ShouldBindJSON(&req); err != nil || req.Count < 1 || req.Count > 100 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "count must be between 1 and 100"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"tokens": s.session.MintPlayerTokens(req.Count)})
}

func (s *Server) handleSnapshot(c *gin.Context) {
	c.JSON(http.StatusOK, s.session.Snapshot())
}
