package game

import (
	"testing"
)

func TestEveryPhaseHasAScene(t *testing.T) {
	seen := make(map[Scene]Phase)
	for _, p := range AllPhases {
		scene := SceneFor(p)
		if scene == "" {
			t.Fatalf("phase %s has no scene", p)
		}
		if prev, dup := seen[scene]; dup {
			t.Fatalf("scene %s mapped from both %s and %s", scene, prev, p)
		}
		seen[scene] = p
	}
}

func TestLobbyToPromptSelectionNeedsOpenRound(t *testing.T) {
	s, _ := newTestSession()
	if err := s.Transition(PhasePromptSelection, 0); err != ErrInvalidTransition {
		t.Fatalf("expected ErrInvalidTransition without a round, got %v", err)
	}
	if s.Phase() != PhaseLobby {
		t.Fatalf("rejected transition must not change phase, got %s", s.Phase())
	}

	if _, err := s.StartRound(); err != nil {
		t.Fatalf("should be able to start round: %v", err)
	}
	if err := s.Transition(PhasePromptSelection, 0); err != nil {
		t.Fatalf("transition should succeed once a round exists: %v", err)
	}
}

func TestPromptSelectionToWritingNeedsPrompt(t *testing.T) {
	s, _ := newTestSession()
	if _, err := s.StartRound(); err != nil {
		t.Fatalf("should be able to start round: %v", err)
	}
	if err := s.Transition(PhasePromptSelection, 0); err != nil {
		t.Fatalf("should be able to enter prompt selection: %v", err)
	}

	if err := s.Transition(PhaseWriting, 0); err != ErrInvalidTransition {
		t.Fatalf("expected ErrInvalidTransition without a prompt, got %v", err)
	}
	if s.Phase() != PhasePromptSelection {
		t.Fatalf("rejected transition must not change phase, got %s", s.Phase())
	}

	if _, err := s.SelectPrompt("Invent a useless law", ""); err != nil {
		t.Fatalf("should be able to select prompt: %v", err)
	}
	if err := s.Transition(PhaseWriting, 0); err != nil {
		t.Fatalf("transition should succeed once a prompt is set: %v", err)
	}
}

func TestUnknownEdgesRejected(t *testing.T) {
	s, _ := newTestSession()
	for _, target := range []Phase{PhaseWriting, PhaseReveal, PhaseVoting, PhaseResults, PhasePodium, PhaseIntermission, PhaseEnded} {
		if err := s.Transition(target, 0); err != ErrInvalidTransition {
			t.Fatalf("LOBBY -> %s should be rejected, got %v", target, err)
		}
	}
	if err := s.Transition(Phase("HALFTIME"), 0); err != ErrInvalidTransition {
		t.Fatalf("made-up phase should be rejected, got %v", err)
	}
	if s.Phase() != PhaseLobby {
		t.Fatalf("phase must be unchanged after rejections, got %s", s.Phase())
	}
}

func TestVotingToResultsNeedsAIAnswer(t *testing.T) {
	s, _ := newTestSession()
	tokens, _ := joinPlayers(t, s, "Alice", "Bob")
	toWriting(t, s)
	sub1, err := s.Submit(tokens[0], "a chocolate teapot")
	if err != nil {
		t.Fatalf("should be able to submit: %v", err)
	}
	if _, err := s.Submit(tokens[1], "a screen door submarine"); err != nil {
		t.Fatalf("should be able to submit: %v", err)
	}
	toVoting(t, s)

	// No submission is flagged as the AI answer yet.
	if err := s.Transition(PhaseResults, 0); err != ErrInvalidTransition {
		t.Fatalf("expected ErrInvalidTransition without an AI answer, got %v", err)
	}
	if s.Phase() != PhaseVoting {
		t.Fatalf("rejected transition must not change phase, got %s", s.Phase())
	}

	// Flagging one unblocks the same request.
	if err := s.MarkAI(sub1); err != nil {
		t.Fatalf("should be able to mark the AI answer: %v", err)
	}
	if err := s.Transition(PhaseResults, 0); err != nil {
		t.Fatalf("transition should succeed after mark_ai: %v", err)
	}
}

func TestScoredRoundBlocksPromptSelection(t *testing.T) {
	s, _ := newTestSession()
	tokens, _ := joinPlayers(t, s, "Alice", "Bob")
	toWriting(t, s)
	if _, err := s.Submit(tokens[0], "an inflatable dartboard"); err != nil {
		t.Fatalf("should be able to submit: %v", err)
	}
	if _, err := s.SeedAISubmission(1, "a waterproof teabag"); err != nil {
		t.Fatalf("should be able to seed AI answer: %v", err)
	}
	toVoting(t, s)
	if err := s.Transition(PhaseResults, 0); err != nil {
		t.Fatalf("should be able to enter results: %v", err)
	}
	if err := s.Transition(PhaseLobby, 0); err != nil {
		t.Fatalf("should be able to return to lobby: %v", err)
	}

	// The finished round cannot be reopened; a new one is needed first.
	if err := s.Transition(PhasePromptSelection, 0); err != ErrInvalidTransition {
		t.Fatalf("expected ErrInvalidTransition on a scored round, got %v", err)
	}
	if _, err := s.StartRound(); err != nil {
		t.Fatalf("should be able to start the next round: %v", err)
	}
	if err := s.Transition(PhasePromptSelection, 0); err != nil {
		t.Fatalf("transition should succeed with a fresh round: %v", err)
	}
	if s.RoundNo() != 2 {
		t.Fatalf("expected round 2, got %d", s.RoundNo())
	}
}

func TestWritingCanBreakToIntermission(t *testing.T) {
	s, _ := newTestSession()
	joinPlayers(t, s, "Alice")
	toWriting(t, s)
	if err := s.Transition(PhaseIntermission, 0); err != nil {
		t.Fatalf("should be able to abandon writing for a break: %v", err)
	}
	if err := s.Transition(PhaseLobby, 0); err != nil {
		t.Fatalf("should be able to return to lobby after break: %v", err)
	}
}

func TestEndedIsTerminal(t *testing.T) {
	s, _ := newTestSession()
	tokens, _ := joinPlayers(t, s, "Alice")
	toWriting(t, s)
	if _, err := s.Submit(tokens[0], "a glass hammer"); err != nil {
		t.Fatalf("should be able to submit: %v", err)
	}
	if _, err := s.SeedAISubmission(1, "a concrete parachute"); err != nil {
		t.Fatalf("should be able to seed AI answer: %v", err)
	}
	toVoting(t, s)
	if err := s.Transition(PhaseResults, 0); err != nil {
		t.Fatalf("should be able to enter results: %v", err)
	}
	if err := s.Transition(PhasePodium, 0); err != nil {
		t.Fatalf("should be able to enter podium: %v", err)
	}
	if err := s.Transition(PhaseEnded, 0); err != nil {
		t.Fatalf("should be able to end the game: %v", err)
	}

	for _, target := range AllPhases {
		if err := s.Transition(target, 0); err != ErrInvalidTransition {
			t.Fatalf("ENDED -> %s should be rejected, got %v", target, err)
		}
	}

	// Reset is the only way out.
	s.Reset()
	if s.Phase() != PhaseLobby {
		t.Fatalf("expected LOBBY after reset, got %s", s.Phase())
	}
}

func TestResetClearsGameKeepsPeople(t *testing.T) {
	s, _ := newTestSession()
	tokens, _ := joinPlayers(t, s, "Alice", "Bob")
	if _, err := s.Join(RoleAudience, "voter-1"); err != nil {
		t.Fatalf("audience should be able to join: %v", err)
	}
	toWriting(t, s)
	if _, err := s.Submit(tokens[0], "a solar eclipse lamp"); err != nil {
		t.Fatalf("should be able to submit: %v", err)
	}
	s.SetPanic(true)

	s.Reset()

	if s.Phase() != PhaseLobby {
		t.Fatalf("expected LOBBY after reset, got %s", s.Phase())
	}
	snap := s.Snapshot()
	if len(snap.Rounds) != 0 {
		t.Fatalf("rounds should be dropped on reset, got %d", len(snap.Rounds))
	}
	if len(snap.Players) != 2 || len(snap.Audience) != 1 {
		t.Fatalf("players and audience should survive reset, got %d/%d", len(snap.Players), len(snap.Audience))
	}

	// Panic mode is gone, a fresh game can start.
	w := s.WelcomeFor(Identity{Role: RoleHost})
	if w.Panic {
		t.Fatal("panic mode should be cleared by reset")
	}
	if _, err := s.StartRound(); err != nil {
		t.Fatalf("should be able to start a fresh round: %v", err)
	}
	if s.RoundNo() != 1 {
		t.Fatalf("round numbering should restart at 1, got %d", s.RoundNo())
	}
}

func TestDeadlineIsAdvisory(t *testing.T) {
	s, _ := newTestSession()
	joinPlayers(t, s, "Alice")
	if err := s.SetDeadline(30); err != ErrInvalidPhase {
		t.Fatalf("expected ErrInvalidPhase outside timed phases, got %v", err)
	}

	if _, err := s.StartRound(); err != nil {
		t.Fatalf("should be able to start round: %v", err)
	}
	if err := s.Transition(PhasePromptSelection, 0); err != nil {
		t.Fatalf("should be able to enter prompt selection: %v", err)
	}
	if _, err := s.SelectPrompt("Slogan for a haunted gym", ""); err != nil {
		t.Fatalf("should be able to select prompt: %v", err)
	}
	if err := s.Transition(PhaseWriting, 45); err != nil {
		t.Fatalf("should be able to enter writing with deadline: %v", err)
	}

	w := s.WelcomeFor(Identity{Role: RoleHost})
	if w.Deadline == nil {
		t.Fatal("deadline should be armed on WRITING entry")
	}

	// Extending and clearing never changes the phase.
	if err := s.SetDeadline(90); err != nil {
		t.Fatalf("should be able to extend deadline: %v", err)
	}
	if err := s.SetDeadline(0); err != nil {
		t.Fatalf("should be able to clear deadline: %v", err)
	}
	w = s.WelcomeFor(Identity{Role: RoleHost})
	if w.Deadline != nil {
		t.Fatal("deadline should be cleared")
	}
	if s.Phase() != PhaseWriting {
		t.Fatalf("deadline handling must not change phase, got %s", s.Phase())
	}

	// Leaving the phase drops any armed deadline.
	if err := s.SetDeadline(30); err != nil {
		t.Fatalf("should be able to re-arm deadline: %v", err)
	}
	if err := s.Transition(PhaseReveal, 0); err != nil {
		t.Fatalf("should be able to enter reveal: %v", err)
	}
	if w := s.WelcomeFor(Identity{Role: RoleHost}); w.Deadline != nil {
		t.Fatal("deadline should not survive a phase change")
	}
}
