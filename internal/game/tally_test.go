package game

import (
	"testing"
)

// votingSession builds a session in VOTING with two player answers and the
// seeded AI answer, plus one joined audience member.
func votingSession(t *testing.T) (s *Session, rec *recorder, aliceSub, bobSub, aiSub string) {
	t.Helper()
	s, rec = newTestSession()
	tokens, _ := joinPlayers(t, s, "Alice", "Bob")
	toWriting(t, s)
	var err error
	aliceSub, err = s.Submit(tokens[0], "a self emptying piggy bank")
	if err != nil {
		t.Fatalf("should be able to submit: %v", err)
	}
	bobSub, err = s.Submit(tokens[1], "a diet water subscription")
	if err != nil {
		t.Fatalf("should be able to submit: %v", err)
	}
	aiSub, err = s.SeedAISubmission(1, "a premium air sampler")
	if err != nil {
		t.Fatalf("should be able to seed AI answer: %v", err)
	}
	toVoting(t, s)
	if _, err := s.Join(RoleAudience, "voter-1"); err != nil {
		t.Fatalf("audience should be able to join: %v", err)
	}
	return s, rec, aliceSub, bobSub, aiSub
}

func TestVoteOnlyDuringVoting(t *testing.T) {
	s, _ := newTestSession()
	tokens, _ := joinPlayers(t, s, "Alice")
	toWriting(t, s)
	aliceSub, err := s.Submit(tokens[0], "a glass umbrella")
	if err != nil {
		t.Fatalf("should be able to submit: %v", err)
	}
	if _, err := s.Join(RoleAudience, "voter-1"); err != nil {
		t.Fatalf("audience should be able to join: %v", err)
	}

	if _, err := s.CastVote("voter-1", aliceSub, aliceSub, "m1"); err != ErrInvalidPhase {
		t.Fatalf("expected ErrInvalidPhase during WRITING, got %v", err)
	}
	if _, err := s.CastVote("never-joined", aliceSub, aliceSub, "m1"); err != ErrUnknownToken {
		t.Fatalf("expected ErrUnknownToken, got %v", err)
	}
}

func TestVoteReplayDoesNotDoubleCount(t *testing.T) {
	s, _, aliceSub, bobSub, _ := votingSession(t)

	replayed, err := s.CastVote("voter-1", aliceSub, bobSub, "m1")
	if err != nil {
		t.Fatalf("should be able to vote: %v", err)
	}
	if replayed {
		t.Fatal("first delivery should not read as a replay")
	}

	// The retried delivery of the same message changes nothing.
	replayed, err = s.CastVote("voter-1", aliceSub, bobSub, "m1")
	if err != nil {
		t.Fatalf("replay should be acknowledged: %v", err)
	}
	if !replayed {
		t.Fatal("second delivery should read as a replay")
	}

	if ai, _ := countsFor(t, s, aliceSub); ai != 1 {
		t.Fatalf("expected 1 ai vote after replay, got %d", ai)
	}
	if _, funny := countsFor(t, s, bobSub); funny != 1 {
		t.Fatalf("expected 1 funny vote after replay, got %d", funny)
	}
	snap := s.Snapshot()
	if snap.Rounds[0].VotesCast != 1 {
		t.Fatalf("expected 1 vote cast, got %d", snap.Rounds[0].VotesCast)
	}
}

func TestRevoteMovesBothCategories(t *testing.T) {
	s, _, aliceSub, bobSub, aiSub := votingSession(t)

	if _, err := s.CastVote("voter-1", aliceSub, bobSub, "m1"); err != nil {
		t.Fatalf("should be able to vote: %v", err)
	}
	// The voter changes their mind: same submission in both categories.
	if _, err := s.CastVote("voter-1", aliceSub, aliceSub, "m2"); err != nil {
		t.Fatalf("revote should succeed: %v", err)
	}

	ai, funny := countsFor(t, s, aliceSub)
	if ai != 1 || funny != 1 {
		t.Fatalf("expected alice 1/1, got %d/%d", ai, funny)
	}
	if _, funny := countsFor(t, s, bobSub); funny != 0 {
		t.Fatalf("old funny vote should be withdrawn, got %d", funny)
	}
	if ai, _ := countsFor(t, s, aiSub); ai != 0 {
		t.Fatalf("ai answer should hold no votes, got %d", ai)
	}

	// Still exactly one live vote.
	snap := s.Snapshot()
	if snap.Rounds[0].VotesCast != 1 {
		t.Fatalf("expected 1 vote cast after revote, got %d", snap.Rounds[0].VotesCast)
	}
}

func TestVoteNeedsBothValidChoices(t *testing.T) {
	s, _, aliceSub, _, _ := votingSession(t)

	if _, err := s.CastVote("voter-1", aliceSub, "", "m1"); err != ErrUnknownSubmission {
		t.Fatalf("expected ErrUnknownSubmission for empty funny choice, got %v", err)
	}
	if _, err := s.CastVote("voter-1", "no-such-submission", aliceSub, "m1"); err != ErrUnknownSubmission {
		t.Fatalf("expected ErrUnknownSubmission for bogus ai choice, got %v", err)
	}

	// Nothing was recorded by the rejected attempts.
	w := s.WelcomeFor(Identity{Role: RoleAudience, VoterToken: "voter-1"})
	if w.AIChoice != "" || w.FunnyChoice != "" {
		t.Fatal("rejected votes must not be stored")
	}
	snap := s.Snapshot()
	if snap.Rounds[0].VotesCast != 0 {
		t.Fatalf("expected 0 votes cast, got %d", snap.Rounds[0].VotesCast)
	}
}

func TestPanicModeFreezesVoting(t *testing.T) {
	s, _, aliceSub, bobSub, aiSub := votingSession(t)
	if _, err := s.Join(RoleAudience, "voter-2"); err != nil {
		t.Fatalf("audience should be able to join: %v", err)
	}

	if _, err := s.CastVote("voter-1", aiSub, aliceSub, "m1"); err != nil {
		t.Fatalf("should be able to vote: %v", err)
	}

	s.SetPanic(true)
	if _, err := s.CastVote("voter-2", aiSub, bobSub, "m1"); err != ErrPanicMode {
		t.Fatalf("expected ErrPanicMode, got %v", err)
	}

	// Already counted votes are untouched by the freeze and the thaw.
	if ai, _ := countsFor(t, s, aiSub); ai != 1 {
		t.Fatalf("expected the earlier vote to survive, got %d", ai)
	}
	s.SetPanic(false)
	if _, err := s.CastVote("voter-2", aiSub, bobSub, "m1"); err != nil {
		t.Fatalf("voting should resume after panic clears: %v", err)
	}
	if ai, _ := countsFor(t, s, aiSub); ai != 2 {
		t.Fatalf("expected 2 ai votes after resume, got %d", ai)
	}
}

func TestRetractionClearsOnlyMatchingCategory(t *testing.T) {
	s, _, aliceSub, bobSub, aiSub := votingSession(t)

	if _, err := s.CastVote("voter-1", aliceSub, bobSub, "m1"); err != nil {
		t.Fatalf("should be able to vote: %v", err)
	}
	if err := s.MarkDuplicate(bobSub); err != nil {
		t.Fatalf("should be able to retract: %v", err)
	}

	// The funny choice pointed at the retracted answer; the ai choice did
	// not and stays live.
	w := s.WelcomeFor(Identity{Role: RoleAudience, VoterToken: "voter-1"})
	if w.AIChoice != aliceSub {
		t.Fatalf("ai choice should survive, got %q", w.AIChoice)
	}
	if w.FunnyChoice != "" {
		t.Fatalf("funny choice should be cleared, got %q", w.FunnyChoice)
	}
	if ai, _ := countsFor(t, s, aliceSub); ai != 1 {
		t.Fatalf("surviving ai vote should still count, got %d", ai)
	}

	// The voter may vote again and lands on a full vote.
	if _, err := s.CastVote("voter-1", aliceSub, aiSub, "m2"); err != nil {
		t.Fatalf("fresh vote after retraction should succeed: %v", err)
	}
	if _, funny := countsFor(t, s, aiSub); funny != 1 {
		t.Fatalf("expected the new funny vote, got %d", funny)
	}
	if ai, _ := countsFor(t, s, aliceSub); ai != 1 {
		t.Fatalf("revote must not double the surviving category, got %d", ai)
	}
}

func TestVoteCountsEventTracksTally(t *testing.T) {
	s, rec, aliceSub, bobSub, _ := votingSession(t)

	start := len(rec.events)
	if _, err := s.CastVote("voter-1", aliceSub, bobSub, "m1"); err != nil {
		t.Fatalf("should be able to vote: %v", err)
	}

	var counts *VoteCountsEvent
	for _, ev := range rec.events[start:] {
		if vc, ok := ev.(VoteCountsEvent); ok {
			counts = &vc
		}
	}
	if counts == nil {
		t.Fatal("a vote should emit a vote counts event")
	}
	if counts.VotesCast != 1 {
		t.Fatalf("expected 1 vote cast, got %d", counts.VotesCast)
	}
	if len(counts.Counts) != 3 {
		t.Fatalf("expected counts for all 3 answers, got %d", len(counts.Counts))
	}
	for _, c := range counts.Counts {
		switch c.SubmissionID {
		case aliceSub:
			if c.AI != 1 || c.Funny != 0 {
				t.Fatalf("expected alice 1/0, got %d/%d", c.AI, c.Funny)
			}
		case bobSub:
			if c.AI != 0 || c.Funny != 1 {
				t.Fatalf("expected bob 0/1, got %d/%d", c.AI, c.Funny)
			}
		}
	}
}
