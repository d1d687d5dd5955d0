package ws

import (
	"encoding/json"
	"testing"

	"github.com/kiliankoe/gptdash-sub001/internal/game"
)

func decodeFrame(t *testing.T, data []byte) frame {
	t.Helper()
	var f frame
	if err := json.Unmarshal(data, &f); err != nil {
		t.Fatalf("should be able to decode frame: %v\npayload: %s", err, data)
	}
	return f
}

func TestSlowSubscriberDroppedWithoutStallingOthers(t *testing.T) {
	h := NewHub()
	slow := newClient(nil)
	fast := newClient(nil)
	h.register(slow)
	h.register(fast)
	h.bind(slow, game.Identity{Role: game.RoleBeamer})
	h.bind(fast, game.Identity{Role: game.RoleBeamer})

	// fill the slow queue to the brim
	for i := 0; i < outboundQueueSize; i++ {
		slow.send <- []byte("x")
	}

	h.Deliver(game.RoundStartedEvent{RoundNo: 1})

	select {
	case data := <-fast.send:
		if f := decodeFrame(t, data); f.T != "round_started" {
			t.Fatalf("kind = %q, want round_started", f.T)
		}
	default:
		t.Fatal("fast subscriber should have received the event")
	}

	h.mu.Lock()
	stillThere := h.clients[slow]
	h.mu.Unlock()
	if stillThere {
		t.Fatal("slow subscriber should have been dropped")
	}
	for i := 0; i < outboundQueueSize; i++ {
		<-slow.send
	}
	if _, open := <-slow.send; open {
		t.Fatal("dropped client's queue should be closed")
	}

	// further deliveries skip the dropped client instead of panicking
	h.Deliver(game.RoundStartedEvent{RoundNo: 2})
	if len(fast.send) != 1 {
		t.Fatalf("fast queue length = %d, want 1", len(fast.send))
	}
}

func TestBindRefusesSecondIdentity(t *testing.T) {
	h := NewHub()
	c := newClient(nil)
	h.register(c)
	if !h.bind(c, game.Identity{Role: game.RoleHost}) {
		t.Fatal("first bind should succeed")
	}
	if h.bind(c, game.Identity{Role: game.RoleBeamer}) {
		t.Fatal("second bind should be refused")
	}
	if got := h.identityOf(c).Role; got != game.RoleHost {
		t.Fatalf("role = %q, want host", got)
	}
}

func TestForgetReportsBoundIdentityOnce(t *testing.T) {
	h := NewHub()
	c := newClient(nil)
	h.register(c)
	h.bind(c, game.Identity{Role: game.RoleAudience, VoterToken: "seat-1"})

	id, joined := h.forget(c)
	if !joined || id.VoterToken != "seat-1" {
		t.Fatalf("forget = (%+v, %v), want the bound identity", id, joined)
	}

	// forgetting again must not close the queue twice
	if _, joined := h.forget(c); !joined {
		t.Fatal("identity should still be reported for a gone client")
	}
}

func TestUnjoinedConnectionsGetNoBroadcasts(t *testing.T) {
	h := NewHub()
	c := newClient(nil)
	h.register(c)

	h.Deliver(game.RoundStartedEvent{RoundNo: 1})
	if len(c.send) != 0 {
		t.Fatal("a connection that never joined should not receive broadcasts")
	}
}

func TestSubmissionsScopedPerRole(t *testing.T) {
	frames := encodeEvent(game.SubmissionsEvent{
		RoundNo: 1,
		Count:   2,
		Players: []game.PlayerStatus{{ID: "p1", Name: "Alice", Submitted: true}},
		Answers: []game.Answer{{SubmissionID: "s1", Text: "one"}, {SubmissionID: "s2", Text: "two"}},
		Authored: []game.AuthoredAnswer{
			{SubmissionID: "s1", AuthorID: "p1", AuthorName: "Alice", Text: "one"},
			{SubmissionID: "s2", AuthorID: "AI", AuthorName: "AI", Text: "two", IsAI: true},
		},
	})

	host := decodeFrame(t, frames.frameFor(game.Identity{Role: game.RoleHost}))
	if len(host.Authored) != 2 {
		t.Fatalf("host should see authorship, got %+v", host.Authored)
	}

	beamer := decodeFrame(t, frames.frameFor(game.Identity{Role: game.RoleBeamer}))
	if len(beamer.Authored) != 0 || len(beamer.Answers) != 2 {
		t.Fatalf("beamer frame leaked authorship: %+v", beamer)
	}

	crowd := decodeFrame(t, frames.frameFor(game.Identity{Role: game.RoleAudience}))
	if len(crowd.Authored) != 0 || len(crowd.Players) != 0 {
		t.Fatalf("audience frame carries too much: %+v", crowd)
	}
	if len(crowd.Answers) != 2 {
		t.Fatalf("audience should see the anonymized answers, got %+v", crowd.Answers)
	}
}

func TestVoteCountsSkipPlayers(t *testing.T) {
	frames := encodeEvent(game.VoteCountsEvent{RoundNo: 1, VotesCast: 3})
	if frames.frameFor(game.Identity{Role: game.RolePlayer, PlayerID: "p1"}) != nil {
		t.Fatal("players should not receive running tallies")
	}
	if frames.frameFor(game.Identity{Role: game.RoleBeamer}) == nil {
		t.Fatal("beamer should receive tallies")
	}
}

func TestPlayerStateTargetsOnePlayer(t *testing.T) {
	frames := encodeEvent(game.PlayerStateEvent{PlayerID: "p1", Token: "tok-1", Name: "Alice", Connected: true})

	own := frames.frameFor(game.Identity{Role: game.RolePlayer, PlayerID: "p1"})
	if own == nil {
		t.Fatal("the player concerned should receive the update")
	}
	if decodeFrame(t, own).Token != "" {
		t.Fatal("token must not reach player frames")
	}
	if frames.frameFor(game.Identity{Role: game.RolePlayer, PlayerID: "p2"}) != nil {
		t.Fatal("other players should not receive the update")
	}
	if frames.frameFor(game.Identity{Role: game.RoleAudience, VoterToken: "seat-1"}) != nil {
		t.Fatal("the audience should not receive player registry updates")
	}

	host := decodeFrame(t, frames.frameFor(game.Identity{Role: game.RoleHost}))
	if host.Token != "tok-1" {
		t.Fatalf("host token = %q, want tok-1", host.Token)
	}
}
