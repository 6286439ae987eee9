package orchestrator

import (
	"fmt"
	"testing"
)

func TestStartGeneratesID(t *testing.T) {
	s := NewConversationStore()

	id1 := s.Start("", "")
	id2 := s.Start("", "")
	if id1 == "" || id2 == "" {
		t.Fatal("generated ids must be non-empty")
	}
	if id1 == id2 {
		t.Fatalf("generated ids must differ, both were %q", id1)
	}
}

func TestStartIsIdempotent(t *testing.T) {
	s := NewConversationStore()

	s.Start("c1", "you are helpful")
	s.AppendUser("c1", "hi")
	s.Start("c1", "a different system prompt")

	turns := s.Recent("c1", 0)
	if len(turns) != 2 {
		t.Fatalf("restart must not reseed, got %d turns", len(turns))
	}
	if turns[0].Role != RoleSystem || turns[0].Content != "you are helpful" {
		t.Fatalf("original seed lost: %+v", turns[0])
	}
}

func TestAppendAutoCreates(t *testing.T) {
	s := NewConversationStore()

	s.AppendUser("never-started", "hello")

	turns := s.Recent("never-started", 0)
	if len(turns) != 1 || turns[0].Role != RoleUser {
		t.Fatalf("append to an unknown conversation must create it, got %+v", turns)
	}
}

func TestRecentReturnsTailInOrder(t *testing.T) {
	s := NewConversationStore()

	for i := 0; i < 12; i++ {
		s.AppendUser("c1", fmt.Sprintf("turn %d", i))
	}

	turns := s.Recent("c1", 5)
	if len(turns) != 5 {
		t.Fatalf("got %d turns, want 5", len(turns))
	}
	for i, turn := range turns {
		want := fmt.Sprintf("turn %d", 7+i)
		if turn.Content != want {
			t.Errorf("turn %d: got %q, want %q", i, turn.Content, want)
		}
	}
}

func TestTimestampsStrictlyIncrease(t *testing.T) {
	s := NewConversationStore()

	// Many appends inside a single clock tick still get distinct stamps.
	for i := 0; i < 50; i++ {
		s.AppendUser("c1", "x")
	}

	turns := s.Recent("c1", 100)
	for i := 1; i < len(turns); i++ {
		if turns[i].Timestamp <= turns[i-1].Timestamp {
			t.Fatalf("timestamp at %d (%d) not after %d", i, turns[i].Timestamp, turns[i-1].Timestamp)
		}
	}
}

func TestClearRemovesConversation(t *testing.T) {
	s := NewConversationStore()

	s.AppendUser("c1", "hello")
	s.AppendUser("c2", "other")
	s.Clear("c1")

	if n := len(s.Recent("c1", 0)); n != 0 {
		t.Fatalf("cleared conversation still has %d turns", n)
	}
	if n := len(s.Recent("c2", 0)); n != 1 {
		t.Fatalf("clearing one conversation touched another, got %d turns", n)
	}
}

func TestRecentReturnsCopy(t *testing.T) {
	s := NewConversationStore()
	s.AppendUser("c1", "original")

	got := s.Recent("c1", 0)
	got[0].Content = "mutated"

	if s.Recent("c1", 0)[0].Content != "original" {
		t.Fatal("Recent must return a copy, not the backing slice")
	}
}
