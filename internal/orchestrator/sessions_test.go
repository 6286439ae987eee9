package orchestrator

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/normanking/insightlens/internal/logging"
)

func TestGetOrCreateGlobalReturnsSameSession(t *testing.T) {
	model := &fakeModel{}
	m := NewSessionManager(model, logging.Nop())

	s1, err := m.GetOrCreateGlobal(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	s2, err := m.GetOrCreateGlobal(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if s1 != s2 {
		t.Fatal("global session must be a singleton")
	}
	if model.created != 1 {
		t.Fatalf("one creation expected, got %d", model.created)
	}
}

func TestConcurrentFirstCallersShareOneCreation(t *testing.T) {
	model := &fakeModel{}
	m := NewSessionManager(model, logging.Nop())

	const callers = 16
	sessions := make([]any, callers)
	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			s, err := m.GetOrCreateGlobal(context.Background())
			if err != nil {
				t.Error(err)
				return
			}
			sessions[i] = s
		}(i)
	}
	wg.Wait()

	model.mu.Lock()
	created := model.created
	model.mu.Unlock()
	if created != 1 {
		t.Fatalf("concurrent first callers must share one creation, got %d", created)
	}
	for i := 1; i < callers; i++ {
		if sessions[i] != sessions[0] {
			t.Fatal("callers received different sessions")
		}
	}
}

func TestFailedCreationIsNotCached(t *testing.T) {
	model := &fakeModel{failCreates: 1}
	m := NewSessionManager(model, logging.Nop())

	_, err := m.GetOrCreateGlobal(context.Background())
	if !errors.Is(err, ErrSessionCreation) {
		t.Fatalf("want ErrSessionCreation, got %v", err)
	}
	if m.SessionCount() != 0 {
		t.Fatal("a failed attempt must leave no session behind")
	}

	// The next call starts a fresh attempt and succeeds.
	if _, err := m.GetOrCreateGlobal(context.Background()); err != nil {
		t.Fatalf("retry after failure should succeed, got %v", err)
	}
	if m.SessionCount() != 1 {
		t.Fatalf("expected 1 session after retry, got %d", m.SessionCount())
	}
}

func TestUnavailableModelMapsToBackendUnavailable(t *testing.T) {
	model := &fakeModel{unavailable: true}
	m := NewSessionManager(model, logging.Nop())

	_, err := m.GetOrCreateGlobal(context.Background())
	if !errors.Is(err, ErrBackendUnavailable) {
		t.Fatalf("want ErrBackendUnavailable, got %v", err)
	}
}

func TestConversationSessionIsScoped(t *testing.T) {
	model := &fakeModel{}
	m := NewSessionManager(model, logging.Nop())

	global, _ := m.GetOrCreateGlobal(context.Background())
	scoped, err := m.GetOrCreateForConversation(context.Background(), "c1", "custom persona")
	if err != nil {
		t.Fatal(err)
	}
	if scoped == global {
		t.Fatal("conversation session must be distinct from the global one")
	}
	if m.SessionCount() != 2 {
		t.Fatalf("expected 2 sessions, got %d", m.SessionCount())
	}
}

func TestConversationCreationFailureFallsBackToGlobal(t *testing.T) {
	model := &fakeModel{}
	m := NewSessionManager(model, logging.Nop())

	global, err := m.GetOrCreateGlobal(context.Background())
	if err != nil {
		t.Fatal(err)
	}

	model.mu.Lock()
	model.failCreates = 1
	model.mu.Unlock()

	sess, err := m.GetOrCreateForConversation(context.Background(), "c1", "")
	if err != nil {
		t.Fatalf("fallback should have absorbed the failure, got %v", err)
	}
	if sess != global {
		t.Fatal("fallback must hand out the existing global session")
	}
	if m.SessionCount() != 1 {
		t.Fatalf("failed scoped creation must not register a session, count=%d", m.SessionCount())
	}
}

func TestEmptyConversationIDMeansGlobal(t *testing.T) {
	model := &fakeModel{}
	m := NewSessionManager(model, logging.Nop())

	global, _ := m.GetOrCreateGlobal(context.Background())
	sess, err := m.GetOrCreateForConversation(context.Background(), "", "")
	if err != nil {
		t.Fatal(err)
	}
	if sess != global {
		t.Fatal("empty conversation id must resolve to the global session")
	}
}

func TestSlowCreationBlocksOnlyOnce(t *testing.T) {
	model := &fakeModel{}
	m := NewSessionManager(model, logging.Nop())

	if _, err := m.GetOrCreateGlobal(context.Background()); err != nil {
		t.Fatal(err)
	}

	// A warm manager answers immediately even under a short deadline.
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	if _, err := m.GetOrCreateGlobal(ctx); err != nil {
		t.Fatalf("warm lookup must not hit the model, got %v", err)
	}
}
