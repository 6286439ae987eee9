package orchestrator

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/normanking/insightlens/internal/llm"
	"github.com/normanking/insightlens/internal/logging"
)

// DefaultRequestTimeout bounds a single in-flight prompt so a hung backend
// cannot stall a queue forever.
const DefaultRequestTimeout = 30 * time.Second

type queueResult struct {
	text string
	err  error
}

type queuedRequest struct {
	ctx    context.Context
	prompt string
	done   chan queueResult
}

// keyQueue is the FIFO line for one session key. processing mirrors the
// extension's processNext loop: at most one request in flight, the next one
// starts the moment the head settles.
type keyQueue struct {
	pending    []*queuedRequest
	processing bool
}

// RequestQueue serializes prompts per session key. Requests within one key
// run strictly in arrival order; different keys never wait on each other. A
// session that does not exist yet is created lazily, and a creation failure
// rejects only the request that triggered it.
type RequestQueue struct {
	sessions *SessionManager
	log      *logging.Logger
	timeout  time.Duration

	mu     sync.Mutex
	queues map[string]*keyQueue
}

// NewRequestQueue creates a queue on top of the session manager.
func NewRequestQueue(sessions *SessionManager, log *logging.Logger) *RequestQueue {
	return &RequestQueue{
		sessions: sessions,
		log:      log.WithComponent("queue"),
		timeout:  DefaultRequestTimeout,
		queues:   make(map[string]*keyQueue),
	}
}

// Enqueue appends a prompt to the key's queue and waits for its result. The
// returned error is the backend's own failure, or ctx's error if the caller
// gives up first (the request itself still settles either way).
func (q *RequestQueue) Enqueue(ctx context.Context, sessionKey, prompt string) (string, error) {
	req := &queuedRequest{
		ctx:    ctx,
		prompt: prompt,
		done:   make(chan queueResult, 1),
	}

	q.mu.Lock()
	kq, ok := q.queues[sessionKey]
	if !ok {
		kq = &keyQueue{}
		q.queues[sessionKey] = kq
	}
	kq.pending = append(kq.pending, req)
	start := !kq.processing
	if start {
		kq.processing = true
	}
	q.mu.Unlock()

	if start {
		go q.process(sessionKey)
	}

	select {
	case res := <-req.done:
		return res.text, res.err
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

// process drains the key's queue one request at a time.
func (q *RequestQueue) process(sessionKey string) {
	for {
		q.mu.Lock()
		kq := q.queues[sessionKey]
		if len(kq.pending) == 0 {
			kq.processing = false
			q.mu.Unlock()
			return
		}
		req := kq.pending[0]
		kq.pending = kq.pending[1:]
		q.mu.Unlock()

		req.done <- q.execute(req, sessionKey)
	}
}

// execute resolves the session lazily and runs one prompt under the
// per-request timeout. Two keys can resolve to the same session when a
// conversation falls back to the global one; the session serializes those
// prompts itself.
func (q *RequestQueue) execute(req *queuedRequest, sessionKey string) queueResult {
	sess, err := q.resolveSession(req.ctx, sessionKey)
	if err != nil {
		// This request is rejected; the rest of the queue keeps going.
		return queueResult{err: err}
	}

	ctx, cancel := context.WithTimeout(req.ctx, q.timeout)
	defer cancel()

	text, err := sess.Prompt(ctx, req.prompt)
	if err != nil {
		q.log.Err(err, "prompt failed on session %q", sessionKey)
		return queueResult{err: fmt.Errorf("%w: %v", ErrRequestFailed, err)}
	}
	return queueResult{text: text}
}

func (q *RequestQueue) resolveSession(ctx context.Context, sessionKey string) (*llm.Session, error) {
	if sessionKey == GlobalSessionKey {
		return q.sessions.GetOrCreateGlobal(ctx)
	}
	return q.sessions.GetOrCreateForConversation(ctx, sessionKey, "")
}

// PendingFor reports the queue depth for a key, for diagnostics and tests.
func (q *RequestQueue) PendingFor(sessionKey string) int {
	q.mu.Lock()
	defer q.mu.Unlock()
	kq, ok := q.queues[sessionKey]
	if !ok {
		return 0
	}
	n := len(kq.pending)
	if kq.processing {
		n++
	}
	return n
}
