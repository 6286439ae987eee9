// Package orchestrator is the request brain of InsightLens: it routes each
// AI action to the on-device or hosted backend, serializes prompts per model
// session, memoizes responses, keeps multi-turn conversation transcripts,
// and composes mode-aware prompts. One Orchestrator instance lives for the
// process lifetime and is passed explicitly to its callers.
package orchestrator

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/normanking/insightlens/internal/bus"
	"github.com/normanking/insightlens/internal/config"
	"github.com/normanking/insightlens/internal/llm"
	"github.com/normanking/insightlens/internal/logging"
	"github.com/normanking/insightlens/internal/relay"
)

// Backend modes as stored in configuration.
const (
	BackendLocal  = "local"
	BackendRemote = "gemini"
)

// ConfigStore is the persisted settings collaborator. Reads happen on every
// request so a toggle applies immediately; Watch feeds the defensive cache
// clear when the response style flips.
type ConfigStore interface {
	Get(key string) (string, error)
	Watch(key string, fn func(value string))
}

// Orchestrator wires the conversation store, response cache, session
// manager, request queue, and backend routing behind one operation surface.
type Orchestrator struct {
	cfg      ConfigStore
	store    *ConversationStore
	cache    *ResponseCache
	sessions *SessionManager
	queue    *RequestQueue
	remote   relay.Relay
	events   *bus.Bus
	log      *logging.Logger
}

// New builds an orchestrator. model serves the local path, remote the hosted
// path; events receives notification and llm_* events.
func New(cfg ConfigStore, model llm.LocalModel, remote relay.Relay, events *bus.Bus, log *logging.Logger) *Orchestrator {
	o := &Orchestrator{
		cfg:      cfg,
		store:    NewConversationStore(),
		cache:    NewResponseCache(),
		sessions: NewSessionManager(model, log),
		remote:   remote,
		events:   events,
		log:      log.WithComponent("orchestrator"),
	}
	o.queue = NewRequestQueue(o.sessions, log)

	// Mode is part of every cache key already; clearing on a style flip is
	// belt and braces against stale entries piling up.
	cfg.Watch(config.KeyResponseStyle, func(string) { o.cache.Clear() })

	return o
}

// Conversations exposes the transcript store for callers that manage
// conversation lifecycles directly.
func (o *Orchestrator) Conversations() *ConversationStore { return o.store }

// opMeta carries the user-facing strings for one operation.
type opMeta struct {
	label   string // sentence-leading, for failure text
	start   string
	success string
	failure string
}

var opMetas = map[Operation]opMeta{
	OpReview: {
		label:   "Review",
		start:   "Reviewing your code...",
		success: "Code review completed!",
		failure: "Code review failed.",
	},
	OpSecurity: {
		label:   "Security review",
		start:   "Checking code for vulnerabilities...",
		success: "Security review completed!",
		failure: "Security review failed.",
	},
	OpTests: {
		label:   "Test generation",
		start:   "Generating unit tests...",
		success: "Test generation completed!",
		failure: "Test generation failed.",
	},
	OpExplain: {
		label:   "Explanation",
		start:   "Analyzing your code...",
		success: "Explanation ready!",
		failure: "Explanation failed.",
	},
	OpAnswer: {
		label:   "Answer",
		start:   "Thinking about your code...",
		success: "Answer ready!",
		failure: "Answer failed.",
	},
	OpRefactor: {
		label:   "Refactor suggestion",
		start:   "Analyzing refactor opportunities...",
		success: "Refactor suggestions ready!",
		failure: "Refactor suggestion failed.",
	},
	OpAsk: {
		label:   "Ask",
		start:   "Asking the assistant...",
		success: "Answer received.",
		failure: "Failed to get a response.",
	},
}

// ReviewSmart reviews code on whichever backend is configured.
func (o *Orchestrator) ReviewSmart(ctx context.Context, code, conversationID string) (string, error) {
	return o.run(ctx, OpReview, code, "", conversationID)
}

// SecuritySmart audits code for vulnerabilities.
func (o *Orchestrator) SecuritySmart(ctx context.Context, code, conversationID string) (string, error) {
	return o.run(ctx, OpSecurity, code, "", conversationID)
}

// TestsSmart generates unit tests for code.
func (o *Orchestrator) TestsSmart(ctx context.Context, code, conversationID string) (string, error) {
	return o.run(ctx, OpTests, code, "", conversationID)
}

// ExplainSmart explains what code does.
func (o *Orchestrator) ExplainSmart(ctx context.Context, code, conversationID string) (string, error) {
	return o.run(ctx, OpExplain, code, "", conversationID)
}

// RefactorSmart suggests refactors that keep behavior identical.
func (o *Orchestrator) RefactorSmart(ctx context.Context, code, conversationID string) (string, error) {
	return o.run(ctx, OpRefactor, code, "", conversationID)
}

// AnswerSmart answers a free-form question about code.
func (o *Orchestrator) AnswerSmart(ctx context.Context, text, conversationID string) (string, error) {
	return o.run(ctx, OpAnswer, text, "", conversationID)
}

// AskSmart asks a question with optional code context, continuing the given
// conversation when an id is supplied.
func (o *Orchestrator) AskSmart(ctx context.Context, question, codeContext, conversationID string) (string, error) {
	return o.run(ctx, OpAsk, question, codeContext, conversationID)
}

// run is the single request pipeline: route, cache, compose, dispatch,
// record. codeContext is empty for all operations except ask; locally it is
// folded into the payload, remotely it travels as its own wire field. The
// returned string is always displayable; on failure it reads
// "<Label> failed: <reason>" and the typed error is returned alongside.
func (o *Orchestrator) run(ctx context.Context, op Operation, text, codeContext, conversationID string) (string, error) {
	correlationID := uuid.NewString()
	log := o.log.WithCorrelation(correlationID)
	meta := opMetas[op]
	payload := askPayload(text, codeContext)

	backend, style := o.routing(log)
	log = log.WithField("backend", backend)

	cacheKey := o.cache.Key(op, payload, style, conversationID)
	if text, ok := o.cache.Get(cacheKey); ok {
		log.Debug("cache hit for %s", op)
		o.notify(correlationID, op, meta.success, bus.SoundSuccess)
		return text, nil
	}

	o.notify(correlationID, op, meta.start, bus.SoundStart)

	var history []Turn
	if conversationID != "" {
		history = o.store.Recent(conversationID, DefaultRecentTurns)
	}
	prompt := Compose(op, style, payload, history)

	if conversationID != "" {
		o.store.AppendUser(conversationID, payload)
	}

	o.publish(bus.Event{
		Type:          bus.EventLLMRequest,
		CorrelationID: correlationID,
		Operation:     string(op),
		Backend:       backend,
	})

	started := time.Now()
	var reply string
	var err error
	if backend == BackendRemote {
		reply, err = o.runRemote(ctx, op, text, codeContext, conversationID, prompt)
	} else {
		reply, err = o.queue.Enqueue(ctx, sessionKeyFor(conversationID), prompt)
	}

	if err != nil {
		log.Err(err, "%s on %s backend failed", op, backend)
		o.publish(bus.Event{
			Type:          bus.EventLLMError,
			CorrelationID: correlationID,
			Operation:     string(op),
			Backend:       backend,
			Error:         err.Error(),
		})
		o.notify(correlationID, op, meta.failure, bus.SoundError)
		return fmt.Sprintf("%s failed: %v", meta.label, err), err
	}

	o.cache.Set(cacheKey, reply)
	if conversationID != "" {
		o.store.AppendAssistant(conversationID, reply)
	}

	o.publish(bus.Event{
		Type:          bus.EventLLMResponse,
		CorrelationID: correlationID,
		Operation:     string(op),
		Backend:       backend,
		DurationMs:    time.Since(started).Milliseconds(),
	})
	o.notify(correlationID, op, meta.success, bus.SoundSuccess)
	return reply, nil
}

// runRemote delivers one stateless request through the relay and maps its
// uniform response shape onto the error taxonomy. Text and code context
// travel as separate wire fields, mirroring the extension's message shape.
func (o *Orchestrator) runRemote(ctx context.Context, op Operation, text, codeContext, conversationID, prompt string) (string, error) {
	resp, err := o.remote.Call(ctx, &relay.Request{
		Action:         relay.ActionFetchGemini,
		Type:           string(op),
		Text:           text,
		Context:        codeContext,
		ConversationID: conversationID,
		Prompt:         prompt,
	})
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrBackendUnavailable, err)
	}
	if !resp.Success {
		return "", fmt.Errorf("%w: %s", ErrRequestFailed, resp.Error)
	}
	return resp.Data, nil
}

// routing reads the backend mode and response style fresh from settings. A
// failed read never fails the request: it degrades to local and short.
func (o *Orchestrator) routing(log *logging.Logger) (backend string, style Mode) {
	backend = BackendLocal
	style = ModeShort

	mode, err := o.cfg.Get(config.KeyAPIMode)
	if err != nil {
		log.Warn("apiMode read failed (%v), defaulting to local", fmt.Errorf("%w: %v", ErrConfigUnavailable, err))
	} else if mode == BackendRemote {
		backend = BackendRemote
	}

	s, err := o.cfg.Get(config.KeyResponseStyle)
	if err != nil {
		log.Warn("responseStyle read failed (%v), defaulting to short", fmt.Errorf("%w: %v", ErrConfigUnavailable, err))
	} else if Mode(s) == ModeDetailed {
		style = ModeDetailed
	}
	return backend, style
}

// notify emits a toast event unless the user switched notifications off.
func (o *Orchestrator) notify(correlationID string, op Operation, message, sound string) {
	raw, err := o.cfg.Get(config.KeyNotifications)
	if err == nil && (raw == "false" || raw == "0") {
		return
	}
	o.publish(bus.Event{
		Type:          bus.EventNotification,
		CorrelationID: correlationID,
		Operation:     string(op),
		Message:       message,
		Sound:         sound,
	})
}

// publish fills in event identity and fires it; delivery is best-effort.
func (o *Orchestrator) publish(event bus.Event) {
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}
	o.events.Publish(event)
}

// sessionKeyFor partitions the queue: each conversation gets its own lane,
// everything else shares the global session.
func sessionKeyFor(conversationID string) string {
	if conversationID == "" {
		return GlobalSessionKey
	}
	return conversationID
}
