package relay

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/normanking/insightlens/internal/logging"
)

// envelope frames a request or response on the websocket, correlated by id.
type envelope struct {
	ID       string    `json:"id"`
	Request  *Request  `json:"request,omitempty"`
	Response *Response `json:"response,omitempty"`
}

const writeWait = 10 * time.Second

// ═══════════════════════════════════════════════════════════════════════════════
// SERVER
// ═══════════════════════════════════════════════════════════════════════════════

// Server exposes an inner relay over a websocket endpoint. Each incoming
// request runs on its own goroutine; the connection stays open while calls
// are in flight, so slow API answers never drop.
type Server struct {
	inner    Relay
	log      *logging.Logger
	upgrader websocket.Upgrader
}

// NewServer wraps inner (usually a Local relay around the Gemini provider).
func NewServer(inner Relay, log *logging.Logger) *Server {
	return &Server{
		inner: inner,
		log:   log.WithComponent("relay-server"),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
		},
	}
}

// ServeHTTP upgrades the connection and pumps envelopes until the peer hangs
// up.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Err(err, "websocket upgrade failed")
		return
	}
	defer conn.Close()

	var writeMu sync.Mutex
	for {
		var env envelope
		if err := conn.ReadJSON(&env); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				s.log.Err(err, "relay connection dropped")
			}
			return
		}
		if env.Request == nil {
			continue
		}

		go func(env envelope) {
			resp, err := s.inner.Call(r.Context(), env.Request)
			if err != nil {
				resp = &Response{Success: false, Error: err.Error()}
			}
			writeMu.Lock()
			defer writeMu.Unlock()
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteJSON(envelope{ID: env.ID, Response: resp}); err != nil {
				s.log.Err(err, "write relay response")
			}
		}(env)
	}
}

// ListenAndServe runs the relay server at addr until ctx is done.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	mux := http.NewServeMux()
	mux.Handle("/relay", s)

	srv := &http.Server{Addr: addr, Handler: mux}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		srv.Shutdown(shutdownCtx)
	}()

	s.log.Info("relay listening on %s", addr)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// ═══════════════════════════════════════════════════════════════════════════════
// CLIENT
// ═══════════════════════════════════════════════════════════════════════════════

// Client talks to a relay Server. Calls are correlated with a uuid and each
// pending call holds a one-shot channel that the read pump resolves.
type Client struct {
	conn *websocket.Conn
	log  *logging.Logger

	writeMu sync.Mutex

	mu      sync.Mutex
	pending map[string]chan *Response
	closed  bool
}

// Dial connects to a relay server at url (e.g. ws://127.0.0.1:8743/relay).
func Dial(ctx context.Context, url string, log *logging.Logger) (*Client, error) {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, url, nil)
	if err != nil {
		return nil, fmt.Errorf("dial relay: %w", err)
	}

	c := &Client{
		conn:    conn,
		log:     log.WithComponent("relay-client"),
		pending: make(map[string]chan *Response),
	}
	go c.readPump()
	return c, nil
}

func (c *Client) readPump() {
	for {
		var env envelope
		if err := c.conn.ReadJSON(&env); err != nil {
			c.failAll(err)
			return
		}
		if env.Response == nil {
			continue
		}

		c.mu.Lock()
		ch, ok := c.pending[env.ID]
		if ok {
			delete(c.pending, env.ID)
		}
		c.mu.Unlock()

		if ok {
			ch <- env.Response
		}
	}
}

// failAll settles every pending call after the connection dies, so no caller
// is left waiting forever.
func (c *Client) failAll(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	for id, ch := range c.pending {
		ch <- &Response{Success: false, Error: fmt.Sprintf("relay connection lost: %v", err)}
		delete(c.pending, id)
	}
}

// Call sends req and waits for the correlated response or ctx cancellation.
func (c *Client) Call(ctx context.Context, req *Request) (*Response, error) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil, fmt.Errorf("relay client is closed")
	}
	id := uuid.NewString()
	ch := make(chan *Response, 1)
	c.pending[id] = ch
	c.mu.Unlock()

	env := envelope{ID: id, Request: req}
	c.writeMu.Lock()
	c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	err := c.conn.WriteJSON(env)
	c.writeMu.Unlock()
	if err != nil {
		c.mu.Lock()
		delete(c.pending, id)
		c.mu.Unlock()
		return nil, fmt.Errorf("send relay request: %w", err)
	}

	select {
	case resp := <-ch:
		return resp, nil
	case <-ctx.Done():
		c.mu.Lock()
		delete(c.pending, id)
		c.mu.Unlock()
		return nil, ctx.Err()
	}
}

// Close tears the connection down.
func (c *Client) Close() error {
	c.mu.Lock()
	c.closed = true
	c.mu.Unlock()

	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
	c.conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(time.Second))
	return c.conn.Close()
}
