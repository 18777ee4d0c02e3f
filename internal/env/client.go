// Package env bridges the pilot to the environment over a websocket:
// observations in, commands out.
package env

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
	"github.com/xonecas/zoea-pilot/internal/task"
)

// ErrNotConnected is returned when sending on a closed client.
var ErrNotConnected = errors.New("environment not connected")

const (
	handshakeTimeout = 5 * time.Second
	writeTimeout     = 5 * time.Second
	readTimeout      = 60 * time.Second
	observationQueue = 16
)

// Client is a connected environment session.
type Client struct {
	agentID string

	writeMu sync.Mutex
	mu      sync.RWMutex
	conn    *websocket.Conn
	tick    int64
	err     error

	obs       chan Observation
	stop      chan struct{}
	done      chan struct{}
	closeOnce sync.Once
}

// Dial connects, sends HELLO and waits for WELCOME.
func Dial(ctx context.Context, url, agentName string) (*Client, error) {
	d := websocket.Dialer{HandshakeTimeout: handshakeTimeout}
	conn, resp, err := d.DialContext(ctx, url, http.Header{})
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", url, err)
	}
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}

	_ = conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	if err := conn.WriteJSON(HelloMsg{Type: TypeHello, AgentName: agentName}); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("send hello: %w", err)
	}

	_ = conn.SetReadDeadline(time.Now().Add(handshakeTimeout))
	var welcome WelcomeMsg
	if err := conn.ReadJSON(&welcome); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("read welcome: %w", err)
	}
	if welcome.Type != TypeWelcome {
		_ = conn.Close()
		return nil, fmt.Errorf("expected %s, got %q", TypeWelcome, welcome.Type)
	}

	c := &Client{
		agentID: welcome.AgentID,
		conn:    conn,
		obs:     make(chan Observation, observationQueue),
		stop:    make(chan struct{}),
		done:    make(chan struct{}),
	}
	go c.readLoop(conn)

	log.Info().Str("url", url).Str("agent_id", welcome.AgentID).Msg("Connected to environment")
	return c, nil
}

// AgentID is the id assigned by the environment.
func (c *Client) AgentID() string {
	return c.agentID
}

// Observations delivers one value per environment tick. The channel is
// closed when the connection ends.
func (c *Client) Observations() <-chan Observation {
	return c.obs
}

// Err returns why the connection ended, if it has.
func (c *Client) Err() error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.err
}

// Send writes a command stamped with the latest observed tick.
func (c *Client) Send(cmd task.Command) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	c.mu.RLock()
	conn, tick := c.conn, c.tick
	c.mu.RUnlock()
	if conn == nil {
		return ErrNotConnected
	}

	_ = conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	if err := conn.WriteJSON(CmdMsg{Type: TypeCmd, Tick: tick, Command: cmd}); err != nil {
		return fmt.Errorf("write command: %w", err)
	}
	return nil
}

// Close ends the session and waits for the read loop to exit.
func (c *Client) Close() error {
	var err error
	c.closeOnce.Do(func() {
		close(c.stop)
		c.mu.Lock()
		conn := c.conn
		c.conn = nil
		c.mu.Unlock()

		if conn != nil {
			c.writeMu.Lock()
			_ = conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
				time.Now().Add(writeTimeout))
			c.writeMu.Unlock()
			err = conn.Close()
		}
		<-c.done
	})
	return err
}

func (c *Client) readLoop(conn *websocket.Conn) {
	defer close(c.done)
	defer close(c.obs)

	for {
		_ = conn.SetReadDeadline(time.Now().Add(readTimeout))
		_, msg, err := conn.ReadMessage()
		if err != nil {
			c.finish(err)
			return
		}

		var base baseMsg
		if err := json.Unmarshal(msg, &base); err != nil {
			log.Debug().Err(err).Msg("Dropping malformed message")
			continue
		}
		if base.Type != TypeObs {
			continue
		}

		var o Observation
		if err := json.Unmarshal(msg, &o); err != nil {
			log.Warn().Err(err).Msg("Dropping malformed observation")
			continue
		}
		c.mu.Lock()
		c.tick = o.Tick
		c.mu.Unlock()
		select {
		case c.obs <- o:
		case <-c.stop:
			return
		}
	}
}

func (c *Client) finish(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn == nil || websocket.IsCloseError(err, websocket.CloseNormalClosure) {
		// Closed locally or cleanly by the peer.
		c.conn = nil
		return
	}
	c.err = err
	c.conn = nil
	log.Warn().Err(err).Msg("Environment connection lost")
}
