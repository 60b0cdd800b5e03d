package main

import (
	"fmt"
	"net/url"
	"strings"
	"sync"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/gorilla/websocket"

	"github.com/jwebster45206/questkeeper/internal/replication"
)

// serverMsg is a replication message delivered into the UI loop.
type serverMsg struct {
	msg replication.Message
}

// disconnectedMsg ends the session.
type disconnectedMsg struct {
	err error
}

// Conn is the console's websocket connection to the server.
type Conn struct {
	ws *websocket.Conn
	mu sync.Mutex
}

// wsURL turns an http(s) base URL into the websocket endpoint for playerID.
func wsURL(base, playerID string) (string, error) {
	u, err := url.Parse(base)
	if err != nil {
		return "", fmt.Errorf("invalid server url: %w", err)
	}
	switch u.Scheme {
	case "http", "ws":
		u.Scheme = "ws"
	case "https", "wss":
		u.Scheme = "wss"
	default:
		return "", fmt.Errorf("unsupported scheme %q", u.Scheme)
	}
	u.Path = strings.TrimSuffix(u.Path, "/") + "/v1/ws"
	u.RawQuery = url.Values{"player": {playerID}}.Encode()
	return u.String(), nil
}

func Dial(cfg *ConsoleConfig) (*Conn, error) {
	target, err := wsURL(cfg.ServerURL, cfg.PlayerID.String())
	if err != nil {
		return nil, err
	}
	dialer := websocket.Dialer{HandshakeTimeout: cfg.Timeout}
	ws, _, err := dialer.Dial(target, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to dial %s: %w", target, err)
	}
	return &Conn{ws: ws}, nil
}

// Send writes one request to the server.
func (c *Conn) Send(msg replication.Message) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ws.WriteJSON(msg)
}

// ReadLoop forwards server messages to p until the connection closes.
func (c *Conn) ReadLoop(p *tea.Program) {
	for {
		var msg replication.Message
		if err := c.ws.ReadJSON(&msg); err != nil {
			p.Send(disconnectedMsg{err: err})
			return
		}
		p.Send(serverMsg{msg: msg})
	}
}

func (c *Conn) Close() error {
	c.mu.Lock()
	_ = c.ws.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	c.mu.Unlock()
	return c.ws.Close()
}
