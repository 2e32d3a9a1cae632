// Package client is a Go client for the behave server API.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"github.com/zeusync/behave/internal/core/observability/log"
	"github.com/zeusync/behave/internal/host"
)

// Config holds configuration for the client
type Config struct {
	// ServerAddr is host:port or a full http(s) URL.
	ServerAddr     string
	Token          string
	RequestTimeout time.Duration
	// FrameBuffer is the capacity of the channel returned by Frames.
	FrameBuffer int
}

// DefaultClientConfig returns default client configuration
func DefaultClientConfig() Config {
	return Config{
		ServerAddr:     "127.0.0.1:8080",
		RequestTimeout: 10 * time.Second,
		FrameBuffer:    16,
	}
}

type Option func(*Client)

func WithLogger(l log.Log) Option {
	return func(c *Client) { c.logger = l }
}

// WithHTTPClient replaces the underlying http client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// Client talks to one server. It is safe for concurrent use.
type Client struct {
	base   *url.URL
	config Config
	http   *http.Client
	logger log.Log

	mu      sync.Mutex
	streams map[*websocket.Conn]struct{}
	closed  int32 // atomic bool
}

// New validates the config. Zero fields fall back to DefaultClientConfig.
func New(config Config, opts ...Option) (*Client, error) {
	def := DefaultClientConfig()
	if config.ServerAddr == "" {
		config.ServerAddr = def.ServerAddr
	}
	if config.RequestTimeout <= 0 {
		config.RequestTimeout = def.RequestTimeout
	}
	if config.FrameBuffer <= 0 {
		config.FrameBuffer = def.FrameBuffer
	}

	addr := config.ServerAddr
	if !strings.Contains(addr, "://") {
		addr = "http://" + addr
	}
	base, err := url.Parse(addr)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	if base.Scheme != "http" && base.Scheme != "https" {
		return nil, fmt.Errorf("%w: scheme %q", ErrInvalidConfig, base.Scheme)
	}

	c := &Client{
		base:    base,
		config:  config,
		http:    &http.Client{Timeout: config.RequestTimeout},
		logger:  log.NewNop(),
		streams: make(map[*websocket.Conn]struct{}),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

func (c *Client) url(path string) string {
	u := *c.base
	u.Path = strings.TrimSuffix(u.Path, "/") + path
	return u.String()
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	if atomic.LoadInt32(&c.closed) == 1 {
		return ErrClientClosed
	}

	var r io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return err
		}
		r = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.url(path), r)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.config.Token != "" {
		req.Header.Set("Authorization", "Bearer "+c.config.Token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusUnauthorized:
		return ErrUnauthorized
	case resp.StatusCode == http.StatusNotFound:
		return fmt.Errorf("%w: %s", ErrAgentNotFound, serverError(resp.Body))
	case resp.StatusCode >= 300:
		return fmt.Errorf("%w: %d %s", ErrUnexpectedStatus, resp.StatusCode, serverError(resp.Body))
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

func serverError(r io.Reader) string {
	var e struct {
		Error string `json:"error"`
	}
	if err := json.NewDecoder(r).Decode(&e); err != nil {
		return ""
	}
	return e.Error
}

// Trees lists the tree ids loaded on the server.
func (c *Client) Trees(ctx context.Context) ([]string, error) {
	var out []string
	err := c.do(ctx, http.MethodGet, "/trees", nil, &out)
	return out, err
}

// Agents lists every bound agent.
func (c *Client) Agents(ctx context.Context) ([]host.AgentInfo, error) {
	var out []host.AgentInfo
	err := c.do(ctx, http.MethodGet, "/agents", nil, &out)
	return out, err
}

// Agent returns one agent; ErrAgentNotFound when it is not bound.
func (c *Client) Agent(ctx context.Context, id string) (host.AgentInfo, error) {
	var out host.AgentInfo
	err := c.do(ctx, http.MethodGet, "/agents/"+url.PathEscape(id), nil, &out)
	return out, err
}

// FireEvent queues an event for the agent's next tick and returns its id.
func (c *Client) FireEvent(ctx context.Context, agent, name string, payload any) (string, error) {
	var out struct {
		ID string `json:"id"`
	}
	path := "/agents/" + url.PathEscape(agent) + "/events/" + url.PathEscape(name)
	if err := c.do(ctx, http.MethodPost, path, map[string]any{"payload": payload}, &out); err != nil {
		return "", err
	}
	return out.ID, nil
}

// Frames streams frame summaries until ctx is done, the server goes away or
// the client is closed; the channel is then closed.
func (c *Client) Frames(ctx context.Context) (<-chan host.Frame, error) {
	if atomic.LoadInt32(&c.closed) == 1 {
		return nil, ErrClientClosed
	}

	u := *c.base
	u.Scheme = map[string]string{"http": "ws", "https": "wss"}[u.Scheme]
	u.Path = strings.TrimSuffix(u.Path, "/") + "/ws"
	header := http.Header{}
	if c.config.Token != "" {
		header.Set("Authorization", "Bearer "+c.config.Token)
	}

	conn, resp, err := websocket.DefaultDialer.DialContext(ctx, u.String(), header)
	if err != nil {
		if resp != nil && resp.StatusCode == http.StatusUnauthorized {
			return nil, ErrUnauthorized
		}
		return nil, err
	}
	c.mu.Lock()
	c.streams[conn] = struct{}{}
	c.mu.Unlock()

	out := make(chan host.Frame, c.config.FrameBuffer)
	stop := context.AfterFunc(ctx, func() { _ = conn.Close() })
	go func() {
		defer close(out)
		defer stop()
		defer c.forget(conn)
		for {
			var f host.Frame
			if err := conn.ReadJSON(&f); err != nil {
				c.logger.Debug("frame stream ended", log.Error(err))
				return
			}
			select {
			case out <- f:
			case <-ctx.Done():
				return
			}
		}
	}()
	return out, nil
}

func (c *Client) forget(conn *websocket.Conn) {
	c.mu.Lock()
	delete(c.streams, conn)
	c.mu.Unlock()
	_ = conn.Close()
}

// Close ends every open frame stream. Further calls fail with ErrClientClosed.
func (c *Client) Close() error {
	if !atomic.CompareAndSwapInt32(&c.closed, 0, 1) {
		return nil
	}
	c.mu.Lock()
	for conn := range c.streams {
		_ = conn.Close()
	}
	c.mu.Unlock()
	c.http.CloseIdleConnections()
	return nil
}
