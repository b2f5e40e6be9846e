// Package hubtest provides an in-memory hub.Conn for service and registry tests.
package hubtest

import (
	"errors"
	"sync"

	"github.com/google/uuid"
)

var ErrClosed = errors.New("hubtest: connection closed")

type Conn struct {
	id string

	mu         sync.Mutex
	sent       [][]byte
	closed     bool
	closeCode  int
	closeMsg   string
	failSend   error
	failClose  error
	closeCalls int
}

func NewConn() *Conn {
	return &Conn{id: uuid.NewString()}
}

func (c *Conn) ID() string { return c.id }

func (c *Conn) Send(payload []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return ErrClosed
	}
	if c.failSend != nil {
		return c.failSend
	}
	c.sent = append(c.sent, append([]byte(nil), payload...))
	return nil
}

func (c *Conn) Close(code int, reason string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closeCalls++
	if !c.closed {
		c.closed = true
		c.closeCode = code
		c.closeMsg = reason
	}
	return c.failClose
}

func (c *Conn) Open() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return !c.closed
}

// FailSend makes every following Send return err.
func (c *Conn) FailSend(err error) {
	c.mu.Lock()
	c.failSend = err
	c.mu.Unlock()
}

// FailClose makes Close return err (the connection is still marked closed).
func (c *Conn) FailClose(err error) {
	c.mu.Lock()
	c.failClose = err
	c.mu.Unlock()
}

// MarkClosed simulates a peer that went away without going through Close.
func (c *Conn) MarkClosed() {
	c.mu.Lock()
	c.closed = true
	c.mu.Unlock()
}

func (c *Conn) Sent() [][]byte {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([][]byte(nil), c.sent...)
}

func (c *Conn) Closed() (code int, reason string, ok bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closeCode, c.closeMsg, c.closed
}

func (c *Conn) CloseCalls() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closeCalls
}
