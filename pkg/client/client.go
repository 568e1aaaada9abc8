// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

// Package client talks to a glitch controller over a serial or websocket
// connection.
package client

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/golang/glog"

	"github.com/Thermoquad/glitchctl/pkg/glitch"
)

// ErrClosed is returned after Close
var ErrClosed = errors.New("client closed")

// Client sends glitch commands and collects responses. A reader goroutine
// decodes the controller's output; responses are consumed with Next,
// WaitReady and Glitch, which must not be called concurrently.
type Client struct {
	conn io.ReadWriteCloser

	responses chan glitch.Response
	done      chan struct{}
	err       error

	mu    sync.Mutex
	stats *Statistics

	closeOnce sync.Once
}

// New starts a client on conn
func New(conn io.ReadWriteCloser) *Client {
	c := &Client{
		conn:      conn,
		responses: make(chan glitch.Response, 64),
		done:      make(chan struct{}),
		stats:     NewStatistics(),
	}
	go c.reader()
	return c
}

func (c *Client) reader() {
	decoder := glitch.NewResponseDecoder()
	buf := make([]byte, 256)
	for {
		n, err := c.conn.Read(buf)
		for i := 0; i < n; i++ {
			r, derr := decoder.DecodeByte(buf[i])
			if derr != nil {
				glog.Warningf("decode error: %v", derr)
				c.mu.Lock()
				c.stats.DecodeErrors++
				c.mu.Unlock()
				continue
			}
			if r == nil {
				continue
			}
			glog.V(2).Infof("response %q", r.Text())
			c.mu.Lock()
			c.stats.Observe(*r)
			c.mu.Unlock()
			c.responses <- *r
		}
		if err != nil {
			c.err = err
			close(c.done)
			return
		}
	}
}

// Next returns the next response
func (c *Client) Next(ctx context.Context) (glitch.Response, error) {
	select {
	case r := <-c.responses:
		return r, nil
	case <-c.done:
		select {
		case r := <-c.responses:
			return r, nil
		default:
			return 0, fmt.Errorf("connection lost: %w", c.err)
		}
	case <-ctx.Done():
		return 0, ctx.Err()
	}
}

// WaitReady waits until the controller is between commands: a READY line
// or an idle beacon.
func (c *Client) WaitReady(ctx context.Context) error {
	for {
		r, err := c.Next(ctx)
		if err != nil {
			return err
		}
		switch r {
		case glitch.ResponseReady, glitch.ResponseBeacon:
			return nil
		default:
			glog.V(1).Infof("skipping %q while waiting for READY", r.Text())
		}
	}
}

// Send writes one command without waiting for its outcome
func (c *Client) Send(req glitch.GlitchRequest) error {
	c.mu.Lock()
	c.stats.Attempts++
	c.mu.Unlock()

	glog.Infof("sending %s", req)
	if _, err := c.conn.Write(glitch.EncodeCommand(req)); err != nil {
		return fmt.Errorf("failed to send command: %w", err)
	}
	return nil
}

// Glitch sends one command and waits for its outcome. A FAIL response is
// returned along with the matching error from Response.Err.
func (c *Client) Glitch(ctx context.Context, req glitch.GlitchRequest) (glitch.Response, error) {
	if err := c.Send(req); err != nil {
		return 0, err
	}

	for {
		r, err := c.Next(ctx)
		if err != nil {
			return 0, err
		}
		if r.Terminal() {
			return r, r.Err()
		}
	}
}

// Statistics returns a snapshot of the session statistics
func (c *Client) Statistics() Statistics {
	c.mu.Lock()
	defer c.mu.Unlock()
	return *c.stats
}

// ResetStatistics clears the session statistics
func (c *Client) ResetStatistics() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.stats.Reset()
}

// Close closes the connection
func (c *Client) Close() error {
	err := ErrClosed
	c.closeOnce.Do(func() {
		err = c.conn.Close()
	})
	return err
}
