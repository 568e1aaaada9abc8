// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package glitch

import (
	"context"
	"errors"
	"fmt"
)

// Observer receives control loop events. Methods are called from the loop's
// goroutine and must not block.
type Observer interface {
	StateChanged(state SessionState)
	CycleFinished(cycle Cycle)
}

// Controller is the top-level control loop.
type Controller struct {
	board     Board
	transport Transport
	cfg       Config
	engine    *Engine
	decoder   *Decoder
	keepalive Keepalive
	observer  Observer
	state     SessionState
}

// NewController creates a control loop for board, talking over t.
func NewController(board Board, t Transport, cfg Config) (*Controller, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &Controller{
		board:     board,
		transport: t,
		cfg:       cfg,
		engine:    NewEngine(board, cfg),
		decoder:   NewDecoder(),
		keepalive: Keepalive{
			Interval: cfg.KeepaliveInterval,
			Beacon:   ResponseBeacon.Bytes(),
		},
		state: StateIdle,
	}, nil
}

// SetObserver installs o. Pass nil to remove it.
func (c *Controller) SetObserver(o Observer) {
	c.observer = o
}

// State returns the current session state
func (c *Controller) State() SessionState {
	return c.state
}

// Engine returns the timer engine
func (c *Controller) Engine() *Engine {
	return c.engine
}

// Run configures the clocks and then serves commands until ctx is done or
// the transport fails. A clock configuration failure is returned before any
// command is read.
func (c *Controller) Run(ctx context.Context) error {
	if _, err := ConfigureClocks(c.board, c.cfg); err != nil {
		return err
	}
	for {
		if _, err := c.Step(ctx); err != nil {
			return err
		}
	}
}

// Step serves one command: announce READY, read a request, validate it and
// fire it. Rejected requests are reported and do not touch the timers.
// The returned error is non-nil only if the loop cannot continue.
//
// Step expects the clocks to be configured.
func (c *Controller) Step(ctx context.Context) (Cycle, error) {
	c.setState(StateIdle)
	c.board.Target().Run()
	if err := c.send(ResponseReady); err != nil {
		return Cycle{}, err
	}

	c.setState(StateAwaitingCommand)
	req, err := c.decoder.Receive(ctx, c.transport, c.keepalive)
	if err != nil {
		if !errors.Is(err, ErrNotAGlitchCommand) {
			c.setState(StateIdle)
			return Cycle{}, err
		}
		return c.finish(Cycle{Response: ResponseFail, Err: err})
	}

	c.setState(StateValidating)
	plan, err := Translate(c.cfg, req)
	if err != nil {
		return c.finish(Cycle{Request: req, Response: ResponseFor(err), Err: err})
	}

	c.setState(StateArmed)
	if err := c.engine.Arm(plan); err != nil {
		return c.finish(Cycle{Request: req, Plan: plan, Response: ResponseFail, Err: err})
	}
	if err := c.engine.Trigger(); err != nil {
		return c.finish(Cycle{Request: req, Plan: plan, Response: ResponseFail, Err: err})
	}

	c.setState(StateWaitingForCompletion)
	if err := c.engine.WaitForCompletion(); err != nil {
		return c.finish(Cycle{Request: req, Plan: plan, Response: ResponseFail, Err: err})
	}

	return c.finish(Cycle{Request: req, Plan: plan, Response: ResponseDone})
}

func (c *Controller) finish(cycle Cycle) (Cycle, error) {
	err := c.send(cycle.Response)
	c.setState(StateIdle)
	if c.observer != nil {
		c.observer.CycleFinished(cycle)
	}
	return cycle, err
}

func (c *Controller) send(r Response) error {
	if err := c.transport.Send(r.Bytes()); err != nil {
		return fmt.Errorf("failed to send %s: %w", r, err)
	}
	return nil
}

func (c *Controller) setState(s SessionState) {
	if c.state == s {
		return
	}
	c.state = s
	if c.observer != nil {
		c.observer.StateChanged(s)
	}
}
