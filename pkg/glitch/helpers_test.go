// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package glitch

import (
	"bytes"
	"fmt"
	"io"
	"time"
)

// ============================================================
// Fake Transport
// ============================================================

// scriptItem is one ReceiveByte result
type scriptItem struct {
	b   byte
	err error
}

// fakeTransport replays a script of bytes and errors, then returns io.EOF
type fakeTransport struct {
	script   []scriptItem
	sent     bytes.Buffer
	sends    []string
	timeouts []time.Duration
	sendErr  error
}

func newFakeTransport(items ...scriptItem) *fakeTransport {
	return &fakeTransport{script: items}
}

func (f *fakeTransport) Send(p []byte) error {
	if f.sendErr != nil {
		return f.sendErr
	}
	f.sent.Write(p)
	f.sends = append(f.sends, string(p))
	return nil
}

func (f *fakeTransport) ReceiveByte(timeout time.Duration) (byte, error) {
	f.timeouts = append(f.timeouts, timeout)
	if len(f.script) == 0 {
		return 0, io.EOF
	}
	item := f.script[0]
	f.script = f.script[1:]
	return item.b, item.err
}

// bytesOf converts a string into script items
func bytesOf(s string) []scriptItem {
	items := make([]scriptItem, 0, len(s))
	for i := 0; i < len(s); i++ {
		items = append(items, scriptItem{b: s[i]})
	}
	return items
}

// timeout is a script item that reports no byte within the interval
func timeout() scriptItem {
	return scriptItem{err: ErrTimeout}
}

func script(parts ...[]scriptItem) []scriptItem {
	var out []scriptItem
	for _, p := range parts {
		out = append(out, p...)
	}
	return out
}

// ============================================================
// Fake Board
// ============================================================

// fakeBoard logs every hardware access and dispatches interrupts from Sleep:
// the coarse overflow as soon as the coarse timer runs, then the fine compare
// once the fine timer runs.
type fakeBoard struct {
	log      []string
	rates    ClockRates
	clockErr error

	coarseRunning bool
	coarseIRQ     bool
	fineRunning   bool
	fineIRQ       bool

	onCoarse func()
	onFine   func()
}

func newFakeBoard() *fakeBoard {
	return &fakeBoard{
		rates: ClockRates{CoarseHz: 16000000, FineHz: 96000000, PeripheralHz: 48000000},
	}
}

func (b *fakeBoard) logf(format string, args ...interface{}) {
	b.log = append(b.log, fmt.Sprintf(format, args...))
}

func (b *fakeBoard) ConfigureClocks() (ClockRates, error) {
	b.logf("clocks")
	return b.rates, b.clockErr
}

func (b *fakeBoard) CoarseTimer() CoarseTimer { return fakeCoarse{b} }
func (b *fakeBoard) FineTimer() FineTimer     { return fakeFine{b} }
func (b *fakeBoard) Target() Target           { return fakeTarget{b} }

func (b *fakeBoard) Launch() {
	b.logf("launch")
	b.coarseRunning = true
}

func (b *fakeBoard) Sleep() {
	b.logf("sleep")
	switch {
	case b.coarseRunning && b.coarseIRQ:
		b.onCoarse()
	case b.fineRunning && b.fineIRQ:
		b.onFine()
	default:
		panic("sleep with no wake source")
	}
}

func (b *fakeBoard) Delay(d time.Duration) {
	b.logf("delay %s", d)
}

func (b *fakeBoard) SetHandlers(coarseOverflow, fineCompare func()) {
	b.onCoarse = coarseOverflow
	b.onFine = fineCompare
}

// timerLog returns the log without clock and target-run entries
func (b *fakeBoard) timerLog() []string {
	var out []string
	for _, l := range b.log {
		switch l {
		case "clocks", "target run":
			continue
		}
		out = append(out, l)
	}
	return out
}

type fakeCoarse struct{ b *fakeBoard }

func (c fakeCoarse) Load(count uint16)        { c.b.logf("coarse load %d", count) }
func (c fakeCoarse) EnableOverflowInterrupt() { c.b.logf("coarse irq"); c.b.coarseIRQ = true }
func (c fakeCoarse) Start()                   { c.b.logf("coarse start"); c.b.coarseRunning = true }
func (c fakeCoarse) Stop()                    { c.b.logf("coarse stop"); c.b.coarseRunning = false }

type fakeFine struct{ b *fakeBoard }

func (f fakeFine) Configure(count, compare uint8) {
	f.b.logf("fine configure %d %d", count, compare)
}
func (f fakeFine) EnableCompareInterrupt() { f.b.logf("fine irq"); f.b.fineIRQ = true }
func (f fakeFine) Start()                  { f.b.logf("fine start"); f.b.fineRunning = true }
func (f fakeFine) Stop()                   { f.b.logf("fine stop"); f.b.fineRunning = false }

type fakeTarget struct{ b *fakeBoard }

func (t fakeTarget) HoldReset() { t.b.logf("target reset") }
func (t fakeTarget) Run()       { t.b.logf("target run") }

// ============================================================
// Recording Observer
// ============================================================

type recordingObserver struct {
	states []SessionState
	cycles []Cycle
}

func (o *recordingObserver) StateChanged(s SessionState) { o.states = append(o.states, s) }
func (o *recordingObserver) CycleFinished(c Cycle)       { o.cycles = append(o.cycles, c) }
