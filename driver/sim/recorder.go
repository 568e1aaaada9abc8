// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package sim

import (
	"github.com/golang/glog"

	"github.com/Thermoquad/glitchctl/pkg/glitch"
	"github.com/Thermoquad/glitchctl/pkg/trace"
)

// Recorder is a glitch.Observer that turns every finished cycle into a
// measurement frame taken from the board's rail.
type Recorder struct {
	board *Board
	sink  func(trace.Measurement)
	seq   uint32
}

// NewRecorder creates a recorder for board. sink is called from the control
// loop's goroutine.
func NewRecorder(board *Board, sink func(trace.Measurement)) *Recorder {
	return &Recorder{board: board, sink: sink}
}

// StateChanged implements glitch.Observer
func (r *Recorder) StateChanged(state glitch.SessionState) {
	glog.V(2).Infof("sim: state %s", state)
}

// CycleFinished implements glitch.Observer
func (r *Recorder) CycleFinished(cycle glitch.Cycle) {
	r.seq++

	var pulses []trace.Pulse
	if cycle.Fired() {
		pulses = r.board.Pulses()
	}
	m := trace.NewMeasurement(r.seq, cycle, pulses)

	if err := trace.Check(m); err != nil {
		glog.Warningf("sim: cycle %d (%s): %v", r.seq, cycle.Request, err)
	} else {
		glog.V(1).Infof("sim: cycle %d (%s) -> %s", r.seq, cycle.Request, cycle.Response)
	}

	if r.sink != nil {
		r.sink(m)
	}
}
