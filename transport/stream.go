// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

// Package transport adapts host byte streams to glitch.Transport.
package transport

import (
	"io"
	"sync"
	"time"

	"github.com/golang/glog"

	"github.com/Thermoquad/glitchctl/pkg/glitch"
)

// Stream is a glitch.Transport over an io.ReadWriter. A pump goroutine
// reads ahead into a buffered channel so ReceiveByte can time out.
type Stream struct {
	w io.Writer

	mu sync.Mutex

	data chan byte
	done chan struct{}
	err  error
}

// NewStream starts pumping rw
func NewStream(rw io.ReadWriter) *Stream {
	s := &Stream{
		w:    rw,
		data: make(chan byte, 256),
		done: make(chan struct{}),
	}
	go s.pump(rw)
	return s
}

func (s *Stream) pump(r io.Reader) {
	buf := make([]byte, 64)
	for {
		n, err := r.Read(buf)
		for i := 0; i < n; i++ {
			glog.V(3).Infof("rx 0x%02X", buf[i])
			s.data <- buf[i]
		}
		if err != nil {
			s.err = err
			close(s.done)
			return
		}
	}
}

// Send implements glitch.Transport
func (s *Stream) Send(p []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	glog.V(2).Infof("tx %q", p)
	_, err := s.w.Write(p)
	return err
}

// ReceiveByte implements glitch.Transport. Once the reader has failed and
// all buffered bytes are consumed, the read error is returned.
func (s *Stream) ReceiveByte(timeout time.Duration) (byte, error) {
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case b := <-s.data:
		return b, nil
	case <-s.done:
		// Drain anything the pump queued before failing
		select {
		case b := <-s.data:
			return b, nil
		default:
			return 0, s.err
		}
	case <-timer.C:
		return 0, glitch.ErrTimeout
	}
}

// Done is closed when the underlying reader fails
func (s *Stream) Done() <-chan struct{} {
	return s.done
}
