// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package glitch

import (
	"errors"
	"fmt"
)

// Response is a line the controller sends to the operator.
type Response int

// Responses
const (
	ResponseReady Response = iota
	ResponseBeacon
	ResponseFail
	ResponseGlitchTooLong
	ResponsePostResetTooShort
	ResponseDone
)

// Line terminator appended to every response
const LineEnding = "\r\n"

// MaxResponseLine bounds the line buffer of ResponseDecoder.
const MaxResponseLine = 64

var (
	// ErrRejected is the host-side error for a plain FAIL response.
	ErrRejected = errors.New("request rejected")

	// ErrUnknownResponse is returned for a line that is not a known response.
	ErrUnknownResponse = errors.New("unknown response")

	// ErrLineTooLong is returned when a response line exceeds MaxResponseLine.
	ErrLineTooLong = errors.New("response line too long")
)

var responseText = map[Response]string{
	ResponseReady:             "READY",
	ResponseBeacon:            ".",
	ResponseFail:              "FAIL",
	ResponseGlitchTooLong:     "FAIL: GLITCH TOO LONG",
	ResponsePostResetTooShort: "FAIL: POST RESET TOO SHORT",
	ResponseDone:              "DONE",
}

// Text returns the response without its terminator
func (r Response) Text() string {
	if s, ok := responseText[r]; ok {
		return s
	}
	return fmt.Sprintf("UNKNOWN(%d)", int(r))
}

func (r Response) String() string {
	return r.Text()
}

// Bytes returns the response as sent on the wire
func (r Response) Bytes() []byte {
	return []byte(r.Text() + LineEnding)
}

// Terminal reports whether r ends a command: DONE or any failure.
func (r Response) Terminal() bool {
	switch r {
	case ResponseDone, ResponseFail, ResponseGlitchTooLong, ResponsePostResetTooShort:
		return true
	}
	return false
}

// Failed reports whether r is one of the FAIL responses.
func (r Response) Failed() bool {
	return r.Terminal() && r != ResponseDone
}

// Err maps a failure response back onto the package sentinels. It returns
// nil for non-failures.
func (r Response) Err() error {
	switch r {
	case ResponseFail:
		return ErrRejected
	case ResponseGlitchTooLong:
		return ErrPulseTooLong
	case ResponsePostResetTooShort:
		return ErrPostResetTooShort
	}
	return nil
}

// ResponseFor returns the response reported for the outcome of a command.
// A nil error means the glitch was delivered.
func ResponseFor(err error) Response {
	switch {
	case err == nil:
		return ResponseDone
	case errors.Is(err, ErrPulseTooLong):
		return ResponseGlitchTooLong
	case errors.Is(err, ErrPostResetTooShort):
		return ResponsePostResetTooShort
	default:
		return ResponseFail
	}
}

// ParseResponse parses one line, with or without its terminator.
func ParseResponse(line string) (Response, error) {
	for len(line) > 0 && (line[len(line)-1] == '\n' || line[len(line)-1] == '\r') {
		line = line[:len(line)-1]
	}
	for r, s := range responseText {
		if s == line {
			return r, nil
		}
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownResponse, line)
}

// ResponseDecoder splits a controller byte stream into responses.
// It accepts LF or CRLF line endings and skips empty lines. A '.' at the
// start of a line is reported immediately as a beacon.
type ResponseDecoder struct {
	buf []byte
}

// NewResponseDecoder creates a new response decoder
func NewResponseDecoder() *ResponseDecoder {
	return &ResponseDecoder{buf: make([]byte, 0, MaxResponseLine)}
}

// Reset discards any partial line
func (d *ResponseDecoder) Reset() {
	d.buf = d.buf[:0]
}

// DecodeByte processes a single byte. Returns a response when one is
// complete, or nil.
func (d *ResponseDecoder) DecodeByte(b byte) (*Response, error) {
	switch b {
	case '\r':
		return nil, nil
	case '\n':
		if len(d.buf) == 0 {
			return nil, nil
		}
		line := string(d.buf)
		d.Reset()
		r, err := ParseResponse(line)
		if err != nil {
			return nil, err
		}
		return &r, nil
	case '.':
		if len(d.buf) == 0 {
			r := ResponseBeacon
			return &r, nil
		}
	}

	if len(d.buf) >= MaxResponseLine {
		d.Reset()
		return nil, ErrLineTooLong
	}
	d.buf = append(d.buf, b)
	return nil, nil
}
