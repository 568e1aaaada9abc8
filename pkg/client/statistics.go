// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package client

import (
	"fmt"
	"time"

	"github.com/Thermoquad/glitchctl/pkg/glitch"
)

// Statistics tracks glitch attempts and their outcomes
type Statistics struct {
	StartTime      time.Time
	LastUpdateTime time.Time

	// Counters
	Attempts          uint64
	Completed         uint64
	Failed            uint64
	Rejected          uint64
	GlitchTooLong     uint64
	PostResetTooShort uint64
	Ready             uint64
	Beacons           uint64
	DecodeErrors      uint64

	// Rates (calculated)
	AttemptRate float64 // attempts/sec
}

// NewStatistics creates a new statistics tracker
func NewStatistics() *Statistics {
	now := time.Now()
	return &Statistics{
		StartTime:      now,
		LastUpdateTime: now,
	}
}

// Observe counts one response from the controller
func (s *Statistics) Observe(r glitch.Response) {
	switch r {
	case glitch.ResponseReady:
		s.Ready++
	case glitch.ResponseBeacon:
		s.Beacons++
	case glitch.ResponseDone:
		s.Completed++
	case glitch.ResponseFail:
		s.Failed++
		s.Rejected++
	case glitch.ResponseGlitchTooLong:
		s.Failed++
		s.GlitchTooLong++
	case glitch.ResponsePostResetTooShort:
		s.Failed++
		s.PostResetTooShort++
	}

	// Update timestamp for rate calculation
	s.LastUpdateTime = time.Now()
}

// CalculateRates calculates the attempt rate
func (s *Statistics) CalculateRates() {
	elapsed := time.Since(s.StartTime).Seconds()
	if elapsed > 0 {
		s.AttemptRate = float64(s.Attempts) / elapsed
	}
}

// String returns a formatted statistics summary
func (s *Statistics) String() string {
	s.CalculateRates()

	var completedPercent, failedPercent float64
	if s.Attempts > 0 {
		completedPercent = float64(s.Completed) * 100.0 / float64(s.Attempts)
		failedPercent = float64(s.Failed) * 100.0 / float64(s.Attempts)
	}

	elapsed := time.Since(s.StartTime)

	result := fmt.Sprintf("=== Statistics (%.0f seconds) ===\n", elapsed.Seconds())
	result += fmt.Sprintf("Attempts:        %8d\n", s.Attempts)
	result += fmt.Sprintf("Completed:       %8d (%.1f%%)\n", s.Completed, completedPercent)

	if s.Failed > 0 {
		result += fmt.Sprintf("Failed:          %8d (%.1f%%)\n", s.Failed, failedPercent)
		if s.Rejected > 0 {
			result += fmt.Sprintf("  Rejected:         %5d\n", s.Rejected)
		}
		if s.GlitchTooLong > 0 {
			result += fmt.Sprintf("  Glitch Too Long:  %5d\n", s.GlitchTooLong)
		}
		if s.PostResetTooShort > 0 {
			result += fmt.Sprintf("  Post Reset Short: %5d\n", s.PostResetTooShort)
		}
	}
	if s.DecodeErrors > 0 {
		result += fmt.Sprintf("Decode Errors:   %8d\n", s.DecodeErrors)
	}

	result += fmt.Sprintf("Beacons:         %8d\n", s.Beacons)
	result += fmt.Sprintf("Attempt Rate:    %8.1f attempts/sec\n", s.AttemptRate)
	result += "================================\n"

	return result
}

// Reset resets all statistics counters
func (s *Statistics) Reset() {
	*s = *NewStatistics()
}
