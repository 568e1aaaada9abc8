// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package glitch

import "fmt"

// ConfigureClocks brings up the board's clock tree and checks the rates it
// reports against cfg: the fine clock must run at FrequencyRatio times the
// coarse clock and the peripheral domain at half the fine clock.
//
// Any error wraps ErrClockConfig.
func ConfigureClocks(board Board, cfg Config) (ClockRates, error) {
	rates, err := board.ConfigureClocks()
	if err != nil {
		return ClockRates{}, fmt.Errorf("%w: %w", ErrClockConfig, err)
	}
	if rates.FineHz != rates.CoarseHz*cfg.FrequencyRatio {
		return rates, fmt.Errorf("%w: fine clock %d Hz is not %dx coarse clock %d Hz",
			ErrClockConfig, rates.FineHz, cfg.FrequencyRatio, rates.CoarseHz)
	}
	if rates.PeripheralHz*2 != rates.FineHz {
		return rates, fmt.Errorf("%w: peripheral clock %d Hz is not half of fine clock %d Hz",
			ErrClockConfig, rates.PeripheralHz, rates.FineHz)
	}
	return rates, nil
}
