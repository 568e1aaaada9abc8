// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package glitch

import "strconv"

// Separators written by EncodeCommand. The decoder accepts any non-digit.
const (
	FieldSeparator   = ','
	CommandSeparator = '\n'
)

// EncodeCommand encodes a request as G<delay>,<pulse>\n
func EncodeCommand(req GlitchRequest) []byte {
	buf := make([]byte, 0, 16)
	buf = append(buf, TriggerByte)
	buf = strconv.AppendUint(buf, uint64(req.DelayTicks), 10)
	buf = append(buf, FieldSeparator)
	buf = strconv.AppendUint(buf, uint64(req.PulseTicks), 10)
	buf = append(buf, CommandSeparator)
	return buf
}
