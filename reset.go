// SPDX-FileCopyrightText: (C) 2024 Intel Corporation
// SPDX-License-Identifier: Apache 2.0

package dice

import (
	"fmt"
	"strings"
)

// ResetReason is the reason for the current boot as latched by hardware.
type ResetReason uint8

// Reset reasons. Any value not listed is treated as UnknownReset.
const (
	UnknownReset ResetReason = 0
	ColdReset    ResetReason = 1
	WarmReset    ResetReason = 2
	UpdateReset  ResetReason = 3
)

// ParseResetReason decodes a raw latched register value.
func ParseResetReason(raw uint32) ResetReason {
	switch r := ResetReason(raw); r {
	case ColdReset, WarmReset, UpdateReset:
		if uint32(r) == raw {
			return r
		}
	}
	return UnknownReset
}

// String implements fmt.Stringer.
func (r ResetReason) String() string {
	switch r {
	case ColdReset:
		return "cold"
	case WarmReset:
		return "warm"
	case UpdateReset:
		return "update"
	case UnknownReset:
		return "unknown"
	default:
		return fmt.Sprintf("unknown(%d)", uint8(r))
	}
}

// MarshalText implements encoding.TextMarshaler.
func (r ResetReason) MarshalText() ([]byte, error) { return []byte(r.String()), nil }

// UnmarshalText implements encoding.TextUnmarshaler.
func (r *ResetReason) UnmarshalText(text []byte) error {
	switch strings.ToLower(string(text)) {
	case "cold":
		*r = ColdReset
	case "warm":
		*r = WarmReset
	case "update":
		*r = UpdateReset
	case "unknown":
		*r = UnknownReset
	default:
		return fmt.Errorf("invalid reset reason %q: must be one of cold, warm, update, unknown", text)
	}
	return nil
}
