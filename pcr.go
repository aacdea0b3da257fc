// SPDX-FileCopyrightText: (C) 2024 Intel Corporation
// SPDX-License-Identifier: Apache 2.0

package dice

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"log/slog"
)

// PcrID names one of the two measurement registers.
type PcrID uint8

// Measurement registers
const (
	// PcrID0 is the journey register. It accumulates measurements across
	// resets and is only cleared by a cold reset.
	PcrID0 PcrID = 0
	// PcrID1 is the current register. It is cleared on every reset.
	PcrID1 PcrID = 1
)

// String implements fmt.Stringer.
func (id PcrID) String() string {
	switch id {
	case PcrID0:
		return "PCR0"
	case PcrID1:
		return "PCR1"
	default:
		return fmt.Sprintf("PCR(%d)", uint8(id))
	}
}

// PcrBank is a bank of cumulative-hash measurement registers.
type PcrBank interface {
	// ExtendPcr replaces the register value r with H(r || data).
	ExtendPcr(id PcrID, data []byte) error

	// ReadPcr returns the register value.
	ReadPcr(id PcrID) ([]byte, error)

	// ErasePcr zeroes the register. It fails with ErrPcrLocked if the
	// register may not be cleared by software.
	ErasePcr(id PcrID) error
}

// MeasurementKind identifies what a measurement record describes.
type MeasurementKind uint8

// Measurement record kinds
const (
	FmcTci MeasurementKind = iota + 1
	FmcSvn
	RtTci
	RtSvn
	OwnerPkHash
)

// String implements fmt.Stringer.
func (k MeasurementKind) String() string {
	switch k {
	case FmcTci:
		return "fmc_tci"
	case FmcSvn:
		return "fmc_svn"
	case RtTci:
		return "rt_tci"
	case RtSvn:
		return "rt_svn"
	case OwnerPkHash:
		return "owner_pk_hash"
	default:
		return fmt.Sprintf("measurement(%d)", uint8(k))
	}
}

// Measurement is one record extended into both registers. The journal is the
// ordered list of records this stage extended since the last cold reset.
// Records of earlier stages are not journaled: those stages extend them into
// the journey register on a cold reset and into the current register on
// every reset.
type Measurement struct {
	Kind MeasurementKind `cbor:"1,keyasint"`
	Data []byte          `cbor:"2,keyasint"`
}

// SvnMeasurement encodes a security version number as 4 little endian bytes.
func SvnMeasurement(kind MeasurementKind, svn uint32) Measurement {
	return Measurement{Kind: kind, Data: binary.LittleEndian.AppendUint32(nil, svn)}
}

// RtMeasurements returns the records describing the runtime image named by
// the hand-off, in extension order.
func RtMeasurements(h *HandOff) []Measurement {
	tci, ownerPkHash := h.RtTci(), h.OwnerPkHash()
	return []Measurement{
		{Kind: RtTci, Data: tci[:]},
		SvnMeasurement(RtSvn, h.RtSvn()),
		{Kind: OwnerPkHash, Data: ownerPkHash[:]},
	}
}

// ExtendPcrs extends the journey register and then the current register
// with each record.
func ExtendPcrs(env *Env, records []Measurement) error {
	for _, id := range []PcrID{PcrID0, PcrID1} {
		if err := extendPcr(env, id, records); err != nil {
			return err
		}
	}
	return nil
}

func extendPcr(env *Env, id PcrID, records []Measurement) error {
	for _, m := range records {
		slog.Debug("extend pcr", "pcr", id, "kind", m.Kind, "len", len(m.Data))
		if err := env.PcrBank.ExtendPcr(id, m.Data); err != nil {
			return fmt.Errorf("error extending %s with %s: %w", id, m.Kind, err)
		}
	}
	return nil
}

// ReplayCurrent extends the current register with every record of the
// journal. The current register must hold what earlier stages extended this
// cycle, after which it agrees with the journey register.
func ReplayCurrent(env *Env, journal []Measurement) error {
	return extendPcr(env, PcrID1, journal)
}

// ReplayJourney extends the journey register with every record of the
// journal. It reconstructs a retained journey register on platforms whose
// registers do not survive a reset of the simulation.
func ReplayJourney(env *Env, journal []Measurement) error {
	return extendPcr(env, PcrID0, journal)
}

// AssertPcrsEqual fails with ErrMeasurementDisagreement unless both registers
// hold the same value. It returns the current register value.
func AssertPcrsEqual(env *Env) ([]byte, error) {
	pcr0, err := env.PcrBank.ReadPcr(PcrID0)
	if err != nil {
		return nil, fmt.Errorf("error reading %s: %w", PcrID0, err)
	}
	pcr1, err := env.PcrBank.ReadPcr(PcrID1)
	if err != nil {
		return nil, fmt.Errorf("error reading %s: %w", PcrID1, err)
	}
	if !bytes.Equal(pcr0, pcr1) {
		slog.Debug("pcr mismatch", "pcr0", fmt.Sprintf("%x", pcr0), "pcr1", fmt.Sprintf("%x", pcr1))
		return nil, ErrMeasurementDisagreement
	}
	return pcr1, nil
}
