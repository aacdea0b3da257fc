// SPDX-FileCopyrightText: (C) 2024 Intel Corporation
// SPDX-License-Identifier: Apache 2.0

package dice_test

import (
	"bytes"
	"crypto/sha512"
	"errors"
	"slices"
	"testing"

	"github.com/fido-device-onboard/go-dice"
	"github.com/fido-device-onboard/go-dice/dicetest"
)

func TestSvnMeasurement(t *testing.T) {
	m := dice.SvnMeasurement(dice.RtSvn, 0x0102_0304)
	if m.Kind != dice.RtSvn || !bytes.Equal(m.Data, []byte{0x04, 0x03, 0x02, 0x01}) {
		t.Errorf("unexpected measurement %v", m)
	}
}

func TestExtendPcrs(t *testing.T) {
	m := dicetest.NewMockEnv(dice.ColdReset)
	records := []dice.Measurement{
		{Kind: dice.RtTci, Data: []byte("tci")},
		dice.SvnMeasurement(dice.RtSvn, 1),
	}
	if err := dice.ExtendPcrs(m.Env, records); err != nil {
		t.Fatal(err)
	}

	// r' = SHA384(r || data)
	expected := make([]byte, sha512.Size384)
	for _, rec := range records {
		sum := sha512.Sum384(append(expected, rec.Data...))
		expected = sum[:]
	}
	value, err := dice.AssertPcrsEqual(m.Env)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(value, expected) {
		t.Errorf("got %x, expected %x", value, expected)
	}
}

func TestReplay(t *testing.T) {
	m := dicetest.NewMockEnv(dice.ColdReset)
	earlier := []dice.Measurement{{Kind: dice.FmcTci, Data: []byte("fmc")}}
	journal := []dice.Measurement{
		{Kind: dice.RtTci, Data: []byte("rt")},
		dice.SvnMeasurement(dice.RtSvn, 1),
	}
	if err := dice.ExtendPcrs(m.Env, earlier); err != nil {
		t.Fatal(err)
	}
	if err := dice.ExtendPcrs(m.Env, journal); err != nil {
		t.Fatal(err)
	}

	// Earlier stages extend the current register again after a reset
	m.Pcrs.Reset(dice.WarmReset)
	if err := dice.ReplayCurrent(m.Env, earlier); err != nil {
		t.Fatal(err)
	}
	if _, err := dice.AssertPcrsEqual(m.Env); !errors.Is(err, dice.ErrMeasurementDisagreement) {
		t.Fatalf("expected registers to disagree before replay, got %v", err)
	}
	if err := dice.ReplayCurrent(m.Env, journal); err != nil {
		t.Fatal(err)
	}
	if _, err := dice.AssertPcrsEqual(m.Env); err != nil {
		t.Fatalf("expected replay to restore agreement: %v", err)
	}

	// Replaying on top of stale records does not agree
	m.Pcrs.Reset(dice.WarmReset)
	if err := m.Pcrs.ExtendPcr(dice.PcrID1, []byte("stale")); err != nil {
		t.Fatal(err)
	}
	if err := dice.ReplayCurrent(m.Env, slices.Concat(earlier, journal)); err != nil {
		t.Fatal(err)
	}
	if _, err := dice.AssertPcrsEqual(m.Env); !errors.Is(err, dice.ErrMeasurementDisagreement) {
		t.Fatalf("expected stale register to disagree, got %v", err)
	}

	m.Pcrs.Reset(dice.ColdReset)
	if err := dice.ReplayJourney(m.Env, slices.Concat(earlier, journal)); err != nil {
		t.Fatal(err)
	}
	if err := dice.ReplayCurrent(m.Env, slices.Concat(earlier, journal)); err != nil {
		t.Fatal(err)
	}
	if _, err := dice.AssertPcrsEqual(m.Env); err != nil {
		t.Fatalf("expected restored journey to agree: %v", err)
	}
}

func TestRtMeasurements(t *testing.T) {
	h := testHandOff(t, 0x01)
	records := dice.RtMeasurements(h)
	if len(records) != 3 {
		t.Fatalf("expected 3 records, got %d", len(records))
	}
	tci, owner := h.RtTci(), h.OwnerPkHash()
	if !bytes.Equal(records[0].Data, tci[:]) || !bytes.Equal(records[2].Data, owner[:]) {
		t.Error("records do not carry the hand-off measurements")
	}
	if !bytes.Equal(records[1].Data, []byte{2, 0, 0, 0}) {
		t.Errorf("unexpected svn record %x", records[1].Data)
	}
}
