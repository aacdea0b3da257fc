// SPDX-FileCopyrightText: (C) 2024 Intel Corporation
// SPDX-License-Identifier: Apache 2.0

package dicetest

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/fido-device-onboard/go-dice"
)

// RunDataVaultTestSuite checks the behavior of a dice.DataVault
// implementation. newVault must return an empty vault for every call.
func RunDataVaultTestSuite(t *testing.T, newVault func(t *testing.T) dice.DataVault) {
	ctx := context.Background()

	t.Run("empty journal", func(t *testing.T) {
		dv := newVault(t)
		journal, err := dv.Journal(ctx)
		if err != nil {
			t.Fatal(err)
		}
		if len(journal) != 0 {
			t.Fatalf("expected empty journal, got %d records", len(journal))
		}
	})

	t.Run("journal keeps order", func(t *testing.T) {
		dv := newVault(t)
		records := []dice.Measurement{
			{Kind: dice.FmcTci, Data: bytes.Repeat([]byte{0x01}, 48)},
			dice.SvnMeasurement(dice.FmcSvn, 7),
			{Kind: dice.RtTci, Data: bytes.Repeat([]byte{0x02}, 48)},
		}
		if err := dv.AppendJournal(ctx, records[:2]...); err != nil {
			t.Fatal(err)
		}
		if err := dv.AppendJournal(ctx, records[2]); err != nil {
			t.Fatal(err)
		}
		journal, err := dv.Journal(ctx)
		if err != nil {
			t.Fatal(err)
		}
		if len(journal) != len(records) {
			t.Fatalf("expected %d records, got %d", len(records), len(journal))
		}
		for i := range records {
			if journal[i].Kind != records[i].Kind || !bytes.Equal(journal[i].Data, records[i].Data) {
				t.Errorf("record %d: expected %v, got %v", i, records[i], journal[i])
			}
		}
	})

	t.Run("duplicate records are kept", func(t *testing.T) {
		dv := newVault(t)
		m := dice.SvnMeasurement(dice.RtSvn, 1)
		if err := dv.AppendJournal(ctx, m, m); err != nil {
			t.Fatal(err)
		}
		journal, err := dv.Journal(ctx)
		if err != nil {
			t.Fatal(err)
		}
		if len(journal) != 2 {
			t.Fatalf("expected 2 records, got %d", len(journal))
		}
	})

	t.Run("clear journal", func(t *testing.T) {
		dv := newVault(t)
		if err := dv.AppendJournal(ctx, dice.SvnMeasurement(dice.RtSvn, 1)); err != nil {
			t.Fatal(err)
		}
		if err := dv.ClearJournal(ctx); err != nil {
			t.Fatal(err)
		}
		journal, err := dv.Journal(ctx)
		if err != nil {
			t.Fatal(err)
		}
		if len(journal) != 0 {
			t.Fatalf("expected empty journal, got %d records", len(journal))
		}
	})

	t.Run("identity not found", func(t *testing.T) {
		dv := newVault(t)
		if _, err := dv.Identity(ctx, dice.RtAliasIdentity); !errors.Is(err, dice.ErrNotFound) {
			t.Fatalf("expected ErrNotFound, got %v", err)
		}
	})

	t.Run("identity round trip", func(t *testing.T) {
		dv := newVault(t)
		id := testIdentity(0x10)
		if err := dv.SetIdentity(ctx, dice.RtAliasIdentity, id); err != nil {
			t.Fatal(err)
		}
		got, err := dv.Identity(ctx, dice.RtAliasIdentity)
		if err != nil {
			t.Fatal(err)
		}
		assertIdentity(t, id, got)

		if _, err := dv.Identity(ctx, dice.FmcAliasIdentity); !errors.Is(err, dice.ErrNotFound) {
			t.Fatalf("expected identities to be stored by name, got %v", err)
		}
	})

	t.Run("identity replace", func(t *testing.T) {
		dv := newVault(t)
		if err := dv.SetIdentity(ctx, dice.FmcAliasIdentity, testIdentity(0x20)); err != nil {
			t.Fatal(err)
		}
		next := testIdentity(0x30)
		if err := dv.SetIdentity(ctx, dice.FmcAliasIdentity, next); err != nil {
			t.Fatal(err)
		}
		got, err := dv.Identity(ctx, dice.FmcAliasIdentity)
		if err != nil {
			t.Fatal(err)
		}
		assertIdentity(t, next, got)
	})
}

func testIdentity(seed byte) *dice.ChainIdentity {
	id := &dice.ChainIdentity{TBS: []byte{0xa1, 0x01, seed}}
	for i := range id.PubKey.X {
		id.PubKey.X[i] = seed
		id.PubKey.Y[i] = seed + 1
		id.Signature.R[i] = seed + 2
		id.Signature.S[i] = seed + 3
	}
	for i := range id.SN {
		id.SN[i] = 'A' + seed%16
	}
	for i := range id.KeyID {
		id.KeyID[i] = seed + 4
		id.CertSN[i] = (seed + 5) & 0x7f
	}
	return id
}

func assertIdentity(t *testing.T, want, got *dice.ChainIdentity) {
	t.Helper()
	if got.PubKey != want.PubKey {
		t.Errorf("public key: expected %x, got %x", want.PubKey.ToDER(), got.PubKey.ToDER())
	}
	if got.SN != want.SN {
		t.Errorf("serial number: expected %s, got %s", want.SN[:], got.SN[:])
	}
	if got.KeyID != want.KeyID {
		t.Errorf("key id: expected %x, got %x", want.KeyID, got.KeyID)
	}
	if got.CertSN != want.CertSN {
		t.Errorf("cert serial number: expected %x, got %x", want.CertSN, got.CertSN)
	}
	if !bytes.Equal(got.TBS, want.TBS) {
		t.Errorf("tbs: expected %x, got %x", want.TBS, got.TBS)
	}
	if got.Signature != want.Signature {
		t.Errorf("signature mismatch")
	}
}
