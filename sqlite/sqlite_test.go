// SPDX-FileCopyrightText: (C) 2024 Intel Corporation
// SPDX-License-Identifier: Apache 2.0

package sqlite_test

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/fido-device-onboard/go-dice"
	"github.com/fido-device-onboard/go-dice/dicetest"
	"github.com/fido-device-onboard/go-dice/sqlite"
	"github.com/fido-device-onboard/go-dice/sw"
)

func TestDataVault(t *testing.T) {
	t.Run("plaintext", func(t *testing.T) {
		dicetest.RunDataVaultTestSuite(t, func(t *testing.T) dice.DataVault {
			return newDB(t, "")
		})
	})

	t.Run("encrypted", func(t *testing.T) {
		dicetest.RunDataVaultTestSuite(t, func(t *testing.T) dice.DataVault {
			return newDB(t, "test_password")
		})
	})
}

func TestReopen(t *testing.T) {
	ctx := context.Background()
	filename := filepath.Join(t.TempDir(), "db.test")

	db, err := sqlite.Open(filename, "test_password")
	if err != nil {
		t.Fatal(err)
	}
	if err := db.AppendJournal(ctx, dice.SvnMeasurement(dice.RtSvn, 3)); err != nil {
		t.Fatal(err)
	}
	if err := db.Close(); err != nil {
		t.Fatal(err)
	}

	t.Run("wrong password", func(t *testing.T) {
		if _, err := sqlite.Open(filename, "not_the_password"); err == nil {
			t.Fatal("expected error opening with wrong password")
		}
	})

	t.Run("right password", func(t *testing.T) {
		db, err := sqlite.Open(filename, "test_password")
		if err != nil {
			t.Fatal(err)
		}
		defer func() { _ = db.Close() }()

		journal, err := db.Journal(ctx)
		if err != nil {
			t.Fatal(err)
		}
		if len(journal) != 1 || journal[0].Kind != dice.RtSvn {
			t.Fatalf("unexpected journal after reopen: %v", journal)
		}
	})
}

// Chain state persisted by one process must let the next process continue
// with a warm reset.
func TestWarmResetAcrossProcesses(t *testing.T) {
	dicetest.DebugLog(t)
	ctx := context.Background()
	filename := filepath.Join(t.TempDir(), "db.test")

	boot := func(reason dice.ResetReason) *dice.Result {
		t.Helper()

		db, err := sqlite.Open(filename, "")
		if err != nil {
			t.Fatal(err)
		}
		defer func() { _ = db.Close() }()
		db.DebugLog = dicetest.TestingLog(t)

		// A new platform per boot: nothing but the database survives
		env := sw.NewPlatform().Env(db, reason)
		rom := &sw.Rom{
			Uds:            []byte("0123456789abcdef0123456789abcdef0123456789abcdef"),
			RtEntryPoint:   0x4000_0000,
			RestoreJourney: true,
		}
		rom.RtTci[0] = 0x42
		h, err := rom.Boot(ctx, env)
		if err != nil {
			t.Fatal(err)
		}
		res, err := dice.Run(ctx, env, h)
		if err != nil {
			t.Fatal(err)
		}
		return res
	}

	cold := boot(dice.ColdReset)
	warm := boot(dice.WarmReset)
	if cold.Output.SubjKeyPair.PubKey != warm.Output.SubjKeyPair.PubKey {
		t.Fatal("expected warm reset to reproduce the cold reset identity")
	}

	// A second cold reset starts a new journal
	coldAgain := boot(dice.ColdReset)
	warmAgain := boot(dice.WarmReset)
	if coldAgain.Output.SubjKeyPair.PubKey != cold.Output.SubjKeyPair.PubKey ||
		warmAgain.Output.SubjKeyPair.PubKey != cold.Output.SubjKeyPair.PubKey {
		t.Fatal("expected repeated cold and warm resets to reproduce the identity")
	}

	db, err := sqlite.Open(filename, "")
	if err != nil {
		t.Fatal(err)
	}
	defer func() { _ = db.Close() }()
	journal, err := db.Journal(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(journal) != 3 {
		t.Errorf("expected the records of the last cold reset, got %v", journal)
	}
}
