// SPDX-FileCopyrightText: (C) 2024 Intel Corporation
// SPDX-License-Identifier: Apache 2.0

package sw_test

import (
	"bytes"
	"errors"
	"testing"

	"github.com/fido-device-onboard/go-dice"
	"github.com/fido-device-onboard/go-dice/sw"
)

func TestKeyVault(t *testing.T) {
	kv := sw.NewKeyVault()
	write := func(id dice.KeyID, usage dice.KeyUsage, material string) error {
		return kv.WriteKey(dice.KeyWriteArgs{ID: id, Usage: usage}, dice.NewSecret([]byte(material)))
	}
	read := func(id dice.KeyID, usage dice.KeyUsage) (dice.Secret, error) {
		return kv.ReadKey(dice.KeyReadArgs{ID: id}, usage)
	}

	t.Run("empty slot", func(t *testing.T) {
		if _, err := read(dice.KeyID1, dice.KeyUsageHmacKey); !errors.Is(err, dice.ErrKeyNotWritten) {
			t.Fatalf("expected ErrKeyNotWritten, got %v", err)
		}
		if _, err := kv.KeyUsage(dice.KeyID1); !errors.Is(err, dice.ErrKeyNotWritten) {
			t.Fatalf("expected ErrKeyNotWritten, got %v", err)
		}
		if err := kv.EraseKey(dice.KeyID1); err != nil {
			t.Fatalf("erasing an empty slot: %v", err)
		}
	})

	t.Run("usage", func(t *testing.T) {
		if err := write(dice.KeyID2, dice.KeyUsageHmacKey|dice.KeyUsageEccKeyGenSeed, "seed"); err != nil {
			t.Fatal(err)
		}
		s, err := read(dice.KeyID2, dice.KeyUsageEccKeyGenSeed)
		if err != nil {
			t.Fatal(err)
		}
		if !bytes.Equal(s.Material(), []byte("seed")) {
			t.Errorf("read %q", s.Material())
		}
		if _, err := read(dice.KeyID2, dice.KeyUsageEccPrivateKey); !errors.Is(err, dice.ErrCapabilityMismatch) {
			t.Fatalf("expected ErrCapabilityMismatch, got %v", err)
		}
		if err := write(dice.KeyID2, 0, "no usage"); !errors.Is(err, dice.ErrCapabilityMismatch) {
			t.Fatalf("expected ErrCapabilityMismatch, got %v", err)
		}
	})

	t.Run("overwrite replaces usage", func(t *testing.T) {
		if err := write(dice.KeyID3, dice.KeyUsageHmacKey, "first"); err != nil {
			t.Fatal(err)
		}
		if err := write(dice.KeyID3, dice.KeyUsageEccPrivateKey, "second"); err != nil {
			t.Fatal(err)
		}
		if _, err := read(dice.KeyID3, dice.KeyUsageHmacKey); !errors.Is(err, dice.ErrCapabilityMismatch) {
			t.Fatalf("expected ErrCapabilityMismatch, got %v", err)
		}
		usage, err := kv.KeyUsage(dice.KeyID3)
		if err != nil {
			t.Fatal(err)
		}
		if usage != dice.KeyUsageEccPrivateKey {
			t.Errorf("unexpected usage %s", usage)
		}
	})

	t.Run("erase", func(t *testing.T) {
		if err := write(dice.KeyID4, dice.KeyUsageEccPrivateKey, "key"); err != nil {
			t.Fatal(err)
		}
		if err := kv.EraseKey(dice.KeyID4); err != nil {
			t.Fatal(err)
		}
		if _, err := read(dice.KeyID4, dice.KeyUsageEccPrivateKey); !errors.Is(err, dice.ErrKeyNotWritten) {
			t.Fatalf("expected ErrKeyNotWritten, got %v", err)
		}
		if err := kv.EraseKey(dice.KeyID4); err != nil {
			t.Fatalf("erase is not idempotent: %v", err)
		}
	})

	t.Run("returned material is a copy", func(t *testing.T) {
		if err := write(dice.KeyID5, dice.KeyUsageHmacKey, "abc"); err != nil {
			t.Fatal(err)
		}
		s, _ := read(dice.KeyID5, dice.KeyUsageHmacKey)
		s.Zeroize()
		again, _ := read(dice.KeyID5, dice.KeyUsageHmacKey)
		if !bytes.Equal(again.Material(), []byte("abc")) {
			t.Error("zeroizing a read secret cleared the slot")
		}
	})

	t.Run("invalid slot", func(t *testing.T) {
		if err := write(dice.KeyID(8), dice.KeyUsageHmacKey, "x"); !errors.Is(err, dice.ErrInvalidKeySlot) {
			t.Fatalf("expected ErrInvalidKeySlot, got %v", err)
		}
		if _, err := read(dice.KeyID(8), dice.KeyUsageHmacKey); !errors.Is(err, dice.ErrInvalidKeySlot) {
			t.Fatalf("expected ErrInvalidKeySlot, got %v", err)
		}
	})

	t.Run("empty material", func(t *testing.T) {
		if err := write(dice.KeyID1, dice.KeyUsageHmacKey, ""); err == nil {
			t.Fatal("expected empty key to be rejected")
		}
	})
}

func TestKeyVaultLocks(t *testing.T) {
	kv := sw.NewKeyVault()
	args := dice.KeyWriteArgs{ID: dice.KeyID6, Usage: dice.KeyUsageHmacKey}
	if err := kv.WriteKey(args, dice.NewSecret([]byte("cdi"))); err != nil {
		t.Fatal(err)
	}

	if err := kv.LockWrite(dice.KeyID6); err != nil {
		t.Fatal(err)
	}
	if err := kv.WriteKey(args, dice.NewSecret([]byte("other"))); !errors.Is(err, dice.ErrKeyLocked) {
		t.Fatalf("expected ErrKeyLocked on write, got %v", err)
	}
	if err := kv.EraseKey(dice.KeyID6); !errors.Is(err, dice.ErrKeyLocked) {
		t.Fatalf("expected ErrKeyLocked on erase, got %v", err)
	}
	if _, err := kv.ReadKey(dice.KeyReadArgs{ID: dice.KeyID6}, dice.KeyUsageHmacKey); err != nil {
		t.Fatalf("write lock prevented use: %v", err)
	}

	if err := kv.LockUse(dice.KeyID6); err != nil {
		t.Fatal(err)
	}
	if _, err := kv.ReadKey(dice.KeyReadArgs{ID: dice.KeyID6}, dice.KeyUsageHmacKey); !errors.Is(err, dice.ErrKeyLocked) {
		t.Fatalf("expected ErrKeyLocked on read, got %v", err)
	}

	kv.Clear()
	if _, err := kv.KeyUsage(dice.KeyID6); !errors.Is(err, dice.ErrKeyNotWritten) {
		t.Fatalf("expected clear to empty the slot, got %v", err)
	}
	if err := kv.WriteKey(args, dice.NewSecret([]byte("cdi"))); err != nil {
		t.Fatalf("expected clear to release locks: %v", err)
	}
}
