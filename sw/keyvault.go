// SPDX-FileCopyrightText: (C) 2024 Intel Corporation
// SPDX-License-Identifier: Apache 2.0

package sw

import (
	"fmt"
	"log/slog"
	"sync"

	"github.com/fido-device-onboard/go-dice"
)

type slot struct {
	material  []byte
	usage     dice.KeyUsage
	writeLock bool
	useLock   bool
}

// KeyVault is an in-memory key vault that enforces usage flags and locks in
// the same way as the hardware vault.
type KeyVault struct {
	mu    sync.Mutex
	slots [dice.NumKeyIDs]slot
}

var _ dice.KeyVault = (*KeyVault)(nil)

// NewKeyVault returns an empty vault.
func NewKeyVault() *KeyVault { return new(KeyVault) }

func (kv *KeyVault) slot(id dice.KeyID) (*slot, error) {
	if !id.Valid() {
		return nil, fmt.Errorf("%w: %s", dice.ErrInvalidKeySlot, id)
	}
	return &kv.slots[id], nil
}

// WriteKey implements dice.KeyVault.
func (kv *KeyVault) WriteKey(args dice.KeyWriteArgs, material dice.Secret) error {
	kv.mu.Lock()
	defer kv.mu.Unlock()

	s, err := kv.slot(args.ID)
	if err != nil {
		return err
	}
	if s.writeLock {
		return fmt.Errorf("write %s: %w", args.ID, dice.ErrKeyLocked)
	}
	if args.Usage == 0 {
		return fmt.Errorf("write %s without usage: %w", args.ID, dice.ErrCapabilityMismatch)
	}
	if material.Len() == 0 {
		return fmt.Errorf("write %s: empty key", args.ID)
	}
	clear(s.material)
	s.material = append([]byte(nil), material.Material()...)
	s.usage = args.Usage
	slog.Debug("key vault write", "key", args.ID, "usage", args.Usage)
	return nil
}

// ReadKey implements dice.KeyVault.
func (kv *KeyVault) ReadKey(args dice.KeyReadArgs, usage dice.KeyUsage) (dice.Secret, error) {
	kv.mu.Lock()
	defer kv.mu.Unlock()

	s, err := kv.slot(args.ID)
	if err != nil {
		return dice.Secret{}, err
	}
	if s.material == nil {
		return dice.Secret{}, fmt.Errorf("read %s: %w", args.ID, dice.ErrKeyNotWritten)
	}
	if s.useLock {
		return dice.Secret{}, fmt.Errorf("read %s: %w", args.ID, dice.ErrKeyLocked)
	}
	if !s.usage.Permits(usage) {
		return dice.Secret{}, fmt.Errorf("read %s as %s, stored as %s: %w", args.ID, usage, s.usage, dice.ErrCapabilityMismatch)
	}
	return dice.NewSecret(s.material), nil
}

// EraseKey implements dice.KeyVault.
func (kv *KeyVault) EraseKey(id dice.KeyID) error {
	kv.mu.Lock()
	defer kv.mu.Unlock()

	s, err := kv.slot(id)
	if err != nil {
		return err
	}
	if s.writeLock {
		return fmt.Errorf("erase %s: %w", id, dice.ErrKeyLocked)
	}
	clear(s.material)
	s.material, s.usage = nil, 0
	slog.Debug("key vault erase", "key", id)
	return nil
}

// KeyUsage implements dice.KeyVault.
func (kv *KeyVault) KeyUsage(id dice.KeyID) (dice.KeyUsage, error) {
	kv.mu.Lock()
	defer kv.mu.Unlock()

	s, err := kv.slot(id)
	if err != nil {
		return 0, err
	}
	if s.material == nil {
		return 0, fmt.Errorf("%s: %w", id, dice.ErrKeyNotWritten)
	}
	return s.usage, nil
}

// LockWrite prevents the slot from being written or erased until Clear.
func (kv *KeyVault) LockWrite(id dice.KeyID) error {
	kv.mu.Lock()
	defer kv.mu.Unlock()

	s, err := kv.slot(id)
	if err != nil {
		return err
	}
	s.writeLock = true
	return nil
}

// LockUse prevents the slot from being read until Clear.
func (kv *KeyVault) LockUse(id dice.KeyID) error {
	kv.mu.Lock()
	defer kv.mu.Unlock()

	s, err := kv.slot(id)
	if err != nil {
		return err
	}
	s.useLock = true
	return nil
}

// Clear erases every slot and releases all locks, as on a reset.
func (kv *KeyVault) Clear() {
	kv.mu.Lock()
	defer kv.mu.Unlock()

	for i := range kv.slots {
		clear(kv.slots[i].material)
		kv.slots[i] = slot{}
	}
}
