// SPDX-FileCopyrightText: (C) 2024 Intel Corporation
// SPDX-License-Identifier: Apache 2.0

package sw

import (
	"crypto/sha512"
	"fmt"
	"sync"

	"github.com/fido-device-onboard/go-dice"
)

// PcrBank is a pair of SHA-384 measurement registers. The journey register
// can only be cleared by a cold Reset.
type PcrBank struct {
	mu   sync.Mutex
	regs [2][sha512.Size384]byte
}

var _ dice.PcrBank = (*PcrBank)(nil)

func (b *PcrBank) reg(id dice.PcrID) (*[sha512.Size384]byte, error) {
	if int(id) >= len(b.regs) {
		return nil, fmt.Errorf("invalid register %s", id)
	}
	return &b.regs[id], nil
}

// ExtendPcr implements dice.PcrBank.
func (b *PcrBank) ExtendPcr(id dice.PcrID, data []byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	r, err := b.reg(id)
	if err != nil {
		return err
	}
	h := sha512.New384()
	_, _ = h.Write(r[:])
	_, _ = h.Write(data)
	h.Sum(r[:0])
	return nil
}

// ReadPcr implements dice.PcrBank.
func (b *PcrBank) ReadPcr(id dice.PcrID) ([]byte, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	r, err := b.reg(id)
	if err != nil {
		return nil, err
	}
	return append([]byte(nil), r[:]...), nil
}

// ErasePcr implements dice.PcrBank.
func (b *PcrBank) ErasePcr(id dice.PcrID) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	r, err := b.reg(id)
	if err != nil {
		return err
	}
	if id == dice.PcrID0 {
		return fmt.Errorf("erase %s: %w", id, dice.ErrPcrLocked)
	}
	clear(r[:])
	return nil
}

// Reset applies the hardware reset behavior: the current register is always
// cleared and the journey register only on a cold reset.
func (b *PcrBank) Reset(reason dice.ResetReason) {
	b.mu.Lock()
	defer b.mu.Unlock()

	clear(b.regs[dice.PcrID1][:])
	if reason == dice.ColdReset {
		clear(b.regs[dice.PcrID0][:])
	}
}
