// Copyright 2023 Intel Corporation
// SPDX-License-Identifier: Apache 2.0

// Package memory implements a data vault using non-persistent memory. It
// keeps chain state between simulated resets of one process.
package memory

import (
	"bytes"
	"context"
	"sync"

	"github.com/fido-device-onboard/go-dice"
)

// DataVault implements dice.DataVault.
type DataVault struct {
	mu         sync.Mutex
	journal    []dice.Measurement
	identities map[string]*dice.ChainIdentity
}

var _ dice.DataVault = (*DataVault)(nil)

// NewDataVault initializes an empty data vault.
func NewDataVault() *DataVault {
	return &DataVault{
		identities: make(map[string]*dice.ChainIdentity),
	}
}

// Journal returns a copy of the measurement journal.
func (dv *DataVault) Journal(context.Context) ([]dice.Measurement, error) {
	dv.mu.Lock()
	defer dv.mu.Unlock()

	journal := make([]dice.Measurement, len(dv.journal))
	for i, m := range dv.journal {
		journal[i] = dice.Measurement{Kind: m.Kind, Data: bytes.Clone(m.Data)}
	}
	return journal, nil
}

// AppendJournal adds records to the journal.
func (dv *DataVault) AppendJournal(_ context.Context, records ...dice.Measurement) error {
	dv.mu.Lock()
	defer dv.mu.Unlock()

	for _, m := range records {
		dv.journal = append(dv.journal, dice.Measurement{Kind: m.Kind, Data: bytes.Clone(m.Data)})
	}
	return nil
}

// ClearJournal removes all journal records.
func (dv *DataVault) ClearJournal(context.Context) error {
	dv.mu.Lock()
	defer dv.mu.Unlock()

	dv.journal = nil
	return nil
}

// Identity returns a stored identity.
func (dv *DataVault) Identity(_ context.Context, name string) (*dice.ChainIdentity, error) {
	dv.mu.Lock()
	defer dv.mu.Unlock()

	id, ok := dv.identities[name]
	if !ok {
		return nil, dice.ErrNotFound
	}
	c := *id
	c.TBS = bytes.Clone(id.TBS)
	return &c, nil
}

// SetIdentity stores an identity.
func (dv *DataVault) SetIdentity(_ context.Context, name string, id *dice.ChainIdentity) error {
	dv.mu.Lock()
	defer dv.mu.Unlock()

	c := *id
	c.TBS = bytes.Clone(id.TBS)
	dv.identities[name] = &c
	return nil
}
