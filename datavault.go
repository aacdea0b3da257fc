// SPDX-FileCopyrightText: (C) 2024 Intel Corporation
// SPDX-License-Identifier: Apache 2.0

package dice

import "context"

// Names of the identities recorded in the data vault.
const (
	FmcAliasIdentity = "fmc_alias"
	RtAliasIdentity  = "rt_alias"
)

// ChainIdentity is the public record of a derived layer identity.
type ChainIdentity struct {
	PubKey    Ecc384PubKey           `cbor:"1,keyasint"`
	SN        [SubjectSNSize]byte    `cbor:"2,keyasint"`
	KeyID     [SubjectKeyIDSize]byte `cbor:"3,keyasint"`
	CertSN    [CertSNSize]byte       `cbor:"4,keyasint"`
	TBS       []byte                 `cbor:"5,keyasint,omitempty"`
	Signature Ecc384Signature        `cbor:"6,keyasint"`
}

// Identity returns the public record of a layer's output.
func (out *DiceOutput) Identity() *ChainIdentity {
	return &ChainIdentity{
		PubKey:    out.SubjKeyPair.PubKey,
		SN:        out.SubjSN,
		KeyID:     out.SubjKeyID,
		CertSN:    out.CertSN,
		TBS:       out.TBS,
		Signature: out.Signature,
	}
}

// DataVault persists public chain state across resets. It never holds
// secrets.
type DataVault interface {
	// Journal returns the measurement records this stage extended since the
	// last cold reset, in extension order. Run clears it on a cold reset.
	Journal(ctx context.Context) ([]Measurement, error)

	// AppendJournal adds records to the end of the journal.
	AppendJournal(ctx context.Context, records ...Measurement) error

	// ClearJournal removes all records.
	ClearJournal(ctx context.Context) error

	// Identity returns the record stored under name or ErrNotFound.
	Identity(ctx context.Context, name string) (*ChainIdentity, error)

	// SetIdentity stores or replaces the record under name.
	SetIdentity(ctx context.Context, name string, id *ChainIdentity) error
}
