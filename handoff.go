// SPDX-FileCopyrightText: (C) 2024 Intel Corporation
// SPDX-License-Identifier: Apache 2.0

package dice

import (
	"fmt"
	"io"

	"github.com/fxamacker/cbor/v2"
)

// Hand-off table wire constants
const (
	HandOffMagic   uint32 = 0x4846_544F // "HFTO"
	HandOffVersion uint16 = 1
)

// HandOffTable is the wire form of the record passed from the previous boot
// stage. Use HandOff to access a validated table.
type HandOffTable struct {
	Magic   uint32 `cbor:"0,keyasint"`
	Version uint16 `cbor:"1,keyasint"`

	FmcCdi     KeyID                  `cbor:"2,keyasint"`
	FmcPrivKey KeyID                  `cbor:"3,keyasint"`
	FmcPubKey  Ecc384PubKey           `cbor:"4,keyasint"`
	FmcSN      [SubjectSNSize]byte    `cbor:"5,keyasint"`
	FmcKeyID   [SubjectKeyIDSize]byte `cbor:"6,keyasint"`

	RtEntryPoint uint32                 `cbor:"7,keyasint"`
	RtTci        [Ecc384ScalarSize]byte `cbor:"8,keyasint"`
	RtSvn        uint32                 `cbor:"9,keyasint"`
	OwnerPkHash  [Ecc384ScalarSize]byte `cbor:"10,keyasint"`
}

// HandOff is a read-only view of a validated hand-off table.
type HandOff struct {
	t HandOffTable
}

// NewHandOff validates a table. Magic and version are set if zero.
func NewHandOff(t HandOffTable) (*HandOff, error) {
	if t.Magic == 0 && t.Version == 0 {
		t.Magic, t.Version = HandOffMagic, HandOffVersion
	}
	if t.Magic != HandOffMagic {
		return nil, fmt.Errorf("%w: bad magic 0x%08X", ErrInvalidHandOff, t.Magic)
	}
	if t.Version != HandOffVersion {
		return nil, fmt.Errorf("%w: unsupported version %d", ErrInvalidHandOff, t.Version)
	}
	if !t.FmcCdi.Valid() || !t.FmcPrivKey.Valid() || t.FmcCdi == t.FmcPrivKey {
		return nil, fmt.Errorf("%w: fmc key slots %s and %s", ErrInvalidHandOff, t.FmcCdi, t.FmcPrivKey)
	}
	if t.FmcPubKey.IsZero() {
		return nil, fmt.Errorf("%w: missing fmc public key", ErrInvalidHandOff)
	}
	return &HandOff{t: t}, nil
}

// LoadHandOff decodes and validates a CBOR encoded hand-off table.
func LoadHandOff(r io.Reader) (*HandOff, error) {
	var t HandOffTable
	if err := cbor.NewDecoder(r).Decode(&t); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidHandOff, err)
	}
	return NewHandOff(t)
}

// Table returns a copy of the wire form.
func (h *HandOff) Table() HandOffTable { return h.t }

// WriteTo encodes the table as deterministic CBOR.
func (h *HandOff) WriteTo(w io.Writer) (int64, error) {
	b, err := detEncMode.Marshal(h.t)
	if err != nil {
		return 0, err
	}
	n, err := w.Write(b)
	return int64(n), err
}

// FmcCdi is the slot holding the CDI inherited from the previous stage.
func (h *HandOff) FmcCdi() KeyID { return h.t.FmcCdi }

// FmcPrivKey is the slot holding the private key of the previous stage's
// alias identity.
func (h *HandOff) FmcPrivKey() KeyID { return h.t.FmcPrivKey }

// FmcPubKey is the public key of the previous stage's alias identity.
func (h *HandOff) FmcPubKey() Ecc384PubKey { return h.t.FmcPubKey }

// FmcSN is the subject serial number of the previous stage's alias identity.
func (h *HandOff) FmcSN() [SubjectSNSize]byte { return h.t.FmcSN }

// FmcKeyID is the subject key identifier of the previous stage's alias
// identity.
func (h *HandOff) FmcKeyID() [SubjectKeyIDSize]byte { return h.t.FmcKeyID }

// RtEntryPoint is the address control is transferred to.
func (h *HandOff) RtEntryPoint() uint32 { return h.t.RtEntryPoint }

// RtTci is the SHA-384 digest of the runtime image.
func (h *HandOff) RtTci() [Ecc384ScalarSize]byte { return h.t.RtTci }

// RtSvn is the security version number of the runtime image.
func (h *HandOff) RtSvn() uint32 { return h.t.RtSvn }

// OwnerPkHash is the SHA-384 digest of the owner public keys.
func (h *HandOff) OwnerPkHash() [Ecc384ScalarSize]byte { return h.t.OwnerPkHash }

// DiceInputFromHandOff builds the input of the runtime alias layer.
func DiceInputFromHandOff(h *HandOff) *DiceInput {
	return &DiceInput{
		Cdi:         h.FmcCdi(),
		SubjPrivKey: KeyIDRtPriv,
		AuthKeyPair: Ecc384KeyPair{
			PrivKey: h.FmcPrivKey(),
			PubKey:  h.FmcPubKey(),
		},
		AuthSN:    h.FmcSN(),
		AuthKeyID: h.FmcKeyID(),
		UdsKey:    KeyIDUds,
	}
}
