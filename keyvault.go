// SPDX-FileCopyrightText: (C) 2024 Intel Corporation
// SPDX-License-Identifier: Apache 2.0

package dice

import (
	"fmt"
	"strings"
)

// KeyID is a handle to a slot of the protected key vault.
type KeyID uint8

// Key vault slots.
const (
	KeyID0 KeyID = iota
	KeyID1
	KeyID2
	KeyID3
	KeyID4
	KeyID5
	KeyID6
	KeyID7

	// NumKeyIDs is the number of slots in the key vault.
	NumKeyIDs = int(KeyID7) + 1
)

// Slot conventions shared with the adjacent boot stages.
const (
	KeyIDUds        = KeyID0
	KeyIDLDevIDCdi  = KeyID6
	KeyIDLDevIDPriv = KeyID5
	KeyIDFmcCdi     = KeyID6
	KeyIDFmcPriv    = KeyID7
	KeyIDRtCdi      = KeyID6
	KeyIDRtPriv     = KeyID5
)

// Valid reports whether id names a slot of the vault.
func (id KeyID) Valid() bool { return int(id) < NumKeyIDs }

// String implements fmt.Stringer.
func (id KeyID) String() string { return fmt.Sprintf("KeyId%d", uint8(id)) }

// KeyUsage is the set of operations a slot's material may be used for. It is
// attached when the slot is written.
type KeyUsage uint8

// Key usage flags
const (
	KeyUsageHmacKey KeyUsage = 1 << iota
	KeyUsageHmacData
	KeyUsageEccKeyGenSeed
	KeyUsageEccPrivateKey
	KeyUsageEccData
)

// Permits reports whether every flag of want is set.
func (u KeyUsage) Permits(want KeyUsage) bool { return want != 0 && u&want == want }

var usageNames = []struct {
	flag KeyUsage
	name string
}{
	{KeyUsageHmacKey, "hmac_key"},
	{KeyUsageHmacData, "hmac_data"},
	{KeyUsageEccKeyGenSeed, "ecc_key_gen_seed"},
	{KeyUsageEccPrivateKey, "ecc_private_key"},
	{KeyUsageEccData, "ecc_data"},
}

// String implements fmt.Stringer.
func (u KeyUsage) String() string {
	if u == 0 {
		return "none"
	}
	var names []string
	for _, n := range usageNames {
		if u&n.flag != 0 {
			names = append(names, n.name)
		}
	}
	return strings.Join(names, "|")
}

// KeyReadArgs selects a slot to be consumed by a crypto engine.
type KeyReadArgs struct {
	ID KeyID
}

// KeyWriteArgs selects a slot to receive the result of a crypto engine along
// with the usage attached to the result.
type KeyWriteArgs struct {
	ID    KeyID
	Usage KeyUsage
}

// Secret is key material in transit between a key vault and the crypto
// engine consuming or producing it. It never leaves either of them: the
// derivation flows only handle KeyIDs.
type Secret struct {
	material []byte
}

// NewSecret wraps key material produced by a crypto engine. The slice is
// copied.
func NewSecret(material []byte) Secret {
	return Secret{material: append([]byte(nil), material...)}
}

// Material returns the wrapped bytes. It is only meant to be called by crypto
// engine and key vault implementations.
func (s Secret) Material() []byte { return s.material }

// Len returns the size of the material in bytes.
func (s Secret) Len() int { return len(s.material) }

// Zeroize overwrites the material.
func (s Secret) Zeroize() { clear(s.material) }

// String redacts the material so that it cannot end up in logs.
func (s Secret) String() string { return fmt.Sprintf("[secret %d bytes]", len(s.material)) }

// GoString redacts the material for %#v.
func (s Secret) GoString() string { return s.String() }

// KeyVault is slot-indexed protected key storage with per-slot usage
// enforcement.
//
// ReadKey must fail with ErrKeyNotWritten for an empty or erased slot and
// with ErrCapabilityMismatch when the stored usage does not permit the
// requested usage. EraseKey must succeed for slots that were never written.
type KeyVault interface {
	// WriteKey stores material in a slot, replacing any previous contents
	// and usage.
	WriteKey(args KeyWriteArgs, material Secret) error

	// ReadKey returns the material of a slot for use as a key or seed by a
	// crypto engine.
	ReadKey(args KeyReadArgs, usage KeyUsage) (Secret, error)

	// EraseKey clears the material and usage of a slot.
	EraseKey(id KeyID) error

	// KeyUsage returns the usage attached to a written slot.
	KeyUsage(id KeyID) (KeyUsage, error)
}
