// SPDX-FileCopyrightText: (C) 2024 Intel Corporation
// SPDX-License-Identifier: Apache 2.0

package dice

import (
	"encoding/binary"

	"github.com/fxamacker/cbor/v2"
)

var detEncMode = func() cbor.EncMode {
	em, err := cbor.CoreDetEncOptions().EncMode()
	if err != nil {
		panic(err)
	}
	return em
}()

// TcbInfo describes the code a layer identity is bound to.
type TcbInfo struct {
	Tci         [Ecc384ScalarSize]byte `cbor:"1,keyasint"`
	Svn         uint32                 `cbor:"2,keyasint"`
	OwnerPkHash []byte                 `cbor:"3,keyasint,omitempty"`
}

// measurement is the data a layer derives its CDI from when it is not bound
// to the measurement registers: Tci || LE32(Svn).
func (tcb TcbInfo) measurement() []byte {
	return binary.LittleEndian.AppendUint32(append([]byte(nil), tcb.Tci[:]...), tcb.Svn)
}

// CertTBS is the to-be-signed portion of an alias certificate. It is encoded
// as deterministic CBOR, not as an X.509 TBSCertificate.
type CertTBS struct {
	SerialNumber   [CertSNSize]byte       `cbor:"1,keyasint"`
	IssuerSN       [SubjectSNSize]byte    `cbor:"2,keyasint"`
	SubjectSN      [SubjectSNSize]byte    `cbor:"3,keyasint"`
	AuthorityKeyID [SubjectKeyIDSize]byte `cbor:"4,keyasint"`
	SubjectKeyID   [SubjectKeyIDSize]byte `cbor:"5,keyasint"`
	PublicKey      []byte                 `cbor:"6,keyasint"`
	Tcb            TcbInfo                `cbor:"7,keyasint"`
}

// certTBS has the fields of CertTBS without its methods, so that encoding it
// does not call MarshalBinary again.
type certTBS CertTBS

// MarshalBinary encodes the structure that is signed.
func (tbs *CertTBS) MarshalBinary() ([]byte, error) { return detEncMode.Marshal((*certTBS)(tbs)) }

// UnmarshalBinary decodes a structure encoded with MarshalBinary.
func (tbs *CertTBS) UnmarshalBinary(data []byte) error {
	return cbor.Unmarshal(data, (*certTBS)(tbs))
}
