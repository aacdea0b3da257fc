// SPDX-FileCopyrightText: (C) 2024 Intel Corporation
// SPDX-License-Identifier: Apache 2.0

package dice

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"errors"
	"fmt"
	"math/big"

	"golang.org/x/crypto/cryptobyte"
	"golang.org/x/crypto/cryptobyte/asn1"
)

// Ecc384ScalarSize is the size in bytes of a P-384 coordinate or scalar.
const Ecc384ScalarSize = 48

// Ecc384PubKey is an uncompressed P-384 public key.
type Ecc384PubKey struct {
	X [Ecc384ScalarSize]byte `cbor:"1,keyasint"`
	Y [Ecc384ScalarSize]byte `cbor:"2,keyasint"`
}

// ToDER returns the SEC1 uncompressed point encoding: 0x04 || X || Y.
func (pub Ecc384PubKey) ToDER() []byte {
	der := make([]byte, 0, 1+2*Ecc384ScalarSize)
	der = append(der, 0x04)
	der = append(der, pub.X[:]...)
	return append(der, pub.Y[:]...)
}

// IsZero reports whether the key is unset.
func (pub Ecc384PubKey) IsZero() bool { return pub == Ecc384PubKey{} }

// ECDSA converts the key for use with crypto/ecdsa. It fails if the point is
// not on the curve.
func (pub Ecc384PubKey) ECDSA() (*ecdsa.PublicKey, error) {
	key, err := ecdsa.ParseUncompressedPublicKey(elliptic.P384(), pub.ToDER())
	if err != nil {
		return nil, fmt.Errorf("invalid P-384 public key: %w", err)
	}
	return key, nil
}

// Ecc384PubKeyFromECDSA converts a P-384 public key from crypto/ecdsa.
func Ecc384PubKeyFromECDSA(key *ecdsa.PublicKey) (Ecc384PubKey, error) {
	if key.Curve != elliptic.P384() {
		return Ecc384PubKey{}, fmt.Errorf("unsupported curve: %s", key.Curve.Params().Name)
	}
	point, err := key.Bytes()
	if err != nil {
		return Ecc384PubKey{}, err
	}
	var pub Ecc384PubKey
	copy(pub.X[:], point[1:1+Ecc384ScalarSize])
	copy(pub.Y[:], point[1+Ecc384ScalarSize:])
	return pub, nil
}

// Ecc384Signature is a raw P-384 ECDSA signature.
type Ecc384Signature struct {
	R [Ecc384ScalarSize]byte `cbor:"1,keyasint"`
	S [Ecc384ScalarSize]byte `cbor:"2,keyasint"`
}

// IsZero reports whether the signature is unset.
func (sig Ecc384Signature) IsZero() bool { return sig == Ecc384Signature{} }

// MarshalASN1 encodes the signature as an ASN.1 DER Ecdsa-Sig-Value, the form
// carried in the signatureValue of a certificate.
func (sig Ecc384Signature) MarshalASN1() ([]byte, error) {
	var b cryptobyte.Builder
	b.AddASN1(asn1.SEQUENCE, func(b *cryptobyte.Builder) {
		b.AddASN1BigInt(new(big.Int).SetBytes(sig.R[:]))
		b.AddASN1BigInt(new(big.Int).SetBytes(sig.S[:]))
	})
	return b.Bytes()
}

// UnmarshalASN1 decodes an ASN.1 DER Ecdsa-Sig-Value.
func (sig *Ecc384Signature) UnmarshalASN1(der []byte) error {
	var (
		r, s  = new(big.Int), new(big.Int)
		inner cryptobyte.String
	)
	input := cryptobyte.String(der)
	if !input.ReadASN1(&inner, asn1.SEQUENCE) ||
		!input.Empty() ||
		!inner.ReadASN1Integer(r) ||
		!inner.ReadASN1Integer(s) ||
		!inner.Empty() {
		return errors.New("invalid ASN.1 ECDSA signature")
	}
	if r.Sign() < 0 || s.Sign() < 0 || r.BitLen() > 8*Ecc384ScalarSize || s.BitLen() > 8*Ecc384ScalarSize {
		return errors.New("ECDSA signature scalar out of range")
	}
	r.FillBytes(sig.R[:])
	s.FillBytes(sig.S[:])
	return nil
}

// Ecc384KeyPair is a P-384 key pair whose private half never leaves the key
// vault.
type Ecc384KeyPair struct {
	PrivKey KeyID
	PubKey  Ecc384PubKey
}
