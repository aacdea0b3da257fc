// SPDX-FileCopyrightText: (C) 2024 Intel Corporation
// SPDX-License-Identifier: Apache 2.0

package dice

// Sizes of certificate naming fields
const (
	SubjectSNSize    = 64
	SubjectKeyIDSize = 20
	CertSNSize       = 20
)

// SubjectSerialNumber returns the subject serial number of a public key: the
// SHA-256 digest of its DER encoding as 64 uppercase hex characters.
func SubjectSerialNumber(env *Env, pub Ecc384PubKey) ([SubjectSNSize]byte, error) {
	digest, err := Sha256Digest(env, pub.ToDER())
	if err != nil {
		return [SubjectSNSize]byte{}, err
	}
	return hexName(digest), nil
}

// SubjectKeyID returns the first 20 bytes of the SHA-256 digest of the
// public key's DER encoding.
func SubjectKeyID(env *Env, pub Ecc384PubKey) ([SubjectKeyIDSize]byte, error) {
	digest, err := Sha256Digest(env, pub.ToDER())
	if err != nil {
		return [SubjectKeyIDSize]byte{}, err
	}
	var keyID [SubjectKeyIDSize]byte
	copy(keyID[:], digest[:])
	return keyID, nil
}

// CertSerialNumber returns a certificate serial number for the public key.
// It is the first 20 bytes of the SHA-256 digest of the DER encoding with the
// top bit cleared, so that it encodes as a positive integer.
//
// It must not be substituted for SubjectKeyID even though both are cut from
// the same digest.
func CertSerialNumber(env *Env, pub Ecc384PubKey) ([CertSNSize]byte, error) {
	digest, err := Sha256Digest(env, pub.ToDER())
	if err != nil {
		return [CertSNSize]byte{}, err
	}
	var sn [CertSNSize]byte
	copy(sn[:], digest[:])
	sn[0] &= 0x7f
	return sn, nil
}

func hexName(digest [32]byte) (name [SubjectSNSize]byte) {
	for i, b := range digest {
		name[2*i] = hexChar(b >> 4)
		name[2*i+1] = hexChar(b & 0x0f)
	}
	return name
}

func hexChar(nibble byte) byte {
	if nibble < 10 {
		return '0' + nibble
	}
	return 55 + nibble
}
