// SPDX-FileCopyrightText: (C) 2024 Intel Corporation
// SPDX-License-Identifier: Apache 2.0

package sw

import (
	"crypto"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/hmac"
	"crypto/sha256"
	"crypto/sha512"
	"fmt"
	"math/big"

	"github.com/fido-device-onboard/go-dice"
	"github.com/fido-device-onboard/go-dice/internal/nistkdf"
)

// Sha256 is a software SHA-256 engine.
type Sha256 struct{}

var _ dice.Sha256 = Sha256{}

// Digest implements dice.Sha256.
func (Sha256) Digest(data []byte) ([32]byte, error) { return sha256.Sum256(data), nil }

// Hmac384 is a software HMAC-SHA384 engine bound to a key vault.
type Hmac384 struct {
	Vault dice.KeyVault
}

var _ dice.Hmac384 = (*Hmac384)(nil)

// Hmac implements dice.Hmac384.
func (h *Hmac384) Hmac(key dice.KeyReadArgs, data []byte, tag dice.KeyWriteArgs) error {
	k, err := h.Vault.ReadKey(key, dice.KeyUsageHmacKey)
	if err != nil {
		return err
	}
	defer k.Zeroize()

	mac := hmac.New(sha512.New384, k.Material())
	_, _ = mac.Write(data)
	out := dice.NewSecret(mac.Sum(nil))
	defer out.Zeroize()

	return h.Vault.WriteKey(tag, out)
}

// keyGenLabel separates key generation from other uses of a seed.
var keyGenLabel = []byte("ECC384-KEYGEN")

// Ecc384 is a software P-384 engine bound to a key vault.
type Ecc384 struct {
	Vault dice.KeyVault
}

var _ dice.Ecc384 = (*Ecc384)(nil)

// KeyPair implements dice.Ecc384.
//
// The private scalar is derived from the seed with the counter mode KDF,
// using the nonce as context, and reduced as in FIPS 186-4 B.4.1 with 64
// extra bits.
func (e *Ecc384) KeyPair(seed dice.KeyReadArgs, nonce [dice.Ecc384ScalarSize]byte, priv dice.KeyWriteArgs) (dice.Ecc384PubKey, error) {
	s, err := e.Vault.ReadKey(seed, dice.KeyUsageEccKeyGenSeed)
	if err != nil {
		return dice.Ecc384PubKey{}, err
	}
	defer s.Zeroize()

	const bits = (dice.Ecc384ScalarSize + 8) * 8
	c := nistkdf.KDF(crypto.SHA384, s.Material(), keyGenLabel, nonce[:], bits)
	defer clear(c)

	nMinus1 := new(big.Int).Sub(elliptic.P384().Params().N, big.NewInt(1))
	d := new(big.Int).SetBytes(c)
	d.Mod(d, nMinus1)
	d.Add(d, big.NewInt(1))

	scalar := d.FillBytes(make([]byte, dice.Ecc384ScalarSize))
	d.SetInt64(0)
	key, err := ecdsa.ParseRawPrivateKey(elliptic.P384(), scalar)
	if err != nil {
		clear(scalar)
		return dice.Ecc384PubKey{}, fmt.Errorf("error deriving private key: %w", err)
	}
	pub, err := dice.Ecc384PubKeyFromECDSA(&key.PublicKey)
	if err != nil {
		clear(scalar)
		return dice.Ecc384PubKey{}, err
	}

	out := dice.NewSecret(scalar)
	clear(scalar)
	defer out.Zeroize()
	if err := e.Vault.WriteKey(priv, out); err != nil {
		return dice.Ecc384PubKey{}, err
	}
	return pub, nil
}

// Sign implements dice.Ecc384. Signatures are deterministic (RFC 6979).
func (e *Ecc384) Sign(priv dice.KeyReadArgs, data []byte) (dice.Ecc384Signature, error) {
	s, err := e.Vault.ReadKey(priv, dice.KeyUsageEccPrivateKey)
	if err != nil {
		return dice.Ecc384Signature{}, err
	}
	defer s.Zeroize()

	key, err := ecdsa.ParseRawPrivateKey(elliptic.P384(), s.Material())
	if err != nil {
		return dice.Ecc384Signature{}, fmt.Errorf("invalid private key in %s: %w", priv.ID, err)
	}
	digest := sha512.Sum384(data)
	der, err := key.Sign(nil, digest[:], crypto.SHA384)
	if err != nil {
		return dice.Ecc384Signature{}, err
	}
	var sig dice.Ecc384Signature
	if err := sig.UnmarshalASN1(der); err != nil {
		return dice.Ecc384Signature{}, err
	}
	return sig, nil
}

// Verify implements dice.Ecc384.
func (e *Ecc384) Verify(pub dice.Ecc384PubKey, data []byte, sig dice.Ecc384Signature) (bool, error) {
	key, err := pub.ECDSA()
	if err != nil {
		return false, err
	}
	der, err := sig.MarshalASN1()
	if err != nil {
		return false, err
	}
	digest := sha512.Sum384(data)
	return ecdsa.VerifyASN1(key, digest[:], der), nil
}
