// SPDX-FileCopyrightText: (C) 2024 Intel Corporation
// SPDX-License-Identifier: Apache 2.0

package dice

import (
	"fmt"
	"log/slog"
)

// Sha256 is a stateless SHA-256 engine. It is only used for naming.
type Sha256 interface {
	Digest(data []byte) ([32]byte, error)
}

// Hmac384 is an HMAC-SHA384 engine keyed by a key vault slot. The tag is
// written to a key vault slot and never returned.
type Hmac384 interface {
	Hmac(key KeyReadArgs, data []byte, tag KeyWriteArgs) error
}

// Ecc384 is a P-384 engine whose private keys live in key vault slots.
type Ecc384 interface {
	// KeyPair deterministically generates a key pair from the seed slot and
	// nonce, writing the private key to priv.
	KeyPair(seed KeyReadArgs, nonce [Ecc384ScalarSize]byte, priv KeyWriteArgs) (Ecc384PubKey, error)

	// Sign signs the SHA-384 digest of data with the private key slot.
	Sign(priv KeyReadArgs, data []byte) (Ecc384Signature, error)

	// Verify checks a signature over the SHA-384 digest of data.
	Verify(pub Ecc384PubKey, data []byte, sig Ecc384Signature) (bool, error)
}

// wrapCrypto keeps the most specific code of an engine error. Engine errors
// without a code become ErrCryptoFailure.
func wrapCrypto(op string, err error) error {
	if _, ok := CodeOf(err); ok {
		return fmt.Errorf("%s: %w", op, err)
	}
	return fmt.Errorf("%s: %w: %w", op, ErrCryptoFailure, err)
}

// Sha256Digest computes the SHA-256 digest of data.
func Sha256Digest(env *Env, data []byte) ([32]byte, error) {
	digest, err := env.Sha256.Digest(data)
	if err != nil {
		return [32]byte{}, wrapCrypto("sha256", err)
	}
	return digest, nil
}

// Hmac384Mac computes an HMAC-SHA384 tag over data keyed by the key slot and
// writes it to the tag slot. The tag may be used both as an HMAC key and as a
// key generation seed. The key and tag slots may be the same.
func Hmac384Mac(env *Env, key KeyID, data []byte, tag KeyID) (KeyID, error) {
	if !key.Valid() || !tag.Valid() {
		return 0, fmt.Errorf("hmac384 %s -> %s: %w", key, tag, ErrInvalidKeySlot)
	}
	slog.Debug("hmac384", "key", key, "tag", tag, "data", len(data))
	if err := env.Hmac384.Hmac(
		KeyReadArgs{ID: key},
		data,
		KeyWriteArgs{ID: tag, Usage: KeyUsageHmacKey | KeyUsageEccKeyGenSeed},
	); err != nil {
		return 0, wrapCrypto("hmac384", err)
	}
	return tag, nil
}

// Ecc384KeyGen generates a P-384 key pair from the seed slot. The nonce is
// zero so that the same seed always yields the same key pair.
func Ecc384KeyGen(env *Env, seed, priv KeyID) (Ecc384KeyPair, error) {
	if !seed.Valid() || !priv.Valid() {
		return Ecc384KeyPair{}, fmt.Errorf("ecc384 keygen %s -> %s: %w", seed, priv, ErrInvalidKeySlot)
	}
	slog.Debug("ecc384 keygen", "seed", seed, "priv", priv)
	pub, err := env.Ecc384.KeyPair(
		KeyReadArgs{ID: seed},
		[Ecc384ScalarSize]byte{},
		KeyWriteArgs{ID: priv, Usage: KeyUsageEccPrivateKey},
	)
	if err != nil {
		return Ecc384KeyPair{}, wrapCrypto("ecc384 keygen", err)
	}
	return Ecc384KeyPair{PrivKey: priv, PubKey: pub}, nil
}

// Ecc384Sign signs data with a private key slot.
func Ecc384Sign(env *Env, priv KeyID, data []byte) (Ecc384Signature, error) {
	if !priv.Valid() {
		return Ecc384Signature{}, fmt.Errorf("ecc384 sign %s: %w", priv, ErrInvalidKeySlot)
	}
	sig, err := env.Ecc384.Sign(KeyReadArgs{ID: priv}, data)
	if err != nil {
		return Ecc384Signature{}, wrapCrypto("ecc384 sign", err)
	}
	return sig, nil
}

// Ecc384Verify checks a signature and fails with ErrSignatureVerification if
// it does not match.
func Ecc384Verify(env *Env, pub Ecc384PubKey, data []byte, sig Ecc384Signature) error {
	ok, err := env.Ecc384.Verify(pub, data, sig)
	if err != nil {
		return wrapCrypto("ecc384 verify", err)
	}
	if !ok {
		return ErrSignatureVerification
	}
	return nil
}
