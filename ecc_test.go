// SPDX-FileCopyrightText: (C) 2024 Intel Corporation
// SPDX-License-Identifier: Apache 2.0

package dice_test

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/sha512"
	"testing"

	"github.com/fido-device-onboard/go-dice"
)

func TestSignatureASN1(t *testing.T) {
	var sig dice.Ecc384Signature
	sig.R[0], sig.R[47] = 0x80, 0x01 // needs a sign pad byte
	sig.S[47] = 0x02                 // leading zeros are dropped

	der, err := sig.MarshalASN1()
	if err != nil {
		t.Fatal(err)
	}
	var got dice.Ecc384Signature
	if err := got.UnmarshalASN1(der); err != nil {
		t.Fatal(err)
	}
	if got != sig {
		t.Errorf("round trip changed the signature")
	}

	if err := got.UnmarshalASN1(append(der, 0x00)); err == nil {
		t.Error("expected trailing data to be rejected")
	}
	if err := got.UnmarshalASN1(der[:len(der)-1]); err == nil {
		t.Error("expected truncated signature to be rejected")
	}
}

func TestSignatureFromStdlib(t *testing.T) {
	key, err := ecdsa.GenerateKey(elliptic.P384(), rand.Reader)
	if err != nil {
		t.Fatal(err)
	}
	digest := sha512.Sum384([]byte("tbs"))
	der, err := ecdsa.SignASN1(rand.Reader, key, digest[:])
	if err != nil {
		t.Fatal(err)
	}

	var sig dice.Ecc384Signature
	if err := sig.UnmarshalASN1(der); err != nil {
		t.Fatal(err)
	}
	reencoded, err := sig.MarshalASN1()
	if err != nil {
		t.Fatal(err)
	}
	if !ecdsa.VerifyASN1(&key.PublicKey, digest[:], reencoded) {
		t.Error("re-encoded signature does not verify")
	}
}

func TestPubKeyConversion(t *testing.T) {
	key, err := ecdsa.GenerateKey(elliptic.P384(), rand.Reader)
	if err != nil {
		t.Fatal(err)
	}
	pub, err := dice.Ecc384PubKeyFromECDSA(&key.PublicKey)
	if err != nil {
		t.Fatal(err)
	}
	if der := pub.ToDER(); len(der) != 97 || der[0] != 0x04 {
		t.Errorf("unexpected point encoding %x", der)
	}
	back, err := pub.ECDSA()
	if err != nil {
		t.Fatal(err)
	}
	if !back.Equal(&key.PublicKey) {
		t.Error("round trip changed the key")
	}

	if _, err := (dice.Ecc384PubKey{}).ECDSA(); err == nil {
		t.Error("expected the zero key to be rejected")
	}

	other, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := dice.Ecc384PubKeyFromECDSA(&other.PublicKey); err == nil {
		t.Error("expected P-256 key to be rejected")
	}
}
