// SPDX-FileCopyrightText: (C) 2024 Intel Corporation
// SPDX-License-Identifier: Apache 2.0

package nistkdf_test

import (
	"bytes"
	"crypto"
	"encoding/hex"
	"testing"

	"github.com/fido-device-onboard/go-dice/internal/nistkdf"
)

func TestKnownResult(t *testing.T) {
	// SHA256 PRF, label "FIDO-KDF", context "AutomaticOnboardTunnel"
	kInHex := "08c9dc0cc5e9dd2558a12ae60cd00670d01a09cca52bae8a671a21e1babdb25bc21963c48b4aa77bb8ed338f0c5a15efee069ce10a09be2aacf857b8dcd9df8e"
	resultHex := "e5e959c8cbdd5989c819f7ea8c69bcb3f70a442830ba235c5aa0b4047d0cda0b"

	kIn, err := hex.DecodeString(kInHex)
	if err != nil {
		t.Fatal(err)
	}
	expect, err := hex.DecodeString(resultHex)
	if err != nil {
		t.Fatal(err)
	}
	got := nistkdf.KDF(crypto.SHA256, kIn, []byte("FIDO-KDF"), []byte("AutomaticOnboardTunnel"), 256)
	if !bytes.Equal(expect, got) {
		t.Fatalf("expected %x, got %x", expect, got)
	}
}

func TestOutputLength(t *testing.T) {
	key := bytes.Repeat([]byte{0x5a}, 48)
	for _, bits := range []uint16{8, 256, 384, 448, 1024} {
		got := nistkdf.KDF(crypto.SHA384, key, []byte("label"), nil, bits)
		if len(got) != int(bits/8) {
			t.Errorf("%d bits: got %d bytes", bits, len(got))
		}
	}
}

func TestLengthBindsOutput(t *testing.T) {
	// L is part of every PRF input, so a shorter request is not a prefix of a
	// longer one.
	key := bytes.Repeat([]byte{0x01}, 48)
	short := nistkdf.KDF(crypto.SHA384, key, []byte("label"), nil, 384)
	long := nistkdf.KDF(crypto.SHA384, key, []byte("label"), nil, 448)
	if bytes.Equal(short, long[:len(short)]) {
		t.Fatal("expected output to depend on requested length")
	}
}

func TestContextSeparation(t *testing.T) {
	key := bytes.Repeat([]byte{0x02}, 48)
	a := nistkdf.KDF(crypto.SHA384, key, []byte("label"), []byte{0}, 384)
	b := nistkdf.KDF(crypto.SHA384, key, []byte("label"), []byte{1}, 384)
	if bytes.Equal(a, b) {
		t.Fatal("expected different contexts to produce different keys")
	}
	if !bytes.Equal(a, nistkdf.KDF(crypto.SHA384, key, []byte("label"), []byte{0}, 384)) {
		t.Fatal("expected KDF to be deterministic")
	}
}
