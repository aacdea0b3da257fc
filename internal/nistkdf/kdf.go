// SPDX-FileCopyrightText: (C) 2024 Intel Corporation
// SPDX-License-Identifier: Apache 2.0

// Package nistkdf implements the NIST SP 800-108 KDF in counter mode with an
// HMAC PRF.
package nistkdf

import (
	"crypto"
	"crypto/hmac"
	"crypto/sha512"
	"encoding/binary"
	"math"
)

// KDF derives bits of key material from kIn. The hash must be SHA-256 or
// SHA-384 and bits must be a multiple of 8.
func KDF(hash crypto.Hash, kIn, label, context []byte, bits uint16) []byte {
	// NIST SP 800-108 KDF in Counter Mode
	//
	// Parameters:
	//     • h – The length of the output of a single invocation of the PRF in bits
	// 	   • r – The length of the binary representation of the counter i
	//
	// Input: K_IN, Label, Context, and L
	//
	// Process:
	//     1. n := [L/h].
	//     2. If n > 2^r −1, then output an error indicator and stop (i.e., skip steps 3, 4, and 5).
	//     3. result := ∅.
	//     4. For i = 1 to n, do
	//         a. K(i) := PRF (K_IN, [i]_2 || Label || 0x00 || Context || [L]_2),
	//         b. result := result || K(i).
	//     5. K_OUT := the leftmost L bits of result.
	//
	// Output: K_OUT (or an error indicator)
	//
	// Fixed here:
	//     • r = 8
	//     • L is encoded in 16 bits, big endian
	//     • PRF = HMAC-SHA256 or HMAC-SHA384

	var h uint16
	switch hash.Size() {
	case sha512.Size256:
		h = sha512.Size256 * 8
	case sha512.Size384:
		h = sha512.Size384 * 8
	default:
		panic("unsupported hash size")
	}
	if bits%8 != 0 {
		panic("bits must be a multiple of 8")
	}

	// 1.
	n := bits / h
	if bits%h != 0 {
		n++
	}

	// 2.
	if n > math.MaxUint8 {
		panic("n too large")
	}

	// 3.
	var result []byte

	// 4.
	input := []byte{0x00} // iteration-dependent
	input = append(input, label...)
	input = append(input, 0x00)
	input = append(input, context...)
	input = binary.BigEndian.AppendUint16(input, bits)
	prf := hmac.New(hash.New, kIn)
	for i := uint8(0); i < uint8(n); i++ {
		// a.
		prf.Reset()
		input[0] = i + 1
		_, _ = prf.Write(input)

		// b.
		result = append(result, prf.Sum(nil)...)
	}

	// 5.
	return result[:bits/8]
}
