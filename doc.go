// SPDX-FileCopyrightText: (C) 2024 Intel Corporation
// SPDX-License-Identifier: Apache 2.0

// Package dice implements the identity derivation and measured boot stage
// that runs between immutable boot code and the runtime firmware.
//
// Each boot, [Run] reads the latched [ResetReason] once and executes one
// flow. The cold, warm and update flows extend the measurement registers
// ([PcrBank]) and run the [RtAliasLayer], which derives a CDI from the
// inherited CDI and the current register, generates a P-384 key pair from
// it, names the identity, and has the parent key sign a certificate before
// the parent key is erased. Secrets only move between a [KeyVault] and the
// crypto engines: the flows handle [KeyID] slot handles.
//
// The records a cold flow extends are journaled in the [DataVault] and the
// journal is cleared on every cold reset. Warm and update flows extend the
// current register with the journal after earlier stages have extended it
// with their own records, so both registers agree again before derivation.
//
// All platform capabilities are passed explicitly through an [Env]. A
// software platform is provided by the sw subpackage, a TPM 2.0 measurement
// bank by the tpm subpackage, and persistent chain state by the sqlite
// subpackage. Mock capabilities for tests are in dicetest.
//
// [Run] never halts. Callers report the error with [Report] and then stop,
// or transfer control to [Result.RtEntryPoint] on success.
package dice
