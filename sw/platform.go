// SPDX-FileCopyrightText: (C) 2024 Intel Corporation
// SPDX-License-Identifier: Apache 2.0

// Package sw implements the platform capabilities in software: a key vault,
// crypto engines bound to it, a measurement register bank, and the boot
// stage that precedes FMC.
package sw

import (
	"github.com/fido-device-onboard/go-dice"
)

// Platform is the state that survives between simulated resets.
type Platform struct {
	KeyVault *KeyVault
	PcrBank  *PcrBank
}

// NewPlatform returns a platform in its power-on state.
func NewPlatform() *Platform {
	return &Platform{
		KeyVault: NewKeyVault(),
		PcrBank:  new(PcrBank),
	}
}

// Env returns an environment using the platform's key vault, engines and
// registers.
func (p *Platform) Env(dv dice.DataVault, reason dice.ResetReason) *dice.Env {
	return &dice.Env{
		KeyVault:    p.KeyVault,
		Sha256:      Sha256{},
		Hmac384:     &Hmac384{Vault: p.KeyVault},
		Ecc384:      &Ecc384{Vault: p.KeyVault},
		PcrBank:     p.PcrBank,
		DataVault:   dv,
		ResetReason: reason,
	}
}

// Reset applies the hardware effects of a reset. The key vault does not
// survive any reset; the boot stage before FMC repopulates it.
func (p *Platform) Reset(reason dice.ResetReason) {
	p.KeyVault.Clear()
	p.PcrBank.Reset(reason)
}
