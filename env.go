// SPDX-FileCopyrightText: (C) 2024 Intel Corporation
// SPDX-License-Identifier: Apache 2.0

package dice

import (
	"fmt"
	"strings"
)

// Env is the set of platform capabilities used by the derivation flows. It
// is passed explicitly to every operation so that any capability may be
// substituted.
type Env struct {
	KeyVault  KeyVault
	Sha256    Sha256
	Hmac384   Hmac384
	Ecc384    Ecc384
	PcrBank   PcrBank
	DataVault DataVault

	// ResetReason is the latched reason for the current boot. It is read
	// once by Run.
	ResetReason ResetReason

	// FlowHook, if set, is called with the reset flow selected by Run before
	// the flow executes.
	FlowHook func(ResetReason)
}

// Validate checks that every capability is set.
func (env *Env) Validate() error {
	var missing []string
	for _, c := range []struct {
		name string
		set  bool
	}{
		{"key vault", env.KeyVault != nil},
		{"sha256 engine", env.Sha256 != nil},
		{"hmac384 engine", env.Hmac384 != nil},
		{"ecc384 engine", env.Ecc384 != nil},
		{"pcr bank", env.PcrBank != nil},
		{"data vault", env.DataVault != nil},
	} {
		if !c.set {
			missing = append(missing, c.name)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("incomplete environment, missing %s", strings.Join(missing, ", "))
	}
	return nil
}
