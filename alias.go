// SPDX-FileCopyrightText: (C) 2024 Intel Corporation
// SPDX-License-Identifier: Apache 2.0

package dice

// FmcAliasLayer derives the FMC alias identity in the ROM stage. Its CDI is
// bound to the measurement of the FMC image directly, so the identity only
// changes with the image.
type FmcAliasLayer struct {
	Tcb TcbInfo
}

var _ Layer = (*FmcAliasLayer)(nil)

// Derive implements Layer.
func (l *FmcAliasLayer) Derive(env *Env, input *DiceInput) (*DiceOutput, error) {
	return (&engine{
		name:    FmcAliasIdentity,
		measure: func(*Env) ([]byte, error) { return l.Tcb.measurement(), nil },
		tcb:     l.Tcb,
	}).derive(env, input)
}

// RtAliasLayer derives the runtime alias identity in the FMC stage. Its CDI
// is bound to the current measurement register, which must agree with the
// journey register.
type RtAliasLayer struct {
	Tcb TcbInfo
}

var _ Layer = (*RtAliasLayer)(nil)

// NewRtAliasLayer returns the layer measuring the runtime image named by the
// hand-off.
func NewRtAliasLayer(h *HandOff) *RtAliasLayer {
	ownerPkHash := h.OwnerPkHash()
	return &RtAliasLayer{Tcb: TcbInfo{
		Tci:         h.RtTci(),
		Svn:         h.RtSvn(),
		OwnerPkHash: ownerPkHash[:],
	}}
}

// Derive implements Layer.
func (l *RtAliasLayer) Derive(env *Env, input *DiceInput) (*DiceOutput, error) {
	return (&engine{
		name:    RtAliasIdentity,
		measure: AssertPcrsEqual,
		tcb:     l.Tcb,
	}).derive(env, input)
}
