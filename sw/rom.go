// SPDX-FileCopyrightText: (C) 2024 Intel Corporation
// SPDX-License-Identifier: Apache 2.0

package sw

import (
	"context"
	"fmt"
	"log/slog"
	"slices"

	"github.com/fido-device-onboard/go-dice"
)

// ldevidLabel is the data the LDevID CDI is derived from.
var ldevidLabel = []byte("ldevid")

// Rom performs the duties of the boot stage preceding FMC. It seeds the chain
// root, measures FMC into the journey register on a cold reset and into the
// current register on every reset, derives the LDevID and FMC alias
// identities and builds the hand-off. FMC measurements are not journaled.
type Rom struct {
	// Uds is the chain-root secret, as read from fuses.
	Uds []byte

	// Fmc is the measured FMC image.
	Fmc dice.TcbInfo

	// Runtime image description passed to FMC
	RtEntryPoint uint32
	RtTci        [dice.Ecc384ScalarSize]byte
	RtSvn        uint32
	OwnerPkHash  [dice.Ecc384ScalarSize]byte

	// RestoreJourney extends the journey register with the FMC measurements
	// and the journal on a non-cold reset. It is needed when the registers
	// did not survive the reset, such as when the software bank is recreated
	// by a new process.
	RestoreJourney bool
}

// Boot runs the stage for the environment's reset reason and returns the
// hand-off for FMC.
func (r *Rom) Boot(ctx context.Context, env *dice.Env) (*dice.HandOff, error) {
	if len(r.Uds) == 0 {
		return nil, fmt.Errorf("missing UDS")
	}

	records := []dice.Measurement{
		{Kind: dice.FmcTci, Data: r.Fmc.Tci[:]},
		dice.SvnMeasurement(dice.FmcSvn, r.Fmc.Svn),
	}
	switch env.ResetReason {
	case dice.ColdReset:
		if err := dice.ExtendPcrs(env, records); err != nil {
			return nil, err
		}
	default:
		if r.RestoreJourney {
			journal, err := env.DataVault.Journal(ctx)
			if err != nil {
				return nil, fmt.Errorf("%w: error loading measurement journal: %w", dice.ErrDataVault, err)
			}
			if err := dice.ReplayJourney(env, slices.Concat(records, journal)); err != nil {
				return nil, err
			}
		}
		if err := dice.ReplayCurrent(env, records); err != nil {
			return nil, err
		}
	}

	if err := env.KeyVault.WriteKey(
		dice.KeyWriteArgs{ID: dice.KeyIDUds, Usage: dice.KeyUsageHmacKey},
		dice.NewSecret(r.Uds),
	); err != nil {
		return nil, fmt.Errorf("error loading UDS: %w", err)
	}

	ldevid, err := r.ldevid(env)
	if err != nil {
		return nil, err
	}

	fmc, err := (&dice.FmcAliasLayer{Tcb: r.Fmc}).Derive(env, ldevid.NextInput(dice.KeyIDFmcPriv))
	if err != nil {
		return nil, err
	}
	if err := env.DataVault.SetIdentity(ctx, dice.FmcAliasIdentity, fmc.Identity()); err != nil {
		return nil, fmt.Errorf("%w: error persisting fmc identity: %w", dice.ErrDataVault, err)
	}
	slog.Debug("rom", "fmc_alias", string(fmc.SubjSN[:]))

	return dice.NewHandOff(dice.HandOffTable{
		FmcCdi:       fmc.Cdi,
		FmcPrivKey:   fmc.SubjKeyPair.PrivKey,
		FmcPubKey:    fmc.SubjKeyPair.PubKey,
		FmcSN:        fmc.SubjSN,
		FmcKeyID:     fmc.SubjKeyID,
		RtEntryPoint: r.RtEntryPoint,
		RtTci:        r.RtTci,
		RtSvn:        r.RtSvn,
		OwnerPkHash:  r.OwnerPkHash,
	})
}

// ldevid derives the LDevID identity from the UDS. It is the authority of the
// FMC alias certificate.
func (r *Rom) ldevid(env *dice.Env) (*dice.DiceOutput, error) {
	cdi, err := dice.Hmac384Mac(env, dice.KeyIDUds, ldevidLabel, dice.KeyIDLDevIDCdi)
	if err != nil {
		return nil, fmt.Errorf("ldevid: error deriving cdi: %w", err)
	}
	keyPair, err := dice.Ecc384KeyGen(env, cdi, dice.KeyIDLDevIDPriv)
	if err != nil {
		return nil, fmt.Errorf("ldevid: error deriving key pair: %w", err)
	}
	sn, err := dice.SubjectSerialNumber(env, keyPair.PubKey)
	if err != nil {
		return nil, err
	}
	keyID, err := dice.SubjectKeyID(env, keyPair.PubKey)
	if err != nil {
		return nil, err
	}
	return (&dice.DiceInput{Cdi: cdi, UdsKey: dice.KeyIDUds}).ToOutput(cdi, keyPair, sn, keyID), nil
}
