// SPDX-FileCopyrightText: (C) 2024 Intel Corporation
// SPDX-License-Identifier: Apache 2.0

package dice

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
)

// Result is the outcome of a successful boot of this stage.
type Result struct {
	Reason       ResetReason
	Output       *DiceOutput
	RtEntryPoint uint32
}

// Run executes exactly one reset flow, selected by env.ResetReason, and
// returns the runtime alias identity. It never halts: errors are returned
// unchanged for the caller to report before halting.
//
// An unknown reset reason returns ErrUnknownResetReason without deriving
// anything.
func Run(ctx context.Context, env *Env, h *HandOff) (*Result, error) {
	if err := env.Validate(); err != nil {
		return nil, err
	}
	if h == nil {
		return nil, fmt.Errorf("%w: missing", ErrInvalidHandOff)
	}

	reason := env.ResetReason
	switch reason {
	case ColdReset, WarmReset, UpdateReset:
	default:
		reason = UnknownReset
	}
	if env.FlowHook != nil {
		env.FlowHook(reason)
	}
	slog.Info("reset flow", "reason", reason)

	var (
		out *DiceOutput
		err error
	)
	switch reason {
	case ColdReset:
		out, err = coldReset(ctx, env, h)
	case WarmReset:
		out, err = warmReset(ctx, env, h)
	case UpdateReset:
		out, err = updateReset(ctx, env, h)
	default:
		slog.Warn("unknown reset reason", "raw", uint8(env.ResetReason))
		return nil, ErrUnknownResetReason
	}
	if err != nil {
		return nil, fmt.Errorf("%s reset: %w", reason, err)
	}

	return &Result{
		Reason:       reason,
		Output:       out,
		RtEntryPoint: h.RtEntryPoint(),
	}, nil
}

// coldReset starts a new journal, measures the runtime image into both
// registers, which hardware cleared, and derives from scratch.
func coldReset(ctx context.Context, env *Env, h *HandOff) (*DiceOutput, error) {
	if err := env.DataVault.ClearJournal(ctx); err != nil {
		return nil, fmt.Errorf("%w: error clearing measurement journal: %w", ErrDataVault, err)
	}
	records := RtMeasurements(h)
	if err := env.DataVault.AppendJournal(ctx, records...); err != nil {
		return nil, fmt.Errorf("%w: error recording measurements: %w", ErrDataVault, err)
	}
	if err := ExtendPcrs(env, records); err != nil {
		return nil, err
	}
	return deriveRt(ctx, env, h, DiceInputFromHandOff(h))
}

// warmReset extends the current register with the journal. The journey
// register is retained and is not extended.
func warmReset(ctx context.Context, env *Env, h *HandOff) (*DiceOutput, error) {
	if err := replayJournal(ctx, env); err != nil {
		return nil, err
	}
	input, err := persistedInput(ctx, env, h)
	if err != nil {
		return nil, err
	}
	return deriveRt(ctx, env, h, input)
}

// updateReset measures the new runtime image into the journey register and
// then extends the current register with the journal.
func updateReset(ctx context.Context, env *Env, h *HandOff) (*DiceOutput, error) {
	records := RtMeasurements(h)
	if err := env.DataVault.AppendJournal(ctx, records...); err != nil {
		return nil, fmt.Errorf("%w: error recording measurements: %w", ErrDataVault, err)
	}
	if err := extendPcr(env, PcrID0, records); err != nil {
		return nil, err
	}
	if err := replayJournal(ctx, env); err != nil {
		return nil, err
	}
	input, err := persistedInput(ctx, env, h)
	if err != nil {
		return nil, err
	}
	return deriveRt(ctx, env, h, input)
}

func replayJournal(ctx context.Context, env *Env) error {
	journal, err := env.DataVault.Journal(ctx)
	if err != nil {
		return fmt.Errorf("%w: error loading measurement journal: %w", ErrDataVault, err)
	}
	slog.Debug("replaying journal", "records", len(journal))
	return ReplayCurrent(env, journal)
}

// persistedInput builds the layer input from the parent identity recorded in
// the data vault, which must agree with the hand-off. The hand-off is used
// alone if nothing was recorded.
func persistedInput(ctx context.Context, env *Env, h *HandOff) (*DiceInput, error) {
	input := DiceInputFromHandOff(h)
	parent, err := env.DataVault.Identity(ctx, FmcAliasIdentity)
	if errors.Is(err, ErrNotFound) {
		slog.Debug("no persisted parent identity, using hand-off")
		return input, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: error loading parent identity: %w", ErrDataVault, err)
	}
	if parent.PubKey != h.FmcPubKey() {
		return nil, fmt.Errorf("%w: fmc public key differs from persisted identity", ErrInvalidHandOff)
	}
	input.AuthSN = parent.SN
	input.AuthKeyID = parent.KeyID
	return input, nil
}

func deriveRt(ctx context.Context, env *Env, h *HandOff, input *DiceInput) (*DiceOutput, error) {
	out, err := NewRtAliasLayer(h).Derive(env, input)
	if err != nil {
		return nil, err
	}

	prev, err := env.DataVault.Identity(ctx, RtAliasIdentity)
	switch {
	case errors.Is(err, ErrNotFound):
	case err != nil:
		return nil, fmt.Errorf("%w: error loading runtime identity: %w", ErrDataVault, err)
	case prev.PubKey != out.SubjKeyPair.PubKey:
		slog.Info("runtime alias identity changed", "previous", string(prev.SN[:]), "current", string(out.SubjSN[:]))
	}

	if err := env.DataVault.SetIdentity(ctx, RtAliasIdentity, out.Identity()); err != nil {
		return nil, fmt.Errorf("%w: error persisting runtime identity: %w", ErrDataVault, err)
	}
	return out, nil
}
