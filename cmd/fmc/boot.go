// SPDX-FileCopyrightText: (C) 2024 Intel Corporation
// SPDX-License-Identifier: Apache 2.0

package main

import (
	"context"
	"crypto"
	"crypto/sha512"
	"encoding/hex"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/urfave/cli/v3"

	"github.com/fido-device-onboard/go-dice"
	"github.com/fido-device-onboard/go-dice/internal/memory"
	"github.com/fido-device-onboard/go-dice/sqlite"
	"github.com/fido-device-onboard/go-dice/sw"
	"github.com/fido-device-onboard/go-dice/tpm"
)

func bootCommand() *cli.Command {
	return &cli.Command{
		Name:  "boot",
		Usage: "Apply a sequence of resets and derive the runtime alias identity after each",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:     "uds",
				Usage:    "Hex encoded unique device secret",
				Required: true,
			},
			&cli.StringFlag{
				Name:  "fmc-image",
				Usage: "Path of the FMC image to measure",
			},
			&cli.Uint32Flag{
				Name:  "fmc-svn",
				Usage: "FMC security version number",
			},
			&cli.StringFlag{
				Name:  "rt-image",
				Usage: "Path of the runtime image to measure",
			},
			&cli.Uint32Flag{
				Name:  "rt-svn",
				Usage: "Runtime security version number",
			},
			&cli.Uint32Flag{
				Name:  "rt-entry",
				Usage: "Runtime entry point",
				Value: 0x4000_0000,
			},
			&cli.StringFlag{
				Name:  "owner-pk",
				Usage: "Path of the owner public keys to measure",
			},
			&cli.StringSliceFlag{
				Name:  "reset",
				Usage: "Reset reasons to apply in order: cold, warm, update or unknown",
				Value: []string{"cold"},
			},
			&cli.StringFlag{
				Name:  "db",
				Usage: "SQLite data vault `PATH`, state is kept in memory if empty",
			},
			&cli.StringFlag{
				Name:  "db-pass",
				Usage: "SQLite database encryption-at-rest passphrase",
			},
			&cli.StringFlag{
				Name:  "tpm",
				Usage: "Use a TPM at `PATH` for the measurement registers, or \"simulator\"",
			},
			&cli.StringFlag{
				Name:  "handoff",
				Usage: "Write the last hand-off table to `FILE`",
			},
		},
		Action: runBoot,
	}
}

// haltError is returned when a fatal error stops the boot.
type haltError struct {
	code dice.ErrorCode
	err  error
}

func (e *haltError) Error() string {
	return fmt.Sprintf("halted with error 0x%08X: %v", uint32(e.code), e.err)
}

func (e *haltError) Unwrap() error { return e.err }

func runBoot(ctx context.Context, cmd *cli.Command) error {
	setLogLevel(cmd)
	slog.Info(banner)

	rom, err := romFromFlags(cmd)
	if err != nil {
		return err
	}
	reasons, err := parseResets(cmd.StringSlice("reset"))
	if err != nil {
		return err
	}

	dv, closeDV, err := openDataVault(cmd.String("db"), cmd.String("db-pass"))
	if err != nil {
		return err
	}
	defer closeDV()

	var bank *tpm.PcrBank
	tpmPath := cmd.String("tpm")
	if tpmPath != "" {
		t, err := tpm.Open(tpmPath)
		if err != nil {
			return err
		}
		defer func() { _ = t.Close() }()
		bank = &tpm.PcrBank{TPM: t, Hash: crypto.SHA384}
	}

	platform := sw.NewPlatform()
	var last *dice.HandOff
	for i, reason := range reasons {
		// Registers created by this process have lost the journey
		rom.RestoreJourney = i == 0 && (bank == nil || tpmPath == tpm.SimulatorPath)

		res, h, err := boot(ctx, platform, bank, dv, rom, reason)
		if h != nil {
			last = h
		}
		if err != nil {
			code := dice.Report(logReporter{}, err)
			if dice.IsFatal(err) {
				return &haltError{code: code, err: err}
			}
			slog.Warn("runtime not launched", "reset", reason, "err", err)
			continue
		}

		slog.Info(fmt.Sprintf("Launching RT @ 0x%08X", res.RtEntryPoint), "reset", reason)
		fmt.Fprintf(writer(cmd), "%s\t%s\n", reason, res.Output.SubjSN[:])
	}

	if path := cmd.String("handoff"); path != "" && last != nil {
		if err := writeHandOff(path, last); err != nil {
			return err
		}
	}
	return nil
}

// boot applies a reset and runs both stages. A panic is reported as an
// exception.
func boot(ctx context.Context, platform *sw.Platform, bank *tpm.PcrBank, dv dice.DataVault, rom *sw.Rom, reason dice.ResetReason) (res *dice.Result, h *dice.HandOff, err error) {
	defer func() {
		if r := recover(); r != nil {
			res, err = nil, fmt.Errorf("%w: %v", dice.ErrException, r)
		}
	}()

	platform.Reset(reason)
	env := platform.Env(dv, reason)
	if bank != nil {
		if err := bank.Reset(reason); err != nil {
			return nil, nil, err
		}
		env.PcrBank = bank
	}

	h, err = rom.Boot(ctx, env)
	if err != nil {
		return nil, nil, fmt.Errorf("rom: %w", err)
	}
	res, err = dice.Run(ctx, env, h)
	return res, h, err
}

func romFromFlags(cmd *cli.Command) (*sw.Rom, error) {
	uds, err := hex.DecodeString(cmd.String("uds"))
	if err != nil {
		return nil, fmt.Errorf("invalid --uds: %w", err)
	}
	rom := &sw.Rom{
		Uds:          uds,
		RtEntryPoint: cmd.Uint32("rt-entry"),
		RtSvn:        cmd.Uint32("rt-svn"),
	}
	rom.Fmc.Svn = cmd.Uint32("fmc-svn")
	if rom.Fmc.Tci, err = measureFile(cmd.String("fmc-image")); err != nil {
		return nil, err
	}
	if rom.RtTci, err = measureFile(cmd.String("rt-image")); err != nil {
		return nil, err
	}
	if rom.OwnerPkHash, err = measureFile(cmd.String("owner-pk")); err != nil {
		return nil, err
	}
	return rom, nil
}

// measureFile returns the SHA-384 digest of a file. An empty path measures
// as all zeros.
func measureFile(path string) ([sha512.Size384]byte, error) {
	if path == "" {
		return [sha512.Size384]byte{}, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return [sha512.Size384]byte{}, fmt.Errorf("error reading %q: %w", path, err)
	}
	return sha512.Sum384(data), nil
}

func parseResets(values []string) ([]dice.ResetReason, error) {
	if len(values) == 0 {
		return nil, fmt.Errorf("no reset to apply")
	}
	reasons := make([]dice.ResetReason, len(values))
	for i, v := range values {
		if err := reasons[i].UnmarshalText([]byte(v)); err != nil {
			return nil, err
		}
	}
	return reasons, nil
}

func openDataVault(path, password string) (dice.DataVault, func(), error) {
	if path == "" {
		return memory.NewDataVault(), func() {}, nil
	}
	db, err := sqlite.Open(path, password)
	if err != nil {
		return nil, nil, err
	}
	if level.Level() <= slog.LevelDebug {
		db.DebugLog = os.Stderr
	}
	return db, func() { _ = db.Close() }, nil
}

func writeHandOff(path string, h *dice.HandOff) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("error creating hand-off file: %w", err)
	}
	if _, err := h.WriteTo(f); err != nil {
		_ = f.Close()
		return fmt.Errorf("error writing hand-off: %w", err)
	}
	return f.Close()
}

func setLogLevel(cmd *cli.Command) {
	if cmd.Bool("debug") {
		level.Set(slog.LevelDebug)
	}
}

func writer(cmd *cli.Command) io.Writer {
	if w := cmd.Root().Writer; w != nil {
		return w
	}
	return os.Stdout
}
