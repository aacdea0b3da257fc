// SPDX-FileCopyrightText: (C) 2024 Intel Corporation
// SPDX-License-Identifier: Apache 2.0

package main

import (
	"context"
	"fmt"
	"os"

	"github.com/urfave/cli/v3"

	"github.com/fido-device-onboard/go-dice"
)

func handOffCommand() *cli.Command {
	return &cli.Command{
		Name:  "handoff",
		Usage: "Decode and validate a hand-off table",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:     "file",
				Usage:    "Path of the CBOR encoded hand-off table",
				Required: true,
			},
		},
		Action: runHandOff,
	}
}

func runHandOff(_ context.Context, cmd *cli.Command) error {
	setLogLevel(cmd)

	f, err := os.Open(cmd.String("file"))
	if err != nil {
		return err
	}
	defer func() { _ = f.Close() }()

	h, err := dice.LoadHandOff(f)
	if err != nil {
		return err
	}
	t := h.Table()

	w := writer(cmd)
	fmt.Fprintf(w, "Magic:          0x%08X\n", t.Magic)
	fmt.Fprintf(w, "Version:        %d\n", t.Version)
	fmt.Fprintf(w, "FMC CDI:        %s\n", t.FmcCdi)
	fmt.Fprintf(w, "FMC Key:        %s\n", t.FmcPrivKey)
	fmt.Fprintf(w, "FMC Public Key: %x\n", t.FmcPubKey.ToDER())
	fmt.Fprintf(w, "FMC SN:         %s\n", t.FmcSN[:])
	fmt.Fprintf(w, "FMC Key ID:     %x\n", t.FmcKeyID)
	fmt.Fprintf(w, "RT Entry Point: 0x%08X\n", t.RtEntryPoint)
	fmt.Fprintf(w, "RT TCI:         %x\n", t.RtTci)
	fmt.Fprintf(w, "RT SVN:         %d\n", t.RtSvn)
	fmt.Fprintf(w, "Owner PK Hash:  %x\n", t.OwnerPkHash)
	return nil
}
