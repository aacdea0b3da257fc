// SPDX-FileCopyrightText: (C) 2024 Intel Corporation
// SPDX-License-Identifier: Apache 2.0

// fmc simulates the boot of the first mutable code stage on a software
// platform, optionally backed by a TPM and a persistent data vault.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/urfave/cli/v3"

	"github.com/fido-device-onboard/go-dice"
)

func newApp() *cli.Command {
	return &cli.Command{
		Name:  "fmc",
		Usage: "DICE first mutable code simulator",
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:  "debug",
				Usage: "Print debug logs",
			},
		},
		Commands: []*cli.Command{
			bootCommand(),
			showCommand(),
			handOffCommand(),
		},
	}
}

func main() {
	if err := newApp().Run(context.Background(), os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		var halt *haltError
		switch {
		case errors.Is(err, dice.ErrInvalidHandOff):
			os.Exit(0xff)
		case errors.As(err, &halt):
			os.Exit(2)
		}
		os.Exit(1)
	}
}
