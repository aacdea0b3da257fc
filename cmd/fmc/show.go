// SPDX-FileCopyrightText: (C) 2024 Intel Corporation
// SPDX-License-Identifier: Apache 2.0

package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/urfave/cli/v3"

	"github.com/fido-device-onboard/go-dice"
	"github.com/fido-device-onboard/go-dice/sqlite"
)

func showCommand() *cli.Command {
	return &cli.Command{
		Name:  "show",
		Usage: "Print the measurement journal and identities of a data vault",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:     "db",
				Usage:    "SQLite data vault `PATH`",
				Required: true,
			},
			&cli.StringFlag{
				Name:  "db-pass",
				Usage: "SQLite database encryption-at-rest passphrase",
			},
		},
		Action: runShow,
	}
}

func runShow(ctx context.Context, cmd *cli.Command) error {
	setLogLevel(cmd)

	path := cmd.String("db")
	if _, err := os.Stat(path); err != nil {
		return fmt.Errorf("data vault: %w", err)
	}
	db, err := sqlite.Open(path, cmd.String("db-pass"))
	if err != nil {
		return err
	}
	defer func() { _ = db.Close() }()

	w := writer(cmd)
	journal, err := db.Journal(ctx)
	if err != nil {
		return err
	}
	fmt.Fprintf(w, "Journal (%d records):\n", len(journal))
	for i, m := range journal {
		fmt.Fprintf(w, "  %2d %-14s %x\n", i, m.Kind, m.Data)
	}

	for _, name := range []string{dice.FmcAliasIdentity, dice.RtAliasIdentity} {
		id, err := db.Identity(ctx, name)
		if errors.Is(err, dice.ErrNotFound) {
			fmt.Fprintf(w, "%s: none\n", name)
			continue
		}
		if err != nil {
			return err
		}
		if err := printIdentity(w, name, id); err != nil {
			return err
		}
	}
	return nil
}

func printIdentity(w io.Writer, name string, id *dice.ChainIdentity) error {
	sig, err := id.Signature.MarshalASN1()
	if err != nil {
		return err
	}
	fmt.Fprintf(w, "%s:\n", name)
	fmt.Fprintf(w, "  Subject SN:     %s\n", id.SN[:])
	fmt.Fprintf(w, "  Subject Key ID: %x\n", id.KeyID)
	fmt.Fprintf(w, "  Cert SN:        %x\n", id.CertSN)
	fmt.Fprintf(w, "  Public Key:     %x\n", id.PubKey.ToDER())
	fmt.Fprintf(w, "  Signature:      %x\n", sig)
	return nil
}
