// SPDX-FileCopyrightText: (C) 2024 Intel Corporation
// SPDX-License-Identifier: Apache 2.0

package main

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/fido-device-onboard/go-dice"
)

const testUds = "a5a5a5a5a5a5a5a5a5a5a5a5a5a5a5a5a5a5a5a5a5a5a5a5a5a5a5a5a5a5a5a5a5a5a5a5a5a5a5a5a5a5a5a5a5a5a5a5"

func run(t *testing.T, args ...string) string {
	t.Helper()
	var out bytes.Buffer
	app := newApp()
	app.Writer = &out
	if err := app.Run(context.Background(), append([]string{"fmc"}, args...)); err != nil {
		t.Fatalf("%s: %v", strings.Join(args, " "), err)
	}
	return out.String()
}

func TestBootCommand(t *testing.T) {
	dir := t.TempDir()
	db := filepath.Join(dir, "fmc.db")
	handOff := filepath.Join(dir, "handoff.cbor")
	rtImage := filepath.Join(dir, "rt.bin")
	if err := os.WriteFile(rtImage, []byte("runtime v1"), 0o600); err != nil {
		t.Fatal(err)
	}

	out := run(t, "boot",
		"--uds", testUds,
		"--rt-image", rtImage,
		"--reset", "cold,warm",
		"--db", db,
		"--handoff", handOff,
	)
	lines := strings.Split(strings.TrimSpace(out), "\n")
	if len(lines) != 2 {
		t.Fatalf("expected a line per reset, got %q", out)
	}
	cold, warm := strings.Fields(lines[0]), strings.Fields(lines[1])
	if cold[0] != "cold" || warm[0] != "warm" {
		t.Fatalf("unexpected output %q", out)
	}
	if cold[1] != warm[1] {
		t.Error("warm reset changed the runtime alias identity")
	}

	// A new process continues from the persisted state
	if err := os.WriteFile(rtImage, []byte("runtime v2"), 0o600); err != nil {
		t.Fatal(err)
	}
	out = run(t, "boot", "--uds", testUds, "--rt-image", rtImage, "--reset", "update", "--db", db)
	if updated := strings.Fields(out); len(updated) != 2 || updated[1] == cold[1] {
		t.Errorf("expected update reset to change the identity, got %q", out)
	}

	out = run(t, "show", "--db", db)
	if !strings.Contains(out, "Journal (6 records)") {
		t.Errorf("unexpected journal in %q", out)
	}
	if !strings.Contains(out, dice.RtAliasIdentity+":\n") || !strings.Contains(out, dice.FmcAliasIdentity+":\n") {
		t.Errorf("missing identities in %q", out)
	}

	out = run(t, "handoff", "--file", handOff)
	if !strings.Contains(out, "RT Entry Point: 0x40000000") {
		t.Errorf("unexpected hand-off %q", out)
	}
}

func TestBootUnknownReset(t *testing.T) {
	out := run(t, "boot", "--uds", testUds, "--reset", "unknown,cold")
	lines := strings.Split(strings.TrimSpace(out), "\n")
	if len(lines) != 1 || !strings.HasPrefix(lines[0], "cold") {
		t.Errorf("expected only the cold reset to launch the runtime, got %q", out)
	}
}

func TestBootLogsBanner(t *testing.T) {
	var logs bytes.Buffer
	prev := slog.Default()
	slog.SetDefault(slog.New(slog.NewTextHandler(&logs, nil)))
	t.Cleanup(func() { slog.SetDefault(prev) })

	run(t, "boot", "--uds", testUds)
	if !strings.Contains(logs.String(), banner) {
		t.Errorf("expected banner in %q", logs.String())
	}
	if !strings.Contains(logs.String(), "Launching RT @ 0x40000000") {
		t.Errorf("expected launch message in %q", logs.String())
	}
}

func TestBootRejectsOutOfRangeFlags(t *testing.T) {
	for _, flag := range []string{"--rt-entry", "--rt-svn", "--fmc-svn"} {
		t.Run(flag, func(t *testing.T) {
			app := newApp()
			app.Writer = io.Discard
			err := app.Run(context.Background(), []string{"fmc", "boot", "--uds", testUds, flag, "0x100000000"})
			if err == nil {
				t.Fatal("expected a value above 32 bits to be rejected")
			}
		})
	}

	out := run(t, "boot", "--uds", testUds, "--rt-entry", "0xffffffff", "--rt-svn", "4294967295", "--handoff", filepath.Join(t.TempDir(), "h.cbor"))
	if !strings.HasPrefix(out, "cold") {
		t.Errorf("unexpected output %q", out)
	}
}

func TestParseResets(t *testing.T) {
	reasons, err := parseResets([]string{"cold", "Warm", "update"})
	if err != nil {
		t.Fatal(err)
	}
	if len(reasons) != 3 || reasons[0] != dice.ColdReset || reasons[1] != dice.WarmReset || reasons[2] != dice.UpdateReset {
		t.Errorf("unexpected reasons %v", reasons)
	}
	if _, err := parseResets([]string{"cold", "power"}); err == nil {
		t.Error("expected invalid reason to fail")
	}
	if _, err := parseResets(nil); err == nil {
		t.Error("expected empty sequence to fail")
	}
}
