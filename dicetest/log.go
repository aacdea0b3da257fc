// SPDX-FileCopyrightText: (C) 2024 Intel Corporation
// SPDX-License-Identifier: Apache 2.0

package dicetest

import (
	"bytes"
	"io"
	"log/slog"
	"testing"
)

// TestingLog creates a testing logger.
func TestingLog(t *testing.T) io.Writer { return (*errorLog)(t) }

type errorLog testing.T

// Write implements io.Writer.
func (t *errorLog) Write(p []byte) (int, error) {
	(*testing.T)(t).Helper()
	t.Log(string(bytes.TrimSpace(p)))
	return len(p), nil
}

// DebugLog routes the default slog logger to the test log at debug level.
func DebugLog(t *testing.T) {
	prev := slog.Default()
	slog.SetDefault(slog.New(slog.NewTextHandler(TestingLog(t), &slog.HandlerOptions{Level: slog.LevelDebug})))
	t.Cleanup(func() { slog.SetDefault(prev) })
}
