// SPDX-FileCopyrightText: (C) 2024 Intel Corporation
// SPDX-License-Identifier: Apache 2.0

package main

import (
	"fmt"
	"log/slog"
	"os"

	"hermannm.dev/devlog"

	"github.com/fido-device-onboard/go-dice"
)

const banner = "DICE first mutable code (FMC)"

var level slog.LevelVar

func init() {
	slog.SetDefault(slog.New(devlog.NewHandler(os.Stderr, &devlog.Options{
		Level: &level,
	})))
}

// logReporter reports error codes to the log, standing in for the hardware
// error registers.
type logReporter struct{}

func (logReporter) ReportFatal(code dice.ErrorCode) {
	slog.Error("fatal error", "code", fmt.Sprintf("0x%08X", uint32(code)), "err", code)
}

func (logReporter) ReportNonFatal(code dice.ErrorCode) {
	slog.Warn("non-fatal error", "code", fmt.Sprintf("0x%08X", uint32(code)), "err", code)
}
