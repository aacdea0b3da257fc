// SPDX-FileCopyrightText: (C) 2024 Intel Corporation
// SPDX-License-Identifier: Apache 2.0

// Package tpm implements the measurement register bank on a TPM 2.0.
package tpm

import (
	"fmt"
	"log/slog"

	"github.com/google/go-tpm-tools/simulator"
	"github.com/google/go-tpm/tpm2/transport"
	"github.com/google/go-tpm/tpm2/transport/linuxtpm"
)

// SimulatorPath is the path accepted by Open for an insecure, fixed seed
// TPM simulator.
const SimulatorPath = "simulator"

// TPM is a TPM 2.0 transport.
type TPM = transport.TPM

// Closer is a TPM 2.0 transport which must be closed.
type Closer = transport.TPMCloser

// Open will open a TPM device at the given path.
//
// Clients should use /dev/tpmrm0 because using /dev/tpm0 requires more
// extensive resource management that the kernel already handles for us
// when using the kernel resource manager.
func Open(path string) (Closer, error) {
	switch path {
	case SimulatorPath:
		sim, err := simulator.GetWithFixedSeedInsecure(8086)
		if err != nil {
			return nil, fmt.Errorf("error starting TPM simulator: %w", err)
		}
		return transport.FromReadWriteCloser(sim), nil
	case "/dev/tpmrm0":
		return linuxtpm.Open(path)
	case "/dev/tpm0":
		slog.Warn("direct use of the TPM can lead to resource exhaustion, use a TPM resource manager instead")
		return linuxtpm.Open(path)
	default:
		return nil, fmt.Errorf("unsupported TPM device path: %s", path)
	}
}
