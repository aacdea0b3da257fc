// SPDX-FileCopyrightText: (C) 2024 Intel Corporation
// SPDX-License-Identifier: Apache 2.0

package tpm

import (
	"crypto"
	"fmt"
	"log/slog"

	"github.com/google/go-tpm/tpm2"

	"github.com/fido-device-onboard/go-dice"
)

// Default PCR indices. Both are resettable from locality 0, which allows a
// cold reset to be applied without restarting the TPM.
const (
	DefaultJourneyPCR = 23
	DefaultCurrentPCR = 16
)

// PcrBank maps the journey and current registers onto two PCRs of one TPM
// bank.
//
// Extending a register with data extends the PCR with the bank digest of
// the data, so a register is updated as r' = H(r || H(data)).
type PcrBank struct {
	TPM TPM

	// Hash selects the PCR bank. The zero value is SHA-256.
	Hash crypto.Hash

	// PCR indices. Zero values select the defaults.
	Journey int
	Current int
}

var _ dice.PcrBank = (*PcrBank)(nil)

func (b *PcrBank) index(id dice.PcrID) (int, error) {
	switch id {
	case dice.PcrID0:
		if b.Journey == 0 {
			return DefaultJourneyPCR, nil
		}
		return b.Journey, nil
	case dice.PcrID1:
		if b.Current == 0 {
			return DefaultCurrentPCR, nil
		}
		return b.Current, nil
	default:
		return 0, fmt.Errorf("invalid register %s", id)
	}
}

func (b *PcrBank) alg() (crypto.Hash, tpm2.TPMIAlgHash, error) {
	switch b.Hash {
	case 0, crypto.SHA256:
		return crypto.SHA256, tpm2.TPMAlgSHA256, nil
	case crypto.SHA384:
		return crypto.SHA384, tpm2.TPMAlgSHA384, nil
	case crypto.SHA512:
		return crypto.SHA512, tpm2.TPMAlgSHA512, nil
	default:
		return 0, 0, fmt.Errorf("unsupported PCR bank: %s", b.Hash)
	}
}

func pcrAuth(index int) tpm2.AuthHandle {
	return tpm2.AuthHandle{
		Handle: tpm2.TPMHandle(index),
		Auth:   tpm2.PasswordAuth(nil),
	}
}

// ExtendPcr implements dice.PcrBank.
func (b *PcrBank) ExtendPcr(id dice.PcrID, data []byte) error {
	index, err := b.index(id)
	if err != nil {
		return err
	}
	hash, alg, err := b.alg()
	if err != nil {
		return err
	}
	h := hash.New()
	_, _ = h.Write(data)

	slog.Debug("tpm extend", "pcr", index, "alg", hash)
	if _, err := (tpm2.PCRExtend{
		PCRHandle: pcrAuth(index),
		Digests: tpm2.TPMLDigestValues{
			Digests: []tpm2.TPMTHA{{HashAlg: alg, Digest: h.Sum(nil)}},
		},
	}).Execute(b.TPM); err != nil {
		return fmt.Errorf("error calling TPM2_PCR_Extend on PCR %d: %w", index, err)
	}
	return nil
}

// ReadPcr implements dice.PcrBank.
func (b *PcrBank) ReadPcr(id dice.PcrID) ([]byte, error) {
	index, err := b.index(id)
	if err != nil {
		return nil, err
	}
	_, alg, err := b.alg()
	if err != nil {
		return nil, err
	}

	rsp, err := (tpm2.PCRRead{
		PCRSelectionIn: tpm2.TPMLPCRSelection{
			PCRSelections: []tpm2.TPMSPCRSelection{
				{
					Hash:      alg,
					PCRSelect: tpm2.PCClientCompatible.PCRs(uint(index)),
				},
			},
		},
	}).Execute(b.TPM)
	if err != nil {
		return nil, fmt.Errorf("error calling TPM2_PCR_Read on PCR %d: %w", index, err)
	}
	if len(rsp.PCRValues.Digests) != 1 {
		return nil, fmt.Errorf("PCR %d not present in bank", index)
	}
	return rsp.PCRValues.Digests[0].Buffer, nil
}

// ErasePcr implements dice.PcrBank. The journey register cannot be erased.
func (b *PcrBank) ErasePcr(id dice.PcrID) error {
	if id == dice.PcrID0 {
		return fmt.Errorf("erase %s: %w", id, dice.ErrPcrLocked)
	}
	index, err := b.index(id)
	if err != nil {
		return err
	}
	return b.reset(index)
}

func (b *PcrBank) reset(index int) error {
	if _, err := (tpm2.PCRReset{PCRHandle: pcrAuth(index)}).Execute(b.TPM); err != nil {
		return fmt.Errorf("error calling TPM2_PCR_Reset on PCR %d: %w", index, err)
	}
	return nil
}

// Reset applies the hardware reset behavior: the current register is always
// reset and the journey register only on a cold reset.
func (b *PcrBank) Reset(reason dice.ResetReason) error {
	current, _ := b.index(dice.PcrID1)
	if err := b.reset(current); err != nil {
		return err
	}
	if reason != dice.ColdReset {
		return nil
	}
	journey, _ := b.index(dice.PcrID0)
	return b.reset(journey)
}
