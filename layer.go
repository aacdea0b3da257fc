// SPDX-FileCopyrightText: (C) 2024 Intel Corporation
// SPDX-License-Identifier: Apache 2.0

package dice

import (
	"errors"
	"fmt"
	"log/slog"
)

// DiceInput is the material a layer receives from its predecessor. It is not
// modified by derivation.
type DiceInput struct {
	// Cdi is the slot holding the inherited CDI. The layer's CDI is written
	// back to the same slot.
	Cdi KeyID

	// SubjPrivKey is the slot receiving the layer's private key.
	SubjPrivKey KeyID

	// AuthKeyPair is the key pair of the parent identity. Its private key
	// signs the layer's certificate and is erased afterward.
	AuthKeyPair Ecc384KeyPair

	// AuthSN is the subject serial number of the parent identity.
	AuthSN [SubjectSNSize]byte

	// AuthKeyID is the subject key identifier of the parent identity.
	AuthKeyID [SubjectKeyIDSize]byte

	// UdsKey is the chain-root secret slot.
	UdsKey KeyID
}

// Validate checks that the slots exist and do not alias each other.
func (in *DiceInput) Validate() error {
	for _, id := range []KeyID{in.Cdi, in.SubjPrivKey, in.AuthKeyPair.PrivKey, in.UdsKey} {
		if !id.Valid() {
			return fmt.Errorf("%w: %s", ErrInvalidKeySlot, id)
		}
	}
	switch {
	case in.SubjPrivKey == in.Cdi:
		return fmt.Errorf("%w: subject key and cdi share %s", ErrInvalidKeySlot, in.Cdi)
	case in.SubjPrivKey == in.AuthKeyPair.PrivKey:
		return fmt.Errorf("%w: subject and authority keys share %s", ErrInvalidKeySlot, in.SubjPrivKey)
	case in.Cdi == in.AuthKeyPair.PrivKey:
		return fmt.Errorf("%w: cdi and authority key share %s", ErrInvalidKeySlot, in.Cdi)
	}
	return nil
}

// ToOutput assembles the layer's output from its derived identity.
func (in *DiceInput) ToOutput(cdi KeyID, keyPair Ecc384KeyPair, sn [SubjectSNSize]byte, keyID [SubjectKeyIDSize]byte) *DiceOutput {
	return &DiceOutput{
		Cdi:         cdi,
		SubjKeyPair: keyPair,
		SubjSN:      sn,
		SubjKeyID:   keyID,
		UdsKey:      in.UdsKey,
	}
}

// DiceOutput is a layer's derived identity. Its subject fields become the
// parent fields of the next layer's input.
type DiceOutput struct {
	Cdi         KeyID
	SubjKeyPair Ecc384KeyPair
	SubjSN      [SubjectSNSize]byte
	SubjKeyID   [SubjectKeyIDSize]byte
	UdsKey      KeyID

	// Certificate material produced by the parent key
	CertSN    [CertSNSize]byte
	TBS       []byte
	Signature Ecc384Signature
}

// NextInput builds the input of the next layer, which will write its private
// key to subjPrivKey.
func (out *DiceOutput) NextInput(subjPrivKey KeyID) *DiceInput {
	return &DiceInput{
		Cdi:         out.Cdi,
		SubjPrivKey: subjPrivKey,
		AuthKeyPair: out.SubjKeyPair,
		AuthSN:      out.SubjSN,
		AuthKeyID:   out.SubjKeyID,
		UdsKey:      out.UdsKey,
	}
}

// Layer derives the identity of one boot stage from its predecessor's.
type Layer interface {
	Derive(env *Env, input *DiceInput) (*DiceOutput, error)
}

// engine runs the derivation state machine shared by all layers.
type engine struct {
	name string

	// measure returns the data bound into the layer's CDI.
	measure func(env *Env) ([]byte, error)

	tcb TcbInfo
}

func (e *engine) state(s string) {
	slog.Debug("dice", "layer", e.name, "state", s)
}

func (e *engine) derive(env *Env, input *DiceInput) (*DiceOutput, error) {
	e.state("Start")
	if err := input.Validate(); err != nil {
		return nil, err
	}

	e.state("MeasureAssert")
	measurement, err := e.measure(env)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", e.name, err)
	}

	e.state("DeriveSecret")
	cdi, err := Hmac384Mac(env, input.Cdi, measurement, input.Cdi)
	if err != nil {
		return nil, fmt.Errorf("%s: error deriving cdi: %w", e.name, err)
	}

	e.state("DeriveKeyPair")
	keyPair, err := Ecc384KeyGen(env, cdi, input.SubjPrivKey)
	if err != nil {
		return nil, fmt.Errorf("%s: error deriving key pair: %w", e.name, err)
	}

	e.state("NameIdentity")
	sn, err := SubjectSerialNumber(env, keyPair.PubKey)
	if err != nil {
		return nil, fmt.Errorf("%s: error computing subject serial number: %w", e.name, err)
	}
	keyID, err := SubjectKeyID(env, keyPair.PubKey)
	if err != nil {
		return nil, fmt.Errorf("%s: error computing subject key id: %w", e.name, err)
	}

	e.state("BuildOutput")
	output := input.ToOutput(cdi, keyPair, sn, keyID)

	e.state("SignCertificate")
	if err := e.sign(env, input, output); err != nil {
		return nil, fmt.Errorf("%s: %w", e.name, err)
	}

	e.state("Done")
	return output, nil
}

// sign mints the output's certificate with the parent key. The parent key is
// erased whether or not signing succeeds.
func (e *engine) sign(env *Env, input *DiceInput, output *DiceOutput) error {
	certSN, err := CertSerialNumber(env, output.SubjKeyPair.PubKey)
	if err != nil {
		return fmt.Errorf("error computing certificate serial number: %w", err)
	}
	tbs, err := (&CertTBS{
		SerialNumber:   certSN,
		IssuerSN:       input.AuthSN,
		SubjectSN:      output.SubjSN,
		AuthorityKeyID: input.AuthKeyID,
		SubjectKeyID:   output.SubjKeyID,
		PublicKey:      output.SubjKeyPair.PubKey.ToDER(),
		Tcb:            e.tcb,
	}).MarshalBinary()
	if err != nil {
		return fmt.Errorf("error encoding tbs: %w", err)
	}

	sig, signErr := Ecc384Sign(env, input.AuthKeyPair.PrivKey, tbs)
	if err := env.KeyVault.EraseKey(input.AuthKeyPair.PrivKey); err != nil {
		return errors.Join(signErr, fmt.Errorf("error erasing authority key %s: %w", input.AuthKeyPair.PrivKey, err))
	}
	slog.Debug("dice", "layer", e.name, "erased", input.AuthKeyPair.PrivKey)
	if signErr != nil {
		return fmt.Errorf("error signing certificate: %w", signErr)
	}

	if err := Ecc384Verify(env, input.AuthKeyPair.PubKey, tbs, sig); err != nil {
		return fmt.Errorf("error verifying certificate: %w", err)
	}

	output.CertSN = certSN
	output.TBS = tbs
	output.Signature = sig
	return nil
}
