// SPDX-FileCopyrightText: (C) 2024 Intel Corporation
// SPDX-License-Identifier: Apache 2.0

// Package dicetest contains test harnesses for the dice package.
package dicetest

import (
	"bytes"
	"crypto/sha256"
	"crypto/sha512"
	"sync"

	"github.com/fido-device-onboard/go-dice"
	"github.com/fido-device-onboard/go-dice/internal/memory"
	"github.com/fido-device-onboard/go-dice/sw"
)

// MockMac is the tag computed by MockHmac384: SHA384(key || data).
func MockMac(key, data []byte) []byte {
	h := sha512.New384()
	_, _ = h.Write(key)
	_, _ = h.Write(data)
	return h.Sum(nil)
}

// MockPubKey is the public key generated by MockEcc384 from a seed. The
// private key material is the seed itself.
func MockPubKey(seed []byte) dice.Ecc384PubKey {
	var pub dice.Ecc384PubKey
	copy(pub.X[:], MockMac([]byte("X"), seed))
	copy(pub.Y[:], MockMac([]byte("Y"), seed))
	return pub
}

func mockSignature(pub dice.Ecc384PubKey, data []byte) dice.Ecc384Signature {
	var sig dice.Ecc384Signature
	copy(sig.R[:], MockMac(pub.ToDER(), data))
	copy(sig.S[:], MockMac(sig.R[:], nil))
	return sig
}

// MockSha256 implements dice.Sha256 with the standard library unless
// DigestFunc is set.
type MockSha256 struct {
	DigestFunc func(data []byte) ([32]byte, error)
}

var _ dice.Sha256 = (*MockSha256)(nil)

// Digest implements dice.Sha256.
func (m *MockSha256) Digest(data []byte) ([32]byte, error) {
	if m.DigestFunc != nil {
		return m.DigestFunc(data)
	}
	return sha256.Sum256(data), nil
}

// MockHmac384 implements dice.Hmac384 over a key vault with MockMac unless
// HmacFunc is set.
type MockHmac384 struct {
	Vault    dice.KeyVault
	HmacFunc func(key dice.KeyReadArgs, data []byte, tag dice.KeyWriteArgs) error
}

var _ dice.Hmac384 = (*MockHmac384)(nil)

// Hmac implements dice.Hmac384.
func (m *MockHmac384) Hmac(key dice.KeyReadArgs, data []byte, tag dice.KeyWriteArgs) error {
	if m.HmacFunc != nil {
		return m.HmacFunc(key, data, tag)
	}
	k, err := m.Vault.ReadKey(key, dice.KeyUsageHmacKey)
	if err != nil {
		return err
	}
	return m.Vault.WriteKey(tag, dice.NewSecret(MockMac(k.Material(), data)))
}

// MockEcc384 implements dice.Ecc384 over a key vault. Keys come from
// MockPubKey and signatures are a digest of the public key and data, so
// they verify without any asymmetric crypto. Any Func field overrides the
// corresponding method.
type MockEcc384 struct {
	Vault       dice.KeyVault
	KeyPairFunc func(seed dice.KeyReadArgs, nonce [dice.Ecc384ScalarSize]byte, priv dice.KeyWriteArgs) (dice.Ecc384PubKey, error)
	SignFunc    func(priv dice.KeyReadArgs, data []byte) (dice.Ecc384Signature, error)
	VerifyFunc  func(pub dice.Ecc384PubKey, data []byte, sig dice.Ecc384Signature) (bool, error)

	mu    sync.Mutex
	signs []dice.KeyID
}

var _ dice.Ecc384 = (*MockEcc384)(nil)

// KeyPair implements dice.Ecc384.
func (m *MockEcc384) KeyPair(seed dice.KeyReadArgs, nonce [dice.Ecc384ScalarSize]byte, priv dice.KeyWriteArgs) (dice.Ecc384PubKey, error) {
	if m.KeyPairFunc != nil {
		return m.KeyPairFunc(seed, nonce, priv)
	}
	s, err := m.Vault.ReadKey(seed, dice.KeyUsageEccKeyGenSeed)
	if err != nil {
		return dice.Ecc384PubKey{}, err
	}
	if err := m.Vault.WriteKey(priv, s); err != nil {
		return dice.Ecc384PubKey{}, err
	}
	return MockPubKey(s.Material()), nil
}

// Sign implements dice.Ecc384.
func (m *MockEcc384) Sign(priv dice.KeyReadArgs, data []byte) (dice.Ecc384Signature, error) {
	m.mu.Lock()
	m.signs = append(m.signs, priv.ID)
	m.mu.Unlock()

	if m.SignFunc != nil {
		return m.SignFunc(priv, data)
	}
	s, err := m.Vault.ReadKey(priv, dice.KeyUsageEccPrivateKey)
	if err != nil {
		return dice.Ecc384Signature{}, err
	}
	return mockSignature(MockPubKey(s.Material()), data), nil
}

// Verify implements dice.Ecc384.
func (m *MockEcc384) Verify(pub dice.Ecc384PubKey, data []byte, sig dice.Ecc384Signature) (bool, error) {
	if m.VerifyFunc != nil {
		return m.VerifyFunc(pub, data, sig)
	}
	want := mockSignature(pub, data)
	return bytes.Equal(want.R[:], sig.R[:]) && bytes.Equal(want.S[:], sig.S[:]), nil
}

// Signers returns the slots used by Sign, in order.
func (m *MockEcc384) Signers() []dice.KeyID {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]dice.KeyID(nil), m.signs...)
}

// MockEnv is an environment using mock crypto engines over a software key
// vault and register bank, and an in-memory data vault.
type MockEnv struct {
	*dice.Env
	Vault   *sw.KeyVault
	Pcrs    *sw.PcrBank
	Data    *memory.DataVault
	Sha     *MockSha256
	Hmac    *MockHmac384
	Ecc     *MockEcc384
	Flows   *FlowRecorder
	Reports *Reporter
}

// NewMockEnv creates a MockEnv for the given reset reason. The flow hook
// records into Flows.
func NewMockEnv(reason dice.ResetReason) *MockEnv {
	vault := sw.NewKeyVault()
	m := &MockEnv{
		Vault:   vault,
		Pcrs:    new(sw.PcrBank),
		Data:    memory.NewDataVault(),
		Sha:     new(MockSha256),
		Hmac:    &MockHmac384{Vault: vault},
		Ecc:     &MockEcc384{Vault: vault},
		Flows:   new(FlowRecorder),
		Reports: new(Reporter),
	}
	m.Env = &dice.Env{
		KeyVault:    m.Vault,
		Sha256:      m.Sha,
		Hmac384:     m.Hmac,
		Ecc384:      m.Ecc,
		PcrBank:     m.Pcrs,
		DataVault:   m.Data,
		ResetReason: reason,
		FlowHook:    m.Flows.Hook,
	}
	return m
}

// WriteSecret places raw material in a slot, as a previous stage would.
func (m *MockEnv) WriteSecret(id dice.KeyID, usage dice.KeyUsage, material []byte) error {
	return m.Vault.WriteKey(dice.KeyWriteArgs{ID: id, Usage: usage}, dice.NewSecret(material))
}

// FlowRecorder records the flows selected by dice.Run.
type FlowRecorder struct {
	mu    sync.Mutex
	flows []dice.ResetReason
}

// Hook is suitable for dice.Env.FlowHook.
func (r *FlowRecorder) Hook(reason dice.ResetReason) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.flows = append(r.flows, reason)
}

// Flows returns the recorded flows in order.
func (r *FlowRecorder) Flows() []dice.ResetReason {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]dice.ResetReason(nil), r.flows...)
}

// Reporter implements dice.ErrorReporter by recording codes.
type Reporter struct {
	Fatal    []dice.ErrorCode
	NonFatal []dice.ErrorCode
}

var _ dice.ErrorReporter = (*Reporter)(nil)

// ReportFatal implements dice.ErrorReporter.
func (r *Reporter) ReportFatal(code dice.ErrorCode) { r.Fatal = append(r.Fatal, code) }

// ReportNonFatal implements dice.ErrorReporter.
func (r *Reporter) ReportNonFatal(code dice.ErrorCode) { r.NonFatal = append(r.NonFatal, code) }
