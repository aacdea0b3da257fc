// SPDX-FileCopyrightText: (C) 2024 Intel Corporation
// SPDX-License-Identifier: Apache 2.0

package dice

import (
	"errors"
	"fmt"
)

// ErrorCode is a numeric error reported to the host over the error-reporting
// channel. The high 16 bits identify the component and the low 16 bits the
// condition.
type ErrorCode uint32

// Error codes reported by this stage.
const (
	ErrCapabilityMismatch      ErrorCode = 0x0002_0001
	ErrKeyNotWritten           ErrorCode = 0x0002_0002
	ErrKeyLocked               ErrorCode = 0x0002_0003
	ErrInvalidKeySlot          ErrorCode = 0x0002_0004
	ErrPcrLocked               ErrorCode = 0x0003_0001
	ErrMeasurementDisagreement ErrorCode = 0x000F_0001
	ErrCryptoFailure           ErrorCode = 0x000F_0002
	ErrSignatureVerification   ErrorCode = 0x000F_0003
	ErrUnknownResetReason      ErrorCode = 0x000F_0004
	ErrInvalidHandOff          ErrorCode = 0x000F_0005
	ErrDataVault               ErrorCode = 0x000F_0006
	ErrInternal                ErrorCode = 0x000F_0007

	// ErrException is reported from the trap path. It does not claim
	// firmware corruption.
	ErrException ErrorCode = 0x000D_EAD0
)

// ErrNotFound is returned by persistent state lookups when no record exists.
var ErrNotFound = errors.New("not found")

// Error implements the standard error interface.
func (c ErrorCode) Error() string {
	switch c {
	case ErrCapabilityMismatch:
		return "key usage does not permit operation"
	case ErrKeyNotWritten:
		return "key slot is empty"
	case ErrKeyLocked:
		return "key slot is locked"
	case ErrInvalidKeySlot:
		return "invalid key slot"
	case ErrPcrLocked:
		return "pcr is locked"
	case ErrMeasurementDisagreement:
		return "journey and current pcr disagree"
	case ErrCryptoFailure:
		return "crypto operation failed"
	case ErrSignatureVerification:
		return "signature verification failed"
	case ErrUnknownResetReason:
		return "unknown reset reason"
	case ErrInvalidHandOff:
		return "invalid hand-off"
	case ErrDataVault:
		return "data vault failure"
	case ErrInternal:
		return "internal error"
	case ErrException:
		return "exception"
	default:
		return fmt.Sprintf("error 0x%08X", uint32(c))
	}
}

// Fatal reports whether the code must be signaled on the fatal channel.
func (c ErrorCode) Fatal() bool {
	switch c {
	case ErrUnknownResetReason, ErrException:
		return false
	default:
		return true
	}
}

// CodeOf returns the first error code found in the tree of err. Errors
// without a code, such as I/O failures from persistent state, return false.
func CodeOf(err error) (ErrorCode, bool) {
	var code ErrorCode
	if errors.As(err, &code) {
		return code, true
	}
	return 0, false
}

// IsFatal reports whether err must halt the stage with a fatal report. A nil
// error is not fatal and an error without a code is fatal.
func IsFatal(err error) bool {
	if err == nil {
		return false
	}
	code, ok := CodeOf(err)
	return !ok || code.Fatal()
}

// ErrorReporter is the host-visible error reporting channel.
type ErrorReporter interface {
	ReportFatal(code ErrorCode)
	ReportNonFatal(code ErrorCode)
}

// Report classifies err and sends it to the reporter. It returns the code
// that was reported. Errors without a code are reported as fatal
// ErrInternal.
func Report(r ErrorReporter, err error) ErrorCode {
	if err == nil {
		return 0
	}
	code, ok := CodeOf(err)
	if !ok {
		code = ErrInternal
	}
	if IsFatal(err) {
		r.ReportFatal(code)
	} else {
		r.ReportNonFatal(code)
	}
	return code
}
