// SPDX-FileCopyrightText: (C) 2024 Intel Corporation
// SPDX-License-Identifier: Apache 2.0

package dice_test

import (
	"errors"
	"fmt"
	"io"
	"testing"

	"github.com/fido-device-onboard/go-dice"
	"github.com/fido-device-onboard/go-dice/dicetest"
)

func TestReport(t *testing.T) {
	for _, test := range []struct {
		err      error
		code     dice.ErrorCode
		fatal    bool
		reported bool
	}{
		{err: nil},
		{err: dice.ErrUnknownResetReason, code: dice.ErrUnknownResetReason, reported: true},
		{err: dice.ErrException, code: dice.ErrException, reported: true},
		{err: fmt.Errorf("warm reset: %w", dice.ErrMeasurementDisagreement), code: dice.ErrMeasurementDisagreement, fatal: true, reported: true},
		{err: fmt.Errorf("%w: %w", dice.ErrCryptoFailure, dice.ErrKeyLocked), code: dice.ErrCryptoFailure, fatal: true, reported: true},
		{err: fmt.Errorf("%w: %w", dice.ErrDataVault, io.ErrUnexpectedEOF), code: dice.ErrDataVault, fatal: true, reported: true},
		{err: io.ErrUnexpectedEOF, code: dice.ErrInternal, fatal: true, reported: true},
	} {
		t.Run(fmt.Sprint(test.err), func(t *testing.T) {
			r := new(dicetest.Reporter)
			code := dice.Report(r, test.err)
			if code != test.code {
				t.Errorf("reported code %v, expected %v", code, test.code)
			}
			if dice.IsFatal(test.err) != test.fatal {
				t.Errorf("expected fatal=%t", test.fatal)
			}
			switch {
			case !test.reported:
				if len(r.Fatal)+len(r.NonFatal) != 0 {
					t.Error("expected nothing to be reported")
				}
			case test.fatal:
				if len(r.Fatal) != 1 || len(r.NonFatal) != 0 || r.Fatal[0] != test.code {
					t.Errorf("expected a fatal report of %v, got %+v", test.code, r)
				}
			default:
				if len(r.Fatal) != 0 || len(r.NonFatal) != 1 {
					t.Errorf("expected a non-fatal report, got %+v", r)
				}
			}
		})
	}
}

func TestErrorCodeMessages(t *testing.T) {
	if dice.ErrKeyNotWritten.Error() == dice.ErrKeyLocked.Error() {
		t.Error("codes share a message")
	}
	if msg := dice.ErrorCode(0x00AB_0001).Error(); msg != "error 0x00AB0001" {
		t.Errorf("unexpected message for unnamed code: %s", msg)
	}
	if !errors.Is(fmt.Errorf("wrapped: %w", dice.ErrPcrLocked), dice.ErrPcrLocked) {
		t.Error("wrapped code not matched")
	}
}
