// SPDX-FileCopyrightText: (C) 2024 Intel Corporation
// SPDX-License-Identifier: Apache 2.0

package sqlite_test

import (
	"path/filepath"
	"testing"

	"github.com/fido-device-onboard/go-dice/dicetest"
	"github.com/fido-device-onboard/go-dice/sqlite"
)

func newDB(t *testing.T, password string) *sqlite.DB {
	t.Helper()

	db, err := sqlite.Open(filepath.Join(t.TempDir(), "db.test"), password)
	if err != nil {
		t.Fatal(err)
	}
	db.DebugLog = dicetest.TestingLog(t)
	t.Cleanup(func() {
		if err := db.Close(); err != nil {
			t.Error(err)
		}
	})
	return db
}
