// SPDX-License-Identifier: MIT

//go:build sqlite

package ledger_test

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/suite"

	"github.com/katalvlaran/basinflow/ledger"
)

func TestSQLiteStore(t *testing.T) {
	suite.Run(t, &StoreSuite{newStore: func(t *testing.T) ledger.Store {
		return ledger.NewSQLiteStore(filepath.Join(t.TempDir(), "ledger.db"))
	}})
}
