// SPDX-License-Identifier: MIT

//go:build !sqlite

package ledger

import "errors"

func newSQLiteStore(_ string) (Store, error) {
	return nil, errors.New("ledger: sqlite backend unavailable in this build; rebuild with -tags sqlite")
}
