// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Livegate Contributors

package errutil_test

import (
	"testing"

	"github.com/samber/oops"

	"github.com/livegate/livegate/pkg/errutil"
)

func TestAssertErrorCode_MatchingCode(t *testing.T) {
	err := oops.Code("MY_CODE").Errorf("test error")
	// Should not fail
	errutil.AssertErrorCode(t, err, "MY_CODE")
}
