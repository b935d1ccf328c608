// Copyright (C) 2020 Storj Labs, Inc.
// See LICENSE for copying information.

package davclient_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"storj.io/davbridge/internal/client/davclient"
)

func TestBasicAuthAuthorization(t *testing.T) {
	creds := davclient.BasicAuth{Username: "ann", Password: "secret"}
	require.Equal(t, "Basic YW5uOnNlY3JldA==", creds.Authorization())

	// Recomputed per call, byte for byte.
	require.Equal(t, creds.Authorization(), creds.Authorization())
}
