// Copyright (C) 2020 Storj Labs, Inc.
// See LICENSE for copying information.

package davclient

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestResolvePath(t *testing.T) {
	tests := []struct {
		base     string
		key      string
		expected string
	}{
		{"", "", ""},
		{"", "docs/readme.txt", "docs/readme.txt"},
		{"", "/docs/readme.txt", "docs/readme.txt"},
		{"files", "docs", "files/docs"},
		{"/files/", "/docs", "files/docs"},
		{"files", "", "files"},
		{"/", "/", ""},
		{"files", "docs/", "files/docs/"},
		{"a/b", "c//d", "a/b/c/d"},
		{"//files//", "key", "files/key"},
	}

	for _, test := range tests {
		require.Equal(t, test.expected, resolvePath(test.base, test.key),
			"base=%q key=%q", test.base, test.key)
	}
}

func TestResolvePathInvariants(t *testing.T) {
	bases := []string{"", "/", "files", "/files/", "a/b", "a//b/"}
	keys := []string{"", "/", "docs", "/docs", "docs/", "docs//x", "a/b", "a/b/c"}

	for _, base := range bases {
		for _, key := range keys {
			resolved := resolvePath(base, key)

			require.False(t, strings.HasPrefix(resolved, "/"),
				"leading separator in %q (base=%q key=%q)", resolved, base, key)
			require.NotContains(t, resolved, "//",
				"doubled separator in %q (base=%q key=%q)", resolved, base, key)

			// Resolving an already resolved path changes nothing.
			require.Equal(t, resolved, resolvePath(base, resolved),
				"not idempotent for base=%q key=%q", base, key)
		}
	}
}
