// Copyright (C) 2020 Storj Labs, Inc.
// See LICENSE for copying information.

package davclient

import "strings"

// resolvePath joins the configured base path with a caller-supplied key into
// the wire-level resource path. The base loses its surrounding separators,
// the key its leading one, and the two are joined by exactly one separator.
// The result never starts with a separator and never contains a doubled
// separator. Resolving an already resolved path returns it unchanged.
func resolvePath(base, key string) string {
	base = strings.Trim(collapseSeparators(base), "/")
	key = strings.TrimPrefix(collapseSeparators(key), "/")
	if base == "" {
		return key
	}
	if key == "" {
		return base
	}
	if key == base || strings.HasPrefix(key, base+"/") {
		return key
	}
	return base + "/" + key
}

func collapseSeparators(p string) string {
	for strings.Contains(p, "//") {
		p = strings.ReplaceAll(p, "//", "/")
	}
	return p
}
