// Copyright (C) 2020 Storj Labs, Inc.
// See LICENSE for copying information.

package davclient

import "encoding/base64"

// Credentials synthesizes the Authorization header value for one request.
// The provider is consulted on every request, so alternate schemes (digest,
// bearer tokens) can be substituted without touching request construction.
type Credentials interface {
	Authorization() string
}

// BasicAuth holds the username/password pair for HTTP Basic authentication.
type BasicAuth struct {
	Username string
	Password string
}

// Authorization returns the Basic authentication header value. The encoding
// is recomputed on every call and never cached.
func (b BasicAuth) Authorization() string {
	return "Basic " + base64.StdEncoding.EncodeToString([]byte(b.Username+":"+b.Password))
}
