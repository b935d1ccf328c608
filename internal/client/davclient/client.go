// Copyright (C) 2020 Storj Labs, Inc.
// See LICENSE for copying information.

// Package davclient exposes an S3-shaped object storage contract on top of a
// WebDAV server. Every operation maps to a single WebDAV exchange: listings
// use PROPFIND with Depth 1, folders MKCOL, server-side copies COPY, and the
// rest plain HTTP verbs.
package davclient

import (
	"context"
	"io"
	"io/ioutil"
	"net/http"
	"net/url"
	"strings"
	"time"

	monkit "github.com/spacemonkeygo/monkit/v3"
	"github.com/zeebo/errs"

	cli "storj.io/davbridge/internal/client"
	"storj.io/davbridge/internal/config"
)

var (
	mon = monkit.Package()

	// Error is the error for this package.
	Error = errs.Class("webdav-client")
	// ErrTransport wraps network-level failures of the HTTP exchange.
	ErrTransport = errs.Class("transport")
	// ErrStatus marks responses outside an operation's accepted status set.
	ErrStatus = errs.Class("unexpected status")
)

// WebDAV verbs missing from net/http's method constants.
const (
	methodPropfind = "PROPFIND"
	methodMkcol    = "MKCOL"
	methodCopy     = "COPY"
)

const defaultContentType = "application/octet-stream"

// maxErrorBody bounds how much of a failed response is quoted in errors.
const maxErrorBody = 4 << 10

// propfindBody requests the fixed property set a listing needs.
const propfindBody = `<?xml version="1.0" encoding="utf-8"?>
<D:propfind xmlns:D="DAV:"><D:prop><D:displayname/><D:getcontentlength/><D:getlastmodified/><D:resourcetype/></D:prop></D:propfind>`

// Client is a WebDAV-backed object store.
type Client struct {
	cfg   config.WebDAVEndpoint
	base  *url.URL
	creds Credentials
	http  *http.Client
}

// New creates a new WebDAV client.
func New(cfg config.WebDAVEndpoint) (*Client, error) {
	switch {
	case cfg.Address == "":
		return nil, errs.New("address is required")
	case cfg.Username == "":
		return nil, errs.New("username is required")
	case cfg.Password == "":
		return nil, errs.New("password is required")
	}

	base, err := url.Parse(cfg.Address)
	if err != nil {
		return nil, Error.Wrap(err)
	}
	if base.Scheme != "http" && base.Scheme != "https" {
		return nil, errs.New("unsupported address scheme %q", base.Scheme)
	}

	return &Client{
		cfg:   cfg,
		base:  base,
		creds: BasicAuth{Username: cfg.Username, Password: cfg.Password},
		http:  http.DefaultClient,
	}, nil
}

// List returns the single-level contents under opts.Prefix.
//
// The Depth 1 PROPFIND returns the complete level in one multi-status
// response, so MaxKeys, Delimiter and ContinuationToken are ignored and the
// listing is never truncated.
func (client *Client) List(ctx context.Context, opts cli.ListOptions) (_ *cli.Listing, err error) {
	defer mon.Task()(&ctx)(&err)

	path := resolvePath(client.cfg.Path, opts.Prefix)
	if path != "" && !strings.HasSuffix(path, "/") {
		path += "/"
	}

	req, err := client.newRequest(ctx, methodPropfind, path, strings.NewReader(propfindBody))
	if err != nil {
		return nil, Error.Wrap(err)
	}
	req.Header.Set("Content-Type", "application/xml")
	req.Header.Set("Depth", "1")

	resp, err := client.do(req, "list", http.StatusMultiStatus)
	if err != nil {
		return nil, Error.Wrap(err)
	}
	defer func() { err = errs.Combine(err, Error.Wrap(resp.Body.Close())) }()

	data, err := ioutil.ReadAll(resp.Body)
	if err != nil {
		return nil, Error.Wrap(ErrTransport.New("list %q: %v", req.URL.Path, err))
	}

	listing, err := parseMultiStatus(data, req.URL.Path)
	if err != nil {
		return nil, Error.Wrap(err)
	}
	return listing, nil
}

// Download opens a stream of the object contents at key.
func (client *Client) Download(ctx context.Context, key string) (_ io.ReadCloser, err error) {
	defer mon.Task()(&ctx)(&err)

	req, err := client.newRequest(ctx, http.MethodGet, resolvePath(client.cfg.Path, key), nil)
	if err != nil {
		return nil, Error.Wrap(err)
	}

	resp, err := client.do(req, "download")
	if err != nil {
		return nil, Error.Wrap(err)
	}
	return resp.Body, nil
}

// Upload stores body at key via a single PUT.
func (client *Client) Upload(ctx context.Context, key string, body io.Reader, contentType string) (err error) {
	defer mon.Task()(&ctx)(&err)

	if contentType == "" {
		contentType = defaultContentType
	}

	req, err := client.newRequest(ctx, http.MethodPut, resolvePath(client.cfg.Path, key), body)
	if err != nil {
		return Error.Wrap(err)
	}
	req.Header.Set("Content-Type", contentType)

	resp, err := client.do(req, "upload")
	if err != nil {
		return Error.Wrap(err)
	}
	return Error.Wrap(discard(resp))
}

// Delete removes the object at key.
func (client *Client) Delete(ctx context.Context, key string) (err error) {
	defer mon.Task()(&ctx)(&err)

	req, err := client.newRequest(ctx, http.MethodDelete, resolvePath(client.cfg.Path, key), nil)
	if err != nil {
		return Error.Wrap(err)
	}

	resp, err := client.do(req, "delete", http.StatusNoContent)
	if err != nil {
		return Error.Wrap(err)
	}
	return Error.Wrap(discard(resp))
}

// MakeFolder creates a collection at folder. WebDAV collection creation is
// separator sensitive, so the target always gets a trailing separator before
// resolution.
func (client *Client) MakeFolder(ctx context.Context, folder string) (err error) {
	defer mon.Task()(&ctx)(&err)

	if !strings.HasSuffix(folder, "/") {
		folder += "/"
	}

	req, err := client.newRequest(ctx, methodMkcol, resolvePath(client.cfg.Path, folder), nil)
	if err != nil {
		return Error.Wrap(err)
	}

	resp, err := client.do(req, "make folder", http.StatusCreated)
	if err != nil {
		return Error.Wrap(err)
	}
	return Error.Wrap(discard(resp))
}

// Copy duplicates the object at sourceKey to destKey on the server. Existing
// destinations are not overwritten.
func (client *Client) Copy(ctx context.Context, sourceKey, destKey string) (err error) {
	defer mon.Task()(&ctx)(&err)

	req, err := client.newRequest(ctx, methodCopy, resolvePath(client.cfg.Path, sourceKey), nil)
	if err != nil {
		return Error.Wrap(err)
	}
	req.Header.Set("Destination", client.resourceURL(resolvePath(client.cfg.Path, destKey)).String())
	req.Header.Set("Overwrite", "F")

	resp, err := client.do(req, "copy", http.StatusCreated, http.StatusNoContent)
	if err != nil {
		return Error.Wrap(err)
	}
	return Error.Wrap(discard(resp))
}

// Head returns object metadata, or (nil, nil) when the server reports the
// key absent. Absence is an expected outcome of existence checks, not a
// failure.
func (client *Client) Head(ctx context.Context, key string) (_ *cli.HeadInfo, err error) {
	defer mon.Task()(&ctx)(&err)

	req, err := client.newRequest(ctx, http.MethodHead, resolvePath(client.cfg.Path, key), nil)
	if err != nil {
		return nil, Error.Wrap(err)
	}

	resp, err := client.do(req, "head", http.StatusNotFound)
	if err != nil {
		return nil, Error.Wrap(err)
	}
	if resp.StatusCode == http.StatusNotFound {
		return nil, Error.Wrap(discard(resp))
	}

	info := &cli.HeadInfo{
		ContentType:  resp.Header.Get("Content-Type"),
		LastModified: resp.Header.Get("Last-Modified"),
	}
	if resp.ContentLength > 0 {
		info.ContentLength = resp.ContentLength
	}
	return info, Error.Wrap(discard(resp))
}

// SignedURL returns a direct URL for key. WebDAV has no native request
// signing, so the URL carries no signature, expires is ignored, and the
// result is not cryptographically protected.
func (client *Client) SignedURL(key string, expires time.Duration) (string, error) {
	return client.resourceURL(resolvePath(client.cfg.Path, key)).String(), nil
}

// Close closes the client.
func (client *Client) Close() (err error) { return nil }

// newRequest builds a request for the wire path with the Authorization
// header freshly synthesized.
func (client *Client) newRequest(ctx context.Context, method, wirePath string, body io.Reader) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, client.resourceURL(wirePath).String(), body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", client.creds.Authorization())
	return req, nil
}

// resourceURL builds the absolute URL for a wire path. The path is stored
// unescaped on the URL so reserved characters in keys survive encoding.
func (client *Client) resourceURL(wirePath string) *url.URL {
	u := *client.base
	u.Path = strings.TrimSuffix(client.base.Path, "/") + "/" + wirePath
	return &u
}

// do performs the exchange and enforces the operation's accepted status set:
// the 2xx range plus any extra codes. Transport errors and rejected statuses
// both come back as this package's error classes, never as raw transport
// errors. On rejection the response body is quoted best-effort.
func (client *Client) do(req *http.Request, op string, accept ...int) (*http.Response, error) {
	resp, err := client.http.Do(req)
	if err != nil {
		return nil, ErrTransport.New("%s %q: %v", op, req.URL.Path, err)
	}
	if !statusAccepted(resp.StatusCode, accept...) {
		body, _ := ioutil.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		_ = resp.Body.Close()
		return nil, ErrStatus.New("%s %q: status %d: %s",
			op, req.URL.Path, resp.StatusCode, strings.TrimSpace(string(body)))
	}
	return resp, nil
}

func statusAccepted(code int, extra ...int) bool {
	if code >= 200 && code < 300 {
		return true
	}
	for _, c := range extra {
		if code == c {
			return true
		}
	}
	return false
}

// discard drains and closes a response body whose contents are not needed,
// keeping the connection reusable.
func discard(resp *http.Response) error {
	_, copyErr := io.Copy(ioutil.Discard, resp.Body)
	return errs.Combine(copyErr, resp.Body.Close())
}
