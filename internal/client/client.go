// Copyright (C) 2020 Storj Labs, Inc.
// See LICENSE for copying information.

package client

import (
	"context"
	"io"
	"time"
)

// Store represents an S3-shaped object storage client.
//
// Implementations issue exactly one network request per operation and keep
// no state between calls beyond their immutable configuration, so a single
// Store may be used concurrently. No implementation retries or imposes
// timeouts; callers wanting a deadline must bound the context themselves.
type Store interface {
	// List returns the objects under opts.Prefix.
	List(ctx context.Context, opts ListOptions) (*Listing, error)
	// Download opens a stream of the object contents at key. The caller
	// owns closing the returned stream.
	Download(ctx context.Context, key string) (io.ReadCloser, error)
	// Upload stores body at key. An empty contentType falls back to
	// application/octet-stream.
	Upload(ctx context.Context, key string, body io.Reader, contentType string) error
	// Delete removes the object at key.
	Delete(ctx context.Context, key string) error
	// MakeFolder creates a directory-like entry at folder.
	MakeFolder(ctx context.Context, folder string) error
	// Copy duplicates the object at sourceKey to destKey without
	// transferring the contents through the client.
	Copy(ctx context.Context, sourceKey, destKey string) error
	// Head returns object metadata, or (nil, nil) when the key does not
	// exist. Absence is an expected outcome, not a failure.
	Head(ctx context.Context, key string) (*HeadInfo, error)
	// SignedURL returns a URL granting direct access to key for the given
	// duration. Backends without native request signing return a plain,
	// unsigned URL and ignore expires.
	SignedURL(key string, expires time.Duration) (string, error)

	// CreateMultipartUpload starts a multipart upload for key. Check
	// MultipartUpload.Native before relying on resumability: backends
	// without a chunked upload protocol return a synthetic upload that
	// transfers nothing.
	CreateMultipartUpload(ctx context.Context, key string) (*MultipartUpload, error)
	// UploadPart transfers one part of a multipart upload.
	UploadPart(ctx context.Context, upload *MultipartUpload, partNumber int, body io.Reader) (*UploadedPart, error)
	// CompleteMultipartUpload assembles the uploaded parts into the final
	// object.
	CompleteMultipartUpload(ctx context.Context, upload *MultipartUpload, parts []*UploadedPart) error
	// AbortMultipartUpload discards any server state held for the upload.
	AbortMultipartUpload(ctx context.Context, upload *MultipartUpload) error

	// Close releases resources held by the client.
	Close() error
}

// ListOptions selects what a List call returns.
type ListOptions struct {
	// Prefix filters results to keys under this value.
	Prefix string
	// Delimiter groups keys (typically "/"). Backends whose listing is
	// inherently single-level ignore it.
	Delimiter string
	// MaxKeys limits the number of keys returned per page, where the
	// backend supports paging.
	MaxKeys int
	// ContinuationToken resumes a listing from a previous Listing, where
	// the backend supports paging.
	ContinuationToken string
}

// Object is one entry of a listing.
type Object struct {
	// Key is the entry name relative to the listed prefix, not a full path.
	Key string
	// Name is the display name. It currently always equals Key.
	Name string
	// Size is the content length in bytes; directories report 0.
	Size int64
	// LastModified is the backend-native timestamp string, not reparsed.
	LastModified string
	// IsDirectory reports whether the entry is a directory.
	IsDirectory bool
	// ETag is the entity tag when the backend supplied one.
	ETag string
}

// Listing is the normalized result of a List call.
type Listing struct {
	// Objects holds directories first, then files, each group in
	// locale-collated display name order.
	Objects []Object
	// Prefixes holds the keys of the directory entries.
	Prefixes []string
	// IsTruncated reports whether more results exist beyond this page.
	IsTruncated bool
	// NextContinuationToken resumes the listing when IsTruncated is set.
	NextContinuationToken string
}

// HeadInfo is the metadata returned by Head.
type HeadInfo struct {
	ContentLength int64
	ContentType   string
	LastModified  string
}

// MultipartUpload identifies an in-progress multipart upload.
type MultipartUpload struct {
	Key string
	ID  string
	// Native reports whether the backend runs a real chunked upload
	// protocol. When false the upload is a disguised single-shot: parts
	// transfer nothing and the actual bytes must go through Upload.
	Native bool
}

// UploadedPart records one transferred part of a multipart upload.
type UploadedPart struct {
	PartNumber int
	ETag       string
}
