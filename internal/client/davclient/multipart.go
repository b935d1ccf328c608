// Copyright (C) 2020 Storj Labs, Inc.
// See LICENSE for copying information.

package davclient

import (
	"context"
	"io"
	"strconv"
	"time"

	cli "storj.io/davbridge/internal/client"
)

// WebDAV has no chunked upload protocol, so the multipart surface below is a
// disguised single-shot upload: it satisfies the multipart-shaped contract
// without creating any server state or transferring any bytes. The returned
// uploads are tagged Native=false so callers cannot mistake the shim for a
// resumable protocol. The actual contents must be transferred with a single
// Upload call.

// CreateMultipartUpload returns a synthetic upload with a time-based ID. No
// request is issued and no server state is created.
func (client *Client) CreateMultipartUpload(ctx context.Context, key string) (*cli.MultipartUpload, error) {
	return &cli.MultipartUpload{
		Key:    key,
		ID:     strconv.FormatInt(time.Now().UnixNano(), 10),
		Native: false,
	}, nil
}

// UploadPart records a part without transmitting anything. The returned
// entity tag is the decimal part number.
func (client *Client) UploadPart(ctx context.Context, upload *cli.MultipartUpload, partNumber int, body io.Reader) (*cli.UploadedPart, error) {
	return &cli.UploadedPart{
		PartNumber: partNumber,
		ETag:       strconv.Itoa(partNumber),
	}, nil
}

// CompleteMultipartUpload is a no-op; there is no server state to assemble.
func (client *Client) CompleteMultipartUpload(ctx context.Context, upload *cli.MultipartUpload, parts []*cli.UploadedPart) error {
	return nil
}

// AbortMultipartUpload is a no-op; there is no server state to discard.
func (client *Client) AbortMultipartUpload(ctx context.Context, upload *cli.MultipartUpload) error {
	return nil
}
