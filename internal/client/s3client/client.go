// Copyright (C) 2020 Storj Labs, Inc.
// See LICENSE for copying information.

// Package s3client implements the store contract against a native S3
// endpoint. Unlike the WebDAV translation it supports real pagination,
// presigned URLs and real multipart uploads.
package s3client

import (
	"bytes"
	"context"
	"io"
	"io/ioutil"
	"net/http"
	"path"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/awserr"
	"github.com/aws/aws-sdk-go/aws/credentials"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3"
	"github.com/aws/aws-sdk-go/service/s3/s3manager"
	monkit "github.com/spacemonkeygo/monkit/v3"
	"github.com/zeebo/errs"

	cli "storj.io/davbridge/internal/client"
	"storj.io/davbridge/internal/config"
)

var (
	mon = monkit.Package()

	// Error is the error for this package.
	Error = errs.Class("s3-client")
)

// Client is an S3 client.
type Client struct {
	cfg     config.S3Endpoint
	session *session.Session
	svc     *s3.S3
}

// New creates a new S3 client.
func New(cfg config.S3Endpoint) (*Client, error) {
	switch {
	case cfg.Region == "":
		return nil, errs.New("region is required")
	case cfg.Bucket == "":
		return nil, errs.New("bucket is required")
	case cfg.AccessKey == "":
		return nil, errs.New("access key is required")
	case cfg.SecretKey == "":
		return nil, errs.New("secret key is required")
	}

	sess, err := session.NewSession(&aws.Config{
		Region:      aws.String(cfg.Region),
		Credentials: credentials.NewStaticCredentials(cfg.AccessKey, cfg.SecretKey, ""),
		Endpoint:    aws.String(cfg.Address),
	})
	if err != nil {
		return nil, err
	}

	return &Client{
		cfg:     cfg,
		session: sess,
		svc:     s3.New(sess),
	}, nil
}

// List returns the objects found under opts.Prefix. Delimiter, MaxKeys and
// ContinuationToken map directly onto ListObjectsV2.
func (client *Client) List(ctx context.Context, opts cli.ListOptions) (_ *cli.Listing, err error) {
	defer mon.Task()(&ctx)(&err)

	prefix := client.bucketKey(opts.Prefix)
	if prefix != "" && !strings.HasSuffix(prefix, "/") {
		prefix += "/"
	}

	input := &s3.ListObjectsV2Input{
		Bucket: aws.String(client.cfg.Bucket),
		Prefix: aws.String(prefix),
	}
	if opts.Delimiter != "" {
		input.Delimiter = aws.String(opts.Delimiter)
	}
	if opts.MaxKeys > 0 {
		input.MaxKeys = aws.Int64(int64(opts.MaxKeys))
	}
	if opts.ContinuationToken != "" {
		input.ContinuationToken = aws.String(opts.ContinuationToken)
	}

	out, err := client.svc.ListObjectsV2WithContext(ctx, input)
	if err != nil {
		return nil, Error.Wrap(err)
	}

	listing := &cli.Listing{
		IsTruncated:           aws.BoolValue(out.IsTruncated),
		NextContinuationToken: aws.StringValue(out.NextContinuationToken),
	}
	for _, pre := range out.CommonPrefixes {
		name := strings.TrimSuffix(strings.TrimPrefix(aws.StringValue(pre.Prefix), prefix), "/")
		listing.Objects = append(listing.Objects, cli.Object{
			Key:         name,
			Name:        name,
			IsDirectory: true,
		})
		listing.Prefixes = append(listing.Prefixes, name)
	}
	for _, obj := range out.Contents {
		key := strings.TrimPrefix(aws.StringValue(obj.Key), prefix)
		if key == "" {
			// The folder marker object for the prefix itself.
			continue
		}
		listing.Objects = append(listing.Objects, cli.Object{
			Key:          key,
			Name:         key,
			Size:         aws.Int64Value(obj.Size),
			LastModified: aws.TimeValue(obj.LastModified).Format(http.TimeFormat),
			ETag:         strings.Trim(aws.StringValue(obj.ETag), `"`),
		})
	}
	return listing, nil
}

// Download opens a stream of the object contents at key.
func (client *Client) Download(ctx context.Context, key string) (_ io.ReadCloser, err error) {
	defer mon.Task()(&ctx)(&err)

	out, err := client.svc.GetObjectWithContext(ctx, &s3.GetObjectInput{
		Bucket: aws.String(client.cfg.Bucket),
		Key:    aws.String(client.bucketKey(key)),
	})
	if err != nil {
		return nil, Error.New("could not open object at %q/%q: %v", client.cfg.Bucket, key, err)
	}
	return out.Body, nil
}

// Upload stores body at key.
func (client *Client) Upload(ctx context.Context, key string, body io.Reader, contentType string) (err error) {
	defer mon.Task()(&ctx)(&err)

	// Use a new uploader for each upload so results are not skewed by the
	// caching done by the uploader part pool.
	uploader := s3manager.NewUploader(client.session)

	input := &s3manager.UploadInput{
		Bucket: aws.String(client.cfg.Bucket),
		Key:    aws.String(client.bucketKey(key)),
		Body:   body,
	}
	if contentType != "" {
		input.ContentType = aws.String(contentType)
	}

	_, err = uploader.UploadWithContext(ctx, input)
	if err != nil {
		return Error.New("failed to upload object %q: %v", key, err)
	}
	return nil
}

// Delete deletes the object at key.
func (client *Client) Delete(ctx context.Context, key string) (err error) {
	defer mon.Task()(&ctx)(&err)

	_, err = client.svc.DeleteObjectWithContext(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(client.cfg.Bucket),
		Key:    aws.String(client.bucketKey(key)),
	})
	if err != nil {
		return Error.New("could not delete object at %q/%q: %v", client.cfg.Bucket, key, err)
	}
	return nil
}

// MakeFolder creates a zero-byte folder marker object at folder.
func (client *Client) MakeFolder(ctx context.Context, folder string) (err error) {
	defer mon.Task()(&ctx)(&err)

	marker := client.bucketKey(folder)
	if !strings.HasSuffix(marker, "/") {
		marker += "/"
	}

	_, err = client.svc.PutObjectWithContext(ctx, &s3.PutObjectInput{
		Bucket: aws.String(client.cfg.Bucket),
		Key:    aws.String(marker),
		Body:   bytes.NewReader(nil),
	})
	if err != nil {
		return Error.New("could not create folder %q/%q: %v", client.cfg.Bucket, folder, err)
	}
	return nil
}

// Copy duplicates the object at sourceKey to destKey server-side.
func (client *Client) Copy(ctx context.Context, sourceKey, destKey string) (err error) {
	defer mon.Task()(&ctx)(&err)

	_, err = client.svc.CopyObjectWithContext(ctx, &s3.CopyObjectInput{
		Bucket:     aws.String(client.cfg.Bucket),
		CopySource: aws.String(client.cfg.Bucket + "/" + client.bucketKey(sourceKey)),
		Key:        aws.String(client.bucketKey(destKey)),
	})
	if err != nil {
		return Error.New("could not copy %q to %q: %v", sourceKey, destKey, err)
	}
	return nil
}

// Head returns object metadata, or (nil, nil) when the key does not exist.
func (client *Client) Head(ctx context.Context, key string) (_ *cli.HeadInfo, err error) {
	defer mon.Task()(&ctx)(&err)

	out, err := client.svc.HeadObjectWithContext(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(client.cfg.Bucket),
		Key:    aws.String(client.bucketKey(key)),
	})
	if err != nil {
		if isNotFound(err) {
			return nil, nil
		}
		return nil, Error.Wrap(err)
	}

	return &cli.HeadInfo{
		ContentLength: aws.Int64Value(out.ContentLength),
		ContentType:   aws.StringValue(out.ContentType),
		LastModified:  aws.TimeValue(out.LastModified).Format(http.TimeFormat),
	}, nil
}

// SignedURL returns a presigned GET URL for key.
func (client *Client) SignedURL(key string, expires time.Duration) (string, error) {
	req, _ := client.svc.GetObjectRequest(&s3.GetObjectInput{
		Bucket: aws.String(client.cfg.Bucket),
		Key:    aws.String(client.bucketKey(key)),
	})
	signed, err := req.Presign(expires)
	if err != nil {
		return "", Error.Wrap(err)
	}
	return signed, nil
}

// CreateMultipartUpload starts a real multipart upload for key.
func (client *Client) CreateMultipartUpload(ctx context.Context, key string) (_ *cli.MultipartUpload, err error) {
	defer mon.Task()(&ctx)(&err)

	out, err := client.svc.CreateMultipartUploadWithContext(ctx, &s3.CreateMultipartUploadInput{
		Bucket: aws.String(client.cfg.Bucket),
		Key:    aws.String(client.bucketKey(key)),
	})
	if err != nil {
		return nil, Error.Wrap(err)
	}
	return &cli.MultipartUpload{
		Key:    key,
		ID:     aws.StringValue(out.UploadId),
		Native: true,
	}, nil
}

// UploadPart transfers one part of a multipart upload. The part is buffered
// in memory; request signing needs a seekable body.
func (client *Client) UploadPart(ctx context.Context, upload *cli.MultipartUpload, partNumber int, body io.Reader) (_ *cli.UploadedPart, err error) {
	defer mon.Task()(&ctx)(&err)

	data, err := ioutil.ReadAll(body)
	if err != nil {
		return nil, Error.Wrap(err)
	}

	out, err := client.svc.UploadPartWithContext(ctx, &s3.UploadPartInput{
		Bucket:     aws.String(client.cfg.Bucket),
		Key:        aws.String(client.bucketKey(upload.Key)),
		UploadId:   aws.String(upload.ID),
		PartNumber: aws.Int64(int64(partNumber)),
		Body:       bytes.NewReader(data),
	})
	if err != nil {
		return nil, Error.Wrap(err)
	}
	return &cli.UploadedPart{
		PartNumber: partNumber,
		ETag:       strings.Trim(aws.StringValue(out.ETag), `"`),
	}, nil
}

// CompleteMultipartUpload assembles the uploaded parts into the final object.
func (client *Client) CompleteMultipartUpload(ctx context.Context, upload *cli.MultipartUpload, parts []*cli.UploadedPart) (err error) {
	defer mon.Task()(&ctx)(&err)

	completed := make([]*s3.CompletedPart, 0, len(parts))
	for _, part := range parts {
		completed = append(completed, &s3.CompletedPart{
			PartNumber: aws.Int64(int64(part.PartNumber)),
			ETag:       aws.String(part.ETag),
		})
	}

	_, err = client.svc.CompleteMultipartUploadWithContext(ctx, &s3.CompleteMultipartUploadInput{
		Bucket:          aws.String(client.cfg.Bucket),
		Key:             aws.String(client.bucketKey(upload.Key)),
		UploadId:        aws.String(upload.ID),
		MultipartUpload: &s3.CompletedMultipartUpload{Parts: completed},
	})
	return Error.Wrap(err)
}

// AbortMultipartUpload discards the server state held for the upload.
func (client *Client) AbortMultipartUpload(ctx context.Context, upload *cli.MultipartUpload) (err error) {
	defer mon.Task()(&ctx)(&err)

	_, err = client.svc.AbortMultipartUploadWithContext(ctx, &s3.AbortMultipartUploadInput{
		Bucket:   aws.String(client.cfg.Bucket),
		Key:      aws.String(client.bucketKey(upload.Key)),
		UploadId: aws.String(upload.ID),
	})
	return Error.Wrap(err)
}

// Close closes the client.
func (client *Client) Close() (err error) { return nil }

func (client *Client) bucketKey(name string) string {
	if client.cfg.Path != "" {
		return path.Join(client.cfg.Path, name)
	}
	return name
}

func isNotFound(err error) bool {
	if reqErr, ok := err.(awserr.RequestFailure); ok {
		return reqErr.StatusCode() == http.StatusNotFound
	}
	return false
}
