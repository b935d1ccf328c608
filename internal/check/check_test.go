// Copyright (C) 2020 Storj Labs, Inc.
// See LICENSE for copying information.

package check_test

import (
	"bytes"
	"context"
	"io"
	"io/ioutil"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zeebo/errs"
	"go.uber.org/zap"

	"storj.io/davbridge/internal/check"
	"storj.io/davbridge/internal/client"
	"storj.io/davbridge/internal/config"
)

var ctx = context.Background()

// memStore is an in-memory Store for exercising the checker.
type memStore struct {
	mu      sync.Mutex
	objects map[string][]byte
}

func newMemStore() *memStore {
	return &memStore{objects: make(map[string][]byte)}
}

func (m *memStore) List(ctx context.Context, opts client.ListOptions) (*client.Listing, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	listing := &client.Listing{}
	for key := range m.objects {
		name := key
		if opts.Prefix != "" {
			if len(key) <= len(opts.Prefix) || key[:len(opts.Prefix)] != opts.Prefix {
				continue
			}
			name = key[len(opts.Prefix)+1:]
		}
		listing.Objects = append(listing.Objects, client.Object{Key: name, Name: name})
	}
	return listing, nil
}

func (m *memStore) Download(ctx context.Context, key string) (io.ReadCloser, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	data, ok := m.objects[key]
	if !ok {
		return nil, errs.New("not found: %q", key)
	}
	return ioutil.NopCloser(bytes.NewReader(data)), nil
}

func (m *memStore) Upload(ctx context.Context, key string, body io.Reader, contentType string) error {
	data, err := ioutil.ReadAll(body)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.objects[key] = data
	return nil
}

func (m *memStore) Delete(ctx context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.objects, key)
	return nil
}

func (m *memStore) MakeFolder(ctx context.Context, folder string) error { return nil }

func (m *memStore) Copy(ctx context.Context, sourceKey, destKey string) error { return nil }

func (m *memStore) Head(ctx context.Context, key string) (*client.HeadInfo, error) {
	return nil, nil
}

func (m *memStore) SignedURL(key string, expires time.Duration) (string, error) {
	return "mem://" + key, nil
}

func (m *memStore) CreateMultipartUpload(ctx context.Context, key string) (*client.MultipartUpload, error) {
	return &client.MultipartUpload{Key: key, ID: "mem"}, nil
}

func (m *memStore) UploadPart(ctx context.Context, upload *client.MultipartUpload, partNumber int, body io.Reader) (*client.UploadedPart, error) {
	return &client.UploadedPart{PartNumber: partNumber}, nil
}

func (m *memStore) CompleteMultipartUpload(ctx context.Context, upload *client.MultipartUpload, parts []*client.UploadedPart) error {
	return nil
}

func (m *memStore) AbortMultipartUpload(ctx context.Context, upload *client.MultipartUpload) error {
	return nil
}

func (m *memStore) Close() error { return nil }

// recordingReporter collects check results.
type recordingReporter struct {
	mu      sync.Mutex
	results map[config.Operation]*config.Result
}

func (r *recordingReporter) Report(ctx context.Context, operation config.Operation, endpointID config.ID, result *config.Result) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.results[operation] = result
	return nil
}

func TestRunCheckRoundTrip(t *testing.T) {
	store := newMemStore()
	reporter := &recordingReporter{results: make(map[config.Operation]*config.Result)}
	endpoint := &config.Endpoint{ID: "mem", Store: store}

	checker := check.NewChecker(zap.NewNop(), reporter, []*config.Endpoint{endpoint},
		config.CheckConfig{
			Prefix:      "probes",
			NumParallel: 3,
			Size:        1024,
			Seed:        42,
			Timeout:     config.Duration(time.Minute),
		}, config.Duration(time.Minute))

	require.NoError(t, checker.RunChecks(ctx))

	for _, operation := range []config.Operation{config.Upload, config.List, config.Download, config.Delete} {
		result := reporter.results[operation]
		require.NotNil(t, result, "no result for %s", operation)
		assert.True(t, result.Success, "%s failed: %s", operation, result.Error)
	}

	// Everything the check uploaded is gone again.
	assert.Empty(t, store.objects)
}

// blindStore hides everything from listings.
type blindStore struct{ *memStore }

func (b blindStore) List(ctx context.Context, opts client.ListOptions) (*client.Listing, error) {
	return &client.Listing{}, nil
}

func TestRunCheckReportsFailure(t *testing.T) {
	reporter := &recordingReporter{results: make(map[config.Operation]*config.Result)}
	endpoint := &config.Endpoint{ID: "mem", Store: blindStore{newMemStore()}}

	checker := check.NewChecker(zap.NewNop(), reporter, []*config.Endpoint{endpoint},
		config.CheckConfig{
			Prefix:      "probes",
			NumParallel: 1,
			Size:        16,
			Seed:        1,
			Timeout:     config.Duration(time.Minute),
		}, config.Duration(time.Minute))

	// A failed phase is reported, not fatal; the remaining phases still run.
	require.NoError(t, checker.RunChecks(ctx))

	list := reporter.results[config.List]
	require.NotNil(t, list)
	assert.False(t, list.Success)
	assert.Contains(t, list.Error, "missing from listing")

	for _, operation := range []config.Operation{config.Upload, config.Download, config.Delete} {
		result := reporter.results[operation]
		require.NotNil(t, result, "no result for %s", operation)
		assert.True(t, result.Success, "%s failed: %s", operation, result.Error)
	}
}
