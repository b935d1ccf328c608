// Copyright (C) 2020 Storj Labs, Inc.
// See LICENSE for copying information.

package report_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"

	"storj.io/davbridge/internal/client"
	"storj.io/davbridge/internal/config"
	"storj.io/davbridge/internal/report"
)

var ctx = context.Background()

func TestFormatListing(t *testing.T) {
	listing := &client.Listing{
		Objects: []client.Object{
			{Key: "img", Name: "img", IsDirectory: true},
			{Key: "readme.txt", Name: "readme.txt", Size: 120, LastModified: "Mon, 01 Jan 2024 00:00:00 GMT"},
		},
		Prefixes: []string{"img"},
	}

	table, err := report.FormatListing(listing)
	require.NoError(t, err)
	expected := `KEY            TYPE     SIZE     LAST MODIFIED
----------------------------------------------
img            dir      0        -
readme.txt     file     120      Mon, 01 Jan 2024 00:00:00 GMT
`
	assert.Equal(t, expected, table)
}

func TestTextReporter(t *testing.T) {
	type reportCall struct {
		operation  config.Operation
		endpointID config.ID
		result     *config.Result
	}

	calls := []*reportCall{
		{config.Upload, "dav-main", &config.Result{Duration: 2 * time.Second, Success: true}},
		{config.List, "dav-main", &config.Result{Duration: time.Second, Success: true}},
		{config.Download, "dav-main", &config.Result{Duration: 3 * time.Second, Success: true}},
		{config.Delete, "dav-main", &config.Result{Duration: time.Second, Error: "Here is an error"}},
	}

	reporter := report.NewTextReporter()
	var eg errgroup.Group
	for _, call := range calls {
		// Call Report concurrently just to ensure it works.
		func(call *reportCall) {
			eg.Go(func() error {
				return reporter.Report(ctx, call.operation, call.endpointID, call.result)
			})
		}(call)
	}
	require.NoError(t, eg.Wait())

	str, err := reporter.FormatResults(ctx)
	require.NoError(t, err)
	expected := `******************
Endpoint: dav-main
******************

Operation     Duration     Result
---------------------------------
Upload        2s           OK
List          1s           OK
Download      3s           OK
Delete        1s           ERR: Here is an error
`
	assert.Equal(t, expected, str)
}

func TestMakeTable(t *testing.T) {
	tests := []struct {
		rows            [][]string
		headerSeparator string
		expected        string
	}{
		{
			rows: [][]string{
				{"this", "is", "a", "header"},
				{"here", "we", "find", "row2"},
				{"different", "items", "a", "b"},
			},
			headerSeparator: "-",
			expected: `this          is        a        header
---------------------------------------
here          we        find     row2
different     items     a        b
`,
		},
		{
			rows: [][]string{
				{"this", "is", "a", "header"},
				{"here", "we", "find", "row2"},
				{"different", "items", "a", "b"},
			},
			headerSeparator: "",
			expected: `this          is        a        header
here          we        find     row2
different     items     a        b
`,
		},
	}

	for _, test := range tests {
		table, err := report.MakeTable(test.rows, test.headerSeparator)
		require.NoError(t, err)
		require.Equal(t, test.expected, table)
	}

	_, err := report.MakeTable([][]string{{"a", "b"}, {"only"}}, "-")
	require.Error(t, err)
}
