// Copyright (C) 2020 Storj Labs, Inc.
// See LICENSE for copying information.

// Package report formats listings and check results as fixed-width text
// tables.
package report

import (
	"context"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/zeebo/errs"

	"storj.io/davbridge/internal/client"
	"storj.io/davbridge/internal/config"
)

// FormatListing renders a listing as a text table.
func FormatListing(listing *client.Listing) (string, error) {
	rows := [][]string{{"KEY", "TYPE", "SIZE", "LAST MODIFIED"}}
	for _, obj := range listing.Objects {
		kind := "file"
		if obj.IsDirectory {
			kind = "dir"
		}
		modified := obj.LastModified
		if modified == "" {
			modified = "-"
		}
		rows = append(rows, []string{
			obj.Key,
			kind,
			strconv.FormatInt(obj.Size, 10),
			modified,
		})
	}

	table, err := MakeTable(rows, "-")
	if err != nil {
		return "", err
	}
	if listing.IsTruncated {
		table += "(truncated; continue with token " + listing.NextContinuationToken + ")\n"
	}
	return table, nil
}

// TextReporter gathers check reports and formats them per endpoint.
type TextReporter struct {
	lock    sync.Mutex
	results endpointResults
}

// operationResults is keyed by the check operation.
type operationResults map[config.Operation]*config.Result

// endpointResults is keyed by the endpointID.
type endpointResults map[config.ID]operationResults

// NewTextReporter creates a TextReporter.
func NewTextReporter() *TextReporter {
	return &TextReporter{
		results: make(endpointResults),
	}
}

// Report accepts a single report.
func (s *TextReporter) Report(ctx context.Context, operation config.Operation, endpointID config.ID, result *config.Result) error {
	s.lock.Lock()
	defer s.lock.Unlock()

	_, ok := s.results[endpointID]
	if !ok {
		s.results[endpointID] = make(operationResults)
	}
	s.results[endpointID][operation] = result

	return nil
}

// FormatResults returns a string report of all reported results.
func (s *TextReporter) FormatResults(ctx context.Context) (string, error) {
	s.lock.Lock()
	defer s.lock.Unlock()
	return formatResults(s.results)
}

func formatResults(results endpointResults) (string, error) {
	const endpointPrefix = "Endpoint: "

	var report strings.Builder

	endpointIDs, operations := uniqueSortedIDs(results)
	for _, endpointID := range endpointIDs {
		stars := strings.Repeat("*", len(endpointPrefix)+len(endpointID))
		report.WriteString(stars + "\n")
		report.WriteString(endpointPrefix + string(endpointID) + "\n")
		report.WriteString(stars + "\n\n")

		rows := [][]string{{"Operation", "Duration", "Result"}}
		for _, operation := range operations {
			result := results[endpointID][operation]
			rows = append(rows, []string{operation.String(), formatDuration(result), formatOutcome(result)})
		}
		table, err := MakeTable(rows, "-")
		if err != nil {
			return "", err
		}
		report.WriteString(table)
	}

	return report.String(), nil
}

func formatDuration(result *config.Result) string {
	if result == nil {
		return "-"
	}
	return result.Duration.String()
}

func formatOutcome(result *config.Result) string {
	switch {
	case result == nil:
		return "-"
	case result.Error != "":
		return "ERR: " + result.Error
	default:
		return "OK"
	}
}

func uniqueSortedIDs(results endpointResults) (endpointIDs []config.ID, operations []config.Operation) {
	var (
		seenEndpointIDs = make(map[config.ID]struct{})
		seenOperations  = make(map[config.Operation]struct{})
	)

	for endpointID, operationResults := range results {
		_, ok := seenEndpointIDs[endpointID]
		if !ok {
			endpointIDs = append(endpointIDs, endpointID)
			seenEndpointIDs[endpointID] = struct{}{}
		}
		for operation := range operationResults {
			_, ok := seenOperations[operation]
			if !ok {
				operations = append(operations, operation)
				seenOperations[operation] = struct{}{}
			}
		}
	}

	sort.Slice(endpointIDs, func(i, j int) bool { return endpointIDs[i] < endpointIDs[j] })
	sort.Slice(operations, func(i, j int) bool { return operations[i] < operations[j] })

	return endpointIDs, operations
}

// MakeTable creates a formatted text table based on the rows provided. The
// first row is the header; headerSeparator, when non-empty, is repeated into
// a rule below it.
func MakeTable(rows [][]string, headerSeparator string) (string, error) {
	const padding = 5
	var numColumns int
	var table strings.Builder

	maxColumnLengths := make(map[int]int)
	for _, row := range rows {
		if numColumns == 0 {
			numColumns = len(row)
		}
		if len(row) != numColumns {
			return "", errs.New("Mismatched column numbers")
		}

		for i, item := range row {
			if len(item) > maxColumnLengths[i] {
				maxColumnLengths[i] = len(item)
			}
		}
	}

	for i, row := range rows {
		var lineLength int
		for j, item := range row {
			if j < len(row)-1 {
				// Pad to the longest item plus the fixed gap.
				item += strings.Repeat(" ", maxColumnLengths[j]-len(item)+padding)
			}
			lineLength += len(item)
			table.WriteString(item)
		}
		table.WriteString("\n")

		if i == 0 && headerSeparator != "" {
			table.WriteString(strings.Repeat(headerSeparator, lineLength))
			table.WriteString("\n")
		}
	}

	return table.String(), nil
}
