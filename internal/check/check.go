// Copyright (C) 2020 Storj Labs, Inc.
// See LICENSE for copying information.

// Package check round-trips probe objects through configured endpoints to
// verify connectivity and basic semantics: upload, listing visibility,
// download with digest verification, delete.
package check

import (
	"bytes"
	"context"
	"crypto/sha256"
	"io"
	"math/rand"
	"strconv"
	"time"

	"github.com/zeebo/errs"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"storj.io/davbridge/internal/client"
	"storj.io/davbridge/internal/config"
)

// Error is the error for this package.
var Error = errs.Class("check")

// reporter interface is used to handle reports for each operation as they finish.
type reporter interface {
	Report(ctx context.Context, operation config.Operation, endpointID config.ID, result *config.Result) error
}

// Checker runs connectivity checks against endpoints.
type Checker struct {
	log       *zap.Logger
	endpoints []*config.Endpoint
	cfg       config.CheckConfig
	timeout   config.Duration
	reporter  reporter
}

// NewChecker creates a new checker.
func NewChecker(log *zap.Logger, reporter reporter, endpoints []*config.Endpoint, cfg config.CheckConfig, timeout config.Duration) *Checker {
	return &Checker{
		log:       log,
		endpoints: endpoints,
		cfg:       cfg,
		timeout:   timeout,
		reporter:  reporter,
	}
}

// RunChecks runs the full round trip on every endpoint.
func (c *Checker) RunChecks(ctx context.Context) error {
	for _, endpoint := range c.endpoints {
		if err := c.RunCheck(ctx, endpoint); err != nil {
			return err
		}
	}
	return nil
}

// RunCheck runs the full round trip on a single endpoint.
func (c *Checker) RunCheck(ctx context.Context, endpoint *config.Endpoint) error {
	c.log.Info("Starting check", zap.String("endpointID", string(endpoint.ID)))

	cfg := c.cfg
	if cfg.Timeout <= 0 {
		cfg.Timeout = c.timeout
	}
	if cfg.Seed <= 0 {
		cfg.Seed = time.Now().UnixNano()
	}
	if cfg.NumParallel <= 0 {
		cfg.NumParallel = 1
	}
	if cfg.Prefix == "" {
		cfg.Prefix = "davbridge-check"
	}

	phases := []struct {
		operation config.Operation
		run       func(context.Context, config.CheckConfig, *config.Endpoint) error
	}{
		{config.Upload, c.upload},
		{config.List, c.list},
		{config.Download, c.download},
		{config.Delete, c.delete},
	}

	for _, phase := range phases {
		c.log.Info(phase.operation.String(),
			zap.String("endpointID", string(endpoint.ID)))

		result := newResultNow()
		err := phase.run(ctx, cfg, endpoint)
		result.Duration = time.Since(result.StartTime)
		result.Success = err == nil
		if err != nil {
			c.log.Error(phase.operation.String()+" failed",
				zap.Error(err), zap.String("endpoint", string(endpoint.ID)))
			result.Error = err.Error()
		}
		if err := c.reporter.Report(ctx, phase.operation, endpoint.ID, result); err != nil {
			return err
		}
	}
	return nil
}

func (c *Checker) upload(ctx context.Context, cfg config.CheckConfig, endpoint *config.Endpoint) error {
	ctx, cancel := context.WithTimeout(ctx, time.Duration(cfg.Timeout))
	defer cancel()
	return runParallel(ctx, int(cfg.NumParallel), func(i int) error {
		return endpoint.Store.Upload(ctx, probeName(cfg, i), probeReader(cfg, i), "")
	})
}

// list verifies every probe shows up in a single listing of the probe prefix.
func (c *Checker) list(ctx context.Context, cfg config.CheckConfig, endpoint *config.Endpoint) error {
	ctx, cancel := context.WithTimeout(ctx, time.Duration(cfg.Timeout))
	defer cancel()

	listing, err := endpoint.Store.List(ctx, client.ListOptions{
		Prefix:    cfg.Prefix,
		Delimiter: "/",
	})
	if err != nil {
		return err
	}

	found := make(map[string]bool, len(listing.Objects))
	for _, obj := range listing.Objects {
		found[obj.Key] = true
	}
	for i := 0; i < int(cfg.NumParallel); i++ {
		name := probeBase(i)
		if !found[name] {
			return Error.New("probe %q missing from listing of %q", name, cfg.Prefix)
		}
	}
	return nil
}

func (c *Checker) download(ctx context.Context, cfg config.CheckConfig, endpoint *config.Endpoint) error {
	ctx, cancel := context.WithTimeout(ctx, time.Duration(cfg.Timeout))
	defer cancel()
	return runParallel(ctx, int(cfg.NumParallel), func(i int) (err error) {
		expected := sha256.New()
		if _, err := io.Copy(expected, probeReader(cfg, i)); err != nil {
			return err
		}

		strm, err := endpoint.Store.Download(ctx, probeName(cfg, i))
		if err != nil {
			return err
		}
		defer func() { err = errs.Combine(err, strm.Close()) }()

		actual := sha256.New()
		if _, err := io.Copy(actual, strm); err != nil {
			return err
		}

		if !bytes.Equal(actual.Sum(nil), expected.Sum(nil)) {
			return Error.New("probe %d contents mismatch: expected sha256 %x; got %x",
				i, expected.Sum(nil), actual.Sum(nil))
		}
		return nil
	})
}

func (c *Checker) delete(ctx context.Context, cfg config.CheckConfig, endpoint *config.Endpoint) error {
	ctx, cancel := context.WithTimeout(ctx, time.Duration(cfg.Timeout))
	defer cancel()
	return runParallel(ctx, int(cfg.NumParallel), func(i int) error {
		return endpoint.Store.Delete(ctx, probeName(cfg, i))
	})
}

func runParallel(ctx context.Context, numParallel int, f func(i int) error) error {
	var eg errgroup.Group
	for i := 0; i < numParallel; i++ {
		func(i int) {
			eg.Go(func() error {
				return f(i)
			})
		}(i)
	}
	return eg.Wait()
}

func probeBase(i int) string {
	return "probe" + strconv.Itoa(i)
}

func probeName(cfg config.CheckConfig, i int) string {
	return cfg.Prefix + "/" + probeBase(i)
}

func probeReader(cfg config.CheckConfig, i int) io.Reader {
	return io.LimitReader(rand.New(rand.NewSource(cfg.Seed+int64(i))), cfg.Size)
}

// newResultNow returns a Result with the Time value set to now.
func newResultNow() *config.Result {
	return &config.Result{
		StartTime: time.Now(),
	}
}
