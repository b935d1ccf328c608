// Copyright (C) 2020 Storj Labs, Inc.
// See LICENSE for copying information.

package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"
	"github.com/zeebo/errs"
	"go.uber.org/zap"

	"storj.io/davbridge/internal/check"
	"storj.io/davbridge/internal/client"
	"storj.io/davbridge/internal/client/davclient"
	s3 "storj.io/davbridge/internal/client/s3client"
	"storj.io/davbridge/internal/config"
	"storj.io/davbridge/internal/report"
	"storj.io/private/cfgstruct"
	"storj.io/private/process"
)

var cfg struct {
	ConfigPath  string `default:"config.toml" help:"configuration file location"`
	Endpoint    string `default:"" help:"id of the configured endpoint to use (optional when only one is configured)"`
	ContentType string `default:"" help:"content type for uploads"`
	Expires     string `default:"15m" help:"lifetime requested for signed urls"`
}

func main() {
	root := &cobra.Command{
		Use:   "davbridge",
		Short: "S3-shaped client for WebDAV and S3 backends",
	}

	commands := []*cobra.Command{
		{Use: "ls [prefix]", Short: "list objects under a prefix", Args: cobra.MaximumNArgs(1), RunE: cmdLs},
		{Use: "get <key>", Short: "write object contents to stdout", Args: cobra.ExactArgs(1), RunE: cmdGet},
		{Use: "put <key> <file>", Short: "upload a file", Args: cobra.ExactArgs(2), RunE: cmdPut},
		{Use: "rm <key>", Short: "delete an object", Args: cobra.ExactArgs(1), RunE: cmdRm},
		{Use: "mkdir <folder>", Short: "create a folder", Args: cobra.ExactArgs(1), RunE: cmdMkdir},
		{Use: "cp <source> <dest>", Short: "copy an object server-side", Args: cobra.ExactArgs(2), RunE: cmdCp},
		{Use: "stat <key>", Short: "print object metadata", Args: cobra.ExactArgs(1), RunE: cmdStat},
		{Use: "url <key>", Short: "print a direct access url", Args: cobra.ExactArgs(1), RunE: cmdURL},
		{Use: "check", Short: "round-trip probe objects through every endpoint", Args: cobra.NoArgs, RunE: cmdCheck},
	}
	for _, cmd := range commands {
		process.Bind(cmd, &cfg, cfgstruct.DefaultsFlag(cmd))
		root.AddCommand(cmd)
	}

	process.Exec(root)
}

// withStore runs fn with a context, logger and the selected endpoint's
// client. Timeouts are imposed here, outside the clients, which never bound
// their own requests.
func withStore(fn func(ctx context.Context, log *zap.Logger, store client.Store) error) (err error) {
	log, err := zap.NewProduction()
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()
	zap.ReplaceGlobals(log)

	conf, err := config.LoadConfig(cfg.ConfigPath)
	if err != nil {
		return err
	}

	ctx := context.Background()
	if conf.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, time.Duration(conf.Timeout))
		defer cancel()
	}

	store, err := openStore(conf, config.ID(cfg.Endpoint))
	if err != nil {
		return err
	}
	defer func() { err = errs.Combine(err, store.Close()) }()

	return fn(ctx, log, store)
}

// openStore builds the client for the endpoint id, or for the sole
// configured endpoint when id is empty.
func openStore(conf config.Config, id config.ID) (client.Store, error) {
	if id == "" {
		if len(conf.Endpoints.WebDAV)+len(conf.Endpoints.S3) != 1 {
			return nil, errs.New("--endpoint is required when multiple endpoints are configured")
		}
		for eid := range conf.Endpoints.WebDAV {
			id = eid
		}
		for eid := range conf.Endpoints.S3 {
			id = eid
		}
	}

	if endpoint, ok := conf.Endpoints.WebDAV[id]; ok {
		return davclient.New(endpoint)
	}
	if endpoint, ok := conf.Endpoints.S3[id]; ok {
		return s3.New(endpoint)
	}
	return nil, errs.New("unknown endpoint %q", id)
}

func cmdLs(cmd *cobra.Command, args []string) error {
	return withStore(func(ctx context.Context, log *zap.Logger, store client.Store) error {
		var prefix string
		if len(args) > 0 {
			prefix = args[0]
		}

		listing, err := store.List(ctx, client.ListOptions{Prefix: prefix, Delimiter: "/"})
		if err != nil {
			return err
		}

		table, err := report.FormatListing(listing)
		if err != nil {
			return err
		}
		fmt.Print(table)
		return nil
	})
}

func cmdGet(cmd *cobra.Command, args []string) error {
	return withStore(func(ctx context.Context, log *zap.Logger, store client.Store) (err error) {
		strm, err := store.Download(ctx, args[0])
		if err != nil {
			return err
		}
		defer func() { err = errs.Combine(err, strm.Close()) }()

		_, err = io.Copy(os.Stdout, strm)
		return err
	})
}

func cmdPut(cmd *cobra.Command, args []string) error {
	return withStore(func(ctx context.Context, log *zap.Logger, store client.Store) (err error) {
		file, err := os.Open(args[1])
		if err != nil {
			return err
		}
		defer func() { err = errs.Combine(err, file.Close()) }()

		return store.Upload(ctx, args[0], file, cfg.ContentType)
	})
}

func cmdRm(cmd *cobra.Command, args []string) error {
	return withStore(func(ctx context.Context, log *zap.Logger, store client.Store) error {
		return store.Delete(ctx, args[0])
	})
}

func cmdMkdir(cmd *cobra.Command, args []string) error {
	return withStore(func(ctx context.Context, log *zap.Logger, store client.Store) error {
		return store.MakeFolder(ctx, args[0])
	})
}

func cmdCp(cmd *cobra.Command, args []string) error {
	return withStore(func(ctx context.Context, log *zap.Logger, store client.Store) error {
		return store.Copy(ctx, args[0], args[1])
	})
}

func cmdStat(cmd *cobra.Command, args []string) error {
	return withStore(func(ctx context.Context, log *zap.Logger, store client.Store) error {
		info, err := store.Head(ctx, args[0])
		if err != nil {
			return err
		}
		if info == nil {
			fmt.Printf("%s: not found\n", args[0])
			return nil
		}
		fmt.Printf("Key:            %s\n", args[0])
		fmt.Printf("Content-Length: %d\n", info.ContentLength)
		fmt.Printf("Content-Type:   %s\n", info.ContentType)
		fmt.Printf("Last-Modified:  %s\n", info.LastModified)
		return nil
	})
}

func cmdURL(cmd *cobra.Command, args []string) error {
	return withStore(func(ctx context.Context, log *zap.Logger, store client.Store) error {
		expires, err := time.ParseDuration(cfg.Expires)
		if err != nil {
			return err
		}

		url, err := store.SignedURL(args[0], expires)
		if err != nil {
			return err
		}
		fmt.Println(url)
		if _, ok := store.(*davclient.Client); ok {
			fmt.Fprintln(os.Stderr, "note: WebDAV urls carry no signature and are not cryptographically protected")
		}
		return nil
	})
}

func cmdCheck(cmd *cobra.Command, args []string) error {
	log, err := zap.NewProduction()
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()
	zap.ReplaceGlobals(log)

	conf, err := config.LoadConfig(cfg.ConfigPath)
	if err != nil {
		return err
	}

	var endpoints []*config.Endpoint
	for id, endpoint := range conf.Endpoints.WebDAV {
		store, err := davclient.New(endpoint)
		if err != nil {
			return err
		}
		endpoints = append(endpoints, &config.Endpoint{
			ID:    id,
			Path:  endpoint.Path,
			Store: store,
		})
	}
	for id, endpoint := range conf.Endpoints.S3 {
		store, err := s3.New(endpoint)
		if err != nil {
			return err
		}
		endpoints = append(endpoints, &config.Endpoint{
			ID:    id,
			Path:  endpoint.Path,
			Store: store,
		})
	}

	reporter := report.NewTextReporter()
	checker := check.NewChecker(log.Named("checker"), reporter, endpoints, conf.Check, conf.Timeout)
	if err := checker.RunChecks(context.Background()); err != nil {
		return err
	}

	results, err := reporter.FormatResults(context.Background())
	if err != nil {
		return err
	}

	fmt.Print(results)
	return nil
}
