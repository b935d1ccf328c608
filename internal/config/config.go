// Copyright (C) 2020 Storj Labs, Inc.
// See LICENSE for copying information.

package config

import (
	"time"

	"github.com/BurntSushi/toml"

	"storj.io/davbridge/internal/client"
)

// An ID is any arbitrary string naming a configured endpoint.
type ID string

// Config is the full davbridge configuration.
type Config struct {
	Endpoints Endpoints   `toml:"endpoint"`
	Check     CheckConfig `toml:"check"`
	Timeout   Duration
}

// Endpoints is a collection of remote endpoints.
type Endpoints struct {
	WebDAV map[ID]WebDAVEndpoint `toml:"webdav"`
	S3     map[ID]S3Endpoint     `toml:"s3"`
}

// Endpoint is a configured endpoint together with its constructed client.
type Endpoint struct {
	ID    ID
	Path  string
	Store client.Store
}

// WebDAVEndpoint describes a WebDAV server.
//
// The configuration is immutable for the lifetime of the client built from
// it; credentials are never stored in encoded form.
type WebDAVEndpoint struct {
	Address  string `toml:"address"`
	Username string `toml:"username"`
	Password string `toml:"password"`
	Path     string `toml:"path"`
}

// S3Endpoint describes a native S3 endpoint.
type S3Endpoint struct {
	Region    string `toml:"region"`
	AccessKey string `toml:"access_key"`
	SecretKey string `toml:"secret_key"`
	Bucket    string `toml:"bucket"`
	Path      string `toml:"path"`
	Address   string `toml:"address"`
}

// CheckConfig configures the connectivity checker.
type CheckConfig struct {
	Prefix      string   `toml:"prefix"`
	NumParallel int64    `toml:"numparallel"`
	Size        int64    `toml:"size"` // Probe size in bytes.
	Seed        int64    `toml:"seed"` // Custom seed to make probes unique.
	Timeout     Duration `toml:"timeout"`
}

// Duration assists in parsing duration data in the toml file.
type Duration time.Duration

// UnmarshalText unmarshals the duration text from toml.
func (d *Duration) UnmarshalText(data []byte) error {
	duration, err := time.ParseDuration(string(data))
	if err == nil {
		*d = Duration(duration)
	}
	return err
}

// LoadConfig loads the toml config
func LoadConfig(path string) (config Config, err error) {
	_, err = toml.DecodeFile(path, &config)
	return config, err
}

// Result represents a single check result.
type Result struct {
	StartTime time.Time
	Duration  time.Duration
	Success   bool
	Error     string
}

// Operation represents the type of operation done for the check.
type Operation int

const (
	// Upload operation.
	Upload Operation = iota
	// List operation.
	List
	// Download operation.
	Download
	// Delete operation.
	Delete
)

func (o Operation) String() string {
	switch o {
	case Upload:
		return "Upload"
	case List:
		return "List"
	case Download:
		return "Download"
	case Delete:
		return "Delete"
	default:
		return ""
	}
}
