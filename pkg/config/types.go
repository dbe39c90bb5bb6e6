package config

import (
	"time"
)

// Defaults applied by ApplyDefaults.
const (
	DefaultPath                 = "/"
	DefaultEndpointTimeout      = "10s"
	DefaultListSize             = 2
	DefaultMaxDepth             = 5
	DefaultSubscriptionEvents   = 3
	DefaultSubscriptionInterval = "1s"
	DefaultLogLevel             = "info"
	DefaultLogFormat            = "text"
)

// Config is the root of a qiufen configuration file.
type Config struct {
	// Port the mock server listens on. Required.
	Port int `json:"port" yaml:"port"`

	// Host to bind. Empty binds every interface.
	Host string `json:"host,omitempty" yaml:"host,omitempty"`

	// Path the GraphQL endpoint is served on.
	Path string `json:"path,omitempty" yaml:"path,omitempty"`

	// Endpoint is the real GraphQL server whose schema is mocked.
	Endpoint Endpoint `json:"endpoint" yaml:"endpoint"`

	// SchemaFile is a local SDL or introspection JSON file used instead of
	// fetching from Endpoint.
	SchemaFile string `json:"schemaFile,omitempty" yaml:"schemaFile,omitempty"`

	// Operations are glob patterns of .graphql documents. Without any,
	// operations are discovered from the schema.
	Operations []string `json:"operations,omitempty" yaml:"operations,omitempty"`

	// Overrides are keyed "Type" or "Type.field". A value is used as-is,
	// except a map holding only "value" (its content is used) or only
	// "expr" (an expression evaluated per value).
	Overrides map[string]any `json:"overrides,omitempty" yaml:"overrides,omitempty"`

	// PossibleTypes picks the concrete type generated for an interface or
	// union.
	PossibleTypes map[string]string `json:"possibleTypes,omitempty" yaml:"possibleTypes,omitempty"`

	ListSize *int   `json:"listSize,omitempty" yaml:"listSize,omitempty"`
	MaxDepth int    `json:"maxDepth,omitempty" yaml:"maxDepth,omitempty"`
	Seed     *int64 `json:"seed,omitempty" yaml:"seed,omitempty"`

	Subscription SubscriptionConfig `json:"subscription,omitempty" yaml:"subscription,omitempty"`
	Log          LogConfig          `json:"log,omitempty" yaml:"log,omitempty"`

	// BaseDir is the directory relative paths resolve against. Load sets
	// it to the configuration file's directory.
	BaseDir string `json:"-" yaml:"-"`
}

// Endpoint describes the remote GraphQL server.
type Endpoint struct {
	URL     string            `json:"url,omitempty" yaml:"url,omitempty"`
	Headers map[string]string `json:"headers,omitempty" yaml:"headers,omitempty"`
	Timeout string            `json:"timeout,omitempty" yaml:"timeout,omitempty"`
}

// TimeoutDuration returns the parsed timeout, or zero when unset or invalid.
func (e Endpoint) TimeoutDuration() time.Duration {
	d, _ := time.ParseDuration(e.Timeout)
	return d
}

// SubscriptionConfig controls generated subscription streams.
type SubscriptionConfig struct {
	// Events is how many payloads each subscription emits before completing.
	Events int `json:"events,omitempty" yaml:"events,omitempty"`

	// Interval between payloads.
	Interval string `json:"interval,omitempty" yaml:"interval,omitempty"`
}

// IntervalDuration returns the parsed interval, or zero when unset or invalid.
func (s SubscriptionConfig) IntervalDuration() time.Duration {
	d, _ := time.ParseDuration(s.Interval)
	return d
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `json:"level,omitempty" yaml:"level,omitempty"`
	Format string `json:"format,omitempty" yaml:"format,omitempty"`
}

// ApplyDefaults fills unset optional fields. Port and Endpoint.URL have no
// default.
func (c *Config) ApplyDefaults() {
	if c.Path == "" {
		c.Path = DefaultPath
	}
	if c.Endpoint.Timeout == "" {
		c.Endpoint.Timeout = DefaultEndpointTimeout
	}
	if c.ListSize == nil {
		n := DefaultListSize
		c.ListSize = &n
	}
	if c.MaxDepth == 0 {
		c.MaxDepth = DefaultMaxDepth
	}
	if c.Subscription.Events == 0 {
		c.Subscription.Events = DefaultSubscriptionEvents
	}
	if c.Subscription.Interval == "" {
		c.Subscription.Interval = DefaultSubscriptionInterval
	}
	if c.Log.Level == "" {
		c.Log.Level = DefaultLogLevel
	}
	if c.Log.Format == "" {
		c.Log.Format = DefaultLogFormat
	}
}

// Addr returns the host:port listen address.
func (c *Config) Addr() string {
	return joinHostPort(c.Host, c.Port)
}

// ResolvedSchemaFile returns SchemaFile resolved against BaseDir.
func (c *Config) ResolvedSchemaFile() string {
	if c.SchemaFile == "" {
		return ""
	}
	return ResolvePath(c.BaseDir, c.SchemaFile)
}
