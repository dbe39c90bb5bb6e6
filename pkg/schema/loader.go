package schema

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/getmockd/qiufen/pkg/logging"
)

// DefaultTimeout bounds a schema fetch when the Loader has none configured.
const DefaultTimeout = 10 * time.Second

// maxIntrospectionSize caps the introspection response body (32MB).
const maxIntrospectionSize = 32 << 20

// Loader fetches schemas from remote GraphQL endpoints via introspection.
// A Loader has no state beyond its configuration; callers decide caching
// and reload cadence.
type Loader struct {
	// Client is the HTTP client used for the fetch. Defaults to a client
	// without its own timeout; Timeout bounds each Load instead.
	Client *http.Client
	// Timeout bounds the whole fetch. Defaults to DefaultTimeout.
	Timeout time.Duration
	// Headers are added to the introspection request (e.g. Authorization).
	Headers map[string]string

	log *slog.Logger
}

// LoaderOption configures a Loader.
type LoaderOption func(*Loader)

// WithHTTPClient sets the HTTP client.
func WithHTTPClient(c *http.Client) LoaderOption {
	return func(l *Loader) { l.Client = c }
}

// WithTimeout sets the fetch timeout.
func WithTimeout(d time.Duration) LoaderOption {
	return func(l *Loader) { l.Timeout = d }
}

// WithHeaders sets extra request headers.
func WithHeaders(h map[string]string) LoaderOption {
	return func(l *Loader) { l.Headers = h }
}

// WithLogger sets the operational logger.
func WithLogger(log *slog.Logger) LoaderOption {
	return func(l *Loader) {
		if log != nil {
			l.log = log
		}
	}
}

// NewLoader creates a Loader.
func NewLoader(opts ...LoaderOption) *Loader {
	l := &Loader{
		Client:  &http.Client{},
		Timeout: DefaultTimeout,
		log:     logging.Nop(),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Load runs the introspection query against endpointURL and builds the
// resulting Schema. Transport failures return *FetchError; malformed or
// incomplete introspection payloads return *ParseError.
func (l *Loader) Load(ctx context.Context, endpointURL string) (*Schema, error) {
	timeout := l.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	body, err := json.Marshal(map[string]interface{}{
		"query":         IntrospectionQuery,
		"operationName": "IntrospectionQuery",
	})
	if err != nil {
		return nil, fmt.Errorf("encoding introspection request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpointURL, bytes.NewReader(body))
	if err != nil {
		return nil, &FetchError{URL: endpointURL, Err: err}
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	for k, v := range l.Headers {
		req.Header.Set(k, v)
	}

	start := time.Now()
	client := l.Client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, &FetchError{URL: endpointURL, Err: err}
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return nil, &FetchError{URL: endpointURL, StatusCode: resp.StatusCode}
	}

	var result introspectionResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxIntrospectionSize)).Decode(&result); err != nil {
		return nil, &ParseError{Source: endpointURL, Reason: "malformed introspection JSON", Err: err}
	}
	// An endpoint that answers with errors only (introspection disabled,
	// auth rejected) is unreachable for our purposes.
	if result.schema() == nil && len(result.Errors) > 0 {
		return nil, &FetchError{URL: endpointURL, Err: errors.New(result.errorMessages())}
	}

	s, err := fromResponse(&result, endpointURL)
	if err != nil {
		return nil, err
	}
	l.log.Debug("schema loaded", "url", endpointURL, "types", len(s.types), "duration", time.Since(start))
	return s, nil
}

// LoadFile reads a schema from disk. Files ending in .json are treated as
// introspection results, everything else as SDL.
func LoadFile(path string) (*Schema, error) {
	if strings.EqualFold(filepath.Ext(path), ".json") {
		f, err := os.Open(path)
		if err != nil {
			return nil, fmt.Errorf("failed to open schema file %s: %w", path, err)
		}
		defer func() { _ = f.Close() }()
		return decodeIntrospection(f, path)
	}
	return ParseSDLFile(path)
}
