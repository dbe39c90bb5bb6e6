package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"
)

var validLogLevels = map[string]bool{
	"debug":   true,
	"info":    true,
	"warn":    true,
	"warning": true,
	"error":   true,
}

// Validate checks that the configuration can start a server. Every
// problem is reported as an *Error; several are joined with errors.Join.
func (c *Config) Validate() error {
	var errs []error
	add := func(field string, err error, format string, args ...any) {
		errs = append(errs, &Error{Field: field, Err: err, Message: fmt.Sprintf(format, args...)})
	}

	switch {
	case c.Port == 0:
		errs = append(errs, &Error{Field: "port", Err: ErrMissingPort})
	case c.Port < 0 || c.Port > 65535:
		add("port", ErrInvalidPort, "got %d", c.Port)
	}

	if c.Endpoint.URL == "" {
		if c.SchemaFile == "" {
			errs = append(errs, &Error{Field: "endpoint.url", Err: ErrMissingEndpoint})
		}
	} else if u, err := url.Parse(c.Endpoint.URL); err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		add("endpoint.url", ErrInvalidEndpoint, "got %q", c.Endpoint.URL)
	}

	if c.Path != "" && !strings.HasPrefix(c.Path, "/") {
		add("path", ErrInvalidValue, "must start with /")
	}
	if err := checkDuration(c.Endpoint.Timeout); err != nil {
		add("endpoint.timeout", ErrInvalidValue, "%v", err)
	}
	if err := checkDuration(c.Subscription.Interval); err != nil {
		add("subscription.interval", ErrInvalidValue, "%v", err)
	}
	if c.ListSize != nil && *c.ListSize < 0 {
		add("listSize", ErrInvalidValue, "must not be negative")
	}
	if c.MaxDepth < 0 {
		add("maxDepth", ErrInvalidValue, "must not be negative")
	}
	if c.Subscription.Events < 0 {
		add("subscription.events", ErrInvalidValue, "must not be negative")
	}
	if c.Log.Level != "" && !validLogLevels[strings.ToLower(c.Log.Level)] {
		add("log.level", ErrInvalidValue, "unknown level %q", c.Log.Level)
	}

	if _, err := c.CompileOverrides(); err != nil {
		errs = append(errs, err)
	}

	return errors.Join(errs...)
}

func checkDuration(s string) error {
	if s == "" {
		return nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return err
	}
	if d <= 0 {
		return fmt.Errorf("must be positive, got %s", s)
	}
	return nil
}
