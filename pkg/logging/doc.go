// Package logging configures log/slog for qiufen.
//
//	logger := logging.New(logging.Config{
//	    Level:  logging.LevelInfo,
//	    Format: logging.FormatText,
//	})
//	logger.Info("mock server listening", "addr", addr)
//
// Passing several configs to New tees records, for example text on stderr
// and JSON into a log file. Components take a *slog.Logger through a
// WithLogger option and default to Nop.
package logging
