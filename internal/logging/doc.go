// Package logging provides structured logging for deskvm.
//
// [Logger] wraps log/slog with persistent attributes. Records go to stdout
// in slog's text format by default, which keeps the operator-facing output
// of the connect sequence readable in a terminal or a systemd journal; JSON
// output and a size-rotated log file ([RotatingWriter]) are optional.
//
// # Basic Usage
//
//	logger, err := logging.NewLogger(logging.Options{Level: "DEBUG"})
//	if err != nil {
//	    return err
//	}
//	defer logger.Close()
//
//	log := logger.WithComponent("scheduler")
//	log.Info("waiting", "until", deadline)
package logging
