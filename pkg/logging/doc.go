// Package logging configures the structured loggers used across webmap.
//
// It wraps log/slog with a small Config covering level, output format and
// an optional JSON log file:
//
//	logger, closer, err := logging.Open(logging.Config{
//	    Level:  logging.LevelInfo,
//	    Format: logging.FormatText,
//	    File:   "webmap.log",
//	})
//	if err != nil {
//	    return err
//	}
//	defer closer.Close()
//
//	logger.Info("mounted", "prefix", "/docs", "backend", "dir")
//
// Components accept a *slog.Logger through an option and fall back to Nop
// when none is given.
package logging
