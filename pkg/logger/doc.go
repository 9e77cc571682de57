// Package logger builds slog loggers for jobq services and keeps attribute
// names consistent across packages.
//
// New creates a *slog.Logger from functional options (format, level, output,
// static attributes). The handler is wrapped so that attributes stored in a
// context with WithAttrs, or extracted with WithContextValue, are added to
// every record logged through that context. Workers use this to tag all log
// lines written by a job with its message id and target.
//
//	log := logger.New(logger.WithDevelopment("jobq"))
//	ctx := logger.WithAttrs(ctx, logger.MessageID(id))
//	log.InfoContext(ctx, "sending email")
//
// Error returns an empty attribute for a nil error, so it can be passed
// unconditionally.
package logger
