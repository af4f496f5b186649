// Package logging configures structured logging for Lantern on top of
// log/slog.
//
// The package produces a *slog.Logger with a JSON or text handler and a
// dynamic level backed by a slog.LevelVar, so the level can be re-applied
// at runtime when the configuration file is hot-reloaded. Components derive
// their own loggers with logger.With("component", ...).
package logging
