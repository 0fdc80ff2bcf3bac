// Package log provides the structured logger used by cssfinder, built on
// top of the standard slog package.
//
// Loggers created here wrap their output handler in a SecureHandler, which:
//   - masks values of sensitive keys (cookies, tokens, passwords, proxy
//     credentials)
//   - removes user:password@ credentials embedded in URLs, including URLs
//     inside error messages
//   - clips long string values, since serialized HTML can be very large
//
// # Usage
//
//	logger := log.NewLogger(os.Stderr, verbose)
//	logger.Warn("failed to fetch page", "url", u, "error", err)
//
// Without verbose mode only warnings and errors are written.
package log
