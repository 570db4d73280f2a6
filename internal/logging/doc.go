// Package logging provides a simple leveled logging interface for framecut.
//
// It supports the following log levels:
//   - DEBUG: Verbose debugging information
//   - INFO: General operational messages
//   - WARN: Warning conditions
//   - ERROR: Error conditions
//   - FATAL: Fatal errors that terminate the application
//
// The log level is configured via the LOG_LEVEL environment variable, or
// forced to debug with DEBUG=true. ForFile returns a logger that prefixes
// every line with an input file name; its Progress method throttles
// per-frame output.
package logging
