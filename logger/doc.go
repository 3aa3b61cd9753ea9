// Package logger provides structured logging for the client framework,
// built on zerolog. Components receive a *Logger explicitly rather than
// reaching for ambient globals; a package-level default exists only as a
// fallback for zero-configuration use.
package logger
