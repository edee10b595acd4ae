// Package logging provides structured JSON logging with file rotation for
// sentinel-rag. Logs go to stderr by default; a log file under
// ~/.sentinel-rag/logs/ can be enabled via configuration.
package logging
