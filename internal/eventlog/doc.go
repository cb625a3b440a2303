// Package eventlog implements the append-only JSONL event log.
//
// Writers open, append one or more whole lines, and close on every call, so
// several collectors can share a file without coordination. Readers skip
// blank and malformed lines and return events stably sorted by ts_ms.
package eventlog
