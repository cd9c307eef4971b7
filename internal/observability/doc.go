// Package observability provides logging, event recording, metrics, and
// alerting for weblog. Analysis events are persisted as JSON Lines (JSONL)
// and metrics and alerts are derived on demand from the event log.
package observability
