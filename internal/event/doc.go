// Package event defines the market and order events that flow through the
// bot, and their JSON line encoding.
//
// Every record has three fields:
//
//	{"ts_ms": 1700000000000, "type": "EXTERNAL_PRICE", "payload": {...}}
//
// ts_ms is epoch milliseconds (UTC), type is one of the Type constants, and
// payload is a type-specific object. Logs may contain out-of-order records;
// readers sort by ts_ms before use.
package event
