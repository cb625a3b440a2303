// Package buffer provides the unbounded queue used between producer
// goroutines (stdin readers, WebSocket read loops) and single consumers.
package buffer
