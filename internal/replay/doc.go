// Package replay runs recorded event logs through a handler in timestamp
// order, starting from fresh simulation state every run.
//
// Engine is the bare loop: load, sort, call the handler per event. Pipeline
// wires the baseline strategy and the paper engine into that loop and
// reports what the run produced.
package replay
