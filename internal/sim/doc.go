// Package sim holds the mutable simulation state shared by the strategy and
// the paper matching engine during one replay run.
//
// A BotState is owned by exactly one run. Callers pass it by pointer into
// every strategy and engine call; it is never shared between goroutines.
package sim
