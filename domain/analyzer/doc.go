// Package analyzer derives market-microstructure statistics from order book
// snapshots.
//
// Every query reads exactly one orderbook.Snapshot, so results are internally
// consistent even while feeds keep mutating the book. Ratios never produce
// NaN or Inf: a zero denominator yields NoData, or Unbounded together with an
// explicit flag when the numerator is positive.
//
// Metrics that need a history of book events (quote update rate, quote life,
// cancellation ratio) are read from an optional EventLog and reported as
// invalid Estimates when none is attached.
package analyzer
