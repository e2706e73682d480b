// Package orderbook implements the in-memory limit order book for a single
// symbol. Each side is a red-black tree of price levels; each level is an
// intrusive FIFO of resting orders, and an id index gives O(1) cancels.
//
// Prices and quantities are fixed-point integers so that level keys compare
// exactly across independently sourced feeds. All access is serialised by a
// per-book reader/writer lock, and matching always completes inside the
// mutation that triggered it.
package orderbook
