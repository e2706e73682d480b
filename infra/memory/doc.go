// Package memory provides typed object pooling for hot-path allocations.
//
// The order book draws its resting-order nodes from a Pool and returns
// them once an order is filled or cancelled; nodes never leave the book's
// critical section, so reuse needs no reclamation protocol.
package memory
