// Package storage abstracts the key/value primitives the lattice
// relies on: counters, sets, capped lists, and a publish/subscribe
// channel. The in-memory implementation backs tests and single-node
// runs; the redis sub-package backs everything else.
package storage
