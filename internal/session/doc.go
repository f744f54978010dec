// Package session tracks the per-participant pool of not-yet-settled
// work units. Writes go through the store's atomic increment and
// set-add primitives so concurrent deliberation rounds for the same
// participant never lose updates.
package session
