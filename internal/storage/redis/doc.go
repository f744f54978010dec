// Package redis implements the storage.Store primitives on a real
// Redis instance. Counter, set, and capped-list writes map directly
// onto Redis commands so concurrent rounds compose without locks.
package redis
