// Package memory keeps what the lattice knows about each participant:
// a capped exchange history, a vocabulary set for novelty scoring,
// per-actor observations, and a lightweight profile with the recent
// quality trend. Everything is best-effort; a memory failure never
// blocks a deliberation.
package memory
