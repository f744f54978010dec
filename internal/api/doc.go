// Package api exposes the REST surface of the lattice: submitting
// messages for deliberation, triggering session settlements, and
// reading back audit artifacts and actor definitions.
package api
