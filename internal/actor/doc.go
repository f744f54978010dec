// Package actor defines the fixed set of deliberation personas and the
// distinguished treasury identity. Actors are created at deploy time from a
// YAML definition file and are immutable for the lifetime of the process.
package actor
