// Package config loads the lattice daemon configuration from a JSON
// file and fills in sensible defaults for anything the operator left
// out. All other packages receive their settings from here instead of
// reading the environment on their own.
package config
