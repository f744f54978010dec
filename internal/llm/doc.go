// Package llm defines the inference client abstraction used by the
// deliberation pipeline. Concrete backends live in sub-packages; the
// Fallback client chains several backends in preference order so a
// local model outage degrades instead of failing the round.
package llm
