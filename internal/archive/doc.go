// Package archive persists finished deliberation rounds for long-term
// lookup. The Redis audit trail is capped and eventually rolls over;
// the archive is where a round can still be found afterwards.
package archive
