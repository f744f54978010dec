// Package deliberation runs the heart of the lattice: a message is
// broadcast to every configured persona concurrently, their voices
// are synthesized into one reply, and every unit of compute performed
// along the way is credited through the ledger. Silence is a valid
// contribution; failure is tolerated; the caller always receives a
// synthesized text.
package deliberation
