// Package payment abstracts the value-transfer channel behind the
// compute ledger. Credits earned during deliberation become real
// transfers here: over Lightning via LNbits, on-chain via an EVM
// node, or in memory for tests and offline runs.
package payment
