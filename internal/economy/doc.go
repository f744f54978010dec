// Package economy owns the value layer of the lattice: the fixed cost
// table for compute actions, the ledger that credits actors as they
// work, the pure settlement split, and the disburser that turns an
// accumulated session pool into concrete transfers.
package economy
