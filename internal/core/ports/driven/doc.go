// Package driven provides interfaces for infrastructure adapters
// (secondary/outbound ports): the corpus index, the embedding service,
// the answer cache, the generation providers and the cost ledger.
package driven
