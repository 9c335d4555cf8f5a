// Package domain contains the core business entities and errors for the
// answering engine. It has no dependencies on adapters or infrastructure.
package domain
