// Package services implements the engine's application logic: the answer
// orchestrator and its state machine, context retrieval, prompt assembly
// and document ingestion. Services depend only on ports and domain types.
package services
