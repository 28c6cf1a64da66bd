// Package driven defines the interfaces that core calls OUT to infrastructure.
//
// These are the "driven" or "secondary" ports in hexagonal architecture.
// Core services depend on these interfaces, and infrastructure adapters
// implement them.
//
// # Required Interfaces
//
// These must be provided for the application to function:
//
//   - LexicalStore: Full-text search (SQLite FTS5). Lexical search is always available.
//   - IndexStoreFactory: Opens stores for each index artifact under the data directory.
//   - DatasetReader: Reads the tabular dataset produced by the extraction pipeline.
//   - SentenceSegmenter: Splits document text into sentences.
//   - ConfigStore: Application configuration
//
// # Optional Interfaces
//
// These can be nil - the application degrades gracefully:
//
//   - EmbeddingService: Generates vector embeddings. Without it, semantic search
//     and semantic explanations are disabled.
//   - VectorStore: Vector storage/search. Only usable when EmbeddingService is configured.
//
// # Import Rules
//
//   - Can Import: domain package only
//   - Cannot Import: Any adapter package
package driven
