// Package services implements the driving port interfaces.
// Services contain the core business logic and orchestrate
// calls to driven ports (adapters).
//
// The three indexes (DocumentIndex, SentenceIndex, LexicalIndex) each
// implement driving.Index; SearchService dispatches queries to them and
// ReindexService rebuilds them from the dataset. Loaded stores are shared
// through an IndexCache owned by the caller.
//
// Services depend only on domain, the ports and small utility libraries
// (uuid, singleflight); they never import an adapter.
package services
