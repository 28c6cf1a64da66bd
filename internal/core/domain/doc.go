// Package domain defines the core entities of the refida search subsystem.
//
// This package is part of the hexagonal architecture's innermost layer.
// It has NO external dependencies and defines the fundamental types:
//
//   - Row / Dataset: The tabular collaborator input, one row per document
//   - Hit: A single ranked result from any of the three indexes
//   - IndexKind / IndexInfo: Identity and diagnostics of an on-disk index
//   - AppSettings: Search, embedding and vector backend configuration
//
// # Architectural Position
//
// Domain is at the centre of the hexagon. It may only import
// the Go standard library. All other packages depend on domain,
// never the reverse.
//
// # Import Rules
//
//   - Can Import: Standard library only
//   - Cannot Import: Any internal/ package, any external dependency
package domain
