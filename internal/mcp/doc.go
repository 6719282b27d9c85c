// Package mcp implements the Model Context Protocol (MCP) server for the
// devgraph data layer.
//
// The server is a thin shell over internal/storage, internal/indexer and
// internal/searcher; it carries no algorithmic weight of its own. Tools:
//   - upsert_entity / delete_entity: Entity writes with synchronous
//     search index maintenance
//   - create_relation / delete_relation: Typed edges between entities
//   - search: Pattern-aware search over the index
//   - rebuild_index: Regenerate the search index from scratch
//   - get_status: Health, size and search statistics
//   - append_log / query_logs: Log store access
//
// # Protocol Overview
//
// MCP is a JSON-RPC 2.0 protocol over stdio transport:
//
//	Client → Server: {"method": "tools/call", "params": {...}}
//	Server → Client: {"result": {...}}
//
// stdout is reserved for the protocol; all logging goes to stderr.
//
// # Configuration
//
// The database file location comes from the DEVGRAPH_DB_PATH environment
// variable, defaulting to ~/.devgraph/devgraph.db.
package mcp
