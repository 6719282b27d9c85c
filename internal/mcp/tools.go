package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/devgraph/devgraph-mcp/internal/query"
	"github.com/devgraph/devgraph-mcp/internal/searcher"
	"github.com/devgraph/devgraph-mcp/internal/storage"
	"github.com/devgraph/devgraph-mcp/pkg/types"
)

// MCP error codes
const (
	ErrorCodeInvalidParams  = -32602 // Invalid method parameters
	ErrorCodeInternalError  = -32603 // Internal JSON-RPC error
	ErrorCodeNotFound       = -32001 // Referenced entity or relation does not exist
	ErrorCodeEmptyQuery     = -32004 // Query parameter is empty
	ErrorCodeSearchDisabled = -32005 // Requested pattern type is disabled in the engine
)

// handleUpsertEntity handles the upsert_entity tool invocation
func (s *Server) handleUpsertEntity(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, ok := request.Params.Arguments.(map[string]interface{})
	if !ok {
		return nil, newMCPError(ErrorCodeInvalidParams, "invalid arguments", nil)
	}

	entityType := getStringDefault(args, "type", "")
	name := getStringDefault(args, "name", "")
	if entityType == "" || name == "" {
		return nil, newMCPError(ErrorCodeInvalidParams, "type and name parameters are required", nil)
	}

	entity := &types.Entity{
		ID:   getStringDefault(args, "id", ""),
		Type: entityType,
		Name: name,
	}
	if data, ok := args["data"].(map[string]interface{}); ok {
		entity.Data = data
	}

	created, err := s.db.UpsertEntity(ctx, entity)
	if err != nil {
		return nil, newMCPError(ErrorCodeInternalError, "failed to upsert entity", map[string]interface{}{
			"error": err.Error(),
		})
	}

	// Index update is synchronous so the entity is searchable on return
	if err := s.indexer.UpdateEntityIndex(ctx, entity); err != nil {
		return nil, newMCPError(ErrorCodeInternalError, "failed to update search index", map[string]interface{}{
			"error": err.Error(),
		})
	}

	return mcp.NewToolResultText(formatJSON(map[string]interface{}{
		"id":      entity.ID,
		"created": created,
		"version": entity.Version,
	})), nil
}

// handleDeleteEntity handles the delete_entity tool invocation
func (s *Server) handleDeleteEntity(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, ok := request.Params.Arguments.(map[string]interface{})
	if !ok {
		return nil, newMCPError(ErrorCodeInvalidParams, "invalid arguments", nil)
	}
	id := getStringDefault(args, "id", "")
	if id == "" {
		return nil, newMCPError(ErrorCodeInvalidParams, "id parameter is required", nil)
	}

	if err := s.db.DeleteEntity(ctx, id); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, newMCPError(ErrorCodeNotFound, "entity not found", map[string]interface{}{"id": id})
		}
		return nil, newMCPError(ErrorCodeInternalError, "failed to delete entity", map[string]interface{}{
			"error": err.Error(),
		})
	}

	return mcp.NewToolResultText(formatJSON(map[string]interface{}{
		"id":      id,
		"deleted": true,
	})), nil
}

// handleCreateRelation handles the create_relation tool invocation
func (s *Server) handleCreateRelation(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, ok := request.Params.Arguments.(map[string]interface{})
	if !ok {
		return nil, newMCPError(ErrorCodeInvalidParams, "invalid arguments", nil)
	}

	relation := &types.Relation{
		FromID: getStringDefault(args, "from_id", ""),
		ToID:   getStringDefault(args, "to_id", ""),
		Type:   getStringDefault(args, "type", ""),
	}
	if props, ok := args["properties"].(map[string]interface{}); ok {
		relation.Properties = props
	}

	if err := s.db.CreateRelation(ctx, relation); err != nil {
		if errors.Is(err, types.ErrSelfRelation) || errors.Is(err, types.ErrMissingEndpoint) || errors.Is(err, types.ErrEmptyRelationType) {
			return nil, newMCPError(ErrorCodeInvalidParams, err.Error(), nil)
		}
		return nil, newMCPError(ErrorCodeInternalError, "failed to create relation", map[string]interface{}{
			"error": err.Error(),
		})
	}

	return mcp.NewToolResultText(formatJSON(map[string]interface{}{
		"id":      relation.ID,
		"from_id": relation.FromID,
		"to_id":   relation.ToID,
		"type":    relation.Type,
	})), nil
}

// handleDeleteRelation handles the delete_relation tool invocation
func (s *Server) handleDeleteRelation(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, ok := request.Params.Arguments.(map[string]interface{})
	if !ok {
		return nil, newMCPError(ErrorCodeInvalidParams, "invalid arguments", nil)
	}
	id := getStringDefault(args, "id", "")
	if id == "" {
		return nil, newMCPError(ErrorCodeInvalidParams, "id parameter is required", nil)
	}

	if err := s.db.DeleteRelation(ctx, id); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, newMCPError(ErrorCodeNotFound, "relation not found", map[string]interface{}{"id": id})
		}
		return nil, newMCPError(ErrorCodeInternalError, "failed to delete relation", map[string]interface{}{
			"error": err.Error(),
		})
	}

	return mcp.NewToolResultText(formatJSON(map[string]interface{}{
		"id":      id,
		"deleted": true,
	})), nil
}

// handleSearch handles the search tool invocation
func (s *Server) handleSearch(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, ok := request.Params.Arguments.(map[string]interface{})
	if !ok {
		return nil, newMCPError(ErrorCodeInvalidParams, "invalid arguments", nil)
	}

	q := getStringDefault(args, "query", "")
	limit := getIntDefault(args, "limit", 0)

	results, err := s.searcher.Search(ctx, q, searcher.Options{
		Limit:         limit,
		CaseSensitive: getBoolDefault(args, "case_sensitive", false),
	})
	switch {
	case errors.Is(err, query.ErrEmptyQuery):
		return nil, newMCPError(ErrorCodeEmptyQuery, "query parameter is required and cannot be empty", nil)
	case errors.Is(err, searcher.ErrFuzzyDisabled), errors.Is(err, searcher.ErrRegexDisabled):
		return nil, newMCPError(ErrorCodeSearchDisabled, err.Error(), nil)
	case err != nil:
		return nil, newMCPError(ErrorCodeInternalError, "search failed", map[string]interface{}{
			"error": err.Error(),
		})
	}

	items := make([]map[string]interface{}, 0, len(results))
	for _, r := range results {
		item := map[string]interface{}{
			"entity_id":   r.EntityID,
			"name":        r.Name,
			"entity_type": r.EntityType,
		}
		if r.FilePath != "" {
			item["file_path"] = r.FilePath
		}
		if r.Score > 0 {
			item["score"] = r.Score
		}
		if r.Relevance > 0 {
			item["relevance"] = r.Relevance
		}
		items = append(items, item)
	}

	return mcp.NewToolResultText(formatJSON(map[string]interface{}{
		"query":   q,
		"count":   len(items),
		"results": items,
	})), nil
}

// handleRebuildIndex handles the rebuild_index tool invocation
func (s *Server) handleRebuildIndex(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	result, err := s.indexer.RebuildIndex(ctx)
	if err != nil {
		return nil, newMCPError(ErrorCodeInternalError, "rebuild failed", map[string]interface{}{
			"error": err.Error(),
		})
	}

	return mcp.NewToolResultText(formatJSON(map[string]interface{}{
		"processed":   result.Processed,
		"created":     result.Created,
		"errors":      result.Errors,
		"duration_ms": result.Duration.Milliseconds(),
	})), nil
}

// handleGetStatus handles the get_status tool invocation
func (s *Server) handleGetStatus(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	health := s.db.HealthCheck(ctx)
	stats := s.db.GetStats(ctx)
	searchStats := s.searcher.Stats()

	response := map[string]interface{}{
		"health": map[string]interface{}{
			"connected":    health.Connected,
			"journal_mode": health.JournalMode,
			"foreign_keys": health.ForeignKeys,
		},
		"database": map[string]interface{}{
			"path":        s.db.Path(),
			"build_mode":  storage.BuildMode,
			"size_bytes":  stats.SizeBytes,
			"entities":    stats.Entities,
			"relations":   stats.Relations,
			"index_rows":  stats.IndexRows,
			"log_entries": stats.LogEntries,
			"statements":  len(stats.Statements),
		},
		"search": map[string]interface{}{
			"total_queries":  searchStats.TotalQueries,
			"avg_latency_ms": searchStats.AvgLatency.Milliseconds(),
			"pattern_counts": searchStats.PatternCounts,
			"slow_queries":   len(searchStats.SlowQueries),
		},
	}
	if health.Error != "" {
		response["health"].(map[string]interface{})["error"] = health.Error
	}
	if stats.Error != "" {
		response["database"].(map[string]interface{})["error"] = stats.Error
	}

	return mcp.NewToolResultText(formatJSON(response)), nil
}

// handleAppendLog handles the append_log tool invocation
func (s *Server) handleAppendLog(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, ok := request.Params.Arguments.(map[string]interface{})
	if !ok {
		return nil, newMCPError(ErrorCodeInvalidParams, "invalid arguments", nil)
	}

	entry := &types.LogEntry{
		Level:   types.Level(getStringDefault(args, "level", "")),
		Service: getStringDefault(args, "service", ""),
		Message: getStringDefault(args, "message", ""),
	}
	if metadata, ok := args["metadata"].(map[string]interface{}); ok {
		entry.Metadata = metadata
	}

	if err := s.db.AppendLog(ctx, entry); err != nil {
		if errors.Is(err, types.ErrInvalidLogLevel) || errors.Is(err, types.ErrEmptyLogService) || errors.Is(err, types.ErrEmptyLogMessage) {
			return nil, newMCPError(ErrorCodeInvalidParams, err.Error(), nil)
		}
		return nil, newMCPError(ErrorCodeInternalError, "failed to append log", map[string]interface{}{
			"error": err.Error(),
		})
	}

	return mcp.NewToolResultText(formatJSON(map[string]interface{}{
		"id":        entry.ID,
		"timestamp": entry.Timestamp.Format("2006-01-02T15:04:05.000Z07:00"),
	})), nil
}

// handleQueryLogs handles the query_logs tool invocation
func (s *Server) handleQueryLogs(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, ok := request.Params.Arguments.(map[string]interface{})
	if !ok {
		args = map[string]interface{}{}
	}

	entries, err := s.db.QueryLogs(ctx, storage.LogFilter{
		Level:    types.Level(getStringDefault(args, "level", "")),
		Service:  getStringDefault(args, "service", ""),
		Contains: getStringDefault(args, "contains", ""),
		Limit:    getIntDefault(args, "limit", 0),
	})
	if err != nil {
		return nil, newMCPError(ErrorCodeInternalError, "failed to query logs", map[string]interface{}{
			"error": err.Error(),
		})
	}

	items := make([]map[string]interface{}, 0, len(entries))
	for _, e := range entries {
		item := map[string]interface{}{
			"id":        e.ID,
			"timestamp": e.Timestamp.Format("2006-01-02T15:04:05.000Z07:00"),
			"level":     string(e.Level),
			"service":   e.Service,
			"message":   e.Message,
		}
		if len(e.Metadata) > 0 {
			item["metadata"] = e.Metadata
		}
		items = append(items, item)
	}

	return mcp.NewToolResultText(formatJSON(map[string]interface{}{
		"count":   len(items),
		"entries": items,
	})), nil
}

// Helper functions

// newMCPError creates a properly formatted MCP error
func newMCPError(code int, message string, data interface{}) error {
	return &MCPError{
		Code:    code,
		Message: message,
		Data:    data,
	}
}

// MCPError represents an MCP protocol error
type MCPError struct {
	Code    int
	Message string
	Data    interface{}
}

func (e *MCPError) Error() string {
	return fmt.Sprintf("MCP error %d: %s", e.Code, e.Message)
}

// formatJSON formats a map as indented JSON
func formatJSON(data map[string]interface{}) string {
	bytes, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return fmt.Sprintf("%v", data)
	}
	return string(bytes)
}

// getBoolDefault extracts a boolean parameter with a default value
func getBoolDefault(args map[string]interface{}, key string, defaultValue bool) bool {
	if val, ok := args[key].(bool); ok {
		return val
	}
	return defaultValue
}

// getIntDefault extracts an integer parameter with a default value
func getIntDefault(args map[string]interface{}, key string, defaultValue int) int {
	if val, ok := args[key].(float64); ok {
		return int(val)
	}
	if val, ok := args[key].(int); ok {
		return val
	}
	return defaultValue
}

// getStringDefault extracts a string parameter with a default value
func getStringDefault(args map[string]interface{}, key string, defaultValue string) string {
	if val, ok := args[key].(string); ok {
		return val
	}
	return defaultValue
}
