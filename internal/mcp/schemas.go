package mcp

import (
	"github.com/mark3labs/mcp-go/mcp"
)

// upsertEntityTool returns the tool definition for upsert_entity
func upsertEntityTool() mcp.Tool {
	return mcp.Tool{
		Name:        "upsert_entity",
		Description: "Create or update a graph entity and refresh its search index row",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"id": map[string]interface{}{
					"type":        "string",
					"description": "Entity ID; omit to generate one on create",
				},
				"type": map[string]interface{}{
					"type":        "string",
					"description": "Entity type (e.g. component, service, file)",
				},
				"name": map[string]interface{}{
					"type":        "string",
					"description": "Entity name",
				},
				"data": map[string]interface{}{
					"type":        "object",
					"description": "Arbitrary JSON document; recognized fields (path, tags, description, ...) feed the search index",
				},
			},
			Required: []string{"type", "name"},
		},
	}
}

// deleteEntityTool returns the tool definition for delete_entity
func deleteEntityTool() mcp.Tool {
	return mcp.Tool{
		Name:        "delete_entity",
		Description: "Delete an entity; its relations and search index row are cascade-deleted",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"id": map[string]interface{}{
					"type":        "string",
					"description": "Entity ID",
				},
			},
			Required: []string{"id"},
		},
	}
}

// createRelationTool returns the tool definition for create_relation
func createRelationTool() mcp.Tool {
	return mcp.Tool{
		Name:        "create_relation",
		Description: "Create a directed, typed relation between two existing entities",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"from_id": map[string]interface{}{
					"type":        "string",
					"description": "Source entity ID",
				},
				"to_id": map[string]interface{}{
					"type":        "string",
					"description": "Target entity ID (must differ from from_id)",
				},
				"type": map[string]interface{}{
					"type":        "string",
					"description": "Relation type (e.g. imports, renders, calls)",
				},
				"properties": map[string]interface{}{
					"type":        "object",
					"description": "Arbitrary JSON document attached to the relation",
				},
			},
			Required: []string{"from_id", "to_id", "type"},
		},
	}
}

// deleteRelationTool returns the tool definition for delete_relation
func deleteRelationTool() mcp.Tool {
	return mcp.Tool{
		Name:        "delete_relation",
		Description: "Delete a relation by ID",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"id": map[string]interface{}{
					"type":        "string",
					"description": "Relation ID",
				},
			},
			Required: []string{"id"},
		},
	}
}

// searchTool returns the tool definition for search
func searchTool() mcp.Tool {
	return mcp.Tool{
		Name: "search",
		Description: "Search indexed entities. Supports prefix (Comp*), suffix (*Handler), " +
			"contains (*auth*), exact (\"Name\"), extension (*.tsx), type (t:component), " +
			"path (src/...), fuzzy (~name), regex (/pat/i) and free-text queries; " +
			"space-separated terms are ANDed",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"query": map[string]interface{}{
					"type":        "string",
					"description": "Search query string",
				},
				"limit": map[string]interface{}{
					"type":        "integer",
					"description": "Maximum number of results (1-1000)",
					"default":     50,
					"minimum":     1,
					"maximum":     1000,
				},
				"case_sensitive": map[string]interface{}{
					"type":        "boolean",
					"description": "Match against original rather than normalized names",
					"default":     false,
				},
			},
			Required: []string{"query"},
		},
	}
}

// rebuildIndexTool returns the tool definition for rebuild_index
func rebuildIndexTool() mcp.Tool {
	return mcp.Tool{
		Name:        "rebuild_index",
		Description: "Clear and regenerate the search index from the entity table",
		InputSchema: mcp.ToolInputSchema{
			Type:       "object",
			Properties: map[string]interface{}{},
		},
	}
}

// getStatusTool returns the tool definition for get_status
func getStatusTool() mcp.Tool {
	return mcp.Tool{
		Name:        "get_status",
		Description: "Report database health, size, row counts and search statistics",
		InputSchema: mcp.ToolInputSchema{
			Type:       "object",
			Properties: map[string]interface{}{},
		},
	}
}

// appendLogTool returns the tool definition for append_log
func appendLogTool() mcp.Tool {
	return mcp.Tool{
		Name:        "append_log",
		Description: "Append a log entry",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"level": map[string]interface{}{
					"type":        "string",
					"description": "Log level",
					"enum":        []string{"fatal", "error", "warn", "info", "debug", "trace"},
				},
				"service": map[string]interface{}{
					"type":        "string",
					"description": "Originating service name",
				},
				"message": map[string]interface{}{
					"type":        "string",
					"description": "Log message",
				},
				"metadata": map[string]interface{}{
					"type":        "object",
					"description": "Arbitrary JSON document; values become searchable",
				},
			},
			Required: []string{"level", "service", "message"},
		},
	}
}

// queryLogsTool returns the tool definition for query_logs
func queryLogsTool() mcp.Tool {
	return mcp.Tool{
		Name:        "query_logs",
		Description: "Query stored log entries, newest first",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"level": map[string]interface{}{
					"type":        "string",
					"description": "Filter by level",
					"enum":        []string{"fatal", "error", "warn", "info", "debug", "trace"},
				},
				"service": map[string]interface{}{
					"type":        "string",
					"description": "Filter by service name",
				},
				"contains": map[string]interface{}{
					"type":        "string",
					"description": "Substring to find in the indexed log content",
				},
				"limit": map[string]interface{}{
					"type":        "integer",
					"description": "Maximum number of entries (default 100)",
					"default":     100,
					"minimum":     1,
				},
			},
		},
	}
}
