package mcp

import (
	"context"
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestServer(t *testing.T) *Server {
	t.Helper()
	ctx := context.Background()
	s, err := NewServer(ctx, filepath.Join(t.TempDir(), "devgraph.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.db.Close() })
	return s
}

func callRequest(args map[string]interface{}) mcp.CallToolRequest {
	req := mcp.CallToolRequest{}
	req.Params.Arguments = args
	return req
}

func resultJSON(t *testing.T, result *mcp.CallToolResult) map[string]interface{} {
	t.Helper()
	require.NotNil(t, result)
	require.NotEmpty(t, result.Content)
	text, ok := result.Content[0].(mcp.TextContent)
	require.True(t, ok)

	var data map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(text.Text), &data))
	return data
}

func TestNewServer(t *testing.T) {
	s := setupTestServer(t)
	assert.NotNil(t, s.db)
	assert.NotNil(t, s.indexer)
	assert.NotNil(t, s.searcher)
	assert.True(t, s.db.Connected())
}

func TestUpsertEntityAndSearch(t *testing.T) {
	ctx := context.Background()
	s := setupTestServer(t)

	result, err := s.handleUpsertEntity(ctx, callRequest(map[string]interface{}{
		"id":   "e1",
		"type": "component",
		"name": "UserProfile",
		"data": map[string]interface{}{"path": "src/UserProfile.tsx"},
	}))
	require.NoError(t, err)
	data := resultJSON(t, result)
	assert.Equal(t, true, data["created"])
	assert.Equal(t, float64(1), data["version"])

	// The entity is searchable immediately after the upsert returns
	result, err = s.handleSearch(ctx, callRequest(map[string]interface{}{
		"query": "User*",
	}))
	require.NoError(t, err)
	data = resultJSON(t, result)
	assert.Equal(t, float64(1), data["count"])

	// Upserting again updates in place
	result, err = s.handleUpsertEntity(ctx, callRequest(map[string]interface{}{
		"id":   "e1",
		"type": "component",
		"name": "UserProfileCard",
	}))
	require.NoError(t, err)
	data = resultJSON(t, result)
	assert.Equal(t, false, data["created"])
	assert.Equal(t, float64(2), data["version"])
}

func TestUpsertEntityMissingParams(t *testing.T) {
	ctx := context.Background()
	s := setupTestServer(t)

	_, err := s.handleUpsertEntity(ctx, callRequest(map[string]interface{}{
		"type": "component",
	}))
	require.Error(t, err)

	var mcpErr *MCPError
	require.ErrorAs(t, err, &mcpErr)
	assert.Equal(t, ErrorCodeInvalidParams, mcpErr.Code)
}

func TestDeleteEntity(t *testing.T) {
	ctx := context.Background()
	s := setupTestServer(t)

	_, err := s.handleUpsertEntity(ctx, callRequest(map[string]interface{}{
		"id": "e1", "type": "component", "name": "One",
	}))
	require.NoError(t, err)

	result, err := s.handleDeleteEntity(ctx, callRequest(map[string]interface{}{"id": "e1"}))
	require.NoError(t, err)
	assert.Equal(t, true, resultJSON(t, result)["deleted"])

	_, err = s.handleDeleteEntity(ctx, callRequest(map[string]interface{}{"id": "e1"}))
	var mcpErr *MCPError
	require.ErrorAs(t, err, &mcpErr)
	assert.Equal(t, ErrorCodeNotFound, mcpErr.Code)
}

func TestRelationTools(t *testing.T) {
	ctx := context.Background()
	s := setupTestServer(t)

	for _, e := range []map[string]interface{}{
		{"id": "a", "type": "component", "name": "A"},
		{"id": "b", "type": "component", "name": "B"},
	} {
		_, err := s.handleUpsertEntity(ctx, callRequest(e))
		require.NoError(t, err)
	}

	result, err := s.handleCreateRelation(ctx, callRequest(map[string]interface{}{
		"from_id": "a", "to_id": "b", "type": "imports",
	}))
	require.NoError(t, err)
	relID, _ := resultJSON(t, result)["id"].(string)
	require.NotEmpty(t, relID)

	// Self-relations are invalid params, not internal errors
	_, err = s.handleCreateRelation(ctx, callRequest(map[string]interface{}{
		"from_id": "a", "to_id": "a", "type": "loops",
	}))
	var mcpErr *MCPError
	require.ErrorAs(t, err, &mcpErr)
	assert.Equal(t, ErrorCodeInvalidParams, mcpErr.Code)

	result, err = s.handleDeleteRelation(ctx, callRequest(map[string]interface{}{"id": relID}))
	require.NoError(t, err)
	assert.Equal(t, true, resultJSON(t, result)["deleted"])
}

func TestSearchEmptyQueryError(t *testing.T) {
	ctx := context.Background()
	s := setupTestServer(t)

	_, err := s.handleSearch(ctx, callRequest(map[string]interface{}{"query": "  "}))
	var mcpErr *MCPError
	require.ErrorAs(t, err, &mcpErr)
	assert.Equal(t, ErrorCodeEmptyQuery, mcpErr.Code)
}

func TestRebuildIndexTool(t *testing.T) {
	ctx := context.Background()
	s := setupTestServer(t)

	for _, id := range []string{"a", "b", "c"} {
		_, err := s.handleUpsertEntity(ctx, callRequest(map[string]interface{}{
			"id": id, "type": "component", "name": "Comp-" + id,
		}))
		require.NoError(t, err)
	}

	result, err := s.handleRebuildIndex(ctx, callRequest(nil))
	require.NoError(t, err)
	data := resultJSON(t, result)
	assert.Equal(t, float64(3), data["processed"])
	assert.Equal(t, float64(3), data["created"])
}

func TestGetStatusTool(t *testing.T) {
	ctx := context.Background()
	s := setupTestServer(t)

	result, err := s.handleGetStatus(ctx, callRequest(nil))
	require.NoError(t, err)
	data := resultJSON(t, result)

	health, ok := data["health"].(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, true, health["connected"])

	database, ok := data["database"].(map[string]interface{})
	require.True(t, ok)
	assert.NotEmpty(t, database["path"])
}

func TestLogTools(t *testing.T) {
	ctx := context.Background()
	s := setupTestServer(t)

	result, err := s.handleAppendLog(ctx, callRequest(map[string]interface{}{
		"level":    "error",
		"service":  "api",
		"message":  "connection reset",
		"metadata": map[string]interface{}{"code": "ECONNRESET"},
	}))
	require.NoError(t, err)
	assert.NotEmpty(t, resultJSON(t, result)["id"])

	// Bad level is invalid params
	_, err = s.handleAppendLog(ctx, callRequest(map[string]interface{}{
		"level": "loud", "service": "api", "message": "x",
	}))
	var mcpErr *MCPError
	require.ErrorAs(t, err, &mcpErr)
	assert.Equal(t, ErrorCodeInvalidParams, mcpErr.Code)

	result, err = s.handleQueryLogs(ctx, callRequest(map[string]interface{}{
		"level": "error",
	}))
	require.NoError(t, err)
	data := resultJSON(t, result)
	assert.Equal(t, float64(1), data["count"])

	result, err = s.handleQueryLogs(ctx, callRequest(map[string]interface{}{
		"contains": "econnreset",
	}))
	require.NoError(t, err)
	assert.Equal(t, float64(1), resultJSON(t, result)["count"])
}
