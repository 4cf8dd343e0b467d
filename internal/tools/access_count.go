package tools

import (
	"context"
	"fmt"
	"strconv"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/leonardcser/page-cache/internal/pagecache"
)

// AccessCountHandler returns the MCP tool handler for the "access-count" tool.
func AccessCountHandler(c *pagecache.Cache) func(context.Context, mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		url, err := req.RequireString("url")
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		n, err := c.AccessCount(url)
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		return mcp.NewToolResultText(strconv.FormatInt(n, 10)), nil
	}
}

// CacheStatusHandler returns the MCP tool handler for the "cache-status" tool.
func CacheStatusHandler(c *pagecache.Cache) func(context.Context, mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		url, err := req.RequireString("url")
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		state, err := c.State(url)
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		n, err := c.AccessCount(url)
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		return mcp.NewToolResultText(formatStatus(url, state, n)), nil
	}
}

func formatStatus(url string, state pagecache.State, count int64) string {
	return fmt.Sprintf("%s\n   state: %s\n   accesses: %d", url, state, count)
}
