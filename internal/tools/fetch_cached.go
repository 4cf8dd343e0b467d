package tools

import (
	"context"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/leonardcser/page-cache/internal/pagecache"
	web "github.com/leonardcser/page-cache/internal/web"
)

const (
	FormatRaw      = "raw"
	FormatMarkdown = "markdown"
)

// FetchCachedHandler returns the MCP tool handler for the "fetch-cached" tool.
func FetchCachedHandler(c *pagecache.Cache) func(context.Context, mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		if ctx.Err() != nil {
			return mcp.NewToolResultError(ctx.Err().Error()), nil
		}
		url, err := req.RequireString("url")
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}

		body, err := c.Fetch(ctx, url)
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}

		switch format := req.GetString("format", FormatRaw); format {
		case FormatRaw:
			return mcp.NewToolResultText(string(body)), nil
		case FormatMarkdown:
			ps, err := web.Summarize(url, body, "")
			if err != nil {
				return mcp.NewToolResultError(err.Error()), nil
			}
			return mcp.NewToolResultText(ps.Markdown()), nil
		default:
			return mcp.NewToolResultError("unknown format: " + format), nil
		}
	}
}
