package main

import (
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/leonardcser/page-cache/internal/cache"
	"github.com/leonardcser/page-cache/internal/config"
	"github.com/leonardcser/page-cache/internal/logger"
	"github.com/leonardcser/page-cache/internal/pagecache"
	tools "github.com/leonardcser/page-cache/internal/tools"
	web "github.com/leonardcser/page-cache/internal/web"
)

func main() {
	cfg, err := config.Load("")
	if err != nil {
		panic(err)
	}
	if err := logger.Init(cfg.Log.Path, cfg.Log.Level); err != nil {
		panic(err)
	}
	defer logger.Close()

	logger.Infof("Starting page-cache MCP server")

	// Connect to cache daemon; start it if needed, then connect.
	client, err := cache.Connect(cfg.Cache.Socket, cfg.DaemonEnv()...)
	if err != nil {
		panic(err)
	}

	fetcher := web.NewFetcher(web.FetcherOptions{Timeout: cfg.Fetch.Timeout, Delay: cfg.Fetch.Delay})
	pages := pagecache.New(client, fetcher, pagecache.WithTTL(cfg.Cache.TTL))
	logger.Infof("Initialized page cache with ttl %s", cfg.Cache.TTL)

	s := server.NewMCPServer(
		"Page Cache",
		"0.1.0",
		server.WithRecovery(),
		server.WithToolCapabilities(false),
	)

	toolFetch := mcp.NewTool("fetch-cached",
		mcp.WithDescription(multiline(
			"Fetches the content of a URL through a short-lived cache",
			"\nFunctionality:",
			"- Returns the cached body while it is fresh, otherwise fetches and caches it",
			"- Every call is counted per URL, including failed fetches",
			"\nUsage notes:",
			"- The URL must start with http:// or https://",
			"- Use format=markdown to get a readable summary of HTML pages",
		)),
		mcp.WithString("url", mcp.Required(), mcp.Description("The URL to fetch content from")),
		mcp.WithString("format", mcp.Enum(tools.FormatRaw, tools.FormatMarkdown), mcp.Description("raw (default) or markdown")),
	)
	s.AddTool(toolFetch, tools.FetchCachedHandler(pages))
	logger.Infof("Registered fetch-cached tool")

	toolCount := mcp.NewTool("access-count",
		mcp.WithDescription("Returns how many times a URL has been requested through fetch-cached"),
		mcp.WithString("url", mcp.Required(), mcp.Description("The URL to look up")),
	)
	s.AddTool(toolCount, tools.AccessCountHandler(pages))
	logger.Infof("Registered access-count tool")

	toolStatus := mcp.NewTool("cache-status",
		mcp.WithDescription("Reports whether a URL is absent, fresh or stale in the cache, with its access count"),
		mcp.WithString("url", mcp.Required(), mcp.Description("The URL to look up")),
	)
	s.AddTool(toolStatus, tools.CacheStatusHandler(pages))
	logger.Infof("Registered cache-status tool")

	logger.Infof("Starting MCP server on stdio")
	if err := server.ServeStdio(s); err != nil {
		logger.Errorf("server error: %v", err)
	}
}

// multiline joins lines with newlines for tool descriptions.
func multiline(lines ...string) string { return strings.Join(lines, "\n") }
