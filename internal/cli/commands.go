package cli

import (
	"context"
	"fmt"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/leonardcser/page-cache/internal/logger"
	"github.com/leonardcser/page-cache/internal/logstats"
	"github.com/leonardcser/page-cache/internal/pagecache"
	"github.com/leonardcser/page-cache/internal/web"
)

const (
	formatRaw      = "raw"
	formatMarkdown = "markdown"
)

func newGetCmd(a *app) *cobra.Command {
	var format string
	cmd := &cobra.Command{
		Use:   "get <url>",
		Short: "Print the content of a URL, served from the cache while fresh",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if format != formatRaw && format != formatMarkdown {
				return fmt.Errorf("unknown format %q (want %s or %s)", format, formatRaw, formatMarkdown)
			}
			url := args[0]
			return a.withCache(func(c *pagecache.Cache) error {
				body, err := c.Fetch(cmd.Context(), url)
				if err != nil {
					return err
				}
				out := string(body)
				if format == formatMarkdown {
					ps, err := web.Summarize(url, body, "")
					if err != nil {
						return err
					}
					out = ps.Markdown()
				}
				fmt.Fprintln(cmd.OutOrStdout(), out)

				n, err := c.AccessCount(url)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.ErrOrStderr(), "%s, %s accesses\n", humanize.Bytes(uint64(len(body))), humanize.Comma(n))
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&format, "format", formatRaw, "output format: raw or markdown")
	return cmd
}

func newCountCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "count <url>",
		Short: "Print how many times a URL has been requested",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withCache(func(c *pagecache.Cache) error {
				n, err := c.AccessCount(args[0])
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), n)
				return nil
			})
		},
	}
}

func newStatusCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "status <url>",
		Short: "Print whether a URL is absent, fresh or stale, and its access count",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withCache(func(c *pagecache.Cache) error {
				state, err := c.State(args[0])
				if err != nil {
					return err
				}
				n, err := c.AccessCount(args[0])
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s %d\n", state, n)
				return nil
			})
		},
	}
}

func newLogStatsCmd(a *app) *cobra.Command {
	var (
		top      int
		mongoURI string
	)
	cmd := &cobra.Command{
		Use:   "log-stats",
		Short: "Print request statistics of Nginx logs stored in MongoDB",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := a.cfg
			if mongoURI != "" {
				cfg.Mongo.URI = mongoURI
			}
			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}
			src, release, err := a.deps.OpenLogs(ctx, cfg)
			if err != nil {
				return err
			}
			defer func() {
				if err := release(ctx); err != nil {
					logger.Warnf("closing log source: %v", err)
				}
			}()
			report, err := logstats.Collect(ctx, src, top)
			if err != nil {
				return err
			}
			_, err = report.WriteTo(cmd.OutOrStdout())
			return err
		},
	}
	cmd.Flags().IntVar(&top, "top", 10, "number of most frequent client IPs to list (0 to skip)")
	cmd.Flags().StringVar(&mongoURI, "mongo-uri", "", "MongoDB connection string (default from config)")
	return cmd
}
