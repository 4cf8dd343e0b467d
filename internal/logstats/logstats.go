// Package logstats reports request statistics over Nginx access logs kept in
// a document store.
package logstats

import (
	"context"
	"fmt"
	"io"
	"strings"

	"golang.org/x/sync/errgroup"
)

// Methods lists the HTTP methods counted in a report, in report order.
var Methods = []string{"GET", "POST", "PUT", "PATCH", "DELETE"}

// Filter selects log documents by exact field match. Empty fields match all.
type Filter struct {
	Method string
	Path   string
}

type IPCount struct {
	IP    string
	Count int64
}

// Source answers the counting queries a Report needs.
type Source interface {
	Count(ctx context.Context, filter Filter) (int64, error)
	TopIPs(ctx context.Context, n int) ([]IPCount, error)
}

type MethodCount struct {
	Method string
	Count  int64
}

type Report struct {
	Total        int64
	Methods      []MethodCount
	StatusChecks int64
	TopIPs       []IPCount
}

// Collect queries src for a full report. topN <= 0 skips the IP ranking.
// The per-method, status and IP queries run concurrently once the total is known.
func Collect(ctx context.Context, src Source, topN int) (Report, error) {
	var r Report
	var err error
	if r.Total, err = src.Count(ctx, Filter{}); err != nil {
		return Report{}, fmt.Errorf("count logs: %w", err)
	}

	g, gctx := errgroup.WithContext(ctx)
	r.Methods = make([]MethodCount, len(Methods))
	for i, m := range Methods {
		g.Go(func() error {
			n, err := src.Count(gctx, Filter{Method: m})
			if err != nil {
				return fmt.Errorf("count method %s: %w", m, err)
			}
			r.Methods[i] = MethodCount{Method: m, Count: n}
			return nil
		})
	}
	g.Go(func() error {
		n, err := src.Count(gctx, Filter{Method: "GET", Path: "/status"})
		if err != nil {
			return fmt.Errorf("count status checks: %w", err)
		}
		r.StatusChecks = n
		return nil
	})
	if topN > 0 {
		g.Go(func() error {
			ips, err := src.TopIPs(gctx, topN)
			if err != nil {
				return fmt.Errorf("rank ips: %w", err)
			}
			r.TopIPs = ips
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return Report{}, err
	}
	return r, nil
}

// WriteTo writes the report in its plain-text form.
func (r Report) WriteTo(w io.Writer) (int64, error) {
	var sb strings.Builder
	fmt.Fprintf(&sb, "%d logs\n", r.Total)
	sb.WriteString("Methods:\n")
	for _, m := range r.Methods {
		fmt.Fprintf(&sb, "\tmethod %s: %d\n", m.Method, m.Count)
	}
	fmt.Fprintf(&sb, "%d status check\n", r.StatusChecks)
	if len(r.TopIPs) > 0 {
		sb.WriteString("IPs:\n")
		for _, ip := range r.TopIPs {
			fmt.Fprintf(&sb, "\t%s: %d\n", ip.IP, ip.Count)
		}
	}
	n, err := io.WriteString(w, sb.String())
	return int64(n), err
}
