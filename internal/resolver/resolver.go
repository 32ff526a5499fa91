// Package resolver assembles replies for incoming DNS queries, consulting
// the hosts table first and falling back to the upstream client.
package resolver

import (
	"context"
	"errors"
	"log/slog"

	"github.com/duskrelay/duskrelay/internal/dns"
	"github.com/duskrelay/duskrelay/internal/hosts"
	"github.com/duskrelay/duskrelay/internal/logging"
	"github.com/duskrelay/duskrelay/internal/upstream"
)

// Upstream is the subset of *upstream.Client the resolver depends on.
type Upstream interface {
	Resolve(ctx context.Context, raw []byte) ([]byte, error)
}

// Resolver answers DNS queries from a hosts table, forwarding anything
// it cannot answer locally to an upstream client.
type Resolver struct {
	hosts    *hosts.Table
	upstream Upstream
	log      *slog.Logger
}

// New builds a Resolver over the given hosts table and upstream client.
func New(hostsTable *hosts.Table, up Upstream) *Resolver {
	return &Resolver{hosts: hostsTable, upstream: up, log: logging.For("resolver")}
}

// Handle parses raw as a DNS query, consults the hosts table for each
// question, and either answers locally or forwards to upstream
// verbatim. A nil return means no reply should be sent (malformed
// query, or upstream unavailable).
func (r *Resolver) Handle(ctx context.Context, raw []byte) []byte {
	req, err := dns.ParseQuery(raw)
	if err != nil {
		r.log.Warn("dropping malformed query", "err", err)
		return nil
	}

	var answers []dns.Answer
	for _, q := range req.Questions {
		answers = append(answers, r.hosts.Search(q)...)
	}

	if len(answers) > 0 {
		reply := dns.BuildReply(req, answers)
		return reply.Marshal()
	}

	resp, err := r.upstream.Resolve(ctx, raw)
	if err != nil {
		if errors.Is(err, upstream.ErrUnavailable) {
			r.log.Warn("upstream unavailable, dropping query", "err", err)
		} else {
			r.log.Warn("upstream resolve failed", "err", err)
		}
		return nil
	}
	return resp
}
