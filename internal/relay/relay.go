// Package relay wires filters and sinks together and drives the
// per-post delivery loop.
package relay

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"fedirelay/internal/config"
	"fedirelay/internal/dispatch"
	"fedirelay/internal/filter"
	"fedirelay/internal/model"
	"fedirelay/internal/sink"
)

// Relay consumes a stream of posts and fans each eligible one out to
// its configured sinks.
type Relay struct {
	accountID string
	excluded  map[model.Visibility]bool
	bindings  []dispatch.Binding
	log       *slog.Logger
}

// Load builds the filter namespace and the sink bindings from the
// configuration. Binding order follows sink declaration order.
func Load(cfg *config.Config, accountID string, log *slog.Logger) (*Relay, error) {
	filters, err := filter.Build(cfg.Filters)
	if err != nil {
		return nil, err
	}

	bindings := make([]dispatch.Binding, 0, len(cfg.Sinks))
	for _, sc := range cfg.Sinks {
		instances, err := filters.Instances(sc.Filters)
		if err != nil {
			return nil, fmt.Errorf("sink %q: %w", sc.Name, err)
		}

		var s dispatch.Sink
		switch sc.Type {
		case "telegram":
			s, err = sink.NewTelegram(sc, log.With("sink", sc.Name))
			if err != nil {
				return nil, fmt.Errorf("sink %q: %w", sc.Name, err)
			}
		case "discord":
			s = sink.NewWebhook(sc, http.DefaultClient, log.With("sink", sc.Name))
		default:
			return nil, fmt.Errorf("sink %q: unknown type %q", sc.Name, sc.Type)
		}

		bindings = append(bindings, dispatch.Binding{
			Name:    sc.Name,
			Sink:    s,
			Filters: instances,
		})
	}

	return &Relay{
		accountID: accountID,
		excluded:  cfg.ExcludedVisibilities(),
		bindings:  bindings,
		log:       log,
	}, nil
}

// Run processes posts until the channel closes or the context ends.
func (r *Relay) Run(ctx context.Context, posts <-chan *model.Post) {
	for {
		select {
		case post, ok := <-posts:
			if !ok {
				return
			}
			r.handle(ctx, post)
		case <-ctx.Done():
			return
		}
	}
}

func (r *Relay) handle(ctx context.Context, post *model.Post) {
	if reason := dispatch.SkipReason(post, r.accountID, r.excluded); reason != "" {
		r.log.Debug("skipping post", "uri", post.URI, "reason", reason)
		return
	}

	results := dispatch.Dispatch(ctx, post, r.bindings, r.log)
	for _, res := range results {
		if res.Err != nil {
			r.log.Error("delivery failed", "uri", post.URI, "sink", res.Name, "error", res.Err)
			continue
		}
		r.log.Info("delivered", "uri", post.URI, "sink", res.Name, "id", res.ID)
	}
}
