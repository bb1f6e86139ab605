// Package dispatch fans a post out to every sink whose filters accept it.
package dispatch

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"fedirelay/internal/filter"
	"fedirelay/internal/model"
)

// Sink delivers one post to an external destination and returns an
// identifier for the created message.
type Sink interface {
	Name() string
	Send(ctx context.Context, post *model.Post) (string, error)
}

// Binding pairs a sink with the filter instances that gate it.
type Binding struct {
	Name    string
	Sink    Sink
	Filters []filter.Instance
}

// Result is the outcome of one delivery attempt. Exactly one of ID and
// Err is meaningful.
type Result struct {
	Name string
	ID   string
	Err  error
}

// SkipReason reports why a post must not be dispatched at all, or the
// empty string if it is eligible. accountID is the tracked account and
// excluded the visibility classes configured to stay local.
func SkipReason(post *model.Post, accountID string, excluded map[model.Visibility]bool) string {
	if post.Account.ID != accountID {
		return fmt.Sprintf("authored by %s, not the tracked account", post.Account.Acct)
	}
	if excluded[post.Visibility] {
		return fmt.Sprintf("visibility %q is excluded", post.Visibility)
	}
	if post.InReplyToAccountID != "" && post.InReplyToAccountID != accountID {
		return "reply to another account"
	}
	return ""
}

// Dispatch evaluates every binding's filters against the post and sends
// it to the sinks that accept it, concurrently. Bindings whose filters
// reject the post produce no result. Results are ordered as the passing
// bindings were declared; a failing sink never affects the others.
func Dispatch(ctx context.Context, post *model.Post, bindings []Binding, log *slog.Logger) []Result {
	passing := make([]Binding, 0, len(bindings))
	for _, b := range bindings {
		if filter.EvaluateAll(b.Filters, post) {
			passing = append(passing, b)
		} else {
			log.Debug("post rejected by sink filters", "sink", b.Name, "uri", post.URI)
		}
	}

	results := make([]Result, len(passing))
	var wg sync.WaitGroup
	for i, b := range passing {
		wg.Add(1)
		go func(i int, b Binding) {
			defer wg.Done()
			id, err := b.Sink.Send(ctx, post)
			if err != nil {
				results[i] = Result{Name: b.Name, Err: fmt.Errorf("sink %q: %w", b.Name, err)}
				return
			}
			results[i] = Result{Name: b.Name, ID: id}
		}(i, b)
	}
	wg.Wait()

	return results
}
