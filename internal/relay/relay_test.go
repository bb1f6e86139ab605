package relay

import (
	"context"
	"io"
	"log/slog"
	"strings"
	"testing"

	"fedirelay/internal/config"
	"fedirelay/internal/dispatch"
	"fedirelay/internal/model"
)

func discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func baseConfig() *config.Config {
	return &config.Config{
		Main: config.Main{
			Instance:          "mastodon.example.org",
			Token:             "secret",
			User:              "9",
			List:              "7",
			ExcludeVisibility: []string{"direct"},
		},
		Filters: map[string]config.Filter{
			"no_boosts": {Type: "boost"},
		},
		Sinks: []config.Sink{
			{
				Name:    "feed",
				Type:    "discord",
				Webhook: "https://discord.example.com/api/webhooks/1/tok",
				Filters: []string{"~no_boosts"},
			},
		},
	}
}

func TestLoad(t *testing.T) {
	r, err := Load(baseConfig(), "9", discard())
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if len(r.bindings) != 1 {
		t.Fatalf("got %d bindings, want 1", len(r.bindings))
	}
	b := r.bindings[0]
	if b.Name != "feed" || b.Sink.Name() != "feed" {
		t.Errorf("binding = %+v", b)
	}
	if len(b.Filters) != 1 || !b.Filters[0].Invert {
		t.Errorf("filters = %+v, want one inverted instance", b.Filters)
	}
	if !r.excluded[model.VisibilityDirect] {
		t.Error("direct visibility not excluded")
	}
}

func TestLoadErrors(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(cfg *config.Config)
		wantErr string
	}{
		{
			"unknown sink type",
			func(cfg *config.Config) { cfg.Sinks[0].Type = "matrix" },
			`unknown type "matrix"`,
		},
		{
			"unknown filter reference",
			func(cfg *config.Config) { cfg.Sinks[0].Filters = []string{"no_such"} },
			`unknown filter "no_such"`,
		},
		{
			"broken filter section",
			func(cfg *config.Config) {
				cfg.Filters["broken"] = config.Filter{Type: "media"}
			},
			"valid_media is required",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := baseConfig()
			tt.mutate(cfg)
			_, err := Load(cfg, "9", discard())
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Fatalf("Load() error = %v, want substring %q", err, tt.wantErr)
			}
		})
	}
}

type recordSink struct {
	name string
	got  []*model.Post
}

func (s *recordSink) Name() string { return s.name }

func (s *recordSink) Send(_ context.Context, post *model.Post) (string, error) {
	s.got = append(s.got, post)
	return "1", nil
}

func TestRelayRun(t *testing.T) {
	rec := &recordSink{name: "rec"}
	r := &Relay{
		accountID: "9",
		excluded:  map[model.Visibility]bool{model.VisibilityDirect: true},
		bindings:  []dispatch.Binding{{Name: "rec", Sink: rec}},
		log:       discard(),
	}

	mine := &model.Post{
		URI:        "https://mastodon.example.org/1",
		Account:    model.Account{ID: "9"},
		Visibility: model.VisibilityPublic,
	}
	foreign := &model.Post{
		URI:        "https://mastodon.example.org/2",
		Account:    model.Account{ID: "2"},
		Visibility: model.VisibilityPublic,
	}
	direct := &model.Post{
		URI:        "https://mastodon.example.org/3",
		Account:    model.Account{ID: "9"},
		Visibility: model.VisibilityDirect,
	}

	posts := make(chan *model.Post, 3)
	posts <- mine
	posts <- foreign
	posts <- direct
	close(posts)

	r.Run(context.Background(), posts)

	if len(rec.got) != 1 {
		t.Fatalf("sink received %d posts, want 1", len(rec.got))
	}
	if rec.got[0].URI != mine.URI {
		t.Errorf("sink received %q", rec.got[0].URI)
	}
}
