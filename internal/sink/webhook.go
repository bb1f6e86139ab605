package sink

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"hash/crc32"
	"io"
	"log/slog"
	"net/http"
	"time"

	"fedirelay/internal/config"
	"fedirelay/internal/model"
)

// HTTPClient is the interface for performing HTTP requests.
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// Webhook posts statuses to a Discord-compatible webhook as a single
// embed, with the markdown rendering of the content as its description.
type Webhook struct {
	name   string
	url    string
	client HTTPClient
	log    *slog.Logger
}

type embedAuthor struct {
	Name    string `json:"name"`
	URL     string `json:"url,omitempty"`
	IconURL string `json:"icon_url,omitempty"`
}

type embedImage struct {
	URL string `json:"url"`
}

type embed struct {
	Title       string       `json:"title"`
	Description string       `json:"description"`
	URL         string       `json:"url"`
	Timestamp   string       `json:"timestamp"`
	Color       uint32       `json:"color"`
	Author      *embedAuthor `json:"author,omitempty"`
	Image       *embedImage  `json:"image,omitempty"`
}

type webhookPayload struct {
	Embeds []embed `json:"embeds"`
}

type webhookResponse struct {
	ID string `json:"id"`
}

// NewWebhook builds a webhook sink from its config section.
func NewWebhook(cfg config.Sink, client HTTPClient, log *slog.Logger) *Webhook {
	return &Webhook{
		name:   cfg.Name,
		url:    cfg.Webhook,
		client: client,
		log:    log,
	}
}

func (w *Webhook) Name() string { return w.name }

// Send posts the embed and returns the created message id.
func (w *Webhook) Send(ctx context.Context, post *model.Post) (string, error) {
	payload := webhookPayload{Embeds: w.buildEmbeds(post)}
	body, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("marshal payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.url+"?wait=true", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	w.log.Debug("posting webhook payload", "embeds", len(payload.Embeds))
	resp, err := w.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("http post: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, 1024*1024))
	if err != nil {
		return "", fmt.Errorf("read body: %w", err)
	}
	var created webhookResponse
	if err := json.Unmarshal(respBody, &created); err != nil {
		return "", fmt.Errorf("decode response: %w", err)
	}
	return created.ID, nil
}

func (w *Webhook) buildEmbeds(post *model.Post) []embed {
	source := post.EffectiveSource()

	title := fmt.Sprintf("@%s posted", post.Account.Acct)
	if post.IsBoost() {
		title = fmt.Sprintf("@%s boosted from @%s", post.Account.Acct, source.Account.Acct)
	}

	description := source.ContentMarkdown()
	if source.SpoilerText != "" {
		description = source.SpoilerText + "\n||" + description + "||"
	}

	main := embed{
		Title:       title,
		Description: description,
		URL:         post.Permalink(),
		Timestamp:   post.CreatedAt.UTC().Format(time.RFC3339),
		Color:       crc32.ChecksumIEEE([]byte(source.Account.ID)) & 0xFFFFFF,
		Author: &embedAuthor{
			Name:    source.Account.Name(),
			URL:     source.Account.URL,
			IconURL: source.Account.Avatar,
		},
	}

	embeds := []embed{main}
	for _, a := range source.Attachments {
		if a.Kind != model.MediaImage {
			continue
		}
		if embeds[0].Image == nil {
			embeds[0].Image = &embedImage{URL: a.URL}
			continue
		}
		embeds = append(embeds, embed{
			URL:   post.Permalink(),
			Color: main.Color,
			Image: &embedImage{URL: a.URL},
		})
	}
	return embeds
}
