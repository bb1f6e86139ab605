// Package model defines the domain types used across the application.
package model

import (
	"strings"
	"time"

	"fedirelay/internal/render"
)

// Visibility is the audience scope of a post.
type Visibility string

// Supported visibility values.
const (
	VisibilityPublic   Visibility = "public"
	VisibilityUnlisted Visibility = "unlisted"
	VisibilityPrivate  Visibility = "private"
	VisibilityDirect   Visibility = "direct"
)

// ParseVisibility validates a raw visibility string.
func ParseVisibility(s string) (Visibility, bool) {
	switch v := Visibility(s); v {
	case VisibilityPublic, VisibilityUnlisted, VisibilityPrivate, VisibilityDirect:
		return v, true
	}
	return "", false
}

// MediaKind is the media type of an attachment.
type MediaKind string

// Supported media kinds.
const (
	MediaUnknown MediaKind = "unknown"
	MediaImage   MediaKind = "image"
	MediaGifv    MediaKind = "gifv"
	MediaVideo   MediaKind = "video"
	MediaAudio   MediaKind = "audio"
)

// Account represents the author of a post.
type Account struct {
	ID             string
	Username       string
	Acct           string
	URL            string
	DisplayName    string
	Avatar         string
	AvatarStatic   string
	CreatedAt      time.Time
	StatusesCount  int64
	FollowersCount int64
	FollowingCount int64
}

// Name returns the display name, falling back to the username when empty.
func (a *Account) Name() string {
	if a.DisplayName != "" {
		return a.DisplayName
	}
	return a.Username
}

// Attachment is a single media object attached to a post.
type Attachment struct {
	ID          string
	Kind        MediaKind
	URL         string
	PreviewURL  string
	Description string
	Blurhash    string
}

// Mention is a reference to another account inside a post.
type Mention struct {
	ID       string
	Username string
	Acct     string
	URL      string
}

// Tag is a hashtag attached to a post.
type Tag struct {
	Name string
	URL  string
}

// PollOption is a single answer in a poll.
type PollOption struct {
	Title      string
	VotesCount int64
}

// Poll is a native poll attached to a post.
type Poll struct {
	ID         string
	ExpiresAt  *time.Time
	Expired    bool
	Multiple   bool
	VotesCount int64
	Options    []PollOption
}

// Post is a single status from the tracked account's stream.
// A post with a non-nil Reblog is a boost; its own content fields are
// typically empty, so consumers should go through EffectiveSource.
type Post struct {
	ID                 string
	URI                string
	CreatedAt          time.Time
	Account            Account
	Content            string
	Visibility         Visibility
	Sensitive          bool
	SpoilerText        string
	Attachments        []Attachment
	Mentions           []Mention
	Tags               []Tag
	Poll               *Poll
	Reblog             *Post
	InReplyToAccountID string
}

// IsBoost reports whether the post is a boost of another post.
func (p *Post) IsBoost() bool {
	return p.Reblog != nil
}

// EffectiveSource returns the boosted post if present, else the post itself.
func (p *Post) EffectiveSource() *Post {
	if p.Reblog != nil {
		return p.Reblog
	}
	return p
}

// Permalink returns the canonical web link to the post.
func (p *Post) Permalink() string {
	return p.Account.URL + "/" + p.ID
}

// ContentPlain renders the post content as plain text.
func (p *Post) ContentPlain() string {
	return p.renderContent(render.DialectPlain)
}

// ContentMarkdown renders the post content as lightweight markup.
func (p *Post) ContentMarkdown() string {
	return p.renderContent(render.DialectMarkdown)
}

// ContentHTML renders the post content as the constrained HTML subset.
func (p *Post) ContentHTML() string {
	return p.renderContent(render.DialectHTML)
}

func (p *Post) renderContent(d render.Dialect) string {
	out, err := render.RenderFragment(p.Content, d)
	if err != nil {
		// The fragment parser recovers from malformed markup, so this
		// path only triggers on reader failure; fall back to raw.
		out = p.Content
	}
	return strings.TrimRight(out, " \t\n")
}
