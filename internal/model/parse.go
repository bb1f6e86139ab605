package model

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// SchemaError reports a raw record that is missing a required field or
// carries a value of the wrong type. It is a per-record condition: the
// caller logs it and skips the record instead of stopping the stream.
type SchemaError struct {
	Field string
	Err   error
}

func (e *SchemaError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("schema: field %q: %v", e.Field, e.Err)
	}
	return fmt.Sprintf("schema: missing required field %q", e.Field)
}

func (e *SchemaError) Unwrap() error { return e.Err }

func schemaErr(err error) error {
	var typeErr *json.UnmarshalTypeError
	if errors.As(err, &typeErr) {
		return &SchemaError{Field: typeErr.Field, Err: err}
	}
	var syntaxErr *json.SyntaxError
	if errors.As(err, &syntaxErr) {
		return &SchemaError{Err: err}
	}
	return err
}

type rawAccount struct {
	ID             *string    `json:"id"`
	Username       *string    `json:"username"`
	Acct           *string    `json:"acct"`
	URL            *string    `json:"url"`
	DisplayName    string     `json:"display_name"`
	Avatar         string     `json:"avatar"`
	AvatarStatic   string     `json:"avatar_static"`
	CreatedAt      *time.Time `json:"created_at"`
	StatusesCount  int64      `json:"statuses_count"`
	FollowersCount int64      `json:"followers_count"`
	FollowingCount int64      `json:"following_count"`
}

func (r *rawAccount) toAccount(field string) (Account, error) {
	switch {
	case r.ID == nil:
		return Account{}, &SchemaError{Field: field + "id"}
	case r.Username == nil:
		return Account{}, &SchemaError{Field: field + "username"}
	case r.Acct == nil:
		return Account{}, &SchemaError{Field: field + "acct"}
	case r.URL == nil:
		return Account{}, &SchemaError{Field: field + "url"}
	case r.CreatedAt == nil:
		return Account{}, &SchemaError{Field: field + "created_at"}
	}
	return Account{
		ID:             *r.ID,
		Username:       *r.Username,
		Acct:           *r.Acct,
		URL:            *r.URL,
		DisplayName:    r.DisplayName,
		Avatar:         r.Avatar,
		AvatarStatic:   r.AvatarStatic,
		CreatedAt:      *r.CreatedAt,
		StatusesCount:  r.StatusesCount,
		FollowersCount: r.FollowersCount,
		FollowingCount: r.FollowingCount,
	}, nil
}

type rawAttachment struct {
	ID          *string `json:"id"`
	Type        *string `json:"type"`
	URL         string  `json:"url"`
	PreviewURL  string  `json:"preview_url"`
	Description string  `json:"description"`
	Blurhash    string  `json:"blurhash"`
}

type rawPoll struct {
	ID         *string    `json:"id"`
	ExpiresAt  *time.Time `json:"expires_at"`
	Expired    bool       `json:"expired"`
	Multiple   bool       `json:"multiple"`
	VotesCount int64      `json:"votes_count"`
	Options    []struct {
		Title      string `json:"title"`
		VotesCount int64  `json:"votes_count"`
	} `json:"options"`
}

type rawPost struct {
	ID                 *string          `json:"id"`
	URI                *string          `json:"uri"`
	CreatedAt          *time.Time       `json:"created_at"`
	Account            *json.RawMessage `json:"account"`
	Content            *string          `json:"content"`
	Visibility         *string          `json:"visibility"`
	Sensitive          *bool            `json:"sensitive"`
	SpoilerText        *string          `json:"spoiler_text"`
	MediaAttachments   []rawAttachment  `json:"media_attachments"`
	Mentions           []Mention        `json:"mentions"`
	Tags               []Tag            `json:"tags"`
	Poll               *rawPoll         `json:"poll"`
	Reblog             *json.RawMessage `json:"reblog"`
	InReplyToAccountID string           `json:"in_reply_to_account_id"`
}

// ParseAccount parses a raw account record.
func ParseAccount(data []byte) (*Account, error) {
	var raw rawAccount
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, schemaErr(err)
	}
	acct, err := raw.toAccount("")
	if err != nil {
		return nil, err
	}
	return &acct, nil
}

// ParsePost parses a raw status record into the Post graph. A nested
// boosted post under "reblog" is parsed recursively with the same rules.
func ParsePost(data []byte) (*Post, error) {
	var raw rawPost
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, schemaErr(err)
	}
	return raw.toPost()
}

func (r *rawPost) toPost() (*Post, error) {
	switch {
	case r.ID == nil:
		return nil, &SchemaError{Field: "id"}
	case r.URI == nil:
		return nil, &SchemaError{Field: "uri"}
	case r.CreatedAt == nil:
		return nil, &SchemaError{Field: "created_at"}
	case r.Account == nil:
		return nil, &SchemaError{Field: "account"}
	case r.Content == nil:
		return nil, &SchemaError{Field: "content"}
	case r.Visibility == nil:
		return nil, &SchemaError{Field: "visibility"}
	case r.Sensitive == nil:
		return nil, &SchemaError{Field: "sensitive"}
	case r.SpoilerText == nil:
		return nil, &SchemaError{Field: "spoiler_text"}
	}

	visibility, ok := ParseVisibility(*r.Visibility)
	if !ok {
		return nil, &SchemaError{
			Field: "visibility",
			Err:   fmt.Errorf("unknown value %q", *r.Visibility),
		}
	}

	var rawAcct rawAccount
	if err := json.Unmarshal(*r.Account, &rawAcct); err != nil {
		return nil, schemaErr(err)
	}
	account, err := rawAcct.toAccount("account.")
	if err != nil {
		return nil, err
	}

	post := &Post{
		ID:                 *r.ID,
		URI:                *r.URI,
		CreatedAt:          *r.CreatedAt,
		Account:            account,
		Content:            *r.Content,
		Visibility:         visibility,
		Sensitive:          *r.Sensitive,
		SpoilerText:        *r.SpoilerText,
		Mentions:           r.Mentions,
		Tags:               r.Tags,
		InReplyToAccountID: r.InReplyToAccountID,
	}

	for i, a := range r.MediaAttachments {
		if a.ID == nil || a.Type == nil {
			return nil, &SchemaError{
				Field: fmt.Sprintf("media_attachments[%d]", i),
			}
		}
		post.Attachments = append(post.Attachments, Attachment{
			ID:          *a.ID,
			Kind:        parseMediaKind(*a.Type),
			URL:         a.URL,
			PreviewURL:  a.PreviewURL,
			Description: a.Description,
			Blurhash:    a.Blurhash,
		})
	}

	if r.Poll != nil {
		if r.Poll.ID == nil {
			return nil, &SchemaError{Field: "poll.id"}
		}
		poll := &Poll{
			ID:         *r.Poll.ID,
			ExpiresAt:  r.Poll.ExpiresAt,
			Expired:    r.Poll.Expired,
			Multiple:   r.Poll.Multiple,
			VotesCount: r.Poll.VotesCount,
		}
		for _, opt := range r.Poll.Options {
			poll.Options = append(poll.Options, PollOption(opt))
		}
		post.Poll = poll
	}

	if r.Reblog != nil {
		reblog, err := ParsePost(*r.Reblog)
		if err != nil {
			return nil, fmt.Errorf("reblog: %w", err)
		}
		post.Reblog = reblog
	}

	return post, nil
}

// parseMediaKind maps a raw attachment type onto a MediaKind. Values added
// by newer server versions degrade to MediaUnknown rather than failing the
// whole record.
func parseMediaKind(s string) MediaKind {
	switch k := MediaKind(s); k {
	case MediaImage, MediaGifv, MediaVideo, MediaAudio:
		return k
	}
	return MediaUnknown
}
