// Package sink implements the delivery backends posts are relayed to.
package sink

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"text/template"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"fedirelay/internal/config"
	"fedirelay/internal/model"
)

// telegramAPI is the subset of the bot API the sink uses.
type telegramAPI interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	SendMediaGroup(c tgbotapi.MediaGroupConfig) ([]tgbotapi.Message, error)
}

// Telegram posts statuses to a Telegram chat. Text is rendered through a
// template into Telegram's HTML parse mode; attachments go out as media
// messages or albums with the text as the first caption.
type Telegram struct {
	name   string
	api    telegramAPI
	chat   int64
	tmpl   *template.Template
	silent bool
	log    *slog.Logger
}

// defaultTemplate mirrors the stock message layout: optional boost
// header, the post body, and a permalink.
const defaultTemplate = `{{if .Boosted}}<i>Boost from <a href="{{.Boosted.URL}}">{{.Boosted.Name}}</a></i>
{{end}}{{.Content}}

<a href="{{.Link}}">Open in Fediverse</a>`

// templateData is the view the message template renders.
type templateData struct {
	Post    *model.Post
	Boosted *model.Account
	Content string
	Link    string
}

// NewTelegram builds a Telegram sink from its config section.
func NewTelegram(cfg config.Sink, log *slog.Logger) (*Telegram, error) {
	api, err := tgbotapi.NewBotAPI(cfg.Token)
	if err != nil {
		return nil, fmt.Errorf("telegram api: %w", err)
	}
	return newTelegram(cfg, api, log)
}

func newTelegram(cfg config.Sink, api telegramAPI, log *slog.Logger) (*Telegram, error) {
	text := cfg.Template
	if text == "" {
		text = defaultTemplate
	}
	tmpl, err := template.New("message").Parse(text)
	if err != nil {
		return nil, fmt.Errorf("parse template: %w", err)
	}

	silent := cfg.Silent != nil && *cfg.Silent

	return &Telegram{
		name:   cfg.Name,
		api:    api,
		chat:   cfg.Chat,
		tmpl:   tmpl,
		silent: silent,
		log:    log,
	}, nil
}

func (t *Telegram) Name() string { return t.name }

// Send delivers the post and returns the comma-joined ids of the
// Telegram messages it produced.
func (t *Telegram) Send(ctx context.Context, post *model.Post) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	text, err := t.renderText(post)
	if err != nil {
		return "", err
	}

	source := post.EffectiveSource()
	var ids []string

	switch len(source.Attachments) {
	case 0:
		msg := tgbotapi.NewMessage(t.chat, text)
		msg.ParseMode = tgbotapi.ModeHTML
		msg.DisableWebPagePreview = true
		msg.DisableNotification = t.silent
		sent, err := t.api.Send(msg)
		if err != nil {
			return "", fmt.Errorf("send message: %w", err)
		}
		ids = append(ids, strconv.Itoa(sent.MessageID))
	case 1:
		sent, err := t.api.Send(t.singleMedia(source.Attachments[0], text))
		if err != nil {
			return "", fmt.Errorf("send media: %w", err)
		}
		ids = append(ids, strconv.Itoa(sent.MessageID))
	default:
		groupIDs, err := t.sendAlbums(source.Attachments, text)
		if err != nil {
			return "", err
		}
		ids = append(ids, groupIDs...)
	}

	if source.Poll != nil {
		pollID, err := t.sendPoll(source.Poll, ids[0])
		if err != nil {
			return "", err
		}
		ids = append(ids, pollID)
	}

	return strings.Join(ids, ","), nil
}

func (t *Telegram) renderText(post *model.Post) (string, error) {
	source := post.EffectiveSource()
	content := source.ContentHTML()
	if source.SpoilerText != "" {
		content = source.SpoilerText + "\n<tg-spoiler>" + content + "</tg-spoiler>"
	}

	data := templateData{
		Post:    post,
		Content: content,
		Link:    post.Permalink(),
	}
	if post.IsBoost() {
		data.Boosted = &post.Reblog.Account
	}

	var buf strings.Builder
	if err := t.tmpl.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("render template: %w", err)
	}
	return buf.String(), nil
}

// singleMedia wraps one attachment in the message config matching its
// kind. Kinds the chat cannot preview degrade to documents.
func (t *Telegram) singleMedia(a model.Attachment, caption string) tgbotapi.Chattable {
	file := tgbotapi.FileURL(a.URL)
	switch a.Kind {
	case model.MediaImage:
		msg := tgbotapi.NewPhoto(t.chat, file)
		msg.Caption = caption
		msg.ParseMode = tgbotapi.ModeHTML
		msg.DisableNotification = t.silent
		return msg
	case model.MediaVideo:
		msg := tgbotapi.NewVideo(t.chat, file)
		msg.Caption = caption
		msg.ParseMode = tgbotapi.ModeHTML
		msg.DisableNotification = t.silent
		return msg
	case model.MediaGifv:
		msg := tgbotapi.NewAnimation(t.chat, file)
		msg.Caption = caption
		msg.ParseMode = tgbotapi.ModeHTML
		msg.DisableNotification = t.silent
		return msg
	case model.MediaAudio:
		msg := tgbotapi.NewAudio(t.chat, file)
		msg.Caption = caption
		msg.ParseMode = tgbotapi.ModeHTML
		msg.DisableNotification = t.silent
		return msg
	default:
		msg := tgbotapi.NewDocument(t.chat, file)
		msg.Caption = caption
		msg.ParseMode = tgbotapi.ModeHTML
		msg.DisableNotification = t.silent
		return msg
	}
}

// albumKey buckets attachment kinds that Telegram allows in the same
// album. Images and videos mix; everything else stays with its own kind.
func albumKey(k model.MediaKind) string {
	switch k {
	case model.MediaImage, model.MediaVideo:
		return "visual"
	default:
		return string(k)
	}
}

const (
	albumLimit  = 10
	albumRounds = 5
)

// sendAlbums groups the attachments into compatible albums of at most
// ten items and sends them in rounds, captioning only the first item of
// the first album.
func (t *Telegram) sendAlbums(attachments []model.Attachment, caption string) ([]string, error) {
	groups := make(map[string][]model.Attachment)
	var order []string
	for _, a := range attachments {
		key := albumKey(a.Kind)
		if _, seen := groups[key]; !seen {
			order = append(order, key)
		}
		groups[key] = append(groups[key], a)
	}

	var ids []string
	first := true
	for round := 0; round < albumRounds; round++ {
		sentAny := false
		for _, key := range order {
			batch := groups[key]
			if len(batch) == 0 {
				continue
			}
			if len(batch) > albumLimit {
				t.log.Debug("splitting oversized album", "kind", key, "count", len(batch))
				groups[key] = batch[albumLimit:]
				batch = batch[:albumLimit]
			} else {
				groups[key] = nil
			}
			sentAny = true

			var text string
			if first {
				text = caption
				first = false
			}
			batchIDs, err := t.sendAlbum(batch, text)
			if err != nil {
				return nil, err
			}
			ids = append(ids, batchIDs...)
		}
		if !sentAny {
			break
		}
	}
	return ids, nil
}

func (t *Telegram) sendAlbum(batch []model.Attachment, caption string) ([]string, error) {
	if len(batch) == 1 {
		sent, err := t.api.Send(t.singleMedia(batch[0], caption))
		if err != nil {
			return nil, fmt.Errorf("send media: %w", err)
		}
		return []string{strconv.Itoa(sent.MessageID)}, nil
	}

	media := make([]interface{}, 0, len(batch))
	for i, a := range batch {
		item := inputMedia(a)
		if i == 0 && caption != "" {
			item = withCaption(item, caption)
		}
		media = append(media, item)
	}

	group := tgbotapi.NewMediaGroup(t.chat, media)
	group.DisableNotification = t.silent
	sent, err := t.api.SendMediaGroup(group)
	if err != nil {
		return nil, fmt.Errorf("send media group: %w", err)
	}

	ids := make([]string, 0, len(sent))
	for _, msg := range sent {
		ids = append(ids, strconv.Itoa(msg.MessageID))
	}
	return ids, nil
}

func inputMedia(a model.Attachment) interface{} {
	file := tgbotapi.FileURL(a.URL)
	switch a.Kind {
	case model.MediaImage:
		return tgbotapi.NewInputMediaPhoto(file)
	case model.MediaVideo:
		return tgbotapi.NewInputMediaVideo(file)
	case model.MediaGifv:
		return tgbotapi.NewInputMediaAnimation(file)
	case model.MediaAudio:
		return tgbotapi.NewInputMediaAudio(file)
	default:
		return tgbotapi.NewInputMediaDocument(file)
	}
}

func withCaption(item interface{}, caption string) interface{} {
	switch m := item.(type) {
	case tgbotapi.InputMediaPhoto:
		m.Caption = caption
		m.ParseMode = tgbotapi.ModeHTML
		return m
	case tgbotapi.InputMediaVideo:
		m.Caption = caption
		m.ParseMode = tgbotapi.ModeHTML
		return m
	case tgbotapi.InputMediaAnimation:
		m.Caption = caption
		m.ParseMode = tgbotapi.ModeHTML
		return m
	case tgbotapi.InputMediaAudio:
		m.Caption = caption
		m.ParseMode = tgbotapi.ModeHTML
		return m
	case tgbotapi.InputMediaDocument:
		m.Caption = caption
		m.ParseMode = tgbotapi.ModeHTML
		return m
	}
	return item
}

// sendPoll follows the post up with a native Telegram poll replying to
// the first delivered message.
func (t *Telegram) sendPoll(poll *model.Poll, replyTo string) (string, error) {
	options := make([]string, 0, len(poll.Options))
	for _, opt := range poll.Options {
		options = append(options, opt.Title)
	}

	msg := tgbotapi.NewPoll(t.chat, "Poll", options...)
	msg.AllowsMultipleAnswers = poll.Multiple
	msg.DisableNotification = t.silent
	if id, err := strconv.Atoi(replyTo); err == nil {
		msg.ReplyToMessageID = id
	}

	sent, err := t.api.Send(msg)
	if err != nil {
		return "", fmt.Errorf("send poll: %w", err)
	}
	return strconv.Itoa(sent.MessageID), nil
}
