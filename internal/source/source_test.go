package source

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"fedirelay/internal/model"
)

func discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

const minimalStatus = `{
	"id": "1",
	"uri": "https://mastodon.example.org/users/kita/statuses/1",
	"created_at": "2022-11-12T10:00:00.000Z",
	"account": {"id": "9", "acct": "kita", "username": "kita", "display_name": "Kita", "url": "https://mastodon.example.org/@kita", "created_at": "2020-01-01T00:00:00.000Z"},
	"content": "<p>hello</p>",
	"visibility": "public",
	"sensitive": false,
	"spoiler_text": "",
	"media_attachments": [],
	"mentions": [],
	"tags": []
}`

// streamServer upgrades one websocket connection and writes the given
// frames, then keeps the connection open until the client goes away.
func streamServer(t *testing.T, frames []string) *httptest.Server {
	t.Helper()
	upgrader := websocket.Upgrader{}
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.URL.Query().Get("stream"); got != "list" {
			t.Errorf("stream query = %q, want %q", got, "list")
		}
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Errorf("upgrade: %v", err)
			return
		}
		defer conn.Close()
		for _, frame := range frames {
			if err := conn.WriteMessage(websocket.TextMessage, []byte(frame)); err != nil {
				return
			}
		}
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}))
}

// testSource points a Source at an httptest server (ws://, not wss://).
func testSource(t *testing.T, srv *httptest.Server, opts Options) *Source {
	t.Helper()
	s := New(opts, discard())
	u, err := url.Parse(srv.URL)
	if err != nil {
		t.Fatal(err)
	}
	q := url.Values{}
	q.Set("stream", "list")
	q.Set("list", opts.List)
	q.Set("access_token", opts.Token)
	s.url = "ws://" + u.Host + "/api/v1/streaming?" + q.Encode()
	return s
}

func envelopeFrame(t *testing.T, event, payload string) string {
	t.Helper()
	data, err := json.Marshal(map[string]string{"event": event, "payload": payload})
	if err != nil {
		t.Fatal(err)
	}
	return string(data)
}

func TestSourceRun(t *testing.T) {
	frames := []string{
		envelopeFrame(t, "update", minimalStatus),
		envelopeFrame(t, "delete", "1"),
		envelopeFrame(t, "update", `{"id": 42}`),
		envelopeFrame(t, "update", minimalStatus),
	}
	srv := streamServer(t, frames)
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	s := testSource(t, srv, Options{List: "7", Token: "secret"})
	out := make(chan *model.Post)
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx, out) }()

	var posts []*model.Post
	for post := range out {
		posts = append(posts, post)
		if len(posts) == 2 {
			cancel()
		}
	}

	if err := <-done; err != nil {
		t.Fatalf("Run() error: %v", err)
	}
	if len(posts) != 2 {
		t.Fatalf("got %d posts, want 2", len(posts))
	}
	if posts[0].ID != "1" || posts[0].Account.Acct != "kita" {
		t.Errorf("unexpected post: %+v", posts[0])
	}
}

func TestSourceStreamError(t *testing.T) {
	srv := streamServer(t, []string{`{"error": "access token is revoked"}`})
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	s := testSource(t, srv, Options{List: "7"})
	out := make(chan *model.Post)
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx, out) }()
	for range out {
	}

	err := <-done
	if err == nil || !strings.Contains(err.Error(), "access token is revoked") {
		t.Fatalf("Run() error = %v, want stream error", err)
	}
}

func TestSourceDialFailureWithoutReconnect(t *testing.T) {
	s := New(Options{Instance: "localhost:1", List: "7"}, discard())
	s.url = "ws://localhost:1/api/v1/streaming"

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	out := make(chan *model.Post)
	if err := s.Run(ctx, out); err == nil {
		t.Fatal("Run() = nil, want dial error")
	}
}

type mockTransport struct {
	status int
	body   string
	gotReq *http.Request
}

func (m *mockTransport) Do(req *http.Request) (*http.Response, error) {
	m.gotReq = req
	return &http.Response{
		StatusCode: m.status,
		Body:       io.NopCloser(strings.NewReader(m.body)),
		Header:     make(http.Header),
	}, nil
}

func TestVerifyCredentials(t *testing.T) {
	client := &mockTransport{
		status: http.StatusOK,
		body:   `{"id": "9", "acct": "kita", "username": "kita", "display_name": "Kita", "url": "https://mastodon.example.org/@kita", "created_at": "2020-01-01T00:00:00.000Z"}`,
	}

	account, err := VerifyCredentials(context.Background(), client, "mastodon.example.org", "secret")
	if err != nil {
		t.Fatalf("VerifyCredentials() error: %v", err)
	}
	if account.ID != "9" || account.Acct != "kita" {
		t.Errorf("unexpected account: %+v", account)
	}
	if got := client.gotReq.Header.Get("Authorization"); got != "Bearer secret" {
		t.Errorf("Authorization = %q", got)
	}
	if got := client.gotReq.URL.String(); got != "https://mastodon.example.org/api/v1/accounts/verify_credentials" {
		t.Errorf("URL = %q", got)
	}
}

func TestVerifyCredentialsBadStatus(t *testing.T) {
	client := &mockTransport{status: http.StatusUnauthorized, body: `{"error": "unauthorized"}`}
	_, err := VerifyCredentials(context.Background(), client, "mastodon.example.org", "bad")
	if err == nil || !strings.Contains(err.Error(), "status 401") {
		t.Fatalf("expected status error, got %v", err)
	}
}
