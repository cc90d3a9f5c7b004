package client_test

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/DragonOfMath/discord.io/internal/client"
	"github.com/DragonOfMath/discord.io/internal/codec"
	"github.com/DragonOfMath/discord.io/internal/rest"
	"github.com/stretchr/testify/require"
)

type obj = map[string]any

func rawJSON(t *testing.T, v any) json.RawMessage {
	t.Helper()
	b, err := json.Marshal(v)
	require.NoError(t, err)
	return b
}

func sid(n int) string {
	return fmt.Sprint(n)
}

type request struct {
	Method string
	Path   string
	Body   string
}

type reply struct {
	status int
	body   string
}

// fakeRequester answers from a table keyed by "METHOD path" and records
// every call. Unknown requests succeed with an empty body.
type fakeRequester struct {
	mu      sync.Mutex
	calls   []request
	replies map[string][]reply
}

var _ rest.Requester = (*fakeRequester)(nil)

func newFakeRequester() *fakeRequester {
	return &fakeRequester{replies: make(map[string][]reply)}
}

// reply queues a response. The last queued response repeats.
func (f *fakeRequester) reply(method, path string, status int, body string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	key := method + " " + path
	f.replies[key] = append(f.replies[key], reply{status: status, body: body})
}

func (f *fakeRequester) Do(_ context.Context, method, path string, body any) (*rest.Response, error) {
	raw := ""
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return nil, err
		}
		raw = string(b)
	}

	f.mu.Lock()
	f.calls = append(f.calls, request{Method: method, Path: path, Body: raw})
	r := reply{status: http.StatusOK}
	key := method + " " + path
	if queued := f.replies[key]; len(queued) > 0 {
		r = queued[0]
		if len(queued) > 1 {
			f.replies[key] = queued[1:]
		}
	}
	f.mu.Unlock()

	resp := &rest.Response{StatusCode: r.status, Status: http.StatusText(r.status), Body: []byte(r.body)}
	if r.status > 299 {
		return resp, &rest.ResponseError{Method: method, Path: path, StatusCode: r.status, Status: resp.Status, Body: resp.Body}
	}
	return resp, nil
}

func (f *fakeRequester) requests() []request {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]request(nil), f.calls...)
}

type sent struct {
	Op codec.Opcode
	D  string
}

type fakeSender struct {
	mu     sync.Mutex
	frames []sent
	err    error
	notify chan sent
}

func newFakeSender() *fakeSender {
	return &fakeSender{notify: make(chan sent, 16)}
}

func (f *fakeSender) Send(op codec.Opcode, d any) error {
	b, err := json.Marshal(d)
	if err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	s := sent{Op: op, D: string(b)}
	f.frames = append(f.frames, s)
	select {
	case f.notify <- s:
	default:
	}
	return nil
}

func (f *fakeSender) sent() []sent {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]sent(nil), f.frames...)
}

type harness struct {
	client *client.Client
	rest   *fakeRequester
	sender *fakeSender
	sleeps *[]time.Duration
}

func newHarness(t *testing.T, cfg client.Config, opts ...client.Option) harness {
	t.Helper()
	h := harness{
		rest:   newFakeRequester(),
		sender: newFakeSender(),
		sleeps: new([]time.Duration),
	}
	var mu sync.Mutex
	opts = append([]client.Option{
		client.WithRequester(h.rest),
		client.WithSender(h.sender),
		client.WithSleep(func(ctx context.Context, d time.Duration) error {
			mu.Lock()
			defer mu.Unlock()
			*h.sleeps = append(*h.sleeps, d)
			return ctx.Err()
		}),
	}, opts...)
	h.client = client.New(cfg, opts...)
	return h
}

func (h harness) dispatch(t *testing.T, name string, d any) {
	t.Helper()
	h.client.HandleDispatch(codec.Frame{Op: codec.OpDispatch, T: name, D: rawJSON(t, d)})
}

const (
	selfID   = 1
	aliceID  = 2
	guildID  = 10
	textID   = 100
	voiceID  = 200
	otherVC  = 201
	dmID     = 50
	dmUserID = 7
)

func memberObj(id int, name string, roles ...string) obj {
	if roles == nil {
		roles = []string{}
	}
	return obj{
		"user":      obj{"id": sid(id), "username": name, "discriminator": "0001"},
		"roles":     roles,
		"joined_at": "2017-01-01T00:00:00Z",
	}
}

// seed loads a READY snapshot with one guild and one DM, then the guild
// itself.
func (h harness) seed(t *testing.T) {
	t.Helper()
	h.dispatch(t, "READY", obj{
		"session_id": "abc",
		"user":       obj{"id": sid(selfID), "username": "self"},
		"guilds":     []obj{{"id": sid(guildID), "unavailable": true}},
		"private_channels": []obj{
			{"id": sid(dmID), "type": 1, "recipients": []obj{{"id": sid(dmUserID), "username": "friend"}}},
		},
	})
	h.dispatch(t, "GUILD_CREATE", obj{
		"id":           sid(guildID),
		"name":         "guild",
		"member_count": 3,
		"large":        true,
		"members":      []obj{memberObj(selfID, "self"), memberObj(aliceID, "alice")},
		"channels": []obj{
			{"id": sid(textID), "type": 0, "name": "general", "topic": "hi", "position": 1, "permission_overwrites": []obj{
				{"id": sid(aliceID), "type": "member", "allow": 1 << 11, "deny": 0},
			}},
			{"id": sid(voiceID), "type": 2, "name": "voice", "bitrate": 64000, "user_limit": 5, "position": 2, "permission_overwrites": []obj{}},
			{"id": sid(otherVC), "type": 2, "name": "voice2", "bitrate": 64000, "permission_overwrites": []obj{}},
		},
		"roles": []obj{
			{"id": sid(guildID), "name": "@everyone", "position": 0},
			{"id": sid(11), "name": "a", "position": 1},
			{"id": sid(12), "name": "b", "position": 2},
			{"id": sid(13), "name": "c", "position": 3},
		},
		"emojis":       []obj{},
		"presences":    []obj{},
		"voice_states": []obj{},
	})
}
