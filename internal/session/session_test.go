package session

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/linguaroom/linguaroom/internal/domain"
	"github.com/linguaroom/linguaroom/internal/events"
)

type serverConn struct {
	ws *websocket.Conn
	in chan []byte
}

// push writes one envelope to the client. Only the test goroutine
// writes, so no write lock is needed.
func (c *serverConn) push(t *testing.T, name events.Name, payload any) {
	t.Helper()
	data, err := json.Marshal(payload)
	require.NoError(t, err)
	frame, err := json.Marshal(events.Envelope{Event: name, Data: data})
	require.NoError(t, err)
	require.NoError(t, c.ws.WriteMessage(websocket.TextMessage, frame))
}

func (c *serverConn) pushRaw(t *testing.T, frame string) {
	t.Helper()
	require.NoError(t, c.ws.WriteMessage(websocket.TextMessage, []byte(frame)))
}

func (c *serverConn) expect(t *testing.T, name events.Name) events.Envelope {
	t.Helper()
	select {
	case frame := <-c.in:
		var env events.Envelope
		require.NoError(t, json.Unmarshal(frame, &env))
		require.Equal(t, name, env.Event)
		return env
	case <-time.After(2 * time.Second):
		t.Fatalf("no %s frame from client", name)
		return events.Envelope{}
	}
}

type wsServer struct {
	srv    *httptest.Server
	connCh chan *serverConn
}

func newWSServer(t *testing.T) *wsServer {
	t.Helper()
	s := &wsServer{connCh: make(chan *serverConn, 4)}
	upgrader := websocket.Upgrader{}
	s.srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ws, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		conn := &serverConn{ws: ws, in: make(chan []byte, 16)}
		go func() {
			defer close(conn.in)
			for {
				_, frame, err := ws.ReadMessage()
				if err != nil {
					return
				}
				conn.in <- frame
			}
		}()
		s.connCh <- conn
	}))
	t.Cleanup(s.srv.Close)
	return s
}

func (s *wsServer) url() string {
	return "ws" + strings.TrimPrefix(s.srv.URL, "http")
}

func (s *wsServer) accept(t *testing.T) *serverConn {
	t.Helper()
	select {
	case conn := <-s.connCh:
		return conn
	case <-time.After(2 * time.Second):
		t.Fatal("client did not connect")
		return nil
	}
}

type stubResync struct {
	mu           sync.Mutex
	calls        int
	participants []domain.Participant
	messages     []domain.ChatMessage
}

func (s *stubResync) Snapshot(context.Context, domain.RoomID) ([]domain.Participant, []domain.ChatMessage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	return s.participants, s.messages, nil
}

func (s *stubResync) set(participants []domain.Participant, messages []domain.ChatMessage) {
	s.mu.Lock()
	s.participants = participants
	s.messages = messages
	s.mu.Unlock()
}

func (s *stubResync) callCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

func participant(id, name string, role domain.Role) domain.Participant {
	return domain.NewParticipant(domain.User{ID: domain.UserID(id), DisplayName: name}, role)
}

func startSession(t *testing.T, srv *wsServer, resync Resyncer, hooks Hooks) (*Session, *serverConn) {
	t.Helper()
	sess := New(Config{
		URL:         srv.url(),
		RoomID:      "room-1",
		SelfID:      "self",
		BaseBackoff: 10 * time.Millisecond,
	}, resync, hooks)
	require.NoError(t, sess.Start(context.Background()))
	t.Cleanup(sess.Stop)
	conn := srv.accept(t)
	return sess, conn
}

func TestStartSnapshotsAndJoins(t *testing.T) {
	srv := newWSServer(t)
	resync := &stubResync{
		participants: []domain.Participant{participant("self", "Me", domain.RoleHost)},
		messages:     []domain.ChatMessage{{ID: "m1", SenderID: "self", Type: domain.MessageText, Content: "hi"}},
	}
	sess, conn := startSession(t, srv, resync, Hooks{})

	env := conn.expect(t, events.JoinRoom)
	var join events.JoinRoomIntent
	require.NoError(t, json.Unmarshal(env.Data, &join))
	assert.Equal(t, domain.RoomID("room-1"), join.RoomID)

	assert.Equal(t, 1, resync.callCount())
	assert.Equal(t, 1, sess.Roster().Len())
	assert.Equal(t, 1, sess.Messages().Len())
}

func TestStartFailsWhenServerUnreachable(t *testing.T) {
	sess := New(Config{URL: "ws://127.0.0.1:1", RoomID: "room-1"}, &stubResync{}, Hooks{})
	assert.Error(t, sess.Start(context.Background()))
}

func TestDispatchMergesDeltas(t *testing.T) {
	srv := newWSServer(t)
	resync := &stubResync{participants: []domain.Participant{participant("self", "Me", domain.RoleHost)}}

	var mu sync.Mutex
	var messages []domain.ChatMessage
	sess, conn := startSession(t, srv, resync, Hooks{
		OnMessage: func(m domain.ChatMessage) {
			mu.Lock()
			messages = append(messages, m)
			mu.Unlock()
		},
	})
	conn.expect(t, events.JoinRoom)

	conn.push(t, events.UserJoined, events.UserJoinedEvent{Participant: participant("u2", "Maya", domain.RoleListener)})
	assert.Eventually(t, func() bool { return sess.Roster().Len() == 2 }, time.Second, 5*time.Millisecond)

	conn.push(t, events.RoleUpdated, events.RoleUpdatedEvent{UserID: "u2", Role: domain.RoleSpeaker})
	assert.Eventually(t, func() bool {
		p, ok := sess.Roster().Get("u2")
		return ok && p.Role == domain.RoleSpeaker
	}, time.Second, 5*time.Millisecond)

	conn.push(t, events.ToggleMute, events.MuteChangedEvent{UserID: "u2", Muted: true})
	assert.Eventually(t, func() bool {
		p, _ := sess.Roster().Get("u2")
		return p.Muted
	}, time.Second, 5*time.Millisecond)

	conn.push(t, events.Speaking, events.SpeakingEvent{UserID: "u2", IsSpeaking: true})
	assert.Eventually(t, func() bool { return sess.Speaking().IsSpeaking("u2") }, time.Second, 5*time.Millisecond)

	conn.push(t, events.NewMessage, events.NewMessageEvent{Message: domain.ChatMessage{
		ID: "m1", SenderID: "u2", Type: domain.MessageText, Content: "hola",
	}})
	assert.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(messages) == 1 && messages[0].Content == "hola"
	}, time.Second, 5*time.Millisecond)

	conn.push(t, events.UserLeft, events.UserLeftEvent{UserID: "u2"})
	assert.Eventually(t, func() bool { return sess.Roster().Len() == 1 }, time.Second, 5*time.Millisecond)
	assert.False(t, sess.Speaking().IsSpeaking("u2"), "leaving clears the speaking flag")
}

func TestMalformedFramesAreDropped(t *testing.T) {
	srv := newWSServer(t)
	resync := &stubResync{participants: []domain.Participant{participant("self", "Me", domain.RoleHost)}}
	sess, conn := startSession(t, srv, resync, Hooks{})
	conn.expect(t, events.JoinRoom)

	conn.pushRaw(t, `not json`)
	conn.pushRaw(t, `{"event":"user-joined","data":{"participant":{"user":{"id":""},"role":"listener"}}}`)
	conn.pushRaw(t, `{"event":"participant-role-updated","data":{"userId":"self","role":"emperor"}}`)

	// A well-formed frame after the garbage still lands.
	conn.push(t, events.UserJoined, events.UserJoinedEvent{Participant: participant("u2", "Maya", domain.RoleListener)})
	assert.Eventually(t, func() bool { return sess.Roster().Len() == 2 }, time.Second, 5*time.Millisecond)

	p, _ := sess.Roster().Get("self")
	assert.Equal(t, domain.RoleHost, p.Role, "invalid role frame must not merge")
}

func TestSelfKickFiresHook(t *testing.T) {
	srv := newWSServer(t)
	resync := &stubResync{participants: []domain.Participant{
		participant("self", "Me", domain.RoleListener),
		participant("mod", "Mod", domain.RoleModerator),
	}}

	var mu sync.Mutex
	var kickedBy domain.UserID
	sess, conn := startSession(t, srv, resync, Hooks{
		OnKicked: func(by domain.UserID) {
			mu.Lock()
			kickedBy = by
			mu.Unlock()
		},
	})
	conn.expect(t, events.JoinRoom)

	// Another user being kicked is a plain roster removal.
	conn.push(t, events.UserKicked, events.UserKickedEvent{UserID: "mod", ByID: "self"})
	assert.Eventually(t, func() bool { return sess.Roster().Len() == 1 }, time.Second, 5*time.Millisecond)
	mu.Lock()
	assert.Empty(t, kickedBy)
	mu.Unlock()

	conn.push(t, events.UserKicked, events.UserKickedEvent{UserID: "self", ByID: "mod"})
	assert.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return kickedBy == "mod"
	}, time.Second, 5*time.Millisecond)
}

func TestReconnectResyncsState(t *testing.T) {
	srv := newWSServer(t)
	resync := &stubResync{participants: []domain.Participant{participant("self", "Me", domain.RoleHost)}}

	var mu sync.Mutex
	var disconnects int
	sess, conn := startSession(t, srv, resync, Hooks{
		OnDisconnect: func(err error, final bool) {
			mu.Lock()
			disconnects++
			mu.Unlock()
			assert.False(t, final)
		},
	})
	conn.expect(t, events.JoinRoom)

	// The roster changed server-side while we were away.
	resync.set([]domain.Participant{
		participant("self", "Me", domain.RoleHost),
		participant("u2", "Maya", domain.RoleListener),
	}, []domain.ChatMessage{{ID: "m1", SenderID: "u2", Type: domain.MessageText, Content: "welcome back"}})

	require.NoError(t, conn.ws.Close())

	next := srv.accept(t)
	next.expect(t, events.JoinRoom)

	assert.Eventually(t, func() bool { return sess.Roster().Len() == 2 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, 1, sess.Messages().Len())
	assert.Equal(t, 2, resync.callCount())
	mu.Lock()
	assert.Equal(t, 1, disconnects)
	mu.Unlock()
}

func TestReconnectGivesUp(t *testing.T) {
	srv := newWSServer(t)
	resync := &stubResync{}
	sess := New(Config{
		URL:           srv.url(),
		RoomID:        "room-1",
		SelfID:        "self",
		BaseBackoff:   5 * time.Millisecond,
		MaxReconnects: 2,
	}, resync, Hooks{})

	final := make(chan bool, 8)
	sess.hooks.OnDisconnect = func(err error, f bool) { final <- f }

	require.NoError(t, sess.Start(context.Background()))
	t.Cleanup(sess.Stop)
	conn := srv.accept(t)
	conn.expect(t, events.JoinRoom)

	srv.srv.Close()
	require.NoError(t, conn.ws.Close())

	deadline := time.After(3 * time.Second)
	for {
		select {
		case f := <-final:
			if f {
				return
			}
		case <-deadline:
			t.Fatal("no final disconnect")
		}
	}
}

func TestIntentsReachTheWire(t *testing.T) {
	srv := newWSServer(t)
	resync := &stubResync{participants: []domain.Participant{participant("self", "Me", domain.RoleHost)}}
	sess, conn := startSession(t, srv, resync, Hooks{})
	conn.expect(t, events.JoinRoom)

	require.NoError(t, sess.SendMessage("hello", ""))
	env := conn.expect(t, events.SendMessage)
	var msg events.SendMessageIntent
	require.NoError(t, json.Unmarshal(env.Data, &msg))
	assert.Equal(t, "hello", msg.Content)
	assert.Len(t, string(msg.LocalID), 26, "client message ids are ULIDs")

	require.NoError(t, sess.SetTyping(true))
	conn.expect(t, events.Typing)

	require.NoError(t, sess.SetMuted(true))
	conn.expect(t, events.ToggleMute)
	p, _ := sess.Roster().Get("self")
	assert.True(t, p.Muted, "local mute applies without waiting for the echo")

	require.NoError(t, sess.KickUser("u2"))
	conn.expect(t, events.KickUser)

	require.NoError(t, sess.ChangeRole("u2", domain.RoleSpeaker))
	env = conn.expect(t, events.ChangeRole)
	var role events.ChangeRoleIntent
	require.NoError(t, json.Unmarshal(env.Data, &role))
	assert.Equal(t, domain.RoleSpeaker, role.Role)
}

func TestOwnTypingEchoIgnored(t *testing.T) {
	srv := newWSServer(t)
	resync := &stubResync{participants: []domain.Participant{participant("self", "Me", domain.RoleHost)}}
	sess, conn := startSession(t, srv, resync, Hooks{})
	conn.expect(t, events.JoinRoom)

	conn.push(t, events.Typing, events.TypingEvent{UserID: "self", IsTyping: true})
	conn.push(t, events.Typing, events.TypingEvent{UserID: "u2", IsTyping: true})
	assert.Eventually(t, func() bool {
		ids := sess.Typing().Snapshot()
		return len(ids) == 1 && ids[0] == domain.UserID("u2")
	}, time.Second, 5*time.Millisecond)
}
