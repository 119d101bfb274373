// Package session runs the live event channel of one room: it dials
// the websocket, decodes server deltas into typed events, merges them
// into local state and emits the user's intents. On reconnect it
// re-pulls the roster and recent messages over REST before resuming,
// so events missed while offline never leave the UI stale.
package session

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/oklog/ulid/v2"
	"github.com/rs/zerolog/log"

	"github.com/linguaroom/linguaroom/internal/domain"
	"github.com/linguaroom/linguaroom/internal/events"
	"github.com/linguaroom/linguaroom/internal/state"
)

const (
	defaultBaseBackoff   = 500 * time.Millisecond
	defaultMaxBackoff    = 30 * time.Second
	defaultMaxReconnects = 8
	defaultHistoryLimit  = 50
)

// Resyncer supplies the REST snapshot applied on connect and after
// every reconnect.
type Resyncer interface {
	Snapshot(ctx context.Context, roomID domain.RoomID) ([]domain.Participant, []domain.ChatMessage, error)
}

// Config carries the per-room wiring. Zero durations and counts fall
// back to the package defaults.
type Config struct {
	URL    string
	RoomID domain.RoomID
	SelfID domain.UserID
	Jar    http.CookieJar

	TypingTimeout time.Duration
	BaseBackoff   time.Duration
	MaxBackoff    time.Duration
	MaxReconnects int
}

// Hooks notify the UI layer. All hooks are optional and are invoked
// from the session's read goroutine; implementations queue their own
// redraws.
type Hooks struct {
	OnRosterChange func()
	OnMessage      func(domain.ChatMessage)
	OnTyping       func([]domain.UserID)
	OnSpeaking     func(domain.UserID, bool)
	OnKicked       func(by domain.UserID)
	OnServerError  func(string)
	OnResync       func()
	// OnDisconnect fires on every connection loss; final reports that
	// reconnecting has been given up and the session is dead.
	OnDisconnect func(err error, final bool)
}

type Session struct {
	cfg    Config
	resync Resyncer
	hooks  Hooks
	dialer *websocket.Dialer

	roster   *state.Roster
	messages *state.MessageLog
	typing   *state.TypingSet
	speaking *state.SpeakingSet

	mu     sync.Mutex
	conn   *wsConn
	died   chan error
	cancel context.CancelFunc
}

func New(cfg Config, resync Resyncer, hooks Hooks) *Session {
	if cfg.BaseBackoff <= 0 {
		cfg.BaseBackoff = defaultBaseBackoff
	}
	if cfg.MaxBackoff <= 0 {
		cfg.MaxBackoff = defaultMaxBackoff
	}
	if cfg.MaxReconnects <= 0 {
		cfg.MaxReconnects = defaultMaxReconnects
	}
	s := &Session{
		cfg:      cfg,
		resync:   resync,
		hooks:    hooks,
		dialer:   &websocket.Dialer{Jar: cfg.Jar, HandshakeTimeout: 10 * time.Second},
		roster:   state.NewRoster(),
		messages: state.NewMessageLog(),
		typing:   state.NewTypingSet(cfg.TypingTimeout),
		speaking: state.NewSpeakingSet(),
		died:     make(chan error, 1),
	}
	s.typing.OnChange(func(ids []domain.UserID) {
		if s.hooks.OnTyping != nil {
			s.hooks.OnTyping(ids)
		}
	})
	return s
}

func (s *Session) Roster() *state.Roster        { return s.roster }
func (s *Session) Messages() *state.MessageLog  { return s.messages }
func (s *Session) Typing() *state.TypingSet     { return s.typing }
func (s *Session) Speaking() *state.SpeakingSet { return s.speaking }

// Start connects, applies the initial snapshot and joins the room.
// The first connection failing is a hard error; later losses go
// through the reconnect path.
func (s *Session) Start(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	if err := s.connect(ctx); err != nil {
		cancel()
		return err
	}
	go s.supervise(ctx)
	return nil
}

// Stop leaves the room and tears the channel down. All socket
// goroutines exit and pending typing timers are cancelled.
func (s *Session) Stop() {
	_ = s.emit(events.LeaveRoom, events.LeaveRoomIntent{RoomID: s.cfg.RoomID})
	if s.cancel != nil {
		s.cancel()
	}
	s.mu.Lock()
	conn := s.conn
	s.mu.Unlock()
	if conn != nil {
		conn.Close()
	}
	s.typing.Stop()
}

func (s *Session) connect(ctx context.Context) error {
	ws, _, err := s.dialer.DialContext(ctx, s.cfg.URL, nil)
	if err != nil {
		return fmt.Errorf("dial %s: %w", s.cfg.URL, err)
	}
	conn := newWSConn(ws)

	participants, msgs, err := s.resync.Snapshot(ctx, s.cfg.RoomID)
	if err != nil {
		conn.Close()
		return fmt.Errorf("room snapshot: %w", err)
	}
	s.roster.ApplyInitial(participants)
	s.messages.Reset(msgs)
	s.speaking.Clear()

	s.mu.Lock()
	s.conn = conn
	s.mu.Unlock()

	go conn.writePump(ctx)
	go func() {
		err := conn.readPump(ctx, s.dispatchFrame)
		select {
		case s.died <- err:
		default:
		}
	}()

	if err := s.emit(events.JoinRoom, events.JoinRoomIntent{RoomID: s.cfg.RoomID}); err != nil {
		conn.Close()
		return err
	}

	log.Info().Str("module", "session").Str("room", string(s.cfg.RoomID)).Int("participants", len(participants)).Msg("session connected")
	if s.hooks.OnResync != nil {
		s.hooks.OnResync()
	}
	if s.hooks.OnRosterChange != nil {
		s.hooks.OnRosterChange()
	}
	return nil
}

// supervise owns reconnection: bounded attempts with exponential
// backoff, then gives up and reports a final disconnect.
func (s *Session) supervise(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case err := <-s.died:
			if ctx.Err() != nil {
				return
			}
			log.Warn().Err(err).Str("module", "session").Msg("connection lost, reconnecting")
			if s.hooks.OnDisconnect != nil {
				s.hooks.OnDisconnect(err, false)
			}
			if !s.reconnect(ctx) {
				log.Error().Str("module", "session").Int("attempts", s.cfg.MaxReconnects).Msg("reconnect attempts exhausted")
				if s.hooks.OnDisconnect != nil {
					s.hooks.OnDisconnect(err, true)
				}
				return
			}
		}
	}
}

func (s *Session) reconnect(ctx context.Context) bool {
	backoff := s.cfg.BaseBackoff
	for attempt := 1; attempt <= s.cfg.MaxReconnects; attempt++ {
		select {
		case <-ctx.Done():
			return false
		case <-time.After(backoff):
		}
		err := s.connect(ctx)
		if err == nil {
			return true
		}
		log.Warn().Err(err).Str("module", "session").Int("attempt", attempt).Msg("reconnect failed")
		backoff *= 2
		if backoff > s.cfg.MaxBackoff {
			backoff = s.cfg.MaxBackoff
		}
	}
	return false
}

func (s *Session) dispatchFrame(frame []byte) {
	ev, err := events.Decode(frame)
	if err != nil {
		// Malformed frames are rejected at the boundary; state is
		// never merged from an event that failed validation.
		log.Warn().Err(err).Str("module", "session").Msg("dropping bad frame")
		return
	}
	s.dispatch(ev)
}

func (s *Session) dispatch(ev events.ServerEvent) {
	switch e := ev.(type) {
	case events.NewMessageEvent:
		s.messages.Append(e.Message)
		if s.hooks.OnMessage != nil {
			s.hooks.OnMessage(e.Message)
		}
	case events.UserJoinedEvent:
		if s.roster.ApplyJoin(e.Participant) {
			s.rosterChanged()
		}
	case events.UserLeftEvent:
		s.removeUser(e.UserID)
	case events.UserKickedEvent:
		s.removeUser(e.UserID)
		if e.UserID == s.cfg.SelfID && s.hooks.OnKicked != nil {
			s.hooks.OnKicked(e.ByID)
		}
	case events.RoleUpdatedEvent:
		if s.roster.ApplyRoleChange(e.UserID, e.Role) {
			s.rosterChanged()
		}
	case events.MuteChangedEvent:
		if s.roster.ApplyMute(e.UserID, e.Muted) {
			s.rosterChanged()
		}
	case events.SpeakingEvent:
		// Remote speaking flags are trusted as-is.
		s.speaking.Set(e.UserID, e.IsSpeaking)
		if s.hooks.OnSpeaking != nil {
			s.hooks.OnSpeaking(e.UserID, e.IsSpeaking)
		}
	case events.TypingEvent:
		if e.UserID == s.cfg.SelfID {
			return
		}
		s.typing.MarkTyping(e.UserID, e.IsTyping)
	case events.MessagesReadEvent:
		// Read receipts carry no local state yet.
	case events.ServerErrorEvent:
		log.Warn().Str("module", "session").Str("message", e.Message).Msg("server error event")
		if s.hooks.OnServerError != nil {
			s.hooks.OnServerError(e.Message)
		}
	}
}

func (s *Session) removeUser(userID domain.UserID) {
	if s.roster.ApplyLeave(userID) {
		s.speaking.Set(userID, false)
		s.typing.MarkTyping(userID, false)
		s.rosterChanged()
	}
}

func (s *Session) rosterChanged() {
	if s.hooks.OnRosterChange != nil {
		s.hooks.OnRosterChange()
	}
}

// SendMessage emits a chat message intent. The local id is a ULID so
// an eventual server echo can be correlated by clients that care.
func (s *Session) SendMessage(content, correction string) error {
	return s.emit(events.SendMessage, events.SendMessageIntent{
		RoomID:     s.cfg.RoomID,
		LocalID:    domain.MessageID(ulid.Make().String()),
		Type:       domain.MessageText,
		Content:    content,
		Correction: correction,
	})
}

func (s *Session) SetTyping(isTyping bool) error {
	return s.emit(events.Typing, events.TypingIntent{RoomID: s.cfg.RoomID, IsTyping: isTyping})
}

// SetMuted applies the local mute to the roster immediately and
// broadcasts it; the server echo is a no-op merge.
func (s *Session) SetMuted(muted bool) error {
	s.roster.ApplyMute(s.cfg.SelfID, muted)
	s.rosterChanged()
	return s.emit(events.ToggleMute, events.ToggleMuteIntent{RoomID: s.cfg.RoomID, Muted: muted})
}

func (s *Session) SetSpeaking(isSpeaking bool) error {
	s.speaking.Set(s.cfg.SelfID, isSpeaking)
	return s.emit(events.Speaking, events.SpeakingIntent{RoomID: s.cfg.RoomID, IsSpeaking: isSpeaking})
}

func (s *Session) KickUser(userID domain.UserID) error {
	return s.emit(events.KickUser, events.KickUserIntent{RoomID: s.cfg.RoomID, UserID: userID})
}

func (s *Session) ChangeRole(userID domain.UserID, role domain.Role) error {
	return s.emit(events.ChangeRole, events.ChangeRoleIntent{RoomID: s.cfg.RoomID, UserID: userID, Role: role})
}

func (s *Session) emit(name events.Name, payload any) error {
	frame, err := events.Encode(name, payload)
	if err != nil {
		return err
	}
	s.mu.Lock()
	conn := s.conn
	s.mu.Unlock()
	if conn == nil {
		return fmt.Errorf("emit %s: not connected", name)
	}
	if err := conn.TrySend(frame); err != nil {
		return fmt.Errorf("emit %s: %w", name, err)
	}
	return nil
}
