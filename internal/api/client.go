// Package api is the REST client for the platform's JSON-over-HTTP
// surface: auth, rooms, participants and message history. The session
// channel carries live deltas; this client carries everything with a
// request/response shape, including the resync snapshot pulled after a
// reconnect.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strconv"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/linguaroom/linguaroom/internal/domain"
)

const defaultTimeout = 15 * time.Second

type Client struct {
	base *url.URL
	http *http.Client
}

// NewClient builds a client around baseURL. Authentication is an
// HTTP-only session cookie set by the server on login; the jar carries
// it on every subsequent call, the client never sees a token.
func NewClient(baseURL string) (*Client, error) {
	base, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("parse base url: %w", err)
	}
	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, fmt.Errorf("cookie jar: %w", err)
	}
	return &Client{
		base: base,
		http: &http.Client{Jar: jar, Timeout: defaultTimeout},
	}, nil
}

// Jar exposes the cookie jar for the websocket dialer, which
// authenticates with the same session cookie.
func (c *Client) Jar() http.CookieJar {
	return c.http.Jar
}

// BaseURL returns a copy of the configured base endpoint.
func (c *Client) BaseURL() *url.URL {
	u := *c.base
	return &u
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (c *Client) Login(ctx context.Context, email, password string) (domain.User, error) {
	var user domain.User
	err := c.doJSON(ctx, http.MethodPost, "/auth/login", loginRequest{Email: email, Password: password}, &user)
	if err != nil {
		return domain.User{}, err
	}
	log.Info().Str("module", "api").Str("user", string(user.ID)).Msg("logged in")
	return user, nil
}

func (c *Client) CurrentUser(ctx context.Context) (domain.User, error) {
	var user domain.User
	if err := c.doJSON(ctx, http.MethodGet, "/auth/me", nil, &user); err != nil {
		return domain.User{}, err
	}
	return user, nil
}

type CreateRoomParams struct {
	Name            domain.RoomName `json:"name"`
	Language        string          `json:"language"`
	Topic           string          `json:"topic,omitempty"`
	Private         bool            `json:"isPrivate"`
	MaxParticipants int             `json:"maxParticipants"`
}

func (c *Client) ListRooms(ctx context.Context) ([]domain.Room, error) {
	var rooms []domain.Room
	if err := c.doJSON(ctx, http.MethodGet, "/rooms", nil, &rooms); err != nil {
		return nil, err
	}
	return rooms, nil
}

func (c *Client) CreateRoom(ctx context.Context, params CreateRoomParams) (domain.Room, error) {
	var room domain.Room
	if err := c.doJSON(ctx, http.MethodPost, "/rooms", params, &room); err != nil {
		return domain.Room{}, err
	}
	return room, nil
}

// RoomDetail is the full room document plus the initial participant
// snapshot, as served by GET /rooms/:id.
type RoomDetail struct {
	Room         domain.Room          `json:"room"`
	Participants []domain.Participant `json:"participants"`
}

func (c *Client) GetRoom(ctx context.Context, id domain.RoomID) (RoomDetail, error) {
	var detail RoomDetail
	if err := c.doJSON(ctx, http.MethodGet, "/rooms/"+url.PathEscape(string(id)), nil, &detail); err != nil {
		return RoomDetail{}, err
	}
	return detail, nil
}

// JoinRoom registers the caller as a participant and returns the
// roster as of the join resolving.
func (c *Client) JoinRoom(ctx context.Context, id domain.RoomID) ([]domain.Participant, error) {
	var out struct {
		Participants []domain.Participant `json:"participants"`
	}
	if err := c.doJSON(ctx, http.MethodPost, "/rooms/"+url.PathEscape(string(id))+"/join", nil, &out); err != nil {
		return nil, err
	}
	return out.Participants, nil
}

func (c *Client) LeaveRoom(ctx context.Context, id domain.RoomID) error {
	return c.doJSON(ctx, http.MethodPost, "/rooms/"+url.PathEscape(string(id))+"/leave", nil, nil)
}

func (c *Client) SetParticipantRole(ctx context.Context, roomID domain.RoomID, userID domain.UserID, role domain.Role) error {
	path := "/rooms/" + url.PathEscape(string(roomID)) + "/participants/" + url.PathEscape(string(userID)) + "/role"
	body := struct {
		Role domain.Role `json:"role"`
	}{Role: role}
	return c.doJSON(ctx, http.MethodPut, path, body, nil)
}

func (c *Client) ListMessages(ctx context.Context, roomID domain.RoomID, limit int) ([]domain.ChatMessage, error) {
	path := "/rooms/" + url.PathEscape(string(roomID)) + "/messages"
	if limit > 0 {
		path += "?limit=" + strconv.Itoa(limit)
	}
	var msgs []domain.ChatMessage
	if err := c.doJSON(ctx, http.MethodGet, path, nil, &msgs); err != nil {
		return nil, err
	}
	return msgs, nil
}

// UploadVoiceNote posts an in-memory WAV recording as a voice message.
// The recording never touches disk on the client.
func (c *Client) UploadVoiceNote(ctx context.Context, roomID domain.RoomID, name string, wav []byte) (domain.ChatMessage, error) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	if err := mw.WriteField("roomId", string(roomID)); err != nil {
		return domain.ChatMessage{}, fmt.Errorf("voice note form: %w", err)
	}
	fw, err := mw.CreateFormFile("audio", name)
	if err != nil {
		return domain.ChatMessage{}, fmt.Errorf("voice note form: %w", err)
	}
	if _, err := fw.Write(wav); err != nil {
		return domain.ChatMessage{}, fmt.Errorf("voice note form: %w", err)
	}
	if err := mw.Close(); err != nil {
		return domain.ChatMessage{}, fmt.Errorf("voice note form: %w", err)
	}

	req, err := c.newRequest(ctx, http.MethodPost, "/messages/voice", &buf)
	if err != nil {
		return domain.ChatMessage{}, err
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	var msg domain.ChatMessage
	if err := c.send(req, &msg); err != nil {
		return domain.ChatMessage{}, err
	}
	return msg, nil
}

func (c *Client) doJSON(ctx context.Context, method, path string, body, out any) error {
	var rd io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal %s %s: %w", method, path, err)
		}
		rd = bytes.NewReader(b)
	}
	req, err := c.newRequest(ctx, method, path, rd)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return c.send(req, out)
}

func (c *Client) newRequest(ctx context.Context, method, path string, body io.Reader) (*http.Request, error) {
	u := c.base.JoinPath(path)
	req, err := http.NewRequestWithContext(ctx, method, u.String(), body)
	if err != nil {
		return nil, fmt.Errorf("build %s %s: %w", method, path, err)
	}
	req.Header.Set("Accept", "application/json")
	return req, nil
}

func (c *Client) send(req *http.Request, out any) error {
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", req.Method, req.URL.Path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return decodeAPIError(resp)
	}
	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s %s: %w", req.Method, req.URL.Path, err)
	}
	return nil
}
