package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/linguaroom/linguaroom/internal/domain"
)

func newTestClient(t *testing.T, handler http.Handler) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	client, err := NewClient(srv.URL)
	require.NoError(t, err)
	return client
}

func writeJSON(t *testing.T, w http.ResponseWriter, v any) {
	t.Helper()
	w.Header().Set("Content-Type", "application/json")
	require.NoError(t, json.NewEncoder(w).Encode(v))
}

func TestLoginSetsSessionCookie(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /auth/login", func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			Email    string `json:"email"`
			Password string `json:"password"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "ana@example.com", body.Email)
		http.SetCookie(w, &http.Cookie{Name: "sid", Value: "s3cret", HttpOnly: true})
		writeJSON(t, w, domain.User{ID: "u1", DisplayName: "Ana"})
	})
	mux.HandleFunc("GET /auth/me", func(w http.ResponseWriter, r *http.Request) {
		cookie, err := r.Cookie("sid")
		require.NoError(t, err, "session cookie must ride on later calls")
		assert.Equal(t, "s3cret", cookie.Value)
		writeJSON(t, w, domain.User{ID: "u1", DisplayName: "Ana"})
	})

	client := newTestClient(t, mux)
	ctx := context.Background()

	user, err := client.Login(ctx, "ana@example.com", "pw")
	require.NoError(t, err)
	assert.Equal(t, domain.UserID("u1"), user.ID)

	_, err = client.CurrentUser(ctx)
	require.NoError(t, err)
}

func TestGetRoomAndJoin(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /rooms/room-1", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(t, w, RoomDetail{
			Room: domain.Room{ID: "room-1", Name: "Spanish Lounge", Language: "es"},
			Participants: []domain.Participant{
				domain.NewParticipant(domain.User{ID: "u1", DisplayName: "Ana"}, domain.RoleHost),
			},
		})
	})
	mux.HandleFunc("POST /rooms/room-1/join", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(t, w, map[string]any{
			"participants": []domain.Participant{
				domain.NewParticipant(domain.User{ID: "u1", DisplayName: "Ana"}, domain.RoleHost),
				domain.NewParticipant(domain.User{ID: "u2", DisplayName: "Ben"}, domain.RoleListener),
			},
		})
	})

	client := newTestClient(t, mux)
	ctx := context.Background()

	detail, err := client.GetRoom(ctx, "room-1")
	require.NoError(t, err)
	assert.Equal(t, "es", detail.Room.Language)
	require.Len(t, detail.Participants, 1)

	roster, err := client.JoinRoom(ctx, "room-1")
	require.NoError(t, err)
	assert.Len(t, roster, 2)
}

func TestSetParticipantRole(t *testing.T) {
	var gotRole domain.Role
	mux := http.NewServeMux()
	mux.HandleFunc("PUT /rooms/room-1/participants/u2/role", func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			Role domain.Role `json:"role"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		gotRole = body.Role
		w.WriteHeader(http.StatusNoContent)
	})

	client := newTestClient(t, mux)
	require.NoError(t, client.SetParticipantRole(context.Background(), "room-1", "u2", domain.RoleSpeaker))
	assert.Equal(t, domain.RoleSpeaker, gotRole)
}

func TestListMessagesLimit(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /rooms/room-1/messages", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "25", r.URL.Query().Get("limit"))
		writeJSON(t, w, []domain.ChatMessage{
			{ID: "m1", SenderID: "u1", Type: domain.MessageText, Content: "hola"},
		})
	})

	client := newTestClient(t, mux)
	msgs, err := client.ListMessages(context.Background(), "room-1", 25)
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	assert.Equal(t, domain.MessageID("m1"), msgs[0].ID)
}

func TestUploadVoiceNote(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /messages/voice", func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseMultipartForm(1<<20))
		assert.Equal(t, "room-1", r.FormValue("roomId"))

		file, header, err := r.FormFile("audio")
		require.NoError(t, err)
		defer file.Close()
		assert.Equal(t, "note.wav", header.Filename)

		buf := make([]byte, 4)
		_, err = file.Read(buf)
		require.NoError(t, err)
		assert.Equal(t, "RIFF", string(buf))

		writeJSON(t, w, domain.ChatMessage{ID: "v1", Type: domain.MessageVoice})
	})

	client := newTestClient(t, mux)
	msg, err := client.UploadVoiceNote(context.Background(), "room-1", "note.wav", []byte("RIFF....WAVE"))
	require.NoError(t, err)
	assert.Equal(t, domain.MessageVoice, msg.Type)
}

func TestErrorResponsesDecode(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /auth/login", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		writeJSON(t, w, map[string]string{"message": "bad credentials"})
	})
	mux.HandleFunc("GET /rooms/missing", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		w.Write([]byte("not json at all"))
	})

	client := newTestClient(t, mux)
	ctx := context.Background()

	_, err := client.Login(ctx, "ana@example.com", "wrong")
	var apiErr *Error
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusUnauthorized, apiErr.Status)
	assert.Equal(t, "bad credentials", apiErr.Message)

	_, err = client.GetRoom(ctx, "missing")
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusNotFound, apiErr.Status)
}
