// Package tui renders one room session in the terminal: participant
// sidebar, chat log with autoscroll, typing indicator and an input
// line with slash commands for voice and moderation actions.
package tui

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/gdamore/tcell/v2"
	"github.com/google/uuid"
	"github.com/rivo/tview"

	"github.com/linguaroom/linguaroom/internal/api"
	"github.com/linguaroom/linguaroom/internal/domain"
	"github.com/linguaroom/linguaroom/internal/session"
	"github.com/linguaroom/linguaroom/internal/voice"
)

var roleMarkers = map[domain.Role]string{
	domain.RoleHost:      "[red]♔[-]",
	domain.RoleModerator: "[yellow]♦[-]",
	domain.RoleSpeaker:   "[green]●[-]",
	domain.RoleListener:  "[gray]○[-]",
}

type RoomView struct {
	app          *tview.Application
	participants *tview.TextView
	chat         *tview.TextView
	typingBar    *tview.TextView
	status       *tview.TextView
	input        *tview.InputField

	room  domain.Room
	self  domain.User
	sess  *session.Session
	voice *voice.Controller
	rest  *api.Client

	recording bool
}

func NewRoomView(room domain.Room, self domain.User, vc *voice.Controller, rest *api.Client) *RoomView {
	v := &RoomView{
		app:   tview.NewApplication(),
		room:  room,
		self:  self,
		voice: vc,
		rest:  rest,
	}

	v.participants = tview.NewTextView().SetDynamicColors(true)
	v.participants.SetBorder(true).SetTitle(" participants ")

	v.chat = tview.NewTextView().
		SetDynamicColors(true).
		SetWordWrap(true).
		SetScrollable(true).
		ScrollToEnd()
	v.chat.SetBorder(true).SetTitle(fmt.Sprintf(" %s (%s) ", room.Name, room.Language))

	v.typingBar = tview.NewTextView().SetDynamicColors(true)
	v.status = tview.NewTextView().SetDynamicColors(true)
	v.renderStatus()

	v.input = tview.NewInputField().
		SetLabel(self.DisplayName + " ❯❯ ").
		SetFieldWidth(0).
		SetAcceptanceFunc(tview.InputFieldMaxLength(512))
	v.input.SetDoneFunc(v.onInputDone)
	v.input.SetChangedFunc(v.onInputChanged)

	right := tview.NewFlex().SetDirection(tview.FlexRow).
		AddItem(v.chat, 0, 1, false).
		AddItem(v.typingBar, 1, 0, false).
		AddItem(v.input, 1, 0, true).
		AddItem(v.status, 1, 0, false)

	flex := tview.NewFlex().
		AddItem(v.participants, 28, 0, false).
		AddItem(right, 0, 1, true)

	v.app.SetRoot(flex, true).SetFocus(v.input)
	v.app.SetInputCapture(v.onKey)
	return v
}

// Hooks returns the session hooks that keep this view current. Must be
// handed to session.New before Bind.
func (v *RoomView) Hooks() session.Hooks {
	return session.Hooks{
		OnRosterChange: func() {
			v.app.QueueUpdateDraw(v.renderParticipants)
		},
		OnMessage: func(msg domain.ChatMessage) {
			v.app.QueueUpdateDraw(func() {
				v.appendMessage(msg)
			})
		},
		OnTyping: func(ids []domain.UserID) {
			v.app.QueueUpdateDraw(func() {
				v.renderTyping(ids)
			})
		},
		OnSpeaking: func(domain.UserID, bool) {
			v.app.QueueUpdateDraw(v.renderParticipants)
		},
		OnKicked: func(by domain.UserID) {
			v.app.QueueUpdateDraw(func() {
				fmt.Fprintf(v.chat, "[red]You were kicked from the room.\n")
			})
		},
		OnServerError: func(msg string) {
			v.app.QueueUpdateDraw(func() {
				fmt.Fprintf(v.chat, "[red]server error: %s\n", tview.Escape(msg))
			})
		},
		OnResync: func() {
			v.app.QueueUpdateDraw(v.renderAll)
		},
		OnDisconnect: func(err error, final bool) {
			v.app.QueueUpdateDraw(func() {
				if final {
					fmt.Fprintf(v.chat, "[red]connection lost for good, restart to rejoin\n")
					return
				}
				fmt.Fprintf(v.chat, "[yellow]connection lost, reconnecting...\n")
			})
		},
	}
}

// Bind attaches the running session. Called after session.New since
// the hooks above are part of its construction.
func (v *RoomView) Bind(sess *session.Session) {
	v.sess = sess
}

// Notice writes a system line into the chat log. Safe before Run.
func (v *RoomView) Notice(msg string) {
	fmt.Fprintf(v.chat, "[yellow]%s\n", tview.Escape(msg))
}

func (v *RoomView) Run() error {
	return v.app.Run()
}

func (v *RoomView) Stop() {
	v.app.Stop()
}

func (v *RoomView) renderAll() {
	v.chat.Clear()
	for _, msg := range v.sess.Messages().Snapshot() {
		v.appendMessage(msg)
	}
	v.renderParticipants()
	v.renderStatus()
}

func (v *RoomView) renderParticipants() {
	v.participants.Clear()
	speaking := v.sess.Speaking()
	for _, p := range v.sess.Roster().Snapshot() {
		marker := roleMarkers[p.Role]
		mute := ""
		if p.Muted {
			mute = " [gray]🔇[-]"
		}
		talk := ""
		if speaking.IsSpeaking(p.User.ID) {
			talk = " [green]»[-]"
		}
		fmt.Fprintf(v.participants, "%s %s%s%s\n", marker, tview.Escape(p.User.DisplayName), mute, talk)
	}
}

func (v *RoomView) appendMessage(msg domain.ChatMessage) {
	ts := msg.CreatedAt.Format("15:04:05")
	switch msg.Type {
	case domain.MessageVoice:
		fmt.Fprintf(v.chat, "[white][%s] [blue]%s[white]: [purple]♪ voice note[-]\n", ts, tview.Escape(msg.SenderName))
	default:
		fmt.Fprintf(v.chat, "[white][%s] [blue]%s[white]: %s\n", ts, tview.Escape(msg.SenderName), tview.Escape(msg.Content))
		if msg.Correction != "" {
			fmt.Fprintf(v.chat, "           [green]✎ %s\n", tview.Escape(msg.Correction))
		}
	}
	v.chat.ScrollToEnd()
}

func (v *RoomView) renderTyping(ids []domain.UserID) {
	if len(ids) == 0 {
		v.typingBar.SetText("")
		return
	}
	names := make([]string, 0, len(ids))
	for _, id := range ids {
		if p, ok := v.sess.Roster().Get(id); ok {
			names = append(names, p.User.DisplayName)
		}
	}
	if len(names) == 0 {
		v.typingBar.SetText("")
		return
	}
	v.typingBar.SetText("[gray]" + strings.Join(names, ", ") + " typing...")
}

func (v *RoomView) renderStatus() {
	muted, deafened := "live", ""
	if v.voice == nil || v.voice.State() != voice.StateGranted {
		muted = "no mic"
	} else if v.voice.Muted() {
		muted = "muted"
	}
	if v.voice != nil && v.voice.Deafened() {
		deafened = " | deafened"
	}
	rec := ""
	if v.recording {
		rec = " | [red]REC[-]"
	}
	v.status.SetText(fmt.Sprintf("[gray]mic: %s%s%s | ^T mute  ^D deafen  /help", muted, deafened, rec))
}

func (v *RoomView) onKey(ev *tcell.EventKey) *tcell.EventKey {
	switch ev.Key() {
	// Ctrl+M is unusable here, the terminal folds it into Enter.
	case tcell.KeyCtrlT:
		v.toggleMute()
		return nil
	case tcell.KeyCtrlD:
		v.voice.ToggleDeafen()
		v.renderStatus()
		return nil
	}
	return ev
}

func (v *RoomView) onInputChanged(text string) {
	if v.sess == nil || text == "" || strings.HasPrefix(text, "/") {
		return
	}
	_ = v.sess.SetTyping(true)
}

func (v *RoomView) onInputDone(key tcell.Key) {
	if key != tcell.KeyEnter {
		return
	}
	text := strings.TrimSpace(v.input.GetText())
	v.input.SetText("")
	if text == "" {
		return
	}
	_ = v.sess.SetTyping(false)

	if strings.HasPrefix(text, "/") {
		v.runCommand(text)
		return
	}
	if err := v.sess.SendMessage(text, ""); err != nil {
		fmt.Fprintf(v.chat, "[red]send failed: %v\n", err)
	}
}

func (v *RoomView) runCommand(line string) {
	fields := strings.Fields(line)
	switch fields[0] {
	case "/mute":
		v.toggleMute()
	case "/deafen":
		v.voice.ToggleDeafen()
		v.renderStatus()
	case "/volume":
		if len(fields) != 2 {
			fmt.Fprintf(v.chat, "[gray]usage: /volume <0-100>\n")
			return
		}
		n, err := strconv.Atoi(fields[1])
		if err != nil {
			fmt.Fprintf(v.chat, "[gray]usage: /volume <0-100>\n")
			return
		}
		fmt.Fprintf(v.chat, "[gray]volume set to %d\n", v.voice.SetVolume(n))
	case "/correct":
		if len(fields) < 3 {
			fmt.Fprintf(v.chat, "[gray]usage: /correct <text> -- <correction>\n")
			return
		}
		rest := strings.TrimPrefix(line, "/correct ")
		parts := strings.SplitN(rest, " -- ", 2)
		if len(parts) != 2 {
			fmt.Fprintf(v.chat, "[gray]usage: /correct <text> -- <correction>\n")
			return
		}
		if err := v.sess.SendMessage(parts[0], parts[1]); err != nil {
			fmt.Fprintf(v.chat, "[red]send failed: %v\n", err)
		}
	case "/kick":
		if len(fields) != 2 {
			fmt.Fprintf(v.chat, "[gray]usage: /kick <name>\n")
			return
		}
		if id, ok := v.findByName(fields[1]); ok {
			_ = v.sess.KickUser(id)
		} else {
			fmt.Fprintf(v.chat, "[gray]no participant named %s\n", tview.Escape(fields[1]))
		}
	case "/role":
		if len(fields) != 3 {
			fmt.Fprintf(v.chat, "[gray]usage: /role <name> <host|moderator|speaker|listener>\n")
			return
		}
		role, err := domain.ParseRole(fields[2])
		if err != nil {
			fmt.Fprintf(v.chat, "[gray]unknown role %s\n", tview.Escape(fields[2]))
			return
		}
		if id, ok := v.findByName(fields[1]); ok {
			_ = v.sess.ChangeRole(id, role)
		} else {
			fmt.Fprintf(v.chat, "[gray]no participant named %s\n", tview.Escape(fields[1]))
		}
	case "/record":
		v.toggleRecording()
	case "/mic":
		if err := v.voice.RequestAccess(context.Background()); err != nil {
			fmt.Fprintf(v.chat, "[red]microphone: %v\n", err)
		} else {
			fmt.Fprintf(v.chat, "[gray]microphone granted, still muted\n")
		}
		v.renderStatus()
	case "/quit":
		v.app.Stop()
	case "/help":
		fmt.Fprintf(v.chat, "[gray]/mute /deafen /volume N /correct text -- fix /kick name /role name role /record /mic /quit\n")
	default:
		fmt.Fprintf(v.chat, "[gray]unknown command %s\n", tview.Escape(fields[0]))
	}
}

func (v *RoomView) toggleMute() {
	muted, err := v.voice.ToggleMute()
	if err != nil {
		fmt.Fprintf(v.chat, "[red]mute: %v\n", err)
		return
	}
	_ = v.sess.SetMuted(muted)
	v.renderStatus()
}

func (v *RoomView) toggleRecording() {
	if !v.recording {
		if err := v.voice.StartRecording(); err != nil {
			fmt.Fprintf(v.chat, "[red]record: %v\n", err)
			return
		}
		v.recording = true
		v.renderStatus()
		return
	}
	v.recording = false
	wav, err := v.voice.StopRecording()
	if err != nil {
		fmt.Fprintf(v.chat, "[red]record: %v\n", err)
		v.renderStatus()
		return
	}
	v.renderStatus()
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		name := "note-" + uuid.NewString() + ".wav"
		if _, err := v.rest.UploadVoiceNote(ctx, v.room.ID, name, wav); err != nil {
			v.app.QueueUpdateDraw(func() {
				fmt.Fprintf(v.chat, "[red]voice note upload failed: %v\n", err)
			})
		}
	}()
}

func (v *RoomView) findByName(name string) (domain.UserID, bool) {
	for _, p := range v.sess.Roster().Snapshot() {
		if strings.EqualFold(p.User.DisplayName, name) {
			return p.User.ID, true
		}
	}
	return "", false
}
