package main

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/linguaroom/linguaroom/internal/domain"
	"github.com/linguaroom/linguaroom/internal/session"
	"github.com/linguaroom/linguaroom/internal/tui"
	"github.com/linguaroom/linguaroom/internal/voice"
)

var joinListenOnly bool

var joinCmd = &cobra.Command{
	Use:   "join <room-id>",
	Short: "Join a room and open the session view",
	Args:  cobra.ExactArgs(1),
	RunE:  runJoin,
}

func init() {
	joinCmd.Flags().BoolVar(&joinListenOnly, "listen", false, "join without capturing the microphone")
	rootCmd.AddCommand(joinCmd)
}

// speakingRelay forwards meter transitions to the session. The capture
// pump may start before the session exists, so the handoff is guarded.
type speakingRelay struct {
	mu   sync.Mutex
	sess *session.Session
}

func (r *speakingRelay) bind(s *session.Session) {
	r.mu.Lock()
	r.sess = s
	r.mu.Unlock()
}

func (r *speakingRelay) notify(speaking bool) {
	r.mu.Lock()
	s := r.sess
	r.mu.Unlock()
	if s != nil {
		_ = s.SetSpeaking(speaking)
	}
}

func runJoin(cmd *cobra.Command, args []string) error {
	roomID := domain.RoomID(args[0])
	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	client, user, err := authedClient(ctx)
	if err != nil {
		return err
	}
	detail, err := client.GetRoom(ctx, roomID)
	if err != nil {
		return err
	}
	if _, err := client.JoinRoom(ctx, roomID); err != nil {
		return err
	}

	policy := voice.LevelPolicy{
		Threshold: cfg.Voice.SpeakingThreshold,
		Smoothing: cfg.Voice.SpeakingSmoothing,
		Hold:      cfg.Voice.SpeakingHold,
	}
	var device voice.CaptureDevice = voice.MicDevice{}
	if joinListenOnly {
		device = voice.UnavailableDevice{}
	}
	relay := &speakingRelay{}
	vc := voice.NewController(device, policy, voice.NewSinkRegistry(), relay.notify)
	vc.SetVolume(cfg.Voice.Volume)
	if _, err := vc.EnableLocalTrack(); err != nil {
		log.Warn().Err(err).Str("module", "cmd").Msg("local track unavailable")
	}

	view := tui.NewRoomView(detail.Room, user, vc, client)
	if joinListenOnly {
		view.Notice("listen-only mode, microphone not captured")
	} else if err := vc.RequestAccess(ctx); err != nil {
		// Denied is not fatal, the room works listen-only until the
		// user retries with /mic.
		view.Notice("microphone unavailable, joined listen-only: " + err.Error())
		log.Warn().Err(err).Str("module", "cmd").Msg("microphone unavailable")
	}

	sess := session.New(session.Config{
		URL:           cfg.SocketEndpoint(),
		RoomID:        roomID,
		SelfID:        user.ID,
		Jar:           client.Jar(),
		TypingTimeout: cfg.TypingTimeout,
	}, session.RESTResync{Client: client, HistoryLimit: cfg.HistoryLimit}, view.Hooks())
	relay.bind(sess)
	view.Bind(sess)

	if err := sess.Start(ctx); err != nil {
		return err
	}

	runErr := view.Run()

	sess.Stop()
	_ = vc.Close()
	leaveCtx, leaveCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer leaveCancel()
	if err := client.LeaveRoom(leaveCtx, roomID); err != nil {
		log.Warn().Err(err).Str("module", "cmd").Msg("leave room")
	}
	return runErr
}
