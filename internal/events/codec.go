package events

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/linguaroom/linguaroom/internal/domain"
)

var (
	ErrUnknownEvent = errors.New("unknown event")
	ErrBadPayload   = errors.New("bad payload")
)

// Encode wraps an intent payload into an envelope frame.
func Encode(name Name, payload any) ([]byte, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal %s payload: %w", name, err)
	}
	return json.Marshal(Envelope{Event: name, Data: data})
}

// Decode parses one inbound frame into a typed server event. Unknown
// event names and payloads missing required fields are rejected here,
// at the transport boundary; nothing past this point sees raw JSON.
func Decode(frame []byte) (ServerEvent, error) {
	var env Envelope
	if err := json.Unmarshal(frame, &env); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBadPayload, err)
	}
	if env.Event == "" {
		return nil, fmt.Errorf("%w: missing event name", ErrBadPayload)
	}

	switch env.Event {
	case NewMessage:
		var ev NewMessageEvent
		if err := unmarshalData(env, &ev); err != nil {
			return nil, err
		}
		if ev.Message.ID == "" || ev.Message.SenderID == "" {
			return nil, payloadErr(env.Event, "message id and senderId required")
		}
		return ev, nil
	case UserJoined:
		var ev UserJoinedEvent
		if err := unmarshalData(env, &ev); err != nil {
			return nil, err
		}
		if ev.Participant.User.ID == "" {
			return nil, payloadErr(env.Event, "participant user id required")
		}
		if _, err := domain.ParseRole(string(ev.Participant.Role)); err != nil {
			return nil, payloadErr(env.Event, "role %q invalid", ev.Participant.Role)
		}
		return ev, nil
	case UserLeft:
		var ev UserLeftEvent
		if err := unmarshalData(env, &ev); err != nil {
			return nil, err
		}
		if ev.UserID == "" {
			return nil, payloadErr(env.Event, "userId required")
		}
		return ev, nil
	case UserKicked:
		var ev UserKickedEvent
		if err := unmarshalData(env, &ev); err != nil {
			return nil, err
		}
		if ev.UserID == "" {
			return nil, payloadErr(env.Event, "userId required")
		}
		return ev, nil
	case RoleUpdated, ChangeRole:
		var ev RoleUpdatedEvent
		if err := unmarshalData(env, &ev); err != nil {
			return nil, err
		}
		if ev.UserID == "" {
			return nil, payloadErr(env.Event, "userId required")
		}
		if _, err := domain.ParseRole(string(ev.Role)); err != nil {
			return nil, payloadErr(env.Event, "role %q invalid", ev.Role)
		}
		return ev, nil
	case ToggleMute:
		var ev MuteChangedEvent
		if err := unmarshalData(env, &ev); err != nil {
			return nil, err
		}
		if ev.UserID == "" {
			return nil, payloadErr(env.Event, "userId required")
		}
		return ev, nil
	case Speaking:
		var ev SpeakingEvent
		if err := unmarshalData(env, &ev); err != nil {
			return nil, err
		}
		if ev.UserID == "" {
			return nil, payloadErr(env.Event, "userId required")
		}
		return ev, nil
	case Typing:
		var ev TypingEvent
		if err := unmarshalData(env, &ev); err != nil {
			return nil, err
		}
		if ev.UserID == "" {
			return nil, payloadErr(env.Event, "userId required")
		}
		return ev, nil
	case MessagesRead:
		var ev MessagesReadEvent
		if err := unmarshalData(env, &ev); err != nil {
			return nil, err
		}
		return ev, nil
	case ErrorName:
		var ev ServerErrorEvent
		if err := unmarshalData(env, &ev); err != nil {
			return nil, err
		}
		return ev, nil
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownEvent, env.Event)
}

func unmarshalData(env Envelope, v any) error {
	if len(env.Data) == 0 {
		return payloadErr(env.Event, "missing data")
	}
	if err := json.Unmarshal(env.Data, v); err != nil {
		return payloadErr(env.Event, "%v", err)
	}
	return nil
}

func payloadErr(name Name, format string, args ...any) error {
	return fmt.Errorf("%w: %s: %s", ErrBadPayload, name, fmt.Sprintf(format, args...))
}
