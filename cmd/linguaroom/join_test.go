package main

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/linguaroom/linguaroom/internal/session"
)

func TestSpeakingRelayBeforeBind(t *testing.T) {
	relay := &speakingRelay{}
	// The capture pump can fire before the session exists.
	relay.notify(true)
	relay.notify(false)
}

func TestSpeakingRelayForwardsAfterBind(t *testing.T) {
	relay := &speakingRelay{}
	sess := session.New(session.Config{RoomID: "room-1", SelfID: "self"}, nil, session.Hooks{})
	relay.bind(sess)

	relay.notify(true)
	assert.True(t, sess.Speaking().IsSpeaking("self"))
	relay.notify(false)
	assert.False(t, sess.Speaking().IsSpeaking("self"))
}

func TestSpeakingRelayConcurrentBind(t *testing.T) {
	relay := &speakingRelay{}
	sess := session.New(session.Config{RoomID: "room-1", SelfID: "self"}, nil, session.Hooks{})

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		for i := 0; i < 100; i++ {
			relay.notify(i%2 == 0)
		}
	}()
	go func() {
		defer wg.Done()
		relay.bind(sess)
	}()
	wg.Wait()
}
