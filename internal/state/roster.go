// Package state holds the client-side room session state: the roster,
// the message stream and the typing/speaking sets. Everything here is a
// best-effort merge of server-pushed deltas; there is no rejection path
// back to the server. Events referencing users the roster does not know
// are dropped and logged as anomalies rather than buffered.
package state

import (
	"sort"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/linguaroom/linguaroom/internal/domain"
)

var rolePrecedence = map[domain.Role]int{
	domain.RoleHost:      0,
	domain.RoleModerator: 1,
	domain.RoleSpeaker:   2,
	domain.RoleListener:  3,
}

// Roster is the authoritative-for-the-client participant set of one
// room, keyed by user id. Safe for concurrent use.
type Roster struct {
	mu     sync.RWMutex
	byUser map[domain.UserID]*domain.Participant
}

func NewRoster() *Roster {
	return &Roster{byUser: make(map[domain.UserID]*domain.Participant)}
}

// ApplyInitial replaces the roster wholesale from a REST snapshot. Used
// when the room document loads and again after every reconnect resync.
func (r *Roster) ApplyInitial(participants []domain.Participant) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.byUser = make(map[domain.UserID]*domain.Participant, len(participants))
	for i := range participants {
		p := participants[i]
		r.byUser[p.User.ID] = &p
	}
	log.Debug().Str("module", "state.roster").Int("count", len(participants)).Msg("roster replaced")
}

// ApplyJoin inserts a participant, idempotent by user id. Returns false
// on a duplicate join, which leaves the existing entry untouched.
func (r *Roster) ApplyJoin(p domain.Participant) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.byUser[p.User.ID]; ok {
		return false
	}
	cp := p
	r.byUser[p.User.ID] = &cp
	log.Debug().Str("module", "state.roster").Str("user", string(p.User.ID)).Str("role", string(p.Role)).Msg("participant joined")
	return true
}

// ApplyLeave removes the matching entry. Returns false if absent.
func (r *Roster) ApplyLeave(userID domain.UserID) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.byUser[userID]; !ok {
		return false
	}
	delete(r.byUser, userID)
	log.Debug().Str("module", "state.roster").Str("user", string(userID)).Msg("participant left")
	return true
}

// ApplyRoleChange updates the role of an existing entry. A role event
// for an unknown user is dropped: the transport does not guarantee
// role events arrive after the join, and fabricating an entry from a
// role delta would invent a participant the server never announced.
func (r *Roster) ApplyRoleChange(userID domain.UserID, role domain.Role) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.byUser[userID]
	if !ok {
		log.Warn().Str("module", "state.roster").Str("user", string(userID)).Str("role", string(role)).Msg("role change for unknown participant, dropped")
		return false
	}
	p.Role = role
	return true
}

// ApplyMute sets the mute flag of an existing entry; same drop-and-log
// policy as ApplyRoleChange for unknown users.
func (r *Roster) ApplyMute(userID domain.UserID, muted bool) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.byUser[userID]
	if !ok {
		log.Warn().Str("module", "state.roster").Str("user", string(userID)).Msg("mute change for unknown participant, dropped")
		return false
	}
	p.Muted = muted
	return true
}

// Get returns a copy of the entry for userID.
func (r *Roster) Get(userID domain.UserID) (domain.Participant, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.byUser[userID]
	if !ok {
		return domain.Participant{}, false
	}
	return *p, true
}

func (r *Roster) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.byUser)
}

// Snapshot returns the roster ordered by role precedence, then display
// name, so consumers render a stable list across merges.
func (r *Roster) Snapshot() []domain.Participant {
	r.mu.RLock()
	out := make([]domain.Participant, 0, len(r.byUser))
	for _, p := range r.byUser {
		out = append(out, *p)
	}
	r.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		pi, pj := rolePrecedence[out[i].Role], rolePrecedence[out[j].Role]
		if pi != pj {
			return pi < pj
		}
		return out[i].User.DisplayName < out[j].User.DisplayName
	})
	return out
}
