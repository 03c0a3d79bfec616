package main

import (
	"math"
	"math/rand"
	"net"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// Session is an accepted player connection. It is mutated only by packets
// arriving from its bound endpoint, the combat arbiter, or the global
// restart path.
type Session struct {
	Active    bool
	ID        uint32
	Name      string
	Endpoint  *net.UDPAddr
	LastSeen  time.Time
	State     PlayerState
	traceID   uuid.UUID
	spawnAnchor int
}

// Spectator receives snapshots but never appears in one.
type Spectator struct {
	Active   bool
	Endpoint *net.UDPAddr
	LastSeen time.Time
}

// SessionTable owns the fixed-capacity player and spectator arrays, the
// monotonically increasing identifier allocator, and join admission control.
// Lookup by endpoint and by assigned id is a linear scan over the fixed
// arrays.
type SessionTable struct {
	players    []Session
	spectators []Spectator
	nextID     uint32
	rng        *rand.Rand
	limiter    map[string]*rate.Limiter
	cfg        ServerConfig
	log        *zap.Logger
}

// NewSessionTable allocates the fixed-capacity tables per cfg.
func NewSessionTable(cfg ServerConfig, seed int64, log *zap.Logger) *SessionTable {
	return &SessionTable{
		players:    make([]Session, cfg.MaxPlayers),
		spectators: make([]Spectator, cfg.MaxSpectators),
		nextID:     1,
		rng:        rand.New(rand.NewSource(seed)),
		limiter:    make(map[string]*rate.Limiter),
		cfg:        cfg,
		log:        log,
	}
}

func (t *SessionTable) limiterFor(ip string) *rate.Limiter {
	l, ok := t.limiter[ip]
	if !ok {
		l = rate.NewLimiter(rate.Limit(t.cfg.JoinRateLimitPerSec), t.cfg.JoinRateBurst)
		t.limiter[ip] = l
	}
	return l
}

// allowJoin checks the per-IP admission limiter before any capacity check
// is attempted.
func (t *SessionTable) allowJoin(addr *net.UDPAddr) bool {
	return t.limiterFor(addr.IP.String()).Allow()
}

// FindByEndpoint returns the active session bound to addr, if any.
func (t *SessionTable) FindByEndpoint(addr *net.UDPAddr) (*Session, bool) {
	for i := range t.players {
		s := &t.players[i]
		if s.Active && endpointsEqual(s.Endpoint, addr) {
			return s, true
		}
	}
	return nil, false
}

// FindByID returns the active session with the given assigned identifier.
func (t *SessionTable) FindByID(id uint32) (*Session, bool) {
	for i := range t.players {
		s := &t.players[i]
		if s.Active && s.ID == id {
			return s, true
		}
	}
	return nil, false
}

func endpointsEqual(a, b *net.UDPAddr) bool {
	return a.IP.Equal(b.IP) && a.Port == b.Port
}

// removeSpectator removes addr from the spectator table if present, used to
// promote a spectator to a session on join.
func (t *SessionTable) removeSpectator(addr *net.UDPAddr) {
	for i := range t.spectators {
		sp := &t.spectators[i]
		if sp.Active && endpointsEqual(sp.Endpoint, addr) {
			*sp = Spectator{}
		}
	}
}

// Join admits a new session for addr with the given display name, or
// reports false if rate-limited or at capacity. Both are silent drops: no
// packet is returned to the caller in either case.
func (t *SessionTable) Join(addr *net.UDPAddr, name string, now time.Time) (*Session, bool) {
	if !t.allowJoin(addr) {
		return nil, false
	}
	slot := -1
	for i := range t.players {
		if !t.players[i].Active {
			slot = i
			break
		}
	}
	if slot < 0 {
		return nil, false
	}
	t.removeSpectator(addr)

	id := t.nextID
	t.nextID++
	pos, anchor := t.allocateSpawn()

	t.players[slot] = Session{
		Active:      true,
		ID:          id,
		Name:        name,
		Endpoint:    addr,
		LastSeen:    now,
		traceID:     uuid.New(),
		spawnAnchor: anchor,
		State: PlayerState{
			ID:     id,
			Pos:    pos,
			State:  PlayerIdle,
			Health: 100,
			Anim:   "idle",
			Active: 1,
		},
	}
	s := &t.players[slot]
	if t.log != nil {
		t.log.Debug("session joined",
			zap.Uint32("player_id", id),
			zap.String("trace_id", s.traceID.String()),
			zap.Int("spawn_anchor", anchor))
	}
	return s, true
}

// Spectate admits addr as a spectator, or reports false if at capacity.
func (t *SessionTable) Spectate(addr *net.UDPAddr, now time.Time) bool {
	for i := range t.spectators {
		if t.spectators[i].Active && endpointsEqual(t.spectators[i].Endpoint, addr) {
			t.spectators[i].LastSeen = now
			return true
		}
	}
	for i := range t.spectators {
		if !t.spectators[i].Active {
			t.spectators[i] = Spectator{Active: true, Endpoint: addr, LastSeen: now}
			return true
		}
	}
	return false
}

// Leave deactivates the session bound to addr, if any.
func (t *SessionTable) Leave(addr *net.UDPAddr) {
	if s, ok := t.FindByEndpoint(addr); ok {
		s.Active = false
	}
}

// Touch updates the liveness timestamp for the session bound to addr.
func (t *SessionTable) Touch(addr *net.UDPAddr, now time.Time) {
	if s, ok := t.FindByEndpoint(addr); ok {
		s.LastSeen = now
	}
	for i := range t.spectators {
		sp := &t.spectators[i]
		if sp.Active && endpointsEqual(sp.Endpoint, addr) {
			sp.LastSeen = now
		}
	}
}

// Reap deactivates every session/spectator whose last-seen age exceeds the
// configured timeout. Deactivation is silent: no packet is sent.
func (t *SessionTable) Reap(now time.Time) {
	timeout := time.Duration(t.cfg.SessionTimeoutSec * float64(time.Second))
	for i := range t.players {
		s := &t.players[i]
		if s.Active && now.Sub(s.LastSeen) > timeout {
			if t.log != nil {
				t.log.Debug("session reaped", zap.Uint32("player_id", s.ID))
			}
			s.Active = false
		}
	}
	for i := range t.spectators {
		sp := &t.spectators[i]
		if sp.Active && now.Sub(sp.LastSeen) > timeout {
			*sp = Spectator{}
		}
	}
}

// ActivePlayers returns up to MaxPlayers live player-state records, in slot
// order, for a world-state snapshot.
func (t *SessionTable) ActivePlayers() []PlayerState {
	out := make([]PlayerState, 0, len(t.players))
	for i := range t.players {
		if t.players[i].Active {
			out = append(out, t.players[i].State)
		}
	}
	return out
}

// ActiveCount reports how many player slots are currently active.
func (t *SessionTable) ActiveCount() int {
	n := 0
	for i := range t.players {
		if t.players[i].Active {
			n++
		}
	}
	return n
}

// HostID returns the smallest assigned identifier among active sessions, and
// whether one exists. Legacy support for the entity-damage relay — kept for
// interop, not used for anything else.
func (t *SessionTable) HostID() (uint32, bool) {
	found := false
	var best uint32
	for i := range t.players {
		s := &t.players[i]
		if !s.Active {
			continue
		}
		if !found || s.ID < best {
			best = s.ID
			found = true
		}
	}
	return best, found
}

// allocateSpawn picks one of the fixed anchors uniformly at random and
// jitters it within cfg.SpawnJitterRadius in the horizontal plane, keeping
// the anchor's vertical coordinate fixed.
func (t *SessionTable) allocateSpawn() ([3]float32, int) {
	anchor := t.rng.Intn(len(SpawnAnchors))
	base := SpawnAnchors[anchor]
	angle := t.rng.Float64() * 2 * math.Pi
	radius := t.rng.Float64() * float64(t.cfg.SpawnJitterRadius)
	dx := float32(math.Cos(angle) * radius)
	dz := float32(math.Sin(angle) * radius)
	return [3]float32{base[0] + dx, base[1], base[2] + dz}, anchor
}

// RespawnPosition re-jitters around the session's original anchor, used by
// the global restart path to respawn a player at its original spawn point.
// The anchor is fixed for the session's lifetime; only the jitter offset is
// re-rolled.
func (t *SessionTable) RespawnPosition(s *Session) [3]float32 {
	base := SpawnAnchors[s.spawnAnchor]
	angle := t.rng.Float64() * 2 * math.Pi
	radius := t.rng.Float64() * float64(t.cfg.SpawnJitterRadius)
	dx := float32(math.Cos(angle) * radius)
	dz := float32(math.Sin(angle) * radius)
	if t.log != nil {
		t.log.Debug("session respawned",
			zap.Uint32("player_id", s.ID),
			zap.Int("spawn_anchor", s.spawnAnchor))
	}
	return [3]float32{base[0] + dx, base[1], base[2] + dz}
}
