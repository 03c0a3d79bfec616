package main

import (
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func addr(port int) *net.UDPAddr {
	return &net.UDPAddr{IP: net.ParseIP("127.0.0.1"), Port: port}
}

func newTestTable() *SessionTable {
	cfg := DefaultConfig()
	cfg.JoinRateLimitPerSec = 1000
	cfg.JoinRateBurst = 1000
	return NewSessionTable(cfg, 1, nil)
}

func TestJoinAssignsMonotonicIDs(t *testing.T) {
	tbl := newTestTable()
	now := time.Now()
	s1, ok := tbl.Join(addr(1), "A", now)
	require.True(t, ok)
	s2, ok := tbl.Join(addr(2), "B", now)
	require.True(t, ok)
	assert.Equal(t, uint32(1), s1.ID)
	assert.Equal(t, uint32(2), s2.ID)
	assert.Equal(t, uint32(1), s1.State.ID)
}

func TestJoinRejectedAtCapacity(t *testing.T) {
	tbl := newTestTable()
	tbl.players = make([]Session, 1)
	now := time.Now()
	_, ok := tbl.Join(addr(1), "A", now)
	require.True(t, ok)
	_, ok = tbl.Join(addr(2), "B", now)
	assert.False(t, ok)
}

func TestOneActiveSessionPerEndpoint(t *testing.T) {
	tbl := newTestTable()
	now := time.Now()
	s1, _ := tbl.Join(addr(1), "A", now)
	found, ok := tbl.FindByEndpoint(addr(1))
	require.True(t, ok)
	assert.Equal(t, s1.ID, found.ID)
}

func TestSpectatePromotionOnJoin(t *testing.T) {
	tbl := newTestTable()
	now := time.Now()
	ok := tbl.Spectate(addr(1), now)
	require.True(t, ok)

	s, ok := tbl.Join(addr(1), "A", now)
	require.True(t, ok)
	assert.Equal(t, uint32(1), s.ID)

	for _, sp := range tbl.spectators {
		if sp.Active {
			assert.Fail(t, "spectator should have been removed on promotion")
		}
	}
}

func TestReapDeactivatesStaleSessions(t *testing.T) {
	tbl := newTestTable()
	now := time.Now()
	tbl.Join(addr(1), "A", now)
	assert.Equal(t, 1, tbl.ActiveCount())

	tbl.Reap(now.Add(11 * time.Second))
	assert.Equal(t, 0, tbl.ActiveCount())
}

func TestActivePlayersExcludesInactiveAndSpectators(t *testing.T) {
	tbl := newTestTable()
	now := time.Now()
	tbl.Join(addr(1), "A", now)
	tbl.Join(addr(2), "B", now)
	tbl.Spectate(addr(3), now)
	tbl.Leave(addr(2))

	players := tbl.ActivePlayers()
	require.Len(t, players, 1)
	assert.Equal(t, uint32(1), players[0].ID)
}

func TestHostIsSmallestActiveID(t *testing.T) {
	tbl := newTestTable()
	now := time.Now()
	tbl.Join(addr(1), "A", now)
	tbl.Join(addr(2), "B", now)
	tbl.Leave(addr(1))

	host, ok := tbl.HostID()
	require.True(t, ok)
	assert.Equal(t, uint32(2), host)
}

func TestSpawnJitterWithinRadius(t *testing.T) {
	tbl := newTestTable()
	now := time.Now()
	s, _ := tbl.Join(addr(1), "A", now)
	anchor := SpawnAnchors[s.spawnAnchor]
	dx := s.State.Pos[0] - anchor[0]
	dz := s.State.Pos[2] - anchor[2]
	dist := dx*dx + dz*dz
	maxDist := tbl.cfg.SpawnJitterRadius * tbl.cfg.SpawnJitterRadius
	assert.LessOrEqual(t, dist, maxDist+1e-3)
	assert.Equal(t, anchor[1], s.State.Pos[1])
}

func TestJoinRateLimited(t *testing.T) {
	cfg := DefaultConfig()
	cfg.JoinRateLimitPerSec = 1
	cfg.JoinRateBurst = 1
	tbl := NewSessionTable(cfg, 1, nil)
	now := time.Now()
	_, ok := tbl.Join(addr(1), "A", now)
	require.True(t, ok)
	_, ok = tbl.Join(addr(1), "A2", now)
	assert.False(t, ok)
}
