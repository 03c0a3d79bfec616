package main

import (
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestServer(t *testing.T) *Server {
	t.Helper()
	cfg := DefaultConfig()
	cfg.JoinRateLimitPerSec = 1000
	cfg.JoinRateBurst = 1000
	s := &Server{cfg: cfg}
	s.rng = rand.New(rand.NewSource(1))
	s.sessions = NewSessionTable(cfg, 1, nil)
	s.spawnInitialNPCs()
	return s
}

func TestHandleEntityDamageChaserNonLethal(t *testing.T) {
	s := newTestServer(t)
	target := s.chasers[0]
	out := s.HandleEntityDamage(EntityDamage{TargetID: target.ID, Damage: 30, AttackerID: 1})
	assert.Nil(t, out)
	assert.Equal(t, ChaserStunned, target.State)
	assert.Equal(t, float32(70), target.Health)
}

func TestHandleEntityDamageChaserLethalTriggersRestart(t *testing.T) {
	// S4: two 50-damage hits against a 100-health chaser trigger a restart.
	s := newTestServer(t)
	target := s.chasers[0]

	out := s.HandleEntityDamage(EntityDamage{TargetID: target.ID, Damage: 50, AttackerID: 1})
	require.Nil(t, out)

	out = s.HandleEntityDamage(EntityDamage{TargetID: target.ID, Damage: 50, AttackerID: 1})
	require.Len(t, out, 3)

	restart, err := Decode(out[0])
	require.NoError(t, err)
	assert.Equal(t, KindGameRestart, restart.Header.Kind)
	assert.Equal(t, RestartNPCDied, restart.Payload.(RestartReason))

	assert.Equal(t, float32(100), target.Health)
	assert.Equal(t, ChaserRoaming, target.State)
	assert.Equal(t, target.SpawnPos, target.Pos)
}

func TestHandleEntityDamagePatrollerLethalTriggersRestart(t *testing.T) {
	s := newTestServer(t)
	patroller := s.patrollers[0]
	out := s.HandleEntityDamage(EntityDamage{TargetID: patroller.ID, Damage: 200, AttackerID: 1})
	require.Len(t, out, 3)
	assert.LessOrEqual(t, patroller.Health, float32(0))
}

func TestRestartRespawnsActivePlayersFullHealth(t *testing.T) {
	s := newTestServer(t)
	sess, ok := s.sessions.Join(addr(1), "A", time.Now())
	require.True(t, ok)
	sess.State.Health = 1

	s.triggerRestart(RestartManual)

	refreshed, ok := s.sessions.FindByID(sess.ID)
	require.True(t, ok)
	assert.Equal(t, float32(100), refreshed.State.Health)
	assert.Equal(t, PlayerIdle, refreshed.State.State)
}
