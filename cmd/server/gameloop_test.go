package main

import (
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newLoopbackServer(t *testing.T) (*Server, *net.UDPConn) {
	t.Helper()
	conn, err := net.ListenUDP("udp", &net.UDPAddr{IP: net.ParseIP("127.0.0.1"), Port: 0})
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })

	cfg := DefaultConfig()
	cfg.JoinRateLimitPerSec = 1000
	cfg.JoinRateBurst = 1000
	s := NewServer(cfg, conn, 1, nil, nil)
	return s, conn
}

func dialClient(t *testing.T) *net.UDPConn {
	t.Helper()
	c, err := net.ListenUDP("udp", &net.UDPAddr{IP: net.ParseIP("127.0.0.1"), Port: 0})
	require.NoError(t, err)
	t.Cleanup(func() { c.Close() })
	return c
}

// S1 — join / snapshot.
func TestServerJoinProducesAckAndSnapshot(t *testing.T) {
	s, conn := newLoopbackServer(t)
	client := dialClient(t)
	clientAddr := client.LocalAddr().(*net.UDPAddr)

	s.dispatch(EncodeJoin(1, "A"), clientAddr)
	assert.Equal(t, 1, s.sessions.ActiveCount())

	client.SetReadDeadline(time.Now().Add(200 * time.Millisecond))
	buf := make([]byte, 256)
	n, _, err := client.ReadFromUDP(buf)
	require.NoError(t, err)
	ack, err := Decode(buf[:n])
	require.NoError(t, err)
	assert.Equal(t, KindJoinAck, ack.Header.Kind)

	sess, ok := s.sessions.FindByID(1)
	require.True(t, ok)
	assert.Equal(t, uint32(1), sess.State.ID)
	assert.Equal(t, uint8(1), sess.State.Active)

	players := s.sessions.ActivePlayers()
	require.Len(t, players, 1)
	assert.Equal(t, uint32(1), players[0].ID)
	_ = conn
}

// S2 — liveness timeout.
func TestServerReapRemovesTimedOutSession(t *testing.T) {
	s, _ := newLoopbackServer(t)
	clientAddr := dialClient(t).LocalAddr().(*net.UDPAddr)

	s.dispatch(EncodeJoin(1, "A"), clientAddr)
	require.Equal(t, 1, s.sessions.ActiveCount())

	s.sessions.Reap(time.Now().Add(11 * time.Second))
	assert.Equal(t, 0, s.sessions.ActiveCount())
}

// S5 — address spoofing.
func TestServerUpdateFromWrongEndpointDropped(t *testing.T) {
	s, _ := newLoopbackServer(t)
	clientA := dialClient(t).LocalAddr().(*net.UDPAddr)
	clientB := dialClient(t).LocalAddr().(*net.UDPAddr)

	s.dispatch(EncodeJoin(1, "A"), clientA)
	sess, ok := s.sessions.FindByID(1)
	require.True(t, ok)
	legit := sess.State

	spoofed := legit
	spoofed.Pos = [3]float32{999, 999, 999}
	s.dispatch(EncodeUpdate(2, 1, spoofed), clientB)

	after, ok := s.sessions.FindByID(1)
	require.True(t, ok)
	assert.Equal(t, legit.Pos, after.State.Pos)
}

func TestServerUpdateFromOwnEndpointApplied(t *testing.T) {
	s, _ := newLoopbackServer(t)
	clientAddr := dialClient(t).LocalAddr().(*net.UDPAddr)

	s.dispatch(EncodeJoin(1, "A"), clientAddr)
	sess, _ := s.sessions.FindByID(1)
	updated := sess.State
	updated.Pos = [3]float32{5, 5, 5}
	s.dispatch(EncodeUpdate(2, 1, updated), clientAddr)

	after, _ := s.sessions.FindByID(1)
	assert.Equal(t, [3]float32{5, 5, 5}, after.State.Pos)
}

// S6 — arrow relay.
func TestServerArrowSpawnRelayedToOthersNotSender(t *testing.T) {
	s, _ := newLoopbackServer(t)
	c1 := dialClient(t)
	c2 := dialClient(t)
	c3 := dialClient(t)
	a1 := c1.LocalAddr().(*net.UDPAddr)
	a2 := c2.LocalAddr().(*net.UDPAddr)
	a3 := c3.LocalAddr().(*net.UDPAddr)

	s.dispatch(EncodeJoin(1, "one"), a1)
	s.dispatch(EncodeJoin(2, "two"), a2)
	s.dispatch(EncodeJoin(3, "three"), a3)

	spawn := ArrowSpawn{ArrowID: 7, Pos: [3]float32{1, 2, 3}, Dir: [3]float32{0, 0, 1}, ShooterID: 1}
	s.dispatch(EncodeArrowSpawn(1, 1, spawn), a1)

	c1.SetReadDeadline(time.Now().Add(200 * time.Millisecond))
	c2.SetReadDeadline(time.Now().Add(200 * time.Millisecond))
	c3.SetReadDeadline(time.Now().Add(200 * time.Millisecond))

	buf := make([]byte, 256)
	// Each client first receives the join-ack for its own join.
	for _, c := range []*net.UDPConn{c1, c2, c3} {
		n, _, err := c.ReadFromUDP(buf)
		require.NoError(t, err)
		dm, err := Decode(buf[:n])
		require.NoError(t, err)
		require.Equal(t, KindJoinAck, dm.Header.Kind)
	}

	n, _, err := c2.ReadFromUDP(buf)
	require.NoError(t, err)
	dm, err := Decode(buf[:n])
	require.NoError(t, err)
	assert.Equal(t, KindArrowSpawn, dm.Header.Kind)

	n, _, err = c3.ReadFromUDP(buf)
	require.NoError(t, err)
	dm, err = Decode(buf[:n])
	require.NoError(t, err)
	assert.Equal(t, KindArrowSpawn, dm.Header.Kind)

	_, _, err = c1.ReadFromUDP(buf)
	assert.Error(t, err, "sender must not receive its own relayed arrow-spawn")
}

func TestServerEntityDamageLethalBroadcastsRestart(t *testing.T) {
	s, _ := newLoopbackServer(t)
	client := dialClient(t)
	clientAddr := client.LocalAddr().(*net.UDPAddr)
	s.dispatch(EncodeJoin(1, "A"), clientAddr)

	target := s.chasers[0]
	s.dispatch(EncodeEntityDamage(1, 1, EntityDamage{TargetID: target.ID, Damage: 200, AttackerID: 1}), clientAddr)

	client.SetReadDeadline(time.Now().Add(200 * time.Millisecond))
	buf := make([]byte, 512)
	// The client's own join-ack is queued ahead of the restart broadcast.
	n, _, err := client.ReadFromUDP(buf)
	require.NoError(t, err)
	ack, err := Decode(buf[:n])
	require.NoError(t, err)
	require.Equal(t, KindJoinAck, ack.Header.Kind)

	n, _, err = client.ReadFromUDP(buf)
	require.NoError(t, err)
	dm, err := Decode(buf[:n])
	require.NoError(t, err)
	assert.Equal(t, KindGameRestart, dm.Header.Kind)
	assert.Equal(t, RestartNPCDied, dm.Payload.(RestartReason))
}

func TestTickAdvancesAccumulatorsAndBroadcasts(t *testing.T) {
	s, _ := newLoopbackServer(t)
	client := dialClient(t)
	clientAddr := client.LocalAddr().(*net.UDPAddr)
	s.dispatch(EncodeJoin(1, "A"), clientAddr)

	s.Tick(60 * time.Millisecond)

	client.SetReadDeadline(time.Now().Add(200 * time.Millisecond))
	buf := make([]byte, 1024)
	seenWorldState := false
	for i := 0; i < 4; i++ {
		n, _, err := client.ReadFromUDP(buf)
		if err != nil {
			break
		}
		dm, err := Decode(buf[:n])
		if err == nil && dm.Header.Kind == KindWorldState {
			seenWorldState = true
		}
	}
	assert.True(t, seenWorldState)
}
