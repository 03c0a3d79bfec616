package main

import (
	"context"
	"errors"
	"net"
	"time"

	"go.uber.org/zap"
)

// Run drives the cooperative tick loop until ctx is cancelled. The socket
// read deadline is kept short so the loop can observe cancellation between
// iterations without blocking.
func (s *Server) Run(ctx context.Context) error {
	ticker := time.NewTicker(time.Duration(s.cfg.LoopSleepMS) * time.Millisecond)
	defer ticker.Stop()

	last := time.Now()
	for {
		select {
		case <-ctx.Done():
			return nil
		default:
		}

		now := time.Now()
		dt := now.Sub(last)
		last = now

		start := now
		s.Tick(dt)
		if s.metrics != nil {
			s.metrics.TickDuration.Observe(time.Since(start).Seconds())
		}

		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}

// Tick runs one full iteration: drain inbound, then (on their own timers)
// broadcast world-state, advance AI and broadcast entity-state, and reap
// stale sessions. dt is the measured wall-clock delta since the previous
// tick, not an assumed constant.
func (s *Server) Tick(dt time.Duration) {
	s.drainInbound()

	dtSec := float32(dt.Seconds())
	s.broadcastAccum += dtSec
	s.aiAccum += dtSec
	s.reapAccum += dtSec

	broadcastInterval := float32(s.cfg.BroadcastIntervalMS) / 1000
	if s.broadcastAccum >= broadcastInterval {
		s.broadcastAccum = 0
		s.broadcastToAll(s.buildWorldStateSnapshot())
	}

	aiInterval := float32(s.cfg.AIIntervalMS) / 1000
	if s.aiAccum >= aiInterval {
		elapsed := s.aiAccum
		s.aiAccum = 0
		s.advanceAI(elapsed)
		s.broadcastToAll(s.buildEntityStateSnapshot())
	}

	reapInterval := float32(s.cfg.ReapIntervalMS) / 1000
	if s.reapAccum >= reapInterval {
		s.reapAccum = 0
		s.sessions.Reap(time.Now())
		if s.metrics != nil {
			s.metrics.ActiveSessions.Set(float64(s.sessions.ActiveCount()))
			s.metrics.ActiveNPCs.Set(float64(s.countActiveNPCs()))
		}
	}
}

func (s *Server) countActiveNPCs() int {
	n := 0
	for _, c := range s.chasers {
		if c.Health > 0 {
			n++
		}
	}
	for _, p := range s.patrollers {
		if p.Health > 0 {
			n++
		}
	}
	return n
}

// advanceAI ticks every chaser and patroller by dt seconds and dispatches
// any resulting player-damage messages.
func (s *Server) advanceAI(dt float32) {
	targets := s.npcTargetsFromSessions()
	for _, c := range s.chasers {
		if c.Health <= 0 {
			continue
		}
		if dmg := c.Tick(dt, targets, s.cfg.Chaser, s.rng, s.cfg.MultiplayerTest); dmg != nil {
			s.deliverPlayerDamage(*dmg)
		}
	}
	for _, p := range s.patrollers {
		if p.Health <= 0 {
			continue
		}
		p.Tick(dt, targets, s.cfg.Patroller, s.cfg.MultiplayerTest)
	}
}

// deliverPlayerDamage sends a player-damage message to the victim only; the
// server does not decrement the victim's health itself, the victim's own
// next update message carries the corrected health back.
func (s *Server) deliverPlayerDamage(d PlayerDamage) {
	victim, ok := s.sessions.FindByID(d.TargetID)
	if !ok {
		return
	}
	s.send(EncodePlayerDamage(s.nextSeq(), d), victim.Endpoint)
}

// drainInbound reads exactly one datagram without blocking and dispatches
// it.
func (s *Server) drainInbound() {
	buf := make([]byte, s.cfg.MaxDatagramSize)
	if err := s.conn.SetReadDeadline(time.Now()); err != nil {
		return
	}
	n, addr, err := s.conn.ReadFromUDP(buf)
	if err != nil {
		var netErr net.Error
		if errors.As(err, &netErr) && netErr.Timeout() {
			return
		}
		if s.log != nil {
			s.log.Debug("receive error", zap.Error(err))
		}
		return
	}
	s.dispatch(buf[:n], addr)
}

// dispatch decodes one datagram and routes it by kind. Malformed packets
// are dropped silently; address-mismatch updates never mutate session
// state.
func (s *Server) dispatch(raw []byte, addr *net.UDPAddr) {
	dm, err := Decode(raw)
	if err != nil {
		if s.metrics != nil {
			s.metrics.DroppedPackets.Inc()
		}
		return
	}
	now := time.Now()
	s.sessions.Touch(addr, now)

	switch dm.Header.Kind {
	case KindJoin:
		name, _ := dm.Payload.(string)
		sess, ok := s.sessions.Join(addr, name, now)
		if !ok {
			return
		}
		s.send(EncodeJoinAck(s.nextSeq(), sess.ID, sess.State), addr)

	case KindLeave:
		s.sessions.Leave(addr)

	case KindUpdate:
		ps, _ := dm.Payload.(PlayerState)
		s.applyUpdate(addr, ps)

	case KindPing:
		s.send(EncodePong(s.nextSeq(), dm.Header.SenderID), addr)

	case KindEntityDamage:
		d, _ := dm.Payload.(EntityDamage)
		for _, out := range s.HandleEntityDamage(d) {
			s.broadcastToAll(out)
		}
		// Legacy: relay to the lowest-id "host" client, kept for interop.
		s.relayToHost(EncodeEntityDamage(s.nextSeq(), dm.Header.SenderID, d))

	case KindArrowSpawn:
		a, _ := dm.Payload.(ArrowSpawn)
		s.relayToOthers(EncodeArrowSpawn(s.nextSeq(), dm.Header.SenderID, a), addr)

	case KindArrowHit:
		a, _ := dm.Payload.(ArrowHit)
		s.relayToOthers(EncodeArrowHit(s.nextSeq(), dm.Header.SenderID, a), addr)

	case KindSpectate:
		if s.sessions.Spectate(addr, now) {
			s.send(EncodeSpectateAck(s.nextSeq()), addr)
		}

	case KindHeartbeat:
		// liveness already touched above; nothing else to do.
	}
}

// applyUpdate mutates a session's player-state record only if addr matches
// the endpoint bound to the claimed identifier — the sole anti-spoofing
// check in the protocol.
func (s *Server) applyUpdate(addr *net.UDPAddr, ps PlayerState) {
	sess, ok := s.sessions.FindByID(ps.ID)
	if !ok || !endpointsEqual(sess.Endpoint, addr) {
		return
	}
	ps.ID = sess.ID
	sess.State = ps
}
