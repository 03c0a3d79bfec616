package main

import (
	"net"

	"go.uber.org/zap"
)

// buildWorldStateSnapshot packs every active player into a world-state
// message.
func (s *Server) buildWorldStateSnapshot() []byte {
	seq := s.nextSeq()
	return EncodeWorldState(seq, seq, s.sessions.ActivePlayers())
}

// buildEntityStateSnapshot packs every active chaser followed by every
// active patroller. The patroller's extras carry lap count and patrol angle.
func (s *Server) buildEntityStateSnapshot() []byte {
	records := make([]EntityRecord, 0, len(s.chasers)+len(s.patrollers))
	for _, c := range s.chasers {
		if c.Health <= 0 {
			continue
		}
		records = append(records, EntityRecord{
			Kind:   EntityChaser,
			ID:     c.ID,
			Pos:    c.Pos,
			Yaw:    c.Yaw,
			State:  uint8(c.State),
			Health: c.Health,
		})
	}
	for _, p := range s.patrollers {
		if p.Health <= 0 {
			continue
		}
		records = append(records, EntityRecord{
			Kind:   EntityPatroller,
			ID:     p.ID,
			Pos:    p.Pos,
			Yaw:    p.Yaw,
			State:  uint8(p.State),
			Health: p.Health,
			Extra1: uint32(p.Laps),
			Extra2: p.Angle,
		})
	}
	return EncodeEntityState(s.nextSeq(), records)
}

// broadcastToAll sends msg to every active session and every active
// spectator.
func (s *Server) broadcastToAll(msg []byte) {
	for i := range s.sessions.players {
		sess := &s.sessions.players[i]
		if sess.Active {
			s.send(msg, sess.Endpoint)
		}
	}
	for i := range s.sessions.spectators {
		sp := &s.sessions.spectators[i]
		if sp.Active {
			s.send(msg, sp.Endpoint)
		}
	}
}

// relayToOthers re-emits msg to every active session except exclude — used
// for arrow-spawn and arrow-hit, which go to every active session except
// the sender's endpoint.
func (s *Server) relayToOthers(msg []byte, exclude *net.UDPAddr) {
	for i := range s.sessions.players {
		sess := &s.sessions.players[i]
		if sess.Active && !endpointsEqual(sess.Endpoint, exclude) {
			s.send(msg, sess.Endpoint)
		}
	}
}

// relayToHost re-emits msg only to the "host" — the active session with the
// smallest assigned identifier. Legacy entity-damage relay, kept only for
// interop with a client that runs its own NPC hit resolution; a clean
// rewrite would consolidate this authority on the server instead.
func (s *Server) relayToHost(msg []byte) {
	hostID, ok := s.sessions.HostID()
	if !ok {
		return
	}
	if host, ok := s.sessions.FindByID(hostID); ok {
		s.send(msg, host.Endpoint)
	}
}

// send is the single outbound path: best-effort, failures are ignored
// except that the caller never crashes on a transport error.
func (s *Server) send(msg []byte, to *net.UDPAddr) {
	if _, err := s.conn.WriteToUDP(msg, to); err != nil {
		if s.log != nil {
			s.log.Debug("send failed", zap.Error(err), zap.String("endpoint", to.String()))
		}
		if s.metrics != nil {
			s.metrics.DroppedPackets.Inc()
		}
	}
}
