package main

import "go.uber.org/zap"

// HandleEntityDamage applies an entity-damage message to whichever NPC
// roster owns the target id. A chaser hit enters stunned and binds the
// attacker as its new target; a patroller hit only loses health.
// On non-positive health the entity is deactivated and a global restart is
// triggered with reason npc-died. Returns the outbound messages the caller
// must broadcast, in order.
func (s *Server) HandleEntityDamage(d EntityDamage) [][]byte {
	if c, ok := s.findChaser(d.TargetID); ok {
		died := c.TakeDamage(d.Damage, d.AttackerID, s.cfg.Chaser.StunDurationSec)
		if s.log != nil {
			s.log.Debug("chaser damaged",
				zap.Uint32("entity_id", c.ID),
				zap.Float32("damage", d.Damage),
				zap.Uint32("attacker_id", d.AttackerID))
		}
		if died {
			return s.triggerRestart(RestartNPCDied)
		}
		return nil
	}
	if p, ok := s.findPatroller(d.TargetID); ok {
		died := p.TakeDamage(d.Damage)
		if s.log != nil {
			s.log.Debug("patroller damaged",
				zap.Uint32("entity_id", p.ID),
				zap.Float32("damage", d.Damage))
		}
		if died {
			return s.triggerRestart(RestartNPCDied)
		}
	}
	return nil
}

// triggerRestart implements the global restart protocol: respawn every
// ever-spawned chaser and every active player, broadcast game-restart, then
// immediately emit fresh entity-state and world-state snapshots so clients
// do not wait up to one tick to see the reset.
func (s *Server) triggerRestart(reason RestartReason) [][]byte {
	for _, c := range s.chasers {
		c.Respawn(s.rng)
	}
	for i := range s.sessions.players {
		sess := &s.sessions.players[i]
		if !sess.Active {
			continue
		}
		sess.State.Health = 100
		sess.State.State = PlayerIdle
		sess.State.Pos = s.sessions.RespawnPosition(sess)
		sess.State.Active = 1
	}
	if s.log != nil {
		s.log.Info("global restart", zap.Uint32("reason", uint32(reason)))
	}

	out := make([][]byte, 0, 3)
	out = append(out, EncodeGameRestart(s.nextSeq(), reason))
	out = append(out, s.buildEntityStateSnapshot())
	out = append(out, s.buildWorldStateSnapshot())
	return out
}
