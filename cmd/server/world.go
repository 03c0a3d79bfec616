package main

import (
	"math/rand"
	"net"

	"go.uber.org/zap"
)

// Server owns every piece of mutable state for one run: the session table,
// the NPC rosters, the outbound sequence counter, and the socket. Nothing
// here is package-level — the cooperative loop in gameloop.go is the sole
// mutator.
type Server struct {
	cfg     ServerConfig
	log     *zap.Logger
	conn    *net.UDPConn
	rng     *rand.Rand
	metrics *Metrics

	sessions *SessionTable

	chasers    []*Chaser
	patrollers []*Patroller

	outSeq uint32

	broadcastAccum float32
	aiAccum        float32
	reapAccum      float32
}

// NewServer wires a Server around an already-bound socket. seed drives every
// source of randomness (spawn jitter, roam direction) so a test can make the
// whole thing deterministic.
func NewServer(cfg ServerConfig, conn *net.UDPConn, seed int64, log *zap.Logger, metrics *Metrics) *Server {
	rng := rand.New(rand.NewSource(seed))
	s := &Server{
		cfg:     cfg,
		log:     log,
		conn:    conn,
		rng:     rng,
		metrics: metrics,
	}
	s.sessions = NewSessionTable(cfg, seed, log)
	s.spawnInitialNPCs()
	return s
}

// spawnInitialNPCs seeds the roster with one chaser per spawn anchor and one
// patroller centered on the patrol configuration's landing area, mirroring
// the anchor table already used for player spawns.
func (s *Server) spawnInitialNPCs() {
	var nextEntityID uint32 = 1
	for _, anchor := range SpawnAnchors {
		s.chasers = append(s.chasers, NewChaser(nextEntityID, anchor, s.rng))
		nextEntityID++
	}
	center := [2]float32{s.cfg.Patroller.LandingSpot[0], s.cfg.Patroller.LandingSpot[2]}
	s.patrollers = append(s.patrollers, NewPatroller(nextEntityID, center, s.cfg.Patroller))
}

// nextSeq returns the next strictly increasing outbound sequence number —
// every outbound message carries a greater sequence number than the
// previous one.
func (s *Server) nextSeq() uint32 {
	s.outSeq++
	return s.outSeq
}

// npcTargetsFromSessions builds the AI-facing view of active players.
func (s *Server) npcTargetsFromSessions() []npcTarget {
	active := s.sessions.ActivePlayers()
	targets := make([]npcTarget, len(active))
	for i, p := range active {
		targets[i] = npcTarget{ID: p.ID, Pos: p.Pos, Active: p.Active != 0}
	}
	return targets
}

// findChaser and findPatroller are linear scans over the fixed-size NPC
// rosters, matching the session table's own by-id lookup shape.
func (s *Server) findChaser(id uint32) (*Chaser, bool) {
	for _, c := range s.chasers {
		if c.ID == id {
			return c, true
		}
	}
	return nil, false
}

func (s *Server) findPatroller(id uint32) (*Patroller, bool) {
	for _, p := range s.patrollers {
		if p.ID == id {
			return p, true
		}
	}
	return nil, false
}

func (s *Server) activeChaser(id uint32) bool {
	c, ok := s.findChaser(id)
	return ok && c.Health > 0
}
