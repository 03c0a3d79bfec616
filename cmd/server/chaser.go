package main

import (
	"math"
	"math/rand"
)

// ChaserState enumerates the melee chaser's state machine.
type ChaserState uint8

const (
	ChaserRoaming ChaserState = iota
	ChaserChasing
	ChaserAttacking
	ChaserIdle
	ChaserStunned
)

// Chaser is a melee NPC: roam, detect, chase, bite.
type Chaser struct {
	ID             uint32
	Pos            [3]float32
	Yaw            float32
	State          ChaserState
	Health         float32
	MaxHealth      float32
	TargetID       uint32
	RoamDir        [2]float32
	RoamTimer      float32
	AttackRemain   float32
	AttackTotal    float32
	StunTimer      float32
	HitDealt       bool
	SpawnPos       [3]float32
}

// NewChaser creates a chaser at full health, roaming, at spawnPos.
func NewChaser(id uint32, spawnPos [3]float32, rng *rand.Rand) *Chaser {
	c := &Chaser{ID: id, Pos: spawnPos, SpawnPos: spawnPos, Health: 100, MaxHealth: 100, State: ChaserRoaming}
	c.pickRoamDirection(rng)
	return c
}

func (c *Chaser) pickRoamDirection(rng *rand.Rand) {
	angle := rng.Float64() * 2 * math.Pi
	c.RoamDir = [2]float32{float32(math.Cos(angle)), float32(math.Sin(angle))}
	c.RoamTimer = 0
}

// npcTarget is the minimal view of a player the AI needs: identifier,
// horizontal position, and whether the session is currently active.
type npcTarget struct {
	ID     uint32
	Pos    [3]float32
	Active bool
}

// Tick advances the chaser by dt seconds given the current set of player
// targets, returning a non-nil *PlayerDamage if a bite landed this tick.
// forceIdle disables autonomous behavior for multiplayer-test mode.
//
// Decision order is priority-ranked and evaluated top to bottom: each
// branch returns once it fires rather than falling through.
func (c *Chaser) Tick(dt float32, targets []npcTarget, cfg ChaserConfig, rng *rand.Rand, forceIdle bool) *PlayerDamage {
	if forceIdle {
		c.State = ChaserIdle
		return nil
	}
	switch c.State {
	case ChaserIdle:
		// never left autonomously
		return nil
	case ChaserStunned:
		c.tickStunned(dt)
	case ChaserRoaming:
		c.tickRoaming(dt, targets, cfg, rng)
	case ChaserChasing:
		c.tickChasing(dt, targets, cfg)
	case ChaserAttacking:
		return c.tickAttacking(dt, targets, cfg)
	}
	return nil
}

func (c *Chaser) tickStunned(dt float32) {
	c.StunTimer -= dt
	if c.StunTimer <= 0 {
		if c.TargetID != 0 {
			c.State = ChaserChasing
		} else {
			c.State = ChaserRoaming
		}
	}
}

func (c *Chaser) tickRoaming(dt float32, targets []npcTarget, cfg ChaserConfig, rng *rand.Rand) {
	c.RoamTimer += dt
	if c.RoamTimer >= cfg.RoamChangeSec {
		c.pickRoamDirection(rng)
	}
	c.Pos[0] += c.RoamDir[0] * cfg.RoamSpeed * dt
	c.Pos[2] += c.RoamDir[1] * cfg.RoamSpeed * dt
	c.Yaw = float32(math.Atan2(float64(c.RoamDir[1]), float64(c.RoamDir[0])))

	if nearest, ok := nearestActiveWithin(c.Pos, targets, cfg.DetectionRadius); ok {
		c.TargetID = nearest
		c.State = ChaserChasing
	}
}

func (c *Chaser) tickChasing(dt float32, targets []npcTarget, cfg ChaserConfig) {
	target, ok := findTarget(targets, c.TargetID)
	if !ok {
		c.TargetID = 0
		c.State = ChaserRoaming
		return
	}
	dist := horizontalDistance(c.Pos, target.Pos)
	if dist > cfg.LoseRadius {
		c.TargetID = 0
		c.State = ChaserRoaming
		return
	}
	c.faceToward(target.Pos)
	if dist <= cfg.AttackDistance {
		c.State = ChaserAttacking
		c.HitDealt = false
		c.AttackTotal = cfg.AttackDurationSec
		c.AttackRemain = cfg.AttackDurationSec
		return
	}
	c.moveToward(target.Pos, cfg.ChaseSpeed, dt)
}

func (c *Chaser) tickAttacking(dt float32, targets []npcTarget, cfg ChaserConfig) *PlayerDamage {
	c.AttackRemain -= dt
	var dealt *PlayerDamage
	progress := float32(1) - c.AttackRemain/c.AttackTotal
	if !c.HitDealt && progress >= cfg.HitWindowStart && progress <= cfg.HitWindowEnd {
		if target, ok := findTarget(targets, c.TargetID); ok {
			if horizontalDistance(c.Pos, target.Pos) <= 2*cfg.AttackDistance {
				c.HitDealt = true
				dealt = c.buildBite(target, cfg)
			}
		}
	}
	if c.AttackRemain <= 0 {
		c.State = ChaserChasing
	}
	return dealt
}

// buildBite computes the player-damage payload for a landed hit: a
// horizontal knockback unit vector from attacker to target, a fixed 0.3
// vertical component, scaled by the knockback force.
func (c *Chaser) buildBite(target npcTarget, cfg ChaserConfig) *PlayerDamage {
	dx := target.Pos[0] - c.Pos[0]
	dz := target.Pos[2] - c.Pos[2]
	mag := float32(math.Hypot(float64(dx), float64(dz)))
	var ux, uz float32
	if mag > 1e-6 {
		ux, uz = dx/mag, dz/mag
	}
	return &PlayerDamage{
		TargetID:   target.ID,
		Damage:     cfg.AttackDamage,
		AttackerID: c.ID,
		Knockback:  [3]float32{ux * cfg.KnockbackForce, 0.3 * cfg.KnockbackForce, uz * cfg.KnockbackForce},
	}
}

// TakeDamage applies incoming damage: always transitions to stunned, clears
// the hit flag, and binds the attacker as the new target (aggression
// steal). Returns true if this brought health to zero or below.
func (c *Chaser) TakeDamage(amount float32, attackerID uint32, stunDuration float32) bool {
	c.Health -= amount
	c.State = ChaserStunned
	c.StunTimer = stunDuration
	c.HitDealt = false
	c.TargetID = attackerID
	return c.Health <= 0
}

// Respawn resets the chaser to full health, roaming with a fresh direction,
// at its original spawn point.
func (c *Chaser) Respawn(rng *rand.Rand) {
	c.Health = c.MaxHealth
	c.Pos = c.SpawnPos
	c.State = ChaserRoaming
	c.TargetID = 0
	c.HitDealt = false
	c.StunTimer = 0
	c.AttackRemain = 0
	c.AttackTotal = 0
	c.pickRoamDirection(rng)
}

func (c *Chaser) faceToward(target [3]float32) {
	c.Yaw = float32(math.Atan2(float64(target[2]-c.Pos[2]), float64(target[0]-c.Pos[0])))
}

func (c *Chaser) moveToward(target [3]float32, speed, dt float32) {
	dx := target[0] - c.Pos[0]
	dz := target[2] - c.Pos[2]
	mag := float32(math.Hypot(float64(dx), float64(dz)))
	if mag < 1e-6 {
		return
	}
	c.Pos[0] += dx / mag * speed * dt
	c.Pos[2] += dz / mag * speed * dt
}

func horizontalDistance(a, b [3]float32) float32 {
	dx := a[0] - b[0]
	dz := a[2] - b[2]
	return float32(math.Hypot(float64(dx), float64(dz)))
}

func findTarget(targets []npcTarget, id uint32) (npcTarget, bool) {
	for _, t := range targets {
		if t.ID == id && t.Active {
			return t, true
		}
	}
	return npcTarget{}, false
}

// nearestActiveWithin returns the id of the nearest active target within
// radius of pos; the nearest wins ties.
func nearestActiveWithin(pos [3]float32, targets []npcTarget, radius float32) (uint32, bool) {
	found := false
	var bestID uint32
	var bestDist float32
	for _, t := range targets {
		if !t.Active {
			continue
		}
		d := horizontalDistance(pos, t.Pos)
		if d <= radius && (!found || d < bestDist) {
			bestID, bestDist, found = t.ID, d, true
		}
	}
	return bestID, found
}
