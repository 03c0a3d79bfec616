package main

import "math"

// PatrollerState enumerates the patrolling flyer's state machine.
type PatrollerState uint8

const (
	PatrolCircling PatrollerState = iota
	PatrolFlyingToLand
	PatrolLanding
	PatrolWait
	PatrolTakingOff
	PatrolAttacking
)

// Patroller is a flying NPC that circles, lands, waits, enters its attacking
// state against anything that comes close, then takes off again. The
// attacking state only holds position on a timer; it produces no
// player-damage message.
type Patroller struct {
	ID           uint32
	Pos          [3]float32
	Yaw          float32
	State        PatrollerState
	Health       float32
	MaxHealth    float32
	Center       [2]float32
	Angle        float32
	Laps         int
	WaitTimer    float32
	AttackTimer  float32
	TargetID     uint32
}

// NewPatroller creates a patroller circling around center at full health.
func NewPatroller(id uint32, center [2]float32, cfg PatrollerConfig) *Patroller {
	return &Patroller{
		ID:        id,
		Center:    center,
		Health:    100,
		MaxHealth: 100,
		State:     PatrolCircling,
		Pos:       patrolPoint(center, 0, cfg),
	}
}

// patrolPoint computes the oval patrol target for a given angle.
func patrolPoint(center [2]float32, angle float32, cfg PatrollerConfig) [3]float32 {
	x := center[0] + float32(math.Cos(float64(angle)))*cfg.PatrolRadius
	z := center[1] + float32(math.Sin(float64(angle)))*0.7*cfg.PatrolRadius
	y := cfg.PatrolHeight + 5*float32(math.Sin(float64(2*angle)))
	return [3]float32{x, y, z}
}

// Tick advances the patroller by dt seconds given the current targets.
// forceIdle (multiplayer-test mode) disables the attacking transition only
// — the patroller still patrols but never bites.
func (p *Patroller) Tick(dt float32, targets []npcTarget, cfg PatrollerConfig, forceIdle bool) {
	switch p.State {
	case PatrolCircling:
		p.tickCircling(dt, targets, cfg, forceIdle)
	case PatrolFlyingToLand:
		p.tickFlyingToLand(dt, cfg)
	case PatrolLanding:
		p.tickLanding(dt, cfg)
	case PatrolWait:
		p.tickWait(dt, targets, cfg, forceIdle)
	case PatrolAttacking:
		p.tickAttacking(dt, targets, cfg, forceIdle)
	case PatrolTakingOff:
		p.tickTakingOff(dt, cfg)
	}
}

func (p *Patroller) tickCircling(dt float32, targets []npcTarget, cfg PatrollerConfig, forceIdle bool) {
	p.Angle += (cfg.PatrolSpeed / cfg.PatrolRadius) * dt
	target := patrolPoint(p.Center, p.Angle, cfg)
	p.steerToward(target, cfg.PatrolSpeed, dt)

	if p.Angle >= 2*math.Pi {
		p.Angle -= 2 * math.Pi
		p.Laps++
		if p.Laps >= cfg.LapsBeforeLand {
			p.Laps = 0
			p.State = PatrolFlyingToLand
		}
	}
	_ = forceIdle
	_ = targets
}

func (p *Patroller) tickFlyingToLand(dt float32, cfg PatrollerConfig) {
	above := cfg.LandingSpot
	above[1] += 20
	p.steerToward(above, cfg.PatrolSpeed, dt)
	if distance3(p.Pos, above) < 10 {
		p.State = PatrolLanding
	}
}

func (p *Patroller) tickLanding(dt float32, cfg PatrollerConfig) {
	d := distance3(p.Pos, cfg.LandingSpot)
	speed := d
	if speed < 2 {
		speed = 2
	}
	if speed > cfg.PatrolSpeed {
		speed = cfg.PatrolSpeed
	}
	p.steerToward(cfg.LandingSpot, speed, dt)
	if d < 5 {
		p.Pos = cfg.LandingSpot
		p.State = PatrolWait
		p.WaitTimer = 0
	}
}

func (p *Patroller) tickWait(dt float32, targets []npcTarget, cfg PatrollerConfig, forceIdle bool) {
	p.WaitTimer += dt
	if !forceIdle {
		if id, ok := nearestActiveWithin(p.Pos, targets, cfg.AttackRange); ok {
			p.TargetID = id
			p.State = PatrolAttacking
			p.AttackTimer = cfg.AttackDurationSec
			return
		}
	}
	if p.WaitTimer >= cfg.WaitSec {
		p.State = PatrolTakingOff
	}
}

func (p *Patroller) tickAttacking(dt float32, targets []npcTarget, cfg PatrollerConfig, forceIdle bool) {
	p.AttackTimer -= dt
	if p.AttackTimer > 0 {
		return
	}
	if !forceIdle {
		if target, ok := findTarget(targets, p.TargetID); ok && horizontalDistance(p.Pos, target.Pos) <= cfg.AttackRange {
			p.AttackTimer = cfg.AttackDurationSec
			return
		}
	}
	p.State = PatrolWait
	p.WaitTimer = 0
}

func (p *Patroller) tickTakingOff(dt float32, cfg PatrollerConfig) {
	p.Pos[1] += cfg.TakeoffSpeed * dt
	if p.Pos[1] >= 0.8*cfg.PatrolHeight {
		p.State = PatrolCircling
		p.Angle = 0
	}
}

func (p *Patroller) steerToward(target [3]float32, speed, dt float32) {
	dx := target[0] - p.Pos[0]
	dy := target[1] - p.Pos[1]
	dz := target[2] - p.Pos[2]
	mag := float32(math.Sqrt(float64(dx*dx + dy*dy + dz*dz)))
	if mag < 1e-6 {
		return
	}
	p.Pos[0] += dx / mag * speed * dt
	p.Pos[1] += dy / mag * speed * dt
	p.Pos[2] += dz / mag * speed * dt
	p.Yaw = float32(math.Atan2(float64(dz), float64(dx)))
}

func distance3(a, b [3]float32) float32 {
	dx, dy, dz := a[0]-b[0], a[1]-b[1], a[2]-b[2]
	return float32(math.Sqrt(float64(dx*dx + dy*dy + dz*dz)))
}

// TakeDamage subtracts damage without a state transition — patrollers,
// unlike chasers, are not stunned by damage. Returns true if this brought
// health to zero or below.
func (p *Patroller) TakeDamage(amount float32) bool {
	p.Health -= amount
	return p.Health <= 0
}
