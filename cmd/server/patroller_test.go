package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPatrollerLapsThenFliesToLand(t *testing.T) {
	cfg := DefaultConfig().Patroller
	cfg.LapsBeforeLand = 1
	p := NewPatroller(1, [2]float32{0, 0}, cfg)

	dt := float32(0.05)
	for i := 0; i < 2000 && p.State == PatrolCircling; i++ {
		p.Tick(dt, nil, cfg, false)
	}
	assert.Equal(t, PatrolFlyingToLand, p.State)
}

func TestPatrollerLandsAndWaits(t *testing.T) {
	cfg := DefaultConfig().Patroller
	p := NewPatroller(1, [2]float32{0, 0}, cfg)
	p.State = PatrolFlyingToLand
	p.Pos = cfg.LandingSpot
	p.Pos[1] += 20

	dt := float32(0.05)
	for i := 0; i < 2000 && p.State != PatrolWait; i++ {
		p.Tick(dt, nil, cfg, false)
	}
	assert.Equal(t, PatrolWait, p.State)
	assert.Equal(t, cfg.LandingSpot, p.Pos)
}

func TestPatrollerAttacksWhenTargetInRange(t *testing.T) {
	cfg := DefaultConfig().Patroller
	p := NewPatroller(1, [2]float32{0, 0}, cfg)
	p.State = PatrolWait
	p.Pos = cfg.LandingSpot
	targets := []npcTarget{{ID: 9, Pos: [3]float32{cfg.LandingSpot[0] + 1, cfg.LandingSpot[1], cfg.LandingSpot[2]}, Active: true}}

	p.Tick(0.1, targets, cfg, false)
	assert.Equal(t, PatrolAttacking, p.State)
	assert.Equal(t, uint32(9), p.TargetID)
}

func TestPatrollerTakesOffAfterWaitTimer(t *testing.T) {
	cfg := DefaultConfig().Patroller
	p := NewPatroller(1, [2]float32{0, 0}, cfg)
	p.State = PatrolWait
	p.Pos = cfg.LandingSpot

	dt := float32(0.1)
	for i := 0; i < int(cfg.WaitSec/dt)+5 && p.State == PatrolWait; i++ {
		p.Tick(dt, nil, cfg, false)
	}
	assert.Equal(t, PatrolTakingOff, p.State)
}

func TestPatrollerMultiplayerTestModeNeverAttacks(t *testing.T) {
	cfg := DefaultConfig().Patroller
	p := NewPatroller(1, [2]float32{0, 0}, cfg)
	p.State = PatrolWait
	p.Pos = cfg.LandingSpot
	targets := []npcTarget{{ID: 9, Pos: cfg.LandingSpot, Active: true}}

	for i := 0; i < 200; i++ {
		p.Tick(0.1, targets, cfg, true)
	}
	assert.NotEqual(t, PatrolAttacking, p.State)
}

func TestPatrollerTakeDamageNoStateChange(t *testing.T) {
	cfg := DefaultConfig().Patroller
	p := NewPatroller(1, [2]float32{0, 0}, cfg)
	p.State = PatrolCircling
	died := p.TakeDamage(10)
	assert.False(t, died)
	assert.Equal(t, PatrolCircling, p.State)
	assert.Equal(t, float32(90), p.Health)
}
