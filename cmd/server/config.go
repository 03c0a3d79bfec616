package main

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// ServerConfig holds every tunable constant for a server run. An optional
// YAML file (-config) can override any subset — zero-value fields left out
// of the file fall back to DefaultConfig.
type ServerConfig struct {
	Port            int    `yaml:"port"`
	MultiplayerTest bool   `yaml:"multiplayer_test"`
	MaxDatagramSize int    `yaml:"max_datagram_size"`

	MaxPlayers    int `yaml:"max_players"`
	MaxSpectators int `yaml:"max_spectators"`
	SessionTimeoutSec float64 `yaml:"session_timeout_sec"`

	BroadcastIntervalMS int `yaml:"broadcast_interval_ms"`
	AIIntervalMS        int `yaml:"ai_interval_ms"`
	ReapIntervalMS      int `yaml:"reap_interval_ms"`
	LoopSleepMS         int `yaml:"loop_sleep_ms"`

	SpawnJitterRadius float32 `yaml:"spawn_jitter_radius"`

	Chaser    ChaserConfig    `yaml:"chaser"`
	Patroller PatrollerConfig `yaml:"patroller"`

	JoinRateLimitPerSec float64 `yaml:"join_rate_limit_per_sec"`
	JoinRateBurst       int     `yaml:"join_rate_burst"`
}

// ChaserConfig tunes the melee chaser NPC state machine.
type ChaserConfig struct {
	DetectionRadius float32 `yaml:"detection_radius"`
	LoseRadius      float32 `yaml:"lose_radius"`
	AttackDistance  float32 `yaml:"attack_distance"`
	RoamSpeed       float32 `yaml:"roam_speed"`
	ChaseSpeed      float32 `yaml:"chase_speed"`
	RoamChangeSec   float32 `yaml:"roam_change_sec"`
	AttackDurationSec float32 `yaml:"attack_duration_sec"`
	AttackDamage    float32 `yaml:"attack_damage"`
	KnockbackForce  float32 `yaml:"knockback_force"`
	HitWindowStart  float32 `yaml:"hit_window_start"`
	HitWindowEnd    float32 `yaml:"hit_window_end"`
	StunDurationSec float32 `yaml:"stun_duration_sec"`
}

// PatrollerConfig tunes the patrolling flyer NPC state machine.
type PatrollerConfig struct {
	PatrolRadius    float32 `yaml:"patrol_radius"`
	PatrolHeight    float32 `yaml:"patrol_height"`
	PatrolSpeed     float32 `yaml:"patrol_speed"`
	LapsBeforeLand  int     `yaml:"laps_before_land"`
	WaitSec         float32 `yaml:"wait_sec"`
	AttackRange     float32 `yaml:"attack_range"`
	AttackDurationSec float32 `yaml:"attack_duration_sec"`
	TakeoffSpeed    float32 `yaml:"takeoff_speed"`
	LandingSpot     [3]float32 `yaml:"landing_spot"`
}

// DefaultConfig returns the baseline tuning values for a fresh server.
func DefaultConfig() ServerConfig {
	return ServerConfig{
		Port:            7777,
		MultiplayerTest: false,
		MaxDatagramSize: 2048,

		MaxPlayers:        32,
		MaxSpectators:     32,
		SessionTimeoutSec: 10,

		BroadcastIntervalMS: 50,
		AIIntervalMS:        50,
		ReapIntervalMS:      1000,
		LoopSleepMS:         1,

		SpawnJitterRadius: 8,

		Chaser: ChaserConfig{
			DetectionRadius:   10,
			LoseRadius:        20,
			AttackDistance:    2,
			RoamSpeed:         2,
			ChaseSpeed:        5,
			RoamChangeSec:     3,
			AttackDurationSec: 1.5,
			AttackDamage:      70,
			KnockbackForce:    12,
			HitWindowStart:    0.30,
			HitWindowEnd:      0.70,
			StunDurationSec:   0.5,
		},
		Patroller: PatrollerConfig{
			PatrolRadius:      100,
			PatrolHeight:      80,
			PatrolSpeed:       25,
			LapsBeforeLand:    2,
			WaitSec:           5,
			AttackRange:       40,
			AttackDurationSec: 2,
			TakeoffSpeed:      15,
			LandingSpot:       [3]float32{0, 5, 50},
		},

		JoinRateLimitPerSec: 1,
		JoinRateBurst:       3,
	}
}

// LoadConfigFile decodes a YAML override file on top of DefaultConfig.
// Fields absent from the file keep their default value.
func LoadConfigFile(path string) (ServerConfig, error) {
	cfg := DefaultConfig()
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config %s: %w", path, err)
	}
	return cfg, nil
}

// SpawnAnchors are the fixed candidate spawn points jittered on join/respawn —
// the foot-of-hills anchors near the Tower of Hakutnas.
var SpawnAnchors = [3][3]float32{
	{-60.0, 2.0, -80.0},
	{-40.0, 2.0, -100.0},
	{-80.0, 2.0, -40.0},
}
