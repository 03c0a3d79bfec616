package main

import (
	"context"
	"flag"
	"fmt"
	"net"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
)

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	fs := flag.NewFlagSet("landskeeper-server", flag.ContinueOnError)
	multiplayerTest := fs.Bool("multiplayer-test", false, "disable NPC AI (chasers idle, patrollers patrol but never attack)")
	configPath := fs.String("config", "", "optional YAML file overriding default tunables")
	if err := fs.Parse(args); err != nil {
		return 1
	}

	cfg := DefaultConfig()
	if *configPath != "" {
		loaded, err := LoadConfigFile(*configPath)
		if err != nil {
			zap.S().Errorw("failed to load config", "error", err)
			return 1
		}
		cfg = loaded
	}
	fs.Visit(func(f *flag.Flag) {
		if f.Name == "multiplayer-test" {
			cfg.MultiplayerTest = *multiplayerTest
		}
	})

	if rest := fs.Args(); len(rest) > 0 {
		port, err := strconv.Atoi(rest[0])
		if err != nil {
			zap.S().Errorw("invalid port argument", "value", rest[0])
			return 1
		}
		cfg.Port = port
	}

	logger, err := zap.NewProduction()
	if err != nil {
		fmt.Fprintln(os.Stderr, "logger init failed:", err)
		return 1
	}
	defer logger.Sync()

	addr := &net.UDPAddr{Port: cfg.Port}
	conn, err := net.ListenUDP("udp", addr)
	if err != nil {
		logger.Error("bind failed", zap.Error(err), zap.Int("port", cfg.Port))
		return 1
	}
	defer conn.Close()

	metrics := NewMetrics(prometheus.NewRegistry())
	server := NewServer(cfg, conn, time.Now().UnixNano(), logger, metrics)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	logger.Info("server listening", zap.Int("port", cfg.Port), zap.Bool("multiplayer_test", cfg.MultiplayerTest))
	if err := server.Run(ctx); err != nil {
		logger.Error("run failed", zap.Error(err))
		return 1
	}
	logger.Info("server shut down cleanly")
	return 0
}
