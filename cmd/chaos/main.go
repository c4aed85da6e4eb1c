// cmd/chaos/main.go
package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"posnexus/internal/chaos"
	"posnexus/internal/obs"
)

func main() {
	checkouts := flag.Int("checkouts", 200, "checkouts per experiment")
	seed := flag.Uint64("seed", uint64(time.Now().UnixNano()), "fault injection seed")
	commitTimeout := flag.Duration("commit-timeout", 50*time.Millisecond, "reconciler commit timeout")
	observe := flag.Duration("observe", 2*time.Second, "observation window per experiment")
	pause := flag.Duration("pause", time.Second, "pause between experiments")
	flag.Parse()

	logger, err := obs.NewLogger(os.Getenv("LOG_LEVEL"), true)
	if err != nil {
		panic(err)
	}
	defer logger.Sync()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	lab := chaos.Lab{
		Checkouts: *checkouts,
		Options: chaos.WorkloadOptions{
			Seed:          *seed,
			CommitTimeout: *commitTimeout,
			FlapPeriod:    5,
		},
		Duration:    *observe,
		SampleEvery: 200 * time.Millisecond,
		Logger:      zap.NewNop(),
	}

	engine := chaos.NewEngine(logger)
	held, err := engine.ExecuteGameDay(ctx, chaos.GameDay{
		Name:      "Checkout resilience game day",
		Date:      time.Now(),
		Scenarios: lab.Experiments(),
		Pause:     *pause,
	})
	if err != nil {
		logger.Fatal("chaos game day failed", zap.Error(err))
	}
	if !held {
		logger.Error("at least one hypothesis was violated", zap.Uint64("seed", *seed))
		os.Exit(1)
	}
	logger.Info("all hypotheses held", zap.Uint64("seed", *seed))
}
