// cmd/preflight/main.go
package main

import (
	"context"
	"fmt"
	"net"
	"os"
	"time"

	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/hamed0406/turnprobe/internal/config"
	"github.com/hamed0406/turnprobe/internal/probe"
	"github.com/hamed0406/turnprobe/internal/repo/postgres"
)

func main() {
	fail := func(msg string) {
		fmt.Fprintln(os.Stderr, "✖", msg)
		os.Exit(1)
	}
	warn := func(msg string) { fmt.Fprintln(os.Stderr, "⚠", msg) }
	ok := func(msg string) { fmt.Println("✔", msg) }

	cfg, err := config.Load()
	if err != nil {
		for _, e := range multierr.Errors(err) {
			fmt.Fprintln(os.Stderr, "✖", e)
		}
		os.Exit(1)
	}
	ok("TURN_SERVER_ADDRESS=" + cfg.Address)
	if cfg.Secret == "" {
		warn("TURN_SERVER_SECRET empty; probing without static auth secret.")
	}

	bin, err := probe.LookupBinary(cfg.ProbeBinary)
	if err != nil {
		fail(err.Error())
	}
	ok("probe binary " + bin)

	if cfg.SoftTimeout+cfg.HardTimeout >= cfg.Interval {
		warn(fmt.Sprintf("PROBE_INTERVAL (%v) is not longer than soft+hard timeout (%v).",
			cfg.Interval, cfg.SoftTimeout+cfg.HardTimeout))
	}

	dir, err := os.MkdirTemp(cfg.WorkDir, "turnprobe-preflight-")
	if err != nil {
		fail("work dir not writable: " + err.Error())
	}
	_ = os.RemoveAll(dir)
	ok("work dir writable")

	ln, err := net.Listen("tcp", cfg.Addr)
	if err != nil {
		fail("METRICS_ADDR " + cfg.Addr + ": " + err.Error())
	}
	_ = ln.Close()
	ok("METRICS_ADDR=" + cfg.Addr)

	if len(cfg.MetricsToken) == 0 {
		warn("METRICS_TOKENS empty; /metrics is open to anyone who can reach it.")
	}

	if cfg.DatabaseURL == "" {
		warn("DATABASE_URL empty; probe history is kept in memory only.")
	} else {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		st, err := postgres.New(ctx, cfg.DatabaseURL, zap.NewNop())
		cancel()
		if err != nil {
			fail("DATABASE_URL: " + err.Error())
		}
		st.Close()
		ok("DATABASE_URL reachable")
	}

	if cfg.SlackWebhookURL == "" {
		warn("SLACK_WEBHOOK_URL empty; no alerts will be sent.")
	} else {
		ok("SLACK_WEBHOOK_URL present")
	}

	ok("preflight passed")
}
