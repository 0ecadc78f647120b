package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/grafana/pyroscope-go"
	"github.com/yanun0323/logs"

	"botnode/internal/audit"
	"botnode/internal/config"
	"botnode/internal/control"
	"botnode/internal/engine"
	"botnode/internal/marketdata"
	"botnode/internal/marketdata/ftx"
	"botnode/internal/model"
	"botnode/pkg/ring"
	"botnode/pkg/shutdown"
)

const drainTimeout = 10 * time.Second

func main() {
	var (
		configPath = flag.String("config", "", "path to YAML config file")
		serverAddr = flag.String("server", "", "control server address (overrides config)")
		botID      = flag.String("bot-id", "", "bot identifier (overrides config)")
	)
	flag.Parse()

	cfg := config.Default()
	if *configPath != "" {
		loaded, err := config.Load(*configPath)
		if err != nil {
			logs.Errorf("load config %s: %v", *configPath, err)
			os.Exit(1)
		}
		cfg = loaded
	}
	if *serverAddr != "" {
		cfg.Server.Addr = *serverAddr
	}
	if *botID != "" {
		cfg.BotID = *botID
	}
	if cfg.Server.Addr == "" || cfg.BotID == "" {
		logs.Errorf("server address and bot id are required (config file or -server/-bot-id flags)")
		os.Exit(1)
	}

	if addr := cfg.Profiling.PyroscopeAddr; addr != "" {
		profiler, err := pyroscope.Start(pyroscope.Config{
			ApplicationName: "botnode",
			ServerAddress:   addr,
			ProfileTypes: []pyroscope.ProfileType{
				pyroscope.ProfileCPU,
				pyroscope.ProfileAllocObjects,
				pyroscope.ProfileAllocSpace,
				pyroscope.ProfileInuseObjects,
				pyroscope.ProfileInuseSpace,
			},
		})
		if err != nil {
			logs.Warnf("start pyroscope: %v", err)
		} else {
			defer profiler.Stop()
		}
	}

	adapter, ok := newAdapter(cfg.MarketData.Exchange)
	if !ok {
		logs.Errorf("unknown exchange %q", cfg.MarketData.Exchange)
		os.Exit(1)
	}

	sd := shutdown.New()

	ctl := control.New(control.Config{
		BotID:        model.BotID(cfg.BotID),
		ServerAddr:   cfg.Server.Addr,
		PingInterval: cfg.Server.PingInterval(),
		RingSize:     cfg.Engines.RingSize,
	})
	md := marketdata.New(marketdata.Config{
		Adapter:  adapter,
		Symbols:  cfg.MarketData.Markets,
		RingSize: cfg.Engines.RingSize,
	})
	aud := audit.New(audit.Config{
		StatusRx: ctl.DataRx(),
		MarketRx: []*ring.Receiver[model.MarketEvent]{md.DataRx()},
	})

	logs.Infof("botnode %s starting, control server %s", cfg.BotID, cfg.Server.Addr)

	engine.Start(cfg.Engines.ControlCPU, ctl, sd)
	engine.Start(cfg.Engines.MarketDataCPU, md, sd)
	engine.Start(cfg.Engines.AuditCPU, aud, sd)

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig
	logs.Infof("signal received, shutting down")
	sd.Trigger()

	ctx, cancel := context.WithTimeout(context.Background(), drainTimeout)
	defer cancel()
	if err := sd.WaitComplete(ctx); err != nil {
		logs.Warnf("shutdown drain timed out: %v", err)
		return
	}
	logs.Infof("botnode stopped")
}

func newAdapter(exchange string) (marketdata.Adapter, bool) {
	switch exchange {
	case "", "ftx":
		return ftx.New(), true
	default:
		return nil, false
	}
}
