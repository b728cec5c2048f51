// Command pizza-agent runs the pizzeria voice support agent: it connects an
// ElevenLabs agent to the order-status and discount tools and serves the
// fulfillment dashboard.
//
// Usage:
//
//	ELEVENLABS_API_KEY=sk_... ELEVENLABS_AGENT_ID=... go run ./cmd/pizza-agent/
//	ELEVENLABS_API_KEY=sk_... ELEVENLABS_VOICE_ID=... go run ./cmd/pizza-agent/ -create-agent
//
// Flags:
//
//	-orders         Path to the orders JSON file (default: orders.json)
//	-store          Order store: file or postgres (default: file)
//	-mode           Tool response mode: structured or speech (default: structured)
//	-port           Dashboard port (default: 8501)
//	-no-dashboard   Start a call immediately and exit when it ends
//	-create-agent   Create the agent with the pizzeria tools before connecting
//	-drain-delay    Wait after the agent says goodbye (default: 2s)
//	-debug          Enable debug logging
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/teslashibe/go-pizza-agent/internal/config"
	"github.com/teslashibe/go-pizza-agent/internal/log"
	"github.com/teslashibe/go-pizza-agent/pkg/bridge"
	"github.com/teslashibe/go-pizza-agent/pkg/conversation"
	"github.com/teslashibe/go-pizza-agent/pkg/notify"
	"github.com/teslashibe/go-pizza-agent/pkg/observe"
	"github.com/teslashibe/go-pizza-agent/pkg/orders"
	"github.com/teslashibe/go-pizza-agent/pkg/session"
	"github.com/teslashibe/go-pizza-agent/pkg/tools"
	"github.com/teslashibe/go-pizza-agent/pkg/web"
)

func main() {
	cfg := config.Default()
	cfg.LoadEnv()

	var noDashboard, debug bool
	flag.StringVar(&cfg.OrdersPath, "orders", cfg.OrdersPath, "Path to the orders JSON file")
	flag.StringVar(&cfg.Store, "store", cfg.Store, "Order store: file or postgres")
	flag.StringVar(&cfg.ResponseMode, "mode", cfg.ResponseMode, "Tool response mode: structured or speech")
	flag.StringVar(&cfg.DashboardPort, "port", cfg.DashboardPort, "Dashboard port")
	flag.BoolVar(&noDashboard, "no-dashboard", false, "Start a call immediately and exit when it ends")
	flag.BoolVar(&cfg.CreateAgent, "create-agent", cfg.CreateAgent, "Create the agent with the pizzeria tools before connecting")
	flag.DurationVar(&cfg.DrainDelay, "drain-delay", cfg.DrainDelay, "Wait after the agent says goodbye before hanging up")
	flag.BoolVar(&debug, "debug", false, "Enable debug logging")
	flag.Parse()

	cfg.DashboardEnabled = !noDashboard
	if debug {
		cfg.LogLevel = "debug"
	}
	log.Init(cfg.LogLevel)

	fmt.Println("🍕 Pizza Support Agent")
	fmt.Println("======================")

	if err := cfg.Validate(); err != nil {
		fmt.Printf("❌ %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("🔑 API Key: %s\n", cfg.MaskedAPIKey())
	fmt.Printf("💬 Response mode: %s\n", cfg.ResponseMode)

	if err := run(cfg); err != nil {
		fmt.Printf("\n❌ %v\n", err)
		printTroubleshooting(err)
		os.Exit(1)
	}
	fmt.Println("👋 Goodbye!")
}

func run(cfg config.Config) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	store, closeStore, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeStore()

	// Observation fan-out: the dashboard channel, plus AMQP when configured.
	ch := observe.NewChannel(observe.DefaultCapacity)
	fanout := bridge.Fanout{ch}
	if cfg.AMQPURL != "" {
		sink, err := notify.DialAMQP(cfg.AMQPURL, cfg.AMQPExchange)
		if err != nil {
			fmt.Printf("⚠️  AMQP unavailable, tool events stay local: %v\n", err)
		} else {
			defer sink.Close()
			fanout = append(fanout, sink)
			fmt.Printf("📨 Publishing tool events to exchange %s\n", cfg.AMQPExchange)
		}
	}

	convention, err := tools.ParseConvention(cfg.ResponseMode)
	if err != nil {
		return err
	}
	reg := tools.NewRegistry(convention)
	reg.Use(bridge.Middleware(fanout))
	if err := tools.RegisterBuiltins(reg, store, nil); err != nil {
		return fmt.Errorf("register tools: %w", err)
	}

	tracker := observe.NewTracker()
	go tracker.Poll(ctx, ch, cfg.PollInterval)

	if cfg.CreateAgent && cfg.AgentID == "" {
		id, err := createAgent(ctx, cfg, reg.Definitions())
		if err != nil {
			return err
		}
		cfg.AgentID = id
		fmt.Printf("🤖 Created agent %s (set ELEVENLABS_AGENT_ID to reuse it)\n", id)
	}

	mgr := session.NewManager(func() (*session.Session, error) {
		provider, err := conversation.NewElevenLabs(
			conversation.WithAPIKey(cfg.APIKey),
			conversation.WithAgentID(cfg.AgentID),
			conversation.WithLogger(log.L()),
		)
		if err != nil {
			return nil, err
		}
		return session.New(provider, reg, session.WithDrainDelay(cfg.DrainDelay)), nil
	})

	if !cfg.DashboardEnabled {
		tracker.OnChange(func(r observe.Record) {
			fmt.Printf("📦 Order %s: %s (%d%%)\n", r.OrderID, displayStatus(r.Status), orders.Progress(r.Status))
		})
		return runHeadless(ctx, mgr, sigChan)
	}

	server := web.NewServer(cfg.DashboardPort, mgr, reg, tracker)
	errc := make(chan error, 1)
	go func() { errc <- server.Run(ctx) }()

	fmt.Printf("🌐 Dashboard: http://localhost:%s\n", cfg.DashboardPort)
	fmt.Println("📞 Start a call from the dashboard (POST /api/session/start). Ctrl+C to quit.")

	select {
	case <-sigChan:
		fmt.Println("\n🛑 Shutting down...")
	case err := <-errc:
		mgr.Stop()
		if err != nil {
			return fmt.Errorf("dashboard: %w", err)
		}
		return nil
	}

	mgr.Stop()
	cancel()

	select {
	case err := <-errc:
		if err != nil {
			log.Warn("dashboard shutdown", "error", err)
		}
	case <-time.After(6 * time.Second):
		log.Warn("dashboard did not shut down in time")
	}
	return nil
}

// runHeadless starts one call and returns when it ends or on a signal.
func runHeadless(ctx context.Context, mgr *session.Manager, sigChan <-chan os.Signal) error {
	fmt.Println("📞 Connecting to agent...")

	connectCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	type started struct {
		sess *session.Session
		err  error
	}
	startc := make(chan started, 1)
	go func() {
		sess, err := mgr.Start(connectCtx)
		startc <- started{sess, err}
	}()

	var res started
	select {
	case <-sigChan:
		fmt.Println("\n🛑 Cancelling call...")
		mgr.Stop()
		res = <-startc
		if errors.Is(res.err, session.ErrStopped) {
			return nil
		}
	case res = <-startc:
	}
	if res.err != nil {
		return res.err
	}

	fmt.Println("🎙️  Agent is connected. No local audio device is attached; plug one in with session.WithAudio.")
	fmt.Println("   Ctrl+C to end the call.")

	select {
	case <-sigChan:
		fmt.Println("\n🛑 Ending call...")
		mgr.Stop()
	case <-res.sess.Done():
		fmt.Println("📴 Call ended")
	}
	return nil
}

func openStore(ctx context.Context, cfg config.Config) (orders.Store, func(), error) {
	switch cfg.Store {
	case config.StorePostgres:
		pg, err := orders.ConnectPG(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, nil, fmt.Errorf("connect order database: %w", err)
		}
		fmt.Println("🗄️  Orders: postgres")
		return pg, pg.Close, nil

	default:
		fs := orders.NewFileStore(cfg.OrdersPath, orders.WithAutoSeed(cfg.AutoSeed))
		if cfg.AutoSeed {
			created, err := fs.EnsureSeed()
			if err != nil {
				return nil, nil, fmt.Errorf("seed orders: %w", err)
			}
			if created {
				fmt.Printf("📦 Created %s with sample orders\n", fs.Path())
			}
		}
		fmt.Printf("🗄️  Orders: %s\n", fs.Path())
		return fs, func() {}, nil
	}
}

func createAgent(ctx context.Context, cfg config.Config, defs []tools.Definition) (string, error) {
	agentTools := make([]conversation.Tool, 0, len(defs))
	for _, d := range defs {
		agentTools = append(agentTools, conversation.Tool{
			Name:        d.Name,
			Description: d.Description,
			Parameters:  d.Parameters,
		})
	}

	fmt.Print("📝 Creating ElevenLabs agent... ")
	provider, err := conversation.NewElevenLabs(
		conversation.WithAPIKey(cfg.APIKey),
		conversation.WithVoiceID(cfg.VoiceID),
		conversation.WithLLM(cfg.LLM),
		conversation.WithAutoCreateAgent(true),
		conversation.WithTools(agentTools...),
		conversation.WithLogger(log.L()),
	)
	if err != nil {
		fmt.Println("❌")
		return "", err
	}

	id, err := provider.EnsureAgent(ctx)
	if err != nil {
		fmt.Println("❌")
		return "", err
	}
	fmt.Println("✅")
	return id, nil
}

func displayStatus(s string) string {
	if s == "" {
		return "Unknown"
	}
	return s
}

func printTroubleshooting(err error) {
	var cfgErr *config.ConfigError
	switch {
	case conversation.IsAuthError(err):
		fmt.Println("💡 Check ELEVENLABS_API_KEY: the key was rejected.")
	case errors.Is(err, conversation.ErrAgentNotFound):
		fmt.Println("💡 Check ELEVENLABS_AGENT_ID, or use -create-agent with ELEVENLABS_VOICE_ID.")
	case errors.Is(err, orders.ErrStoreUnavailable):
		fmt.Println("💡 Check the order store: the file must be a JSON object of order id to status.")
	case errors.As(err, &cfgErr):
		fmt.Printf("💡 Fix the %s setting.\n", cfgErr.Field)
	default:
		fmt.Println("💡 Check your network connection and that the agent exists in the ElevenLabs dashboard.")
	}
}
