// Command check-agent validates an ElevenLabs setup for the pizza agent: the
// API key, the agent, the WebSocket connection and the local tools.
//
// Usage:
//
//	ELEVENLABS_API_KEY=sk_... ELEVENLABS_AGENT_ID=... go run ./cmd/check-agent/
//	ELEVENLABS_API_KEY=sk_... go run ./cmd/check-agent/ -create
//
// Flags:
//
//	-list-voices    List available voices and exit
//	-create         Create a temporary agent with the pizzeria tools
//	-cleanup        Delete the temporary agent afterwards (default: true)
//	-order          Order ID to look up through the tools (default: 1234)
//	-timeout        Connection timeout (default: 30s)
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/teslashibe/go-pizza-agent/internal/config"
	"github.com/teslashibe/go-pizza-agent/internal/log"
	"github.com/teslashibe/go-pizza-agent/pkg/conversation"
	"github.com/teslashibe/go-pizza-agent/pkg/orders"
	"github.com/teslashibe/go-pizza-agent/pkg/tools"
)

const defaultVoiceID = "21m00Tcm4TlvDq8ikWAM" // Rachel

var (
	listVoices = flag.Bool("list-voices", false, "List available voices and exit")
	create     = flag.Bool("create", false, "Create a temporary agent with the pizzeria tools")
	cleanup    = flag.Bool("cleanup", true, "Delete the temporary agent afterwards")
	orderID    = flag.String("order", "1234", "Order ID to look up through the tools")
	timeout    = flag.Duration("timeout", 30*time.Second, "Connection timeout")
)

func main() {
	flag.Parse()

	cfg := config.Default()
	cfg.LoadEnv()
	log.Init(cfg.LogLevel)

	if cfg.APIKey == "" {
		fmt.Println("❌ ELEVENLABS_API_KEY environment variable required")
		os.Exit(1)
	}
	fmt.Printf("🔑 API Key: %s\n", cfg.MaskedAPIKey())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigChan
		fmt.Println("\n🛑 Interrupted, cleaning up...")
		cancel()
	}()

	if *listVoices {
		if err := printVoices(ctx, cfg.APIKey); err != nil {
			fmt.Printf("❌ Failed to list voices: %v\n", err)
			os.Exit(1)
		}
		return
	}

	if err := run(ctx, cfg); err != nil {
		fmt.Printf("\n❌ Check failed: %v\n", err)
		if conversation.IsAuthError(err) {
			fmt.Println("💡 The API key was rejected.")
		}
		os.Exit(1)
	}
	fmt.Println("\n✅ All checks passed!")
}

func run(ctx context.Context, cfg config.Config) error {
	fmt.Print("🍕 Checking local tools... ")
	reg := tools.NewRegistry(tools.Structured)
	store := orders.NewFileStore(cfg.OrdersPath, orders.WithAutoSeed(cfg.AutoSeed))
	if err := tools.RegisterBuiltins(reg, store, nil); err != nil {
		return err
	}
	res, err := reg.Dispatch(ctx, tools.ToolGetOrderStatus, map[string]any{"order_id": *orderID})
	if err != nil {
		return fmt.Errorf("%s: %w", tools.ToolGetOrderStatus, err)
	}
	fmt.Println("✅")
	fmt.Printf("   %s(%s) -> %s\n", tools.ToolGetOrderStatus, *orderID, res)

	opts := []conversation.Option{
		conversation.WithAPIKey(cfg.APIKey),
		conversation.WithTimeout(*timeout),
		conversation.WithLogger(log.L()),
	}
	if *create {
		voice := cfg.VoiceID
		if voice == "" {
			voice = defaultVoiceID
		}
		var agentTools []conversation.Tool
		for _, d := range reg.Definitions() {
			agentTools = append(agentTools, conversation.Tool{Name: d.Name, Description: d.Description, Parameters: d.Parameters})
		}
		opts = append(opts,
			conversation.WithVoiceID(voice),
			conversation.WithLLM(cfg.LLM),
			conversation.WithAgentName("pizza-agent-check"),
			conversation.WithAutoCreateAgent(true),
			conversation.WithTools(agentTools...),
		)
	} else {
		opts = append(opts, conversation.WithAgentID(cfg.AgentID))
	}

	fmt.Print("📝 Creating ElevenLabs provider... ")
	provider, err := conversation.NewElevenLabs(opts...)
	if err != nil {
		fmt.Println("❌")
		return err
	}
	fmt.Println("✅")

	if *create {
		defer func() {
			if !*cleanup || provider.AgentID() == "" {
				return
			}
			fmt.Printf("🧹 Deleting agent %s... ", provider.AgentID())
			delCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			if err := provider.DeleteAgent(delCtx); err != nil {
				fmt.Printf("⚠️  %v\n", err)
			} else {
				fmt.Println("✅")
			}
		}()
	} else {
		fmt.Print("🔎 Verifying agent... ")
		if err := provider.VerifyAgent(ctx); err != nil {
			fmt.Println("❌")
			return err
		}
		fmt.Println("✅")
	}

	greeting := make(chan string, 1)
	provider.OnTranscript(func(role, text string, isFinal bool) {
		if role == conversation.RoleAgent && isFinal {
			select {
			case greeting <- text:
			default:
			}
		}
	})
	provider.OnError(func(err error) {
		fmt.Printf("⚠️  Error: %v\n", err)
	})

	fmt.Print("🔌 Connecting to ElevenLabs... ")
	connectCtx, connectCancel := context.WithTimeout(ctx, *timeout)
	defer connectCancel()
	if err := provider.Connect(connectCtx); err != nil {
		fmt.Println("❌")
		return fmt.Errorf("connect: %w", err)
	}
	fmt.Println("✅")
	fmt.Printf("📋 Agent ID: %s\n", provider.AgentID())
	fmt.Printf("📋 Conversation ID: %s\n", provider.ConversationID())

	// The first message arrives without any user audio.
	select {
	case text := <-greeting:
		fmt.Printf("🤖 Agent: %s\n", text)
	case <-time.After(5 * time.Second):
		fmt.Println("⏳ No greeting within 5s (check the agent's first message)")
	case <-ctx.Done():
	}

	fmt.Print("🔌 Disconnecting... ")
	if err := provider.Close(); err != nil {
		fmt.Printf("⚠️  %v\n", err)
	} else {
		fmt.Println("✅")
	}
	return ctx.Err()
}

func printVoices(ctx context.Context, apiKey string) error {
	provider, err := conversation.NewElevenLabs(
		conversation.WithAPIKey(apiKey),
		conversation.WithAutoCreateAgent(true),
		conversation.WithVoiceID(defaultVoiceID),
	)
	if err != nil {
		return err
	}
	voices, err := provider.ListVoices(ctx)
	if err != nil {
		return err
	}

	fmt.Printf("\n🎤 Available Voices (%d):\n\n", len(voices))
	fmt.Printf("%-30s %-25s %s\n", "NAME", "VOICE ID", "CATEGORY")
	fmt.Println(strings.Repeat("-", 80))
	for _, v := range voices {
		name := v.Name
		if len(name) > 28 {
			name = name[:25] + "..."
		}
		fmt.Printf("%-30s %-25s %s\n", name, v.VoiceID, v.Category)
	}

	fmt.Println()
	fmt.Println("Usage:")
	fmt.Println("  ELEVENLABS_VOICE_ID=<voice_id> go run ./cmd/pizza-agent/ -create-agent")
	fmt.Println()
	return nil
}
