package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/wolfman30/appointment-assistant/cmd/mainconfig"
	"github.com/wolfman30/appointment-assistant/internal/appointments"
	"github.com/wolfman30/appointment-assistant/internal/assistant"
	appconfig "github.com/wolfman30/appointment-assistant/internal/config"
	"github.com/wolfman30/appointment-assistant/pkg/logging"
)

// Runs a scripted booking conversation against the configured provider.
func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	provider := flag.String("provider", "", "override LLM_PROVIDER (openai, bedrock, gemini)")
	flag.Parse()

	cfg := appconfig.Load()
	if *provider != "" {
		cfg.LLMProvider = strings.ToLower(*provider)
		cfg.LLMFallbackProvider = ""
	}
	logger := logging.New("warn")

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	llm, closeLLM, err := mainconfig.NewLLMClient(ctx, cfg, logger)
	if err != nil {
		fmt.Printf("❌ Failed to create %s client: %v\n", cfg.LLMProvider, err)
		os.Exit(1)
	}
	defer closeLLM()

	finder := appointments.NewFinder(appointments.NewNormalizer(time.Now, cfg.Location()), nil)
	agent := assistant.NewAgent(llm, finder,
		assistant.WithTimeout(cfg.LLMTimeout),
		assistant.WithLogger(logger),
	)

	script := []string{
		"Hi, I'd like to book a check-up sometime next week, mornings if possible.",
		"Actually I can't do Wednesday. Anything with Dr. Smith?",
		"The first one works for me.",
	}

	fmt.Println(strings.Repeat("=", 60))
	fmt.Printf("Booking conversation test (%s)\n", cfg.LLMProvider)
	fmt.Println(strings.Repeat("=", 60))

	var session assistant.Session
	for i, message := range script {
		fmt.Printf("\n[%d] user: %s\n", i+1, message)

		start := time.Now()
		res := agent.Turn(ctx, assistant.TurnInput{ConversationID: "llmtest", Message: message, Session: session})
		elapsed := time.Since(start).Round(time.Millisecond)

		fmt.Printf("    assistant (%v, %s): %s\n", elapsed, res.Outcome, res.Reply)
		if res.Tool != "" {
			fmt.Printf("    tool: %s\n", res.Tool)
		}
		if len(res.Session.Offer) > 0 {
			fmt.Printf("    offer: %s\n", strings.Join(res.Session.Offer, " | "))
		}
		if res.Err != nil {
			fmt.Printf("    error: %v\n", res.Err)
		}
		if res.Outcome == assistant.OutcomeTransportError {
			fmt.Println("\n❌ Provider call failed; check credentials and model id")
			os.Exit(1)
		}

		session = res.Session
		if res.Selection != nil {
			fmt.Printf("\n✅ Booked %s\n", res.Selection.Value)
			return
		}
	}

	fmt.Println("\n⚠️  Script finished without a confirmed selection")
}
