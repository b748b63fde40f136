// Package main is a terminal client for spoken journaling sessions.
//
// It connects to a journal relay, streams microphone audio, plays the
// assistant's replies, and stores the finished transcript as a journal
// entry.
//
// Usage:
//
//	go run ./cmd/voxjournal -session reflection
//
// Environment variables:
//
//	VOXJOURNAL_RELAY_URL - websocket relay endpoint (default ws://localhost:8000/voice)
//	VOXJOURNAL_API_URL   - journal service base URL (default http://localhost:8000)
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	engine "github.com/mzoric/voxjournal/core"
	"github.com/mzoric/voxjournal/core/audio/miniaudio"
	"github.com/mzoric/voxjournal/core/journal"
	"github.com/mzoric/voxjournal/core/realtime"
)

func main() {
	_ = godotenv.Load()

	sessionType := flag.String("session", journal.SessionReflection,
		"session type: reflection, planning, notes or goals")
	relayURL := flag.String("relay", envOr("VOXJOURNAL_RELAY_URL", "ws://localhost:8000/voice"),
		"websocket relay endpoint")
	journalURL := flag.String("journal", envOr("VOXJOURNAL_API_URL", "http://localhost:8000"),
		"journal service base URL")
	flag.Parse()

	if !journal.IsKnownSessionType(*sessionType) {
		log.Fatalf("unknown session type %q", *sessionType)
	}

	audioClient, err := miniaudio.NewClient()
	if err != nil {
		log.Fatalf("failed to open audio devices: %v", err)
	}
	defer audioClient.Close()

	e := engine.NewEngine(
		engine.WithRelayClient(realtime.NewClient(*relayURL)),
		engine.WithAudioInput(audioClient),
		engine.WithAudioOutput(audioClient),
		engine.WithPersistence(journal.NewClient(*journalURL)),
		engine.WithSessionType(*sessionType),
		engine.WithInstructions(journal.VoiceInstructions(*sessionType)),
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigChan
		fmt.Println("\nEnding session...")
		e.End()
	}()

	fmt.Println(journal.OpeningMessage(*sessionType))
	fmt.Println("Speak when ready; pause to let the assistant respond. Ctrl-C ends the session.")
	fmt.Println()

	err = e.Run(ctx,
		engine.WithOnStateChanged(func(state engine.State) {
			if state == engine.StateListening {
				fmt.Println("[listening]")
			}
		}),
		engine.WithOnUserTranscript(func(transcript string) {
			fmt.Printf("you: %s\n", transcript)
		}),
		engine.WithOnAssistantResponse(func(text string) {
			fmt.Printf("assistant: %s\n", text)
		}),
	)
	if err != nil {
		log.Fatalf("session failed: %v", err)
	}

	fmt.Println("Session saved. Goodbye!")
}

func envOr(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}
