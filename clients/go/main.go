// Relay CLI - joins a product room and chats from the terminal.
package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"prodRelayWs/clients/go/relay"
)

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(1)
	}
	roomID := os.Args[1]
	username := os.Getenv("RELAY_USERNAME")
	if username == "" {
		username = "Anonymous"
	}
	relayURL := os.Getenv("RELAY_URL")
	if relayURL == "" {
		relayURL = "ws://localhost:3001/ws"
	}

	adapter, err := relay.Dial(context.Background(), relay.Config{
		URL:   relayURL,
		Token: os.Getenv("RELAY_TOKEN"),
		Handlers: relay.Handlers{
			OnConnect: func(id string) {
				fmt.Printf("* connected as %s\n", id)
			},
			OnDisconnect: func(err error) {
				fmt.Fprintf(os.Stderr, "* connection lost: %v\n", err)
				os.Exit(1)
			},
			OnHistory: func(roomID string, messages []relay.ChatMessage) {
				for _, msg := range messages {
					printMessage(msg)
				}
			},
			OnMessage: printMessage,
			OnProductCreated: func(p relay.Product) {
				fmt.Printf("* product created: %s (%s)\n", p.Title, p.ID)
			},
			OnProductUpdated: func(p relay.Product) {
				fmt.Printf("* product updated: %s (%s)\n", p.Title, p.ID)
			},
			OnProductDeleted: func(id string) {
				fmt.Printf("* product deleted: %s\n", id)
			},
		},
	})
	exitOnError(err)
	defer adapter.Close()

	exitOnError(adapter.JoinRoom(roomID))
	fmt.Printf("* joined room %s as %s, type to chat\n", roomID, username)

	scanner := bufio.NewScanner(os.Stdin)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if line == "/quit" {
			return
		}
		if err := adapter.SendMessage(roomID, line, username); err != nil {
			fmt.Fprintln(os.Stderr, "send failed:", err)
		}
	}
}

func printMessage(msg relay.ChatMessage) {
	ts := msg.CreatedAt.Local().Format(time.Kitchen)
	fmt.Printf("[%s] %s: %s\n", ts, msg.Username, msg.Body)
}

func usage() {
	fmt.Println(`Relay CLI - product room chat

Usage: relay-cli <room_id>

Environment:
  RELAY_URL       Relay websocket URL (default: ws://localhost:3001/ws)
  RELAY_USERNAME  Display name for sent messages
  RELAY_TOKEN     Optional identity token`)
}

func exitOnError(err error) {
	if err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
