package main

import (
	"flag"
	"fmt"
	"net/http"
	"os"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/google/uuid"
)

type ConsoleConfig struct {
	ServerURL string
	PlayerID  uuid.UUID
	Timeout   time.Duration
}

func main() {
	player := flag.String("player", getEnv("PLAYER_ID", ""), "player id to join as (new id when empty)")
	flag.Parse()

	cfg := &ConsoleConfig{
		ServerURL: getEnv("SERVER_URL", "http://localhost:8080"),
		Timeout:   10 * time.Second,
	}
	if *player == "" {
		cfg.PlayerID = uuid.New()
	} else {
		id, err := uuid.Parse(*player)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Invalid player id: %v\n", err)
			os.Exit(1)
		}
		cfg.PlayerID = id
	}

	if !testConnection(&http.Client{Timeout: cfg.Timeout}, cfg.ServerURL) {
		fmt.Fprintf(os.Stderr, "Could not connect to server. Please ensure the server is running.\nTry: docker-compose up -d\n")
		os.Exit(1)
	}

	conn, err := Dial(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to join: %v\n", err)
		os.Exit(1)
	}
	defer func() {
		_ = conn.Close()
	}()

	p := tea.NewProgram(NewConsoleUI(cfg, conn),
		tea.WithAltScreen(),
		tea.WithMouseCellMotion())
	go conn.ReadLoop(p)

	if _, err := p.Run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error running program: %v\n", err)
		os.Exit(1)
	}
}

func testConnection(client *http.Client, baseURL string) bool {
	resp, err := client.Get(baseURL + "/health")
	if err != nil {
		return false
	}
	defer func() {
		_ = resp.Body.Close() // Ignore error in defer
	}()
	return resp.StatusCode == http.StatusOK
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
