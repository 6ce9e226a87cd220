package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/luis-byt/aware-chat/internal/model/chat"
)

// Config aggregates everything the embedded client needs to reach its backend.
type Config struct {
	Client ClientConfig
	Server ServerConfig
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	client, err := loadClientConfig()
	if err != nil {
		return nil, err
	}

	server, err := loadServerConfig()
	if err != nil {
		return nil, err
	}

	return &Config{Client: client, Server: server}, nil
}

// ClientConfig identifies the backend endpoints and the local user.
type ClientConfig struct {
	APIBaseURL string
	WSBaseURL  string
	Token      string
	UserID     string
	Role       chat.Role
}

func loadClientConfig() (ClientConfig, error) {
	apiBase := getEnvOrDefault("CHAT_API_URL", "http://localhost:8080")
	wsBase := strings.TrimSpace(os.Getenv("CHAT_WS_URL"))
	if wsBase == "" {
		// Derive the ws endpoint from the API endpoint when not set.
		wsBase = strings.Replace(apiBase, "http", "ws", 1)
	}

	role := chat.Role(getEnvOrDefault("CHAT_ROLE", string(chat.RolePatient)))
	if !role.Valid() {
		return ClientConfig{}, fmt.Errorf("invalid CHAT_ROLE value %q: want %q or %q", role, chat.RoleDoctor, chat.RolePatient)
	}

	return ClientConfig{
		APIBaseURL: strings.TrimRight(apiBase, "/"),
		WSBaseURL:  strings.TrimRight(wsBase, "/"),
		Token:      strings.TrimSpace(os.Getenv("CHAT_TOKEN")),
		UserID:     strings.TrimSpace(os.Getenv("CHAT_USER_ID")),
		Role:       role,
	}, nil
}

// ServerConfig describes the dev stub server listener.
type ServerConfig struct {
	Addr string
}

func loadServerConfig() (ServerConfig, error) {
	port := strings.TrimSpace(os.Getenv("PORT"))
	if port == "" {
		port = "8080"
	}

	if strings.Contains(port, ":") {
		// Accept ":8080" or "127.0.0.1:8080" as-is.
		return ServerConfig{Addr: port}, nil
	}

	if strings.Contains(port, " ") {
		return ServerConfig{}, fmt.Errorf("invalid PORT value: %q", port)
	}

	return ServerConfig{Addr: ":" + port}, nil
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		return value
	}
	return defaultValue
}
