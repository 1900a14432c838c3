package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Settings holds everything the process reads from the environment.
// Loaded once in main and passed down; services never read env themselves.
type Settings struct {
	// Path of the on-device sqlite file.
	LocalDBPath string

	// Remote entity store.
	RemoteBaseURL string
	RemoteAPIKey  string
	RemoteTimeout time.Duration

	// Sync manager.
	SyncInterval time.Duration

	// Connectivity probe.
	ProbeInterval time.Duration

	// Loopback status API for the UI shell.
	ListenAddr string
}

func Load() Settings {
	// Load env from .env; missing file is fine on the device.
	godotenv.Load()

	return Settings{
		LocalDBPath:   stringFromEnv("FISCALIZA_DB_PATH", "fiscaliza.db"),
		RemoteBaseURL: stringFromEnv("FISCALIZA_REMOTE_BASE_URL", "https://api.agems.example"),
		RemoteAPIKey:  strings.TrimSpace(os.Getenv("FISCALIZA_REMOTE_API_KEY")),
		RemoteTimeout: durationFromEnv("FISCALIZA_REMOTE_TIMEOUT_SECONDS", 30),
		SyncInterval:  durationFromEnv("FISCALIZA_SYNC_INTERVAL_SECONDS", 30),
		ProbeInterval: durationFromEnv("FISCALIZA_PROBE_INTERVAL_SECONDS", 15),
		ListenAddr:    stringFromEnv("FISCALIZA_LISTEN_ADDR", "127.0.0.1:8787"),
	}
}

func stringFromEnv(key, def string) string {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	return v
}

func intFromEnv(key string, def int) int {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}

func durationFromEnv(key string, defSeconds int) time.Duration {
	return time.Duration(intFromEnv(key, defSeconds)) * time.Second
}
