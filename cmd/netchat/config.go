package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/danmuck/netchat/internal/client"
	"github.com/danmuck/netchat/internal/server"
)

type fileConfig struct {
	ListenHost      string `toml:"listen_host"`
	Port            int    `toml:"port"`
	PollTimeout     string `toml:"poll_timeout"`
	RecvChunkBytes  int    `toml:"recv_chunk_bytes"`
	MaxPayloadBytes int64  `toml:"max_payload_bytes"`
	DefaultName     string `toml:"default_name"`
	DefaultColor    string `toml:"default_color"`
	ServerHost      string `toml:"server_host"`
	MetricsAddr     string `toml:"metrics_addr"`
}

type appConfig struct {
	Server      server.Config
	Client      client.Config
	MetricsAddr string
}

func defaultAppConfig() appConfig {
	return appConfig{
		Server: server.DefaultConfig(),
		Client: client.DefaultConfig(),
	}
}

// loadConfig overlays path onto the defaults. An empty path keeps defaults.
func loadConfig(path string) (appConfig, error) {
	cfg := defaultAppConfig()
	path = strings.TrimSpace(path)
	if path == "" {
		return cfg, nil
	}

	var raw fileConfig
	meta, err := toml.DecodeFile(path, &raw)
	if err != nil {
		return appConfig{}, fmt.Errorf("load netchat config: %w", err)
	}

	if meta.IsDefined("listen_host") {
		cfg.Server.ListenHost = strings.TrimSpace(raw.ListenHost)
	}

	if meta.IsDefined("port") {
		if raw.Port <= 0 || raw.Port > 65535 {
			return appConfig{}, fmt.Errorf("parse port: out of range: %d", raw.Port)
		}
		cfg.Server.Port = raw.Port
		cfg.Client.Port = raw.Port
	}

	if meta.IsDefined("poll_timeout") {
		d, err := time.ParseDuration(strings.TrimSpace(raw.PollTimeout))
		if err != nil {
			return appConfig{}, fmt.Errorf("parse poll_timeout: %w", err)
		}
		if d <= 0 {
			return appConfig{}, fmt.Errorf("parse poll_timeout: must be positive: %s", d)
		}
		cfg.Server.PollTimeout = d
		cfg.Client.PollTimeout = d
	}

	if meta.IsDefined("recv_chunk_bytes") {
		if raw.RecvChunkBytes <= 0 {
			return appConfig{}, fmt.Errorf("parse recv_chunk_bytes: must be positive: %d", raw.RecvChunkBytes)
		}
		cfg.Server.RecvChunkBytes = raw.RecvChunkBytes
		cfg.Client.RecvChunkBytes = raw.RecvChunkBytes
	}

	if meta.IsDefined("max_payload_bytes") {
		if raw.MaxPayloadBytes <= 0 || raw.MaxPayloadBytes > 1<<32-1 {
			return appConfig{}, fmt.Errorf("parse max_payload_bytes: out of range: %d", raw.MaxPayloadBytes)
		}
		cfg.Server.Limits.MaxPayloadBytes = uint32(raw.MaxPayloadBytes)
		cfg.Client.Limits.MaxPayloadBytes = uint32(raw.MaxPayloadBytes)
	}

	if meta.IsDefined("default_name") {
		cfg.Server.DefaultName = strings.TrimSpace(raw.DefaultName)
	}

	if meta.IsDefined("default_color") {
		cfg.Server.DefaultColor = strings.TrimSpace(raw.DefaultColor)
	}

	if meta.IsDefined("server_host") {
		cfg.Client.ServerHost = strings.TrimSpace(raw.ServerHost)
	}

	if meta.IsDefined("metrics_addr") {
		cfg.MetricsAddr = strings.TrimSpace(raw.MetricsAddr)
	}

	return cfg, nil
}
