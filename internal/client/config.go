package client

import (
	"fmt"
	"strings"
	"time"

	"github.com/danmuck/netchat/internal/protocol/frame"
)

const (
	DefaultServerHost     = "127.0.0.1"
	DefaultPort           = 25574
	DefaultPollTimeout    = 5 * time.Millisecond
	DefaultRecvChunkBytes = 4096
)

type Config struct {
	ServerHost     string
	Port           int
	PollTimeout    time.Duration
	RecvChunkBytes int
	Limits         frame.Limits
}

func DefaultConfig() Config {
	return Config{
		ServerHost:     DefaultServerHost,
		Port:           DefaultPort,
		PollTimeout:    DefaultPollTimeout,
		RecvChunkBytes: DefaultRecvChunkBytes,
		Limits:         frame.DefaultLimits(),
	}
}

func (c Config) WithDefaults() Config {
	d := DefaultConfig()
	out := c
	out.ServerHost = strings.TrimSpace(out.ServerHost)
	if out.ServerHost == "" {
		out.ServerHost = d.ServerHost
	}
	if out.Port == 0 {
		out.Port = d.Port
	}
	if out.PollTimeout <= 0 {
		out.PollTimeout = d.PollTimeout
	}
	if out.RecvChunkBytes <= 0 {
		out.RecvChunkBytes = d.RecvChunkBytes
	}
	if out.Limits.MaxPayloadBytes == 0 {
		out.Limits = d.Limits
	}
	return out
}

func (c Config) Validate() error {
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("client: invalid port %d", c.Port)
	}
	return nil
}
