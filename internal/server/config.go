package server

import (
	"fmt"
	"strings"
	"time"

	"github.com/danmuck/netchat/internal/protocol/frame"
)

const (
	DefaultPort           = 25574
	DefaultPollTimeout    = 5 * time.Millisecond
	DefaultRecvChunkBytes = 4096
	DefaultName           = "Dan"
	DefaultColor          = "#FFFFFF"

	// EphemeralPort asks the kernel for any free port. Addr reports the one
	// bound.
	EphemeralPort = -1
)

// Config controls the server loop. Zero values are filled by WithDefaults.
type Config struct {
	// ListenHost is the bind address. Empty selects the outbound interface.
	ListenHost     string
	// Port 0 selects DefaultPort; EphemeralPort binds any free port.
	Port           int
	PollTimeout    time.Duration
	RecvChunkBytes int
	Limits         frame.Limits
	DefaultName    string
	DefaultColor   string
}

func DefaultConfig() Config {
	return Config{
		Port:           DefaultPort,
		PollTimeout:    DefaultPollTimeout,
		RecvChunkBytes: DefaultRecvChunkBytes,
		Limits:         frame.DefaultLimits(),
		DefaultName:    DefaultName,
		DefaultColor:   DefaultColor,
	}
}

func (c Config) WithDefaults() Config {
	d := DefaultConfig()
	out := c
	out.ListenHost = strings.TrimSpace(out.ListenHost)
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
	if out.DefaultName == "" {
		out.DefaultName = d.DefaultName
	}
	if out.DefaultColor == "" {
		out.DefaultColor = d.DefaultColor
	}
	return out
}

// Validate rejects values WithDefaults cannot repair.
func (c Config) Validate() error {
	if c.Port == EphemeralPort {
		return nil
	}
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("server: invalid port %d", c.Port)
	}
	return nil
}
