package main

import (
	"bufio"
	"context"
	"errors"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/danmuck/netchat/internal/client"
	"github.com/danmuck/netchat/internal/protocol/chat"
	"github.com/danmuck/netchat/internal/terminal"
	"github.com/spf13/cobra"
)

func joinCmd() *cobra.Command {
	var (
		configPath string
		serverHost string
		port       int
		name       string
	)
	cmd := &cobra.Command{
		Use:   "join",
		Short: "Join a chat server from the terminal",
		Long: `Join a chat server and read chat input from stdin.

The first line (or --name) is your display name. After that:
  /name NEW   change your display name
  /quit       leave the chat
  anything else is sent as a chat message`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(configPath)
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("server") {
				cfg.Client.ServerHost = serverHost
			}
			if cmd.Flags().Changed("port") {
				cfg.Client.Port = port
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return runJoin(ctx, cfg.Client, name, os.Stdin, terminal.NewStdout())
		},
	}
	cmd.Flags().StringVar(&configPath, "config", "", "TOML config file")
	cmd.Flags().StringVar(&serverHost, "server", client.DefaultServerHost, "server host")
	cmd.Flags().IntVar(&port, "port", client.DefaultPort, "server port")
	cmd.Flags().StringVar(&name, "name", "", "display name (skips the name prompt)")
	return cmd
}

// parseInput maps one stdin line to a request. skip is true for lines that
// send nothing.
func parseInput(line string, entered bool) (action chat.Action, value string, skip bool) {
	text := strings.TrimSpace(line)
	if text == "" {
		return chat.ActionUnknown, "", true
	}
	if !entered {
		return chat.ActionFirstEntry, text, false
	}
	switch {
	case text == "/quit":
		return chat.ActionQuit, "", false
	case text == "/name" || strings.HasPrefix(text, "/name "):
		newName := strings.TrimSpace(strings.TrimPrefix(text, "/name"))
		if newName == "" {
			return chat.ActionUnknown, "", true
		}
		return chat.ActionChangeName, newName, false
	default:
		return chat.ActionSendMessage, line, false
	}
}

// runJoin drives the client loop on this goroutine while stdin is read on
// another. End of input sends quit.
func runJoin(ctx context.Context, cfg client.Config, name string, in io.Reader, sink client.Sink) error {
	c, err := client.Dial(ctx, cfg, sink)
	if err != nil {
		return err
	}
	defer c.Close()

	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(in)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-ctx.Done():
				return
			}
		}
	}()

	entered := false
	if name = strings.TrimSpace(name); name != "" {
		if err := c.FirstEntry(name); err != nil {
			return err
		}
		entered = true
	}

	for !c.Closed() {
		select {
		case <-ctx.Done():
			return nil
		case line, ok := <-lines:
			if !ok {
				lines = nil
				if err := c.Quit(); err != nil && !errors.Is(err, client.ErrClientClosed) {
					return err
				}
				break
			}
			if err := submit(c, line, &entered); err != nil {
				return err
			}
		default:
		}
		if err := c.Update(); err != nil && !errors.Is(err, client.ErrClientClosed) {
			return err
		}
	}
	return c.Err()
}

func submit(c *client.Client, line string, entered *bool) error {
	action, value, skip := parseInput(line, *entered)
	if skip {
		return nil
	}
	var err error
	switch action {
	case chat.ActionFirstEntry:
		err = c.FirstEntry(value)
		*entered = true
	case chat.ActionChangeName:
		err = c.SendNameChange(value)
	case chat.ActionQuit:
		err = c.Quit()
	default:
		err = c.SendChatMessage(value)
	}
	if errors.Is(err, client.ErrClientClosed) {
		return nil
	}
	return err
}
