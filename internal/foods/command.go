package foods

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os/exec"
	"strings"
	"time"
)

// DefaultTimeout bounds a single run of an external extractor.
const DefaultTimeout = 5 * time.Second

// waitDelay caps how long a killed extractor may hold its output open.
const waitDelay = 500 * time.Millisecond

// Command delegates extraction to an external program. The text is written
// to its stdin and a comma-separated list of foods is read from stdout.
// A run that fails, times out or writes anything to stderr counts as
// finding nothing.
type Command struct {
	Path    string
	Args    []string
	Timeout time.Duration
	Logger  *slog.Logger
}

// NewCommand parses a command line such as "node scraper/scrapeFood.js".
func NewCommand(cmdline string, timeout time.Duration, logger *slog.Logger) (*Command, error) {
	fields := strings.Fields(cmdline)
	if len(fields) == 0 {
		return nil, errors.New("empty extractor command")
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Command{Path: fields[0], Args: fields[1:], Timeout: timeout, Logger: logger}, nil
}

// Extract runs the program once and parses its output.
func (c *Command) Extract(ctx context.Context, text string) []string {
	foods, err := c.run(ctx, text)
	if err != nil {
		c.Logger.Warn("food extractor failed", "command", c.Path, "error", err)
		return nil
	}
	return foods
}

func (c *Command) run(ctx context.Context, text string) ([]string, error) {
	ctx, cancel := context.WithTimeout(ctx, c.Timeout)
	defer cancel()

	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, c.Path, c.Args...)
	cmd.Stdin = strings.NewReader(text)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	cmd.WaitDelay = waitDelay

	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return nil, fmt.Errorf("timed out after %s", c.Timeout)
		}
		return nil, err
	}
	if stderr.Len() > 0 {
		return nil, fmt.Errorf("wrote to stderr: %s", strings.TrimSpace(stderr.String()))
	}
	return parseList(stdout.String()), nil
}

// parseList splits "Pizza, Pasta" into its items.
func parseList(s string) []string {
	var items []string
	for _, item := range strings.Split(s, ",") {
		if item = strings.TrimSpace(item); item != "" {
			items = append(items, capitalize(item))
		}
	}
	return dedupe(items)
}
