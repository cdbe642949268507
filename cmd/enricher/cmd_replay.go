package main

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/zatekoja/docenricher/internal/adapters/events"
	"github.com/zatekoja/docenricher/internal/domain/entities"
	redisclient "github.com/zatekoja/docenricher/internal/infrastructure/clients/redis"
)

const maxEventLine = 1 << 20

var replayCmd = &cobra.Command{
	Use:   "replay",
	Short: "Publish node events read from stdin",
	Long: "replay reads one JSON node event per line from stdin and publishes it\n" +
		"on REDIS_EVENTS_CHANNEL, so a listener can catch up after an outage.",
	RunE: runReplay,
}

// readEvents parses newline-delimited events. Blank lines are ignored.
func readEvents(r io.Reader) ([]*entities.NodeEvent, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxEventLine)

	var out []*entities.NodeEvent
	line := 0
	for scanner.Scan() {
		line++
		raw := bytes.TrimSpace(scanner.Bytes())
		if len(raw) == 0 {
			continue
		}
		var event entities.NodeEvent
		if err := json.Unmarshal(raw, &event); err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		if event.ResourceID == "" {
			return nil, fmt.Errorf("line %d: resource_id is required", line)
		}
		out = append(out, &event)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read events: %w", err)
	}
	return out, nil
}

func runReplay(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()

	evts, err := readEvents(cmd.InOrStdin())
	if err != nil {
		return err
	}

	a, err := bootstrap(ctx)
	if err != nil {
		return err
	}
	defer a.close()

	rc, err := redisclient.NewClient(ctx, &a.cfg.Redis)
	if err != nil {
		return err
	}
	a.closers = append(a.closers, func(context.Context) error { return rc.Close() })

	bus := events.NewRedisEventBus(rc.Client())
	a.closers = append(a.closers, func(context.Context) error { return bus.Close() })

	for _, event := range evts {
		if err := bus.Publish(ctx, a.cfg.Redis.EventsChannel, event); err != nil {
			return err
		}
	}
	fmt.Fprintf(cmd.OutOrStdout(), "published %d events to %s\n", len(evts), a.cfg.Redis.EventsChannel)
	return nil
}
