// enricher fills AI metadata into Alfresco documents.
//
// Usage:
//
//	enricher apply  [--action=SUMMARY] [--query=<afts>] [--node=<id>] [--interval=1h] [--workers=2]
//	enricher listen
//	enricher runs   [--limit=20]
//	enricher replay < events.jsonl
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
