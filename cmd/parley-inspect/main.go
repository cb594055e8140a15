package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"

	"github.com/dustin/go-humanize"

	"parley/pkg/state"
	"parley/pkg/store"
)

// parley-inspect opens a data directory offline and reports on it.
// With --channel it also dumps that channel's newest messages, which
// is the quickest way to check what the pipeline actually persisted.
func main() {
	var (
		dbPath  = flag.String("db", "./data", "data directory to inspect")
		channel = flag.String("channel", "", "channel id to dump messages from")
		limit   = flag.Int("limit", 20, "messages to dump")
		asJSON  = flag.Bool("json", false, "emit raw JSON instead of a summary")
	)
	flag.Parse()

	paths := state.Init(*dbPath)
	st, err := store.Open(paths.Store)
	if err != nil {
		fmt.Fprintf(os.Stderr, "open %s: %v\n", paths.Store, err)
		os.Exit(1)
	}
	defer st.Close()

	m := st.Metrics()
	if *asJSON && *channel == "" {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		_ = enc.Encode(m)
		return
	}
	if *channel == "" {
		fmt.Printf("store:     %s\n", paths.Store)
		fmt.Printf("disk:      %s\n", humanize.Bytes(m.DiskBytes))
		fmt.Printf("wal:       %s\n", humanize.Bytes(m.WALBytes))
		fmt.Printf("l0 files:  %d (%s)\n", m.L0Files, humanize.Bytes(uint64(m.L0Bytes)))
		fmt.Printf("c-backlog: %s\n", humanize.Bytes(m.CompactionBacklog))
		return
	}

	msgs, err := st.ListMessages(context.Background(), *channel, store.ListOptions{Limit: *limit})
	if err != nil {
		fmt.Fprintf(os.Stderr, "list %s: %v\n", *channel, err)
		os.Exit(1)
	}
	if *asJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		_ = enc.Encode(msgs)
		return
	}
	fmt.Printf("%d message(s) in %s, newest first\n", len(msgs), *channel)
	for _, msg := range msgs {
		content := msg.Content
		if len(content) > 60 {
			content = content[:57] + "..."
		}
		fmt.Printf("  %s  %-26s  %q\n", msg.ID, msg.Author, content)
	}
}
