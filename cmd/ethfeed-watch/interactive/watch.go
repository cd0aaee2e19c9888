// Package interactive provides the interactive command loop for
// ethfeed-watch.
package interactive

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/chzyer/readline"

	"github.com/ethfeed/ethfeed-go/pkg/broadcast"
	"github.com/ethfeed/ethfeed-go/pkg/client"
	"github.com/ethfeed/ethfeed-go/pkg/eth"
	"github.com/ethfeed/ethfeed-go/pkg/jsonrpc"
	"github.com/ethfeed/ethfeed-go/pkg/pubsub"
)

// Watch handles interactive mode for ethfeed-watch.
type Watch struct {
	client *client.Client
	rl     *readline.Instance

	// Active feed labels by local id, maintained by the commands and the
	// feed goroutines.
	mu    sync.Mutex
	feeds map[eth.Hash]string
}

// New creates a new interactive watch handler.
func New(c *client.Client) (*Watch, error) {
	rl, err := readline.NewEx(&readline.Config{
		Prompt:          "watch> ",
		InterruptPrompt: "^C",
		EOFPrompt:       "exit",
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create readline: %w", err)
	}

	return &Watch{
		client: c,
		rl:     rl,
		feeds:  make(map[eth.Hash]string),
	}, nil
}

// Stdout returns a writer that coordinates with the readline prompt. Use
// this for log output to avoid clobbering the input line.
func (w *Watch) Stdout() io.Writer {
	return w.rl.Stdout()
}

// Run starts the interactive command loop.
func (w *Watch) Run(ctx context.Context, cancel context.CancelFunc) {
	defer w.rl.Close()

	w.printHelp()

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		line, err := w.rl.Readline()
		if err != nil {
			// EOF or interrupt
			if err == readline.ErrInterrupt {
				continue
			}
			fmt.Fprintln(w.rl.Stdout(), "Exiting...")
			cancel()
			return
		}

		input := strings.TrimSpace(line)
		if input == "" {
			continue
		}

		parts := strings.Fields(input)
		cmd := strings.ToLower(parts[0])
		args := parts[1:]

		switch cmd {
		case "help", "?":
			w.printHelp()

		case "sub", "s":
			w.cmdSub(ctx, args)

		case "unsub", "u":
			w.cmdUnsub(ctx, args)

		case "ls", "list":
			w.cmdList()

		case "state":
			fmt.Fprintf(w.rl.Stdout(), "Connection state: %s\n", w.client.State())

		case "quit", "exit", "q":
			fmt.Fprintln(w.rl.Stdout(), "Exiting...")
			cancel()
			return

		default:
			fmt.Fprintf(w.rl.Stdout(), "Unknown command: %s (type 'help' for commands)\n", cmd)
		}
	}
}

func (w *Watch) printHelp() {
	fmt.Fprintln(w.rl.Stdout(), `
ethfeed-watch Commands:
  Feeds:
    sub newHeads          - Subscribe to new block headers
    sub logs [filter]     - Subscribe to logs, filter is a JSON document
    sub <kind> [param]    - Subscribe to any other feed kind
    unsub <local-id>      - Cancel a subscription (id prefix is enough)
    ls                    - List active feeds

  General:
    state                 - Show connection state
    help                  - Show this help
    quit                  - Exit

  Examples:
    sub newHeads
    sub logs {"address":"0x6b175474e89094c44da98b954eedeac495271d0f"}
    unsub 0x1f40`)
}

// cmdSub handles the sub command.
func (w *Watch) cmdSub(ctx context.Context, args []string) {
	if len(args) == 0 {
		fmt.Fprintln(w.rl.Stdout(), "Usage: sub <kind> [param]")
		return
	}
	kind := args[0]

	params := []any{kind}
	if len(args) > 1 {
		raw := strings.Join(args[1:], " ")
		var probe any
		if err := jsonrpc.Unmarshal([]byte(raw), &probe); err != nil {
			fmt.Fprintf(w.rl.Stdout(), "Invalid param (must be JSON): %v\n", err)
			return
		}
		params = append(params, json.RawMessage(raw))
	}

	callCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	sub, err := w.client.Subscribe(callCtx, params)
	if err != nil {
		fmt.Fprintf(w.rl.Stdout(), "Subscribe failed: %v\n", err)
		return
	}

	w.mu.Lock()
	_, running := w.feeds[sub.LocalID()]
	w.feeds[sub.LocalID()] = kind
	w.mu.Unlock()

	fmt.Fprintf(w.rl.Stdout(), "Subscribed %s (local id %s)\n", kind, sub.LocalID())
	if running {
		// Duplicate params share the channel; one printer is enough.
		return
	}
	if kind == "newHeads" {
		go w.printHeads(ctx, sub)
	} else {
		go w.printFeed(ctx, kind, sub)
	}
}

// cmdUnsub handles the unsub command.
func (w *Watch) cmdUnsub(ctx context.Context, args []string) {
	if len(args) < 1 {
		fmt.Fprintln(w.rl.Stdout(), "Usage: unsub <local-id>")
		fmt.Fprintln(w.rl.Stdout(), "  Use 'ls' to list feed ids")
		return
	}

	localID, ok := w.resolveLocalID(args[0])
	if !ok {
		fmt.Fprintf(w.rl.Stdout(), "No unique feed matches %s\n", args[0])
		return
	}

	callCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := w.client.Unsubscribe(callCtx, localID); err != nil {
		fmt.Fprintf(w.rl.Stdout(), "Unsubscribe reported: %v (feed removed)\n", err)
		return
	}
	fmt.Fprintln(w.rl.Stdout(), "Unsubscribed")
}

// cmdList lists the active feeds.
func (w *Watch) cmdList() {
	w.mu.Lock()
	ids := make([]eth.Hash, 0, len(w.feeds))
	for id := range w.feeds {
		ids = append(ids, id)
	}
	labels := make(map[eth.Hash]string, len(w.feeds))
	for id, label := range w.feeds {
		labels[id] = label
	}
	w.mu.Unlock()

	if len(ids) == 0 {
		fmt.Fprintln(w.rl.Stdout(), "No active feeds")
		return
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i].String() < ids[j].String() })

	fmt.Fprintf(w.rl.Stdout(), "\nActive Feeds (%d):\n", len(ids))
	for _, id := range ids {
		fmt.Fprintf(w.rl.Stdout(), "  %s  %s\n", id, labels[id])
	}
	fmt.Fprintln(w.rl.Stdout())
}

// resolveLocalID resolves a full local id or a unique prefix of one.
func (w *Watch) resolveLocalID(arg string) (eth.Hash, bool) {
	var id eth.Hash
	if err := id.UnmarshalText([]byte(arg)); err == nil {
		return id, true
	}

	needle := strings.ToLower(strings.TrimPrefix(arg, "0x"))
	w.mu.Lock()
	defer w.mu.Unlock()

	var match eth.Hash
	found := 0
	for fid := range w.feeds {
		if strings.HasPrefix(strings.TrimPrefix(fid.String(), "0x"), needle) {
			match = fid
			found++
		}
	}
	return match, found == 1
}

// printHeads prints decoded block headers until the feed closes.
func (w *Watch) printHeads(ctx context.Context, raw *pubsub.RawSubscription) {
	defer w.dropFeed(raw.LocalID())

	heads := pubsub.Typed[eth.Head](raw)
	for {
		head, err := heads.Recv(ctx)
		if err != nil {
			if w.reportLag("newHeads", err) {
				continue
			}
			w.reportFeedEnd("newHeads", err)
			return
		}
		line := fmt.Sprintf("block %d %s gas %d/%d",
			uint64(head.Number), head.Hash, uint64(head.GasUsed), uint64(head.GasLimit))
		if fee := head.BlobFee(); fee != nil {
			line += fmt.Sprintf(" blobFee %s", fee)
		}
		fmt.Fprintf(w.rl.Stdout(), "\n[%s] %s\n", time.Now().Format("15:04:05"), line)
		w.rl.Refresh()
	}
}

// printFeed prints raw payloads until the feed closes.
func (w *Watch) printFeed(ctx context.Context, kind string, raw *pubsub.RawSubscription) {
	defer w.dropFeed(raw.LocalID())

	for {
		payload, err := raw.Recv(ctx)
		if err != nil {
			if w.reportLag(kind, err) {
				continue
			}
			w.reportFeedEnd(kind, err)
			return
		}
		fmt.Fprintf(w.rl.Stdout(), "\n[%s] %s: %s\n", time.Now().Format("15:04:05"), kind, payload)
		w.rl.Refresh()
	}
}

// reportLag prints a lag notice and reports whether the error was a lag.
// Lagged feeds keep running from the oldest retained value.
func (w *Watch) reportLag(kind string, err error) bool {
	var lag *broadcast.LagError
	if !errors.As(err, &lag) {
		return false
	}
	fmt.Fprintf(w.rl.Stdout(), "\nFeed %s lagged, %d values skipped\n", kind, lag.Skipped)
	w.rl.Refresh()
	return true
}

func (w *Watch) dropFeed(localID eth.Hash) {
	w.mu.Lock()
	delete(w.feeds, localID)
	w.mu.Unlock()
}

func (w *Watch) reportFeedEnd(kind string, err error) {
	if errors.Is(err, context.Canceled) || errors.Is(err, broadcast.ErrClosed) {
		return
	}
	fmt.Fprintf(w.rl.Stdout(), "\nFeed %s ended: %v\n", kind, err)
	w.rl.Refresh()
}
