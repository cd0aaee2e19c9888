// Command ethfeed-watch streams Ethereum subscription feeds from a
// WebSocket JSON-RPC endpoint.
//
// The tool subscribes to the configured feeds, prints every published
// value, and keeps subscriptions alive across a connection loss by
// re-subscribing. The full protocol exchange can be captured to a CBOR
// log file for later inspection with ethfeed-log.
//
// Usage:
//
//	ethfeed-watch [flags]
//
// Flags:
//
//	-endpoint string   WebSocket endpoint (ws:// or wss://)
//	-config string     YAML configuration file path
//	-capture string    Write protocol capture to this file (.eflog)
//	-interactive       Interactive mode with a command prompt
//	-timeout duration  Subscribe round-trip timeout (default 30s)
//	-log-level string  Log level: debug, info (default "info")
//
// Examples:
//
//	# Print new block headers from a local node
//	ethfeed-watch -endpoint ws://127.0.0.1:8546
//
//	# Drive the feeds listed in a config file, capturing the protocol
//	ethfeed-watch -config feeds.yaml -capture session.eflog
//
//	# Interactive session against a remote node
//	ethfeed-watch -endpoint wss://mainnet.example.org -interactive
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"
	"gopkg.in/yaml.v3"

	"github.com/ethfeed/ethfeed-go/cmd/ethfeed-watch/interactive"
	"github.com/ethfeed/ethfeed-go/pkg/broadcast"
	"github.com/ethfeed/ethfeed-go/pkg/client"
	"github.com/ethfeed/ethfeed-go/pkg/eth"
	"github.com/ethfeed/ethfeed-go/pkg/jsonrpc"
	caplog "github.com/ethfeed/ethfeed-go/pkg/log"
	"github.com/ethfeed/ethfeed-go/pkg/pubsub"
	"github.com/ethfeed/ethfeed-go/pkg/transport"
)

// Feed is one configured subscription.
type Feed struct {
	// Kind is the subscription kind: newHeads, logs, newPendingTransactions.
	Kind string `yaml:"kind"`

	// Filter is an optional JSON document passed as the second
	// subscribe parameter (used by logs feeds).
	Filter string `yaml:"filter,omitempty"`
}

// Config holds the resolved tool configuration.
type Config struct {
	Endpoint    string
	ConfigFile  string
	Capture     string
	Interactive bool
	Timeout     time.Duration
	LogLevel    string
	Feeds       []Feed
}

// fileConfig is the YAML configuration file layout.
type fileConfig struct {
	Endpoint string `yaml:"endpoint"`
	Capture  string `yaml:"capture"`
	Feeds    []Feed `yaml:"feeds"`
}

var config Config

func init() {
	flag.StringVar(&config.Endpoint, "endpoint", "", "WebSocket endpoint (ws:// or wss://)")
	flag.StringVar(&config.ConfigFile, "config", "", "YAML configuration file path")
	flag.StringVar(&config.Capture, "capture", "", "Write protocol capture to this file")
	flag.BoolVar(&config.Interactive, "interactive", false, "Interactive mode with a command prompt")
	flag.DurationVar(&config.Timeout, "timeout", 30*time.Second, "Subscribe round-trip timeout")
	flag.StringVar(&config.LogLevel, "log-level", "info", "Log level: debug, info")
}

func main() {
	flag.Parse()

	setupLogging(config.LogLevel)

	if err := loadConfigFile(); err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}
	if config.Endpoint == "" {
		log.Fatal("No endpoint: pass -endpoint or set it in the config file")
	}
	if !config.Interactive && len(config.Feeds) == 0 {
		config.Feeds = []Feed{{Kind: "newHeads"}}
	}

	log.Println("ethfeed watch")
	log.Printf("Endpoint: %s", config.Endpoint)

	clientConfig := client.Config{RequestTimeout: config.Timeout}
	if config.LogLevel == "debug" {
		clientConfig.Logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
			Level: slog.LevelDebug,
		}))
	}
	if config.Capture != "" {
		capture, err := caplog.NewFileLogger(config.Capture)
		if err != nil {
			log.Fatalf("Failed to open capture file: %v", err)
		}
		defer capture.Close()
		clientConfig.ProtocolLogger = capture
		log.Printf("Capturing protocol to %s", config.Capture)
	}

	dialer, err := transport.NewWSDialer(transport.WSConfig{URL: config.Endpoint})
	if err != nil {
		log.Fatalf("Invalid endpoint: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	c, err := client.Dial(ctx, dialer, clientConfig)
	if err != nil {
		log.Fatalf("Failed to connect: %v", err)
	}
	defer c.Close()
	log.Printf("Connected (state: %s)", c.State())

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		log.Printf("Received signal: %v", sig)
		cancel()
	}()

	if config.Interactive {
		w, err := interactive.New(c)
		if err != nil {
			log.Fatalf("Failed to start interactive mode: %v", err)
		}
		w.Run(ctx, cancel)
	} else if err := runFeeds(ctx, c, config.Feeds); err != nil && !errors.Is(err, context.Canceled) {
		log.Fatalf("Feed error: %v", err)
	}

	log.Println("Goodbye!")
}

func setupLogging(level string) {
	log.SetFlags(log.Ltime | log.Lmicroseconds)
	if level == "debug" {
		log.SetFlags(log.Ltime | log.Lmicroseconds | log.Lshortfile)
	}
}

// loadConfigFile merges the YAML config file into the flag values. Flags
// win where both are set.
func loadConfigFile() error {
	if config.ConfigFile == "" {
		return nil
	}
	data, err := os.ReadFile(config.ConfigFile)
	if err != nil {
		return fmt.Errorf("reading config file: %w", err)
	}
	var fc fileConfig
	if err := yaml.Unmarshal(data, &fc); err != nil {
		return fmt.Errorf("parsing config file: %w", err)
	}

	if config.Endpoint == "" {
		config.Endpoint = fc.Endpoint
	}
	if config.Capture == "" {
		config.Capture = fc.Capture
	}
	config.Feeds = fc.Feeds

	for _, feed := range config.Feeds {
		if feed.Kind == "" {
			return errors.New("config file feed without a kind")
		}
	}
	return nil
}

// params builds the eth_subscribe params for the feed. The filter text is
// validated but passed through verbatim so equal configs dedup to one
// subscription.
func (f Feed) params() (any, error) {
	if f.Filter == "" {
		return []any{f.Kind}, nil
	}
	var probe any
	if err := jsonrpc.Unmarshal([]byte(f.Filter), &probe); err != nil {
		return nil, fmt.Errorf("feed %s: invalid filter: %w", f.Kind, err)
	}
	return []any{f.Kind, json.RawMessage(f.Filter)}, nil
}

// runFeeds drives every configured feed until the context ends or a feed
// fails.
func runFeeds(ctx context.Context, c *client.Client, feeds []Feed) error {
	g, ctx := errgroup.WithContext(ctx)
	for _, feed := range feeds {
		feed := feed
		g.Go(func() error {
			return watchFeed(ctx, c, feed)
		})
	}
	return g.Wait()
}

// watchFeed subscribes to one feed and prints its values until the feed
// closes or the context ends.
func watchFeed(ctx context.Context, c *client.Client, feed Feed) error {
	params, err := feed.params()
	if err != nil {
		return err
	}
	raw, err := c.Subscribe(ctx, params)
	if err != nil {
		return fmt.Errorf("subscribe %s: %w", feed.Kind, err)
	}
	log.Printf("Subscribed %s (local id %s)", feed.Kind, raw.LocalID())

	if feed.Kind == "newHeads" {
		return watchHeads(ctx, raw)
	}

	for {
		payload, err := raw.Recv(ctx)
		if err != nil {
			if reportLag(feed.Kind, err) {
				continue
			}
			return feedDone(feed.Kind, err)
		}
		fmt.Printf("[%s] %s\n", feed.Kind, payload)
	}
}

// watchHeads prints decoded block headers, including the blob fee for
// post-Cancun blocks.
func watchHeads(ctx context.Context, raw *pubsub.RawSubscription) error {
	heads := pubsub.Typed[eth.Head](raw)
	for {
		head, err := heads.Recv(ctx)
		if err != nil {
			if reportLag("newHeads", err) {
				continue
			}
			return feedDone("newHeads", err)
		}
		printHead(os.Stdout, &head)
	}
}

// reportLag logs a lag notice and reports whether the error was a lag.
// Lagged feeds keep running from the oldest retained value.
func reportLag(kind string, err error) bool {
	var lag *broadcast.LagError
	if !errors.As(err, &lag) {
		return false
	}
	log.Printf("Feed %s lagged, %d values skipped", kind, lag.Skipped)
	return true
}

func printHead(w io.Writer, head *eth.Head) {
	fmt.Fprintf(w, "block %d %s gas %d/%d",
		uint64(head.Number), head.Hash, uint64(head.GasUsed), uint64(head.GasLimit))
	if head.BaseFee != nil {
		fmt.Fprintf(w, " baseFee %s", head.BaseFee.ToInt())
	}
	if fee := head.BlobFee(); fee != nil {
		fmt.Fprintf(w, " blobFee %s", fee)
	}
	fmt.Fprintln(w)
}

// feedDone maps the terminal receive error to the feed's exit status. A
// closed channel is a normal shutdown.
func feedDone(kind string, err error) error {
	switch {
	case errors.Is(err, broadcast.ErrClosed):
		log.Printf("Feed %s closed", kind)
		return nil
	case errors.Is(err, context.Canceled):
		return nil
	default:
		return fmt.Errorf("feed %s: %w", kind, err)
	}
}
