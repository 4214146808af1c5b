// =============================================================================
// main.go - slctl Entry Point
// =============================================================================
//
// slctl is a console for Steinway Lyngdorf AV processors. It connects to the
// processor's TCP control port, discovers its source, voicing and audio mode
// lists, and then lets you drive it from a REPL while state changes made at
// the front panel or by other controllers are printed as they happen.
//
// Usage:
//
//	slctl --host 10.0.0.5                 Connect and start the console
//	slctl --host 10.0.0.5 --probe         Print the device identity and exit
//	slctl --host 10.0.0.5 --listen :8084  Also serve snapshots over websocket
//	slctl --help                          Show help
//
// The connection is checked periodically; if the processor went away the
// console reconnects and repeats discovery.
//
// =============================================================================

package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"sync"
	"syscall"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/reedr/steinway-lyngdorf/slprotocol"
)

// =============================================================================
// Version Information
// =============================================================================

const (
	// version is the current version of slctl.
	version = "0.1.0"

	// appName is the application name.
	appName = "slctl"

	// hostEnv names the environment variable used when --host is absent.
	hostEnv = "SLCTL_HOST"

	// refreshInterval is how often the console checks the connection.
	refreshInterval = 30 * time.Second
)

// fullTitle returns the application name with version.
func fullTitle() string {
	return fmt.Sprintf("%s v%s", appName, version)
}

// welcomeBanner returns the text shown once the device is ready.
func welcomeBanner(deviceID string, s slprotocol.Snapshot) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s\n", fullTitle())
	fmt.Fprintf(&b, "Connected to %s\n", deviceID)
	fmt.Fprintf(&b, "%d sources, %d voicings, %d audio modes\n",
		len(s.Sources), len(s.Voicings), len(s.AudioModes))
	b.WriteString("Type 'help' for commands, 'quit' to exit.\n")
	return b.String()
}

// =============================================================================
// Command-Line Arguments
// =============================================================================

// arguments holds parsed command-line options.
type arguments struct {
	// host is the processor's address.
	host string

	// port is the control port; zero means slprotocol.DefaultPort.
	port int

	// listen is the websocket bridge address; empty disables the bridge.
	listen string

	// debug enables development logging, including wire traffic.
	debug bool

	// probe prints the device identity and exits.
	probe bool

	showHelp    bool
	showVersion bool
}

// GO CONCEPT: Hand-Rolled Argument Parsing
// ----------------------------------------
// A handful of long options does not need the flag package. Walking the
// slice by hand keeps "--help" and "-h" as synonyms and lets value options
// report exactly which flag is missing its argument. Taking the slice as a
// parameter (instead of reading os.Args) lets tests call it directly.
//
// Compare with Python: this is a manual loop over sys.argv[1:] rather than
// argparse.

// parseArguments parses args (without the program name).
func parseArguments(args []string) (arguments, error) {
	var parsed arguments
	remaining := args

	value := func(flag string) (string, error) {
		if len(remaining) == 0 {
			return "", fmt.Errorf("%s requires an argument", flag)
		}
		v := remaining[0]
		remaining = remaining[1:]
		return v, nil
	}

	for len(remaining) > 0 {
		arg := remaining[0]
		remaining = remaining[1:]

		var err error
		switch arg {
		case "--host":
			parsed.host, err = value(arg)

		case "--port":
			var s string
			if s, err = value(arg); err == nil {
				parsed.port, err = parsePort(s)
			}

		case "--listen":
			parsed.listen, err = value(arg)

		case "--debug":
			parsed.debug = true

		case "--probe":
			parsed.probe = true

		case "--help", "-h":
			parsed.showHelp = true

		case "--version", "-v":
			parsed.showVersion = true

		default:
			err = fmt.Errorf("unknown option '%s'", arg)
		}
		if err != nil {
			return arguments{}, err
		}
	}

	if parsed.host == "" {
		parsed.host = os.Getenv(hostEnv)
	}
	if parsed.host == "" && !parsed.showHelp && !parsed.showVersion {
		return arguments{}, errors.New("--host is required")
	}
	return parsed, nil
}

func parsePort(s string) (int, error) {
	port, err := strconv.Atoi(s)
	if err != nil || port < 1 || port > 65535 {
		return 0, fmt.Errorf("invalid port '%s'", s)
	}
	return port, nil
}

// =============================================================================
// Help and Usage
// =============================================================================

// printUsage prints usage information to stdout.
func printUsage() {
	fmt.Print(`USAGE: slctl --host <address> [options]

OPTIONS:
  --host <address>    Processor address (default: $SLCTL_HOST)
  --port <n>          Control port (default: 84)
  --listen <addr>     Serve snapshots over websocket at <addr>/ws
  --probe             Print the device identity and exit
  --debug             Log protocol traffic to stderr
  --help, -h          Show this help
  --version, -v       Show version

EXAMPLES:
  slctl --host 10.0.0.5
  slctl --host 10.0.0.5 --probe
  echo "power on" | slctl --host 10.0.0.5

Type 'help' at the sl> prompt for console commands.
`)
}

// printVersion prints version information to stdout.
func printVersion() {
	fmt.Println(fullTitle())
}

// printError prints an error message to stderr.
func printError(message string) {
	fmt.Fprintf(os.Stderr, "Error: %s\n", message)
}

// =============================================================================
// Logging
// =============================================================================

// newLogger builds the diagnostic logger. User-facing output stays on
// stdout; the logger writes to stderr.
func newLogger(debug bool) (*zap.Logger, error) {
	if debug {
		return zap.NewDevelopment()
	}
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(zap.WarnLevel)
	cfg.Encoding = "console"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	cfg.Sampling = nil
	return cfg.Build()
}

// =============================================================================
// Background Work
// =============================================================================

// updater is the part of slprotocol.Device the refresh loop needs.
type updater interface {
	Update(ctx context.Context) error
}

// refreshLoop calls Update every interval until ctx is done. Update is a
// no-op while the session is up, so this only does work after a drop.
func refreshLoop(ctx context.Context, dev updater, interval time.Duration, log *zap.Logger) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := dev.Update(ctx); err != nil && ctx.Err() == nil {
				log.Warn("reconnect failed", zap.Error(err))
			}
		}
	}
}

// changePrinter returns a subscriber that prints what changed since the
// previous update. It runs on the device's state goroutine, so prev needs
// no locking.
func changePrinter(out func(string)) slprotocol.UpdateFunc {
	var prev slprotocol.Snapshot
	return func(s slprotocol.Snapshot) {
		changes := describeChanges(prev, s)
		prev = s
		if len(changes) > 0 {
			out(fmt.Sprintf("\n*** %s\n", strings.Join(changes, ", ")))
		}
	}
}

// newCleanup returns a function that runs steps in order the first time it
// is called. Later and concurrent calls wait for that run and do nothing.
func newCleanup(steps ...func()) func() {
	return sync.OnceFunc(func() {
		for _, step := range steps {
			step()
		}
	})
}

// setupSignalHandler runs cleanup and exits on SIGINT or SIGTERM.
func setupSignalHandler(cleanup func()) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-sigCh
		fmt.Println()
		cleanup()
		os.Exit(0)
	}()
}

// =============================================================================
// Main
// =============================================================================

func main() {
	args, err := parseArguments(os.Args[1:])
	if err != nil {
		printError(err.Error())
		fmt.Fprintln(os.Stderr, "Run 'slctl --help' for usage.")
		os.Exit(1)
	}

	if args.showHelp {
		printUsage()
		return
	}
	if args.showVersion {
		printVersion()
		return
	}

	log, err := newLogger(args.debug)
	if err != nil {
		printError(err.Error())
		os.Exit(1)
	}
	defer log.Sync()

	dev := slprotocol.NewDevice(slprotocol.Config{
		Host:   args.host,
		Port:   args.port,
		Logger: log,
	})

	if args.probe {
		os.Exit(runProbe(dev))
	}

	ctx, cancel := context.WithCancel(context.Background())

	var bridge *snapshotBridge
	var server *http.Server
	if args.listen != "" {
		bridge = newSnapshotBridge(log)
		server = &http.Server{
			Addr:              args.listen,
			Handler:           bridge.Handler(),
			ReadHeaderTimeout: 5 * time.Second,
		}
		go func() {
			if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Error("bridge server failed", zap.String("addr", args.listen), zap.Error(err))
			}
		}()
	}

	printChanges := changePrinter(func(s string) { fmt.Print(s) })
	onUpdate := func(s slprotocol.Snapshot) {
		printChanges(s)
		if bridge != nil {
			bridge.Publish(dev.DeviceID(), s)
		}
	}

	// The signal handler and the normal exit path both call cleanup.
	cleanup := newCleanup(
		cancel,
		func() {
			if server == nil {
				return
			}
			shutdownCtx, done := context.WithTimeout(context.Background(), 2*time.Second)
			defer done()
			if err := server.Shutdown(shutdownCtx); err != nil {
				log.Warn("bridge shutdown", zap.Error(err))
			}
			bridge.Close()
		},
		func() { dev.Close() },
	)
	setupSignalHandler(cleanup)

	initCtx, initDone := context.WithTimeout(ctx, slprotocol.ConnectTimeout+slprotocol.LoginTimeout)
	snap, err := dev.Init(initCtx, onUpdate)
	initDone()
	if err != nil {
		printError(err.Error())
		cleanup()
		os.Exit(1)
	}

	fmt.Print(welcomeBanner(dev.DeviceID(), snap))
	if bridge != nil {
		bridge.Publish(dev.DeviceID(), snap)
		fmt.Printf("Websocket bridge on %s%s\n", args.listen, bridgePath)
	}

	go refreshLoop(ctx, dev, refreshInterval, log)

	editor := NewLineEditor()
	runREPL(ctx, dev, editor, os.Stdout)
	editor.Close()

	cleanup()
}

// runProbe prints the device identity and returns the exit code.
func runProbe(dev *slprotocol.Device) int {
	defer dev.Close()

	ctx, cancel := context.WithTimeout(context.Background(), slprotocol.ConnectTimeout+slprotocol.LoginTimeout)
	defer cancel()

	id, err := dev.Probe(ctx)
	if err != nil {
		printError(err.Error())
		return 1
	}
	fmt.Printf("Model:     %s\n", id.Model)
	fmt.Printf("Device ID: %s\n", id.DeviceID)
	return 0
}
