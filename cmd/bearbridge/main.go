package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"
)

const version = "1.0.0"

func printVersion() {
	fmt.Printf("bearbridge v%s\n", version)
	fmt.Println("Scene controller bridging a mobile host to the bear actor")
}

func printUsage() {
	printVersion()
	fmt.Println()
	fmt.Println("USAGE:")
	fmt.Println("  bearbridge [OPTIONS]")
	fmt.Println()
	fmt.Println("DESCRIPTION:")
	fmt.Println("  Receives mode commands from the host (websocket /bridge, HTTP, IPC or")
	fmt.Println("  debug keys), animates the bear actor, and emits scene events back to the")
	fmt.Println("  host. Optionally runs a periodic frame capture and analysis loop.")
	fmt.Println()
	fmt.Println("OPTIONS:")
	fmt.Println("  -config string")
	fmt.Println("        Path to YAML config file (watched for material changes)")
	fmt.Println()
	fmt.Println("  -http-listen string")
	fmt.Printf("        HTTP listen address for /bridge and the control routes (default %q)\n", defaultHTTPListen)
	fmt.Println()
	fmt.Println("  -ipc-socket string")
	fmt.Printf("        Unix domain socket path for IPC (default %q)\n", defaultSocketPath)
	fmt.Println()
	fmt.Println("  -frame-hz int")
	fmt.Printf("        Render tick frequency in Hz (default %d)\n", defaultFrameHz)
	fmt.Println()
	fmt.Println("  -actor string")
	fmt.Printf("        Actor name (default %q)\n", defaultActorName)
	fmt.Println()
	fmt.Println("  -local-debug")
	fmt.Println("        Log emitted events instead of forwarding them to the host")
	fmt.Println()
	fmt.Println("  -queue-size int")
	fmt.Printf("        Event queue size (default %d)\n", defaultQueueSize)
	fmt.Println()
	fmt.Println("  -debug-keys string")
	fmt.Println("        Linux input device for editor debug keys 1/2/3/0/R (disabled when empty)")
	fmt.Println()
	fmt.Println("  -capture")
	fmt.Println("        Enable the periodic capture loop")
	fmt.Println()
	fmt.Println("  -capture-dir string")
	fmt.Println("        Directory the newest frame is read from")
	fmt.Println()
	fmt.Println("  -capture-interval-ms int")
	fmt.Printf("        Capture interval in ms (default %d)\n", defaultCaptureIntervalMS)
	fmt.Println()
	fmt.Println("  -analysis-url string")
	fmt.Println("        Analysis endpoint base URL (frames are only logged when empty)")
	fmt.Println()
	fmt.Println("  -log-level string")
	fmt.Println("        Log level: error, warn, info, debug (default \"info\")")
	fmt.Println()
	fmt.Println("  -log-format string")
	fmt.Println("        Log format: text, json (default \"text\")")
	fmt.Println()
	fmt.Println("  -version")
	fmt.Println("        Print version and exit")
	fmt.Println()
	fmt.Println("  -help")
	fmt.Println("        Print this help message")
	fmt.Println()
	fmt.Println("EXAMPLES:")
	fmt.Println("  # Start with defaults (host connects to ws://127.0.0.1:3001/bridge)")
	fmt.Println("  bearbridge")
	fmt.Println()
	fmt.Println("  # Editor mode: keyboard debug keys, events logged locally")
	fmt.Println("  bearbridge -debug-keys /dev/input/event3 -local-debug")
	fmt.Println()
	fmt.Println("  # Switch mode from a shell")
	fmt.Println("  curl -d 2 http://127.0.0.1:3001/command")
	fmt.Println("  bear-ctl mode 2")
	fmt.Println()
}

func main() {
	for _, arg := range os.Args[1:] {
		if arg == "-version" || arg == "--version" {
			printVersion()
			return
		}
		if arg == "-help" || arg == "--help" || arg == "-h" {
			printUsage()
			return
		}
	}

	var (
		configPath        = flag.String("config", "", "Path to YAML config file")
		httpListen        = flag.String("http-listen", defaultHTTPListen, "HTTP listen address")
		ipcSocketPath     = flag.String("ipc-socket", defaultSocketPath, "Unix domain socket path for IPC")
		frameHz           = flag.Int("frame-hz", defaultFrameHz, "Render tick frequency in Hz")
		actorName         = flag.String("actor", defaultActorName, "Actor name")
		localDebug        = flag.Bool("local-debug", false, "Log emitted events instead of forwarding them")
		queueSize         = flag.Int("queue-size", defaultQueueSize, "Event queue size")
		debugKeys         = flag.String("debug-keys", "", "Linux input device for debug keys")
		captureEnabled    = flag.Bool("capture", false, "Enable the periodic capture loop")
		captureDir        = flag.String("capture-dir", "", "Directory the newest frame is read from")
		captureIntervalMS = flag.Int("capture-interval-ms", defaultCaptureIntervalMS, "Capture interval in ms")
		analysisURL       = flag.String("analysis-url", "", "Analysis endpoint base URL")
		logLevelStr       = flag.String("log-level", "info", "Log level: error, warn, info, debug")
		logFormatStr      = flag.String("log-format", "text", "Log format: text, json")
		showVersion       = flag.Bool("version", false, "Print version and exit")
		showHelp          = flag.Bool("help", false, "Print help message")
	)

	flag.Usage = printUsage
	flag.Parse()

	if *showHelp {
		printUsage()
		return
	}
	if *showVersion {
		printVersion()
		return
	}

	cfg := DefaultConfig()
	if *configPath != "" {
		loaded, err := LoadConfigFile(*configPath)
		if err != nil {
			fmt.Fprintln(os.Stderr, "error:", err)
			os.Exit(1)
		}
		cfg = loaded
	}

	// Only flags given on the command line override the file.
	var o FlagOverrides
	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "http-listen":
			o.HTTPListen = httpListen
		case "ipc-socket":
			o.IPCSocketPath = ipcSocketPath
		case "frame-hz":
			o.FrameHz = frameHz
		case "actor":
			o.ActorName = actorName
		case "local-debug":
			o.LocalDebug = localDebug
		case "queue-size":
			o.QueueSize = queueSize
		case "debug-keys":
			o.InputDevice = debugKeys
		case "capture":
			o.CaptureEnabled = captureEnabled
		case "capture-dir":
			o.CaptureSourceDir = captureDir
		case "capture-interval-ms":
			o.CaptureIntervalMS = captureIntervalMS
		case "analysis-url":
			o.AnalysisURL = analysisURL
		case "log-level":
			o.LogLevel = logLevelStr
		case "log-format":
			o.LogFormat = logFormatStr
		}
	})
	o.Apply(&cfg)

	if err := cfg.Validate(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}

	logLevel, _ := parseLogLevel(cfg.Logging.Level)
	logFormat, _ := parseLogFormat(cfg.Logging.Format)
	logger := setupLogger(os.Stderr, logLevel, logFormat)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, *configPath, logger); err != nil {
		logger.Error("bearbridge stopped", "error", err)
		os.Exit(1)
	}
	logger.Info("shutdown complete")
}

// run wires every component and blocks until ctx is canceled or one of them
// fails.
func run(ctx context.Context, cfg Config, configPath string, logger *slog.Logger) error {
	g, ctx := errgroup.WithContext(ctx)

	events := make(chan Event, cfg.Bridge.QueueSize)

	bridge := NewBridge(ctx, events, logger, BridgeOptions{LocalDebug: cfg.Bridge.LocalDebug})

	hosts := NewHostServer(logger, bridge, events, HubConfig{})
	bridge.OnEmit(func(payload []byte, ev BridgeEvent) {
		if ev.Kind == EventLoaded {
			hosts.Hub().BroadcastGreeting(payload)
			return
		}
		hosts.Hub().BroadcastBytes(payload)
	})

	var capture *CaptureLoop
	if cfg.Capture.Enabled {
		capture = setupCapture(ctx, g, cfg, logger)
	}

	srv := NewHTTPServer(logger, bridge, events, hosts, capture)

	logger.Info("starting bearbridge",
		"version", version,
		"actor", cfg.Scene.Actor.Name,
		"frame_hz", cfg.Scene.FrameHz,
		"http", cfg.HTTP.Listen,
		"ipc", cfg.IPC.SocketPath,
		"local_debug", cfg.Bridge.LocalDebug,
		"capture", cfg.Capture.Enabled)

	g.Go(func() error {
		runDaemon(ctx, events, bridge, cfg.ToSceneConfig(), NewSceneState(&cfg), cfg.Scene.FrameHz, logger)
		return nil
	})

	g.Go(func() error {
		hosts.Hub().Run(ctx)
		return nil
	})

	g.Go(func() error {
		return runHTTPServer(ctx, srv, cfg.HTTP.Listen, logger)
	})

	g.Go(func() error {
		return runIPCServer(ctx, cfg.IPC.SocketPath, bridge, events, logger)
	})

	if configPath != "" {
		g.Go(func() error {
			if err := watchConfigFile(ctx, configPath, events, logger); err != nil {
				// Hot reload is a convenience; the daemon keeps running without it.
				logger.Warn("config watcher disabled", "error", err)
			}
			return nil
		})
	}

	if len(cfg.Input.Devices) > 0 {
		g.Go(func() error {
			return runDebugKeys(ctx, cfg.Input.Devices, bridge, logger)
		})
	}

	err := g.Wait()
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// setupCapture starts the capture loop disarmed and arms it once the source
// and the analysis service are ready. The loop is torn down with ctx.
func setupCapture(ctx context.Context, g *errgroup.Group, cfg Config, logger *slog.Logger) *CaptureLoop {
	source := NewDirFrameSource(cfg.Capture.SourceDir)

	var analyzer Analyzer
	if cfg.Capture.AnalysisURL != "" {
		analyzer = NewHTTPAnalyzer(cfg.Capture.AnalysisURL, time.Duration(cfg.Capture.AnalysisTimeoutMS)*time.Millisecond)
	} else {
		analyzer = NewLogAnalyzer(logger)
	}

	loop := NewCaptureLoop(source, analyzer, cfg.ToCaptureConfig(), logger)

	g.Go(func() error {
		if err := loop.Start(ctx); err != nil {
			return fmt.Errorf("start capture loop: %w", err)
		}
		<-ctx.Done()
		loop.Teardown()
		return nil
	})

	g.Go(func() error {
		retry := time.Duration(cfg.Capture.InitRetryMS) * time.Millisecond
		if err := ArmWhenReady(ctx, loop, source, analyzer, retry, logger); err != nil && ctx.Err() == nil {
			return fmt.Errorf("arm capture loop: %w", err)
		}
		return nil
	})

	return loop
}
