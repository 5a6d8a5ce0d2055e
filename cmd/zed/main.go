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

	"golang.org/x/sync/errgroup"

	"zed/internal/display"
	"zed/internal/input"
	"zed/internal/lifecycle"
	"zed/internal/scene"
	"zed/internal/scenes"
	"zed/internal/settings"
	"zed/internal/status"
)

const version = "1.0.0"

func printVersion() {
	fmt.Printf("zed v%s\n", version)
	fmt.Println("LED matrix scene engine with gamepad and keyboard input")
}

func printUsage() {
	printVersion()
	fmt.Println()
	fmt.Println("USAGE:")
	fmt.Println("  zed [OPTIONS]")
	fmt.Println()
	fmt.Println("DESCRIPTION:")
	fmt.Println("  Runs interactive scenes (menus, input tester, controller assignment)")
	fmt.Println("  on a pixel matrix at a paced frame rate. Joysticks are discovered and")
	fmt.Println("  hot-plugged automatically; the console keyboard and the IPC socket act")
	fmt.Println("  as additional controllers.")
	fmt.Println()
	fmt.Println("OPTIONS:")
	fmt.Println("  -config string")
	fmt.Println("        YAML config file; flags override its values")
	fmt.Println()
	fmt.Println("  -width int / -height int")
	fmt.Println("        Matrix size in pixels (default 192x64)")
	fmt.Println()
	fmt.Println("  -presenter string")
	fmt.Println("        Frame output: terminal|none (default \"terminal\")")
	fmt.Println()
	fmt.Println("  -fps int")
	fmt.Println("        Target frame rate (default 60)")
	fmt.Println()
	fmt.Println("  -lock-fps")
	fmt.Println("        Pace frames to the target rate (default true)")
	fmt.Println()
	fmt.Println("  -show-fps")
	fmt.Println("        Draw the frame rate overlay")
	fmt.Println()
	fmt.Println("  -joystick-path string")
	fmt.Printf("        Joystick path template (default %q)\n", input.DefaultPathTemplate)
	fmt.Println()
	fmt.Println("  -keyboard")
	fmt.Println("        Read keys from the console tty (default true)")
	fmt.Println()
	fmt.Println("  -brightness float")
	fmt.Printf("        Initial brightness %.1f..%.1f (default %.1f)\n", settings.MinBrightness, settings.MaxBrightness, settings.MaxBrightness)
	fmt.Println()
	fmt.Println("  -persist")
	fmt.Println("        Load and save user settings (default true)")
	fmt.Println()
	fmt.Println("  -ipc-socket string")
	fmt.Println("        Unix domain socket path for IPC, empty disables (default \"/tmp/zed.sock\")")
	fmt.Println()
	fmt.Println("  -status-listen string")
	fmt.Println("        Status WebSocket listen address, empty disables (default \"127.0.0.1:3002\")")
	fmt.Println()
	fmt.Println("  -log-level string")
	fmt.Println("        Log level: error, warn, info, debug (default \"info\")")
	fmt.Println()
	fmt.Println("  -log-file string")
	fmt.Println("        Log destination, \"-\" for stderr (default \"$TMPDIR/zed.log\")")
	fmt.Println()
	fmt.Println("  -intro")
	fmt.Println("        Play the intro before the main menu (default true)")
	fmt.Println()
	fmt.Println("  -debug")
	fmt.Println("        Enable debug mode (the console keyboard starts as player one)")
	fmt.Println()
	fmt.Println("  -version")
	fmt.Println("        Print version and exit")
	fmt.Println()
	fmt.Println("  -help")
	fmt.Println("        Print this help message")
	fmt.Println()
	fmt.Println("KEYS:")
	fmt.Println("  arrows or wasd move, space/enter = A, b = B, x = X, y = Y,")
	fmt.Println("  tab = select, escape = start, Shift+Q or Ctrl+C quits")
	fmt.Println()
	fmt.Println("EXAMPLES:")
	fmt.Println("  # Run with defaults")
	fmt.Println("  zed")
	fmt.Println()
	fmt.Println("  # Headless, logs on stderr, drive it with zedctl")
	fmt.Println("  zed -presenter none -keyboard=false -log-file -")
	fmt.Println()
	fmt.Println("NOTES:")
	fmt.Println("  - Requires read access to /dev/input/js* (add user to 'input' group)")
	fmt.Println("  - Status clients connect to ws://<listen>/ws/status")
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
		configPath = flag.String("config", "", "YAML config file")

		width     = flag.Int("width", 0, "Matrix width in pixels")
		height    = flag.Int("height", 0, "Matrix height in pixels")
		presenter = flag.String("presenter", "", "Frame output: terminal|none")

		targetFPS = flag.Int("fps", 0, "Target frame rate")
		lockFPS   = flag.Bool("lock-fps", true, "Pace frames to the target rate")
		showFPS   = flag.Bool("show-fps", false, "Draw the frame rate overlay")

		pathTemplate = flag.String("joystick-path", "", "Joystick path template")
		keyboard     = flag.Bool("keyboard", true, "Read keys from the console tty")

		brightness = flag.Float64("brightness", 0, "Initial brightness")
		persist    = flag.Bool("persist", true, "Load and save user settings")

		ipcSocketPath = flag.String("ipc-socket", "", "Unix domain socket path for IPC")
		statusListen  = flag.String("status-listen", "", "Status WebSocket listen address")

		logLevelStr = flag.String("log-level", "", "Log level: error, warn, info, debug")
		logFile     = flag.String("log-file", "", "Log destination, - for stderr")

		intro = flag.Bool("intro", true, "Play the intro")
		debug = flag.Bool("debug", false, "Enable debug mode")
	)

	flag.Usage = printUsage
	flag.Parse()

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
		case "width":
			o.Width = width
		case "height":
			o.Height = height
		case "presenter":
			o.Presenter = presenter
		case "fps":
			o.TargetFPS = targetFPS
		case "lock-fps":
			o.LockFPS = lockFPS
		case "show-fps":
			o.ShowFPS = showFPS
		case "joystick-path":
			o.PathTemplate = pathTemplate
		case "keyboard":
			o.Keyboard = keyboard
		case "brightness":
			o.Brightness = brightness
		case "persist":
			o.Persist = persist
		case "ipc-socket":
			o.IPCSocketPath = ipcSocketPath
		case "status-listen":
			o.StatusListen = statusListen
		case "log-level":
			o.LogLevel = logLevelStr
		case "log-file":
			o.LogFile = logFile
		case "intro":
			o.Intro = intro
		case "debug":
			o.Debug = debug
		}
	})
	o.Apply(&cfg)

	if err := cfg.Validate(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}

	logLevel, _ := parseLogLevel(cfg.Logging.Level)
	logOut, err := openLogOutput(cfg.Logging.File)
	if err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
	defer logOut.Close()
	logger := setupLogger(logLevel, logOut)
	slog.SetDefault(logger)

	if err := run(cfg, logger); err != nil {
		logger.Error("zed stopped with error", "error", err)
		fmt.Fprintln(os.Stderr, "error:", err)
		logOut.Close()
		os.Exit(1)
	}
}

// run wires every component and blocks until the engine stops.
func run(cfg Config, logger *slog.Logger) error {
	flags := lifecycle.New()

	// ------------------------------------------------------------------------
	// Settings
	// ------------------------------------------------------------------------
	var store *settings.Store
	if cfg.Settings.Persist {
		s, err := settings.Open(cfg.Settings.AppName, cfg.SettingsDefaults(), logger)
		switch {
		case s == nil:
			logger.Warn("settings persistence unavailable, using defaults", "error", err)
			store = settings.New(cfg.SettingsDefaults())
		case err != nil:
			logger.Warn("saved settings ignored", "error", err)
			store = s
		default:
			store = s
		}
	} else {
		store = settings.New(cfg.SettingsDefaults())
	}
	defer func() {
		if err := store.Save(); err != nil {
			logger.Warn("failed to save settings", "error", err)
		}
	}()

	// ------------------------------------------------------------------------
	// Display
	// ------------------------------------------------------------------------
	var p display.Presenter = display.Discard{}
	if cfg.Display.Presenter == presenterTerminal {
		term := display.NewTerminal(os.Stdout, store.Brightness)
		defer func() { _ = term.Reset() }()
		p = term
	}
	canvas := display.NewCanvas(cfg.Display.Width, cfg.Display.Height, p)

	// ------------------------------------------------------------------------
	// Status stream
	// ------------------------------------------------------------------------
	var (
		statusSrv *status.Server
		notifier  scene.Notifier
		eng       *scene.Engine
		mgr       *input.Manager
	)
	if cfg.Status.Listen != "" {
		statusSrv = status.NewServer(logger, func() status.Snapshot {
			return snapshot(eng, mgr, store, flags)
		}, status.ServerConfig{})
		notifier = statusSrv
	}

	// ------------------------------------------------------------------------
	// Input
	// ------------------------------------------------------------------------
	mgr, err := input.NewManager(input.ManagerOptions{
		PathTemplate: cfg.Input.PathTemplate,
		ScanInterval: cfg.ScanInterval(),
		Gamepad:      input.GamepadOptions{Bindings: cfg.GamepadBindings()},
		Logger:       logger,
		Flags:        flags,
		Notifier:     notifier,
	})
	if err != nil {
		return fmt.Errorf("create input manager: %w", err)
	}
	defer mgr.Close()

	var kb *input.Keyboard
	if cfg.Input.Keyboard {
		kb = input.NewKeyboard(flags.Close, logger)
		attachKeyboard(mgr, kb, cfg.Debug)
	}

	var remote *input.Remote
	if cfg.IPC.SocketPath != "" {
		remote = input.NewRemote(logger)
		mgr.AddDevice(remote)
	}

	// ------------------------------------------------------------------------
	// Scenes
	// ------------------------------------------------------------------------
	eng, err = scene.New(scene.Options{
		Display:   canvas,
		Input:     mgr,
		Settings:  store,
		Flags:     flags,
		Logger:    logger,
		Notifier:  notifier,
		MainMenu:  scenes.NewMainMenu,
		PauseMenu: scenes.NewOptionsMenu,
	})
	if err != nil {
		return fmt.Errorf("create scene engine: %w", err)
	}

	var first scene.Scene = scenes.NewMainMenu()
	if cfg.Intro {
		first = scenes.NewIntro(scenes.NewMainMenu)
	}

	// ------------------------------------------------------------------------
	// Supervision
	// ------------------------------------------------------------------------
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigc := make(chan os.Signal, 1)
	signal.Notify(sigc, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigc)
	go func() {
		select {
		case <-sigc:
			logger.Info("shutting down")
			flags.Close()
		case <-ctx.Done():
		}
	}()

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error { return mgr.Run(gctx) })

	if kb != nil {
		g.Go(func() error {
			if err := runConsole(gctx, cfg.Input.TTY, kb, logger); err != nil {
				logger.Warn("keyboard console stopped", "error", err)
			}
			return nil
		})
	}

	if remote != nil {
		g.Go(func() error {
			return runIPCServer(gctx, cfg.IPC.SocketPath, ipcTarget{remote: remote, quit: flags.Close}, logger)
		})
	}

	if statusSrv != nil {
		g.Go(func() error {
			statusSrv.Hub().Run(gctx)
			return nil
		})
		g.Go(func() error { return runStatusServer(gctx, cfg.Status.Listen, statusSrv, logger) })
	}

	logger.Info("zed starting",
		"version", version,
		"display", fmt.Sprintf("%dx%d", cfg.Display.Width, cfg.Display.Height),
		"presenter", cfg.Display.Presenter,
		"fps", cfg.Frame.TargetFPS,
		"lock_fps", cfg.Frame.Lock,
		"joysticks", cfg.Input.PathTemplate,
		"keyboard", cfg.Input.Keyboard,
		"ipc", cfg.IPC.SocketPath,
		"status", cfg.Status.Listen)

	g.Go(func() error {
		// The engine stopping ends the process: stop everything else too.
		defer cancel()
		defer flags.Close()
		return eng.Run(gctx, first)
	})

	err = g.Wait()
	if flags.ErrorOccurred() {
		logger.Warn("one or more errors occurred during the run")
	}
	if err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

// snapshot builds the status stream's state_init payload.
func snapshot(eng *scene.Engine, mgr *input.Manager, store *settings.Store, flags *lifecycle.Flags) status.Snapshot {
	s := status.Snapshot{
		Brightness:    store.Brightness(),
		ShowFPS:       store.ShowFPS(),
		ErrorOccurred: flags.ErrorOccurred(),
	}
	if eng != nil {
		s.Scenes = eng.Stack()
	}
	if mgr != nil {
		slots := mgr.Slots()
		s.Slots = slots[:]
		for _, d := range mgr.Devices() {
			s.Devices = append(s.Devices, d.ID())
		}
	}
	return s
}
