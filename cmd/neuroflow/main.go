package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/alecthomas/kong"
	"github.com/charmbracelet/lipgloss"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/guidoenr/neuroflow/internal/app"
	"github.com/guidoenr/neuroflow/internal/audio"
	"github.com/guidoenr/neuroflow/internal/config"
	"github.com/guidoenr/neuroflow/internal/engine"
	"github.com/guidoenr/neuroflow/internal/events"
	"github.com/guidoenr/neuroflow/internal/profile"
	"github.com/guidoenr/neuroflow/internal/web"
)

var version = "0.1.0"

// CLI defines the command-line interface. Flags left at their zero value
// keep the value from the config file.
type CLI struct {
	Config       string  `short:"c" type:"path" help:"Path to YAML config file (optional)"`
	Backend      string  `short:"b" help:"Output backend (portaudio|oto|headless)"`
	Device       string  `short:"d" help:"Output device name (substring match)"`
	SampleRate   float64 `help:"Output sample rate in Hz"`
	Frames       int     `help:"Frames per output buffer"`
	Profile      string  `short:"p" help:"Initial profile"`
	Master       float64 `short:"m" default:"-1" help:"Master volume in [0, 1]"`
	Web          string  `help:"Control server listen address"`
	NoWeb        bool    `help:"Disable the control server"`
	NoUI         bool    `name:"no-ui" help:"Disable the terminal controller"`
	LogLevel     string  `short:"l" help:"Log level (debug|info|warn|error)"`
	ProfileCSV   string  `name:"profile-csv" type:"path" help:"Append control loop timings to this CSV file"`
	Autostart    bool    `short:"a" help:"Start playback immediately"`
	ListDevices  bool    `help:"List output devices and exit"`
	ListProfiles bool    `help:"List profiles and exit"`
	Version      bool    `short:"v" help:"Show version information"`
}

var errorStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#A40000"))

func fatal(format string, args ...any) {
	fmt.Fprintf(os.Stderr, "%s %s\n", errorStyle.Render("Error:"), fmt.Sprintf(format, args...))
	os.Exit(1)
}

func main() {
	cli := &CLI{}
	kong.Parse(cli,
		kong.Name("neuroflow"),
		kong.Description("Procedural ambient soundscapes for focus"),
		kong.UsageOnError(),
	)

	if cli.Version {
		fmt.Println("neuroflow", version)
		return
	}
	if cli.ListProfiles {
		for _, id := range profile.NewStore().IDs() {
			fmt.Println(id)
		}
		return
	}
	if cli.ListDevices {
		listDevices()
		return
	}

	cfg, err := config.Load(cli.Config)
	if err != nil {
		fatal("%v", err)
	}
	cli.apply(&cfg)
	if err := cfg.Validate(); err != nil {
		fatal("invalid configuration: %v", err)
	}

	logger := logrus.New()
	logger.SetLevel(cfg.Level())
	logger.SetOutput(os.Stderr)
	if !cli.NoUI {
		// keep log lines from tearing the terminal panel
		logger.SetFormatter(&logrus.TextFormatter{DisableColors: true, FullTimestamp: true})
		if cfg.Level() == logrus.InfoLevel {
			logger.SetLevel(logrus.WarnLevel)
		}
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx, cfg, cli, logger); err != nil && !errors.Is(err, context.Canceled) {
		fatal("%v", err)
	}
}

func (c *CLI) apply(cfg *config.Config) {
	if c.Backend != "" {
		cfg.Backend = c.Backend
	}
	if c.Device != "" {
		cfg.Device = c.Device
	}
	if c.SampleRate > 0 {
		cfg.SampleRate = c.SampleRate
	}
	if c.Frames > 0 {
		cfg.FramesPerBuffer = c.Frames
	}
	if c.Profile != "" {
		cfg.Profile = c.Profile
	}
	if c.Master >= 0 {
		cfg.MasterVolume = c.Master
	}
	if c.Web != "" {
		cfg.WebAddr = c.Web
	}
	if c.LogLevel != "" {
		cfg.LogLevel = c.LogLevel
	}
	if c.ProfileCSV != "" {
		cfg.ProfilerCSV = c.ProfileCSV
	}
	if c.Autostart {
		cfg.Autostart = true
	}
}

func run(ctx context.Context, cfg config.Config, cli *CLI, log *logrus.Logger) error {
	if cfg.Output().Backend == audio.BackendPortAudio {
		defer audio.Terminate()
	}

	bus := events.NewBroadcaster()
	engCfg := engine.DefaultConfig()
	engCfg.Output = cfg.Output()
	engCfg.Profile = cfg.Profile
	engCfg.MasterVolume = cfg.MasterVolume
	engCfg.Notifier = bus
	engCfg.Log = log

	eng, err := engine.New(engCfg)
	if err != nil {
		return err
	}
	defer func() {
		if err := eng.Close(); err != nil {
			log.WithError(err).Warn("cleanup")
		}
	}()

	if cfg.Autostart {
		if err := eng.Start(); err != nil {
			return err
		}
	}

	g, gctx := errgroup.WithContext(ctx)
	if !cli.NoWeb && cfg.WebAddr != "" {
		srv := web.NewServer(eng, bus, web.Config{Addr: cfg.WebAddr, Log: log})
		g.Go(func() error { return srv.Serve(gctx) })
	}

	if cli.NoUI {
		g.Go(func() error { return eng.Run(gctx, cfg.TickInterval) })
		return g.Wait()
	}

	ui, err := app.New(app.Config{
		Engine:        eng,
		TickInterval:  cfg.TickInterval,
		ShowStatusBar: true,
		UseANSI:       true,
		ProfilerPath:  cfg.ProfilerCSV,
		Log:           log,
	})
	if err != nil {
		return err
	}
	defer ui.Close()

	// quitting the panel ends every other loop
	uiCtx, stop := context.WithCancel(gctx)
	defer stop()
	g.Go(func() error {
		defer stop()
		err := ui.Run(uiCtx)
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	})
	g.Go(func() error {
		<-uiCtx.Done()
		return context.Canceled
	})
	err = g.Wait()
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

func listDevices() {
	defer audio.Terminate()
	devices, err := audio.ListOutputDevices()
	if err != nil {
		fatal("list devices: %v", err)
	}
	fmt.Printf("\n=== Audio Output Devices ===\n\n")
	for _, dev := range devices {
		markers := ""
		if dev.IsDefaultOutput {
			markers += " (default)"
		}
		fmt.Printf("- %s [%s]%s\n    outputs:%d sample:%.0f Hz\n",
			dev.Name, dev.HostAPI, markers, dev.MaxOutput, dev.DefaultSampleHz)
	}
}
