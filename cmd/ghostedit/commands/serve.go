package commands

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/ghostedit/ghostedit/internal/admission"
	"github.com/ghostedit/ghostedit/internal/config"
	"github.com/ghostedit/ghostedit/internal/editor"
	"github.com/ghostedit/ghostedit/internal/event"
	"github.com/ghostedit/ghostedit/internal/logging"
	"github.com/ghostedit/ghostedit/internal/server"
	"github.com/ghostedit/ghostedit/internal/session"
	"github.com/ghostedit/ghostedit/internal/watcher"
)

var (
	servePort        int
	serveHost        string
	serveEditor      string
	serveMulti       bool
	serveIdleTimeout time.Duration
	serveDebounce    time.Duration
	serveNoWatch     bool
	serveOnBusy      string
	serveEditorsFile string
	serveFromSystemd bool
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the ghostedit daemon",
	Long: `Start the daemon the GhostText browser extension connects to.

Flags override values from the config file and GHOSTEDIT_* environment
variables. The editor command may contain %f, %l and %c placeholders for
the file path, cursor line and cursor column.`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().IntVarP(&servePort, "port", "p", 0, "Port to listen on")
	serveCmd.Flags().StringVar(&serveHost, "host", "", "Host to listen on")
	serveCmd.Flags().StringVarP(&serveEditor, "editor", "e", "", "Editor command ($EDITOR if unset)")
	serveCmd.Flags().BoolVarP(&serveMulti, "multi", "m", false, "Allow concurrent sessions")
	serveCmd.Flags().DurationVar(&serveIdleTimeout, "idle-timeout", 0, "Exit after this long with no sessions (0 disables)")
	serveCmd.Flags().DurationVar(&serveDebounce, "debounce", 0, "File change debounce window")
	serveCmd.Flags().BoolVar(&serveNoWatch, "no-watch", false, "Disable file watching; sync only on editor exit")
	serveCmd.Flags().StringVar(&serveOnBusy, "on-busy", "", "What to do with a session while busy (queue|reject)")
	serveCmd.Flags().StringVar(&serveEditorsFile, "editors-file", "", "YAML file of extra known editor cursor flags")
	serveCmd.Flags().BoolVar(&serveFromSystemd, "from-systemd", false, "Use the socket passed in by systemd activation")
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	applyServeFlags(cmd, cfg)
	if err := cfg.Validate(); err != nil {
		return err
	}

	level := cfg.LogLevel
	if logLevel != "" {
		level = logLevel
	}
	initLogging(level, prettyLogs || cfg.PrettyLogs)
	log := logging.With().Str("component", "serve").Logger()

	known := editor.DefaultKnownEditors()
	if cfg.EditorsFile != "" {
		known, err = editor.LoadKnownEditors(cfg.EditorsFile)
		if err != nil {
			return err
		}
	}

	bus := event.NewBus()
	defer bus.Close()

	watch := cfg.WatchEnabled()
	if watch {
		if probeErr := watcher.Available(); probeErr != nil {
			log.Warn().Err(probeErr).Msg("file watching unavailable, syncing on editor exit only")
			watch = false
			bus.Publish(event.Event{
				Type: event.WatchDegraded,
				Data: event.WatchDegradedData{Reason: probeErr.Error()},
			})
		}
	}

	ctrl := admission.New(admission.Config{
		Multi:       cfg.Multi,
		MaxSessions: cfg.MaxSessions,
		OnBusy:      busyPolicy(cfg.OnBusy),
	})

	engineOpts := session.Options{
		EditorTemplate: cfg.Editor,
		Known:          known,
		Debounce:       cfg.Debounce.Std(),
		Watch:          watch,
		StopEditor:     true,
		Bus:            bus,
	}

	srvCfg := server.DefaultConfig()
	srvCfg.Host = cfg.Host
	srvCfg.Port = cfg.Port
	srvCfg.IdleTimeout = cfg.IdleTimeout.Std()

	srv := server.New(srvCfg, ctrl, engineOpts, bus)

	errCh := make(chan error, 1)
	go func() {
		if serveFromSystemd {
			ln, err := server.SystemdListener()
			if err != nil {
				errCh <- err
				return
			}
			log.Info().Msg("serving on systemd-activated socket")
			errCh <- srv.Serve(ln)
			return
		}
		errCh <- srv.Start()
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return err
	case sig := <-quit:
		log.Info().Str("signal", sig.String()).Msg("shutting down")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Warn().Err(err).Msg("shutdown incomplete")
	}
	return nil
}

// applyServeFlags overlays explicitly-set flags onto the loaded config.
func applyServeFlags(cmd *cobra.Command, cfg *config.Config) {
	f := cmd.Flags()
	if f.Changed("port") {
		cfg.Port = servePort
	}
	if f.Changed("host") {
		cfg.Host = serveHost
	}
	if f.Changed("editor") {
		cfg.Editor = serveEditor
	}
	if f.Changed("multi") {
		cfg.Multi = serveMulti
	}
	if f.Changed("idle-timeout") {
		cfg.IdleTimeout = config.Duration(serveIdleTimeout)
	}
	if f.Changed("debounce") {
		cfg.Debounce = config.Duration(serveDebounce)
	}
	if f.Changed("no-watch") {
		watch := !serveNoWatch
		cfg.Watch = &watch
	}
	if f.Changed("on-busy") {
		cfg.OnBusy = serveOnBusy
	}
	if f.Changed("editors-file") {
		cfg.EditorsFile = serveEditorsFile
	}
}

func busyPolicy(s string) admission.Policy {
	if s == config.BusyReject {
		return admission.Reject
	}
	return admission.Queue
}
