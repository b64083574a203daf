package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"bottegachat/internal/backend"
	"bottegachat/internal/chat"
	"bottegachat/internal/config"
	"bottegachat/internal/logging"
	"bottegachat/internal/normalize"
	"bottegachat/internal/render"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// set with -ldflags "-X main.version=..."
var version = "dev"

// ownsTerminal marks commands whose output is a full-screen UI; their logs go to a
// file instead of stderr.
const ownsTerminal = "owns-terminal"

// flagKeys maps command-line flags onto config keys.
var flagKeys = map[string]string{
	"backend-url":         config.KeyBackendURL,
	"chat-path":           config.KeyChatPath,
	"thread-id":           config.KeyThreadID,
	"timeout":             config.KeyRequestTimeout,
	"collapse-whitespace": config.KeyCollapseWhitespace,
	"log-level":           config.KeyLogLevel,
	"log-file":            config.KeyLogFile,
	"alt-screen":          config.KeyAltScreen,
	"markdown-style":      config.KeyMarkdownStyle,
	"addr":                config.KeyStubAddr,
	"style":               config.KeyStubStyle,
}

type app struct {
	v         *viper.Viper
	cfgFile   string
	cfg       config.Config
	logCloser io.Closer
}

func newRootCmd() *cobra.Command {
	a := &app{v: config.New()}

	root := &cobra.Command{
		Use:   config.AppName,
		Short: "Terminal client for the Bottega restaurant assistant",
		Long: `bottega-chat talks to the Bottega restaurant assistant over POST /chat.

Run without arguments to start the interactive chat interface.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		Annotations:   map[string]string{ownsTerminal: "true"},
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.setup(cmd)
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			a.close()
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runTUI(cmd.Context())
		},
	}

	flags := root.PersistentFlags()
	flags.StringVar(&a.cfgFile, "config", "", "config file (default "+nullCoalesce(config.DefaultPath(), "none")+")")
	flags.String("backend-url", config.DefaultBackendURL, "base URL of the chat backend")
	flags.String("chat-path", config.DefaultChatPath, "path of the chat endpoint")
	flags.String("thread-id", "", "resume an existing conversation")
	flags.String("log-level", "info", "log level (trace, debug, info, warn, error)")
	flags.String("log-file", "", "log file (the TUI defaults to "+defaultTUILogFile()+")")
	flags.Duration("timeout", 0, "per-turn request timeout (0 waits indefinitely)")
	flags.Bool("collapse-whitespace", false, "collapse whitespace runs in bot replies")
	addTUIFlags(root)

	tui := &cobra.Command{
		Use:         "tui",
		Short:       "Start the interactive chat interface",
		Args:        cobra.NoArgs,
		Annotations: map[string]string{ownsTerminal: "true"},
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runTUI(cmd.Context())
		},
	}
	addTUIFlags(tui)

	root.AddCommand(
		tui,
		newSendCmd(a),
		newServeStubCmd(a),
		newConfigCmd(a),
		&cobra.Command{
			Use:   "version",
			Short: "Print the version",
			Args:  cobra.NoArgs,
			Run: func(cmd *cobra.Command, args []string) {
				fmt.Fprintf(cmd.OutOrStdout(), "%s %s\n", config.AppName, version)
			},
		},
	)
	return root
}

func addTUIFlags(cmd *cobra.Command) {
	cmd.Flags().Bool("alt-screen", true, "use the terminal alternate screen")
	cmd.Flags().String("markdown-style", "", "glamour style for bot replies (default: auto)")
}

// setup binds the running command's flags, loads the config and configures logging.
func (a *app) setup(cmd *cobra.Command) error {
	var bindErr error
	cmd.Flags().VisitAll(func(f *pflag.Flag) {
		key, ok := flagKeys[f.Name]
		if !ok || bindErr != nil {
			return
		}
		bindErr = a.v.BindPFlag(key, f)
	})
	if bindErr != nil {
		return errors.Wrap(bindErr, "failed to bind flags")
	}

	cfg, err := config.Load(a.v, a.cfgFile)
	if err != nil {
		return err
	}
	a.cfg = cfg

	logFile := cfg.LogFile
	if logFile == "" && cmd.Annotations[ownsTerminal] == "true" {
		logFile = defaultTUILogFile()
	}
	closer, err := logging.Setup(cfg.LogLevel, logFile)
	if err != nil {
		return err
	}
	a.logCloser = closer
	log.Debug().
		Str("command", cmd.Name()).
		Str("backend_url", cfg.BackendURL).
		Str("chat_path", cfg.ChatPath).
		Dur("timeout", cfg.RequestTimeout).
		Msg("config loaded")
	return nil
}

func (a *app) close() {
	if a.logCloser != nil {
		_ = a.logCloser.Close()
		a.logCloser = nil
	}
}

func defaultTUILogFile() string {
	return filepath.Join(os.TempDir(), config.AppName+".log")
}

// newController wires the transport, normalizer and controller from the loaded config.
func (a *app) newController(opts ...chat.Option) *chat.Controller {
	logger := log.Logger.With().Str("backend_url", a.cfg.BackendURL).Logger()
	client := backend.NewClient(a.cfg.BackendURL,
		backend.WithPath(a.cfg.ChatPath),
		backend.WithLogger(logger.With().Str("component", "backend").Logger()),
	)
	base := []chat.Option{
		chat.WithLogger(logger.With().Str("component", "chat").Logger()),
		chat.WithNormalizer(normalize.New(
			normalize.WithLogger(logger.With().Str("component", "normalize").Logger()),
			normalize.WithCollapseWhitespace(a.cfg.CollapseWhitespace),
		)),
		chat.WithSessionID(a.cfg.ThreadID),
		chat.WithTimeout(a.cfg.RequestTimeout),
	}
	return chat.New(client, append(base, opts...)...)
}

func (a *app) runTUI(ctx context.Context) error {
	renderer, err := render.New(80, a.cfg.MarkdownStyle)
	if err != nil {
		return err
	}
	ctrl := a.newController()
	log.Info().
		Str("thread_id", ctrl.SessionID()).
		Str("backend_url", a.cfg.BackendURL).
		Msg("starting chat interface")

	opts := []tea.ProgramOption{tea.WithMouseCellMotion(), tea.WithContext(ctx)}
	if a.cfg.AltScreen {
		opts = append(opts, tea.WithAltScreen())
	}
	p := tea.NewProgram(newModel(ctx, a.cfg, ctrl, renderer), opts...)
	if _, err := p.Run(); err != nil && !errors.Is(err, tea.ErrProgramKilled) {
		return errors.Wrap(err, "chat interface failed")
	}
	return nil
}

func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

func main() {
	ctx, stop := signalContext()
	defer stop()
	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "%s: %v\n", config.AppName, err)
		stop()
		os.Exit(1)
	}
}
