package main

import (
	"bufio"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"golang.org/x/term"

	"github.com/pamgate/pamgate"
	"github.com/pamgate/pamgate/bridge"
	"github.com/pamgate/pamgate/errors"
)

func main() {
	var (
		service     = flag.String("service", "", "PAM service name (e.g. login, sshd)")
		user        = flag.String("user", "", "User to authenticate")
		configFile  = flag.String("config", "", "Path to YAML config file")
		module      = flag.String("module", "", "Override path to the PAM shared object")
		workers     = flag.Int("workers", 0, "Worker pool size")
		sendTimeout = flag.Duration("send-timeout", 0, "Message hand-off timeout")
		chatTimeout = flag.Duration("chat-timeout", 0, "Prompt answer timeout")
		logLevel    = flag.String("log", "", "Log level (debug, info, warn, error)")
		interactive = flag.Bool("i", false, "Interactive mode with TUI")
	)
	flag.Parse()

	cfg, err := LoadConfig(*configFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	applyFlags(cfg, *service, *user, *module, *workers, *sendTimeout, *chatTimeout, *logLevel)

	if cfg.User == "" {
		fmt.Fprintln(os.Stderr, "Usage: pamgate -user <name> [-service login] [-config file.yaml]")
		fmt.Fprintln(os.Stderr, "       pamgate -user <name> -i  (interactive mode)")
		os.Exit(1)
	}

	logger, err := buildLogger(cfg.Logging.Level)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	auth, err := buildAuthenticator(cfg, logger)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	defer auth.Close()

	if *interactive {
		if err := runInteractive(auth, cfg); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		return
	}

	ok, err := runTerminal(auth, cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	if !ok {
		os.Exit(1)
	}
}

func applyFlags(cfg *Config, service, user, module string, workers int, sendTimeout, chatTimeout time.Duration, logLevel string) {
	if service != "" {
		cfg.Service = service
	}
	if user != "" {
		cfg.User = user
	}
	if module != "" {
		cfg.Module = module
	}
	if workers > 0 {
		cfg.Workers = workers
	}
	if sendTimeout > 0 {
		cfg.SendTimeout = sendTimeout
	}
	if chatTimeout > 0 {
		cfg.ChatTimeout = chatTimeout
	}
	if logLevel != "" {
		cfg.Logging.Level = logLevel
	}
}

func buildLogger(level string) (*zap.Logger, error) {
	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		return nil, fmt.Errorf("parse log level: %w", err)
	}
	zcfg := zap.NewDevelopmentConfig()
	zcfg.Level = zap.NewAtomicLevelAt(lvl)
	return zcfg.Build()
}

func buildAuthenticator(cfg *Config, logger *zap.Logger) (*bridge.Authenticator, error) {
	opts := []bridge.Option{
		bridge.WithWorkers(cfg.Workers),
		bridge.WithSendTimeout(cfg.SendTimeout),
		bridge.WithChatTimeout(cfg.ChatTimeout),
		bridge.WithLogger(logger),
	}
	if cfg.Module != "" {
		opts = append(opts, bridge.WithModulePath(cfg.Module))
	}
	if cfg.MinVersion != "" {
		opts = append(opts, bridge.WithMinVersion(cfg.MinVersion))
	}
	return bridge.New(opts...)
}

// runTerminal drives one conversation on a plain terminal: visible prompts
// read a line, concealed prompts read without echo.
func runTerminal(auth *bridge.Authenticator, cfg *Config) (bool, error) {
	conv, err := auth.Chat(cfg.Service, cfg.User)
	if err != nil {
		return false, err
	}
	defer conv.Close()

	reader := bufio.NewReader(os.Stdin)
	for {
		msg, err := conv.Recv(cfg.ChatTimeout)
		if err != nil {
			if errors.IsClosed(err) {
				return false, nil
			}
			return false, err
		}

		switch msg.Kind {
		case pamgate.MsgNoEcho:
			fmt.Print(msg.Text + " ")
			secret, err := term.ReadPassword(int(os.Stdin.Fd()))
			fmt.Println()
			if err != nil {
				return false, err
			}
			if err := conv.Answer(string(secret), cfg.SendTimeout); err != nil {
				return false, err
			}

		case pamgate.MsgEcho:
			fmt.Print(msg.Text + " ")
			line, err := reader.ReadString('\n')
			if err != nil {
				return false, err
			}
			if err := conv.Answer(strings.TrimRight(line, "\r\n"), cfg.SendTimeout); err != nil {
				return false, err
			}

		case pamgate.MsgInfo:
			fmt.Println(msg.Text)

		case pamgate.MsgError:
			fmt.Fprintln(os.Stderr, msg.Text)

		case pamgate.MsgAuthenticated:
			fmt.Printf("Authenticated %s for service %s\n", cfg.User, cfg.Service)
			return true, nil

		case pamgate.MsgAuthenticationFailed, pamgate.MsgValidationFailed:
			fmt.Fprintln(os.Stderr, msg.String())
			return false, nil
		}
	}
}
