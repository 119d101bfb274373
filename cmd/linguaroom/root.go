package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/linguaroom/linguaroom/internal/api"
	"github.com/linguaroom/linguaroom/internal/config"
	"github.com/linguaroom/linguaroom/internal/domain"
)

var (
	cfgFile   string
	serverURL string
	email     string

	cfg *config.Config
)

var rootCmd = &cobra.Command{
	Use:   "linguaroom",
	Short: "Terminal client for linguaroom language practice rooms",
	Long: `linguaroom joins voice/text practice rooms from the terminal:
chat, typing and speaking indicators, mute/deafen, moderation and
in-memory voice notes.`,
	SilenceUsage:      true,
	PersistentPreRunE: initialize,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default ~/.linguaroom.yaml)")
	rootCmd.PersistentFlags().StringVar(&serverURL, "server", "", "API base URL (overrides config)")
	rootCmd.PersistentFlags().StringVar(&email, "email", "", "account email (overrides config)")
}

func initialize(cmd *cobra.Command, args []string) error {
	var err error
	cfg, err = config.Load(cfgFile)
	if err != nil {
		return err
	}
	if serverURL != "" {
		cfg.ServerURL = serverURL
	}
	if email != "" {
		cfg.Email = email
	}
	return setupLogging(cfg.LogLevel)
}

// setupLogging sends zerolog to ~/.linguaroom.log so log lines never
// tear the terminal UI.
func setupLogging(level string) error {
	lvl, err := zerolog.ParseLevel(level)
	if err != nil {
		lvl = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(lvl)
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix

	home, err := os.UserHomeDir()
	if err != nil {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
		return nil
	}
	f, err := os.OpenFile(filepath.Join(home, ".linguaroom.log"), os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
		return nil
	}
	log.Logger = log.Output(f)
	return nil
}

// authedClient builds a REST client and logs in with the configured
// email. The session cookie lives in the client's jar for the life of
// the process; there is no token to store.
func authedClient(ctx context.Context) (*api.Client, domain.User, error) {
	client, err := api.NewClient(cfg.ServerURL)
	if err != nil {
		return nil, domain.User{}, err
	}
	if cfg.Email == "" {
		return nil, domain.User{}, fmt.Errorf("no account email configured, set email in ~/.linguaroom.yaml or pass --email")
	}
	password := os.Getenv("LINGUAROOM_PASSWORD")
	if password == "" {
		password, err = promptPassword(cfg.Email)
		if err != nil {
			return nil, domain.User{}, err
		}
	}
	user, err := client.Login(ctx, cfg.Email, password)
	if err != nil {
		return nil, domain.User{}, fmt.Errorf("login: %w", err)
	}
	return client, user, nil
}

func promptPassword(email string) (string, error) {
	fmt.Fprintf(os.Stderr, "password for %s: ", email)
	if term.IsTerminal(int(os.Stdin.Fd())) {
		b, err := term.ReadPassword(int(os.Stdin.Fd()))
		fmt.Fprintln(os.Stderr)
		if err != nil {
			return "", fmt.Errorf("read password: %w", err)
		}
		return string(b), nil
	}
	line, err := bufio.NewReader(os.Stdin).ReadString('\n')
	if err != nil {
		return "", fmt.Errorf("read password: %w", err)
	}
	return strings.TrimSpace(line), nil
}
