package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"syscall"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/phantomvault/vaultcore/internal/config"
	"github.com/phantomvault/vaultcore/internal/events"
	"github.com/phantomvault/vaultcore/internal/vault"
)

var rootCmd = &cobra.Command{
	Use:   "vaultcore",
	Short: "Encrypted vault engine",
	Long: `Vaultcore manages password-protected encrypted vaults.

Each vault's records are sealed with AES-256-GCM under a random master
key, which is wrapped by a key stretched from your password. Optional
security questions escrow the master key for recovery.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return initEngine()
	},
}

var (
	cfg        *config.Config
	logger     *events.Logger
	engine     *vault.Engine
	cfgFile    string
	logLevel   string
	jsonOutput bool
)

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "",
		"Config file path (default: vaultcore.json, ~/.config/vaultcore/config.json)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "",
		"Override log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false,
		"Output results as JSON")
}

func initEngine() error {
	var err error
	cfg, err = config.NewLoader(cfgFile).Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if logLevel != "" {
		cfg.Log.Level = logLevel
	}

	logger, err = events.NewLogger(&cfg.Log)
	if err != nil {
		return fmt.Errorf("create logger: %w", err)
	}

	engine, err = vault.New(cfg, logger)
	if err != nil {
		return fmt.Errorf("create engine: %w", err)
	}
	return nil
}

func promptPassword(prompt string) (string, error) {
	fmt.Fprint(os.Stderr, prompt)

	// Read password without echo
	password, err := term.ReadPassword(int(syscall.Stdin))
	fmt.Fprintln(os.Stderr) // New line after password

	if err != nil {
		return "", err
	}

	return string(password), nil
}

// resolvePassword prefers the flag value and prompts otherwise.
func resolvePassword(flagValue, prompt string) (string, error) {
	if flagValue != "" {
		return flagValue, nil
	}
	return promptPassword(prompt)
}

// errOut is swapped out by tests capturing error output.
var errOut io.Writer = os.Stderr

func printSuccess(format string, args ...interface{}) {
	color.New(color.FgGreen).Fprintf(os.Stdout, format+"\n", args...)
}

func printInfo(format string, args ...interface{}) {
	fmt.Fprintf(os.Stdout, format+"\n", args...)
}

func printWarning(format string, args ...interface{}) {
	color.New(color.FgYellow).Fprintf(errOut, format+"\n", args...)
}

func printError(format string, args ...interface{}) {
	color.New(color.FgRed).Fprintf(errOut, format+"\n", args...)
}

func printJSON(v interface{}) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		printError("Encode JSON: %v", err)
		return
	}
	fmt.Println(string(data))
}
