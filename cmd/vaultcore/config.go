package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Inspect and change per-vault configuration",
}

var configShowCmd = &cobra.Command{
	Use:   "show <vault-id>",
	Short: "Show a vault's configuration",
	Args:  cobra.ExactArgs(1),
	RunE:  runConfigShow,
}

var configSetCmd = &cobra.Command{
	Use:   "set <vault-id>",
	Short: "Update a vault's configuration",
	Example: `  vaultcore config set vault-123 --lock-timeout 600
  vaultcore config set vault-123 --auto-lock=false`,
	Args: cobra.ExactArgs(1),
	RunE: runConfigSet,
}

var configPassword string

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configShowCmd, configSetCmd)

	configCmd.PersistentFlags().StringVarP(&configPassword, "password", "p", "",
		"Vault password (will prompt if not provided)")

	configSetCmd.Flags().Bool("auto-lock", true, "Lock the vault after inactivity")
	configSetCmd.Flags().Int64("lock-timeout", 300, "Auto-lock timeout in seconds")
	configSetCmd.Flags().Bool("clear-clipboard", true, "Clear the clipboard after copying")
	configSetCmd.Flags().Int64("clipboard-timeout", 30, "Clipboard clear delay in seconds")
	configSetCmd.Flags().Bool("hide-vault-dir", true, "Hide the vault directory")
	configSetCmd.Flags().Bool("secure-delete", false, "Overwrite files on delete")
	configSetCmd.Flags().Int("secure-delete-passes", 3, "Overwrite passes for secure delete")
}

func runConfigShow(cmd *cobra.Command, args []string) error {
	vaultID := args[0]

	password, err := resolvePassword(configPassword, "Vault password: ")
	if err != nil {
		return fmt.Errorf("read password: %w", err)
	}

	session, err := engine.OpenSession(vaultID, password)
	if err != nil {
		return fmt.Errorf("unlock vault %s: %w", vaultID, err)
	}
	defer session.Close()

	vaultCfg, err := session.Config()
	if err != nil {
		return err
	}

	if jsonOutput {
		printJSON(vaultCfg)
		return nil
	}

	printInfo("auto_lock            %v", vaultCfg.AutoLock)
	printInfo("lock_timeout         %d", vaultCfg.LockTimeout)
	printInfo("clear_clipboard      %v", vaultCfg.ClearClipboard)
	printInfo("clipboard_timeout    %d", vaultCfg.ClipboardTimeout)
	printInfo("hide_vault_dir       %v", vaultCfg.HideVaultDir)
	printInfo("secure_delete        %v", vaultCfg.SecureDelete)
	printInfo("secure_delete_passes %d", vaultCfg.SecureDeletePasses)
	return nil
}

func runConfigSet(cmd *cobra.Command, args []string) error {
	vaultID := args[0]

	password, err := resolvePassword(configPassword, "Vault password: ")
	if err != nil {
		return fmt.Errorf("read password: %w", err)
	}

	session, err := engine.OpenSession(vaultID, password)
	if err != nil {
		return fmt.Errorf("unlock vault %s: %w", vaultID, err)
	}
	defer session.Close()

	vaultCfg, err := session.Config()
	if err != nil {
		return err
	}

	// Only explicitly set flags touch the stored config.
	flags := cmd.Flags()
	if flags.Changed("auto-lock") {
		vaultCfg.AutoLock, _ = flags.GetBool("auto-lock")
	}
	if flags.Changed("lock-timeout") {
		vaultCfg.LockTimeout, _ = flags.GetInt64("lock-timeout")
	}
	if flags.Changed("clear-clipboard") {
		vaultCfg.ClearClipboard, _ = flags.GetBool("clear-clipboard")
	}
	if flags.Changed("clipboard-timeout") {
		vaultCfg.ClipboardTimeout, _ = flags.GetInt64("clipboard-timeout")
	}
	if flags.Changed("hide-vault-dir") {
		vaultCfg.HideVaultDir, _ = flags.GetBool("hide-vault-dir")
	}
	if flags.Changed("secure-delete") {
		vaultCfg.SecureDelete, _ = flags.GetBool("secure-delete")
	}
	if flags.Changed("secure-delete-passes") {
		vaultCfg.SecureDeletePasses, _ = flags.GetInt("secure-delete-passes")
	}

	if err := session.SetConfig(vaultCfg); err != nil {
		return fmt.Errorf("update config: %w", err)
	}

	printSuccess("Configuration updated for vault %s", vaultID)
	return nil
}
