package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var createCmd = &cobra.Command{
	Use:   "create <name>",
	Short: "Create a new vault",
	Long:  `Create provisions a new encrypted vault protected by a password.`,
	Example: `  vaultcore create personal
  vaultcore create work --description "Work documents" --location /srv/vaults/work`,
	Args: cobra.ExactArgs(1),
	RunE: runCreate,
}

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List all vaults",
	RunE:  runList,
}

var unlockCmd = &cobra.Command{
	Use:   "unlock <vault-id>",
	Short: "Unlock a vault and show its metadata",
	Long: `Unlock verifies the password and prints the vault's decrypted
metadata. It is the quickest way to check a password is correct.`,
	Args: cobra.ExactArgs(1),
	RunE: runUnlock,
}

var deleteCmd = &cobra.Command{
	Use:   "delete <vault-id>",
	Short: "Delete a vault and all its records",
	Args:  cobra.ExactArgs(1),
	RunE:  runDelete,
}

var changePasswordCmd = &cobra.Command{
	Use:   "change-password <vault-id>",
	Short: "Change a vault's password",
	Long: `Change-password rewraps the vault's master key under a new password.
Existing records and recovery questions are untouched.`,
	Args: cobra.ExactArgs(1),
	RunE: runChangePassword,
}

var (
	createDescription string
	createLocation    string
	createPassword    string
	unlockPassword    string
	deletePassword    string
	changeOldPassword string
	changeNewPassword string
)

func init() {
	rootCmd.AddCommand(createCmd, listCmd, unlockCmd, deleteCmd, changePasswordCmd)

	createCmd.Flags().StringVar(&createDescription, "description", "",
		"Vault description")
	createCmd.Flags().StringVar(&createLocation, "location", "",
		"Vault location hint")
	createCmd.Flags().StringVarP(&createPassword, "password", "p", "",
		"Vault password (will prompt if not provided)")

	unlockCmd.Flags().StringVarP(&unlockPassword, "password", "p", "",
		"Vault password (will prompt if not provided)")

	deleteCmd.Flags().StringVarP(&deletePassword, "password", "p", "",
		"Vault password (will prompt if not provided)")

	changePasswordCmd.Flags().StringVar(&changeOldPassword, "old-password", "",
		"Current password (will prompt if not provided)")
	changePasswordCmd.Flags().StringVar(&changeNewPassword, "new-password", "",
		"New password (will prompt if not provided)")
}

func runCreate(cmd *cobra.Command, args []string) error {
	name := args[0]

	password, err := resolvePassword(createPassword, "Vault password: ")
	if err != nil {
		return fmt.Errorf("read password: %w", err)
	}

	meta, err := engine.CreateVault(name, createDescription, createLocation, password)
	if err != nil {
		return fmt.Errorf("create vault: %w", err)
	}

	if jsonOutput {
		printJSON(map[string]interface{}{
			"vault_id": meta.ID,
			"name":     meta.Name,
			"created":  meta.CreatedAt,
		})
		return nil
	}

	printSuccess("Vault %q created", meta.Name)
	printInfo("  ID: %s", meta.ID)
	return nil
}

func runList(cmd *cobra.Command, args []string) error {
	ids, err := engine.ListVaults()
	if err != nil {
		return err
	}

	if jsonOutput {
		printJSON(map[string]interface{}{"vaults": ids})
		return nil
	}

	if len(ids) == 0 {
		printInfo("No vaults found")
		return nil
	}
	for _, id := range ids {
		printInfo("%s", id)
	}
	return nil
}

func runUnlock(cmd *cobra.Command, args []string) error {
	vaultID := args[0]

	password, err := resolvePassword(unlockPassword, "Vault password: ")
	if err != nil {
		return fmt.Errorf("read password: %w", err)
	}

	session, err := engine.OpenSession(vaultID, password)
	if err != nil {
		return fmt.Errorf("unlock vault %s: %w", vaultID, err)
	}
	defer session.Close()

	meta, err := session.Metadata()
	if err != nil {
		return err
	}

	if jsonOutput {
		printJSON(meta)
		return nil
	}

	printSuccess("Vault unlocked")
	printInfo("  ID:          %s", meta.ID)
	printInfo("  Name:        %s", meta.Name)
	if meta.Description != "" {
		printInfo("  Description: %s", meta.Description)
	}
	if meta.Location != "" {
		printInfo("  Location:    %s", meta.Location)
	}
	printInfo("  Created:     %s", meta.CreatedAt.Format("2006-01-02 15:04:05"))
	printInfo("  Modified:    %s", meta.ModifiedAt.Format("2006-01-02 15:04:05"))
	return nil
}

func runDelete(cmd *cobra.Command, args []string) error {
	vaultID := args[0]

	password, err := resolvePassword(deletePassword, "Vault password: ")
	if err != nil {
		return fmt.Errorf("read password: %w", err)
	}

	if err := engine.DeleteVault(vaultID, password); err != nil {
		return fmt.Errorf("delete vault %s: %w", vaultID, err)
	}

	printSuccess("Vault %s deleted", vaultID)
	return nil
}

func runChangePassword(cmd *cobra.Command, args []string) error {
	vaultID := args[0]

	oldPassword, err := resolvePassword(changeOldPassword, "Current password: ")
	if err != nil {
		return fmt.Errorf("read password: %w", err)
	}

	session, err := engine.OpenSession(vaultID, oldPassword)
	if err != nil {
		return fmt.Errorf("unlock vault %s: %w", vaultID, err)
	}
	defer session.Close()

	newPassword, err := resolvePassword(changeNewPassword, "New password: ")
	if err != nil {
		return fmt.Errorf("read password: %w", err)
	}
	confirm, err := resolvePassword(changeNewPassword, "Confirm new password: ")
	if err != nil {
		return fmt.Errorf("read password: %w", err)
	}
	if newPassword != confirm {
		return fmt.Errorf("passwords do not match")
	}

	if err := session.ChangePassword(newPassword); err != nil {
		return fmt.Errorf("change password: %w", err)
	}

	printSuccess("Password changed for vault %s", vaultID)
	return nil
}
