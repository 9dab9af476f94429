package main

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/phantomvault/vaultcore/internal/recovery"
)

var recoveryCmd = &cobra.Command{
	Use:   "recovery",
	Short: "Manage question-based vault recovery",
}

var recoverySetupCmd = &cobra.Command{
	Use:   "setup <vault-id>",
	Short: "Configure security questions for a vault",
	Long: `Setup escrows the vault's master key under a set of security
questions. All answers must be given, in order, to recover the vault.`,
	Example: `  vaultcore recovery setup vault-123 --questions 3`,
	Args:    cobra.ExactArgs(1),
	RunE:    runRecoverySetup,
}

var recoveryQuestionsCmd = &cobra.Command{
	Use:   "questions <vault-id>",
	Short: "Show a vault's recovery questions",
	Args:  cobra.ExactArgs(1),
	RunE:  runRecoveryQuestions,
}

var recoveryRecoverCmd = &cobra.Command{
	Use:   "recover <vault-id>",
	Short: "Recover a vault by answering its security questions",
	Long: `Recover prompts for every security question. Answering all of them
correctly unlocks the vault and prompts for a new password. Attempts
are limited; exhausting them locks recovery permanently.`,
	Args: cobra.ExactArgs(1),
	RunE: runRecoveryRecover,
}

var recoveryRemoveCmd = &cobra.Command{
	Use:   "remove <vault-id>",
	Short: "Remove a vault's recovery configuration",
	Args:  cobra.ExactArgs(1),
	RunE:  runRecoveryRemove,
}

var recoveryStatusCmd = &cobra.Command{
	Use:   "status <vault-id>",
	Short: "Show recovery status and remaining attempts",
	Args:  cobra.ExactArgs(1),
	RunE:  runRecoveryStatus,
}

var (
	recoverySetupCount     int
	recoverySetupPassword  string
	recoveryRemovePassword string
)

func init() {
	rootCmd.AddCommand(recoveryCmd)
	recoveryCmd.AddCommand(recoverySetupCmd, recoveryQuestionsCmd,
		recoveryRecoverCmd, recoveryRemoveCmd, recoveryStatusCmd)

	recoverySetupCmd.Flags().IntVarP(&recoverySetupCount, "questions", "q", 3,
		"Number of security questions")
	recoverySetupCmd.Flags().StringVarP(&recoverySetupPassword, "password", "p", "",
		"Vault password (will prompt if not provided)")

	recoveryRemoveCmd.Flags().StringVarP(&recoveryRemovePassword, "password", "p", "",
		"Vault password (will prompt if not provided)")
}

func runRecoverySetup(cmd *cobra.Command, args []string) error {
	vaultID := args[0]
	if recoverySetupCount < 1 {
		return fmt.Errorf("at least one question is required")
	}

	password, err := resolvePassword(recoverySetupPassword, "Vault password: ")
	if err != nil {
		return fmt.Errorf("read password: %w", err)
	}

	session, err := engine.OpenSession(vaultID, password)
	if err != nil {
		return fmt.Errorf("unlock vault %s: %w", vaultID, err)
	}
	defer session.Close()

	reader := bufio.NewReader(os.Stdin)
	qas := make([]recovery.QA, 0, recoverySetupCount)
	for i := 0; i < recoverySetupCount; i++ {
		fmt.Fprintf(os.Stderr, "Question %d: ", i+1)
		question, err := reader.ReadString('\n')
		if err != nil {
			return fmt.Errorf("read question: %w", err)
		}

		answer, err := promptPassword(fmt.Sprintf("Answer %d: ", i+1))
		if err != nil {
			return fmt.Errorf("read answer: %w", err)
		}

		qas = append(qas, recovery.QA{
			Question: strings.TrimSpace(question),
			Answer:   answer,
		})
	}

	if err := session.SetupRecovery(qas); err != nil {
		return fmt.Errorf("configure recovery: %w", err)
	}

	printSuccess("Recovery configured with %d questions", len(qas))
	return nil
}

func runRecoveryQuestions(cmd *cobra.Command, args []string) error {
	vaultID := args[0]

	questions, err := engine.RecoveryQuestions(vaultID)
	if err != nil {
		return err
	}

	if jsonOutput {
		printJSON(map[string]interface{}{
			"vault_id":  vaultID,
			"questions": questions,
		})
		return nil
	}

	for i, q := range questions {
		printInfo("%d. %s", i+1, q.Text)
	}
	return nil
}

func runRecoveryRecover(cmd *cobra.Command, args []string) error {
	vaultID := args[0]

	questions, err := engine.RecoveryQuestions(vaultID)
	if err != nil {
		return err
	}

	answers := make([]string, len(questions))
	for i, q := range questions {
		printInfo("%d. %s", i+1, q.Text)
		answer, err := promptPassword("Answer: ")
		if err != nil {
			return fmt.Errorf("read answer: %w", err)
		}
		answers[i] = answer
	}

	// IncorrectAnswersError and ErrRecoveryExhausted already read well;
	// the top-level handler prints them.
	session, err := engine.Recover(vaultID, answers)
	if err != nil {
		return err
	}
	defer session.Close()

	printSuccess("Vault recovered")

	newPassword, err := promptPassword("New password: ")
	if err != nil {
		return fmt.Errorf("read password: %w", err)
	}
	if err := session.ChangePassword(newPassword); err != nil {
		return fmt.Errorf("set new password: %w", err)
	}

	printSuccess("Password reset for vault %s", vaultID)
	return nil
}

func runRecoveryRemove(cmd *cobra.Command, args []string) error {
	vaultID := args[0]

	password, err := resolvePassword(recoveryRemovePassword, "Vault password: ")
	if err != nil {
		return fmt.Errorf("read password: %w", err)
	}

	session, err := engine.OpenSession(vaultID, password)
	if err != nil {
		return fmt.Errorf("unlock vault %s: %w", vaultID, err)
	}
	defer session.Close()

	if err := session.RemoveRecovery(); err != nil {
		return fmt.Errorf("remove recovery: %w", err)
	}

	printSuccess("Recovery removed for vault %s", vaultID)
	return nil
}

func runRecoveryStatus(cmd *cobra.Command, args []string) error {
	vaultID := args[0]

	configured, err := engine.HasRecovery(vaultID)
	if err != nil {
		return err
	}

	if !configured {
		if jsonOutput {
			printJSON(map[string]interface{}{
				"vault_id":   vaultID,
				"configured": false,
			})
			return nil
		}
		printInfo("No recovery configured for vault %s", vaultID)
		return nil
	}

	remaining, err := engine.RecoveryAttemptsRemaining(vaultID)
	if err != nil {
		return err
	}

	if jsonOutput {
		printJSON(map[string]interface{}{
			"vault_id":           vaultID,
			"configured":         true,
			"attempts_remaining": remaining,
		})
		return nil
	}

	printInfo("Recovery configured for vault %s", vaultID)
	if remaining == 0 {
		printWarning("Attempts remaining: 0 (recovery locked)")
	} else {
		printInfo("Attempts remaining: %d", remaining)
	}
	return nil
}
