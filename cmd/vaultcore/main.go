// Command vaultcore manages encrypted vaults: creation, unlock,
// configuration, file sealing, and question-based recovery.
package main

import "os"

func main() {
	os.Exit(run())
}

func run() int {
	if err := rootCmd.Execute(); err != nil {
		printError("Error: %v", err)
		return 1
	}
	return 0
}
