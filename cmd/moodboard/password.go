package main

import (
	"bufio"
	"errors"
	"fmt"
	"strings"

	"github.com/goodtune/moodboard/internal/session"
	"github.com/spf13/cobra"
)

var passwordCmd = &cobra.Command{
	Use:   "password",
	Short: "Admin password helpers",
}

var passwordHashCmd = &cobra.Command{
	Use:   "hash [PASSWORD]",
	Short: "Print a bcrypt hash for admin.password_hash",
	Long: `Print a bcrypt hash suitable for admin.password_hash.
When PASSWORD is omitted it is read from the first line of standard input.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runPasswordHash,
}

func init() {
	passwordCmd.AddCommand(passwordHashCmd)
	rootCmd.AddCommand(passwordCmd)
}

func runPasswordHash(cmd *cobra.Command, args []string) error {
	var password string
	if len(args) == 1 {
		password = args[0]
	} else {
		line, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
		if err != nil && line == "" {
			return fmt.Errorf("failed to read password: %w", err)
		}
		password = strings.TrimRight(line, "\r\n")
	}
	if password == "" {
		return errors.New("password must not be empty")
	}

	hash, err := session.HashPassword(password)
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), hash)
	return nil
}
