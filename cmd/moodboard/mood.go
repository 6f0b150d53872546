package main

import (
	"bufio"
	"context"
	"fmt"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/fatih/color"
	"github.com/goodtune/moodboard/internal/mood"
	"github.com/goodtune/moodboard/internal/session"
	"github.com/spf13/cobra"
)

var clearYes bool

var moodCmd = &cobra.Command{
	Use:   "mood",
	Short: "Inspect and change the stored moods",
	Long:  `Work on the configured storage directly, acting as a local admin.`,
}

var moodAddCmd = &cobra.Command{
	Use:   "add CATEGORY VALUE",
	Short: "Record a mood rating",
	Example: `  moodboard mood add Happiness 7
  moodboard -c /etc/moodboard/config.yaml mood add stress 3`,
	Args: cobra.ExactArgs(2),
	RunE: runMoodAdd,
}

var moodShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show the latest rating per category",
	Args:  cobra.NoArgs,
	RunE:  runMoodShow,
}

var moodClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Remove all stored moods",
	Args:  cobra.NoArgs,
	RunE:  runMoodClear,
}

func init() {
	moodClearCmd.Flags().BoolVarP(&clearYes, "yes", "y", false, "Do not ask for confirmation")

	moodCmd.AddCommand(moodAddCmd, moodShowCmd, moodClearCmd)
	rootCmd.AddCommand(moodCmd)
}

func runMoodAdd(cmd *cobra.Command, args []string) error {
	category, err := mood.ParseCategory(args[0])
	if err != nil {
		return err
	}
	value, err := strconv.ParseFloat(args[1], 64)
	if err != nil {
		return fmt.Errorf("%w: %q is not a number", mood.ErrInvalidValue, args[1])
	}

	ctx := context.Background()
	a, err := openApp(ctx, nil)
	if err != nil {
		return err
	}
	defer a.Close()

	record, err := a.store.Upsert(ctx, session.Local(true), category, value)
	if err != nil {
		return err
	}

	green := color.New(color.FgGreen)
	_, _ = green.Fprintf(cmd.OutOrStdout(), "✅ Recorded %s = %s\n", record.Category, strconv.FormatFloat(record.Value, 'f', -1, 64))
	return nil
}

func runMoodShow(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	a, err := openApp(ctx, nil)
	if err != nil {
		return err
	}
	defer a.Close()

	out := cmd.OutOrStdout()
	cyan := color.New(color.FgCyan, color.Bold)
	_, _ = cyan.Fprintln(out, "Current moods")

	latest := a.store.LatestByCategory()
	dates := a.projector.DateRows()

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	for i, l := range latest {
		fmt.Fprintf(w, "  %s\t%s\t%s\n", l.Category, strconv.FormatFloat(l.Value, 'f', -1, 64), dates[i].Date)
	}
	return w.Flush()
}

func runMoodClear(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	a, err := openApp(ctx, nil)
	if err != nil {
		return err
	}
	defer a.Close()

	cleared, err := a.store.Clear(ctx, session.Local(true), func(prompt string) bool {
		if clearYes {
			return true
		}
		return confirm(cmd, prompt)
	})
	if err != nil {
		return err
	}

	if cleared {
		_, _ = color.New(color.FgGreen).Fprintln(cmd.OutOrStdout(), "✅ All moods cleared")
	} else {
		fmt.Fprintln(cmd.OutOrStdout(), "Nothing changed")
	}
	return nil
}

// confirm asks a yes/no question on the command's input.
func confirm(cmd *cobra.Command, prompt string) bool {
	fmt.Fprintf(cmd.OutOrStdout(), "%s [j/N] ", prompt)

	answer, _ := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
	switch strings.ToLower(strings.TrimSpace(answer)) {
	case "j", "ja", "y", "yes":
		return true
	}
	return false
}
