package cmd

import (
	"fmt"

	"github.com/atotto/clipboard"
	"github.com/spf13/cobra"

	"github.com/capscade/capscade/internal"
)

// cpCmd copies the transcript to the system clipboard instead of printing to stdout.
var cpCmd = &cobra.Command{
	Use:   "cp [YouTube URL or ID]",
	Short: "Copy a transcript to the clipboard",
	Example: `  # Copy a transcript to the clipboard
  capscade cp "https://www.youtube.com/watch?v=tAP1eZYEuKA"
  capscade cp tAP1eZYEuKA`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		app := internal.NewApp(config)

		rendered, err := fetchRendered(cmd, app, args[0])
		if err != nil {
			return err
		}

		if err := clipboard.WriteAll(rendered); err != nil {
			return fmt.Errorf("copying transcript to clipboard: %w", err)
		}

		if !config.Quiet {
			fmt.Println("Transcript copied to clipboard")
		}

		return nil
	},
}

func init() {
	internal.AddAcquisitionFlags(cpCmd)
	rootCmd.AddCommand(cpCmd)
}
