package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/capscade/capscade/internal"
)

// metadataCmd represents the metadata command
var metadataCmd = &cobra.Command{
	Use:   "metadata [YouTube URL or ID]",
	Short: "Show video metadata including caption availability",
	Example: `  # Show metadata for a video
  capscade metadata "https://www.youtube.com/watch?v=tAP1eZYEuKA"
  capscade metadata tAP1eZYEuKA`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		app := internal.NewApp(config)

		metadata, err := app.Metadata(cmd.Context(), args[0])
		if err != nil {
			return err
		}

		fmt.Printf("Title: %s\n", metadata.Title)
		fmt.Printf("Channel: %s\n", metadata.Channel)
		fmt.Printf("Duration: %.0f seconds\n", metadata.Duration)
		fmt.Printf("Has captions: %t\n", metadata.HasCaptions)
		if metadata.Description != "" {
			fmt.Printf("Description: %s\n", metadata.Description)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(metadataCmd)
}
