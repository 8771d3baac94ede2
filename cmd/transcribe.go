package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/capscade/capscade/internal"
)

// transcribeCmd represents the transcribe command
var transcribeCmd = &cobra.Command{
	Use:   "transcribe [YouTube URL or ID]",
	Short: "Transcribe a video's audio with speech-to-text (skips captions)",
	Example: `  # Transcribe audio even when captions exist (costs money)
  capscade transcribe "https://www.youtube.com/watch?v=tAP1eZYEuKA"
  capscade transcribe tAP1eZYEuKA

  # Save transcript to file
  capscade transcribe tAP1eZYEuKA -o transcript.txt`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := internal.ValidateProviderRequirements(config); err != nil {
			return err
		}

		req, err := internal.BuildRequest(cmd, config, args[0])
		if err != nil {
			return err
		}
		req.Method = internal.MethodAIAudio

		app := internal.NewApp(config)
		result, err := app.AcquireTranscript(cmd.Context(), req)
		if err != nil {
			return err
		}

		rendered, err := internal.RenderTranscript(result, req.Format)
		if err != nil {
			return err
		}

		// Handle output flag
		outputFile, _ := cmd.Flags().GetString("output")
		if outputFile != "" {
			return os.WriteFile(outputFile, []byte(rendered), 0644)
		}

		fmt.Println(rendered)
		return nil
	},
}

func init() {
	transcribeCmd.Flags().StringP("language", "l", "", "Transcription language (default from config)")
	transcribeCmd.Flags().StringP("format", "f", "", "Output format: text, subtitle or structured")
	transcribeCmd.Flags().StringP("output", "o", "", "Output file path (default: stdout)")
	rootCmd.AddCommand(transcribeCmd)
}
