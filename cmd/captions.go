package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/capscade/capscade/internal"
)

// captionsCmd represents the captions command
var captionsCmd = &cobra.Command{
	Use:   "captions [YouTube URL or ID]",
	Short: "Fetch existing captions only (no audio fallback)",
	Example: `  # Fetch the caption track (fails if the video has none)
  capscade captions "https://www.youtube.com/watch?v=tAP1eZYEuKA"
  capscade captions tAP1eZYEuKA

  # Fetch captions in a specific language as SRT
  capscade captions tAP1eZYEuKA -l de -f subtitle`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		req, err := internal.BuildRequest(cmd, config, args[0])
		if err != nil {
			return err
		}
		req.Method = internal.MethodUnofficial

		app := internal.NewApp(config)
		result, err := app.AcquireTranscript(cmd.Context(), req)
		if err != nil {
			return err
		}

		rendered, err := internal.RenderTranscript(result, req.Format)
		if err != nil {
			return err
		}
		fmt.Println(rendered)
		return nil
	},
}

func init() {
	captionsCmd.Flags().StringP("language", "l", "", "Caption language (default from config)")
	captionsCmd.Flags().StringP("format", "f", "", "Output format: text, subtitle or structured")
	rootCmd.AddCommand(captionsCmd)
}
