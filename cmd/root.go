package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/capscade/capscade/internal"
)

var (
	config *internal.Config
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "capscade [YouTube URL or ID]",
	Short: "Tiered YouTube transcript acquisition",
	Long: `Capscade acquires transcripts for YouTube videos.

It fetches existing captions when the video has them (free), and falls
back to downloading the audio and transcribing it in chunks with
speech-to-text providers when it doesn't (costs money).

Results can be rendered as plain text, SRT subtitles or JSON.`,
	Example: `  # Acquire a transcript (captions first, audio fallback)
  capscade "https://www.youtube.com/watch?v=tAP1eZYEuKA"
  capscade tAP1eZYEuKA

  # Render as SRT subtitles
  capscade tAP1eZYEuKA --format subtitle

  # Pin acquisition to a single tier
  capscade tAP1eZYEuKA --method unofficial
  capscade tAP1eZYEuKA --method ai_audio`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return internal.HandleVerboseFlag(cmd, config)
	},
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		req, err := internal.BuildRequest(cmd, config, args[0])
		if err != nil {
			return err
		}
		if req.Method != internal.MethodUnofficial {
			if err := internal.ValidateProviderRequirements(config); err != nil {
				return err
			}
		}

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

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() error {
	// Create a cancellable context for the entire application
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Initialize configuration with Viper
	config = internal.InitConfig()

	// Ensure XDG directories exist
	if err := internal.EnsureDirs(config.ConfigDir, config.DataDir, config.CacheDir); err != nil {
		fmt.Fprintf(os.Stderr, "Error creating XDG directories: %v\n", err)
		os.Exit(1)
	}

	// Ensure default config exists in XDG config directory
	if err := internal.EnsureDefaultConfig(config.ConfigDir); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: Failed to ensure default config: %v\n", err)
	}

	// Set up signal handling for graceful shutdown
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	// Handle shutdown signal in a separate goroutine
	go func() {
		<-sigCh
		fmt.Println("\nReceived interrupt signal. Cleaning up and shutting down...")

		// Cancel the main context to signal all operations to stop
		cancel()

		// Create a context with timeout for cleanup operations
		cleanupCtx, cleanupCancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cleanupCancel()

		// Run cleanup with timeout context
		cleanupDone := make(chan struct{})
		go func() {
			if err := internal.CleanupScratchDir(config.ScratchDir); err != nil {
				fmt.Fprintf(os.Stderr, "Error cleaning up scratch files: %v\n", err)
			}
			close(cleanupDone)
		}()

		// Wait for either cleanup to complete or timeout
		select {
		case <-cleanupDone:
			// Cleanup completed successfully
		case <-cleanupCtx.Done():
			// Timeout occurred
			fmt.Fprintln(os.Stderr, "Warning: Cleanup timed out, forcing exit")
		}

		// Exit the program
		os.Exit(0)
	}()

	// Set context on root command
	rootCmd.SetContext(ctx)

	return rootCmd.Execute()
}

func init() {
	internal.AddAcquisitionFlags(rootCmd)
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "Enable verbose output for debugging")
	rootCmd.PersistentFlags().String("config", "", "Config file (default is $XDG_CONFIG_HOME/capscade/config.toml)")
	_ = viper.BindPFlag("verbose", rootCmd.PersistentFlags().Lookup("verbose"))
}
