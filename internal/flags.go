package internal

import (
	"fmt"

	"github.com/spf13/cobra"
)

// AddAcquisitionFlags adds the flags shared by every transcript-producing command
func AddAcquisitionFlags(cmd *cobra.Command) {
	cmd.Flags().StringP("language", "l", "", "Caption/transcription language (default from config)")
	cmd.Flags().StringP("format", "f", "", "Output format: text, subtitle or structured")
	cmd.Flags().StringP("method", "m", "", "Pin acquisition to one tier: unofficial or ai_audio")
}

// HandleVerboseFlag processes the --verbose flag to update config
func HandleVerboseFlag(cmd *cobra.Command, config *Config) error {
	verbose, err := cmd.Flags().GetBool("verbose")
	if err != nil {
		return fmt.Errorf("failed to get verbose flag: %w", err)
	}
	config.Verbose = verbose
	return nil
}

// BuildRequest merges flags and config into one acquisition request.
func BuildRequest(cmd *cobra.Command, config *Config, arg string) (TranscriptRequest, error) {
	_, videoID := ParseArg(arg)
	if !IsValidYouTubeID(videoID) {
		return TranscriptRequest{}, fmt.Errorf("'%s' doesn't look like a YouTube URL or video ID", arg)
	}

	language := config.Language
	if flag, _ := cmd.Flags().GetString("language"); flag != "" {
		language = flag
	}

	formatName := config.OutputFormat
	if flag, _ := cmd.Flags().GetString("format"); flag != "" {
		formatName = flag
	}
	format, err := ParseOutputFormat(formatName)
	if err != nil {
		return TranscriptRequest{}, err
	}

	methodName, _ := cmd.Flags().GetString("method")
	method, err := ParseMethod(methodName)
	if err != nil {
		return TranscriptRequest{}, err
	}

	return TranscriptRequest{
		VideoID:  videoID,
		Language: language,
		Format:   format,
		Method:   method,
	}, nil
}

// ValidateProviderRequirements checks that at least one transcription backend
// is configured. Only needed for commands that may run the audio tier.
func ValidateProviderRequirements(config *Config) error {
	if config.OpenAIAPIKey != "" {
		return nil
	}
	if config.CloudflareAccountID != "" && config.CloudflareAPIToken != "" {
		return nil
	}
	return fmt.Errorf("no transcription provider configured: set OPENAI_API_KEY or CLOUDFLARE_ACCOUNT_ID and CLOUDFLARE_API_TOKEN")
}
