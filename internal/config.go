package internal

import (
	"context"
	"embed"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"time"

	"github.com/adrg/xdg"
	"github.com/lrstanley/go-ytdlp"
	"github.com/spf13/viper"
)

// CommandRunner executes external commands
type CommandRunner interface {
	Run(ctx context.Context, name string, args ...string) ([]byte, error)
}

// DefaultCommandRunner implements CommandRunner
type DefaultCommandRunner struct{}

func (r *DefaultCommandRunner) Run(ctx context.Context, name string, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	return cmd.CombinedOutput()
}

// Config holds application settings
type Config struct {
	// Request defaults
	Language     string
	OutputFormat string

	// Tier 1: captions endpoint
	CaptionsBaseURL string
	Tier1Attempts   int
	Tier1Timeout    time.Duration

	// Tier 2: audio pipeline
	ChunkMaxBytes      int64
	OverlapSeconds     float64
	MaxConcurrency     int
	ChunkRetries       int
	CallTimeout        time.Duration
	ProviderWaitBudget time.Duration
	MaxFailedFraction  float64
	// Tier2MaxDuration is a guardrail, not a hard design limit; 0 disables it.
	Tier2MaxDuration time.Duration
	LargeChunkBytes  int64
	SafetyFactor     float64

	// Provider credentials
	OpenAIAPIKey        string
	CloudflareAccountID string
	CloudflareAPIToken  string
	CloudflareModel     string

	Verbose       bool
	Quiet         bool
	MCPLogEnabled bool

	// Fixed XDG paths (not configurable)
	ConfigDir      string
	DataDir        string
	CacheDir       string
	ScratchDir     string
	TranscriptsDir string
}

//go:embed config.toml
var defaultFS embed.FS

// Normalized audio target: mono 16 kHz MP3 at a constant 32 kbit/s, so byte
// size is a reliable duration proxy across providers.
const (
	NormalizedBitrateKbps = 32
	BytesPerSecond        = NormalizedBitrateKbps * 1000 / 8
)

// OpenAIUploadLimit is the maximum file size accepted by the Whisper API (25 MiB)
const OpenAIUploadLimit int64 = 25 << 20

// CloudflareUploadLimit is the practical request ceiling for Workers AI whisper
const CloudflareUploadLimit int64 = 4 << 20

// EnsureDefaultConfig checks if a config file exists in the XDG config directory
// and creates it from the embedded default if it doesn't exist
func EnsureDefaultConfig(configDir string) error {
	filePath := filepath.Join(configDir, "config.toml")
	if FileExists(filePath) {
		return nil
	}

	if err := os.MkdirAll(configDir, 0755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	defaultContent, err := defaultFS.ReadFile("config.toml")
	if err != nil {
		return fmt.Errorf("reading embedded default configuration: %w", err)
	}

	if err := os.WriteFile(filePath, defaultContent, 0644); err != nil {
		return fmt.Errorf("writing default configuration: %w", err)
	}

	fmt.Printf("Created default configuration at %s\n", filePath)
	return nil
}

// InitConfig initializes Viper and loads configuration
func InitConfig() *Config {
	// Ensure yt-dlp is installed
	ytdlp.MustInstall(context.Background(), nil)

	// XDG standard directories
	configDir := filepath.Join(xdg.ConfigHome, "capscade")
	dataDir := filepath.Join(xdg.DataHome, "capscade")
	cacheDir := filepath.Join(xdg.CacheHome, "capscade")

	transcriptsDir := filepath.Join(dataDir, "transcripts")
	scratchDir := filepath.Join(cacheDir, "scratch")

	v := viper.New()

	// Set default values for configurable settings
	v.SetDefault("language", "en")
	v.SetDefault("output_format", "text")
	v.SetDefault("captions_base_url", "https://video.google.com")
	v.SetDefault("tier1_attempts", 5)
	v.SetDefault("tier1_timeout", 15*time.Second)
	v.SetDefault("chunk_max_bytes", OpenAIUploadLimit)
	v.SetDefault("overlap_seconds", 5.0)
	v.SetDefault("max_concurrency", 4)
	v.SetDefault("chunk_retries", 3)
	v.SetDefault("call_timeout", 5*time.Minute)
	v.SetDefault("provider_wait_budget", 2*time.Minute)
	v.SetDefault("max_failed_fraction", 0.0)
	v.SetDefault("tier2_max_duration", time.Duration(0))
	v.SetDefault("large_chunk_bytes", CloudflareUploadLimit)
	v.SetDefault("safety_factor", 0.8)
	v.SetDefault("cloudflare_model", "@cf/openai/whisper")
	v.SetDefault("verbose", false)
	v.SetDefault("quiet", false)
	v.SetDefault("mcp_log", false)

	v.SetConfigName("config")
	v.SetConfigType("toml")
	v.AddConfigPath(configDir)
	v.AddConfigPath(".")

	// Environment variables
	v.SetEnvPrefix("CAPSCADE")
	v.AutomaticEnv()

	// Provider credentials come from their conventional env vars
	_ = v.BindEnv("openai_api_key", "OPENAI_API_KEY")
	_ = v.BindEnv("cloudflare_account_id", "CLOUDFLARE_ACCOUNT_ID")
	_ = v.BindEnv("cloudflare_api_token", "CLOUDFLARE_API_TOKEN")

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			fmt.Fprintf(os.Stderr, "Warning: Error reading config file: %v\n", err)
		}
	}

	config := &Config{
		Language:     v.GetString("language"),
		OutputFormat: v.GetString("output_format"),

		CaptionsBaseURL: v.GetString("captions_base_url"),
		Tier1Attempts:   v.GetInt("tier1_attempts"),
		Tier1Timeout:    v.GetDuration("tier1_timeout"),

		ChunkMaxBytes:      v.GetInt64("chunk_max_bytes"),
		OverlapSeconds:     v.GetFloat64("overlap_seconds"),
		MaxConcurrency:     v.GetInt("max_concurrency"),
		ChunkRetries:       v.GetInt("chunk_retries"),
		CallTimeout:        v.GetDuration("call_timeout"),
		ProviderWaitBudget: v.GetDuration("provider_wait_budget"),
		MaxFailedFraction:  v.GetFloat64("max_failed_fraction"),
		Tier2MaxDuration:   v.GetDuration("tier2_max_duration"),
		LargeChunkBytes:    v.GetInt64("large_chunk_bytes"),
		SafetyFactor:       v.GetFloat64("safety_factor"),

		OpenAIAPIKey:        v.GetString("openai_api_key"),
		CloudflareAccountID: v.GetString("cloudflare_account_id"),
		CloudflareAPIToken:  v.GetString("cloudflare_api_token"),
		CloudflareModel:     v.GetString("cloudflare_model"),

		Verbose:       v.GetBool("verbose"),
		Quiet:         v.GetBool("quiet"),
		MCPLogEnabled: v.GetBool("mcp_log"),

		ConfigDir:      configDir,
		DataDir:        dataDir,
		CacheDir:       cacheDir,
		ScratchDir:     scratchDir,
		TranscriptsDir: transcriptsDir,
	}

	if config.Verbose {
		fmt.Printf("Using config file: %s\n", v.ConfigFileUsed())
	}

	return config
}
