// Package config loads the voice client settings from the environment.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strconv"

	"github.com/joho/godotenv"

	"github.com/satriahrh/arunika/voiceclient/domain/entities"
)

const (
	defaultVoice          = "lily"
	defaultSpeed          = 1.0
	defaultCaptureFile    = "sample_audio.wav"
	defaultAudioOutputDir = "audio_responses"
	defaultLogExportDir   = "."
	defaultPort           = "8080"
	defaultMongoDatabase  = "voiceclient"

	MinSpeed = 0.5
	MaxSpeed = 2.0
)

// Config holds every setting of the voice client.
type Config struct {
	// Base endpoint of the voice server; the language query parameter is
	// applied on connect.
	ServerURL string
	Language  string
	Voice     string
	Speed     float64

	RateLimit entities.RateLimitConfig

	// Optional handshake authentication. A token is minted only when both are set.
	AuthSecret string
	DeviceID   string

	CaptureFile    string
	AudioOutputDir string
	LogExportDir   string

	// Exports are also archived to MongoDB when MongoURI is set.
	MongoURI      string
	MongoDatabase string

	Port string
}

// Load reads .env style files into the process environment, ignoring files
// that do not exist, and then builds the config.
func Load(files ...string) Config {
	_ = godotenv.Load(files...)
	return NewConfigFromEnv()
}

// NewConfigFromEnv creates a Config from environment variables. Unset or
// unparsable values fall back to their defaults.
func NewConfigFromEnv() Config {
	config := Config{
		ServerURL:      os.Getenv("VOICE_WS_URL"),
		Language:       envOr("VOICE_LANGUAGE", entities.DefaultLanguage),
		Voice:          envOr("VOICE_VOICE", defaultVoice),
		Speed:          defaultSpeed,
		RateLimit:      entities.DefaultRateLimitConfig(),
		AuthSecret:     os.Getenv("VOICE_AUTH_SECRET"),
		DeviceID:       os.Getenv("VOICE_DEVICE_ID"),
		CaptureFile:    envOr("VOICE_CAPTURE_FILE", defaultCaptureFile),
		AudioOutputDir: envOr("VOICE_AUDIO_OUTPUT_DIR", defaultAudioOutputDir),
		LogExportDir:   envOr("VOICE_LOG_EXPORT_DIR", defaultLogExportDir),
		MongoURI:       os.Getenv("VOICE_MONGODB_URI"),
		MongoDatabase:  envOr("VOICE_MONGODB_DATABASE", defaultMongoDatabase),
		Port:           envOr("PORT", defaultPort),
	}

	if speedStr := os.Getenv("VOICE_SPEED"); speedStr != "" {
		if speed, err := strconv.ParseFloat(speedStr, 64); err == nil {
			config.Speed = speed
		}
	}

	if intervalStr := os.Getenv("VOICE_CAPTURE_INTERVAL_MS"); intervalStr != "" {
		if interval, err := strconv.Atoi(intervalStr); err == nil {
			config.RateLimit.CaptureIntervalMs = interval
		}
	}

	if chunkStr := os.Getenv("VOICE_CHUNK_DURATION_MS"); chunkStr != "" {
		if chunk, err := strconv.Atoi(chunkStr); err == nil {
			config.RateLimit.ChunkDurationMs = chunk
		}
	}

	return config
}

// Validate reports the first invalid setting. An empty ServerURL is allowed
// because the operator may supply it per connect.
func (c Config) Validate() error {
	if c.ServerURL != "" {
		u, err := url.Parse(c.ServerURL)
		if err != nil || u.Scheme == "" || u.Host == "" {
			return fmt.Errorf("VOICE_WS_URL %q is not an absolute url", c.ServerURL)
		}
	}
	if c.Language == "" {
		return errors.New("language is required")
	}
	if c.Speed < MinSpeed || c.Speed > MaxSpeed {
		return fmt.Errorf("speed %.2f outside [%.1f, %.1f]", c.Speed, MinSpeed, MaxSpeed)
	}
	rl := c.RateLimit
	if rl.CaptureIntervalMs < entities.MinCaptureIntervalMs || rl.CaptureIntervalMs > entities.MaxCaptureIntervalMs {
		return fmt.Errorf("capture interval %dms outside [%d, %d]", rl.CaptureIntervalMs,
			entities.MinCaptureIntervalMs, entities.MaxCaptureIntervalMs)
	}
	if rl.ChunkDurationMs < entities.MinChunkDurationMs || rl.ChunkDurationMs > entities.MaxChunkDurationMs {
		return fmt.Errorf("chunk duration %dms outside [%d, %d]", rl.ChunkDurationMs,
			entities.MinChunkDurationMs, entities.MaxChunkDurationMs)
	}
	if (c.AuthSecret == "") != (c.DeviceID == "") {
		return errors.New("VOICE_AUTH_SECRET and VOICE_DEVICE_ID must be set together")
	}
	return nil
}

// AuthEnabled reports whether handshakes should carry a device token.
func (c Config) AuthEnabled() bool {
	return c.AuthSecret != "" && c.DeviceID != ""
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
