package config

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
)

type Config struct {
	// Application
	Version     string
	Environment string
	InstanceID  string
	Port        int
	LogLevel    string

	// Logdy (lightweight web log viewer)
	LogdyEnabled bool
	LogdyHost    string
	LogdyPort    int

	// Inference provider (Roboflow hosted API)
	InferenceBaseURL       string
	InferenceAPIKey        string
	DefaultModelID         string
	DefaultConfidencePct   int           // provider threshold, percent 0-100
	SingleInferenceTimeout time.Duration // one-off uploads
	LiveInferenceTimeout   time.Duration // webcam / live callers, tighter
	BatchInferenceTimeout  time.Duration // batch and video frames, looser

	// Weather context (OpenWeatherMap)
	WeatherBaseURL string
	WeatherAPIKey  string
	WeatherCity    string
	WeatherTimeout time.Duration

	// Context adjustment
	AlertThreshold float64 // adjusted confidence must exceed this to alert

	// Batch processing
	MaxWorkers     int
	MaxBatchImages int

	// Video processing
	VideoTargetFPS    int
	VideoMaxFrames    int // default when the request sets none
	VideoFramesLimit  int // ceiling for a requested max_frames
	VideoTempDir      string
	FrameImageQuality int // JPEG quality for timeline frames

	// Image optimization before upload
	MaxImageWidth  int
	MaxImageHeight int
	ImageQuality   int
	MaxUploadBytes int64

	// Email alerts (SendGrid)
	SendGridBaseURL string
	SendGridAPIKey  string
	EmailFrom       string

	// SMS alerts (Twilio)
	TwilioBaseURL    string
	TwilioAccountSID string
	TwilioAuthToken  string
	TwilioFromNumber string

	// Fallback alert targets when the caller has no stored settings
	DefaultAlertEmail    string
	DefaultAlertPhone    string
	DefaultMinConfidence int // percent 0-100
	WebhookTimeout       time.Duration
	NotificationTimeout  time.Duration

	// NATS (alert event bus)
	// Default: nats://localhost:4222 (works with Docker Compose setup)
	// Docker: Use nats://nats:4222 if running in Docker
	NatsEnabled        bool
	NatsURL            string
	NatsConnectTimeout time.Duration
	NatsReconnectWait  time.Duration
	NatsMaxReconnects  int
	AlertsSubject      string

	// Persistence
	DatabasePath string

	// Rate limits, requests per minute per client
	DetectRateLimit int
	BatchRateLimit  int
	VideoRateLimit  int

	// gRPC health endpoint (0 disables)
	GRPCHealthPort int

	// Swagger Configuration
	SwaggerHost string

	// Graceful Shutdown
	ShutdownTimeout time.Duration
}

func Load() *Config {
	// Load .env file if it exists
	if err := godotenv.Load(); err != nil {
		log.Debug().Err(err).Msg("No .env file found or error loading .env file, using environment variables and defaults")
	} else {
		log.Info().Msg("Loaded configuration from .env file")
	}

	return &Config{
		// Application
		Version:     getEnv("VERSION", "1.0.0"),
		Environment: getEnv("ENVIRONMENT", "development"),
		InstanceID:  getEnv("INSTANCE_ID", "firesmoke-1"),
		Port:        getEnvInt("PORT", 5000),
		LogLevel:    getEnv("LOG_LEVEL", "info"),

		// Logdy
		LogdyEnabled: getEnvBool("LOGDY_ENABLED", false),
		LogdyHost:    getEnv("LOGDY_HOST", "localhost"),
		LogdyPort:    getEnvInt("LOGDY_PORT", 8080),

		// Inference
		InferenceBaseURL:       getEnv("ROBOFLOW_BASE_URL", "https://detect.roboflow.com"),
		InferenceAPIKey:        getEnv("ROBOFLOW_API_KEY", ""),
		DefaultModelID:         getEnv("DEFAULT_MODEL_ID", "fire-and-smoke-0izsi/2"),
		DefaultConfidencePct:   getEnvInt("DEFAULT_CONFIDENCE", 40),
		SingleInferenceTimeout: getEnvDuration("INFERENCE_TIMEOUT", 15*time.Second),
		LiveInferenceTimeout:   getEnvDuration("LIVE_INFERENCE_TIMEOUT", 10*time.Second),
		BatchInferenceTimeout:  getEnvDuration("BATCH_INFERENCE_TIMEOUT", 30*time.Second),

		// Weather
		WeatherBaseURL: getEnv("OPENWEATHER_BASE_URL", "https://api.openweathermap.org/data/2.5/weather"),
		WeatherAPIKey:  getEnv("OPENWEATHER_API_KEY", ""),
		WeatherCity:    getEnv("WEATHER_CITY", "Bongao"),
		WeatherTimeout: getEnvDuration("WEATHER_TIMEOUT", 5*time.Second),

		AlertThreshold: getEnvFloat("ALERT_THRESHOLD", 0.3),

		// Batch
		MaxWorkers:     getEnvInt("MAX_WORKERS", 5),
		MaxBatchImages: getEnvInt("MAX_BATCH_IMAGES", 50),

		// Video
		VideoTargetFPS:    getEnvInt("VIDEO_TARGET_FPS", 1),
		VideoMaxFrames:    getEnvInt("VIDEO_MAX_FRAMES", 30),
		VideoFramesLimit:  getEnvInt("VIDEO_MAX_FRAMES_LIMIT", 300),
		VideoTempDir:      getEnv("VIDEO_TEMP_DIR", os.TempDir()),
		FrameImageQuality: getEnvInt("FRAME_IMAGE_QUALITY", 70),

		// Images
		MaxImageWidth:  getEnvInt("MAX_IMAGE_WIDTH", 1920),
		MaxImageHeight: getEnvInt("MAX_IMAGE_HEIGHT", 1080),
		ImageQuality:   getEnvInt("IMAGE_QUALITY", 85),
		MaxUploadBytes: int64(getEnvInt("MAX_UPLOAD_BYTES", 100*1024*1024)), // 100MB for videos

		// Email
		SendGridBaseURL: getEnv("SENDGRID_BASE_URL", "https://api.sendgrid.com"),
		SendGridAPIKey:  getEnv("SENDGRID_API_KEY", ""),
		EmailFrom:       getEnv("EMAIL_FROM", "Fire Detection System <noreply@firedetection.com>"),

		// SMS
		TwilioBaseURL:    getEnv("TWILIO_BASE_URL", "https://api.twilio.com"),
		TwilioAccountSID: getEnv("TWILIO_ACCOUNT_SID", ""),
		TwilioAuthToken:  getEnv("TWILIO_AUTH_TOKEN", ""),
		TwilioFromNumber: getEnv("TWILIO_PHONE_NUMBER", ""),

		DefaultAlertEmail:    getEnv("DEFAULT_ALERT_EMAIL", ""),
		DefaultAlertPhone:    getEnv("DEFAULT_ALERT_PHONE", ""),
		DefaultMinConfidence: getEnvInt("DEFAULT_MIN_CONFIDENCE", 50),
		WebhookTimeout:       getEnvDuration("WEBHOOK_TIMEOUT", 10*time.Second),
		NotificationTimeout:  getEnvDuration("NOTIFICATION_TIMEOUT", 10*time.Second),

		// NATS
		NatsEnabled:        getEnvBool("NATS_ENABLED", false),
		NatsURL:            getNatsURL(),
		NatsConnectTimeout: getEnvDuration("NATS_CONNECT_TIMEOUT", 10*time.Second),
		NatsReconnectWait:  getEnvDuration("NATS_RECONNECT_WAIT", 2*time.Second),
		NatsMaxReconnects:  getEnvInt("NATS_MAX_RECONNECTS", -1), // -1 = unlimited
		AlertsSubject:      getEnv("ALERTS_SUBJECT", "alerts.fire_smoke"),

		DatabasePath: getEnv("DATABASE_PATH", "detections.db"),

		DetectRateLimit: getEnvInt("DETECT_RATE_LIMIT", 300), // webcam sends ~5 per second
		BatchRateLimit:  getEnvInt("BATCH_RATE_LIMIT", 5),
		VideoRateLimit:  getEnvInt("VIDEO_RATE_LIMIT", 2),

		GRPCHealthPort: getEnvInt("GRPC_HEALTH_PORT", 0),

		SwaggerHost: getEnv("SWAGGER_HOST", "localhost:5000"),

		ShutdownTimeout: getEnvDuration("SHUTDOWN_TIMEOUT", 30*time.Second),
	}
}

// Validate logs the optional integrations that are disabled because a
// credential is missing. Missing credentials never stop the process.
func (c *Config) Validate() {
	if c.InferenceAPIKey == "" {
		log.Warn().Msg("ROBOFLOW_API_KEY not configured, detection endpoints will reject requests")
	}
	if c.WeatherAPIKey == "" {
		log.Warn().Msg("OPENWEATHER_API_KEY not configured, weather context disabled")
	}
	if c.SendGridAPIKey == "" {
		log.Warn().Msg("SENDGRID_API_KEY not configured, email alerts disabled")
	}
	if c.TwilioAccountSID == "" || c.TwilioAuthToken == "" {
		log.Warn().Msg("Twilio credentials not configured, SMS alerts disabled")
	}
	if c.MaxWorkers < 1 {
		log.Warn().Int("max_workers", c.MaxWorkers).Msg("MAX_WORKERS below 1, using 1")
		c.MaxWorkers = 1
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseFloat(value, 64); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if parsed, err := time.ParseDuration(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseBool(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

// Helper functions for Docker environment detection
func isRunningInDocker() bool {
	if os.Getenv("DOCKER_CONTAINER") == "true" {
		return true
	}

	if _, err := os.Stat("/.dockerenv"); err == nil {
		return true
	}

	return false
}

// getNatsURL returns the appropriate NATS URL based on environment
func getNatsURL() string {
	if envURL := os.Getenv("NATS_URL"); envURL != "" {
		return envURL
	}

	// If running in Docker, use service name; otherwise use localhost
	if isRunningInDocker() {
		return "nats://nats:4222"
	}

	return "nats://localhost:4222"
}
