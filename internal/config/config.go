// Package config provides configuration management for the vidtopics service.
// Configuration is loaded from environment variables (optionally seeded from a
// .env file) with sensible defaults.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

const (
	// Default values
	DefaultPort        = 8888
	DefaultBind        = "127.0.0.1"
	DefaultLogLevel    = "info"
	DefaultLogFormat   = "json"
	DefaultDataDir     = ".vidtopics"
	DefaultProjectsDir = "projects"

	// Environment variable names
	EnvEnvFile     = "VIDTOPICS_ENV_FILE"
	EnvPort        = "VIDTOPICS_PORT"
	EnvBind        = "VIDTOPICS_BIND"
	EnvLogLevel    = "VIDTOPICS_LOG_LEVEL"
	EnvLogFormat   = "VIDTOPICS_LOG_FORMAT"
	EnvLogFile     = "VIDTOPICS_LOG_FILE"
	EnvDataDir     = "VIDTOPICS_DATA_DIR"
	EnvProjectsDir = "VIDTOPICS_PROJECTS_DIR"
	EnvAPIToken    = "VIDTOPICS_API_TOKEN"
	EnvMaxUploadMB = "VIDTOPICS_MAX_UPLOAD_MB"

	// Captioning environment variable names
	EnvCaptionBackend = "VIDTOPICS_CAPTION_BACKEND"
	EnvModelURL       = "VIDTOPICS_MODEL_URL"
	EnvEncoderPath    = "VIDTOPICS_ENCODER_PATH"
	EnvDecoderPath    = "VIDTOPICS_DECODER_PATH"
	EnvVocabPath      = "VIDTOPICS_VOCAB_PATH"
	EnvEmbedSize      = "VIDTOPICS_EMBED_SIZE"
	EnvHiddenSize     = "VIDTOPICS_HIDDEN_SIZE"
	EnvNumLayers      = "VIDTOPICS_NUM_LAYERS"
	EnvMaxCaptionLen  = "VIDTOPICS_MAX_CAPTION_LEN"
	EnvOllamaModel    = "VIDTOPICS_OLLAMA_MODEL"
	EnvOllamaPrompt   = "VIDTOPICS_OLLAMA_PROMPT"
	EnvSampleFPS      = "VIDTOPICS_SAMPLE_FPS"
	EnvFFmpeg         = "VIDTOPICS_FFMPEG"
	EnvFFprobe        = "VIDTOPICS_FFPROBE"

	// Worker and topic environment variable names
	EnvCaptionWorkers = "VIDTOPICS_CAPTION_WORKERS"
	EnvTopicWorkers   = "VIDTOPICS_TOPIC_WORKERS"
	EnvDefaultTopics  = "VIDTOPICS_DEFAULT_TOPICS"
	EnvLDAIterations  = "VIDTOPICS_LDA_ITERATIONS"
	EnvExtraStopWords = "VIDTOPICS_EXTRA_STOP_WORDS"
	EnvRateLimit      = "VIDTOPICS_RATE_LIMIT"
	EnvRateBurst      = "VIDTOPICS_RATE_BURST"
	EnvAllowedOrigins = "VIDTOPICS_ALLOWED_ORIGINS"

	// Database filename
	DBFilename = "vidtopics.db"

	// Captioning defaults
	BackendModel         = "model"
	BackendOllama        = "ollama"
	DefaultModelURL      = "http://127.0.0.1:8500"
	DefaultEncoderPath   = "models/encoder.pkl"
	DefaultDecoderPath   = "models/decoder.pkl"
	DefaultVocabPath     = "models/vocab.json"
	DefaultEmbedSize     = 256
	DefaultHiddenSize    = 512
	DefaultNumLayers     = 1
	DefaultMaxCaptionLen = 20
	DefaultOllamaModel   = "llava"
	DefaultOllamaPrompt  = "Describe this video frame in one short sentence."
	DefaultSampleFPS     = 0.1

	// Worker and topic defaults
	DefaultCaptionWorkers = 1
	DefaultTopicWorkers   = 2
	DefaultTopics         = 5
	DefaultLDAIterations  = 1000
	DefaultRateLimit      = 2.0 // requests per second per client
	DefaultRateBurst      = 4
)

// Config defines the application configuration interface
type Config interface {
	Port() int
	Addr() string
	LogLevel() string
	LogFormat() string
	LogFile() string
	DataDir() string
	DBPath() string
	ProjectsDir() string
	APIToken() string
	MaxUploadBytes() int64

	CaptionBackend() string
	ModelURL() string
	EncoderPath() string
	DecoderPath() string
	VocabPath() string
	EmbedSize() int
	HiddenSize() int
	NumLayers() int
	MaxCaptionLen() int
	OllamaModel() string
	OllamaPrompt() string
	SampleFPS() float64
	FFmpegPath() string
	FFprobePath() string

	CaptionWorkers() int
	TopicWorkers() int
	DefaultTopics() int
	LDAIterations() int
	ExtraStopWords() []string
	RateLimit() float64
	RateBurst() int
	AllowedOrigins() []string
}

// EnvConfig reads configuration from environment variables
type EnvConfig struct {
	port        int
	bind        string
	logLevel    string
	logFormat   string
	logFile     string
	dataDir     string
	projectsDir string
	apiToken    string
	maxUploadMB int

	captionBackend string
	modelURL       string
	encoderPath    string
	decoderPath    string
	vocabPath      string
	embedSize      int
	hiddenSize     int
	numLayers      int
	maxCaptionLen  int
	ollamaModel    string
	ollamaPrompt   string
	sampleFPS      float64
	ffmpeg         string
	ffprobe        string

	captionWorkers int
	topicWorkers   int
	defaultTopics  int
	ldaIterations  int
	extraStopWords []string
	rateLimit      float64
	rateBurst      int
	allowedOrigins []string
}

// New creates a new EnvConfig with defaults and environment variable overrides.
// A .env file is read first; variables already present in the environment win.
func New() (*EnvConfig, error) {
	if err := loadDotEnv(); err != nil {
		return nil, err
	}

	cfg := &EnvConfig{
		port:           DefaultPort,
		bind:           DefaultBind,
		logLevel:       DefaultLogLevel,
		logFormat:      DefaultLogFormat,
		dataDir:        defaultDataDir(),
		projectsDir:    DefaultProjectsDir,
		captionBackend: BackendModel,
		modelURL:       DefaultModelURL,
		encoderPath:    DefaultEncoderPath,
		decoderPath:    DefaultDecoderPath,
		vocabPath:      DefaultVocabPath,
		embedSize:      DefaultEmbedSize,
		hiddenSize:     DefaultHiddenSize,
		numLayers:      DefaultNumLayers,
		maxCaptionLen:  DefaultMaxCaptionLen,
		ollamaModel:    DefaultOllamaModel,
		ollamaPrompt:   DefaultOllamaPrompt,
		sampleFPS:      DefaultSampleFPS,
		ffmpeg:         "ffmpeg",
		ffprobe:        "ffprobe",
		captionWorkers: DefaultCaptionWorkers,
		topicWorkers:   DefaultTopicWorkers,
		defaultTopics:  DefaultTopics,
		ldaIterations:  DefaultLDAIterations,
		rateLimit:      DefaultRateLimit,
		rateBurst:      DefaultRateBurst,
	}

	// Override port from environment
	if p := os.Getenv(EnvPort); p != "" {
		port, err := strconv.Atoi(p)
		if err != nil {
			return nil, fmt.Errorf("invalid %s: %w", EnvPort, err)
		}
		if port < 1 || port > 65535 {
			return nil, fmt.Errorf("invalid %s: port must be between 1 and 65535", EnvPort)
		}
		cfg.port = port
	}

	overrideString(&cfg.bind, EnvBind)
	overrideString(&cfg.logLevel, EnvLogLevel)
	overrideString(&cfg.logFormat, EnvLogFormat)
	overrideString(&cfg.logFile, EnvLogFile)
	overrideString(&cfg.dataDir, EnvDataDir)
	overrideString(&cfg.projectsDir, EnvProjectsDir)
	overrideString(&cfg.apiToken, EnvAPIToken)
	overrideString(&cfg.modelURL, EnvModelURL)
	overrideString(&cfg.encoderPath, EnvEncoderPath)
	overrideString(&cfg.decoderPath, EnvDecoderPath)
	overrideString(&cfg.vocabPath, EnvVocabPath)
	overrideString(&cfg.ollamaModel, EnvOllamaModel)
	overrideString(&cfg.ollamaPrompt, EnvOllamaPrompt)
	overrideString(&cfg.ffmpeg, EnvFFmpeg)
	overrideString(&cfg.ffprobe, EnvFFprobe)

	switch f := strings.ToLower(cfg.logFormat); f {
	case "json", "text":
		cfg.logFormat = f
	default:
		return nil, fmt.Errorf("invalid %s: must be json or text", EnvLogFormat)
	}

	if b := os.Getenv(EnvCaptionBackend); b != "" {
		switch b = strings.ToLower(b); b {
		case BackendModel, BackendOllama:
			cfg.captionBackend = b
		default:
			return nil, fmt.Errorf("invalid %s: unknown backend %q", EnvCaptionBackend, b)
		}
	}

	ints := []struct {
		name string
		dst  *int
		min  int
	}{
		{EnvMaxUploadMB, &cfg.maxUploadMB, 0},
		{EnvEmbedSize, &cfg.embedSize, 1},
		{EnvHiddenSize, &cfg.hiddenSize, 1},
		{EnvNumLayers, &cfg.numLayers, 1},
		{EnvMaxCaptionLen, &cfg.maxCaptionLen, 1},
		{EnvCaptionWorkers, &cfg.captionWorkers, 1},
		{EnvTopicWorkers, &cfg.topicWorkers, 1},
		{EnvDefaultTopics, &cfg.defaultTopics, 1},
		{EnvLDAIterations, &cfg.ldaIterations, 1},
		{EnvRateBurst, &cfg.rateBurst, 1},
	}
	for _, v := range ints {
		if err := overrideInt(v.dst, v.name, v.min); err != nil {
			return nil, err
		}
	}

	if err := overrideFloat(&cfg.sampleFPS, EnvSampleFPS, false); err != nil {
		return nil, err
	}
	// 0 turns rate limiting off
	if err := overrideFloat(&cfg.rateLimit, EnvRateLimit, true); err != nil {
		return nil, err
	}

	cfg.extraStopWords = splitList(os.Getenv(EnvExtraStopWords), true)

	cfg.allowedOrigins = splitList(os.Getenv(EnvAllowedOrigins), false)

	return cfg, nil
}

// Port returns the HTTP server port
func (c *EnvConfig) Port() int {
	return c.port
}

// Addr returns the listen address (bind:port)
func (c *EnvConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.bind, c.port)
}

// LogLevel returns the log level (debug, info, warn, error)
func (c *EnvConfig) LogLevel() string {
	return c.logLevel
}

// LogFormat returns json or text
func (c *EnvConfig) LogFormat() string {
	return c.logFormat
}

// LogFile returns the rotated log file path, empty when file logging is off
func (c *EnvConfig) LogFile() string {
	return c.logFile
}

// DataDir returns the data directory path
func (c *EnvConfig) DataDir() string {
	return c.dataDir
}

// DBPath returns the full path to the SQLite database file
func (c *EnvConfig) DBPath() string {
	return filepath.Join(c.dataDir, DBFilename)
}

// ProjectsDir returns the root of the filesystem project store
func (c *EnvConfig) ProjectsDir() string {
	return c.projectsDir
}

func (c *EnvConfig) APIToken() string {
	return c.apiToken
}

// MaxUploadBytes returns the upload size cap; 0 means unlimited
func (c *EnvConfig) MaxUploadBytes() int64 {
	return int64(c.maxUploadMB) * 1024 * 1024
}

func (c *EnvConfig) CaptionBackend() string {
	return c.captionBackend
}

func (c *EnvConfig) ModelURL() string {
	return c.modelURL
}

func (c *EnvConfig) EncoderPath() string {
	return c.encoderPath
}

func (c *EnvConfig) DecoderPath() string {
	return c.decoderPath
}

func (c *EnvConfig) VocabPath() string {
	return c.vocabPath
}

func (c *EnvConfig) EmbedSize() int {
	return c.embedSize
}

func (c *EnvConfig) HiddenSize() int {
	return c.hiddenSize
}

func (c *EnvConfig) NumLayers() int {
	return c.numLayers
}

func (c *EnvConfig) MaxCaptionLen() int {
	return c.maxCaptionLen
}

func (c *EnvConfig) OllamaModel() string {
	return c.ollamaModel
}

func (c *EnvConfig) OllamaPrompt() string {
	return c.ollamaPrompt
}

// SampleFPS returns the frame sampling rate in frames per second
func (c *EnvConfig) SampleFPS() float64 {
	return c.sampleFPS
}

func (c *EnvConfig) FFmpegPath() string {
	return c.ffmpeg
}

func (c *EnvConfig) FFprobePath() string {
	return c.ffprobe
}

func (c *EnvConfig) CaptionWorkers() int {
	return c.captionWorkers
}

func (c *EnvConfig) TopicWorkers() int {
	return c.topicWorkers
}

// DefaultTopics returns the topic count used when a request omits n_topics
func (c *EnvConfig) DefaultTopics() int {
	return c.defaultTopics
}

func (c *EnvConfig) LDAIterations() int {
	return c.ldaIterations
}

// ExtraStopWords returns lowercase stop words added on top of the built-in list
func (c *EnvConfig) ExtraStopWords() []string {
	return c.extraStopWords
}

// RateLimit returns the sustained requests/sec allowed per client on processing routes
func (c *EnvConfig) RateLimit() float64 {
	return c.rateLimit
}

func (c *EnvConfig) RateBurst() int {
	return c.rateBurst
}

// AllowedOrigins returns browser origins allowed in addition to loopback ones
func (c *EnvConfig) AllowedOrigins() []string {
	return c.allowedOrigins
}

// loadDotEnv seeds the environment from a .env file. A missing default file is fine;
// a missing file named explicitly is not.
func loadDotEnv() error {
	path := os.Getenv(EnvEnvFile)
	explicit := path != ""
	if !explicit {
		path = ".env"
	}

	if err := godotenv.Load(path); err != nil {
		if !explicit && errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("failed to load env file %s: %w", path, err)
	}
	return nil
}

func overrideString(dst *string, name string) {
	if v := os.Getenv(name); v != "" {
		*dst = v
	}
}

func overrideInt(dst *int, name string, min int) error {
	v := os.Getenv(name)
	if v == "" {
		return nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fmt.Errorf("invalid %s: %w", name, err)
	}
	if n < min {
		return fmt.Errorf("invalid %s: must be >= %d", name, min)
	}
	*dst = n
	return nil
}

func overrideFloat(dst *float64, name string, allowZero bool) error {
	v := os.Getenv(name)
	if v == "" {
		return nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return fmt.Errorf("invalid %s: %w", name, err)
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return fmt.Errorf("invalid %s: must be a finite number", name)
	}
	switch {
	case allowZero && f < 0:
		return fmt.Errorf("invalid %s: must be >= 0", name)
	case !allowZero && f <= 0:
		return fmt.Errorf("invalid %s: must be > 0", name)
	}
	*dst = f
	return nil
}

// defaultDataDir returns the default data directory path
func defaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		// Fallback to current directory if home is not available
		return DefaultDataDir
	}
	return filepath.Join(home, DefaultDataDir)
}

// Version information (set at build time via ldflags)
var (
	Version   = "0.1.0"
	BuildTime = "unknown"
	GitCommit = "unknown"
)

func splitList(s string, lower bool) []string {
	var out []string
	for _, item := range strings.Split(s, ",") {
		item = strings.TrimSpace(item)
		if lower {
			item = strings.ToLower(item)
		}
		if item != "" {
			out = append(out, item)
		}
	}
	return out
}
