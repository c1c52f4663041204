// ABOUTME: Centralized configuration for the well-report question answering pipeline
// ABOUTME: Loads a YAML file, applies environment overrides and validates once at startup
package config

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"math"
	"os"
	"path/filepath"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/adrg/xdg"
	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/harper/wellrag/internal/models"
)

// Judge strategies
const (
	JudgeModeSingle   = "single"
	JudgeModeEnsemble = "ensemble"
)

// Disagreement policies applied when votes disagree on numeric consistency
const (
	PolicyCapLowest = "cap_lowest"
	PolicyScaled    = "scaled"
)

// weightTolerance is how far the fusion weights may drift from 1.0
const weightTolerance = 1e-9

// Config holds every tunable of the pipeline
type Config struct {
	Service    ServiceConfig    `yaml:"service"`
	Retrieval  RetrievalConfig  `yaml:"retrieval"`
	Generation GenerationConfig `yaml:"generation"`
	Judge      JudgeConfig      `yaml:"judge"`
	Memory     MemoryConfig     `yaml:"memory"`
	Extraction ExtractionConfig `yaml:"extraction"`
	Chunking   ChunkingConfig   `yaml:"chunking"`
	Timeouts   TimeoutConfig    `yaml:"timeouts"`
	Storage    StorageConfig    `yaml:"storage"`
	Log        LogConfig        `yaml:"log"`
	Metrics    MetricsConfig    `yaml:"metrics"`
}

// ServiceConfig points at an OpenAI-compatible completion/embedding endpoint
type ServiceConfig struct {
	BaseURL         string        `yaml:"base_url" validate:"required,url"`
	APIKey          string        `yaml:"api_key"`
	ChatModel       string        `yaml:"chat_model" validate:"required"`
	ExtractionModel string        `yaml:"extraction_model" validate:"required"`
	EmbeddingModel  string        `yaml:"embedding_model" validate:"required"`
	MaxRetries      int           `yaml:"max_retries" validate:"gte=0,lte=10"`
	RetryBaseDelay  time.Duration `yaml:"retry_base_delay" validate:"gte=0"`
}

// RetrievalConfig tunes hybrid score fusion
type RetrievalConfig struct {
	SemanticWeight      float64        `yaml:"semantic_weight" validate:"gte=0,lte=1"`
	KeywordWeight       float64        `yaml:"keyword_weight" validate:"gte=0,lte=1"`
	TopK                map[string]int `yaml:"top_k"`
	CandidateMultiplier int            `yaml:"candidate_multiplier" validate:"gte=1,lte=10"`
}

// TopKFor returns the configured result count for a query mode
func (r RetrievalConfig) TopKFor(mode models.QueryMode) int {
	return r.TopK[string(mode)]
}

// GenerationConfig tunes draft answer generation
type GenerationConfig struct {
	Temperature          float64        `yaml:"temperature" validate:"gte=0,lte=2"`
	RetryTemperatureStep float64        `yaml:"retry_temperature_step" validate:"gte=0,lte=1"`
	MaxTokens            map[string]int `yaml:"max_tokens"`
}

// JudgeConfig selects and tunes the validation strategy
type JudgeConfig struct {
	Mode                string   `yaml:"mode" validate:"oneof=single ensemble"`
	Model               string   `yaml:"model" validate:"required"`
	EnsembleModels      []string `yaml:"ensemble_models"`
	EnsembleSize        int      `yaml:"ensemble_size" validate:"gte=1,lte=8"`
	MinConfidence       float64  `yaml:"min_confidence" validate:"gte=0,lte=1"`
	MaxRetries          int      `yaml:"max_retries" validate:"gte=0,lte=10"`
	DisagreementPolicy  string   `yaml:"disagreement_policy" validate:"oneof=cap_lowest scaled"`
	DisagreementPenalty float64  `yaml:"disagreement_penalty" validate:"gte=0,lte=1"`
	Temperature         float64  `yaml:"temperature" validate:"gte=0,lte=2"`
}

// Models returns the judge models used for one validation round
func (j JudgeConfig) Models() []string {
	if j.Mode != JudgeModeEnsemble {
		return []string{j.Model}
	}
	models := distinct(j.EnsembleModels)
	if len(models) > j.EnsembleSize {
		models = models[:j.EnsembleSize]
	}
	return models
}

// MemoryConfig bounds conversation memory
type MemoryConfig struct {
	MaxTurns          int  `yaml:"max_turns" validate:"gte=1,lte=100"`
	ContextTurns      int  `yaml:"context_turns" validate:"gte=0"`
	EnableWellContext bool `yaml:"enable_well_context"`
}

// ExtractionConfig tunes trajectory extraction
type ExtractionConfig struct {
	ConfidenceThreshold float64 `yaml:"confidence_threshold" validate:"gte=0,lte=1"`
	MaxCandidates       int     `yaml:"max_candidates" validate:"gte=1"`
	LLMChunkLimit       int     `yaml:"llm_chunk_limit" validate:"gte=1"`
	MaxPoints           int     `yaml:"max_points" validate:"gte=1"`
}

// ChunkSpec is a word-window chunking strategy
type ChunkSpec struct {
	Size    int `yaml:"size" validate:"gte=1"`
	Overlap int `yaml:"overlap" validate:"gte=0"`
}

// ChunkingConfig holds one ChunkSpec per chunk mode
type ChunkingConfig struct {
	Factual       ChunkSpec `yaml:"factual"`
	Technical     ChunkSpec `yaml:"technical"`
	Summary       ChunkSpec `yaml:"summary"`
	TokenEncoding string    `yaml:"token_encoding"`
}

// SpecFor returns the chunking strategy for a chunk mode
func (c ChunkingConfig) SpecFor(mode models.ChunkMode) ChunkSpec {
	switch mode {
	case models.ChunkModeTechnical:
		return c.Technical
	case models.ChunkModeSummary:
		return c.Summary
	default:
		return c.Factual
	}
}

// TimeoutConfig bounds every external call
type TimeoutConfig struct {
	Ceiling     time.Duration `yaml:"ceiling" validate:"gt=0"`
	Interactive time.Duration `yaml:"interactive" validate:"gt=0"`
	Factual     time.Duration `yaml:"factual" validate:"gt=0"`
	Summary     time.Duration `yaml:"summary" validate:"gt=0"`
	Judge       time.Duration `yaml:"judge" validate:"gt=0"`
	Extraction  time.Duration `yaml:"extraction" validate:"gt=0"`
}

// Clamp limits d to the ceiling
func (t TimeoutConfig) Clamp(d time.Duration) time.Duration {
	if d <= 0 || d > t.Ceiling {
		return t.Ceiling
	}
	return d
}

// ForMode returns the generation timeout for a query mode
func (t TimeoutConfig) ForMode(mode models.QueryMode) time.Duration {
	switch mode {
	case models.QueryModeSummary:
		return t.Clamp(t.Summary)
	case models.QueryModeExtraction:
		return t.Clamp(t.Extraction)
	default:
		return t.Clamp(t.Factual)
	}
}

// StorageConfig locates the chunk database
type StorageConfig struct {
	DBPath string `yaml:"db_path"`
}

// LogConfig configures the logger
type LogConfig struct {
	Level string `yaml:"level" validate:"oneof=debug info warn error"`
	JSON  bool   `yaml:"json"`
}

// MetricsConfig enables the Prometheus endpoint when Addr is set
type MetricsConfig struct {
	Addr string `yaml:"addr"`
}

// Default returns the built-in configuration
func Default() *Config {
	return &Config{
		Service: ServiceConfig{
			BaseURL:         "http://localhost:11434/v1",
			APIKey:          "ollama",
			ChatModel:       "qwen2.5:7b",
			ExtractionModel: "qwen2.5:7b",
			EmbeddingModel:  "nomic-embed-text",
			MaxRetries:      2,
			RetryBaseDelay:  2 * time.Second,
		},
		Retrieval: RetrievalConfig{
			SemanticWeight: 0.65,
			KeywordWeight:  0.35,
			TopK: map[string]int{
				string(models.QueryModeFactual):    10,
				string(models.QueryModeSummary):    15,
				string(models.QueryModeExtraction): 20,
			},
			CandidateMultiplier: 2,
		},
		Generation: GenerationConfig{
			Temperature:          0.15,
			RetryTemperatureStep: 0.05,
			MaxTokens: map[string]int{
				string(models.QueryModeFactual): 300,
				string(models.QueryModeSummary): 450,
			},
		},
		Judge: JudgeConfig{
			Mode:                JudgeModeEnsemble,
			Model:               "qwen2.5:7b",
			EnsembleModels:      []string{"qwen2.5:7b", "llama3.1:8b"},
			EnsembleSize:        2,
			MinConfidence:       0.70,
			MaxRetries:          2,
			DisagreementPolicy:  PolicyCapLowest,
			DisagreementPenalty: 0.2,
			Temperature:         0.1,
		},
		Memory: MemoryConfig{
			MaxTurns:          6,
			ContextTurns:      3,
			EnableWellContext: true,
		},
		Extraction: ExtractionConfig{
			ConfidenceThreshold: 0.70,
			MaxCandidates:       10,
			LLMChunkLimit:       5,
			MaxPoints:           500,
		},
		Chunking: ChunkingConfig{
			Factual:       ChunkSpec{Size: 200, Overlap: 50},
			Technical:     ChunkSpec{Size: 400, Overlap: 80},
			Summary:       ChunkSpec{Size: 600, Overlap: 100},
			TokenEncoding: "cl100k_base",
		},
		Timeouts: TimeoutConfig{
			Ceiling:     1200 * time.Second,
			Interactive: 180 * time.Second,
			Factual:     300 * time.Second,
			Summary:     900 * time.Second,
			Judge:       90 * time.Second,
			Extraction:  120 * time.Second,
		},
		Storage: StorageConfig{DBPath: DefaultDBPath()},
		Log:     LogConfig{Level: "info"},
	}
}

// DefaultConfigPath returns $XDG_CONFIG_HOME/wellrag/config.yaml
func DefaultConfigPath() string {
	return filepath.Join(xdg.ConfigHome, "wellrag", "config.yaml")
}

// DefaultDBPath returns $XDG_DATA_HOME/wellrag/wellrag.db
func DefaultDBPath() string {
	return filepath.Join(xdg.DataHome, "wellrag", "wellrag.db")
}

// Load reads configuration from path (or the default path when empty), applies
// environment overrides and validates the result. A missing default file is not an error.
func Load(path string) (*Config, error) {
	cfg := Default()

	explicit := path != ""
	if !explicit {
		path = DefaultConfigPath()
	}

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, models.NewConfigError(fmt.Sprintf("parse %s: %v", path, err))
		}
	case errors.Is(err, fs.ErrNotExist) && !explicit:
	default:
		return nil, models.NewConfigError(fmt.Sprintf("read %s: %v", path, err))
	}

	cfg.applyEnv()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyEnv overrides file values with environment variables
func (c *Config) applyEnv() {
	c.Service.BaseURL = getEnv("WELLRAG_BASE_URL", getEnv("OPENAI_BASE_URL", c.Service.BaseURL))
	c.Service.APIKey = getEnv("OPENAI_API_KEY", c.Service.APIKey)
	c.Service.ChatModel = getEnv("WELLRAG_CHAT_MODEL", c.Service.ChatModel)
	c.Service.ExtractionModel = getEnv("WELLRAG_EXTRACTION_MODEL", c.Service.ExtractionModel)
	c.Service.EmbeddingModel = getEnv("WELLRAG_EMBEDDING_MODEL", c.Service.EmbeddingModel)

	c.Retrieval.SemanticWeight = getEnvFloat("WELLRAG_SEMANTIC_WEIGHT", c.Retrieval.SemanticWeight)
	c.Retrieval.KeywordWeight = getEnvFloat("WELLRAG_KEYWORD_WEIGHT", c.Retrieval.KeywordWeight)

	c.Judge.Mode = getEnv("WELLRAG_JUDGE_MODE", c.Judge.Mode)
	if v := os.Getenv("WELLRAG_JUDGE_MODELS"); v != "" {
		c.Judge.EnsembleModels = splitList(v)
	}
	c.Judge.MinConfidence = getEnvFloat("WELLRAG_MIN_CONFIDENCE", c.Judge.MinConfidence)
	c.Judge.MaxRetries = getEnvInt("WELLRAG_MAX_RETRIES", c.Judge.MaxRetries)

	c.Memory.MaxTurns = getEnvInt("WELLRAG_MEMORY_TURNS", c.Memory.MaxTurns)
	c.Extraction.ConfidenceThreshold = getEnvFloat("WELLRAG_EXTRACTION_THRESHOLD", c.Extraction.ConfidenceThreshold)

	c.Timeouts.Ceiling = getEnvDuration("WELLRAG_TIMEOUT", c.Timeouts.Ceiling)
	c.Timeouts.Interactive = getEnvDuration("WELLRAG_INTERACTIVE_TIMEOUT", c.Timeouts.Interactive)

	c.Storage.DBPath = getEnv("WELLRAG_DB_PATH", c.Storage.DBPath)
	c.Log.Level = getEnv("WELLRAG_LOG_LEVEL", c.Log.Level)
	c.Log.JSON = getEnvBool("WELLRAG_LOG_JSON", c.Log.JSON)
	c.Metrics.Addr = getEnv("WELLRAG_METRICS_ADDR", c.Metrics.Addr)
}

// Validate runs range checks and the cross-field rules. Every problem is reported at once.
func (c *Config) Validate() error {
	var problems []string

	validate := validator.New(validator.WithRequiredStructEnabled())
	validate.RegisterTagNameFunc(yamlName)
	if err := validate.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if !errors.As(err, &verrs) {
			return models.NewConfigError(err.Error())
		}
		for _, fe := range verrs {
			problems = append(problems, describe(fe))
		}
	}

	if err := CheckWeights(c.Retrieval.SemanticWeight, c.Retrieval.KeywordWeight); err != nil {
		problems = append(problems, err.Error())
	}
	for _, mode := range models.QueryModes {
		if c.Retrieval.TopKFor(mode) <= 0 {
			problems = append(problems, fmt.Sprintf("retrieval.top_k.%s must be positive", mode))
		}
	}
	if c.Judge.Mode == JudgeModeEnsemble {
		if n := len(distinct(c.Judge.EnsembleModels)); n < c.Judge.EnsembleSize {
			problems = append(problems, fmt.Sprintf(
				"judge.ensemble_models needs %d distinct models, got %d", c.Judge.EnsembleSize, n))
		}
	}
	for name, spec := range map[string]ChunkSpec{
		"factual": c.Chunking.Factual, "technical": c.Chunking.Technical, "summary": c.Chunking.Summary,
	} {
		if spec.Overlap >= spec.Size {
			problems = append(problems, fmt.Sprintf("chunking.%s.overlap must be smaller than size", name))
		}
	}
	if c.Timeouts.Interactive > c.Timeouts.Ceiling {
		problems = append(problems, "timeouts.interactive must not exceed timeouts.ceiling")
	}

	if len(problems) > 0 {
		return models.NewConfigError(problems...)
	}
	return nil
}

// CheckWeights returns a ConfigError unless the fusion weights are non-negative and sum to 1.0
func CheckWeights(semantic, keyword float64) error {
	if semantic < 0 || keyword < 0 {
		return models.NewConfigError(fmt.Sprintf(
			"retrieval weights must be non-negative, got %.4f/%.4f", semantic, keyword))
	}
	if sum := semantic + keyword; math.Abs(sum-1.0) > weightTolerance {
		return models.NewConfigError(fmt.Sprintf(
			"retrieval weights must sum to 1.0, got %.4f + %.4f = %.4f", semantic, keyword, sum))
	}
	return nil
}

// WriteYAML writes the effective configuration
func (c *Config) WriteYAML(w io.Writer) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	defer func() { _ = enc.Close() }()
	return enc.Encode(c)
}

func describe(fe validator.FieldError) string {
	field := strings.TrimPrefix(fe.Namespace(), "Config.")
	if fe.Param() != "" {
		return fmt.Sprintf("%s failed %s=%s (got %v)", field, fe.Tag(), fe.Param(), fe.Value())
	}
	return fmt.Sprintf("%s failed %s", field, fe.Tag())
}

func yamlName(f reflect.StructField) string {
	name := strings.SplitN(f.Tag.Get("yaml"), ",", 2)[0]
	if name == "-" || name == "" {
		return f.Name
	}
	return name
}

func distinct(values []string) []string {
	seen := make(map[string]bool, len(values))
	var out []string
	for _, v := range values {
		v = strings.TrimSpace(v)
		if v == "" || seen[v] {
			continue
		}
		seen[v] = true
		out = append(out, v)
	}
	return out
}

func splitList(v string) []string {
	return distinct(strings.Split(v, ","))
}

// Helper functions
func getEnv(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func getEnvBool(key string, defaultVal bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	return v == "true" || v == "1"
}

func getEnvInt(key string, defaultVal int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return defaultVal
}

func getEnvFloat(key string, defaultVal float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return defaultVal
}

func getEnvDuration(key string, defaultVal time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return defaultVal
}
