// Package config holds the process-wide platform settings. Settings are read
// once at startup from config/platform.yaml plus environment overrides and
// passed explicitly into constructors; nothing in the core reads the file
// again at runtime.
package config

import (
	"fmt"
	"os"
	"strconv"

	"gopkg.in/yaml.v2"
)

// Settings is the full platform configuration surface.
type Settings struct {
	// WorkerParallelism caps concurrent persona tasks per question.
	WorkerParallelism int `yaml:"worker_parallelism"`

	// LLMTimeoutMs is the per-call deadline for chat completions.
	LLMTimeoutMs int `yaml:"llm_timeout_ms"`

	// LLMTemperature is used for persona synthesis and discussion calls.
	LLMTemperature float64 `yaml:"llm_temperature"`

	// EmbeddingHalfLifeDays drives the retriever's time-decay factor.
	EmbeddingHalfLifeDays float64 `yaml:"embedding_half_life_days"`

	// RandomSeed makes the demographic sampler reproducible.
	RandomSeed int64 `yaml:"random_seed"`

	// SLO thresholds checked after each focus group run.
	SLOTotalMs float64 `yaml:"slo_total_ms"`
	SLOAvgMs   float64 `yaml:"slo_avg_ms"`

	// TopKRetrieval is the default number of memory events per retrieval.
	TopKRetrieval int `yaml:"top_k_retrieval"`

	// StopwordSets maps language code -> stopword list, used by theme
	// extraction and the fallback concept extractor. Empty map keeps the
	// built-in English and Polish sets.
	StopwordSets map[string][]string `yaml:"stopword_sets"`

	// Sentiment keyword overrides. Empty keeps the built-in English and
	// Polish lexicons.
	SentimentPositive []string `yaml:"sentiment_positive"`
	SentimentNegative []string `yaml:"sentiment_negative"`

	// GraphBackend selects "external" (Postgres MERGE tables) or
	// "in_memory" (process-local snapshot registry).
	GraphBackend string `yaml:"graph_backend"`
}

// Defaults returns the settings used when no config file is present.
func Defaults() Settings {
	return Settings{
		WorkerParallelism:     50,
		LLMTimeoutMs:          30000,
		LLMTemperature:        0.8,
		EmbeddingHalfLifeDays: 30,
		RandomSeed:            42,
		SLOTotalMs:            30000,
		SLOAvgMs:              3000,
		TopKRetrieval:         5,
		GraphBackend:          "in_memory",
	}
}

// Load reads settings from the given yaml file, falling back to Defaults for
// any zero field, then applies environment overrides. A missing file is not
// an error; the defaults are returned.
func Load(path string) (Settings, error) {
	s := Defaults()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			applyEnv(&s)
			return s, nil
		}
		return s, fmt.Errorf("failed to read config %s: %w", path, err)
	}

	var file Settings
	if err := yaml.Unmarshal(data, &file); err != nil {
		return s, fmt.Errorf("failed to parse config %s: %w", path, err)
	}
	merge(&s, file)
	applyEnv(&s)
	return s, nil
}

// merge copies non-zero fields from src over dst.
func merge(dst *Settings, src Settings) {
	if src.WorkerParallelism > 0 {
		dst.WorkerParallelism = src.WorkerParallelism
	}
	if src.LLMTimeoutMs > 0 {
		dst.LLMTimeoutMs = src.LLMTimeoutMs
	}
	if src.LLMTemperature > 0 {
		dst.LLMTemperature = src.LLMTemperature
	}
	if src.EmbeddingHalfLifeDays > 0 {
		dst.EmbeddingHalfLifeDays = src.EmbeddingHalfLifeDays
	}
	if src.RandomSeed != 0 {
		dst.RandomSeed = src.RandomSeed
	}
	if src.SLOTotalMs > 0 {
		dst.SLOTotalMs = src.SLOTotalMs
	}
	if src.SLOAvgMs > 0 {
		dst.SLOAvgMs = src.SLOAvgMs
	}
	if src.TopKRetrieval > 0 {
		dst.TopKRetrieval = src.TopKRetrieval
	}
	if len(src.StopwordSets) > 0 {
		dst.StopwordSets = src.StopwordSets
	}
	if len(src.SentimentPositive) > 0 {
		dst.SentimentPositive = src.SentimentPositive
	}
	if len(src.SentimentNegative) > 0 {
		dst.SentimentNegative = src.SentimentNegative
	}
	if src.GraphBackend != "" {
		dst.GraphBackend = src.GraphBackend
	}
}

// applyEnv lets operators override single knobs without editing yaml.
func applyEnv(s *Settings) {
	if v := os.Getenv("WORKER_PARALLELISM"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			s.WorkerParallelism = n
		}
	}
	if v := os.Getenv("LLM_TIMEOUT_MS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			s.LLMTimeoutMs = n
		}
	}
	if v := os.Getenv("RANDOM_SEED"); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			s.RandomSeed = n
		}
	}
	if v := os.Getenv("GRAPH_BACKEND"); v != "" {
		s.GraphBackend = v
	}
}
