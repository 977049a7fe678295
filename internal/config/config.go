package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Load reads the .env file specified by DIALECTIC_ENV (or .env by default),
// then loads the corresponding .secret file if it exists.
// All config is flat env vars read via os.Getenv after loading.
func Load() error {
	envFile := os.Getenv("DIALECTIC_ENV")
	if envFile == "" {
		envFile = ".env"
	}

	// Load main env file (ignore error if file doesn't exist)
	_ = godotenv.Load(envFile)

	// Load secret sidecar if it exists
	_ = godotenv.Load(envFile + ".secret")

	return nil
}

func ServerPort() int {
	port, err := strconv.Atoi(os.Getenv("SERVER_PORT"))
	if err != nil {
		return 8080
	}
	return port
}

func ServerAddr() string {
	return fmt.Sprintf(":%d", ServerPort())
}

func DatabaseURL() string {
	return os.Getenv("DATABASE_URL")
}

// GraphBackend selects the durable graph store.
// Defaults to "memory" if not set.
// Valid values: memory, postgres, neo4j
func GraphBackend() string {
	b := os.Getenv("GRAPH_BACKEND")
	if b == "" {
		return "memory"
	}
	return b
}

// IndexBackend selects the retrieval index storage.
// Defaults to "memory" if not set.
// Valid values: memory, postgres
func IndexBackend() string {
	b := os.Getenv("INDEX_BACKEND")
	if b == "" {
		return "memory"
	}
	return b
}

func Neo4jURI() string {
	uri := os.Getenv("NEO4J_URI")
	if uri == "" {
		return "bolt://localhost:7687"
	}
	return uri
}

func Neo4jUsername() string {
	return os.Getenv("NEO4J_USERNAME")
}

func Neo4jPassword() string {
	return os.Getenv("NEO4J_PASSWORD")
}

func OpenAIAPIKey() string {
	return os.Getenv("OPENAI_API_KEY")
}

// OpenAIBaseURL allows pointing the OpenAI client at a compatible gateway
// (vLLM, Cerebras, LiteLLM). Empty means the public API.
func OpenAIBaseURL() string {
	return os.Getenv("OPENAI_BASE_URL")
}

func AnthropicAPIKey() string {
	return os.Getenv("ANTHROPIC_API_KEY")
}

func GeminiAPIKey() string {
	return os.Getenv("GEMINI_API_KEY")
}

func OllamaBaseURL() string {
	url := os.Getenv("OLLAMA_BASE_URL")
	if url == "" {
		return "http://localhost:11434"
	}
	return url
}

// LLMProvider returns the configured generation provider.
// Defaults to "mock" so the service runs without credentials.
// Valid values: openai, anthropic, gemini, ollama, mock
func LLMProvider() string {
	p := os.Getenv("LLM_PROVIDER")
	if p == "" {
		return "mock"
	}
	return p
}

// LLMAPIKey returns the API key for the configured generation provider.
func LLMAPIKey() string {
	switch LLMProvider() {
	case "anthropic":
		return AnthropicAPIKey()
	case "gemini":
		return GeminiAPIKey()
	case "ollama", "mock":
		return ""
	default:
		return OpenAIAPIKey()
	}
}

// GenerationModel returns the model name passed to the generation backend.
// Providers fall back to their own default when empty.
func GenerationModel() string {
	return os.Getenv("GENERATION_MODEL")
}

// GenerationTimeout bounds a single generation call. The gate applies it
// after slot acquisition, so queue wait does not eat into it.
func GenerationTimeout() time.Duration {
	secs, err := strconv.Atoi(os.Getenv("GENERATION_TIMEOUT_SECONDS"))
	if err != nil || secs <= 0 {
		return 120 * time.Second
	}
	return time.Duration(secs) * time.Second
}

// EmbeddingProvider returns the configured embedding provider.
// Defaults to "mock" if not set.
// Valid values: openai, mock
func EmbeddingProvider() string {
	p := os.Getenv("EMBEDDING_PROVIDER")
	if p == "" {
		return "mock"
	}
	return p
}

// EmbeddingAPIKey returns the API key for the configured embedding provider.
func EmbeddingAPIKey() string {
	switch EmbeddingProvider() {
	case "mock":
		return ""
	default:
		return OpenAIAPIKey()
	}
}

func EmbeddingModel() string {
	m := os.Getenv("EMBEDDING_MODEL")
	if m == "" {
		return "text-embedding-3-small"
	}
	return m
}

// RerankProvider selects the cross-encoder used for result reranking.
// Defaults to "none" (fused ranking is kept as-is).
// Valid values: llm, none
func RerankProvider() string {
	p := os.Getenv("RERANK_PROVIDER")
	if p == "" {
		return "none"
	}
	return p
}

// DebateMinConfidence is the calibrated-confidence floor below which a
// verdict is downgraded to uncertain and flagged for review.
func DebateMinConfidence() float64 {
	v, err := strconv.ParseFloat(os.Getenv("DEBATE_MIN_CONFIDENCE"), 64)
	if err != nil || v <= 0 || v > 1 {
		return 0.85
	}
	return v
}

// DebateMinCitations is the citation floor for supports/refutes verdicts.
func DebateMinCitations() int {
	n, err := strconv.Atoi(os.Getenv("DEBATE_MIN_CITATIONS"))
	if err != nil || n <= 0 {
		return 2
	}
	return n
}

// DebateEvidenceTopK is the number of evidence snippets retrieved per claim.
func DebateEvidenceTopK() int {
	n, err := strconv.Atoi(os.Getenv("DEBATE_EVIDENCE_TOP_K"))
	if err != nil || n <= 0 {
		return 5
	}
	return n
}

func DebateCacheTTL() time.Duration {
	secs, err := strconv.Atoi(os.Getenv("DEBATE_CACHE_TTL_SECONDS"))
	if err != nil || secs <= 0 {
		return time.Hour
	}
	return time.Duration(secs) * time.Second
}

func DebateQueueWorkers() int {
	n, err := strconv.Atoi(os.Getenv("DEBATE_QUEUE_WORKERS"))
	if err != nil || n <= 0 {
		return 2
	}
	return n
}

// AutoDebateThreshold is the minimum dense similarity between a new claim
// and an existing one before a debate is queued automatically.
func AutoDebateThreshold() float64 {
	v, err := strconv.ParseFloat(os.Getenv("AUTO_DEBATE_THRESHOLD"), 64)
	if err != nil || v <= 0 || v >= 1 {
		return 0.6
	}
	return v
}

// APIKey returns the static bearer key protecting /v1 routes.
// Empty disables auth entirely (local development).
func APIKey() string {
	return os.Getenv("API_KEY")
}

// RateLimitRPS returns requests per second limit.
// Defaults to 10 if not set.
func RateLimitRPS() float64 {
	rps, err := strconv.ParseFloat(os.Getenv("RATE_LIMIT_RPS"), 64)
	if err != nil || rps <= 0 {
		return 10
	}
	return rps
}

// RateLimitBurst returns the burst size for rate limiting.
// Defaults to 20 if not set.
func RateLimitBurst() int {
	burst, err := strconv.Atoi(os.Getenv("RATE_LIMIT_BURST"))
	if err != nil || burst <= 0 {
		return 20
	}
	return burst
}

// LogLevel returns the log level (debug, info, warn, error).
// Defaults to "info" if not set.
func LogLevel() string {
	level := os.Getenv("LOG_LEVEL")
	if level == "" {
		return "info"
	}
	return level
}
