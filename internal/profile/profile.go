package profile

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"
)

// Profile is configuration to start main server.
type Profile struct {
	// LLM configuration (OpenAI-compatible protocol), used by the question
	// answerer and the translator.
	LLMProvider  string  // zai, deepseek, openai, siliconflow, dashscope, openrouter, ollama
	LLMAPIKey    string  // LLM API key
	LLMBaseURL   string  // LLM base URL (optional, has default per provider)
	LLMModel     string  // Model used for extractive answering
	LLMTimeout   int     // LLM request timeout in seconds (default: 120)
	LLMRateLimit float64 // Outbound requests per second, 0 = unlimited
	LLMBurst     int

	// TranslateModel overrides LLMModel for translation.
	TranslateModel string

	// Answering engine knobs
	AnswerCacheCapacity  int
	RecentExchanges      int
	RepetitionWindow     int
	SimilarityThreshold  float64
	QATopKPrimary        int
	QATopKDiverse        int
	MaxAnswerLength      int
	SessionHistoryLimit  int // turns kept per session
	ChatHistoryWindow    int // turns handed to the engine per chat request
	ChatConcurrency      int // concurrent chat requests answered
	SessionIdleTimeout   time.Duration
	SessionCookieSecure  bool
	ContextScriptPaths   []string
	ContextTranscripts   string
	ContextWatchEnabled  bool
	TelegramBotToken     string
	TelegramSecretToken  string
	TelegramWebhookURL   string
	LogLevel             string
	AllowedOrigins       []string
	MetricsGoCollectors  bool
	UNIXSock             string
	Mode                 string
	DSN                  string
	Driver               string
	Version              string
	InstanceURL          string
	Addr                 string
	Data                 string
	Port                 int
	AIEnabled            bool
}

// Provider default configurations for LLM.
// Used when VIRTUALCLONE_LLM_BASE_URL is not explicitly set.
var llmProviderDefaults = map[string]struct {
	BaseURL string
	Model   string
}{
	"zai": {
		BaseURL: "https://open.bigmodel.cn/api/paas/v4",
		Model:   "glm-4-flash",
	},
	"deepseek": {
		BaseURL: "https://api.deepseek.com",
		Model:   "deepseek-chat",
	},
	"openai": {
		BaseURL: "https://api.openai.com/v1",
		Model:   "gpt-4o-mini",
	},
	"siliconflow": {
		BaseURL: "https://api.siliconflow.cn/v1",
		Model:   "Qwen/Qwen2.5-7B-Instruct",
	},
	"dashscope": {
		BaseURL: "https://dashscope.aliyuncs.com/compatible-mode/v1",
		Model:   "qwen-turbo-latest",
	},
	"openrouter": {
		BaseURL: "https://openrouter.ai/api/v1",
		Model:   "deepseek/deepseek-chat",
	},
	"ollama": {
		BaseURL: "http://localhost:11434/v1",
		Model:   "llama3.1",
	},
}

// Supported session store drivers.
var supportedDrivers = map[string]bool{
	"memory":   true,
	"sqlite":   true,
	"postgres": true,
	"redis":    true,
}

func (p *Profile) IsDev() bool {
	return p.Mode != "prod"
}

// IsAIEnabled returns true if an LLM backend is usable.
func (p *Profile) IsAIEnabled() bool {
	return p.LLMAPIKey != "" || p.LLMProvider == "ollama"
}

// getEnvOrDefault returns environment variable value or default value.
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvOrDefaultInt returns environment variable value as int or default value.
func getEnvOrDefaultInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
		slog.Warn("invalid integer in environment, using default", "key", key, "value", value)
	}
	return defaultValue
}

func getEnvOrDefaultFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
		slog.Warn("invalid number in environment, using default", "key", key, "value", value)
	}
	return defaultValue
}

func getEnvOrDefaultBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

func getEnvList(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	var out []string
	for _, item := range strings.Split(value, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}

// FromEnv loads configuration from environment variables.
func (p *Profile) FromEnv() {
	// LLM configuration
	p.LLMProvider = getEnvOrDefault("VIRTUALCLONE_LLM_PROVIDER", "deepseek")
	p.LLMAPIKey = getEnvOrDefault("VIRTUALCLONE_LLM_API_KEY", "")
	p.LLMBaseURL = getEnvOrDefault("VIRTUALCLONE_LLM_BASE_URL", "")
	p.LLMModel = getEnvOrDefault("VIRTUALCLONE_LLM_MODEL", "")
	p.LLMTimeout = getEnvOrDefaultInt("VIRTUALCLONE_LLM_TIMEOUT_SECONDS", 120)
	p.LLMRateLimit = getEnvOrDefaultFloat("VIRTUALCLONE_LLM_RATE_LIMIT", 0)
	p.LLMBurst = getEnvOrDefaultInt("VIRTUALCLONE_LLM_BURST", 1)
	p.TranslateModel = getEnvOrDefault("VIRTUALCLONE_TRANSLATE_MODEL", "")

	if _, ok := llmProviderDefaults[p.LLMProvider]; !ok {
		slog.Warn("Unknown LLM provider, using default: deepseek", "provider", p.LLMProvider)
		p.LLMProvider = "deepseek"
	}
	defaults := llmProviderDefaults[p.LLMProvider]
	if p.LLMBaseURL == "" {
		p.LLMBaseURL = defaults.BaseURL
	}
	if p.LLMModel == "" {
		p.LLMModel = defaults.Model
	}
	if p.TranslateModel == "" {
		p.TranslateModel = p.LLMModel
	}
	p.AIEnabled = p.IsAIEnabled()

	// Answering engine
	p.AnswerCacheCapacity = getEnvOrDefaultInt("VIRTUALCLONE_ANSWER_CACHE_CAPACITY", 100)
	p.RecentExchanges = getEnvOrDefaultInt("VIRTUALCLONE_CONVERSATION_RECENT_EXCHANGES", 3)
	p.RepetitionWindow = getEnvOrDefaultInt("VIRTUALCLONE_REPETITION_HISTORY_WINDOW", 5)
	p.SimilarityThreshold = getEnvOrDefaultFloat("VIRTUALCLONE_REPETITION_SIMILARITY_THRESHOLD", 0.7)
	p.QATopKPrimary = getEnvOrDefaultInt("VIRTUALCLONE_QA_TOP_K_PRIMARY", 3)
	p.QATopKDiverse = getEnvOrDefaultInt("VIRTUALCLONE_QA_TOP_K_DIVERSE", 5)
	p.MaxAnswerLength = getEnvOrDefaultInt("VIRTUALCLONE_MAX_ANSWER_LEN", 150)

	// Sessions and chat surface
	p.SessionHistoryLimit = getEnvOrDefaultInt("VIRTUALCLONE_SESSION_HISTORY_LIMIT", 10)
	p.ChatHistoryWindow = getEnvOrDefaultInt("VIRTUALCLONE_CHAT_HISTORY_WINDOW", 5)
	p.ChatConcurrency = getEnvOrDefaultInt("VIRTUALCLONE_CHAT_CONCURRENCY", 8)
	p.SessionIdleTimeout = time.Duration(getEnvOrDefaultInt("VIRTUALCLONE_SESSION_IDLE_MINUTES", 60)) * time.Minute
	p.SessionCookieSecure = getEnvOrDefaultBool("VIRTUALCLONE_SESSION_COOKIE_SECURE", false)
	p.AllowedOrigins = getEnvList("VIRTUALCLONE_ALLOWED_ORIGINS", []string{"*"})

	// Knowledge context
	p.ContextScriptPaths = getEnvList("VIRTUALCLONE_CONTEXT_SCRIPT_PATHS", []string{"llm-script.txt"})
	p.ContextTranscripts = getEnvOrDefault("VIRTUALCLONE_CONTEXT_TRANSCRIPTS", filepath.Join("data", "train.jsonl"))
	p.ContextWatchEnabled = getEnvOrDefaultBool("VIRTUALCLONE_CONTEXT_WATCH", true)

	// Telegram channel
	p.TelegramBotToken = getEnvOrDefault("VIRTUALCLONE_TELEGRAM_BOT_TOKEN", "")
	p.TelegramSecretToken = getEnvOrDefault("VIRTUALCLONE_TELEGRAM_SECRET_TOKEN", "")
	p.TelegramWebhookURL = getEnvOrDefault("VIRTUALCLONE_TELEGRAM_WEBHOOK_URL", "")

	p.LogLevel = getEnvOrDefault("VIRTUALCLONE_LOG_LEVEL", "info")
	p.MetricsGoCollectors = getEnvOrDefaultBool("VIRTUALCLONE_METRICS_GO_COLLECTORS", true)
}

func checkDataDir(dataDir string) (string, error) {
	// Convert to absolute path if relative path is supplied.
	if !filepath.IsAbs(dataDir) {
		absDir, err := filepath.Abs(dataDir)
		if err != nil {
			return "", err
		}
		dataDir = absDir
	}

	// Trim trailing \ or / in case user supplies
	dataDir = strings.TrimRight(dataDir, "\\/")
	if _, err := os.Stat(dataDir); err != nil {
		return "", errors.Wrapf(err, "unable to access data folder %s", dataDir)
	}
	return dataDir, nil
}

// Validate normalises the profile and rejects unusable settings.
func (p *Profile) Validate() error {
	if p.Mode != "demo" && p.Mode != "dev" && p.Mode != "prod" {
		p.Mode = "demo"
	}
	if p.Driver == "" {
		p.Driver = "memory"
	}
	if !supportedDrivers[p.Driver] {
		return errors.Errorf("unsupported driver %q", p.Driver)
	}

	if p.Mode == "prod" && p.Data == "" {
		if runtime.GOOS == "windows" {
			p.Data = filepath.Join(os.Getenv("ProgramData"), "virtualclone")
		} else {
			p.Data = "/var/opt/virtualclone"
		}
	}
	if p.Data == "" {
		p.Data = "."
	}
	if p.Mode == "prod" {
		if err := os.MkdirAll(p.Data, 0o770); err != nil {
			slog.Error("failed to create data directory", slog.String("data", p.Data), slog.String("error", err.Error()))
			return errors.Wrap(err, "create data directory")
		}
	}

	dataDir, err := checkDataDir(p.Data)
	if err != nil {
		slog.Error("failed to check data dir", slog.String("data", p.Data), slog.String("error", err.Error()))
		return err
	}
	p.Data = dataDir

	if p.Driver == "sqlite" && p.DSN == "" {
		p.DSN = filepath.Join(dataDir, fmt.Sprintf("virtualclone_%s.db", p.Mode))
	}
	if (p.Driver == "postgres" || p.Driver == "redis") && p.DSN == "" {
		return errors.Errorf("driver %s requires a DSN", p.Driver)
	}

	if p.SimilarityThreshold <= 0 || p.SimilarityThreshold > 1 {
		return errors.Errorf("similarity threshold must be in (0, 1], got %v", p.SimilarityThreshold)
	}
	if p.SessionHistoryLimit <= 0 {
		return errors.New("session history limit must be positive")
	}
	if p.ChatHistoryWindow > p.SessionHistoryLimit {
		slog.Warn("chat history window exceeds session history limit, clamping",
			"window", p.ChatHistoryWindow, "limit", p.SessionHistoryLimit)
		p.ChatHistoryWindow = p.SessionHistoryLimit
	}
	if p.ChatConcurrency <= 0 {
		p.ChatConcurrency = 1
	}
	return nil
}
