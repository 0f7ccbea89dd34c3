package config

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// Config holds application configuration.
type Config struct {
	// BufferCapacity is the maximum number of queued comments.
	// Oldest entries are dropped first when a batch overflows it.
	BufferCapacity int `json:"buffer_capacity"`

	// RefillThreshold triggers a background refill when fewer comments are queued.
	RefillThreshold int `json:"refill_threshold"`

	// SimilarityThreshold is the word-overlap percentage at or above which
	// the next queued comment is considered too close to the previous one.
	SimilarityThreshold int `json:"similarity_threshold"`

	// MinCommentChars and MaxCommentChars are exclusive bounds on trimmed
	// comment length (runes) for buffer entries.
	MinCommentChars int `json:"min_comment_chars"`
	MaxCommentChars int `json:"max_comment_chars"`

	// BaseExcludeCount is the daily starting value of the exclusion counter.
	BaseExcludeCount int `json:"base_exclude_count"`

	// MaxExcludeCount caps the value handed out by the exclusion counter.
	MaxExcludeCount int `json:"max_exclude_count"`

	// WorkStartHour and WorkEndHour bound the working day, [start, end).
	WorkStartHour int `json:"work_start_hour"`
	WorkEndHour   int `json:"work_end_hour"`

	// IntervalMinMinutes and IntervalMaxMinutes bound the pause between cycles.
	IntervalMinMinutes int `json:"interval_min_minutes"`
	IntervalMaxMinutes int `json:"interval_max_minutes"`

	// LLM holds settings for the OpenAI-compatible text generator.
	LLM LLMConfig `json:"llm"`

	// Browser holds settings for the page automation collaborator.
	Browser BrowserConfig `json:"browser"`

	// DBMaxOpenConns limits the maximum number of open database connections.
	// 0 means use sql.DB default (unlimited).
	DBMaxOpenConns int `json:"db_max_open_conns,omitempty"`

	// DBMaxIdleConns limits the maximum number of idle database connections.
	DBMaxIdleConns int `json:"db_max_idle_conns,omitempty"`

	// DisabledTools is a list of MCP tool names to exclude from registration.
	DisabledTools []string `json:"disabled_tools,omitempty"`

	// AllowedPaths are extra directories (absolute) that history exports
	// and comment imports may use besides ~/.murmur/exports.
	AllowedPaths []string `json:"allowed_paths,omitempty"`

	// AllowUnsafePaths lifts the directory restriction on exports and
	// imports. Symlinks are still refused.
	AllowUnsafePaths bool `json:"allow_unsafe_paths,omitempty"`
}

// LLMConfig configures the comment generator.
type LLMConfig struct {
	APIKey  string `json:"api_key,omitempty"`
	BaseURL string `json:"base_url,omitempty"`
	Model   string `json:"model,omitempty"`

	// BatchSize is the number of comments requested per generation call.
	BatchSize int `json:"batch_size,omitempty"`

	// MaxAttempts bounds generation attempts before giving up.
	MaxAttempts int `json:"max_attempts,omitempty"`

	// RetryDelaySeconds is the pause between failed attempts;
	// RateLimitDelaySeconds is used instead after an HTTP 429.
	RetryDelaySeconds     int `json:"retry_delay_seconds,omitempty"`
	RateLimitDelaySeconds int `json:"rate_limit_delay_seconds,omitempty"`
}

// BrowserConfig configures the page automation collaborator.
type BrowserConfig struct {
	TargetURL           string   `json:"target_url,omitempty"`
	DebuggerURL         string   `json:"debugger_url,omitempty"`
	Headless            bool     `json:"headless,omitempty"`
	NavigationTimeoutMs int      `json:"navigation_timeout_ms,omitempty"`
	ElementTimeoutMs    int      `json:"element_timeout_ms,omitempty"`
	PostLinkSelectors   []string `json:"post_link_selectors,omitempty"`
	CommentSelectors    []string `json:"comment_selectors,omitempty"`
	InputSelectors      []string `json:"input_selectors,omitempty"`
	SubmitSelectors     []string `json:"submit_selectors,omitempty"`
	ScreenshotDir       string   `json:"screenshot_dir,omitempty"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		BufferCapacity:      10,
		RefillThreshold:     2,
		SimilarityThreshold: 50,
		MinCommentChars:     10,
		MaxCommentChars:     1000,
		BaseExcludeCount:    3,
		MaxExcludeCount:     50,
		WorkStartHour:       9,
		WorkEndHour:         18,
		IntervalMinMinutes:  15,
		IntervalMaxMinutes:  20,
		LLM: LLMConfig{
			BaseURL:               "https://openrouter.ai/api/v1",
			Model:                 "moonshotai/kimi-k2:free",
			BatchSize:             5,
			MaxAttempts:           5,
			RetryDelaySeconds:     30,
			RateLimitDelaySeconds: 3600,
		},
		Browser: BrowserConfig{
			NavigationTimeoutMs: 20000,
			ElementTimeoutMs:    10000,
			CommentSelectors:    []string{"article ul li span[dir=\"auto\"]", "span[dir=\"auto\"]"},
			InputSelectors:      []string{"form textarea", "textarea", "[contenteditable=\"true\"][role=\"textbox\"]"},
			SubmitSelectors:     []string{"form button[type=\"submit\"]", "button[type=\"submit\"]"},
		},
	}
}

// Load loads configuration from baseDir/config.json.
// Returns default config if the file doesn't exist.
// The baseDir parameter allows tests to use t.TempDir() instead of ~/.murmur.
func Load(baseDir string) (*Config, error) {
	cfg := DefaultConfig()
	if err := applyFile(cfg, filepath.Join(baseDir, "config.json")); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadWithRepo loads configuration from both global (~/.murmur) and repo (.murmur) directories.
// Repo config is found by walking upward from startDir to find the nearest .murmur/config.json.
// Repo config takes precedence for scalar values; disabled tools and allowed
// paths are merged (deduplicated). Either or both configs may be missing.
func LoadWithRepo(globalDir, startDir string) (*Config, error) {
	cfg := DefaultConfig()
	if err := applyFile(cfg, filepath.Join(globalDir, "config.json")); err != nil {
		return nil, err
	}
	if err := applyFile(cfg, FindRepoConfig(startDir)); err != nil {
		return nil, err
	}
	return cfg, nil
}

// FindRepoConfig walks upward from startDir to find the nearest .murmur/config.json.
// Returns the path if found, or empty string if not found.
func FindRepoConfig(startDir string) string {
	dir := startDir
	for {
		configPath := filepath.Join(dir, ".murmur", "config.json")
		if _, err := os.Stat(configPath); err == nil {
			return configPath
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			return ""
		}
		dir = parent
	}
}

// applyFile decodes the config file at configPath on top of cfg. Keys absent
// from the file keep their current values and keys present win, including
// explicit zeros such as work_start_hour 0. Selector lists in the file
// replace the current ones; disabled tools and allowed paths accumulate.
// A missing file or empty path leaves cfg untouched.
func applyFile(cfg *Config, configPath string) error {
	if configPath == "" {
		return nil
	}
	data, err := os.ReadFile(configPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return err
	}

	disabled, allowed := cfg.DisabledTools, cfg.AllowedPaths
	cfg.DisabledTools, cfg.AllowedPaths = nil, nil
	if err := json.Unmarshal(data, cfg); err != nil {
		cfg.DisabledTools, cfg.AllowedPaths = disabled, allowed
		return err
	}

	cfg.DisabledTools = mergeStringSlice(disabled, cfg.DisabledTools)
	cfg.AllowedPaths = mergeStringSlice(allowed, cfg.AllowedPaths)
	b := &cfg.Browser
	b.PostLinkSelectors = mergeStringSlice(nil, b.PostLinkSelectors)
	b.CommentSelectors = mergeStringSlice(nil, b.CommentSelectors)
	b.InputSelectors = mergeStringSlice(nil, b.InputSelectors)
	b.SubmitSelectors = mergeStringSlice(nil, b.SubmitSelectors)
	return nil
}

// ApplyEnv loads envFile (if present) into the process environment and
// overrides cfg with any recognised variables. Existing process variables
// win over values from the file.
func ApplyEnv(cfg *Config, envFile string) error {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !errors.Is(err, os.ErrNotExist) {
			return err
		}
	}

	setInt := func(dst *int, keys ...string) {
		for _, k := range keys {
			if v, ok := os.LookupEnv(k); ok {
				if n, err := strconv.Atoi(strings.TrimSpace(v)); err == nil {
					*dst = n
					return
				}
			}
		}
	}
	setString := func(dst *string, keys ...string) {
		for _, k := range keys {
			if v := strings.TrimSpace(os.Getenv(k)); v != "" {
				*dst = v
				return
			}
		}
	}

	setInt(&cfg.BufferCapacity, "MURMUR_BUFFER_CAPACITY")
	setInt(&cfg.RefillThreshold, "MURMUR_REFILL_THRESHOLD")
	setInt(&cfg.SimilarityThreshold, "MURMUR_SIMILARITY_THRESHOLD", "SIMILARITY_CONST")
	setInt(&cfg.BaseExcludeCount, "MURMUR_BASE_EXCLUDE_COUNT")
	setInt(&cfg.MaxExcludeCount, "MURMUR_MAX_EXCLUDE_COUNT")
	setInt(&cfg.WorkStartHour, "MURMUR_WORK_START_HOUR", "WORK_START_HOUR")
	setInt(&cfg.WorkEndHour, "MURMUR_WORK_END_HOUR", "WORK_END_HOUR")
	setInt(&cfg.IntervalMinMinutes, "MURMUR_INTERVAL_MIN", "COMMENT_INTERVAL_MIN")
	setInt(&cfg.IntervalMaxMinutes, "MURMUR_INTERVAL_MAX", "COMMENT_INTERVAL_MAX")

	setString(&cfg.LLM.APIKey, "MURMUR_LLM_API_KEY", "OPENROUTER_API_KEY", "OPENAI_API_KEY")
	setString(&cfg.LLM.BaseURL, "MURMUR_LLM_BASE_URL")
	setString(&cfg.LLM.Model, "MURMUR_LLM_MODEL", "OPENAI_MODEL")
	setInt(&cfg.LLM.MaxAttempts, "MURMUR_LLM_MAX_ATTEMPTS", "MAX_GENERATION_ATTEMPTS")
	setInt(&cfg.LLM.RetryDelaySeconds, "MURMUR_LLM_RETRY_DELAY", "PRE_POST_DELAY")

	setString(&cfg.Browser.TargetURL, "MURMUR_TARGET_URL")
	setString(&cfg.Browser.DebuggerURL, "MURMUR_DEBUGGER_URL")
	setInt(&cfg.Browser.NavigationTimeoutMs, "MURMUR_NAVIGATION_TIMEOUT", "NAVIGATION_TIMEOUT")
	setInt(&cfg.Browser.ElementTimeoutMs, "MURMUR_ELEMENT_TIMEOUT", "ELEMENT_TIMEOUT")
	if v, ok := os.LookupEnv("MURMUR_HEADLESS"); ok {
		cfg.Browser.Headless = v == "true" || v == "1"
	} else if v, ok := os.LookupEnv("HEADLESS"); ok {
		cfg.Browser.Headless = v == "true"
	}

	return nil
}

// Validate reports configuration values that would break the buffer or counter.
func (c *Config) Validate() error {
	switch {
	case c.BufferCapacity <= 0:
		return errors.New("buffer_capacity must be positive")
	case c.RefillThreshold < 0:
		return errors.New("refill_threshold must not be negative")
	case c.SimilarityThreshold < 0 || c.SimilarityThreshold > 100:
		return errors.New("similarity_threshold must be within 0..100")
	case c.MinCommentChars <= 0:
		return errors.New("min_comment_chars must be positive")
	case c.MaxCommentChars <= c.MinCommentChars:
		return errors.New("max_comment_chars must exceed min_comment_chars")
	case c.BaseExcludeCount < 0 || c.MaxExcludeCount < c.BaseExcludeCount:
		return errors.New("max_exclude_count must be at least base_exclude_count")
	case c.WorkStartHour < 0 || c.WorkEndHour > 24 || c.WorkStartHour >= c.WorkEndHour:
		return errors.New("work hours must satisfy 0 <= start < end <= 24")
	case c.IntervalMinMinutes <= 0 || c.IntervalMaxMinutes < c.IntervalMinMinutes:
		return errors.New("interval_max_minutes must be at least interval_min_minutes")
	}
	return nil
}

// mergeStringSlice combines two slices, trims whitespace, and removes duplicates.
func mergeStringSlice(a, b []string) []string {
	seen := make(map[string]bool)
	result := make([]string, 0, len(a)+len(b))

	for _, s := range a {
		s = strings.TrimSpace(s)
		if s != "" && !seen[s] {
			seen[s] = true
			result = append(result, s)
		}
	}
	for _, s := range b {
		s = strings.TrimSpace(s)
		if s != "" && !seen[s] {
			seen[s] = true
			result = append(result, s)
		}
	}

	if len(result) == 0 {
		return nil
	}
	return result
}
