package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoad_DefaultWhenMissing(t *testing.T) {
	tmpDir := t.TempDir()

	cfg, err := Load(tmpDir)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	def := DefaultConfig()
	if cfg.BufferCapacity != def.BufferCapacity {
		t.Fatalf("BufferCapacity = %d, want %d", cfg.BufferCapacity, def.BufferCapacity)
	}
	if cfg.WorkStartHour != 9 || cfg.WorkEndHour != 18 {
		t.Fatalf("work hours = %d..%d, want 9..18", cfg.WorkStartHour, cfg.WorkEndHour)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config invalid: %v", err)
	}
}

func TestLoad_OverridesFromFile(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.json")

	data := `{"buffer_capacity": 5, "similarity_threshold": 60, "llm": {"model": "gpt-4o-mini"}}`
	if err := os.WriteFile(configPath, []byte(data), 0600); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}

	cfg, err := Load(tmpDir)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.BufferCapacity != 5 {
		t.Errorf("BufferCapacity = %d, want 5", cfg.BufferCapacity)
	}
	if cfg.SimilarityThreshold != 60 {
		t.Errorf("SimilarityThreshold = %d, want 60", cfg.SimilarityThreshold)
	}
	if cfg.LLM.Model != "gpt-4o-mini" {
		t.Errorf("LLM.Model = %q, want %q", cfg.LLM.Model, "gpt-4o-mini")
	}
	// Untouched nested fields keep defaults
	if cfg.LLM.BatchSize != 5 {
		t.Errorf("LLM.BatchSize = %d, want 5", cfg.LLM.BatchSize)
	}
	if cfg.RefillThreshold != 2 {
		t.Errorf("RefillThreshold = %d, want 2", cfg.RefillThreshold)
	}
}

func TestLoad_ExplicitZeroOverridesDefault(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.json")

	data := `{"work_start_hour": 0, "work_end_hour": 6, "base_exclude_count": 0}`
	if err := os.WriteFile(configPath, []byte(data), 0600); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}

	cfg, err := Load(tmpDir)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.WorkStartHour != 0 || cfg.WorkEndHour != 6 {
		t.Errorf("work hours = %d..%d, want 0..6", cfg.WorkStartHour, cfg.WorkEndHour)
	}
	if cfg.BaseExcludeCount != 0 {
		t.Errorf("BaseExcludeCount = %d, want 0", cfg.BaseExcludeCount)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("Validate() error = %v, want nil", err)
	}
}

func TestLoadWithRepo_RepoZeroOverridesGlobal(t *testing.T) {
	globalDir := t.TempDir()
	repoRoot := t.TempDir()

	if err := os.WriteFile(filepath.Join(globalDir, "config.json"), []byte(`{"work_start_hour": 7}`), 0600); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}
	repoDir := filepath.Join(repoRoot, ".murmur")
	if err := os.MkdirAll(repoDir, 0755); err != nil {
		t.Fatalf("MkdirAll() error = %v", err)
	}
	if err := os.WriteFile(filepath.Join(repoDir, "config.json"), []byte(`{"work_start_hour": 0}`), 0600); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}

	cfg, err := LoadWithRepo(globalDir, repoRoot)
	if err != nil {
		t.Fatalf("LoadWithRepo() error = %v", err)
	}
	if cfg.WorkStartHour != 0 {
		t.Errorf("WorkStartHour = %d, want 0 (repo override)", cfg.WorkStartHour)
	}
	if cfg.WorkEndHour != 18 {
		t.Errorf("WorkEndHour = %d, want default 18", cfg.WorkEndHour)
	}
}

func TestLoad_InvalidJSON(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.json")

	if err := os.WriteFile(configPath, []byte(`{not json}`), 0600); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}

	if _, err := Load(tmpDir); err == nil {
		t.Fatalf("Load() expected error, got nil")
	}
}

func TestLoad_DisabledTools(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.json")

	if err := os.WriteFile(configPath, []byte(`{"disabled_tools": ["buffer_clear", " buffer_clear ", "buffer_add"]}`), 0600); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}

	cfg, err := Load(tmpDir)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if len(cfg.DisabledTools) != 2 {
		t.Fatalf("DisabledTools = %v, want 2 deduplicated entries", cfg.DisabledTools)
	}
	if cfg.DisabledTools[0] != "buffer_clear" {
		t.Errorf("DisabledTools[0] = %q, want %q", cfg.DisabledTools[0], "buffer_clear")
	}
}

func TestLoadWithRepo_RepoOverridesGlobal(t *testing.T) {
	globalDir := t.TempDir()
	repoRoot := t.TempDir()

	globalConfig := `{"buffer_capacity": 8, "disabled_tools": ["buffer_clear"]}`
	if err := os.WriteFile(filepath.Join(globalDir, "config.json"), []byte(globalConfig), 0600); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}

	repoDir := filepath.Join(repoRoot, ".murmur")
	if err := os.MkdirAll(repoDir, 0755); err != nil {
		t.Fatalf("MkdirAll() error = %v", err)
	}
	repoConfig := `{"buffer_capacity": 6, "disabled_tools": ["buffer_add"], "allowed_paths": ["/srv/murmur"], "browser": {"input_selectors": ["#reply"]}}`
	if err := os.WriteFile(filepath.Join(repoDir, "config.json"), []byte(repoConfig), 0600); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}

	nested := filepath.Join(repoRoot, "a", "b")
	if err := os.MkdirAll(nested, 0755); err != nil {
		t.Fatalf("MkdirAll() error = %v", err)
	}

	cfg, err := LoadWithRepo(globalDir, nested)
	if err != nil {
		t.Fatalf("LoadWithRepo() error = %v", err)
	}

	if cfg.BufferCapacity != 6 {
		t.Errorf("BufferCapacity = %d, want 6 (repo override)", cfg.BufferCapacity)
	}
	if len(cfg.DisabledTools) != 2 {
		t.Errorf("DisabledTools = %v, want merged 2", cfg.DisabledTools)
	}
	if len(cfg.AllowedPaths) != 1 || cfg.AllowedPaths[0] != "/srv/murmur" {
		t.Errorf("AllowedPaths = %v, want [/srv/murmur]", cfg.AllowedPaths)
	}
	if len(cfg.Browser.InputSelectors) != 1 || cfg.Browser.InputSelectors[0] != "#reply" {
		t.Errorf("InputSelectors = %v, want [#reply]", cfg.Browser.InputSelectors)
	}
	if len(cfg.Browser.SubmitSelectors) == 0 {
		t.Errorf("SubmitSelectors should keep defaults")
	}
}

func TestLoadWithRepo_NeitherPresent(t *testing.T) {
	cfg, err := LoadWithRepo(t.TempDir(), t.TempDir())
	if err != nil {
		t.Fatalf("LoadWithRepo() error = %v", err)
	}
	if cfg.BufferCapacity != DefaultConfig().BufferCapacity {
		t.Errorf("BufferCapacity = %d, want default", cfg.BufferCapacity)
	}
}

func TestFindRepoConfig_NotFound(t *testing.T) {
	if got := FindRepoConfig(t.TempDir()); got != "" {
		// A stray .murmur above the temp dir would be unusual but not a failure of this code.
		t.Logf("FindRepoConfig() = %q (found a config above the temp dir)", got)
	}
}

func TestApplyEnv_FromFile(t *testing.T) {
	tmpDir := t.TempDir()
	envPath := filepath.Join(tmpDir, ".env")
	env := "WORK_START_HOUR=7\nWORK_END_HOUR=23\nSIMILARITY_CONST=40\nOPENROUTER_API_KEY=sk-test\nMURMUR_HEADLESS=true\n"
	if err := os.WriteFile(envPath, []byte(env), 0600); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}

	for _, k := range []string{"WORK_START_HOUR", "WORK_END_HOUR", "SIMILARITY_CONST", "OPENROUTER_API_KEY", "MURMUR_HEADLESS"} {
		k := k
		old, had := os.LookupEnv(k)
		os.Unsetenv(k)
		t.Cleanup(func() {
			if had {
				os.Setenv(k, old)
			} else {
				os.Unsetenv(k)
			}
		})
	}

	cfg := DefaultConfig()
	if err := ApplyEnv(cfg, envPath); err != nil {
		t.Fatalf("ApplyEnv() error = %v", err)
	}

	if cfg.WorkStartHour != 7 || cfg.WorkEndHour != 23 {
		t.Errorf("work hours = %d..%d, want 7..23", cfg.WorkStartHour, cfg.WorkEndHour)
	}
	if cfg.SimilarityThreshold != 40 {
		t.Errorf("SimilarityThreshold = %d, want 40", cfg.SimilarityThreshold)
	}
	if cfg.LLM.APIKey != "sk-test" {
		t.Errorf("LLM.APIKey = %q, want %q", cfg.LLM.APIKey, "sk-test")
	}
	if !cfg.Browser.Headless {
		t.Errorf("Browser.Headless = false, want true")
	}
}

func TestApplyEnv_MissingFileIsFine(t *testing.T) {
	cfg := DefaultConfig()
	if err := ApplyEnv(cfg, filepath.Join(t.TempDir(), "missing.env")); err != nil {
		t.Fatalf("ApplyEnv() error = %v", err)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"zero capacity", func(c *Config) { c.BufferCapacity = 0 }},
		{"threshold above 100", func(c *Config) { c.SimilarityThreshold = 101 }},
		{"inverted length bounds", func(c *Config) { c.MaxCommentChars = 5 }},
		{"zero min length", func(c *Config) { c.MinCommentChars = 0 }},
		{"max below base", func(c *Config) { c.MaxExcludeCount = 1 }},
		{"inverted hours", func(c *Config) { c.WorkStartHour = 20 }},
		{"inverted interval", func(c *Config) { c.IntervalMaxMinutes = 1 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			if err := cfg.Validate(); err == nil {
				t.Errorf("Validate() = nil, want error")
			}
		})
	}
}
