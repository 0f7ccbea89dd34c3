package ops

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/hpungsan/murmur/internal/config"
	"github.com/hpungsan/murmur/internal/errors"
)

func TestValidatePath(t *testing.T) {
	allowed := t.TempDir()
	cfg := config.DefaultConfig()
	cfg.AllowedPaths = []string{allowed}

	existing := filepath.Join(allowed, "present.jsonl")
	if err := os.WriteFile(existing, []byte("{}\n"), 0600); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}
	link := filepath.Join(allowed, "link.jsonl")
	if err := os.Symlink(existing, link); err != nil {
		t.Fatalf("Symlink() error = %v", err)
	}

	tests := []struct {
		name string
		path string
		mode PathCheckMode
		want errors.ErrorCode // empty means valid
	}{
		{"write in allowed dir", filepath.Join(allowed, "out.jsonl"), PathCheckWrite, ""},
		{"read existing", existing, PathCheckRead, ""},
		{"empty", "", PathCheckWrite, errors.ErrInvalidRequest},
		{"traversal", allowed + "/../x.jsonl", PathCheckWrite, errors.ErrInvalidRequest},
		{"wrong extension", filepath.Join(allowed, "out.json"), PathCheckWrite, errors.ErrInvalidRequest},
		{"subdirectory", filepath.Join(allowed, "sub", "out.jsonl"), PathCheckWrite, errors.ErrInvalidRequest},
		{"outside", filepath.Join(t.TempDir(), "out.jsonl"), PathCheckWrite, errors.ErrInvalidRequest},
		{"read missing", filepath.Join(allowed, "missing.jsonl"), PathCheckRead, errors.ErrFileNotFound},
		{"symlink", link, PathCheckRead, errors.ErrInvalidRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidatePath(tt.path, tt.mode, cfg)
			if tt.want == "" {
				if err != nil {
					t.Errorf("ValidatePath() error = %v, want nil", err)
				}
				return
			}
			if !errors.Is(err, tt.want) {
				t.Errorf("ValidatePath() error = %v, want %s", err, tt.want)
			}
		})
	}
}

func TestValidatePath_AllowUnsafe(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.AllowUnsafePaths = true

	if err := ValidatePath(filepath.Join(t.TempDir(), "anywhere.jsonl"), PathCheckWrite, cfg); err != nil {
		t.Errorf("ValidatePath() error = %v, want nil with AllowUnsafePaths", err)
	}
	if err := ValidatePath("/tmp/../etc/x.jsonl", PathCheckWrite, cfg); !errors.Is(err, errors.ErrInvalidRequest) {
		t.Errorf("traversal must still be rejected, got %v", err)
	}
}
