package config

import (
	"os"
	"path/filepath"
	"testing"
)

// unsetForTest clears key for the duration of the test and restores it after.
func unsetForTest(t *testing.T, key string) {
	t.Helper()
	t.Setenv(key, "")
	os.Unsetenv(key)
}

func TestLoadEnv(t *testing.T) {
	tmpDir := t.TempDir()

	tests := []struct {
		name    string
		content string
		preset  map[string]string
		wantEnv map[string]string
		wantErr bool
	}{
		{
			name: "valid .env file",
			content: `
# Comment line
SEQ_KEY1=value1
SEQ_KEY2 = value2

SEQ_KEY3=value with spaces
`,
			wantEnv: map[string]string{
				"SEQ_KEY1": "value1",
				"SEQ_KEY2": "value2",
				"SEQ_KEY3": "value with spaces",
			},
		},
		{
			name:    "export prefix and quotes",
			content: "export SEQ_KEY1=\"quoted value\"\nSEQ_KEY2='single'\n",
			wantEnv: map[string]string{
				"SEQ_KEY1": "quoted value",
				"SEQ_KEY2": "single",
			},
		},
		{
			name:    "value containing equals",
			content: "SEQ_KEY1=a=b=c\n",
			wantEnv: map[string]string{"SEQ_KEY1": "a=b=c"},
		},
		{
			name:    "existing environment wins",
			content: "SEQ_KEY1=from-file\n",
			preset:  map[string]string{"SEQ_KEY1": "from-env"},
			wantEnv: map[string]string{"SEQ_KEY1": "from-env"},
		},
		{
			name:    "empty file",
			content: "",
			wantEnv: map[string]string{},
		},
		{
			name:    "line without equals",
			content: "SEQ_KEY1\n",
			wantErr: true,
		},
		{
			name:    "empty key",
			content: "=value\n",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for _, key := range []string{"SEQ_KEY1", "SEQ_KEY2", "SEQ_KEY3"} {
				unsetForTest(t, key)
			}
			for k, v := range tt.preset {
				t.Setenv(k, v)
			}

			path := filepath.Join(tmpDir, tt.name+".env")
			if err := os.WriteFile(path, []byte(tt.content), 0o600); err != nil {
				t.Fatalf("write .env: %v", err)
			}

			err := LoadEnv(path)
			if (err != nil) != tt.wantErr {
				t.Fatalf("LoadEnv() error = %v, wantErr %v", err, tt.wantErr)
			}

			for k, want := range tt.wantEnv {
				if got := os.Getenv(k); got != want {
					t.Errorf("%s = %q, want %q", k, got, want)
				}
			}
		})
	}
}

func TestLoadEnvMissingFile(t *testing.T) {
	if err := LoadEnv(filepath.Join(t.TempDir(), "missing.env")); err == nil {
		t.Error("LoadEnv() expected error for missing file")
	}
}

func TestLoadEnvOptional(t *testing.T) {
	t.Run("missing file is not an error", func(t *testing.T) {
		if err := LoadEnvOptional(filepath.Join(t.TempDir(), ".env")); err != nil {
			t.Errorf("LoadEnvOptional() error = %v", err)
		}
	})

	t.Run("existing file is loaded", func(t *testing.T) {
		unsetForTest(t, "SEQ_OPTIONAL")
		path := filepath.Join(t.TempDir(), ".env")
		if err := os.WriteFile(path, []byte("SEQ_OPTIONAL=yes\n"), 0o600); err != nil {
			t.Fatal(err)
		}
		if err := LoadEnvOptional(path); err != nil {
			t.Fatalf("LoadEnvOptional() error = %v", err)
		}
		if got := os.Getenv("SEQ_OPTIONAL"); got != "yes" {
			t.Errorf("SEQ_OPTIONAL = %q", got)
		}
	})
}
