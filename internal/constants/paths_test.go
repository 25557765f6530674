package constants

import (
	"testing"
)

func TestPathConstants(t *testing.T) {
	tests := []struct {
		name  string
		value string
	}{
		{name: "DefaultEnvPath", value: DefaultEnvPath},
		{name: "DefaultConfigPath", value: DefaultConfigPath},
		{name: "ConfigEnvVar", value: ConfigEnvVar},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.value == "" {
				t.Errorf("%s should not be empty", tt.name)
			}
		})
	}
}
