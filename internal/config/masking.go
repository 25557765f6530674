package config

import (
	"sort"
	"strings"
)

// maskSecret маскирует секрет, оставляя только первые 4 и последние 4 символа
func maskSecret(secret string) string {
	if secret == "" {
		return ""
	}

	// Если секрет слишком короткий, маскируем полностью
	if len(secret) < 12 {
		return "***"
	}

	prefix := secret[:4]
	suffix := secret[len(secret)-4:]
	masked := strings.Repeat("*", len(secret)-8)

	return prefix + masked + suffix
}

// DisplayEnv returns the job environment as sorted KEY=VALUE pairs, with
// values that came from environment references masked.
func (j JobConfig) DisplayEnv() []string {
	out := make([]string, 0, len(j.Env))
	for key, val := range j.Env {
		if j.secretEnv[key] {
			val = maskSecret(val)
		}
		out = append(out, key+"="+val)
	}
	sort.Strings(out)
	return out
}

// SecretArgs returns the indices of arguments that came from environment
// references.
func (j JobConfig) SecretArgs() []int {
	return append([]int(nil), j.secretArgs...)
}
