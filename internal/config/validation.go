package config

import (
	"fmt"
	"strings"

	"github.com/knadh/koanf/v2"
)

// ValidationWarning flags an unknown or potentially misspelled config key.
type ValidationWarning struct {
	Key         string
	Suggestions []string
}

func (w ValidationWarning) String() string {
	msg := fmt.Sprintf("'%s' is not a known config key", w.Key)
	if len(w.Suggestions) == 1 {
		msg += fmt.Sprintf(", did you mean '%s'?", w.Suggestions[0])
	} else if len(w.Suggestions) > 1 {
		msg += fmt.Sprintf(", did you mean one of: %s?", strings.Join(w.Suggestions, ", "))
	}
	return msg
}

// ValidateConfigKeys checks all loaded configuration keys against the
// registry and returns warnings for unknown keys, with suggestions for
// similar registered keys. Keys under a registered namespace prefix are
// accepted without warning; the plugins.* subtree is validated separately by
// each plugin's own schema.
func ValidateConfigKeys(config *koanf.Koanf) []ValidationWarning {
	var warnings []ValidationWarning
	for _, key := range config.Keys() {
		if _, exists := LookupConfigKey(key); exists {
			continue
		}
		if strings.HasPrefix(key, "plugins.") {
			continue
		}
		if hasRegisteredPrefix(key) {
			continue
		}
		warnings = append(warnings, ValidationWarning{
			Key:         key,
			Suggestions: FindSimilarKeys(key, 3),
		})
	}
	return warnings
}

// hasRegisteredPrefix reports whether any registered key is a namespace
// prefix of the given key, so applications can register a prefix without
// registering every sub-key.
func hasRegisteredPrefix(key string) bool {
	parts := strings.Split(key, ".")
	for i := len(parts) - 1; i > 0; i-- {
		if _, exists := LookupConfigKey(strings.Join(parts[:i], ".")); exists {
			return true
		}
	}
	return false
}
