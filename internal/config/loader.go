package config

import (
	"sync"

	"github.com/knadh/koanf/v2"
)

var defaultsOnce sync.Once

// EnsureDefaultsLoaded loads registered config defaults into k if not already
// loaded. Only keys that have no value yet are set, so files and env vars
// always win over defaults. Should be called after all plugins have
// registered their config keys, typically from the host binary.
// Thread-safe, uses sync.Once.
func EnsureDefaultsLoaded(k *koanf.Koanf) {
	defaultsOnce.Do(func() {
		for key, value := range DefaultConfigs() {
			if !k.Exists(key) {
				k.Set(key, value)
			}
		}
	})
}
