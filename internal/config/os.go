package config

import (
	"os"
	"strings"
)

type OSInterface interface {
	Getenv(key string) string
	Environ() map[string]string
	Exists(name string) bool
	ReadFile(filename string) ([]byte, error)
}

var defaultOS = OSInterface(osAdapter{})

type osAdapter struct{}

func (osAdapter) Getenv(key string) string { return os.Getenv(key) }

func (osAdapter) Environ() map[string]string {
	envs := make(map[string]string)
	for _, kv := range os.Environ() {
		if k, v, ok := strings.Cut(kv, "="); ok {
			envs[k] = v
		}
	}
	return envs
}

func (osAdapter) Exists(name string) bool {
	info, err := os.Stat(name)
	return err == nil && !info.IsDir()
}

func (osAdapter) ReadFile(filename string) ([]byte, error) { return os.ReadFile(filename) }
