package testinfra

import (
	"sync"
	"sync/atomic"
	"testing"

	"github.com/caarlos0/env/v9"
	"github.com/dbcv/platform/internal/util/testutil"
)

var (
	suiteCounter int64
	suiteCleanup sync.Once
	cfgSync      sync.Once
	cfg          *Config
)

// Config points tests at externally managed infrastructure. Anything left
// empty is started on demand with testcontainers.
type Config struct {
	PostgresURL string `env:"TEST_POSTGRES_URL"`
	cleanupFns  []func()
	mu          sync.Mutex
}

func initConfig() {
	cfg = &Config{}
	if err := env.Parse(cfg); err != nil {
		panic(err)
	}
}

func ReadConfig() *Config {
	cfgSync.Do(initConfig)
	return cfg
}

func (c *Config) addCleanup(fn func()) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cleanupFns = append(c.cleanupFns, fn)
}

// Start registers an integration suite. The returned func must run when the
// suite is done; containers are torn down once the last suite finishes.
func Start(t *testing.T) func() {
	testutil.Integration(t)
	atomic.AddInt64(&suiteCounter, 1)
	return func() {
		if atomic.AddInt64(&suiteCounter, -1) == 0 {
			suiteCleanup.Do(func() {
				c := ReadConfig()
				c.mu.Lock()
				defer c.mu.Unlock()
				for _, fn := range c.cleanupFns {
					fn()
				}
			})
		}
	}
}
