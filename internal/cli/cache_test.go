package cli

import (
	"testing"

	"github.com/knitfamily/knit/internal/config"
)

func TestCacheLocation(t *testing.T) {
	tests := []struct {
		name   string
		driver string
		want   string
	}{
		{name: "file", driver: config.CacheFile, want: "/tmp/knit-cache"},
		{name: "redis", driver: config.CacheRedis, want: "redis://cache:6379"},
		{name: "none", driver: config.CacheNone, want: "(disabled)"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := config.Default()
			cfg.Cache.Driver = tt.driver
			cfg.Cache.Dir = "/tmp/knit-cache"
			cfg.Cache.RedisAddr = "cache:6379"
			if got := cacheLocation(cfg); got != tt.want {
				t.Errorf("cacheLocation() = %q, want %q", got, tt.want)
			}
		})
	}
}
