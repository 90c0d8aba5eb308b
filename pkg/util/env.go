package util

import (
	"bufio"
	"os"
	"strings"
	"time"

	"github.com/spf13/cast"
)

// LoadEnv loads `.env.<env>` and then `.env` from the working directory.
// Keys already present in the process environment are never overwritten.
func LoadEnv(env string) error {
	var lastErr error
	loaded := false
	for _, name := range []string{".env." + env, ".env"} {
		if err := loadEnvFile(name); err != nil {
			lastErr = err
			continue
		}
		loaded = true
	}
	if loaded {
		return nil
	}
	return lastErr
}

func loadEnvFile(name string) error {
	f, err := os.Open(name)
	if err != nil {
		return err
	}
	defer f.Close()

	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		line = strings.TrimPrefix(line, "export ")
		key, val, ok := strings.Cut(line, "=")
		if !ok {
			continue
		}
		key = strings.TrimSpace(key)
		val = strings.Trim(strings.TrimSpace(val), `"'`)
		if _, exists := os.LookupEnv(key); exists {
			continue
		}
		os.Setenv(key, val)
	}
	return sc.Err()
}

func GetEnv(key string) string {
	return strings.TrimSpace(os.Getenv(key))
}

// GetEnvDefault returns def when key is unset or blank.
func GetEnvDefault(key, def string) string {
	if v := GetEnv(key); v != "" {
		return v
	}
	return def
}

func GetIntEnv(key string) int64 {
	return cast.ToInt64(GetEnv(key))
}

func GetBoolEnv(key string) bool {
	return cast.ToBool(GetEnv(key))
}

// GetDurationEnv accepts "8s"/"1m" style values as well as bare seconds.
func GetDurationEnv(key string) time.Duration {
	v := GetEnv(key)
	if v == "" {
		return 0
	}
	if n, err := cast.ToInt64E(v); err == nil {
		return time.Duration(n) * time.Second
	}
	return cast.ToDuration(v)
}
