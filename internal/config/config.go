package config

import (
	"os"
	"strconv"
)

// Config holds the converter's ambient settings: everything that is not
// part of a single conversion call but affects how the CLI/HTTP entry
// points drive the core.
type Config struct {
	LogLevel string
	ICS      ICSConfig

	// PrettyJSON controls as_jevent_string's output formatting.
	PrettyJSON bool

	// DefaultCUAS is the fallback calendar-user-address-set used by the
	// alarm codec (§4.9) when emitting an EMAIL VALARM and no per-call
	// address is supplied.
	DefaultCUAS string

	// HTTPAddr is the listen address for internal/convertapi.
	HTTPAddr string

	// MaxBodyBytes caps request/input sizes for the CLI and HTTP surface.
	MaxBodyBytes int64
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getbool(key string, def bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def
	}
	return b
}

func Load() (*Config, error) {
	maxBody := func() int64 {
		v := getenv("JSCALICAL_MAX_BODY_BYTES", "4194304")
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return 4 << 20
		}
		return n
	}()

	return &Config{
		LogLevel:     getenv("JSCALICAL_LOG_LEVEL", "info"),
		PrettyJSON:   getbool("JSCALICAL_PRETTY_JSON", true),
		DefaultCUAS:  getenv("JSCALICAL_DEFAULT_CUAS", ""),
		HTTPAddr:     getenv("JSCALICAL_HTTP_ADDR", ":8080"),
		MaxBodyBytes: maxBody,
		ICS: ICSConfig{
			CompanyName: getenv("JSCALICAL_ICS_COMPANY", "jscalical"),
			ProductName: getenv("JSCALICAL_ICS_PRODUCT", "Converter"),
			Version:     getenv("JSCALICAL_ICS_VERSION", ""),
			Language:    getenv("JSCALICAL_ICS_LANG", "EN"),
		},
	}, nil
}
