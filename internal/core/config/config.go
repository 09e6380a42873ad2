package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

type InvalidationCfg struct {
	Enabled bool
	Topic   string
	Brokers string
	GroupID string
}

type Config struct {
	Addr              string
	LogLevel          string
	LogConsole        bool
	LogSampleN        int
	TargetCRS         string
	GridWidthDefault  int
	GridHeightDefault int
	LocationAttribute string
	TypeName          string
	CRSAttribute      string
	GranuleLimit      int
	CatalogTimeout    time.Duration
	RasterHeaderBytes int
	SampleCacheScope  string
	SampleCacheTTL    time.Duration
	SampleCacheSize   int
	RedisAddr         string
	CacheOpTimeout    time.Duration
	MetricsEnabled    bool
	Invalidation      InvalidationCfg
}

func FromEnv() Config {
	width := getint("GRID_WIDTH_DEFAULT", 1000)
	height := getint("GRID_HEIGHT_DEFAULT", 500)
	if width <= 0 {
		width = 1000
	}
	if height <= 0 {
		height = 500
	}

	scope := strings.ToLower(strings.TrimSpace(getenv("SAMPLE_CACHE_SCOPE", "collection")))
	if scope != "process" {
		scope = "collection"
	}

	return Config{
		Addr:              getenv("ADMIN_ADDR", ":8091"),
		LogLevel:          getenv("LOG_LEVEL", "info"),
		LogConsole:        getbool("LOG_CONSOLE", false),
		LogSampleN:        getint("LOG_SAMPLE_N", 0),
		TargetCRS:         getenv("TARGET_CRS", "EPSG:4326"),
		GridWidthDefault:  width,
		GridHeightDefault: height,
		LocationAttribute: getenv("LOCATION_ATTRIBUTE", "location"),
		TypeName:          getenv("TYPE_NAME", "stac_mosaic"),
		CRSAttribute:      getenv("CRS_ATTRIBUTE", "crs"),
		GranuleLimit:      getint("GRANULE_LIMIT", 10000),
		CatalogTimeout:    getduration("CATALOG_TIMEOUT", 30*time.Second),
		RasterHeaderBytes: getint("RASTER_HEADER_BYTES", 64<<10),
		SampleCacheScope:  scope,
		SampleCacheTTL:    getduration("SAMPLE_CACHE_TTL", 0),
		SampleCacheSize:   getint("SAMPLE_CACHE_SIZE", 128),
		RedisAddr:         getenv("REDIS_ADDR", ""),
		CacheOpTimeout:    getduration("CACHE_OP_TIMEOUT", 250*time.Millisecond),
		MetricsEnabled:    getbool("METRICS_ENABLED", false),
		Invalidation: InvalidationCfg{
			Enabled: getbool("INVALIDATION_ENABLED", false),
			Topic:   getenv("KAFKA_TOPIC", "stac-catalog-events"),
			Brokers: getenv("KAFKA_BROKERS", "localhost:9092"),
			GroupID: getenv("KAFKA_GROUP_ID", "stac-sample-invalidator"),
		},
	}
}

func getenv(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

func getint(k string, def int) int {
	if v := os.Getenv(k); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

func getbool(k string, def bool) bool {
	if v := os.Getenv(k); v != "" {
		switch strings.ToLower(strings.TrimSpace(v)) {
		case "1", "t", "true", "y", "yes":
			return true
		case "0", "f", "false", "n", "no":
			return false
		}
	}
	return def
}

func getduration(k string, def time.Duration) time.Duration {
	if v := os.Getenv(k); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}
