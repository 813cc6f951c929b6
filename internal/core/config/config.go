package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

type KafkaCfg struct {
	Enabled bool
	Brokers []string
	Topic   string
}

type Config struct {
	Addr              string
	LogLevel          string
	LogConsole        bool
	LogSampleN        int
	ScanWorkers       int
	ScanRate          float64
	ScanBurst         int
	ScanHeaders       bool
	CRSCheck          bool
	EquivalencePolicy string
	EdgeSamples       int
	CRSCacheSize      int
	HrefAsIs          bool
	Pattern           string
	AllowLocal        bool // serve catalogs of local directories over HTTP
	HTTPTimeout       time.Duration
	MaxVLRBytes       int64
	H3Res             int
	Kafka             KafkaCfg
}

func FromEnv() Config {
	workers := getint("SCAN_WORKERS", 8)
	if workers < 1 {
		workers = 1
	}

	samples := getint("EDGE_SAMPLES", 11)
	if samples < 2 {
		samples = 2
	}

	res := getint("H3_RES", 6)
	if res < 0 {
		res = 0
	}
	if res > 15 {
		res = 15
	}

	burst := getint("SCAN_BURST", workers)
	if burst < 1 {
		burst = 1
	}

	return Config{
		Addr:              getenv("ADDR", ":8090"),
		LogLevel:          getenv("LOG_LEVEL", "info"),
		LogConsole:        getbool("LOG_CONSOLE", false),
		LogSampleN:        getint("LOG_SAMPLE_N", 0),
		ScanWorkers:       workers,
		ScanRate:          getfloat("SCAN_RATE", 0),
		ScanBurst:         burst,
		ScanHeaders:       getbool("SCAN_HEADERS", true),
		CRSCheck:          getbool("CRS_CHECK", true),
		EquivalencePolicy: strings.ToLower(getenv("EQUIVALENCE_POLICY", "normalized")),
		EdgeSamples:       samples,
		CRSCacheSize:      getint("CRS_CACHE_SIZE", 256),
		HrefAsIs:          getbool("HREF_ASIS", false),
		Pattern:           getenv("PATTERN", "*.laz"),
		AllowLocal:        getbool("ALLOW_LOCAL", false),
		HTTPTimeout:       getduration("HTTP_TIMEOUT", 30*time.Second),
		MaxVLRBytes:       getint64("MAX_VLR_BYTES", 1<<20),
		H3Res:             res,
		Kafka: KafkaCfg{
			Enabled: getbool("KAFKA_ENABLED", false),
			Brokers: parseList(getenv("KAFKA_BROKERS", "localhost:9092")),
			Topic:   getenv("KAFKA_TOPIC", "point-catalog-reports"),
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

func getint64(k string, def int64) int64 {
	if v := os.Getenv(k); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
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

func getfloat(k string, def float64) float64 {
	if v := os.Getenv(k); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
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

// parse "host1:9092, host2:9092" into a list, dropping empty entries
func parseList(s string) []string {
	var out []string
	for p := range strings.SplitSeq(s, ",") {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		out = append(out, p)
	}
	return out
}
