package usage

import (
	"strconv"
	"time"
)

// Conversion is one finished conversion as seen by the HTTP layer.
type Conversion struct {
	Format  string
	Bytes   int
	Latency time.Duration
	Failed  bool
}

// Hourly holds the counters for one format in one UTC hour.
type Hourly struct {
	Format       string `json:"format"`
	Date         string `json:"date"`
	Hour         int    `json:"hour"`
	Requests     int64  `json:"requests"`
	Successes    int64  `json:"successes"`
	Failures     int64  `json:"failures"`
	Bytes        int64  `json:"bytes"`
	AvgLatencyMs int64  `json:"avg_latency_ms"`
}

// Totals sums a set of hourly rows.
type Totals struct {
	Requests  int64 `json:"requests"`
	Successes int64 `json:"successes"`
	Failures  int64 `json:"failures"`
	Bytes     int64 `json:"bytes"`
}

func Sum(rows []*Hourly) Totals {
	var t Totals
	for _, r := range rows {
		t.Requests += r.Requests
		t.Successes += r.Successes
		t.Failures += r.Failures
		t.Bytes += r.Bytes
	}
	return t
}

func RedisKey(format, date string, hour int) string {
	return "tts:usage:" + format + ":" + date + ":" + strconv.Itoa(hour)
}
