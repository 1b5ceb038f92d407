package scan

import "time"

// ConfigEntry pairs a scan timestamp with the scanner configuration active
// when the scan was captured.
type ConfigEntry struct {
	Timestamp time.Time
	Config    Config
}

// History retains the scanner configuration of every scan still present in
// the waterfall, keyed by scan timestamp. Entries are evicted in lock-step
// with row eviction so len(history) always equals the number of retained
// rows. It has a single owner and is not safe for concurrent use.
type History struct {
	limit   int
	times   []int64
	configs map[int64]Config
}

// NewHistory creates a history bounded to limit entries, one per retained
// waterfall row.
func NewHistory(limit int) *History {
	return &History{
		limit:   limit,
		configs: make(map[int64]Config, limit),
	}
}

// Append records a scan's config; once the limit is reached the oldest entry
// is evicted first, mirroring the buffer's FIFO row eviction.
func (h *History) Append(ts time.Time, cfg Config) {
	if len(h.times) >= h.limit {
		oldest := h.times[0]
		h.times = h.times[1:]
		delete(h.configs, oldest)
	}
	key := ts.UnixNano()
	h.times = append(h.times, key)
	h.configs[key] = cfg
}

// Len returns the number of retained entries.
func (h *History) Len() int { return len(h.times) }

// First returns the oldest retained entry; ok is false when empty.
func (h *History) First() (ConfigEntry, bool) {
	return h.entry(0)
}

// Last returns the newest retained entry; ok is false when empty.
func (h *History) Last() (ConfigEntry, bool) {
	return h.entry(len(h.times) - 1)
}

func (h *History) entry(i int) (ConfigEntry, bool) {
	if i < 0 || i >= len(h.times) {
		return ConfigEntry{}, false
	}
	key := h.times[i]
	return ConfigEntry{
		Timestamp: time.Unix(0, key),
		Config:    h.configs[key],
	}, true
}
