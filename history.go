package httpsim

import (
	"sort"
	"time"

	"github.com/jellydator/ttlcache/v3"
)

// HistoryEntry is a simulated request as kept in the history.
type HistoryEntry struct {
	ID          string    `json:"id"`
	Time        time.Time `json:"time"`
	Method      string    `json:"method"`
	URL         string    `json:"url"`
	StatusCode  int       `json:"statusCode"`
	Cache       string    `json:"cache"`
	CacheStatus string    `json:"cacheStatus"`
	Duration    float64   `json:"duration"`
	Error       string    `json:"error,omitempty"`
}

func (s *Simulator) remember(result SimResult) {
	s.history.Set(result.ID, HistoryEntry{
		ID:          result.ID,
		Time:        time.Now(),
		Method:      result.Request.Method,
		URL:         result.Request.URL,
		StatusCode:  result.Response.StatusCode,
		Cache:       result.Cache.Status,
		CacheStatus: result.Cache.CacheStatus,
		Duration:    result.Timeline.Total,
		Error:       result.Error,
	}, ttlcache.DefaultTTL)
}

// History returns the requests still in the history, newest first.
func (s *Simulator) History() []HistoryEntry {
	items := s.history.Items()
	entries := make([]HistoryEntry, 0, len(items))
	for _, item := range items {
		if item.IsExpired() {
			continue
		}
		entries = append(entries, item.Value())
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Time.After(entries[j].Time) })
	return entries
}

// Counters is a snapshot of the simulator counters.
type Counters struct {
	Requests  int64 `json:"requests"`
	Hits      int64 `json:"hits"`
	Misses    int64 `json:"misses"`
	Forwarded int64 `json:"forwarded"`
	Collapsed int64 `json:"collapsed"`
	Errors    int64 `json:"errors"`
}

func (s *Simulator) Counters() Counters {
	return Counters{
		Requests:  s.counters.requests.Load(),
		Hits:      s.counters.hits.Load(),
		Misses:    s.counters.misses.Load(),
		Forwarded: s.counters.forwarded.Load(),
		Collapsed: s.counters.collapsed.Load(),
		Errors:    s.counters.errors.Load(),
	}
}
