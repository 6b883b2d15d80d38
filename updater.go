package httpsim

import (
	"context"
	"time"
)

// Run starts the background processes and blocks until ctx is done.
// It sweeps expired cache entries and cookies every cleanup interval
// and evicts expired history entries.
func (s *Simulator) Run(ctx context.Context) {
	go s.history.Start()
	defer s.history.Stop()

	if s.cleanupInterval <= 0 {
		s.log.Info().Msg("Cleanup loop disabled")
		<-ctx.Done()
		return
	}

	s.log.Info().Msgf("Starting cleanup loop with interval %s", s.cleanupInterval)
	ticker := time.NewTicker(s.cleanupInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			s.log.Info().Msg("Stopping cleanup loop")
			return
		case <-ticker.C:
			s.cleanup()
		}
	}
}

// cleanup runs one sweep over both stores.
func (s *Simulator) cleanup() (entries, cookies int) {
	entries = s.cache.Cleanup()
	cookies = s.cookies.Cleanup()
	if entries > 0 || cookies > 0 {
		s.log.Debug().Int("entries", entries).Int("cookies", cookies).Msg("Removed expired entries")
	} else {
		s.log.Trace().Msg("Nothing expired, pausing cleanup")
	}
	return entries, cookies
}
