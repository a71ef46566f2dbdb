// Package quality mirrors the vendor connection quality signal.
package quality

import (
	"encoding/json"
	"sync"

	"github.com/dkeye/AvatarCoach/internal/core"
	"github.com/dkeye/AvatarCoach/internal/domain"
	"github.com/dkeye/AvatarCoach/internal/metrics"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Observer holds the latest reading only.
type Observer struct {
	logger zerolog.Logger

	mu       sync.RWMutex
	current  domain.Quality
	onChange []func(domain.Quality)
}

func NewObserver(sid core.SessionID) *Observer {
	return &Observer{
		logger:  log.With().Str("module", "app.quality").Str("sid", string(sid)).Logger(),
		current: domain.QualityUnknown,
	}
}

func (o *Observer) Bind(client core.AvatarClient) {
	client.On(core.EventQualityChanged, o.Handle)
}

func (o *Observer) OnChange(fn func(domain.Quality)) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.onChange = append(o.onChange, fn)
}

func (o *Observer) Current() domain.Quality {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.current
}

// Handle overwrites the reading with the event value; undecodable values read as unknown.
func (o *Observer) Handle(ev core.Event) {
	if ev.Kind != core.EventQualityChanged {
		return
	}
	q := decodeQuality(ev.Detail)
	if q == domain.QualityUnknown && len(ev.Detail) > 0 {
		o.logger.Warn().Str("detail", string(ev.Detail)).Msg("unrecognized quality value")
	}
	o.Set(q)
}

// Set stores q and notifies subscribers when it differs from the previous reading.
func (o *Observer) Set(q domain.Quality) {
	o.mu.Lock()
	prev := o.current
	o.current = q
	subs := append([]func(domain.Quality){}, o.onChange...)
	o.mu.Unlock()

	metrics.QualityReadings.WithLabelValues(string(q)).Inc()
	if prev == q {
		return
	}
	o.logger.Info().Str("quality", string(q)).Msg("connection quality changed")
	for _, fn := range subs {
		fn(q)
	}
}

// Reset returns the reading to unknown.
func (o *Observer) Reset() { o.Set(domain.QualityUnknown) }

func decodeQuality(raw json.RawMessage) domain.Quality {
	if len(raw) == 0 {
		return domain.QualityUnknown
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return domain.ParseQuality(s)
	}
	var d struct {
		Quality string `json:"quality"`
	}
	if err := json.Unmarshal(raw, &d); err == nil {
		return domain.ParseQuality(d.Quality)
	}
	return domain.QualityUnknown
}
