package presenter

import (
	"github.com/benmeehan/signal-agent/internal/models"
	"github.com/rs/zerolog"
)

// LogPresenter renders store events as log lines.
type LogPresenter struct {
	logger zerolog.Logger
}

// NewLogPresenter creates a LogPresenter.
func NewLogPresenter(logger zerolog.Logger) *LogPresenter {
	return &LogPresenter{logger: logger.With().Str("presenter", "log").Logger()}
}

// OnStoreEvent implements store.Observer.
func (p *LogPresenter) OnStoreEvent(event models.StoreEvent) {
	switch event.Kind {
	case models.EventReplaced:
		p.logger.Info().
			Uint64("generation", event.Generation).
			Int("total", event.Total).
			Int("visible", len(event.Visible)).
			Msg("Signal list refreshed")
		if p.logger.GetLevel() > zerolog.DebugLevel {
			return
		}
		for _, r := range event.Visible {
			p.logger.Debug().
				Int("index", r.Index).
				Str("name", r.Name).
				Str("type", r.Type.String()).
				Dur("period", r.Period).
				Float64("value", r.Value).
				Str("state", r.State.String()).
				Time("measured_at", r.MeasuredAt()).
				Msg("Signal")
		}
	case models.EventUpdated:
		u := event.Update
		p.logger.Debug().
			Uint64("generation", event.Generation).
			Int("index", u.Index).
			Float64("value", u.Value).
			Str("state", u.State.String()).
			Int64("timestamp", u.Timestamp).
			Msg("Signal updated")
	}
}
