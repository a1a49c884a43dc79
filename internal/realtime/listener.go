package realtime

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/lib/pq"
	"github.com/rs/zerolog"

	"budgetme-notifications/internal/logging"
	"budgetme-notifications/internal/metrics"
)

const (
	minReconnectInterval = 10 * time.Second
	maxReconnectInterval = time.Minute
	pingInterval         = 90 * time.Second
)

// Listener consumes Postgres NOTIFY payloads and republishes them on a hub.
type Listener struct {
	dsn     string
	channel string
	hub     *Hub
	log     zerolog.Logger
}

func NewListener(dsn, channel string, hub *Hub) *Listener {
	return &Listener{
		dsn:     dsn,
		channel: channel,
		hub:     hub,
		log:     logging.Component("changefeed"),
	}
}

// Run blocks until ctx is cancelled. pq.Listener reconnects on its own; a nil
// notification marks a reconnect after which missed changes are gone.
func (l *Listener) Run(ctx context.Context) error {
	listener := pq.NewListener(l.dsn, minReconnectInterval, maxReconnectInterval, func(ev pq.ListenerEventType, err error) {
		switch ev {
		case pq.ListenerEventConnected:
			l.log.Info().Str("channel", l.channel).Msg("change feed connected")
		case pq.ListenerEventDisconnected:
			l.log.Warn().Err(err).Msg("change feed disconnected")
		case pq.ListenerEventReconnected:
			l.log.Info().Msg("change feed reconnected")
		case pq.ListenerEventConnectionAttemptFailed:
			l.log.Error().Err(err).Msg("change feed connection attempt failed")
		}
	})
	defer listener.Close()

	if err := listener.Listen(l.channel); err != nil {
		return fmt.Errorf("failed to listen on %s: %w", l.channel, err)
	}

	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case n := <-listener.Notify:
			if n == nil {
				continue
			}
			l.Dispatch(n.Extra)
		case <-ticker.C:
			go func() {
				if err := listener.Ping(); err != nil {
					l.log.Warn().Err(err).Msg("change feed ping failed")
				}
			}()
		}
	}
}

// Dispatch decodes one payload and publishes it on the hub.
func (l *Listener) Dispatch(payload string) {
	var ev ChangeEvent
	if err := json.Unmarshal([]byte(payload), &ev); err != nil {
		l.log.Error().Err(err).Msg("failed to decode change event")
		return
	}
	if ev.Table == "" || ev.Type == "" {
		l.log.Warn().Str("payload", payload).Msg("change event without table or type")
		return
	}
	metrics.ChangeFeedEvents.WithLabelValues(ev.Table, string(ev.Type)).Inc()
	l.hub.Publish(ev)
}
