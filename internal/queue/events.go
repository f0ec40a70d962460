package queue

import (
	"context"
	"encoding/json"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// Events fans committed mutations out over redis pub/sub so the realtime
// layer can notify connected clients. Publishing is best-effort: a redis
// failure is logged and never fails the mutation that triggered it.
type Events struct {
	rdb *redis.Client
	log zerolog.Logger
}

func NewEvents(rdb *redis.Client, log zerolog.Logger) *Events {
	return &Events{rdb: rdb, log: log}
}

func (e *Events) Publish(ctx context.Context, passcode, eventType string, payload any) {
	if e == nil || e.rdb == nil {
		return
	}
	data, err := json.Marshal(map[string]any{
		"type":    eventType,
		"payload": payload,
	})
	if err != nil {
		e.log.Error().Err(err).Str("event", eventType).Msg("marshal event")
		return
	}
	if err := e.rdb.Publish(ctx, "queue:"+passcode, string(data)).Err(); err != nil {
		e.log.Warn().Err(err).Str("passcode", passcode).Str("event", eventType).Msg("publish event")
	}
}
