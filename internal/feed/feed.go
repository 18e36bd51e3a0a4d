// Package feed fans seat map change notifications out to live viewers.
// Updates travel over a Redis pub/sub channel so that every API instance
// can push them to its own SSE subscribers.
package feed

import (
	"context"
	"encoding/json"
	"time"

	"github.com/metinatakli/cinema-booking-engine/internal/domain"
	"github.com/redis/go-redis/v9"
)

const channel = "seatmap:changed"

type SeatMapFeed struct {
	rdb *redis.Client
}

func New(rdb *redis.Client) *SeatMapFeed {
	return &SeatMapFeed{rdb: rdb}
}

type seatMapChangedMsg struct {
	ShowKey string `json:"show_key"`
	TsUnix  int64  `json:"ts_unix"`
}

// SeatMapChanged announces that a show's seat occupancy moved. Delivery is
// best effort; viewers that miss a message converge on the next snapshot.
func (f *SeatMapFeed) SeatMapChanged(ctx context.Context, showKey domain.ShowKey) error {
	msg := seatMapChangedMsg{
		ShowKey: string(showKey),
		TsUnix:  time.Now().Unix(),
	}

	payload, err := json.Marshal(msg)
	if err != nil {
		return err
	}

	return f.rdb.Publish(ctx, channel, payload).Err()
}

// Subscribe invokes handler for every seat map change until ctx is done.
func (f *SeatMapFeed) Subscribe(ctx context.Context, handler func(ctx context.Context, showKey domain.ShowKey)) error {
	sub := f.rdb.Subscribe(ctx, channel)
	defer sub.Close()

	ch := sub.Channel(redis.WithChannelSize(256))

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case m, ok := <-ch:
			if !ok {
				return nil
			}

			var msg seatMapChangedMsg
			if err := json.Unmarshal([]byte(m.Payload), &msg); err == nil && msg.ShowKey != "" {
				handler(ctx, domain.ShowKey(msg.ShowKey))
			}
		}
	}
}
