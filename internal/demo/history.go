package demo

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/redis/go-redis/v9"

	"github.com/rileyhilliard/netwatch/internal/telemetry"
)

// History keeps the recent samples served by /api/metrics/{id}.
type History interface {
	// Append records one sample per channel for a device.
	Append(ctx context.Context, deviceID string, points map[string]telemetry.Point) error
	// Snapshot returns every retained sample for a device, oldest first.
	Snapshot(ctx context.Context, deviceID string) (telemetry.Snapshot, error)
	Close() error
}

// MemoryHistory is an in-process History.
type MemoryHistory struct {
	retention int

	mu   sync.RWMutex
	data map[string]telemetry.Snapshot
}

// NewMemoryHistory keeps up to retention samples per channel.
func NewMemoryHistory(retention int) *MemoryHistory {
	return &MemoryHistory{retention: retention, data: make(map[string]telemetry.Snapshot)}
}

func (h *MemoryHistory) Append(_ context.Context, deviceID string, points map[string]telemetry.Point) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	snap := h.data[deviceID]
	if snap == nil {
		snap = make(telemetry.Snapshot)
		h.data[deviceID] = snap
	}
	for ch, p := range points {
		series := append(snap[ch], p)
		if h.retention > 0 && len(series) > h.retention {
			series = series[len(series)-h.retention:]
		}
		snap[ch] = series
	}
	return nil
}

func (h *MemoryHistory) Snapshot(_ context.Context, deviceID string) (telemetry.Snapshot, error) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.data[deviceID].Clone(), nil
}

func (h *MemoryHistory) Close() error { return nil }

// RedisHistory stores each channel as a capped Redis list of JSON points,
// with a set per device naming its channels.
type RedisHistory struct {
	client    *redis.Client
	retention int
	prefix    string
}

// NewRedisHistory connects to addr and checks it answers PING.
func NewRedisHistory(ctx context.Context, addr string, retention int) (*RedisHistory, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: "",
		DB:       0,
		Protocol: 2,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis at %s: %w", addr, err)
	}
	return &RedisHistory{client: client, retention: retention, prefix: "netwatch"}, nil
}

func (h *RedisHistory) seriesKey(deviceID, channel string) string {
	return fmt.Sprintf("%s:metrics:%s:%s", h.prefix, deviceID, channel)
}

func (h *RedisHistory) channelsKey(deviceID string) string {
	return fmt.Sprintf("%s:channels:%s", h.prefix, deviceID)
}

func (h *RedisHistory) Append(ctx context.Context, deviceID string, points map[string]telemetry.Point) error {
	_, err := h.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		for ch, p := range points {
			data, err := json.Marshal(p)
			if err != nil {
				return err
			}
			key := h.seriesKey(deviceID, ch)
			pipe.RPush(ctx, key, data)
			if h.retention > 0 {
				pipe.LTrim(ctx, key, int64(-h.retention), -1)
			}
			pipe.SAdd(ctx, h.channelsKey(deviceID), ch)
		}
		return nil
	})
	return err
}

func (h *RedisHistory) Snapshot(ctx context.Context, deviceID string) (telemetry.Snapshot, error) {
	channels, err := h.client.SMembers(ctx, h.channelsKey(deviceID)).Result()
	if err != nil {
		return nil, err
	}

	snap := make(telemetry.Snapshot, len(channels))
	for _, ch := range channels {
		raw, err := h.client.LRange(ctx, h.seriesKey(deviceID, ch), 0, -1).Result()
		if err != nil {
			return nil, err
		}
		series := make(telemetry.Series, 0, len(raw))
		for _, item := range raw {
			var p telemetry.Point
			if err := json.Unmarshal([]byte(item), &p); err != nil {
				return nil, fmt.Errorf("decode %s: %w", h.seriesKey(deviceID, ch), err)
			}
			series = append(series, p)
		}
		snap[ch] = series.Normalize()
	}
	return snap, nil
}

// Clear removes everything stored for the given devices.
func (h *RedisHistory) Clear(ctx context.Context, deviceIDs ...string) error {
	for _, id := range deviceIDs {
		channels, err := h.client.SMembers(ctx, h.channelsKey(id)).Result()
		if err != nil {
			return err
		}
		keys := []string{h.channelsKey(id)}
		for _, ch := range channels {
			keys = append(keys, h.seriesKey(id, ch))
		}
		if err := h.client.Del(ctx, keys...).Err(); err != nil {
			return err
		}
	}
	return nil
}

func (h *RedisHistory) Close() error {
	return h.client.Close()
}
