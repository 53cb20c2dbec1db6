package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/tatami-systems/tatami/internal/domain/model"
)

// Retention for match records. Finished matches are read by the reporting
// collaborator well before these expire.
const (
	matchTTL    = 72 * time.Hour
	snapshotTTL = 72 * time.Hour
)

// RedisGateway persists match records as JSON values in Redis.
//
// Key layout:
//
//	match:{id}            match aggregate
//	match:{id}:rounds     hash, field = round number
//	match:{id}:events     list, RPUSH per appended event
//	match:{id}:snapshot   latest scoreboard snapshot
//	match:{id}:assessors  assignment list
type RedisGateway struct {
	client *redis.Client
}

// NewRedisGateway creates a gateway on an established client.
func NewRedisGateway(client *redis.Client) *RedisGateway {
	return &RedisGateway{client: client}
}

func matchKey(id string) string       { return "match:" + id }
func roundsKey(id string) string      { return "match:" + id + ":rounds" }
func eventsKey(id string) string      { return "match:" + id + ":events" }
func snapshotKey(id string) string    { return "match:" + id + ":snapshot" }
func assignmentsKey(id string) string { return "match:" + id + ":assessors" }

func (g *RedisGateway) LoadMatch(ctx context.Context, id string) (*model.Match, error) {
	data, err := g.client.Get(ctx, matchKey(id)).Result()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load match %s: %w", id, err)
	}
	var m model.Match
	if err := json.Unmarshal([]byte(data), &m); err != nil {
		return nil, fmt.Errorf("unmarshal match %s: %w", id, err)
	}
	return &m, nil
}

func (g *RedisGateway) SaveMatch(ctx context.Context, m *model.Match) error {
	data, err := json.Marshal(m)
	if err != nil {
		return fmt.Errorf("marshal match %s: %w", m.ID, err)
	}
	return g.client.Set(ctx, matchKey(m.ID), data, matchTTL).Err()
}

func (g *RedisGateway) SaveRound(ctx context.Context, r *model.Round) error {
	data, err := json.Marshal(r)
	if err != nil {
		return fmt.Errorf("marshal round %d of %s: %w", r.Number, r.MatchID, err)
	}
	key := roundsKey(r.MatchID)
	pipe := g.client.Pipeline()
	pipe.HSet(ctx, key, fmt.Sprintf("%d", r.Number), data)
	pipe.Expire(ctx, key, matchTTL)
	_, err = pipe.Exec(ctx)
	return err
}

func (g *RedisGateway) ListRounds(ctx context.Context, matchID string) ([]model.Round, error) {
	fields, err := g.client.HGetAll(ctx, roundsKey(matchID)).Result()
	if err != nil {
		return nil, fmt.Errorf("list rounds of %s: %w", matchID, err)
	}
	out := make([]model.Round, 0, len(fields))
	for _, raw := range fields {
		var r model.Round
		if err := json.Unmarshal([]byte(raw), &r); err != nil {
			return nil, fmt.Errorf("unmarshal round of %s: %w", matchID, err)
		}
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Number < out[j].Number })
	return out, nil
}

func (g *RedisGateway) AppendEvent(ctx context.Context, e *model.ScoreEvent) error {
	data, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("marshal event %s: %w", e.ID, err)
	}
	key := eventsKey(e.MatchID)
	pipe := g.client.Pipeline()
	pipe.RPush(ctx, key, data)
	pipe.Expire(ctx, key, matchTTL)
	_, err = pipe.Exec(ctx)
	return err
}

func (g *RedisGateway) ListEvents(ctx context.Context, matchID string) ([]model.ScoreEvent, error) {
	raws, err := g.client.LRange(ctx, eventsKey(matchID), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("list events of %s: %w", matchID, err)
	}
	out := make([]model.ScoreEvent, 0, len(raws))
	for _, raw := range raws {
		var e model.ScoreEvent
		if err := json.Unmarshal([]byte(raw), &e); err != nil {
			return nil, fmt.Errorf("unmarshal event of %s: %w", matchID, err)
		}
		out = append(out, e)
	}
	return out, nil
}

func (g *RedisGateway) SaveSnapshot(ctx context.Context, s *model.ScoreboardSnapshot) error {
	data, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("marshal snapshot of %s: %w", s.MatchID, err)
	}
	return g.client.Set(ctx, snapshotKey(s.MatchID), data, snapshotTTL).Err()
}

func (g *RedisGateway) LoadSnapshot(ctx context.Context, matchID string) (*model.ScoreboardSnapshot, error) {
	data, err := g.client.Get(ctx, snapshotKey(matchID)).Result()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load snapshot of %s: %w", matchID, err)
	}
	var s model.ScoreboardSnapshot
	if err := json.Unmarshal([]byte(data), &s); err != nil {
		return nil, fmt.Errorf("unmarshal snapshot of %s: %w", matchID, err)
	}
	return &s, nil
}

func (g *RedisGateway) SaveAssessorAssignments(ctx context.Context, matchID string, assignments []model.AssessorAssignment) error {
	data, err := json.Marshal(assignments)
	if err != nil {
		return fmt.Errorf("marshal assignments of %s: %w", matchID, err)
	}
	return g.client.Set(ctx, assignmentsKey(matchID), data, matchTTL).Err()
}

func (g *RedisGateway) ListAssessorAssignments(ctx context.Context, matchID string) ([]model.AssessorAssignment, error) {
	data, err := g.client.Get(ctx, assignmentsKey(matchID)).Result()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("list assignments of %s: %w", matchID, err)
	}
	var out []model.AssessorAssignment
	if err := json.Unmarshal([]byte(data), &out); err != nil {
		return nil, fmt.Errorf("unmarshal assignments of %s: %w", matchID, err)
	}
	return out, nil
}
