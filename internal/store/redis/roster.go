package redis

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/MrSnakeDoc/presence/internal/domain"
	filestore "github.com/MrSnakeDoc/presence/internal/store/file"
)

// Store mirrors roster generations into Redis for readers that should not
// touch the roster file. The file stays the source of truth.
type Store struct {
	client *redis.Client
}

// NewStore creates a new Redis store
func NewStore(client *redis.Client) *Store {
	return &Store{
		client: client,
	}
}

// SaveRoster replaces the mirrored generation in one MULTI/EXEC block, so
// readers never see the online set of one generation with the marker of another.
func (s *Store) SaveRoster(ctx context.Context, roster *domain.Roster, snap *domain.Snapshot) error {
	fields := make(map[string]interface{}, roster.Len())
	var online []interface{}
	for _, rec := range roster.Records() {
		data, err := filestore.MarshalRecord(rec)
		if err != nil {
			return fmt.Errorf("failed to marshal record %s: %w", rec.ID, err)
		}
		fields[rec.ID] = data
		if rec.IsOnline {
			online = append(online, rec.ID)
		}
	}

	previous, err := s.client.SMembers(ctx, KeyServices).Result()
	if err != nil {
		return fmt.Errorf("failed to list mirrored services: %w", err)
	}

	_, err = s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		if len(fields) > 0 {
			pipe.HSet(ctx, KeyRoster, fields)
		}
		pipe.Del(ctx, KeyOnline)
		if len(online) > 0 {
			pipe.SAdd(ctx, KeyOnline, online...)
		}
		for _, name := range previous {
			pipe.Del(ctx, ServiceKey(name))
		}
		pipe.Del(ctx, KeyServices)
		for _, svc := range snap.ServiceList() {
			pipe.SAdd(ctx, KeyServices, svc.Name)
			if len(svc.OnlineEntities) == 0 {
				continue
			}
			members := make([]interface{}, 0, len(svc.OnlineEntities))
			for _, id := range svc.OnlineEntities {
				members = append(members, id)
			}
			pipe.SAdd(ctx, ServiceKey(svc.Name), members...)
		}
		pipe.Set(ctx, KeyAsOf, snap.AsOf, 0)
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to save roster: %w", err)
	}
	return nil
}

// AsOf returns the marker of the mirrored generation, empty if none
func (s *Store) AsOf(ctx context.Context) (string, error) {
	v, err := s.client.Get(ctx, KeyAsOf).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", nil
		}
		return "", fmt.Errorf("failed to get as-of marker: %w", err)
	}
	return v, nil
}

// Ping checks the connection
func (s *Store) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}
