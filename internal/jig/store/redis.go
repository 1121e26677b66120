package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/porast/jigman/internal/jig/entity"
)

const (
	jigsKey       = "jigman:jigs"
	usersKey      = "jigman:users"
	changeChannel = "jigman:jigs:changed"
)

// RedisStore keeps each JIG as a JSON document in a hash field and pushes
// change notifications over pub/sub. Subscribers re-read the collection on
// every notification, so a snapshot always reflects a committed state.
type RedisStore struct {
	rdb    *redis.Client
	logger *zap.Logger
}

// NewRedisStore creates a redis-backed document store.
func NewRedisStore(rdb *redis.Client, logger *zap.Logger) *RedisStore {
	return &RedisStore{rdb: rdb, logger: logger}
}

func (s *RedisStore) List(ctx context.Context) ([]entity.Jig, error) {
	raw, err := s.rdb.HGetAll(ctx, jigsKey).Result()
	if err != nil {
		return nil, fmt.Errorf("list jigs: %w", err)
	}

	jigs := make([]entity.Jig, 0, len(raw))
	for id, doc := range raw {
		var jig entity.Jig
		if err := json.Unmarshal([]byte(doc), &jig); err != nil {
			s.logger.Warn("Skipping undecodable jig document",
				zap.String("store_id", id), zap.Error(err))
			continue
		}
		jig.StoreID = id
		jigs = append(jigs, jig)
	}

	SortByReceiptDate(jigs)
	return jigs, nil
}

func (s *RedisStore) Subscribe(ctx context.Context) (*Subscription, error) {
	pubsub := s.rdb.Subscribe(ctx, changeChannel)
	// Force the subscription onto the wire before the initial snapshot so
	// no committed change can fall between the two.
	if _, err := pubsub.Receive(ctx); err != nil {
		pubsub.Close()
		return nil, fmt.Errorf("subscribe to change feed: %w", err)
	}

	ctx, cancel := context.WithCancel(ctx)
	out := make(chan []entity.Jig, 1)

	go func() {
		defer close(out)
		defer pubsub.Close()

		s.deliver(ctx, out)
		msgs := pubsub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case _, ok := <-msgs:
				if !ok {
					return
				}
				s.deliver(ctx, out)
			}
		}
	}()

	return &Subscription{C: out, cancel: cancel}, nil
}

// deliver pushes a fresh snapshot, replacing any undrained one. Snapshots
// supersede each other, so dropping a stale one is correct.
func (s *RedisStore) deliver(ctx context.Context, out chan []entity.Jig) {
	jigs, err := s.List(ctx)
	if err != nil {
		if ctx.Err() == nil {
			s.logger.Error("Failed to load snapshot for subscriber", zap.Error(err))
		}
		return
	}
	select {
	case out <- jigs:
	default:
		select {
		case <-out:
		default:
		}
		out <- jigs
	}
}

func (s *RedisStore) Create(ctx context.Context, jig entity.Jig) (string, error) {
	id := uuid.New().String()
	jig.StoreID = ""
	doc, err := json.Marshal(jig)
	if err != nil {
		return "", fmt.Errorf("encode jig: %w", err)
	}
	if err := s.rdb.HSet(ctx, jigsKey, id, doc).Err(); err != nil {
		return "", fmt.Errorf("create jig: %w", err)
	}
	s.notify(ctx)
	return id, nil
}

func (s *RedisStore) Update(ctx context.Context, id string, jig entity.Jig) error {
	exists, err := s.rdb.HExists(ctx, jigsKey, id).Result()
	if err != nil {
		return fmt.Errorf("check jig %s: %w", id, err)
	}
	if !exists {
		return fmt.Errorf("update jig %s: %w", id, ErrNotFound)
	}
	jig.StoreID = ""
	doc, err := json.Marshal(jig)
	if err != nil {
		return fmt.Errorf("encode jig: %w", err)
	}
	if err := s.rdb.HSet(ctx, jigsKey, id, doc).Err(); err != nil {
		return fmt.Errorf("update jig %s: %w", id, err)
	}
	s.notify(ctx)
	return nil
}

func (s *RedisStore) Delete(ctx context.Context, id string) error {
	removed, err := s.rdb.HDel(ctx, jigsKey, id).Result()
	if err != nil {
		return fmt.Errorf("delete jig %s: %w", id, err)
	}
	if removed > 0 {
		s.notify(ctx)
	}
	return nil
}

func (s *RedisStore) notify(ctx context.Context) {
	if err := s.rdb.Publish(ctx, changeChannel, "changed").Err(); err != nil {
		s.logger.Warn("Failed to publish change notification", zap.Error(err))
	}
}

func (s *RedisStore) GetUser(ctx context.Context, username string) (*entity.User, error) {
	doc, err := s.rdb.HGet(ctx, usersKey, username).Result()
	if err == redis.Nil {
		return nil, fmt.Errorf("user %s: %w", username, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get user %s: %w", username, err)
	}
	var user storedUser
	if err := json.Unmarshal([]byte(doc), &user); err != nil {
		return nil, fmt.Errorf("decode user %s: %w", username, err)
	}
	return user.toEntity(), nil
}

func (s *RedisStore) PutUser(ctx context.Context, user entity.User) error {
	doc, err := json.Marshal(fromEntity(user))
	if err != nil {
		return fmt.Errorf("encode user: %w", err)
	}
	if err := s.rdb.HSet(ctx, usersKey, user.Username, doc).Err(); err != nil {
		return fmt.Errorf("put user %s: %w", user.Username, err)
	}
	return nil
}

func (s *RedisStore) CountUsers(ctx context.Context) (int64, error) {
	n, err := s.rdb.HLen(ctx, usersKey).Result()
	if err != nil {
		return 0, fmt.Errorf("count users: %w", err)
	}
	return n, nil
}

// storedUser is the persisted user shape. entity.User hides the password
// hash from JSON, so persistence needs its own encoding.
type storedUser struct {
	Username     string      `json:"username"`
	DisplayName  string      `json:"displayName"`
	Role         entity.Role `json:"role"`
	PasswordHash string      `json:"passwordHash"`
	CreatedAt    time.Time   `json:"createdAt"`
}

func fromEntity(u entity.User) storedUser {
	return storedUser{
		Username:     u.Username,
		DisplayName:  u.DisplayName,
		Role:         u.Role,
		PasswordHash: u.PasswordHash,
		CreatedAt:    u.CreatedAt,
	}
}

func (u storedUser) toEntity() *entity.User {
	return &entity.User{
		Username:     u.Username,
		DisplayName:  u.DisplayName,
		Role:         u.Role,
		PasswordHash: u.PasswordHash,
		CreatedAt:    u.CreatedAt,
	}
}
