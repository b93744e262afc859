// Package redisstore is the Redis-backed Store Client. Sessions, captured
// requests and the per-session order index live under the keys in keys.go;
// every multi-field write is sent as one MULTI/EXEC transaction.
package redisstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/BRAVO68WEB/echohook/internal/domain"
	"github.com/BRAVO68WEB/echohook/internal/live"
	"github.com/BRAVO68WEB/echohook/internal/usecase"
)

// APIURLTTL bounds how long an advertised API URL survives without refresh.
const APIURLTTL = 15 * time.Minute

type Options struct {
	URL       string
	PoolSize  int
	Publisher usecase.Publisher
	Logger    *zerolog.Logger
}

// Client is safe for concurrent use; the underlying go-redis client pools
// connections and is shared by every handler.
type Client struct {
	rdb       *redis.Client
	publisher usecase.Publisher
	logger    zerolog.Logger
	now       func() time.Time
}

var _ usecase.Store = (*Client)(nil)

// New parses opts.URL and builds a pooled client. It does not dial; use
// HealthCheck to verify connectivity.
func New(opts Options) (*Client, error) {
	ro, err := redis.ParseURL(opts.URL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	if opts.PoolSize > 0 {
		ro.PoolSize = opts.PoolSize
	}
	return NewFromClient(redis.NewClient(ro), opts.Publisher, opts.Logger), nil
}

// NewFromClient wraps an existing go-redis client.
func NewFromClient(rdb *redis.Client, publisher usecase.Publisher, logger *zerolog.Logger) *Client {
	l := zerolog.Nop()
	if logger != nil {
		l = logger.With().Str("component", "redis").Logger()
	}
	return &Client{rdb: rdb, publisher: publisher, logger: l, now: time.Now}
}

func (c *Client) Close() error { return c.rdb.Close() }

func ttl(seconds int) time.Duration { return time.Duration(seconds) * time.Second }

func storeErr(op string, err error) error {
	if err == nil {
		return nil
	}
	return &domain.StoreError{Op: op, Err: err}
}

// HealthCheck pings the server. A reply other than PONG is reported as
// unhealthy without an error.
func (c *Client) HealthCheck(ctx context.Context) (bool, error) {
	res, err := c.rdb.Ping(ctx).Result()
	if err != nil {
		return false, storeErr("ping", err)
	}
	return res == "PONG", nil
}

func (c *Client) CreateSession(ctx context.Context, id string, ttlSeconds int) (domain.Session, error) {
	now := c.now().UTC()
	s := domain.Session{
		ID:        id,
		CreatedAt: domain.FormatTimestamp(now),
		ExpiresAt: domain.FormatTimestamp(now.Add(ttl(ttlSeconds))),
	}
	key := SessionKey(id)
	_, err := c.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, key,
			fieldSessionID, s.ID,
			fieldCreatedAt, s.CreatedAt,
			fieldExpiresAt, s.ExpiresAt,
		)
		pipe.Expire(ctx, key, ttl(ttlSeconds))
		return nil
	})
	if err != nil {
		return domain.Session{}, storeErr("create session", err)
	}
	c.logger.Debug().Str("session_id", id).Msg("created session")
	return s, nil
}

func (c *Client) GetSession(ctx context.Context, id string) (domain.Session, bool, error) {
	data, err := c.rdb.HGetAll(ctx, SessionKey(id)).Result()
	if err != nil {
		return domain.Session{}, false, storeErr("get session", err)
	}
	if len(data) == 0 {
		return domain.Session{}, false, nil
	}
	return domain.Session{
		ID:        data[fieldSessionID],
		CreatedAt: data[fieldCreatedAt],
		ExpiresAt: data[fieldExpiresAt],
	}, true, nil
}

// SessionExists probes the session key. It does not touch its TTL.
func (c *Client) SessionExists(ctx context.Context, id string) (bool, error) {
	n, err := c.rdb.Exists(ctx, SessionKey(id)).Result()
	if err != nil {
		return false, storeErr("session exists", err)
	}
	return n > 0, nil
}

// SaveRequest writes the request hash and its index entry in one
// transaction, then publishes to live subscribers. Nobody listening is not
// an error.
func (c *Client) SaveRequest(ctx context.Context, sessionID string, req domain.CapturedRequest, ttlSeconds int) error {
	query, err := json.Marshal(req.QueryParams)
	if err != nil {
		return &domain.SerializationError{Field: fieldQueryParams, Err: err}
	}
	headers, err := json.Marshal(req.Headers)
	if err != nil {
		return &domain.SerializationError{Field: fieldHeaders, Err: err}
	}
	requestKey := RequestKey(sessionID, req.ID)
	indexKey := IndexKey(sessionID)
	score := req.ScoreMillis(c.now())

	_, err = c.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, requestKey, map[string]any{
			fieldRequestID:     req.ID,
			fieldMethod:        req.Method,
			fieldPath:          req.Path,
			fieldQueryParams:   string(query),
			fieldHeaders:       string(headers),
			fieldBody:          req.Body,
			fieldIPAddress:     req.IPAddress,
			fieldUserAgent:     req.UserAgent,
			fieldTimestamp:     req.Timestamp,
			fieldContentLength: req.ContentLength,
		})
		pipe.Expire(ctx, requestKey, ttl(ttlSeconds))
		pipe.ZAdd(ctx, indexKey, redis.Z{Score: float64(score), Member: req.ID})
		pipe.Expire(ctx, indexKey, ttl(ttlSeconds))
		return nil
	})
	if err != nil {
		return storeErr("save request", err)
	}
	c.publish(sessionID, req)
	c.logger.Debug().Str("session_id", sessionID).Str("request_id", req.ID).Msg("saved request")
	return nil
}

func (c *Client) publish(sessionID string, req domain.CapturedRequest) {
	if c.publisher == nil {
		return
	}
	n, err := c.publisher.Publish(sessionID, req)
	switch {
	case errors.Is(err, live.ErrNoChannel):
		c.logger.Debug().Str("session_id", sessionID).Str("request_id", req.ID).Msg("no live channel for session, skipping broadcast")
	case err != nil:
		c.logger.Debug().Err(err).Str("session_id", sessionID).Str("request_id", req.ID).Msg("broadcast not delivered")
	default:
		c.logger.Debug().Str("session_id", sessionID).Str("request_id", req.ID).Int("receiver_count", n).Msg("broadcast request")
	}
}

// GetRequests returns up to limit requests starting at offset, newest first.
// Index entries whose hash already expired are skipped.
func (c *Client) GetRequests(ctx context.Context, sessionID string, limit, offset int) ([]domain.CapturedRequest, error) {
	if limit <= 0 {
		return []domain.CapturedRequest{}, nil
	}
	if offset < 0 {
		offset = 0
	}
	ids, err := c.rdb.ZRevRange(ctx, IndexKey(sessionID), int64(offset), int64(offset+limit-1)).Result()
	if err != nil {
		return nil, storeErr("get request ids", err)
	}
	out := make([]domain.CapturedRequest, 0, len(ids))
	if len(ids) == 0 {
		return out, nil
	}

	cmds := make([]*redis.MapStringStringCmd, len(ids))
	_, err = c.rdb.Pipelined(ctx, func(pipe redis.Pipeliner) error {
		for i, id := range ids {
			cmds[i] = pipe.HGetAll(ctx, RequestKey(sessionID, id))
		}
		return nil
	})
	if err != nil {
		return nil, storeErr("get requests", err)
	}
	for _, cmd := range cmds {
		data := cmd.Val()
		if len(data) == 0 {
			continue
		}
		req, err := decodeRequest(data)
		if err != nil {
			return nil, err
		}
		out = append(out, req)
	}
	return out, nil
}

func decodeRequest(data map[string]string) (domain.CapturedRequest, error) {
	req := domain.CapturedRequest{
		ID:          data[fieldRequestID],
		Method:      data[fieldMethod],
		Path:        data[fieldPath],
		QueryParams: map[string]string{},
		Headers:     map[string]string{},
		Body:        data[fieldBody],
		IPAddress:   data[fieldIPAddress],
		UserAgent:   data[fieldUserAgent],
		Timestamp:   data[fieldTimestamp],
	}
	if raw := data[fieldQueryParams]; raw != "" {
		if err := json.Unmarshal([]byte(raw), &req.QueryParams); err != nil {
			return domain.CapturedRequest{}, &domain.SerializationError{Field: fieldQueryParams, Err: err}
		}
	}
	if raw := data[fieldHeaders]; raw != "" {
		if err := json.Unmarshal([]byte(raw), &req.Headers); err != nil {
			return domain.CapturedRequest{}, &domain.SerializationError{Field: fieldHeaders, Err: err}
		}
	}
	if n, err := strconv.Atoi(data[fieldContentLength]); err == nil {
		req.ContentLength = n
	}
	return req, nil
}

// GetRequestCount returns the cardinality of the session's order index.
func (c *Client) GetRequestCount(ctx context.Context, sessionID string) (int, error) {
	n, err := c.rdb.ZCard(ctx, IndexKey(sessionID)).Result()
	if err != nil {
		return 0, storeErr("get request count", err)
	}
	return int(n), nil
}

// SetAPIURL advertises the public API base URL for frontends.
func (c *Client) SetAPIURL(ctx context.Context, url string) error {
	return storeErr("set api url", c.rdb.Set(ctx, APIURLKey, url, APIURLTTL).Err())
}
