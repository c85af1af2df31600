package core

import (
	"container/list"
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// StreamService is the collaborator interface for working-stream storage
// (§6): append-only, ordered, TTL-bearing logs with consumer-group
// delivery. Implementations must provide per-stream monotone ids and
// at-most-once delivery per consumer within a group.
type StreamService interface {
	Append(ctx context.Context, stream StreamName, entry StreamEntry) (int64, error)
	ReadGroup(ctx context.Context, streams []StreamName, group, consumer string, n int64, block time.Duration) ([]StreamEntry, error)
	// Peek returns up to n entries from stream without marking them
	// delivered to any consumer group, for callers (Autoflow's window sync)
	// that need to observe live occupancy without disturbing Selection's
	// own ReadGroup delivery bookkeeping.
	Peek(ctx context.Context, stream StreamName, n int64) ([]StreamEntry, error)
	Ack(ctx context.Context, stream StreamName, group string, id int64) error
	Delete(ctx context.Context, stream StreamName, id int64) error
	Trim(ctx context.Context, stream StreamName, maxLen int64) error
	Length(ctx context.Context, stream StreamName) (int64, error)
	StreamExists(ctx context.Context, stream StreamName) (bool, error)
	CreateConsumerGroup(ctx context.Context, stream StreamName, group string) error
}

// TTLExpirer is implemented by stream services that can report and remove
// entries past their working-memory TTL (§4.2/§3, I5), for a periodic sweep
// to archive before deleting.
type TTLExpirer interface {
	ExpireTTL(ctx context.Context, stream StreamName) ([]StreamEntry, error)
}

// defaultWorkingTTL is the fallback TTL used when a stream service is
// constructed without an explicit one (e.g. directly in unit tests).
const defaultWorkingTTL = 5 * time.Second

// --- In-memory implementation (tests, the "assembled" sink, and dev mode) ---

type inMemoryEntry struct {
	entry    StreamEntry
	acked    bool
	expireAt time.Time
}

type inMemoryStream struct {
	mu      sync.Mutex
	nextID  int64
	entries *list.List // of *inMemoryEntry, append order
	groups  map[string]bool
}

// InMemoryStreamService is a same-process StreamService used by tests and
// by cmd/daneelcore when REDIS_ADDR is unset (mirrors the teacher's MockMemory).
type InMemoryStreamService struct {
	mu      sync.Mutex
	streams map[StreamName]*inMemoryStream
	clock   Clock
	ttl     time.Duration
}

// NewInMemoryStreamService creates an empty in-memory stream service with
// the default working-memory TTL; call SetTTL to honor a loaded Config's
// Streams.WorkingTTLMs (scaled for the active speed multiplier) instead.
func NewInMemoryStreamService(clock Clock) *InMemoryStreamService {
	if clock == nil {
		clock = RealClock
	}
	return &InMemoryStreamService{
		streams: make(map[StreamName]*inMemoryStream),
		clock:   clock,
		ttl:     defaultWorkingTTL,
	}
}

// SetTTL overrides the TTL newly appended entries expire after. Existing
// entries keep whatever expiry was computed at append time.
func (s *InMemoryStreamService) SetTTL(ttl time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if ttl > 0 {
		s.ttl = ttl
	}
}

func (s *InMemoryStreamService) stream(name StreamName) *inMemoryStream {
	s.mu.Lock()
	defer s.mu.Unlock()
	st, ok := s.streams[name]
	if !ok {
		st = &inMemoryStream{entries: list.New(), groups: make(map[string]bool)}
		s.streams[name] = st
	}
	return st
}

func (s *InMemoryStreamService) Append(ctx context.Context, name StreamName, entry StreamEntry) (int64, error) {
	st := s.stream(name)
	st.mu.Lock()
	defer st.mu.Unlock()

	st.nextID++
	entry.ID = st.nextID
	entry.Stream = name
	s.mu.Lock()
	ttl := s.ttl
	s.mu.Unlock()
	st.entries.PushBack(&inMemoryEntry{entry: entry, expireAt: s.clock.Now().Add(ttl)})

	return entry.ID, nil
}

// Peek returns up to n unacked entries from the stream's current live set,
// without touching any consumer-group delivery state.
func (s *InMemoryStreamService) Peek(ctx context.Context, name StreamName, n int64) ([]StreamEntry, error) {
	st := s.stream(name)
	st.mu.Lock()
	defer st.mu.Unlock()

	var out []StreamEntry
	for e := st.entries.Front(); e != nil && int64(len(out)) < n; e = e.Next() {
		ie := e.Value.(*inMemoryEntry)
		if ie.acked {
			continue
		}
		out = append(out, ie.entry)
	}
	return out, nil
}

func (s *InMemoryStreamService) ReadGroup(ctx context.Context, names []StreamName, group, consumer string, n int64, block time.Duration) ([]StreamEntry, error) {
	var out []StreamEntry
	for _, name := range names {
		st := s.stream(name)
		st.mu.Lock()
		st.groups[group] = true
		for e := st.entries.Front(); e != nil && int64(len(out)) < n; e = e.Next() {
			ie := e.Value.(*inMemoryEntry)
			if ie.acked {
				continue
			}
			out = append(out, ie.entry)
		}
		st.mu.Unlock()
	}
	return out, nil
}

func (s *InMemoryStreamService) Ack(ctx context.Context, name StreamName, group string, id int64) error {
	st := s.stream(name)
	st.mu.Lock()
	defer st.mu.Unlock()
	for e := st.entries.Front(); e != nil; e = e.Next() {
		ie := e.Value.(*inMemoryEntry)
		if ie.entry.ID == id {
			ie.acked = true
			return nil
		}
	}
	return fmt.Errorf("%w: entry %d in stream %s", ErrNotFound, id, name)
}

func (s *InMemoryStreamService) Delete(ctx context.Context, name StreamName, id int64) error {
	st := s.stream(name)
	st.mu.Lock()
	defer st.mu.Unlock()
	for e := st.entries.Front(); e != nil; e = e.Next() {
		if e.Value.(*inMemoryEntry).entry.ID == id {
			st.entries.Remove(e)
			return nil
		}
	}
	return fmt.Errorf("%w: entry %d in stream %s", ErrNotFound, id, name)
}

func (s *InMemoryStreamService) Trim(ctx context.Context, name StreamName, maxLen int64) error {
	st := s.stream(name)
	st.mu.Lock()
	defer st.mu.Unlock()
	for int64(st.entries.Len()) > maxLen {
		st.entries.Remove(st.entries.Front())
	}
	return nil
}

func (s *InMemoryStreamService) Length(ctx context.Context, name StreamName) (int64, error) {
	st := s.stream(name)
	st.mu.Lock()
	defer st.mu.Unlock()
	var n int64
	for e := st.entries.Front(); e != nil; e = e.Next() {
		if !e.Value.(*inMemoryEntry).acked {
			n++
		}
	}
	return n, nil
}

func (s *InMemoryStreamService) StreamExists(ctx context.Context, name StreamName) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.streams[name]
	return ok, nil
}

func (s *InMemoryStreamService) CreateConsumerGroup(ctx context.Context, name StreamName, group string) error {
	st := s.stream(name)
	st.mu.Lock()
	defer st.mu.Unlock()
	st.groups[group] = true
	return nil
}

// ExpireTTL removes entries past their TTL, returning the expired entries
// so the caller can archive them first (I5 - payload must land in
// unconscious memory before the entry is dropped).
func (s *InMemoryStreamService) ExpireTTL(ctx context.Context, name StreamName) ([]StreamEntry, error) {
	st := s.stream(name)
	st.mu.Lock()
	defer st.mu.Unlock()

	now := s.clock.Now()
	var expired []StreamEntry
	var next *list.Element
	for e := st.entries.Front(); e != nil; e = next {
		next = e.Next()
		ie := e.Value.(*inMemoryEntry)
		if !ie.acked && now.After(ie.expireAt) {
			expired = append(expired, ie.entry)
			st.entries.Remove(e)
		}
	}
	return expired, nil
}

var _ StreamService = (*InMemoryStreamService)(nil)
var _ TTLExpirer = (*InMemoryStreamService)(nil)

// --- Redis Streams implementation ---

// RedisStreamService maps the StreamService contract onto Redis Streams
// (XADD/XREADGROUP/XACK/XDEL/XTRIM/XLEN), the durable production backend.
type RedisStreamService struct {
	rdb *redis.Client
	ttl time.Duration
}

// NewRedisStreamService wraps a redis.Client with the default working-memory
// TTL; call SetTTL to honor a loaded Config's Streams.WorkingTTLMs instead.
func NewRedisStreamService(rdb *redis.Client) *RedisStreamService {
	return &RedisStreamService{rdb: rdb, ttl: defaultWorkingTTL}
}

// SetTTL overrides the TTL ExpireTTL uses to judge an entry stale. Redis
// Streams has no native per-entry TTL, so expiry here is computed in
// application code from each entry's recorded timestamp field rather than
// relying on a Redis-side expiration mechanism.
func (s *RedisStreamService) SetTTL(ttl time.Duration) {
	if ttl > 0 {
		s.ttl = ttl
	}
}

func streamKey(name StreamName) string {
	return "core:stream:" + string(name)
}

func (s *RedisStreamService) Append(ctx context.Context, name StreamName, entry StreamEntry) (int64, error) {
	payload, err := encodeStreamEntry(entry)
	if err != nil {
		return 0, &StreamError{Op: "append", Stream: string(name), Err: err}
	}

	id, err := s.rdb.XAdd(ctx, &redis.XAddArgs{
		Stream: streamKey(name),
		Values: payload,
	}).Result()
	if err != nil {
		return 0, &StreamError{Op: "append", Stream: string(name), Err: err}
	}
	return redisIDToInt64(id), nil
}

func (s *RedisStreamService) ReadGroup(ctx context.Context, names []StreamName, group, consumer string, n int64, block time.Duration) ([]StreamEntry, error) {
	streamArgs := make([]string, 0, len(names)*2)
	for _, name := range names {
		streamArgs = append(streamArgs, streamKey(name))
	}
	for range names {
		streamArgs = append(streamArgs, ">")
	}

	res, err := s.rdb.XReadGroup(ctx, &redis.XReadGroupArgs{
		Group:    group,
		Consumer: consumer,
		Streams:  streamArgs,
		Count:    n,
		Block:    block,
	}).Result()
	if err != nil && err != redis.Nil {
		return nil, &StreamError{Op: "read_group", Stream: strings.Join(streamArgs, ","), Err: err}
	}

	var out []StreamEntry
	for _, streamRes := range res {
		name := streamNameFromKey(streamRes.Stream)
		for _, msg := range streamRes.Messages {
			entry, err := decodeStreamEntry(msg, name)
			if err != nil {
				continue
			}
			out = append(out, entry)
		}
	}
	return out, nil
}

// Peek reads up to n entries from the raw stream via XRANGE, which (unlike
// XREADGROUP) never marks entries delivered to a consumer group, so it can
// be called safely alongside Selection's own ReadGroup against the same
// group/consumer without disturbing its delivery state.
func (s *RedisStreamService) Peek(ctx context.Context, name StreamName, n int64) ([]StreamEntry, error) {
	msgs, err := s.rdb.XRangeN(ctx, streamKey(name), "-", "+", n).Result()
	if err != nil && err != redis.Nil {
		return nil, &StreamError{Op: "peek", Stream: string(name), Err: err}
	}

	out := make([]StreamEntry, 0, len(msgs))
	for _, msg := range msgs {
		entry, err := decodeStreamEntry(msg, name)
		if err != nil {
			continue
		}
		out = append(out, entry)
	}
	return out, nil
}

// ExpireTTL scans the stream for entries older than the configured TTL
// (computed from each entry's recorded timestamp, since Redis Streams has
// no native per-entry expiration) and deletes them, returning the expired
// entries so the caller can archive them first.
func (s *RedisStreamService) ExpireTTL(ctx context.Context, name StreamName) ([]StreamEntry, error) {
	msgs, err := s.rdb.XRangeN(ctx, streamKey(name), "-", "+", 1000).Result()
	if err != nil && err != redis.Nil {
		return nil, &StreamError{Op: "expire_ttl", Stream: string(name), Err: err}
	}

	now := time.Now()
	var expired []StreamEntry
	for _, msg := range msgs {
		entry, err := decodeStreamEntry(msg, name)
		if err != nil {
			continue
		}
		if now.Sub(entry.Timestamp) <= s.ttl {
			continue
		}
		if err := s.rdb.XDel(ctx, streamKey(name), msg.ID).Err(); err != nil {
			return expired, &StreamError{Op: "expire_ttl", Stream: string(name), Err: err}
		}
		expired = append(expired, entry)
	}
	return expired, nil
}

func (s *RedisStreamService) Ack(ctx context.Context, name StreamName, group string, id int64) error {
	if err := s.rdb.XAck(ctx, streamKey(name), group, int64ToRedisID(id)).Err(); err != nil {
		return &StreamError{Op: "ack", Stream: string(name), Err: err}
	}
	return nil
}

func (s *RedisStreamService) Delete(ctx context.Context, name StreamName, id int64) error {
	if err := s.rdb.XDel(ctx, streamKey(name), int64ToRedisID(id)).Err(); err != nil {
		return &StreamError{Op: "delete", Stream: string(name), Err: err}
	}
	return nil
}

func (s *RedisStreamService) Trim(ctx context.Context, name StreamName, maxLen int64) error {
	if err := s.rdb.XTrimMaxLen(ctx, streamKey(name), maxLen).Err(); err != nil {
		return &StreamError{Op: "trim", Stream: string(name), Err: err}
	}
	return nil
}

func (s *RedisStreamService) Length(ctx context.Context, name StreamName) (int64, error) {
	n, err := s.rdb.XLen(ctx, streamKey(name)).Result()
	if err != nil {
		return 0, &StreamError{Op: "length", Stream: string(name), Err: err}
	}
	return n, nil
}

func (s *RedisStreamService) StreamExists(ctx context.Context, name StreamName) (bool, error) {
	n, err := s.rdb.Exists(ctx, streamKey(name)).Result()
	if err != nil {
		return false, &StreamError{Op: "stream_exists", Stream: string(name), Err: err}
	}
	return n > 0, nil
}

func (s *RedisStreamService) CreateConsumerGroup(ctx context.Context, name StreamName, group string) error {
	err := s.rdb.XGroupCreateMkStream(ctx, streamKey(name), group, "0").Err()
	if err != nil && !strings.Contains(err.Error(), "BUSYGROUP") {
		return &StreamError{Op: "create_consumer_group", Stream: string(name), Err: err}
	}
	return nil
}

var _ StreamService = (*RedisStreamService)(nil)
var _ TTLExpirer = (*RedisStreamService)(nil)

func encodeStreamEntry(e StreamEntry) (map[string]any, error) {
	content, err := EncodeContent(e.Content)
	if err != nil {
		return nil, err
	}
	return map[string]any{
		"content":              string(content),
		"importance":           e.Salience.Importance,
		"novelty":              e.Salience.Novelty,
		"relevance":            e.Salience.Relevance,
		"valence":              e.Salience.Valence,
		"arousal":              e.Salience.Arousal,
		"connection_relevance": e.Salience.ConnectionRelevance,
		"timestamp":            e.Timestamp.UnixNano(),
		"source":               e.Source,
		"assembled":            e.Assembled,
	}, nil
}

func decodeStreamEntry(msg redis.XMessage, name StreamName) (StreamEntry, error) {
	content, err := DecodeContent([]byte(fmt.Sprint(msg.Values["content"])))
	if err != nil {
		return StreamEntry{}, err
	}
	f := func(k string) float64 {
		v, _ := strconv.ParseFloat(fmt.Sprint(msg.Values[k]), 64)
		return v
	}
	ts, _ := strconv.ParseInt(fmt.Sprint(msg.Values["timestamp"]), 10, 64)

	return StreamEntry{
		ID:     redisIDToInt64(msg.ID),
		Stream: name,
		Content: content,
		Salience: SalienceScore{
			Importance:          f("importance"),
			Novelty:             f("novelty"),
			Relevance:           f("relevance"),
			Valence:             f("valence"),
			Arousal:             f("arousal"),
			ConnectionRelevance: f("connection_relevance"),
		},
		Timestamp: time.Unix(0, ts),
		Source:    fmt.Sprint(msg.Values["source"]),
		Assembled: fmt.Sprint(msg.Values["assembled"]) == "true",
	}, nil
}

func streamNameFromKey(key string) StreamName {
	return StreamName(strings.TrimPrefix(key, "core:stream:"))
}

// redisIDToInt64 packs a Redis stream ID ("<ms>-<seq>") into one monotone
// int64, ms*1000+seq, suitable for the core's id contract.
func redisIDToInt64(id string) int64 {
	parts := strings.SplitN(id, "-", 2)
	ms, _ := strconv.ParseInt(parts[0], 10, 64)
	var seq int64
	if len(parts) > 1 {
		seq, _ = strconv.ParseInt(parts[1], 10, 64)
	}
	return ms*1000 + seq
}

func int64ToRedisID(id int64) string {
	return strconv.FormatInt(id/1000, 10) + "-" + strconv.FormatInt(id%1000, 10)
}
