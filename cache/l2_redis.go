package cache

import (
	"bytes"
	"encoding/gob"
	"time"

	"github.com/gomodule/redigo/redis"
)

// l2 is the optional distributed tier backed by Redis: a redigo connection
// pool, key-prefixing to avoid collisions, and best-effort semantics —
// network errors degrade to a miss rather than propagating.
type l2 struct {
	pool *redis.Pool
	ttl  time.Duration
}

func newL2(addr string, ttl time.Duration) *l2 {
	pool := &redis.Pool{
		MaxIdle:     8,
		IdleTimeout: 240 * time.Second,
		Dial: func() (redis.Conn, error) {
			return redis.Dial("tcp", addr)
		},
	}
	return &l2{pool: pool, ttl: ttl}
}

func l2Key(key string) string {
	return "brisa:cache:" + key
}

func (c *l2) Get(key string) (Entry, bool) {
	conn := c.pool.Get()
	defer conn.Close()

	data, err := redis.Bytes(conn.Do("GET", l2Key(key)))
	if err != nil {
		return Entry{}, false
	}

	var e Entry
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(&e); err != nil {
		return Entry{}, false
	}
	if e.Expired(time.Now()) {
		return Entry{}, false
	}
	return e, true
}

func (c *l2) Set(key string, e Entry) {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(e); err != nil {
		return
	}

	conn := c.pool.Get()
	defer conn.Close()

	ttl := e.RemainingTTL(time.Now())
	if ttl <= 0 {
		ttl = c.ttl
	}
	// Best-effort: a failed SETEX just means this entry won't be
	// distributed; it does not fail the request.
	_, _ = conn.Do("SETEX", l2Key(key), int(ttl.Seconds())+1, buf.Bytes())
}

func (c *l2) Delete(key string) {
	conn := c.pool.Get()
	defer conn.Close()
	_, _ = conn.Do("DEL", l2Key(key))
}

func (c *l2) Close() error {
	return c.pool.Close()
}
