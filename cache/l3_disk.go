package cache

import (
	"bytes"
	"encoding/binary"
	"encoding/gob"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/peterbourgon/diskv/v3"
)

// l3 is the optional on-disk tier: a diskv.Diskv-backed store. Each entry
// is one file, named by its hex-encoded key, holding a length-prefixed gob
// header block followed by the raw body bytes. maxSize is passed to diskv
// as the limit of its in-memory read cache; the total size of the files on
// disk is not bounded.
type l3 struct {
	d    *diskv.Diskv
	ttl  time.Duration
	lock *os.File
}

// header is the metadata block persisted ahead of the body bytes.
type header struct {
	Status   int
	Fields   map[string][]string
	StoredAt time.Time
	TTL      time.Duration
}

// newL3 opens (or creates) the on-disk cache directory. It takes an
// advisory, instance-private lock file so a second instance pointed at the
// same directory fails fast instead of silently interleaving writes with
// the first.
func newL3(dir string, maxSize int64, ttl time.Duration) (*l3, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("cache: creating L3 directory: %w", err)
	}

	lockPath := filepath.Join(dir, ".lock")
	lock, err := os.OpenFile(lockPath, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("cache: L3 directory %q is already locked by another instance (remove %q if that is not the case): %w", dir, lockPath, err)
	}

	d := diskv.New(diskv.Options{
		BasePath:     dir,
		CacheSizeMax: uint64(maxSize),
	})

	return &l3{d: d, ttl: ttl, lock: lock}, nil
}

func (c *l3) Close() error {
	if c.lock != nil {
		path := c.lock.Name()
		c.lock.Close()
		os.Remove(path)
	}
	return nil
}

func (c *l3) Get(key string) (Entry, bool) {
	r, err := c.d.ReadStream(key, true)
	if err != nil {
		return Entry{}, false
	}
	defer r.Close()

	var headerLen uint32
	if err := binary.Read(r, binary.BigEndian, &headerLen); err != nil {
		return Entry{}, false
	}

	headerBytes := make([]byte, headerLen)
	if _, err := io.ReadFull(r, headerBytes); err != nil {
		return Entry{}, false
	}

	var h header
	if err := gob.NewDecoder(bytes.NewReader(headerBytes)).Decode(&h); err != nil {
		return Entry{}, false
	}

	body, err := io.ReadAll(r)
	if err != nil {
		return Entry{}, false
	}

	e := Entry{
		Key:      key,
		Body:     body,
		Status:   h.Status,
		Header:   h.Fields,
		StoredAt: h.StoredAt,
		TTL:      h.TTL,
		Size:     int64(len(body)),
	}
	if e.Expired(time.Now()) {
		c.d.Erase(key)
		return Entry{}, false
	}
	return e, true
}

func (c *l3) Set(key string, e Entry) {
	h := header{Status: e.Status, Fields: e.Header, StoredAt: e.StoredAt, TTL: e.TTL}
	if h.TTL == 0 {
		h.TTL = c.ttl
	}

	var headerBuf bytes.Buffer
	if err := gob.NewEncoder(&headerBuf).Encode(h); err != nil {
		return
	}

	var out bytes.Buffer
	binary.Write(&out, binary.BigEndian, uint32(headerBuf.Len()))
	out.Write(headerBuf.Bytes())
	out.Write(e.Body)

	_ = c.d.WriteStream(key, bytes.NewReader(out.Bytes()), true)
}

func (c *l3) Delete(key string) {
	c.d.Erase(key)
}
