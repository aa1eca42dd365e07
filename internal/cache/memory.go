package cache

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/coocood/freecache"
)

const (
	megabyte = 1024 * 1024

	// freecache splits its memory into 256 segments and refuses entries
	// (header + key + value) larger than a quarter of a segment
	freecacheSegments    = 256
	freecacheEntryHeader = 24
	freecacheMinSize     = 512 * 1024

	// room for the "\x00<generation>\x00<index>" suffix of a chunk key
	chunkKeySuffixMax = 2 + 2*20
	minChunkSize      = 64

	entryInline  byte = 0
	entryChunked byte = 1
)

var ErrEntryTooLarge = errors.New("entry too large for memory cache")

var _ ResponseCache = (*MemoryCache)(nil)

// MemoryCache is an in-process ResponseCache backed by freecache.
// Values too large for a single freecache entry are split into chunks stored
// under derived keys; the entry under the original key then only points to them.
type MemoryCache struct {
	cache         *freecache.Cache
	maxKeyValLen  int
	maxValueLen   int
	setGeneration atomic.Uint64
}

func NewMemoryCache(sizeMB int) *MemoryCache {
	return newMemoryCache(sizeMB*megabyte, freecache.NewCache(sizeMB*megabyte))
}

func newMemoryCacheWithTimer(sizeMB int, timer freecache.Timer) *MemoryCache {
	return newMemoryCache(sizeMB*megabyte, freecache.NewCacheCustomTimer(sizeMB*megabyte, timer))
}

func newMemoryCache(sizeBytes int, fc *freecache.Cache) *MemoryCache {
	if sizeBytes < freecacheMinSize {
		sizeBytes = freecacheMinSize
	}
	return &MemoryCache{
		cache:        fc,
		maxKeyValLen: sizeBytes/freecacheSegments/4 - freecacheEntryHeader,
		// a single value may take an eighth of the cache, leaving room for the rest
		maxValueLen: sizeBytes / 8,
	}
}

func (c *MemoryCache) Get(_ context.Context, key string) ([]byte, error) {
	stored, err := c.get(key)
	if err != nil {
		return nil, err
	}

	switch stored[0] {
	case entryInline:
		return stored[1:], nil
	case entryChunked:
		return c.getChunked(key, stored[1:])
	default:
		return nil, fmt.Errorf("freecache get: unknown entry kind %d", stored[0])
	}
}

func (c *MemoryCache) getChunked(key string, header []byte) ([]byte, error) {
	generation, chunks, total, err := decodeChunkHeader(header)
	if err != nil {
		return nil, err
	}

	value := make([]byte, 0, total)
	for i := uint64(0); i < chunks; i++ {
		chunk, err := c.cache.Get([]byte(chunkKey(key, generation, i)))
		if err != nil {
			// one evicted chunk invalidates the whole value
			if errors.Is(err, freecache.ErrNotFound) {
				return nil, ErrCacheMiss
			}
			return nil, fmt.Errorf("freecache get chunk: %w", err)
		}
		value = append(value, chunk...)
	}

	if uint64(len(value)) != total {
		return nil, ErrCacheMiss
	}
	return value, nil
}

func (c *MemoryCache) get(key string) ([]byte, error) {
	stored, err := c.cache.Get([]byte(key))
	if err != nil {
		if errors.Is(err, freecache.ErrNotFound) {
			return nil, ErrCacheMiss
		}
		return nil, fmt.Errorf("freecache get: %w", err)
	}
	if len(stored) == 0 {
		return nil, ErrCacheMiss
	}
	return stored, nil
}

func (c *MemoryCache) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	// freecache works with whole seconds, and 0 means no expiry
	expireSeconds := int(ttl / time.Second)
	if ttl > 0 && expireSeconds == 0 {
		expireSeconds = 1
	}

	if len(key)+1+len(value) <= c.maxKeyValLen {
		stored := make([]byte, 0, len(value)+1)
		stored = append(stored, entryInline)
		stored = append(stored, value...)
		if err := c.cache.Set([]byte(key), stored, expireSeconds); err != nil {
			return fmt.Errorf("freecache set: %w", err)
		}
		return nil
	}

	return c.setChunked(key, value, expireSeconds)
}

func (c *MemoryCache) setChunked(key string, value []byte, expireSeconds int) error {
	chunkSize := c.maxKeyValLen - len(key) - chunkKeySuffixMax
	if len(value) > c.maxValueLen || chunkSize < minChunkSize {
		return fmt.Errorf("%w: %d bytes under a %d bytes key", ErrEntryTooLarge, len(value), len(key))
	}

	// a fresh generation per Set keeps concurrent writers from mixing chunks
	generation := c.setGeneration.Add(1)
	var chunks uint64
	for start := 0; start < len(value); start += chunkSize {
		end := min(start+chunkSize, len(value))
		if err := c.cache.Set([]byte(chunkKey(key, generation, chunks)), value[start:end], expireSeconds); err != nil {
			return fmt.Errorf("freecache set chunk: %w", err)
		}
		chunks++
	}

	if err := c.cache.Set([]byte(key), encodeChunkHeader(generation, chunks, uint64(len(value))), expireSeconds); err != nil {
		return fmt.Errorf("freecache set: %w", err)
	}
	return nil
}

// EntryCount counts freecache entries, chunks included.
func (c *MemoryCache) EntryCount() int64 {
	return c.cache.EntryCount()
}

func chunkKey(key string, generation, index uint64) string {
	return key + "\x00" + strconv.FormatUint(generation, 10) + "\x00" + strconv.FormatUint(index, 10)
}

func encodeChunkHeader(generation, chunks, total uint64) []byte {
	header := make([]byte, 1, 1+3*binary.MaxVarintLen64)
	header[0] = entryChunked
	header = binary.AppendUvarint(header, generation)
	header = binary.AppendUvarint(header, chunks)
	return binary.AppendUvarint(header, total)
}

func decodeChunkHeader(header []byte) (generation, chunks, total uint64, err error) {
	fields := make([]uint64, 3)
	for i := range fields {
		v, n := binary.Uvarint(header)
		if n <= 0 {
			return 0, 0, 0, errors.New("freecache get: corrupt chunk header")
		}
		fields[i] = v
		header = header[n:]
	}
	return fields[0], fields[1], fields[2], nil
}
