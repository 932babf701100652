// Package cache provides short-TTL memoization of fetched HTML so the
// analyzer and HTTP-consumable miners share one fetch per URL.
package cache

import (
	"encoding/json"
	"net/url"
	"strings"
	"time"

	badger "github.com/dgraph-io/badger/v4"
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/prospector/internal/interfaces"
)

// Service is a process-local HTML cache backed by an in-memory Badger
// store with per-entry TTL. Reads never fail; writes silently drop
// entries that violate the poisoning guards.
type Service struct {
	db           *badger.DB
	ttl          time.Duration
	maxEntrySize int
	logger       arbor.ILogger
}

// Compile-time interface assertion
var _ interfaces.HTMLCache = (*Service)(nil)

// blockedCodes are responses that must never be cached: caching a block
// page would poison every later miner in the sequence.
var blockedCodes = map[int]bool{401: true, 403: true, 429: true}

// NewService creates an in-memory HTML cache
func NewService(ttl time.Duration, maxEntrySize int, logger arbor.ILogger) (*Service, error) {
	opts := badger.DefaultOptions("").WithInMemory(true)
	opts.Logger = nil // arbor is the logging path

	db, err := badger.Open(opts)
	if err != nil {
		return nil, err
	}

	if maxEntrySize <= 0 {
		maxEntrySize = 2 * 1024 * 1024
	}
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}

	return &Service{
		db:           db,
		ttl:          ttl,
		maxEntrySize: maxEntrySize,
		logger:       logger,
	}, nil
}

// Get returns a cached entry if present and not expired
func (s *Service) Get(rawURL string) (*interfaces.HTMLCacheEntry, bool) {
	key := normalizeKey(rawURL)
	if key == "" {
		return nil, false
	}

	var entry interfaces.HTMLCacheEntry
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(key))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &entry)
		})
	})
	if err != nil {
		return nil, false
	}
	return &entry, true
}

// Set stores an entry subject to the poisoning guards: blocked HTTP codes
// and oversized bodies are dropped without error.
func (s *Service) Set(rawURL string, entry *interfaces.HTMLCacheEntry) {
	if entry == nil {
		return
	}
	key := normalizeKey(rawURL)
	if key == "" {
		return
	}
	if blockedCodes[entry.HTTPCode] {
		s.logger.Debug().Str("url", rawURL).Int("http_code", entry.HTTPCode).Msg("Not caching blocked response")
		return
	}
	if len(entry.HTML) > s.maxEntrySize {
		s.logger.Debug().Str("url", rawURL).Int("size", len(entry.HTML)).Msg("Not caching oversized response")
		return
	}

	if entry.FetchedAt == 0 {
		entry.FetchedAt = time.Now().Unix()
	}

	data, err := json.Marshal(entry)
	if err != nil {
		return
	}

	err = s.db.Update(func(txn *badger.Txn) error {
		e := badger.NewEntry([]byte(key), data).WithTTL(s.ttl)
		return txn.SetEntry(e)
	})
	if err != nil {
		s.logger.Debug().Err(err).Str("url", rawURL).Msg("Cache write dropped")
	}
}

// Close releases the in-memory store
func (s *Service) Close() error {
	return s.db.Close()
}

// normalizeKey canonicalizes the full URL including query. Fragment is
// dropped; scheme and host are lowered.
func normalizeKey(rawURL string) string {
	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil || u.Host == "" {
		return ""
	}
	u.Fragment = ""
	u.Scheme = strings.ToLower(u.Scheme)
	u.Host = strings.ToLower(u.Host)
	return u.String()
}
