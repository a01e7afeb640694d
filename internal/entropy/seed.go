// Package entropy supplies economy seeds from random.org, falling back to
// crypto/rand when no API key is set or the service is unavailable.
package entropy

import (
	"bytes"
	"crypto/rand"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sync"
	"time"
)

const (
	defaultEndpoint = "https://api.random.org/json-rpc/4/invoke"
	batch           = 16          // seeds fetched per request
	intMax          = 999_999_999 // random.org's integer ceiling is 1e9
)

// Source hands out non-negative int64 seeds. A nil *Source is valid and uses
// crypto/rand only.
type Source struct {
	apiKey   string
	endpoint string
	client   *http.Client

	mu   sync.Mutex
	pool []int64
}

// NewSource creates a random.org backed source. Returns nil if apiKey is empty.
func NewSource(apiKey string) *Source {
	if apiKey == "" {
		return nil
	}
	return &Source{
		apiKey:   apiKey,
		endpoint: defaultEndpoint,
		client:   &http.Client{Timeout: 15 * time.Second},
	}
}

// Seed returns a fresh seed. It never fails.
func (s *Source) Seed() int64 {
	if s == nil {
		return CryptoSeed()
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.pool) == 0 {
		if err := s.refill(); err != nil {
			slog.Debug("random.org refill failed", "error", err)
		}
	}
	if len(s.pool) == 0 {
		return CryptoSeed()
	}
	v := s.pool[0]
	s.pool = s.pool[1:]
	return v
}

// refill fetches two integers per seed and joins them as base-1e9 digits.
func (s *Source) refill() error {
	req := map[string]any{
		"jsonrpc": "2.0",
		"method":  "generateIntegers",
		"params": map[string]any{
			"apiKey": s.apiKey,
			"n":      batch * 2,
			"min":    0,
			"max":    intMax,
		},
		"id": 1,
	}
	body, err := json.Marshal(req)
	if err != nil {
		return err
	}

	resp, err := s.client.Post(s.endpoint, "application/json", bytes.NewReader(body))
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("random.org status %d", resp.StatusCode)
	}

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	var result struct {
		Result struct {
			Random struct {
				Data []int64 `json:"data"`
			} `json:"random"`
		} `json:"result"`
		Error *struct {
			Message string `json:"message"`
		} `json:"error"`
	}
	if err := json.Unmarshal(raw, &result); err != nil {
		return fmt.Errorf("parse random.org response: %w", err)
	}
	if result.Error != nil {
		return fmt.Errorf("random.org: %s", result.Error.Message)
	}

	data := result.Result.Random.Data
	for i := 0; i+1 < len(data); i += 2 {
		s.pool = append(s.pool, data[i]*(intMax+1)+data[i+1])
	}
	slog.Debug("random.org seed pool refilled", "count", len(s.pool))
	return nil
}

// Enabled reports whether the source talks to random.org.
func (s *Source) Enabled() bool {
	return s != nil && s.apiKey != ""
}

// CryptoSeed returns a non-negative seed from crypto/rand.
func CryptoSeed() int64 {
	var buf [8]byte
	if _, err := rand.Read(buf[:]); err != nil {
		return time.Now().UnixNano() & (1<<63 - 1)
	}
	return int64(binary.LittleEndian.Uint64(buf[:]) >> 1)
}
