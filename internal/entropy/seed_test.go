package entropy

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestNilSource_UsesCrypto(t *testing.T) {
	var s *Source
	if s.Enabled() {
		t.Fatalf("nil source reports enabled")
	}
	if NewSource("") != nil {
		t.Fatalf("empty key should yield a nil source")
	}
	seen := map[int64]bool{}
	for i := 0; i < 8; i++ {
		v := s.Seed()
		if v < 0 {
			t.Fatalf("negative seed %d", v)
		}
		seen[v] = true
	}
	if len(seen) < 2 {
		t.Fatalf("crypto seeds do not vary")
	}
}

func TestSource_JoinsIntegerPairs(t *testing.T) {
	requests := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests++
		var req struct {
			Method string `json:"method"`
			Params struct {
				APIKey string `json:"apiKey"`
				N      int    `json:"n"`
			} `json:"params"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode request: %v", err)
		}
		if req.Method != "generateIntegers" || req.Params.APIKey != "key" || req.Params.N != batch*2 {
			t.Errorf("unexpected request: %+v", req)
		}
		w.Write([]byte(`{"jsonrpc":"2.0","result":{"random":{"data":[1,2,3,4]}},"id":1}`))
	}))
	defer srv.Close()

	s := NewSource("key")
	s.endpoint = srv.URL

	if got, want := s.Seed(), int64(1_000_000_002); got != want {
		t.Fatalf("first seed: got %d want %d", got, want)
	}
	if got, want := s.Seed(), int64(3_000_000_004); got != want {
		t.Fatalf("second seed: got %d want %d", got, want)
	}
	if requests != 1 {
		t.Fatalf("requests: got %d want 1", requests)
	}
}

func TestSource_FallsBackOnError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"jsonrpc":"2.0","error":{"message":"quota exceeded"},"id":1}`))
	}))
	defer srv.Close()

	s := NewSource("key")
	s.endpoint = srv.URL
	if v := s.Seed(); v < 0 {
		t.Fatalf("fallback seed negative: %d", v)
	}
	if len(s.pool) != 0 {
		t.Fatalf("pool filled from an error response")
	}
}
