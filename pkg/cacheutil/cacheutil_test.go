package cacheutil

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"golang.org/x/sync/singleflight"

	"github.com/objectfs/tiercache/internal/cache"
	"github.com/objectfs/tiercache/internal/metrics"
	cacheerrors "github.com/objectfs/tiercache/pkg/errors"
	"github.com/objectfs/tiercache/pkg/types"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type user struct {
	ID   int    `json:"id"`
	Name string `json:"name"`
}

func newByteCache(t *testing.T, name string) *cache.MultiLevelCache[[]byte] {
	t.Helper()
	c, err := cache.NewMultiLevelCache[[]byte](&cache.Config{
		Name:        name,
		MaxHotSize:  16,
		MaxWarmSize: 64,
		DefaultTTL:  time.Hour,
	})
	require.NoError(t, err)
	t.Cleanup(c.Close)
	return c
}

// countingRecorder tallies outcomes
type countingRecorder struct {
	mu       sync.Mutex
	outcomes map[string]int
	fetches  int
}

func newCountingRecorder() *countingRecorder {
	return &countingRecorder{outcomes: make(map[string]int)}
}

func (r *countingRecorder) RecordOutcome(outcome string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.outcomes[outcome]++
}

func (r *countingRecorder) RecordFetch(time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.fetches++
}

func (r *countingRecorder) count(outcome string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.outcomes[outcome]
}

// mapResolver resolves caches from a fixed map
type mapResolver map[string]types.Cache[[]byte]

func (m mapResolver) Resolve(name string) (types.Cache[[]byte], error) {
	c, ok := m[name]
	if !ok {
		return nil, cacheerrors.Newf(cacheerrors.ErrCodeCacheNotFound, "no cache named %q", name)
	}
	return c, nil
}

func TestGenerateKey(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		prefix string
		params []interface{}
		want   string
	}{
		{"prefix only", "users", nil, "users"},
		{"string verbatim", "user", []interface{}{"42"}, "user:42"},
		{"integers", "page", []interface{}{3, int64(-7), uint8(9)}, "page:3:-7:9"},
		{"floats", "geo", []interface{}{1.5, float32(0.25)}, "geo:1.5:0.25"},
		{"bools and nil", "flag", []interface{}{true, false, nil}, "flag:true:false:null"},
		{"map sorted", "query", []interface{}{map[string]int{"b": 2, "a": 1}}, `query:{"a":1,"b":2}`},
		{"struct", "user", []interface{}{user{ID: 1, Name: "ada"}}, `user:{"id":1,"name":"ada"}`},
		{"slice", "ids", []interface{}{[]int{3, 1, 2}}, "ids:[3,1,2]"},
		{"unencodable falls back", "fn", []interface{}{make(chan int)}, ""},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got := GenerateKey(tt.prefix, tt.params...)
			if tt.want == "" {
				assert.Contains(t, got, tt.prefix+KeyDelimiter)
				return
			}
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestGenerateKey_Deterministic(t *testing.T) {
	t.Parallel()

	params := map[string]interface{}{"z": 1, "m": []string{"x"}, "a": nil}
	first := GenerateKey("search", "q", params, 10)
	for i := 0; i < 20; i++ {
		assert.Equal(t, first, GenerateKey("search", "q", params, 10))
	}

	assert.NotEqual(t, GenerateKey("p", 1, 2), GenerateKey("p", 2, 1), "order is not normalized")
}

func TestCacheAside_SingleFetch(t *testing.T) {
	t.Parallel()

	c := newByteCache(t, "users")
	rec := newCountingRecorder()
	var calls atomic.Int32
	fetch := func(context.Context) (user, error) {
		calls.Add(1)
		return user{ID: 42, Name: "ada"}, nil
	}

	ctx := context.Background()
	first, err := CacheAside(ctx, c, "user:42", fetch, time.Minute, WithRecorder(rec))
	require.NoError(t, err)
	second, err := CacheAside(ctx, c, "user:42", fetch, time.Minute, WithRecorder(rec))
	require.NoError(t, err)

	assert.Equal(t, int32(1), calls.Load())
	assert.Equal(t, user{ID: 42, Name: "ada"}, first)
	assert.Equal(t, first, second)
	assert.Equal(t, 1, rec.count(OutcomeMiss))
	assert.Equal(t, 1, rec.count(OutcomeHit))
	assert.Equal(t, 1, rec.fetches)

	raw, ok := c.Get("user:42")
	require.True(t, ok)
	assert.JSONEq(t, `{"id":42,"name":"ada"}`, string(raw))
}

func TestCacheAside_FetchErrorVerbatim(t *testing.T) {
	t.Parallel()

	c := newByteCache(t, "users")
	rec := newCountingRecorder()
	sentinel := errors.New("backend unavailable")

	v, err := CacheAside(context.Background(), c, "user:1", func(context.Context) (*user, error) {
		return nil, sentinel
	}, 0, WithRecorder(rec))

	assert.Same(t, sentinel, err, "fetch error must not be wrapped")
	assert.Nil(t, v)
	assert.False(t, c.Has("user:1"), "failed fetch must not be cached")
	assert.Equal(t, 1, rec.count(OutcomeFetchError))

	var calls int
	_, err = CacheAside(context.Background(), c, "user:1", func(context.Context) (*user, error) {
		calls++
		return &user{ID: 1}, nil
	}, 0)
	require.NoError(t, err)
	assert.Equal(t, 1, calls, "next call fetches again")
}

func TestCacheAside_CorruptPayload(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		payload []byte
	}{
		{"invalid json", []byte("{not json")},
		{"wrong shape", []byte(`"just a string"`)},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			c := newByteCache(t, "users")
			rec := newCountingRecorder()
			c.Set("user:7", tt.payload, 0)

			var calls int
			v, err := CacheAside(context.Background(), c, "user:7", func(context.Context) (user, error) {
				calls++
				return user{ID: 7, Name: "grace"}, nil
			}, 0, WithRecorder(rec))

			require.NoError(t, err)
			assert.Equal(t, 1, calls)
			assert.Equal(t, user{ID: 7, Name: "grace"}, v)
			assert.Equal(t, 1, rec.count(OutcomeCorrupt))

			raw, ok := c.Get("user:7")
			require.True(t, ok)
			var decoded user
			require.NoError(t, json.Unmarshal(raw, &decoded), "payload replaced with a clean encoding")
		})
	}
}

func TestCacheAside_UncachableResult(t *testing.T) {
	t.Parallel()

	c := newByteCache(t, "funcs")
	rec := newCountingRecorder()
	var logs bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&logs, nil))

	v, err := CacheAside(context.Background(), c, "fn", func(context.Context) (func() int, error) {
		return func() int { return 1 }, nil
	}, 0, WithRecorder(rec), WithLogger(logger))

	require.NoError(t, err)
	require.NotNil(t, v)
	assert.Equal(t, 1, v())
	assert.False(t, c.Has("fn"))
	assert.Equal(t, 1, rec.count(OutcomeUncachable))
	assert.Contains(t, logs.String(), "SERIALIZATION_FAILED")
}

func TestCacheAside_PrometheusRecorder(t *testing.T) {
	c := newByteCache(t, "user-data")
	collector, err := metrics.NewCollector(nil, nil)
	require.NoError(t, err)

	fetch := func(context.Context) (user, error) { return user{ID: 7}, nil }
	for i := 0; i < 3; i++ {
		_, err := CacheAside(context.Background(), c, "user:7", fetch, 0,
			WithRecorder(collector.Recorder("user-data")))
		require.NoError(t, err)
	}

	aside := collector.GetAsideMetrics()["user-data"]
	assert.Equal(t, int64(1), aside.Outcomes[OutcomeMiss])
	assert.Equal(t, int64(2), aside.Outcomes[OutcomeHit])
	assert.Equal(t, int64(1), aside.Fetches)
}

func TestCacheAsideShared_CollapsesConcurrentMisses(t *testing.T) {
	t.Parallel()

	c := newByteCache(t, "users")
	rec := newCountingRecorder()
	var g singleflight.Group
	var calls atomic.Int32
	release := make(chan struct{})

	fetch := func(context.Context) (user, error) {
		calls.Add(1)
		<-release
		return user{ID: 9, Name: "lin"}, nil
	}

	const callers = 8
	var wg sync.WaitGroup
	results := make([]user, callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			v, err := CacheAsideShared(context.Background(), &g, c, "user:9", fetch, 0, WithRecorder(rec))
			assert.NoError(t, err)
			results[i] = v
		}(i)
	}

	time.Sleep(50 * time.Millisecond)
	close(release)
	wg.Wait()

	assert.Equal(t, int32(1), calls.Load())
	for _, r := range results {
		assert.Equal(t, user{ID: 9, Name: "lin"}, r)
	}
	assert.True(t, c.Has("user:9"))
}

func TestCacheAsideShared_GroupAcrossCaches(t *testing.T) {
	t.Parallel()

	users := newByteCache(t, "users")
	posts := newByteCache(t, "posts")
	var g singleflight.Group
	started := make(chan struct{})
	release := make(chan struct{})

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		name, err := CacheAsideShared(context.Background(), &g, users, "id:1", func(context.Context) (string, error) {
			close(started)
			<-release
			return "ada", nil
		}, 0)
		assert.NoError(t, err)
		assert.Equal(t, "ada", name)
	}()

	<-started
	done := make(chan struct{})
	var views int
	var viewsErr error
	go func() {
		defer close(done)
		views, viewsErr = CacheAsideShared(context.Background(), &g, posts, "id:1", func(context.Context) (int, error) {
			return 42, nil
		}, 0)
	}()

	time.Sleep(50 * time.Millisecond)
	close(release)
	wg.Wait()
	<-done

	require.NoError(t, viewsErr)
	assert.Equal(t, 42, views)
	assert.True(t, posts.Has("id:1"))
	assert.True(t, users.Has("id:1"))
}

func TestCacheAsideShared_MixedTypesOnOneKey(t *testing.T) {
	t.Parallel()

	c := newByteCache(t, "mixed")
	var g singleflight.Group
	started := make(chan struct{})
	release := make(chan struct{})

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		_, err := CacheAsideShared(context.Background(), &g, c, "id:1", func(context.Context) (string, error) {
			close(started)
			<-release
			return "ada", nil
		}, 0)
		assert.NoError(t, err)
	}()

	<-started
	done := make(chan struct{})
	var views int
	var viewsErr error
	go func() {
		defer close(done)
		views, viewsErr = CacheAsideShared(context.Background(), &g, c, "id:1", func(context.Context) (int, error) {
			return 42, nil
		}, 0)
	}()

	time.Sleep(50 * time.Millisecond)
	close(release)
	wg.Wait()
	<-done

	require.NoError(t, viewsErr)
	assert.Equal(t, 42, views, "a caller joining a flight of another type must get its own value")
	data, ok := c.Get("id:1")
	require.True(t, ok)
	assert.JSONEq(t, "42", string(data))
}

func TestCacheAsideShared_ErrorVerbatim(t *testing.T) {
	t.Parallel()

	c := newByteCache(t, "users")
	var g singleflight.Group
	sentinel := errors.New("timeout")

	_, err := CacheAsideShared(context.Background(), &g, c, "user:3", func(context.Context) (user, error) {
		return user{}, sentinel
	}, 0)
	assert.Same(t, sentinel, err)
}

func TestCacheAsideShared_Hit(t *testing.T) {
	t.Parallel()

	c := newByteCache(t, "users")
	var g singleflight.Group
	c.Set("user:5", []byte(`{"id":5,"name":"kay"}`), 0)

	v, err := CacheAsideShared(context.Background(), &g, c, "user:5", func(context.Context) (user, error) {
		t.Error("fetch must not run on a hit")
		return user{}, nil
	}, 0)
	require.NoError(t, err)
	assert.Equal(t, user{ID: 5, Name: "kay"}, v)
}

func TestWarmOne_Errors(t *testing.T) {
	t.Parallel()

	users := newByteCache(t, "user-data")
	resolver := mapResolver{"user-data": users}
	canceled, cancel := context.WithCancel(context.Background())
	cancel()

	tests := []struct {
		name  string
		ctx   context.Context
		entry WarmEntry
		code  cacheerrors.ErrorCode
	}{
		{
			name:  "canceled context",
			ctx:   canceled,
			entry: StaticEntry("user-data", "user:1", json.RawMessage(`{}`), 0),
			code:  cacheerrors.ErrCodeOperationCanceled,
		},
		{
			name: "value cannot be encoded",
			ctx:  context.Background(),
			entry: WarmEntry{Cache: "user-data", Key: "user:2", Load: func(context.Context) (interface{}, error) {
				return make(chan int), nil
			}},
			code: cacheerrors.ErrCodeSerializationFailed,
		},
		{
			name:  "unknown cache",
			ctx:   context.Background(),
			entry: StaticEntry("sessions", "s:1", json.RawMessage(`{}`), 0),
			code:  cacheerrors.ErrCodeCacheNotFound,
		},
		{
			name:  "missing loader",
			ctx:   context.Background(),
			entry: WarmEntry{Cache: "user-data", Key: "user:3"},
			code:  cacheerrors.ErrCodeInvalidConfig,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := warmOne(tt.ctx, resolver, tt.entry)
			require.Error(t, err)
			assert.True(t, cacheerrors.IsCode(err, tt.code), "got %v", err)
		})
	}
	assert.Empty(t, users.Keys())
}

func TestInvalidatePattern(t *testing.T) {
	t.Parallel()

	c := newByteCache(t, "mixed")
	for _, key := range []string{"user:42:profile", "session:user:42", "user:7", "post:42", "user:4"} {
		c.Set(key, []byte(`1`), 0)
	}

	assert.Equal(t, 2, InvalidatePattern[[]byte](c, "user:42"))

	assert.False(t, c.Has("user:42:profile"))
	assert.False(t, c.Has("session:user:42"))
	for _, key := range []string{"user:7", "post:42", "user:4"} {
		_, ok := c.Get(key)
		assert.True(t, ok, "%s should survive", key)
	}

	assert.Equal(t, 0, InvalidatePattern[[]byte](c, "nothing-matches"))
}

func TestWarmCache(t *testing.T) {
	t.Parallel()

	users := newByteCache(t, "user-data")
	static := newByteCache(t, "static-content")
	resolver := mapResolver{"user-data": users, "static-content": static}
	release := make(chan struct{})

	entries := []WarmEntry{
		StaticEntry("static-content", "config:site", json.RawMessage(`{"theme":"dark"}`), time.Hour),
		{
			Cache: "user-data",
			Key:   "user:1",
			Load: func(context.Context) (interface{}, error) {
				<-release
				return user{ID: 1, Name: "ada"}, nil
			},
		},
		{
			Cache: "user-data",
			Key:   "user:2",
			Load: func(context.Context) (interface{}, error) {
				return nil, errors.New("db down")
			},
		},
		StaticEntry("sessions", "s:1", json.RawMessage(`{}`), 0),
		{Cache: "user-data", Key: "no-loader"},
	}

	done := WarmCache(context.Background(), resolver, entries, WithConcurrency(2))

	select {
	case <-done:
		t.Fatal("WarmCache must not block on slow loaders")
	default:
	}
	close(release)

	var report WarmReport
	select {
	case report = <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("warm-up did not finish")
	}

	assert.Equal(t, WarmReport{Attempted: 5, Loaded: 2, Failed: 3}, report)

	raw, ok := static.Get("config:site")
	require.True(t, ok)
	assert.JSONEq(t, `{"theme":"dark"}`, string(raw))

	var u user
	raw, ok = users.Get("user:1")
	require.True(t, ok)
	require.NoError(t, json.Unmarshal(raw, &u))
	assert.Equal(t, "ada", u.Name)
	assert.False(t, users.Has("user:2"))

	_, open := <-done
	assert.False(t, open, "channel closes after the report")
}

func TestWarmCache_Canceled(t *testing.T) {
	t.Parallel()

	c := newByteCache(t, "user-data")
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	report := <-WarmCache(ctx, mapResolver{"user-data": c}, []WarmEntry{
		StaticEntry("user-data", "a", json.RawMessage(`1`), 0),
		StaticEntry("user-data", "b", json.RawMessage(`2`), 0),
	})

	assert.Equal(t, WarmReport{Attempted: 2, Loaded: 0, Failed: 2}, report)
	assert.Equal(t, 0, c.Len())
}

func TestWarmCache_Empty(t *testing.T) {
	t.Parallel()

	report := <-WarmCache(context.Background(), mapResolver{}, nil)
	assert.Equal(t, WarmReport{}, report)
}
