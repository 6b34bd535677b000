package cache

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"go.uber.org/zap/zaptest"

	"goflare.io/pokedex/internal/config"
	"goflare.io/pokedex/internal/storage"
	"goflare.io/pokedex/pkg/serialization"
)

type pokemon struct {
	ID    int      `json:"id"`
	Name  string   `json:"name"`
	Types []string `json:"types"`
}

var bulbasaur = pokemon{ID: 1, Name: "bulbasaur", Types: []string{"grass", "poison"}}

// countingBackend records calls and can be told to fail.
type countingBackend struct {
	storage.Backend
	gets   atomic.Int64
	getErr error
	setErr error
}

func (b *countingBackend) Get(ctx context.Context, key string) (string, error) {
	b.gets.Add(1)
	if b.getErr != nil {
		return "", b.getErr
	}
	return b.Backend.Get(ctx, key)
}

func (b *countingBackend) Set(ctx context.Context, key, value string) error {
	if b.setErr != nil {
		return b.setErr
	}
	return b.Backend.Set(ctx, key, value)
}

func newTestConfig(t *testing.T, opts ...config.Option) *config.Config {
	t.Helper()
	opts = append([]config.Option{config.WithLogger(zaptest.NewLogger(t))}, opts...)
	cfg, err := config.NewConfig(opts...)
	if err != nil {
		t.Fatalf("NewConfig failed: %v", err)
	}
	return cfg
}

type clock struct{ t time.Time }

func (c *clock) Now() time.Time          { return c.t }
func (c *clock) Advance(d time.Duration) { c.t = c.t.Add(d) }

func newTestCache(t *testing.T, backend storage.Backend, opts ...config.Option) (*Cache, *clock) {
	t.Helper()
	c := New(context.Background(), newTestConfig(t, opts...), backend)
	clk := &clock{t: time.UnixMilli(1_700_000_000_000)}
	c.now = clk.Now
	return c, clk
}

func TestSetThenGet(t *testing.T) {
	ctx := context.Background()
	c, _ := newTestCache(t, storage.NewMemory(0))

	if r := c.Set(ctx, "pokemon_1", bulbasaur); r.Status != Stored {
		t.Fatalf("Set = %v (%v)", r.Status, r.Err)
	}

	var got pokemon
	if !c.Get(ctx, "pokemon_1", &got) {
		t.Fatal("expected a hit")
	}
	if got.Name != "bulbasaur" || len(got.Types) != 2 {
		t.Errorf("got %+v", got)
	}

	m := c.Metrics().Snapshot()
	if m.Hits != 1 || m.Stores != 1 {
		t.Errorf("metrics = %+v", m)
	}
}

func TestGetMissingKey(t *testing.T) {
	c, _ := newTestCache(t, storage.NewMemory(0))

	var got pokemon
	if c.Get(context.Background(), "pokemon_999", &got) {
		t.Error("expected a miss")
	}
}

func TestEntryExpiresAfterTTL(t *testing.T) {
	ctx := context.Background()
	backend := storage.NewMemory(0)
	c, clk := newTestCache(t, backend)

	c.Set(ctx, "pokemon_1", bulbasaur)

	clk.Advance(24*time.Hour - time.Millisecond)
	var got pokemon
	if !c.Get(ctx, "pokemon_1", &got) {
		t.Fatal("entry expired early")
	}

	clk.Advance(time.Millisecond)
	if c.Get(ctx, "pokemon_1", &got) {
		t.Fatal("entry outlived its ttl")
	}
	if _, err := backend.Get(ctx, "pokedex_cache_pokemon_1"); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("expired entry still stored: %v", err)
	}
	if c.Metrics().Evictions.Load() != 1 {
		t.Errorf("evictions = %d", c.Metrics().Evictions.Load())
	}
}

func TestVersionMismatchIsMiss(t *testing.T) {
	ctx := context.Background()
	backend := storage.NewMemory(0)

	v1, _ := newTestCache(t, backend)
	v1.Set(ctx, "pokemon_1", bulbasaur)

	v2, _ := newTestCache(t, backend, config.WithCacheVersion("v2"))
	var got pokemon
	if v2.Get(ctx, "pokemon_1", &got) {
		t.Fatal("entry from another version was served")
	}
	if _, err := backend.Get(ctx, "pokedex_cache_pokemon_1"); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("foreign version entry still stored: %v", err)
	}
}

func TestCorruptEntryIsMissAndKept(t *testing.T) {
	ctx := context.Background()
	backend := storage.NewMemory(0)
	if err := backend.Set(ctx, "pokedex_cache_bad", "{not json"); err != nil {
		t.Fatal(err)
	}

	c, _ := newTestCache(t, backend)
	var got pokemon
	if c.Get(ctx, "bad", &got) {
		t.Fatal("corrupt entry was served")
	}
	if _, err := backend.Get(ctx, "pokedex_cache_bad"); err != nil {
		t.Errorf("corrupt entry was removed: %v", err)
	}
}

func TestQuotaExceededPurgesPrefixAndRetries(t *testing.T) {
	ctx := context.Background()
	backend := storage.NewMemory(1200)
	if err := backend.Set(ctx, "settings", "dark"); err != nil {
		t.Fatal(err)
	}
	c, _ := newTestCache(t, backend)

	filler := strings.Repeat("x", 300)
	for _, k := range []string{"a", "b", "c"} {
		if r := c.Set(ctx, k, filler); r.Status != Stored {
			t.Fatalf("Set(%s) = %v", k, r.Status)
		}
	}

	if r := c.Set(ctx, "d", strings.Repeat("y", 500)); r.Status != Stored {
		t.Fatalf("Set after purge = %v (%v)", r.Status, r.Err)
	}

	keys, _ := backend.Keys(ctx, "")
	want := []string{"pokedex_cache_d", "settings"}
	if strings.Join(keys, ",") != strings.Join(want, ",") {
		t.Errorf("keys = %v, want %v", keys, want)
	}
}

func TestQuotaStillExceededIsDegraded(t *testing.T) {
	ctx := context.Background()
	c, _ := newTestCache(t, storage.NewMemory(100))

	r := c.Set(ctx, "huge", strings.Repeat("z", 1000))
	if r.Status != Degraded || !errors.Is(r.Err, storage.ErrQuotaExceeded) {
		t.Errorf("Set = %v (%v), want degraded", r.Status, r.Err)
	}
	if c.Metrics().Degraded.Load() != 1 {
		t.Errorf("degraded = %d", c.Metrics().Degraded.Load())
	}
}

func TestBackendFaultsAreSwallowed(t *testing.T) {
	ctx := context.Background()
	boom := errors.New("disk on fire")
	backend := &countingBackend{Backend: storage.NewMemory(0), getErr: boom, setErr: boom}
	c, _ := newTestCache(t, backend)

	if r := c.Set(ctx, "pokemon_1", bulbasaur); r.Status != Faulted || !errors.Is(r.Err, boom) {
		t.Errorf("Set = %v (%v), want faulted", r.Status, r.Err)
	}

	backend.setErr = nil
	c.Set(ctx, "pokemon_1", bulbasaur)
	var got pokemon
	if c.Get(ctx, "pokemon_1", &got) {
		t.Error("read fault must be a miss")
	}
}

func TestUnencodableValueIsFaulted(t *testing.T) {
	c, _ := newTestCache(t, storage.NewMemory(0))

	if r := c.Set(context.Background(), "ch", make(chan int)); r.Status != Faulted {
		t.Errorf("Set = %v, want faulted", r.Status)
	}
}

func TestNilBackendNoOps(t *testing.T) {
	ctx := context.Background()
	c, _ := newTestCache(t, nil)

	var got pokemon
	if c.Get(ctx, "pokemon_1", &got) {
		t.Error("Get must miss")
	}
	if r := c.Set(ctx, "pokemon_1", bulbasaur); r.Status != Degraded {
		t.Errorf("Set = %v, want degraded", r.Status)
	}
	if r := c.Clear(ctx); r.Status != Degraded {
		t.Errorf("Clear = %v, want degraded", r.Status)
	}
	if s := c.Stats(ctx); s != (Stats{}) {
		t.Errorf("Stats = %+v", s)
	}
	if c.IsAvailable(ctx) {
		t.Error("IsAvailable must be false")
	}
	if _, ok := c.AgeHours(ctx, "pokemon_1"); ok {
		t.Error("AgeHours must be absent")
	}
	if c.IsWarmed(ctx, "species_", 1) {
		t.Error("IsWarmed must be false")
	}
}

func TestClearOnlyRemovesPrefix(t *testing.T) {
	ctx := context.Background()
	backend := storage.NewMemory(0)
	_ = backend.Set(ctx, "other_key", "keep")
	c, _ := newTestCache(t, backend)

	c.Set(ctx, "pokemon_1", bulbasaur)
	c.Set(ctx, "pokemon_2", bulbasaur)

	if r := c.Clear(ctx); !r.OK() {
		t.Fatalf("Clear = %v", r.Status)
	}
	if s := c.Stats(ctx); s.Count != 0 {
		t.Errorf("count after clear = %d", s.Count)
	}
	if v, err := backend.Get(ctx, "other_key"); err != nil || v != "keep" {
		t.Errorf("foreign key touched: %q %v", v, err)
	}
}

func TestStats(t *testing.T) {
	ctx := context.Background()
	backend := storage.NewMemory(0)
	c, _ := newTestCache(t, backend)

	c.Set(ctx, "pokemon_1", bulbasaur)
	c.Set(ctx, "pokemon_2", pokemon{ID: 2, Name: "ivysaur"})

	var want int64
	for _, k := range []string{"pokedex_cache_pokemon_1", "pokedex_cache_pokemon_2"} {
		v, _ := backend.Get(ctx, k)
		want += int64(len(v))
	}

	s := c.Stats(ctx)
	if s.Count != 2 || s.TotalBytes != want {
		t.Errorf("Stats = %+v, want {2 %d}", s, want)
	}
}

func TestIsAvailable(t *testing.T) {
	ctx := context.Background()
	backend := storage.NewMemory(0)
	c, _ := newTestCache(t, backend)

	if !c.IsAvailable(ctx) {
		t.Fatal("memory backend must be available")
	}
	if keys, _ := backend.Keys(ctx, ""); len(keys) != 0 {
		t.Errorf("probe left keys behind: %v", keys)
	}

	broken, _ := newTestCache(t, &countingBackend{Backend: storage.NewMemory(0), setErr: errors.New("read-only")})
	if broken.IsAvailable(ctx) {
		t.Error("failing backend reported available")
	}
}

func TestAgeHours(t *testing.T) {
	ctx := context.Background()
	c, clk := newTestCache(t, storage.NewMemory(0))

	c.Set(ctx, "pokemon_1", bulbasaur)
	clk.Advance(90 * time.Minute)

	age, ok := c.AgeHours(ctx, "pokemon_1")
	if !ok || age != 1.5 {
		t.Errorf("AgeHours = %v, %v", age, ok)
	}

	clk.Advance(48 * time.Hour)
	if _, ok := c.AgeHours(ctx, "pokemon_1"); !ok {
		t.Error("AgeHours must ignore validity")
	}
	if _, ok := c.AgeHours(ctx, "pokemon_2"); ok {
		t.Error("AgeHours of a missing key must be absent")
	}
}

func TestIsWarmed(t *testing.T) {
	ctx := context.Background()
	c, clk := newTestCache(t, storage.NewMemory(0))

	for i, name := range []string{"bulbasaur", "ivysaur"} {
		c.Set(ctx, "species_"+strconv.Itoa(i+1), pokemon{ID: i + 1, Name: name})
	}
	if c.IsWarmed(ctx, "species_", 3) {
		t.Error("warmed with a missing species")
	}

	c.Set(ctx, "species_3", pokemon{ID: 3, Name: "venusaur"})
	if !c.IsWarmed(ctx, "species_", 3) {
		t.Error("expected warmed")
	}

	clk.Advance(25 * time.Hour)
	if c.IsWarmed(ctx, "species_", 3) {
		t.Error("stale entries counted as warmed")
	}
}

func TestBloomFilterSkipsBackend(t *testing.T) {
	ctx := context.Background()
	mem := storage.NewMemory(0)
	backend := &countingBackend{Backend: mem}

	_ = mem.Set(ctx, "pokedex_cache_preexisting", "{}")
	c, _ := newTestCache(t, backend)

	var got pokemon
	c.Get(ctx, "pokemon_404", &got)
	if n := backend.gets.Load(); n != 0 {
		t.Errorf("backend reads for unknown key = %d, want 0", n)
	}

	c.Get(ctx, "preexisting", &got)
	if n := backend.gets.Load(); n != 1 {
		t.Errorf("key present at construction was filtered out (%d reads)", n)
	}

	c.Set(ctx, "pokemon_1", bulbasaur)
	if !c.Get(ctx, "pokemon_1", &got) {
		t.Error("stored key was filtered out")
	}
}

// storeDuringKeys stores through the cache while the bloom filter lists keys.
type storeDuringKeys struct {
	storage.Backend
	onKeys func()
}

func (b *storeDuringKeys) Keys(ctx context.Context, prefix string) ([]string, error) {
	keys, err := b.Backend.Keys(ctx, prefix)
	if b.onKeys != nil {
		b.onKeys()
	}
	return keys, err
}

func TestBloomRebuildKeepsConcurrentStores(t *testing.T) {
	ctx := context.Background()
	backend := &storeDuringKeys{Backend: storage.NewMemory(0)}
	c, _ := newTestCache(t, backend)

	backend.onKeys = func() {
		backend.onKeys = nil
		if r := c.Set(ctx, "pokemon_1", bulbasaur); !r.OK() {
			t.Errorf("Set during rebuild: %v", r.Status)
		}
	}
	if err := c.bloomFilter.Rebuild(ctx); err != nil {
		t.Fatalf("Rebuild failed: %v", err)
	}

	var got pokemon
	if !c.Get(ctx, "pokemon_1", &got) || got.Name != "bulbasaur" {
		t.Errorf("key stored during rebuild was filtered out: %+v", got)
	}
}

func TestGobSerialization(t *testing.T) {
	ctx := context.Background()
	enc, dec, err := serialization.Lookup(serialization.GobType)
	if err != nil {
		t.Fatal(err)
	}
	c, _ := newTestCache(t, storage.NewMemory(0), func(cfg *config.Config) error {
		cfg.Serialization = config.SerializationConfig{Type: serialization.GobType, Encoder: enc, Decoder: dec}
		return nil
	})

	c.Set(ctx, "pokemon_1", bulbasaur)
	var got pokemon
	if !c.Get(ctx, "pokemon_1", &got) || got.Name != "bulbasaur" {
		t.Errorf("gob round trip = %+v", got)
	}
}
