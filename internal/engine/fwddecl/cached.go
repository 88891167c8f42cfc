package fwddecl

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"includecut/internal/shared/observability"
	"includecut/internal/shared/util"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/hashicorp/golang-lru/v2"
)

const DefaultMemoSize = 1024

// Memo holds verdicts in memory and, when dir is set, in result files under
// dir. Keys cover the oracle name and the full prompt, so any change to either
// file's content or to the prompt misses. A Memo is shared by every oracle
// instance it wraps, so it survives worker restarts.
type Memo struct {
	cache *lru.Cache[string, Verdict]
	dir   string
}

func NewMemo(size int, dir string) (*Memo, error) {
	if size <= 0 {
		size = DefaultMemoSize
	}
	cache, err := lru.New[string, Verdict](size)
	if err != nil {
		return nil, err
	}
	return &Memo{cache: cache, dir: dir}, nil
}

// Wrap returns an oracle that consults the memo before inner.
func (m *Memo) Wrap(inner Oracle) *Cached {
	return &Cached{inner: inner, memo: m}
}

// Factory wraps every oracle created by f.
func (m *Memo) Factory(f Factory) Factory {
	return func(ctx context.Context) (Oracle, error) {
		inner, err := f(ctx)
		if err != nil {
			return nil, err
		}
		return m.Wrap(inner), nil
	}
}

type Cached struct {
	inner Oracle
	memo  *Memo
}

func (c *Cached) Name() string { return c.inner.Name() }

// Close releases the wrapped oracle.
func (c *Cached) Close() error {
	closeOracle(c.inner)
	return nil
}

func (c *Cached) Check(ctx context.Context, req Request) (Verdict, error) {
	key := cacheKey(c.inner.Name(), req)
	if v, ok := c.memo.cache.Get(key); ok {
		observability.OracleRequestsTotal.WithLabelValues("cached").Inc()
		return v, nil
	}
	if v, ok := c.memo.load(key); ok {
		observability.OracleRequestsTotal.WithLabelValues("cached").Inc()
		c.memo.cache.Add(key, v)
		return v, nil
	}

	v, err := c.inner.Check(ctx, req)
	if err != nil {
		return Verdict{}, err
	}
	c.memo.cache.Add(key, v)
	c.memo.store(key, v)
	return v, nil
}

func cacheKey(name string, req Request) string {
	sum := sha256.Sum256([]byte(name + "\x00" + systemPrompt + "\x00" + BuildPrompt(req)))
	return hex.EncodeToString(sum[:])
}

func (m *Memo) path(key string) string {
	return filepath.Join(m.dir, "result-"+key+".json")
}

func (m *Memo) load(key string) (Verdict, bool) {
	if m.dir == "" {
		return Verdict{}, false
	}
	data, err := os.ReadFile(m.path(key))
	if err != nil {
		return Verdict{}, false
	}
	var v Verdict
	if err := json.Unmarshal(data, &v); err != nil {
		slog.Warn("ignoring unreadable verdict cache entry", "path", m.path(key), "error", err)
		return Verdict{}, false
	}
	return v, true
}

func (m *Memo) store(key string, v Verdict) {
	if m.dir == "" {
		return
	}
	data, err := json.Marshal(v)
	if err != nil {
		return
	}
	if err := util.WriteFileWithDirs(m.path(key), data, 0o644); err != nil {
		slog.Warn("failed to write verdict cache entry", "path", m.path(key), "error", err)
	}
}
