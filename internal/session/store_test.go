package session

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
)

func TestMemoryStoreTakeIsSingleUse(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	if err := store.Put(ctx, "s1", PaymentIDKey, "PAY-1", time.Minute); err != nil {
		t.Fatalf("Put: %v", err)
	}
	got, err := store.Take(ctx, "s1", PaymentIDKey)
	if err != nil || got != "PAY-1" {
		t.Fatalf("expected PAY-1, got %q (%v)", got, err)
	}
	if _, err := store.Take(ctx, "s1", PaymentIDKey); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound on second take, got %v", err)
	}
}

func TestMemoryStoreIsolatesSessions(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	_ = store.Put(ctx, "s1", PaymentIDKey, "PAY-1", time.Minute)
	if _, err := store.Get(ctx, "s2", PaymentIDKey); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected other session to see nothing, got %v", err)
	}
}

func TestMemoryStoreExpiry(t *testing.T) {
	store := NewMemoryStore()
	now := time.Now()
	store.now = func() time.Time { return now }
	ctx := context.Background()

	_ = store.Put(ctx, "s1", PaymentIDKey, "PAY-1", time.Minute)
	now = now.Add(2 * time.Minute)

	if _, err := store.Take(ctx, "s1", PaymentIDKey); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected expired value to be gone, got %v", err)
	}
}

func TestMemoryStoreSweepsAbandonedEntries(t *testing.T) {
	store := NewMemoryStore()
	now := time.Now()
	store.now = func() time.Time { return now }
	ctx := context.Background()

	for i := 0; i < 10000; i++ {
		_ = store.Put(ctx, fmt.Sprintf("s%d", i), PaymentIDKey, "PAY", time.Second)
	}
	if got := store.Len(); got != 10000 {
		t.Fatalf("expected 10000 live entries, got %d", got)
	}

	now = now.Add(memorySweepInterval)
	_ = store.Put(ctx, "fresh", PaymentIDKey, "PAY-2", time.Minute)

	if got := store.Len(); got != 1 {
		t.Fatalf("expected expired entries to be swept, %d remain", got)
	}
	if v, err := store.Get(ctx, "fresh", PaymentIDKey); err != nil || v != "PAY-2" {
		t.Fatalf("expected fresh entry to survive, got %q (%v)", v, err)
	}
}

func TestMemoryStoreSweepKeepsLiveEntries(t *testing.T) {
	store := NewMemoryStore()
	now := time.Now()
	store.now = func() time.Time { return now }
	ctx := context.Background()

	_ = store.Put(ctx, "short", PaymentIDKey, "PAY-1", time.Second)
	_ = store.Put(ctx, "long", PaymentIDKey, "PAY-2", time.Hour)
	_ = store.Put(ctx, "forever", PaymentIDKey, "PAY-3", 0)

	now = now.Add(2 * memorySweepInterval)
	_ = store.Put(ctx, "trigger", PaymentIDKey, "PAY-4", time.Minute)

	if got := store.Len(); got != 3 {
		t.Fatalf("expected 3 entries after sweep, got %d", got)
	}
}

func TestMemoryStoreConcurrentTakeYieldsOneWinner(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()
	_ = store.Put(ctx, "s1", PaymentIDKey, "PAY-1", time.Minute)

	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		wins int
	)
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := store.Take(ctx, "s1", PaymentIDKey); err == nil {
				mu.Lock()
				wins++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	if wins != 1 {
		t.Fatalf("expected exactly one successful take, got %d", wins)
	}
}

func TestFlashRoundTrip(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	SetFlash(ctx, store, "s1", "error", "Payment Failed")
	flash := PopFlash(ctx, store, "s1")
	if flash == nil || flash.Level != "error" || flash.Message != "Payment Failed" {
		t.Fatalf("unexpected flash %+v", flash)
	}
	if again := PopFlash(ctx, store, "s1"); again != nil {
		t.Fatalf("expected flash to be consumed, got %+v", again)
	}
}

func TestMiddlewareAssignsAndReusesSession(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(Middleware(false))
	r.GET("/", func(c *gin.Context) {
		c.String(http.StatusOK, ID(c))
	})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
	first := w.Body.String()
	if !validID(first) {
		t.Fatalf("expected generated uuid, got %q", first)
	}

	var cookie *http.Cookie
	for _, ck := range w.Result().Cookies() {
		if ck.Name == CookieName {
			cookie = ck
		}
	}
	if cookie == nil || !cookie.HttpOnly {
		t.Fatalf("expected http-only session cookie, got %+v", cookie)
	}

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(cookie)
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if w.Body.String() != first {
		t.Fatalf("expected session %q to be reused, got %q", first, w.Body.String())
	}

	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(&http.Cookie{Name: CookieName, Value: "not-a-uuid"})
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if w.Body.String() == "not-a-uuid" {
		t.Fatalf("expected forged session id to be replaced")
	}
}
