package cache

import (
	"sync"
	"testing"
	"time"

	plandomain "github.com/smallbiznis/inspectconnect/internal/plan/domain"
)

type manualTime struct {
	mu  sync.Mutex
	now time.Time
}

func (m *manualTime) Now() time.Time {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.now
}

func (m *manualTime) Advance(d time.Duration) {
	m.mu.Lock()
	m.now = m.now.Add(d)
	m.mu.Unlock()
}

func TestTTLCacheExpires(t *testing.T) {
	clock := &manualTime{now: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)}
	c := newTTLCache[string, int](clock.Now)

	c.Set("a", 1, time.Minute)
	c.Set("b", 2, 0)

	if v, ok := c.Get("a"); !ok || v != 1 {
		t.Fatalf("expected a=1, got %v %v", v, ok)
	}

	clock.Advance(time.Minute)
	if _, ok := c.Get("a"); ok {
		t.Fatalf("expected a to expire")
	}
	if v, ok := c.Get("b"); !ok || v != 2 {
		t.Fatalf("expected b to persist, got %v %v", v, ok)
	}

	c.Delete("b")
	if _, ok := c.Get("b"); ok {
		t.Fatalf("expected b to be deleted")
	}
}

func TestPlanCacheInvalidate(t *testing.T) {
	c := NewPlanCache()
	c.SetActive([]plandomain.Plan{{ID: 1, Name: "Pro"}})
	c.SetByUserType(1, plandomain.Plan{ID: 1, Name: "Pro"})

	plans, ok := c.GetActive()
	if !ok || len(plans) != 1 {
		t.Fatalf("expected cached active plans")
	}
	plans[0].Name = "mutated"
	again, _ := c.GetActive()
	if again[0].Name != "Pro" {
		t.Fatalf("cached slice must not be shared with callers")
	}

	c.Invalidate()
	if _, ok := c.GetActive(); ok {
		t.Fatalf("expected active plans to be purged")
	}
	if _, ok := c.GetByUserType(1); ok {
		t.Fatalf("expected plan by type to be purged")
	}
}

func TestPlanCacheIgnoresEmptyValues(t *testing.T) {
	c := NewPlanCache()
	c.SetActive(nil)
	c.SetByUserType(0, plandomain.Plan{})

	if _, ok := c.GetActive(); ok {
		t.Fatalf("empty list must not be cached")
	}
	if _, ok := c.GetByUserType(0); ok {
		t.Fatalf("zero plan must not be cached")
	}
}
