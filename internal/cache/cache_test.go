// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package cache

import "testing"

func TestCacheGetSet(t *testing.T) {
	c := New[string, int](4)
	if _, ok := c.Get("a"); ok {
		t.Fatal("Get on empty cache returned ok")
	}
	c.Set("a", 1)
	c.Set("a", 2)
	if v, ok := c.Get("a"); !ok || v != 2 {
		t.Errorf("Get(a) = %d, %v, want 2, true", v, ok)
	}
	if c.Len() != 1 {
		t.Errorf("Len() = %d, want 1", c.Len())
	}
}

func TestCacheEvictsLeastRecentlyUsed(t *testing.T) {
	c := New[int, int](2)
	c.Set(1, 1)
	c.Set(2, 2)
	c.Get(1) // 2 is now the oldest
	c.Set(3, 3)

	if _, ok := c.Get(2); ok {
		t.Error("entry 2 survived eviction")
	}
	for _, k := range []int{1, 3} {
		if _, ok := c.Get(k); !ok {
			t.Errorf("entry %d was evicted", k)
		}
	}
	if s := c.Stats(); s.Evictions != 1 || s.Len != 2 {
		t.Errorf("Stats() = %+v, want 1 eviction and 2 entries", s)
	}
}

func TestCacheDisabled(t *testing.T) {
	c := New[string, int](0)
	c.Set("a", 1)
	if c.Len() != 0 {
		t.Errorf("Len() = %d, want 0", c.Len())
	}
}

func TestCacheDeleteClear(t *testing.T) {
	c := New[string, int](4)
	c.Set("a", 1)
	c.Set("b", 2)
	if !c.Delete("a") {
		t.Error("Delete(a) = false, want true")
	}
	if c.Delete("a") {
		t.Error("second Delete(a) = true, want false")
	}
	c.Clear()
	if c.Len() != 0 {
		t.Errorf("Len() after Clear = %d, want 0", c.Len())
	}
	c.Set("c", 3)
	if v, ok := c.Get("c"); !ok || v != 3 {
		t.Errorf("Get(c) after Clear = %d, %v", v, ok)
	}
}

func TestStatsHitRate(t *testing.T) {
	c := New[string, int](4)
	if r := c.Stats().HitRate(); r != 0 {
		t.Errorf("HitRate() before lookups = %v, want 0", r)
	}
	c.Set("a", 1)
	c.Get("a")
	c.Get("b")
	s := c.Stats()
	if s.Hits != 1 || s.Misses != 1 || s.HitRate() != 0.5 {
		t.Errorf("Stats() = %+v, HitRate %v", s, s.HitRate())
	}
}

func TestLRUListOrder(t *testing.T) {
	var l lruList[int, string]
	a := l.PushFront(1, "a")
	l.PushFront(2, "b")
	l.PushFront(3, "c")
	l.MoveToFront(a)

	if got := l.RemoveOldest(); got.key != 2 {
		t.Errorf("RemoveOldest() = %d, want 2", got.key)
	}
	if l.head.key != 1 || l.tail.key != 3 || l.len != 2 {
		t.Errorf("list = head %d tail %d len %d", l.head.key, l.tail.key, l.len)
	}
	l.Remove(a)
	l.RemoveOldest()
	if l.RemoveOldest() != nil || l.len != 0 {
		t.Error("list not empty")
	}
}
