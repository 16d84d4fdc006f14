// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package cache

// lruNode is a node in a doubly-linked LRU list. It carries the key so
// eviction can delete the map entry in O(1).
type lruNode[K comparable, V any] struct {
	key   K
	value V
	prev  *lruNode[K, V]
	next  *lruNode[K, V]
}

// lruList is a doubly-linked list, most recently used at the head.
// It is not thread-safe.
type lruList[K comparable, V any] struct {
	head *lruNode[K, V]
	tail *lruNode[K, V]
	len  int
}

// PushFront inserts a new node at the head and returns it.
func (l *lruList[K, V]) PushFront(key K, value V) *lruNode[K, V] {
	n := &lruNode[K, V]{key: key, value: value}
	l.link(n)
	return n
}

// MoveToFront marks n as most recently used.
func (l *lruList[K, V]) MoveToFront(n *lruNode[K, V]) {
	if n == l.head {
		return
	}
	l.unlink(n)
	l.link(n)
}

// RemoveOldest unlinks the tail and returns it, or nil if the list is empty.
func (l *lruList[K, V]) RemoveOldest() *lruNode[K, V] {
	n := l.tail
	if n != nil {
		l.unlink(n)
	}
	return n
}

// Remove unlinks n.
func (l *lruList[K, V]) Remove(n *lruNode[K, V]) {
	l.unlink(n)
}

func (l *lruList[K, V]) link(n *lruNode[K, V]) {
	n.prev = nil
	n.next = l.head
	if l.head != nil {
		l.head.prev = n
	}
	l.head = n
	if l.tail == nil {
		l.tail = n
	}
	l.len++
}

func (l *lruList[K, V]) unlink(n *lruNode[K, V]) {
	if n.prev != nil {
		n.prev.next = n.next
	} else {
		l.head = n.next
	}
	if n.next != nil {
		n.next.prev = n.prev
	} else {
		l.tail = n.prev
	}
	n.prev = nil
	n.next = nil
	l.len--
}
