/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package cache

import (
	"container/heap"
	"context"
	"sort"
	"sync"
	"time"
)

// MemoryStore is a process-local Store used when Redis is not configured.
// Expired entries are dropped lazily on read.
type MemoryStore struct {
	mu      sync.Mutex
	entries map[string]memoryEntry
	now     func() time.Time
}

type memoryEntry struct {
	value   []byte
	expires time.Time
}

// NewMemoryStore returns an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		entries: make(map[string]memoryEntry),
		now:     time.Now,
	}
}

func (s *MemoryStore) MGet(_ context.Context, keys ...string) ([][]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	out := make([][]byte, len(keys))
	for i, key := range keys {
		entry, ok := s.entries[key]
		if !ok {
			continue
		}
		if !entry.expires.IsZero() && !now.Before(entry.expires) {
			delete(s.entries, key)
			continue
		}
		out[i] = append([]byte(nil), entry.value...)
	}
	return out, nil
}

func (s *MemoryStore) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry := memoryEntry{value: append([]byte(nil), value...)}
	if ttl > 0 {
		entry.expires = s.now().Add(ttl)
	}
	s.entries[key] = entry
	return nil
}

func (s *MemoryStore) Del(_ context.Context, keys ...string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, key := range keys {
		delete(s.entries, key)
	}
	return nil
}

// MemoryIndex is a RecomputeIndex backed by a binary min-heap.
type MemoryIndex struct {
	mu    sync.Mutex
	heap  indexHeap
	items map[string]*indexItem
}

type indexItem struct {
	member string
	score  int64
	pos    int
}

type indexHeap []*indexItem

func (h indexHeap) Len() int { return len(h) }

func (h indexHeap) Less(i, j int) bool {
	if h[i].score != h[j].score {
		return h[i].score < h[j].score
	}
	return h[i].member < h[j].member
}

func (h indexHeap) Swap(i, j int) {
	h[i], h[j] = h[j], h[i]
	h[i].pos = i
	h[j].pos = j
}

func (h *indexHeap) Push(x any) {
	item := x.(*indexItem)
	item.pos = len(*h)
	*h = append(*h, item)
}

func (h *indexHeap) Pop() any {
	old := *h
	n := len(old)
	item := old[n-1]
	old[n-1] = nil
	*h = old[:n-1]
	return item
}

// NewMemoryIndex returns an empty index.
func NewMemoryIndex() *MemoryIndex {
	return &MemoryIndex{items: make(map[string]*indexItem)}
}

func (x *MemoryIndex) Schedule(_ context.Context, member string, at time.Time) error {
	x.mu.Lock()
	defer x.mu.Unlock()

	score := at.Unix()
	if item, ok := x.items[member]; ok {
		item.score = score
		heap.Fix(&x.heap, item.pos)
		return nil
	}

	item := &indexItem{member: member, score: score}
	heap.Push(&x.heap, item)
	x.items[member] = item
	return nil
}

// Due walks only the heap nodes at or below upper.
func (x *MemoryIndex) Due(_ context.Context, upper time.Time) ([]string, error) {
	x.mu.Lock()
	defer x.mu.Unlock()

	limit := upper.Unix()
	var due []*indexItem
	stack := []int{0}
	for len(stack) > 0 {
		i := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if i >= len(x.heap) || x.heap[i].score > limit {
			continue
		}
		due = append(due, x.heap[i])
		stack = append(stack, 2*i+1, 2*i+2)
	}

	sort.Slice(due, func(i, j int) bool {
		if due[i].score != due[j].score {
			return due[i].score < due[j].score
		}
		return due[i].member < due[j].member
	})

	members := make([]string, len(due))
	for i, item := range due {
		members[i] = item.member
	}
	return members, nil
}

func (x *MemoryIndex) Remove(_ context.Context, members ...string) error {
	x.mu.Lock()
	defer x.mu.Unlock()

	for _, member := range members {
		item, ok := x.items[member]
		if !ok {
			continue
		}
		heap.Remove(&x.heap, item.pos)
		delete(x.items, member)
	}
	return nil
}

// Len returns the number of scheduled members.
func (x *MemoryIndex) Len(context.Context) (int64, error) {
	x.mu.Lock()
	defer x.mu.Unlock()
	return int64(len(x.heap)), nil
}
