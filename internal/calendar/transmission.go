/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package calendar

import (
	"container/heap"
	"time"

	"github.com/iago1460/django-radio-sub000/internal/models"
	"github.com/iago1460/django-radio-sub000/internal/recurrence"
)

// Transmission is one concrete airing of a schedule.
type Transmission struct {
	Schedule *models.Schedule
	StartsAt time.Time
}

// EndsAt returns the airing's end, the start plus the programme
// runtime.
func (t Transmission) EndsAt() time.Time {
	if t.Schedule == nil || t.Schedule.Programme == nil {
		return t.StartsAt
	}
	return t.StartsAt.Add(t.Schedule.Programme.Runtime())
}

// mergeCursor is one schedule's position in the merged stream.
type mergeCursor struct {
	schedule *models.Schedule
	next     recurrence.Next
	head     time.Time
}

type mergeHeap []*mergeCursor

func (h mergeHeap) Len() int { return len(h) }

// Equal heads order by schedule ID so the merged stream is
// deterministic regardless of input order.
func (h mergeHeap) Less(i, j int) bool {
	if h[i].head.Equal(h[j].head) {
		return h[i].schedule.ID < h[j].schedule.ID
	}
	return h[i].head.Before(h[j].head)
}

func (h mergeHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }

func (h *mergeHeap) Push(x interface{}) { *h = append(*h, x.(*mergeCursor)) }

func (h *mergeHeap) Pop() interface{} {
	old := *h
	n := len(old)
	c := old[n-1]
	*h = old[:n-1]
	return c
}

// MergeIterator yields transmissions from many schedules in start-time
// order without materializing any schedule's full sequence.
type MergeIterator struct {
	h mergeHeap
}

// Merge starts a merged stream over the given schedules from `after`
// on, applying each schedule's window clamping and the airing-in-
// progress rule.
func Merge(schedules []*models.Schedule, after time.Time) *MergeIterator {
	m := &MergeIterator{h: make(mergeHeap, 0, len(schedules))}
	for _, s := range schedules {
		c := &mergeCursor{schedule: s, next: DateIterator(s, after)}
		if t, ok := c.next(); ok {
			c.head = t
			m.h = append(m.h, c)
		}
	}
	heap.Init(&m.h)
	return m
}

// Next returns the next transmission in order, or false when every
// schedule is exhausted.
func (m *MergeIterator) Next() (Transmission, bool) {
	if m.h.Len() == 0 {
		return Transmission{}, false
	}
	c := m.h[0]
	tr := Transmission{Schedule: c.schedule, StartsAt: c.head}
	if t, ok := c.next(); ok {
		c.head = t
		heap.Fix(&m.h, 0)
	} else {
		heap.Pop(&m.h)
	}
	return tr, true
}

// Between returns every transmission with airtime inside [after,
// before], ordered by start then schedule ID.
func Between(schedules []*models.Schedule, after, before time.Time) []Transmission {
	var out []Transmission
	m := Merge(schedules, after)
	for tr, ok := m.Next(); ok; tr, ok = m.Next() {
		if tr.StartsAt.After(before) {
			break
		}
		out = append(out, tr)
	}
	return out
}

// At returns the transmissions on air at the given instant: started at
// or before it and not yet finished.
func At(schedules []*models.Schedule, instant time.Time) []Transmission {
	var out []Transmission
	for _, s := range schedules {
		t, ok := DateBefore(s, instant)
		if !ok {
			continue
		}
		tr := Transmission{Schedule: s, StartsAt: t}
		if tr.EndsAt().After(instant) {
			out = append(out, tr)
		}
	}
	return out
}
