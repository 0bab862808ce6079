package sweetiebot

import (
	"sync"
	"sync/atomic"
)

// SaturationLimit is a ring buffer of event times used to cap how many events can happen within a period
type SaturationLimit struct {
	lock  sync.Mutex
	times []int64
	index int
}

// NewSaturationLimit creates a limiter that remembers the last size events
func NewSaturationLimit(size int) *SaturationLimit {
	if size < 1 {
		size = 1
	}
	return &SaturationLimit{times: make([]int64, size)}
}

func realmod(x int, m int) int {
	x %= m
	if x < 0 {
		x += m
	}
	return x
}

// Append records an event at the given unix time
func (s *SaturationLimit) Append(t int64) {
	s.lock.Lock()
	s.index = realmod(s.index+1, len(s.times))
	s.times[s.index] = t
	s.lock.Unlock()
}

// Check returns true if adding another event at curtime would mean more than num events within period
func (s *SaturationLimit) Check(num int, period int64, curtime int64) bool {
	s.lock.Lock()
	defer s.lock.Unlock()
	if num > len(s.times) {
		s.grow(num)
	}
	i := realmod(s.index-(num-1), len(s.times))
	return s.times[i] != 0 && (curtime-s.times[i]) <= period
}

// grow must be called with the lock held
func (s *SaturationLimit) grow(size int) {
	n := make([]int64, size)
	for k := 0; k < len(s.times); k++ { // oldest first, so the newest entry stays at the end
		n[size-len(s.times)+k] = s.times[realmod(s.index+1+k, len(s.times))]
	}
	s.times = n
	s.index = size - 1
}

// RateLimit returns true and stores now in prevtime if more than interval seconds have passed since prevtime
func RateLimit(prevtime *int64, interval int64, now int64) bool {
	d := atomic.LoadInt64(prevtime)
	if now-d > interval {
		return atomic.CompareAndSwapInt64(prevtime, d, now) // another goroutine already took this slot if the swap fails
	}
	return false
}

// AtomicBool is a bool safe for concurrent use
type AtomicBool struct {
	flag uint32
}

// Get the value
func (b *AtomicBool) Get() bool {
	return atomic.LoadUint32(&b.flag) != 0
}

// Set the value
func (b *AtomicBool) Set(value bool) {
	var v uint32
	if value {
		v = 1
	}
	atomic.StoreUint32(&b.flag, v)
}
