package window

import "sync"

// Drained is the result of draining a non-empty Buffer.
type Drained struct {
	Average float64
	Count   int
}

// Buffer collects samples for one aggregation tier. Only the mean of the
// samples is ever needed so it keeps a running sum and count.
type Buffer struct {
	name  string
	sum   float64
	count int
	sync.Mutex
}

func New(name string) *Buffer {
	return &Buffer{name: name}
}

func (b *Buffer) Name() string {
	return b.name
}

func (b *Buffer) Append(v float64) {
	b.Lock()
	b.sum += v
	b.count++
	b.Unlock()
}

// DrainAverage removes all held samples and returns their mean.
// ok is false if the buffer was empty.
func (b *Buffer) DrainAverage() (d Drained, ok bool) {
	b.Lock()
	defer b.Unlock()
	if b.count == 0 {
		return Drained{}, false
	}
	d = Drained{
		Average: b.sum / float64(b.count),
		Count:   b.count,
	}
	b.sum = 0
	b.count = 0
	return d, true
}

// Len returns the number of samples waiting for the next drain.
func (b *Buffer) Len() int {
	b.Lock()
	defer b.Unlock()
	return b.count
}
