package capture

// Batch is an ordered, capped list of captures. It is not safe for concurrent
// use; the pipeline guards it.
type Batch struct {
	limit int
	items []ImageRef
}

func NewBatch(limit int) *Batch {
	return &Batch{limit: limit, items: make([]ImageRef, 0, limit)}
}

func (b *Batch) Limit() int { return b.limit }
func (b *Batch) Len() int   { return len(b.items) }
func (b *Batch) Full() bool { return len(b.items) >= b.limit }

// Add appends ref, failing with ErrBatchFull once the limit is reached.
func (b *Batch) Add(ref ImageRef) error {
	if b.Full() {
		return ErrBatchFull
	}
	b.items = append(b.items, ref)
	return nil
}

// Remove drops the capture at index i.
func (b *Batch) Remove(i int) (ImageRef, error) {
	if i < 0 || i >= len(b.items) {
		return ImageRef{}, ErrIndexOutOfRange
	}
	ref := b.items[i]
	b.items = append(b.items[:i], b.items[i+1:]...)
	return ref, nil
}

// RemoveIDs drops every capture whose ID is in ids and reports how many went.
func (b *Batch) RemoveIDs(ids []string) int {
	drop := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		drop[id] = struct{}{}
	}
	kept := b.items[:0]
	for _, it := range b.items {
		if _, ok := drop[it.ID]; !ok {
			kept = append(kept, it)
		}
	}
	removed := len(b.items) - len(kept)
	clear(b.items[len(kept):])
	b.items = kept
	return removed
}

// Items returns a copy of the captures in insertion order.
func (b *Batch) Items() []ImageRef {
	out := make([]ImageRef, len(b.items))
	copy(out, b.items)
	return out
}

func (b *Batch) Clear() {
	clear(b.items)
	b.items = b.items[:0]
}
