package playback

import "container/heap"

// queuedChunk is one enqueued playback chunk: an independent byte-buffer
// copy (never aliasing a caller's buffer), its utterance id, sample rate,
// and the arrival sequence assigned at enqueue time.
type queuedChunk struct {
	audio       []byte
	utteranceID string
	sampleRate  int
	seq         uint64
}

// chunkHeap orders queuedChunks by (utteranceID, seq), the priority key
// named in the data model. In steady state only one utterance's chunks are
// ever resident (a switch empties the queue first), so this reduces to
// ordering by arrival sequence — the utterance_id comparison exists for the
// narrow window where a switch and a pop race.
type chunkHeap []*queuedChunk

func (h chunkHeap) Len() int { return len(h) }
func (h chunkHeap) Less(i, j int) bool {
	if h[i].utteranceID != h[j].utteranceID {
		return h[i].utteranceID < h[j].utteranceID
	}
	return h[i].seq < h[j].seq
}
func (h chunkHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }

func (h *chunkHeap) Push(x any) {
	*h = append(*h, x.(*queuedChunk))
}

func (h *chunkHeap) Pop() any {
	old := *h
	n := len(old)
	item := old[n-1]
	old[n-1] = nil
	*h = old[:n-1]
	return item
}

var _ heap.Interface = (*chunkHeap)(nil)
