package behavior

import "github.com/sentra-sec/sentra/internal/domain/models"

// window is a fixed-capacity ring of event summaries. Appending past capacity
// overwrites the oldest entry; no slice reallocation happens after creation.
type window struct {
	buf  []models.EventSummary
	head int // index of the oldest entry
	size int
}

func newWindow(capacity int) *window {
	return &window{buf: make([]models.EventSummary, capacity)}
}

func (w *window) append(s models.EventSummary) {
	if w.size < len(w.buf) {
		w.buf[(w.head+w.size)%len(w.buf)] = s
		w.size++
		return
	}
	w.buf[w.head] = s
	w.head = (w.head + 1) % len(w.buf)
}

// ordered returns the entries oldest first.
func (w *window) ordered() []models.EventSummary {
	out := make([]models.EventSummary, w.size)
	for i := 0; i < w.size; i++ {
		out[i] = w.buf[(w.head+i)%len(w.buf)]
	}
	return out
}

// recent returns the newest n entries, oldest first.
func (w *window) recent(n int) []models.EventSummary {
	if n > w.size {
		n = w.size
	}
	out := make([]models.EventSummary, n)
	for i := 0; i < n; i++ {
		out[i] = w.buf[(w.head+w.size-n+i)%len(w.buf)]
	}
	return out
}
