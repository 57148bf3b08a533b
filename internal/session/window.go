package session

// Window is a fixed-capacity ring of the most recent candidate labels.
// Once full, pushing a new label evicts the oldest one. The capacity bound
// is structural: the buffer never grows past the stability threshold it was
// created with.
type Window struct {
	buf  []string
	head int
	size int
}

func NewWindow(capacity int) *Window {
	if capacity < 1 {
		capacity = 1
	}
	return &Window{buf: make([]string, capacity)}
}

func (w *Window) Cap() int { return len(w.buf) }

func (w *Window) Len() int { return w.size }

// Push appends a label, evicting the oldest entry when the window is full.
func (w *Window) Push(label string) {
	tail := (w.head + w.size) % len(w.buf)
	w.buf[tail] = label
	if w.size < len(w.buf) {
		w.size++
		return
	}
	w.head = (w.head + 1) % len(w.buf)
}

// Uniform reports whether the window is full and every entry is identical,
// returning that label when so.
func (w *Window) Uniform() (string, bool) {
	if w.size < len(w.buf) {
		return "", false
	}
	first := w.buf[w.head]
	for i := 1; i < w.size; i++ {
		if w.buf[(w.head+i)%len(w.buf)] != first {
			return "", false
		}
	}
	return first, true
}

func (w *Window) Reset() {
	w.head = 0
	w.size = 0
}

// Values returns the window contents oldest-first.
func (w *Window) Values() []string {
	out := make([]string, 0, w.size)
	for i := 0; i < w.size; i++ {
		out = append(out, w.buf[(w.head+i)%len(w.buf)])
	}
	return out
}
