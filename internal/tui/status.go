package tui

import (
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
)

// StatusWriter keeps one spinning line on w while work without per-tool
// rows runs, such as a thorough probe of the whole catalog.
type StatusWriter struct {
	w      io.Writer
	frames spinner.Spinner

	mu    sync.Mutex
	text  string
	since time.Time

	quit chan struct{}
	once sync.Once
	wg   sync.WaitGroup
}

// NewStatusWriter starts drawing on w; call Stop before writing anything
// else to w.
func NewStatusWriter(w io.Writer) *StatusWriter {
	sw := &StatusWriter{
		w:      w,
		frames: spinner.MiniDot,
		since:  time.Now(),
		quit:   make(chan struct{}),
	}
	sw.wg.Add(1)
	go sw.draw()
	return sw
}

// Update sets the text shown after the spinner. The elapsed clock restarts.
func (sw *StatusWriter) Update(text string) {
	sw.mu.Lock()
	defer sw.mu.Unlock()
	sw.text = text
	sw.since = time.Now()
}

// Stop erases the line. Safe to call more than once.
func (sw *StatusWriter) Stop() {
	sw.once.Do(func() {
		close(sw.quit)
		sw.wg.Wait()
		fmt.Fprint(sw.w, "\r\033[K")
	})
}

func (sw *StatusWriter) draw() {
	defer sw.wg.Done()
	ticker := time.NewTicker(sw.frames.FPS)
	defer ticker.Stop()

	for frame := 0; ; frame++ {
		select {
		case <-sw.quit:
			return
		case <-ticker.C:
		}
		sw.mu.Lock()
		text, since := sw.text, sw.since
		sw.mu.Unlock()
		glyph := ActiveStyle.Render(sw.frames.Frames[frame%len(sw.frames.Frames)])
		fmt.Fprintf(sw.w, "\r\033[K%s %s (%s)", glyph, text, elapsed(time.Since(since)))
	}
}

// elapsed is milliseconds under a second, tenths under ten seconds, then
// whole seconds and minutes.
func elapsed(d time.Duration) string {
	switch {
	case d < time.Second:
		return fmt.Sprintf("%dms", d.Milliseconds())
	case d < 10*time.Second:
		return fmt.Sprintf("%.1fs", d.Seconds())
	case d < time.Minute:
		return d.Truncate(time.Second).String()
	}
	d = d.Truncate(time.Second)
	return fmt.Sprintf("%dm%02ds", int(d/time.Minute), int(d%time.Minute/time.Second))
}
