package tui

import (
	"fmt"
	"sync"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/dustin/go-humanize"

	"hudo/internal/engine"
)

// downloadThrottle limits how often byte-count updates reach the table.
const downloadThrottle = 200 * time.Millisecond

// ToolColumns is the table layout for install, uninstall and import.
func ToolColumns() []Column {
	return []Column{
		{Header: "TOOL", Width: 8},
		{Header: "STATUS", Width: 12},
		{Header: "VERSION", Width: 12},
		{Header: "DETAIL", Width: 44},
	}
}

// NewToolTable builds a table with one pending row per tool.
func NewToolTable(title string, ids []string) ProgressModel {
	m := NewProgressModel(title, ToolColumns())
	for _, id := range ids {
		m.AddRow(id, []string{id, "pending", "", ""})
	}
	return m
}

// Observer adapts engine events to row updates. Download byte counts are
// throttled per tool; stage changes always go through.
func Observer(send func(tea.Msg)) func(engine.Event) {
	var mu sync.Mutex
	last := map[string]time.Time{}
	return func(ev engine.Event) {
		if ev.Stage == engine.StageDownload && ev.Done > 0 {
			mu.Lock()
			now := time.Now()
			recent := now.Sub(last[ev.Tool]) < downloadThrottle && ev.Done != ev.Total
			if !recent {
				last[ev.Tool] = now
			}
			mu.Unlock()
			if recent {
				return
			}
		}
		send(RowUpdateMsg{Key: ev.Tool, Fields: EventFields(ev)})
	}
}

// EventFields maps an engine event to column values.
func EventFields(ev engine.Event) map[string]string {
	fields := map[string]string{
		"TOOL":   ev.Tool,
		"STATUS": string(ev.Stage),
		"DETAIL": "",
	}
	if ev.Version != "" {
		fields["VERSION"] = ev.Version
	}
	switch {
	case ev.Err != nil:
		fields["DETAIL"] = ev.Err.Error()
	case ev.Stage == engine.StageDownload && ev.Total > 0:
		fields["DETAIL"] = fmt.Sprintf("%s / %s", humanize.Bytes(uint64(ev.Done)), humanize.Bytes(uint64(ev.Total)))
	case ev.Stage == engine.StageDownload && ev.Done > 0:
		fields["DETAIL"] = humanize.Bytes(uint64(ev.Done))
	}
	return fields
}
