package tui

// RowUpdateMsg sets fields of the row identified by Key. Fields are keyed by
// column header.
type RowUpdateMsg struct {
	Key    string
	Fields map[string]string
}

// WorkDoneMsg tells the table the batch has finished.
type WorkDoneMsg struct{}

// ErrorMsg aborts the table with a fatal error.
type ErrorMsg struct {
	Err error
}
