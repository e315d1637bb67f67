package event

import (
	"bufio"
	"io"
	"strings"
)

// WriteSSE encodes text as one server-sent event. Every line of text becomes its own
// data field so multi-line replies survive the framing.
func WriteSSE(w io.Writer, text string) error {
	bw := bufio.NewWriter(w)
	text = strings.ReplaceAll(text, "\r\n", "\n")
	for _, line := range strings.Split(text, "\n") {
		if _, err := bw.WriteString("data: " + line + "\n"); err != nil {
			return err
		}
	}
	if _, err := bw.WriteString("\n"); err != nil {
		return err
	}
	return bw.Flush()
}

// Display renders the user-visible text of an event.
func Display(ev Event) string {
	switch ev.Kind {
	case KindStageEntered:
		return "stage entered: " + ev.Stage
	case KindToolInvoked:
		return "tool called: " + ev.Tool
	case KindToolResult:
		if ev.Text == "" {
			return "tool output: " + ev.Tool
		}
		return "tool output: " + ev.Tool + ": " + ev.Text
	case KindStageCompleted:
		return "stage completed: " + ev.Stage
	default:
		return ev.Text
	}
}
