package event

import (
	"bytes"
	"testing"
	"time"
)

func TestStreamDeliversInOrderAndTerminatesOnce(t *testing.T) {
	t.Parallel()

	s := NewStream("run-1", "s-1")
	go func() {
		defer s.Finish()
		s.Emit(Event{Kind: KindStageEntered, Stage: "verify"})
		s.Emit(Event{Kind: KindToolInvoked, Tool: "verify_license"})
		s.Emit(Event{Kind: KindToolResult, Tool: "verify_license"})
		s.Emit(Event{Kind: KindStageCompleted, Stage: "verify"})
		s.Emit(Event{Kind: KindFinalOutput, Text: "done"})
		if s.Emit(Event{Kind: KindFailed, Text: "late"}) {
			t.Errorf("Emit() after terminal event was delivered")
		}
	}()

	var kinds []Kind
	for ev := range s.Events() {
		if ev.RunID != "run-1" || ev.SessionID != "s-1" {
			t.Fatalf("event ids = %q/%q", ev.RunID, ev.SessionID)
		}
		if ev.Seq != len(kinds)+1 {
			t.Fatalf("Seq = %d, want %d", ev.Seq, len(kinds)+1)
		}
		kinds = append(kinds, ev.Kind)
	}
	s.Wait()

	want := []Kind{KindStageEntered, KindToolInvoked, KindToolResult, KindStageCompleted, KindFinalOutput}
	if len(kinds) != len(want) {
		t.Fatalf("kinds = %v, want %v", kinds, want)
	}
	for i := range want {
		if kinds[i] != want[i] {
			t.Fatalf("kinds[%d] = %s, want %s", i, kinds[i], want[i])
		}
	}

	last, ok := s.Terminal()
	if !ok || last.Kind != KindFinalOutput || last.Text != "done" {
		t.Fatalf("Terminal() = %+v, %v", last, ok)
	}
}

func TestStreamEventsIsSingleUse(t *testing.T) {
	t.Parallel()

	s := NewStream("run-1", "s-1")
	s.Emit(Event{Kind: KindFinalOutput, Text: "ok"})
	s.Finish()

	first := 0
	for range s.Events() {
		first++
	}
	second := 0
	for range s.Events() {
		second++
	}
	if first != 1 || second != 0 {
		t.Fatalf("first pass = %d, second pass = %d, want 1 and 0", first, second)
	}
}

func TestStreamConsumerCloseDoesNotStopProducer(t *testing.T) {
	t.Parallel()

	s := NewStream("run-1", "s-1")
	release := make(chan struct{})
	go func() {
		defer s.Finish()
		s.Emit(Event{Kind: KindStageEntered, Stage: "license"})
		<-release
		for i := 0; i < 3*defaultBuffer; i++ {
			s.Emit(Event{Kind: KindToolResult, Tool: "x"})
		}
		s.Emit(Event{Kind: KindFinalOutput, Text: "finished"})
	}()

	for ev := range s.Events() {
		if ev.Kind == KindStageEntered {
			break
		}
	}
	close(release)

	select {
	case <-s.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("producer blocked after consumer closed the stream")
	}
	last, ok := s.Terminal()
	if !ok || last.Text != "finished" {
		t.Fatalf("Terminal() = %+v, %v", last, ok)
	}
}

func TestStreamTerminalDoesNotWaitOnBlockedProducer(t *testing.T) {
	t.Parallel()

	s := NewStream("run-1", "s-1")
	emitted := make(chan bool, 1)
	go func() {
		for i := 0; i < defaultBuffer; i++ {
			s.Emit(Event{Kind: KindToolResult, Tool: "x"})
		}
		// The buffer is full and nobody reads, so this send blocks.
		emitted <- s.Emit(Event{Kind: KindToolResult, Tool: "x"})
	}()

	deadline := time.After(2 * time.Second)
	for {
		s.mu.Lock()
		seq := s.seq
		s.mu.Unlock()
		if seq == defaultBuffer+1 {
			break
		}
		select {
		case <-deadline:
			t.Fatalf("producer stalled at seq %d", seq)
		case <-time.After(time.Millisecond):
		}
	}

	got := make(chan bool, 1)
	go func() {
		_, ok := s.Terminal()
		got <- ok
	}()
	select {
	case ok := <-got:
		if ok {
			t.Fatal("Terminal() ok = true before any terminal event")
		}
	case <-time.After(time.Second):
		t.Fatal("Terminal() blocked behind a producer waiting on a full buffer")
	}

	s.Close()
	select {
	case delivered := <-emitted:
		if delivered {
			t.Fatal("Emit() reported delivery after Close")
		}
	case <-time.After(time.Second):
		t.Fatal("Emit() still blocked after Close")
	}
	s.Finish()
	s.Wait()
}

func TestStreamFinishWithoutTerminal(t *testing.T) {
	t.Parallel()

	s := NewStream("run-1", "s-1")
	s.Emit(Event{Kind: KindStageEntered})
	s.Finish()
	s.Finish()

	n := 0
	for range s.Events() {
		n++
	}
	if n != 1 {
		t.Fatalf("events = %d, want 1", n)
	}
	if _, ok := s.Terminal(); ok {
		t.Fatal("Terminal() ok = true without terminal event")
	}
	if s.Emit(Event{Kind: KindFinalOutput}) {
		t.Fatal("Emit() after Finish was delivered")
	}
}

func TestWriteSSE(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		text string
		want string
	}{
		{name: "single line", text: "tool called: verify_license", want: "data: tool called: verify_license\n\n"},
		{name: "multi line", text: "开户成功！\r\n账户：1001", want: "data: 开户成功！\ndata: 账户：1001\n\n"},
		{name: "empty", text: "", want: "data: \n\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			var buf bytes.Buffer
			if err := WriteSSE(&buf, tt.text); err != nil {
				t.Fatalf("WriteSSE() error = %v", err)
			}
			if buf.String() != tt.want {
				t.Fatalf("WriteSSE() = %q, want %q", buf.String(), tt.want)
			}
		})
	}
}

func TestDisplay(t *testing.T) {
	t.Parallel()

	if got := Display(Event{Kind: KindToolResult, Tool: "check_blacklist", Text: "clear"}); got != "tool output: check_blacklist: clear" {
		t.Fatalf("Display(tool_result) = %q", got)
	}
	if got := Display(Event{Kind: KindFinalOutput, Text: "开户成功！"}); got != "开户成功！" {
		t.Fatalf("Display(final_output) = %q", got)
	}
}
