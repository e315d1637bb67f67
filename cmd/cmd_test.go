package cmd

import (
	"bytes"
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	orchestratorx "github.com/tanpawarit/chative-bank-onboarding/agent/agents/orchestrator"
	eventx "github.com/tanpawarit/chative-bank-onboarding/agent/event"
	statex "github.com/tanpawarit/chative-bank-onboarding/agent/state"
	toolx "github.com/tanpawarit/chative-bank-onboarding/agent/tool"
)

type closerFunc func() error

func (f closerFunc) Close() error { return f() }

type chatWorkflow struct {
	requests []orchestratorx.Request
	resets   int
}

func (w *chatWorkflow) HandleMessage(context.Context, orchestratorx.Request) (orchestratorx.Response, error) {
	return orchestratorx.Response{}, nil
}

func (w *chatWorkflow) Stream(_ context.Context, req orchestratorx.Request) *eventx.Stream {
	w.requests = append(w.requests, req)
	stream := eventx.NewStream("run", req.SessionID)
	go func() {
		defer stream.Finish()
		stream.Emit(eventx.Event{Kind: eventx.KindStageEntered, Stage: "license"})
		stream.Emit(eventx.Event{Kind: eventx.KindFinalOutput, Text: "reply to " + req.Text})
	}()
	return stream
}

func (w *chatWorkflow) Reset(context.Context, string) error {
	w.resets++
	return nil
}

func (w *chatWorkflow) Session(context.Context, string) (statex.Session, error) {
	return statex.Session{}, nil
}

func TestChatLoop(t *testing.T) {
	t.Parallel()

	img := filepath.Join(t.TempDir(), "license.png")
	require.NoError(t, os.WriteFile(img, []byte("png"), 0o600))

	input := strings.Join([]string{
		"",
		"/image " + img,
		"上传营业执照",
		"/reset",
		"我要开户",
		"/quit",
		"never sent",
	}, "\n")

	wf := &chatWorkflow{}
	var out bytes.Buffer
	require.NoError(t, chatLoop(context.Background(), wf, "s-chat", strings.NewReader(input), &out))

	require.Len(t, wf.requests, 2)
	assert.Equal(t, "s-chat", wf.requests[0].SessionID)
	require.Len(t, wf.requests[0].Images, 1)
	assert.Equal(t, []byte("png"), wf.requests[0].Images[0])
	assert.Empty(t, wf.requests[1].Images)
	assert.Equal(t, 1, wf.resets)

	text := out.String()
	assert.Contains(t, text, "session s-chat")
	assert.Contains(t, text, "  · stage entered: license")
	assert.Contains(t, text, "reply to 我要开户")
	assert.Contains(t, text, "session cleared")
	assert.NotContains(t, text, "never sent")
}

func TestBuildGatewayModes(t *testing.T) {
	t.Parallel()

	gw, err := buildGateway("")
	require.NoError(t, err)
	assert.IsType(t, toolx.LocalGateway{}, gw)

	gw, err = buildGateway(" LOCAL ")
	require.NoError(t, err)
	assert.IsType(t, toolx.LocalGateway{}, gw)

	_, err = buildGateway("mainframe")
	require.Error(t, err)
}

func TestAppCloseOrder(t *testing.T) {
	t.Parallel()

	var order []string
	a := &app{closers: []io.Closer{
		closerFunc(func() error { order = append(order, "redis"); return nil }),
		closerFunc(func() error { order = append(order, "postgres"); return assert.AnError }),
	}}

	err := a.Close()
	require.ErrorIs(t, err, assert.AnError)
	assert.Equal(t, []string{"postgres", "redis"}, order)
}
