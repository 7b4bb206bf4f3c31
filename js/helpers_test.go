package js

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/zap/zaptest"

	"github.com/chrisuehlinger/vibebridge/dom"
	"github.com/chrisuehlinger/vibebridge/native"
	"github.com/chrisuehlinger/vibebridge/uicommand"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// mockRenderer is a native layer without export support. Geometry
// answers come from testify expectations; every query records how many
// commands had been applied when it arrived.
type mockRenderer struct {
	mock.Mock
	uicommand.Recorder

	mu        sync.Mutex
	appliedAt []int
}

func (m *mockRenderer) ViewModuleProperty(_ int32, id int32, prop native.ViewModuleProperty) float64 {
	m.mark()
	return m.Called(id, prop).Get(0).(float64)
}

func (m *mockRenderer) BoundingClientRect(_ int32, id int32) native.BoundingClientRect {
	m.mark()
	return m.Called(id).Get(0).(native.BoundingClientRect)
}

func (m *mockRenderer) mark() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.appliedAt = append(m.appliedAt, len(m.Commands()))
}

func (m *mockRenderer) QueriesAt() []int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]int(nil), m.appliedAt...)
}

// mockExporter adds toBlob support and captures the completion callback
// so tests decide when and how the export finishes.
type mockExporter struct {
	mockRenderer

	cbMu  sync.Mutex
	token uuid.UUID
	cb    native.BlobCallback
}

func (m *mockExporter) ToBlob(token uuid.UUID, _, targetID int32, dpr float64, cb native.BlobCallback) {
	m.Called(targetID, dpr)
	m.cbMu.Lock()
	m.token, m.cb = token, cb
	m.cbMu.Unlock()
}

// complete invokes the captured callback from another goroutine.
func (m *mockExporter) complete(t *testing.T, err error, data []byte) {
	t.Helper()
	m.cbMu.Lock()
	token, cb := m.token, m.cb
	m.cbMu.Unlock()
	require.NotNil(t, cb, "toBlob was never forwarded")

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		cb(token, 0, err, data)
	}()
	wg.Wait()
}

type fixture struct {
	rt  *Runtime
	doc *dom.Document
	b   *Binder
}

func newFixture(t *testing.T, r native.Renderer) *fixture {
	t.Helper()
	rt := NewRuntime(zaptest.NewLogger(t))
	opts := []dom.Option{dom.WithRegistry(dom.NewRegistry())}
	if r != nil {
		opts = append(opts, dom.WithRenderer(r))
	}
	doc := dom.NewDocument(opts...)
	b, err := Bind(rt, doc)
	require.NoError(t, err)
	return &fixture{rt: rt, doc: doc, b: b}
}

func (f *fixture) eval(t *testing.T, code string) any {
	t.Helper()
	v, err := f.rt.Execute(code)
	require.NoError(t, err)
	if v == nil {
		return nil
	}
	return v.Export()
}

func (f *fixture) evalErr(t *testing.T, code string) error {
	t.Helper()
	_, err := f.rt.Execute(code)
	require.Error(t, err)
	return err
}

func (f *fixture) idle(t *testing.T) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, f.rt.RunUntilIdle(ctx))
}

func opsOf(cmds []uicommand.Command) []uicommand.Op {
	ops := make([]uicommand.Op, len(cmds))
	for i, c := range cmds {
		ops[i] = c.Op
	}
	return ops
}
