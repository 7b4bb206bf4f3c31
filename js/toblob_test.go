package js

import (
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/chrisuehlinger/vibebridge/headless"
)

func startExport(t *testing.T, f *fixture, dpr string) {
	t.Helper()
	f.eval(t, `
		var settled = null;
		var target = document.createElement("canvas");
		document.body.appendChild(target);
		target.toBlob(`+dpr+`).then(
			function (blob) { settled = { ok: true, blob: blob }; },
			function (err) { settled = { ok: false, err: err }; });
	`)
}

func TestToBlobResolvesWithBlob(t *testing.T) {
	r := &mockExporter{}
	r.On("ToBlob", mock.Anything, 2.0).Return()
	f := newFixture(t, r)
	arena := f.doc.Arena()
	base := arena.Live()

	startExport(t, f, "2")
	assert.Equal(t, 1, f.b.Pending())
	assert.True(t, f.rt.HasPendingWork(), "an outstanding export keeps the loop alive")
	assert.Equal(t, base+2, arena.Live())

	r.complete(t, nil, []byte("0123456789"))
	f.idle(t)

	got := f.eval(t, `[settled.ok, settled.blob.size, settled.blob.type, settled.blob instanceof Blob].join()`)
	assert.Equal(t, "true,10,image/png,true", got)
	assert.Zero(t, f.b.Pending())
	assert.Equal(t, base, arena.Live())
	assert.Zero(t, arena.DoubleReleases())
	r.AssertExpectations(t)
}

func TestToBlobRejectsWithNativeError(t *testing.T) {
	r := &mockExporter{}
	r.On("ToBlob", mock.Anything, 1.0).Return()
	f := newFixture(t, r)
	base := f.doc.Arena().Live()

	startExport(t, f, "")
	r.complete(t, errors.New("element #3 is not rendered"), nil)
	f.idle(t)

	got := f.eval(t, `[settled.ok, settled.err instanceof Error, settled.err.name, settled.err.message].join("|")`)
	assert.Equal(t, "false|true|NativeOperationError|element #3 is not rendered", got)
	assert.Equal(t, base, f.doc.Arena().Live())
	assert.Zero(t, f.doc.Arena().DoubleReleases())
}

func TestToBlobFlushesBeforeExport(t *testing.T) {
	r := &mockExporter{}
	var seen int
	r.On("ToBlob", mock.Anything, 1.0).Run(func(mock.Arguments) {
		seen = len(r.Commands())
	}).Return()
	f := newFixture(t, r)

	startExport(t, f, "1")
	assert.Equal(t, len(r.Commands()), seen)
	assert.NotZero(t, seen)

	r.complete(t, nil, nil)
	f.idle(t)
	assert.Equal(t, "true,0", f.eval(t, `[settled.ok, settled.blob.size].join()`))
}

func TestToBlobArgumentErrors(t *testing.T) {
	f := newFixture(t, &mockExporter{})
	f.eval(t, `var el = document.createElement("canvas")`)

	err := f.evalErr(t, `el.toBlob("2")`)
	assert.Contains(t, err.Error(), "Failed to export blob: parameter 1 (devicePixelRatio) is not a number.")
	assert.Zero(t, f.b.Pending())
}

func TestToBlobWithoutExporter(t *testing.T) {
	f := newFixture(t, &mockRenderer{})
	base := f.doc.Arena().Live()

	err := f.evalErr(t, `document.createElement("canvas").toBlob(1)`)
	assert.Contains(t, err.Error(), "TypeError")
	assert.Contains(t, err.Error(), "Failed to export blob: native method (toBlob) is not registered.")
	assert.Zero(t, f.b.Pending())
	assert.False(t, f.rt.HasPendingWork())
	assert.Equal(t, base, f.doc.Arena().Live())
}

func TestToBlobConcurrentExportsSettleIndependently(t *testing.T) {
	r := &mockExporter{}
	r.On("ToBlob", mock.Anything, mock.Anything).Return()
	f := newFixture(t, r)

	f.eval(t, `
		var results = [];
		var el = document.createElement("canvas");
		el.toBlob(1).then(function (b) { results.push("one:" + b.size); });
	`)
	r.cbMu.Lock()
	first, cb := r.token, r.cb
	r.cbMu.Unlock()
	f.eval(t, `el.toBlob(3).then(function (b) { results.push("two:" + b.size); });`)
	assert.Equal(t, 2, f.b.Pending())

	// Settle the second before the first.
	r.complete(t, nil, []byte("ab"))
	cb(first, 0, nil, []byte("a"))
	f.idle(t)

	assert.Equal(t, "two:2,one:1", f.eval(t, `results.join()`))
	assert.Zero(t, f.b.Pending())
}

func TestToBlobUnknownTokenIsIgnored(t *testing.T) {
	f := newFixture(t, &mockExporter{})
	f.b.completeBlob(uuid.New(), 0, nil, []byte("stray"))
	f.rt.RunEventLoop()

	assert.Zero(t, f.b.Pending())
	assert.False(t, f.rt.HasPendingWork())
	require.Empty(t, f.rt.Errors())
}

func TestToBlobRejectsOversizedExport(t *testing.T) {
	host := headless.New(headless.Options{ViewportWidth: 400, ViewportHeight: 300, Logger: zaptest.NewLogger(t)})
	f := newFixture(t, host)

	f.eval(t, `
		var settled = null;
		var target = document.createElement("div");
		target.style.width = "100px";
		target.style.height = "100px";
		document.body.appendChild(target);
		target.toBlob(10000).then(
			function (blob) { settled = { ok: true, blob: blob }; },
			function (err) { settled = { ok: false, err: err }; });
	`)
	host.Wait()
	f.idle(t)

	got := f.eval(t, `[settled.ok, settled.err.name].join("|")`)
	assert.Equal(t, "false|NativeOperationError", got)
	assert.Contains(t, f.eval(t, `settled.err.message`), "exceeds the limit")

	f.eval(t, `target.toBlob(1).then(function (blob) { settled = { ok: true, blob: blob }; })`)
	host.Wait()
	f.idle(t)
	assert.Equal(t, "true,image/png", f.eval(t, `[settled.ok, settled.blob.type].join()`))
}
