package js

import (
	"context"
	"runtime"
	"testing"
	"time"

	"github.com/dop251/goja"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chrisuehlinger/vibebridge/dom"
	"github.com/chrisuehlinger/vibebridge/uicommand"
)

func countDisposes(cmds []uicommand.Command) int {
	n := 0
	for _, c := range cmds {
		if c.Op == uicommand.OpDispose {
			n++
		}
	}
	return n
}

func TestReclaimDisposesDroppedDetachedElements(t *testing.T) {
	const count = 200
	// Stale engine stack slots may pin the last few objects.
	const slack = 4

	f := newFixture(t, nil)
	arena := f.doc.Arena()
	base := arena.Live()

	f.eval(t, `(function () {
		for (var i = 0; i < 200; i++) {
			var el = document.createElement("div");
			el.setAttribute("data-i", String(i));
			el.extra = { i: i };
		}
	})()`)
	require.Equal(t, base+2*count, arena.Live())
	f.doc.Queue().Drain()

	disposed := 0
	require.Eventually(t, func() bool {
		runtime.GC()
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		if err := f.rt.RunUntilIdle(ctx); err != nil {
			return false
		}
		disposed += countDisposes(f.doc.Queue().Drain())
		return disposed >= count-slack && arena.Live() <= base+2*slack
	}, 5*time.Second, 10*time.Millisecond)
	assert.LessOrEqual(t, disposed, count)
	assert.Zero(t, arena.DoubleReleases())
}

func TestReclaimKeepsReachableTrees(t *testing.T) {
	f := newFixture(t, nil)
	arena := f.doc.Arena()

	var (
		parent, child, attached *dom.Element
		childObj                *goja.Object
	)
	require.NoError(t, f.rt.Do(func(*goja.Runtime) error {
		var err error
		parent, err = f.doc.CreateElement("div")
		require.NoError(t, err)
		child, err = f.doc.CreateElement("span")
		require.NoError(t, err)
		_, err = parent.AsNode().AppendChild(child.AsNode())
		require.NoError(t, err)
		attached, err = f.doc.CreateElement("p")
		require.NoError(t, err)
		_, err = f.doc.Body().AsNode().AppendChild(attached.AsNode())
		require.NoError(t, err)

		childObj = f.b.BindElement(child)
		require.NoError(t, childObj.Set("tag", "kept"))
		attachedObj := f.b.BindElement(attached)
		require.NoError(t, attachedObj.Set("note", "stays"))
		return nil
	}))
	base := arena.Live()
	f.doc.Queue().Drain()

	require.NoError(t, f.rt.Do(func(*goja.Runtime) error {
		// The parent's object is gone but the child's is still held.
		f.b.reclaim(parent.AsNode(), f.b.nodes[parent.AsNode()])
		// Connected nodes only drop their cache entry.
		f.b.reclaim(attached.AsNode(), f.b.nodes[attached.AsNode()])
		return nil
	}))
	assert.False(t, parent.AsNode().Disposed())
	assert.False(t, attached.AsNode().Disposed())
	assert.Zero(t, countDisposes(f.doc.Queue().Drain()))
	assert.Equal(t, base, arena.Live())

	require.NoError(t, f.rt.Do(func(*goja.Runtime) error {
		obj := f.b.BindElement(attached)
		assert.Equal(t, "stays", obj.Get("note").String())
		return nil
	}))
	runtime.KeepAlive(childObj)

	require.NoError(t, f.rt.Do(func(*goja.Runtime) error {
		f.b.reclaim(child.AsNode(), f.b.nodes[child.AsNode()])
		return nil
	}))
	assert.True(t, parent.AsNode().Disposed())
	assert.True(t, child.AsNode().Disposed())
	assert.Equal(t, 2, countDisposes(f.doc.Queue().Drain()))
	assert.Equal(t, base-1, arena.Live())
	assert.Zero(t, arena.DoubleReleases())
}
