package dom

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chrisuehlinger/vibebridge/native"
	"github.com/chrisuehlinger/vibebridge/uicommand"
)

func TestDocument_InitialCommands(t *testing.T) {
	doc := NewDocument(WithRegistry(NewRegistry()))
	got := doc.Queue().Drain()

	body := doc.Body()
	want := []uicommand.Command{
		uicommand.CreateElement(body.NativeID(), "BODY"),
		uicommand.InsertAdjacentNode(native.HTMLTargetID, uicommand.PositionBeforeEnd, body.NativeID()),
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("initial commands mismatch (-want +got):\n%s", diff)
	}
	assert.Equal(t, native.HTMLTargetID, doc.DocumentElement().NativeID())
	assert.Equal(t, "HTML", doc.DocumentElement().TagName())
	assert.True(t, body.IsConnected())
}

func TestDocument_CreateElement(t *testing.T) {
	doc := newTestDocument(t)
	el := mustCreate(t, doc, "div")

	assert.Equal(t, "DIV", el.TagName())
	assert.Equal(t, "div", el.LocalName())
	assert.Equal(t, "DIV", el.AsNode().NodeName())
	assert.Equal(t, ElementNode, el.NodeType())

	got := doc.Queue().Drain()
	require.Len(t, got, 1)
	assert.Equal(t, uicommand.CreateElement(el.NativeID(), "div"), got[0])

	other := mustCreate(t, doc, "span")
	assert.NotEqual(t, el.NativeID(), other.NativeID())
}

func TestDocument_CreateElementRejectsEmptyTag(t *testing.T) {
	doc := newTestDocument(t)
	_, err := doc.CreateElement("")
	assert.True(t, IsDOMError(err, ArgumentError))
	assert.Equal(t, 0, doc.Queue().Len())
}

func TestDocument_HTMLSentinelQueuesNothing(t *testing.T) {
	doc := newTestDocument(t)
	el := mustCreate(t, doc, "HTML")
	assert.Equal(t, native.HTMLTargetID, el.NativeID())
	assert.Equal(t, 0, doc.Queue().Len())
}

func TestDocument_OwnRegistryByDefault(t *testing.T) {
	a, b := NewDocument(), NewDocument()
	require.NotSame(t, a.Registry(), b.Registry())

	assert.True(t, a.Registry().Define("x-only-a", func(doc *Document, tag string) *Element {
		e := doc.NewElement(tag)
		_ = e.SetAttribute("data-owner", "a")
		return e
	}))
	_, ok := b.Registry().Lookup("x-only-a")
	assert.False(t, ok)

	el := mustCreate(t, b, "x-only-a")
	assert.False(t, el.HasAttribute("data-owner"))
}

func TestRegistry_FirstDefinitionWins(t *testing.T) {
	reg := NewRegistry()
	var used []string
	first := func(doc *Document, tag string) *Element {
		used = append(used, "first")
		e := doc.NewElement(tag)
		_ = e.SetAttribute("data-kind", "first")
		return e
	}
	second := func(doc *Document, tag string) *Element {
		used = append(used, "second")
		return doc.NewElement(tag)
	}
	assert.True(t, reg.Define("x-widget", first))
	assert.False(t, reg.Define("X-WIDGET", second))

	doc := newTestDocument(t, WithRegistry(reg))
	el := mustCreate(t, doc, "x-widget")
	v, ok := el.GetAttribute("data-kind")
	assert.True(t, ok)
	assert.Equal(t, "first", v)
	assert.Equal(t, []string{"first"}, used)
}

func TestElement_NumericAttributeNames(t *testing.T) {
	doc := newTestDocument(t)
	el := mustCreate(t, doc, "div")
	doc.Queue().Drain()

	for _, name := range []string{"0", "1", "2abc", "9"} {
		err := el.SetAttribute(name, "v")
		require.Error(t, err)
		assert.True(t, IsDOMError(err, ConstraintError))
		assert.Equal(t, "ConstraintError: '"+name+"' is not a valid attribute name.", err.Error())
		assert.False(t, el.HasAttribute(name))
	}
	assert.Equal(t, 0, doc.Queue().Len())
	assert.Equal(t, int64(0), doc.Arena().Live())
}

func TestElement_SetAttributeOverwrite(t *testing.T) {
	doc := newTestDocument(t)
	el := mustCreate(t, doc, "div")
	doc.Queue().Drain()

	require.NoError(t, el.SetAttribute("Title", "v1"))
	require.NoError(t, el.SetAttribute("title", "v2"))

	v, ok := el.GetAttribute("TITLE")
	assert.True(t, ok)
	assert.Equal(t, "v2", v)

	want := []uicommand.Command{
		uicommand.SetProperty(el.NativeID(), "title", "v1"),
		uicommand.SetProperty(el.NativeID(), "title", "v2"),
	}
	if diff := cmp.Diff(want, doc.Queue().Drain()); diff != "" {
		t.Errorf("commands mismatch (-want +got):\n%s", diff)
	}
	// one live handle: the stored value
	assert.Equal(t, int64(1), doc.Arena().Live())
	assert.Equal(t, int64(0), doc.Arena().DoubleReleases())
}

func TestElement_RemoveAttribute(t *testing.T) {
	doc := newTestDocument(t)
	el := mustCreate(t, doc, "div")
	doc.Queue().Drain()

	require.NoError(t, el.RemoveAttribute("missing"))
	assert.Equal(t, 0, doc.Queue().Len())

	require.NoError(t, el.SetAttribute("class", "x"))
	require.NoError(t, el.RemoveAttribute("CLASS"))
	assert.False(t, el.HasAttribute("class"))
	_, ok := el.GetAttribute("class")
	assert.False(t, ok)

	got := doc.Queue().Drain()
	require.Len(t, got, 2)
	assert.Equal(t, uicommand.RemoveProperty(el.NativeID(), "class"), got[1])
	assert.Equal(t, int64(0), doc.Arena().Live())
}

func TestElement_IdIndexScenario(t *testing.T) {
	doc := newTestDocument(t)
	el := mustCreate(t, doc, "div")

	require.NoError(t, el.SetAttribute("id", "a"))
	assert.Nil(t, doc.GetElementByID("a"), "disconnected elements are not indexed")

	_, err := doc.Body().AsNode().AppendChild(el.AsNode())
	require.NoError(t, err)
	assert.Same(t, el, doc.GetElementByID("a"))

	require.NoError(t, el.SetAttribute("id", "b"))
	assert.Nil(t, doc.GetElementByID("a"))
	assert.Same(t, el, doc.GetElementByID("b"))

	require.NoError(t, el.RemoveAttribute("id"))
	assert.Nil(t, doc.GetElementByID("a"))
	assert.Nil(t, doc.GetElementByID("b"))
	assert.Equal(t, 0, doc.IndexedIDs())
}

func TestElement_EmptyIdIsNotIndexed(t *testing.T) {
	doc := newTestDocument(t)
	el := mustCreate(t, doc, "div")
	_, _ = doc.Body().AsNode().AppendChild(el.AsNode())

	require.NoError(t, el.SetAttribute("id", ""))
	assert.Equal(t, 0, doc.IndexedIDs())
	require.NoError(t, el.SetAttribute("id", "x"))
	require.NoError(t, el.SetAttribute("id", ""))
	assert.Equal(t, 0, doc.IndexedIDs())
}

func TestElement_IdIndexInvariantUnderRandomOps(t *testing.T) {
	doc := newTestDocument(t)
	el := mustCreate(t, doc, "div")
	ids := []string{"a", "b", "", "c"}

	check := func(step int) {
		v, has := el.GetAttribute("id")
		for _, key := range []string{"a", "b", "c"} {
			indexed := false
			for _, e := range doc.ElementsByID(key) {
				if e == el {
					indexed = true
				}
			}
			want := el.IsConnected() && has && v == key
			assert.Equal(t, want, indexed, "step %d key %q", step, key)
		}
	}

	// deterministic pseudo-random walk over the four mutation kinds
	seed := uint32(7)
	for step := 0; step < 200; step++ {
		seed = seed*1664525 + 1013904223
		switch seed >> 30 {
		case 0:
			require.NoError(t, el.SetAttribute("id", ids[(seed>>8)%uint32(len(ids))]))
		case 1:
			require.NoError(t, el.RemoveAttribute("id"))
		case 2:
			if !el.IsConnected() {
				_, err := doc.Body().AsNode().AppendChild(el.AsNode())
				require.NoError(t, err)
			}
		case 3:
			el.AsNode().Remove()
		}
		check(step)
	}
}

func TestElement_SubtreeConnectPreOrder(t *testing.T) {
	doc := newTestDocument(t)
	parent := mustCreate(t, doc, "div")
	child := mustCreate(t, doc, "span")
	grandchild := mustCreate(t, doc, "b")
	require.NoError(t, parent.SetAttribute("id", "dup"))
	require.NoError(t, child.SetAttribute("id", "dup"))
	require.NoError(t, grandchild.SetAttribute("id", "leaf"))
	_, _ = parent.AsNode().AppendChild(child.AsNode())
	_, _ = child.AsNode().AppendChild(grandchild.AsNode())

	assert.Equal(t, 0, doc.IndexedIDs())

	_, err := doc.Body().AsNode().AppendChild(parent.AsNode())
	require.NoError(t, err)
	assert.Equal(t, []*Element{parent, child}, doc.ElementsByID("dup"))
	assert.Same(t, grandchild, doc.GetElementByID("leaf"))

	_, err = doc.Body().AsNode().RemoveChild(parent.AsNode())
	require.NoError(t, err)
	assert.Equal(t, 0, doc.IndexedIDs())
}

func TestElement_IndexUpdatedBeforeCallbacks(t *testing.T) {
	doc := newTestDocument(t)
	el := mustCreate(t, doc, "div")
	_, _ = doc.Body().AsNode().AppendChild(el.AsNode())

	cb := &recordingCallback{doc: doc, watchID: "late"}
	doc.RegisterMutationCallback(cb)
	require.NoError(t, el.SetAttribute("id", "late"))
	require.NoError(t, el.SetAttribute("id", "later"))
	doc.UnregisterMutationCallback(cb)
	require.NoError(t, el.SetAttribute("id", "ignored"))

	assert.Equal(t, []string{"id:", "id:late"}, cb.attrs)
	assert.Equal(t, []*Element{el, nil}, cb.observed)
}

func TestElement_ChildrenAndTextContent(t *testing.T) {
	doc := newTestDocument(t)
	el := mustCreate(t, doc, "p")
	span := mustCreate(t, doc, "span")
	_, _ = el.AsNode().AppendChild(doc.CreateTextNode("Hello, ").AsNode())
	_, _ = el.AsNode().AppendChild(span.AsNode())
	_, _ = span.AsNode().AppendChild(doc.CreateTextNode("World").AsNode())
	_, _ = el.AsNode().AppendChild(doc.CreateTextNode("!").AsNode())

	assert.Equal(t, []*Element{span}, el.Children())
	assert.Equal(t, "Hello, World!", el.TextContent())

	el.SetTextContent("ignored")
	assert.Equal(t, "Hello, World!", el.TextContent())
	assert.Len(t, el.AsNode().ChildNodes(), 3)
}

func TestNode_TreeCommands(t *testing.T) {
	doc := newTestDocument(t)
	parent := mustCreate(t, doc, "div")
	a := mustCreate(t, doc, "a")
	b := mustCreate(t, doc, "b")
	doc.Queue().Drain()

	_, err := parent.AsNode().AppendChild(b.AsNode())
	require.NoError(t, err)
	_, err = parent.AsNode().InsertBefore(a.AsNode(), b.AsNode())
	require.NoError(t, err)
	_, err = parent.AsNode().RemoveChild(b.AsNode())
	require.NoError(t, err)

	want := []uicommand.Command{
		uicommand.InsertAdjacentNode(parent.NativeID(), uicommand.PositionBeforeEnd, b.NativeID()),
		uicommand.InsertAdjacentNode(b.NativeID(), uicommand.PositionBeforeBegin, a.NativeID()),
		uicommand.RemoveNode(b.NativeID()),
	}
	if diff := cmp.Diff(want, doc.Queue().Drain()); diff != "" {
		t.Errorf("tree commands mismatch (-want +got):\n%s", diff)
	}
	assert.Same(t, a.AsNode(), parent.AsNode().FirstChild())
	assert.Nil(t, b.AsNode().ParentNode())
}

func TestNode_InsertionErrors(t *testing.T) {
	doc := newTestDocument(t)
	parent := mustCreate(t, doc, "div")
	child := mustCreate(t, doc, "span")
	_, _ = parent.AsNode().AppendChild(child.AsNode())
	stranger := mustCreate(t, doc, "i")

	_, err := child.AsNode().AppendChild(parent.AsNode())
	assert.True(t, IsDOMError(err, HierarchyRequestError))

	_, err = parent.AsNode().InsertBefore(stranger.AsNode(), mustCreate(t, doc, "u").AsNode())
	assert.True(t, IsDOMError(err, NotFoundError))

	_, err = parent.AsNode().RemoveChild(stranger.AsNode())
	assert.True(t, IsDOMError(err, NotFoundError))

	_, err = parent.AsNode().AppendChild(nil)
	assert.True(t, IsDOMError(err, ArgumentError))

	text := doc.CreateTextNode("t")
	_, err = text.AsNode().AppendChild(stranger.AsNode())
	assert.True(t, IsDOMError(err, HierarchyRequestError))

	other := newTestDocument(t)
	_, err = parent.AsNode().AppendChild(mustCreate(t, other, "div").AsNode())
	assert.True(t, IsDOMError(err, HierarchyRequestError))

	_, err = doc.AsNode().AppendChild(stranger.AsNode())
	assert.True(t, IsDOMError(err, HierarchyRequestError))
}

func TestElement_StyleCommands(t *testing.T) {
	doc := newTestDocument(t)
	el := mustCreate(t, doc, "div")
	doc.Queue().Drain()

	el.Style().SetProperty("backgroundColor", "red")
	el.Style().SetProperty("width", " 10px ")
	el.Style().SetProperty("width", "")
	el.Style().SetProperty("not valid!", "x")

	assert.Equal(t, "background-color: red", el.Style().CSSText())
	want := []uicommand.Command{
		uicommand.SetStyle(el.NativeID(), "backgroundColor", "red"),
		uicommand.SetStyle(el.NativeID(), "width", "10px"),
		uicommand.SetStyle(el.NativeID(), "width", ""),
	}
	if diff := cmp.Diff(want, doc.Queue().Drain()); diff != "" {
		t.Errorf("style commands mismatch (-want +got):\n%s", diff)
	}

	el.Style().SetCSSText("height: 5px; -webkit-transform: none !important")
	assert.Equal(t, "5px", el.Style().GetPropertyValue("height"))
	assert.Equal(t, "none", el.Style().GetPropertyValue("WebkitTransform"))
	assert.Equal(t, 2, el.Style().Length())
	assert.Equal(t, "height", el.Style().Item(0))
}

func TestElement_EventHandlerSlots(t *testing.T) {
	doc := newTestDocument(t)
	el := mustCreate(t, doc, "button")
	doc.Queue().Drain()

	h1 := doc.Arena().New("handler-1")
	require.NoError(t, el.SetEventHandler("click", h1))
	h1.Release()
	h2 := doc.Arena().New("handler-2")
	require.NoError(t, el.SetEventHandler("click", h2))
	h2.Release()

	assert.Equal(t, "handler-2", el.EventHandler("click").String())
	assert.Equal(t, []string{"click"}, el.HandlerTypes())
	assert.False(t, el.HasProperty("onclick"))
	assert.Equal(t, []uicommand.Command{uicommand.AddEvent(el.NativeID(), "click")}, doc.Queue().Drain())
	assert.Equal(t, int64(1), doc.Arena().Live())

	require.NoError(t, el.SetEventHandler("click", nil))
	assert.Nil(t, el.EventHandler("click"))
	assert.Empty(t, el.HandlerTypes())
	assert.Equal(t, int64(0), doc.Arena().Live())
}

func TestElement_ExpandoProperties(t *testing.T) {
	doc := newTestDocument(t)
	el := mustCreate(t, doc, "div")
	doc.Queue().Drain()

	h := doc.Arena().New(1)
	require.NoError(t, el.SetProperty("foo", h))
	h.Release()
	h = doc.Arena().New(2)
	require.NoError(t, el.SetProperty("foo", h))
	h.Release()
	h = doc.Arena().New(3)
	require.NoError(t, el.SetProperty("bar", h))
	h.Release()

	assert.Equal(t, 2, el.Property("foo").Value())
	assert.Equal(t, []string{"foo", "bar"}, el.PropertyKeys())
	assert.Equal(t, int64(2), doc.Arena().Live())
	assert.True(t, el.DeleteProperty("bar"))
	assert.False(t, el.DeleteProperty("bar"))
	assert.Equal(t, int64(1), doc.Arena().Live())
	assert.Equal(t, 0, doc.Queue().Len(), "expandos never reach the native side")
}

func TestElement_DisposeReleasesEverything(t *testing.T) {
	doc := newTestDocument(t)
	el := mustCreate(t, doc, "div")
	child := mustCreate(t, doc, "span")
	_, _ = el.AsNode().AppendChild(child.AsNode())
	require.NoError(t, el.SetAttribute("id", "x"))
	require.NoError(t, child.SetAttribute("title", "t"))
	h := doc.Arena().New("field")
	require.NoError(t, el.SetProperty("field", h))
	h.Release()
	h = doc.Arena().New("fn")
	require.NoError(t, el.SetEventHandler("click", h))
	h.Release()
	doc.Queue().Drain()

	require.NoError(t, el.AsNode().Dispose())
	assert.Equal(t, int64(0), doc.Arena().Live())
	assert.Equal(t, int64(0), doc.Arena().DoubleReleases())
	assert.Equal(t, []uicommand.Command{
		uicommand.Dispose(el.NativeID()),
		uicommand.Dispose(child.NativeID()),
	}, doc.Queue().Drain())

	err := el.SetAttribute("id", "y")
	assert.True(t, IsDOMError(err, InvalidStateError))
	el.Style().SetProperty("width", "1px")
	require.NoError(t, el.AsNode().Dispose())
	assert.Equal(t, 0, doc.Queue().Len(), "disposed elements emit nothing")
}

func TestElement_DisposeAttachedFails(t *testing.T) {
	doc := newTestDocument(t)
	el := mustCreate(t, doc, "div")
	_, _ = doc.Body().AsNode().AppendChild(el.AsNode())
	err := el.AsNode().Dispose()
	assert.True(t, IsDOMError(err, InvalidStateError))
	assert.False(t, el.AsNode().Disposed())
}

func TestDocument_Dispose(t *testing.T) {
	doc := newTestDocument(t)
	el := mustCreate(t, doc, "div")
	require.NoError(t, el.SetAttribute("id", "x"))
	_, _ = doc.Body().AsNode().AppendChild(el.AsNode())
	doc.Queue().Drain()

	doc.Dispose()
	assert.Equal(t, int64(0), doc.Arena().Live())
	assert.Nil(t, doc.GetElementByID("x"))
	assert.Equal(t, []uicommand.Command{
		uicommand.Dispose(doc.Body().NativeID()),
		uicommand.Dispose(el.NativeID()),
	}, doc.Queue().Drain())
}

func TestElement_GeometryFlushesFirst(t *testing.T) {
	r := newFakeRenderer()
	doc := newTestDocument(t, WithRenderer(r))
	el := mustCreate(t, doc, "div")
	r.geometry[el.NativeID()] = 42
	el.Style().SetProperty("width", "42px")

	w, err := el.ViewModuleProperty(native.OffsetWidth)
	require.NoError(t, err)
	assert.Equal(t, 42.0, w)

	rect, err := el.BoundingClientRect()
	require.NoError(t, err)
	assert.Equal(t, 42.0, rect.Width)

	assert.Equal(t, []string{"apply:2", "query:offsetWidth", "rect"}, r.Events())
	assert.Equal(t, 0, doc.Queue().Len())
}

func TestElement_GeometryWithoutRenderer(t *testing.T) {
	doc := newTestDocument(t)
	el := mustCreate(t, doc, "div")
	_, err := el.ViewModuleProperty(native.ClientHeight)
	assert.True(t, IsDOMError(err, CapabilityUnavailableError))
	assert.Equal(t, 1, doc.Queue().Len(), "commands are kept until a renderer drains them")
}

func TestElement_ScrollAndClick(t *testing.T) {
	plain := newFakeRenderer()
	doc := newTestDocument(t, WithRenderer(plain))
	el := mustCreate(t, doc, "div")
	require.NoError(t, el.ScrollTo(1, 2))
	require.NoError(t, el.Click())
	assert.Empty(t, plain.scrolls)

	sr := &scrollingRenderer{fakeRenderer: newFakeRenderer()}
	doc = newTestDocument(t, WithRenderer(sr))
	el = mustCreate(t, doc, "div")
	require.NoError(t, el.ScrollTo(1, 2))
	require.NoError(t, el.ScrollBy(0, 5))
	require.NoError(t, el.Click())
	id := el.NativeID()
	assert.Len(t, sr.scrolls, 3)
	assert.Contains(t, sr.scrolls[0], "to #")
	assert.Contains(t, sr.scrolls[2], "click #")
	assert.NotZero(t, id)
}

func TestElement_ToBlob(t *testing.T) {
	doc := newTestDocument(t, WithRenderer(newFakeRenderer()))
	el := mustCreate(t, doc, "canvas")
	assert.False(t, el.CanExportBlob())
	err := el.ToBlob(uuid.New(), 1, func(uuid.UUID, int32, error, []byte) {})
	assert.True(t, IsDOMError(err, CapabilityUnavailableError))
	assert.Equal(t, 1, doc.Queue().Len(), "capability check happens before flushing")

	sr := &scrollingRenderer{fakeRenderer: newFakeRenderer()}
	doc = newTestDocument(t, WithRenderer(sr))
	el = mustCreate(t, doc, "canvas")
	assert.True(t, el.CanExportBlob())
	var got []byte
	require.NoError(t, el.ToBlob(uuid.New(), 2, func(_ uuid.UUID, _ int32, err error, data []byte) {
		require.NoError(t, err)
		got = data
	}))
	assert.Equal(t, []byte("png"), got)
	assert.Equal(t, []float64{2}, sr.exports)
	assert.Equal(t, 0, doc.Queue().Len())
}

func TestText_SetData(t *testing.T) {
	doc := newTestDocument(t)
	text := doc.CreateTextNode("a")
	cb := &recordingCallback{doc: doc}
	doc.RegisterMutationCallback(cb)

	require.NoError(t, text.SetData("b"))
	assert.Equal(t, "b", text.Data())
	assert.Equal(t, 1, text.Length())
	assert.Equal(t, []string{"a"}, cb.text)
	assert.Equal(t, []uicommand.Command{
		uicommand.CreateTextNode(text.AsNode().NativeID(), "a"),
		uicommand.SetProperty(text.AsNode().NativeID(), "data", "b"),
	}, doc.Queue().Drain())
}

func TestUTF16Length(t *testing.T) {
	tests := []struct {
		in   string
		want int
	}{
		{"", 0},
		{"abc", 3},
		{"é", 1},
		{"日本", 2},
		{"😀", 2},
		{"a😀b", 4},
		{"\xff", 1},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, UTF16Length(tt.in), "%q", tt.in)
	}

	doc := newTestDocument(t)
	assert.Equal(t, 3, doc.CreateTextNode("é😀").Length())
}
