package dom

import (
	"fmt"
	"sync"
	"testing"

	"github.com/google/uuid"

	"github.com/chrisuehlinger/vibebridge/native"
	"github.com/chrisuehlinger/vibebridge/uicommand"
)

// fakeRenderer records applied commands and every native query in a single
// event log so tests can assert ordering.
type fakeRenderer struct {
	mu       sync.Mutex
	events   []string
	commands []uicommand.Command
	geometry map[int32]float64
	scrolls  []string
}

func newFakeRenderer() *fakeRenderer {
	return &fakeRenderer{geometry: make(map[int32]float64)}
}

func (f *fakeRenderer) ApplyCommands(_ int32, batch []uicommand.Command) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, fmt.Sprintf("apply:%d", len(batch)))
	f.commands = append(f.commands, batch...)
	return nil
}

func (f *fakeRenderer) ViewModuleProperty(_ int32, id int32, prop native.ViewModuleProperty) float64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, "query:"+prop.String())
	return f.geometry[id]
}

func (f *fakeRenderer) BoundingClientRect(_ int32, id int32) native.BoundingClientRect {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, "rect")
	return native.BoundingClientRect{Width: f.geometry[id], Height: f.geometry[id]}
}

func (f *fakeRenderer) Events() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.events...)
}

func (f *fakeRenderer) Commands() []uicommand.Command {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]uicommand.Command(nil), f.commands...)
}

// scrollingRenderer adds Scroller and BlobExporter.
type scrollingRenderer struct {
	*fakeRenderer
	exports []float64
}

func (s *scrollingRenderer) Click(_ int32, id int32) {
	s.scrolls = append(s.scrolls, fmt.Sprintf("click #%d", id))
}

func (s *scrollingRenderer) ScrollTo(_ int32, id int32, x, y float64) {
	s.scrolls = append(s.scrolls, fmt.Sprintf("to #%d %v,%v", id, x, y))
}

func (s *scrollingRenderer) ScrollBy(_ int32, id int32, dx, dy float64) {
	s.scrolls = append(s.scrolls, fmt.Sprintf("by #%d %v,%v", id, dx, dy))
}

func (s *scrollingRenderer) ToBlob(token uuid.UUID, contextID, _ int32, dpr float64, cb native.BlobCallback) {
	s.exports = append(s.exports, dpr)
	cb(token, contextID, nil, []byte("png"))
}

// newTestDocument creates a document and discards the commands queued for
// the implicit body.
func newTestDocument(t *testing.T, opts ...Option) *Document {
	t.Helper()
	opts = append([]Option{WithRegistry(NewRegistry())}, opts...)
	doc := NewDocument(opts...)
	doc.Queue().Drain()
	return doc
}

func mustCreate(t *testing.T, doc *Document, tag string) *Element {
	t.Helper()
	e, err := doc.CreateElement(tag)
	if err != nil {
		t.Fatalf("CreateElement(%q): %v", tag, err)
	}
	return e
}

// recordingCallback captures what the id index looks like whenever a
// mutation callback fires.
type recordingCallback struct {
	doc      *Document
	watchID  string
	observed []*Element
	attrs    []string
	children int
	text     []string
}

func (r *recordingCallback) OnChildListMutation(*Node, []*Node, []*Node) {
	r.children++
}

func (r *recordingCallback) OnAttributeMutation(_ *Node, name, oldValue string) {
	r.attrs = append(r.attrs, name+":"+oldValue)
	r.observed = append(r.observed, r.doc.GetElementByID(r.watchID))
}

func (r *recordingCallback) OnCharacterDataMutation(_ *Node, oldValue string) {
	r.text = append(r.text, oldValue)
}
