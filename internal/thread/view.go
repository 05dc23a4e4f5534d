// Package thread keeps a partially loaded comment tree as a flat list of
// entries tagged with their nesting level.
//
// A View is immutable: every operation returns a new View and leaves the
// receiver untouched, so callers can keep the previous state around for
// rendering or rollback. Structure only changes from server responses;
// counts (child counts, post counters) are always copied from the response
// rather than derived locally.
package thread

import (
	"errors"
	"fmt"
	"slices"

	"inkwell/internal/api"
)

var (
	ErrUnknownNode = errors.New("thread: comment is not in the view")
	// ErrStale is returned for a children page whose request was cancelled
	// by a collapse or superseded by a newer request for the same node.
	ErrStale = errors.New("thread: response for a cancelled request")
)

type Entry struct {
	Comment  api.Comment
	Level    int
	Expanded bool
}

// Ticket identifies one in-flight children request.
type Ticket struct {
	NodeID string
	Skip   int
	Seq    uint64
}

type View struct {
	entries    []Entry
	counters   api.Counters
	hasMoreTop bool
	seq        uint64
	pending    map[string]uint64 // nodeID -> seq of the live request
}

func New() *View {
	return &View{pending: map[string]uint64{}}
}

func (v *View) clone() *View {
	out := &View{
		entries:    slices.Clone(v.entries),
		counters:   v.counters,
		hasMoreTop: v.hasMoreTop,
		seq:        v.seq,
		pending:    make(map[string]uint64, len(v.pending)),
	}
	for id, seq := range v.pending {
		out.pending[id] = seq
	}
	return out
}

func (v *View) Entries() []Entry {
	return slices.Clone(v.entries)
}

func (v *View) Len() int {
	return len(v.entries)
}

func (v *View) Counters() api.Counters {
	return v.counters
}

func (v *View) HasMoreTopLevel() bool {
	return v.hasMoreTop
}

func (v *View) At(i int) Entry {
	return v.entries[i]
}

// Index returns the position of id, or -1.
func (v *View) Index(id string) int {
	return slices.IndexFunc(v.entries, func(e Entry) bool { return e.Comment.ID == id })
}

func (v *View) Entry(id string) (Entry, bool) {
	if i := v.Index(id); i >= 0 {
		return v.entries[i], true
	}
	return Entry{}, false
}

// Pending reports whether a children request for id is in flight.
func (v *View) Pending(id string) bool {
	_, ok := v.pending[id]
	return ok
}

// TopLevelSkip is the skip for the next top-level page.
func (v *View) TopLevelSkip() int {
	n := 0
	for _, e := range v.entries {
		if e.Level == 0 {
			n++
		}
	}
	return n
}

// LoadedChildren counts the direct children of id present in the view.
func (v *View) LoadedChildren(id string) int {
	idx := v.Index(id)
	if idx < 0 {
		return 0
	}
	return v.loadedChildren(idx)
}

// HasMoreReplies reports whether id has children the view has not loaded.
func (v *View) HasMoreReplies(id string) bool {
	idx := v.Index(id)
	if idx < 0 {
		return false
	}
	return v.entries[idx].Comment.ChildCount > v.loadedChildren(idx)
}

// AppendTopLevel adds a page of top-level comments at the end of the view.
// Comments already present are skipped.
func (v *View) AppendTopLevel(page api.TopLevelPage) *View {
	out := v.clone()
	seen := out.ids()
	for _, c := range page.Comments {
		if seen[c.ID] {
			continue
		}
		seen[c.ID] = true
		out.entries = append(out.entries, Entry{Comment: c})
	}
	out.counters = page.Counters
	out.hasMoreTop = page.HasMore
	return out
}

// Expand starts loading the first page of id's children.
func (v *View) Expand(id string) (*View, Ticket, error) {
	return v.request(id, false)
}

// LoadMore starts loading the next page of id's children. A node that is
// not expanded loads its first page instead.
func (v *View) LoadMore(id string) (*View, Ticket, error) {
	return v.request(id, true)
}

func (v *View) request(id string, more bool) (*View, Ticket, error) {
	idx := v.Index(id)
	if idx < 0 {
		return nil, Ticket{}, fmt.Errorf("%w: %s", ErrUnknownNode, id)
	}

	skip := 0
	if more && v.entries[idx].Expanded {
		skip = v.loadedChildren(idx)
	}

	out := v.clone()
	out.seq++
	out.pending[id] = out.seq
	return out, Ticket{NodeID: id, Skip: skip, Seq: out.seq}, nil
}

// ApplyChildren splices a children page into the view. A first page
// replaces whatever was loaded under the node; later pages go after the
// node's last loaded descendant.
func (v *View) ApplyChildren(t Ticket, page api.ChildrenPage) (*View, error) {
	if seq, ok := v.pending[t.NodeID]; !ok || seq != t.Seq {
		return nil, ErrStale
	}
	idx := v.Index(t.NodeID)
	if idx < 0 {
		return nil, ErrStale
	}

	out := v.clone()
	delete(out.pending, t.NodeID)
	if t.Skip == 0 {
		out.removeDescendants(idx)
	}

	level := out.entries[idx].Level + 1
	seen := out.ids()
	batch := make([]Entry, 0, len(page.Children))
	for _, c := range page.Children {
		if seen[c.ID] {
			continue
		}
		seen[c.ID] = true
		batch = append(batch, Entry{Comment: c, Level: level})
	}

	out.entries = slices.Insert(out.entries, out.subtreeEnd(idx), batch...)
	out.entries[idx].Expanded = true
	out.entries[idx].Comment.ChildCount = page.TotalChildren
	return out, nil
}

// Collapse removes every entry below id and cancels requests for id and
// its removed descendants.
func (v *View) Collapse(id string) (*View, error) {
	idx := v.Index(id)
	if idx < 0 {
		return nil, fmt.Errorf("%w: %s", ErrUnknownNode, id)
	}
	out := v.clone()
	out.removeDescendants(idx)
	out.entries[idx].Expanded = false
	delete(out.pending, id)
	return out, nil
}

// InsertComment places a newly created comment. Top-level comments go
// first; replies go directly under their parent, which becomes expanded.
// A reply whose parent is not loaded only updates the counters.
func (v *View) InsertComment(res api.CreateCommentResponse) *View {
	out := v.clone()
	out.counters = res.Counters

	c := res.Comment
	if out.Index(c.ID) >= 0 {
		return out
	}
	if c.ParentID == nil {
		out.entries = slices.Insert(out.entries, 0, Entry{Comment: c})
		return out
	}

	pidx := out.Index(*c.ParentID)
	if pidx < 0 {
		return out
	}
	parent := &out.entries[pidx]
	parent.Expanded = true
	parent.Comment.ChildIDs = append(slices.Clone(parent.Comment.ChildIDs), c.ID)
	if res.ParentChildCount != nil {
		parent.Comment.ChildCount = *res.ParentChildCount
	}
	level := parent.Level + 1

	out.entries = slices.Insert(out.entries, pidx+1, Entry{Comment: c, Level: level})
	return out
}

// RemoveSubtree drops every removed comment together with anything loaded
// below it, then applies the parent's child count and post counters from
// the delete response.
func (v *View) RemoveSubtree(res api.DeleteCommentResponse) *View {
	out := v.clone()
	out.counters = res.Counters

	removed := make(map[string]bool, len(res.RemovedIDs))
	for _, id := range res.RemovedIDs {
		removed[id] = true
		delete(out.pending, id)
	}

	for i := 0; i < len(out.entries); {
		if !removed[out.entries[i].Comment.ID] {
			i++
			continue
		}
		out.removeDescendants(i)
		out.entries = slices.Delete(out.entries, i, i+1)
	}

	if res.ParentID != nil {
		if pidx := out.Index(*res.ParentID); pidx >= 0 {
			parent := &out.entries[pidx]
			parent.Comment.ChildIDs = slices.DeleteFunc(slices.Clone(parent.Comment.ChildIDs),
				func(id string) bool { return removed[id] })
			parent.Comment.ChildCount = res.ParentChildCount
			if res.ParentChildCount == 0 {
				parent.Expanded = false
			}
		}
	}
	return out
}

// Validate checks the structural invariants of the flattened list.
func (v *View) Validate() error {
	seen := make(map[string]bool, len(v.entries))
	var path []string // path[level] = id of the latest entry at that level

	for i, e := range v.entries {
		id := e.Comment.ID
		if seen[id] {
			return fmt.Errorf("entry %d: duplicate comment %s", i, id)
		}
		seen[id] = true

		if e.Level < 0 || e.Level > len(path) {
			return fmt.Errorf("entry %d: level %d jumps past %d", i, e.Level, len(path))
		}
		path = append(path[:e.Level], id)

		switch {
		case e.Level == 0 && e.Comment.ParentID != nil:
			return fmt.Errorf("entry %d: reply %s at top level", i, id)
		case e.Level > 0 && (e.Comment.ParentID == nil || *e.Comment.ParentID != path[e.Level-1]):
			return fmt.Errorf("entry %d: %s is not a child of %s", i, id, path[e.Level-1])
		}

		if loaded := v.loadedChildren(i); loaded > e.Comment.ChildCount {
			return fmt.Errorf("entry %d: %d children loaded but %s has %d", i, loaded, id, e.Comment.ChildCount)
		}
	}
	return nil
}

// subtreeEnd is the index just past the last descendant of entries[idx].
func (v *View) subtreeEnd(idx int) int {
	level := v.entries[idx].Level
	end := idx + 1
	for end < len(v.entries) && v.entries[end].Level > level {
		end++
	}
	return end
}

func (v *View) loadedChildren(idx int) int {
	level := v.entries[idx].Level + 1
	n := 0
	for _, e := range v.entries[idx+1 : v.subtreeEnd(idx)] {
		if e.Level == level {
			n++
		}
	}
	return n
}

// removeDescendants 删除 idx 之后所有层级更深的条目，并取消它们的请求
func (v *View) removeDescendants(idx int) {
	end := v.subtreeEnd(idx)
	for _, e := range v.entries[idx+1 : end] {
		delete(v.pending, e.Comment.ID)
	}
	v.entries = slices.Delete(v.entries, idx+1, end)
}

func (v *View) ids() map[string]bool {
	seen := make(map[string]bool, len(v.entries))
	for _, e := range v.entries {
		seen[e.Comment.ID] = true
	}
	return seen
}
