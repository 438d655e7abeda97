// Package instance implements the hierarchical instance tree: the
// registry of process instances, their locally-declared Bool/Int/Channel
// variables, and the arithmetic that turns a dotted, possibly-indexed
// identifier such as "arb.req[2].ack" into a global state.Ref inside the
// one flat state.Store shared by the whole simulation.
package instance

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/asyncvlsi/actsim/simerr"
	"github.com/asyncvlsi/actsim/state"
)

type varInfo struct {
	kind  state.Kind
	local int
	count int
	width uint
}

// Node is one process instance. Its declared variables live in the
// shared Store but are addressed, from the node's own point of view, by
// a small local offset within that variable's kind; Resolve adds the
// node's per-kind base offset to recover the global state.Ref.
type Node struct {
	name     string
	parent   *Node
	children map[string]*Node
	vars     map[string]*varInfo

	store *state.Store

	baseBool, baseInt, baseChan int
	boolSeen, intSeen, chanSeen bool
}

// Tree owns the root instance and the Store every Node declares into.
type Tree struct {
	store *state.Store
	root  *Node
}

// NewTree creates an empty tree rooted at an unnamed top-level instance.
func NewTree(store *state.Store) *Tree {
	root := &Node{
		name:     "",
		children: make(map[string]*Node),
		vars:     make(map[string]*varInfo),
		store:    store,
	}
	return &Tree{store: store, root: root}
}

func (t *Tree) Root() *Node { return t.root }

// AddChild creates and registers a new child instance named name under n.
func (n *Node) AddChild(name string) (*Node, error) {
	if _, exists := n.children[name]; exists {
		return nil, simerr.New(simerr.Usage, "instance %q already has a child named %q", n.FullName(), name)
	}
	c := &Node{
		name:     name,
		parent:   n,
		children: make(map[string]*Node),
		vars:     make(map[string]*varInfo),
		store:    n.store,
	}
	n.children[name] = c
	return c, nil
}

func (n *Node) Child(name string) (*Node, bool) {
	c, ok := n.children[name]
	return c, ok
}

// FullName renders the dotted path from the tree's root to n.
func (n *Node) FullName() string {
	if n.parent == nil {
		return ""
	}
	parent := n.parent.FullName()
	if parent == "" {
		return n.name
	}
	return parent + "." + n.name
}

// DeclareBool allocates one Bool slot local to n and names it.
func (n *Node) DeclareBool(name string) (state.Ref, error) {
	if _, exists := n.vars[name]; exists {
		return state.Ref{}, simerr.New(simerr.Usage, "%s: variable %q already declared", n.FullName(), name)
	}
	ref := n.store.AllocBool()
	if !n.boolSeen {
		n.baseBool = ref.Offset
		n.boolSeen = true
	}
	n.vars[name] = &varInfo{kind: state.KindBool, local: ref.Offset - n.baseBool, count: 1}
	return ref, nil
}

// DeclareBoolArray allocates count contiguous Bool slots local to n.
func (n *Node) DeclareBoolArray(name string, count int) ([]state.Ref, error) {
	if count <= 0 {
		return nil, simerr.New(simerr.Usage, "%s: array %q must have positive length", n.FullName(), name)
	}
	if _, exists := n.vars[name]; exists {
		return nil, simerr.New(simerr.Usage, "%s: variable %q already declared", n.FullName(), name)
	}
	refs := make([]state.Ref, count)
	for i := 0; i < count; i++ {
		refs[i] = n.store.AllocBool()
		if !n.boolSeen {
			n.baseBool = refs[i].Offset
			n.boolSeen = true
		}
	}
	n.vars[name] = &varInfo{kind: state.KindBool, local: refs[0].Offset - n.baseBool, count: count}
	return refs, nil
}

// DeclareInt allocates one Int slot of the given bitwidth local to n.
func (n *Node) DeclareInt(name string, width uint) (state.Ref, error) {
	if _, exists := n.vars[name]; exists {
		return state.Ref{}, simerr.New(simerr.Usage, "%s: variable %q already declared", n.FullName(), name)
	}
	ref := n.store.AllocInt(width)
	if !n.intSeen {
		n.baseInt = ref.Offset
		n.intSeen = true
	}
	n.vars[name] = &varInfo{kind: state.KindInt, local: ref.Offset - n.baseInt, count: 1, width: width}
	return ref, nil
}

// DeclareIntArray allocates count contiguous Int slots local to n.
func (n *Node) DeclareIntArray(name string, width uint, count int) ([]state.Ref, error) {
	if count <= 0 {
		return nil, simerr.New(simerr.Usage, "%s: array %q must have positive length", n.FullName(), name)
	}
	if _, exists := n.vars[name]; exists {
		return nil, simerr.New(simerr.Usage, "%s: variable %q already declared", n.FullName(), name)
	}
	refs := make([]state.Ref, count)
	for i := 0; i < count; i++ {
		refs[i] = n.store.AllocInt(width)
		if !n.intSeen {
			n.baseInt = refs[i].Offset
			n.intSeen = true
		}
	}
	n.vars[name] = &varInfo{kind: state.KindInt, local: refs[0].Offset - n.baseInt, count: count, width: width}
	return refs, nil
}

// DeclareChannel allocates one Channel slot of the given data width.
func (n *Node) DeclareChannel(name string, width uint) (state.Ref, error) {
	if _, exists := n.vars[name]; exists {
		return state.Ref{}, simerr.New(simerr.Usage, "%s: variable %q already declared", n.FullName(), name)
	}
	ref := n.store.AllocChannel(width)
	if !n.chanSeen {
		n.baseChan = ref.Offset
		n.chanSeen = true
	}
	n.vars[name] = &varInfo{kind: state.KindChannel, local: ref.Offset - n.baseChan, count: 1, width: width}
	return ref, nil
}

// segment is one dotted path element, e.g. "req" or "req[2]".
type segment struct {
	name string
	idx  *int
}

var errBadSegment = simerr.New(simerr.Usage, "malformed identifier segment")

func parseSegment(s string) (segment, error) {
	s = strings.TrimSpace(s)
	open := strings.IndexByte(s, '[')
	if open < 0 {
		if s == "" {
			return segment{}, errBadSegment
		}
		return segment{name: s}, nil
	}
	if !strings.HasSuffix(s, "]") {
		return segment{}, errBadSegment
	}
	name := strings.TrimSpace(s[:open])
	idxStr := strings.TrimSpace(s[open+1 : len(s)-1])
	if name == "" || idxStr == "" {
		return segment{}, errBadSegment
	}
	idx, err := strconv.Atoi(idxStr)
	if err != nil || idx < 0 {
		return segment{}, errBadSegment
	}
	return segment{name: name, idx: &idx}, nil
}

func parsePath(path string) ([]segment, error) {
	parts := strings.Split(path, ".")
	segs := make([]segment, 0, len(parts))
	for _, p := range parts {
		seg, err := parseSegment(p)
		if err != nil {
			return nil, simerr.New(simerr.Usage, "malformed identifier %q", path)
		}
		segs = append(segs, seg)
	}
	return segs, nil
}

// Canonical normalizes a dotted identifier's whitespace, giving one
// stable string for identifiers that differ only in how they are typed
// (e.g. "a . b[ 2]" and "a.b[2]").
func Canonical(path string) (string, error) {
	segs, err := parsePath(path)
	if err != nil {
		return "", err
	}
	parts := make([]string, len(segs))
	for i, s := range segs {
		if s.idx != nil {
			parts[i] = fmt.Sprintf("%s[%d]", s.name, *s.idx)
		} else {
			parts[i] = s.name
		}
	}
	return strings.Join(parts, "."), nil
}

// Resolve walks path from n, descending through instance children for
// every segment but the last, and resolves the last segment as a
// variable name (with an optional array index) local to the instance it
// lands on.
func (n *Node) Resolve(path string) (state.Ref, error) {
	segs, err := parsePath(path)
	if err != nil {
		return state.Ref{}, err
	}
	if len(segs) == 0 {
		return state.Ref{}, simerr.New(simerr.Usage, "empty identifier")
	}
	cur := n
	for _, seg := range segs[:len(segs)-1] {
		if seg.idx != nil {
			return state.Ref{}, simerr.New(simerr.Resolution, "%q: instance path segments cannot be indexed", path)
		}
		next, ok := cur.children[seg.name]
		if !ok {
			return state.Ref{}, simerr.New(simerr.Resolution, "%s: no child instance %q", cur.FullName(), seg.name)
		}
		cur = next
	}
	last := segs[len(segs)-1]
	v, ok := cur.vars[last.name]
	if !ok {
		return state.Ref{}, simerr.New(simerr.Resolution, "%s: no such variable %q", cur.FullName(), last.name)
	}
	offset := v.local
	if v.count > 1 {
		if last.idx == nil {
			return state.Ref{}, simerr.New(simerr.Usage, "%s: %q is an array, an index is required", cur.FullName(), last.name)
		}
		if *last.idx >= v.count {
			return state.Ref{}, simerr.New(simerr.Resolution, "%s: index %d out of range for %q[%d]", cur.FullName(), *last.idx, last.name, v.count)
		}
		offset += *last.idx
	} else if last.idx != nil {
		return state.Ref{}, simerr.New(simerr.Usage, "%s: %q is not an array, it cannot be indexed", cur.FullName(), last.name)
	}
	switch v.kind {
	case state.KindBool:
		return state.Ref{Kind: state.KindBool, Offset: cur.baseBool + offset}, nil
	case state.KindInt:
		return state.Ref{Kind: state.KindInt, Offset: cur.baseInt + offset}, nil
	case state.KindChannel:
		return state.Ref{Kind: state.KindChannel, Offset: cur.baseChan + offset}, nil
	default:
		return state.Ref{}, simerr.New(simerr.Resolution, "%s: %q has unknown kind", cur.FullName(), last.name)
	}
}

// Width reports the declared bitwidth of an Int or Channel variable
// local to n, resolving arrays without an index to their element width.
func (n *Node) Width(name string) (uint, error) {
	v, ok := n.vars[name]
	if !ok {
		return 0, simerr.New(simerr.Resolution, "%s: no such variable %q", n.FullName(), name)
	}
	return v.width, nil
}
