package tracker

import (
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/require"

	"github.com/dshills/ppbridge/internal/compdb"
	"github.com/dshills/ppbridge/internal/fsys"
	"github.com/dshills/ppbridge/internal/tokens"
	"github.com/dshills/ppbridge/pkg/types"
)

// harness plays the front end for a set of in-memory files
type harness struct {
	t       *testing.T
	fs      fsys.FileSystem
	sm      *tokens.SourceManager
	entry   *compdb.Entry
	buffers map[string]Buffer
	node    NodeID
}

func newHarness(t *testing.T, mainFile string, files map[string]string) *harness {
	t.Helper()
	mem := afero.NewMemMapFs()
	for name, content := range files {
		require.NoError(t, afero.WriteFile(mem, name, []byte(content), 0644))
	}
	vfs := fsys.NewVirtual("ide", mem, false)
	reg := fsys.NewRegistry(fsys.Options{AlwaysUseVFS: true, VFS: vfs})
	entry := compdb.NewBuilder(reg, compdb.Options{}).Build(&compdb.ProjectHandler{File: mainFile, Lang: "C"})

	h := &harness{
		t:       t,
		fs:      vfs,
		sm:      tokens.NewSourceManager(),
		entry:   entry,
		buffers: make(map[string]Buffer),
	}
	for name, content := range files {
		id := h.sm.AddFile(name, []byte(content), false)
		h.buffers[name] = Buffer{ID: id, Name: name, Content: []byte(content)}
	}
	return h
}

func (h *harness) builtin(name, content string) Buffer {
	id := h.sm.AddFile(name, []byte(content), true)
	b := Buffer{ID: id, Name: name, Builtin: true, Content: []byte(content)}
	h.buffers[name] = b
	return b
}

func (h *harness) buf(name string) Buffer {
	b, ok := h.buffers[name]
	require.True(h.t, ok, "unknown buffer %s", name)
	return b
}

func (h *harness) loc(name string, offset int) tokens.Loc {
	l := h.sm.FileLoc(h.buf(name).ID, offset)
	require.True(h.t, l.IsValid(), "offset %d out of %s", offset, name)
	return l
}

// include reports an #include in file at offset resolving to target
func (h *harness) include(cb *Callback, file string, offset int, spelling, target, searchRoot string, searchIndex int) InclusionEvent {
	h.node++
	ev := InclusionEvent{
		Node:     h.node,
		Spelling: spelling,
		Start:    h.loc(file, offset),
		End:      h.loc(file, offset+len(`#include ""`)+len(spelling)),
	}
	if target != "" {
		ev.File = &FoundFile{
			FS:          h.fs,
			Path:        target,
			SearchRoot:  searchRoot,
			DefaultRoot: searchRoot == "",
			SearchIndex: searchIndex,
		}
	}
	cb.OnInclusionDirective(ev)
	return ev
}

func (h *harness) enter(cb *Callback, from, to string) {
	var f Buffer
	if from != "" {
		f = h.buf(from)
	}
	cb.OnEnter(f, h.buf(to))
}

func (h *harness) exit(cb *Callback, from, to string) {
	var t Buffer
	if to != "" {
		t = h.buf(to)
	}
	cb.OnExit(h.buf(from), t)
}

// recordingDelegate logs every delegate call and declines entering stopAt
type recordingDelegate struct {
	calls  []string
	stopAt string
}

func (d *recordingDelegate) OnEnter(fi FileResult) (bool, error) {
	d.calls = append(d.calls, "enter "+fi.FilePath())
	return fi.FilePath() != d.stopAt, nil
}

func (d *recordingDelegate) OnExit(fi FileResult) (bool, error) {
	d.calls = append(d.calls, "exit "+fi.FilePath())
	return true, nil
}

func (d *recordingDelegate) OnInclusionDirective(fi FileResult, inc *types.InclusionDirective) (bool, error) {
	d.calls = append(d.calls, "include "+inc.Spelling)
	return true, nil
}
