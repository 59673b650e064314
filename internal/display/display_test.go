package display

import (
	"bytes"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"pfs-go/internal/pfs"
)

func TestPrinter_State(t *testing.T) {
	s := pfs.NewState(pfs.Snapshot{},
		&pfs.StateItem{Type: pfs.StateFSUntracked, PootlePath: "/fr/tutorial/b.po", FSPath: "/fr/b.po"},
		&pfs.StateItem{Type: pfs.StateFSUntracked, PootlePath: "/fr/tutorial/a.po", FSPath: "/fr/a.po"},
		&pfs.StateItem{Type: pfs.StateConflict, PootlePath: "/de/tutorial/a.po", FSPath: "/de/a.po"},
		&pfs.StateItem{Type: pfs.StateUnchanged, PootlePath: "/es/tutorial/a.po", FSPath: "/es/a.po"},
	)

	var buf bytes.Buffer
	New(&buf, false).State("tutorial", s, false)
	out := buf.String()

	assert.Contains(t, out, "State for project 'tutorial'")
	assert.Contains(t, out, "Untracked files\n  ---------------\n")
	assert.Contains(t, out, "    /fr/tutorial/a.po\n     <-->  /fr/a.po\n")
	assert.NotContains(t, out, "/es/a.po", "unchanged pairs are hidden")
	assert.Less(t, strings.Index(out, "Conflicts"), strings.Index(out, "Untracked files"), "buckets follow display order")
	assert.Less(t, strings.Index(out, "/fr/a.po"), strings.Index(out, "/fr/b.po"))

	buf.Reset()
	New(&buf, false).State("tutorial", s, true)
	assert.Contains(t, buf.String(), "/es/a.po")
}

func TestPrinter_StateUpToDate(t *testing.T) {
	var buf bytes.Buffer
	New(&buf, false).State("tutorial", pfs.NewState(pfs.Snapshot{}), false)
	assert.Contains(t, buf.String(), "Everything up-to-date")
}

func TestPrinter_Response(t *testing.T) {
	resp := pfs.NewResponse("sync", "run-7")
	resp.Add(pfs.ActionPulledToPootle, &pfs.StateItem{PootlePath: "/fr/tutorial/a.po", FSPath: "/fr/a.po"})
	resp.AddFailed(pfs.ActionPushedToFS, &pfs.StateItem{PootlePath: "/de/tutorial/a.po", FSPath: "/de/a.po"}, errors.New("disk full"))
	resp.AddWarning(pfs.ActionPulledToPootle, &pfs.StateItem{PootlePath: "/es/tutorial/a.po", FSPath: "/es/a.po"}, "file vanished")

	var buf bytes.Buffer
	New(&buf, false).Response(resp)
	out := buf.String()

	assert.Contains(t, out, "Pulled to Pootle")
	assert.Contains(t, out, "failed: disk full")
	assert.Contains(t, out, "skipped: file vanished")
	assert.Contains(t, out, "1 completed, 1 failed, 1 skipped (run run-7)")
}

func TestPrinter_ResponseEmpty(t *testing.T) {
	var buf bytes.Buffer
	New(&buf, false).Response(pfs.NewResponse("add", "run"))
	assert.Equal(t, "Nothing to do\n", buf.String())
}

func TestPrinter_History(t *testing.T) {
	started := time.Date(2024, 1, 15, 10, 30, 0, 0, time.UTC)
	finished := started.Add(1500 * time.Millisecond)
	ops := []*pfs.SyncOperation{
		{RunID: "run-2", Operation: "sync", Status: "partial", StartedAt: started, FinishedAt: &finished},
		{RunID: "run-1", Operation: "add", Status: "running", StartedAt: started},
	}

	var buf bytes.Buffer
	New(&buf, false).History(ops)
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")

	assert.Len(t, lines, 2)
	assert.True(t, strings.HasPrefix(lines[0], "run-2  sync"))
	assert.Contains(t, lines[0], "partial")
	assert.Contains(t, lines[0], "1.5s")

	buf.Reset()
	New(&buf, false).History(nil)
	assert.Equal(t, "No operations recorded.\n", buf.String())
}

func TestPrinter_Run(t *testing.T) {
	op := &pfs.SyncOperation{RunID: "run-1", Operation: "sync", Status: "success", StartedAt: time.Now()}
	actions := []*pfs.ActionRecord{
		{Action: pfs.ActionPulledToPootle, PootlePath: "/fr/tutorial/a.po", FSPath: "/fr/a.po"},
		{Action: pfs.ActionPulledToPootle, PootlePath: "/fr/tutorial/b.po", FSPath: "/fr/b.po", Failed: true, Error: "bad header"},
	}

	var buf bytes.Buffer
	New(&buf, false).Run(op, actions)
	out := buf.String()

	assert.Equal(t, 1, strings.Count(out, "Pulled to Pootle\n"), "consecutive actions share a section")
	assert.Contains(t, out, "failed: bad header")
}

func TestPrinter_Info(t *testing.T) {
	info := &pfs.Info{
		Project: &pfs.Project{
			Code:               "tutorial",
			FSType:             "localfs",
			FSURL:              "/srv/translations",
			TranslationMapping: "/<language_code>.po",
			LangMapping:        map[string]string{"pt_BR": "pt-br", "zh_CN": "zh-hans"},
		},
		LocalPath: "/data/fs/tutorial",
		Snapshot:  pfs.Snapshot{PootleRevision: 4, SyncRevision: 2, FSRevision: "0123456789abcdef"},
		Tracked:   3,
	}

	var buf bytes.Buffer
	New(&buf, false).Info(info)
	out := buf.String()

	assert.Contains(t, out, "fs_type:             localfs")
	assert.Contains(t, out, "lang_mapping:        pt_BR=pt-br, zh_CN=zh-hans")
	assert.Contains(t, out, "no (run fetch)")
	assert.Contains(t, out, "pootle=4 sync=2 fs=0123456789ab")
}

func TestPrinter_Units(t *testing.T) {
	doc := &pfs.Document{PootlePath: "/fr/tutorial/a.po"}
	units := []*pfs.Unit{
		{Index: 0, Source: "Hello", Target: "Bonjour", Revision: 3},
		{Index: 1, Context: "menu", Source: "File"},
	}

	var buf bytes.Buffer
	New(&buf, false).Units(doc, units)
	out := buf.String()

	assert.Contains(t, out, "   0  Hello\n      r3  Bonjour\n")
	assert.Contains(t, out, "menu | File")
	assert.Contains(t, out, "(untranslated)")
}

func TestPrinter_Styled(t *testing.T) {
	var buf bytes.Buffer
	New(&buf, true).Projects([]*pfs.Project{{Code: "tutorial", FSType: "s3", FSURL: "s3://b/tutorial"}})
	assert.Contains(t, buf.String(), "tutorial")
}
