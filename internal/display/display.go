// Package display renders states, responses and history for the terminal.
package display

import (
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"golang.org/x/term"

	"pfs-go/internal/pfs"
)

// IsTerminal reports whether f is attached to a terminal.
func IsTerminal(f *os.File) bool {
	return term.IsTerminal(int(f.Fd()))
}

type styles struct {
	heading lipgloss.Style
	title   lipgloss.Style
	faint   lipgloss.Style
	failed  lipgloss.Style
	warning lipgloss.Style
	ok      lipgloss.Style
}

func newStyles(w io.Writer, styled bool) styles {
	if !styled {
		plain := lipgloss.NewStyle()
		return styles{plain, plain, plain, plain, plain, plain}
	}
	r := lipgloss.NewRenderer(w)
	return styles{
		heading: r.NewStyle().Bold(true).Underline(true),
		title:   r.NewStyle().Bold(true).Foreground(lipgloss.Color("12")),
		faint:   r.NewStyle().Faint(true),
		failed:  r.NewStyle().Foreground(lipgloss.Color("9")),
		warning: r.NewStyle().Foreground(lipgloss.Color("11")),
		ok:      r.NewStyle().Foreground(lipgloss.Color("10")),
	}
}

// Printer writes reports to w.
type Printer struct {
	w io.Writer
	s styles
}

// New creates a Printer. When styled is false the output is plain text.
func New(w io.Writer, styled bool) *Printer {
	return &Printer{w: w, s: newStyles(w, styled)}
}

func (p *Printer) printf(format string, args ...any) {
	fmt.Fprintf(p.w, format, args...)
}

func (p *Printer) section(title, description string) {
	p.printf("  %s\n", p.s.title.Render(title))
	p.printf("  %s\n", p.s.title.Render(strings.Repeat("-", len(title))))
	if description != "" {
		p.printf("  %s\n", p.s.faint.Render(description))
	}
	p.printf("\n")
}

func (p *Printer) pair(pootlePath, fsPath string) {
	p.printf("    %s\n", pootlePath)
	p.printf("     <-->  %s\n", fsPath)
}

// State prints every non-empty bucket of s. Unchanged pairs are listed
// only when showUnchanged is set.
func (p *Printer) State(project string, s *pfs.State, showUnchanged bool) {
	p.printf("%s\n\n", p.s.heading.Render(fmt.Sprintf("State for project '%s'", project)))
	if s.Changed() == 0 && !showUnchanged {
		p.printf("  %s\n", p.s.ok.Render("Everything up-to-date"))
		return
	}
	for _, info := range pfs.States {
		if info.Type == pfs.StateUnchanged && !showUnchanged {
			continue
		}
		items := s.Items(info.Type)
		if len(items) == 0 {
			continue
		}
		p.section(info.Title, info.Description)
		for _, item := range items {
			p.pair(item.PootlePath, item.FSPath)
		}
		p.printf("\n")
	}
}

// Response prints the actions of r grouped by type, failures and warnings
// included.
func (p *Printer) Response(r *pfs.Response) {
	if r.Len() == 0 {
		p.printf("%s\n", p.s.faint.Render("Nothing to do"))
		return
	}
	for _, t := range r.ActionTypes() {
		info, _ := pfs.LookupAction(t)
		p.section(info.Title, info.Description)
		for _, a := range r.Items(t) {
			p.pair(a.PootlePath(), a.FSPath())
			switch {
			case a.Failed:
				p.printf("     %s\n", p.s.failed.Render("failed: "+errString(a.Err)))
			case a.Warning != "":
				p.printf("     %s\n", p.s.warning.Render("skipped: "+a.Warning))
			}
		}
		p.printf("\n")
	}
	p.Summary(r)
}

// Summary prints a one-line count of completed, failed and skipped actions.
func (p *Printer) Summary(r *pfs.Response) {
	completed, failed, warned := len(r.Completed()), len(r.Failed()), len(r.Warnings())
	line := fmt.Sprintf("%d completed", completed)
	if failed > 0 {
		line += ", " + p.s.failed.Render(fmt.Sprintf("%d failed", failed))
	}
	if warned > 0 {
		line += ", " + p.s.warning.Render(fmt.Sprintf("%d skipped", warned))
	}
	p.printf("%s (run %s)\n", line, r.RunID)
}

func errString(err error) string {
	if err == nil {
		return "unknown error"
	}
	return err.Error()
}

// History prints one line per operation, most recent first.
func (p *Printer) History(ops []*pfs.SyncOperation) {
	if len(ops) == 0 {
		p.printf("No operations recorded.\n")
		return
	}
	for _, op := range ops {
		duration := ""
		if op.FinishedAt != nil {
			duration = op.FinishedAt.Sub(op.StartedAt).Truncate(time.Millisecond).String()
		}
		p.printf("%s  %-10s  %s  %s  %s\n",
			op.RunID,
			op.Operation,
			op.StartedAt.Local().Format("2006-01-02 15:04:05"),
			p.status(op.Status),
			duration,
		)
	}
}

func (p *Printer) status(status string) string {
	padded := fmt.Sprintf("%-8s", status)
	switch status {
	case "success":
		return p.s.ok.Render(padded)
	case "partial", "running":
		return p.s.warning.Render(padded)
	default:
		return p.s.failed.Render(padded)
	}
}

// Run prints a recorded operation and its actions.
func (p *Printer) Run(op *pfs.SyncOperation, actions []*pfs.ActionRecord) {
	p.printf("%s\n", p.s.heading.Render(fmt.Sprintf("Run %s", op.RunID)))
	p.printf("  operation: %s\n", op.Operation)
	p.printf("  status:    %s\n", p.status(op.Status))
	p.printf("  started:   %s\n\n", op.StartedAt.Local().Format("2006-01-02 15:04:05"))

	var current pfs.ActionType
	for _, a := range actions {
		if a.Action != current {
			current = a.Action
			title := string(a.Action)
			if info, ok := pfs.LookupAction(a.Action); ok {
				title = info.Title
			}
			p.section(title, "")
		}
		p.pair(a.PootlePath, a.FSPath)
		switch {
		case a.Failed:
			p.printf("     %s\n", p.s.failed.Render("failed: "+a.Error))
		case a.Warning != "":
			p.printf("     %s\n", p.s.warning.Render("skipped: "+a.Warning))
		}
	}
}

// Info prints a project summary.
func (p *Printer) Info(info *pfs.Info) {
	pr := info.Project
	p.printf("%s\n", p.s.heading.Render(fmt.Sprintf("Project '%s'", pr.Code)))
	p.printf("  fs_type:             %s\n", pr.FSType)
	p.printf("  fs_url:              %s\n", pr.FSURL)
	p.printf("  translation_mapping: %s\n", pr.TranslationMapping)
	if len(pr.ExcludedLanguages) > 0 {
		p.printf("  excluded_languages:  %s\n", strings.Join(pr.ExcludedLanguages, ", "))
	}
	if len(pr.LangMapping) > 0 {
		p.printf("  lang_mapping:        %s\n", formatLangMapping(pr.LangMapping))
	}
	p.printf("  local_path:          %s\n", info.LocalPath)
	cloned := p.s.warning.Render("no (run fetch)")
	if info.Cloned {
		cloned = p.s.ok.Render("yes")
	}
	p.printf("  fetched:             %s\n", cloned)
	p.printf("  tracked:             %d\n", info.Tracked)
	p.printf("  stores:              %d\n", info.Documents)
	p.printf("  revisions:           pootle=%d sync=%d fs=%s\n",
		info.Snapshot.PootleRevision, info.Snapshot.SyncRevision, shortToken(info.Snapshot.FSRevision))
}

func shortToken(token string) string {
	if token == "" {
		return "-"
	}
	if len(token) > 12 {
		return token[:12]
	}
	return token
}

// formatLangMapping renders a mapping as "upstream=pootle" pairs, sorted.
func formatLangMapping(m map[string]string) string {
	pairs := make([]string, 0, len(m))
	for upstream, pootle := range m {
		pairs = append(pairs, upstream+"="+pootle)
	}
	sort.Strings(pairs)
	return strings.Join(pairs, ", ")
}

// Projects prints one line per project.
func (p *Printer) Projects(projects []*pfs.Project) {
	if len(projects) == 0 {
		p.printf("No projects.\n")
		return
	}
	for _, pr := range projects {
		p.printf("%-20s  %-8s  %s\n", pr.Code, pr.FSType, pr.FSURL)
	}
}

// Stores prints one line per document.
func (p *Printer) Stores(docs []*pfs.Document) {
	if len(docs) == 0 {
		p.printf("No stores.\n")
		return
	}
	for _, d := range docs {
		p.printf("%-50s  rev %d\n", d.PootlePath, d.MaxUnitRevision)
	}
}

// Units prints the units of a document in index order.
func (p *Printer) Units(doc *pfs.Document, units []*pfs.Unit) {
	p.printf("%s\n", p.s.heading.Render(doc.PootlePath))
	for _, u := range units {
		source := u.Source
		if u.Context != "" {
			source = u.Context + " | " + source
		}
		target := u.Target
		if target == "" {
			target = p.s.faint.Render("(untranslated)")
		}
		p.printf("%4d  %s\n      %s  %s\n", u.Index, source, p.s.faint.Render(fmt.Sprintf("r%d", u.Revision)), target)
	}
}
