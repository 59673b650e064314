// Package po reads and writes gettext PO files.
package po

import (
	"bufio"
	"bytes"
	"fmt"
	"strconv"
	"strings"

	"pfs-go/internal/pfs"
)

// pluralSep joins plural forms inside a single unit field.
const pluralSep = "\x00"

// Codec implements pfs.Codec for gettext PO files.
type Codec struct{}

var _ pfs.Codec = (*Codec)(nil)

// New creates a PO codec.
func New() *Codec { return &Codec{} }

type entry struct {
	comments   []string
	context    string
	hasContext bool
	msgid      string
	plural     string
	hasPlural  bool
	msgstr     []string
	obsolete   bool
}

// Parse reads PO data into units, in file order. The header entry and
// obsolete (#~) entries are skipped.
func (c *Codec) Parse(data []byte) ([]*pfs.Unit, error) {
	var units []*pfs.Unit
	var cur *entry
	var target *string
	lineNo := 0

	flush := func() {
		if cur == nil {
			return
		}
		if !cur.obsolete && (cur.msgid != "" || cur.hasContext) {
			units = append(units, cur.unit(len(units)))
		}
		cur = nil
		target = nil
	}
	start := func() {
		if cur == nil {
			cur = &entry{}
		}
	}

	scanner := bufio.NewScanner(bytes.NewReader(data))
	scanner.Buffer(make([]byte, 64*1024), 16*1024*1024)
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())

		switch {
		case line == "":
			flush()
		case strings.HasPrefix(line, "#~"):
			start()
			cur.obsolete = true
		case strings.HasPrefix(line, "#"):
			if cur != nil && target != nil {
				// A comment after msgstr starts the next entry.
				flush()
			}
			start()
			if line == "#" {
				cur.comments = append(cur.comments, "")
			} else if strings.HasPrefix(line, "# ") {
				cur.comments = append(cur.comments, line[2:])
			}
		case strings.HasPrefix(line, "msgctxt "):
			if cur != nil && target != nil {
				flush()
			}
			start()
			s, err := unquote(line[len("msgctxt "):], lineNo)
			if err != nil {
				return nil, err
			}
			cur.context, cur.hasContext = s, true
			target = &cur.context
		case strings.HasPrefix(line, "msgid_plural "):
			if cur == nil {
				return nil, fmt.Errorf("line %d: msgid_plural without msgid", lineNo)
			}
			s, err := unquote(line[len("msgid_plural "):], lineNo)
			if err != nil {
				return nil, err
			}
			cur.plural, cur.hasPlural = s, true
			target = &cur.plural
		case strings.HasPrefix(line, "msgid "):
			if cur != nil && (cur.obsolete || (target != nil && target != &cur.context)) {
				flush()
			}
			start()
			s, err := unquote(line[len("msgid "):], lineNo)
			if err != nil {
				return nil, err
			}
			cur.msgid = s
			target = &cur.msgid
		case strings.HasPrefix(line, "msgstr"):
			if cur == nil {
				return nil, fmt.Errorf("line %d: msgstr without msgid", lineNo)
			}
			idx, rest, err := parseMsgstrKey(line, lineNo)
			if err != nil {
				return nil, err
			}
			s, err := unquote(rest, lineNo)
			if err != nil {
				return nil, err
			}
			for len(cur.msgstr) <= idx {
				cur.msgstr = append(cur.msgstr, "")
			}
			cur.msgstr[idx] = s
			target = &cur.msgstr[idx]
		case strings.HasPrefix(line, `"`):
			if target == nil {
				return nil, fmt.Errorf("line %d: string continuation outside an entry", lineNo)
			}
			s, err := unquote(line, lineNo)
			if err != nil {
				return nil, err
			}
			*target += s
		default:
			return nil, fmt.Errorf("line %d: unexpected %q", lineNo, line)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading po data: %w", err)
	}
	flush()
	return units, nil
}

func (e *entry) unit(index int) *pfs.Unit {
	source := e.msgid
	var target string
	if len(e.msgstr) > 0 {
		target = e.msgstr[0]
	}
	if e.hasPlural {
		source = e.msgid + pluralSep + e.plural
		target = strings.Join(e.msgstr, pluralSep)
	}
	return &pfs.Unit{
		UnitID:  pfs.MakeUnitID(e.context, source),
		Context: e.context,
		Source:  source,
		Target:  target,
		Comment: strings.Join(e.comments, "\n"),
		Index:   index,
	}
}

func parseMsgstrKey(line string, lineNo int) (int, string, error) {
	rest := strings.TrimPrefix(line, "msgstr")
	if strings.HasPrefix(rest, " ") {
		return 0, strings.TrimSpace(rest), nil
	}
	if !strings.HasPrefix(rest, "[") {
		return 0, "", fmt.Errorf("line %d: malformed msgstr", lineNo)
	}
	end := strings.Index(rest, "]")
	if end < 0 {
		return 0, "", fmt.Errorf("line %d: malformed msgstr index", lineNo)
	}
	idx, err := strconv.Atoi(rest[1:end])
	if err != nil {
		return 0, "", fmt.Errorf("line %d: malformed msgstr index: %w", lineNo, err)
	}
	return idx, strings.TrimSpace(rest[end+1:]), nil
}

func unquote(s string, lineNo int) (string, error) {
	s = strings.TrimSpace(s)
	if len(s) < 2 || s[0] != '"' || s[len(s)-1] != '"' {
		return "", fmt.Errorf("line %d: expected quoted string, got %q", lineNo, s)
	}
	s = s[1 : len(s)-1]

	var b strings.Builder
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c != '\\' {
			b.WriteByte(c)
			continue
		}
		i++
		if i >= len(s) {
			return "", fmt.Errorf("line %d: trailing backslash", lineNo)
		}
		switch s[i] {
		case 'n':
			b.WriteByte('\n')
		case 't':
			b.WriteByte('\t')
		case 'r':
			b.WriteByte('\r')
		case '"':
			b.WriteByte('"')
		case '\\':
			b.WriteByte('\\')
		default:
			b.WriteByte('\\')
			b.WriteByte(s[i])
		}
	}
	return b.String(), nil
}
