package po

import (
	"bytes"
	"strconv"
	"strings"

	"pfs-go/internal/pfs"
)

const header = `msgid ""
msgstr ""
"Content-Type: text/plain; charset=UTF-8\n"
"Content-Transfer-Encoding: 8bit\n"
`

// Serialize writes units as a PO file with a minimal header.
func (c *Codec) Serialize(units []*pfs.Unit) ([]byte, error) {
	var b bytes.Buffer
	b.WriteString(header)
	for _, u := range units {
		b.WriteString("\n")
		if u.Comment != "" {
			for _, line := range strings.Split(u.Comment, "\n") {
				if line == "" {
					b.WriteString("#\n")
				} else {
					b.WriteString("# " + line + "\n")
				}
			}
		}
		if u.Context != "" {
			writeString(&b, "msgctxt", u.Context)
		}
		source := strings.Split(u.Source, pluralSep)
		writeString(&b, "msgid", source[0])
		if len(source) > 1 {
			writeString(&b, "msgid_plural", source[1])
			for i, form := range strings.Split(u.Target, pluralSep) {
				writeString(&b, "msgstr["+strconv.Itoa(i)+"]", form)
			}
			continue
		}
		writeString(&b, "msgstr", u.Target)
	}
	return b.Bytes(), nil
}

func writeString(b *bytes.Buffer, keyword, s string) {
	lines := splitLines(s)
	if len(lines) <= 1 {
		b.WriteString(keyword + " " + quote(s) + "\n")
		return
	}
	b.WriteString(keyword + ` ""` + "\n")
	for _, line := range lines {
		b.WriteString(quote(line) + "\n")
	}
}

// splitLines splits s after each newline, keeping the newlines.
func splitLines(s string) []string {
	var lines []string
	for {
		i := strings.IndexByte(s, '\n')
		if i < 0 || i == len(s)-1 {
			break
		}
		lines = append(lines, s[:i+1])
		s = s[i+1:]
	}
	return append(lines, s)
}

func quote(s string) string {
	var b strings.Builder
	b.WriteByte('"')
	for i := 0; i < len(s); i++ {
		switch c := s[i]; c {
		case '\n':
			b.WriteString(`\n`)
		case '\t':
			b.WriteString(`\t`)
		case '\r':
			b.WriteString(`\r`)
		case '"':
			b.WriteString(`\"`)
		case '\\':
			b.WriteString(`\\`)
		default:
			b.WriteByte(c)
		}
	}
	b.WriteByte('"')
	return b.String()
}
