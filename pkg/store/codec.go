package store

import (
	"fmt"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/recallhq/recall/pkg/entity"
)

// Documents are "front-matter header + body" files: a file-level yaml
// header followed by one section per entity, each section being its own
// yaml front matter plus the entity body (memory content / task
// description).

const (
	fmDelim       = "---"
	sectionMarker = "<!-- entity -->"
)

// fileHeader is the file-level front matter
type fileHeader struct {
	Project string    `yaml:"project"`
	Kind    string    `yaml:"kind"`
	Count   int       `yaml:"count"`
	Updated time.Time `yaml:"updated"`
}

// section is one raw entity block: front matter source + body text
type section struct {
	meta string
	body string
}

// encodeDocument renders a complete document file
func encodeDocument(header fileHeader, sections []section) ([]byte, error) {
	var b strings.Builder

	hdr, err := yaml.Marshal(header)
	if err != nil {
		return nil, fmt.Errorf("marshal header: %w", err)
	}
	b.WriteString(fmDelim + "\n")
	b.Write(hdr)
	b.WriteString(fmDelim + "\n")

	for _, s := range sections {
		b.WriteString("\n" + sectionMarker + "\n")
		b.WriteString(fmDelim + "\n")
		b.WriteString(strings.TrimRight(s.meta, "\n") + "\n")
		b.WriteString(fmDelim + "\n")
		if s.body != "" {
			b.WriteString(s.body)
			if !strings.HasSuffix(s.body, "\n") {
				b.WriteString("\n")
			}
		}
	}

	return []byte(b.String()), nil
}

// decodeDocument splits a document into its header and raw entity sections.
// A malformed header fails the whole file; malformed sections are returned
// as-is for the caller to skip individually.
func decodeDocument(data []byte) (fileHeader, []section, error) {
	var header fileHeader

	text := string(data)
	parts := strings.Split(text, "\n"+sectionMarker+"\n")

	meta, _, err := splitFrontMatter(parts[0])
	if err != nil {
		return header, nil, fmt.Errorf("file header: %w", err)
	}
	if err := yaml.Unmarshal([]byte(meta), &header); err != nil {
		return header, nil, fmt.Errorf("file header: %w", err)
	}

	var sections []section
	for _, p := range parts[1:] {
		if strings.TrimSpace(p) == "" {
			continue
		}
		m, body, err := splitFrontMatter(p)
		if err != nil {
			// preserve the raw block so the caller can log it
			sections = append(sections, section{meta: "", body: p})
			continue
		}
		sections = append(sections, section{meta: m, body: body})
	}

	return header, sections, nil
}

// Body lines that would read back as a section marker are escaped with
// a leading backslash on encode and unescaped on decode, so content
// containing the marker round-trips instead of splitting the document.

func markerLine(line string) bool {
	return strings.TrimLeft(line, `\`) == sectionMarker
}

func escapeBody(body string) string {
	if !strings.Contains(body, sectionMarker) {
		return body
	}
	lines := strings.Split(body, "\n")
	for i, line := range lines {
		if markerLine(line) {
			lines[i] = `\` + line
		}
	}
	return strings.Join(lines, "\n")
}

func unescapeBody(body string) string {
	if !strings.Contains(body, sectionMarker) {
		return body
	}
	lines := strings.Split(body, "\n")
	for i, line := range lines {
		if strings.HasPrefix(line, `\`) && markerLine(line) {
			lines[i] = line[1:]
		}
	}
	return strings.Join(lines, "\n")
}

// splitFrontMatter splits "---\nyaml\n---\nbody" into yaml source and body
func splitFrontMatter(block string) (string, string, error) {
	block = strings.TrimLeft(block, "\n")
	if !strings.HasPrefix(block, fmDelim+"\n") {
		return "", "", fmt.Errorf("missing front matter open delimiter")
	}
	rest := block[len(fmDelim)+1:]
	idx := strings.Index(rest, "\n"+fmDelim)
	if idx < 0 {
		return "", "", fmt.Errorf("missing front matter close delimiter")
	}
	meta := rest[:idx]
	body := rest[idx+len(fmDelim)+1:]
	body = strings.TrimPrefix(body, "\n")
	body = strings.TrimRight(body, "\n")
	return meta, body, nil
}

// encodeMemory renders a memory as a document section
func encodeMemory(m *entity.Memory) (section, error) {
	meta, err := yaml.Marshal(m)
	if err != nil {
		return section{}, fmt.Errorf("marshal memory %s: %w", m.ID, err)
	}
	return section{meta: string(meta), body: escapeBody(m.Content)}, nil
}

// decodeMemory parses a document section into a memory
func decodeMemory(s section) (*entity.Memory, error) {
	if s.meta == "" {
		return nil, fmt.Errorf("entity section has no front matter")
	}
	var m entity.Memory
	if err := yaml.Unmarshal([]byte(s.meta), &m); err != nil {
		return nil, fmt.Errorf("unmarshal memory: %w", err)
	}
	if m.ID == "" {
		return nil, fmt.Errorf("memory section missing id")
	}
	m.Content = unescapeBody(s.body)
	return &m, nil
}

// encodeTask renders a task as a document section
func encodeTask(t *entity.Task) (section, error) {
	meta, err := yaml.Marshal(t)
	if err != nil {
		return section{}, fmt.Errorf("marshal task %s: %w", t.ID, err)
	}
	return section{meta: string(meta), body: escapeBody(t.Description)}, nil
}

// decodeTask parses a document section into a task
func decodeTask(s section) (*entity.Task, error) {
	if s.meta == "" {
		return nil, fmt.Errorf("entity section has no front matter")
	}
	var t entity.Task
	if err := yaml.Unmarshal([]byte(s.meta), &t); err != nil {
		return nil, fmt.Errorf("unmarshal task: %w", err)
	}
	if t.ID == "" {
		return nil, fmt.Errorf("task section missing id")
	}
	t.Description = unescapeBody(s.body)
	return &t, nil
}
