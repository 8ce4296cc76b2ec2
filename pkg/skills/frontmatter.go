package skills

import (
	"bytes"
	"regexp"
	"strings"

	"github.com/mitchellh/mapstructure"
	"github.com/pkg/errors"
	"github.com/yuin/goldmark"
	meta "github.com/yuin/goldmark-meta"
	"github.com/yuin/goldmark/parser"
)

// ErrNoFrontmatter is returned when SKILL.md does not start with a --- block.
var ErrNoFrontmatter = errors.New("missing or invalid YAML frontmatter")

var (
	frontmatterRe = regexp.MustCompile(`^---\n([\s\S]*?)\n---`)
	contentVerRe  = regexp.MustCompile(`(?m)^version:\s*(.+)`)
	inlineListRe  = regexp.MustCompile(`^\[(.*)\]$`)
	bulletItemRe  = regexp.MustCompile(`^\s+-\s+(.+)$`)
)

// ExtractFrontmatter returns the raw text between the leading --- markers.
func ExtractFrontmatter(content string) (string, bool) {
	content = strings.ReplaceAll(content, "\r\n", "\n")
	m := frontmatterRe.FindStringSubmatch(content)
	if m == nil {
		return "", false
	}
	return m[1], true
}

// ParseFrontmatter parses the frontmatter of a SKILL.md document. YAML is
// decoded through goldmark-meta; when the YAML is malformed the fields are
// recovered line by line so a stray colon in a description does not hide the
// version or dependencies.
func ParseFrontmatter(content []byte) (*Frontmatter, error) {
	raw, ok := ExtractFrontmatter(string(content))
	if !ok {
		return nil, ErrNoFrontmatter
	}

	fm, err := decodeYAMLFrontmatter(content)
	if err != nil {
		fm = parseFrontmatterLines(raw)
	}

	// Keep the version exactly as written; YAML would turn 1.0 into a float.
	if v := scalarField(raw, "version"); v != "" {
		fm.Version = v
	}

	fm.Dependencies = normalizeDependencies(fm.Dependencies)
	return fm, nil
}

func decodeYAMLFrontmatter(content []byte) (*Frontmatter, error) {
	md := goldmark.New(
		goldmark.WithExtensions(meta.Meta),
	)

	var buf bytes.Buffer
	pctx := parser.NewContext()
	normalized := bytes.ReplaceAll(content, []byte("\r\n"), []byte("\n"))
	if err := md.Convert(normalized, &buf, parser.WithContext(pctx)); err != nil {
		return nil, errors.Wrap(err, "failed to parse markdown")
	}

	metaData, err := meta.TryGet(pctx)
	if err != nil {
		return nil, errors.Wrap(err, "failed to decode frontmatter")
	}
	if metaData == nil {
		return nil, ErrNoFrontmatter
	}

	var fm Frontmatter
	if err := mapstructure.WeakDecode(metaData, &fm); err != nil {
		return nil, errors.Wrap(err, "failed to map frontmatter fields")
	}
	return &fm, nil
}

// parseFrontmatterLines is the tolerant fallback used for frontmatter that is
// not valid YAML.
func parseFrontmatterLines(raw string) *Frontmatter {
	return &Frontmatter{
		Name:         scalarField(raw, "name"),
		Description:  scalarField(raw, "description"),
		Version:      scalarField(raw, "version"),
		Dependencies: parseDependencyLines(raw),
	}
}

// scalarField returns the trimmed value of the first "key: value" line.
func scalarField(raw, key string) string {
	re := regexp.MustCompile(`(?m)^` + regexp.QuoteMeta(key) + `:[ \t]*(.*)$`)
	m := re.FindStringSubmatch(raw)
	if m == nil {
		return ""
	}
	return unquote(strings.TrimSpace(m[1]))
}

// parseDependencyLines understands both `dependencies: [a, b]` and a bullet
// list on the following indented lines.
func parseDependencyLines(raw string) []string {
	lines := strings.Split(raw, "\n")
	for i, line := range lines {
		if !strings.HasPrefix(line, "dependencies:") {
			continue
		}

		value := strings.TrimSpace(strings.TrimPrefix(line, "dependencies:"))
		if m := inlineListRe.FindStringSubmatch(value); m != nil {
			var deps []string
			for _, item := range strings.Split(m[1], ",") {
				deps = append(deps, unquote(strings.TrimSpace(item)))
			}
			return deps
		}
		if value != "" {
			return []string{unquote(value)}
		}

		var deps []string
		for _, next := range lines[i+1:] {
			m := bulletItemRe.FindStringSubmatch(next)
			if m == nil {
				break
			}
			deps = append(deps, unquote(strings.TrimSpace(m[1])))
		}
		return deps
	}
	return nil
}

func normalizeDependencies(deps []string) []string {
	if len(deps) == 0 {
		return nil
	}
	seen := make(map[string]bool, len(deps))
	out := make([]string, 0, len(deps))
	for _, d := range deps {
		d = strings.TrimSpace(d)
		if d == "" || seen[d] {
			continue
		}
		seen[d] = true
		out = append(out, d)
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

func unquote(s string) string {
	if len(s) >= 2 {
		if (s[0] == '"' && s[len(s)-1] == '"') || (s[0] == '\'' && s[len(s)-1] == '\'') {
			return s[1 : len(s)-1]
		}
	}
	return s
}

// ParseVersionFromContent returns the first top-level version line of a
// SKILL.md document, or DefaultVersion.
func ParseVersionFromContent(content string) string {
	if content == "" {
		return DefaultVersion
	}
	m := contentVerRe.FindStringSubmatch(strings.ReplaceAll(content, "\r\n", "\n"))
	if m == nil {
		return DefaultVersion
	}
	return unquote(strings.TrimSpace(m[1]))
}

// ExtractBody removes the YAML frontmatter and returns the document body.
func ExtractBody(content string) string {
	if !strings.HasPrefix(content, "---") {
		return content
	}

	lines := strings.Split(content, "\n")
	frontmatterEnd := -1

	for i := 1; i < len(lines); i++ {
		if strings.TrimSpace(lines[i]) == "---" {
			frontmatterEnd = i
			break
		}
	}

	if frontmatterEnd == -1 {
		return content
	}

	return strings.TrimLeft(strings.Join(lines[frontmatterEnd+1:], "\n"), "\n")
}
