// Package frontmatter reads and edits the YAML block at the top of a markdown
// document without disturbing the bytes it does not touch.
//
// Values are located with yaml.v3's node positions and rewritten line by line,
// so key order, comments and quoting of unrelated keys survive every edit.
package frontmatter

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

var (
	// ErrMalformedFrontMatter indicates the YAML block could not be parsed.
	ErrMalformedFrontMatter = errors.New("frontmatter: malformed frontmatter")
	// ErrUnsupportedValue indicates a value that cannot be edited in place.
	ErrUnsupportedValue = errors.New("frontmatter: value cannot be edited in place")
)

const fence = "---"

// Document is a markdown file split into its YAML block and body.
type Document struct {
	HasFrontMatter bool

	lines            []string
	body             string
	crlf             bool
	bareClosingFence bool
	root             *yaml.Node
}

// Parse splits content into frontmatter and body. A document without a
// leading fence is valid and has no frontmatter.
func Parse(content string) (*Document, error) {
	doc := &Document{}
	if strings.Contains(content, "\r\n") {
		doc.crlf = true
		content = strings.ReplaceAll(content, "\r\n", "\n")
	}

	if !strings.HasPrefix(content, fence+"\n") {
		doc.body = content
		return doc, nil
	}

	rest := content[len(fence)+1:]
	var yamlText string
	switch {
	case strings.HasPrefix(rest, fence+"\n"):
		doc.body = rest[len(fence)+1:]
	case rest == fence:
		doc.body = ""
		doc.bareClosingFence = true
	default:
		idx := strings.Index(rest, "\n"+fence+"\n")
		if idx < 0 {
			if strings.HasSuffix(rest, "\n"+fence) {
				idx = len(rest) - len(fence) - 1
				yamlText = rest[:idx]
				doc.body = ""
				doc.bareClosingFence = true
				break
			}
			return nil, fmt.Errorf("%w: missing closing fence", ErrMalformedFrontMatter)
		}
		yamlText = rest[:idx]
		doc.body = rest[idx+len(fence)+2:]
	}

	doc.HasFrontMatter = true
	if yamlText != "" {
		doc.lines = strings.Split(yamlText, "\n")
	}
	if err := doc.reparse(); err != nil {
		return nil, err
	}
	return doc, nil
}

func (d *Document) reparse() error {
	d.root = nil
	text := strings.Join(d.lines, "\n")
	if strings.TrimSpace(text) == "" {
		return nil
	}
	var node yaml.Node
	if err := yaml.Unmarshal([]byte(text), &node); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformedFrontMatter, err)
	}
	if len(node.Content) == 0 {
		return nil
	}
	if node.Content[0].Kind != yaml.MappingNode {
		return fmt.Errorf("%w: top level is not a mapping", ErrMalformedFrontMatter)
	}
	d.root = node.Content[0]
	return nil
}

// Body returns the text after the closing fence
func (d *Document) Body() string {
	return d.body
}

// BodyLineOffset is the number of file lines that precede the body
func (d *Document) BodyLineOffset() int {
	if !d.HasFrontMatter {
		return 0
	}
	return len(d.lines) + 2
}

// SetBody replaces the body text
func (d *Document) SetBody(body string) {
	d.body = strings.ReplaceAll(body, "\r\n", "\n")
}

// Decode unmarshals the frontmatter into v
func (d *Document) Decode(v interface{}) error {
	if d.root == nil {
		return nil
	}
	if err := d.root.Decode(v); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformedFrontMatter, err)
	}
	return nil
}

// Get returns the scalar value at path
func (d *Document) Get(path ...string) (string, bool) {
	n := lookup(d.root, path)
	if n == nil || n.Kind != yaml.ScalarNode {
		return "", false
	}
	return n.Value, true
}

// Has reports whether a key exists at path
func (d *Document) Has(path ...string) bool {
	return lookup(d.root, path) != nil
}

// Set rewrites an existing scalar value. It never adds keys. Returns true when
// the text changed.
func (d *Document) Set(value string, path ...string) (bool, error) {
	key, n := lookupPair(d.root, path)
	if n == nil {
		return false, nil
	}
	if n.Kind != yaml.ScalarNode || n.Style&(yaml.LiteralStyle|yaml.FoldedStyle) != 0 {
		return false, fmt.Errorf("%w: %s", ErrUnsupportedValue, strings.Join(path, "."))
	}
	if n.Value == value {
		return false, nil
	}

	rendered := renderScalar(value, n.Style)
	idx := n.Line - 1
	col := n.Column - 1
	if n.Value == "" && key != nil {
		// "key:" with no value; rebuild from the key position
		idx = key.Line - 1
		col = key.Column - 1 + len(key.Value) + 2
		d.lines[idx] = d.lines[idx][:key.Column-1] + key.Value + ": "
	}
	line := d.lines[idx]
	if col > len(line) {
		return false, fmt.Errorf("%w: %s", ErrUnsupportedValue, strings.Join(path, "."))
	}
	comment := n.LineComment
	if comment == "" && key != nil {
		comment = key.LineComment
	}
	if comment != "" {
		rendered += " " + comment
	}
	d.lines[idx] = line[:col] + rendered
	if err := d.reparse(); err != nil {
		return false, err
	}
	return true, nil
}

// Upsert sets the value at path, creating missing mappings along the way.
// New keys are appended after the last line of their parent mapping.
func (d *Document) Upsert(value string, path ...string) (bool, error) {
	if len(path) == 0 {
		return false, fmt.Errorf("frontmatter: empty path")
	}
	if d.Has(path...) {
		return d.Set(value, path...)
	}
	if !d.HasFrontMatter {
		d.HasFrontMatter = true
	}

	parent := d.root
	depth := 0
	indent := 0
	for parent != nil && depth < len(path)-1 {
		child := lookup(parent, path[depth:depth+1])
		if child == nil {
			break
		}
		if child.Kind != yaml.MappingNode || child.Style&yaml.FlowStyle != 0 {
			return false, fmt.Errorf("%w: %s", ErrUnsupportedValue, strings.Join(path[:depth+1], "."))
		}
		parent = child
		depth++
	}

	insertAt := len(d.lines)
	if parent != nil && parent != d.root {
		insertAt = lastLine(parent)
		if len(parent.Content) > 0 {
			indent = parent.Content[0].Column - 1
		}
	} else if parent == d.root && d.root != nil {
		insertAt = len(d.lines)
		for insertAt > 0 && strings.TrimSpace(d.lines[insertAt-1]) == "" {
			insertAt--
		}
	}

	var added []string
	for i := depth; i < len(path); i++ {
		pad := strings.Repeat(" ", indent+(i-depth)*2)
		if i == len(path)-1 {
			added = append(added, pad+path[i]+": "+renderScalar(value, yaml.DoubleQuotedStyle))
		} else {
			added = append(added, pad+path[i]+":")
		}
	}

	lines := make([]string, 0, len(d.lines)+len(added))
	lines = append(lines, d.lines[:insertAt]...)
	lines = append(lines, added...)
	lines = append(lines, d.lines[insertAt:]...)
	d.lines = lines
	if err := d.reparse(); err != nil {
		return false, err
	}
	return true, nil
}

// String renders the document back to text with its original line endings
func (d *Document) String() string {
	var b strings.Builder
	if d.HasFrontMatter {
		b.WriteString(fence + "\n")
		if len(d.lines) > 0 {
			b.WriteString(strings.Join(d.lines, "\n"))
			b.WriteString("\n")
		}
		b.WriteString(fence)
		if !d.bareClosingFence || d.body != "" {
			b.WriteString("\n")
		}
	}
	b.WriteString(d.body)
	out := b.String()
	if d.crlf {
		out = strings.ReplaceAll(out, "\n", "\r\n")
	}
	return out
}

func lookup(node *yaml.Node, path []string) *yaml.Node {
	_, value := lookupPair(node, path)
	return value
}

// lookupPair walks a mapping path and returns the final key and value nodes
func lookupPair(node *yaml.Node, path []string) (*yaml.Node, *yaml.Node) {
	var key *yaml.Node
	cur := node
	for _, k := range path {
		if cur == nil || cur.Kind != yaml.MappingNode {
			return nil, nil
		}
		var next *yaml.Node
		for i := 0; i+1 < len(cur.Content); i += 2 {
			if cur.Content[i].Value == k {
				key = cur.Content[i]
				next = cur.Content[i+1]
				break
			}
		}
		cur = next
	}
	if cur == nil {
		return nil, nil
	}
	return key, cur
}

// lastLine returns the 1-based line of the deepest last descendant of n
func lastLine(n *yaml.Node) int {
	max := n.Line
	for _, c := range n.Content {
		if l := lastLine(c); l > max {
			max = l
		}
	}
	return max
}

func renderScalar(value string, style yaml.Style) string {
	switch {
	case style&yaml.DoubleQuotedStyle != 0:
		return strconv.Quote(value)
	case style&yaml.SingleQuotedStyle != 0:
		return "'" + strings.ReplaceAll(value, "'", "''") + "'"
	case needsQuoting(value):
		return strconv.Quote(value)
	default:
		return value
	}
}

func needsQuoting(value string) bool {
	if value == "" {
		return true
	}
	if strings.ContainsAny(value, "#\n\"'{}[],&*!|>%@`") || strings.Contains(value, ": ") {
		return true
	}
	return strings.HasPrefix(value, " ") || strings.HasSuffix(value, " ") || strings.HasPrefix(value, "-")
}
