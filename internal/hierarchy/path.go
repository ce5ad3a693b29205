// Package hierarchy provides pure helpers for the hierarchical object paths
// that events and subscriptions are keyed by (e.g. /projects/alpha/tasks/1).
package hierarchy

import (
	"sort"
	"strings"
	"unicode"
	"unicode/utf8"
)

// Normalize ensures a leading slash and strips a trailing slash unless the
// path is exactly "/". Idempotent.
func Normalize(path string) string {
	if path == "" {
		return "/"
	}
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	if len(path) > 1 && strings.HasSuffix(path, "/") {
		path = strings.TrimSuffix(path, "/")
	}
	return path
}

// Ancestors returns every strict ancestor of path, ordered from the immediate
// parent down to the top-level segment. The root sentinel "/" itself is never
// included. For "/" or an empty path the result is empty.
//
//	Ancestors("/a/b/c") == ["/a/b", "/a"]
func Ancestors(path string) []string {
	norm := Normalize(path)
	if norm == "/" {
		return nil
	}

	parts := strings.Split(norm, "/") // parts[0] is always ""
	ancestors := make([]string, 0, len(parts)-2)
	for i := len(parts) - 1; i > 1; i-- {
		ancestors = append(ancestors, strings.Join(parts[:i], "/"))
	}
	return ancestors
}

// IsDescendant reports whether path is strictly nested under ancestor after
// normalization. A path is not a descendant of itself.
func IsDescendant(ancestor, path string) bool {
	a := Normalize(ancestor)
	p := Normalize(path)
	if a == p {
		return false
	}
	if a == "/" {
		return true
	}
	return strings.HasPrefix(p, a+"/")
}

// Join builds a normalized path from individual components. Slashes inside a
// component are replaced with underscores so untrusted names cannot inject
// extra hierarchy levels. Empty components are skipped.
func Join(components ...string) string {
	clean := make([]string, 0, len(components))
	for _, c := range components {
		if c == "" {
			continue
		}
		clean = append(clean, strings.ReplaceAll(c, "/", "_"))
	}
	return "/" + strings.Join(clean, "/")
}

// Display derives a human-readable name from the final path segment: hyphens
// and underscores become spaces and each word is capitalized. Falls back to
// "Item" for the root path.
func Display(path string) string {
	norm := Normalize(path)
	if norm == "/" {
		return "Item"
	}
	segment := norm[strings.LastIndex(norm, "/")+1:]
	segment = strings.ReplaceAll(segment, "-", " ")
	segment = strings.ReplaceAll(segment, "_", " ")

	words := strings.Fields(segment)
	for i, w := range words {
		words[i] = Capitalize(w)
	}
	return strings.Join(words, " ")
}

// Capitalize upper-cases the first rune of s.
func Capitalize(s string) string {
	r, size := utf8.DecodeRuneInString(s)
	if r == utf8.RuneError && size <= 1 {
		return s
	}
	return string(unicode.ToUpper(r)) + s[size:]
}

// Node is one object in the path tree built by Tree.
type Node struct {
	Path     string  `json:"path"`
	Children []*Node `json:"children"`
}

// Tree arranges a flat set of paths into a nested tree, one node per distinct
// path segment, children sorted by segment. Intermediate segments that never
// appear as a full path still get a node, as the tree describes the hierarchy
// rather than the path set. Empty and root paths are skipped.
func Tree(paths []string) []*Node {
	root := &Node{}
	for _, p := range paths {
		norm := Normalize(p)
		if norm == "/" {
			continue
		}
		cur := root
		prefix := ""
		for _, segment := range strings.Split(norm[1:], "/") {
			prefix += "/" + segment
			cur = cur.child(prefix)
		}
	}
	root.sort()
	return root.Children
}

// child returns the existing child with the given path, creating it if
// absent.
func (n *Node) child(path string) *Node {
	for _, c := range n.Children {
		if c.Path == path {
			return c
		}
	}
	c := &Node{Path: path, Children: []*Node{}}
	n.Children = append(n.Children, c)
	return c
}

func (n *Node) sort() {
	sort.Slice(n.Children, func(i, j int) bool {
		return n.Children[i].Path < n.Children[j].Path
	})
	for _, c := range n.Children {
		c.sort()
	}
}
