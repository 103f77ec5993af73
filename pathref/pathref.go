// Package pathref implements the reference-path resolver (spec §4.1):
// dot-delimited reads, creation-on-write writes, and atomic swaps over a
// tree of map[string]any / []any / scalar nodes. The resolver performs no
// type coercion and never grows lists implicitly; creation-on-write
// constructs only map nodes, per §9's design notes.
package pathref

import (
	"strconv"
	"strings"

	"github.com/wyrdbound/grimoire/internal/grimerr"
)

// Split breaks a dotted path into its literal segments.
func Split(path string) []string {
	return strings.Split(path, ".")
}

// Get reads the value at path, rooted at root. Numeric-looking segments
// address list indices.
func Get(root map[string]any, path string) (any, error) {
	segs := Split(path)
	var cur any = root
	for _, seg := range segs {
		next, ok := step(cur, seg)
		if !ok {
			return nil, grimerr.New(grimerr.PathNotFound, path).WithPath(path)
		}
		cur = next
	}
	return cur, nil
}

func step(cur any, seg string) (any, bool) {
	switch v := cur.(type) {
	case map[string]any:
		val, ok := v[seg]
		return val, ok
	case []any:
		idx, err := strconv.Atoi(seg)
		if err != nil || idx < 0 || idx >= len(v) {
			return nil, false
		}
		return v[idx], true
	default:
		return nil, false
	}
}

// Set writes value at path, rooted at root, creating missing intermediate
// map nodes along the way. It fails with TypeConflict if a non-mapping,
// non-indexable value blocks traversal, or if the final segment addresses
// an out-of-range list index (list growth is never implicit).
func Set(root map[string]any, path string, value any) error {
	segs := Split(path)
	if len(segs) == 0 || segs[0] == "" {
		return grimerr.New(grimerr.TypeConflict, "empty path").WithPath(path)
	}
	container, err := walkCreate(root, segs[:len(segs)-1], path)
	if err != nil {
		return err
	}
	last := segs[len(segs)-1]
	switch c := container.(type) {
	case map[string]any:
		c[last] = value
		return nil
	case []any:
		idx, convErr := strconv.Atoi(last)
		if convErr != nil || idx < 0 || idx >= len(c) {
			return grimerr.New(grimerr.TypeConflict, "list index out of range or not growable: "+last).WithPath(path)
		}
		c[idx] = value
		return nil
	default:
		return grimerr.New(grimerr.TypeConflict, "segment does not address a container").WithPath(path)
	}
}

// walkCreate descends segs from root, creating an empty map[string]any for
// any missing key encountered on a map node, and returns the container
// that the caller's final segment should be applied to.
func walkCreate(root map[string]any, segs []string, fullPath string) (any, error) {
	var cur any = root
	for _, seg := range segs {
		switch c := cur.(type) {
		case map[string]any:
			next, ok := c[seg]
			if !ok {
				created := map[string]any{}
				c[seg] = created
				next = created
			}
			cur = next
		case []any:
			idx, err := strconv.Atoi(seg)
			if err != nil || idx < 0 || idx >= len(c) {
				return nil, grimerr.New(grimerr.TypeConflict, "segment "+seg+" does not address an existing list element").WithPath(fullPath)
			}
			cur = c[idx]
		default:
			return nil, grimerr.New(grimerr.TypeConflict, "segment "+seg+" traverses a scalar value").WithPath(fullPath)
		}
	}
	return cur, nil
}

// Swap atomically exchanges the values at two existing paths. Both paths
// must already exist; swap never creates.
func Swap(root map[string]any, path1, path2 string) error {
	v1, err := Get(root, path1)
	if err != nil {
		return err
	}
	v2, err := Get(root, path2)
	if err != nil {
		return err
	}
	if err := Set(root, path1, v2); err != nil {
		return err
	}
	return Set(root, path2, v1)
}
