// Package semver formats semantic versions of binaries.
package semver

import (
	"strconv"
	"strings"
)

type (
	// V is structured semantic version representation
	V struct {
		Major, Minor, Patch uint
		PreRelease          string
		BuildMetadata       []string
	}
)

// Build - returns copy of version with build metadata extended by non-empty identifiers.
func (v V) Build(identifiers ...string) V {
	meta := make([]string, 0, len(v.BuildMetadata)+len(identifiers))
	meta = append(meta, v.BuildMetadata...)
	for _, id := range identifiers {
		if id = strings.TrimSpace(id); id != "" {
			meta = append(meta, id)
		}
	}
	v.BuildMetadata = meta
	return v
}

func (v V) String() string {
	buf := strings.Builder{}
	for i, n := range []uint{v.Major, v.Minor, v.Patch} {
		if i > 0 {
			buf.WriteByte('.')
		}
		buf.WriteString(strconv.FormatUint(uint64(n), 10))
	}
	if v.PreRelease != "" {
		buf.WriteByte('-')
		buf.WriteString(v.PreRelease)
	}
	if len(v.BuildMetadata) > 0 {
		buf.WriteByte('+')
		buf.WriteString(strings.Join(v.BuildMetadata, "."))
	}
	return buf.String()
}
