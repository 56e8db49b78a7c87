package variantcache

import (
	"strconv"
	"strings"

	"github.com/unkn0wn-root/variantcache/internal/util"
)

// Key layout:
//
//	page:<host key>                                              plain and pointer entries
//	variant:<len(base)>:<base>|<KIND>|<len(test)>:<test>|v:<variant>  variant entries
//	variant:<len(base)>:<base>|<KIND>|<len(test)>:<test>|x            excluded visitors
//
// Length prefixes keep the mapping injective whatever characters appear in
// request parts, test names or variant names. A custom KeyFunc owns the
// injectivity of its own output. Keys longer than util.MaxKeyLen are
// replaced by a SHA-256 digest under the same prefix.
const (
	basePrefix    = "page"
	variantPrefix = "variant"
)

// KeyFunc derives the host part of a base key from a request.
type KeyFunc func(Request) string

// DefaultKey is site, path, sorted query and variation, each length
// prefixed: <len>:<site>|<len>:<path>|<len>:<query>|<len>:<variation>.
func DefaultKey(req Request) string {
	q := req.Query.Encode() // Encode sorts by key
	var b strings.Builder
	b.Grow(len(req.Site) + len(req.Path) + len(q) + len(req.Variation) + 24)
	writeLenPrefixed(&b, req.Site)
	b.WriteByte('|')
	writeLenPrefixed(&b, req.Path)
	b.WriteByte('|')
	writeLenPrefixed(&b, q)
	b.WriteByte('|')
	writeLenPrefixed(&b, req.Variation)
	return b.String()
}

// BaseKey returns the cache key of req. A nil f means DefaultKey.
func BaseKey(req Request, f KeyFunc) string {
	if f == nil {
		f = DefaultKey
	}
	return util.ShortKey(basePrefix, basePrefix+":"+f(req))
}

// Suffix selects the partition of a variant key: a variant name or the
// exclusion marker. The two can never collide.
type Suffix struct {
	variant  string
	excluded bool
}

// ExcludedSuffix is the partition shared by every visitor excluded from a test.
var ExcludedSuffix = Suffix{excluded: true}

// VariantSuffix returns the partition of the named variant.
func VariantSuffix(name string) Suffix { return Suffix{variant: name} }

func (s Suffix) String() string {
	if s.excluded {
		return "x"
	}
	return "v:" + s.variant
}

// VariantKey returns the key holding the content of one partition of base.
func VariantKey(base string, kind Kind, test string, s Suffix) string {
	var b strings.Builder
	b.Grow(len(variantPrefix) + len(base) + len(test) + len(s.variant) + 32)
	b.WriteString(variantPrefix)
	b.WriteByte(':')
	writeLenPrefixed(&b, base)
	b.WriteByte('|')
	b.WriteString(kind.String())
	b.WriteByte('|')
	writeLenPrefixed(&b, test)
	b.WriteByte('|')
	b.WriteString(s.String())
	return util.ShortKey(variantPrefix, b.String())
}

// PointerTag marks a base entry as partitioned by the named test.
func PointerTag(kind Kind, test string) string {
	return kind.String() + ":" + test
}

// ParsePointerTag reverses PointerTag. ok is false for unknown kind prefixes
// and empty names; callers treat that as "not a test pointer".
func ParsePointerTag(tag string) (kind Kind, test string, ok bool) {
	prefix, name, found := strings.Cut(tag, ":")
	if !found || name == "" {
		return 0, "", false
	}
	switch prefix {
	case "AB":
		return KindAB, name, true
	case "MVT":
		return KindMVT, name, true
	default:
		return 0, "", false
	}
}

// Dependency tags attached to partitioned entries. Editing or deleting a test
// invalidates TestTag; adding or removing any variant of a kind invalidates
// AllVariantsTag(kind), since a removed variant's content must never be served.

func AllVariantsTag(kind Kind) string {
	return "splittest:" + strings.ToLower(kind.String()) + ":variants"
}

func TestTag(kind Kind, site, test string) string {
	var b strings.Builder
	b.WriteString("splittest:")
	b.WriteString(strings.ToLower(kind.String()))
	b.WriteString(":test:")
	writeLenPrefixed(&b, site)
	b.WriteByte(':')
	b.WriteString(test)
	return b.String()
}

func VariantTag(kind Kind, site, test, variant string) string {
	var b strings.Builder
	b.WriteString("splittest:")
	b.WriteString(strings.ToLower(kind.String()))
	b.WriteString(":variant:")
	writeLenPrefixed(&b, site)
	b.WriteByte(':')
	writeLenPrefixed(&b, test)
	b.WriteByte(':')
	b.WriteString(variant)
	return b.String()
}

func writeLenPrefixed(b *strings.Builder, s string) {
	b.WriteString(strconv.Itoa(len(s)))
	b.WriteByte(':')
	b.WriteString(s)
}
