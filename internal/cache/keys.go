package cache

import (
	"encoding/binary"
	"fmt"
	"strconv"

	"github.com/cespare/xxhash/v2"
)

// Kind tags what a key refers to: a single entity looked up by id or an
// alternate value, or one page of a query.
type Kind string

const (
	KindUser     Kind = "user"
	KindRecipe   Kind = "recipe"
	KindCategory Kind = "category"

	KindUserList      Kind = "users"
	KindAdminList     Kind = "admins"
	KindUserSearch    Kind = "userSearch"
	KindRecipeList    Kind = "recipes"
	KindRecipesByCat  Kind = "recipesByCategory"
	KindRecipesByUser Kind = "recipesByUser"
	KindCategoryList  Kind = "categories"
)

// Key identifies a cache entry. It is a tagged union of {kind, ref} for
// entities and {kind, params, page} for queries, plus a rendered marker that
// separates pre-serialized response caches from raw entity caches. The
// string form hashes length-prefixed segments, so distinct inputs can never
// collide the way naive concatenation does.
type Key struct {
	kind     Kind
	ref      string
	params   []string
	page     int
	list     bool
	rendered bool
}

// Entity builds the key for a single record, addressed by id or by an
// alternate lookup value such as a nick or an upper-cased title.
func Entity(kind Kind, ref string) Key {
	return Key{kind: kind, ref: ref}
}

// List builds the key for one page of a query. Params must be passed in a
// fixed order per query kind so equal queries derive equal keys.
func List(kind Kind, page int, params ...string) Key {
	return Key{kind: kind, params: params, page: page, list: true}
}

// Rendered returns the variant of k that caches the pre-serialized response
// body rather than the raw entity.
func (k Key) Rendered() Key {
	k.rendered = true
	return k
}

// IsList reports whether the key addresses a page of a query. List entries
// are never proactively invalidated; they expire via ListTTL.
func (k Key) IsList() bool { return k.list }

// Page returns the page index of a list key, zero for entity keys.
func (k Key) Page() int { return k.page }

// String derives the deterministic storage key.
func (k Key) String() string {
	h := xxhash.New()
	writeSegment(h, string(k.kind))
	writeSegment(h, k.ref)
	for _, p := range k.params {
		writeSegment(h, p)
	}
	if k.list {
		writeSegment(h, strconv.Itoa(k.page))
	}
	suffix := ""
	if k.rendered {
		suffix = ":r"
	}
	return fmt.Sprintf("%s:%016x%s", k.kind, h.Sum64(), suffix)
}

func writeSegment(h *xxhash.Digest, s string) {
	var n [8]byte
	binary.BigEndian.PutUint64(n[:], uint64(len(s)))
	_, _ = h.Write(n[:])
	_, _ = h.WriteString(s)
}
