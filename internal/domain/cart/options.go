package cart

import (
	"crypto/md5"
	"encoding/hex"
	"slices"

	"github.com/go-faster/jx"
)

// Options is the set of selected product options (size, color, ...).
// Identity never depends on insertion order: keys are sorted before hashing.
type Options map[string]string

// Keys returns the option keys in ascending order.
func (o Options) Keys() []string {
	keys := make([]string, 0, len(o))
	for k := range o {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}

// Get returns the value for key, or "" when unset.
func (o Options) Get(key string) string {
	return o[key]
}

// Has reports whether key is set.
func (o Options) Has(key string) bool {
	_, ok := o[key]
	return ok
}

// Clone returns an independent copy. A nil receiver yields an empty set.
func (o Options) Clone() Options {
	out := make(Options, len(o))
	for k, v := range o {
		out[k] = v
	}
	return out
}

// Encode writes the options as a JSON object with sorted keys.
func (o Options) Encode(e *jx.Encoder) {
	e.ObjStart()
	for _, k := range o.Keys() {
		e.FieldStart(k)
		e.Str(o[k])
	}
	e.ObjEnd()
}

// Decode reads a JSON object of string values.
func (o *Options) Decode(d *jx.Decoder) error {
	out := Options{}
	if err := d.Obj(func(d *jx.Decoder, key string) error {
		v, err := d.Str()
		if err != nil {
			return err
		}
		out[key] = v
		return nil
	}); err != nil {
		return err
	}
	*o = out
	return nil
}

// RowID derives the identity of an (id, options) pair.
func RowID(id string, options Options) string {
	e := &jx.Encoder{}
	options.Encode(e)

	h := md5.New()
	h.Write([]byte(id))
	h.Write(e.Bytes())
	return hex.EncodeToString(h.Sum(nil))
}
