package raw

import (
	"context"
	"fmt"
	"io"
	"sort"
)

// ObjectRef uniquely identifies an indirect PDF object.
type ObjectRef struct {
	Num int
	Gen int
}

func (r ObjectRef) String() string { return fmt.Sprintf("%d %d R", r.Num, r.Gen) }

// Object is the base interface for all raw PDF objects.
type Object interface {
	Type() string
	IsIndirect() bool
}

// Dictionary represents a PDF dictionary object.
type Dictionary interface {
	Object
	Get(key Name) (Object, bool)
	Set(key Name, value Object)
	Delete(key Name)
	Keys() []Name
	Len() int
}

// Array represents a PDF array object.
type Array interface {
	Object
	Get(index int) (Object, bool)
	Len() int
	Append(obj Object)
}

// Stream represents a raw (undecoded) PDF stream.
type Stream interface {
	Object
	Dictionary() Dictionary
	RawData() []byte
	Length() int64
}

// Name represents a PDF name object.
type Name interface {
	Object
	Value() string
}

// String represents a PDF string (literal or hex).
type String interface {
	Object
	Value() []byte
}

// Number represents a PDF numeric value.
type Number interface {
	Object
	Int() int64
	Float() float64
	IsInteger() bool
}

// Boolean represents a PDF boolean.
type Boolean interface {
	Object
	Value() bool
}

// Null represents the PDF null object.
type Null interface{ Object }

// Reference represents an indirect object reference.
type Reference interface {
	Object
	Ref() ObjectRef
}

// DocumentMetadata contains common PDF info fields.
type DocumentMetadata struct {
	Producer string
	Creator  string
	Title    string
	Author   string
}

// Document is the root container for raw PDF objects.
type Document struct {
	Objects  map[ObjectRef]Object
	Trailer  Dictionary
	Version  string // e.g., "1.7"
	Metadata DocumentMetadata

	// LoadErrors collects per-object failures tolerated under a lenient
	// recovery strategy. The document is still usable; callers that need
	// strict semantics must check this.
	LoadErrors []error
}

// SortedRefs returns all object references in ascending object-number
// order (generation breaks ties). Scan output ordering depends on this.
func (d *Document) SortedRefs() []ObjectRef {
	refs := make([]ObjectRef, 0, len(d.Objects))
	for ref := range d.Objects {
		refs = append(refs, ref)
	}
	sort.Slice(refs, func(i, j int) bool {
		if refs[i].Num != refs[j].Num {
			return refs[i].Num < refs[j].Num
		}
		return refs[i].Gen < refs[j].Gen
	})
	return refs
}

// Catalog resolves the document catalog via the trailer /Root entry.
func (d *Document) Catalog() (*DictObj, ObjectRef, bool) {
	if d.Trailer == nil {
		return nil, ObjectRef{}, false
	}
	rootObj, ok := d.Trailer.Get(NameObj{Val: "Root"})
	if !ok {
		return nil, ObjectRef{}, false
	}
	ref, ok := rootObj.(RefObj)
	if !ok {
		return nil, ObjectRef{}, false
	}
	dict, ok := d.Objects[ref.R].(*DictObj)
	if !ok {
		return nil, ObjectRef{}, false
	}
	return dict, ref.R, true
}

// Resolve follows a reference to its object, returning non-reference
// objects unchanged. A dangling reference resolves to NullObj.
func (d *Document) Resolve(obj Object) Object {
	ref, ok := obj.(RefObj)
	if !ok {
		return obj
	}
	target, ok := d.Objects[ref.R]
	if !ok {
		return NullObj{}
	}
	return target
}

// Parser converts bytes into a raw.Document.
type Parser interface {
	Parse(ctx context.Context, r io.ReaderAt, size int64) (*Document, error)
}
