package security

import (
	"errors"

	"pdfguard/ir/raw"
)

// ErrUnsupportedEncryption is returned when a document declares an
// /Encrypt dictionary. Scanning requires plaintext object content, so
// encrypted documents are refused before any object is loaded.
var ErrUnsupportedEncryption = errors.New("document is encrypted")

// EncryptionInfo describes the declared encryption of a document.
type EncryptionInfo struct {
	Filter string
	V      int
	R      int
}

// DetectEncryption inspects a trailer dictionary for an /Encrypt entry.
// The entry may be inline or an indirect reference; resolve looks the
// reference up when non-nil.
func DetectEncryption(trailer raw.Dictionary, resolve func(raw.ObjectRef) raw.Object) (*EncryptionInfo, error) {
	if trailer == nil {
		return nil, nil
	}
	v, ok := trailer.Get(raw.NameObj{Val: "Encrypt"})
	if !ok {
		return nil, nil
	}

	info := &EncryptionInfo{}
	var dict *raw.DictObj
	switch enc := v.(type) {
	case *raw.DictObj:
		dict = enc
	case raw.RefObj:
		if resolve != nil {
			if d, ok := resolve(enc.R).(*raw.DictObj); ok {
				dict = d
			}
		}
	}
	if dict != nil {
		if f, ok := dict.GetName("Filter"); ok {
			info.Filter = f
		}
		if n, ok := dict.Get(raw.NameObj{Val: "V"}); ok {
			if num, ok := n.(raw.NumberObj); ok {
				info.V = int(num.Int())
			}
		}
		if n, ok := dict.Get(raw.NameObj{Val: "R"}); ok {
			if num, ok := n.(raw.NumberObj); ok {
				info.R = int(num.Int())
			}
		}
	}
	return info, ErrUnsupportedEncryption
}
