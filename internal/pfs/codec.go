package pfs

import "fmt"

// Codec converts translation files to and from ordered units.
type Codec interface {
	Parse(data []byte) ([]*Unit, error)
	Serialize(units []*Unit) ([]byte, error)
}

// Codecs maps a file extension (without dot) to its Codec.
type Codecs map[string]Codec

// For returns the codec registered for the extension of fsPath.
func (c Codecs) For(fsPath string) (Codec, error) {
	ext := ExtensionOf(fsPath)
	codec, ok := c[ext]
	if !ok {
		return nil, fmt.Errorf("no codec for extension %q", ext)
	}
	return codec, nil
}
