package encryption

import (
	"fmt"
	"sort"

	"github.com/spf13/afero"

	"pfs-go/internal/config"
	"pfs-go/internal/pfs"
)

type constructor func(afero.Fs, config.EncryptionConfig) (pfs.Encryptor, error)

var constructors = map[string]constructor{
	"age": func(fsys afero.Fs, cfg config.EncryptionConfig) (pfs.Encryptor, error) {
		if cfg.PublicKeyPath == "" || cfg.PrivateKeyPath == "" {
			return nil, fmt.Errorf("public_key_path and private_key_path required for age encryption")
		}
		return NewAgeEncryptor(fsys, cfg), nil
	},
	"test": func(afero.Fs, config.EncryptionConfig) (pfs.Encryptor, error) {
		return NewTestEncryptor(), nil
	},
}

// Types lists the accepted values of encryption.type.
func Types() []string {
	types := make([]string, 0, len(constructors))
	for t := range constructors {
		types = append(types, t)
	}
	sort.Strings(types)
	return types
}

// NewEncryptorFromConfig builds the Encryptor named by cfg.Type. An empty
// type selects age.
func NewEncryptorFromConfig(fsys afero.Fs, cfg config.EncryptionConfig) (pfs.Encryptor, error) {
	kind := cfg.Type
	if kind == "" {
		kind = "age"
	}
	build, ok := constructors[kind]
	if !ok {
		return nil, fmt.Errorf("unknown encryption type %q (want one of %v)", cfg.Type, Types())
	}
	return build(fsys, cfg)
}
