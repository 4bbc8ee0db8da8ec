package guardian

import (
	"errors"
	"fmt"
	"io"
	"os"

	nodev1 "github.com/certusone/wormhole/node/pkg/proto/node/v1"
	"golang.org/x/crypto/openpgp/armor" //nolint // Deprecated, but it is the format guardiand reads.
	"google.golang.org/protobuf/proto"
)

// KeyArmoredBlock is the armor block type of a guardiand key file.
const KeyArmoredBlock = "WORMHOLE GUARDIAN PRIVATE KEY"

// ReadArmoredKey parses a guardiand key file. Test keys are always accepted,
// including those flagged as deterministic.
func ReadArmoredKey(r io.Reader, index uint8) (*Guardian, error) {
	p, err := armor.Decode(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read armored key: %w", err)
	}

	if p.Type != KeyArmoredBlock {
		return nil, fmt.Errorf("invalid block type: %s", p.Type)
	}

	b, err := io.ReadAll(p.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read key body: %w", err)
	}

	var m nodev1.GuardianKey
	if err := proto.Unmarshal(b, &m); err != nil {
		return nil, fmt.Errorf("failed to deserialize protobuf: %w", err)
	}

	if len(m.Data) != 32 {
		return nil, fmt.Errorf("%w: key data is %d bytes", ErrInvalidKey, len(m.Data))
	}

	var secret [32]byte
	copy(secret[:], m.Data)
	return New(secret, index)
}

// WriteArmoredKey serializes the guardian key in the guardiand key file format.
// The key is always flagged as an unsafe deterministic key.
func WriteArmoredKey(w io.Writer, g *Guardian, description string) error {
	secret := g.SecretKey()
	m := &nodev1.GuardianKey{
		Data:                   secret[:],
		UnsafeDeterministicKey: true,
	}

	b, err := proto.Marshal(m)
	if err != nil {
		return fmt.Errorf("failed to serialize protobuf: %w", err)
	}

	headers := map[string]string{
		"PublicKey": g.Address().String(),
	}
	if description != "" {
		headers["Description"] = description
	}

	a, err := armor.Encode(w, KeyArmoredBlock, headers)
	if err != nil {
		return fmt.Errorf("failed to create armor encoder: %w", err)
	}
	if _, err := a.Write(b); err != nil {
		return fmt.Errorf("failed to write key: %w", err)
	}
	return a.Close()
}

// LoadKeyFile reads a guardiand key file from disk.
func LoadKeyFile(filename string, index uint8) (*Guardian, error) {
	f, err := os.Open(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to open file: %w", err)
	}
	defer f.Close()

	return ReadArmoredKey(f, index)
}

// WriteKeyFile stores the guardian key to filename, refusing to overwrite.
func WriteKeyFile(filename string, g *Guardian, description string) error {
	if _, err := os.Stat(filename); !os.IsNotExist(err) {
		return errors.New("refusing to override existing key")
	}

	f, err := os.OpenFile(filename, os.O_RDWR|os.O_CREATE|os.O_EXCL, 0600)
	if err != nil {
		return fmt.Errorf("failed to open file: %w", err)
	}

	if err := WriteArmoredKey(f, g, description); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
