package anchored

import (
	"bytes"
	"crypto/sha256"
	"database/sql/driver"
	"encoding/hex"

	"github.com/pkg/errors"
)

// Address is the content address of an entry: the sha256 hash of its encoding.
type Address [sha256.Size]byte

// Zero is the zero value of an Address.
// No committed entry ever has it;
// it serves as the "no predecessor" marker in version chains.
var Zero Address

func (a Address) String() string {
	return hex.EncodeToString(a[:])
}

func (a Address) Less(other Address) bool {
	return bytes.Compare(a[:], other[:]) < 0
}

// IsZero tells whether a is the zero address.
func (a Address) IsZero() bool {
	return a == Zero
}

func (a *Address) FromHex(s string) error {
	if len(s) != 2*sha256.Size {
		return errors.New("wrong length")
	}
	_, err := hex.Decode(a[:], []byte(s))
	return err
}

func AddressFromBytes(b []byte) Address {
	var out Address
	copy(out[:], b)
	return out
}

func AddressFromHex(s string) (Address, error) {
	var out Address
	err := out.FromHex(s)
	return out, err
}

// Value implements driver.Valuer, for storing Addresses in SQL columns.
func (a Address) Value() (driver.Value, error) {
	return a[:], nil
}

// Scan implements sql.Scanner.
func (a *Address) Scan(src interface{}) error {
	b, ok := src.([]byte)
	if !ok {
		return errors.Errorf("cannot scan %T into Address", src)
	}
	if len(b) != sha256.Size {
		return errors.Errorf("scanning Address: got %d bytes, want %d", len(b), sha256.Size)
	}
	copy(a[:], b)
	return nil
}
