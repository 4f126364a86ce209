package utils

import (
	"crypto/rand"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"go.mongodb.org/mongo-driver/bson/bsontype"
	"go.mongodb.org/mongo-driver/x/bsonx/bsoncore"
)

// SixIDSubtype is the BSON binary subtype SixIDs are stored with.
const SixIDSubtype byte = 0x80

// SixIDHookFunc lets tests override NewSixID.
type SixIDHookFunc func() (id SixID, override bool)

// NewSixIDHook is a package-level variable that tests can set to override NewSixID behavior.
var NewSixIDHook SixIDHookFunc

// SixID is a 6-byte random identifier. It is rendered as 10 Crockford base32
// characters in JSON and stored as BSON binary with subtype 0x80.
type SixID [6]byte

// NewSixID creates a new random SixID.
func NewSixID() SixID {
	if NewSixIDHook != nil {
		if id, override := NewSixIDHook(); override {
			return id
		}
	}

	var id SixID
	if _, err := rand.Read(id[:]); err != nil {
		return SixID{}
	}
	return id
}

// ParseSixID parses the Crockford base32 form of a SixID. An empty string
// yields the zero ID.
func ParseSixID(s string) (SixID, error) {
	return ParseCrockfordSixID(s)
}

const crockfordAlphabet = "0123456789ABCDEFGHJKMNPQRSTVWXYZ"

var crockfordDecodeMap map[byte]byte

func init() {
	crockfordDecodeMap = make(map[byte]byte, 32)
	for i := range crockfordAlphabet {
		crockfordDecodeMap[crockfordAlphabet[i]] = byte(i)
	}

	lower := strings.ToLower(crockfordAlphabet)
	for i := range lower {
		if i >= 10 {
			crockfordDecodeMap[lower[i]] = byte(i)
		}
	}

	// Crockford aliases for easily confused characters.
	crockfordDecodeMap['O'] = 0
	crockfordDecodeMap['o'] = 0
	crockfordDecodeMap['I'] = 1
	crockfordDecodeMap['i'] = 1
	crockfordDecodeMap['L'] = 1
	crockfordDecodeMap['l'] = 1
}

// IsZero reports whether the ID is unset.
func (u SixID) IsZero() bool {
	return u == SixID{}
}

// String returns the 10 character Crockford base32 representation.
func (u SixID) String() string {
	result := make([]byte, 0, 10)
	var bits, offset uint

	for i := 0; i < 6; i++ {
		bits |= uint(u[i]) << offset
		offset += 8

		for offset >= 5 {
			result = append(result, crockfordAlphabet[bits&0x1F])
			bits >>= 5
			offset -= 5
		}
	}

	if offset > 0 {
		result = append(result, crockfordAlphabet[bits&0x1F])
	}

	return string(result)
}

// ParseCrockfordSixID converts a Crockford base32 string back to a SixID.
func ParseCrockfordSixID(s string) (SixID, error) {
	if s == "" {
		return SixID{}, nil
	}

	s = strings.ReplaceAll(s, "-", "")
	s = strings.ReplaceAll(s, " ", "")

	if len(s) != 10 {
		return SixID{}, errors.New("invalid SixID: string length must be 10")
	}

	var bits uint64
	var offset uint
	var id SixID
	byteIndex := 0

	for i := 0; i < 10; i++ {
		val, ok := crockfordDecodeMap[s[i]]
		if !ok {
			return SixID{}, fmt.Errorf("invalid SixID: unexpected character %q", s[i])
		}

		bits |= uint64(val) << offset
		offset += 5

		for offset >= 8 && byteIndex < 6 {
			id[byteIndex] = byte(bits & 0xFF)
			byteIndex++
			bits >>= 8
			offset -= 8
		}
	}

	if byteIndex != 6 {
		return SixID{}, errors.New("invalid SixID: could not decode 6 bytes")
	}
	return id, nil
}

// MarshalBSONValue stores the ID as binary subtype 0x80.
func (u SixID) MarshalBSONValue() (bsontype.Type, []byte, error) {
	return bsontype.Binary, bsoncore.AppendBinary(nil, SixIDSubtype, u[:]), nil
}

// UnmarshalBSONValue reads a binary subtype 0x80 value. BSON null leaves the zero ID.
func (u *SixID) UnmarshalBSONValue(t bsontype.Type, data []byte) error {
	switch t {
	case bsontype.Null, bsontype.Undefined:
		*u = SixID{}
		return nil
	case bsontype.Binary:
		subtype, bin, _, ok := bsoncore.ReadBinary(data)
		if !ok {
			return errors.New("invalid BSON binary for SixID")
		}
		if subtype != SixIDSubtype || len(bin) != 6 {
			return fmt.Errorf("invalid BSON binary for SixID: subtype 0x%02x, length %d", subtype, len(bin))
		}
		copy(u[:], bin)
		return nil
	default:
		return fmt.Errorf("invalid BSON type for SixID: %s", t)
	}
}

// MarshalJSON marshals the SixID as a JSON string in Crockford base32 format.
func (u SixID) MarshalJSON() ([]byte, error) {
	return json.Marshal(u.String())
}

// UnmarshalJSON unmarshals a SixID from a JSON string in Crockford base32 format.
func (u *SixID) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	parsed, err := ParseSixID(s)
	if err != nil {
		return err
	}
	*u = parsed
	return nil
}

// MarshalText lets SixIDs be used as JSON map keys and form values.
func (u SixID) MarshalText() ([]byte, error) {
	return []byte(u.String()), nil
}

// UnmarshalText is the inverse of MarshalText.
func (u *SixID) UnmarshalText(data []byte) error {
	parsed, err := ParseSixID(string(data))
	if err != nil {
		return err
	}
	*u = parsed
	return nil
}
