package models

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
)

// ArgumentType is the discriminator of a MethodArgument
type ArgumentType int

const (
	ArgumentUint64 ArgumentType = 1
	ArgumentBytes  ArgumentType = 3
)

func (t ArgumentType) String() string {
	switch t {
	case ArgumentUint64:
		return "uint64"
	case ArgumentBytes:
		return "bytes"
	default:
		return fmt.Sprintf("unknown(%d)", int(t))
	}
}

var ErrInvalidArgument = errors.New("invalid method argument")

// MethodArgument is a named contract argument carrying exactly one payload,
// selected by its type. The zero value is not a valid argument.
type MethodArgument struct {
	name   string
	typ    ArgumentType
	number uint64
	bytes  []byte
}

// Uint64Argument builds a numeric argument
func Uint64Argument(name string, value uint64) MethodArgument {
	return MethodArgument{name: name, typ: ArgumentUint64, number: value}
}

// BytesArgument builds a byte-string argument
func BytesArgument(name string, value []byte) MethodArgument {
	return MethodArgument{name: name, typ: ArgumentBytes, bytes: bytes.Clone(value)}
}

func (a MethodArgument) Name() string {
	return a.name
}

func (a MethodArgument) Type() ArgumentType {
	return a.typ
}

// Uint64 returns the numeric payload, ok is false for any other type
func (a MethodArgument) Uint64() (value uint64, ok bool) {
	if a.typ != ArgumentUint64 {
		return 0, false
	}
	return a.number, true
}

// Bytes returns the byte-string payload, ok is false for any other type
func (a MethodArgument) Bytes() (value []byte, ok bool) {
	if a.typ != ArgumentBytes {
		return nil, false
	}
	return bytes.Clone(a.bytes), true
}

// wireArgument is the JSON shape understood by the chain client
type wireArgument struct {
	Name        string          `json:"Name"`
	Type        ArgumentType    `json:"Type"`
	Uint64Value json.RawMessage `json:"Uint64Value,omitempty"`
	BytesValue  *string         `json:"BytesValue,omitempty"`
}

func (a MethodArgument) MarshalJSON() ([]byte, error) {
	w := wireArgument{Name: a.name, Type: a.typ}

	switch a.typ {
	case ArgumentUint64:
		w.Uint64Value = json.RawMessage(strconv.FormatUint(a.number, 10))
	case ArgumentBytes:
		encoded := base64.StdEncoding.EncodeToString(a.bytes)
		w.BytesValue = &encoded
	default:
		return nil, fmt.Errorf("%w: %q has type %s", ErrInvalidArgument, a.name, a.typ)
	}

	return json.Marshal(w)
}

func (a *MethodArgument) UnmarshalJSON(data []byte) error {
	var w wireArgument
	if err := json.Unmarshal(data, &w); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidArgument, err)
	}

	hasNumber := len(w.Uint64Value) > 0 && string(w.Uint64Value) != "null"
	hasBytes := w.BytesValue != nil

	switch w.Type {
	case ArgumentUint64:
		if !hasNumber || hasBytes {
			return fmt.Errorf("%w: %q of type uint64 must carry only Uint64Value", ErrInvalidArgument, w.Name)
		}
		// protobuf style JSON encodes 64 bit integers as strings
		raw := string(bytes.Trim(w.Uint64Value, `"`))
		value, err := strconv.ParseUint(raw, 10, 64)
		if err != nil {
			return fmt.Errorf("%w: %q has bad Uint64Value %s", ErrInvalidArgument, w.Name, raw)
		}
		*a = Uint64Argument(w.Name, value)
	case ArgumentBytes:
		if !hasBytes || hasNumber {
			return fmt.Errorf("%w: %q of type bytes must carry only BytesValue", ErrInvalidArgument, w.Name)
		}
		value, err := base64.StdEncoding.DecodeString(*w.BytesValue)
		if err != nil {
			return fmt.Errorf("%w: %q has bad BytesValue: %v", ErrInvalidArgument, w.Name, err)
		}
		*a = MethodArgument{name: w.Name, typ: ArgumentBytes, bytes: value}
	default:
		return fmt.Errorf("%w: %q has unsupported type %s", ErrInvalidArgument, w.Name, w.Type)
	}

	return nil
}
