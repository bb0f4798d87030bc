package models

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
)

// Contract identifies the target of a chain call
type Contract struct {
	ProtocolVersion int    `json:"ProtocolVersion"`
	VirtualChainID  int    `json:"VirtualChainId"`
	ContractName    string `json:"ContractName"`
}

// ContractCall is a read-only method invocation
type ContractCall struct {
	Contract
	MethodName string           `json:"MethodName"`
	Arguments  []MethodArgument `json:"Arguments"`
}

// SendTransaction is a state changing method invocation
type SendTransaction struct {
	Contract
	MethodName string           `json:"MethodName"`
	Arguments  []MethodArgument `json:"Arguments"`
}

// CallResult is the reply of a read-only call
type CallResult struct {
	ExecutionResult string           `json:"ExecutionResult,omitempty"`
	OutputArguments []MethodArgument `json:"OutputArguments"`
}

// Number is a uint64 that decodes from a JSON number or a quoted one
type Number uint64

func (n *Number) UnmarshalJSON(data []byte) error {
	raw := string(bytes.Trim(data, `"`))
	if raw == "null" || raw == "" {
		return nil
	}
	value, err := strconv.ParseUint(raw, 10, 64)
	if err != nil {
		return fmt.Errorf("invalid number %s: %w", data, err)
	}
	*n = Number(value)
	return nil
}

// TransactionReceipt is the part of a transfer reply describing the execution.
// Output arguments of a transfer are not interpreted, so they stay raw.
type TransactionReceipt struct {
	Txhash          string          `json:"Txhash"`
	ExecutionResult string          `json:"ExecutionResult"`
	OutputArguments json.RawMessage `json:"OutputArguments,omitempty"`
}

// TransferResult is the reply of a committed transaction.
// Txhash is base64 encoded on the wire.
type TransferResult struct {
	TransactionReceipt TransactionReceipt `json:"TransactionReceipt"`
	TransactionStatus  json.RawMessage    `json:"TransactionStatus,omitempty"`
	BlockHeight        Number             `json:"BlockHeight"`
	BlockTimestamp     Number             `json:"BlockTimestamp"`
}
