package domain

import (
	"errors"
	"fmt"
)

type Kind int

const (
	KindUnknown Kind = iota
	KindNotFound
	KindConflict
	KindResourceExhausted
	KindInvalid
)

type Code string

const (
	CodeVlanIDNotFound                  Code = "VlanIDNotFound"
	CodeNetworkNotFound                 Code = "NetworkNotFound"
	CodePortProfileNotFound             Code = "PortProfileNotFound"
	CodeNetworkVlanBindingAlreadyExists Code = "NetworkVlanBindingAlreadyExists"
	CodePortProfileAlreadyExists        Code = "PortProfileAlreadyExists"
	CodePortProfileBindingAlreadyExists Code = "PortProfileBindingAlreadyExists"
	CodeVlanIDNotAvailable              Code = "VlanIDNotAvailable"
	CodeInvalidVlanRange                Code = "InvalidVlanRange"
)

func (c Code) Kind() Kind {
	switch c {
	case CodeVlanIDNotFound, CodeNetworkNotFound, CodePortProfileNotFound:
		return KindNotFound
	case CodeNetworkVlanBindingAlreadyExists, CodePortProfileAlreadyExists, CodePortProfileBindingAlreadyExists:
		return KindConflict
	case CodeVlanIDNotAvailable:
		return KindResourceExhausted
	case CodeInvalidVlanRange:
		return KindInvalid
	}
	return KindUnknown
}

// Error is returned by repositories for every failure the caller is expected
// to handle. Two errors are equal under errors.Is when their codes match.
type Error struct {
	Code    Code
	Message string
}

func (e *Error) Error() string {
	return e.Message
}

func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Code == e.Code
}

// Sentinels for errors.Is comparisons.
var (
	ErrVlanIDNotFound                  = &Error{Code: CodeVlanIDNotFound}
	ErrNetworkNotFound                 = &Error{Code: CodeNetworkNotFound}
	ErrPortProfileNotFound             = &Error{Code: CodePortProfileNotFound}
	ErrNetworkVlanBindingAlreadyExists = &Error{Code: CodeNetworkVlanBindingAlreadyExists}
	ErrPortProfileAlreadyExists        = &Error{Code: CodePortProfileAlreadyExists}
	ErrPortProfileBindingAlreadyExists = &Error{Code: CodePortProfileBindingAlreadyExists}
	ErrVlanIDNotAvailable              = &Error{Code: CodeVlanIDNotAvailable}
	ErrInvalidVlanRange                = &Error{Code: CodeInvalidVlanRange}
)

func VlanIDNotFound(vlanID int) error {
	return &Error{Code: CodeVlanIDNotFound, Message: fmt.Sprintf("vlan id %d not found", vlanID)}
}

func NetworkNotFound(networkID string) error {
	return &Error{Code: CodeNetworkNotFound, Message: fmt.Sprintf("network %s not found", networkID)}
}

func PortProfileNotFound(portProfileID string) error {
	return &Error{Code: CodePortProfileNotFound, Message: fmt.Sprintf("port profile %s not found", portProfileID)}
}

func NetworkVlanBindingAlreadyExists(vlanID int, networkID string) error {
	return &Error{
		Code:    CodeNetworkVlanBindingAlreadyExists,
		Message: fmt.Sprintf("vlan %d is already bound, cannot bind it to network %s", vlanID, networkID),
	}
}

func PortProfileAlreadyExists(name string) error {
	return &Error{Code: CodePortProfileAlreadyExists, Message: fmt.Sprintf("port profile %s already exists", name)}
}

func PortProfileBindingAlreadyExists(portProfileID, portID string) error {
	return &Error{
		Code:    CodePortProfileBindingAlreadyExists,
		Message: fmt.Sprintf("port profile %s is already bound, cannot bind it to port %s", portProfileID, portID),
	}
}

func VlanIDNotAvailable() error {
	return &Error{Code: CodeVlanIDNotAvailable, Message: "no vlan id available"}
}

func InvalidVlanRange(start, end int) error {
	return &Error{
		Code:    CodeInvalidVlanRange,
		Message: fmt.Sprintf("invalid vlan range [%d, %d], must be within [%d, %d]", start, end, MinVlanID, MaxVlanID),
	}
}

func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Code.Kind()
	}
	return KindUnknown
}

func IsNotFound(err error) bool {
	return KindOf(err) == KindNotFound
}

func IsConflict(err error) bool {
	return KindOf(err) == KindConflict
}

func IsResourceExhausted(err error) bool {
	return KindOf(err) == KindResourceExhausted
}

func IsInvalid(err error) bool {
	return KindOf(err) == KindInvalid
}
