// Package yerr models NETCONF rpc-error bodies (RFC 6241 Appendix A).
//
// The modification engine never returns a bare Go error for a protocol
// failure: it returns an *Error, which knows how to render itself as the
// <rpc-error> XML the caller forwards to the client.
package yerr

import (
	"encoding/xml"
	"fmt"
)

// Tag is a NETCONF error-tag value.
type Tag int

const (
	TagInUse Tag = iota
	TagInvalidValue
	TagTooBig
	TagMissingAttribute
	TagBadAttribute
	TagUnknownAttribute
	TagMissingElement
	TagBadElement
	TagUnknownElement
	TagUnknownNamespace
	TagAccessDenied
	TagLockDenied
	TagResourceDenied
	TagRollbackFailed
	TagDataExists
	TagDataMissing
	TagOperationNotSupported
	TagOperationFailed
	TagPartialOperation
	TagMalformedMessage
)

func (t Tag) String() string {
	switch t {
	case TagInUse:
		return "in-use"
	case TagInvalidValue:
		return "invalid-value"
	case TagTooBig:
		return "too-big"
	case TagMissingAttribute:
		return "missing-attribute"
	case TagBadAttribute:
		return "bad-attribute"
	case TagUnknownAttribute:
		return "unknown-attribute"
	case TagMissingElement:
		return "missing-element"
	case TagBadElement:
		return "bad-element"
	case TagUnknownElement:
		return "unknown-element"
	case TagUnknownNamespace:
		return "unknown-namespace"
	case TagAccessDenied:
		return "access-denied"
	case TagLockDenied:
		return "lock-denied"
	case TagResourceDenied:
		return "resource-denied"
	case TagRollbackFailed:
		return "rollback-failed"
	case TagDataExists:
		return "data-exists"
	case TagDataMissing:
		return "data-missing"
	case TagOperationNotSupported:
		return "operation-not-supported"
	case TagOperationFailed:
		return "operation-failed"
	case TagPartialOperation:
		return "partial-operation"
	case TagMalformedMessage:
		return "malformed-message"
	default:
		return "unknown"
	}
}

// Type is the NETCONF error-type (conceptual layer the error occurred at).
type Type int

const (
	TypeApplication Type = iota
	TypeProtocol
	TypeRPC
	TypeTransport
)

func (t Type) String() string {
	switch t {
	case TypeApplication:
		return "application"
	case TypeProtocol:
		return "protocol"
	case TypeRPC:
		return "rpc"
	case TypeTransport:
		return "transport"
	default:
		return "unknown"
	}
}

// Error is an rpc-error body. It implements the error interface so the
// modification engine can return it through ordinary Go error returns,
// while callers of datastore.Put render it into the wire body on failure
// via MarshalXML.
type Error struct {
	Tag     Tag
	Type    Type
	AppTag  string
	Path    string
	Info    string
	Message string
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	return "[" + e.Tag.String() + "] " + e.Message
}

// New builds an application-layer error with the given tag and message.
func New(tag Tag, format string, args ...interface{}) *Error {
	return &Error{Tag: tag, Type: TypeApplication, Message: fmt.Sprintf(format, args...)}
}

// Protocol builds a protocol-layer error (rpc-layer attribute/namespace failures).
func Protocol(tag Tag, format string, args ...interface{}) *Error {
	return &Error{Tag: tag, Type: TypeProtocol, Message: fmt.Sprintf(format, args...)}
}

// WithPath sets the error-path and returns the receiver for chaining.
func (e *Error) WithPath(path string) *Error {
	e.Path = path
	return e
}

// rpcErrorXML mirrors the RFC 6241 appendix A <rpc-error> element.
type rpcErrorXML struct {
	XMLName      xml.Name `xml:"rpc-error"`
	ErrorType    string   `xml:"error-type"`
	ErrorTag     string   `xml:"error-tag"`
	ErrorSeverity string  `xml:"error-severity"`
	ErrorAppTag  string   `xml:"error-app-tag,omitempty"`
	ErrorPath    string   `xml:"error-path,omitempty"`
	ErrorMessage string   `xml:"error-message,omitempty"`
	ErrorInfo    string   `xml:"error-info,omitempty"`
}

// MarshalXML renders the error as an <rpc-error> body, the shape datastore.Put
// hands back to the caller on failure.
func (e *Error) MarshalXML() ([]byte, error) {
	body := rpcErrorXML{
		ErrorType:     e.Type.String(),
		ErrorTag:      e.Tag.String(),
		ErrorSeverity: "error",
		ErrorAppTag:   e.AppTag,
		ErrorPath:     e.Path,
		ErrorMessage:  e.Message,
		ErrorInfo:     e.Info,
	}
	return xml.MarshalIndent(body, "", "  ")
}
