package exchange

import (
	"fmt"
	"maps"

	"github.com/google/uuid"
)

// IDGenerator generates unique exchange IDs.
type IDGenerator func() string

// DefaultIDGenerator is used by New. Replace it in tests that need
// predictable ids.
var DefaultIDGenerator IDGenerator = uuid.NewString

// Message is the payload moved by an exchange.
type Message struct {
	Content     []byte
	Properties  Properties
	Attachments map[string][]byte
}

// NewMessage creates a message with the given content and empty
// property and attachment maps.
func NewMessage(content []byte) *Message {
	return &Message{
		Content:     content,
		Properties:  make(Properties),
		Attachments: make(map[string][]byte),
	}
}

// Clone returns a deep copy of the message. A nil message clones to an
// empty one.
func (m *Message) Clone() *Message {
	if m == nil {
		return NewMessage(nil)
	}
	c := &Message{
		Content:     cloneBytes(m.Content),
		Properties:  m.Properties.Clone(),
		Attachments: make(map[string][]byte, len(m.Attachments)),
	}
	for k, v := range m.Attachments {
		c.Attachments[k] = cloneBytes(v)
	}
	return c
}

// Exchange is a unit of message transfer.
type Exchange struct {
	ID      string
	Pattern Pattern
	Status  Status
	Role    Role

	// Source is the endpoint name of the originator. Replies are routed to it.
	Source string
	// Endpoint is the resolved destination the exchange is sent to.
	Endpoint string

	Message  *Message
	Response *Message
	Fault    *Message
	Error    error
}

// New creates an active exchange owned by its originator.
func New(pattern Pattern) *Exchange {
	return &Exchange{
		ID:      DefaultIDGenerator(),
		Pattern: pattern,
		Status:  Active,
		Role:    Originator,
		Message: NewMessage(nil),
	}
}

// Properties returns the message properties, creating them if needed.
func (e *Exchange) Properties() Properties {
	if e.Message == nil {
		e.Message = NewMessage(nil)
	}
	if e.Message.Properties == nil {
		e.Message.Properties = make(Properties)
	}
	return e.Message.Properties
}

// Done marks the exchange as successfully completed.
func (e *Exchange) Done() {
	e.Status = Done
}

// Fail marks the exchange as failed with err.
func (e *Exchange) Fail(err error) {
	e.Status = Error
	e.Error = err
}

// SetFault attaches a fault. Patterns that cannot carry a fault are failed
// with a FaultError instead.
func (e *Exchange) SetFault(fault *Message) {
	if e.Pattern.AcceptsFault() {
		e.Fault = fault
		return
	}
	e.Fail(&FaultError{Fault: fault})
}

// String implements fmt.Stringer.
func (e *Exchange) String() string {
	return fmt.Sprintf("exchange[%s %s %s %s]", e.ID, e.Pattern, e.Status, e.Role)
}

// FaultError surfaces a fault on an exchange whose pattern cannot carry one.
type FaultError struct {
	Fault *Message
}

func (e *FaultError) Error() string {
	if e.Fault == nil || len(e.Fault.Content) == 0 {
		return "exchange: fault"
	}
	return fmt.Sprintf("exchange: fault: %s", e.Fault.Content)
}

func cloneBytes(b []byte) []byte {
	if b == nil {
		return nil
	}
	return append([]byte(nil), b...)
}

// cloneAttachments is used by the codec, which must not alias stored bytes.
func cloneAttachments(m map[string][]byte) map[string][]byte {
	if m == nil {
		return nil
	}
	c := maps.Clone(m)
	for k, v := range c {
		c[k] = cloneBytes(v)
	}
	return c
}
