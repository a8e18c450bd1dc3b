package exchange

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"

	cloudevents "github.com/cloudevents/sdk-go/v2"
)

// EventType is the CloudEvents type of a persisted exchange.
const EventType = "io.gosplit.exchange"

const defaultEventSource = "gosplit"

// CloudEvents extension names. Extension names are limited to lowercase
// alphanumerics.
const (
	extPattern  = "pattern"
	extStatus   = "status"
	extRole     = "role"
	extEndpoint = "endpoint"
	extSource   = "origin"
)

// Codec encodes exchanges into a durable byte form and back.
type Codec interface {
	Marshal(ex *Exchange) ([]byte, error)
	Unmarshal(data []byte) (*Exchange, error)
}

// CloudEventsCodec stores an exchange as a structured-mode CloudEvents JSON
// event. Routing state lives in context attributes and extensions, message
// bodies live in the event data.
type CloudEventsCodec struct{}

// NewCodec returns the default codec.
func NewCodec() Codec {
	return CloudEventsCodec{}
}

type wireMessage struct {
	Content     []byte            `json:"content,omitempty"`
	Properties  Properties        `json:"properties,omitempty"`
	Attachments map[string][]byte `json:"attachments,omitempty"`
}

type wireBody struct {
	Message  *wireMessage `json:"message,omitempty"`
	Response *wireMessage `json:"response,omitempty"`
	Fault    *wireMessage `json:"fault,omitempty"`
	Error    string       `json:"error,omitempty"`
}

// Marshal implements Codec.
func (CloudEventsCodec) Marshal(ex *Exchange) ([]byte, error) {
	if ex == nil {
		return nil, errors.New("exchange: marshal nil exchange")
	}

	e := cloudevents.NewEvent()
	e.SetID(ex.ID)
	e.SetType(EventType)
	e.SetSource(defaultEventSource)
	e.SetExtension(extPattern, strconv.Itoa(int(ex.Pattern)))
	e.SetExtension(extStatus, ex.Status.String())
	e.SetExtension(extRole, ex.Role.String())
	if ex.Endpoint != "" {
		e.SetExtension(extEndpoint, ex.Endpoint)
	}
	if ex.Source != "" {
		e.SetExtension(extSource, ex.Source)
	}

	body := wireBody{
		Message:  toWire(ex.Message),
		Response: toWire(ex.Response),
		Fault:    toWire(ex.Fault),
	}
	if ex.Error != nil {
		body.Error = ex.Error.Error()
	}
	if err := e.SetData(cloudevents.ApplicationJSON, body); err != nil {
		return nil, fmt.Errorf("exchange: set data: %w", err)
	}
	if err := e.Validate(); err != nil {
		return nil, fmt.Errorf("exchange: invalid event: %w", err)
	}
	return json.Marshal(e)
}

// Unmarshal implements Codec.
func (CloudEventsCodec) Unmarshal(data []byte) (*Exchange, error) {
	var e cloudevents.Event
	if err := json.Unmarshal(data, &e); err != nil {
		return nil, fmt.Errorf("exchange: decode event: %w", err)
	}
	if e.Type() != EventType {
		return nil, fmt.Errorf("exchange: unexpected event type %q", e.Type())
	}

	pattern, err := strconv.Atoi(extension(e, extPattern))
	if err != nil {
		return nil, fmt.Errorf("exchange: pattern: %w", err)
	}
	status, err := parseStatus(extension(e, extStatus))
	if err != nil {
		return nil, err
	}
	role, err := parseRole(extension(e, extRole))
	if err != nil {
		return nil, err
	}

	var body wireBody
	if err := e.DataAs(&body); err != nil {
		return nil, fmt.Errorf("exchange: decode data: %w", err)
	}

	ex := &Exchange{
		ID:       e.ID(),
		Pattern:  Pattern(pattern),
		Status:   status,
		Role:     role,
		Source:   extension(e, extSource),
		Endpoint: extension(e, extEndpoint),
		Message:  fromWire(body.Message),
		Response: fromWire(body.Response),
		Fault:    fromWire(body.Fault),
	}
	if ex.Message == nil {
		ex.Message = NewMessage(nil)
	}
	if body.Error != "" {
		ex.Error = errors.New(body.Error)
	}
	return ex, nil
}

func extension(e cloudevents.Event, name string) string {
	s, _ := e.Extensions()[name].(string)
	return s
}

func toWire(m *Message) *wireMessage {
	if m == nil {
		return nil
	}
	return &wireMessage{
		Content:     m.Content,
		Properties:  m.Properties,
		Attachments: m.Attachments,
	}
}

func fromWire(w *wireMessage) *Message {
	if w == nil {
		return nil
	}
	m := &Message{
		Content:     cloneBytes(w.Content),
		Properties:  w.Properties,
		Attachments: cloneAttachments(w.Attachments),
	}
	if m.Properties == nil {
		m.Properties = make(Properties)
	}
	if m.Attachments == nil {
		m.Attachments = make(map[string][]byte)
	}
	return m
}
