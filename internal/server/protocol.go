package server

import (
	"encoding/json"
	"fmt"
	"html/template"

	"github.com/vango-dev/penguins/internal/dashboard"
	"github.com/vango-dev/penguins/internal/errors"
	"github.com/vango-dev/penguins/internal/render"
)

// Message types on the live connection.
const (
	MsgInput = "input"
	MsgGrid  = "grid"
	MsgPing  = "ping"
	MsgPatch = "patch"
	MsgError = "error"
	MsgPong  = "pong"
)

// ClientMessage is a frame sent by the browser.
//
//	{"type":"input","field":"plotly_bin_count","value":25}
//	{"type":"grid","page":2,"sort":"body_mass_g","desc":true}
//	{"type":"ping"}
type ClientMessage struct {
	Type  string          `json:"type"`
	Field string          `json:"field,omitempty"`
	Value json.RawMessage `json:"value,omitempty"`
	Page  int             `json:"page,omitempty"`
	Sort  string          `json:"sort,omitempty"`
	Desc  bool            `json:"desc,omitempty"`
}

// ServerMessage is a frame sent to the browser.
type ServerMessage struct {
	Type    string                   `json:"type"`
	Seq     uint64                   `json:"seq,omitempty"`
	Outputs map[string]template.HTML `json:"outputs,omitempty"`
	Code    string                   `json:"code,omitempty"`
	Message string                   `json:"message,omitempty"`
	Field   string                   `json:"field,omitempty"`
}

// DecodeClientMessage parses one frame.
func DecodeClientMessage(data []byte) (ClientMessage, error) {
	var msg ClientMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return ClientMessage{}, errors.New(errors.CodeBadMessage).Wrap(err)
	}
	switch msg.Type {
	case MsgInput, MsgGrid, MsgPing:
		return msg, nil
	case "":
		return ClientMessage{}, errors.New(errors.CodeBadMessage).WithDetail("The frame has no type.")
	default:
		return ClientMessage{}, errors.New(errors.CodeBadMessage).WithDetail(fmt.Sprintf("Unknown message type %q.", msg.Type))
	}
}

// Change converts an input or grid frame into a validated change.
func (m ClientMessage) Change() (dashboard.Change, error) {
	switch m.Type {
	case MsgInput:
		return dashboard.ParseChange(m.Field, m.Value)
	case MsgGrid:
		return dashboard.GridChange(render.GridState{Page: m.Page, Sort: m.Sort, Desc: m.Desc})
	default:
		return dashboard.Change{}, errors.New(errors.CodeBadMessage).WithDetail(fmt.Sprintf("A %q frame carries no change.", m.Type))
	}
}

// PatchMessage wraps a session patch for the wire.
func PatchMessage(p dashboard.Patch) ServerMessage {
	outputs := make(map[string]template.HTML, len(p.Outputs))
	for id, html := range p.Outputs {
		outputs[string(id)] = html
	}
	return ServerMessage{Type: MsgPatch, Seq: p.Seq, Outputs: outputs}
}

// ErrorMessage reports err to the client. Coded errors keep their code
// and field; anything else is reported as a bad message.
func ErrorMessage(err error) ServerMessage {
	pe := errors.FromError(err, errors.CodeBadMessage)
	return ServerMessage{
		Type:    MsgError,
		Code:    pe.Code,
		Message: pe.Message,
		Field:   pe.Field,
	}
}
