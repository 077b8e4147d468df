package messenger

import (
	"context"
	"encoding/json"
)

// Button colors understood by the VK keyboard API.
const (
	ColorPrimary   = "primary"
	ColorSecondary = "secondary"
	ColorPositive  = "positive"
	ColorNegative  = "negative"
)

// Button is a single text button. Pressing it sends Label back as a message.
type Button struct {
	Label string
	Color string
}

// Keyboard is an ordered set of button rows attached to a message.
type Keyboard struct {
	OneTime bool
	Inline  bool
	Rows    [][]Button
}

// Message is one outbound reply.
type Message struct {
	UserID      int64
	Text        string
	Keyboard    *Keyboard
	Attachments []string
}

// Sender delivers messages. Implementations log delivery failures instead of returning them.
type Sender interface {
	Send(ctx context.Context, msg Message)
}

// Labels returns every button label in row order.
func (k *Keyboard) Labels() []string {
	if k == nil {
		return nil
	}

	labels := make([]string, 0)
	for _, row := range k.Rows {
		for _, b := range row {
			labels = append(labels, b.Label)
		}
	}
	return labels
}

type wireAction struct {
	Type  string `json:"type"`
	Label string `json:"label"`
}

type wireButton struct {
	Action wireAction `json:"action"`
	Color  string     `json:"color,omitempty"`
}

type wireKeyboard struct {
	OneTime bool           `json:"one_time"`
	Inline  bool           `json:"inline"`
	Buttons [][]wireButton `json:"buttons"`
}

// MarshalJSON renders the keyboard in the VK messages.send format.
func (k Keyboard) MarshalJSON() ([]byte, error) {
	w := wireKeyboard{
		Inline:  k.Inline,
		Buttons: make([][]wireButton, 0, len(k.Rows)),
	}
	// one_time is rejected by VK for inline keyboards.
	if !k.Inline {
		w.OneTime = k.OneTime
	}

	for _, row := range k.Rows {
		buttons := make([]wireButton, 0, len(row))
		for _, b := range row {
			color := b.Color
			if color == "" {
				color = ColorSecondary
			}
			buttons = append(buttons, wireButton{
				Action: wireAction{Type: "text", Label: b.Label},
				Color:  color,
			})
		}
		w.Buttons = append(w.Buttons, buttons)
	}

	return json.Marshal(w)
}

// Recorder is a Sender that keeps every message in memory.
type Recorder struct {
	Messages []Message
}

func (r *Recorder) Send(_ context.Context, msg Message) {
	r.Messages = append(r.Messages, msg)
}

// Last returns the most recently sent message.
func (r *Recorder) Last() (Message, bool) {
	if len(r.Messages) == 0 {
		return Message{}, false
	}
	return r.Messages[len(r.Messages)-1], true
}
