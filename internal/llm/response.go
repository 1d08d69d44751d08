package llm

import (
	"encoding/json"
	"errors"
	"fmt"
)

// ErrMalformedResponse indicates a completion response with no
// recognizable choice structure. This is fatal for the call: guessing
// at an answer shape would produce silent empty answers.
var ErrMalformedResponse = errors.New("malformed LLM response")

// Choice is one completion choice, decoded into a tagged variant.
// The backend's response shape is not fully specified, so decoding
// preserves a strict fallback order:
//
//  1. a direct "text" field        -> TextChoice
//  2. a nested "message.content"   -> MessageChoice
//  3. anything else                -> RawChoice (stringified as-is)
//
// A response without a "choices" list decodes to ErrMalformedResponse.
type Choice interface {
	// Text returns the assistant text carried by this choice.
	Text() string
}

// TextChoice carries a direct text field.
type TextChoice struct {
	Value string
}

// Text returns the direct text value.
func (c TextChoice) Text() string { return c.Value }

// MessageChoice carries a nested message-content field.
type MessageChoice struct {
	Content string
}

// Text returns the message content.
func (c MessageChoice) Text() string { return c.Content }

// RawChoice carries a choice that matched neither known shape.
// Its text is the choice object stringified, a last resort that keeps
// the turn alive instead of erroring on an unknown-but-present choice.
type RawChoice struct {
	Value json.RawMessage
}

// Text returns the compact JSON of the raw choice.
func (c RawChoice) Text() string {
	var buf json.RawMessage
	if err := json.Unmarshal(c.Value, &buf); err != nil {
		return string(c.Value)
	}
	compact, err := json.Marshal(buf)
	if err != nil {
		return string(c.Value)
	}
	return string(compact)
}

// choiceMessage is the nested message shape of chat-style responses.
type choiceMessage struct {
	Content string `json:"content"`
}

// DecodeChoices parses a raw completion response into tagged choices.
// Key presence, not value emptiness, drives the variant selection: a
// choice with an empty "text" field is still a TextChoice.
func DecodeChoices(raw []byte) ([]Choice, error) {
	var envelope map[string]json.RawMessage
	if err := json.Unmarshal(raw, &envelope); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}

	choicesRaw, ok := envelope["choices"]
	if !ok {
		return nil, fmt.Errorf("%w: no choices in %s", ErrMalformedResponse, truncateForError(raw))
	}

	var items []json.RawMessage
	if err := json.Unmarshal(choicesRaw, &items); err != nil {
		return nil, fmt.Errorf("%w: choices is not a list: %v", ErrMalformedResponse, err)
	}

	choices := make([]Choice, 0, len(items))
	for _, item := range items {
		choices = append(choices, decodeChoice(item))
	}
	return choices, nil
}

// decodeChoice classifies a single choice object.
func decodeChoice(item json.RawMessage) Choice {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(item, &fields); err != nil {
		return RawChoice{Value: item}
	}

	if textRaw, ok := fields["text"]; ok {
		var text string
		if err := json.Unmarshal(textRaw, &text); err == nil {
			return TextChoice{Value: text}
		}
	}

	if msgRaw, ok := fields["message"]; ok {
		var msg choiceMessage
		if err := json.Unmarshal(msgRaw, &msg); err == nil {
			return MessageChoice{Content: msg.Content}
		}
	}

	return RawChoice{Value: item}
}

// ExtractText normalizes a raw completion response to assistant text.
// It takes the first choice; an empty choices list is malformed (there
// is nothing to fall back to).
func ExtractText(raw []byte) (string, error) {
	choices, err := DecodeChoices(raw)
	if err != nil {
		return "", err
	}
	if len(choices) == 0 {
		return "", fmt.Errorf("%w: empty choices list", ErrMalformedResponse)
	}

	switch c := choices[0].(type) {
	case TextChoice:
		return c.Text(), nil
	case MessageChoice:
		return c.Text(), nil
	case RawChoice:
		return c.Text(), nil
	default:
		// Unreachable: DecodeChoices only produces the three variants.
		return "", fmt.Errorf("%w: unknown choice variant %T", ErrMalformedResponse, c)
	}
}
