package chat

import "context"

// Part is one piece of user content: text or inline binary data.
type Part struct {
	Text string
	// Inline carries base64-encoded bytes (e.g. an image) when non-nil.
	Inline *Blob
}

// Blob is inline binary content for the model.
type Blob struct {
	MIMEType string
	Data     string // base64
}

// Request pairs a system instruction with single-turn user content.
type Request struct {
	Instruction string
	Parts       []Part
}

// Generator produces text from a composed request.
type Generator interface {
	Generate(ctx context.Context, req Request) (string, error)
}
