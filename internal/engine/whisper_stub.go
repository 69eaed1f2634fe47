//go:build !whisper

package engine

// Whisper stub implementation when whisper is disabled
type Whisper struct{}

// NewWhisper creates a stub engine when whisper is disabled
func NewWhisper() *Whisper {
	return &Whisper{}
}

// Load stub implementation always fails
func (w *Whisper) Load(modelPath string) (Context, error) {
	return nil, ErrEngineUnavailable
}
