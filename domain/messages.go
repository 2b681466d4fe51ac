package domain

// Required audio contract for synthesized responses.
const (
	RequiredSampleRate  = 8000
	RequiredChannels    = 1
	RequiredSampleWidth = 2
)

// StartMessage opens a session on the server.
type StartMessage struct {
	Type     string `json:"type"`
	UUID     string `json:"uuid"`
	Language string `json:"language"`
}

// SynthesizeMessage asks the server to speak the given text.
type SynthesizeMessage struct {
	Type     string  `json:"type"`
	Text     string  `json:"text"`
	Voice    string  `json:"voice"`
	Language string  `json:"language"`
	Speed    float64 `json:"speed"`
}
