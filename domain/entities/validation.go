package entities

// ValidationFlags summarise which parts of the protocol contract have been
// observed working during the lifetime of the client.
type ValidationFlags struct {
	Connection      bool `json:"connection"`
	SessionID       bool `json:"session_id"`
	Transcription   bool `json:"transcription"`
	SynthesisFormat bool `json:"synthesis_format"`
	AudioFormat     bool `json:"audio_format"`
	Base64Encoding  bool `json:"base64_encoding"`
	RateLimiting    bool `json:"rate_limiting"`
}

// ValidationResult describes the shape of one inbound audio payload.
type ValidationResult struct {
	IsValid       bool            `json:"is_valid"`
	MissingFields []string        `json:"missing_fields"`
	TypeMatches   map[string]bool `json:"type_matches"`
}

// FormatCompliance compares an audio payload against the required
// 8000 Hz / mono / 16-bit contract. Each comparison is independent.
type FormatCompliance struct {
	SampleRate  bool `json:"sample_rate"`
	Channels    bool `json:"channels"`
	SampleWidth bool `json:"sample_width"`
}

// Compliant reports whether all three comparisons hold.
func (f FormatCompliance) Compliant() bool {
	return f.SampleRate && f.Channels && f.SampleWidth
}

// ResponseAnalysis is the per-response report kept for the latest audio event.
type ResponseAnalysis struct {
	ResponseNumber int              `json:"response_number"`
	Validation     ValidationResult `json:"validation"`
	Format         FormatCompliance `json:"format"`
	SessionID      string           `json:"session_id"`
	SessionMatches bool             `json:"session_matches"`
	Count          int              `json:"count"`
	SampleRate     int              `json:"sample_rate"`
	Channels       int              `json:"channels"`
	SampleWidth    int              `json:"sample_width"`
	Base64Length   int              `json:"base64_length"`
}

// AudioInfo describes the last decoded audio payload.
type AudioInfo struct {
	Loaded bool   `json:"loaded"`
	Bytes  int    `json:"bytes"`
	Path   string `json:"path,omitempty"`
}

// Snapshot is a copy of the full client state, safe to hand to observers.
type Snapshot struct {
	Connection       string            `json:"connection"`
	Session          Session           `json:"session"`
	Recording        bool              `json:"recording"`
	RateLimit        RateLimitConfig   `json:"rate_limit"`
	Counters         Counters          `json:"counters"`
	LatestTranscript string            `json:"latest_transcript"`
	SynthesisText    string            `json:"synthesis_text"`
	Validation       ValidationFlags   `json:"validation"`
	LastResponse     *ResponseAnalysis `json:"last_response,omitempty"`
	Audio            AudioInfo         `json:"audio"`
	LogSize          int               `json:"log_size"`
}
