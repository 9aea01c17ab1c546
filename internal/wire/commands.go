package wire

// EndOfLine is the line terminator style for formatted output.
type EndOfLine string

const (
	EndOfLineLF   EndOfLine = "lf"
	EndOfLineCRLF EndOfLine = "crlf"
)

// FormattingOptions mirrors spec.md §3's options object.
type FormattingOptions struct {
	PrintWidth int       `json:"printWidth"`
	TabWidth   int       `json:"tabWidth"`
	UseTabs    bool      `json:"useTabs"`
	EndOfLine  EndOfLine `json:"endOfLine"`
}

// TextRange is a half-open [Start, End) byte range into the source text.
type TextRange struct {
	Start int `json:"start"`
	End   int `json:"end"`
}

// --- initialize ---

// InitializeOptions carries host-specific initialization settings. The
// concrete formatter toolchain this targets is out of scope; fields here
// are passed through verbatim.
type InitializeOptions struct {
	RoslynLanguageVersion string `json:"roslynLanguageVersion,omitempty"`
	MSBuildSdksPath       string `json:"msbuildSdksPath,omitempty"`
}

// InitializeRequest is the payload of the (client->host) initialize request.
type InitializeRequest struct {
	ClientVersion     string            `json:"clientVersion"`
	HostBinaryVersion string            `json:"hostBinaryVersion"`
	Platform          string            `json:"platform"`
	Options           InitializeOptions `json:"options"`
}

// Capabilities declares host feature flags negotiated at initialize time.
type Capabilities struct {
	SupportsRangeFormatting bool `json:"supportsRangeFormatting"`
	SupportsDiagnostics     bool `json:"supportsDiagnostics"`
	SupportsTelemetry       bool `json:"supportsTelemetry"`
}

// InitializeResponse is the payload of the initialize response.
type InitializeResponse struct {
	OK                    bool          `json:"ok"`
	HostVersion           string        `json:"hostVersion,omitempty"`
	RoslynLanguageVersion string        `json:"roslynLanguageVersion,omitempty"`
	Capabilities          *Capabilities `json:"capabilities,omitempty"`
	Reason                string        `json:"reason,omitempty"`
}

// --- format ---

// FormatRequest is the payload of a format request (spec.md §3).
type FormatRequest struct {
	FilePath   string            `json:"filePath,omitempty"`
	Content    string            `json:"content"`
	Range      *TextRange        `json:"range,omitempty"`
	Options    FormattingOptions `json:"options"`
	SessionID  string            `json:"sessionId"`
	TraceToken string            `json:"traceToken,omitempty"`
}

// Severity is the severity level of a diagnostic.
type Severity string

const (
	SeverityInfo    Severity = "info"
	SeverityWarning Severity = "warning"
	SeverityError   Severity = "error"
)

// Diagnostic describes a single issue found while formatting.
type Diagnostic struct {
	Severity Severity `json:"severity"`
	Message  string   `json:"message"`
	Start    *int     `json:"start,omitempty"`
	End      *int     `json:"end,omitempty"`
}

// Metrics reports per-request timing and memory observations.
type Metrics struct {
	ElapsedMs         float64  `json:"elapsedMs"`
	ParseDiagnostics  int      `json:"parseDiagnostics"`
	ManagedMemoryMb   *float64 `json:"managedMemoryMb,omitempty"`
	WorkingSetMb      *float64 `json:"workingSetMb,omitempty"`
	WorkingSetDeltaMb *float64 `json:"workingSetDeltaMb,omitempty"`
}

// FormatDetails carries structured context for a failed format response,
// notably the memory guard fields.
type FormatDetails struct {
	ManagedMemoryMb   float64 `json:"managedMemoryMb"`
	WorkingSetMb      float64 `json:"workingSetMb"`
	WorkingSetDeltaMb float64 `json:"workingSetDeltaMb"`
	BudgetMb          float64 `json:"budgetMb"`
}

// FormatResponse is the payload of a format response (spec.md §3).
type FormatResponse struct {
	OK          bool           `json:"ok"`
	Formatted   string         `json:"formatted,omitempty"`
	Diagnostics []Diagnostic   `json:"diagnostics,omitempty"`
	Metrics     *Metrics       `json:"metrics,omitempty"`
	ErrorCode   string         `json:"errorCode,omitempty"`
	Message     string         `json:"message,omitempty"`
	Details     *FormatDetails `json:"details,omitempty"`
}

// --- ping ---

// PingRequest is the payload of a ping request.
type PingRequest struct {
	Timestamp *int64 `json:"timestamp,omitempty"`
}

// PingResponse is the payload of a ping response.
type PingResponse struct {
	OK             bool  `json:"ok"`
	Timestamp      int64 `json:"timestamp"`
	UptimeMs       int64 `json:"uptimeMs"`
	ActiveRequests int   `json:"activeRequests"`
}

// --- shutdown ---

// ShutdownRequest is the payload of a shutdown request.
type ShutdownRequest struct {
	Reason string `json:"reason,omitempty"`
}

// ShutdownResponse is the payload of a shutdown response.
type ShutdownResponse struct {
	OK bool `json:"ok"`
}

// ErrorPayload is the generic {ok:false, errorCode, message} response shape
// used for protocol-level failures whose originating command may itself be
// unknown or unrecoverable, so a command-specific response type doesn't fit.
type ErrorPayload struct {
	OK        bool   `json:"ok"`
	ErrorCode string `json:"errorCode"`
	Message   string `json:"message"`
}

// --- notifications: log / error ---

// LogLevel is the severity of a log notification.
type LogLevel string

const (
	LogDebug LogLevel = "debug"
	LogInfo  LogLevel = "info"
	LogWarn  LogLevel = "warn"
	LogError LogLevel = "error"
)

// LogNotification is the payload of a log notification (host -> client).
type LogNotification struct {
	Level      LogLevel       `json:"level"`
	Message    string         `json:"message"`
	TraceToken string         `json:"traceToken,omitempty"`
	Context    map[string]any `json:"context,omitempty"`
}

// ErrorSeverity classifies an error notification.
type ErrorSeverity string

const (
	ErrorSeverityFatal       ErrorSeverity = "fatal"
	ErrorSeverityRecoverable ErrorSeverity = "recoverable"
)

// ErrorNotification is the payload of an error notification (host -> client).
type ErrorNotification struct {
	Severity  ErrorSeverity  `json:"severity"`
	ErrorCode string         `json:"errorCode,omitempty"`
	Message   string         `json:"message"`
	Details   map[string]any `json:"details,omitempty"`
}
