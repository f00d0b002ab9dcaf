package errors

// ErrorTemplate defines a registered error type.
type ErrorTemplate struct {
	Category Category
	Message  string
	Detail   string
}

// Registered codes.
const (
	CodeConfigNotFound = "E101"
	CodeConfigInvalid  = "E102"
	CodeConfigParse    = "E103"
	CodeConfigWrite    = "E104"

	CodeUnknownField     = "E201"
	CodeInvalidSpecies   = "E202"
	CodeInvalidAttribute = "E203"
	CodeInvalidBinCount  = "E204"
	CodeInvalidGridState = "E205"
	CodeMalformedValue   = "E206"

	CodeDataUnavailable = "E301"
	CodeDataMalformed   = "E302"
	CodeRenderFailed    = "E303"

	CodeSessionNotFound = "E401"
	CodeSessionLimit    = "E402"
	CodeSessionClosed   = "E403"
	CodeBadMessage      = "E404"
	CodeStoreFailed     = "E405"
)

// registry maps error codes to their templates.
var registry = map[string]ErrorTemplate{
	// ============================================
	// Config Errors (E101-E199)
	// ============================================

	CodeConfigNotFound: {
		Category: CategoryConfig,
		Message:  "Configuration file not found",
		Detail:   "No penguins.json, penguins.yaml or penguins.yml was found in the directory.",
	},
	CodeConfigInvalid: {
		Category: CategoryConfig,
		Message:  "Invalid configuration",
		Detail:   "A configuration value is outside its allowed range.",
	},
	CodeConfigParse: {
		Category: CategoryConfig,
		Message:  "Configuration parse error",
		Detail:   "The configuration file is not valid JSON or YAML.",
	},
	CodeConfigWrite: {
		Category: CategoryConfig,
		Message:  "Failed to write configuration",
	},

	// ============================================
	// Input Errors (E201-E299)
	// ============================================

	CodeUnknownField: {
		Category: CategoryInput,
		Message:  "Unknown input field",
		Detail:   "Valid fields are selected_species, selected_attribute, plotly_bin_count and seaborn_bin_count.",
	},
	CodeInvalidSpecies: {
		Category: CategoryInput,
		Message:  "Invalid species selection",
		Detail:   "Species must be a list drawn from Adelie, Gentoo and Chinstrap.",
	},
	CodeInvalidAttribute: {
		Category: CategoryInput,
		Message:  "Invalid attribute",
		Detail:   "The attribute must be one of bill_length_mm, bill_depth_mm, flipper_length_mm, body_mass_g, or empty.",
	},
	CodeInvalidBinCount: {
		Category: CategoryInput,
		Message:  "Bin count out of range",
	},
	CodeInvalidGridState: {
		Category: CategoryInput,
		Message:  "Invalid grid state",
		Detail:   "The page must be non-negative and the sort column must be a dataset column.",
	},
	CodeMalformedValue: {
		Category: CategoryInput,
		Message:  "Malformed input value",
		Detail:   "The value does not have the JSON type the field expects.",
	},

	// ============================================
	// Data Errors (E301-E399)
	// ============================================

	CodeDataUnavailable: {
		Category: CategoryData,
		Message:  "Dataset unavailable",
		Detail:   "The dataset source could not be read.",
	},
	CodeDataMalformed: {
		Category: CategoryData,
		Message:  "Dataset malformed",
		Detail:   "The dataset CSV could not be parsed.",
	},
	CodeRenderFailed: {
		Category: CategoryData,
		Message:  "Render failed",
	},

	// ============================================
	// Session Errors (E401-E499)
	// ============================================

	CodeSessionNotFound: {
		Category: CategorySession,
		Message:  "Session not found",
		Detail:   "The session ID is invalid or the session has expired.",
	},
	CodeSessionLimit: {
		Category: CategorySession,
		Message:  "Too many sessions",
		Detail:   "The server has reached its configured session limit.",
	},
	CodeSessionClosed: {
		Category: CategorySession,
		Message:  "Session closed",
	},
	CodeBadMessage: {
		Category: CategoryProtocol,
		Message:  "Malformed message",
		Detail:   "The WebSocket frame is not a valid client message.",
	},
	CodeStoreFailed: {
		Category: CategorySession,
		Message:  "Session store failure",
	},
}

// GetAllCodes returns all registered error codes.
func GetAllCodes() []string {
	codes := make([]string, 0, len(registry))
	for code := range registry {
		codes = append(codes, code)
	}
	return codes
}

// GetTemplate returns the template for an error code.
func GetTemplate(code string) (ErrorTemplate, bool) {
	t, ok := registry[code]
	return t, ok
}
