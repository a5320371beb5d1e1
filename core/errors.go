package core

import "fmt"

// ConfigError is a configuration problem with an actionable fix.
type ConfigError struct {
	Code    string // Error code for programmatic handling
	Message string // Human-readable error message
	Action  string // What the operator should change
}

func (e *ConfigError) Error() string {
	if e.Action != "" {
		return fmt.Sprintf("%s. %s", e.Message, e.Action)
	}
	return e.Message
}

// Error codes for configuration errors
const (
	ErrCodeInvalidValue  = "INVALID_VALUE"
	ErrCodeMissingAuth   = "MISSING_AUTH"
	ErrCodeMissingConfig = "MISSING_CONFIG"
	ErrCodeConfigFile    = "CONFIG_FILE"
)

// ErrInvalidValue reports an environment value outside its accepted range.
func ErrInvalidValue(key string, value any, reason string) *ConfigError {
	return &ConfigError{
		Code:    ErrCodeInvalidValue,
		Message: fmt.Sprintf("Invalid %s %v: %s", key, value, reason),
		Action:  fmt.Sprintf("Correct %s in your .env file or config file", key),
	}
}

// ErrMissingAuth reports missing credentials for an engine.
func ErrMissingAuth(engine string) *ConfigError {
	action := fmt.Sprintf("Set the required API key for %s in your .env file", engine)
	if engine == EngineOpenAI {
		action = "Set OPENAI_API_KEY in your .env file, or choose IMAGEGEN_ENGINE=procedural"
	}
	return &ConfigError{
		Code:    ErrCodeMissingAuth,
		Message: fmt.Sprintf("Missing authentication credentials for the %s engine", engine),
		Action:  action,
	}
}

// ErrMissingConfig reports a required key that is unset.
func ErrMissingConfig(key, description string) *ConfigError {
	return &ConfigError{
		Code:    ErrCodeMissingConfig,
		Message: fmt.Sprintf("Missing required configuration: %s", key),
		Action:  fmt.Sprintf("Set %s (%s)", key, description),
	}
}

// ErrConfigFile reports an unreadable or malformed YAML config file.
func ErrConfigFile(path string, err error) *ConfigError {
	return &ConfigError{
		Code:    ErrCodeConfigFile,
		Message: fmt.Sprintf("Cannot read config file %s: %v", path, err),
		Action:  "Fix the YAML syntax or unset IMAGEGEN_CONFIG",
	}
}
