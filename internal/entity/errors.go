package entity

import "fmt"

type ErrorKind string

const (
	KindConfigMissing   ErrorKind = "ConfigMissing"
	KindConfigMalformed ErrorKind = "ConfigMalformed"
	KindConfigInvalid   ErrorKind = "ConfigInvalid"
	KindPolicyViolation ErrorKind = "PolicyViolation"
)

// ConfigError carries the error kind so the webhook handler and the CLI
// can decide whether a run must be aborted.
type ConfigError struct {
	Kind    ErrorKind
	Message string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func NewConfigMissing(format string, args ...interface{}) *ConfigError {
	return &ConfigError{Kind: KindConfigMissing, Message: fmt.Sprintf(format, args...)}
}

func NewConfigMalformed(format string, args ...interface{}) *ConfigError {
	return &ConfigError{Kind: KindConfigMalformed, Message: fmt.Sprintf(format, args...)}
}

func NewConfigInvalid(format string, args ...interface{}) *ConfigError {
	return &ConfigError{Kind: KindConfigInvalid, Message: fmt.Sprintf(format, args...)}
}

func NewPolicyViolation(format string, args ...interface{}) *ConfigError {
	return &ConfigError{Kind: KindPolicyViolation, Message: fmt.Sprintf(format, args...)}
}
