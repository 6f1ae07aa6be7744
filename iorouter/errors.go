package iorouter

import "fmt"

// ConfigurationError reports a malformed router configuration detected
// while processing an Advertise — currently only the duplicate
// ExternalRoute case (spec §9 Open Question: "implementations should
// reject the second advertisement with a configuration error").
type ConfigurationError struct {
	Reason string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("iorouter: configuration error: %s", e.Reason)
}

func duplicateExternalRouteError(route string) error {
	return &ConfigurationError{Reason: fmt.Sprintf("externalRoute %q is already claimed by another IoSource", route)}
}
