// ABOUTME: Error taxonomy shared across the pipeline
// ABOUTME: ConfigError is fatal at startup, ServiceError marks an unreachable backend
package models

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrConfig matches every configuration error
	ErrConfig = errors.New("invalid configuration")
	// ErrServiceUnavailable matches timeouts and unreachable completion, embedding or search backends
	ErrServiceUnavailable = errors.New("service unavailable")
	// ErrNotFound is returned when a chunk or session does not exist
	ErrNotFound = errors.New("not found")
)

// ConfigError lists every problem found while validating configuration
type ConfigError struct {
	Problems []string
}

// NewConfigError builds a ConfigError from one or more problems
func NewConfigError(problems ...string) *ConfigError {
	return &ConfigError{Problems: problems}
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("invalid configuration: %s", strings.Join(e.Problems, "; "))
}

func (e *ConfigError) Is(target error) bool {
	return target == ErrConfig
}

// ServiceError wraps a failed call to an external service
type ServiceError struct {
	Service string
	Op      string
	Err     error
}

func (e *ServiceError) Error() string {
	return fmt.Sprintf("%s %s unavailable: %v", e.Service, e.Op, e.Err)
}

func (e *ServiceError) Unwrap() error {
	return e.Err
}

func (e *ServiceError) Is(target error) bool {
	return target == ErrServiceUnavailable
}

// Unavailable wraps err as a ServiceError
func Unavailable(service, op string, err error) error {
	return &ServiceError{Service: service, Op: op, Err: err}
}
