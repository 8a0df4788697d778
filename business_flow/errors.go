// Package businessflow contains the core sequencing, dispatching and IVR use cases
package businessflow

import (
	"errors"
	"fmt"
)

// Business flow error constants
var (
	// Error taxonomy
	ErrSequencing      = errors.New("sequencing failed")
	ErrExternalService = errors.New("external service failed")
	ErrConfiguration   = errors.New("configuration missing")

	// Lookup errors
	ErrLeadNotFound          = errors.New("lead not found")
	ErrFollowupGroupNotFound = errors.New("followup group not found")
	ErrCampaignNotFound      = errors.New("campaign not found")
	ErrCallLogNotFound       = errors.New("call log not found")
	ErrPromptNotFound        = errors.New("ivr prompt not found")
	ErrPromptMessageNotFound = errors.New("ivr prompt message not found")

	// Inbound errors
	ErrPhoneNumberNotRegistered = errors.New("phone number not registered")
	ErrLeadBlocked              = errors.New("lead is blocked")
	ErrInboundGroupNotFound     = errors.New("no inbound followup group available")
	ErrUnexpectedEntryStep      = errors.New("unexpected entry step")
	ErrInvalidAccount           = errors.New("invalid telephony account")

	// Concurrency errors
	ErrConcurrentUpdate = errors.New("concurrent update")
)

type BusinessError struct {
	Code    string
	Message string
	Err     error
}

func (e *BusinessError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *BusinessError) Unwrap() error {
	return e.Err
}

func NewBusinessError(code, message string, err error) *BusinessError {
	return &BusinessError{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

// sequencingError wraps ErrSequencing with the cause
func sequencingError(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrSequencing, fmt.Sprintf(format, args...))
}

// configurationError wraps ErrConfiguration with the cause
func configurationError(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrConfiguration, fmt.Sprintf(format, args...))
}

// externalError wraps ErrExternalService around a collaborator failure
func externalError(service string, err error) error {
	return fmt.Errorf("%w: %s: %w", ErrExternalService, service, err)
}

func IsSequencing(err error) bool {
	return errors.Is(err, ErrSequencing)
}

func IsExternalService(err error) bool {
	return errors.Is(err, ErrExternalService)
}

func IsConfiguration(err error) bool {
	return errors.Is(err, ErrConfiguration)
}

func IsLeadNotFound(err error) bool {
	return errors.Is(err, ErrLeadNotFound)
}

func IsFollowupGroupNotFound(err error) bool {
	return errors.Is(err, ErrFollowupGroupNotFound)
}

func IsCampaignNotFound(err error) bool {
	return errors.Is(err, ErrCampaignNotFound)
}

func IsCallLogNotFound(err error) bool {
	return errors.Is(err, ErrCallLogNotFound)
}

func IsPromptNotFound(err error) bool {
	return errors.Is(err, ErrPromptNotFound) || errors.Is(err, ErrPromptMessageNotFound)
}

func IsPhoneNumberNotRegistered(err error) bool {
	return errors.Is(err, ErrPhoneNumberNotRegistered)
}

func IsLeadBlocked(err error) bool {
	return errors.Is(err, ErrLeadBlocked)
}

func IsInboundGroupNotFound(err error) bool {
	return errors.Is(err, ErrInboundGroupNotFound)
}

func IsUnexpectedEntryStep(err error) bool {
	return errors.Is(err, ErrUnexpectedEntryStep)
}

func IsInvalidAccount(err error) bool {
	return errors.Is(err, ErrInvalidAccount)
}

func IsConcurrentUpdate(err error) bool {
	return errors.Is(err, ErrConcurrentUpdate)
}
