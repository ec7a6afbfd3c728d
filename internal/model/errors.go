package model

import (
	"errors"
	"fmt"
)

// Error taxonomy shared by all stages. Callers wrap these with %w and test with errors.Is
var (
	// ErrEvidenceAbsent means required input is entirely missing
	ErrEvidenceAbsent = errors.New("evidence absent")

	// ErrEvidenceAmbiguous means signals conflict or are too weak to decide
	ErrEvidenceAmbiguous = errors.New("evidence ambiguous")

	// ErrOracleFailure means the reasoning oracle failed or returned unusable output
	ErrOracleFailure = errors.New("oracle failure")

	// ErrContractViolation means an invariant broke. This is a programming fault
	ErrContractViolation = errors.New("contract violation")
)

// ContractViolation builds an error wrapping ErrContractViolation
func ContractViolation(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrContractViolation, fmt.Sprintf(format, args...))
}
