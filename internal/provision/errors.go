package provision

import (
	"fmt"

	"github.com/pkg/errors"
)

// Class buckets step failures the way exit policy needs them.
type Class string

const (
	// ClassPrerequisite is missing tooling or an unreadable host.
	ClassPrerequisite Class = "prerequisite"
	// ClassNetwork is a failed required download.
	ClassNetwork Class = "network"
	// ClassIntegrity is an installer digest mismatch or an unusable digest.
	ClassIntegrity Class = "integrity"
	// ClassExecution is a required command that exited non-zero.
	ClassExecution Class = "execution"
	// ClassOptional failures are logged and never abort a run.
	ClassOptional Class = "optional"
)

// StepError is the error Run returns when a required step fails.
type StepError struct {
	Step  string
	Class Class
	Err   error
}

func (e *StepError) Error() string {
	return fmt.Sprintf("%s (%s): %v", e.Step, e.Class, e.Err)
}

func (e *StepError) Unwrap() error { return e.Err }

func fail(class Class, err error) *StepError { return &StepError{Class: class, Err: err} }

// ClassOf returns the class of a StepError in err's chain, or "" if none.
func ClassOf(err error) Class {
	var se *StepError
	if errors.As(err, &se) {
		return se.Class
	}
	return ""
}

// IsFatal reports whether err should end the run with a failure status.
func IsFatal(err error) bool {
	if err == nil {
		return false
	}
	return ClassOf(err) != ClassOptional
}

// IsIntegrity reports whether err is an installer integrity failure.
func IsIntegrity(err error) bool { return ClassOf(err) == ClassIntegrity }

// IsPrerequisite reports whether err is missing host tooling.
func IsPrerequisite(err error) bool { return ClassOf(err) == ClassPrerequisite }

// IsNetwork reports whether err is a failed required download.
func IsNetwork(err error) bool { return ClassOf(err) == ClassNetwork }
