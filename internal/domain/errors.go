package domain

import (
	"errors"
	"fmt"
)

// Domain errors represent business-level errors that can occur in the system.
// These errors are used across layers to communicate specific failure conditions.
var (
	// Site list errors
	ErrSiteListInvalid     = errors.New("invalid site list")
	ErrSiteDomainMissing   = errors.New("site domain is missing")
	ErrSiteDomainInvalid   = errors.New("site domain must be a DNS hostname")
	ErrSiteUpstreamMissing = errors.New("site upstream is missing")
	ErrSiteUpstreamInvalid = errors.New("site upstream must be http(s)://host[:port] without a path")
	ErrSiteFlagInvalid     = errors.New("site flag must be a boolean")
	ErrSiteDuplicate       = errors.New("duplicate site domain")

	// Certificate errors
	ErrCertBackendUnavailable = errors.New("certificate backend unavailable")
	ErrCertFilesMissing       = errors.New("certificate files missing after generation")

	// Resolver errors
	ErrResolverVerifyFailed = errors.New("resolver file does not point at the local nameserver")
	ErrResolverNoBackup     = errors.New("no resolver backup to restore")

	// Service errors
	ErrServiceNotReady = errors.New("service not ready")

	// Config errors
	ErrConfigNotFound   = errors.New("configuration not found")
	ErrInvalidConfig    = errors.New("invalid configuration")
	ErrDirNotWritable   = errors.New("directory not writable")
	ErrRefreshQueued    = errors.New("refresh already in progress, queued")
	ErrWatcherNotActive = errors.New("no running watcher found")
)

// ValidationError reports why a site entry was rejected.
type ValidationError struct {
	Domain string // domain or "site #N" when the domain is missing
	Field  string
	Reason string
	Err    error
}

func (e *ValidationError) Error() string {
	if e.Reason != "" {
		return fmt.Sprintf("site %s: %s: %s", e.Domain, e.Field, e.Reason)
	}
	return fmt.Sprintf("site %s: %s: %v", e.Domain, e.Field, e.Err)
}

func (e *ValidationError) Unwrap() error {
	return e.Err
}

// ErrorKind classifies a pipeline failure.
type ErrorKind string

const (
	KindValidation          ErrorKind = "validation"
	KindProvisioning        ErrorKind = "provisioning"
	KindSystemConfiguration ErrorKind = "system_configuration"
	KindLifecycle           ErrorKind = "lifecycle"
	KindVerification        ErrorKind = "verification"
)

// Fatal reports whether a failure of this kind aborts the run.
func (k ErrorKind) Fatal() bool {
	switch k {
	case KindSystemConfiguration, KindVerification:
		return false
	default:
		return true
	}
}

// StageError wraps a failure with the stage and entity it happened on.
type StageError struct {
	Stage  Stage
	Kind   ErrorKind
	Entity string
	Err    error
}

func (e *StageError) Error() string {
	if e.Entity != "" {
		return fmt.Sprintf("%s (%s) failed for %s: %v", e.Stage, e.Kind, e.Entity, e.Err)
	}
	return fmt.Sprintf("%s (%s) failed: %v", e.Stage, e.Kind, e.Err)
}

func (e *StageError) Unwrap() error {
	return e.Err
}

// Fatal reports whether the error aborts the pipeline.
func (e *StageError) Fatal() bool {
	return e.Kind.Fatal()
}
