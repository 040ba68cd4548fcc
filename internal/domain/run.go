package domain

import "time"

// Stage names one step of the pipeline.
type Stage string

const (
	StageValidate        Stage = "validate"
	StageEnsureDirs      Stage = "ensure-directories"
	StageRender          Stage = "render-configs"
	StageWriteConfigs    Stage = "write-configs"
	StageProvisionCerts  Stage = "provision-certificates"
	StageResolver        Stage = "reconfigure-resolver"
	StageRestartServices Stage = "restart-services"
	StageWaitReady       Stage = "wait-for-readiness"
	StageVerify          Stage = "verify"
	StageCleanServices   Stage = "clean-services"
	StageCleanConfigs    Stage = "clean-configs"
	StageRestoreResolver Stage = "restore-resolver"
	StagePortRelease     Stage = "release-dns-port"
)

// StageStatus is the outcome of one stage.
type StageStatus string

const (
	StatusOK         StageStatus = "ok"
	StatusSoftFailed StageStatus = "soft-failed"
	StatusFailed     StageStatus = "failed"
	StatusSkipped    StageStatus = "skipped"
)

// StageOutcome records what happened in one stage.
type StageOutcome struct {
	Stage    Stage
	Status   StageStatus
	Duration time.Duration
	Err      error
}

// RunResult is returned by every pipeline run.
type RunResult struct {
	RunID        string
	Sites        SiteList
	Stages       []StageOutcome
	Certificates []CertificateRecord
	Report       *VerificationReport
	Warnings     error // *multierror.Error or nil
}
