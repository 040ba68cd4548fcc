package cli

import (
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/hashicorp/go-multierror"

	"github.com/localroute/localroute/internal/adapters/in/cli/ui/styles"
	"github.com/localroute/localroute/internal/domain"
)

var cliWriteLine = func(w io.Writer, msg string) error {
	_, err := fmt.Fprintln(w, msg)
	return err
}

func cliRenderTitle(msg string) string {
	return styles.Theme.Title.Render(msg)
}

func cliRenderHeading(msg string) string {
	return styles.Theme.Heading.Render(msg)
}

func cliRenderMuted(msg string) string {
	return styles.Theme.Muted.Render(msg)
}

func cliRenderListItem(msg string) string {
	return styles.RenderListItem(msg)
}

func cliRenderMeta(label, value string) string {
	return styles.Theme.Bold.Render(label) + " " + styles.Theme.Muted.Render(value)
}

func cliRenderSuccess(msg string) string {
	return styles.RenderSuccess(msg)
}

func cliRenderWarning(msg string) string {
	return styles.RenderWarning(msg)
}

func cliRenderInfo(msg string) string {
	return styles.RenderInfo(msg)
}

func cliRenderError(msg string) string {
	return styles.RenderError(msg)
}

// renderRunResult prints one pipeline run: stages, certificates, checks,
// then the warning summary and the final verdict.
func renderRunResult(w io.Writer, action string, result *domain.RunResult, runErr error) error {
	var b strings.Builder

	title := cliRenderTitle("localroute " + action)
	if result != nil && result.RunID != "" {
		title += " " + cliRenderMuted(result.RunID)
	}
	b.WriteString(title + "\n")

	if result != nil {
		writeStages(&b, result.Stages)
		writeCertificates(&b, result.Certificates)
		if result.Report != nil {
			writeReport(&b, *result.Report)
		}
	}

	warnings := warningList(result)
	if len(warnings) > 0 {
		b.WriteString("\n" + cliRenderHeading(fmt.Sprintf("Warnings (%d)", len(warnings))) + "\n")
		for _, warn := range warnings {
			b.WriteString("  " + cliRenderWarning(warn.Error()) + "\n")
		}
	}

	var verdict string
	switch {
	case errors.Is(runErr, domain.ErrRefreshQueued):
		verdict = cliRenderInfo("refresh queued behind the running one")
	case runErr != nil:
		verdict = cliRenderError(runErr.Error())
	case len(warnings) > 0:
		verdict = cliRenderWarning(fmt.Sprintf("%s completed with %d warning(s)", action, len(warnings)))
	default:
		verdict = cliRenderSuccess(action + " completed")
	}
	b.WriteString("\n" + styles.RenderBox(verdict))

	return cliWriteLine(w, b.String())
}

func writeStages(b *strings.Builder, stages []domain.StageOutcome) {
	if len(stages) == 0 {
		return
	}
	b.WriteString("\n" + cliRenderHeading("Stages") + "\n")
	for _, s := range stages {
		line := fmt.Sprintf("  %s %s", styles.RenderBadge(string(s.Status)), s.Stage)
		if s.Status != domain.StatusSkipped {
			line += " " + cliRenderMuted(formatDuration(s.Duration))
		}
		b.WriteString(line + "\n")
		if s.Err != nil {
			b.WriteString("    " + cliRenderMuted(styles.IconArrow+" "+s.Err.Error()) + "\n")
		}
	}
}

func writeCertificates(b *strings.Builder, records []domain.CertificateRecord) {
	if len(records) == 0 {
		return
	}
	b.WriteString("\n" + cliRenderHeading("Certificates") + "\n")
	for _, rec := range records {
		state := "created"
		if rec.Existed {
			state = "existing"
		}
		if rec.Backend != "" {
			state += " via " + rec.Backend
		}
		b.WriteString("  " + cliRenderListItem(rec.Domain) + " " + cliRenderMeta(state, rec.CertPath) + "\n")
	}
}

func writeReport(b *strings.Builder, report domain.VerificationReport) {
	if len(report.Checks) == 0 {
		return
	}
	b.WriteString("\n" + cliRenderHeading("Verification") + " " + cliRenderMuted(formatDuration(report.Duration)) + "\n")
	for _, check := range report.Checks {
		parts := make([]string, 0, 2)
		if check.DNS != nil {
			parts = append(parts, describeDNS(*check.DNS))
		}
		parts = append(parts, describeHTTP(check.HTTP))
		detail := strings.Join(parts, ", ")

		if check.Passed() {
			b.WriteString("  " + cliRenderSuccess(check.Domain) + " " + cliRenderMuted(detail) + "\n")
		} else {
			b.WriteString("  " + cliRenderError(check.Domain) + " " + detail + "\n")
		}
	}
}

func describeDNS(c domain.DNSCheck) string {
	switch {
	case c.Passed:
		return "dns " + c.Answer
	case c.TimedOut:
		return "dns timed out"
	case c.Err != "":
		return "dns " + c.Err
	default:
		return "dns pending"
	}
}

func describeHTTP(c domain.HTTPCheck) string {
	scheme := "http"
	if strings.HasPrefix(c.URL, "https://") {
		scheme = "https"
	}
	switch {
	case c.Passed:
		return fmt.Sprintf("%s %d (%dms)", scheme, c.Status, c.ElapsedMs)
	case c.TimedOut:
		return scheme + " timed out"
	case c.Err != "":
		return scheme + " " + c.Err
	default:
		return scheme + " pending"
	}
}

// warningList flattens the accumulated soft failures.
func warningList(result *domain.RunResult) []error {
	if result == nil || result.Warnings == nil {
		return nil
	}
	var merr *multierror.Error
	if errors.As(result.Warnings, &merr) {
		return merr.Errors
	}
	return []error{result.Warnings}
}

func formatDuration(d time.Duration) string {
	if d < time.Second {
		return fmt.Sprintf("%dms", d.Milliseconds())
	}
	return d.Round(100 * time.Millisecond).String()
}
