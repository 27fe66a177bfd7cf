package jobs

import (
	"bytes"
	"context"
	"html/template"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/aiinpocket/HomePage/internal/domain"
	"github.com/aiinpocket/HomePage/internal/metrics"
	"github.com/aiinpocket/HomePage/internal/providers/notify"
)

const messageLayout = `{{define "layout"}}<!DOCTYPE html>
<html>
<head>
    <style>
        body { font-family: Arial, sans-serif; line-height: 1.6; color: #333; }
        .container { max-width: 600px; margin: 0 auto; padding: 20px; }
        .header { background: linear-gradient(135deg, #667eea 0%, #764ba2 100%); color: white; padding: 30px; text-align: center; border-radius: 10px 10px 0 0; }
        .content { background: #f9f9f9; padding: 30px; border-radius: 0 0 10px 10px; }
        .info-box { background: white; padding: 20px; border-left: 4px solid #667eea; margin: 20px 0; }
    </style>
</head>
<body>
    <div class="container">
        {{template "content" .}}
        <p style="color: #666; font-size: 14px; margin-top: 30px;">Need help? Visit <a href="{{.SiteURL}}">{{.SiteURL}}</a></p>
    </div>
</body>
</html>{{end}}`

var (
	completedMessage = mustMessage("completed", `{{define "content"}}
        <div class="header"><h1>Your website is ready</h1></div>
        <div class="content">
            <h2>Hello {{.ProjectName}},</h2>
            <p>Your website has been generated.</p>
            <div class="info-box">
                <h3>Preview</h3>
                <p>Site ID: <code>{{.ResultID}}</code></p>
                <p><a href="{{.PreviewURL}}">{{.PreviewURL}}</a></p>
            </div>
            <div class="info-box">
                <h3>Download</h3>
                <p>Send the password below as <code>{"password": "..."}</code> in a POST to <code>{{.DownloadURL}}</code>.</p>
                <p>Download password: <code class="credential">{{.Credential}}</code></p>
                <p><small>The password works once. Request a new one from your dashboard if you need to download again.</small></p>
            </div>
        </div>{{end}}`)

	failedMessage = mustMessage("failed", `{{define "content"}}
        <div class="header"><h1>Website generation failed</h1></div>
        <div class="content">
            <h2>Hello {{.ProjectName}},</h2>
            <p>We could not generate the website for job <code>{{.JobID}}</code>.</p>
            <p>You can start the generation again from your dashboard.</p>
        </div>{{end}}`)

	credentialMessage = mustMessage("credential", `{{define "content"}}
        <div class="header"><h1>New download password</h1></div>
        <div class="content">
            <h2>Hello {{.ProjectName}},</h2>
            <p>A new download password was issued for site <code>{{.ResultID}}</code>. Earlier passwords no longer work.</p>
            <div class="info-box">
                <p>Download endpoint (POST): <code>{{.DownloadURL}}</code></p>
                <p>Download password: <code class="credential">{{.Credential}}</code></p>
            </div>
        </div>{{end}}`)
)

func mustMessage(name, content string) *template.Template {
	t := template.Must(template.New(name).Parse(messageLayout))
	return template.Must(t.Parse(content))
}

type messageData struct {
	ProjectName string
	JobID       string
	ResultID    string
	PreviewURL  string
	DownloadURL string
	Credential  string
	SiteURL     string
}

// announcer sends best-effort notifications about job outcomes to the
// contact address in the job input.
type announcer struct {
	notifier notify.Notifier
	siteURL  string
	timeout  time.Duration
	metrics  *metrics.Metrics
	logger   zerolog.Logger
}

func (a *announcer) completed(ctx context.Context, job *domain.Job, credential string) {
	a.send(ctx, job, "Your AI-Generated Website is Ready - AiInPocket", completedMessage, credential)
}

func (a *announcer) failed(ctx context.Context, job *domain.Job) {
	a.send(ctx, job, "Website Generation Failed - AiInPocket", failedMessage, "")
}

func (a *announcer) credentialRotated(ctx context.Context, job *domain.Job, credential string) {
	a.send(ctx, job, "Your New Download Password - AiInPocket", credentialMessage, credential)
}

func (a *announcer) send(ctx context.Context, job *domain.Job, subject string, tmpl *template.Template, credential string) {
	if a == nil || a.notifier == nil {
		return
	}
	log := a.logger.With().Str("job_id", job.ID).Str("status", string(job.Status)).Logger()
	recipient := contactEmail(job)
	if recipient == "" {
		log.Debug().Msg("jobs: no contact email, notification skipped")
		return
	}

	var body bytes.Buffer
	if err := tmpl.ExecuteTemplate(&body, "layout", a.data(job, credential)); err != nil {
		a.metrics.IncrementNotificationFailures()
		log.Error().Err(err).Msg("jobs: render notification failed")
		return
	}

	nctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), a.timeout)
	defer cancel()
	if err := a.notifier.Notify(nctx, recipient, subject, body.String()); err != nil {
		a.metrics.IncrementNotificationFailures()
		log.Warn().Err(err).Msg("jobs: notification failed")
		return
	}
	log.Info().Msg("jobs: notification sent")
}

func (a *announcer) data(job *domain.Job, credential string) messageData {
	site := strings.TrimRight(a.siteURL, "/")
	d := messageData{
		ProjectName: job.ProjectName,
		JobID:       job.ID,
		ResultID:    job.ResultID,
		DownloadURL: site + "/v1/jobs/" + job.ID + "/download",
		Credential:  credential,
		SiteURL:     site,
	}
	if job.ResultID != "" {
		d.PreviewURL = site + "/v1/preview/" + job.ResultID
	}
	return d
}

func contactEmail(job *domain.Job) string {
	spec, err := domain.DecodeInputSpec(job.InputJSON)
	if err != nil {
		return ""
	}
	return strings.TrimSpace(spec.Field("contact_email"))
}
