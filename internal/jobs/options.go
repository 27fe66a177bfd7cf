// Package jobs drives generation jobs from submission through download.
package jobs

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/aiinpocket/HomePage/internal/domain"
	"github.com/aiinpocket/HomePage/internal/metrics"
	"github.com/aiinpocket/HomePage/internal/providers/notify"
	"github.com/aiinpocket/HomePage/internal/providers/sitegen"
	"github.com/aiinpocket/HomePage/pkg/zip"
)

const (
	defaultCredentialLength  = 6
	defaultGenerationTimeout = 5 * time.Minute
	defaultNotifyTimeout     = 15 * time.Second
	defaultMaxAssetBytes     = 5 << 20
	terminalWriteTimeout     = 10 * time.Second
)

// AssetStore keeps uploaded job assets.
type AssetStore interface {
	Write(ctx context.Context, key string, data []byte) (string, error)
	Read(ctx context.Context, key string) ([]byte, error)
	Delete(ctx context.Context, key string) error
}

// Enqueuer hands a job id to whatever executes pending jobs.
type Enqueuer interface {
	Enqueue(jobID string) error
}

// Packager turns a finished document and its assets into a download archive.
type Packager interface {
	Package(document string, assets map[string][]byte) ([]byte, error)
}

// PackagerFunc adapts a function to Packager.
type PackagerFunc func(document string, assets map[string][]byte) ([]byte, error)

func (f PackagerFunc) Package(document string, assets map[string][]byte) ([]byte, error) {
	return f(document, assets)
}

const archiveReadme = `# Your website

Open index.html in a browser to view the site. Images live in the images/
directory and are referenced with relative paths, so keep the folder
structure intact when you upload the files to your host.
`

// ZipPackager is the default Packager.
var ZipPackager Packager = PackagerFunc(func(document string, assets map[string][]byte) ([]byte, error) {
	return zip.Package(document, assets, zip.WithReadme(archiveReadme))
})

// Options wires the pipeline collaborators. Store and Generator are required.
type Options struct {
	Store     domain.JobStore
	Owners    domain.OwnerRepository
	Assets    AssetStore
	Generator sitegen.Generator
	Notifier  notify.Notifier
	Packager  Packager
	Metrics   *metrics.Metrics
	Logger    zerolog.Logger

	SiteURL            string
	DefaultMaxJobs     int
	MaxAssetBytes      int
	CredentialLength   int
	CredentialHashCost int
	GenerationTimeout  time.Duration
	NotifyTimeout      time.Duration

	Now func() time.Time
}

func (o Options) withDefaults() Options {
	if o.Packager == nil {
		o.Packager = ZipPackager
	}
	if o.Metrics == nil {
		o.Metrics = metrics.NewMetrics()
	}
	if o.CredentialLength <= 0 {
		o.CredentialLength = defaultCredentialLength
	}
	if o.MaxAssetBytes <= 0 {
		o.MaxAssetBytes = defaultMaxAssetBytes
	}
	if o.GenerationTimeout <= 0 {
		o.GenerationTimeout = defaultGenerationTimeout
	}
	if o.NotifyTimeout <= 0 {
		o.NotifyTimeout = defaultNotifyTimeout
	}
	if o.Now == nil {
		o.Now = time.Now
	}
	return o
}

func (o Options) announcer() *announcer {
	return &announcer{
		notifier: o.Notifier,
		siteURL:  o.SiteURL,
		timeout:  o.NotifyTimeout,
		metrics:  o.Metrics,
		logger:   o.Logger,
	}
}

func (o Options) credentialManager() *CredentialManager {
	return NewCredentialManager(o.Store, CredentialOptions{
		Length:    o.CredentialLength,
		HashCost:  o.CredentialHashCost,
		Announcer: o.announcer(),
		Metrics:   o.Metrics,
	})
}

func (o Options) driver() *Driver {
	return &Driver{
		credentials: o.credentialManager(),
		announcer:   o.announcer(),
		metrics:     o.Metrics,
		logger:      o.Logger,
		now:         o.Now,
	}
}
