package acquire

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/ZebulonRouseFrantzich/depfetch/internal/archive"
	"github.com/ZebulonRouseFrantzich/depfetch/internal/logging"
	"github.com/ZebulonRouseFrantzich/depfetch/internal/registry"
	"github.com/ZebulonRouseFrantzich/depfetch/internal/trust"
	"github.com/ZebulonRouseFrantzich/depfetch/internal/verify"
)

// Config wires an Orchestrator. Registry and Arbiter are required.
type Config struct {
	Registry   *registry.Registry
	Arbiter    *trust.Arbiter
	Downloader *Downloader               // defaults to NewDownloader()
	Signatures *verify.SignatureVerifier // nil skips signature checks
	Logger     logging.Logger
	// Output receives operator-facing progress lines. Nil discards them.
	Output io.Writer
	// SkipHashCheck accepts a mismatching download without asking.
	SkipHashCheck bool
}

// Orchestrator installs an artifact from the first usable source.
type Orchestrator struct {
	registry      *registry.Registry
	arbiter       *trust.Arbiter
	downloader    *Downloader
	signatures    *verify.SignatureVerifier
	log           logging.Logger
	out           io.Writer
	skipHashCheck bool
}

// New creates an Orchestrator from cfg.
func New(cfg Config) (*Orchestrator, error) {
	if cfg.Registry == nil {
		return nil, fmt.Errorf("registry is required")
	}
	if cfg.Arbiter == nil {
		return nil, fmt.Errorf("trust arbiter is required")
	}

	o := &Orchestrator{
		registry:      cfg.Registry,
		arbiter:       cfg.Arbiter,
		downloader:    cfg.Downloader,
		signatures:    cfg.Signatures,
		log:           logging.OrNop(cfg.Logger),
		out:           cfg.Output,
		skipHashCheck: cfg.SkipHashCheck,
	}
	if o.downloader == nil {
		o.downloader = NewDownloader(WithDownloadLogger(o.log))
	}
	if o.out == nil {
		o.out = io.Discard
	}
	return o, nil
}

// Acquire installs the artifact for the first of platformKeys found in the
// registry into destination and returns the absolute destination directory.
func (o *Orchestrator) Acquire(ctx context.Context, destination string, platformKeys ...string) (string, error) {
	result, err := o.Run(ctx, destination, platformKeys...)
	if err != nil {
		return "", err
	}
	return result.Destination, nil
}

// Run is Acquire with a detailed result.
func (o *Orchestrator) Run(ctx context.Context, destination string, platformKeys ...string) (*AcquireResult, error) {
	start := time.Now()

	// Resolve before touching the filesystem or network.
	key, sources, err := o.registry.Resolve(platformKeys...)
	if err != nil {
		return nil, err
	}

	dest, err := filepath.Abs(destination)
	if err != nil {
		return nil, fmt.Errorf("%w: resolve destination: %v", ErrIO, err)
	}
	if err := os.MkdirAll(dest, 0755); err != nil {
		return nil, fmt.Errorf("%w: create destination: %v", ErrIO, err)
	}

	runID := uuid.NewString()
	log := logging.With(o.log, "run", runID, "platform", key)

	lock, err := lockDestination(ctx, dest, runID)
	if err != nil {
		return nil, err
	}
	defer func() {
		if err := lock.release(); err != nil {
			log.Warn("failed to release destination lock", "error", err)
		}
	}()

	fmt.Fprintf(o.out, "Platform: %s\n", key)
	fmt.Fprintf(o.out, "Destination: %s\n", dest)
	log.Debug("acquisition started", "destination", dest, "sources", len(sources))

	failed := &AllSourcesFailedError{Platform: key}
	for _, src := range sources {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		fmt.Fprintf(o.out, "\nChecking source: %s\n", src.Label())

		result, err := o.trySource(ctx, log, dest, src)
		if err == nil {
			result.RunID = runID
			result.Platform = key
			result.Destination = dest
			result.Elapsed = time.Since(start)
			log.Info("artifact installed",
				"source", src.Label(),
				"accepted", result.Accepted.String(),
				"path", result.Extracted,
				"elapsed", result.Elapsed)
			return result, nil
		}

		var skipped *skipError
		if !errors.As(err, &skipped) {
			return nil, err
		}

		log.Warn("source skipped", "source", src.Label(), "url", src.URL, "reason", skipped.err)
		failed.Failures = append(failed.Failures, SourceFailure{
			Source: src.Label(),
			URL:    src.URL,
			Err:    skipped.err,
		})
	}

	log.Error("all sources failed", "tried", len(failed.Failures))
	return nil, failed
}

// trySource runs one source through the state machine. A *skipError means
// the next source should be tried; any other error is fatal.
func (o *Orchestrator) trySource(ctx context.Context, log logging.Logger, dest string, src *registry.Source) (*AcquireResult, error) {
	name, err := fileName(src.URL)
	if err != nil {
		return nil, skip(err)
	}
	archivePath := filepath.Join(dest, name)
	if _, err := archive.FormatOf(archivePath); err != nil {
		return nil, err
	}

	result := &AcquireResult{Source: src, Archive: archivePath}

	state := inspectCache(log, archivePath, dest)
	if state.ExtractedPresent {
		fmt.Fprintf(o.out, "→ Already extracted directory exists: %s\n", state.ExtractedDir)
		result.Extracted = state.ExtractedDir
		result.Accepted = AcceptedExtracted
		return result, nil
	}

	if state.ArchivePresent && src.HasHash() && verify.Matches(archivePath, src.SHA256) {
		fmt.Fprintln(o.out, "→ Local archive matches hash. Skipping download.")
		return o.install(result, AcceptedCached)
	}

	fmt.Fprintf(o.out, "→ Downloading: %s\n", src.URL)
	if err := o.downloader.DownloadToFile(ctx, src.URL, archivePath); err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		fmt.Fprintf(o.out, "   Download failed: %v\n", err)
		return nil, skip(err)
	}
	fmt.Fprintln(o.out, "   Download complete.")

	actual, err := verify.Digest(archivePath)
	if err != nil {
		return nil, err
	}

	accepted, save, err := o.arbitrate(ctx, src, archivePath, actual)
	if err != nil {
		var skipped *skipError
		if errors.As(err, &skipped) {
			discard(log, archivePath)
		}
		return nil, err
	}

	if err := o.checkSignature(ctx, src, archivePath); err != nil {
		var skipped *skipError
		if errors.As(err, &skipped) {
			discard(log, archivePath)
		}
		return nil, err
	}

	if save {
		if err := o.registry.UpdateHash(src, actual); err != nil {
			return nil, fmt.Errorf("record trusted hash: %w", err)
		}
		fmt.Fprintln(o.out, "→ Hash saved. Trusting this source.")
	}

	return o.install(result, accepted)
}

// arbitrate decides whether a fresh download is accepted and whether its hash
// should be recorded.
func (o *Orchestrator) arbitrate(ctx context.Context, src *registry.Source, archivePath, actual string) (Acceptance, bool, error) {
	finding := trust.Finding{
		Source:   src.Label(),
		URL:      src.URL,
		Path:     archivePath,
		Expected: src.SHA256,
		Actual:   actual,
	}

	if !src.HasHash() {
		decision, err := o.arbiter.UnknownHash(ctx, finding)
		if err != nil {
			return 0, false, err
		}
		if decision == trust.TrustAndSave {
			return AcceptedTrustOnFirstUse, true, nil
		}
		fmt.Fprintln(o.out, "→ Not trusting this file. Trying next source...")
		return 0, false, skip(fmt.Errorf("%w: no expected hash and trust declined", ErrRejected))
	}

	if verify.Equal(actual, src.SHA256) {
		return AcceptedHash, false, nil
	}

	if o.skipHashCheck {
		fmt.Fprintln(o.out, "→ Hash check disabled. Accepting mismatching file.")
		return AcceptedUnchecked, false, nil
	}

	decision, err := o.arbiter.Mismatch(ctx, finding)
	if err != nil {
		return 0, false, err
	}
	switch decision {
	case trust.TrustWithoutSaving:
		fmt.Fprintln(o.out, "→ Continuing with a potentially unsafe file.")
		return AcceptedOverride, false, nil
	case trust.TrustAndSave:
		return AcceptedUpdatedHash, true, nil
	default:
		fmt.Fprintln(o.out, "→ Rejecting this file. Trying next source...")
		return 0, false, skip(fmt.Errorf("%w: hash mismatch (expected %s, got %s)", ErrRejected, src.SHA256, actual))
	}
}

// checkSignature verifies the source's detached signature when both a
// signature URL and a keyring are available.
func (o *Orchestrator) checkSignature(ctx context.Context, src *registry.Source, archivePath string) error {
	if src.Signature == "" {
		return nil
	}
	if o.signatures == nil {
		o.log.Warn("signature not checked: no keyring configured", "url", src.Signature)
		return nil
	}

	name, err := fileName(src.Signature)
	if err != nil {
		return skip(err)
	}
	sigPath := filepath.Join(filepath.Dir(archivePath), name)

	fmt.Fprintf(o.out, "→ Checking signature: %s\n", src.Signature)
	if err := o.downloader.DownloadToFile(ctx, src.Signature, sigPath); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return skip(fmt.Errorf("download signature: %w", err))
	}

	if err := o.signatures.Verify(archivePath, sigPath); err != nil {
		if errors.Is(err, verify.ErrBadSignature) {
			fmt.Fprintln(o.out, "❌ Signature does not verify. Trying next source...")
			return skip(err)
		}
		return err
	}

	fmt.Fprintln(o.out, "   Signature verified.")
	return nil
}

// install extracts the archive next to itself and records the top-level entry.
func (o *Orchestrator) install(result *AcquireResult, how Acceptance) (*AcquireResult, error) {
	dest := filepath.Dir(result.Archive)

	fmt.Fprintf(o.out, "→ Extracting %s ...\n", filepath.Base(result.Archive))
	if err := archive.Extract(result.Archive, dest); err != nil {
		return nil, err
	}

	top, err := archive.TopLevelEntry(result.Archive)
	if err != nil {
		return nil, err
	}

	fmt.Fprintln(o.out, "   Extraction complete.")
	result.Extracted = filepath.Join(dest, top)
	result.Accepted = how
	return result, nil
}

// inspectCache reports what a previous run left in dest for archivePath.
// An unreadable cached archive counts as present but not extracted.
func inspectCache(log logging.Logger, archivePath, dest string) cacheState {
	var state cacheState

	info, err := os.Stat(archivePath)
	if err != nil || info.IsDir() {
		return state
	}
	state.ArchivePresent = true

	top, err := archive.TopLevelEntry(archivePath)
	if err != nil {
		log.Warn("cached archive is unreadable", "path", archivePath, "error", err)
		return state
	}

	state.ExtractedDir = filepath.Join(dest, top)
	if fi, err := os.Stat(state.ExtractedDir); err == nil && fi.IsDir() {
		state.ExtractedPresent = true
	}
	return state
}

// fileName returns the last path segment of rawURL.
func fileName(rawURL string) (string, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", fmt.Errorf("invalid url %q: %w", rawURL, err)
	}
	name := path.Base(u.Path)
	if name == "." || name == "/" || name == "" {
		return "", fmt.Errorf("url %q has no file name", rawURL)
	}
	return name, nil
}

// discard removes a rejected download so it is not mistaken for a cache.
func discard(log logging.Logger, archivePath string) {
	if err := os.Remove(archivePath); err != nil && !os.IsNotExist(err) {
		log.Warn("failed to remove rejected download", "path", archivePath, "error", err)
	}
}
