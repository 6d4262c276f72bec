package acquire

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/ProtonMail/go-crypto/openpgp" //nolint:staticcheck // Using ProtonMail's maintained fork
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ZebulonRouseFrantzich/depfetch/internal/platform"
	"github.com/ZebulonRouseFrantzich/depfetch/internal/registry"
	"github.com/ZebulonRouseFrantzich/depfetch/internal/trust"
	"github.com/ZebulonRouseFrantzich/depfetch/internal/verify"
)

func TestNewRequiresCollaborators(t *testing.T) {
	_, err := New(Config{})
	assert.Error(t, err)

	reg := newRegistry(t, registry.Table{"Linux": {{URL: "https://example.com/a.zip"}}})
	_, err = New(Config{Registry: reg})
	assert.Error(t, err)
}

func TestAcquireTrustOnFirstUse(t *testing.T) {
	payload := ffmpegArchive(t, "ffmpeg-release-amd64-static.tar.xz")
	srv := newFileServer(t, map[string][]byte{"ffmpeg-release-amd64-static.tar.xz": payload})

	reg := newRegistry(t, registry.Table{
		"Linux": {{URL: srv.url("ffmpeg-release-amd64-static.tar.xz"), Description: "johnvansickle static"}},
	})

	var out bytes.Buffer
	prompter := trust.NewPrompter(strings.NewReader("yes\n"), &out)
	h := newHarness(t, reg, prompter)

	result, err := h.orch.Run(context.Background(), h.dest, "Linux/amd64", "Linux")
	require.NoError(t, err)

	assert.Equal(t, AcceptedTrustOnFirstUse, result.Accepted)
	assert.Equal(t, "Linux", result.Platform)
	assert.True(t, filepath.IsAbs(result.Destination))
	assert.Equal(t, filepath.Join(result.Destination, topLevel), result.Extracted)
	assert.DirExists(t, result.Extracted)
	assert.FileExists(t, filepath.Join(result.Extracted, "bin", "ffmpeg"))
	assert.NotEmpty(t, result.RunID)

	reloaded, err := registry.Load(reg.Path())
	require.NoError(t, err)
	sources, err := reloaded.Sources("Linux")
	require.NoError(t, err)
	assert.Equal(t, sha(payload), sources[0].SHA256)

	assert.Contains(t, out.String(), "Would you like to trust this file and store its hash? [y/n]: ")
	assert.Contains(t, h.out.String(), sha(payload))
	assert.NoFileExists(t, filepath.Join(result.Destination, lockName), "lock is released")
}

func TestAcquireIsIdempotent(t *testing.T) {
	payload := ffmpegArchive(t, "ffmpeg.zip")
	srv := newFileServer(t, map[string][]byte{"ffmpeg.zip": payload})
	reg := newRegistry(t, registry.Table{"Windows": {{URL: srv.url("ffmpeg.zip"), SHA256: sha(payload)}}})
	h := newHarness(t, reg, trust.AlwaysReject)

	first, err := h.orch.Acquire(context.Background(), h.dest, "Windows")
	require.NoError(t, err)
	require.Equal(t, 1, srv.requests())

	result, err := h.orch.Run(context.Background(), h.dest, "Windows")
	require.NoError(t, err)
	assert.Equal(t, first, result.Destination)
	assert.Equal(t, AcceptedExtracted, result.Accepted)
	assert.Equal(t, 1, srv.requests(), "second call performs no network activity")
}

func TestAcquireMismatchRejectedAdvances(t *testing.T) {
	tampered := ffmpegArchive(t, "primary.tar.gz")
	good := ffmpegArchive(t, "mirror.tar.gz")
	srv := newFileServer(t, map[string][]byte{
		"primary.tar.gz": tampered,
		"mirror.tar.gz":  good,
	})

	reg := newRegistry(t, registry.Table{
		"Linux": {
			{URL: srv.url("primary.tar.gz"), SHA256: "def456", Description: "primary"},
			{URL: srv.url("mirror.tar.gz"), SHA256: sha(good), Description: "mirror"},
		},
	})

	d := &answers{false, false}
	h := newHarness(t, reg, d)

	result, err := h.orch.Run(context.Background(), h.dest, "Linux")
	require.NoError(t, err)
	assert.Equal(t, "mirror", result.Source.Label())
	assert.Equal(t, AcceptedHash, result.Accepted)
	assert.Empty(t, *d, "both mismatch questions were asked")

	reloaded, err := registry.Load(reg.Path())
	require.NoError(t, err)
	sources, _ := reloaded.Sources("Linux")
	assert.Equal(t, "def456", sources[0].SHA256, "rejected mismatch leaves the record unchanged")

	assert.NoFileExists(t, filepath.Join(result.Destination, "primary.tar.gz"))
	assert.Contains(t, h.out.String(), "File may be tampered with OR new upstream release.")
	assert.Contains(t, h.out.String(), "Rejecting this file. Trying next source...")
}

func TestAcquireMismatchDecisions(t *testing.T) {
	tests := []struct {
		name       string
		answers    answers
		want       Acceptance
		wantRecord func(payload []byte) string
	}{
		{
			name:       "trust_without_saving",
			answers:    answers{true},
			want:       AcceptedOverride,
			wantRecord: func([]byte) string { return "def456" },
		},
		{
			name:       "update_hash",
			answers:    answers{false, true},
			want:       AcceptedUpdatedHash,
			wantRecord: sha,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			payload := ffmpegArchive(t, "ffmpeg.tar.xz")
			srv := newFileServer(t, map[string][]byte{"ffmpeg.tar.xz": payload})
			reg := newRegistry(t, registry.Table{"Linux": {{URL: srv.url("ffmpeg.tar.xz"), SHA256: "DEF456"}}})

			d := tt.answers
			h := newHarness(t, reg, &d)

			result, err := h.orch.Run(context.Background(), h.dest, "Linux")
			require.NoError(t, err)
			assert.Equal(t, tt.want, result.Accepted)
			assert.DirExists(t, result.Extracted)

			reloaded, err := registry.Load(reg.Path())
			require.NoError(t, err)
			sources, _ := reloaded.Sources("Linux")
			assert.True(t, verify.Equal(tt.wantRecord(payload), sources[0].SHA256))
		})
	}
}

func TestAcquireSkipHashCheck(t *testing.T) {
	payload := ffmpegArchive(t, "ffmpeg.tar.xz")
	srv := newFileServer(t, map[string][]byte{"ffmpeg.tar.xz": payload})
	reg := newRegistry(t, registry.Table{"Linux": {{URL: srv.url("ffmpeg.tar.xz"), SHA256: "def456"}}})

	h := newHarness(t, reg, trust.AlwaysReject, func(c *Config) { c.SkipHashCheck = true })

	result, err := h.orch.Run(context.Background(), h.dest, "Linux")
	require.NoError(t, err)
	assert.Equal(t, AcceptedUnchecked, result.Accepted)
}

func TestAcquireUnsupportedPlatform(t *testing.T) {
	srv := newFileServer(t, nil)
	reg := newRegistry(t, registry.Table{"Linux": {{URL: srv.url("ffmpeg.tar.xz")}}})
	h := newHarness(t, reg, trust.AlwaysTrust)

	_, err := h.orch.Acquire(context.Background(), h.dest, "Darwin/arm64", "Darwin")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrUnsupportedPlatform))
	assert.NoDirExists(t, h.dest, "no filesystem activity")
	assert.Zero(t, srv.requests(), "no network activity")
}

func TestAcquireUnsupportedFormat(t *testing.T) {
	srv := newFileServer(t, map[string][]byte{"ffmpeg.rar": []byte("rar")})
	reg := newRegistry(t, registry.Table{"Linux": {{URL: srv.url("ffmpeg.rar")}}})
	h := newHarness(t, reg, trust.AlwaysTrust)

	_, err := h.orch.Acquire(context.Background(), h.dest, "Linux")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrUnsupportedFormat))
	assert.False(t, errors.Is(err, ErrAllSourcesFailed))
}

func TestAcquireNetworkFailureFallsThrough(t *testing.T) {
	payload := ffmpegArchive(t, "ffmpeg.tar.gz")
	srv := newFileServer(t, map[string][]byte{"ffmpeg.tar.gz": payload})

	reg := newRegistry(t, registry.Table{
		"Linux": {
			{URL: srv.url("missing.tar.gz"), Description: "dead mirror"},
			{URL: srv.url("ffmpeg.tar.gz"), SHA256: sha(payload), Description: "live mirror"},
		},
	})
	h := newHarness(t, reg, trust.AlwaysReject)

	result, err := h.orch.Run(context.Background(), h.dest, "Linux")
	require.NoError(t, err)
	assert.Equal(t, "live mirror", result.Source.Label())
	assert.Contains(t, h.out.String(), "Download failed")
}

func TestAcquireAllSourcesFailed(t *testing.T) {
	srv := newFileServer(t, nil)
	reg := newRegistry(t, registry.Table{
		"Linux": {
			{URL: srv.url("a.tar.xz"), Description: "first"},
			{URL: srv.url("b.zip"), Description: "second"},
		},
	})
	h := newHarness(t, reg, trust.AlwaysTrust)

	_, err := h.orch.Acquire(context.Background(), h.dest, "Linux")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrAllSourcesFailed))

	var all *AllSourcesFailedError
	require.True(t, errors.As(err, &all))
	require.Len(t, all.Failures, 2)
	assert.True(t, errors.Is(all.Failures[0].Err, ErrNetwork))
	assert.Contains(t, err.Error(), "first")
	assert.Contains(t, err.Error(), "second")
	assert.Contains(t, err.Error(), srv.url("b.zip"))
}

func TestAcquireTrustDeclinedFails(t *testing.T) {
	payload := ffmpegArchive(t, "ffmpeg.tar.xz")
	srv := newFileServer(t, map[string][]byte{"ffmpeg.tar.xz": payload})
	reg := newRegistry(t, registry.Table{"Linux": {{URL: srv.url("ffmpeg.tar.xz")}}})
	h := newHarness(t, reg, trust.AlwaysReject)

	_, err := h.orch.Acquire(context.Background(), h.dest, "Linux")
	require.Error(t, err)

	var all *AllSourcesFailedError
	require.True(t, errors.As(err, &all))
	assert.True(t, errors.Is(all.Failures[0].Err, ErrRejected))

	reloaded, err := registry.Load(reg.Path())
	require.NoError(t, err)
	sources, _ := reloaded.Sources("Linux")
	assert.Empty(t, sources[0].SHA256)
}

func TestAcquireCachedHashMatch(t *testing.T) {
	payload := ffmpegArchive(t, "ffmpeg.tar.xz")
	srv := newFileServer(t, nil)
	reg := newRegistry(t, registry.Table{"Linux": {{URL: srv.url("ffmpeg.tar.xz"), SHA256: strings.ToUpper(sha(payload))}}})
	h := newHarness(t, reg, trust.AlwaysReject)

	require.NoError(t, os.MkdirAll(h.dest, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(h.dest, "ffmpeg.tar.xz"), payload, 0o644))

	result, err := h.orch.Run(context.Background(), h.dest, "Linux")
	require.NoError(t, err)
	assert.Equal(t, AcceptedCached, result.Accepted)
	assert.DirExists(t, result.Extracted)
	assert.Zero(t, srv.requests())
}

func TestAcquirePartialCachedArchiveIsRefetched(t *testing.T) {
	payload := ffmpegArchive(t, "ffmpeg.tar.xz")
	srv := newFileServer(t, map[string][]byte{"ffmpeg.tar.xz": payload})
	reg := newRegistry(t, registry.Table{"Linux": {{URL: srv.url("ffmpeg.tar.xz"), SHA256: sha(payload)}}})
	h := newHarness(t, reg, trust.AlwaysReject)

	require.NoError(t, os.MkdirAll(h.dest, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(h.dest, "ffmpeg.tar.xz"), payload[:len(payload)/2], 0o644))

	result, err := h.orch.Run(context.Background(), h.dest, "Linux")
	require.NoError(t, err)
	assert.Equal(t, AcceptedHash, result.Accepted)
	assert.Equal(t, 1, srv.requests())
}

func TestAcquireExtractedWithoutArchiveDownloads(t *testing.T) {
	payload := ffmpegArchive(t, "ffmpeg.zip")
	srv := newFileServer(t, map[string][]byte{"ffmpeg.zip": payload})
	reg := newRegistry(t, registry.Table{"Windows": {{URL: srv.url("ffmpeg.zip"), SHA256: sha(payload)}}})
	h := newHarness(t, reg, trust.AlwaysReject)

	require.NoError(t, os.MkdirAll(filepath.Join(h.dest, topLevel), 0o755))

	_, err := h.orch.Acquire(context.Background(), h.dest, "Windows")
	require.NoError(t, err)
	assert.Equal(t, 1, srv.requests(), "the extracted tree alone does not short-circuit")
}

func TestAcquireRegistryWriteFailureIsFatal(t *testing.T) {
	payload := ffmpegArchive(t, "ffmpeg.tar.gz")
	srv := newFileServer(t, map[string][]byte{
		"ffmpeg.tar.gz": payload,
		"mirror.tar.gz": payload,
	})

	script := `
sources = {}
sources[platform.system] = {
  { url = "` + srv.url("ffmpeg.tar.gz") + `" },
  { url = "` + srv.url("mirror.tar.gz") + `" },
}
`
	path := filepath.Join(t.TempDir(), "sources.lua")
	require.NoError(t, os.WriteFile(path, []byte(script), 0o644))

	reg, err := registry.Load(path, registry.WithPlatform(&platform.Info{OS: "linux", Arch: "amd64"}))
	require.NoError(t, err)
	h := newHarness(t, reg, trust.AlwaysTrust)

	_, err = h.orch.Acquire(context.Background(), h.dest, "Linux")
	require.Error(t, err)
	assert.True(t, errors.Is(err, registry.ErrDynamicRegistry))
	assert.False(t, errors.Is(err, ErrAllSourcesFailed))
	assert.Equal(t, 1, srv.requests(), "no further sources after a fatal error")
}

func TestAcquireDeciderFailureIsFatal(t *testing.T) {
	payload := ffmpegArchive(t, "ffmpeg.tar.gz")
	srv := newFileServer(t, map[string][]byte{"ffmpeg.tar.gz": payload})
	reg := newRegistry(t, registry.Table{"Linux": {{URL: srv.url("ffmpeg.tar.gz")}}})
	h := newHarness(t, reg, trust.NewPrompter(strings.NewReader(""), &bytes.Buffer{}))

	_, err := h.orch.Acquire(context.Background(), h.dest, "Linux")
	assert.True(t, errors.Is(err, trust.ErrNoAnswer))
}

func TestAcquireExtractionFailureIsFatal(t *testing.T) {
	srv := newFileServer(t, map[string][]byte{"ffmpeg.tar.gz": []byte("not a gzip stream")})
	reg := newRegistry(t, registry.Table{"Linux": {{URL: srv.url("ffmpeg.tar.gz")}}})
	h := newHarness(t, reg, trust.AlwaysTrust)

	_, err := h.orch.Acquire(context.Background(), h.dest, "Linux")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrExtraction))
}

func TestAcquireLockedDestination(t *testing.T) {
	reg := newRegistry(t, registry.Table{"Linux": {{URL: "https://example.com/ffmpeg.tar.xz"}}})
	h := newHarness(t, reg, trust.AlwaysReject)

	require.NoError(t, os.MkdirAll(h.dest, 0o755))
	lock, err := lockDestination(context.Background(), h.dest, "other-run")
	require.NoError(t, err)
	defer lock.release()

	_, err = h.orch.Acquire(context.Background(), h.dest, "Linux")
	assert.True(t, errors.Is(err, ErrLocked))
}

func TestAcquireSignature(t *testing.T) {
	signer, err := openpgp.NewEntity("Release Signer", "", "release@example.com", nil)
	require.NoError(t, err)
	other, err := openpgp.NewEntity("Someone Else", "", "else@example.com", nil)
	require.NoError(t, err)

	payload := ffmpegArchive(t, "ffmpeg.tar.xz")
	var good, bad bytes.Buffer
	require.NoError(t, openpgp.ArmoredDetachSign(&good, signer, bytes.NewReader(payload), nil))
	require.NoError(t, openpgp.ArmoredDetachSign(&bad, other, bytes.NewReader(payload), nil))

	tests := []struct {
		name    string
		sig     []byte
		wantErr bool
	}{
		{name: "valid_signature", sig: good.Bytes()},
		{name: "wrong_signer", sig: bad.Bytes(), wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := newFileServer(t, map[string][]byte{
				"ffmpeg.tar.xz":     payload,
				"ffmpeg.tar.xz.asc": tt.sig,
			})
			reg := newRegistry(t, registry.Table{"Linux": {{
				URL:       srv.url("ffmpeg.tar.xz"),
				SHA256:    sha(payload),
				Signature: srv.url("ffmpeg.tar.xz.asc"),
			}}})

			verifier := verify.NewSignatureVerifierFromKeyring(openpgp.EntityList{signer})
			h := newHarness(t, reg, trust.AlwaysReject, func(c *Config) { c.Signatures = verifier })

			result, err := h.orch.Run(context.Background(), h.dest, "Linux")
			if tt.wantErr {
				require.Error(t, err)
				var all *AllSourcesFailedError
				require.True(t, errors.As(err, &all))
				assert.True(t, errors.Is(all.Failures[0].Err, verify.ErrBadSignature))
				assert.NoFileExists(t, filepath.Join(h.dest, "ffmpeg.tar.xz"))
				return
			}

			require.NoError(t, err)
			assert.Equal(t, AcceptedHash, result.Accepted)
			assert.Contains(t, h.out.String(), "Signature verified.")
		})
	}
}

func TestAcquireCancelled(t *testing.T) {
	reg := newRegistry(t, registry.Table{"Linux": {{URL: "https://example.com/ffmpeg.tar.xz"}}})
	h := newHarness(t, reg, trust.AlwaysReject)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := h.orch.Acquire(ctx, h.dest, "Linux")
	assert.ErrorIs(t, err, context.Canceled)
}

func TestFileName(t *testing.T) {
	tests := []struct {
		url     string
		want    string
		wantErr bool
	}{
		{url: "https://johnvansickle.com/ffmpeg/releases/ffmpeg-release-amd64-static.tar.xz", want: "ffmpeg-release-amd64-static.tar.xz"},
		{url: "https://example.com/dl/ffmpeg.zip?token=abc", want: "ffmpeg.zip"},
		{url: "https://example.com/", wantErr: true},
		{url: "https://example.com", wantErr: true},
		{url: "://bad", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.url, func(t *testing.T) {
			got, err := fileName(tt.url)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestAcceptanceString(t *testing.T) {
	assert.Equal(t, "trust-on-first-use", AcceptedTrustOnFirstUse.String())
	assert.Equal(t, "already-extracted", AcceptedExtracted.String())
	assert.Equal(t, "unknown", Acceptance(99).String())
}
