package main

import (
	"fmt"
	"net/http"
	"os"

	"github.com/spf13/cobra"

	"github.com/ZebulonRouseFrantzich/depfetch/internal/acquire"
	"github.com/ZebulonRouseFrantzich/depfetch/internal/config"
	"github.com/ZebulonRouseFrantzich/depfetch/internal/registry"
	"github.com/ZebulonRouseFrantzich/depfetch/internal/trust"
	"github.com/ZebulonRouseFrantzich/depfetch/internal/verify"
)

// isTerminal is replaced in tests.
var isTerminal = trust.Interactive

func newFetchCmd(a *app) *cobra.Command {
	var (
		policy        string
		keyring       string
		retries       int
		noProgress    bool
		skipHashCheck bool
	)

	cmd := &cobra.Command{
		Use:   "fetch [dest]",
		Short: "Download, verify and extract the artifact for this platform",
		Long: `Fetch tries each registry source for the platform in order until one is
installed under dest (default ` + config.DefaultDestination + `).

Downloads whose hash is unknown or does not match the registry are
accepted or rejected according to --policy:

  prompt  ask on the terminal
  trust   accept every download; record the hash of sources that have
          none, keep the recorded hash when a download does not match it
  reject  refuse anything that does not match
  auto    prompt when stdin is a terminal, otherwise reject`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(c *cobra.Command, args []string) error {
			cfg, err := a.settings()
			if err != nil {
				return err
			}

			if len(args) == 1 {
				cfg.Destination = args[0]
			}
			flags := c.Flags()
			if flags.Changed("policy") {
				p, err := config.ParsePolicy(policy)
				if err != nil {
					return err
				}
				cfg.Policy = p
			}
			if flags.Changed("keyring") {
				cfg.KeyringPath = keyring
			}
			if flags.Changed("retries") {
				cfg.Retries = retries
			}
			if noProgress {
				cfg.Progress = false
			}
			if skipHashCheck {
				cfg.SkipHashCheck = true
			}
			if err := cfg.Validate(); err != nil {
				return err
			}

			ctx := c.Context()
			info, err := a.resolvePlatform(ctx, cfg.Platform)
			if err != nil {
				return err
			}

			reg, err := a.loadRegistry(cfg.RegistryPath, info)
			if err != nil {
				return err
			}

			orch, err := a.orchestrator(cfg, reg)
			if err != nil {
				return err
			}

			result, err := orch.Run(ctx, cfg.Destination, info.Keys()...)
			if err != nil {
				return err
			}

			fmt.Fprintf(a.stdout, "\nInstalled at: %s\n", result.Destination)
			a.log.Info("fetch complete",
				"source", result.Source.Label(),
				"accepted", result.Accepted.String(),
				"extracted", result.Extracted)
			return nil
		},
	}

	cmd.Flags().StringVar(&policy, "policy", string(config.PolicyAuto), "Trust policy: prompt, trust, reject or auto")
	cmd.Flags().StringVar(&keyring, "keyring", "", "OpenPGP keyring for sources with a signature (or set "+config.EnvKeyring+")")
	cmd.Flags().IntVar(&retries, "retries", config.DefaultRetries, "Download retries per source")
	cmd.Flags().BoolVar(&noProgress, "no-progress", false, "Do not render download progress")
	cmd.Flags().BoolVar(&skipHashCheck, "skip-hash-check", false, "Accept downloads whose hash does not match without asking")

	return cmd
}

// orchestrator wires the acquisition pipeline from cfg.
func (a *app) orchestrator(cfg *config.Config, reg *registry.Registry) (*acquire.Orchestrator, error) {
	opts := []acquire.DownloaderOption{
		acquire.WithRetries(cfg.Retries),
		acquire.WithHTTPClient(&http.Client{Timeout: cfg.Timeout}),
		acquire.WithDownloadLogger(a.log),
	}
	if cfg.Progress {
		opts = append(opts, acquire.WithProgress(a.stderr))
	}

	var signatures *verify.SignatureVerifier
	if cfg.KeyringPath != "" {
		v, err := verify.NewSignatureVerifier(cfg.KeyringPath)
		if err != nil {
			return nil, fmt.Errorf("load keyring: %w", err)
		}
		signatures = v
	}

	return acquire.New(acquire.Config{
		Registry:      reg,
		Arbiter:       trust.NewArbiter(a.decider(cfg.Policy), a.stdout),
		Downloader:    acquire.NewDownloader(opts...),
		Signatures:    signatures,
		Logger:        a.log,
		Output:        a.stdout,
		SkipHashCheck: cfg.SkipHashCheck,
	})
}

// decider maps a policy onto a trust.Decider.
func (a *app) decider(p config.Policy) trust.Decider {
	switch p {
	case config.PolicyTrust:
		return trust.AlwaysTrust
	case config.PolicyReject:
		return trust.AlwaysReject
	case config.PolicyPrompt:
		return trust.NewPrompter(a.stdin, a.stdout)
	default:
		if f, ok := a.stdin.(*os.File); ok && isTerminal(f) {
			return trust.NewPrompter(a.stdin, a.stdout)
		}
		a.log.Warn("stdin is not a terminal; unverified downloads will be rejected")
		return trust.AlwaysReject
	}
}
