package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ppiankov/retracite/internal/fetch"
	"github.com/ppiankov/retracite/internal/model"
	"github.com/ppiankov/retracite/internal/pipeline"
	"github.com/ppiankov/retracite/internal/store"
	"github.com/ppiankov/retracite/internal/worker"
)

var (
	fetchFromFile  string
	fetchOverwrite bool
)

// fetchCmd represents the fetch command
var fetchCmd = &cobra.Command{
	Use:   "fetch [pmcid...]",
	Short: "Download NXML articles from PubMed Central",
	Long: `Fetch downloads full-text NXML for each PMCID into the document store
(data.documents_dir), skipping articles already present.

PMCIDs come from the arguments, from --from-file (one per line), or, when
neither is given, from the sampled checkpoint of a previous build.

E-utilities allows 3 requests per second without an API key and 10 with
one; set fetch.api_key and fetch.requests_per_second accordingly.

Example:
  retracite fetch PMC3412345 PMC2934567
  retracite fetch --from-file pmcids.txt --workers 3
  retracite fetch`,
	RunE: runFetch,
}

func init() {
	rootCmd.AddCommand(fetchCmd)

	defaults := model.DefaultConfig()

	fetchCmd.Flags().StringVar(&fetchFromFile, "from-file", "", "read PMCIDs from a file, one per line")
	fetchCmd.Flags().BoolVar(&fetchOverwrite, "overwrite", false, "re-download articles already in the store")
	fetchCmd.Flags().Int("workers", defaults.Fetch.Workers, "concurrent downloads")
	fetchCmd.Flags().Float64("rps", defaults.Fetch.RequestsPerSecond, "requests per second")
	fetchCmd.Flags().String("api-key", "", "NCBI API key")
	fetchCmd.Flags().String("email", "", "contact email sent to NCBI")
	fetchCmd.Flags().Duration("timeout", defaults.Fetch.Timeout, "per-request timeout")
	fetchCmd.Flags().String("http-proxy", "", "HTTP proxy URL (overrides HTTP_PROXY env var)")
	fetchCmd.Flags().String("https-proxy", "", "HTTPS proxy URL (overrides HTTPS_PROXY env var)")

	bindFlag(fetchCmd, "workers", "fetch.workers")
	bindFlag(fetchCmd, "rps", "fetch.requests_per_second")
	bindFlag(fetchCmd, "api-key", "fetch.api_key")
	bindFlag(fetchCmd, "email", "fetch.email")
	bindFlag(fetchCmd, "timeout", "fetch.timeout")
	bindFlag(fetchCmd, "http-proxy", "fetch.http_proxy")
	bindFlag(fetchCmd, "https-proxy", "fetch.https_proxy")
}

func runFetch(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if fetchOverwrite {
		cfg.Fetch.Overwrite = true
	}

	ids, source, err := fetchIDs(cfg, args)
	if err != nil {
		return err
	}
	if len(ids) == 0 {
		return fmt.Errorf("no PMCIDs to fetch from %s", source)
	}

	logger, err := newLogger(cfg)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	w := cmd.ErrOrStderr()
	fmt.Fprintf(w, "\n")
	fmt.Fprintf(w, "  Source:     %s (%d PMCIDs)\n", source, len(ids))
	fmt.Fprintf(w, "  Store:      %s\n", cfg.Data.DocumentsDir)
	fmt.Fprintf(w, "  Workers:    %d at %.1f req/s\n", cfg.Fetch.Workers, cfg.Fetch.RequestsPerSecond)
	fmt.Fprintf(w, "\n")

	client := fetch.NewClient(cfg.Fetch, logger)
	st := store.New(cfg.Data.DocumentsDir, cfg.Data.DocumentSuffix)
	downloader := fetch.NewDownloader(client, st, cfg.Fetch.Workers, cfg.Fetch.Overwrite, showProgress(cfg), logger)

	summary, err := downloader.DownloadAll(cmd.Context(), ids)
	if summary != nil {
		for _, r := range summary.Failures() {
			fmt.Fprintf(w, "✗ %s: %v\n", r.PMCID, r.Err)
		}
		fmt.Fprintf(w, "\n")
		fmt.Fprintf(w, "  Downloaded: %d\n", summary.Downloaded)
		fmt.Fprintf(w, "  Skipped:    %d\n", summary.Skipped)
		fmt.Fprintf(w, "  Failed:     %d\n", summary.Failed)
		fmt.Fprintf(w, "\n")
	}
	return err
}

// fetchIDs picks the PMCID source: arguments, then --from-file, then the
// sampled checkpoint
func fetchIDs(cfg *model.Config, args []string) ([]string, string, error) {
	if len(args) > 0 {
		return args, "arguments", nil
	}
	if fetchFromFile != "" {
		ids, err := worker.ReadIDsFromFile(fetchFromFile)
		return ids, fetchFromFile, err
	}

	checkpoints := pipeline.NewCheckpoints(cfg.Data.CheckpointDir)
	records, err := checkpoints.ReadSampled()
	if err != nil {
		return nil, "", fmt.Errorf("no PMCIDs given and no sampled checkpoint: %w", err)
	}
	ids := make([]string, len(records))
	for i, rec := range records {
		ids[i] = rec.CitingPMCID
	}
	return ids, checkpoints.SampledPath(), nil
}
