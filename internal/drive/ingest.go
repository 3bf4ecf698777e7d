package drive

import (
	"context"
	"fmt"

	"github.com/andresuchdata/autopo-replenish/internal/ingest"
	"github.com/rs/zerolog/log"
)

// SyncService downloads a folder of CSV exports and imports them into the history store
type SyncService struct {
	downloader *Downloader
	importer   *ingest.Importer
	opts       DownloadOptions
}

func NewSyncService(downloader *Downloader, importer *ingest.Importer, opts DownloadOptions) *SyncService {
	return &SyncService{downloader: downloader, importer: importer, opts: opts}
}

// Sync downloads every CSV in the configured folder and imports it. Files
// whose dataset cannot be detected are skipped.
func (s *SyncService) Sync(ctx context.Context) ([]*ingest.Result, error) {
	paths, err := s.downloader.DownloadFolderCSV(ctx, s.opts)
	if err != nil {
		return nil, fmt.Errorf("download folder %s: %w", s.opts.FolderID, err)
	}

	known := paths[:0]
	for _, p := range paths {
		if _, err := ingest.DetectKind(p); err != nil {
			log.Warn().Str("file", p).Msg("drive: skipping file of unknown dataset")
			continue
		}
		known = append(known, p)
	}

	results, err := s.importer.ImportFiles(ctx, known)
	if err != nil {
		return results, err
	}
	log.Info().
		Str("folder", s.opts.FolderID).
		Int("files", len(results)).
		Msg("drive: sync complete")
	return results, nil
}
