package processed

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"
)

// Import marks every id of a flat id file in dst. It returns how many ids
// were new to dst.
func Import(ctx context.Context, dst Set, path string) (added int, err error) {
	ids, err := ReadIDs(path)
	if err != nil {
		return 0, fmt.Errorf("reading legacy id file: %w", err)
	}
	for _, id := range ids {
		seen, err := dst.Contains(ctx, id)
		if err != nil {
			return added, err
		}
		if seen {
			continue
		}
		if err := dst.MarkProcessed(ctx, id); err != nil {
			return added, err
		}
		added++
	}
	log.Info().Str("path", path).Int("read", len(ids)).Int("added", added).Msg("processed_ids_imported")
	return added, nil
}
