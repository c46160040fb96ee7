// Package processed remembers which comments the bot has already handled.
// Entries are only ever added; a handled comment stays handled.
package processed

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"

	furbototel "github.com/vaisest/fakefurbot/internal/otel"
)

var tracer = furbototel.Tracer("github.com/vaisest/fakefurbot/internal/processed")

// Backend names.
const (
	BackendFile   = "file"
	BackendSQLite = "sqlite"
	BackendRedis  = "redis"
)

// Default locations under the data directory.
const (
	DefaultFileName   = "comment_ids.txt"
	DefaultSQLiteName = "processed.db"
	DefaultRedisKey   = "furbot:processed_comments"
)

// ErrEmptyID is returned when marking an empty id.
var ErrEmptyID = errors.New("empty comment id")

// Set is the processed-comment set. MarkProcessed must be durable when it
// returns.
type Set interface {
	Contains(ctx context.Context, id string) (bool, error)
	MarkProcessed(ctx context.Context, id string) error
	Close() error
}

// Options selects and configures a backend.
type Options struct {
	Backend string
	DataDir string
	// Path overrides the file or database location.
	Path          string
	RedisAddr     string
	RedisPassword string
	RedisDB       int
	RedisKey      string
}

// Open opens the configured backend. An empty backend means file.
func Open(ctx context.Context, opts Options) (Set, error) {
	var (
		set Set
		err error
	)
	switch opts.Backend {
	case "", BackendFile:
		set, err = OpenFile(pathOr(opts, DefaultFileName))
	case BackendSQLite:
		set, err = OpenSQLite(pathOr(opts, DefaultSQLiteName))
	case BackendRedis:
		set, err = OpenRedis(ctx, RedisConfig{
			Addr:     opts.RedisAddr,
			Password: opts.RedisPassword,
			DB:       opts.RedisDB,
			Key:      opts.RedisKey,
		})
	default:
		return nil, fmt.Errorf("unknown processed backend %q (want file, sqlite or redis)", opts.Backend)
	}
	if err != nil {
		return nil, err
	}
	return set, nil
}

func pathOr(opts Options, name string) string {
	if opts.Path != "" {
		return opts.Path
	}
	return filepath.Join(opts.DataDir, name)
}
