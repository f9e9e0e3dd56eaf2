package cmd

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/coopcore/approvals/pkg/hierarchy"
	"github.com/redis/go-redis/v9"
)

// NewHierarchyLookup builds the admin directory for a command. The file
// backing is the development stand-in for the membership module; a Redis
// URL layers the read-through cache over it.
func NewHierarchyLookup(ctx context.Context, logger *slog.Logger, directoryPath, redisURL string) hierarchy.Lookup {
	var lookup hierarchy.Lookup

	if directoryPath == "" {
		logger.WarnContext(ctx, "No hierarchy directory configured, all stages will resolve unassigned")

		lookup = hierarchy.NewStatic()
	} else {
		static, err := hierarchy.NewStaticFromFile(directoryPath)
		if err != nil {
			panic(fmt.Errorf("failed to load hierarchy directory: %w", err))
		}

		lookup = static
	}

	if redisURL == "" {
		return lookup
	}

	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		panic(fmt.Errorf("failed to parse redis URL: %w", err))
	}

	return hierarchy.NewCached(lookup, redis.NewClient(opts), logger)
}
