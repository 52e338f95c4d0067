// Command purge-assets deletes every object in the configured asset bucket.
// Listings that reference the deleted images are left in place.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"listing-site-generator/internal/application/uploads"
	"listing-site-generator/internal/config"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

func main() {
	yes := flag.Bool("yes", false, "confirm deletion of every object in the bucket")
	timeout := flag.Duration("timeout", 10*time.Minute, "give up after this long")
	flag.Parse()

	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen})

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("config load")
	}
	if !*yes {
		fmt.Fprintf(os.Stderr, "refusing to delete every object in bucket %q without -yes\n", cfg.S3Bucket)
		os.Exit(2)
	}

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	store, err := uploads.NewS3Store(ctx, uploads.S3Config{
		Endpoint:  cfg.S3Endpoint,
		Region:    cfg.S3Region,
		AccessKey: cfg.S3AccessKey,
		SecretKey: cfg.S3SecretKey,
		Bucket:    cfg.S3Bucket,
		PublicURL: cfg.S3PublicURL,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("s3 store")
	}

	n, err := store.DeleteAll(ctx)
	if err != nil {
		log.Fatal().Err(err).Int("deleted", n).Msg("purge failed")
	}
	log.Info().Str("bucket", cfg.S3Bucket).Int("deleted", n).Msg("bucket purged")
}
