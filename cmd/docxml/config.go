// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/pdiddy/docxml/internal/classify"
	"github.com/pdiddy/docxml/internal/convert"
	"github.com/pdiddy/docxml/internal/extract"
	"github.com/pdiddy/docxml/internal/secrets"
	"github.com/pdiddy/docxml/pkg/types"
)

func setDefaults() {
	viper.SetDefault("secrets_dir", ".secrets/")

	viper.SetDefault("server.addr", ":5000")
	viper.SetDefault("server.shutdown_timeout", 30*time.Second)

	viper.SetDefault("store.path", "data/docxml.db")

	viper.SetDefault("submission.staging_dir", "data/uploads")
	viper.SetDefault("submission.max_bytes", 5<<20)
	viper.SetDefault("submission.allowed_extensions", []string{".pdf"})

	viper.SetDefault("queue.workers", 4)
	viper.SetDefault("queue.size", 256)
	viper.SetDefault("queue.run_timeout", time.Duration(0))

	viper.SetDefault("extraction.backend", string(types.ExtractorNative))
	viper.SetDefault("extraction.tika_url", "http://localhost:9998")
	viper.SetDefault("extraction.container_image", extract.DefaultContainerImage)
	viper.SetDefault("extraction.timeout", 2*time.Minute)
	viper.SetDefault("extraction.max_retries", 5)

	viper.SetDefault("classifier.mode", string(types.ModeStructured))
	viper.SetDefault("classifier.page_delimiter", types.DefaultPageDelimiter)
}

// loadConfig assembles the typed configuration from viper. Flags bound to
// keys take precedence over environment and config file values.
func loadConfig() types.Config {
	return types.Config{
		Server: types.ServerConfig{
			Addr:            viper.GetString("server.addr"),
			ShutdownTimeout: viper.GetDuration("server.shutdown_timeout"),
		},
		Store: types.StoreConfig{
			Path: viper.GetString("store.path"),
		},
		Submission: types.SubmissionConfig{
			StagingDir:        viper.GetString("submission.staging_dir"),
			MaxBytes:          viper.GetInt64("submission.max_bytes"),
			AllowedExtensions: viper.GetStringSlice("submission.allowed_extensions"),
		},
		Queue: types.QueueConfig{
			Workers:    viper.GetInt("queue.workers"),
			Size:       viper.GetInt("queue.size"),
			RunTimeout: viper.GetDuration("queue.run_timeout"),
		},
		Extraction: types.ExtractionConfig{
			HTTPConfig: types.HTTPConfig{
				Timeout:   viper.GetDuration("extraction.timeout"),
				UserAgent: "docxml/" + version,
			},
			Backend:        types.ExtractorBackend(viper.GetString("extraction.backend")),
			TikaURL:        viper.GetString("extraction.tika_url"),
			TikaAPIKey:     loadedSecrets.Get(secrets.TikaAPIKey, viper.GetString("extraction.tika_api_key")),
			ContainerImage: viper.GetString("extraction.container_image"),
			MaxRetries:     viper.GetInt("extraction.max_retries"),
		},
		Classifier: types.ClassifierConfig{
			Mode:          types.ClassifierMode(viper.GetString("classifier.mode")),
			PageDelimiter: viper.GetString("classifier.page_delimiter"),
		},
	}
}

// newPipeline builds the extractor router and classifier for cfg.
func newPipeline(cfg types.Config) (*convert.Pipeline, error) {
	router, err := extract.New(cfg.Extraction, cfg.Classifier.PageDelimiter)
	if err != nil {
		return nil, err
	}
	c, err := classify.New(cfg.Classifier)
	if err != nil {
		return nil, err
	}
	return convert.NewPipeline(router, c), nil
}

// bindFlags binds flag names on cmd to viper keys. Several commands share
// keys, so binding happens when a command runs rather than in init.
func bindFlags(cmd *cobra.Command, keys map[string]string) error {
	for flag, key := range keys {
		if err := viper.BindPFlag(key, cmd.Flags().Lookup(flag)); err != nil {
			return fmt.Errorf("binding --%s: %w", flag, err)
		}
	}
	return nil
}
