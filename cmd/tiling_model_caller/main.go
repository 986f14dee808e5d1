// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

// tiling_model_caller sends a prompt file to a language model and saves the raw reply, for the
// unit tests drafted by a model instead of a parameter spreadsheet.
//
// Usage:
//
//	tiling_model_caller -prompt prompt.txt -out raw_response.txt [-model gemini-2.5-flash]
//
// The API key is read from -api_key, $GEMINI_API_KEY or $GOOGLE_API_KEY. Replies are cached in
// -cache_dir for -cache_ttl, keyed by model, system message and prompt.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/gomlx/tilingut/pkg/llm"
	"github.com/gomlx/tilingut/pkg/support/fsutil"
	"github.com/pkg/errors"
	"k8s.io/klog/v2"
)

var (
	flagPrompt      = flag.String("prompt", "", "File with the prompt.")
	flagOut         = flag.String("out", "", "File where to save the raw reply.")
	flagSystem      = flag.String("system", "", "System message. Defaults to a C++ test engineer persona.")
	flagModel       = flag.String("model", llm.DefaultModel, "Model name.")
	flagAPIKey      = flag.String("api_key", "", "API key. Defaults to $GEMINI_API_KEY or $GOOGLE_API_KEY.")
	flagTemperature = flag.Float64("temperature", 0.7, "Sampling temperature.")
	flagMaxTokens   = flag.Int("max_tokens", llm.DefaultMaxOutputTokens, "Maximum number of tokens in the reply.")
	flagMaxRetries  = flag.Int("max_retries", llm.DefaultMaxRetries, "Number of attempts before giving up.")
	flagCacheDir    = flag.String("cache_dir", llm.DefaultCacheDir, "Directory of the reply cache.")
	flagCacheTTL    = flag.Duration("cache_ttl", llm.DefaultCacheTTL, "How long a cached reply is reused.")
	flagPruneAge    = flag.Duration("prune_cache", 7*24*time.Hour, "Remove cache entries older than this. 0 disables pruning.")
	flagNoCache     = flag.Bool("no_cache", false, "Disable the reply cache.")
)

func main() {
	klog.InitFlags(nil)
	flag.Parse()
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	if err := run(ctx); err != nil {
		klog.Errorf("%+v", err)
		os.Exit(1)
	}
}

func run(ctx context.Context) error {
	if *flagPrompt == "" || *flagOut == "" {
		return errors.New("both -prompt and -out are required, see tiling_model_caller -help")
	}
	promptPath, err := fsutil.ReplaceTildeInDir(*flagPrompt)
	if err != nil {
		return err
	}
	contents, err := os.ReadFile(promptPath)
	if err != nil {
		return errors.Wrapf(err, "failed to read prompt %q", promptPath)
	}
	prompt := string(contents)
	if strings.TrimSpace(prompt) == "" {
		return errors.Errorf("prompt file %q is empty", promptPath)
	}
	klog.Infof("Prompt %q: %s characters", promptPath, humanize.Comma(int64(len(prompt))))

	apiKey := *flagAPIKey
	for _, env := range []string{"GEMINI_API_KEY", "GOOGLE_API_KEY"} {
		if apiKey == "" {
			apiKey = os.Getenv(env)
		}
	}
	model, err := llm.NewGenAICaller(ctx, apiKey, *flagModel)
	if err != nil {
		return err
	}
	model.WithMaxOutputTokens(*flagMaxTokens)

	var cache llm.Cache
	if !*flagNoCache {
		cacheDir, err := fsutil.ReplaceTildeInDir(*flagCacheDir)
		if err != nil {
			return err
		}
		fileCache, err := llm.NewFileCache(cacheDir, *flagCacheTTL)
		if err != nil {
			return err
		}
		if *flagPruneAge > 0 {
			if removed, err := fileCache.Prune(*flagPruneAge); err != nil {
				klog.Warningf("Pruning the cache: %v", err)
			} else if removed > 0 {
				klog.Infof("Removed %d old cache entries", removed)
			}
		}
		cache = fileCache
	}
	caller := llm.NewCachedCaller(model, cache, model.Model())
	caller.MaxRetries = *flagMaxRetries

	reply, err := caller.Call(ctx, prompt, *flagSystem, *flagTemperature)
	if err != nil {
		return err
	}
	outPath, err := fsutil.ReplaceTildeInDir(*flagOut)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(outPath), 0o755); err != nil {
		return errors.Wrapf(err, "failed to create directory for %q", outPath)
	}
	if err := os.WriteFile(outPath, []byte(reply), 0o644); err != nil {
		return errors.Wrapf(err, "failed to write reply to %q", outPath)
	}
	fmt.Printf("Reply of %s characters saved to %s\n", humanize.Comma(int64(len(reply))), outPath)
	return nil
}
