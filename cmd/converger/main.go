/*
Copyright 2021 The Crossplane Authors.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package main

import (
	"context"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/go-logr/logr"
	"github.com/go-logr/zapr"
	"github.com/hashicorp/go-retryablehttp"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/alecthomas/kingpin.v2"

	"github.com/scalecore/converger/internal/auth"
	"github.com/scalecore/converger/internal/cloudclient"
	"github.com/scalecore/converger/internal/config"
	"github.com/scalecore/converger/internal/converger"
	"github.com/scalecore/converger/internal/groupstore"
	"github.com/scalecore/converger/internal/logspec"
	"github.com/scalecore/converger/internal/registry"
)

func main() {
	var (
		app         = kingpin.New(filepath.Base(os.Args[0]), "Convergence control core for a cloud autoscaling service.").DefaultEnvars()
		debug       = app.Flag("debug", "Run with debug logging.").Short('d').Bool()
		configPath  = app.Flag("config", "Path to a YAML config file (overridable by CONVERGER_ env vars).").Short('c').String()
		workerID    = app.Flag("worker-id", "This worker's index among --worker-count peers (0-based).").Default("0").Int()
		workerCount = app.Flag("worker-count", "Total number of converger workers sharing the bucket space.").Default("1").Int()

		identityURL  = app.Flag("identity-url", "Identity service token endpoint.").Required().String()
		identityUser = app.Flag("identity-username", "Identity service username.").Required().String()
		identityKey  = app.Flag("identity-apikey", "Identity service API key.").Required().String()
	)
	kingpin.MustParse(app.Parse(os.Args[1:]))

	cfg, err := config.Load(*configPath)
	kingpin.FatalIfError(err, "Cannot load configuration")

	zl := newZapLogger(*debug, cfg.Log.MaxRecordLen)
	log := zapr.NewLogger(zl)

	rdb := redis.NewClient(&redis.Options{Addr: cfg.Registry.Addr})
	defer rdb.Close() //nolint:errcheck

	reg := registry.New(rdb, cfg.Registry.RootPath)
	part := registry.NewPartitioner(reg, cfg.Registry.Buckets, nil)
	ownedBuckets := staticBucketAssignment(cfg.Registry.Buckets, *workerID, *workerCount)

	store := groupstore.NewMemory()

	authn := auth.NewCachingAuthenticator(auth.NewIdentityTokenSource(*identityURL, *identityUser, *identityKey, nil), nil)
	httpClient := retryablehttp.NewClient()
	httpClient.Logger = nil
	httpClient.HTTPClient.Timeout = cfg.HTTP.Timeout

	clients := func(tenantID string) (converger.ServerProvider, converger.LBProvider) {
		c := cloudclient.New(tenantID, authn, httpClient, cloudclient.Config{
			Region:      cfg.HTTP.Region,
			ReauthCodes: reauthCodeSet(cfg.HTTP.ReauthCodes),
		})
		return cloudclient.NewCloudServers(c), cloudclient.NewCloudLoadBalancers(c)
	}

	conv := converger.New(reg, part, store, clients, log)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	log.Info("converger starting", "worker_id", *workerID, "worker_count", *workerCount, "buckets", cfg.Registry.Buckets)
	runLoop(ctx, conv, ownedBuckets, cfg.Registry.PollInterval, log)
}

// newZapLogger builds the zap core stack: the log-spec wrapper decorates
// an encoder-backed core so every record is message-template-rewritten
// before it reaches stderr (§10.1, §4.6). maxRecordBytes governs the
// execute-convergence split point (cfg.Log.MaxRecordLen); 0 or less
// falls back to logspec's own default.
func newZapLogger(debugMode bool, maxRecordBytes int) *zap.Logger {
	level := zapcore.InfoLevel
	if debugMode {
		level = zapcore.DebugLevel
	}
	encoderCfg := zap.NewProductionEncoderConfig()
	encoderCfg.TimeKey = "ts"
	encoderCfg.EncodeTime = zapcore.ISO8601TimeEncoder

	base := zapcore.NewCore(zapcore.NewJSONEncoder(encoderCfg), zapcore.AddSync(os.Stderr), level)
	return zap.New(logspec.NewCore(base, logSpecs(maxRecordBytes)), zap.AddCaller())
}

// logSpecs builds the spec table with the execute-convergence split
// bound to maxRecordBytes instead of logspec's compiled-in default,
// so cfg.Log.MaxRecordLen actually reaches the splitter it documents.
func logSpecs(maxRecordBytes int) map[string]logspec.Entry {
	specs := logspec.DefaultSpecs()
	if maxRecordBytes > 0 {
		specs["execute-convergence"] = logspec.Entry{Split: logspec.NewExecuteConvergenceSplit(maxRecordBytes)}
	}
	return specs
}

// runLoop ticks the converger every interval until ctx is cancelled,
// matching the teacher's SetupSignalHandler-driven shutdown but for a
// polling worker rather than a controller-runtime manager.
func runLoop(ctx context.Context, conv *converger.Converger, ownedBuckets map[int]struct{}, interval time.Duration, log logr.Logger) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		if err := conv.Tick(ctx, ownedBuckets); err != nil {
			log.Error(err, "tick failed")
		}
		select {
		case <-ctx.Done():
			log.Info("converger shutting down")
			return
		case <-ticker.C:
		}
	}
}

// staticBucketAssignment gives worker workerID every bucket whose index
// modulo workerCount equals workerID, so the bucket space is dealt out
// round-robin and as evenly as numBuckets/workerCount allows. A real
// deployment would replace this with a membership-protocol-driven
// assignment (out of scope, §6); this is the simplest thing that lets a
// fixed worker-count pool partition the space without overlap.
func staticBucketAssignment(numBuckets, workerID, workerCount int) map[int]struct{} {
	owned := make(map[int]struct{})
	for b := 0; b < numBuckets; b++ {
		if b%workerCount == workerID {
			owned[b] = struct{}{}
		}
	}
	return owned
}

func reauthCodeSet(codes []int) map[int]struct{} {
	if len(codes) == 0 {
		return nil
	}
	out := make(map[int]struct{}, len(codes))
	for _, c := range codes {
		out[c] = struct{}{}
	}
	return out
}
