package main

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	log15 "gopkg.in/inconshreveable/log15.v2"

	"buildgen.ai/internal/persistence/r2s3"
)

// buildMirror returns nil unless BUILDGEN_R2_MIRROR is true.
func buildMirror(dataDir string, logger log15.Logger) (*r2s3.Mirror, error) {
	if !envBool("BUILDGEN_R2_MIRROR", false) {
		return nil, nil
	}
	cfg := r2s3.Config{
		Endpoint:        os.Getenv("BUILDGEN_R2_ENDPOINT"),
		Bucket:          os.Getenv("BUILDGEN_R2_BUCKET"),
		Region:          os.Getenv("BUILDGEN_R2_REGION"),
		AccessKeyID:     os.Getenv("BUILDGEN_R2_ACCESS_KEY_ID"),
		SecretAccessKey: os.Getenv("BUILDGEN_R2_SECRET_ACCESS_KEY"),
	}
	client, err := r2s3.New(cfg)
	if err != nil {
		return nil, fmt.Errorf("BUILDGEN_R2_MIRROR=true: %w", err)
	}
	return r2s3.NewMirror(client, r2s3.MirrorConfig{
		DataDir: dataDir,
		Prefix:  strings.TrimSpace(os.Getenv("BUILDGEN_R2_PREFIX")),
		Workers: envInt("BUILDGEN_R2_UPLOAD_WORKERS", 2),
	}, logger), nil
}

func envBool(key string, def bool) bool {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def
	}
	return b
}

func envInt(key string, def int) int {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		return def
	}
	return n
}
