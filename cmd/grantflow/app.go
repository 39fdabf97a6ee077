package main

import (
	"fmt"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/haricheung/grantflow/internal/artifact"
	"github.com/haricheung/grantflow/internal/grantdoc"
	"github.com/haricheung/grantflow/internal/history"
	"github.com/haricheung/grantflow/internal/llm"
	"github.com/haricheung/grantflow/internal/pipeline"
	"github.com/haricheung/grantflow/internal/roles/analyst"
	"github.com/haricheung/grantflow/internal/roles/assessor"
	"github.com/haricheung/grantflow/internal/roles/packager"
	"github.com/haricheung/grantflow/internal/roles/reviewer"
	"github.com/haricheung/grantflow/internal/roles/writer"
	"github.com/haricheung/grantflow/internal/stage"
	"github.com/haricheung/grantflow/internal/types"
)

// openHistory opens the configured run-history backend.
func openHistory() (history.Store, error) {
	return history.Open(cfg.History.Backend, cfg.History.Path, logger)
}

// models builds one client per stage. Each stage may use its own endpoint and
// credentials, so a missing key fails here before any work starts.
func models(only ...types.Stage) (map[types.Stage]llm.Model, error) {
	want := types.Stages
	if len(only) > 0 {
		want = only
	}
	out := make(map[types.Stage]llm.Model, len(want))
	for _, s := range want {
		m, err := llm.New(cfg.Model(s), logger)
		if err != nil {
			return nil, fmt.Errorf("%s model: %w", s, err)
		}
		out[s] = m
	}
	return out, nil
}

// buildStages wires every stage to its model, the run history and its
// memory digest. Analysis gets no memory: it has no topic before it runs.
func buildStages(ms map[types.Stage]llm.Model, hist history.Store) pipeline.Stages {
	rec := stage.WithRecorder(hist)
	mem := stage.WithMemory(history.NewMemory(hist))
	return pipeline.Stages{
		Analysis:    analyst.New(ms[types.StageAnalysis], cfg.Stage(types.StageAnalysis), logger, rec),
		Feasibility: assessor.New(ms[types.StageFeasibility], cfg.Stage(types.StageFeasibility), logger, rec, mem),
		Writing:     writer.New(ms[types.StageWriting], cfg.Stage(types.StageWriting), logger, rec, mem),
		Review:      reviewer.New(ms[types.StageReview], cfg.Stage(types.StageReview), logger, rec, mem),
		Package:     packager.New(ms[types.StagePackage], cfg.Stage(types.StagePackage), logger, rec, mem),
	}
}

// options maps the configuration onto run options.
func options() (pipeline.Options, error) {
	bc, err := cfg.ResolveBusinessContext()
	if err != nil {
		return pipeline.Options{}, err
	}
	return pipeline.Options{
		Language:           cfg.Lang(),
		MaxIterations:      cfg.MaxIterations,
		MinScorePercentage: cfg.MinScorePercentage,
		BusinessContext:    bc,
	}, nil
}

// openStore opens the artifact namespace. An empty namespace is derived from
// the grant source.
func openStore(namespace, source string) (*artifact.Store, error) {
	if namespace == "" {
		namespace = namespaceFor(source)
	}
	return artifact.NewStore(cfg.ArtifactsRoot, namespace)
}

// namespaceFor derives a namespace from the last segment of a file name or
// URL, without its extension.
func namespaceFor(source string) string {
	base := artifact.SafeName(source)
	if ext := filepath.Ext(base); ext != "" && ext != base {
		base = strings.TrimSuffix(base, ext)
	}
	return artifact.SafeName(base)
}

func newLoader() *grantdoc.Loader {
	return grantdoc.NewLoader(&http.Client{Timeout: cfg.Timeout}, logger)
}
