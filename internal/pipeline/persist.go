package pipeline

import (
	"github.com/haricheung/grantflow/internal/artifact"
	"github.com/haricheung/grantflow/internal/types"
)

// Artifact writes are best effort: a failure is logged and the run goes on.

func (r *run) meta(s types.Stage, iteration int) artifact.Metadata {
	return artifact.Metadata{RunID: r.id, Stage: s, Iteration: iteration, CreatedAt: r.now()}
}

func (r *run) persistJSON(ref artifact.Ref, v any, s types.Stage, iteration int) {
	if r.store == nil {
		return
	}
	if err := r.store.WriteJSON(ref, v, r.meta(s, iteration)); err != nil {
		r.writeFailed(ref.File, err)
	}
}

func (r *run) persistDocument(ref artifact.Ref, body string, s types.Stage, iteration int) {
	if r.store == nil {
		return
	}
	if err := r.store.WriteDocument(ref, body, r.meta(s, iteration)); err != nil {
		r.writeFailed(ref.File, err)
	}
}

func (r *run) persistText(ref artifact.Ref, body string) {
	if r.store == nil {
		return
	}
	if err := r.store.WriteText(ref, body); err != nil {
		r.writeFailed(ref.File, err)
	}
}

// persistPackageFiles writes every generated document that has content.
// Repeated file names are suffixed so no document overwrites another.
func (r *run) persistPackageFiles(p types.ApplicationPackage) {
	if r.store == nil {
		return
	}
	written := 0
	for i, name := range artifact.PackageFilenames(p.GeneratedDocuments) {
		if name == "" {
			continue
		}
		if _, err := r.store.WritePackageFile(name, p.GeneratedDocuments[i].Content); err != nil {
			r.writeFailed(name, err)
			continue
		}
		written++
	}
	r.logger.Info("[PIPELINE] package documents written", "run_id", r.id, "count", written, "dir", artifact.PackageDir)
}

func (r *run) writeFailed(file string, err error) {
	r.logger.Warn("[PIPELINE] artifact write failed; continuing", "run_id", r.id, "file", file, "error", err)
}
