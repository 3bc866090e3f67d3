// Package orchestrator composes the Key Provider, Crypto Envelope,
// Compressor, Schema Engine, Integrity, Storage, and Manifest components
// into the backup and restore state machines described by §4.8 and §4.9.
package orchestrator

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"io"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/allisson/backydb/internal/compressor"
	"github.com/allisson/backydb/internal/envelope"
	apperrors "github.com/allisson/backydb/internal/errors"
	"github.com/allisson/backydb/internal/integrity"
	"github.com/allisson/backydb/internal/manifest"
	"github.com/allisson/backydb/internal/schemaengine"
	"github.com/allisson/backydb/internal/storage"
)

// backupOutput is one file that will be (or was) written to Storage: its
// final, on-disk name, the final bytes actually stored, and the raw
// (pre-transform) hash/size of the logical artifact(s) it carries, which
// is what the Manifest's per-artifact entry records (§3: "sha256(decrypt(
// decompress(store.get(name(A))))) == manifest.artifacts[A].sha256").
type backupOutput struct {
	name    string
	data    []byte
	rawSHA  string
	rawSize int64
}

const (
	extSQL   = ".sql"
	extBacky = ".backy"
)

// Backup drives one BackupJob end to end: Validated → SchemaExtracting →
// (Compressing?) → (Encrypting?) → Storing → Manifesting → Done. Any
// failure aborts with State set to StateFailed and partial Storage writes
// removed, per §7's cleanup guarantee.
func Backup(ctx context.Context, job BackupJob, deps BackupDeps) (*manifest.Manifest, State, error) {
	if err := job.Validate(); err != nil {
		return nil, StateFailed, err
	}

	engineType := deps.Adapter.EngineType()
	engineVersion, err := deps.Adapter.EngineVersion(ctx)
	if err != nil {
		return nil, StateFailed, err
	}

	extractStart := time.Now()
	segments, err := extractSegments(ctx, deps.Adapter, job.Features)
	recordStage(ctx, deps.Metrics, "backup", "extract", extractStart, err)
	if err != nil {
		return nil, StateFailed, err
	}

	outputs, transforms, err := buildOutputs(ctx, job, deps, segments)
	if err != nil {
		return nil, StateFailed, err
	}

	storeStart := time.Now()
	stored, err := storeOutputs(ctx, deps.Store, job.StoragePrefix, outputs, deps.fanOut())
	recordStage(ctx, deps.Metrics, "backup", "store", storeStart, err)
	if err != nil {
		cleanupPartial(context.Background(), deps.Store, job.StoragePrefix, stored)
		return nil, StateFailed, err
	}

	m := manifest.New(
		deps.ToolVersion,
		manifest.Engine{Type: engineType, Version: engineVersion},
		manifest.Features{
			Tables:     job.Features.Tables,
			Data:       job.Features.Data,
			Views:      job.Features.Views,
			Functions:  job.Features.Functions,
			Procedures: job.Features.Procedures,
			Triggers:   job.Features.Triggers,
			Events:     job.Features.Events,
		},
		job.MultipleFiles,
		time.Now(),
	)
	m.Transforms = transforms
	for _, o := range outputs {
		m.Artifacts = append(m.Artifacts, manifest.Artifact{
			Name:   o.name,
			SHA256: o.rawSHA,
			Size:   o.rawSize,
		})
	}

	if job.IntegrityCheck {
		tag, err := computeBackupIntegrity(job.IntegrityType, deps.IntegritySecret, m, outputs)
		if err != nil {
			cleanupPartial(context.Background(), deps.Store, job.StoragePrefix, stored)
			return nil, StateFailed, err
		}
		m.Integrity = manifest.Integrity{Type: string(tag.Type), Value: tag.Value, PerKey: tag.PerKey}
	}

	manifestStart := time.Now()
	manifestBytes, err := m.Canonical()
	if err != nil {
		recordStage(ctx, deps.Metrics, "backup", "manifest", manifestStart, err)
		cleanupPartial(context.Background(), deps.Store, job.StoragePrefix, stored)
		return nil, StateFailed, err
	}

	err = storage.Retry(ctx, func() error {
		_, putErr := deps.Store.Put(ctx, prefixed(job.StoragePrefix, manifestName), bytes.NewReader(manifestBytes))
		return putErr
	})
	recordStage(ctx, deps.Metrics, "backup", "manifest", manifestStart, err)
	if err != nil {
		cleanupPartial(context.Background(), deps.Store, job.StoragePrefix, stored)
		return nil, StateFailed, err
	}

	return m, StateDone, nil
}

// extractSegments drains the Schema Engine's lazy artifact sequence into
// raw, fully-buffered category segments in CreateOrder (§4.4). The Schema
// Engine is a single producer against one database connection (§5), so
// extraction itself is always sequential; only the downstream
// compress/encrypt/store stages fan out.
func extractSegments(ctx context.Context, adapter schemaengine.Adapter, features schemaengine.Features) ([]categorySegment, error) {
	artifacts, err := schemaengine.Extract(ctx, adapter, features)
	if err != nil {
		return nil, err
	}

	segs := make([]categorySegment, 0, len(artifacts))
	for _, a := range artifacts {
		data, err := io.ReadAll(a.Body)
		if err != nil {
			return nil, apperrors.Wrap(apperrors.ErrInternal, "orchestrator: read artifact: "+err.Error())
		}
		segs = append(segs, categorySegment{Category: a.Category, Data: data})
	}
	return segs, nil
}

// buildOutputs applies the mode matrix (§4.8) to segs, producing the final
// set of files to store plus the manifest's transform_chain record.
//
// Compression, when enabled, always bundles every segment into a single
// archive (one member per category when MultipleFiles, one "dump.sql"
// member otherwise) — this is the one synchronization point in an
// otherwise per-artifact pipeline, since an archive format needs every
// member before it can finalize. Without compression, MultipleFiles keeps
// each category as its own independent file, and those independent
// encrypt/store pipelines fan out up to FanOut (§5).
func buildOutputs(ctx context.Context, job BackupJob, deps BackupDeps, segs []categorySegment) ([]backupOutput, []manifest.Transform, error) {
	var transforms []manifest.Transform

	if job.Compress {
		members := make([]compressor.Member, 0, len(segs))
		if job.MultipleFiles {
			for _, s := range segs {
				members = append(members, compressor.Member{Name: string(s.Category) + ".sql", Data: bytes.NewReader(s.Data)})
			}
		} else {
			members = append(members, compressor.Member{Name: "dump.sql", Data: bytes.NewReader(concatSegments(segs))})
		}

		comp, err := compressor.New(job.CompressType)
		if err != nil {
			return nil, nil, err
		}
		var archive bytes.Buffer
		compressStart := time.Now()
		err = comp.Compress(&archive, members)
		recordStage(ctx, deps.Metrics, "backup", "compress", compressStart, err)
		if err != nil {
			return nil, nil, err
		}
		transforms = append(transforms, manifest.Transform{Op: "compress", Type: string(job.CompressType)})

		rawSHA, rawSize := hashSegments(segs)
		out := backupOutput{name: "dump", data: archive.Bytes(), rawSHA: rawSHA, rawSize: rawSize}
		out.name += extBacky

		if job.Encrypt {
			encryptStart := time.Now()
			encrypted, err := encryptBytes(out.data, deps.KeyWrapper, deps.EnvelopeAlg)
			recordStage(ctx, deps.Metrics, "backup", "encrypt", encryptStart, err)
			if err != nil {
				return nil, nil, err
			}
			transforms = append(transforms, manifest.Transform{Op: "encrypt", AlgID: uint8(deps.EnvelopeAlg), KeyProvider: deps.KeyProviderName})
			out.data = encrypted
		}
		return []backupOutput{out}, transforms, nil
	}

	if !job.MultipleFiles {
		data := concatSegments(segs)
		sum := sha256.Sum256(data)
		out := backupOutput{name: "dump", data: data, rawSHA: hex.EncodeToString(sum[:]), rawSize: int64(len(data))}
		if job.Encrypt {
			encryptStart := time.Now()
			encrypted, err := encryptBytes(out.data, deps.KeyWrapper, deps.EnvelopeAlg)
			recordStage(ctx, deps.Metrics, "backup", "encrypt", encryptStart, err)
			if err != nil {
				return nil, nil, err
			}
			transforms = append(transforms, manifest.Transform{Op: "encrypt", AlgID: uint8(deps.EnvelopeAlg), KeyProvider: deps.KeyProviderName})
			out.data = encrypted
			out.name += extBacky
		} else {
			out.name += extSQL
		}
		return []backupOutput{out}, transforms, nil
	}

	if job.Encrypt {
		transforms = append(transforms, manifest.Transform{Op: "encrypt", AlgID: uint8(deps.EnvelopeAlg), KeyProvider: deps.KeyProviderName})
	}
	encryptStart := time.Now()
	outputs, err := buildPerCategoryOutputs(ctx, job, deps, segs)
	if job.Encrypt {
		recordStage(ctx, deps.Metrics, "backup", "encrypt", encryptStart, err)
	}
	return outputs, transforms, err
}

// buildPerCategoryOutputs runs the MultipleFiles && !Compress branch: each
// category becomes its own independent encrypt+store pipeline, fanned out
// up to FanOut (§5).
func buildPerCategoryOutputs(ctx context.Context, job BackupJob, deps BackupDeps, segs []categorySegment) ([]backupOutput, error) {
	outputs := make([]backupOutput, len(segs))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(deps.fanOut())
	for i, s := range segs {
		i, s := i, s
		g.Go(func() error {
			select {
			case <-gctx.Done():
				return apperrors.Wrap(apperrors.ErrCancelled, gctx.Err().Error())
			default:
			}

			sum := sha256.Sum256(s.Data)
			out := backupOutput{
				name:    string(s.Category),
				data:    s.Data,
				rawSHA:  hex.EncodeToString(sum[:]),
				rawSize: int64(len(s.Data)),
			}
			if job.Encrypt {
				encrypted, err := encryptBytes(out.data, deps.KeyWrapper, deps.EnvelopeAlg)
				if err != nil {
					return err
				}
				out.data = encrypted
				out.name += extBacky
			} else {
				out.name += extSQL
			}
			outputs[i] = out
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return outputs, nil
}

func hashSegments(segs []categorySegment) (string, int64) {
	data := concatSegments(segs)
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:]), int64(len(data))
}

func encryptBytes(plaintext []byte, wrapper envelope.KeyWrapper, alg envelope.Algorithm) ([]byte, error) {
	var out bytes.Buffer
	if err := envelope.Encrypt(&out, bytes.NewReader(plaintext), wrapper, alg); err != nil {
		return nil, err
	}
	return out.Bytes(), nil
}

// storeOutputs persists every output to deps.Store under prefix, fanning
// out the network I/O up to FanOut. It returns the names of every output
// it managed to store, including on a partial failure, so the caller can
// clean them up.
func storeOutputs(ctx context.Context, store storage.Store, prefix string, outputs []backupOutput, fanOut int) ([]string, error) {
	var (
		mu     sync.Mutex
		stored []string
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(fanOut)
	for _, o := range outputs {
		o := o
		g.Go(func() error {
			err := storage.Retry(gctx, func() error {
				_, putErr := store.Put(gctx, prefixed(prefix, o.name), bytes.NewReader(o.data))
				return putErr
			})
			if err != nil {
				return err
			}
			mu.Lock()
			stored = append(stored, prefixed(prefix, o.name))
			mu.Unlock()
			return nil
		})
	}
	err := g.Wait()
	return stored, err
}

func cleanupPartial(ctx context.Context, store storage.Store, prefix string, names []string) {
	for _, name := range names {
		_ = store.Delete(ctx, name)
	}
	if aborter, ok := store.(interface {
		AbortAll(ctx context.Context, prefix string) error
	}); ok {
		_ = aborter.AbortAll(ctx, prefix)
	}
}

func prefixed(prefix, name string) string {
	if prefix == "" {
		return name
	}
	return prefix + "/" + name
}

// computeBackupIntegrity computes the Manifest's integrity tag over the
// manifest's own canonical form (with the Integrity field itself zeroed,
// breaking the circular dependency per §9) concatenated with every
// output's final (post-transform) bytes, in manifest.Artifacts order.
func computeBackupIntegrity(typ integrity.Type, secret []byte, m *manifest.Manifest, outputs []backupOutput) (integrity.Tag, error) {
	canonical, err := m.CanonicalWithoutIntegrity()
	if err != nil {
		return integrity.Tag{}, err
	}

	switch typ {
	case integrity.HMAC:
		data := make([][]byte, len(outputs))
		for i, o := range outputs {
			data[i] = o.data
		}
		return integrity.ComputeHMAC(secret, canonical, data), nil
	case integrity.Checksum:
		byName := make(map[string][]byte, len(outputs))
		for _, o := range outputs {
			byName[o.name] = o.data
		}
		return integrity.ComputeChecksum(byName), nil
	default:
		return integrity.Tag{}, apperrors.Wrap(apperrors.ErrConfigInvalid, "orchestrator: unknown integrity type")
	}
}
