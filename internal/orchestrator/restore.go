package orchestrator

import (
	"bytes"
	"context"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/allisson/backydb/internal/compressor"
	"github.com/allisson/backydb/internal/envelope"
	apperrors "github.com/allisson/backydb/internal/errors"
	"github.com/allisson/backydb/internal/integrity"
	"github.com/allisson/backydb/internal/manifest"
	"github.com/allisson/backydb/internal/schemaengine"
	"github.com/allisson/backydb/internal/storage"
)

// Restore drives one RestoreJob end to end: Validated → Fetching →
// IntegrityChecking → (Decrypting?) → (Decompressing?) → Applying → Done.
// If integrity fails, no bytes are handed to the crypto layer and nothing
// is applied to the database (§4.9, §4.5).
func Restore(ctx context.Context, job RestoreJob, deps RestoreDeps) (State, error) {
	if err := job.Validate(); err != nil {
		return StateFailed, err
	}

	fetchStart := time.Now()
	manifestBytes, err := fetchBytes(ctx, deps, prefixed(job.BackupPath, manifestName))
	if err != nil {
		recordStage(ctx, deps.Metrics, "restore", "fetch", fetchStart, err)
		return StateFailed, err
	}
	m, err := manifest.Parse(manifestBytes)
	if err != nil {
		recordStage(ctx, deps.Metrics, "restore", "fetch", fetchStart, err)
		return StateFailed, err
	}

	if err := checkEngineCompatibility(ctx, deps, m); err != nil {
		recordStage(ctx, deps.Metrics, "restore", "fetch", fetchStart, err)
		return StateFailed, err
	}

	rawByName := make(map[string][]byte, len(m.Artifacts))
	order := make([]string, 0, len(m.Artifacts))
	for _, a := range m.Artifacts {
		data, err := fetchBytes(ctx, deps, prefixed(job.BackupPath, a.Name))
		if err != nil {
			recordStage(ctx, deps.Metrics, "restore", "fetch", fetchStart, err)
			return StateFailed, err
		}
		rawByName[a.Name] = data
		order = append(order, a.Name)
	}
	recordStage(ctx, deps.Metrics, "restore", "fetch", fetchStart, nil)

	integrityStart := time.Now()
	err = verifyIntegrity(job, m, rawByName, order)
	recordStage(ctx, deps.Metrics, "restore", "integrity_check", integrityStart, err)
	if err != nil {
		return StateFailed, err
	}

	current := make(map[string][]byte, len(rawByName))
	for name, data := range rawByName {
		current[baseName(name)] = data
	}

	for i := len(m.Transforms) - 1; i >= 0; i-- {
		switch m.Transforms[i].Op {
		case "encrypt":
			decryptStart := time.Now()
			decrypted := make(map[string][]byte, len(current))
			for name, data := range current {
				var out bytes.Buffer
				if err := envelope.Decrypt(&out, bytes.NewReader(data), deps.KeyWrapper); err != nil {
					recordStage(ctx, deps.Metrics, "restore", "decrypt", decryptStart, err)
					return StateFailed, err
				}
				decrypted[name] = out.Bytes()
			}
			current = decrypted
			recordStage(ctx, deps.Metrics, "restore", "decrypt", decryptStart, nil)
		case "compress":
			decompressStart := time.Now()
			comp, err := compressor.New(compressor.Type(m.Transforms[i].Type))
			if err != nil {
				recordStage(ctx, deps.Metrics, "restore", "decompress", decompressStart, err)
				return StateFailed, err
			}
			decompressed := make(map[string][]byte)
			for _, data := range current {
				members, err := comp.Decompress(bytes.NewReader(data))
				if err != nil {
					recordStage(ctx, deps.Metrics, "restore", "decompress", decompressStart, err)
					return StateFailed, err
				}
				for _, mem := range members {
					body, err := io.ReadAll(mem.Data)
					if err != nil {
						wrapped := apperrors.Wrap(apperrors.ErrInternal, "orchestrator: read decompressed member: "+err.Error())
						recordStage(ctx, deps.Metrics, "restore", "decompress", decompressStart, wrapped)
						return StateFailed, wrapped
					}
					decompressed[baseName(mem.Name)] = body
				}
			}
			current = decompressed
			recordStage(ctx, deps.Metrics, "restore", "decompress", decompressStart, nil)
		}
	}

	segments, err := reconstructSegments(m, current)
	if err != nil {
		return StateFailed, err
	}

	artifacts := make([]schemaengine.Artifact, 0, len(segments))
	for _, s := range segments {
		artifacts = append(artifacts, schemaengine.Artifact{
			Category: s.Category,
			Name:     string(s.Category) + ".sql",
			Body:     bytes.NewReader(s.Data),
		})
	}

	applyStart := time.Now()
	err = schemaengine.Apply(ctx, deps.Adapter, artifacts)
	recordStage(ctx, deps.Metrics, "restore", "apply", applyStart, err)
	if err != nil {
		return StateFailed, err
	}

	return StateDone, nil
}

func fetchBytes(ctx context.Context, deps RestoreDeps, name string) ([]byte, error) {
	var data []byte
	err := storage.Retry(ctx, func() error {
		r, err := deps.Store.Get(ctx, name)
		if err != nil {
			return err
		}
		defer r.Close()
		data, err = io.ReadAll(r)
		return err
	})
	return data, err
}

// verifyIntegrity recomputes the tag over the manifest's canonical form
// (integrity field excluded) and the stored, still-untransformed bytes of
// every output, in manifest.Artifacts order, before any decrypt/decompress
// happens (§4.5: "the tag is recomputed before any decryption/
// decompression").
func verifyIntegrity(job RestoreJob, m *manifest.Manifest, raw map[string][]byte, order []string) error {
	if m.Integrity.Type == "" {
		return nil
	}

	canonical, err := m.CanonicalWithoutIntegrity()
	if err != nil {
		return err
	}

	switch integrity.Type(m.Integrity.Type) {
	case integrity.HMAC:
		data := make([][]byte, 0, len(order))
		for _, name := range order {
			data = append(data, raw[name])
		}
		return integrity.VerifyHMAC(job.IntegritySecret, canonical, data, m.Integrity.Value)
	case integrity.Checksum:
		return integrity.VerifyChecksum(raw, m.Integrity.PerKey)
	default:
		return apperrors.Wrap(apperrors.ErrConfigInvalid, "orchestrator: unknown integrity type in manifest")
	}
}

// reconstructSegments turns the fully-reversed (decrypted, decompressed)
// byte map back into per-category segments, in CreateOrder.
//
// When current already holds one entry per category (MultipleFiles
// without compression, or a compressed archive that held one member per
// category), those map directly. Otherwise the single remaining "dump"
// entry is a marker-delimited concatenation that splitSegments recovers.
func reconstructSegments(m *manifest.Manifest, current map[string][]byte) ([]categorySegment, error) {
	if dump, ok := current["dump"]; ok && len(current) == 1 {
		return splitSegments(dump)
	}

	segs := make([]categorySegment, 0, len(current))
	for _, c := range schemaengine.CreateOrder {
		data, ok := current[string(c)]
		if !ok {
			continue
		}
		segs = append(segs, categorySegment{Category: c, Data: data})
	}
	return segs, nil
}

// baseName strips whichever extension (§3: ".backy" encrypted, ".sql"
// plain) an output or archive-member name carries, giving the stable key
// used to thread a file through the transform-reversal pipeline.
func baseName(name string) string {
	name = strings.TrimSuffix(name, extBacky)
	name = strings.TrimSuffix(name, extSQL)
	return name
}

// checkEngineCompatibility refuses restore across incompatible major
// versions (§9's Open Question resolution, recorded in DESIGN.md): the
// manifest's recorded engine major version must match the connected
// database's.
func checkEngineCompatibility(ctx context.Context, deps RestoreDeps, m *manifest.Manifest) error {
	if deps.Adapter.EngineType() != m.Engine.Type {
		return apperrors.Wrap(apperrors.ErrConfigInvalid, "orchestrator: engine type mismatch between manifest and target database")
	}

	liveVersion, err := deps.Adapter.EngineVersion(ctx)
	if err != nil {
		return err
	}

	if majorVersion(m.Engine.Version) != majorVersion(liveVersion) {
		return ErrEngineVersionIncompatible
	}
	return nil
}

// majorVersion extracts the leading numeric component of a version string
// such as "8.0.35" or "15.4" (major "8", "15"). An unparseable prefix is
// returned as-is so comparison still degrades to string equality rather
// than panicking.
func majorVersion(v string) string {
	fields := strings.FieldsFunc(v, func(r rune) bool { return r == '.' || r == '-' || r == ' ' })
	if len(fields) == 0 {
		return v
	}
	if _, err := strconv.Atoi(fields[0]); err != nil {
		return fields[0]
	}
	return fields[0]
}
