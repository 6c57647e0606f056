// Package local provides a filesystem-backed content store. The filesystem
// is abstracted through afero so tests can run against an in-memory fs.
package local

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"

	"github.com/spf13/afero"

	"github.com/papermill-forge/papermill/pkg/store"
)

// Config contains local store configuration.
type Config struct {
	// Tiers maps tier numbers to root directories. Tier 1 is conventionally
	// the primary store.
	Tiers map[int]string

	// DefaultTier receives new writes. Defaults to 1.
	DefaultTier int
}

// Validate validates the local store configuration.
func (c *Config) Validate() error {
	if len(c.Tiers) == 0 {
		return fmt.Errorf("at least one tier root is required")
	}
	tier := c.DefaultTier
	if tier == 0 {
		tier = 1
	}
	if _, ok := c.Tiers[tier]; !ok {
		return fmt.Errorf("default tier %d has no configured root", tier)
	}
	return nil
}

// Adapter implements store.Store on a filesystem. Resources of document N in
// tier T live under <tierRoot(T)>/N/.
type Adapter struct {
	fs          afero.Fs
	tiers       map[int]string
	defaultTier int
}

// NewAdapter creates a local store over the OS filesystem.
func NewAdapter(cfg *Config) (*Adapter, error) {
	return NewAdapterWithFs(cfg, afero.NewOsFs())
}

// NewAdapterWithFs creates a local store over the given filesystem.
func NewAdapterWithFs(cfg *Config, fs afero.Fs) (*Adapter, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	tier := cfg.DefaultTier
	if tier == 0 {
		tier = 1
	}
	for _, root := range cfg.Tiers {
		if err := fs.MkdirAll(root, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create tier root %s: %w", root, err)
		}
	}
	return &Adapter{fs: fs, tiers: cfg.Tiers, defaultTier: tier}, nil
}

func (a *Adapter) docDir(tier int, docID uint64) string {
	return filepath.Join(a.tiers[tier], store.DocKey(docID))
}

// findResource locates a resource across tiers, preferring the default tier.
func (a *Adapter) findResource(docID uint64, resource string) (string, error) {
	for _, tier := range a.tierOrder() {
		path := filepath.Join(a.docDir(tier, docID), resource)
		if ok, _ := afero.Exists(a.fs, path); ok {
			return path, nil
		}
	}
	return "", os.ErrNotExist
}

func (a *Adapter) tierOrder() []int {
	tiers := make([]int, 0, len(a.tiers))
	for t := range a.tiers {
		tiers = append(tiers, t)
	}
	sort.Slice(tiers, func(i, j int) bool {
		if tiers[i] == a.defaultTier {
			return true
		}
		if tiers[j] == a.defaultTier {
			return false
		}
		return tiers[i] < tiers[j]
	})
	return tiers
}

// Store writes a resource into the default tier.
func (a *Adapter) Store(ctx context.Context, docID uint64, resource string, r io.Reader) error {
	dir := a.docDir(a.defaultTier, docID)
	if err := a.fs.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create document directory: %w", err)
	}
	f, err := a.fs.Create(filepath.Join(dir, resource))
	if err != nil {
		return fmt.Errorf("failed to create resource %s: %w", resource, err)
	}
	defer f.Close()
	if _, err := io.Copy(f, r); err != nil {
		return fmt.Errorf("failed to write resource %s: %w", resource, err)
	}
	return nil
}

// GetStream opens a resource, searching all tiers.
func (a *Adapter) GetStream(ctx context.Context, docID uint64, resource string) (io.ReadCloser, error) {
	path, err := a.findResource(docID, resource)
	if err != nil {
		return nil, fmt.Errorf("resource %s of document %d not found: %w", resource, docID, err)
	}
	return a.fs.Open(path)
}

// Delete removes the named resources wherever they live.
func (a *Adapter) Delete(ctx context.Context, docID uint64, resources ...string) error {
	for _, resource := range resources {
		path, err := a.findResource(docID, resource)
		if err != nil {
			continue
		}
		if err := a.fs.Remove(path); err != nil {
			return fmt.Errorf("failed to delete resource %s: %w", resource, err)
		}
	}
	return nil
}

// DeleteAll removes every resource of a document across all tiers.
func (a *Adapter) DeleteAll(ctx context.Context, docID uint64) error {
	for tier := range a.tiers {
		if err := a.fs.RemoveAll(a.docDir(tier, docID)); err != nil {
			return fmt.Errorf("failed to delete document %d from tier %d: %w", docID, tier, err)
		}
	}
	return nil
}

// ListResources lists resource names across tiers, deduplicated and sorted.
func (a *Adapter) ListResources(ctx context.Context, docID uint64, fileVersion string) ([]string, error) {
	seen := map[string]bool{}
	for tier := range a.tiers {
		entries, err := afero.ReadDir(a.fs, a.docDir(tier, docID))
		if err != nil {
			continue
		}
		for _, entry := range entries {
			if entry.IsDir() {
				continue
			}
			name := entry.Name()
			if fileVersion != "" && !store.BelongsToFileVersion(name, fileVersion) {
				continue
			}
			seen[name] = true
		}
	}
	names := make([]string, 0, len(seen))
	for name := range seen {
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}

// MoveResourcesToStore moves every resource of a document into the target
// tier.
func (a *Adapter) MoveResourcesToStore(ctx context.Context, docID uint64, tier int) (int, error) {
	targetRoot, ok := a.tiers[tier]
	if !ok {
		return 0, fmt.Errorf("unknown tier %d", tier)
	}
	targetDir := filepath.Join(targetRoot, store.DocKey(docID))

	moved := 0
	for sourceTier := range a.tiers {
		if sourceTier == tier {
			continue
		}
		sourceDir := a.docDir(sourceTier, docID)
		entries, err := afero.ReadDir(a.fs, sourceDir)
		if err != nil {
			continue
		}
		for _, entry := range entries {
			if entry.IsDir() {
				continue
			}
			if err := a.fs.MkdirAll(targetDir, 0o755); err != nil {
				return moved, err
			}
			oldPath := filepath.Join(sourceDir, entry.Name())
			newPath := filepath.Join(targetDir, entry.Name())
			if err := a.fs.Rename(oldPath, newPath); err != nil {
				return moved, fmt.Errorf("failed to move %s to tier %d: %w", entry.Name(), tier, err)
			}
			moved++
		}
		_ = a.fs.RemoveAll(sourceDir)
	}
	return moved, nil
}

// Size returns the byte size of a resource.
func (a *Adapter) Size(ctx context.Context, docID uint64, resource string) (int64, error) {
	path, err := a.findResource(docID, resource)
	if err != nil {
		return 0, err
	}
	info, err := a.fs.Stat(path)
	if err != nil {
		return 0, err
	}
	return info.Size(), nil
}
