// Package store defines the content store: content-addressable blob storage
// keyed by (document id, resource name), with support for multiple storage
// tiers. Resource names are derived from file versions so that every version
// of a document's binary, plus ancillary renditions, live side by side.
package store

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/papermill-forge/papermill/pkg/models"
)

// Store is the content store consumed by the document lifecycle coordinator.
type Store interface {
	// Store writes a resource for the document, replacing any previous
	// content under the same name.
	Store(ctx context.Context, docID uint64, resource string, r io.Reader) error

	// GetStream opens a resource for reading. The caller closes it.
	GetStream(ctx context.Context, docID uint64, resource string) (io.ReadCloser, error)

	// Delete removes the named resources of a document.
	Delete(ctx context.Context, docID uint64, resources ...string) error

	// DeleteAll removes every resource of a document across all tiers.
	DeleteAll(ctx context.Context, docID uint64) error

	// ListResources lists the resource names of a document. A non-empty
	// fileVersion restricts the listing to resources of that file version.
	ListResources(ctx context.Context, docID uint64, fileVersion string) ([]string, error)

	// MoveResourcesToStore moves every resource of a document into the
	// target tier, returning the number of moved resources.
	MoveResourcesToStore(ctx context.Context, docID uint64, tier int) (int, error)

	// Size returns the byte size of a resource.
	Size(ctx context.Context, docID uint64, resource string) (int64, error)
}

// ResourceName computes the store resource name for a document. An empty
// fileVersion means the document's current file version; a non-empty suffix
// names an ancillary rendition (e.g. "conversion.pdf") of that file version.
func ResourceName(doc *models.Document, fileVersion, suffix string) string {
	fv := fileVersion
	if fv == "" {
		fv = doc.FileVersion
	}
	if suffix == "" {
		return fv
	}
	return fv + "-" + suffix
}

// BelongsToFileVersion reports whether a resource name refers to the given
// file version, directly or as an ancillary rendition.
func BelongsToFileVersion(resource, fileVersion string) bool {
	return resource == fileVersion || strings.HasPrefix(resource, fileVersion+"-")
}

// DocKey renders the per-document key segment shared by the adapters.
func DocKey(docID uint64) string {
	return fmt.Sprintf("%d", docID)
}
