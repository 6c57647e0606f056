package document

import (
	"fmt"
)

// ValidationError reports a missing or invalid argument, rejected before any
// mutation.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// PermissionConflict reports an operation blocked by a lock held by someone
// else or by a missing capability. Holder names the current lock holder when
// the conflict is a lock.
type PermissionConflict struct {
	DocID  uint64
	Holder string
	Cause  string
}

func (e *PermissionConflict) Error() string {
	if e.Holder != "" {
		return fmt.Sprintf("document %d is locked by %s: %s", e.DocID, e.Holder, e.Cause)
	}
	return fmt.Sprintf("permission denied on document %d: %s", e.DocID, e.Cause)
}

// DuplicateIdentifier reports a custom-id collision within a tenant.
type DuplicateIdentifier struct {
	CustomID string
	TenantID uint64
}

func (e *DuplicateIdentifier) Error() string {
	return fmt.Sprintf("duplicated custom id %q in tenant %d", e.CustomID, e.TenantID)
}

// ImmutableDocument reports a mutation attempted on an immutable document by
// a non-administrator.
type ImmutableDocument struct {
	DocID uint64
}

func (e *ImmutableDocument) Error() string {
	return fmt.Sprintf("document %d is immutable", e.DocID)
}

// StorageWriteFailure reports a content-store write failure. By the time it
// surfaces, the compensating restore of the document's pre-operation state
// has already been applied.
type StorageWriteFailure struct {
	DocID uint64
	Err   error
}

func (e *StorageWriteFailure) Error() string {
	return fmt.Sprintf("cannot save the content of document %d into the store: %v", e.DocID, e.Err)
}

func (e *StorageWriteFailure) Unwrap() error {
	return e.Err
}

// UnexistingReference reports an operation targeting a document, version or
// folder id that does not exist.
type UnexistingReference struct {
	Kind string
	ID   uint64
}

func (e *UnexistingReference) Error() string {
	return fmt.Sprintf("unexisting %s %d", e.Kind, e.ID)
}
