package models

import (
	"strings"
	"time"

	"gorm.io/gorm"
)

// Document lifecycle statuses. A document is editable only while unlocked;
// any other status records who holds the lock (except Archived, which is a
// terminal administrative state, not a lock).
const (
	StatusUnlocked   = 0
	StatusCheckedOut = 1
	StatusLocked     = 2
	StatusArchived   = 3
)

// Full-text indexing states for Document.Indexed.
const (
	IndexToIndex         = 0 // content must be (re)extracted and submitted
	IndexIndexed         = 1 // present in the full-text index
	IndexSkip            = 2 // deliberately excluded from indexing
	IndexToIndexMetadata = 3 // reindex metadata only, no content extraction
)

// Document is the mutable head record of a logical document. Exactly one of
// two shapes holds: a regular document owning its content fields, or an alias
// whose DocRef points at another document and whose content fields are
// meaningless.
type Document struct {
	ID        uint64    `gorm:"primaryKey" json:"id"`
	TenantID  uint64    `gorm:"not null;index" json:"tenantId"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`

	// Deleted is a soft-delete marker. Non-zero values carry the deletion
	// code supplied by the caller.
	Deleted int `gorm:"not null;default:0;index" json:"-"`

	FolderID uint64 `gorm:"not null;index" json:"folderId"`

	FileName string `gorm:"type:varchar(500);not null" json:"fileName"`
	Type     string `gorm:"type:varchar(50)" json:"type"`

	// Version is the current dotted major.minor version string. FileVersion
	// is the version whose binary content is currently associated; it lags
	// Version when only metadata changed.
	Version     string `gorm:"type:varchar(20)" json:"version"`
	FileVersion string `gorm:"type:varchar(20)" json:"fileVersion"`
	FileSize    int64  `json:"fileSize"`
	Digest      string `gorm:"type:varchar(64)" json:"digest"`
	Pages       int    `gorm:"default:1" json:"pages"`

	Status       int     `gorm:"not null;default:0" json:"status"`
	LockUserID   *uint64 `json:"lockUserId,omitempty"`
	LockUserName string  `gorm:"type:varchar(255)" json:"lockUserName,omitempty"`
	Immutable    int     `gorm:"not null;default:0" json:"immutable"`

	Indexed int `gorm:"not null;default:0;index" json:"indexed"`

	// DocRef marks this document as an alias of another document. Aliases
	// never chain: DocRef always identifies a concrete document.
	DocRef     *uint64 `gorm:"index" json:"docRef,omitempty"`
	DocRefType string  `gorm:"type:varchar(20)" json:"docRefType,omitempty"`

	CustomID   *string `gorm:"type:varchar(200);index" json:"customId,omitempty"`
	Tags       string  `gorm:"type:varchar(1000)" json:"tags"`
	TemplateID *uint64 `json:"templateId,omitempty"`
	Locale     string  `gorm:"type:varchar(10);default:'en'" json:"locale"`

	Publisher   string     `gorm:"type:varchar(255)" json:"publisher"`
	PublisherID uint64     `json:"publisherId"`
	Creator     string     `gorm:"type:varchar(255)" json:"creator"`
	CreatorID   uint64     `json:"creatorId"`
	Date        *time.Time `json:"date,omitempty"`

	Comment string `gorm:"type:varchar(1000)" json:"comment"`

	// Derived-content flags, reset whenever new content is checked in.
	Stamped  int `gorm:"not null;default:0" json:"stamped"`
	Signed   int `gorm:"not null;default:0" json:"signed"`
	Ocrd     int `gorm:"not null;default:0" json:"ocrd"`
	Barcoded int `gorm:"not null;default:0" json:"barcoded"`

	OcrTemplateID     *uint64 `json:"ocrTemplateId,omitempty"`
	BarcodeTemplateID *uint64 `json:"barcodeTemplateId,omitempty"`

	// ExtResID references an editing session in an external editor, cleared
	// on unlock and checkin.
	ExtResID *string `gorm:"type:varchar(255)" json:"extResId,omitempty"`
}

// TableName specifies the table name.
func (Document) TableName() string {
	return "documents"
}

// IsAlias reports whether the document is a shortcut to another document.
func (d *Document) IsAlias() bool {
	return d.DocRef != nil
}

// ReferencedID resolves the concrete document id: the alias target for
// aliases, the document's own id otherwise. This is the single resolution
// point for the one-hop alias invariant.
func (d *Document) ReferencedID() uint64 {
	if d.DocRef != nil {
		return *d.DocRef
	}
	return d.ID
}

// Extension returns the lowercase filename extension without the dot, or
// "unknown" when the filename has none.
func (d *Document) Extension() string {
	return FileExtension(d.FileName)
}

// FileExtension extracts the lowercase extension of a filename, "unknown"
// when absent.
func FileExtension(name string) string {
	idx := strings.LastIndex(name, ".")
	if idx <= 0 || idx == len(name)-1 {
		return "unknown"
	}
	return strings.ToLower(name[idx+1:])
}

// Clone returns a deep snapshot of the document, suitable for a compensating
// restore after a failed content write.
func (d *Document) Clone() *Document {
	c := *d
	c.LockUserID = clonePtr(d.LockUserID)
	c.DocRef = clonePtr(d.DocRef)
	c.CustomID = clonePtr(d.CustomID)
	c.TemplateID = clonePtr(d.TemplateID)
	c.OcrTemplateID = clonePtr(d.OcrTemplateID)
	c.BarcodeTemplateID = clonePtr(d.BarcodeTemplateID)
	c.ExtResID = clonePtr(d.ExtResID)
	c.Date = clonePtr(d.Date)
	return &c
}

// RestoreFrom copies every mutable field captured in a snapshot back onto the
// document. Identity and containment (ID, TenantID, FolderID, timestamps) are
// left untouched so the restore can be applied to a freshly loaded row.
func (d *Document) RestoreFrom(snapshot *Document) {
	d.FileName = snapshot.FileName
	d.Type = snapshot.Type
	d.Version = snapshot.Version
	d.FileVersion = snapshot.FileVersion
	d.FileSize = snapshot.FileSize
	d.Digest = snapshot.Digest
	d.Pages = snapshot.Pages
	d.Status = snapshot.Status
	d.LockUserID = clonePtr(snapshot.LockUserID)
	d.LockUserName = snapshot.LockUserName
	d.Indexed = snapshot.Indexed
	d.CustomID = clonePtr(snapshot.CustomID)
	d.Tags = snapshot.Tags
	d.TemplateID = clonePtr(snapshot.TemplateID)
	d.Locale = snapshot.Locale
	d.Publisher = snapshot.Publisher
	d.PublisherID = snapshot.PublisherID
	d.Date = clonePtr(snapshot.Date)
	d.Comment = snapshot.Comment
	d.Stamped = snapshot.Stamped
	d.Signed = snapshot.Signed
	d.Ocrd = snapshot.Ocrd
	d.Barcoded = snapshot.Barcoded
	d.OcrTemplateID = clonePtr(snapshot.OcrTemplateID)
	d.BarcodeTemplateID = clonePtr(snapshot.BarcodeTemplateID)
	d.ExtResID = clonePtr(snapshot.ExtResID)
}

func clonePtr[T any](p *T) *T {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

// FindDocumentByID retrieves a non-deleted document by id.
func FindDocumentByID(db *gorm.DB, id uint64) (*Document, error) {
	var doc Document
	err := db.Where("id = ? AND deleted = 0", id).First(&doc).Error
	if err != nil {
		return nil, err
	}
	return &doc, nil
}

// FindDocumentByCustomID retrieves a non-deleted document by custom id within
// a tenant.
func FindDocumentByCustomID(db *gorm.DB, customID string, tenantID uint64) (*Document, error) {
	var doc Document
	err := db.Where("custom_id = ? AND tenant_id = ? AND deleted = 0", customID, tenantID).
		First(&doc).Error
	if err != nil {
		return nil, err
	}
	return &doc, nil
}

// FindAliases retrieves every non-deleted alias referencing the given
// document id.
func FindAliases(db *gorm.DB, docID uint64) ([]Document, error) {
	var aliases []Document
	err := db.Where("doc_ref = ? AND deleted = 0", docID).Find(&aliases).Error
	return aliases, err
}

// SoftDeleteDocument marks a document deleted with the given code.
func SoftDeleteDocument(db *gorm.DB, id uint64, code int) error {
	if code == 0 {
		code = 1
	}
	return db.Model(&Document{}).Where("id = ?", id).Update("deleted", code).Error
}
