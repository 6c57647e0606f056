package models

import (
	"time"

	"gorm.io/gorm"
)

// Folder is a container of documents. A folder may pin a storage tier; when
// set, document content below it is kept in that tier of the content store.
type Folder struct {
	ID        uint64    `gorm:"primaryKey" json:"id"`
	TenantID  uint64    `gorm:"not null;index" json:"tenantId"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`

	Name     string  `gorm:"type:varchar(255);not null" json:"name"`
	ParentID *uint64 `gorm:"index" json:"parentId,omitempty"`

	// Store pins a content-store tier for documents in this folder. Nil
	// means inherit from the nearest ancestor that pins one, falling back to
	// the configured default tier.
	Store *int `json:"store,omitempty"`

	Deleted int `gorm:"not null;default:0;index" json:"-"`
}

// TableName specifies the table name.
func (Folder) TableName() string {
	return "folders"
}

// FolderACL grants per-user capabilities on a folder. One row per
// (folder, user) pair.
type FolderACL struct {
	ID       uint64 `gorm:"primaryKey" json:"id"`
	FolderID uint64 `gorm:"not null;index:idx_folder_acl,unique" json:"folderId"`
	UserID   uint64 `gorm:"not null;index:idx_folder_acl,unique" json:"userId"`

	Write    int `gorm:"not null;default:0" json:"write"`
	Download int `gorm:"not null;default:0" json:"download"`
	Archive  int `gorm:"not null;default:0" json:"archive"`
}

// TableName specifies the table name.
func (FolderACL) TableName() string {
	return "folder_acls"
}

// FindFolderByID retrieves a non-deleted folder by id.
func FindFolderByID(db *gorm.DB, id uint64) (*Folder, error) {
	var f Folder
	err := db.Where("id = ? AND deleted = 0", id).First(&f).Error
	if err != nil {
		return nil, err
	}
	return &f, nil
}

// IsWriteAllowed reports whether the user has write capability on the folder.
func IsWriteAllowed(db *gorm.DB, folderID, userID uint64) (bool, error) {
	return hasCapability(db, folderID, userID, "write")
}

// IsDownloadAllowed reports whether the user has download capability on the
// folder.
func IsDownloadAllowed(db *gorm.DB, folderID, userID uint64) (bool, error) {
	return hasCapability(db, folderID, userID, "download")
}

func hasCapability(db *gorm.DB, folderID, userID uint64, column string) (bool, error) {
	var count int64
	err := db.Model(&FolderACL{}).
		Where("folder_id = ? AND user_id = ? AND "+column+" = 1", folderID, userID).
		Count(&count).Error
	return count > 0, err
}

// FindFolderIDsWithArchive returns the ids of every folder the user may
// archive documents in.
func FindFolderIDsWithArchive(db *gorm.DB, userID uint64) (map[uint64]bool, error) {
	var ids []uint64
	err := db.Model(&FolderACL{}).
		Where("user_id = ? AND archive = 1", userID).
		Pluck("folder_id", &ids).Error
	if err != nil {
		return nil, err
	}
	out := make(map[uint64]bool, len(ids))
	for _, id := range ids {
		out[id] = true
	}
	return out, nil
}

// FindFolderIDsInTree returns the given folder id plus the ids of every
// non-deleted descendant folder.
func FindFolderIDsInTree(db *gorm.DB, rootID uint64) ([]uint64, error) {
	ids := []uint64{rootID}
	frontier := []uint64{rootID}
	for len(frontier) > 0 {
		var children []uint64
		err := db.Model(&Folder{}).
			Where("parent_id IN ? AND deleted = 0", frontier).
			Pluck("id", &children).Error
		if err != nil {
			return nil, err
		}
		ids = append(ids, children...)
		frontier = children
	}
	return ids, nil
}

// StoreTier resolves the content-store tier for the folder: its own pin, the
// nearest ancestor's pin, or the supplied default.
func StoreTier(db *gorm.DB, folderID uint64, defaultTier int) (int, error) {
	id := folderID
	for {
		folder, err := FindFolderByID(db, id)
		if err != nil {
			return defaultTier, err
		}
		if folder.Store != nil {
			return *folder.Store, nil
		}
		if folder.ParentID == nil {
			return defaultTier, nil
		}
		id = *folder.ParentID
	}
}
