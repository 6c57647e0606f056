package models

func ModelsToAutoMigrate() []interface{} {
	return []interface{}{
		&User{},
		&Folder{},
		&FolderACL{},
		&Document{},
		&Version{},
		&DocumentHistory{},
		&DocumentNote{},
		&DocumentLink{},
		&Tag{},
		&Bookmark{},
		&Ticket{},
	}
}
