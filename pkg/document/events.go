package document

// History event kinds recorded by lifecycle operations.
const (
	EventStored          = "stored"
	EventCheckedIn       = "checkedin"
	EventCheckedOut      = "checkedout"
	EventLocked          = "locked"
	EventUnlocked        = "unlocked"
	EventImmutable       = "immutable"
	EventChanged         = "changed"
	EventRenamed         = "renamed"
	EventMoved           = "moved"
	EventCopied          = "copied"
	EventArchived        = "archived"
	EventDestroyed       = "destroyed"
	EventIndexed         = "indexed"
	EventIndexedError    = "indexed-error"
	EventVersionDeleted  = "version-deleted"
	EventVersionReplaced = "version-replaced"
	EventShortcutStored  = "shortcut-stored"
	EventTicketCreated   = "ticket-created"
)
