package models

// MetadataOwnerKind tags the entity type a metadata entry belongs to. Room is
// the only kind in scope today; the tag keeps the association explicit rather
// than inferred from the ID shape.
type MetadataOwnerKind string

const (
	MetadataOwnerRoom MetadataOwnerKind = "room"
)

// MetadataOwner identifies the owning entity of a metadata entry.
type MetadataOwner struct {
	Kind MetadataOwnerKind `json:"kind"`
	ID   string            `json:"id"`
}

// RoomOwner returns the owner reference for a room ID.
func RoomOwner(roomID string) MetadataOwner {
	return MetadataOwner{Kind: MetadataOwnerRoom, ID: roomID}
}

// Metadata is a key/value pair attached to an owner. Room metadata entries
// are merged into the create-time parameters of a meeting as meta_<name>
// parameters and are destroyed together with the room.
type Metadata struct {
	Owner MetadataOwner `json:"owner"`
	Name  string        `json:"name"`
	Value string        `json:"value"`
}
