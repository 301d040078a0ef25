package model

// Space describes one parking space's occupancy record.  Spaces are
// uniquely identified by their integer id, assigned once at seed time.
// Available is the single source of truth consumed by viewers and by
// the reservation check.
//
// Fields:
//  ID        – stable identifier of the space.
//  Available – whether the space is free for reservation.
//  Reserved  – reservation flag carried in the seed data.  Nothing reads
//              or writes it after seeding; it is kept so the persisted
//              schema stays compatible with the sensor-network tooling.
type Space struct {
	ID        int  `json:"id"`        // spaces.id
	Available bool `json:"available"` // spaces.available
	Reserved  bool `json:"reserved"`  // spaces.reserved
}

// DefaultSpaces is the fixed set of spaces inserted when the store is
// empty at startup.  Extend this list when new sensors are installed.
var DefaultSpaces = []Space{
	{ID: 1, Available: true, Reserved: false},
	{ID: 2, Available: false, Reserved: false},
}
