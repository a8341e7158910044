package domain

// RoomRegistry tracks which connections are currently joined to which rooms.
// Membership is ephemeral: it is rebuilt from join requests after a restart
// and never persisted. The registry is not safe for concurrent use; the relay
// loop is its only caller.
type RoomRegistry struct {
	rooms map[string]map[string]struct{}
}

func NewRoomRegistry() *RoomRegistry {
	return &RoomRegistry{rooms: make(map[string]map[string]struct{})}
}

// Join adds connID to roomID's member set. Joining twice is a no-op.
func (r *RoomRegistry) Join(connID, roomID string) {
	if r.rooms[roomID] == nil {
		r.rooms[roomID] = make(map[string]struct{})
	}
	r.rooms[roomID][connID] = struct{}{}
}

// Leave removes connID from roomID, dropping the room entry once empty.
func (r *RoomRegistry) Leave(connID, roomID string) {
	members, ok := r.rooms[roomID]
	if !ok {
		return
	}
	delete(members, connID)
	if len(members) == 0 {
		delete(r.rooms, roomID)
	}
}

// Purge removes connID from every room it belongs to, pruning emptied rooms.
// Called once per connection, on disconnect.
func (r *RoomRegistry) Purge(connID string) {
	for roomID, members := range r.rooms {
		delete(members, connID)
		if len(members) == 0 {
			delete(r.rooms, roomID)
		}
	}
}

// Members returns roomID's current member set. The returned map is the live
// set; callers must not mutate it.
func (r *RoomRegistry) Members(roomID string) map[string]struct{} {
	return r.rooms[roomID]
}

// Rooms returns the ids of every room connID is currently joined to.
func (r *RoomRegistry) Rooms(connID string) []string {
	var joined []string
	for roomID, members := range r.rooms {
		if _, ok := members[connID]; ok {
			joined = append(joined, roomID)
		}
	}
	return joined
}
