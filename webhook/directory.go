// Package webhook receives GitHub webhook deliveries and turns them
// into chat notifications.
package webhook

import (
	"xmppwebhook/internal"
	"xmppwebhook/xmpp"
)

// Directory maps repository full names ("org/repo") to chat
// destinations. Built once from configuration and read-only afterwards,
// so concurrent lookups need no locking.
type Directory struct {
	routes map[string]xmpp.Destination
}

// NewDirectory builds the mapping. The first route wins when a
// repository appears twice; configuration is expected to be
// duplicate-free.
func NewDirectory(routes []internal.RepoRoute) *Directory {
	mapping := make(map[string]xmpp.Destination, len(routes))
	for _, route := range routes {
		if _, exists := mapping[route.Repo]; exists {
			continue
		}
		switch {
		case route.Room != "":
			mapping[route.Repo] = xmpp.RoomDestination(route.Room)
		case route.User != "":
			mapping[route.Repo] = xmpp.UserDestination(route.User)
		}
	}
	return &Directory{routes: mapping}
}

// Get resolves a repository to its destination.
func (d *Directory) Get(fullName string) (xmpp.Destination, bool) {
	dest, ok := d.routes[fullName]
	return dest, ok
}

// Rooms returns the distinct room addresses, in no particular order.
// The session actor joins these at connect time.
func (d *Directory) Rooms() []string {
	seen := make(map[string]struct{})
	rooms := make([]string, 0, len(d.routes))
	for _, dest := range d.routes {
		if dest.Kind != xmpp.KindRoom {
			continue
		}
		if _, ok := seen[dest.Address]; ok {
			continue
		}
		seen[dest.Address] = struct{}{}
		rooms = append(rooms, dest.Address)
	}
	return rooms
}
