// Package server manages group membership sets. The "Geral" group exists for
// the life of the process and every registering user joins it implicitly;
// other groups are created on demand and persist even when emptied.
package server

import "sync"

// GeneralGroup is the implicit broadcast group every user belongs to.
const GeneralGroup = "Geral"

// MembershipDirectory owns the group membership sets. All operations are
// safe for concurrent use and never call into other stores.
type MembershipDirectory struct {
	mu     sync.RWMutex
	groups map[string]map[string]struct{}
}

// NewMembershipDirectory returns a directory seeded with the "Geral" group.
func NewMembershipDirectory() *MembershipDirectory {
	return &MembershipDirectory{
		groups: map[string]map[string]struct{}{
			GeneralGroup: {},
		},
	}
}

// CreateGroup registers a new empty group. It fails with ErrGroupExists if
// the name is already taken.
func (d *MembershipDirectory) CreateGroup(name string) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if _, exists := d.groups[name]; exists {
		return ErrGroupExists
	}
	d.groups[name] = make(map[string]struct{})
	return nil
}

// Join adds username to the group, creating the group if it does not exist.
// It reports whether the user was newly added; joining a group the user is
// already in is a no-op.
func (d *MembershipDirectory) Join(group, username string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	members, exists := d.groups[group]
	if !exists {
		members = make(map[string]struct{})
		d.groups[group] = members
	}
	if _, present := members[username]; present {
		return false
	}
	members[username] = struct{}{}
	return true
}

// Leave removes username from the group. Unknown groups and absent members
// are no-ops; the group itself persists even when emptied.
func (d *MembershipDirectory) Leave(group, username string) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if members, exists := d.groups[group]; exists {
		delete(members, username)
	}
}

// RemoveFromAll strips username from every group's membership set. Called as
// part of the deregistration cascade.
func (d *MembershipDirectory) RemoveFromAll(username string) {
	d.mu.Lock()
	defer d.mu.Unlock()

	for _, members := range d.groups {
		delete(members, username)
	}
}

// GroupsOf returns the names of every group username belongs to.
func (d *MembershipDirectory) GroupsOf(username string) []string {
	d.mu.RLock()
	defer d.mu.RUnlock()

	var names []string
	for name, members := range d.groups {
		if _, present := members[username]; present {
			names = append(names, name)
		}
	}
	return names
}

// MembersOf returns the members of a group, or ErrGroupNotFound for an
// unknown group name.
func (d *MembershipDirectory) MembersOf(group string) ([]string, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	members, exists := d.groups[group]
	if !exists {
		return nil, ErrGroupNotFound
	}
	names := make([]string, 0, len(members))
	for username := range members {
		names = append(names, username)
	}
	return names, nil
}

// AllGroups returns every group name in existence.
func (d *MembershipDirectory) AllGroups() []string {
	d.mu.RLock()
	defer d.mu.RUnlock()

	names := make([]string, 0, len(d.groups))
	for name := range d.groups {
		names = append(names, name)
	}
	return names
}
