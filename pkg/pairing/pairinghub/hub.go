// Package pairinghub keeps the live operator connections of this instance
// and fans pairing events out to named groups of them.
package pairinghub

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/Abraxas-365/identity/pkg/kernel"
	"github.com/Abraxas-365/identity/pkg/pairing"
)

// Sender delivers one event to one connection. It must not block.
type Sender interface {
	Send(ev pairing.Event) error
}

var ErrUnknownConnection = errors.New("pairinghub: unknown connection")

type Hub struct {
	mu     sync.RWMutex
	conns  map[kernel.ConnectionID]Sender
	groups map[string]map[kernel.ConnectionID]struct{}
}

var _ pairing.Publisher = (*Hub)(nil)

func New() *Hub {
	return &Hub{
		conns:  make(map[kernel.ConnectionID]Sender),
		groups: make(map[string]map[kernel.ConnectionID]struct{}),
	}
}

// Register makes connID addressable. It has to happen before AddToGroup.
func (h *Hub) Register(connID kernel.ConnectionID, s Sender) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.conns[connID] = s
}

func (h *Hub) AddToGroup(_ context.Context, group string, connID kernel.ConnectionID) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.conns[connID]; !ok {
		return fmt.Errorf("%w: %s", ErrUnknownConnection, connID)
	}
	members, ok := h.groups[group]
	if !ok {
		members = make(map[kernel.ConnectionID]struct{})
		h.groups[group] = members
	}
	members[connID] = struct{}{}
	return nil
}

// RemoveConnection drops connID from every group and forgets it.
func (h *Hub) RemoveConnection(_ context.Context, connID kernel.ConnectionID) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.conns, connID)
	for name, members := range h.groups {
		delete(members, connID)
		if len(members) == 0 {
			delete(h.groups, name)
		}
	}
}

// PublishToGroup sends ev to every member of group. An empty or unknown
// group is not an error.
func (h *Hub) PublishToGroup(_ context.Context, group string, ev pairing.Event) error {
	h.mu.RLock()
	senders := make([]Sender, 0, len(h.groups[group]))
	for id := range h.groups[group] {
		if s, ok := h.conns[id]; ok {
			senders = append(senders, s)
		}
	}
	h.mu.RUnlock()

	var errs []error
	for _, s := range senders {
		if err := s.Send(ev); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Connections returns the number of registered connections.
func (h *Hub) Connections() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.conns)
}
