package models

import (
	"time"

	"github.com/google/uuid"
)

// DeviceState is the allocation state reported by the server. The numeric
// values are part of the feed wire format and must not be renumbered.
type DeviceState int

const (
	// Unbound means the request was received but no address is allocated yet
	Unbound DeviceState = 0

	// Bound means an address has been allocated and handed out
	Bound DeviceState = 1

	// Stale means an address is assigned but not in use (error state)
	Stale DeviceState = 2

	// Stopped means the allocation was gracefully stopped
	Stopped DeviceState = 3
)

// Valid reports whether s is one of the defined state codes
func (s DeviceState) Valid() bool {
	return s >= Unbound && s <= Stopped
}

func (s DeviceState) String() string {
	switch s {
	case Unbound:
		return "unbound"
	case Bound:
		return "bound"
	case Stale:
		return "stale"
	case Stopped:
		return "stopped"
	}
	return "invalid"
}

// Lease is a time-bounded assignment of a network address
type Lease struct {
	FixedAddress string    `json:"FixedAddress"`
	Expire       time.Time `json:"Expire"`
}

// Interface carries the hardware identity of an allocation
type Interface struct {
	Name         string `json:"Name,omitempty"`
	HardwareAddr string `json:"HardwareAddr"`
}

// DeviceRecord represents one row of the allocation table
type DeviceRecord struct {
	ID        uuid.UUID   `json:"ID"`
	Hostname  string      `json:"Hostname"`
	Interface Interface   `json:"Interface"`
	Lease     *Lease      `json:"Lease"`
	State     DeviceState `json:"State"`
}

// HardwareAddress returns the identity key of the record within a snapshot
func (d DeviceRecord) HardwareAddress() string {
	return d.Interface.HardwareAddr
}

// HasLease reports whether an address is currently assigned
func (d DeviceRecord) HasLease() bool {
	return d.Lease != nil
}

// DeviceUpdate is one message of the device feed. A nil Data slice means the
// message carried no table; an empty non-nil slice is a valid empty table.
type DeviceUpdate struct {
	Status string         `json:"status,omitempty"`
	Info   string         `json:"info,omitempty"`
	Data   []DeviceRecord `json:"Data"`
}

// PoolSnapshot holds the utilization counts of the address pool
type PoolSnapshot struct {
	Bound     int `json:"bound"`
	Available int `json:"available"`
}

// Total returns the pool size
func (p PoolSnapshot) Total() int {
	return p.Bound + p.Available
}

// PoolUpdate is one message of the pool feed
type PoolUpdate struct {
	Status    string   `json:"status,omitempty"`
	Info      string   `json:"info,omitempty"`
	Bound     int      `json:"bound"`
	Available int      `json:"available"`
	MACs      []string `json:"macs,omitempty"`
}

// Snapshot returns the counts carried by the update
func (u PoolUpdate) Snapshot() PoolSnapshot {
	return PoolSnapshot{Bound: u.Bound, Available: u.Available}
}

// ReservationBatch is the body of a batch reservation request. Addresses are
// sent unfiltered; validation happens on the server.
type ReservationBatch struct {
	Addresses []string `json:"macs"`
}

// StatusSuccess is the status value the server reports for an accepted request
const StatusSuccess = "success"

// Response is the generic status envelope returned by the server
type Response struct {
	Status string `json:"status"`
	Info   string `json:"info"`
}
