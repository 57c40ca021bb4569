package models

import "github.com/google/uuid"

// Provider is the read-only view of a redeeming merchant served by the
// provider directory collaborator. Location backs the geo-mismatch fraud flag.
type Provider struct {
	ID       uuid.UUID
	Name     string
	Address  string
	Location *GeoPoint
}
