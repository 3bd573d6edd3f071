package models

import "time"

// CacheEntry is a device-local snapshot of one animal, keyed by its primary
// id and resolvable by ear tag or barcode. Never authoritative: a live
// lookup always supersedes it when the device is online.
type CacheEntry struct {
	AnimalID    string    `json:"animal_id"`
	TagNumber   string    `json:"tag_number"`
	Barcode     string    `json:"barcode,omitempty"`
	Snapshot    Animal    `json:"snapshot"`
	RefreshedAt time.Time `json:"refreshed_at"`
}
