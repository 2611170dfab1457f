package model

import (
	"time"

	"github.com/oklog/ulid/v2"
)

// NewID returns a ULID string identifying a new execution.
func NewID() string {
	return ulid.Make().String()
}

// IDTime returns the creation time encoded in an id produced by NewID.
func IDTime(id string) (time.Time, error) {
	u, err := ulid.ParseStrict(id)
	if err != nil {
		return time.Time{}, err
	}
	return ulid.Time(u.Time()), nil
}
