package postgres

import "github.com/google/uuid"

// validID reports whether id can be a primary key; anything else cannot
// exist and is answered as not found without a round trip.
func validID(id string) bool {
	_, err := uuid.Parse(id)
	return err == nil
}
