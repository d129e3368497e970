package models

// Location represents a geographical location with latitude and longitude coordinates.
type Location struct {
	Lat float64 `bson:"lat" json:"lat"`
	Lng float64 `bson:"lng" json:"lng"`
}

// IsZero reports whether the location is the zero value.
func (l Location) IsZero() bool {
	return l.Lat == 0 && l.Lng == 0
}
