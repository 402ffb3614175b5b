package types

import "image"

// Detection is a single raw result from a detection source for one frame.
// Rejected marks a face whose confidence did not pass the threshold; such
// detections are rendered but never routed to the store.
type Detection struct {
	Key        string
	Region     image.Rectangle
	Confidence float64
	Rejected   bool
}
