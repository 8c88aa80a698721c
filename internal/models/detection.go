package models

import "time"

// BoundingBox is expressed in pixels of the frame the detection ran on.
type BoundingBox struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// DetectionPosition is the box centre and extent reported next to the bbox.
type DetectionPosition struct {
	CenterX float64 `json:"center_x"`
	CenterY float64 `json:"center_y"`
	Width   float64 `json:"width"`
	Height  float64 `json:"height"`
}

// Detection is one object reported by the detection service.
type Detection struct {
	Class            string             `json:"class"`
	Confidence       float64            `json:"confidence"`
	BBox             *BoundingBox       `json:"bbox,omitempty"`
	Position         *DetectionPosition `json:"position,omitempty"`
	SizeCategory     string             `json:"size_category,omitempty"`
	DetectionQuality string             `json:"detection_quality,omitempty"`
}

// DetectionResult is the response of the detection service.
type DetectionResult struct {
	BirdsFound      bool        `json:"birds_found"`
	BirdCount       int         `json:"bird_count"`
	ConfidenceLevel float64     `json:"confidence_level"`
	Detections      []Detection `json:"detections"`
	ProcessingTime  float64     `json:"processing_time"`
}

// Size is a frame size in pixels.
type Size struct {
	Width  int `json:"width"`
	Height int `json:"height"`
}

// ImageInfo records the frame sizes a detection was computed from.
type ImageInfo struct {
	OriginalSize Size `json:"original_size"`
	ZoomedSize   Size `json:"zoomed_size"`
}

// DetectionRecord is persisted by the backend for every positive analysis.
type DetectionRecord struct {
	DeviceID        string      `json:"deviceId"`
	OriginalImage   string      `json:"original_image"`
	ZoomedImage     string      `json:"zoomed_image"`
	Detections      []Detection `json:"detections"`
	TargetBird      *Detection  `json:"target_bird"`
	BirdCount       int         `json:"bird_count"`
	ConfidenceLevel float64     `json:"confidence_level"`
	ProcessingTime  float64     `json:"processing_time"`
	ZoomFactor      float64     `json:"zoom_factor"`
	ImageInfo       ImageInfo   `json:"image_info"`
	Timestamp       time.Time   `json:"timestamp"`
}
