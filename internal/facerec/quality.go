package facerec

import "fmt"

// QualityPolicy are the enrollment photo quality gate parameters.
type QualityPolicy struct {
	MinFaceSize     int     // minimum bounding box side length in pixels
	CenterTolerance float64 // max center offset as a fraction of the half-dimension
}

// CheckQuality validates a detected face against the quality gate: the
// bounding box must be at least MinFaceSize pixels on each side and the face
// center must sit within CenterTolerance of the image center on both axes.
// bbox is [x1, y1, x2, y2] in pixel coordinates. photo is the 1-based photo
// index used in the error message.
func CheckQuality(bbox []float64, imageWidth, imageHeight, photo int, policy QualityPolicy) error {
	if len(bbox) != 4 {
		return &ValidationError{Photo: photo, Reason: "malformed face bounding box"}
	}
	if imageWidth <= 0 || imageHeight <= 0 {
		return &ValidationError{Photo: photo, Reason: "unknown image dimensions"}
	}

	width := bbox[2] - bbox[0]
	height := bbox[3] - bbox[1]
	if width < float64(policy.MinFaceSize) || height < float64(policy.MinFaceSize) {
		return &ValidationError{
			Photo:  photo,
			Reason: fmt.Sprintf("face too small (%.0fx%.0f, need %dx%d); move closer to the camera", width, height, policy.MinFaceSize, policy.MinFaceSize),
		}
	}

	centerX := bbox[0] + width/2
	centerY := bbox[1] + height/2
	offsetX := abs(centerX-float64(imageWidth)/2) / (float64(imageWidth) / 2)
	offsetY := abs(centerY-float64(imageHeight)/2) / (float64(imageHeight) / 2)
	if offsetX > policy.CenterTolerance || offsetY > policy.CenterTolerance {
		return &ValidationError{
			Photo:  photo,
			Reason: "face not centered; position the face in the middle of the frame",
		}
	}

	return nil
}

func abs(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}
