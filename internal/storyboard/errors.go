package storyboard

import "errors"

var (
	ErrSceneNotFound   = errors.New("scene not found")
	ErrShotNotFound    = errors.New("shot not found")
	ErrLastShot        = errors.New("scene must keep at least one shot")
	ErrInvalidDuration = errors.New("invalid shot duration")
	ErrInvalidOrder    = errors.New("scene order is not contiguous")
)
