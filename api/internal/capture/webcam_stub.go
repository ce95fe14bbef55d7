//go:build !gocv

package capture

import "errors"

// NewWebcamSource доступен только в сборке с тегом gocv.
func NewWebcamSource(map[Facing]int) (Source, error) {
	return nil, errors.New("webcam support requires building with -tags gocv")
}
