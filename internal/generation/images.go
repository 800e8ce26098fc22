package generation

import (
	"encoding/base64"
	"strings"
)

const (
	imagePrefix  = "data:image/"
	base64Marker = ";base64,"
)

// ValidImage reports whether s is a usable image data URL of the form
// data:image/<subtype>;base64,<payload>. The subtype is not checked.
func ValidImage(s string) bool {
	if s == "" || !strings.HasPrefix(s, imagePrefix) {
		return false
	}
	i := strings.Index(s, base64Marker)
	if i < 0 {
		return false
	}
	payload := s[i+len(base64Marker):]
	if payload == "" {
		return false
	}
	_, err := base64.StdEncoding.DecodeString(payload)
	return err == nil
}

// FilterImages returns the valid entries of images in order.
func FilterImages(images []string) []string {
	if len(images) == 0 {
		return nil
	}
	valid := make([]string, 0, len(images))
	for _, img := range images {
		if ValidImage(img) {
			valid = append(valid, img)
		}
	}
	return valid
}
