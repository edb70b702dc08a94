package imagestore

import (
	"path"
	"regexp"
	"strings"
)

var versionSegment = regexp.MustCompile(`^v\d+$`)

// PublicIDFromURL extracts the public id from a Cloudinary delivery URL,
// e.g. https://res.cloudinary.com/demo/image/upload/v1740815725/budmart/products/ay2av1.png
// gives "budmart/products/ay2av1". It returns "" for other URLs.
func PublicIDFromURL(url string) string {
	parts := strings.Split(url, "/")

	uploadIndex := -1
	for i, part := range parts {
		if part == "upload" {
			uploadIndex = i
			break
		}
	}
	if uploadIndex == -1 || uploadIndex >= len(parts)-1 {
		return ""
	}

	rest := parts[uploadIndex+1:]
	if versionSegment.MatchString(rest[0]) {
		rest = rest[1:]
	}
	if len(rest) == 0 {
		return ""
	}

	publicID := strings.Join(rest, "/")
	if i := strings.IndexAny(publicID, "?#"); i >= 0 {
		publicID = publicID[:i]
	}
	return strings.TrimSuffix(publicID, path.Ext(publicID))
}
