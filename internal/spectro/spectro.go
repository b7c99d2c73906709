// Package spectro computes the static URLs of spectrogram tiles.
//
// Tiles are pre-rendered PNGs laid out per dataset as
// spectrograms/<config>/<sound>/<sound>_<zoom>_<tile>.png where zoom is a
// power of two and tile indexes run from 0 to zoom-1.
package spectro

import (
	"fmt"
	"strings"
)

// MaxZoomLevel bounds the tile pyramid: level 16 already lists 131071 tiles.
const MaxZoomLevel = 16

// ValidZoomLevel reports whether level is within 0..MaxZoomLevel.
func ValidZoomLevel(level int) bool {
	return level >= 0 && level <= MaxZoomLevel
}

// ZoomTiles lists tile file names for every zoom factor up to 2^zoomLevel,
// coarsest first. Levels outside 0..MaxZoomLevel yield nothing.
func ZoomTiles(soundName string, zoomLevel int) []string {
	if !ValidZoomLevel(zoomLevel) {
		return nil
	}
	tiles := make([]string, 0, (1<<(zoomLevel+1))-1)
	for power := 0; power <= zoomLevel; power++ {
		zoom := 1 << power
		for tile := 0; tile < zoom; tile++ {
			tiles = append(tiles, fmt.Sprintf("%s_%d_%d.png", soundName, zoom, tile))
		}
	}
	return tiles
}

// SoundName strips directories and every ".wav" from a dataset file path.
func SoundName(filepath string) string {
	base := filepath
	if idx := strings.LastIndex(base, "/"); idx >= 0 {
		base = base[idx+1:]
	}
	return strings.ReplaceAll(base, ".wav", "")
}

// RootURL joins the static prefix and a dataset path.
func RootURL(staticURL, datasetPath string) string {
	return staticURL + datasetPath
}

// TileURLs returns the quoted URL of every tile for one configuration.
func TileURLs(rootURL, configName, soundName string, zoomLevel int) []string {
	tiles := ZoomTiles(soundName, zoomLevel)
	urls := make([]string, 0, len(tiles))
	for _, tile := range tiles {
		urls = append(urls, QuotePath(rootURL+"/spectrograms/"+configName+"/"+soundName+"/"+tile))
	}
	return urls
}

const upperhex = "0123456789ABCDEF"

// QuotePath percent-encodes every byte outside A-Z a-z 0-9 _ . - ~ and "/".
// url.PathEscape keeps sub-delimiters such as ':' and '&' intact, which the
// tile server does not expect.
func QuotePath(value string) string {
	var b strings.Builder
	b.Grow(len(value))
	for i := 0; i < len(value); i++ {
		c := value[i]
		if shouldKeep(c) {
			b.WriteByte(c)
			continue
		}
		b.WriteByte('%')
		b.WriteByte(upperhex[c>>4])
		b.WriteByte(upperhex[c&0x0f])
	}
	return b.String()
}

func shouldKeep(c byte) bool {
	switch {
	case 'a' <= c && c <= 'z', 'A' <= c && c <= 'Z', '0' <= c && c <= '9':
		return true
	}
	switch c {
	case '_', '.', '-', '~', '/':
		return true
	}
	return false
}
