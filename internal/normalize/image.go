package normalize

import (
	"html"
	"net/url"
	"path"
	"sort"
	"strings"

	"thriftscan/valuator/internal/models"
)

// Image source tags stored alongside the image URL.
const (
	ImageSourceDirect  = "direct"
	ImageSourcePreview = "preview"
	ImageSourceGallery = "gallery"
)

const thumbnailWidth = 216

var imageExtensions = map[string]bool{
	".jpg": true, ".jpeg": true, ".png": true, ".gif": true, ".webp": true,
}

var imageHosts = map[string]bool{
	"i.redd.it":   true,
	"i.imgur.com": true,
}

// Image is the image reference discovered on a post.
type Image struct {
	URL       string
	Thumbnail string
	Source    string
}

// ExtractImage prefers a direct image link, then the preview image, then the
// first gallery entry. URLs are HTML-entity decoded.
func ExtractImage(p *models.Post) (Image, bool) {
	if u := html.UnescapeString(p.URL); isImageURL(u) {
		thumb := u
		if t := html.UnescapeString(p.Thumbnail); strings.HasPrefix(t, "http") {
			thumb = t
		}
		return Image{URL: u, Thumbnail: thumb, Source: ImageSourceDirect}, true
	}

	if p.Preview != nil && len(p.Preview.Images) > 0 {
		img := p.Preview.Images[0]
		if img.Source.URL != "" {
			full := html.UnescapeString(img.Source.URL)
			thumb := full
			for _, r := range img.Resolutions {
				if r.Width >= thumbnailWidth && r.URL != "" {
					thumb = html.UnescapeString(r.URL)
					break
				}
			}
			return Image{URL: full, Thumbnail: thumb, Source: ImageSourcePreview}, true
		}
	}

	for _, id := range galleryOrder(p) {
		item := p.MediaMetadata[id]
		if item.Status != "" && item.Status != "valid" {
			continue
		}
		if item.Source.URL == "" {
			continue
		}
		full := html.UnescapeString(item.Source.URL)
		thumb := full
		for _, s := range item.Sizes {
			if s.Width >= thumbnailWidth && s.URL != "" {
				thumb = html.UnescapeString(s.URL)
				break
			}
		}
		return Image{URL: full, Thumbnail: thumb, Source: ImageSourceGallery}, true
	}

	return Image{}, false
}

// galleryOrder returns media ids in the author's order when gallery_data is
// present, otherwise sorted for determinism.
func galleryOrder(p *models.Post) []string {
	if len(p.MediaMetadata) == 0 {
		return nil
	}
	var ids []string
	if p.GalleryData != nil {
		for _, it := range p.GalleryData.Items {
			if _, ok := p.MediaMetadata[it.MediaID]; ok {
				ids = append(ids, it.MediaID)
			}
		}
	}
	if len(ids) > 0 {
		return ids
	}
	for id := range p.MediaMetadata {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

func isImageURL(raw string) bool {
	if raw == "" {
		return false
	}
	u, err := url.Parse(raw)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") {
		return false
	}
	if imageHosts[strings.ToLower(u.Host)] {
		return true
	}
	return imageExtensions[strings.ToLower(path.Ext(u.Path))]
}
