package models

// Post is a raw listing entry as returned by the source feed.
// Field names follow the Reddit listing JSON.
type Post struct {
	ID            string               `json:"id"`
	Title         string               `json:"title"`
	Selftext      string               `json:"selftext"`
	Author        string               `json:"author"`
	Subreddit     string               `json:"subreddit"`
	URL           string               `json:"url"`
	Permalink     string               `json:"permalink"`
	CreatedUTC    float64              `json:"created_utc"`
	Thumbnail     string               `json:"thumbnail"`
	PostHint      string               `json:"post_hint"`
	Preview       *PostPreview         `json:"preview,omitempty"`
	MediaMetadata map[string]MediaItem `json:"media_metadata,omitempty"`
	GalleryData   *GalleryData         `json:"gallery_data,omitempty"`
}

// PostPreview holds the preview images Reddit generates for link posts.
type PostPreview struct {
	Images []PreviewImage `json:"images"`
}

// PreviewImage is one preview with its source and downscaled resolutions.
type PreviewImage struct {
	Source      ImageRef   `json:"source"`
	Resolutions []ImageRef `json:"resolutions"`
}

// ImageRef is a sized image URL.
type ImageRef struct {
	URL    string `json:"url"`
	Width  int    `json:"width"`
	Height int    `json:"height"`
}

// MediaItem is an entry of media_metadata for gallery posts.
type MediaItem struct {
	Status string     `json:"status"`
	Kind   string     `json:"e"`
	Mime   string     `json:"m"`
	Source MediaRef   `json:"s"`
	Sizes  []MediaRef `json:"p"`
}

// MediaRef uses Reddit's abbreviated keys for media_metadata sizes.
type MediaRef struct {
	URL    string `json:"u"`
	Width  int    `json:"x"`
	Height int    `json:"y"`
}

// GalleryData preserves the author's ordering of gallery media.
type GalleryData struct {
	Items []struct {
		MediaID string `json:"media_id"`
	} `json:"items"`
}
