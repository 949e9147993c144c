package models

// Category is one flattened CMS category. Root categories have Parent == 0;
// children reference their root's id (the tree is at most two levels deep).
// The snapshot pushed to the destination nests children under their roots.
type Category struct {
	Name     string     `json:"name"`
	ID       int        `json:"id"`
	Parent   int        `json:"parent"`
	Slug     string     `json:"slug"`
	Children []Category `json:"children,omitempty"`
}

// Content block keys. A block carries either prose or media, never both.
const (
	BlockHeading   = "heading"
	BlockParagraph = "p"
	BlockCaption   = "caption"
	BlockImage     = "img"
	BlockYouTube   = "youtube"
	BlockVimeo     = "vimeo"
)

// ContentBlock is one typed, ordered unit of a post body. Val holds the text
// for prose blocks, the source URL for img blocks, and the provider video id
// for youtube/vimeo blocks.
type ContentBlock struct {
	Key string `json:"key"`
	Val string `json:"val"`
}

// IsMedia reports whether the block is an image or video embed.
func (b ContentBlock) IsMedia() bool {
	switch b.Key {
	case BlockImage, BlockYouTube, BlockVimeo:
		return true
	}
	return false
}

// Media is a post's featured media.
type Media struct {
	URL     string `json:"url"`
	IsVideo bool   `json:"isVideo,omitempty"`
}

// TransformedPost is the render-ready document pushed to the destination
// store, keyed by the stable CMS post id.
type TransformedPost struct {
	ID         int            `json:"id"`
	Slug       string         `json:"slug"`
	Status     string         `json:"status"`
	IsSticky   bool           `json:"isSticky"`
	Title      string         `json:"title"`
	Date       int64          `json:"date"`     // epoch milliseconds
	Modified   int64          `json:"modified"` // epoch milliseconds
	Authors    []string       `json:"authors"`
	Excerpt    string         `json:"excerpt"`
	Media      Media          `json:"media"`
	Categories []Category     `json:"categories"`
	Tags       []string       `json:"tags"`
	Content    []ContentBlock `json:"content"`
}

// LatestPosts carries the destination's newest post modification time.
// Modified is nil when the store holds no posts yet.
type LatestPosts struct {
	Modified *int64 `json:"modified,omitempty"`
}

// Latest is the destination store's high-water mark: the newest post
// modification time it knows plus its current category snapshot.
type Latest struct {
	Posts LatestPosts `json:"posts"`
	Cats  []Category  `json:"cats"`
}

// RedirectRecord maps a legacy-site article id or a CMS post id to the
// article's slug and original author. Read-only from this service.
type RedirectRecord struct {
	Old    int    `json:"old"`
	New    int    `json:"new"`
	Author string `json:"author"`
	Slug   string `json:"slug"`
}
