package wordpress

import "encoding/json"

// RenderedField wraps WordPress's rendered HTML fields.
type RenderedField struct {
	Rendered string `json:"rendered"`
}

// FlexibleStrings decodes an ACF value that may arrive as a string, an array
// of strings, or false/null when the field is unset.
type FlexibleStrings []string

func (f *FlexibleStrings) UnmarshalJSON(data []byte) error {
	var single string
	if err := json.Unmarshal(data, &single); err == nil {
		if single != "" {
			*f = FlexibleStrings{single}
		} else {
			*f = nil
		}
		return nil
	}
	var many []string
	if err := json.Unmarshal(data, &many); err == nil {
		*f = FlexibleStrings(many)
		return nil
	}
	// false, null, or any other shape means the field is unset
	*f = nil
	return nil
}

// ACFFields holds the editorial override fields attached to posts.
type ACFFields struct {
	Author FlexibleStrings `json:"imt_author"`
	Date   string          `json:"imt_date"` // YYYYMMDD
}

func (a *ACFFields) UnmarshalJSON(data []byte) error {
	// ACF serializes an empty field group as false rather than an object,
	// and unset text fields inside the group as false rather than "".
	var raw struct {
		Author FlexibleStrings `json:"imt_author"`
		Date   json.RawMessage `json:"imt_date"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		*a = ACFFields{}
		return nil
	}
	a.Author = raw.Author
	a.Date = ""
	var date string
	if json.Unmarshal(raw.Date, &date) == nil {
		a.Date = date
	}
	return nil
}

// Post is a WordPress post as returned by the REST API.
type Post struct {
	ID            int           `json:"id"`
	Date          string        `json:"date"`
	Modified      string        `json:"modified"`
	Slug          string        `json:"slug"`
	Status        string        `json:"status"`
	Sticky        bool          `json:"sticky"`
	Title         RenderedField `json:"title"`
	Content       RenderedField `json:"content"`
	Excerpt       RenderedField `json:"excerpt"`
	Categories    []int         `json:"categories"`
	Tags          []int         `json:"tags"`
	FeaturedMedia int           `json:"featured_media"`
	ACF           ACFFields     `json:"acf"`
}

// Category is a WordPress category term. Parent is 0 for root categories.
type Category struct {
	ID     int    `json:"id"`
	Name   string `json:"name"`
	Slug   string `json:"slug"`
	Parent int    `json:"parent"`
}

// Tag is a WordPress tag term.
type Tag struct {
	ID   int    `json:"id"`
	Name string `json:"name"`
	Slug string `json:"slug"`
}

// Media is a WordPress media item.
type Media struct {
	ID        int    `json:"id"`
	SourceURL string `json:"source_url"`
}

// apiError is the REST API's error envelope.
type apiError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}
