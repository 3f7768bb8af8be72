package models

// Result is the readable article extracted from one fetched page.
type Result struct {
	URL      string `json:"url"`
	Title    string `json:"title"`
	Text     string `json:"text"`
	Status   int    `json:"status"`
	RenderMS int    `json:"render_ms"`
}
