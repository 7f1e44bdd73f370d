package reddit

import (
	"time"

	"github.com/modwatch/modwatch/internal/models"
)

// commentListing mirrors the Reddit listing envelope for comment feeds.
type commentListing struct {
	Data struct {
		Children []struct {
			Data struct {
				ID         string  `json:"id"`
				Author     string  `json:"author"`
				Body       string  `json:"body"`
				CreatedUTC float64 `json:"created_utc"`
				Permalink  string  `json:"permalink"`
			} `json:"data"`
		} `json:"children"`
	} `json:"data"`
}

func (l commentListing) comments() []models.Comment {
	out := make([]models.Comment, 0, len(l.Data.Children))
	for _, child := range l.Data.Children {
		d := child.Data
		out = append(out, models.Comment{
			ID:        d.ID,
			Author:    d.Author,
			Body:      d.Body,
			CreatedAt: time.Unix(int64(d.CreatedUTC), 0).UTC(),
			Permalink: d.Permalink,
		})
	}
	return out
}
