package models

import (
	"time"

	"github.com/uptrace/bun"
)

// Sponsor and DisplayConfig are consumed read-only by the presentation
// layers; the engine never mutates them.
type Sponsor struct {
	bun.BaseModel `bun:"table:sponsors,alias:sp"`

	ID       int64  `bun:"id,pk,autoincrement" json:"id"`
	Name     string `bun:"name,notnull" json:"name"`
	ImageURL string `bun:"image_url" json:"imageUrl"`

	CreatedAt time.Time `bun:"created_at,notnull,default:current_timestamp" json:"-"`
}

type DisplayConfig struct {
	bun.BaseModel `bun:"table:display_config,alias:dc"`

	ID                  int64 `bun:"id,pk,autoincrement" json:"id"`
	ShowOnOBS           bool  `bun:"show_on_obs,notnull,default:false" json:"showOnOBS"`
	ShowOnProjector     bool  `bun:"show_on_projector,notnull,default:false" json:"showOnProjector"`
	LoopIntervalSeconds int   `bun:"loop_interval_seconds,notnull,default:10" json:"loopIntervalSeconds"`
	ShowHighlights      bool  `bun:"show_highlights,notnull,default:false" json:"showHighlights"`
}
