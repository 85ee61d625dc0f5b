// Package schemas embeds the JSON schemas for the route catalog and the
// observer frame stream.
package schemas

import "embed"

//go:embed *.schema.json
var FS embed.FS

const (
	RouteCatalogURL = "https://clawoffice.ai/schemas/route_catalog.schema.json"
	FrameURL        = "https://clawoffice.ai/schemas/frame.schema.json"
)
