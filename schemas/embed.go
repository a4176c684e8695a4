// Package schemas embeds the JSON Schemas that model output for each tool must satisfy.
package schemas

import "embed"

// FS holds tools/<tool_id>.schema.json for every registered tool.
//
//go:embed tools/*.schema.json
var FS embed.FS
