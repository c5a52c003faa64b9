// Package api provides HTTP REST API handlers for the vine level validator.
//
// The api package implements:
//   - Validation of a posted level document
//   - Validation of stored levels, with optional write-back
//   - Batch runs over the levels directory with live progress
//   - Level and tier catalogs
//   - WebSocket upgrade handling
//
// Endpoints:
//
// Validation:
//   - POST /api/validate - Validate the level document in the body; nothing is stored
//   - POST /api/batch - Validate every level file
//
// Levels:
//   - GET /api/levels - List level files with id, name, difficulty and vine count
//   - GET /api/levels/{name} - Validate a stored level without writing it
//   - POST /api/levels/{name}/validate?persist=true - Validate and write the metrics back
//
// Rules:
//   - GET /api/tiers - Tier table, palette and direction bands in use
//
// Live progress:
//   - GET /ws?channel={batch id} - Subscribe to batch events ("*" for all)
//
// Batches:
//
// POST /api/batch accepts an optional JSON body:
//
//	{
//	  "id": "nightly",     // batch id and WebSocket channel, generated when empty
//	  "workers": 4,        // a count, "half" or "full"
//	  "dry_run": true,     // validate without writing
//	  "backup": true,      // back up first into the server's backup root
//	  "async": true        // answer 202 at once and publish progress only
//	}
//
// Every finished file is published as a file_validated event on the batch
// channel and the summary as batch_complete.
//
// Usage:
//
//	hub := websocket.NewHub()
//	go hub.Run(ctx)
//
//	server := api.NewServer(validationService, hub, api.WithBackupRoot("backups"))
//	http.ListenAndServe(":8080", server)
//
// Error Handling:
//
// Errors are returned as JSON with an HTTP status code:
//
//	{"error": "level not found: level_9"}
//
// Missing levels answer 404, stored files that are not level documents 422
// and malformed requests 400.
package api
