// Package ws implements the live stats stream of talentmanager-server.
//
// Hub manages a set of connected WebSocket clients and pushes the current
// table stats and alert count to all of them on a fixed interval, and
// immediately after an append or an external reload when Track is used.
//
// Message format sent to clients:
//
//	{
//	  "event": "stats",
//	  "data": {
//	    "stats": { /* same schema as GET /stats */ },
//	    "alert_count": 3,
//	    "generated_at": "2024-01-01T00:00:00Z"
//	  }
//	}
//
// The server mounts the hub at /ws/stream.
package ws
