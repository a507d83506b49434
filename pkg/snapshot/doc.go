// Package snapshot persists the location store to an encrypted file.
//
// The file is a JSON object keyed by user identity:
//
//	{
//	  "<id>": {
//	    "currentLocation": "ENC:<hex>",
//	    "lastUpdate": "2024-05-01T10:00:00Z",
//	    "isSharingEnabled": true,
//	    "allowedUsers": ["<id>", ...],
//	    "history": [{"location": "ENC:<hex>", "timestamp": "..."}]
//	  }
//	}
//
// Each coordinate pair is encrypted on its own. Values that are plain
// [lat, lng] arrays are accepted on load, and numeric identities in
// allowedUsers decode to their decimal string form.
//
// Persister.Save copies records one at a time through the store, so a
// snapshot is never a store-wide atomic view. Scheduler runs Save on a cron
// schedule and once more on Stop.
package snapshot
