package validators

import "go.mongodb.org/mongo-driver/bson"

var meetingSchema = bson.M{
	"bsonType": "object",
	"required": []string{"url", "meeting_id"},
	"properties": bson.M{
		"url":        bson.M{"bsonType": "string", "minLength": 1},
		"meeting_id": bson.M{"bsonType": "string", "minLength": 1},
		"password":   bson.M{"bsonType": "string"},
	},
}

var ledgerEntrySchema = bson.M{
	"bsonType": "object",
	"required": []string{"date", "time", "email", "zoom_link"},
	"properties": bson.M{
		"date": bson.M{
			"bsonType": "string",
			"pattern":  `^\d{4}-\d{2}-\d{2}$`,
		},
		"time": bson.M{
			"bsonType":  "string",
			"minLength": 1,
			"maxLength": 32,
		},
		"email": bson.M{
			"bsonType":  "string",
			"minLength": 3,
			"maxLength": 254,
		},
		"zoom_link":  meetingSchema,
		"created_at": bson.M{"bsonType": "date"},
	},
}

// LedgerValidator describes the single ledger document: every booking as
// one entry of the entries array.
var LedgerValidator = bson.M{
	"$jsonSchema": bson.M{
		"bsonType":             "object",
		"required":             []string{"_id", "entries", "updated_at"},
		"additionalProperties": false,
		"properties": bson.M{
			"_id": bson.M{"bsonType": "string"},
			"entries": bson.M{
				"bsonType": "array",
				"items":    ledgerEntrySchema,
			},
			"updated_at": bson.M{"bsonType": "date"},
		},
	},
}
