package mongostore

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// ensureIndexes creates the indexes the repositories rely on. CreateMany
// is idempotent so this runs on every boot.
func (s *Store) ensureIndexes(ctx context.Context) error {
	specs := map[string][]mongo.IndexModel{
		"users": {
			{
				Keys: bson.D{{Key: "account", Value: 1}},
				Options: options.Index().SetUnique(true).
					SetPartialFilterExpression(bson.D{
						{Key: "account", Value: bson.D{{Key: "$gt", Value: ""}}},
					}),
			},
			{Keys: bson.D{{Key: "email", Value: 1}}},
			{Keys: bson.D{{Key: "nick_lower", Value: 1}}},
			{Keys: bson.D{{Key: "full_name_lower", Value: 1}}},
			{Keys: bson.D{{Key: "human_elo", Value: 1}}},
		},
		"games": {
			{Keys: bson.D{{Key: "player0", Value: 1}, {Key: "ts_last_move", Value: -1}}},
			{Keys: bson.D{{Key: "player1", Value: 1}, {Key: "ts_last_move", Value: -1}}},
			{Keys: bson.D{{Key: "over", Value: 1}, {Key: "ts_last_move", Value: 1}}},
		},
		"elo_ratings": {
			{Keys: bson.D{{Key: "user_id", Value: 1}, {Key: "locale", Value: 1}}, Options: options.Index().SetUnique(true)},
		},
		"robot_elo": {
			{Keys: bson.D{{Key: "locale", Value: 1}, {Key: "level", Value: 1}}, Options: options.Index().SetUnique(true)},
		},
		"user_stats": {
			{Keys: bson.D{{Key: "user_id", Value: 1}, {Key: "timestamp", Value: -1}}},
			{Keys: bson.D{{Key: "timestamp", Value: 1}}},
		},
		"favorites": {
			{Keys: bson.D{{Key: "src", Value: 1}, {Key: "dest", Value: 1}}, Options: options.Index().SetUnique(true)},
			{Keys: bson.D{{Key: "dest", Value: 1}}},
		},
		"blocks": {
			{Keys: bson.D{{Key: "blocker", Value: 1}, {Key: "blocked", Value: 1}}, Options: options.Index().SetUnique(true)},
			{Keys: bson.D{{Key: "blocked", Value: 1}}},
		},
		"challenges": {
			{Keys: bson.D{{Key: "src", Value: 1}, {Key: "dest", Value: 1}, {Key: "timestamp", Value: -1}}},
			{Keys: bson.D{{Key: "dest", Value: 1}, {Key: "timestamp", Value: -1}}},
		},
		"chat_messages": {
			{Keys: bson.D{{Key: "channel", Value: 1}, {Key: "timestamp", Value: -1}}},
			{Keys: bson.D{{Key: "user_id", Value: 1}, {Key: "timestamp", Value: -1}}},
			{Keys: bson.D{{Key: "recipient", Value: 1}, {Key: "timestamp", Value: -1}}},
		},
		"zombies": {
			{Keys: bson.D{{Key: "game_id", Value: 1}, {Key: "user_id", Value: 1}}, Options: options.Index().SetUnique(true)},
			{Keys: bson.D{{Key: "user_id", Value: 1}}},
		},
		"rating_rows": {
			{Keys: bson.D{{Key: "kind", Value: 1}, {Key: "rank", Value: 1}}, Options: options.Index().SetUnique(true)},
		},
		"promos": {
			{Keys: bson.D{{Key: "user_id", Value: 1}, {Key: "promotion", Value: 1}}},
		},
		"completions": {
			{Keys: bson.D{{Key: "proctype", Value: 1}, {Key: "timestamp", Value: -1}}},
		},
		"riddles": {
			{Keys: bson.D{{Key: "locale", Value: 1}, {Key: "date", Value: 1}}, Options: options.Index().SetUnique(true)},
		},
	}

	for coll, models := range specs {
		if _, err := s.db.Collection(coll).Indexes().CreateMany(ctx, models); err != nil {
			return fmt.Errorf("create indexes on %s: %w", coll, err)
		}
	}
	return nil
}
