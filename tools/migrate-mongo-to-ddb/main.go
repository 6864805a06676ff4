package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"

	"github.com/yashrajoria/basket-service/models"
	aws_pkg "github.com/yashrajoria/basket-service/pkg/aws"
	"github.com/yashrajoria/basket-service/pkg/logger"
	"github.com/yashrajoria/basket-service/repository"
)

func main() {
	var mongoURI, dbName, collection, table string
	var dryRun bool
	flag.StringVar(&mongoURI, "mongo", os.Getenv("MONGO_DB_URL"), "MongoDB URI")
	flag.StringVar(&dbName, "db", os.Getenv("MONGO_DB_NAME"), "MongoDB database name")
	flag.StringVar(&collection, "collection", "baskets", "MongoDB collection holding basket documents")
	flag.StringVar(&table, "table", os.Getenv("DYNAMODB_TABLE_NAME"), "DynamoDB table name")
	flag.BoolVar(&dryRun, "dry-run", false, "decode and validate documents without writing")
	flag.Parse()

	if mongoURI == "" || dbName == "" {
		log.Fatal("MONGO_DB_URL and MONGO_DB_NAME must be set or provided via flags")
	}
	if table == "" {
		table = "Baskets"
	}

	zapLogger, err := logger.New(os.Getenv("APP_ENV"), nil)
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	defer func() { _ = zapLogger.Sync() }()

	ctx := context.Background()
	mclient, err := mongo.Connect(ctx, options.Client().ApplyURI(mongoURI))
	if err != nil {
		zapLogger.Fatal("mongo connect", zap.Error(err))
	}
	defer func() { _ = mclient.Disconnect(ctx) }()

	coll := mclient.Database(dbName).Collection(collection)

	awsCfg, err := aws_pkg.LoadAWSConfig(ctx)
	if err != nil {
		zapLogger.Fatal("aws config", zap.Error(err))
	}
	store := repository.NewDynamoAdapter(aws_pkg.NewDynamoDBClient(awsCfg), table)

	batchSize := int32(500)
	cur, err := coll.Find(ctx, bson.M{}, options.Find().SetBatchSize(batchSize))
	if err != nil {
		zapLogger.Fatal("mongo find", zap.Error(err))
	}
	defer cur.Close(ctx)

	var migrated, skipped int
	for cur.Next(ctx) {
		basket, err := decodeBasket(cur.Current)
		if err != nil {
			zapLogger.Warn("skipping document", zap.Error(err))
			skipped++
			continue
		}
		if dryRun {
			migrated++
			continue
		}
		if err := store.SaveBasket(ctx, basket); err != nil {
			zapLogger.Error("failed to write basket", zap.String("user_name", basket.UserName), zap.Error(err))
			skipped++
			continue
		}
		migrated++
		if migrated%100 == 0 {
			zapLogger.Info("migration progress", zap.Int("migrated", migrated))
		}
	}
	if err := cur.Err(); err != nil {
		zapLogger.Fatal("cursor error", zap.Error(err))
	}
	fmt.Printf("Migration complete. migrated=%d skipped=%d dry_run=%t\n", migrated, skipped, dryRun)
}

// decodeBasket converts a Mongo document into a basket record. The Mongo _id
// is dropped; every other field is carried over.
func decodeBasket(raw bson.Raw) (*models.Basket, error) {
	var doc bson.M
	if err := bson.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("decode bson: %w", err)
	}
	delete(doc, "_id")

	ext, err := bson.MarshalExtJSON(doc, false, false)
	if err != nil {
		return nil, fmt.Errorf("encode extended json: %w", err)
	}

	var basket models.Basket
	if err := json.Unmarshal(ext, &basket); err != nil {
		return nil, err
	}
	if basket.UserName == "" {
		return nil, fmt.Errorf("document has no %s", models.FieldUserName)
	}
	if basket.Items == nil {
		basket.Items = []models.BasketItem{}
	}
	return &basket, nil
}
