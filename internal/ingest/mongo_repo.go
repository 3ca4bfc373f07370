package ingest

import (
	"context"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const runsCollection = "export_runs"

type MongoRepo struct {
	DB     *mongo.Client
	dbName string
}

func NewMongoRepo(db *mongo.Client, dbName string) *MongoRepo {
	return &MongoRepo{DB: db, dbName: dbName}
}

func (r *MongoRepo) runs() *mongo.Collection {
	return r.DB.Database(r.dbName).Collection(runsCollection)
}

func (r *MongoRepo) CreateRun(ctx context.Context, run *Run) (string, error) {
	if _, err := r.runs().InsertOne(ctx, run); err != nil {
		return "", err
	}
	return run.ID, nil
}

func (r *MongoRepo) UpdateRun(ctx context.Context, run *Run) error {
	_, err := r.runs().UpdateByID(ctx, run.ID, bson.M{"$set": bson.M{
		"finished_at":      run.FinishedAt,
		"status":           run.Status,
		"zip_codes":        run.ZipCodes,
		"records_fetched":  run.RecordsFetched,
		"rows_written":     run.RowsWritten,
		"records_filtered": run.RecordsFiltered,
		"failed_zips":      run.FailedZips,
		"error":            run.Error,
	}})
	return err
}

func (r *MongoRepo) ListRuns(ctx context.Context, filter RunFilter) ([]Run, error) {
	query := bson.M{}
	if filter.BBBID != "" {
		query["bbb_id"] = filter.BBBID
	}
	if filter.BatchID != "" {
		query["batch_id"] = filter.BatchID
	}
	opts := options.Find().
		SetSort(bson.D{{Key: "started_at", Value: -1}}).
		SetLimit(int64(filter.limit()))

	cur, err := r.runs().Find(ctx, query, opts)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var runs []Run
	if err := cur.All(ctx, &runs); err != nil {
		return nil, err
	}
	return runs, nil
}
