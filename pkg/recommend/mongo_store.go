package recommend

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/scribeworks/quotakit/pkg/plan"
)

// MongoStore implements Store on a MongoDB collection. Recommendations
// are analytics artifacts with a flexible shape and a TTL-style expiry,
// which suits a document store better than the relational core.
type MongoStore struct {
	coll *mongo.Collection
}

// NewMongoStore creates a recommendation store on the given database,
// using the "recommendations" collection.
func NewMongoStore(db *mongo.Database) *MongoStore {
	return &MongoStore{coll: db.Collection("recommendations")}
}

// recommendationDoc is the persisted document shape.
type recommendationDoc struct {
	ID                string    `bson:"_id"`
	SubjectID         string    `bson:"subject_id"`
	CurrentPlanID     string    `bson:"current_plan_id"`
	RecommendedPlanID string    `bson:"recommended_plan_id"`
	Reason            string    `bson:"reason"`
	Confidence        float64   `bson:"confidence"`
	DeltaAmount       int64     `bson:"delta_amount"`
	DeltaCurrency     string    `bson:"delta_currency"`
	Status            string    `bson:"status"`
	CreatedAt         time.Time `bson:"created_at"`
	ExpiresAt         time.Time `bson:"expires_at"`
	UpdatedAt         time.Time `bson:"updated_at"`
}

func toDoc(r *Recommendation) recommendationDoc {
	return recommendationDoc{
		ID:                r.ID.String(),
		SubjectID:         r.SubjectID.String(),
		CurrentPlanID:     r.CurrentPlanID,
		RecommendedPlanID: r.RecommendedPlanID,
		Reason:            string(r.Reason),
		Confidence:        r.Confidence,
		DeltaAmount:       r.ProjectedDelta.Amount,
		DeltaCurrency:     r.ProjectedDelta.Currency,
		Status:            string(r.Status),
		CreatedAt:         r.CreatedAt,
		ExpiresAt:         r.ExpiresAt,
		UpdatedAt:         r.UpdatedAt,
	}
}

func fromDoc(d recommendationDoc) (*Recommendation, error) {
	id, err := uuid.Parse(d.ID)
	if err != nil {
		return nil, err
	}
	subjectID, err := uuid.Parse(d.SubjectID)
	if err != nil {
		return nil, err
	}
	return &Recommendation{
		ID:                id,
		SubjectID:         subjectID,
		CurrentPlanID:     d.CurrentPlanID,
		RecommendedPlanID: d.RecommendedPlanID,
		Reason:            Reason(d.Reason),
		Confidence:        d.Confidence,
		ProjectedDelta:    plan.Money{Amount: d.DeltaAmount, Currency: d.DeltaCurrency},
		Status:            Status(d.Status),
		CreatedAt:         d.CreatedAt,
		ExpiresAt:         d.ExpiresAt,
		UpdatedAt:         d.UpdatedAt,
	}, nil
}

// Save creates a new recommendation, assigning an ID when absent.
func (ms *MongoStore) Save(ctx context.Context, r *Recommendation) error {
	if r.ID == uuid.Nil {
		r.ID = uuid.New()
	}
	if _, err := ms.coll.InsertOne(ctx, toDoc(r)); err != nil {
		return errors.Join(ErrStorageUnavailable, err)
	}
	return nil
}

// CurrentFor returns the subject's latest open non-expired recommendation.
func (ms *MongoStore) CurrentFor(ctx context.Context, subjectID uuid.UUID, asOf time.Time) (*Recommendation, error) {
	filter := bson.M{
		"subject_id": subjectID.String(),
		"status":     bson.M{"$in": []string{string(StatusPending), string(StatusViewed)}},
		"expires_at": bson.M{"$gt": asOf.UTC()},
	}
	opts := options.FindOne().SetSort(bson.D{{Key: "created_at", Value: -1}})

	var d recommendationDoc
	if err := ms.coll.FindOne(ctx, filter, opts).Decode(&d); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrRecommendationNotFound
		}
		return nil, errors.Join(ErrStorageUnavailable, err)
	}
	return fromDoc(d)
}

// UpdateStatus applies a lifecycle transition. The allowed-from states are
// part of the filter so a concurrent transition cannot be overwritten.
func (ms *MongoStore) UpdateStatus(ctx context.Context, id uuid.UUID, to Status, at time.Time) error {
	var from []string
	for src, allowed := range statusTransitions {
		for _, dst := range allowed {
			if dst == to {
				from = append(from, string(src))
			}
		}
	}

	res, err := ms.coll.UpdateOne(ctx,
		bson.M{"_id": id.String(), "status": bson.M{"$in": from}},
		bson.M{"$set": bson.M{"status": string(to), "updated_at": at.UTC()}},
	)
	if err != nil {
		return errors.Join(ErrStorageUnavailable, err)
	}
	if res.MatchedCount == 0 {
		// Missing or already past the allowed source states.
		count, err := ms.coll.CountDocuments(ctx, bson.M{"_id": id.String()})
		if err != nil {
			return errors.Join(ErrStorageUnavailable, err)
		}
		if count == 0 {
			return ErrRecommendationNotFound
		}
		return ErrInvalidTransition
	}
	return nil
}
