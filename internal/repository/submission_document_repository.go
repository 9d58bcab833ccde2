package repository

import (
	"context"
	"errors"

	"github.com/talentshire/assessment-core/internal/model"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const codeSubmissionsCollection = "code_submissions"

// SubmissionDocumentRepository keeps the extended execution detail of coding
// answers in MongoDB, one document per (assignment, question).
type SubmissionDocumentRepository struct {
	coll *mongo.Collection
}

// NewSubmissionDocumentRepository creates a new SubmissionDocumentRepository.
func NewSubmissionDocumentRepository(db *mongo.Database) *SubmissionDocumentRepository {
	return &SubmissionDocumentRepository{coll: db.Collection(codeSubmissionsCollection)}
}

// EnsureIndexes creates the lookup indexes. Safe to call on every boot.
func (r *SubmissionDocumentRepository) EnsureIndexes(ctx context.Context) error {
	_, err := r.coll.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "assignment_id", Value: 1}, {Key: "question_id", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
		{Keys: bson.D{{Key: "answer_id", Value: 1}}},
	})
	return err
}

// Get returns the document stored for one question of an assignment.
func (r *SubmissionDocumentRepository) Get(ctx context.Context, assignmentID, questionID string) (*model.CodeSubmissionDocument, error) {
	return r.findOne(ctx, bson.M{"assignment_id": assignmentID, "question_id": questionID})
}

// GetByAnswer returns the document mirrored for an answer.
func (r *SubmissionDocumentRepository) GetByAnswer(ctx context.Context, answerID string) (*model.CodeSubmissionDocument, error) {
	return r.findOne(ctx, bson.M{"answer_id": answerID})
}

// Save replaces the document for (assignment, question), inserting it when absent.
func (r *SubmissionDocumentRepository) Save(ctx context.Context, doc *model.CodeSubmissionDocument) error {
	filter := bson.M{"assignment_id": doc.AssignmentID, "question_id": doc.QuestionID}
	_, err := r.coll.ReplaceOne(ctx, filter, doc, options.Replace().SetUpsert(true))
	return err
}

// Delete removes the document for (assignment, question). Missing documents are not an error.
func (r *SubmissionDocumentRepository) Delete(ctx context.Context, assignmentID, questionID string) error {
	_, err := r.coll.DeleteOne(ctx, bson.M{"assignment_id": assignmentID, "question_id": questionID})
	return err
}

func (r *SubmissionDocumentRepository) findOne(ctx context.Context, filter bson.M) (*model.CodeSubmissionDocument, error) {
	var doc model.CodeSubmissionDocument
	if err := r.coll.FindOne(ctx, filter).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &doc, nil
}
