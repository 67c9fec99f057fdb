package mongo

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/pharmaai/backoffice-auth/internal/core/domain"
	"github.com/pharmaai/backoffice-auth/internal/core/ports"
)

const authCollection = "auth_users"

// CredentialRepository reads password credentials for the identity provider.
type CredentialRepository struct {
	coll *mongo.Collection
}

func NewCredentialRepository(db *mongo.Database) *CredentialRepository {
	return &CredentialRepository{coll: db.Collection(authCollection)}
}

type credentialDoc struct {
	SubjectID    string `bson:"subject_id"`
	Email        string `bson:"email"`
	PasswordHash string `bson:"password_hash"`
	Disabled     bool   `bson:"disabled,omitempty"`
}

// FindByEmail returns the credential for email, matched case-insensitively,
// or domain.ErrUserRecordNotFound.
func (r *CredentialRepository) FindByEmail(ctx context.Context, email string) (*ports.Credential, error) {
	var doc credentialDoc
	err := r.coll.FindOne(ctx, bson.M{"email": strings.ToLower(strings.TrimSpace(email))}).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, domain.ErrUserRecordNotFound
		}
		return nil, fmt.Errorf("find credential: %w", err)
	}

	return &ports.Credential{
		SubjectID:    doc.SubjectID,
		Email:        doc.Email,
		PasswordHash: doc.PasswordHash,
		Disabled:     doc.Disabled,
	}, nil
}
