package mongo

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/pharmaai/backoffice-auth/internal/core/domain"
)

const (
	collectionUsers       = "users"
	collectionProfiles    = "profiles"
	collectionPermissions = "permissions"
)

// DirectoryRepository implements ports.DataStore over the users, profiles
// and permissions collections.
type DirectoryRepository struct {
	users       *mongo.Collection
	permissions *mongo.Collection
	log         zerolog.Logger
}

func NewDirectoryRepository(db *mongo.Database, log zerolog.Logger) *DirectoryRepository {
	return &DirectoryRepository{
		users:       db.Collection(collectionUsers),
		permissions: db.Collection(collectionPermissions),
		log:         log.With().Str("component", "directory").Logger(),
	}
}

type profileDoc struct {
	ID               primitive.ObjectID `bson:"_id"`
	Name             string             `bson:"name"`
	Type             string             `bson:"type"`
	DefaultDashboard string             `bson:"default_dashboard,omitempty"`
}

type userDoc struct {
	ID           primitive.ObjectID `bson:"_id"`
	SubjectID    string             `bson:"subject_id"`
	Email        string             `bson:"email"`
	Name         string             `bson:"name"`
	Phone        string             `bson:"phone,omitempty"`
	ProfileID    primitive.ObjectID `bson:"profile_id,omitempty"`
	Active       *bool              `bson:"active"`
	LastAccessAt *time.Time         `bson:"last_access_at,omitempty"`
	Profile      *profileDoc        `bson:"profile,omitempty"`
}

type permissionDoc struct {
	ProfileID primitive.ObjectID `bson:"profile_id"`
	Module    string             `bson:"module"`
	Action    string             `bson:"action"`
	Level     string             `bson:"level,omitempty"`
	Allowed   *bool              `bson:"allowed"`
}

// FindUserBySubject loads the user keyed by an identity subject together
// with its profile.
func (r *DirectoryRepository) FindUserBySubject(ctx context.Context, subjectID string) (*domain.User, error) {
	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: bson.D{{Key: "subject_id", Value: subjectID}}}},
		{{Key: "$limit", Value: 1}},
		{{Key: "$lookup", Value: bson.D{
			{Key: "from", Value: collectionProfiles},
			{Key: "localField", Value: "profile_id"},
			{Key: "foreignField", Value: "_id"},
			{Key: "as", Value: "profile"},
		}}},
		{{Key: "$unwind", Value: bson.D{
			{Key: "path", Value: "$profile"},
			{Key: "preserveNullAndEmptyArrays", Value: true},
		}}},
	}

	cur, err := r.users.Aggregate(ctx, pipeline)
	if err != nil {
		return nil, fmt.Errorf("find user: %w", err)
	}
	defer cur.Close(ctx)

	if !cur.Next(ctx) {
		if err := cur.Err(); err != nil {
			return nil, fmt.Errorf("find user: %w", err)
		}
		return nil, domain.ErrUserRecordNotFound
	}

	var doc userDoc
	if err := cur.Decode(&doc); err != nil {
		return nil, fmt.Errorf("decode user: %w", err)
	}
	return toUser(doc), nil
}

// FindPermissionsByProfile returns the permission set of a profile.
func (r *DirectoryRepository) FindPermissionsByProfile(ctx context.Context, profileID string) ([]domain.Permission, error) {
	oid, err := primitive.ObjectIDFromHex(profileID)
	if err != nil {
		return nil, fmt.Errorf("invalid profile id %q: %w", profileID, err)
	}

	cur, err := r.permissions.Find(ctx, bson.M{"profile_id": oid})
	if err != nil {
		return nil, fmt.Errorf("find permissions: %w", err)
	}
	var docs []permissionDoc
	if err := cur.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("decode permissions: %w", err)
	}
	perms, merged := toPermissions(docs)
	if len(merged) > 0 {
		r.log.Warn().Str("profile_id", profileID).Strs("merged", merged).
			Msg("permission entries collide after normalization, kept the most restrictive")
	}
	return perms, nil
}

// TouchLastAccess stamps the user's last access time.
func (r *DirectoryRepository) TouchLastAccess(ctx context.Context, subjectID string, at time.Time) error {
	res, err := r.users.UpdateOne(ctx,
		bson.M{"subject_id": subjectID},
		bson.M{"$set": bson.M{"last_access_at": at.UTC()}},
	)
	if err != nil {
		return fmt.Errorf("touch last access: %w", err)
	}
	if res.MatchedCount == 0 {
		return domain.ErrUserRecordNotFound
	}
	return nil
}

// EnsureIndexes creates the lookup indexes and the unique (profile, module,
// action) index that keeps permission sets free of duplicates.
func (r *DirectoryRepository) EnsureIndexes(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	if _, err := r.users.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "subject_id", Value: 1}},
		Options: options.Index().SetUnique(true),
	}); err != nil {
		return fmt.Errorf("users index: %w", err)
	}

	// case-insensitive, matching how entries are normalized on read
	_, err := r.permissions.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{
			{Key: "profile_id", Value: 1},
			{Key: "module", Value: 1},
			{Key: "action", Value: 1},
		},
		Options: options.Index().SetUnique(true).SetCollation(&options.Collation{Locale: "en", Strength: 2}),
	})
	if err != nil {
		return fmt.Errorf("permissions index: %w", err)
	}
	return nil
}

// toUser normalizes a stored user. A missing active flag counts as inactive
// and an unknown profile type is left empty so routing treats it as
// unconfigured.
func toUser(doc userDoc) *domain.User {
	u := &domain.User{
		ID:           doc.ID.Hex(),
		SubjectID:    doc.SubjectID,
		Email:        strings.ToLower(strings.TrimSpace(doc.Email)),
		Name:         doc.Name,
		Phone:        doc.Phone,
		Active:       doc.Active != nil && *doc.Active,
		LastAccessAt: doc.LastAccessAt,
	}
	if !doc.ProfileID.IsZero() {
		u.ProfileID = doc.ProfileID.Hex()
	}
	if doc.Profile != nil {
		u.Profile = &domain.Profile{
			ID:               doc.Profile.ID.Hex(),
			Name:             doc.Profile.Name,
			Type:             domain.ParseProfileType(doc.Profile.Type),
			DefaultDashboard: domain.DashboardKind(strings.ToLower(strings.TrimSpace(doc.Profile.DefaultDashboard))),
		}
		if u.ProfileID == "" {
			u.ProfileID = u.Profile.ID
		}
	}
	return u
}

// toPermissions normalizes stored permissions. Entries without a module or
// action are dropped, a missing level means ALL and a missing allowed flag
// denies.
//
// Distinct stored rows can normalize to the same (module, action) pair.
// Those are merged into one entry that is allowed only if every row is, at
// the narrowest level among them; the merged pairs are returned as
// "module/action".
func toPermissions(docs []permissionDoc) ([]domain.Permission, []string) {
	perms := make([]domain.Permission, 0, len(docs))
	index := make(map[[2]string]int, len(docs))
	var merged []string
	for _, d := range docs {
		module := strings.ToLower(strings.TrimSpace(d.Module))
		action := strings.ToLower(strings.TrimSpace(d.Action))
		if module == "" || action == "" {
			continue
		}
		p := domain.Permission{
			Module:  domain.Module(module),
			Action:  domain.Action(action),
			Level:   domain.ParseLevel(d.Level),
			Allowed: d.Allowed != nil && *d.Allowed,
		}

		k := [2]string{module, action}
		i, dup := index[k]
		if !dup {
			index[k] = len(perms)
			perms = append(perms, p)
			continue
		}
		prev := &perms[i]
		if levelRank(p.Level) < levelRank(prev.Level) {
			prev.Level = p.Level
		}
		prev.Allowed = prev.Allowed && p.Allowed
		if key := module + "/" + action; !slices.Contains(merged, key) {
			merged = append(merged, key)
		}
	}
	return perms, merged
}

func levelRank(l domain.Level) int {
	switch l {
	case domain.LevelOwn:
		return 0
	case domain.LevelTeam:
		return 1
	default:
		return 2
	}
}
