package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/ahmetcoskunkizilkaya/noise-backend/internal/models"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var (
	ErrNotFound          = errors.New("document not found")
	ErrUnknownCollection = errors.New("unknown collection")
)

// Ref addresses a single document.
type Ref struct {
	Collection string
	ID         string
}

func (r Ref) String() string {
	return r.Collection + "/" + r.ID
}

// Fields is a partial update keyed by column name. Values may be plain
// values, Increment(n) or ServerTimestamp.
type Fields map[string]any

type increment struct{ n int64 }

type serverTimestamp struct{}

// Increment adds n to the column in place without reading it first.
func Increment(n int64) any {
	return increment{n: n}
}

// ServerTimestamp sets the column to the database clock at write time.
var ServerTimestamp any = serverTimestamp{}

// Store is the document-store facade the handlers talk to.
type Store struct {
	db *gorm.DB
}

func New(db *gorm.DB) *Store {
	return &Store{db: db}
}

func (s *Store) GetUser(ctx context.Context, uid string) (*models.User, error) {
	var user models.User
	err := s.db.WithContext(ctx).Where(models.ColUID+" = ?", uid).First(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get user %s: %w", uid, err)
	}
	return &user, nil
}

// SetUser writes the whole document, replacing any record at the same uid.
func (s *Store) SetUser(ctx context.Context, user *models.User) error {
	err := s.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: models.ColUID}},
			UpdateAll: true,
		}).
		Create(user).Error
	if err != nil {
		return fmt.Errorf("set user %s: %w", user.UID, err)
	}
	return nil
}

// UpdateUser applies a partial update. It fails with ErrNotFound when no
// record exists at uid.
func (s *Store) UpdateUser(ctx context.Context, uid string, fields Fields) error {
	if len(fields) == 0 {
		return nil
	}

	updates := make(map[string]interface{}, len(fields))
	for col, v := range fields {
		switch x := v.(type) {
		case increment:
			// Counters only grow.
			if x.n < 0 {
				return fmt.Errorf("update user %s: %w: negative increment of %s", uid, models.ErrInvalidUser, col)
			}
			updates[col] = gorm.Expr("? + ?", clause.Column{Name: col}, x.n)
		case serverTimestamp:
			updates[col] = gorm.Expr("CURRENT_TIMESTAMP")
		default:
			updates[col] = v
		}
	}

	result := s.db.WithContext(ctx).
		Model(&models.User{}).
		Where(models.ColUID+" = ?", uid).
		Updates(updates)
	if result.Error != nil {
		return fmt.Errorf("update user %s: %w", uid, result.Error)
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("update user %s: %w", uid, ErrNotFound)
	}
	return nil
}

// UsersByApartment returns every user whose apartmentInfo.apartmentId equals
// apartmentID.
func (s *Store) UsersByApartment(ctx context.Context, apartmentID string) ([]models.User, error) {
	var users []models.User
	err := s.db.WithContext(ctx).
		Where(datatypes.JSONQuery(models.ColApartmentInfo).Equals(apartmentID, models.KeyApartmentID)).
		Find(&users).Error
	if err != nil {
		return nil, fmt.Errorf("query users by apartment %s: %w", apartmentID, err)
	}
	return users, nil
}

// OwnedBy returns refs to every document in a content collection whose owner
// is uid.
func (s *Store) OwnedBy(ctx context.Context, collection, uid string) ([]Ref, error) {
	model, err := modelFor(collection)
	if err != nil {
		return nil, err
	}
	if collection == models.CollectionUsers {
		return nil, fmt.Errorf("%w: %s is not a content collection", ErrUnknownCollection, collection)
	}

	var ids []string
	err = s.db.WithContext(ctx).
		Model(model).
		Where(models.ColOwner+" = ?", uid).
		Pluck("id", &ids).Error
	if err != nil {
		return nil, fmt.Errorf("query %s owned by %s: %w", collection, uid, err)
	}

	refs := make([]Ref, 0, len(ids))
	for _, id := range ids {
		refs = append(refs, Ref{Collection: collection, ID: id})
	}
	return refs, nil
}

func (s *Store) Batch() *Batch {
	return &Batch{db: s.db}
}

func modelFor(collection string) (interface{}, error) {
	switch collection {
	case models.CollectionUsers:
		return &models.User{}, nil
	case models.CollectionPosts:
		return &models.Post{}, nil
	case models.CollectionComments:
		return &models.Comment{}, nil
	case models.CollectionNoiseRecords:
		return &models.NoiseRecord{}, nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownCollection, collection)
	}
}

func keyColumn(collection string) string {
	if collection == models.CollectionUsers {
		return models.ColUID
	}
	return "id"
}
