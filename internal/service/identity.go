package service

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"sort"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/recetario/backend/internal/cache"
	"github.com/recetario/backend/internal/models"
	"github.com/recetario/backend/internal/policy"
	"github.com/recetario/backend/internal/txn"
)

// UsersPageSize is the page size for every user listing.
const UsersPageSize = 25

const tokenAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789"

// UserUpdate carries the mutable user fields. The admin flag is deliberately
// absent: updates preserve it unconditionally, promotion goes through
// SetAdmin.
type UserUpdate struct {
	Nick    string
	Name    string
	Surname string
	City    string
}

// UserPage is one page of users plus the total count of the filtered set.
type UserPage struct {
	Items []models.User `json:"items" xml:"users>user"`
	Total int64         `json:"total" xml:"total"`
}

// IdentityService owns users and credentials: registration, credential
// authentication, the admin role and the admin-floor invariant.
type IdentityService struct {
	co    *txn.Coordinator
	cache cache.Cache
}

func NewIdentityService(co *txn.Coordinator, c cache.Cache) *IdentityService {
	return &IdentityService{co: co, cache: c}
}

// Register creates a user with a fresh credential. The nick check is a fast
// path; the unique index settles concurrent registrations. Self-registered
// users are never admins.
func (s *IdentityService) Register(ctx context.Context, nick, name, surname, city string) (*models.User, string, error) {
	user := &models.User{Nick: nick, Name: name, Surname: surname, City: city}
	if err := user.Validate(); err != nil {
		return nil, "", validationError(err)
	}

	var count int64
	if err := s.co.DB().WithContext(ctx).Model(&models.User{}).Where("nick = ?", nick).Count(&count).Error; err != nil {
		return nil, "", storeError(err)
	}
	if count > 0 {
		return nil, "", fmt.Errorf("%w: nick %q already exists", ErrConflict, nick)
	}

	var token string
	err := s.co.Run(ctx, func(u *txn.Unit) error {
		if err := u.Tx.Create(user).Error; err != nil {
			return storeError(err)
		}
		// Loop until the generated token is free; collisions are vanishingly
		// rare but the uniqueness invariant is absolute.
		for {
			t, err := GenerateCredentialToken()
			if err != nil {
				return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
			}
			var taken int64
			if err := u.Tx.Model(&models.Credential{}).Where("token = ?", t).Count(&taken).Error; err != nil {
				return storeError(err)
			}
			if taken == 0 {
				token = t
				break
			}
		}
		cred := &models.Credential{UserID: user.ID, Token: token}
		if err := u.Tx.Create(cred).Error; err != nil {
			return storeError(err)
		}
		return nil
	})
	if err != nil {
		return nil, "", err
	}
	return user, token, nil
}

// Authenticate resolves a bearer token to its user. Pure lookup, no side
// effects, no caching.
func (s *IdentityService) Authenticate(ctx context.Context, token string) (*models.User, error) {
	db := s.co.DB().WithContext(ctx)
	var cred models.Credential
	if err := db.Where("token = ?", token).First(&cred).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: unknown credential", ErrForbidden)
		}
		return nil, storeError(err)
	}
	var user models.User
	if err := db.First(&user, "id = ?", cred.UserID).Error; err != nil {
		return nil, storeError(err)
	}
	return &user, nil
}

// GetUser reads through the cache by id.
func (s *IdentityService) GetUser(ctx context.Context, id uuid.UUID) (*models.User, error) {
	key := cache.Entity(cache.KindUser, id.String())
	var user models.User
	if err := s.cache.Get(ctx, key, &user); err == nil {
		return &user, nil
	}
	if err := s.co.DB().WithContext(ctx).First(&user, "id = ?", id).Error; err != nil {
		return nil, storeError(err)
	}
	_ = s.cache.Set(ctx, key, user, cache.NoTTL)
	return &user, nil
}

// GetUserByNick reads through the cache by the alternate nick key.
func (s *IdentityService) GetUserByNick(ctx context.Context, nick string) (*models.User, error) {
	key := cache.Entity(cache.KindUser, nick)
	var user models.User
	if err := s.cache.Get(ctx, key, &user); err == nil {
		return &user, nil
	}
	if err := s.co.DB().WithContext(ctx).Where("nick = ?", nick).First(&user).Error; err != nil {
		return nil, storeError(err)
	}
	_ = s.cache.Set(ctx, key, user, cache.NoTTL)
	return &user, nil
}

// ListUsers returns one page of users. List caches are TTL-bounded, never
// proactively invalidated.
func (s *IdentityService) ListUsers(ctx context.Context, page int, alphabetical bool) (*UserPage, error) {
	key := cache.List(cache.KindUserList, page, fmt.Sprintf("%t", alphabetical))
	return s.userPage(ctx, key, alphabetical, func(db *gorm.DB) *gorm.DB { return db })
}

// ListAdmins returns one page of administrators.
func (s *IdentityService) ListAdmins(ctx context.Context, page int, alphabetical bool) (*UserPage, error) {
	key := cache.List(cache.KindAdminList, page, fmt.Sprintf("%t", alphabetical))
	return s.userPage(ctx, key, alphabetical, func(db *gorm.DB) *gorm.DB {
		return db.Where("is_admin = ?", true)
	})
}

// SearchUsers filters by any combination of name, surname and city.
func (s *IdentityService) SearchUsers(ctx context.Context, name, surname, city string, page int, alphabetical bool) (*UserPage, error) {
	key := cache.List(cache.KindUserSearch, page, name, surname, city, fmt.Sprintf("%t", alphabetical))
	return s.userPage(ctx, key, alphabetical, func(db *gorm.DB) *gorm.DB {
		if name != "" {
			db = db.Where("name = ?", name)
		}
		if surname != "" {
			db = db.Where("surname = ?", surname)
		}
		if city != "" {
			db = db.Where("city = ?", city)
		}
		return db
	})
}

func (s *IdentityService) userPage(ctx context.Context, key cache.Key, alphabetical bool, filter func(*gorm.DB) *gorm.DB) (*UserPage, error) {
	var cached UserPage
	if err := s.cache.Get(ctx, key, &cached); err == nil {
		return &cached, nil
	}
	db := filter(s.co.DB().WithContext(ctx).Model(&models.User{}))
	var total int64
	if err := db.Count(&total).Error; err != nil {
		return nil, storeError(err)
	}
	var items []models.User
	if err := db.Order("id").Offset(key.Page() * UsersPageSize).Limit(UsersPageSize).Find(&items).Error; err != nil {
		return nil, storeError(err)
	}
	if alphabetical {
		sort.SliceStable(items, func(i, j int) bool { return items[i].Nick < items[j].Nick })
	}
	result := &UserPage{Items: items, Total: total}
	_ = s.cache.Set(ctx, key, result, cache.ListTTL)
	return result, nil
}

// SetAdmin grants or revokes the admin role. Revoking the sole admin is
// rejected to keep the admin floor intact.
func (s *IdentityService) SetAdmin(ctx context.Context, actorID, targetID uuid.UUID, makeAdmin bool) error {
	actor, err := s.loadActor(ctx, actorID)
	if err != nil {
		return err
	}
	if !policy.CanAdminister(actor.IsAdmin) {
		return fmt.Errorf("%w: admin role required", ErrForbidden)
	}

	db := s.co.DB().WithContext(ctx)
	var target models.User
	if err := db.First(&target, "id = ?", targetID).Error; err != nil {
		return storeError(err)
	}
	if target.IsAdmin == makeAdmin {
		return nil
	}
	if !makeAdmin && target.IsAdmin {
		admins, err := s.adminCount(ctx, db)
		if err != nil {
			return err
		}
		if admins <= 1 {
			return ErrAdminFloor
		}
	}

	return s.co.Run(ctx, func(u *txn.Unit) error {
		if err := u.Tx.Model(&models.User{}).Where("id = ?", targetID).Update("is_admin", makeAdmin).Error; err != nil {
			return storeError(err)
		}
		u.Invalidate(
			cache.Entity(cache.KindUser, target.ID.String()),
			cache.Entity(cache.KindUser, target.Nick),
		)
		return nil
	})
}

// UpdateUser rewrites the mutable fields of a user. The target's admin flag
// survives unconditionally, whoever performs the update.
func (s *IdentityService) UpdateUser(ctx context.Context, actorID, targetID uuid.UUID, fields UserUpdate) error {
	actor, err := s.loadActor(ctx, actorID)
	if err != nil {
		return err
	}
	db := s.co.DB().WithContext(ctx)
	var target models.User
	if err := db.First(&target, "id = ?", targetID).Error; err != nil {
		return storeError(err)
	}
	if !policy.CanModify(actor.ID, target.ID, actor.IsAdmin) {
		return fmt.Errorf("%w: not the account owner", ErrForbidden)
	}

	updated := models.User{Nick: fields.Nick, Name: fields.Name, Surname: fields.Surname, City: fields.City}
	if err := updated.Validate(); err != nil {
		return validationError(err)
	}

	// Fast-path nick collision check; the unique index is the arbiter.
	var other models.User
	err = db.Where("nick = ?", fields.Nick).First(&other).Error
	if err == nil && other.ID != targetID {
		return fmt.Errorf("%w: nick %q already exists", ErrConflict, fields.Nick)
	}
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return storeError(err)
	}

	return s.co.Run(ctx, func(u *txn.Unit) error {
		updates := map[string]any{
			"nick":    fields.Nick,
			"name":    fields.Name,
			"surname": fields.Surname,
			"city":    fields.City,
		}
		if err := u.Tx.Model(&models.User{}).Where("id = ?", targetID).Updates(updates).Error; err != nil {
			return storeError(err)
		}
		u.Invalidate(
			cache.Entity(cache.KindUser, target.ID.String()),
			cache.Entity(cache.KindUser, target.Nick),
		)
		// A changed nick leaves a stale alternate-key entry behind unless the
		// new value is covered too.
		if fields.Nick != target.Nick {
			u.Invalidate(cache.Entity(cache.KindUser, fields.Nick))
		}
		var recipes []models.Recipe
		if err := u.Tx.Where("user_id = ?", targetID).Find(&recipes).Error; err != nil {
			return storeError(err)
		}
		for _, r := range recipes {
			u.Invalidate(
				cache.Entity(cache.KindRecipe, r.ID.String()),
				cache.Entity(cache.KindRecipe, r.Title),
			)
		}
		return nil
	})
}

// DeleteUser removes a user, its credential and its recipes in one unit.
// Deleting an absent user succeeds without touching the store. When an admin
// targets the sole admin the floor violation takes priority; a
// non-authorized actor gets Forbidden regardless of the floor state.
func (s *IdentityService) DeleteUser(ctx context.Context, actorID, targetID uuid.UUID) error {
	db := s.co.DB().WithContext(ctx)
	var target models.User
	if err := db.First(&target, "id = ?", targetID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil
		}
		return storeError(err)
	}
	actor, err := s.loadActor(ctx, actorID)
	if err != nil {
		return err
	}
	if target.IsAdmin && actor.IsAdmin {
		admins, err := s.adminCount(ctx, db)
		if err != nil {
			return err
		}
		if admins <= 1 {
			return ErrAdminFloor
		}
	}
	if !policy.CanModify(actor.ID, target.ID, actor.IsAdmin) {
		return fmt.Errorf("%w: not the account owner", ErrForbidden)
	}

	return s.co.Run(ctx, func(u *txn.Unit) error {
		var recipes []models.Recipe
		if err := u.Tx.Where("user_id = ?", targetID).Find(&recipes).Error; err != nil {
			return storeError(err)
		}
		for i := range recipes {
			if err := u.Tx.Model(&recipes[i]).Association("Ingredients").Clear(); err != nil {
				return storeError(err)
			}
			if err := u.Tx.Delete(&models.Recipe{}, "id = ?", recipes[i].ID).Error; err != nil {
				return storeError(err)
			}
			u.Invalidate(
				cache.Entity(cache.KindRecipe, recipes[i].ID.String()),
				cache.Entity(cache.KindRecipe, recipes[i].Title),
			)
		}
		if err := u.Tx.Where("user_id = ?", targetID).Delete(&models.Credential{}).Error; err != nil {
			return storeError(err)
		}
		if err := u.Tx.Delete(&models.User{}, "id = ?", targetID).Error; err != nil {
			return storeError(err)
		}
		u.Invalidate(
			cache.Entity(cache.KindUser, target.ID.String()),
			cache.Entity(cache.KindUser, target.Nick),
		)
		return nil
	})
}

func (s *IdentityService) loadActor(ctx context.Context, actorID uuid.UUID) (*models.User, error) {
	var actor models.User
	if err := s.co.DB().WithContext(ctx).First(&actor, "id = ?", actorID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: unknown actor", ErrForbidden)
		}
		return nil, storeError(err)
	}
	return &actor, nil
}

func (s *IdentityService) adminCount(ctx context.Context, db *gorm.DB) (int64, error) {
	var admins int64
	if err := db.Model(&models.User{}).Where("is_admin = ?", true).Count(&admins).Error; err != nil {
		return 0, storeError(err)
	}
	return admins, nil
}

// GenerateCredentialToken draws 30 alphanumeric characters from crypto/rand.
func GenerateCredentialToken() (string, error) {
	buf := make([]byte, models.TokenLength)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	for i, b := range buf {
		buf[i] = tokenAlphabet[int(b)%len(tokenAlphabet)]
	}
	return string(buf), nil
}
