// Package services implements the users service: registration, login,
// token resolution for the gateway and the profile and admin operations
// on user records.
package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/dmitrijs2005/gophauth/internal/common"
	"github.com/dmitrijs2005/gophauth/internal/logging"
	"github.com/dmitrijs2005/gophauth/internal/server/auth"
	"github.com/dmitrijs2005/gophauth/internal/server/cache"
	"github.com/dmitrijs2005/gophauth/internal/server/config"
	"github.com/dmitrijs2005/gophauth/internal/server/gateway"
	"github.com/dmitrijs2005/gophauth/internal/server/models"
	"github.com/dmitrijs2005/gophauth/internal/server/store"
	"golang.org/x/crypto/bcrypt"
)

const (
	defaultPageSize = 10
	maxPageSize     = 100
)

// Tokens issues and resolves bearer tokens.
type Tokens interface {
	Issue(user *models.User) (string, error)
	Resolve(ctx context.Context, token string) (*models.User, error)
	Verify(token string) (*auth.Claims, error)
}

type UserService struct {
	store    store.Store
	tokens   Tokens
	cache    *cache.Cacher
	hashCost int
	logger   logging.Logger
	now      func() time.Time

	dummyOnce sync.Once
	dummyHash []byte
}

var _ gateway.TokenResolver = (*UserService)(nil)

func NewUserService(st store.Store, tokens Tokens, c *cache.Cacher, cfg *config.Config, logger logging.Logger) *UserService {
	if logger == nil {
		logger = logging.Nop()
	}
	return &UserService{
		store:    st,
		tokens:   tokens,
		cache:    c,
		hashCost: cfg.HashCost,
		logger:   logger.With("module", common.UsersNamespace),
		now:      func() time.Time { return time.Now().UTC() },
	}
}

func usernameTaken() error {
	return common.NewDetailedError(common.ErrConflict, "Username already exists",
		common.FieldError{Field: "username", Message: "is exist"})
}

func credentialMismatch() error {
	return common.NewDetailedError(common.ErrCredentialMismatch, "Username or password is invalid!",
		common.FieldError{Field: "username", Message: "is not found"})
}

func userNotFound() error {
	return common.NewDetailedError(common.ErrNotFound, "User not found!")
}

func (s *UserService) hash(password string) (string, error) {
	h, err := bcrypt.GenerateFromPassword([]byte(password), s.hashCost)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	return string(h), nil
}

// envelope wraps u with a token: the caller's own token when it belongs
// to u, a freshly issued one otherwise.
func (s *UserService) envelope(ctx context.Context, u *models.User) (*models.Envelope, error) {
	pub := u.Public()
	if sess, ok := gateway.SessionFromContext(ctx); ok && sess.User.ID == u.ID && sess.Token != "" {
		pub.Token = sess.Token
		return &models.Envelope{User: pub}, nil
	}

	token, err := s.tokens.Issue(u)
	if err != nil {
		return nil, err
	}
	pub.Token = token
	return &models.Envelope{User: pub}, nil
}

// Create registers a new user and returns it with a token.
func (s *UserService) Create(ctx context.Context, p UserParams) (*models.Envelope, error) {
	if err := validate(p, createRules); err != nil {
		return nil, err
	}

	if _, err := s.store.FindOne(ctx, store.Filter{Username: *p.Username}); err == nil {
		return nil, usernameTaken()
	} else if !errors.Is(err, common.ErrNotFound) {
		return nil, fmt.Errorf("check username: %w", err)
	}

	hashed, err := s.hash(*p.Password)
	if err != nil {
		return nil, err
	}

	user, err := s.store.Insert(ctx, &models.User{
		Username:  *p.Username,
		Password:  hashed,
		CreatedAt: s.now(),
	})
	if err != nil {
		if errors.Is(err, common.ErrConflict) {
			return nil, usernameTaken()
		}
		return nil, fmt.Errorf("insert user: %w", err)
	}

	s.logger.Info(ctx, "user registered", "id", user.ID, "username", user.Username)
	return s.envelope(ctx, user)
}

// compareDummy spends a bcrypt comparison when the username is unknown so
// both failure paths cost about the same.
func (s *UserService) compareDummy(password string) {
	s.dummyOnce.Do(func() {
		s.dummyHash, _ = bcrypt.GenerateFromPassword([]byte("gophauth-dummy-password"), s.hashCost)
	})
	_ = bcrypt.CompareHashAndPassword(s.dummyHash, []byte(password))
}

// Login checks the credentials and returns the user with a token. Unknown
// usernames and wrong passwords fail with the same error.
func (s *UserService) Login(ctx context.Context, p UserParams) (*models.Envelope, error) {
	if err := validate(p, loginRules); err != nil {
		return nil, err
	}

	user, err := s.store.FindOne(ctx, store.Filter{Username: *p.Username})
	if err != nil {
		if errors.Is(err, common.ErrNotFound) {
			s.compareDummy(*p.Password)
			s.logger.Debug(ctx, "login failed", "reason", "unknown username")
			return nil, credentialMismatch()
		}
		return nil, fmt.Errorf("find user: %w", err)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(*p.Password)); err != nil {
		s.logger.Debug(ctx, "login failed", "reason", "wrong password", "id", user.ID)
		return nil, credentialMismatch()
	}

	return s.envelope(ctx, user)
}

// ResolveToken returns the user a token belongs to, or nil. Results,
// including nil, are cached per token until the TTL or the next users
// mutation. A cached user is only returned while the token itself still
// verifies, so an entry never outlives the token's expiry.
func (s *UserService) ResolveToken(ctx context.Context, token string) (*models.User, error) {
	key := cache.Key(common.UsersNamespace, "resolveToken", token)
	user, err := cache.Memoize(ctx, s.cache, key, func(ctx context.Context) (*models.User, error) {
		return s.tokens.Resolve(ctx, token)
	})
	if err != nil || user == nil {
		return user, err
	}

	if _, err := s.tokens.Verify(token); err != nil {
		s.logger.Debug(ctx, "cached token no longer valid", "error", err)
		return nil, nil
	}
	return user, nil
}

func currentSession(ctx context.Context) (gateway.Session, error) {
	sess, ok := gateway.SessionFromContext(ctx)
	if !ok {
		return gateway.Session{}, common.ErrUnauthorized
	}
	return sess, nil
}

// Me returns the caller's own record with the token they presented.
func (s *UserService) Me(ctx context.Context) (*models.Envelope, error) {
	sess, err := currentSession(ctx)
	if err != nil {
		return nil, err
	}

	key := cache.Key(common.UsersNamespace, "me", sess.User.ID)
	user, err := cache.Memoize(ctx, s.cache, key, func(ctx context.Context) (*models.User, error) {
		return s.store.FindOne(ctx, store.Filter{ID: sess.User.ID})
	})
	if err != nil {
		if errors.Is(err, common.ErrNotFound) {
			return nil, userNotFound()
		}
		return nil, fmt.Errorf("find user: %w", err)
	}

	return &models.Envelope{User: models.PublicUser{ID: user.ID, Username: user.Username, Token: sess.Token}}, nil
}

// patch validates p against the update rules and turns it into a store
// patch for the record id.
func (s *UserService) patch(ctx context.Context, id string, p UserParams) (store.Patch, error) {
	if err := validate(p, updateRules); err != nil {
		return store.Patch{}, err
	}

	if p.Username != nil {
		_, err := s.store.FindOne(ctx, store.Filter{Username: *p.Username, ExcludeID: id})
		if err == nil {
			return store.Patch{}, usernameTaken()
		}
		if !errors.Is(err, common.ErrNotFound) {
			return store.Patch{}, fmt.Errorf("check username: %w", err)
		}
	}

	now := s.now()
	patch := store.Patch{Username: p.Username, UpdatedAt: &now}
	if p.Password != nil {
		hashed, err := s.hash(*p.Password)
		if err != nil {
			return store.Patch{}, err
		}
		patch.Password = &hashed
	}
	return patch, nil
}

func (s *UserService) updateByID(ctx context.Context, id string, p UserParams) (*models.User, error) {
	patch, err := s.patch(ctx, id, p)
	if err != nil {
		return nil, err
	}

	user, err := s.store.UpdateByID(ctx, id, patch)
	if err != nil {
		switch {
		case errors.Is(err, common.ErrNotFound):
			return nil, userNotFound()
		case errors.Is(err, common.ErrConflict):
			return nil, usernameTaken()
		}
		return nil, fmt.Errorf("update user: %w", err)
	}
	return user, nil
}

// UpdateMyself changes the caller's username and/or password.
func (s *UserService) UpdateMyself(ctx context.Context, p UserParams) (*models.Envelope, error) {
	sess, err := currentSession(ctx)
	if err != nil {
		return nil, err
	}

	user, err := s.updateByID(ctx, sess.User.ID, p)
	if err != nil {
		return nil, err
	}

	s.logger.Info(ctx, "user updated", "id", user.ID)
	return s.envelope(ctx, user)
}

// ListParams selects one page of users.
type ListParams struct {
	Page     int
	PageSize int
	Sort     string
}

var sortable = map[string]bool{
	"": true, "username": true, "-username": true, "createdAt": true, "-createdAt": true,
}

// List returns one page of users. Page defaults to 1 and PageSize to 10,
// capped at 100.
func (s *UserService) List(ctx context.Context, lp ListParams) (*models.Page, error) {
	if lp.Page == 0 {
		lp.Page = 1
	}
	if lp.PageSize == 0 {
		lp.PageSize = defaultPageSize
	}
	if lp.PageSize > maxPageSize {
		lp.PageSize = maxPageSize
	}

	var fields []common.FieldError
	if lp.Page < 0 {
		fields = append(fields, common.FieldError{Field: "page", Message: "must be a positive number"})
	}
	if lp.PageSize < 0 {
		fields = append(fields, common.FieldError{Field: "pageSize", Message: "must be a positive number"})
	}
	if !sortable[lp.Sort] {
		fields = append(fields, common.FieldError{Field: "sort", Message: "is not a sortable field"})
	}
	if len(fields) > 0 {
		return nil, common.NewDetailedError(common.ErrValidation, "Parameters validation error!", fields...)
	}

	filter := store.Filter{Sort: lp.Sort, Limit: lp.PageSize, Offset: (lp.Page - 1) * lp.PageSize}
	users, err := s.store.Find(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}

	total := 0
	if len(users) > 0 || lp.Page > 1 {
		if total, err = s.store.Count(ctx, store.Filter{}); err != nil {
			return nil, fmt.Errorf("count users: %w", err)
		}
	}

	rows := make([]models.PublicUser, 0, len(users))
	for _, u := range users {
		rows = append(rows, u.Public())
	}

	return &models.Page{
		Rows:       rows,
		Total:      total,
		Page:       lp.Page,
		PageSize:   lp.PageSize,
		TotalPages: (total + lp.PageSize - 1) / lp.PageSize,
	}, nil
}

// Get returns the public projection of user id.
func (s *UserService) Get(ctx context.Context, id string) (*models.PublicUser, error) {
	user, err := s.store.FindOne(ctx, store.Filter{ID: id})
	if err != nil {
		if errors.Is(err, common.ErrNotFound) {
			return nil, userNotFound()
		}
		return nil, fmt.Errorf("find user: %w", err)
	}
	pub := user.Public()
	return &pub, nil
}

// Update changes user id with the same rules as UpdateMyself.
func (s *UserService) Update(ctx context.Context, id string, p UserParams) (*models.PublicUser, error) {
	user, err := s.updateByID(ctx, id, p)
	if err != nil {
		return nil, err
	}
	s.logger.Info(ctx, "user updated", "id", user.ID)
	pub := user.Public()
	return &pub, nil
}

// Remove deletes user id and returns the removed record.
func (s *UserService) Remove(ctx context.Context, id string) (*models.PublicUser, error) {
	user, err := s.store.RemoveByID(ctx, id)
	if err != nil {
		if errors.Is(err, common.ErrNotFound) {
			return nil, userNotFound()
		}
		return nil, fmt.Errorf("remove user: %w", err)
	}
	s.logger.Info(ctx, "user removed", "id", user.ID)
	pub := user.Public()
	return &pub, nil
}
