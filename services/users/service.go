package users

import (
	"context"
	"encoding/json"
	"time"

	"github.com/ghuser/relay/pkg/broker"
	"github.com/ghuser/relay/pkg/cache"
	"github.com/ghuser/relay/pkg/database"
	"github.com/ghuser/relay/pkg/kernel"
	"github.com/ghuser/relay/pkg/logger"
	"github.com/ghuser/relay/pkg/repository"
	"github.com/ghuser/relay/pkg/svcerr"
	"github.com/ghuser/relay/pkg/validator"
)

const ServiceName = "users"

const cacheTTL = 10 * time.Minute

// CreateUserRequest is CreateUser's payload. Validated by go-playground
// tags before the handler runs (spec §4.1 step 3).
type CreateUserRequest struct {
	Name  string `json:"name" validate:"required,min=1,max=200"`
	Email string `json:"email" validate:"required,email"`
}

// GetUserRequest is GetUser's payload.
type GetUserRequest struct {
	ID string `json:"id"`
}

// Service wires a repository and cache around the generated handlers.
type Service struct {
	repo  *repository.Repository[User]
	cache *cache.Cache[User]
}

// New builds the users service's Kernel, backed by db for persistence and
// redisClient for the GetUser read-through cache.
func New(br broker.Broker, db *database.Database, redisClient *cache.RedisClient, log logger.Logger, requestTimeout time.Duration) (*kernel.Kernel, error) {
	s := &Service{
		repo: repository.New(db, repository.Table[User]{
			Name: "users", Columns: userColumns,
			Scan: scanUser, Values: userValues, NewID: newUserID,
		}),
		cache: cache.NewCache[User](redisClient, "users", cacheTTL),
	}

	k := kernel.New(ServiceName, br, log, requestTimeout)

	if err := k.Registry.ValidatedRPC("CreateUser", validator.ForSchema[CreateUserRequest](), s.createUser); err != nil {
		return nil, err
	}
	if err := k.Registry.RPC("GetUser", s.getUser); err != nil {
		return nil, err
	}
	return k, nil
}

func (s *Service) createUser(ctx any, payload []byte) (any, error) {
	var req CreateUserRequest
	if err := json.Unmarshal(payload, &req); err != nil {
		return nil, err
	}

	user := &User{Name: req.Name, Email: req.Email}
	created, err := s.repo.Create(ctx.(context.Context), user)
	if err != nil {
		return nil, err
	}
	return created, nil
}

func (s *Service) getUser(ctx any, payload []byte) (any, error) {
	var req GetUserRequest
	if err := json.Unmarshal(payload, &req); err != nil {
		return nil, err
	}
	if req.ID == "" {
		return nil, svcerr.NewValidationError("id is required", nil)
	}

	c := ctx.(context.Context)
	return s.cache.GetOrLoad(c, req.ID, func(c context.Context) (*User, error) {
		return s.repo.Get(c, req.ID)
	})
}
