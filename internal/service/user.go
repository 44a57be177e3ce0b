package service

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/lizhen986988664/distributionMini/internal/model"
)

// LoginResult описывает результат входа пользователя.
type LoginResult struct {
	User  *model.User `json:"userInfo"`
	IsNew bool        `json:"isNewUser"`
}

// Login выполняет вход по временному коду мини-программы. Код
// обменивается на openid через внешний сервис идентификации; при
// отсутствии сервиса код трактуется как openid напрямую (режим
// разработки). Если пользователь не найден, он создаётся с профилем
// по умолчанию.
func (s *Service) Login(ctx context.Context, code string) (*LoginResult, error) {
	if code == "" {
		return nil, fmt.Errorf("%w: empty code", ErrValidation)
	}

	openid := code
	if s.identityClient != nil {
		resolved, err := s.identityClient.ResolveCode(ctx, code)
		if err != nil {
			return nil, fmt.Errorf("resolve code: %w", err)
		}
		openid = resolved
	}

	user, isNew, err := s.repo.GetOrCreateUser(ctx, openid)
	if err != nil {
		return nil, fmt.Errorf("get or create user: %w", err)
	}
	if isNew {
		s.logger.Info("new user registered", zap.String("openid", openid))
	}

	return &LoginResult{User: user, IsNew: isNew}, nil
}

// GetUserInfo возвращает профиль пользователя.
func (s *Service) GetUserInfo(ctx context.Context, openid string) (*model.User, error) {
	return s.repo.GetUser(ctx, openid)
}

// UpdateUserInfoParams содержит обновляемые поля профиля. Пустые поля
// не затираются.
type UpdateUserInfoParams struct {
	Nickname string `json:"nickName"`
	Avatar   string `json:"avatarUrl"`
	Phone    string `json:"phone"`
	Address  string `json:"address"`
}

// UpdateUserInfo обновляет профиль пользователя.
func (s *Service) UpdateUserInfo(ctx context.Context, openid string, p UpdateUserInfoParams) (*model.User, error) {
	return s.repo.UpdateUserProfile(ctx, openid, p.Nickname, p.Avatar, p.Phone, p.Address)
}
