package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/lizhen986988664/distributionMini/internal/model"
	"github.com/lizhen986988664/distributionMini/internal/repository"
	"github.com/lizhen986988664/distributionMini/internal/validation"
)

const (
	// starCardMaxActive — предел одновременно активных карт пользователя.
	starCardMaxActive = 10
	// starCardMaxReceive — предел получений одной карты по умолчанию.
	starCardMaxReceive = 100
	// starCardValidDays — срок действия карты по умолчанию.
	starCardValidDays = 30
	// starCardDefaultReward — вознаграждение по умолчанию.
	starCardDefaultReward = 5.00

	// shareCodeAttempts — число попыток сгенерировать уникальный код.
	shareCodeAttempts = 5
)

// CreateCardParams содержит параметры создания реферальной карты.
type CreateCardParams struct {
	Title        string  `json:"title"`
	Type         string  `json:"cardType"`
	RewardAmount float64 `json:"rewardAmount"`
}

// CreateCard создаёт новую реферальную карту. Незаполненные параметры
// заменяются значениями по умолчанию. При коллизии кода шаринга
// генерация повторяется.
func (s *Service) CreateCard(ctx context.Context, openid string, p CreateCardParams) (*model.StarCard, error) {
	if p.Title == "" {
		p.Title = "海星分享卡"
	}
	if p.Type == "" {
		p.Type = "trial"
	}
	if p.RewardAmount == 0 {
		p.RewardAmount = starCardDefaultReward
	}
	if p.RewardAmount < 0 {
		return nil, fmt.Errorf("%w: reward amount must not be negative", ErrValidation)
	}

	card := &model.StarCard{
		CreatorOpenID:   openid,
		Title:           p.Title,
		Type:            p.Type,
		RewardAmount:    round2(p.RewardAmount),
		Status:          model.StarCardStatusActive,
		MaxReceiveCount: starCardMaxReceive,
		ExpireTime:      time.Now().Add(starCardValidDays * 24 * time.Hour),
	}

	for attempt := 0; attempt < shareCodeAttempts; attempt++ {
		code, err := validation.NewShareCode()
		if err != nil {
			return nil, fmt.Errorf("generate share code: %w", err)
		}
		card.ShareCode = code

		created, err := s.repo.CreateStarCard(ctx, card, starCardMaxActive)
		if errors.Is(err, repository.ErrShareCodeTaken) {
			continue
		}
		if err != nil {
			return nil, err
		}
		return created, nil
	}
	return nil, fmt.Errorf("create star card: %w", repository.ErrShareCodeTaken)
}

// GetMyCards возвращает карты, созданные пользователем.
func (s *Service) GetMyCards(ctx context.Context, openid string) ([]model.StarCard, error) {
	return s.repo.ListCardsByCreator(ctx, openid)
}

// ShareResult описывает данные для шаринга карты.
type ShareResult struct {
	ShareCode string `json:"shareCode"`
	ShareURL  string `json:"shareUrl"`
}

// ShareCard возвращает код и ссылку для шаринга активной карты.
// Делиться можно только собственной картой.
func (s *Service) ShareCard(ctx context.Context, openid string, cardID int64) (*ShareResult, error) {
	if cardID <= 0 {
		return nil, fmt.Errorf("%w: invalid card id", ErrValidation)
	}
	card, err := s.repo.GetCardForShare(ctx, cardID, openid)
	if err != nil {
		return nil, err
	}
	return &ShareResult{
		ShareCode: card.ShareCode,
		ShareURL:  "/pages/star-card/receive?shareCode=" + card.ShareCode,
	}, nil
}

// ReceiveResult описывает итог получения карты.
type ReceiveResult struct {
	Card         *model.StarCard        `json:"card"`
	Receive      *model.StarCardReceive `json:"record"`
	RewardAmount float64                `json:"rewardAmount"`
}

// ReceiveCard начисляет вознаграждение по коду шаринга. Получатель и
// создатель карты получают вознаграждение одновременно; повторное
// получение одной карты тем же пользователем запрещено.
func (s *Service) ReceiveCard(ctx context.Context, receiverOpenID, shareCode string) (*ReceiveResult, error) {
	if !validation.IsValidShareCode(shareCode) {
		return nil, fmt.Errorf("%w: invalid share code", ErrValidation)
	}
	card, receive, err := s.repo.RedeemStarCard(ctx, shareCode, receiverOpenID)
	if err != nil {
		return nil, err
	}
	return &ReceiveResult{Card: card, Receive: receive, RewardAmount: receive.RewardAmount}, nil
}

// GetStats возвращает сводную статистику по картам пользователя.
func (s *Service) GetStats(ctx context.Context, openid string) (*model.StarCardStats, error) {
	return s.repo.GetStarCardStats(ctx, openid)
}
