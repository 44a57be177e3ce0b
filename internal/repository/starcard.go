package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/lizhen986988664/distributionMini/internal/model"
)

// CreateStarCard сохраняет новую карту. Лимит активных карт создателя
// проверяется под блокировкой строки пользователя, чтобы параллельные
// запросы не обошли ограничение. Коллизия share_code отдаётся как
// ErrShareCodeTaken — вызывающая сторона генерирует новый код.
func (r *PostgresRepository) CreateStarCard(ctx context.Context, card *model.StarCard, maxActive int) (*model.StarCard, error) {
	err := r.inTx(ctx, func(tx pgx.Tx) error {
		var userID int64
		err := tx.QueryRow(ctx,
			`SELECT id FROM users WHERE openid = $1 FOR UPDATE`,
			card.CreatorOpenID,
		).Scan(&userID)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return ErrUserNotFound
			}
			return fmt.Errorf("lock creator: %w", err)
		}

		var active int
		err = tx.QueryRow(ctx,
			`SELECT COUNT(*) FROM star_cards
			 WHERE creator_openid = $1 AND status = 'active' AND expire_time >= now()`,
			card.CreatorOpenID,
		).Scan(&active)
		if err != nil {
			return fmt.Errorf("count active cards: %w", err)
		}
		if active >= maxActive {
			return ErrCardLimitReached
		}

		err = tx.QueryRow(ctx,
			`INSERT INTO star_cards (creator_openid, title, type, reward_amount, share_code,
			                         status, receive_count, max_receive_count, expire_time)
			 VALUES ($1, $2, $3, $4, $5, 'active', 0, $6, $7)
			 RETURNING id, create_time, update_time`,
			card.CreatorOpenID, card.Title, card.Type, toCents(card.RewardAmount),
			card.ShareCode, card.MaxReceiveCount, card.ExpireTime,
		).Scan(&card.ID, &card.CreatedAt, &card.UpdatedAt)
		if err != nil {
			if isUniqueViolation(err) {
				return ErrShareCodeTaken
			}
			return fmt.Errorf("insert star card: %w", err)
		}

		card.Status = model.StarCardStatusActive
		return nil
	})
	if err != nil {
		return nil, err
	}
	return card, nil
}

// ListCardsByCreator возвращает карты пользователя, свежие первыми.
func (r *PostgresRepository) ListCardsByCreator(ctx context.Context, openid string) ([]model.StarCard, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, creator_openid, title, type, reward_amount, share_code, status,
		        receive_count, max_receive_count, expire_time, create_time, update_time
		 FROM star_cards
		 WHERE creator_openid = $1
		 ORDER BY create_time DESC`,
		openid,
	)
	if err != nil {
		return nil, fmt.Errorf("select star cards: %w", err)
	}
	defer rows.Close()

	var res []model.StarCard
	for rows.Next() {
		card, err := scanStarCard(rows)
		if err != nil {
			return nil, fmt.Errorf("scan star card: %w", err)
		}
		res = append(res, *card)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}
	return res, nil
}

// GetCardForShare возвращает активную карту создателя для раздачи.
// Протухшая или исчерпанная карта лениво переводится в терминальный статус,
// после чего возвращается соответствующая ошибка.
func (r *PostgresRepository) GetCardForShare(ctx context.Context, cardID int64, openid string) (*model.StarCard, error) {
	var (
		card    *model.StarCard
		fateErr error
	)
	err := r.inTx(ctx, func(tx pgx.Tx) error {
		row := tx.QueryRow(ctx,
			`SELECT id, creator_openid, title, type, reward_amount, share_code, status,
			        receive_count, max_receive_count, expire_time, create_time, update_time
			 FROM star_cards
			 WHERE id = $1 AND creator_openid = $2 FOR UPDATE`,
			cardID, openid,
		)

		c, err := scanStarCard(row)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return ErrCardNotFound
			}
			return fmt.Errorf("get star card: %w", err)
		}

		if c.Status != model.StarCardStatusActive {
			return ErrCardNotFound
		}

		// Ленивый перевод в терминальный статус должен зафиксироваться,
		// поэтому из транзакции возвращаем nil, а ошибку — отдельно.
		if fate := lazyCardFate(c); fate != nil {
			if err := flipCardStatus(ctx, tx, c.ID, fate.status); err != nil {
				return err
			}
			fateErr = fate.err
			return nil
		}

		card = c
		return nil
	})
	if err != nil {
		return nil, err
	}
	if fateErr != nil {
		return nil, fateErr
	}
	return card, nil
}

// RedeemStarCard выполняет получение карты по коду: проверки, запись о
// получении и двустороннее зачисление вознаграждения — одна транзакция.
// Уникальный индекс (card_id, receiver_openid) закрывает гонку двух
// одновременных получений одной пары; нарушение индекса отдаётся как
// ErrCardAlreadyReceived.
func (r *PostgresRepository) RedeemStarCard(ctx context.Context, shareCode, receiverOpenID string) (*model.StarCard, *model.StarCardReceive, error) {
	var (
		card    *model.StarCard
		rec     *model.StarCardReceive
		fateErr error
	)
	err := r.inTx(ctx, func(tx pgx.Tx) error {
		row := tx.QueryRow(ctx,
			`SELECT id, creator_openid, title, type, reward_amount, share_code, status,
			        receive_count, max_receive_count, expire_time, create_time, update_time
			 FROM star_cards
			 WHERE share_code = $1 FOR UPDATE`,
			shareCode,
		)

		c, err := scanStarCard(row)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return ErrCardNotFound
			}
			return fmt.Errorf("get star card by code: %w", err)
		}

		if c.Status != model.StarCardStatusActive {
			return ErrCardNotFound
		}

		// Как и при раздаче, ленивый перевод статуса фиксируем коммитом,
		// а ошибку отдаём после транзакции.
		if fate := lazyCardFate(c); fate != nil {
			if err := flipCardStatus(ctx, tx, c.ID, fate.status); err != nil {
				return err
			}
			fateErr = fate.err
			return nil
		}

		if c.CreatorOpenID == receiverOpenID {
			return ErrSelfReferral
		}

		rec = &model.StarCardReceive{
			CardID:         c.ID,
			ShareCode:      c.ShareCode,
			CreatorOpenID:  c.CreatorOpenID,
			ReceiverOpenID: receiverOpenID,
			RewardAmount:   c.RewardAmount,
			Status:         model.StarCardReceivePending,
		}

		err = tx.QueryRow(ctx,
			`INSERT INTO star_card_receives (card_id, card_share_code, creator_openid, receiver_openid,
			                                 reward_amount, status)
			 VALUES ($1, $2, $3, $4, $5, 'pending')
			 RETURNING id, receive_time`,
			c.ID, c.ShareCode, c.CreatorOpenID, receiverOpenID, toCents(c.RewardAmount),
		).Scan(&rec.ID, &rec.ReceiveTime)
		if err != nil {
			if isUniqueViolation(err) {
				return ErrCardAlreadyReceived
			}
			return fmt.Errorf("insert receive record: %w", err)
		}

		_, err = tx.Exec(ctx,
			`UPDATE star_cards SET receive_count = receive_count + 1, update_time = now() WHERE id = $1`,
			c.ID,
		)
		if err != nil {
			return fmt.Errorf("bump receive count: %w", err)
		}
		c.ReceiveCount++

		// Вознаграждение платится обеим сторонам в той же транзакции:
		// одна запись о получении — ровно одна пара зачислений.
		if _, err := adjustBalanceTx(ctx, tx, receiverOpenID, toCents(c.RewardAmount),
			"receive_star_card", "接收海星卡奖励", nil); err != nil {
			return err
		}
		if _, err := adjustBalanceTx(ctx, tx, c.CreatorOpenID, toCents(c.RewardAmount),
			"share_star_card", "海星卡分享奖励", nil); err != nil {
			return err
		}

		var processTime time.Time
		err = tx.QueryRow(ctx,
			`UPDATE star_card_receives SET status = 'completed', process_time = now()
			 WHERE id = $1
			 RETURNING process_time`,
			rec.ID,
		).Scan(&processTime)
		if err != nil {
			return fmt.Errorf("complete receive record: %w", err)
		}

		rec.Status = model.StarCardReceiveCompleted
		rec.ProcessTime = &processTime
		card = c
		return nil
	})
	if err != nil {
		return nil, nil, err
	}
	if fateErr != nil {
		return nil, nil, fateErr
	}
	return card, rec, nil
}

// GetStarCardStats возвращает статистику: сколько карт создано, сколько
// получено и суммарное вознаграждение за полученные карты.
func (r *PostgresRepository) GetStarCardStats(ctx context.Context, openid string) (*model.StarCardStats, error) {
	stats := &model.StarCardStats{}

	err := r.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM star_cards WHERE creator_openid = $1`,
		openid,
	).Scan(&stats.TotalShared)
	if err != nil {
		return nil, fmt.Errorf("count created cards: %w", err)
	}

	var rewardCents int64
	err = r.pool.QueryRow(ctx,
		`SELECT COUNT(*), COALESCE(SUM(reward_amount), 0)
		 FROM star_card_receives
		 WHERE receiver_openid = $1 AND status = 'completed'`,
		openid,
	).Scan(&stats.TotalReceived, &rewardCents)
	if err != nil {
		return nil, fmt.Errorf("sum received rewards: %w", err)
	}

	stats.TotalReward = fromCents(rewardCents)
	return stats, nil
}

type cardFate struct {
	status model.StarCardStatus
	err    error
}

// lazyCardFate определяет, должна ли активная карта лениво перейти в
// терминальный статус при обращении.
func lazyCardFate(c *model.StarCard) *cardFate {
	if time.Now().After(c.ExpireTime) {
		return &cardFate{status: model.StarCardStatusExpired, err: ErrCardExpired}
	}
	if c.ReceiveCount >= c.MaxReceiveCount {
		return &cardFate{status: model.StarCardStatusUsed, err: ErrCardExhausted}
	}
	return nil
}

func flipCardStatus(ctx context.Context, tx pgx.Tx, cardID int64, status model.StarCardStatus) error {
	_, err := tx.Exec(ctx,
		`UPDATE star_cards SET status = $2, update_time = now() WHERE id = $1`,
		cardID, string(status),
	)
	if err != nil {
		return fmt.Errorf("flip card status: %w", err)
	}
	return nil
}

func scanStarCard(row pgx.Row) (*model.StarCard, error) {
	var (
		c      model.StarCard
		reward int64
		status string
	)
	err := row.Scan(&c.ID, &c.CreatorOpenID, &c.Title, &c.Type, &reward, &c.ShareCode,
		&status, &c.ReceiveCount, &c.MaxReceiveCount, &c.ExpireTime, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return nil, err
	}
	c.RewardAmount = fromCents(reward)
	c.Status = model.StarCardStatus(status)
	return &c, nil
}
