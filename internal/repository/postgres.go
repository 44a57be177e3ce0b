// Package repository содержит реализацию доступа к данным в PostgreSQL.
package repository

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
	"github.com/sethvargo/go-retry"

	"github.com/lizhen986988664/distributionMini/internal/model"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// ErrUserNotFound возвращается, если пользователь не найден.
var (
	ErrUserNotFound = errors.New("user not found")
	// ErrInsufficientBalance возвращается при попытке списания суммы, превышающей баланс.
	ErrInsufficientBalance = errors.New("insufficient balance")
	// ErrProductNotFound возвращается, если товар не найден или удалён.
	ErrProductNotFound = errors.New("product not found")
	// ErrOutOfStock возвращается, если остатка товара не хватает для списания.
	ErrOutOfStock = errors.New("out of stock")
	// ErrOrderNotFound возвращается, если заказ не найден.
	ErrOrderNotFound = errors.New("order not found")
	// ErrInvalidOrderState возвращается при недопустимом переходе статуса заказа.
	ErrInvalidOrderState = errors.New("invalid order state")
	// ErrForbidden возвращается при обращении к чужому ресурсу.
	ErrForbidden = errors.New("resource owned by another user")
	// ErrDuplicateRequest возвращается при повторном создании заказа с тем же requestId.
	ErrDuplicateRequest = errors.New("duplicate order request")
	// ErrCouponNotFound возвращается, если купон не найден или принадлежит другому пользователю.
	ErrCouponNotFound = errors.New("coupon not found")
	// ErrCouponUnavailable возвращается, если купон не в состоянии received.
	ErrCouponUnavailable = errors.New("coupon unavailable")
	// ErrCouponExpired возвращается, если срок действия купона истёк.
	ErrCouponExpired = errors.New("coupon expired")
	// ErrCouponMinAmount возвращается, если сумма заказа меньше порога купона.
	ErrCouponMinAmount = errors.New("order amount below coupon minimum")
	// ErrCouponOutOfStock возвращается, если запас шаблона купона исчерпан.
	ErrCouponOutOfStock = errors.New("coupon stock exhausted")
	// ErrCouponLimitReached возвращается при превышении лимита выдачи на пользователя.
	ErrCouponLimitReached = errors.New("coupon receive limit reached")
	// ErrCardNotFound возвращается, если карта по коду не найдена или не активна.
	ErrCardNotFound = errors.New("star card not found")
	// ErrCardExpired возвращается, если срок действия карты истёк.
	ErrCardExpired = errors.New("star card expired")
	// ErrCardExhausted возвращается, если лимит получений карты исчерпан.
	ErrCardExhausted = errors.New("star card exhausted")
	// ErrSelfReferral возвращается при попытке получить собственную карту.
	ErrSelfReferral = errors.New("cannot receive own star card")
	// ErrCardAlreadyReceived возвращается при повторном получении карты тем же пользователем.
	ErrCardAlreadyReceived = errors.New("star card already received")
	// ErrCardLimitReached возвращается при превышении лимита активных карт у создателя.
	ErrCardLimitReached = errors.New("active star card limit reached")
	// ErrShareCodeTaken возвращается при коллизии сгенерированного кода карты.
	ErrShareCodeTaken = errors.New("share code already taken")
)

// PostgresRepository предоставляет доступ к хранилищу данных в PostgreSQL.
type PostgresRepository struct {
	pool *pgxpool.Pool
}

// NewPostgresRepository создаёт новый репозиторий и инициализирует схему БД через миграции.
func NewPostgresRepository(dsn string) (*PostgresRepository, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse pool config: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	r := &PostgresRepository{pool: pool}

	if err := r.runMigrations(ctx); err != nil {
		pool.Close()
		return nil, err
	}

	return r, nil
}

func (r *PostgresRepository) runMigrations(ctx context.Context) error {
	db := stdlib.OpenDBFromPool(r.pool)
	defer db.Close()

	goose.SetBaseFS(migrationsFS)

	if err := goose.SetDialect("postgres"); err != nil {
		return fmt.Errorf("set dialect: %w", err)
	}

	if err := goose.UpContext(ctx, db, "migrations"); err != nil {
		return fmt.Errorf("run migrations: %w", err)
	}

	return nil
}

// inTx выполняет fn в транзакции. Повторяются только сбои сериализации
// и дедлоки: такая транзакция гарантированно откатилась. Обрыв соединения
// на commit не повторяется, потому что транзакция могла успеть
// примениться, и повтор задвоил бы списание средств или выдачу купона.
func (r *PostgresRepository) inTx(ctx context.Context, fn func(tx pgx.Tx) error) error {
	backoff := retry.WithMaxRetries(3, retry.NewConstant(1*time.Second))

	return retry.Do(ctx, backoff, func(ctx context.Context) error {
		tx, err := r.pool.Begin(ctx)
		if err != nil {
			// Транзакция ещё не открыта, сетевой сбой можно повторить.
			if isConnectionError(err) {
				return retry.RetryableError(fmt.Errorf("begin tx: %w", err))
			}
			return fmt.Errorf("begin tx: %w", err)
		}
		defer tx.Rollback(ctx)

		if err := fn(tx); err != nil {
			return classifyTxError(err)
		}

		if err := tx.Commit(ctx); err != nil {
			return classifyTxError(fmt.Errorf("commit tx: %w", err))
		}
		return nil
	})
}

// classifyTxError помечает повторяемыми только ошибки, после которых
// транзакция гарантированно не применилась. Бизнес-ошибки и сетевые
// сбои повтору не подлежат.
func classifyTxError(err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) &&
		(pgErr.Code == pgerrcode.SerializationFailure || pgErr.Code == pgerrcode.DeadlockDetected) {
		return retry.RetryableError(err)
	}

	return err
}

func isConnectionError(err error) bool {
	// Упрощенная проверка на ошибки соединения
	return strings.Contains(err.Error(), "connection refused") ||
		strings.Contains(err.Error(), "broken pipe") ||
		strings.Contains(err.Error(), "connection reset by peer")
}

// Суммы хранятся в копейках, наружу отдаются в рублях с двумя знаками.
func toCents(amount float64) int64 {
	return int64(math.Round(amount * 100))
}

func fromCents(cents int64) float64 {
	return float64(cents) / 100
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation
}

// Close закрывает пул соединений с БД.
func (r *PostgresRepository) Close() error {
	r.pool.Close()
	return nil
}

// GetOrCreateUser возвращает пользователя по openid, создавая запись при первом входе.
// Второе возвращаемое значение — признак того, что пользователь был создан.
func (r *PostgresRepository) GetOrCreateUser(ctx context.Context, openid string) (*model.User, bool, error) {
	nickname := "用户" + tail(openid, 6)

	cmdTag, err := r.pool.Exec(ctx,
		`INSERT INTO users (openid, nickname, status, level, balance, points, total_spent, order_count)
		 VALUES ($1, $2, 'active', 'bronze', 0, 0, 0, 0)
		 ON CONFLICT (openid) DO NOTHING`,
		openid, nickname,
	)
	if err != nil {
		return nil, false, fmt.Errorf("insert user: %w", err)
	}

	created := cmdTag.RowsAffected() == 1

	if !created {
		_, err = r.pool.Exec(ctx,
			`UPDATE users SET last_login_time = now(), update_time = now() WHERE openid = $1`,
			openid,
		)
		if err != nil {
			return nil, false, fmt.Errorf("touch user login: %w", err)
		}
	}

	u, err := r.GetUser(ctx, openid)
	if err != nil {
		return nil, false, err
	}

	return u, created, nil
}

// GetUser возвращает пользователя по openid.
func (r *PostgresRepository) GetUser(ctx context.Context, openid string) (*model.User, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT id, openid, nickname, avatar, phone, address, level, status,
		        balance, points, total_spent, order_count, create_time, update_time
		 FROM users WHERE openid = $1`,
		openid,
	)

	var (
		u                   model.User
		balance, totalSpent int64
		status              string
	)
	err := row.Scan(&u.ID, &u.OpenID, &u.Nickname, &u.Avatar, &u.Phone, &u.Address,
		&u.Level, &status, &balance, &u.Points, &totalSpent, &u.OrderCount,
		&u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("get user: %w", err)
	}

	u.Status = model.UserStatus(status)
	u.Balance = fromCents(balance)
	u.TotalSpent = fromCents(totalSpent)

	return &u, nil
}

// UpdateUserProfile обновляет редактируемые поля профиля пользователя.
// Пустые значения не перезаписывают существующие.
func (r *PostgresRepository) UpdateUserProfile(ctx context.Context, openid, nickname, avatar, phone, address string) (*model.User, error) {
	cmdTag, err := r.pool.Exec(ctx,
		`UPDATE users SET
		    nickname = COALESCE(NULLIF($2, ''), nickname),
		    avatar   = COALESCE(NULLIF($3, ''), avatar),
		    phone    = COALESCE(NULLIF($4, ''), phone),
		    address  = COALESCE(NULLIF($5, ''), address),
		    update_time = now()
		 WHERE openid = $1`,
		openid, nickname, avatar, phone, address,
	)
	if err != nil {
		return nil, fmt.Errorf("update user profile: %w", err)
	}
	if cmdTag.RowsAffected() == 0 {
		return nil, ErrUserNotFound
	}

	return r.GetUser(ctx, openid)
}

func tail(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[len(s)-n:]
}
